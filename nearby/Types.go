package nearby

import "github.com/Megii/CarCareFunctions/geo"

// DefaultRadius is the proximity threshold in kilometers, inclusive.
const DefaultRadius = 3.0

type User struct {
	Coords *geo.Coords `json:"coords,omitempty"`
	Model  string      `json:"model,omitempty"`
	Color  string      `json:"color,omitempty"`
	Nr     string      `json:"nr,omitempty"`
	Token  string      `json:"token,omitempty"`
	Nearby []Edge      `json:"nearby,omitempty"`
}

// Edge is a snapshot of a nearby peer taken when the relation was computed.
type Edge struct {
	ID       string  `json:"id"`
	Distance float64 `json:"distance"`
	Model    string  `json:"model,omitempty"`
	Color    string  `json:"color,omitempty"`
	Nr       string  `json:"nr,omitempty"`
	Token    string  `json:"token,omitempty"`
}

func edgeTo(id string, distance float64, u User) Edge {
	return Edge{
		ID:       id,
		Distance: distance,
		Model:    u.Model,
		Color:    u.Color,
		Nr:       u.Nr,
		Token:    u.Token,
	}
}
