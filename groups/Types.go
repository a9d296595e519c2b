package groups

import "github.com/Megii/CarCareFunctions/utils"

// DefaultCapacity is the largest number of members a group can hold.
const DefaultCapacity = 6

type Invite struct {
	WasSend     bool `json:"wasSend,omitempty"`
	WasAccepted bool `json:"wasAccepted,omitempty"`
}

// Member is a snapshot of a user taken when they were invited or accepted.
type Member struct {
	ID          string `json:"id"`
	Model       string `json:"model,omitempty"`
	Nr          string `json:"nr,omitempty"`
	Token       string `json:"token,omitempty"`
	WasAccepted *bool  `json:"wasAccepted,omitempty"`
}

type Group struct {
	Owner   string            `json:"owner,omitempty"`
	Invited map[string]Invite `json:"invited,omitempty"`
	Members []Member          `json:"members,omitempty"`
}

func (g *Group) exists() bool {
	return g.Owner != "" || len(g.Invited) > 0 || len(g.Members) > 0
}

func (g *Group) hasMember(id string) bool {
	return utils.Any(g.Members, func(m Member) bool { return m.ID == id })
}

type profile struct {
	Model string `json:"model,omitempty"`
	Nr    string `json:"nr,omitempty"`
	Token string `json:"token,omitempty"`
}

type Status int

const (
	Applied Status = iota
	Skipped
)

func (s Status) String() string {
	if s == Applied {
		return "applied"
	}
	return "skipped"
}

// Reason explains why a write was skipped.
type Reason string

const (
	ReasonGroupMissing  Reason = "group-missing"
	ReasonNotAccepted   Reason = "not-accepted"
	ReasonAlreadySent   Reason = "already-sent"
	ReasonGroupFull     Reason = "group-full"
	ReasonAlreadyMember Reason = "already-member"
)

type Result struct {
	Status Status
	Reason Reason
}

func applied() Result {
	return Result{Status: Applied}
}

func skipped(r Reason) Result {
	return Result{Status: Skipped, Reason: r}
}
