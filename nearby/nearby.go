package nearby

import (
	"context"
	"fmt"

	"github.com/Megii/CarCareFunctions/geo"
	"github.com/Megii/CarCareFunctions/store"
	"github.com/Megii/CarCareFunctions/utils"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"
)

// Maintainer keeps the users' nearby lists symmetric. It is the only writer
// of users/{id}/nearby.
type Maintainer struct {
	store  store.Store
	radius float64
}

func NewMaintainer(s store.Store, radius float64) *Maintainer {
	if radius <= 0 {
		radius = DefaultRadius
	}
	return &Maintainer{store: s, radius: radius}
}

func nearbyPath(id string) string {
	return store.Join("users", id, "nearby")
}

// OnCoordinateWrite recomputes the nearby relation of userID after its
// coordinates were written. The position is taken from the stored record,
// never from the write itself; cleared, or a record without coordinates,
// removes userID from the relation.
//
// The directory is read once and every list is written back whole. Two users
// that move at the same time can overwrite each other's reciprocal edge; the
// relation is symmetric again once either of them writes coordinates again.
// There is no cross-invocation lock.
func (m *Maintainer) OnCoordinateWrite(ctx context.Context, userID string, cleared bool) error {
	var users map[string]User
	if err := m.store.Get(ctx, "users", &users); err != nil {
		return fmt.Errorf("reading users: %w", err)
	}

	coords := users[userID].Coords
	if cleared || coords == nil {
		return m.clear(ctx, userID, users)
	}
	return m.recompute(ctx, userID, *coords, users)
}

// clear removes userID from every peer list and empties its own.
func (m *Maintainer) clear(ctx context.Context, userID string, users map[string]User) error {
	writes := make(map[string][]Edge)
	for _, id := range utils.SortedKeys(users) {
		if id == userID {
			continue
		}
		peer := NewEdgeSet(id, users[id].Nearby)
		if peer.Remove(userID) {
			writes[id] = peer.Edges()
		}
	}

	if err := m.writePeers(ctx, writes); err != nil {
		return err
	}
	if err := m.store.Set(ctx, nearbyPath(userID), nil); err != nil {
		return fmt.Errorf("clearing nearby of %s: %w", userID, err)
	}

	zap.S().Infow("coordinates cleared", "user", userID, "peersUpdated", len(writes))
	return nil
}

func (m *Maintainer) recompute(ctx context.Context, userID string, coords geo.Coords, users map[string]User) error {
	self := users[userID]

	ix := geo.NewIndex()
	for id, u := range users {
		if id != userID && u.Coords != nil {
			ix.Add(id, *u.Coords)
		}
	}

	own := NewEdgeSet(userID, nil)
	writes := make(map[string][]Edge)
	for _, id := range ix.Within(coords, m.radius) {
		u := users[id]
		d := geo.Distance(coords, *u.Coords)
		if d > m.radius {
			continue
		}
		own.Add(edgeTo(id, d, u))

		peer := NewEdgeSet(id, u.Nearby)
		if peer.Put(edgeTo(userID, d, self)) {
			writes[id] = peer.Edges()
		}
	}

	// peers still listing userID from an older position
	for _, id := range utils.SortedKeys(users) {
		if id == userID || own.Contains(id) {
			continue
		}
		peer := NewEdgeSet(id, users[id].Nearby)
		if peer.Remove(userID) {
			writes[id] = peer.Edges()
		}
	}

	if err := m.writePeers(ctx, writes); err != nil {
		return err
	}
	if err := m.store.Set(ctx, nearbyPath(userID), own.Edges()); err != nil {
		return fmt.Errorf("writing nearby of %s: %w", userID, err)
	}

	zap.S().Infow("nearby recomputed",
		"user", userID,
		"nearby", own.Len(),
		"peersUpdated", len(writes),
	)
	return nil
}

func (m *Maintainer) writePeers(ctx context.Context, writes map[string][]Edge) error {
	g, ctx := errgroup.WithContext(ctx)
	for id, edges := range writes {
		id, edges := id, edges
		g.Go(func() error {
			if err := m.store.Set(ctx, nearbyPath(id), edges); err != nil {
				return fmt.Errorf("writing nearby of %s: %w", id, err)
			}
			return nil
		})
	}
	return g.Wait()
}
