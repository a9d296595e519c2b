package nearby

import (
	"context"
	"errors"
	"math"
	"sync"
	"testing"

	"github.com/Megii/CarCareFunctions/geo"
	"github.com/Megii/CarCareFunctions/store"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

var (
	warsawA = geo.Coords{Lat: 52.23, Lon: 21.01}
	warsawB = geo.Coords{Lat: 52.25, Lon: 21.03}
)

type fixture struct {
	t *testing.T
	s *store.Memory
	m *Maintainer
}

func newFixture(t *testing.T, users map[string]User) *fixture {
	s := store.NewMemory()
	for id, u := range users {
		require.NoError(t, s.Set(context.Background(), "users/"+id, u))
	}
	return &fixture{t: t, s: s, m: NewMaintainer(s, 0)}
}

// move stores the new coordinates the way a client would and runs the trigger.
func (f *fixture) move(id string, c *geo.Coords) {
	ctx := context.Background()
	require.NoError(f.t, f.s.Set(ctx, "users/"+id+"/coords", c))
	require.NoError(f.t, f.m.OnCoordinateWrite(ctx, id, c == nil))
}

func (f *fixture) nearby(id string) []Edge {
	var edges []Edge
	require.NoError(f.t, f.s.Get(context.Background(), "users/"+id+"/nearby", &edges))
	return edges
}

func ids(edges []Edge) []string {
	out := make([]string, len(edges))
	for i, e := range edges {
		out[i] = e.ID
	}
	return out
}

func find(edges []Edge, id string) (Edge, bool) {
	for _, e := range edges {
		if e.ID == id {
			return e, true
		}
	}
	return Edge{}, false
}

// pointNorth returns a point on a's meridian whose distance to a is the
// largest float not above km.
func pointNorth(t *testing.T, a geo.Coords, km float64) geo.Coords {
	b := geo.Coords{Lat: a.Lat + km/geo.EarthRadius*180/math.Pi, Lon: a.Lon}
	for i := 0; i < 64 && geo.Distance(a, b) > km; i++ {
		b.Lat = math.Nextafter(b.Lat, a.Lat)
	}
	require.LessOrEqual(t, geo.Distance(a, b), km)
	require.InDelta(t, km, geo.Distance(a, b), 1e-9)
	return b
}

func TestExampleScenario(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA, Model: "golf", Nr: "WA 1234", Token: "tok-a"},
		"B": {Coords: &warsawB, Model: "polo", Nr: "WB 5678", Token: "tok-b"},
	})

	f.move("A", &warsawA)

	a, b := f.nearby("A"), f.nearby("B")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, Edge{ID: "B", Distance: a[0].Distance, Model: "polo", Nr: "WB 5678", Token: "tok-b"}, a[0])
	assert.Equal(t, Edge{ID: "A", Distance: a[0].Distance, Model: "golf", Nr: "WA 1234", Token: "tok-a"}, b[0])
	assert.InDelta(t, 2.61, a[0].Distance, 0.01)
}

func TestSymmetryAfterEveryUserSettled(t *testing.T) {
	coords := map[string]geo.Coords{
		"u1": {Lat: 52.2300, Lon: 21.0100},
		"u2": {Lat: 52.2450, Lon: 21.0300},
		"u3": {Lat: 52.2600, Lon: 21.0500},
		"u4": {Lat: 52.2100, Lon: 20.9900},
		"u5": {Lat: 52.4000, Lon: 21.3000},
		"u6": {Lat: 52.2310, Lon: 21.0110},
	}
	users := map[string]User{}
	for id := range coords {
		users[id] = User{Model: "m-" + id}
	}
	f := newFixture(t, users)
	for _, id := range []string{"u3", "u1", "u6", "u5", "u2", "u4"} {
		c := coords[id]
		f.move(id, &c)
	}

	for a, ca := range coords {
		for b, cb := range coords {
			if a == b {
				continue
			}
			d := geo.Distance(ca, cb)
			ea, okA := find(f.nearby(a), b)
			eb, okB := find(f.nearby(b), a)
			if d <= DefaultRadius {
				require.Truef(t, okA && okB, "%s and %s are %.3fkm apart", a, b, d)
				assert.InDelta(t, ea.Distance, eb.Distance, 1e-9)
				assert.InDelta(t, d, ea.Distance, 1e-9)
			} else {
				assert.False(t, okA || okB, "%s and %s are %.3fkm apart", a, b, d)
			}
		}
	}
}

func TestNoSelfEdge(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA, Nearby: []Edge{{ID: "A"}}},
		"B": {Coords: &warsawB, Nearby: []Edge{{ID: "B"}, {ID: "A", Distance: 9}}},
	})
	f.move("A", &warsawA)
	f.move("B", &warsawB)

	assert.NotContains(t, ids(f.nearby("A")), "A")
	assert.NotContains(t, ids(f.nearby("B")), "B")
	assert.Equal(t, []string{"A"}, ids(f.nearby("B")))
}

func TestBoundaryInclusion(t *testing.T) {
	origin := geo.Coords{Lat: 52.23, Lon: 21.01}
	atRadius := pointNorth(t, origin, 3.0)
	beyond := pointNorth(t, origin, 3.0001)
	require.Greater(t, geo.Distance(origin, beyond), 3.0)

	f := newFixture(t, map[string]User{
		"O":   {Coords: &origin},
		"in":  {Coords: &atRadius},
		"out": {Coords: &beyond},
	})
	f.move("O", &origin)

	assert.Equal(t, []string{"in"}, ids(f.nearby("O")))
	assert.Equal(t, []string{"O"}, ids(f.nearby("in")))
	assert.Empty(t, f.nearby("out"))
}

func TestClearingCoordinatesRemovesEdges(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
		// no coordinates but still holding a stale edge to A
		"C": {Nearby: []Edge{{ID: "A", Distance: 1}, {ID: "B", Distance: 2}}},
	})
	f.move("A", &warsawA)
	require.Equal(t, []string{"A"}, ids(f.nearby("B")))

	f.move("A", nil)

	assert.Empty(t, f.nearby("A"))
	assert.Empty(t, f.nearby("B"))
	assert.Equal(t, []string{"B"}, ids(f.nearby("C")))
}

func TestReciprocalInsertIsDeduplicated(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})
	f.move("A", &warsawA)
	f.move("A", &warsawA)

	assert.Equal(t, []string{"A"}, ids(f.nearby("B")))
	assert.Equal(t, []string{"B"}, ids(f.nearby("A")))
}

func TestUnchangedPeerIsNotRewritten(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})
	f.move("A", &warsawA)
	before := len(f.s.Writes())

	require.NoError(t, f.m.OnCoordinateWrite(context.Background(), "A", false))

	assert.Equal(t, []string{"users/A/nearby"}, f.s.Writes()[before:])
}

func TestMovingAwayDropsBothSides(t *testing.T) {
	far := geo.Coords{Lat: 50.06, Lon: 19.94}
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})
	f.move("A", &warsawA)
	f.move("A", &far)

	assert.Empty(t, f.nearby("A"))
	assert.Empty(t, f.nearby("B"))
}

func TestMovingWithinRangeRefreshesPeerSnapshot(t *testing.T) {
	closer := geo.Coords{Lat: 52.245, Lon: 21.03}
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})
	f.move("A", &warsawA)
	f.move("A", &closer)

	a, b := f.nearby("A"), f.nearby("B")
	require.Len(t, a, 1)
	require.Len(t, b, 1)
	assert.Equal(t, a[0].Distance, b[0].Distance)
	assert.InDelta(t, geo.Distance(closer, warsawB), b[0].Distance, 1e-12)
}

func TestDirectoryReadFailureWritesNothing(t *testing.T) {
	f := newFixture(t, map[string]User{"A": {Coords: &warsawA}, "B": {Coords: &warsawB}})
	boom := errors.New("database unreachable")
	f.s.FailGet("users", boom)
	before := len(f.s.Writes())

	err := f.m.OnCoordinateWrite(context.Background(), "A", false)

	assert.ErrorIs(t, err, boom)
	assert.Len(t, f.s.Writes(), before)
}

func TestPeerWriteFailureFailsInvocation(t *testing.T) {
	f := newFixture(t, map[string]User{"A": {Coords: &warsawA}, "B": {Coords: &warsawB}})
	boom := errors.New("permission denied")
	f.s.FailWrite("users/B/nearby", boom)

	err := f.m.OnCoordinateWrite(context.Background(), "A", false)
	assert.ErrorIs(t, err, boom)
}

// Mutual neighbours writing coordinates at the same time race on each other's
// nearby list: both invocations replace the peer list they read before the
// other one wrote. The relation can be asymmetric until a later write of
// either user settles it. Lists never hold duplicates or self edges.
func TestConcurrentMutualWritesSettle(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})
	ctx := context.Background()

	var wg sync.WaitGroup
	for i := 0; i < 20; i++ {
		for _, id := range []string{"A", "B"} {
			wg.Add(1)
			go func(id string) {
				defer wg.Done()
				assert.NoError(t, f.m.OnCoordinateWrite(ctx, id, false))
			}(id)
		}
	}
	wg.Wait()

	for _, id := range []string{"A", "B"} {
		edges := f.nearby(id)
		assert.LessOrEqual(t, len(edges), 1)
		assert.NotContains(t, ids(edges), id)
	}

	f.move("A", &warsawA)

	assert.Equal(t, []string{"B"}, ids(f.nearby("A")))
	assert.Equal(t, []string{"A"}, ids(f.nearby("B")))
}

func TestPositionIsReadFromStoredRecord(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})

	// only coords/lat was rewritten; the stored record still holds both fields
	require.NoError(t, f.s.Set(context.Background(), "users/A/coords/lat", warsawA.Lat))
	require.NoError(t, f.m.OnCoordinateWrite(context.Background(), "A", false))

	assert.Equal(t, []string{"B"}, ids(f.nearby("A")))
	assert.Equal(t, []string{"A"}, ids(f.nearby("B")))
}

func TestMissingStoredCoordinatesClears(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})
	f.move("A", &warsawA)
	require.NoError(t, f.s.Delete(context.Background(), "users/A/coords"))

	require.NoError(t, f.m.OnCoordinateWrite(context.Background(), "A", false))
	assert.Empty(t, f.nearby("A"))
	assert.Empty(t, f.nearby("B"))
}

func TestClearedWriteIgnoresStaleRecord(t *testing.T) {
	f := newFixture(t, map[string]User{
		"A": {Coords: &warsawA},
		"B": {Coords: &warsawB},
	})
	f.move("A", &warsawA)

	require.NoError(t, f.m.OnCoordinateWrite(context.Background(), "A", true))
	assert.Empty(t, f.nearby("A"))
	assert.Empty(t, f.nearby("B"))
}
