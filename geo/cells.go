package geo

import (
	"math"
	"sort"

	"github.com/mmcloughlin/geohash"
)

// precision 5 cells are roughly 4.9km x 4.9km at the equator
const cellPrecision = 5

// Cover returns every geohash cell that may hold a point within radius km of c.
// The result may include cells slightly beyond the radius but never misses one.
func Cover(c Coords, radius float64) []string {
	center := geohash.EncodeWithPrecision(c.Lat, c.Lon, cellPrecision)
	seen := map[string]bool{center: true}
	cells := []string{center}

	layer := []string{center}
	for len(layer) > 0 {
		next := make([]string, 0, 8)
		for _, cell := range layer {
			for _, nb := range geohash.Neighbors(cell) {
				if seen[nb] {
					continue
				}
				seen[nb] = true
				if reaches(c, radius, nb) {
					next = append(next, nb)
					cells = append(cells, nb)
				}
			}
		}
		layer = next
	}
	return cells
}

func reaches(c Coords, radius float64, cell string) bool {
	box := geohash.BoundingBox(cell)
	lat := clamp(c.Lat, box.MinLat, box.MaxLat)
	best := math.Inf(1)
	for _, lon := range []float64{c.Lon, c.Lon - 360, c.Lon + 360} {
		d := Distance(c, Coords{Lat: lat, Lon: clamp(lon, box.MinLng, box.MaxLng)})
		best = math.Min(best, d)
	}
	// the clamped corner is only an approximation of the nearest point on the sphere
	return best <= radius*1.05+0.1
}

func clamp(v, lo, hi float64) float64 {
	return math.Max(lo, math.Min(hi, v))
}

// Index buckets ids by the geohash cell of their coordinates.
type Index struct {
	cells map[string][]string
}

func NewIndex() *Index {
	return &Index{cells: make(map[string][]string)}
}

func (ix *Index) Add(id string, c Coords) {
	cell := geohash.EncodeWithPrecision(c.Lat, c.Lon, cellPrecision)
	ix.cells[cell] = append(ix.cells[cell], id)
}

// Within returns the sorted ids whose cell intersects the disk of radius km around c.
// Callers still need the exact distance check.
func (ix *Index) Within(c Coords, radius float64) []string {
	ids := make([]string, 0)
	for _, cell := range Cover(c, radius) {
		ids = append(ids, ix.cells[cell]...)
	}
	sort.Strings(ids)
	return ids
}
