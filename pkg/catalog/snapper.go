package catalog

import (
	"errors"

	"github.com/tidwall/rtree"

	"city_router/pkg/geo"
	"city_router/pkg/graph"
)

// MaxSnapDistMeters bounds how far a query point may be from a city.
const MaxSnapDistMeters = 50_000.0

// ErrPointTooFar is returned when no city lies within MaxSnapDistMeters.
var ErrPointTooFar = errors.New("point too far from any city")

// SnapResult is the city closest to a query point.
type SnapResult struct {
	City graph.CityRecord
	Dist float64 // meters from the query point
}

// Snapper answers nearest-city queries over an R-tree of city coordinates.
// It indexes a fixed set of cities; build a new one after the catalog changes.
type Snapper struct {
	tree   rtree.RTreeG[int]
	cities []graph.CityRecord
}

// NewSnapper indexes the given cities. Cities stored without coordinates
// (0, 0) are left out.
func NewSnapper(cities []graph.CityRecord) *Snapper {
	s := &Snapper{cities: cities}
	for i, c := range cities {
		if c.Lat == 0 && c.Lon == 0 {
			continue
		}
		pt := [2]float64{c.Lat, c.Lon}
		s.tree.Insert(pt, pt, i)
	}
	return s
}

// Nearest returns the closest city to (lat, lng). Ties go to the lower id.
func (s *Snapper) Nearest(lat, lng float64) (SnapResult, error) {
	minPt, maxPt := geo.BoundingBox(lat, lng, MaxSnapDistMeters)

	best := -1
	bestDist := MaxSnapDistMeters
	s.tree.Search(minPt, maxPt, func(_, _ [2]float64, i int) bool {
		c := &s.cities[i]
		d := geo.Haversine(lat, lng, c.Lat, c.Lon)
		if d > MaxSnapDistMeters {
			return true
		}
		if best < 0 || d < bestDist || (d == bestDist && c.ID < s.cities[best].ID) {
			best, bestDist = i, d
		}
		return true
	})

	if best < 0 {
		return SnapResult{}, ErrPointTooFar
	}
	return SnapResult{City: s.cities[best], Dist: bestDist}, nil
}
