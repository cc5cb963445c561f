package weather

import (
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/geojson"
	"github.com/paulmach/orb/planar"
)

// Area is a user-drawn polygon or rectangle. Coordinates follow GeoJSON
// order (x = longitude, y = latitude).
type Area struct {
	geom orb.Geometry
}

// ParseArea decodes a GeoJSON Polygon or MultiPolygon geometry.
func ParseArea(raw []byte) (Area, error) {
	g, err := geojson.UnmarshalGeometry(raw)
	if err != nil {
		return Area{}, fmt.Errorf("%w: area geometry: %v", ErrInvalidInput, err)
	}
	return NewArea(g.Coordinates)
}

// NewArea wraps an orb geometry after checking type and coordinate ranges.
func NewArea(g orb.Geometry) (Area, error) {
	switch g.(type) {
	case orb.Polygon, orb.MultiPolygon:
	default:
		return Area{}, fmt.Errorf("%w: area must be a Polygon or MultiPolygon", ErrInvalidInput)
	}

	b := g.Bound()
	for _, p := range []orb.Point{b.Min, b.Max} {
		loc := Location{Latitude: p.Y(), Longitude: p.X()}
		if err := loc.Validate(); err != nil {
			return Area{}, err
		}
	}
	return Area{geom: g}, nil
}

// Centroid returns the area-weighted centroid of the polygon.
func (a Area) Centroid() (Location, error) {
	if a.geom == nil {
		return Location{}, fmt.Errorf("%w: empty area", ErrInvalidInput)
	}
	c, area := planar.CentroidArea(a.geom)
	if area <= 0 {
		return Location{}, fmt.Errorf("%w: degenerate area polygon", ErrInvalidInput)
	}
	return Location{Latitude: c.Y(), Longitude: c.X()}, nil
}

// Center returns the middle of the bounding box.
func (a Area) Center() Location {
	c := a.geom.Bound().Center()
	return Location{Latitude: c.Y(), Longitude: c.X()}
}

// GridPoints spreads n x n points evenly over the bounding box, edges
// included. n <= 1 yields the bounding box center.
func (a Area) GridPoints(n int) []Location {
	if n <= 1 {
		return []Location{a.Center()}
	}
	b := a.geom.Bound()
	lats := linspace(b.Min.Y(), b.Max.Y(), n)
	lons := linspace(b.Min.X(), b.Max.X(), n)

	points := make([]Location, 0, n*n)
	for _, lat := range lats {
		for _, lon := range lons {
			points = append(points, Location{Latitude: lat, Longitude: lon})
		}
	}
	return points
}

func linspace(lo, hi float64, n int) []float64 {
	out := make([]float64, n)
	step := (hi - lo) / float64(n-1)
	for i := range out {
		out[i] = lo + step*float64(i)
	}
	out[n-1] = hi
	return out
}
