package utils

import (
	"encoding/json"
	"errors"
	"fmt"

	"github.com/paulmach/orb"
	"github.com/paulmach/orb/planar"
)

// Coordinate represents a geographic coordinate with latitude and longitude
type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Geofence represents a polygonal geofence boundary
type Geofence struct {
	Coordinates []Coordinate `json:"coordinates"`
	Name        string       `json:"name,omitempty"`
	Description string       `json:"description,omitempty"`
}

// ValidateGeofence validates geofencing data
func ValidateGeofence(geofenceJSON string) error {
	if geofenceJSON == "" {
		return nil // Geofence is optional
	}

	var geofence Geofence
	if err := json.Unmarshal([]byte(geofenceJSON), &geofence); err != nil {
		return fmt.Errorf("invalid geofence JSON format: %w", err)
	}

	// A valid polygon needs at least 3 points (triangle)
	if len(geofence.Coordinates) < 3 {
		return errors.New("geofence must have at least 3 coordinates to form a polygon")
	}

	for i, coord := range geofence.Coordinates {
		if err := validateCoordinate(coord); err != nil {
			return fmt.Errorf("invalid coordinate at index %d: %w", i, err)
		}
	}
	return nil
}

func validateCoordinate(coord Coordinate) error {
	if coord.Lat < -90 || coord.Lat > 90 {
		return fmt.Errorf("latitude %.6f is out of valid range [-90, 90]", coord.Lat)
	}
	if coord.Lng < -180 || coord.Lng > 180 {
		return fmt.Errorf("longitude %.6f is out of valid range [-180, 180]", coord.Lng)
	}
	return nil
}

// ring converts the coordinate list to an orb ring, closing it if the
// stored polygon left the last vertex open.
func ring(coordinates []Coordinate) orb.Ring {
	r := make(orb.Ring, 0, len(coordinates)+1)
	for _, coord := range coordinates {
		r = append(r, orb.Point{coord.Lng, coord.Lat})
	}
	if len(r) > 0 && r[0] != r[len(r)-1] {
		r = append(r, r[0])
	}
	return r
}

// IsPointInPolygon checks if a point lies inside the polygon.
func IsPointInPolygon(point Coordinate, polygon []Coordinate) bool {
	if len(polygon) < 3 {
		return false
	}
	return planar.RingContains(ring(polygon), orb.Point{point.Lng, point.Lat})
}

// ParseGeofence parses geofence JSON string to Geofence struct
func ParseGeofence(geofenceJSON string) (*Geofence, error) {
	if geofenceJSON == "" {
		return nil, nil
	}
	var geofence Geofence
	if err := json.Unmarshal([]byte(geofenceJSON), &geofence); err != nil {
		return nil, fmt.Errorf("failed to parse geofence: %w", err)
	}
	return &geofence, nil
}

// CalculatePolygonCenter calculates the centroid of a polygon
func CalculatePolygonCenter(coordinates []Coordinate) Coordinate {
	if len(coordinates) == 0 {
		return Coordinate{}
	}
	centroid, _ := planar.CentroidArea(orb.Polygon{ring(coordinates)})
	return Coordinate{Lat: centroid[1], Lng: centroid[0]}
}
