package utils

import "testing"

// A unit square around the origin, stored open (not explicitly closed).
var square = []Coordinate{
	{Lat: 0, Lng: 0},
	{Lat: 0, Lng: 1},
	{Lat: 1, Lng: 1},
	{Lat: 1, Lng: 0},
}

func TestIsPointInPolygon(t *testing.T) {
	tests := []struct {
		name  string
		point Coordinate
		want  bool
	}{
		{"center", Coordinate{Lat: 0.5, Lng: 0.5}, true},
		{"near edge inside", Coordinate{Lat: 0.01, Lng: 0.99}, true},
		{"outside north", Coordinate{Lat: 1.5, Lng: 0.5}, false},
		{"outside west", Coordinate{Lat: 0.5, Lng: -0.1}, false},
		{"far away", Coordinate{Lat: 40, Lng: -70}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := IsPointInPolygon(tt.point, square); got != tt.want {
				t.Errorf("IsPointInPolygon(%+v) = %v, want %v", tt.point, got, tt.want)
			}
		})
	}
}

func TestIsPointInPolygonDegenerate(t *testing.T) {
	line := []Coordinate{{Lat: 0, Lng: 0}, {Lat: 1, Lng: 1}}
	if IsPointInPolygon(Coordinate{Lat: 0.5, Lng: 0.5}, line) {
		t.Error("two points cannot contain anything")
	}
}

func TestValidateGeofence(t *testing.T) {
	tests := []struct {
		name    string
		json    string
		wantErr bool
	}{
		{"empty optional", "", false},
		{"valid triangle", `{"coordinates":[{"lat":0,"lng":0},{"lat":0,"lng":1},{"lat":1,"lng":0}]}`, false},
		{"too few points", `{"coordinates":[{"lat":0,"lng":0},{"lat":1,"lng":1}]}`, true},
		{"latitude out of range", `{"coordinates":[{"lat":95,"lng":0},{"lat":0,"lng":1},{"lat":1,"lng":0}]}`, true},
		{"garbage", `not json`, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGeofence(tt.json)
			if (err != nil) != tt.wantErr {
				t.Errorf("ValidateGeofence() error = %v, wantErr %v", err, tt.wantErr)
			}
		})
	}
}

func TestCalculatePolygonCenter(t *testing.T) {
	center := CalculatePolygonCenter(square)
	if center.Lat < 0.49 || center.Lat > 0.51 || center.Lng < 0.49 || center.Lng > 0.51 {
		t.Errorf("centroid of unit square = %+v, want ~(0.5, 0.5)", center)
	}
}
