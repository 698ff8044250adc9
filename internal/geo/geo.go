// Package geo holds the pure geometry used to place a meeting point:
// the midpoint of a participant set, great-circle distances and a rough
// drive-time estimate. Nothing here performs I/O.
package geo

import (
	"fmt"
	"math"
	"sort"

	"midway/internal/domain"
)

const (
	EarthRadiusKm = 6371.0

	kmToMiles   = 0.621371
	avgSpeedMph = 30.0
)

// Midpoint returns the meeting point for coords.
//
// One coordinate is returned unchanged and two are averaged per axis, which is
// good enough at city scale. Three or more are averaged as 3D unit vectors and
// projected back, avoiding the wraparound at the antimeridian and the
// distortion near the poles that naive lat/lng averaging suffers from.
func Midpoint(coords []domain.Coordinate) (domain.Coordinate, error) {
	if len(coords) == 0 {
		return domain.Coordinate{}, fmt.Errorf("%w: midpoint of no coordinates", domain.ErrInvalidInput)
	}
	for _, c := range coords {
		if err := c.Validate(); err != nil {
			return domain.Coordinate{}, err
		}
	}

	switch len(coords) {
	case 1:
		return coords[0], nil
	case 2:
		return domain.Coordinate{
			Lat: (coords[0].Lat + coords[1].Lat) / 2,
			Lng: (coords[0].Lng + coords[1].Lng) / 2,
		}, nil
	}

	// fixed summation order keeps the result identical under permutation
	sorted := append([]domain.Coordinate(nil), coords...)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Lat != sorted[j].Lat {
			return sorted[i].Lat < sorted[j].Lat
		}
		return sorted[i].Lng < sorted[j].Lng
	})

	var x, y, z float64
	for _, c := range sorted {
		lat, lng := radians(c.Lat), radians(c.Lng)
		x += math.Cos(lat) * math.Cos(lng)
		y += math.Cos(lat) * math.Sin(lng)
		z += math.Sin(lat)
	}
	n := float64(len(sorted))
	x, y, z = x/n, y/n, z/n

	hyp := math.Hypot(x, y)
	if hyp < 1e-12 && math.Abs(z) < 1e-12 {
		return domain.Coordinate{}, fmt.Errorf("%w: coordinates cancel out, no defined midpoint", domain.ErrInvalidInput)
	}
	return domain.Coordinate{
		Lat: degrees(math.Atan2(z, hyp)),
		Lng: degrees(math.Atan2(y, x)),
	}, nil
}

// Distance is the haversine great-circle distance in kilometres.
func Distance(a, b domain.Coordinate) float64 {
	if a == b {
		return 0
	}
	dLat := radians(b.Lat - a.Lat)
	dLng := radians(b.Lng - a.Lng)
	h := math.Sin(dLat/2)*math.Sin(dLat/2) +
		math.Cos(radians(a.Lat))*math.Cos(radians(b.Lat))*math.Sin(dLng/2)*math.Sin(dLng/2)
	return 2 * EarthRadiusKm * math.Asin(math.Min(1, math.Sqrt(h)))
}

// TravelMinutes is a deliberately crude drive-time estimate: straight-line
// distance at a flat 30 mph. There is no routing behind it.
func TravelMinutes(km float64) int {
	return int(math.Round(km * kmToMiles / avgSpeedMph * 60))
}

// Estimate builds the travel estimate of one participant towards dst.
func Estimate(participantID string, from, dst domain.Coordinate) domain.TravelEstimate {
	km := Distance(from, dst)
	return domain.TravelEstimate{ParticipantID: participantID, DistanceKm: km, Minutes: TravelMinutes(km)}
}

// DistanceMatrix returns the symmetric matrix of pairwise distances in km.
func DistanceMatrix(coords []domain.Coordinate) [][]float64 {
	m := make([][]float64, len(coords))
	for i := range m {
		m[i] = make([]float64, len(coords))
	}
	for i := range coords {
		for j := i + 1; j < len(coords); j++ {
			d := Distance(coords[i], coords[j])
			m[i][j], m[j][i] = d, d
		}
	}
	return m
}

func radians(d float64) float64 { return d * math.Pi / 180 }
func degrees(r float64) float64 { return r * 180 / math.Pi }
