package domain

import (
	"fmt"
	"math"
)

type Coordinate struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

// Validate reports ErrInvalidInput for NaN or out-of-range degrees.
func (c Coordinate) Validate() error {
	if math.IsNaN(c.Lat) || math.IsNaN(c.Lng) {
		return fmt.Errorf("%w: coordinate is NaN", ErrInvalidInput)
	}
	if c.Lat < -90 || c.Lat > 90 {
		return fmt.Errorf("%w: latitude %.6f out of range", ErrInvalidInput, c.Lat)
	}
	if c.Lng < -180 || c.Lng > 180 {
		return fmt.Errorf("%w: longitude %.6f out of range", ErrInvalidInput, c.Lng)
	}
	return nil
}

func (c Coordinate) String() string { return fmt.Sprintf("%.6f,%.6f", c.Lat, c.Lng) }

// TravelEstimate is attached to responses only; it is recomputed on every request.
type TravelEstimate struct {
	ParticipantID string  `json:"participantId"`
	DistanceKm    float64 `json:"distanceKm"`
	Minutes       int     `json:"minutes"`
}
