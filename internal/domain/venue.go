package domain

import "time"

type Venue struct {
	ID          string         `json:"id"` // provider-assigned, stable
	Name        string         `json:"name"`
	Category    string         `json:"category"`
	Rating      *float64       `json:"rating,omitempty"`
	ReviewCount *int           `json:"reviewCount,omitempty"`
	PriceLevel  *int           `json:"priceLevel,omitempty"`
	Address     string         `json:"address"`
	Location    Coordinate     `json:"location"`
	Hours       []string       `json:"hours,omitempty"`
	Photos      []string       `json:"photos,omitempty"`
	Website     *string        `json:"website,omitempty"`
	Phone       *string        `json:"phone,omitempty"`
	Features    []string       `json:"features,omitempty"`
	Analysis    *VenueAnalysis `json:"analysis,omitempty"`
	UpdatedAt   time.Time      `json:"updatedAt"`
}

// VenueAnalysis is the cached preference-analysis payload for a venue.
type VenueAnalysis struct {
	Summary    string          `json:"summary,omitempty"`
	Tags       []string        `json:"tags,omitempty"`
	Attributes map[string]bool `json:"attributes,omitempty"`
}

// RankedVenue is one entry of a venue search response.
type RankedVenue struct {
	Venue
	Travel []TravelEstimate `json:"travel"`
	Match  *MatchResult     `json:"match,omitempty"`
}
