package domain

import "context"

type PlanRepository interface {
	CreatePlan(ctx context.Context, p Plan) error
	GetPlan(ctx context.Context, id string) (Plan, error)
	// UpdatePlan loads the plan, applies fn and stores the result atomically.
	UpdatePlan(ctx context.Context, id string, fn func(*Plan) error) (Plan, error)
}

type VenueCache interface {
	// UpsertVenue inserts or refreshes by provider id and returns the stored record.
	// A nil Analysis on v never clears a cached one.
	UpsertVenue(ctx context.Context, v Venue) (Venue, error)
	GetVenues(ctx context.Context, ids []string) ([]Venue, error)
	ListVenues(ctx context.Context, afterID string, limit int) ([]Venue, error)
}

type Geocoder interface {
	Geocode(ctx context.Context, address string) (Coordinate, error)
}

type PlaceSearcher interface {
	// SearchNearby returns an empty slice (not an error) when the provider has no matches.
	SearchNearby(ctx context.Context, center Coordinate, radiusMeters int, placeType string) ([]Venue, error)
}

type PreferenceParser interface {
	Parse(ctx context.Context, text string) (PreferenceProfile, error)
}

type VenueAnalyzer interface {
	Analyze(ctx context.Context, v Venue) (VenueAnalysis, error)
}

type PreferenceScorer interface {
	Score(ctx context.Context, venues []Venue, profile PreferenceProfile, groupSize int) ([]MatchResult, error)
}

type Cache interface {
	Get(ctx context.Context, key string, dst any) (bool, error)
	Set(ctx context.Context, key string, v any, ttlSec int) error
	Del(ctx context.Context, key string) error
}

// VenueIndex receives venue snapshots for secondary search.
type VenueIndex interface {
	IndexVenues(ctx context.Context, vs []Venue) error
}
