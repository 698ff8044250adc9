package app

import (
	"fmt"
	"math"

	"midway/internal/domain"
)

// maxRadiusMeters is the largest radius the place providers accept.
const maxRadiusMeters = 50000

// ValidateFilters checks the ranges of user-supplied filters.
func ValidateFilters(f domain.VenueFilters) error {
	if f.RadiusMeters < 0 || f.RadiusMeters > maxRadiusMeters {
		return fmt.Errorf("%w: radius must be between 1 and %d meters", domain.ErrInvalidInput, maxRadiusMeters)
	}
	if f.MinRating != nil && (math.IsNaN(*f.MinRating) || *f.MinRating < 0 || *f.MinRating > 5) {
		return fmt.Errorf("%w: minRating must be between 0 and 5", domain.ErrInvalidInput)
	}
	for _, p := range f.PriceLevels {
		if p < 0 || p > 4 {
			return fmt.Errorf("%w: price levels must be between 0 and 4", domain.ErrInvalidInput)
		}
	}
	return nil
}

// filterVenues keeps venues meeting minRating (0 disables it) and, when
// prices is non-empty, whose price level is one of prices. Unrated or
// unpriced venues are dropped whenever the matching filter is active.
func filterVenues(vs []domain.RankedVenue, minRating float64, prices []int) []domain.RankedVenue {
	allowed := map[int]bool{}
	for _, p := range prices {
		allowed[p] = true
	}
	out := make([]domain.RankedVenue, 0, len(vs))
	for _, v := range vs {
		if minRating > 0 && (v.Rating == nil || *v.Rating < minRating) {
			continue
		}
		if len(allowed) > 0 && (v.PriceLevel == nil || !allowed[*v.PriceLevel]) {
			continue
		}
		out = append(out, v)
	}
	return out
}
