package prefs

import (
	"context"
	"fmt"
	"strings"

	"midway/internal/domain"
)

// HeuristicAnalyzer derives tags and attributes from what the provider
// already returned about a venue.
type HeuristicAnalyzer struct{}

func (HeuristicAnalyzer) Analyze(_ context.Context, v domain.Venue) (domain.VenueAnalysis, error) {
	a := domain.VenueAnalysis{Attributes: map[string]bool{}}

	a.Tags = appendUnique(a.Tags, v.Category)
	for _, f := range v.Features {
		a.Tags = appendUnique(a.Tags, f)
	}

	tokens := map[string]bool{}
	text := strings.ToLower(v.Name + " " + v.Category + " " + strings.Join(v.Features, " "))
	for _, t := range strings.FieldsFunc(text, func(r rune) bool { return r < 'a' || r > 'z' }) {
		tokens[t] = true
	}
	set := func(attr string, terms ...string) {
		for _, t := range terms {
			if tokens[t] {
				a.Attributes[attr] = true
				return
			}
		}
	}
	set("vegan", "vegan")
	set("vegetarian", "vegetarian", "vegan", "salad")
	set("halal", "halal")
	set("kosher", "kosher")
	set("gluten_free", "gluten")
	set("wheelchair_accessible", "wheelchair")
	set("parking", "parking")
	set("outdoors", "park", "garden", "terrace", "campground")
	set("drinks", "bar", "pub", "wine", "brewery", "club", "liquor")
	set("coffee", "cafe", "coffee", "bakery", "tea")
	set("dining", "restaurant", "meal", "bistro", "diner", "kitchen", "grill")
	set("work", "cafe", "library", "coworking")
	set("quiet", "library", "tea", "book", "books")
	set("lively", "bar", "pub", "club", "karaoke")
	set("family_friendly", "park", "zoo", "museum", "amusement", "aquarium")

	if v.PriceLevel != nil {
		switch {
		case *v.PriceLevel <= 1:
			a.Attributes["budget_friendly"] = true
		case *v.PriceLevel >= 3:
			a.Attributes["upscale"] = true
			a.Attributes["romantic"] = true
		}
	}
	if v.Rating != nil && *v.Rating >= 4.5 && v.ReviewCount != nil && *v.ReviewCount >= 100 {
		a.Attributes["popular"] = true
	}

	a.Summary = summary(v)
	return a, nil
}

func summary(v domain.Venue) string {
	parts := []string{strings.ReplaceAll(v.Category, "_", " ")}
	if v.PriceLevel != nil && *v.PriceLevel > 0 {
		parts = append(parts, strings.Repeat("$", *v.PriceLevel))
	}
	if v.Rating != nil {
		if v.ReviewCount != nil {
			parts = append(parts, fmt.Sprintf("rated %.1f (%d reviews)", *v.Rating, *v.ReviewCount))
		} else {
			parts = append(parts, fmt.Sprintf("rated %.1f", *v.Rating))
		}
	}
	return strings.Join(parts, " · ")
}
