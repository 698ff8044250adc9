package prefs

import (
	"context"
	"fmt"
	"math"
	"strings"

	"midway/internal/domain"
)

const (
	maxQuality    = 30
	maxBudget     = 20
	maxActivity   = 20
	maxPreference = 30
)

// HeuristicScorer rates each venue against a profile on four capped axes
// (quality, budget, activity, explicit preferences) summing to at most 100.
type HeuristicScorer struct{}

func (HeuristicScorer) Score(_ context.Context, venues []domain.Venue, p domain.PreferenceProfile, groupSize int) ([]domain.MatchResult, error) {
	out := make([]domain.MatchResult, 0, len(venues))
	for _, v := range venues {
		out = append(out, scoreVenue(v, p, groupSize))
	}
	return out, nil
}

func scoreVenue(v domain.Venue, p domain.PreferenceProfile, groupSize int) domain.MatchResult {
	var highlights, reasons []string

	quality := 10.0
	if v.Rating != nil {
		quality = *v.Rating / 5 * maxQuality
		if *v.Rating >= 4.5 {
			highlights = append(highlights, fmt.Sprintf("Rated %.1f", *v.Rating))
		}
	}

	budget := scoreBudget(v.PriceLevel, p.Budget)
	if p.Budget != "" && budget == maxBudget {
		highlights = append(highlights, "Fits the "+p.Budget+" budget")
	}

	activity := maxActivity / 2
	if p.ActivityType != "" {
		activity = 0
		if has(v, p.ActivityType) {
			activity = maxActivity
			highlights = append(highlights, "Good for "+p.ActivityType)
		}
	}

	wanted := append(append([]string{}, p.Dietary...), p.Accessibility...)
	if p.Mood != "" {
		wanted = append(wanted, p.Mood)
	}
	preference := maxPreference / 2
	if len(wanted) > 0 {
		preference = 0
		var missing []string
		for _, w := range wanted {
			if has(v, w) {
				preference += 10
				highlights = append(highlights, humanize(w))
			} else {
				missing = append(missing, humanize(w))
			}
		}
		if preference > maxPreference {
			preference = maxPreference
		}
		if len(missing) > 0 {
			reasons = append(reasons, "no signal for "+strings.ToLower(strings.Join(missing, ", ")))
		}
	}

	if groupSize >= 6 && has(v, "lively") {
		highlights = append(highlights, "Suits a larger group")
	}

	score := math.Round(quality + float64(budget+activity+preference))
	if score > 100 {
		score = 100
	}
	if len(highlights) > 0 {
		reasons = append([]string{strings.ToLower(strings.Join(highlights, ", "))}, reasons...)
	}
	return domain.MatchResult{
		VenueID:    v.ID,
		Score:      score,
		Reasoning:  capitalize(strings.Join(reasons, "; ")),
		Highlights: highlights,
	}
}

func scoreBudget(price *int, budget string) int {
	if budget == "" || price == nil {
		return maxBudget / 2
	}
	switch budget {
	case "low":
		switch {
		case *price <= 1:
			return maxBudget
		case *price == 2:
			return maxBudget / 2
		}
	case "medium":
		if *price >= 1 && *price <= 2 {
			return maxBudget
		}
		return maxBudget / 2
	case "high":
		switch {
		case *price >= 3:
			return maxBudget
		case *price == 2:
			return maxBudget / 2
		}
	}
	return 0
}

// has reports whether the venue shows any signal for term.
func has(v domain.Venue, term string) bool {
	if v.Analysis != nil {
		if v.Analysis.Attributes[term] {
			return true
		}
		for _, t := range v.Analysis.Tags {
			if t == term {
				return true
			}
		}
	}
	for _, f := range v.Features {
		if f == term {
			return true
		}
	}
	return v.Category == term
}

func humanize(s string) string { return capitalize(strings.ReplaceAll(s, "_", " ")) }

func capitalize(s string) string {
	if s == "" {
		return s
	}
	return strings.ToUpper(s[:1]) + s[1:]
}
