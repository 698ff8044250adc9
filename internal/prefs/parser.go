// Package prefs holds the local, deterministic preference collaborators:
// a keyword parser for free-text preferences, a venue analyzer and a
// weighted scorer. They back the pipeline when no assistant service is
// configured and make the ranking logic testable without a live model.
package prefs

import (
	"context"
	"regexp"
	"strconv"
	"strings"

	"midway/internal/domain"
)

// NoopParser keeps the query text and derives no hints.
type NoopParser struct{}

func (NoopParser) Parse(_ context.Context, text string) (domain.PreferenceProfile, error) {
	return domain.PreferenceProfile{Query: strings.TrimSpace(text)}, nil
}

var (
	groupExpr = regexp.MustCompile(`(?i)\b(?:group of|party of|table for)\s+(\d{1,2})\b|\b(\d{1,2})\s+(?:people|persons|friends|of us|guests)\b`)
	wordExpr  = regexp.MustCompile(`[a-z]+(?:-[a-z]+)?`)
)

// keyword vocabularies; first match wins for single-valued hints
var (
	dietaryWords = map[string]string{
		"vegan": "vegan", "vegetarian": "vegetarian", "veggie": "vegetarian",
		"gluten-free": "gluten_free", "halal": "halal", "kosher": "kosher",
		"dairy-free": "dairy_free",
	}
	accessWords = map[string]string{
		"wheelchair": "wheelchair_accessible", "accessible": "wheelchair_accessible",
		"step-free": "wheelchair_accessible", "parking": "parking",
		"stroller": "family_friendly", "kids": "family_friendly",
	}
	moodWords = map[string]string{
		"romantic": "romantic", "date": "romantic", "cozy": "cozy", "cosy": "cozy",
		"quiet": "quiet", "calm": "quiet", "lively": "lively", "fun": "lively",
		"casual": "casual", "fancy": "upscale", "upscale": "upscale", "classy": "upscale",
	}
	activityWords = map[string]string{
		"dinner": "dining", "lunch": "dining", "eat": "dining", "food": "dining",
		"breakfast": "dining", "brunch": "dining",
		"drinks": "drinks", "cocktails": "drinks", "beer": "drinks", "wine": "drinks",
		"coffee": "coffee", "tea": "coffee",
		"study": "work", "work": "work", "laptop": "work",
		"walk": "outdoors", "park": "outdoors", "outdoor": "outdoors", "outside": "outdoors",
	}
	timeWords = map[string]string{
		"morning": "morning", "breakfast": "morning", "brunch": "morning",
		"lunch": "afternoon", "afternoon": "afternoon",
		"dinner": "evening", "evening": "evening", "tonight": "evening",
		"late": "night", "night": "night",
	}
	budgetWords = map[string]string{
		"cheap": "low", "budget": "low", "affordable": "low", "inexpensive": "low",
		"moderate": "medium", "mid-range": "medium",
		"splurge": "high", "expensive": "high", "fancy": "high", "upscale": "high",
	}
)

// KeywordParser turns free text into a profile by keyword lookup.
type KeywordParser struct{}

func (KeywordParser) Parse(_ context.Context, text string) (domain.PreferenceProfile, error) {
	text = strings.TrimSpace(text)
	p := domain.PreferenceProfile{Query: text}
	if text == "" {
		return p, nil
	}
	lower := strings.ToLower(text)
	lower = strings.ReplaceAll(lower, "gluten free", "gluten-free")
	lower = strings.ReplaceAll(lower, "dairy free", "dairy-free")
	lower = strings.ReplaceAll(lower, "step free", "step-free")

	for _, w := range wordExpr.FindAllString(lower, -1) {
		if v, ok := dietaryWords[w]; ok {
			p.Dietary = appendUnique(p.Dietary, v)
		}
		if v, ok := accessWords[w]; ok {
			p.Accessibility = appendUnique(p.Accessibility, v)
		}
		if v, ok := moodWords[w]; ok && p.Mood == "" {
			p.Mood = v
		}
		if v, ok := activityWords[w]; ok && p.ActivityType == "" {
			p.ActivityType = v
		}
		if v, ok := timeWords[w]; ok && p.TimeOfDay == "" {
			p.TimeOfDay = v
		}
		if v, ok := budgetWords[w]; ok && p.Budget == "" {
			p.Budget = v
		}
	}

	if m := groupExpr.FindStringSubmatch(lower); m != nil {
		digits := m[1]
		if digits == "" {
			digits = m[2]
		}
		if n, err := strconv.Atoi(digits); err == nil && n > 0 {
			p.GroupSize = n
		}
	}
	return p, nil
}

func appendUnique(ss []string, s string) []string {
	for _, v := range ss {
		if v == s {
			return ss
		}
	}
	return append(ss, s)
}
