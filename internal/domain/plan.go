package domain

import "time"

const (
	MinParticipants = 2
	MaxParticipants = 10
)

type Participant struct {
	ID       string      `json:"id"`
	Location string      `json:"location"`
	Coord    *Coordinate `json:"coord,omitempty"`
}

type Plan struct {
	ID             string             `json:"id"`
	Participants   []Participant      `json:"participants"`
	Midpoint       *Coordinate        `json:"midpoint,omitempty"`
	SelectedVenues []string           `json:"selectedVenues"`
	Filters        VenueFilters       `json:"filters"`
	Preferences    *PreferenceProfile `json:"preferences,omitempty"`
	CreatedAt      time.Time          `json:"createdAt"`
	UpdatedAt      time.Time          `json:"updatedAt"`
}

// HasVenue reports whether id is already part of the itinerary.
func (p Plan) HasVenue(id string) bool {
	for _, v := range p.SelectedVenues {
		if v == id {
			return true
		}
	}
	return false
}

// VenueFilters are the per-plan search defaults. Zero values mean "not set".
type VenueFilters struct {
	Type         string   `json:"type,omitempty"`
	RadiusMeters int      `json:"radiusMeters,omitempty"`
	MinRating    *float64 `json:"minRating,omitempty"`
	PriceLevels  []int    `json:"priceLevels,omitempty"`
}

type PreferenceProfile struct {
	Query         string   `json:"query,omitempty"`
	Dietary       []string `json:"dietary,omitempty"`
	Accessibility []string `json:"accessibility,omitempty"`
	Mood          string   `json:"mood,omitempty"`
	ActivityType  string   `json:"activityType,omitempty"`
	TimeOfDay     string   `json:"timeOfDay,omitempty"`
	Budget        string   `json:"budget,omitempty"`
	GroupSize     int      `json:"groupSize,omitempty"`
}

// HasQuery is true when the profile carries free text worth scoring against.
func (p *PreferenceProfile) HasQuery() bool {
	return p != nil && p.Query != ""
}

type MatchResult struct {
	VenueID    string   `json:"venueId"`
	Score      float64  `json:"score"`
	Reasoning  string   `json:"reasoning,omitempty"`
	Highlights []string `json:"highlights,omitempty"`
}
