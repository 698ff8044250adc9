package googlemaps

import (
	"midway/internal/domain"
	"midway/internal/shared"
)

type latLng struct {
	Lat float64 `json:"lat"`
	Lng float64 `json:"lng"`
}

type geocodeResponse struct {
	Status       string `json:"status"`
	ErrorMessage string `json:"error_message"`
	Results      []struct {
		FormattedAddress string `json:"formatted_address"`
		Geometry         struct {
			Location latLng `json:"location"`
		} `json:"geometry"`
	} `json:"results"`
}

type nearbyResponse struct {
	Status       string  `json:"status"`
	ErrorMessage string  `json:"error_message"`
	Results      []place `json:"results"`
}

type place struct {
	PlaceID          string   `json:"place_id"`
	Name             string   `json:"name"`
	Types            []string `json:"types"`
	Rating           *float64 `json:"rating"`
	UserRatingsTotal *int     `json:"user_ratings_total"`
	PriceLevel       *int     `json:"price_level"`
	Vicinity         string   `json:"vicinity"`
	FormattedAddress string   `json:"formatted_address"`
	BusinessStatus   string   `json:"business_status"`
	PhoneNumber      string   `json:"international_phone_number"`
	Website          string   `json:"website"`
	Geometry         struct {
		Location latLng `json:"location"`
	} `json:"geometry"`
	OpeningHours *struct {
		OpenNow     *bool    `json:"open_now"`
		WeekdayText []string `json:"weekday_text"`
	} `json:"opening_hours"`
	Photos []struct {
		PhotoReference string `json:"photo_reference"`
	} `json:"photos"`
}

var genericTypes = map[string]bool{
	"point_of_interest": true,
	"establishment":     true,
	"food":              true,
}

func mapPlace(p place, requestedType, region string) domain.Venue {
	v := domain.Venue{
		ID:          p.PlaceID,
		Name:        p.Name,
		Category:    category(p.Types, requestedType),
		Rating:      p.Rating,
		ReviewCount: p.UserRatingsTotal,
		PriceLevel:  p.PriceLevel,
		Address:     firstNonEmpty(p.FormattedAddress, p.Vicinity),
		Location:    domain.Coordinate{Lat: p.Geometry.Location.Lat, Lng: p.Geometry.Location.Lng},
		Phone:       shared.NormalizePhone(p.PhoneNumber, region),
	}
	if v.Rating != nil && *v.Rating == 0 {
		// the API reports 0 for "no ratings yet"
		v.Rating = nil
	}
	if p.Website != "" {
		w := p.Website
		v.Website = &w
	}
	for _, ph := range p.Photos {
		if ph.PhotoReference != "" {
			v.Photos = append(v.Photos, ph.PhotoReference)
		}
	}
	for _, t := range p.Types {
		if !genericTypes[t] {
			v.Features = append(v.Features, t)
		}
	}
	if p.OpeningHours != nil {
		v.Hours = p.OpeningHours.WeekdayText
		if p.OpeningHours.OpenNow != nil && *p.OpeningHours.OpenNow {
			v.Features = append(v.Features, "open_now")
		}
	}
	return v
}

// category prefers the searched type, then the first non-generic type.
func category(types []string, requested string) string {
	for _, t := range types {
		if requested != "" && t == requested {
			return t
		}
	}
	for _, t := range types {
		if !genericTypes[t] {
			return t
		}
	}
	if len(types) > 0 {
		return types[0]
	}
	return "place"
}

func firstNonEmpty(ss ...string) string {
	for _, s := range ss {
		if s != "" {
			return s
		}
	}
	return ""
}
