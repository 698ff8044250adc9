// internal/adapters/http_server/handlers.go
package httpserver

import (
	"crypto/sha1"
	"encoding/hex"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog/log"

	"midway/internal/app"
	"midway/internal/domain"
	"midway/internal/geo"
)

// maxBodyBytes bounds JSON request bodies.
const maxBodyBytes = 64 << 10

type Handlers struct {
	Plans  *app.PlanService
	Venues *app.VenueService
}

type problem struct {
	Type   string `json:"type"`
	Title  string `json:"title"`
	Status int    `json:"status"`
	Detail string `json:"detail,omitempty"`
}

func (s *Server) MountHandlers(h *Handlers) {
	s.mux.Get("/healthz", func(w http.ResponseWriter, r *http.Request) { w.WriteHeader(200); _, _ = w.Write([]byte("ok")) })
	s.mux.Get("/v1/midpoint", h.midpoint)
	s.mux.Get("/v1/venues", h.listVenues)
	s.mux.Route("/v1/plans", func(r chi.Router) {
		r.Post("/", h.createPlan)
		r.Get("/{id}", h.getPlan)
		r.Put("/{id}/filters", h.updateFilters)
		r.Get("/{id}/venues", h.searchVenues)
		r.Get("/{id}/itinerary", h.itinerary)
		r.Put("/{id}/itinerary/{venueID}", h.addVenue)
		r.Delete("/{id}/itinerary/{venueID}", h.removeVenue)
	})
}

func writeProblem(w http.ResponseWriter, status int, title, detail string) {
	w.Header().Set("Content-Type", "application/problem+json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(problem{Type: "about:blank", Title: title, Status: status, Detail: detail}); err != nil {
		log.Error().Err(err).Msg("write JSON problem response failed")
	}
}

// writeError maps domain errors onto problem responses.
func writeError(w http.ResponseWriter, r *http.Request, err error) {
	switch {
	case errors.Is(err, domain.ErrInvalidInput):
		writeProblem(w, http.StatusBadRequest, "Invalid Input", err.Error())
	case errors.Is(err, domain.ErrNotFound):
		writeProblem(w, http.StatusNotFound, "Not Found", err.Error())
	case errors.Is(err, domain.ErrPreconditionFailed):
		writeProblem(w, http.StatusPreconditionFailed, "Precondition Failed", err.Error())
	case errors.Is(err, domain.ErrUpstreamUnavailable):
		w.Header().Set("Retry-After", "5")
		writeProblem(w, http.StatusServiceUnavailable, "Upstream Unavailable", "a location or places provider is unavailable, try again shortly")
		log.Warn().Err(err).Str("path", r.URL.Path).Msg("upstream unavailable")
	default:
		if r.Context().Err() != nil {
			log.Debug().Err(err).Str("path", r.URL.Path).Msg("request abandoned")
		} else {
			log.Error().Err(err).Str("path", r.URL.Path).Msg("unhandled error")
		}
		writeProblem(w, http.StatusInternalServerError, "Internal Error", "")
	}
}

// calcETagAndBody marshals once and hashes once, returning both ETag and body.
func calcETagAndBody(v any) (string, []byte) {
	body, err := json.Marshal(v)
	if err != nil {
		log.Error().Err(err).Msg("failed to marshal object for ETag/body")
		return "", nil
	}
	sum := sha1.Sum(body)
	etag := `W/"` + hex.EncodeToString(sum[:]) + `"`
	return etag, body
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		log.Error().Err(err).Msg("write JSON response failed")
	}
}

// writeCached writes v with a weak ETag, answering 304 when the client has it.
func writeCached(w http.ResponseWriter, r *http.Request, v any) {
	etag, body := calcETagAndBody(v)
	if inm := r.Header.Get("If-None-Match"); inm != "" && inm == etag {
		w.Header().Set("ETag", etag)
		w.WriteHeader(http.StatusNotModified)
		return
	}
	w.Header().Set("ETag", etag)
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	if _, err := w.Write(body); err != nil {
		log.Error().Err(err).Str("path", r.URL.Path).Msg("failed to write body")
	}
}

func decodeBody(w http.ResponseWriter, r *http.Request, dst any) bool {
	dec := json.NewDecoder(http.MaxBytesReader(w, r.Body, maxBodyBytes))
	dec.DisallowUnknownFields()
	if err := dec.Decode(dst); err != nil {
		writeProblem(w, http.StatusBadRequest, "Invalid Body", err.Error())
		return false
	}
	return true
}

// ---- request / response shapes ----

type filtersBody struct {
	Type        string   `json:"type"`
	Radius      int      `json:"radius"`
	MinRating   *float64 `json:"minRating"`
	PriceLevels []int    `json:"priceLevels"`
}

func (f *filtersBody) toDomain() domain.VenueFilters {
	if f == nil {
		return domain.VenueFilters{}
	}
	return domain.VenueFilters{
		Type:         strings.ToLower(strings.TrimSpace(f.Type)),
		RadiusMeters: f.Radius,
		MinRating:    f.MinRating,
		PriceLevels:  f.PriceLevels,
	}
}

type createPlanBody struct {
	Locations   []string     `json:"locations"`
	Filters     *filtersBody `json:"filters"`
	Preferences string       `json:"preferences"`
}

type updateFiltersBody struct {
	filtersBody
	Preferences *string `json:"preferences"`
}

// planResponse adds each participant's distance to the midpoint.
type planResponse struct {
	domain.Plan
	Spread []domain.TravelEstimate `json:"spread"`
}

func toPlanResponse(p domain.Plan) planResponse {
	out := planResponse{Plan: p, Spread: []domain.TravelEstimate{}}
	if p.Midpoint == nil {
		return out
	}
	for _, pt := range p.Participants {
		if pt.Coord != nil {
			out.Spread = append(out.Spread, geo.Estimate(pt.ID, *pt.Coord, *p.Midpoint))
		}
	}
	return out
}

// ---- plans ----

func (h *Handlers) createPlan(w http.ResponseWriter, r *http.Request) {
	var body createPlanBody
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := h.Plans.CreatePlan(r.Context(), app.PlanInput{
		Locations:       body.Locations,
		Filters:         body.Filters.toDomain(),
		PreferenceQuery: body.Preferences,
	})
	if err != nil {
		writeError(w, r, err)
		return
	}
	w.Header().Set("Location", "/v1/plans/"+p.ID)
	writeJSON(w, http.StatusCreated, toPlanResponse(p))
}

func (h *Handlers) getPlan(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.GetPlan(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, toPlanResponse(p))
}

func (h *Handlers) updateFilters(w http.ResponseWriter, r *http.Request) {
	var body updateFiltersBody
	if !decodeBody(w, r, &body) {
		return
	}
	p, err := h.Plans.UpdateFilters(r.Context(), chi.URLParam(r, "id"), body.filtersBody.toDomain(), body.Preferences)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

func (h *Handlers) itinerary(w http.ResponseWriter, r *http.Request) {
	items, err := h.Plans.Itinerary(r.Context(), chi.URLParam(r, "id"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"items": items})
}

func (h *Handlers) addVenue(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.AddVenue(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "venueID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

func (h *Handlers) removeVenue(w http.ResponseWriter, r *http.Request) {
	p, err := h.Plans.RemoveVenue(r.Context(), chi.URLParam(r, "id"), chi.URLParam(r, "venueID"))
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, toPlanResponse(p))
}

// ---- venues ----

func (h *Handlers) searchVenues(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	req := app.SearchRequest{PlanID: chi.URLParam(r, "id"), Type: q.Get("type")}

	if s := q.Get("radius"); s != "" {
		n, err := strconv.Atoi(s)
		if err != nil || n <= 0 {
			writeProblem(w, http.StatusBadRequest, "Invalid radius", "radius must be a positive integer in meters")
			return
		}
		req.RadiusMeters = n
	}
	if s := q.Get("minRating"); s != "" {
		f, err := strconv.ParseFloat(s, 64)
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid minRating", "minRating must be a number between 0 and 5")
			return
		}
		req.MinRating = &f
	}
	// an explicit empty list (price= or price=,) clears the plan's price filter
	if _, ok := q["price"]; ok {
		levels, err := parseInts(q.Get("price"))
		if err != nil {
			writeProblem(w, http.StatusBadRequest, "Invalid price", "price must be a comma separated list of levels 0-4")
			return
		}
		req.PriceLevels = levels
	}

	res, err := h.Venues.Search(r.Context(), req)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, res)
}

func (h *Handlers) listVenues(w http.ResponseWriter, r *http.Request) {
	var ids []string
	for _, id := range strings.Split(r.URL.Query().Get("ids"), ",") {
		if id = strings.TrimSpace(id); id != "" {
			ids = append(ids, id)
		}
	}
	if len(ids) == 0 || len(ids) > 100 {
		writeProblem(w, http.StatusBadRequest, "Invalid ids", "ids must list between 1 and 100 venue ids")
		return
	}
	vs, err := h.Venues.Venues(r.Context(), ids)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeCached(w, r, map[string]any{"items": vs})
}

// midpoint is a stateless helper over raw coordinates. Pairs are separated
// by '|' (points=lat,lng|lat,lng) or given as repeated points parameters.
func (h *Handlers) midpoint(w http.ResponseWriter, r *http.Request) {
	var coords []domain.Coordinate
	for _, v := range r.URL.Query()["points"] {
		for _, pair := range strings.Split(v, "|") {
			if strings.TrimSpace(pair) == "" {
				continue
			}
			c, err := parseCoordinate(pair)
			if err != nil {
				writeProblem(w, http.StatusBadRequest, "Invalid points", err.Error())
				return
			}
			coords = append(coords, c)
		}
	}
	if len(coords) == 0 || len(coords) > domain.MaxParticipants {
		writeProblem(w, http.StatusBadRequest, "Invalid points",
			fmt.Sprintf("points must hold between 1 and %d lat,lng pairs", domain.MaxParticipants))
		return
	}
	mid, err := geo.Midpoint(coords)
	if err != nil {
		writeError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{
		"midpoint":  mid,
		"distances": geo.DistanceMatrix(coords),
	})
}

func parseCoordinate(s string) (domain.Coordinate, error) {
	parts := strings.Split(s, ",")
	if len(parts) != 2 {
		return domain.Coordinate{}, fmt.Errorf("%q is not a lat,lng pair", s)
	}
	lat, err1 := strconv.ParseFloat(strings.TrimSpace(parts[0]), 64)
	lng, err2 := strconv.ParseFloat(strings.TrimSpace(parts[1]), 64)
	if err1 != nil || err2 != nil {
		return domain.Coordinate{}, fmt.Errorf("%q is not a lat,lng pair", s)
	}
	c := domain.Coordinate{Lat: lat, Lng: lng}
	if err := c.Validate(); err != nil {
		return domain.Coordinate{}, err
	}
	return c, nil
}

func parseInts(s string) ([]int, error) {
	out := []int{}
	for _, p := range strings.Split(s, ",") {
		p = strings.TrimSpace(p)
		if p == "" {
			continue
		}
		n, err := strconv.Atoi(p)
		if err != nil {
			return nil, err
		}
		out = append(out, n)
	}
	return out, nil
}
