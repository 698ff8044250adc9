package app

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"midway/internal/adapters/observability"
	"midway/internal/domain"
	"midway/internal/geo"
)

type PlanInput struct {
	Locations       []string
	Filters         domain.VenueFilters
	PreferenceQuery string
}

type PlanService struct {
	repo     domain.PlanRepository
	venues   domain.VenueCache
	geocoder domain.Geocoder
	parser   domain.PreferenceParser
	cache    domain.Cache
	cacheTTL time.Duration
	now      func() time.Time
}

func NewPlanService(r domain.PlanRepository, v domain.VenueCache, g domain.Geocoder, p domain.PreferenceParser, c domain.Cache, ttl time.Duration) *PlanService {
	return &PlanService{
		repo: r, venues: v, geocoder: g, parser: p, cache: c, cacheTTL: ttl,
		now: func() time.Time { return time.Now().UTC() },
	}
}

// CreatePlan geocodes every location, computes the midpoint and persists the
// plan. Nothing is stored unless every location resolves.
func (s *PlanService) CreatePlan(ctx context.Context, in PlanInput) (domain.Plan, error) {
	locs := make([]string, 0, len(in.Locations))
	for i, l := range in.Locations {
		l = strings.TrimSpace(l)
		if l == "" {
			return domain.Plan{}, fmt.Errorf("%w: location %d is blank", domain.ErrInvalidInput, i+1)
		}
		locs = append(locs, l)
	}
	if len(locs) < domain.MinParticipants || len(locs) > domain.MaxParticipants {
		return domain.Plan{}, fmt.Errorf("%w: a plan needs %d to %d locations, got %d",
			domain.ErrInvalidInput, domain.MinParticipants, domain.MaxParticipants, len(locs))
	}
	if err := ValidateFilters(in.Filters); err != nil {
		return domain.Plan{}, err
	}

	coords := make([]domain.Coordinate, len(locs))
	g, gctx := errgroup.WithContext(ctx)
	for i, l := range locs {
		i, l := i, l
		g.Go(func() error {
			c, err := s.geocoder.Geocode(gctx, l)
			if err != nil {
				return fmt.Errorf("location %d (%q): %w", i+1, l, err)
			}
			coords[i] = c
			return nil
		})
	}
	if err := g.Wait(); err != nil {
		return domain.Plan{}, err
	}

	mid, err := geo.Midpoint(coords)
	if err != nil {
		return domain.Plan{}, err
	}

	now := s.now()
	p := domain.Plan{
		ID:             uuid.NewString(),
		Participants:   make([]domain.Participant, len(locs)),
		Midpoint:       &mid,
		SelectedVenues: []string{},
		Filters:        in.Filters,
		Preferences:    s.parsePreferences(ctx, in.PreferenceQuery),
		CreatedAt:      now,
		UpdatedAt:      now,
	}
	for i, l := range locs {
		c := coords[i]
		p.Participants[i] = domain.Participant{ID: uuid.NewString(), Location: l, Coord: &c}
	}
	if err := s.repo.CreatePlan(ctx, p); err != nil {
		return domain.Plan{}, err
	}
	log.Info().Str("plan", p.ID).Int("participants", len(locs)).Str("midpoint", mid.String()).Msg("plan created")
	return p, nil
}

func (s *PlanService) GetPlan(ctx context.Context, id string) (domain.Plan, error) {
	key := planKey(id)
	var p domain.Plan
	if s.cache != nil {
		if ok, _ := s.cache.Get(ctx, key, &p); ok {
			return p, nil
		}
	}
	p, err := s.repo.GetPlan(ctx, id)
	if err != nil {
		return domain.Plan{}, err
	}
	if s.cache != nil {
		_ = s.cache.Set(ctx, key, p, int(s.cacheTTL.Seconds()))
	}
	return p, nil
}

// AddVenue puts a cached venue on the itinerary. Adding it twice is a no-op.
func (s *PlanService) AddVenue(ctx context.Context, planID, venueID string) (domain.Plan, error) {
	found, err := s.venues.GetVenues(ctx, []string{venueID})
	if err != nil {
		return domain.Plan{}, err
	}
	if len(found) == 0 {
		return domain.Plan{}, fmt.Errorf("venue %s: %w", venueID, domain.ErrNotFound)
	}
	return s.update(ctx, planID, func(p *domain.Plan) error {
		if !p.HasVenue(venueID) {
			p.SelectedVenues = append(p.SelectedVenues, venueID)
		}
		return nil
	})
}

// RemoveVenue drops a venue from the itinerary; absent venues are ignored.
func (s *PlanService) RemoveVenue(ctx context.Context, planID, venueID string) (domain.Plan, error) {
	return s.update(ctx, planID, func(p *domain.Plan) error {
		kept := p.SelectedVenues[:0]
		for _, id := range p.SelectedVenues {
			if id != venueID {
				kept = append(kept, id)
			}
		}
		p.SelectedVenues = kept
		return nil
	})
}

// UpdateFilters replaces the plan's filters. A non-nil query replaces the
// preference text; the profile is re-derived only when the text changed.
func (s *PlanService) UpdateFilters(ctx context.Context, planID string, f domain.VenueFilters, query *string) (domain.Plan, error) {
	if err := ValidateFilters(f); err != nil {
		return domain.Plan{}, err
	}

	var profile *domain.PreferenceProfile
	changed := false
	if query != nil {
		cur, err := s.GetPlan(ctx, planID)
		if err != nil {
			return domain.Plan{}, err
		}
		q := strings.TrimSpace(*query)
		if old := cur.Preferences; old == nil || old.Query != q {
			// parse outside the row lock, it may call a remote model
			profile = s.parsePreferences(ctx, q)
			changed = true
		}
	}

	return s.update(ctx, planID, func(p *domain.Plan) error {
		p.Filters = f
		if changed {
			p.Preferences = profile
		}
		return nil
	})
}

// Itinerary resolves the selected venues in selection order with travel estimates.
func (s *PlanService) Itinerary(ctx context.Context, planID string) ([]domain.RankedVenue, error) {
	p, err := s.GetPlan(ctx, planID)
	if err != nil {
		return nil, err
	}
	vs, err := s.venues.GetVenues(ctx, p.SelectedVenues)
	if err != nil {
		return nil, err
	}
	return attachTravel(vs, p.Participants), nil
}

func (s *PlanService) update(ctx context.Context, planID string, fn func(*domain.Plan) error) (domain.Plan, error) {
	p, err := s.repo.UpdatePlan(ctx, planID, fn)
	if err != nil {
		return domain.Plan{}, err
	}
	s.invalidatePlan(ctx, planID)
	return p, nil
}

// parsePreferences is best-effort: a failing parser still yields a profile
// carrying the raw query with no structured hints.
func (s *PlanService) parsePreferences(ctx context.Context, query string) *domain.PreferenceProfile {
	query = strings.TrimSpace(query)
	if query == "" {
		return nil
	}
	if s.parser == nil {
		return &domain.PreferenceProfile{Query: query}
	}
	prof, err := s.parser.Parse(ctx, query)
	if err != nil {
		observability.ObserveSoftFailure("parse")
		lvl := log.Warn()
		if errors.Is(err, context.Canceled) {
			lvl = log.Debug()
		}
		lvl.Err(err).Msg("preference parsing failed, using empty hints")
		return &domain.PreferenceProfile{Query: query}
	}
	prof.Query = query
	return &prof
}

func (s *PlanService) invalidatePlan(ctx context.Context, id string) {
	if s.cache != nil {
		_ = s.cache.Del(ctx, planKey(id))
	}
}

func planKey(id string) string { return "plan:" + id }
