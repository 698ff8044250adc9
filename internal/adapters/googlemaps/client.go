// internal/adapters/googlemaps/client.go
package googlemaps

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"midway/internal/adapters/observability"
	"midway/internal/adapters/retry"
	"midway/internal/domain"
)

// Client talks to the Maps web services (Geocoding + Places nearby search).
type Client struct {
	base   string
	hc     *http.Client
	key    string
	rl     *rate.Limiter
	region string
}

func New(base, key string, rps int) (*Client, error) {
	if key == "" {
		return nil, fmt.Errorf("API key is required")
	}
	if rps <= 0 {
		rps = 10
	}
	return &Client{
		base:   strings.TrimRight(base, "/"),
		hc:     &http.Client{Timeout: 10 * time.Second},
		key:    key,
		rl:     rate.NewLimiter(rate.Limit(rps), rps),
		region: "US",
	}, nil
}

// WithPhoneRegion sets the region used to normalise national phone numbers.
func (c *Client) WithPhoneRegion(region string) *Client {
	if region != "" {
		c.region = region
	}
	return c
}

// ---- Public API ----

func (c *Client) Geocode(ctx context.Context, address string) (domain.Coordinate, error) {
	q := url.Values{}
	q.Set("address", address)
	var out geocodeResponse
	if err := c.get(ctx, "geocode", c.base+"/geocode/json", q, &out); err != nil {
		return domain.Coordinate{}, err
	}
	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", address, domain.ErrNotFound)
	case "INVALID_REQUEST":
		return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", address, domain.ErrInvalidInput)
	default:
		return domain.Coordinate{}, statusErr("geocode", out.Status, out.ErrorMessage)
	}
	if len(out.Results) == 0 {
		return domain.Coordinate{}, fmt.Errorf("geocode %q: %w", address, domain.ErrNotFound)
	}
	loc := out.Results[0].Geometry.Location
	return domain.Coordinate{Lat: loc.Lat, Lng: loc.Lng}, nil
}

func (c *Client) SearchNearby(ctx context.Context, center domain.Coordinate, radiusMeters int, placeType string) ([]domain.Venue, error) {
	q := url.Values{}
	q.Set("location", center.String())
	q.Set("radius", strconv.Itoa(radiusMeters))
	if placeType != "" {
		q.Set("type", placeType)
	}
	var out nearbyResponse
	if err := c.get(ctx, "nearbysearch", c.base+"/place/nearbysearch/json", q, &out); err != nil {
		return nil, err
	}
	switch out.Status {
	case "OK":
	case "ZERO_RESULTS":
		return []domain.Venue{}, nil
	default:
		return nil, statusErr("nearbysearch", out.Status, out.ErrorMessage)
	}

	now := time.Now().UTC()
	venues := make([]domain.Venue, 0, len(out.Results))
	for _, p := range out.Results {
		if p.PlaceID == "" || p.BusinessStatus == "CLOSED_PERMANENTLY" {
			continue
		}
		v := mapPlace(p, placeType, c.region)
		v.UpdatedAt = now
		venues = append(venues, v)
	}
	return venues, nil
}

// ---- Internals ----

// statusErr maps a non-OK API status. Quota and server-side statuses are
// retryable outages; REQUEST_DENIED usually means a bad key, still an outage
// from the caller's point of view.
func statusErr(endpoint, status, msg string) error {
	if msg != "" {
		return fmt.Errorf("%s: status %s (%s): %w", endpoint, status, msg, domain.ErrUpstreamUnavailable)
	}
	return fmt.Errorf("%s: status %s: %w", endpoint, status, domain.ErrUpstreamUnavailable)
}

// get performs a GET with client-side rate limiting, retries, and JSON decode into out.
// Retries on 429 and transient 5xx, honoring Retry-After when provided.
// Exhausted retries and transport failures wrap domain.ErrUpstreamUnavailable.
func (c *Client) get(ctx context.Context, endpoint, base string, q url.Values, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	q.Set("key", c.key)
	u := base + "?" + q.Encode()

	var lastErr error
	for i := 0; i < 4; i++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodGet, u, nil)
		if err != nil {
			return err
		}
		req.Header.Set("Accept", "application/json")
		req.Header.Set("User-Agent", "midway/1.0")

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("googlemaps", endpoint, 0, time.Since(start))
			if ctx.Err() != nil {
				return ctx.Err()
			}
			lastErr = fmt.Errorf("%s: %v: %w", endpoint, redact(err), domain.ErrUpstreamUnavailable)
			if i < 3 && retry.Sleep(ctx, retry.Backoff(i)) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
		observability.ObserveExternal("googlemaps", endpoint, resp.StatusCode, time.Since(start))

		switch resp.StatusCode {
		case http.StatusOK:
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("%s: decode: %v: %w", endpoint, err, domain.ErrUpstreamUnavailable)
			}
			return nil

		default:
			if !retry.Retryable(resp.StatusCode) {
				b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
				resp.Body.Close()
				return fmt.Errorf("%s: bad status %d: %s: %w", endpoint, resp.StatusCode,
					strings.TrimSpace(string(b)), domain.ErrUpstreamUnavailable)
			}
			wait := retry.Wait(resp, i)
			resp.Body.Close()
			lastErr = fmt.Errorf("%s: remote %d: %w", endpoint, resp.StatusCode, domain.ErrUpstreamUnavailable)
			if i < 3 && retry.Sleep(ctx, wait) {
				continue
			}
			if ctx.Err() != nil {
				return ctx.Err()
			}
			return lastErr
		}
	}
	return lastErr
}

// redact strips the query string (and so the API key) from url errors.
func redact(err error) error {
	var ue *url.Error
	if errors.As(err, &ue) {
		if i := strings.IndexByte(ue.URL, '?'); i >= 0 {
			return &url.Error{Op: ue.Op, URL: ue.URL[:i], Err: ue.Err}
		}
	}
	return err
}
