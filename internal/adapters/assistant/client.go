// internal/adapters/assistant/client.go
package assistant

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"strings"
	"time"

	"golang.org/x/time/rate"

	"midway/internal/adapters/observability"
	"midway/internal/adapters/retry"
	"midway/internal/domain"
)

// Client calls an external natural-language service that parses free-text
// preferences, analyses venues and scores venues against a profile.
// Callers treat failures as soft, so a call is retried at most once.
type Client struct {
	base string
	hc   *http.Client
	key  string
	rl   *rate.Limiter
}

const maxRetries = 1

func New(base, key string, rps int) (*Client, error) {
	if base == "" {
		return nil, fmt.Errorf("assistant base URL is required")
	}
	if rps <= 0 {
		rps = 5
	}
	return &Client{
		base: strings.TrimRight(base, "/"),
		hc:   &http.Client{Timeout: 30 * time.Second},
		key:  key,
		rl:   rate.NewLimiter(rate.Limit(rps), rps),
	}, nil
}

type parseRequest struct {
	Text string `json:"text"`
}

func (c *Client) Parse(ctx context.Context, text string) (domain.PreferenceProfile, error) {
	var out domain.PreferenceProfile
	if err := c.post(ctx, "parse", "/v1/preferences/parse", parseRequest{Text: text}, &out); err != nil {
		return domain.PreferenceProfile{}, err
	}
	// the service may normalise the text; keep what the user typed
	out.Query = strings.TrimSpace(text)
	return out, nil
}

type analyzeRequest struct {
	Venue domain.Venue `json:"venue"`
}

func (c *Client) Analyze(ctx context.Context, v domain.Venue) (domain.VenueAnalysis, error) {
	v.Analysis = nil
	var out domain.VenueAnalysis
	return out, c.post(ctx, "analyze", "/v1/venues/analyze", analyzeRequest{Venue: v}, &out)
}

type scoreRequest struct {
	Venues    []domain.Venue           `json:"venues"`
	Profile   domain.PreferenceProfile `json:"profile"`
	GroupSize int                      `json:"groupSize,omitempty"`
}

type scoreResponse struct {
	Results []domain.MatchResult `json:"results"`
}

func (c *Client) Score(ctx context.Context, venues []domain.Venue, p domain.PreferenceProfile, groupSize int) ([]domain.MatchResult, error) {
	var out scoreResponse
	if err := c.post(ctx, "score", "/v1/venues/score", scoreRequest{Venues: venues, Profile: p, GroupSize: groupSize}, &out); err != nil {
		return nil, err
	}
	for i := range out.Results {
		out.Results[i].Score = clamp(out.Results[i].Score, 0, 100)
	}
	return out.Results, nil
}

// post sends in as JSON and decodes the reply into out. A retryable status
// gets one more attempt after the server's Retry-After or a short backoff.
func (c *Client) post(ctx context.Context, endpoint, path string, in, out any) error {
	if err := c.rl.Wait(ctx); err != nil {
		return err
	}
	body, err := json.Marshal(in)
	if err != nil {
		return fmt.Errorf("assistant %s: marshal: %w", endpoint, err)
	}

	for attempt := 0; ; attempt++ {
		req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.base+path, bytes.NewReader(body))
		if err != nil {
			return err
		}
		req.Header.Set("Content-Type", "application/json")
		req.Header.Set("Accept", "application/json")
		if c.key != "" {
			req.Header.Set("Authorization", "Bearer "+c.key)
		}

		start := time.Now()
		resp, err := c.hc.Do(req)
		if err != nil {
			observability.ObserveExternal("assistant", endpoint, 0, time.Since(start))
			return fmt.Errorf("assistant %s: %v: %w", endpoint, err, domain.ErrUpstreamUnavailable)
		}
		observability.ObserveExternal("assistant", endpoint, resp.StatusCode, time.Since(start))

		if resp.StatusCode == http.StatusOK {
			err := json.NewDecoder(resp.Body).Decode(out)
			resp.Body.Close()
			if err != nil {
				return fmt.Errorf("assistant %s: decode: %w", endpoint, err)
			}
			return nil
		}

		if attempt < maxRetries && retry.Retryable(resp.StatusCode) {
			wait := retry.Wait(resp, attempt)
			resp.Body.Close()
			if retry.Sleep(ctx, wait) {
				continue
			}
			return ctx.Err()
		}
		b, _ := io.ReadAll(io.LimitReader(resp.Body, 4096))
		resp.Body.Close()
		return fmt.Errorf("assistant %s: status %d: %s: %w", endpoint, resp.StatusCode,
			strings.TrimSpace(string(b)), domain.ErrUpstreamUnavailable)
	}
}

func clamp(f, lo, hi float64) float64 {
	if f < lo {
		return lo
	}
	if f > hi {
		return hi
	}
	return f
}
