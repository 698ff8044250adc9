// Package retry holds the wait helpers shared by the outbound HTTP clients.
package retry

import (
	"context"
	crand "crypto/rand"
	"net/http"
	"strconv"
	"strings"
	"time"
)

// BaseDelay is the first backoff step; each later attempt doubles it.
const BaseDelay = 200 * time.Millisecond

// Sleep waits for d and reports false if ctx ends first.
func Sleep(ctx context.Context, d time.Duration) bool {
	if d <= 0 {
		return ctx.Err() == nil
	}
	t := time.NewTimer(d)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return false
	case <-t.C:
		return true
	}
}

// After reads a Retry-After header given in seconds or as an HTTP-date.
// Missing, malformed or past values yield 0.
func After(resp *http.Response) time.Duration {
	h := strings.TrimSpace(resp.Header.Get("Retry-After"))
	if h == "" {
		return 0
	}
	if secs, err := strconv.Atoi(h); err == nil {
		if secs < 0 {
			return 0
		}
		return time.Duration(secs) * time.Second
	}
	if at, err := http.ParseTime(h); err == nil {
		if d := time.Until(at); d > 0 {
			return d
		}
	}
	return 0
}

// Backoff returns BaseDelay<<attempt plus up to 50% jitter.
func Backoff(attempt int) time.Duration {
	if attempt < 0 {
		attempt = 0
	}
	base := BaseDelay << attempt
	var b [1]byte
	if _, err := crand.Read(b[:]); err != nil {
		return base
	}
	return base + time.Duration(float64(base)*float64(b[0])/510)
}

// Wait picks the server-provided delay when there is one, else Backoff.
func Wait(resp *http.Response, attempt int) time.Duration {
	if d := After(resp); d > 0 {
		return d
	}
	return Backoff(attempt)
}

// Retryable reports whether status is worth another attempt.
func Retryable(status int) bool {
	switch status {
	case http.StatusTooManyRequests, http.StatusInternalServerError,
		http.StatusBadGateway, http.StatusServiceUnavailable, http.StatusGatewayTimeout:
		return true
	}
	return false
}
