package retry_test

import (
	"context"
	"net/http"
	"testing"
	"time"

	"midway/internal/adapters/retry"
)

func respWith(h string) *http.Response {
	r := &http.Response{Header: http.Header{}}
	if h != "" {
		r.Header.Set("Retry-After", h)
	}
	return r
}

func TestAfter_SecondsAndDates(t *testing.T) {
	if d := retry.After(respWith("3")); d != 3*time.Second {
		t.Fatalf("seconds: got %v", d)
	}
	future := time.Now().Add(90 * time.Second).UTC().Format(http.TimeFormat)
	if d := retry.After(respWith(future)); d <= 60*time.Second || d > 90*time.Second {
		t.Fatalf("http-date: got %v", d)
	}
	past := time.Now().Add(-time.Hour).UTC().Format(http.TimeFormat)
	for _, h := range []string{"", "soon", "-4", past} {
		if d := retry.After(respWith(h)); d != 0 {
			t.Fatalf("%q: expected 0, got %v", h, d)
		}
	}
}

func TestBackoff_GrowsWithinJitter(t *testing.T) {
	for i := 0; i < 4; i++ {
		base := retry.BaseDelay << i
		for n := 0; n < 20; n++ {
			d := retry.Backoff(i)
			if d < base || d > base+base/2 {
				t.Fatalf("attempt %d: %v outside [%v, %v]", i, d, base, base+base/2)
			}
		}
	}
}

func TestWait_PrefersHeader(t *testing.T) {
	if d := retry.Wait(respWith("2"), 0); d != 2*time.Second {
		t.Fatalf("got %v", d)
	}
	if d := retry.Wait(respWith(""), 1); d < 2*retry.BaseDelay {
		t.Fatalf("fallback too short: %v", d)
	}
}

func TestSleep_StopsOnCancel(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	start := time.Now()
	if retry.Sleep(ctx, time.Minute) {
		t.Fatalf("expected false on cancelled context")
	}
	if time.Since(start) > time.Second {
		t.Fatalf("sleep ignored cancellation")
	}
	if retry.Sleep(ctx, 0) {
		t.Fatalf("zero wait on cancelled context should report false")
	}
	if !retry.Sleep(context.Background(), time.Millisecond) {
		t.Fatalf("expected true after full wait")
	}
}

func TestRetryable(t *testing.T) {
	for _, s := range []int{429, 500, 502, 503, 504} {
		if !retry.Retryable(s) {
			t.Fatalf("%d should be retryable", s)
		}
	}
	for _, s := range []int{200, 400, 403, 404} {
		if retry.Retryable(s) {
			t.Fatalf("%d should not be retryable", s)
		}
	}
}
