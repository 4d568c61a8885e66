package metrics

import (
	"testing"
	"time"

	"github.com/prometheus/client_golang/prometheus/testutil"
)

func TestSanitizeSite(t *testing.T) {
	testCases := []struct {
		name     string
		input    string
		expected string
	}{
		{"standard http", "http://example.com/path", "example.com"},
		{"standard https", "https://WWW.DWR.com/sale", "www.dwr.com"},
		{"no scheme", "example.com/path", "example.com"},
		{"host with port", "example.com:8080", "example.com"},
		{"ip address", "192.168.1.1", "192.168.1.1"},
		{"invalid url", "http://%", "unknown"},
		{"empty string", "", "unknown"},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			if got := SanitizeSite(tc.input); got != tc.expected {
				t.Errorf("SanitizeSite(%q) = %q; want %q", tc.input, got, tc.expected)
			}
		})
	}
}

func TestInitIsIdempotent(t *testing.T) {
	Init()
	Init()

	if runsTotal == nil || stepDurationSeconds == nil || emailsTotal == nil ||
		salesDetectedTotal == nil || httpRequestsTotal == nil || httpRequestDurationSeconds == nil {
		t.Fatal("Init() did not initialize metrics collectors")
	}
}

func TestObserveRunAndEmail(t *testing.T) {
	Init()

	before := testutil.ToFloat64(runsTotal.WithLabelValues("scheduled", StatusSuccess))
	finished := time.Unix(1714564800, 0)
	ObserveRun("scheduled", StatusSuccess, finished)
	if got := testutil.ToFloat64(runsTotal.WithLabelValues("scheduled", StatusSuccess)); got != before+1 {
		t.Errorf("expected runs counter to increase by 1, got %f -> %f", before, got)
	}
	if got := testutil.ToFloat64(lastRunTimestampSeconds.WithLabelValues("scheduled")); got != 1714564800 {
		t.Errorf("expected last run timestamp to be recorded, got %f", got)
	}

	sentBefore := testutil.ToFloat64(emailsTotal.WithLabelValues(EmailSent))
	failedBefore := testutil.ToFloat64(emailsTotal.WithLabelValues(EmailFailed))
	ObserveEmail(true)
	ObserveEmail(false)
	ObserveEmail(false)
	if got := testutil.ToFloat64(emailsTotal.WithLabelValues(EmailSent)); got != sentBefore+1 {
		t.Errorf("expected one sent email, got %f", got-sentBefore)
	}
	if got := testutil.ToFloat64(emailsTotal.WithLabelValues(EmailFailed)); got != failedBefore+2 {
		t.Errorf("expected two failed emails, got %f", got-failedBefore)
	}
}

func TestObserveSaleIsKeyedByTrigger(t *testing.T) {
	Init()

	before := testutil.ToFloat64(salesDetectedTotal.WithLabelValues("interactive"))
	ObserveSale("interactive")
	if got := testutil.ToFloat64(salesDetectedTotal.WithLabelValues("interactive")); got != before+1 {
		t.Errorf("expected sale counter to increase, got %f -> %f", before, got)
	}
	if n := testutil.CollectAndCount(salesDetectedTotal); n > 2 {
		t.Errorf("expected at most one series per trigger, got %d", n)
	}
}

func TestObserveStepAndScreenshot(t *testing.T) {
	Init()

	ObserveStep("render", 1500*time.Millisecond)
	ObserveScreenshot(120 << 10)
	if n := testutil.CollectAndCount(stepDurationSeconds); n == 0 {
		t.Error("expected step histogram to have series")
	}
	if n := testutil.CollectAndCount(screenshotBytes); n != 1 {
		t.Errorf("expected one screenshot histogram, got %d", n)
	}
}

func TestObserveRateLimitDelay(t *testing.T) {
	Init()

	ObserveRateLimitDelay(250 * time.Millisecond)
	if n := testutil.CollectAndCount(rateLimitDelaySeconds, "salemonitor_rate_limit_delay_seconds"); n != 1 {
		t.Errorf("expected one unlabeled rate limit histogram, got %d", n)
	}
}

// Fuzz test for SanitizeSite.
func FuzzSanitizeSite(f *testing.F) {
	testcases := []string{"http://example.com", "https://www.dwr.com", "ftp://example.com"}
	for _, tc := range testcases {
		f.Add(tc)
	}
	f.Fuzz(func(t *testing.T, orig string) {
		sanitized := SanitizeSite(orig)
		if sanitized == "" {
			t.Errorf("SanitizeSite(%q) returned an empty string", orig)
		}
	})
}
