// Package metrics exposes Prometheus collectors for the sale monitor.
package metrics

import (
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Run statuses used alongside error kinds in the runs counter.
const (
	StatusSuccess = "success"
)

// Email results.
const (
	EmailSent   = "sent"
	EmailFailed = "failed"
)

var (
	runsTotal                  *prometheus.CounterVec
	stepDurationSeconds        *prometheus.HistogramVec
	emailsTotal                *prometheus.CounterVec
	salesDetectedTotal         *prometheus.CounterVec
	screenshotBytes            prometheus.Histogram
	lastRunTimestampSeconds    *prometheus.GaugeVec
	rateLimitDelaySeconds      prometheus.Histogram
	httpRequestsTotal          *prometheus.CounterVec
	httpRequestDurationSeconds *prometheus.HistogramVec

	once sync.Once
)

// Init initializes the Prometheus metrics collectors.
// It is safe to call this function multiple times.
func Init() {
	once.Do(func() {
		runsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salemonitor_runs_total",
				Help: "Total pipeline runs, labeled by trigger and status (success or error kind).",
			},
			[]string{"trigger", "status"},
		)

		stepDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "salemonitor_step_duration_seconds",
				Help:    "Histogram of pipeline step latencies, labeled by step.",
				Buckets: []float64{0.1, 0.25, 0.5, 1, 2, 5, 10, 20, 45, 90},
			},
			[]string{"step"},
		)

		emailsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salemonitor_emails_total",
				Help: "Total report emails attempted, labeled by result.",
			},
			[]string{"result"},
		)

		salesDetectedTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "salemonitor_sales_detected_total",
				Help: "Total runs whose screenshot was classified as showing a sale, labeled by trigger.",
			},
			[]string{"trigger"},
		)

		screenshotBytes = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "salemonitor_screenshot_bytes",
				Help:    "Size of captured screenshots.",
				Buckets: prometheus.ExponentialBuckets(16<<10, 2, 8),
			},
		)

		lastRunTimestampSeconds = promauto.NewGaugeVec(
			prometheus.GaugeOpts{
				Name: "salemonitor_last_run_timestamp_seconds",
				Help: "Unix time of the last completed run, labeled by trigger.",
			},
			[]string{"trigger"},
		)

		rateLimitDelaySeconds = promauto.NewHistogram(
			prometheus.HistogramOpts{
				Name:    "salemonitor_rate_limit_delay_seconds",
				Help:    "Time spent waiting for the per-host limiter before rendering.",
				Buckets: []float64{0.01, 0.05, 0.1, 0.5, 1, 5, 10, 30},
			},
		)

		httpRequestsTotal = promauto.NewCounterVec(
			prometheus.CounterOpts{
				Name: "http_requests_total",
				Help: "Total number of HTTP requests, labeled by method and code.",
			},
			[]string{"method", "code"},
		)

		httpRequestDurationSeconds = promauto.NewHistogramVec(
			prometheus.HistogramOpts{
				Name:    "http_request_duration_seconds",
				Help:    "Histogram of HTTP request latencies, labeled by method and route.",
				Buckets: []float64{0.05, 0.1, 0.25, 0.5, 1, 2, 5, 10, 30, 60},
			},
			[]string{"method", "route"},
		)
	})
}

// SanitizeSite sanitizes a URL to extract a lowercase hostname.
// It returns "unknown" if the URL is invalid.
func SanitizeSite(rawURL string) string {
	if !strings.HasPrefix(rawURL, "http") {
		rawURL = "http://" + rawURL
	}
	u, err := url.Parse(rawURL)
	if err != nil || u.Hostname() == "" {
		return "unknown"
	}
	return strings.ToLower(u.Hostname())
}

// Handler returns an http.Handler for exposing Prometheus metrics.
func Handler() http.Handler {
	return promhttp.Handler()
}

// ObserveRun records a finished run.
func ObserveRun(trigger, status string, finished time.Time) {
	runsTotal.WithLabelValues(trigger, status).Inc()
	lastRunTimestampSeconds.WithLabelValues(trigger).Set(float64(finished.Unix()))
}

// ObserveStep records how long a pipeline step took.
func ObserveStep(step string, duration time.Duration) {
	stepDurationSeconds.WithLabelValues(step).Observe(duration.Seconds())
}

// ObserveEmail records a notification attempt.
func ObserveEmail(sent bool) {
	result := EmailFailed
	if sent {
		result = EmailSent
	}
	emailsTotal.WithLabelValues(result).Inc()
}

// ObserveSale records a positive classification. Interactive callers choose
// the URL, so the series is keyed by trigger rather than host.
func ObserveSale(trigger string) {
	salesDetectedTotal.WithLabelValues(trigger).Inc()
}

// ObserveScreenshot records the size of a captured image.
func ObserveScreenshot(size int) {
	screenshotBytes.Observe(float64(size))
}

// ObserveRateLimitDelay records how long a render waited for its host's limiter.
func ObserveRateLimitDelay(delay time.Duration) {
	rateLimitDelaySeconds.Observe(delay.Seconds())
}

// ObserveHTTPRequest increments the HTTP request metrics.
func ObserveHTTPRequest(method, route string, code int, duration time.Duration) {
	httpRequestsTotal.WithLabelValues(method, strconv.Itoa(code)).Inc()
	httpRequestDurationSeconds.WithLabelValues(method, route).Observe(duration.Seconds())
}
