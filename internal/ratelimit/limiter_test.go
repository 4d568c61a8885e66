package ratelimit

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"
)

func TestLimiter_Wait(t *testing.T) {
	t.Parallel()

	// 10 RPS with burst 1 means one token every 100ms after the first.
	l := New(Config{
		DefaultRPS:   10,
		DefaultBurst: 1,
	})
	ctx := context.Background()

	start := time.Now()
	if err := l.Wait(ctx, "https://test.com"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Logf("warning: first wait took %v", time.Since(start))
	}

	start = time.Now()
	if err := l.Wait(ctx, "https://test.com/sale"); err != nil {
		t.Fatal(err)
	}
	if dur := time.Since(start); dur < 80*time.Millisecond {
		t.Errorf("expected wait ~100ms, got %v", dur)
	}
}

func TestLimiter_DifferentHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{
		DefaultRPS:   1,
		DefaultBurst: 1,
	})
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/1"); err != nil {
		t.Fatal(err)
	}

	// Host B should not be blocked by A.
	start := time.Now()
	if err := l.Wait(ctx, "https://b.com/1"); err != nil {
		t.Fatal(err)
	}
	if time.Since(start) > 10*time.Millisecond {
		t.Errorf("host B blocked unexpectedly")
	}
}

func TestLimiter_DisabledNeverBlocks(t *testing.T) {
	t.Parallel()

	l := New(Config{})
	ctx := context.Background()

	start := time.Now()
	for i := 0; i < 50; i++ {
		if err := l.Wait(ctx, "https://www.dwr.com"); err != nil {
			t.Fatal(err)
		}
	}
	if time.Since(start) > 50*time.Millisecond {
		t.Errorf("disabled limiter blocked for %v", time.Since(start))
	}
}

func TestLimiter_DisabledKeepsNoHosts(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0})
	ctx := context.Background()
	for i := 0; i < 10000; i++ {
		if err := l.Wait(ctx, fmt.Sprintf("https://host-%d.example.com/", i)); err != nil {
			t.Fatal(err)
		}
	}
	if n := l.hosts(); n != 0 {
		t.Errorf("disabled limiter retained %d hosts", n)
	}
}

func TestLimiter_HostTableIsBounded(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 1000, DefaultBurst: 10, MaxHosts: 3})
	ctx := context.Background()
	for i := 0; i < 50; i++ {
		if err := l.Wait(ctx, fmt.Sprintf("https://host-%d.example.com/", i)); err != nil {
			t.Fatal(err)
		}
	}
	if n := l.hosts(); n > 3 {
		t.Errorf("expected at most 3 hosts, got %d", n)
	}
}

func TestLimiter_IdleHostsExpire(t *testing.T) {
	t.Parallel()

	now := time.Date(2024, time.March, 5, 12, 0, 0, 0, time.UTC)
	l := New(Config{DefaultRPS: 1000, DefaultBurst: 10, MaxHosts: 2, IdleTTL: time.Minute})
	l.now = func() time.Time { return now }
	ctx := context.Background()

	if err := l.Wait(ctx, "https://a.com/"); err != nil {
		t.Fatal(err)
	}
	if err := l.Wait(ctx, "https://b.com/"); err != nil {
		t.Fatal(err)
	}

	now = now.Add(2 * time.Minute)
	if err := l.Wait(ctx, "https://c.com/"); err != nil {
		t.Fatal(err)
	}
	if n := l.hosts(); n != 1 {
		t.Errorf("expected idle hosts to be dropped, got %d hosts", n)
	}
}

func TestConfigEnabled(t *testing.T) {
	t.Parallel()

	if (Config{}).Enabled() {
		t.Error("zero config should be disabled")
	}
	if !(Config{DefaultRPS: 0.5}).Enabled() {
		t.Error("positive RPS should be enabled")
	}
}

func TestLimiter_HonorsContext(t *testing.T) {
	t.Parallel()

	l := New(Config{DefaultRPS: 0.01, DefaultBurst: 1})
	if err := l.Wait(context.Background(), "https://slow.example.com"); err != nil {
		t.Fatal(err)
	}

	ctx, cancel := context.WithTimeout(context.Background(), 20*time.Millisecond)
	defer cancel()
	err := l.Wait(ctx, "https://slow.example.com")
	if err == nil {
		t.Fatal("expected error when the next token is beyond the deadline")
	}
	if errors.Is(err, context.Canceled) {
		t.Fatalf("unexpected cancellation error: %v", err)
	}
}

func TestHostOf(t *testing.T) {
	t.Parallel()

	cases := map[string]string{
		"https://WWW.DWR.com/sale": "www.dwr.com",
		"http://localhost:8080/x":  "localhost",
		"not a url":                "unknown",
		"":                         "unknown",
	}
	for in, want := range cases {
		if got := hostOf(in); got != want {
			t.Errorf("hostOf(%q) = %q, want %q", in, got, want)
		}
	}
}
