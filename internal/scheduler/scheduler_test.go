package scheduler

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
	"go.uber.org/zap/zaptest/observer"

	"github.com/JakeFAU/sale-monitor/internal/monitor"
)

type fakeRunner struct {
	mu   sync.Mutex
	reqs []monitor.Request
	out  monitor.Outcome
	ran  chan struct{}
}

func newFakeRunner(out monitor.Outcome) *fakeRunner {
	return &fakeRunner{out: out, ran: make(chan struct{}, 16)}
}

func (f *fakeRunner) Run(_ context.Context, req monitor.Request) monitor.Outcome {
	f.mu.Lock()
	f.reqs = append(f.reqs, req)
	f.mu.Unlock()
	f.ran <- struct{}{}
	return f.out
}

func (f *fakeRunner) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.reqs)
}

func okOutcome() monitor.Outcome {
	return monitor.Outcome{
		RunID:          "run-1",
		Request:        monitor.Request{URL: "https://www.dwr.com", Trigger: monitor.TriggerScheduled},
		Timestamp:      time.Date(2024, time.March, 5, 9, 0, 0, 0, time.UTC),
		Classification: monitor.Classification{Description: "None found", HasSale: false},
		EmailSent:      true,
	}
}

func TestTickIssuesScheduledRequestWithoutURL(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner(okOutcome())
	s := New(runner, time.Hour, false, zap.NewNop())

	report := s.Tick(context.Background())

	require.True(t, report.Success)
	require.Equal(t, "https://www.dwr.com", report.URL)
	require.Equal(t, []monitor.Request{{Trigger: monitor.TriggerScheduled}}, runner.reqs)
}

func TestTickLogsStatusReport(t *testing.T) {
	t.Parallel()

	core, logs := observer.New(zap.InfoLevel)
	failed := monitor.Outcome{Err: monitor.Errorf(monitor.KindNavigation, "timeout after 45s")}
	s := New(newFakeRunner(failed), time.Hour, false, zap.New(core))

	report := s.Tick(context.Background())
	require.False(t, report.Success)

	entries := logs.FilterMessage("scheduled run failed").All()
	require.Len(t, entries, 1)
	payload, ok := entries[0].ContextMap()["report"].(string)
	require.True(t, ok)
	require.JSONEq(t, `{"success":false,"error":"timeout after 45s"}`, payload)
}

func TestStartRunsOnStartAndStopsOnCancel(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner(okOutcome())
	s := New(runner, time.Hour, true, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan struct{})
	go func() {
		s.Start(ctx)
		close(done)
	}()

	select {
	case <-runner.ran:
	case <-time.After(2 * time.Second):
		t.Fatal("run_on_start did not trigger a run")
	}
	cancel()

	select {
	case <-done:
	case <-time.After(2 * time.Second):
		t.Fatal("scheduler did not stop after cancel")
	}
	require.Equal(t, 1, runner.count())
}

func TestStartRunsOnEveryTick(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner(okOutcome())
	s := New(runner, 10*time.Millisecond, false, zap.NewNop())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go s.Start(ctx)

	for i := 0; i < 3; i++ {
		select {
		case <-runner.ran:
		case <-time.After(2 * time.Second):
			t.Fatalf("tick %d did not trigger a run", i+1)
		}
	}
}

func TestStartWithoutRunOnStartWaitsForTick(t *testing.T) {
	t.Parallel()

	runner := newFakeRunner(okOutcome())
	s := New(runner, time.Hour, false, zap.NewNop())

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Millisecond)
	defer cancel()
	s.Start(ctx)

	require.Zero(t, runner.count())
	require.True(t, errors.Is(ctx.Err(), context.DeadlineExceeded))
}
