package scheduler

import (
	"context"
	"io"
	"log/slog"
	"sync/atomic"
	"testing"
	"time"

	"sitewatch/internal/domain"
)

func discardLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func schedSite(id int64) domain.Site {
	return domain.Site{ID: id, Name: "docs", URL: "https://example.com"}
}

func TestPeriodicProbes(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	s := New(func(context.Context, domain.Site) { count.Add(1) }, false, discardLogger())
	s.Start(context.Background())
	defer s.Stop()

	s.Register(schedSite(1), 50*time.Millisecond)
	time.Sleep(220 * time.Millisecond)
	s.Unregister(1)

	got := count.Load()
	if got < 3 || got > 6 {
		t.Fatalf("expected roughly one probe per tick, got %d", got)
	}
}

func TestInFlightProbeSkipsTicks(t *testing.T) {
	t.Parallel()

	release := make(chan struct{})
	var count atomic.Int32
	s := New(func(context.Context, domain.Site) {
		count.Add(1)
		<-release
	}, false, discardLogger())
	s.Start(context.Background())

	s.Register(schedSite(1), 30*time.Millisecond)
	time.Sleep(150 * time.Millisecond)

	if got := count.Load(); got != 1 {
		t.Fatalf("expected ticks to be skipped while in flight, got %d probes", got)
	}

	close(release)
	s.Stop()
}

func TestUnregisterStopsFutureTicks(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	s := New(func(context.Context, domain.Site) { count.Add(1) }, false, discardLogger())
	s.Start(context.Background())
	defer s.Stop()

	s.Register(schedSite(1), 40*time.Millisecond)
	time.Sleep(100 * time.Millisecond)
	s.Unregister(1)
	if s.Registered(1) {
		t.Fatalf("site should not remain registered")
	}

	settled := count.Load()
	time.Sleep(150 * time.Millisecond)
	if got := count.Load(); got != settled {
		t.Fatalf("ticks continued after unregister: %d -> %d", settled, got)
	}
}

func TestUnregisterLeavesProbeRunning(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	release := make(chan struct{})
	var canceled atomic.Bool

	s := New(func(ctx context.Context, _ domain.Site) {
		close(started)
		<-release
		canceled.Store(ctx.Err() != nil)
	}, false, discardLogger())
	s.Start(context.Background())

	s.Register(schedSite(1), 30*time.Millisecond)
	<-started
	s.Unregister(1)
	close(release)
	s.Stop()

	if canceled.Load() {
		t.Fatalf("unregister must not cancel the in-flight probe")
	}
}

func TestStopCancelsInFlightProbe(t *testing.T) {
	t.Parallel()

	started := make(chan struct{})
	canceled := make(chan struct{})

	s := New(func(ctx context.Context, _ domain.Site) {
		close(started)
		<-ctx.Done()
		close(canceled)
	}, false, discardLogger())
	s.Start(context.Background())

	s.Register(schedSite(1), time.Hour)
	<-started
	s.Stop()

	select {
	case <-canceled:
	case <-time.After(time.Second):
		t.Fatalf("stop did not cancel the in-flight probe context")
	}
}

func TestUpdateReplacesRegistration(t *testing.T) {
	t.Parallel()

	var count atomic.Int32
	s := New(func(context.Context, domain.Site) { count.Add(1) }, false, discardLogger())
	s.Start(context.Background())
	defer s.Stop()

	s.Register(schedSite(1), time.Hour)
	time.Sleep(20 * time.Millisecond)
	first := count.Load()

	s.Update(schedSite(1), 30*time.Millisecond)
	time.Sleep(130 * time.Millisecond)

	if got := count.Load(); got-first < 3 {
		t.Fatalf("expected the new interval to take effect, got %d extra probes", got-first)
	}
}

func TestStaggerDelayStaysInsideInterval(t *testing.T) {
	t.Parallel()

	interval := 5 * time.Minute
	for id := int64(1); id <= 50; id++ {
		delay := staggerDelay(id, interval)
		if delay < 0 || delay >= interval {
			t.Fatalf("delay %s out of range for site %d", delay, id)
		}
		if delay != staggerDelay(id, interval) {
			t.Fatalf("delay must be deterministic for site %d", id)
		}
	}
}

func TestRegisterBeforeStartIsIgnored(t *testing.T) {
	t.Parallel()

	s := New(func(context.Context, domain.Site) {}, false, discardLogger())
	s.Register(schedSite(1), 10*time.Millisecond)
	if s.Registered(1) {
		t.Fatalf("registration must require a started scheduler")
	}
}
