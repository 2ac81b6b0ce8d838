package scheduler

import (
	"context"
	"hash/fnv"
	"log/slog"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"sitewatch/internal/domain"
)

// ProbeFunc runs one probe for one site.
// Params: ctx scheduler lifetime context; site the probe target.
// Returns: nothing, outcomes flow through the pipeline.
type ProbeFunc func(ctx context.Context, site domain.Site)

// Scheduler drives periodic probes with one timer goroutine per site.
// Params: probe callback, stagger toggle, and logger.
// Returns: Register/Unregister lifecycle over monitored sites.
type Scheduler struct {
	probe   ProbeFunc
	logger  *slog.Logger
	stagger bool

	mu      sync.Mutex
	ctx     context.Context
	cancel  context.CancelFunc
	entries map[int64]*entry
	wg      sync.WaitGroup
}

// entry is the per-site timer state.
// Params: cancel stops the timer loop; probeCtx outlives the loop so an
// in-flight probe survives Unregister; inFlight guards one probe at a time.
// Returns: per-site bookkeeping.
type entry struct {
	cancel   context.CancelFunc
	probeCtx context.Context
	inFlight atomic.Bool
}

// New creates a stopped scheduler.
// Params: probe callback invoked per tick; stagger offsets first ticks; logger.
// Returns: scheduler ready for Start.
func New(probe ProbeFunc, stagger bool, logger *slog.Logger) *Scheduler {
	return &Scheduler{
		probe:   probe,
		logger:  logger,
		stagger: stagger,
		entries: make(map[int64]*entry),
	}
}

// Start binds the scheduler to its lifetime context.
// Params: ctx cancels every timer and in-flight probe on shutdown.
// Returns: nothing.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.ctx, s.cancel = context.WithCancel(ctx)
}

// Stop cancels all timers and waits for in-flight probes.
// Params: none.
// Returns: after the last probe goroutine exits.
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if s.cancel != nil {
		s.cancel()
	}
	s.entries = make(map[int64]*entry)
	s.mu.Unlock()

	s.wg.Wait()
}

// Register starts the timer loop for one site.
// Params: site probe target; interval tick period.
// Returns: nothing, an existing registration for the ID is replaced.
func (s *Scheduler) Register(site domain.Site, interval time.Duration) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ctx == nil || s.ctx.Err() != nil {
		return
	}

	if old, ok := s.entries[site.ID]; ok {
		old.cancel()
	}

	loopCtx, cancel := context.WithCancel(s.ctx)
	e := &entry{cancel: cancel, probeCtx: s.ctx}
	s.entries[site.ID] = e

	delay := time.Duration(0)
	if s.stagger {
		delay = staggerDelay(site.ID, interval)
	}

	s.wg.Add(1)
	go s.run(loopCtx, e, site, interval, delay)

	s.logger.Info("site registered",
		"site_id", site.ID, "interval", interval.String(), "stagger", delay.String())
}

// Unregister stops the timer loop for one site.
// Params: siteID registration key.
// Returns: nothing, an in-flight probe is left to finish.
func (s *Scheduler) Unregister(siteID int64) {
	s.mu.Lock()
	defer s.mu.Unlock()

	e, ok := s.entries[siteID]
	if !ok {
		return
	}
	e.cancel()
	delete(s.entries, siteID)

	s.logger.Info("site unregistered", "site_id", siteID)
}

// Update replaces the registration after a site configuration change.
// Params: site new configuration; interval new tick period.
// Returns: nothing.
func (s *Scheduler) Update(site domain.Site, interval time.Duration) {
	s.Register(site, interval)
}

// Registered reports whether a timer loop exists for the site.
// Params: siteID registration key.
// Returns: true while registered.
func (s *Scheduler) Registered(siteID int64) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	_, ok := s.entries[siteID]
	return ok
}

// run is the per-site timer loop.
// Params: ctx loop lifetime; e shared entry state; site target; interval period; delay first-tick offset.
// Returns: when the loop context is canceled.
func (s *Scheduler) run(ctx context.Context, e *entry, site domain.Site, interval, delay time.Duration) {
	defer s.wg.Done()

	if delay > 0 {
		timer := time.NewTimer(delay)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}

	s.tick(e, site)

	ticker := time.NewTicker(interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.tick(e, site)
		}
	}
}

// tick launches one probe unless the previous one is still running.
// Params: e entry carrying the in-flight flag; site probe target.
// Returns: nothing, skipped ticks are logged.
func (s *Scheduler) tick(e *entry, site domain.Site) {
	if !e.inFlight.CompareAndSwap(false, true) {
		s.logger.Warn("probe still in flight, skipping tick", "site_id", site.ID)
		return
	}

	s.wg.Add(1)
	go func() {
		defer s.wg.Done()
		defer e.inFlight.Store(false)
		s.probe(e.probeCtx, site)
	}()
}

// staggerDelay derives a stable first-tick offset inside the interval.
// Params: siteID hashed input; interval tick period.
// Returns: offset in [0, interval).
func staggerDelay(siteID int64, interval time.Duration) time.Duration {
	if interval <= 0 {
		return 0
	}
	hasher := fnv.New64a()
	_, _ = hasher.Write([]byte(strconv.FormatInt(siteID, 10)))
	return time.Duration(hasher.Sum64() % uint64(interval))
}
