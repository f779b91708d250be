// Metricus - Behavioral and Revenue Analytics Engine
// Copyright 2026 Metricus Contributors
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/metricus/metricus

package refresh

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/ThreeDotsLabs/watermill/message"
	json "github.com/goccy/go-json"
	"github.com/google/uuid"
	"golang.org/x/time/rate"

	"github.com/metricus/metricus/internal/analytics"
	"github.com/metricus/metricus/internal/config"
	"github.com/metricus/metricus/internal/logging"
	"github.com/metricus/metricus/internal/metrics"
	"github.com/metricus/metricus/internal/models"
	"github.com/metricus/metricus/internal/snapshot"
	"github.com/metricus/metricus/internal/store"
)

// States of a derived structure's refresh lifecycle.
const (
	StateIdle       = "idle"
	StateComputing  = "computing"
	StatePublishing = "publishing"
)

// Derived structure names accepted by Refresh and TriggerManual.
const (
	UnitSessions  = "sessions"
	UnitFunnel    = "funnel"
	UnitCohorts   = "cohorts"
	UnitRFM       = "rfm"
	UnitRollups   = "rollups"
	UnitAnomalies = "anomalies"
)

// AllUnits lists every derived structure in computation order.
var AllUnits = []string{UnitSessions, UnitFunnel, UnitCohorts, UnitRFM, UnitRollups, UnitAnomalies}

// Per-structure trigger statuses. Failures are reported as
// "failed:<reason>" rather than a bare constant.
const (
	StatusPublished    = "published"
	StatusInProgress   = "in-progress"
	statusFailedPrefix = "failed:"
)

// TopicRefreshCompleted carries one message per finished cycle that
// published at least one structure.
const TopicRefreshCompleted = "refresh_completed"

// ErrRefreshInProgress is returned when every requested structure is
// already computing; the trigger is dropped, not queued.
var ErrRefreshInProgress = errors.New("refresh already in progress")

// ErrRateLimited is returned when manual triggers exceed the configured
// budget.
var ErrRateLimited = errors.New("manual refresh rate limited")

// ErrUnknownUnit is returned when a trigger names a structure the
// coordinator does not own.
var ErrUnknownUnit = errors.New("unknown derived structure")

// RefreshCompletedEvent is the payload published on TopicRefreshCompleted.
type RefreshCompletedEvent struct {
	ComputedAt  time.Time `json:"computed_at"`
	ElapsedMS   int64     `json:"elapsed_ms"`
	Partial     bool      `json:"partial"`
	FailedUnits []string  `json:"failed_units,omitempty"`
}

// UnitStatus describes one derived structure for the status endpoint.
type UnitStatus struct {
	State           string     `json:"state"`
	LastOutcome     string     `json:"last_outcome,omitempty"`
	LastPublishedAt *time.Time `json:"last_published_at,omitempty"`
}

// StatusReport describes the coordinator for the status endpoint.
type StatusReport struct {
	State              string                `json:"state"`
	Units              map[string]UnitStatus `json:"units"`
	LastStartedAt      *time.Time            `json:"last_started_at,omitempty"`
	LastFinishedAt     *time.Time            `json:"last_finished_at,omitempty"`
	LastOutcome        string                `json:"last_outcome,omitempty"`
	LastError          string                `json:"last_error,omitempty"`
	FailedUnits        []string              `json:"failed_units,omitempty"`
	SnapshotComputedAt *time.Time            `json:"snapshot_computed_at,omitempty"`
	SnapshotStale      bool                  `json:"snapshot_stale"`
}

// sourceData is one consistent read of the source store, shared by every
// unit of a cycle.
type sourceData struct {
	events []models.Event
	orders []models.Order
	users  []models.User
}

// unitDef binds a structure name to its computation. run produces an
// apply closure so the derived rows are built outside the publish lock
// and swapped in under it.
type unitDef struct {
	name string
	run  func(src *sourceData) func(*snapshot.Snapshot)
}

// unitState is the per-structure slice of the coordinator's state
// machine. computing doubles as the skip-if-computing guard.
type unitState struct {
	computing atomic.Bool

	mu          sync.Mutex
	state       string
	lastOutcome string
	publishedAt time.Time
}

func (u *unitState) setState(state string) {
	u.mu.Lock()
	u.state = state
	u.mu.Unlock()
}

func (u *unitState) recordFailure(reason string) {
	u.mu.Lock()
	u.state = StateIdle
	u.lastOutcome = statusFailedPrefix + reason
	u.mu.Unlock()
}

func (u *unitState) recordPublished(at time.Time) {
	u.mu.Lock()
	u.state = StateIdle
	u.lastOutcome = StatusPublished
	u.publishedAt = at
	u.mu.Unlock()
}

func (u *unitState) report() UnitStatus {
	u.mu.Lock()
	defer u.mu.Unlock()
	status := UnitStatus{State: u.state, LastOutcome: u.lastOutcome}
	if !u.publishedAt.IsZero() {
		t := u.publishedAt
		status.LastPublishedAt = &t
	}
	return status
}

// Coordinator owns the refresh lifecycle of every derived structure. Each
// structure recomputes as an independent unit of work; a unit failure
// leaves its previously published rows visible and never blocks sibling
// units. Publication is a copy-and-swap of a single immutable snapshot
// pointer, so readers always see an internally consistent snapshot.
type Coordinator struct {
	reader  store.Reader
	cfg     config.RefreshConfig
	persist *snapshot.BadgerStore
	pub     message.Publisher
	now     func() time.Time

	current   atomic.Pointer[snapshot.Snapshot]
	publishMu sync.Mutex
	limiter   *rate.Limiter
	units     map[string]*unitState

	mu       sync.Mutex
	active   int
	started  time.Time
	finished time.Time
	outcome  string
	lastErr  string
	failing  map[string]bool
}

// Option configures a Coordinator.
type Option func(*Coordinator)

// WithPersistence stores every published snapshot and restores the latest
// one at startup.
func WithPersistence(bs *snapshot.BadgerStore) Option {
	return func(c *Coordinator) { c.persist = bs }
}

// WithPublisher emits a refresh_completed message after each publish.
func WithPublisher(pub message.Publisher) Option {
	return func(c *Coordinator) { c.pub = pub }
}

// WithClock overrides the time source, for tests.
func WithClock(now func() time.Time) Option {
	return func(c *Coordinator) { c.now = now }
}

// NewCoordinator builds a Coordinator over the given reader.
func NewCoordinator(reader store.Reader, cfg config.RefreshConfig, opts ...Option) *Coordinator {
	c := &Coordinator{
		reader:  reader,
		cfg:     cfg,
		now:     time.Now,
		units:   make(map[string]*unitState, len(AllUnits)),
		failing: make(map[string]bool),
	}
	for _, name := range AllUnits {
		c.units[name] = &unitState{state: StateIdle}
	}
	perMinute := cfg.ManualPerMinute
	if perMinute <= 0 {
		perMinute = 6
	}
	c.limiter = rate.NewLimiter(rate.Every(time.Minute/time.Duration(perMinute)), perMinute)
	for _, opt := range opts {
		opt(c)
	}
	return c
}

// Snapshot returns the currently published snapshot, nil before the first
// publish.
func (c *Coordinator) Snapshot() *snapshot.Snapshot {
	return c.current.Load()
}

// Status reports the coordinator and per-structure state for the status
// endpoint.
func (c *Coordinator) Status() StatusReport {
	c.mu.Lock()
	defer c.mu.Unlock()

	report := StatusReport{
		State:       StateIdle,
		Units:       make(map[string]UnitStatus, len(c.units)),
		LastOutcome: c.outcome,
		LastError:   c.lastErr,
		FailedUnits: c.failingLocked(),
	}
	if c.active > 0 {
		report.State = StateComputing
	}
	for name, unit := range c.units {
		report.Units[name] = unit.report()
	}
	if !c.started.IsZero() {
		t := c.started
		report.LastStartedAt = &t
	}
	if !c.finished.IsZero() {
		t := c.finished
		report.LastFinishedAt = &t
	}
	if snap := c.current.Load(); snap != nil {
		t := snap.ComputedAt
		report.SnapshotComputedAt = &t
		report.SnapshotStale = snap.Stale(c.now(), c.cfg.StaleAfter)
	}
	return report
}

// Restore loads the last persisted snapshot, if any, so the API can serve
// data before the first cycle completes.
func (c *Coordinator) Restore() {
	if c.persist == nil {
		return
	}
	snap, err := c.persist.LoadLatest()
	if errors.Is(err, snapshot.ErrNoSnapshot) {
		return
	}
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to restore persisted snapshot")
		return
	}
	c.current.Store(snap)
	logging.Info().Time("computed_at", snap.ComputedAt).Msg("Restored persisted snapshot")
}

// TriggerManual runs a cycle on demand, subject to the manual rate limit.
// With no structure names it refreshes everything.
func (c *Coordinator) TriggerManual(ctx context.Context, structures ...string) (map[string]string, error) {
	if !c.limiter.Allow() {
		return nil, ErrRateLimited
	}
	return c.Refresh(ctx, structures...)
}

// Refresh recomputes the named structures, or all of them when none are
// named. Requested structures already computing are skipped and reported
// in-progress; the rest run concurrently against one shared source read.
// The returned map holds one status per requested structure. The error is
// non-nil only when nothing was published: an unknown name, every
// structure busy, a failed source read, or every unit failing.
func (c *Coordinator) Refresh(ctx context.Context, structures ...string) (map[string]string, error) {
	started := c.now()
	defs, err := c.selectUnits(started, structures)
	if err != nil {
		return nil, err
	}

	results := make(map[string]string, len(defs))
	claimed := make([]unitDef, 0, len(defs))
	for _, def := range defs {
		unit := c.units[def.name]
		if !unit.computing.CompareAndSwap(false, true) {
			results[def.name] = StatusInProgress
			continue
		}
		unit.setState(StateComputing)
		claimed = append(claimed, def)
	}
	if len(claimed) == 0 {
		metrics.RefreshCycles.WithLabelValues("skipped").Inc()
		return results, ErrRefreshInProgress
	}

	c.beginCycle(started)

	src, err := c.readSource(ctx, started)
	if err != nil {
		for _, def := range claimed {
			unit := c.units[def.name]
			unit.recordFailure(err.Error())
			unit.computing.Store(false)
			results[def.name] = statusFailedPrefix + err.Error()
			c.markFailing(def.name, true)
		}
		c.finishCycle("failed", err.Error())
		metrics.RefreshCycles.WithLabelValues("failed").Inc()
		return results, err
	}

	var (
		wg        sync.WaitGroup
		resMu     sync.Mutex
		published int
		failed    int
	)
	for _, def := range claimed {
		wg.Add(1)
		go func(def unitDef) {
			unit := c.units[def.name]
			defer wg.Done()
			defer unit.computing.Store(false)

			unitStart := c.now()
			apply, err := c.runUnit(ctx, def, src)
			metrics.ObserveRefreshUnit(def.name, c.now().Sub(unitStart))
			if err != nil {
				metrics.RefreshUnitFailures.WithLabelValues(def.name).Inc()
				logging.Error().Err(err).Str("unit", def.name).Msg("Analytics unit failed, previous rows stay published")
				unit.recordFailure(err.Error())
				c.markFailing(def.name, true)
				resMu.Lock()
				results[def.name] = statusFailedPrefix + err.Error()
				failed++
				resMu.Unlock()
				return
			}

			unit.setState(StatePublishing)
			c.publishUnit(started, apply)
			unit.recordPublished(c.now())
			c.markFailing(def.name, false)
			resMu.Lock()
			results[def.name] = StatusPublished
			published++
			resMu.Unlock()
		}(def)
	}
	wg.Wait()

	outcome := StatusPublished
	switch {
	case published == 0:
		outcome = "failed"
	case failed > 0:
		outcome = "partial"
	}
	metrics.RefreshCycles.WithLabelValues(outcome).Inc()

	snap := c.finalizeSnapshot(started)
	c.finishCycle(outcome, firstFailure(results))

	if snap != nil && published > 0 {
		metrics.SnapshotAge.Set(0)
		if c.persist != nil {
			if err := c.persist.Save(snap); err != nil {
				logging.Warn().Err(err).Msg("Failed to persist snapshot")
			}
		}
		c.publishCompleted(snap)
	}

	logging.Info().
		Int("published", published).
		Int("failed", failed).
		Str("outcome", outcome).
		Dur("elapsed", c.now().Sub(started)).
		Msg("Refresh cycle finished")
	if published == 0 {
		return results, fmt.Errorf("refresh published nothing: %s", firstFailure(results))
	}
	return results, nil
}

// selectUnits resolves requested structure names against the unit table,
// preserving computation order and dropping duplicates.
func (c *Coordinator) selectUnits(now time.Time, structures []string) ([]unitDef, error) {
	defs := c.unitDefs(now)
	if len(structures) == 0 {
		return defs, nil
	}
	requested := make(map[string]bool, len(structures))
	for _, name := range structures {
		if _, ok := c.units[name]; !ok {
			return nil, fmt.Errorf("%w: %q", ErrUnknownUnit, name)
		}
		requested[name] = true
	}
	selected := defs[:0]
	for _, def := range defs {
		if requested[def.name] {
			selected = append(selected, def)
		}
	}
	return selected, nil
}

// readSource pulls one consistent view of the source records for a cycle.
// A failed read aborts every claimed unit since nothing can be derived.
func (c *Coordinator) readSource(ctx context.Context, now time.Time) (*sourceData, error) {
	lookback := c.cfg.Lookback
	if lookback <= 0 {
		lookback = 90 * 24 * time.Hour
	}
	tr := store.TimeRangeSince(now, lookback)

	readCtx, cancel := context.WithTimeout(ctx, c.unitTimeout())
	defer cancel()

	start := c.now()
	events, err := c.reader.QueryEvents(readCtx, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to read events: %w", err)
	}
	orders, err := c.reader.QueryOrders(readCtx, tr)
	if err != nil {
		return nil, fmt.Errorf("failed to read orders: %w", err)
	}
	users, err := c.reader.QueryUsers(readCtx)
	if err != nil {
		return nil, fmt.Errorf("failed to read users: %w", err)
	}
	metrics.ObserveDBQuery("refresh_source_read", c.now().Sub(start))
	return &sourceData{events: events, orders: orders, users: users}, nil
}

func (c *Coordinator) unitDefs(now time.Time) []unitDef {
	sessCfg := analytics.DefaultSessionizerConfig()
	cohortCfg := analytics.CohortConfig{Granularity: c.cfg.CohortGranularity}
	rfmCfg := analytics.DefaultRFMConfig()
	if c.cfg.RFMTopN > 0 {
		rfmCfg.TopN = c.cfg.RFMTopN
	}
	anomalyCfg := analytics.DefaultAnomalyConfig()
	if c.cfg.AnomalyBaseline > 0 {
		anomalyCfg.Baseline = c.cfg.AnomalyBaseline
	}
	if c.cfg.AnomalyLimit > 0 {
		anomalyCfg.Limit = c.cfg.AnomalyLimit
	}
	topLimit := c.cfg.TopProductsLimit
	if topLimit <= 0 {
		topLimit = 10
	}

	return []unitDef{
		{name: UnitSessions, run: func(src *sourceData) func(*snapshot.Snapshot) {
			sessions := analytics.Sessionize(src.events, sessCfg)
			overview := analytics.BuildSessionOverview(sessions)
			return func(s *snapshot.Snapshot) {
				s.Sessions = sessions
				s.SessionOverview = overview
			}
		}},
		{name: UnitFunnel, run: func(src *sourceData) func(*snapshot.Snapshot) {
			funnel := analytics.ComputeFunnel(src.events, sessCfg)
			return func(s *snapshot.Snapshot) { s.Funnel = funnel }
		}},
		{name: UnitCohorts, run: func(src *sourceData) func(*snapshot.Snapshot) {
			cohorts := analytics.ComputeCohorts(src.users, src.events, cohortCfg)
			bySourceCfg := cohortCfg
			bySourceCfg.BySource = true
			bySource := analytics.ComputeCohorts(src.users, src.events, bySourceCfg)
			return func(s *snapshot.Snapshot) {
				s.Cohorts = cohorts
				s.CohortsBySource = bySource
			}
		}},
		{name: UnitRFM, run: func(src *sourceData) func(*snapshot.Snapshot) {
			rfm := analytics.ComputeRFM(src.orders, now, rfmCfg)
			return func(s *snapshot.Snapshot) { s.RFM = rfm }
		}},
		{name: UnitRollups, run: func(src *sourceData) func(*snapshot.Snapshot) {
			rollups := analytics.ComputeRollups(src.events, src.orders, analytics.DefaultRollupConfig())
			revenue := analytics.ComputeRevenueRollups(src.orders)
			top := analytics.ComputeTopProducts(src.orders, topLimit)
			return func(s *snapshot.Snapshot) {
				s.Rollups = rollups
				s.RevenueDaily = revenue
				s.TopProducts = top
			}
		}},
		{name: UnitAnomalies, run: func(src *sourceData) func(*snapshot.Snapshot) {
			anomalies := analytics.DetectAnomalies(src.events, anomalyCfg)
			return func(s *snapshot.Snapshot) { s.Anomalies = anomalies }
		}},
	}
}

// runUnit executes one unit bounded by the unit timeout and the cycle
// context, converting panics into errors. A timed-out or cancelled unit
// never publishes; its apply closure is discarded.
func (c *Coordinator) runUnit(ctx context.Context, def unitDef, src *sourceData) (func(*snapshot.Snapshot), error) {
	unitCtx, cancel := context.WithTimeout(ctx, c.unitTimeout())
	defer cancel()

	type unitResult struct {
		apply func(*snapshot.Snapshot)
		err   error
	}
	done := make(chan unitResult, 1)
	go func() {
		defer func() {
			if r := recover(); r != nil {
				done <- unitResult{err: fmt.Errorf("unit panicked: %v", r)}
			}
		}()
		done <- unitResult{apply: def.run(src)}
	}()

	select {
	case res := <-done:
		return res.apply, res.err
	case <-unitCtx.Done():
		return nil, unitCtx.Err()
	}
}

func (c *Coordinator) unitTimeout() time.Duration {
	if c.cfg.UnitTimeout > 0 {
		return c.cfg.UnitTimeout
	}
	return 2 * time.Minute
}

// publishUnit swaps in one structure's new rows: copy the current
// snapshot, apply the unit's output, store the copy. Serialized by
// publishMu; readers only ever see complete snapshots.
func (c *Coordinator) publishUnit(started time.Time, apply func(*snapshot.Snapshot)) {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	next := &snapshot.Snapshot{}
	if prev := c.current.Load(); prev != nil {
		*next = *prev
	}
	apply(next)
	next.ComputedAt = started
	c.current.Store(next)
}

// finalizeSnapshot stamps cycle bookkeeping (elapsed, partial, failing
// units) onto the published snapshot once all units have finished.
func (c *Coordinator) finalizeSnapshot(started time.Time) *snapshot.Snapshot {
	c.publishMu.Lock()
	defer c.publishMu.Unlock()

	prev := c.current.Load()
	if prev == nil {
		return nil
	}
	next := &snapshot.Snapshot{}
	*next = *prev
	c.mu.Lock()
	next.FailedUnits = c.failingLocked()
	c.mu.Unlock()
	next.Partial = len(next.FailedUnits) > 0
	next.Elapsed = c.now().Sub(started)
	c.current.Store(next)
	return next
}

func (c *Coordinator) beginCycle(started time.Time) {
	c.mu.Lock()
	c.active++
	c.started = started
	c.mu.Unlock()
}

func (c *Coordinator) finishCycle(outcome, errMsg string) {
	c.mu.Lock()
	c.active--
	c.finished = c.now()
	c.outcome = outcome
	c.lastErr = errMsg
	c.mu.Unlock()
}

func (c *Coordinator) markFailing(unit string, failing bool) {
	c.mu.Lock()
	if failing {
		c.failing[unit] = true
	} else {
		delete(c.failing, unit)
	}
	c.mu.Unlock()
}

// failingLocked snapshots the failing-unit set; callers hold c.mu.
func (c *Coordinator) failingLocked() []string {
	if len(c.failing) == 0 {
		return nil
	}
	names := make([]string, 0, len(c.failing))
	for name := range c.failing {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// firstFailure extracts one failure reason from a result map for the
// cycle-level error fields.
func firstFailure(results map[string]string) string {
	for _, name := range AllUnits {
		if status, ok := results[name]; ok && strings.HasPrefix(status, statusFailedPrefix) {
			return strings.TrimPrefix(status, statusFailedPrefix)
		}
	}
	return ""
}

func (c *Coordinator) publishCompleted(snap *snapshot.Snapshot) {
	if c.pub == nil {
		return
	}
	payload, err := json.Marshal(RefreshCompletedEvent{
		ComputedAt:  snap.ComputedAt,
		ElapsedMS:   snap.Elapsed.Milliseconds(),
		Partial:     snap.Partial,
		FailedUnits: snap.FailedUnits,
	})
	if err != nil {
		logging.Warn().Err(err).Msg("Failed to encode refresh_completed event")
		return
	}
	msg := message.NewMessage(uuid.NewString(), payload)
	if err := c.pub.Publish(TopicRefreshCompleted, msg); err != nil {
		logging.Warn().Err(err).Msg("Failed to publish refresh_completed event")
	}
}

// UpdateSnapshotAge refreshes the snapshot age gauge; the scheduler calls
// this between cycles.
func (c *Coordinator) UpdateSnapshotAge() {
	if snap := c.current.Load(); snap != nil {
		metrics.SnapshotAge.Set(snap.Age(c.now()).Seconds())
	}
}
