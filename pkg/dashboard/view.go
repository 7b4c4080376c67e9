// Package dashboard implements the state of one mounted dashboard view: the
// polled meter list, the current selection and the report of the selected
// meter.
//
// A View runs a single event loop goroutine which owns all of its state.
// Fetches run on their own goroutines and hand their results back to the
// loop; every state change is published as a Snapshot.
package dashboard

import (
	"context"
	"errors"
	"log/slog"
	"math"
	"slices"
	"sync"
	"sync/atomic"
	"time"

	"github.com/benbjohnson/clock"
	"github.com/google/uuid"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/cache"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/client"
	"github.com/hawky-4s-/energy-report-dashboard/pkg/types"
)

// MeterErrorMessage replaces the whole view when the meter list cannot be loaded.
const MeterErrorMessage = "Failed to load meter list. Please try again."

// DefaultPollInterval is how often the meter list is refreshed.
const DefaultPollInterval = 30 * time.Second

// ErrAlreadyRunning is returned when Run is called twice on the same view.
var ErrAlreadyRunning = errors.New("view is already running")

// Fetcher retrieves data from the energy report API.
type Fetcher interface {
	FetchMeters(ctx context.Context) ([]types.MeterID, error)
	FetchReport(ctx context.Context, meterID types.MeterID) (*types.Report, error)
}

// Metrics receives view and fetch events.
type Metrics interface {
	ObserveFetch(endpoint string, d time.Duration, err error)
	ViewMounted()
	ViewUnmounted()
	StaleReportDiscarded()
}

type nopMetrics struct{}

func (nopMetrics) ObserveFetch(string, time.Duration, error) {}
func (nopMetrics) ViewMounted()                              {}
func (nopMetrics) ViewUnmounted()                            {}
func (nopMetrics) StaleReportDiscarded()                     {}

// RenderFunc is called on the event loop goroutine after every state change.
type RenderFunc func(Snapshot)

// Snapshot is an immutable copy of the view state.
type Snapshot struct {
	ViewID          string
	Meters          []types.MeterID
	Selected        types.MeterID
	MeterError      string
	MetersUpdatedAt time.Time
	Selector        Selector
	Report          ReportState
}

// Blocked reports whether the meter list error hides the rest of the view.
func (s Snapshot) Blocked() bool {
	return s.MeterError != ""
}

// View is one mounted dashboard.
type View struct {
	id           string
	fetcher      Fetcher
	clock        clock.Clock
	pollInterval time.Duration
	policy       ErrorPolicy
	cache        *cache.Cache
	metrics      Metrics
	render       RenderFunc
	log          *slog.Logger

	events  chan any
	done    chan struct{}
	started atomic.Bool

	// owned by the Run goroutine
	meters          []types.MeterID
	selected        types.MeterID
	meterError      string
	metersUpdatedAt time.Time
	report          reportPane
	pollSeq         uint64
	pollCancel      context.CancelFunc

	mu   sync.RWMutex
	last Snapshot
}

// Option is a functional option for configuring a View.
type Option func(*View)

// WithID sets the view id used in logs. A random UUID is used otherwise.
func WithID(id string) Option {
	return func(v *View) {
		v.id = id
	}
}

// WithClock sets the clock driving the poll ticker.
func WithClock(c clock.Clock) Option {
	return func(v *View) {
		v.clock = c
	}
}

// WithPollInterval sets how often the meter list is refreshed.
func WithPollInterval(d time.Duration) Option {
	return func(v *View) {
		if d > 0 {
			v.pollInterval = d
		}
	}
}

// WithErrorPolicy sets how meter list errors are cleared.
func WithErrorPolicy(p ErrorPolicy) Option {
	return func(v *View) {
		v.policy = p
	}
}

// WithCache shares successfully polled meter lists with a process-wide cache.
func WithCache(c *cache.Cache) Option {
	return func(v *View) {
		v.cache = c
	}
}

// WithMetrics sets the metrics sink.
func WithMetrics(m Metrics) Option {
	return func(v *View) {
		if m != nil {
			v.metrics = m
		}
	}
}

// WithRenderFunc sets the function receiving every new snapshot.
func WithRenderFunc(f RenderFunc) Option {
	return func(v *View) {
		v.render = f
	}
}

// NewView creates an unmounted view. Call Run to mount it.
func NewView(f Fetcher, opts ...Option) *View {
	v := &View{
		fetcher:      f,
		clock:        clock.New(),
		pollInterval: DefaultPollInterval,
		policy:       ErrorSticky,
		metrics:      nopMetrics{},
		events:       make(chan any, 16),
		done:         make(chan struct{}),
	}

	for _, opt := range opts {
		opt(v)
	}

	if v.id == "" {
		v.id = uuid.NewString()
	}
	v.log = slog.Default().With("view", v.id)
	v.last = v.snapshot()

	return v
}

// ID returns the view id.
func (v *View) ID() string {
	return v.id
}

// Done is closed once Run has returned.
func (v *View) Done() <-chan struct{} {
	return v.done
}

// Snapshot returns the most recently published state.
func (v *View) Snapshot() Snapshot {
	v.mu.RLock()
	defer v.mu.RUnlock()
	return v.last
}

// Select forwards a selection from the meter selector. It reports false if
// the view has already been torn down.
func (v *View) Select(meterID types.MeterID) bool {
	select {
	case <-v.done:
		return false
	default:
	}

	select {
	case v.events <- selectEvent{meterID: meterID}:
		return true
	case <-v.done:
		return false
	}
}

// Run mounts the view. It polls the meter list immediately and then every
// poll interval, and processes selections until ctx is cancelled. The poll
// ticker and any in-flight report request are released before Run returns.
func (v *View) Run(ctx context.Context) error {
	if !v.started.CompareAndSwap(false, true) {
		return ErrAlreadyRunning
	}
	defer close(v.done)

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer v.report.release()
	defer v.releasePoll()

	v.metrics.ViewMounted()
	defer v.metrics.ViewUnmounted()

	ticker := v.clock.Ticker(v.pollInterval)
	defer ticker.Stop()

	v.log.Debug("view mounted", "poll_interval", v.pollInterval.String(), "error_policy", v.policy.String())
	v.publish()
	v.pollMeters(ctx)

	for {
		select {
		case <-ctx.Done():
			v.log.Debug("view unmounted")
			return nil
		case <-ticker.C:
			v.pollMeters(ctx)
		case ev := <-v.events:
			if v.handle(ctx, ev) {
				v.publish()
			}
		}
	}
}

type selectEvent struct {
	meterID types.MeterID
}

type metersResult struct {
	seq    uint64
	meters []types.MeterID
	err    error
}

func (v *View) handle(ctx context.Context, ev any) bool {
	// nothing may change once the view is torn down
	if ctx.Err() != nil {
		return false
	}

	switch ev := ev.(type) {
	case selectEvent:
		if ev.meterID == v.selected {
			return false
		}
		v.selected = ev.meterID
		if req := v.report.setMeter(ctx, ev.meterID); req != nil {
			v.fetchReport(ctx, req)
		}
		return true

	case metersResult:
		if ev.seq != v.pollSeq {
			v.log.Debug("discarding superseded meter list", "error", ev.err)
			return false
		}
		v.releasePoll()
		if ev.err != nil {
			v.log.Error("failed to fetch meters", "error", ev.err)
			v.meterError = MeterErrorMessage
			return true
		}
		v.meters = ev.meters
		v.metersUpdatedAt = v.clock.Now()
		if v.policy == ErrorResetOnSuccess {
			v.meterError = ""
		}
		if v.cache != nil {
			v.cache.Set(ev.meters)
		}
		return true

	case reportResult:
		if !v.report.resolve(ev) {
			v.metrics.StaleReportDiscarded()
			v.log.Debug("discarding stale report", "meter_id", ev.meterID, "selected", v.selected)
			return false
		}
		if ev.err != nil {
			v.log.Error("failed to load report", "meter_id", ev.meterID, "error", ev.err)
		} else if totalsMismatch(ev.report) {
			v.log.Debug("report totals differ from hourly sums",
				"meter_id", ev.meterID,
				"total_energy", ev.report.TotalEnergy,
				"sum_energy", ev.report.SumEnergy(),
				"total_cost", ev.report.TotalCost.String(),
				"sum_cost", ev.report.SumCost().String(),
			)
		}
		return true
	}

	return false
}

// pollMeters starts a meter list fetch. A poll still in flight is cancelled
// and its result discarded.
func (v *View) pollMeters(ctx context.Context) {
	v.releasePoll()
	v.pollSeq++
	seq := v.pollSeq
	pctx, cancel := context.WithCancel(ctx)
	v.pollCancel = cancel

	go func() {
		start := time.Now()
		meters, err := v.fetcher.FetchMeters(pctx)
		v.metrics.ObserveFetch(client.EndpointMeters, time.Since(start), err)
		v.post(ctx, metersResult{seq: seq, meters: meters, err: err})
	}()
}

func (v *View) releasePoll() {
	if v.pollCancel != nil {
		v.pollCancel()
		v.pollCancel = nil
	}
}

// totalsMismatch reports whether the report totals disagree with the sum of
// its hourly entries. Totals are displayed as sent either way.
func totalsMismatch(r *types.Report) bool {
	if r == nil || len(r.HourlyReports) == 0 {
		return false
	}
	return !r.TotalCost.Equal(r.SumCost()) || math.Abs(r.TotalEnergy-r.SumEnergy()) > 1e-9
}

func (v *View) fetchReport(ctx context.Context, req *reportRequest) {
	go func() {
		start := time.Now()
		report, err := v.fetcher.FetchReport(req.ctx, req.meterID)
		v.metrics.ObserveFetch(client.EndpointReport, time.Since(start), err)
		v.post(ctx, reportResult{seq: req.seq, meterID: req.meterID, report: report, err: err})
	}()
}

// post hands a result to the event loop, or drops it after teardown.
func (v *View) post(ctx context.Context, ev any) {
	select {
	case v.events <- ev:
	case <-ctx.Done():
	}
}

func (v *View) publish() {
	snap := v.snapshot()

	v.mu.Lock()
	v.last = snap
	v.mu.Unlock()

	if v.render != nil {
		v.render(snap)
	}
}

func (v *View) snapshot() Snapshot {
	meters := slices.Clone(v.meters)
	return Snapshot{
		ViewID:          v.id,
		Meters:          meters,
		Selected:        v.selected,
		MeterError:      v.meterError,
		MetersUpdatedAt: v.metersUpdatedAt,
		Selector:        NewSelector(meters, v.selected),
		Report:          v.report.state(),
	}
}
