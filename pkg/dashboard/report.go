package dashboard

import (
	"context"

	"github.com/hawky-4s-/energy-report-dashboard/pkg/types"
)

// ReportErrorMessage is shown in the report pane when a report fetch fails.
const ReportErrorMessage = "Failed to load report. Please try again."

// ReportMode is the view the report pane currently shows.
type ReportMode string

// Report pane views, in priority order.
const (
	ReportPrompt  ReportMode = "prompt"
	ReportLoading ReportMode = "loading"
	ReportFailed  ReportMode = "error"
	ReportReady   ReportMode = "ready"
	ReportEmpty   ReportMode = "empty"
)

// ReportState is an immutable copy of the report pane state.
type ReportState struct {
	MeterID types.MeterID
	Loading bool
	Error   string
	Report  *types.Report
}

// Mode returns which of the mutually exclusive views applies.
func (s ReportState) Mode() ReportMode {
	switch {
	case s.MeterID == "":
		return ReportPrompt
	case s.Loading:
		return ReportLoading
	case s.Error != "":
		return ReportFailed
	case s.Report != nil:
		return ReportReady
	default:
		return ReportEmpty
	}
}

// reportPane fetches and holds the report of the selected meter. It is owned
// by a single goroutine.
//
// Every request carries the sequence number of the selection it was issued
// for. A result whose tag does not match the current selection is discarded,
// and the superseded request is cancelled.
type reportPane struct {
	meterID types.MeterID
	report  *types.Report
	loading bool
	err     string

	seq    uint64
	cancel context.CancelFunc
}

type reportRequest struct {
	ctx     context.Context
	seq     uint64
	meterID types.MeterID
}

type reportResult struct {
	seq     uint64
	meterID types.MeterID
	report  *types.Report
	err     error
}

// setMeter switches the pane to meterID and returns the request to issue,
// or nil when no meter is selected. With an empty id the rest of the state
// is left untouched.
func (p *reportPane) setMeter(parent context.Context, meterID types.MeterID) *reportRequest {
	p.supersede()
	p.meterID = meterID
	if meterID == "" {
		return nil
	}

	p.err = ""
	p.report = nil
	p.loading = true

	ctx, cancel := context.WithCancel(parent)
	p.cancel = cancel
	return &reportRequest{ctx: ctx, seq: p.seq, meterID: meterID}
}

// resolve applies a result. It reports false when the result is stale.
func (p *reportPane) resolve(res reportResult) bool {
	if res.seq != p.seq || res.meterID != p.meterID {
		return false
	}
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}

	p.loading = false
	if res.err != nil {
		p.err = ReportErrorMessage
		return true
	}
	p.report = res.report
	return true
}

// release cancels any in-flight request and makes its result stale.
func (p *reportPane) release() {
	p.supersede()
}

func (p *reportPane) supersede() {
	p.seq++
	if p.cancel != nil {
		p.cancel()
		p.cancel = nil
	}
}

func (p *reportPane) state() ReportState {
	return ReportState{
		MeterID: p.meterID,
		Loading: p.loading,
		Error:   p.err,
		Report:  p.report,
	}
}
