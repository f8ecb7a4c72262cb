package tracker

import (
	"log/slog"
	"time"

	"github.com/txgraph/rollingmedian/internal/median"
	"github.com/txgraph/rollingmedian/internal/window"
	"github.com/txgraph/rollingmedian/pkg/types"
)

// Result is the outcome of feeding one transaction to the tracker.
type Result struct {
	// Accepted is false when the transaction was rejected-stale.
	Accepted bool

	// Median is valid only when Accepted is true.
	Median float64

	Watermark    time.Time
	WindowLen    int
	Participants int
}

// Stats is a point-in-time view of the tracker's counters.
type Stats struct {
	Accepted     uint64
	Stale        uint64
	WindowLen    int
	Participants int
	Watermark    time.Time
	HasWatermark bool
	LastMedian   float64
	HasMedian    bool
}

// Tracker maintains the sliding window and derives the rolling median.
type Tracker struct {
	store  *window.Store
	engine *median.Engine

	accepted   uint64
	stale      uint64
	lastMedian float64
	hasMedian  bool
}

// New returns a Tracker with the given window length.
func New(win time.Duration) *Tracker {
	st := window.New(win)
	return &Tracker{
		store:  st,
		engine: median.NewEngine(st.Tally()),
	}
}

// ProcessTransaction applies one validated record and returns the median
// degree of the window after it. ok is false when the record was
// rejected-stale, in which case nothing is emitted.
func (t *Tracker) ProcessTransaction(actor, target string, ts time.Time) (float64, bool) {
	res := t.Process(types.Transaction{Actor: actor, Target: target, Timestamp: ts})
	return res.Median, res.Accepted
}

// Process is ProcessTransaction with the full window view attached.
func (t *Tracker) Process(tx types.Transaction) Result {
	if !t.store.Insert(tx) {
		t.stale++
		wm, _ := t.store.Watermark()
		slog.Debug("tracker: rejected stale transaction",
			"actor", tx.Actor,
			"target", tx.Target,
			"created_time", tx.Timestamp,
			"watermark", wm,
		)
		return Result{
			Watermark:    wm,
			WindowLen:    t.store.Len(),
			Participants: t.store.Tally().Len(),
		}
	}
	t.accepted++

	// An accepted insert always leaves at least its own two endpoints in the
	// tally, so the median is defined here.
	m, _ := t.engine.Median()
	t.lastMedian, t.hasMedian = m, true

	wm, _ := t.store.Watermark()
	return Result{
		Accepted:     true,
		Median:       m,
		Watermark:    wm,
		WindowLen:    t.store.Len(),
		Participants: t.store.Tally().Len(),
	}
}

// Median returns the median of the current window without mutating it.
func (t *Tracker) Median() (float64, bool) {
	return t.engine.Median()
}

// Degrees returns a copy of the current participant → degree tally.
func (t *Tracker) Degrees() map[string]int {
	return t.store.Degrees()
}

// Transactions returns the in-window transactions in timestamp order.
func (t *Tracker) Transactions() []types.Transaction {
	return t.store.Transactions()
}

// Window returns the configured window length.
func (t *Tracker) Window() time.Duration {
	return t.store.Window()
}

// Stats returns the tracker counters.
func (t *Tracker) Stats() Stats {
	wm, ok := t.store.Watermark()
	return Stats{
		Accepted:     t.accepted,
		Stale:        t.stale,
		WindowLen:    t.store.Len(),
		Participants: t.store.Tally().Len(),
		Watermark:    wm,
		HasWatermark: ok,
		LastMedian:   t.lastMedian,
		HasMedian:    t.hasMedian,
	}
}
