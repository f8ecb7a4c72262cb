package stream

import (
	"context"
	"fmt"
	"io"
	"sort"
	"sync"
	"time"

	"github.com/txgraph/rollingmedian/internal/ingest"
	"github.com/txgraph/rollingmedian/internal/tracker"
	"github.com/txgraph/rollingmedian/pkg/types"
)

// Sink receives every emission in acceptance order.
type Sink interface {
	Emit(ctx context.Context, e types.Emission) error
}

// SinkFunc adapts a function to Sink.
type SinkFunc func(ctx context.Context, e types.Emission) error

// Emit calls f.
func (f SinkFunc) Emit(ctx context.Context, e types.Emission) error { return f(ctx, e) }

// Status classifies what happened to one input record.
type Status string

const (
	StatusAccepted  Status = "accepted"
	StatusStale     Status = "stale"
	StatusMalformed Status = "malformed"
)

// Outcome describes one processed record. Emission is set only for accepted
// records; Err only for malformed ones.
type Outcome struct {
	Status   Status
	Emission *types.Emission
	Err      error
}

// Stats merges tracker counters with ingest counters.
type Stats struct {
	tracker.Stats
	Lines     uint64
	Malformed uint64
	Emitted   uint64
	Window    time.Duration
}

// Degree is one participant's current degree.
type Degree struct {
	Participant string
	Degree      int
}

// View is a consistent copy of the window state.
type View struct {
	Stats        Stats
	Median       float64
	HasMedian    bool
	Degrees      []Degree // sorted by participant
	Transactions []types.Transaction
}

// Processor serialises records through a tracker and fans emissions out.
//
// All exported methods are safe for concurrent use.
type Processor struct {
	mu        sync.Mutex
	tracker   *tracker.Tracker
	reader    *ingest.Reader
	sinks     []Sink
	seq       uint64
	lines     uint64
	malformed uint64
}

// New returns a Processor with the given window and maximum input line size.
func New(win time.Duration, maxLine int, sinks ...Sink) *Processor {
	p := &Processor{
		tracker: tracker.New(win),
		sinks:   sinks,
	}
	p.reader = ingest.NewReader(maxLine).OnMalformed(p.countMalformed)
	return p
}

// countMalformed records one line the reader skipped.
func (p *Processor) countMalformed(int, error) {
	p.mu.Lock()
	p.lines++
	p.malformed++
	p.mu.Unlock()
}

// AddSink registers s for all subsequent emissions.
func (p *Processor) AddSink(s Sink) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.sinks = append(p.sinks, s)
}

// Process feeds one validated transaction through the tracker.
func (p *Processor) Process(ctx context.Context, tx types.Transaction) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines++
	return p.process(ctx, tx)
}

// ProcessLine decodes one raw input line and processes it. Malformed lines
// are reported in the Outcome, not as an error.
func (p *Processor) ProcessLine(ctx context.Context, line []byte) (Outcome, error) {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.lines++

	tx, err := ingest.Decode(line)
	if err != nil {
		p.malformed++
		return Outcome{Status: StatusMalformed, Err: err}, nil
	}
	return p.process(ctx, tx)
}

// Run reads newline-delimited records from r until EOF, ctx cancellation or
// a sink failure.
func (p *Processor) Run(ctx context.Context, r io.Reader) (ingest.Stats, error) {
	return p.reader.Run(ctx, r, func(ctx context.Context, tx types.Transaction) error {
		_, err := p.Process(ctx, tx)
		return err
	})
}

// process must be called with p.mu held.
func (p *Processor) process(ctx context.Context, tx types.Transaction) (Outcome, error) {
	res := p.tracker.Process(tx)
	if !res.Accepted {
		return Outcome{Status: StatusStale}, nil
	}

	p.seq++
	e := types.Emission{
		Seq:          p.seq,
		Transaction:  tx,
		Median:       res.Median,
		Watermark:    res.Watermark,
		WindowLen:    res.WindowLen,
		Participants: res.Participants,
	}
	for _, s := range p.sinks {
		if err := s.Emit(ctx, e); err != nil {
			return Outcome{Status: StatusAccepted, Emission: &e}, fmt.Errorf("stream: emit seq %d: %w", e.Seq, err)
		}
	}
	return Outcome{Status: StatusAccepted, Emission: &e}, nil
}

// Stats returns the current counters.
func (p *Processor) Stats() Stats {
	p.mu.Lock()
	defer p.mu.Unlock()
	return p.stats()
}

func (p *Processor) stats() Stats {
	return Stats{
		Stats:     p.tracker.Stats(),
		Lines:     p.lines,
		Malformed: p.malformed,
		Emitted:   p.seq,
		Window:    p.tracker.Window(),
	}
}

// View returns a consistent copy of the window, tally and median.
func (p *Processor) View() View {
	p.mu.Lock()
	defer p.mu.Unlock()

	m, ok := p.tracker.Median()
	degrees := p.tracker.Degrees()
	out := View{
		Stats:        p.stats(),
		Median:       m,
		HasMedian:    ok,
		Degrees:      make([]Degree, 0, len(degrees)),
		Transactions: p.tracker.Transactions(),
	}
	for id, n := range degrees {
		out.Degrees = append(out.Degrees, Degree{Participant: id, Degree: n})
	}
	sort.Slice(out.Degrees, func(i, j int) bool {
		return out.Degrees[i].Participant < out.Degrees[j].Participant
	})
	return out
}
