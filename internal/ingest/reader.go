package ingest

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"

	"github.com/txgraph/rollingmedian/pkg/types"
)

// DefaultMaxLineBytes caps the length of a single input line.
const DefaultMaxLineBytes = 1 << 20

// Stats counts what a Reader saw.
type Stats struct {
	Lines     int
	Valid     int
	Malformed int
}

// Handler receives each valid transaction in input order. A non-nil error
// stops the Reader.
type Handler func(ctx context.Context, tx types.Transaction) error

// MalformedFunc is told about each skipped line as it is skipped. line is
// 1-based.
type MalformedFunc func(line int, err error)

// Reader scans newline-delimited records and hands valid ones to a Handler.
type Reader struct {
	maxLine     int
	onMalformed MalformedFunc
}

// NewReader returns a Reader accepting lines up to maxLine bytes.
// A non-positive maxLine falls back to DefaultMaxLineBytes.
func NewReader(maxLine int) *Reader {
	if maxLine <= 0 {
		maxLine = DefaultMaxLineBytes
	}
	return &Reader{maxLine: maxLine}
}

// OnMalformed registers fn to run for every malformed line and returns rd.
func (rd *Reader) OnMalformed(fn MalformedFunc) *Reader {
	rd.onMalformed = fn
	return rd
}

// Run reads r to EOF, calling h for every valid line. Malformed lines are
// skipped. Run stops early if ctx is cancelled or h returns an error.
func (rd *Reader) Run(ctx context.Context, r io.Reader, h Handler) (Stats, error) {
	var st Stats

	sc := bufio.NewScanner(r)
	sc.Buffer(make([]byte, 0, min(64*1024, rd.maxLine)), rd.maxLine)

	for sc.Scan() {
		if err := ctx.Err(); err != nil {
			return st, err
		}
		st.Lines++

		tx, err := Decode(sc.Bytes())
		if err != nil {
			st.Malformed++
			slog.Debug("ingest: skipping malformed line", "line", st.Lines, "err", err)
			if rd.onMalformed != nil {
				rd.onMalformed(st.Lines, err)
			}
			continue
		}
		st.Valid++

		if err := h(ctx, tx); err != nil {
			return st, err
		}
	}
	if err := sc.Err(); err != nil {
		return st, fmt.Errorf("ingest: scan line %d: %w", st.Lines+1, err)
	}
	return st, nil
}
