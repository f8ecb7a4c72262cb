// Package output writes rolling medians as text, one value per line.
package output

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"os"
	"path/filepath"
	"strconv"

	"github.com/txgraph/rollingmedian/pkg/types"
)

// DefaultPrecision is the number of decimals written per median (e.g. "1.50").
const DefaultPrecision = 2

// Format renders m with the given number of decimals.
func Format(m float64, precision int) string {
	if precision < 0 {
		precision = DefaultPrecision
	}
	return strconv.FormatFloat(m, 'f', precision, 64)
}

// Writer appends one formatted median per emission to an underlying writer.
// Output is buffered; call Close (or Flush) before reading the destination.
type Writer struct {
	w         *bufio.Writer
	closer    io.Closer
	precision int
	lines     int
}

// NewWriter wraps w. The caller keeps ownership of w.
func NewWriter(w io.Writer, precision int) *Writer {
	return &Writer{w: bufio.NewWriter(w), precision: precision}
}

// Create opens path for writing, creating missing parent directories, and
// truncates any existing file.
func Create(path string, precision int) (*Writer, error) {
	if dir := filepath.Dir(path); dir != "" {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("output: create dir: %w", err)
		}
	}
	f, err := os.Create(path)
	if err != nil {
		return nil, fmt.Errorf("output: create file: %w", err)
	}
	out := NewWriter(f, precision)
	out.closer = f
	return out, nil
}

// Emit writes e.Median on its own line.
func (o *Writer) Emit(_ context.Context, e types.Emission) error {
	if _, err := o.w.WriteString(Format(e.Median, o.precision)); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	if err := o.w.WriteByte('\n'); err != nil {
		return fmt.Errorf("output: write: %w", err)
	}
	o.lines++
	return nil
}

// Lines returns the number of medians written so far.
func (o *Writer) Lines() int {
	return o.lines
}

// Flush writes any buffered data to the destination.
func (o *Writer) Flush() error {
	if err := o.w.Flush(); err != nil {
		return fmt.Errorf("output: flush: %w", err)
	}
	return nil
}

// Close flushes and, for writers opened with Create, closes the file.
func (o *Writer) Close() error {
	err := o.Flush()
	if o.closer != nil {
		if cerr := o.closer.Close(); cerr != nil && err == nil {
			err = fmt.Errorf("output: close: %w", cerr)
		}
	}
	return err
}
