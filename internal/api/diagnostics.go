package api

import (
	"fmt"

	"github.com/txgraph/rollingmedian/internal/stream"
)

// Thresholds for the stale and malformed ratio hints, in percent of lines.
const (
	staleWarnPct     = 5.0
	staleCriticalPct = 25.0
	malformedWarnPct = 1.0
	malformedCritPct = 10.0
)

// DiagnosticHint is one human-readable insight about the stream's health.
type DiagnosticHint struct {
	// Key is a stable machine-readable identifier.
	Key string `json:"key"`
	// Level is "ok" | "info" | "warning" | "critical".
	Level string `json:"level"`
	// Title is a short label.
	Title string `json:"title"`
	// Detail is the full explanation.
	Detail string `json:"detail"`
	// Value is an optional numeric value associated with this hint.
	Value *float64 `json:"value,omitempty"`
}

// computeDiagnostics derives hints from processor counters.
func computeDiagnostics(st stream.Stats) []DiagnosticHint {
	var hints []DiagnosticHint

	// ── Nothing seen yet ─────────────────────────────────────────────────────
	if st.Lines == 0 {
		return []DiagnosticHint{{
			Key:   "waiting",
			Level: "info",
			Title: "Waiting for transactions",
			Detail: "No records have been received yet. " +
				"POST JSON lines to /api/v1/transactions or set input.path to replay a file at startup.",
		}}
	}

	// ── Malformed input ──────────────────────────────────────────────────────
	if st.Malformed > 0 {
		pct := percent(st.Malformed, st.Lines)
		level := "info"
		switch {
		case pct >= malformedCritPct:
			level = "critical"
		case pct >= malformedWarnPct:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "malformed_lines",
			Level: level,
			Title: fmt.Sprintf("%.1f%% malformed", pct),
			Detail: fmt.Sprintf(
				"%d of %d lines could not be decoded and were skipped. "+
					"Each record needs non-empty actor and target and a created_time like 2016-04-07T03:33:19Z.",
				st.Malformed, st.Lines,
			),
			Value: &pct,
		})
	}

	// ── Late records outside the window ──────────────────────────────────────
	if st.Stale > 0 {
		pct := percent(st.Stale, st.Lines)
		level := "info"
		switch {
		case pct >= staleCriticalPct:
			level = "critical"
		case pct >= staleWarnPct:
			level = "warning"
		}
		hints = append(hints, DiagnosticHint{
			Key:   "stale_records",
			Level: level,
			Title: fmt.Sprintf("%.1f%% arrived too late", pct),
			Detail: fmt.Sprintf(
				"%d records were at least %s older than the newest timestamp seen and were ignored. "+
					"A high share usually means producers are badly out of sync or a backlog is being replayed out of order.",
				st.Stale, st.Window,
			),
			Value: &pct,
		})
	}

	if len(hints) == 0 {
		v := float64(st.WindowLen)
		hints = append(hints, DiagnosticHint{
			Key:   "healthy",
			Level: "ok",
			Title: "All clear",
			Detail: fmt.Sprintf(
				"%d transactions between %d participants are in the window. No late or malformed records.",
				st.WindowLen, st.Participants,
			),
			Value: &v,
		})
	}
	return hints
}

func percent(n, total uint64) float64 {
	if total == 0 {
		return 0
	}
	return float64(n) / float64(total) * 100
}
