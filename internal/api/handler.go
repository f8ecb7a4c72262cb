package api

import (
	"bufio"
	"encoding/json"
	"log/slog"
	"net/http"
	"time"

	"github.com/txgraph/rollingmedian/internal/alerts"
	"github.com/txgraph/rollingmedian/internal/ingest"
	"github.com/txgraph/rollingmedian/internal/stream"
)

// maxIngestBody caps the size of one POST /api/v1/transactions body.
const maxIngestBody = 8 << 20

// Handler is the HTTP handler for all /api/v1/* endpoints.
type Handler struct {
	proc    *stream.Processor
	alerts  *alerts.Engine
	mux     *http.ServeMux
	maxLine int
}

// New creates a Handler wired to proc and registers all routes.
// alertEngine may be nil. A non-positive maxLine uses ingest.DefaultMaxLineBytes.
func New(proc *stream.Processor, alertEngine *alerts.Engine, maxLine int) *Handler {
	if maxLine <= 0 {
		maxLine = ingest.DefaultMaxLineBytes
	}
	h := &Handler{proc: proc, alerts: alertEngine, mux: http.NewServeMux(), maxLine: maxLine}

	h.mux.HandleFunc("/api/v1/health", h.health)
	h.mux.HandleFunc("/api/v1/median", h.median)
	h.mux.HandleFunc("/api/v1/degrees", h.degrees)
	h.mux.HandleFunc("/api/v1/window", h.window)
	h.mux.HandleFunc("/api/v1/snapshot", h.snapshot)
	h.mux.HandleFunc("/api/v1/alerts", h.listAlerts)
	h.mux.HandleFunc("/api/v1/diagnostics", h.diagnostics)
	h.mux.HandleFunc("/api/v1/transactions", h.ingest)

	return h
}

func (h *Handler) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	h.mux.ServeHTTP(w, r)
}

// --- route handlers ---------------------------------------------------------

func (h *Handler) health(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	st := h.proc.Stats()
	resp := HealthResponse{
		Status:        "ok",
		WindowSeconds: st.Window.Seconds(),
		Lines:         st.Lines,
		Accepted:      st.Accepted,
		Stale:         st.Stale,
		Malformed:     st.Malformed,
		WindowLen:     st.WindowLen,
		Participants:  st.Participants,
	}
	if st.HasWatermark {
		resp.Watermark = st.Watermark.Format(time.RFC3339)
	}
	if h.alerts != nil {
		resp.AlertCount = len(h.alerts.Active())
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) median(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	v := h.proc.View()
	resp := MedianResponse{Participants: len(v.Degrees)}
	if v.HasMedian {
		m := v.Median
		resp.Median = &m
	}
	if v.Stats.HasWatermark {
		resp.Watermark = v.Stats.Watermark.Format(time.RFC3339)
	}
	jsonResp(w, http.StatusOK, resp)
}

func (h *Handler) degrees(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, toDegrees(h.proc.View().Degrees))
}

func (h *Handler) window(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	txs := h.proc.View().Transactions
	out := make([]TransactionResponse, 0, len(txs))
	for _, tx := range txs {
		out = append(out, TransactionResponse{
			Actor:       tx.Actor,
			Target:      tx.Target,
			CreatedTime: tx.Timestamp.Format(time.RFC3339),
		})
	}
	jsonResp(w, http.StatusOK, out)
}

func (h *Handler) snapshot(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, BuildSnapshot(h.proc))
}

func (h *Handler) listAlerts(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	if h.alerts == nil {
		jsonResp(w, http.StatusOK, []*alerts.Alert{})
		return
	}
	jsonResp(w, http.StatusOK, h.alerts.Active())
}

func (h *Handler) diagnostics(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodGet {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}
	jsonResp(w, http.StatusOK, computeDiagnostics(h.proc.Stats()))
}

// ingest handles POST /api/v1/transactions. Each body line is processed in
// order; malformed and stale lines are reported but do not fail the request.
func (h *Handler) ingest(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		jsonErr(w, http.StatusMethodNotAllowed, "method not allowed")
		return
	}

	body := http.MaxBytesReader(w, r.Body, maxIngestBody)
	sc := bufio.NewScanner(body)
	sc.Buffer(make([]byte, 0, min(64*1024, h.maxLine)), h.maxLine)

	resp := IngestResponse{Results: []LineResult{}}
	line := 0
	for sc.Scan() {
		line++
		out, err := h.proc.ProcessLine(r.Context(), sc.Bytes())
		if err != nil {
			slog.Error("api: emission failed", "line", line, "err", err)
			jsonErr(w, http.StatusInternalServerError, "emission failed")
			return
		}

		res := LineResult{Line: line, Status: string(out.Status)}
		switch out.Status {
		case stream.StatusAccepted:
			m := out.Emission.Median
			res.Median = &m
			res.Seq = out.Emission.Seq
			resp.Accepted++
		case stream.StatusStale:
			resp.Stale++
		case stream.StatusMalformed:
			res.Error = out.Err.Error()
			resp.Malformed++
		}
		resp.Results = append(resp.Results, res)
	}
	if err := sc.Err(); err != nil {
		jsonErr(w, http.StatusBadRequest, "read body: "+err.Error())
		return
	}

	jsonResp(w, http.StatusOK, resp)
}

// --- shared builders --------------------------------------------------------

// ViewSource is implemented by stream.Processor.
type ViewSource interface {
	View() stream.View
}

// BuildSnapshot assembles the full snapshot payload from src.
func BuildSnapshot(src ViewSource) SnapshotResponse {
	v := src.View()
	resp := SnapshotResponse{
		Degrees:     toDegrees(v.Degrees),
		WindowLen:   v.Stats.WindowLen,
		Accepted:    v.Stats.Accepted,
		Stale:       v.Stats.Stale,
		GeneratedAt: time.Now().UTC().Format(time.RFC3339),
	}
	if v.HasMedian {
		m := v.Median
		resp.Median = &m
	}
	if v.Stats.HasWatermark {
		resp.Watermark = v.Stats.Watermark.Format(time.RFC3339)
	}
	return resp
}

func toDegrees(in []stream.Degree) []DegreeResponse {
	out := make([]DegreeResponse, 0, len(in))
	for _, d := range in {
		out = append(out, DegreeResponse{Participant: d.Participant, Degree: d.Degree})
	}
	return out
}

// --- response helpers -------------------------------------------------------

func jsonResp(w http.ResponseWriter, code int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(code)
	if err := json.NewEncoder(w).Encode(v); err != nil {
		slog.Warn("api: encode response failed", "err", err)
	}
}

func jsonErr(w http.ResponseWriter, code int, msg string) {
	jsonResp(w, code, errorResponse{Error: msg})
}
