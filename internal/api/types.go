package api

// HealthResponse is the payload for GET /api/v1/health.
type HealthResponse struct {
	Status        string  `json:"status"`
	WindowSeconds float64 `json:"window_seconds"`
	Watermark     string  `json:"watermark,omitempty"` // RFC3339
	Lines         uint64  `json:"lines"`
	Accepted      uint64  `json:"accepted"`
	Stale         uint64  `json:"stale"`
	Malformed     uint64  `json:"malformed"`
	WindowLen     int     `json:"window_transactions"`
	Participants  int     `json:"participants"`
	AlertCount    int     `json:"alert_count"`
}

// MedianResponse is the payload for GET /api/v1/median.
// Median is null while the window is empty.
type MedianResponse struct {
	Median       *float64 `json:"median"`
	Participants int      `json:"participants"`
	Watermark    string   `json:"watermark,omitempty"`
}

// DegreeResponse is one participant entry in GET /api/v1/degrees.
type DegreeResponse struct {
	Participant string `json:"participant"`
	Degree      int    `json:"degree"`
}

// TransactionResponse is one in-window transaction in GET /api/v1/window.
type TransactionResponse struct {
	Actor       string `json:"actor"`
	Target      string `json:"target"`
	CreatedTime string `json:"created_time"` // RFC3339
}

// SnapshotResponse is the payload for GET /api/v1/snapshot and the data of
// every WebSocket "snapshot" event.
type SnapshotResponse struct {
	Median      *float64         `json:"median"`
	Degrees     []DegreeResponse `json:"degrees"`
	WindowLen   int              `json:"window_transactions"`
	Accepted    uint64           `json:"accepted"`
	Stale       uint64           `json:"stale"`
	Watermark   string           `json:"watermark,omitempty"`
	GeneratedAt string           `json:"generated_at"` // RFC3339
}

// LineResult is the outcome for one line of a POST /api/v1/transactions body.
type LineResult struct {
	Line   int      `json:"line"`
	Status string   `json:"status"` // accepted | stale | malformed
	Median *float64 `json:"median,omitempty"`
	Seq    uint64   `json:"seq,omitempty"`
	Error  string   `json:"error,omitempty"`
}

// IngestResponse is the payload for POST /api/v1/transactions.
type IngestResponse struct {
	Results   []LineResult `json:"results"`
	Accepted  int          `json:"accepted"`
	Stale     int          `json:"stale"`
	Malformed int          `json:"malformed"`
}

// errorResponse is a generic JSON error body.
type errorResponse struct {
	Error string `json:"error"`
}
