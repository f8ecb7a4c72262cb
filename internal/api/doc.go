// Package api implements the REST API for rolling-median-server.
//
// Endpoints (all JSON):
//
//	GET  /api/v1/health        counters, watermark and window length
//	GET  /api/v1/median        current median ({"median": null} when empty)
//	GET  /api/v1/degrees       participant degrees, sorted by participant
//	GET  /api/v1/window        in-window transactions in timestamp order
//	GET  /api/v1/snapshot      median + degrees + counters in one payload
//	GET  /api/v1/alerts        firing and recently resolved alerts
//	GET  /api/v1/diagnostics   plain-language hints about stale and malformed input
//	POST /api/v1/transactions  newline-delimited JSON records; per-line outcomes
//
// BuildSnapshot is shared with the WebSocket hub so both surfaces send the
// same schema. Authentication is applied by the caller with auth.APIKey.
package api
