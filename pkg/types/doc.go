// Package types defines the shared value types that flow between the ingest,
// tracker and output layers: Transaction (one validated input record) and
// Emission (one rolling median produced for an accepted record).
package types
