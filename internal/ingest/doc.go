// Package ingest turns a line-oriented stream of JSON payment records into
// validated types.Transaction values.
//
// Each line must be a JSON object with non-empty "actor", "target" and
// "created_time" (YYYY-MM-DDTHH:MM:SSZ) fields. Decode reports why a line was
// rejected through wrapped sentinel errors; Reader skips such lines, logs them
// at debug level and counts them in Stats.
package ingest
