// Package tracker is the ingestion coordinator for the rolling median.
//
// A Tracker owns one window.Store and one median.Engine reading its tally.
// ProcessTransaction feeds one validated record through the store and, when
// the record is accepted, returns the freshly computed median. Records that
// are already a full window behind the watermark are rejected-stale: they
// leave the store untouched and produce no median.
//
// Trackers hold no package-level state and are not safe for concurrent use;
// stream.Processor serialises access for the server.
package tracker
