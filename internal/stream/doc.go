// Package stream connects ingest, tracker and the output sinks.
//
// Processor owns one tracker.Tracker and serialises every record through it,
// so the tracker keeps exactly one writer even when the HTTP API and a file
// replay feed records at the same time. Each accepted record becomes a
// types.Emission, numbered in acceptance order and handed to every Sink in
// registration order. A Sink error aborts the current run.
package stream
