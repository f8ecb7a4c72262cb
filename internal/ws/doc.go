// Package ws implements the WebSocket hub for rolling-median-server.
//
// Hub manages a set of connected clients. It sends the full window snapshot
// on connect and on every broadcast tick, and pushes one "median" event per
// emission as a stream.Sink.
//
// Message format sent to clients:
//
//	{"event": "snapshot", "data": { /* same schema as GET /api/v1/snapshot */ }}
//	{"event": "median",   "data": { /* types.Emission */ }}
//
// Emit never blocks the processor: a client whose send buffer is full is
// disconnected. The upgrader accepts all origins; apply CORS restrictions at
// the reverse proxy. The server mounts the hub at /ws/stream.
package ws
