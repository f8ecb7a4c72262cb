// Package window holds the in-window transaction set and the live degree
// tally for the rolling median tracker.
//
// Store keeps transactions ordered by timestamp (arrival order for ties) and
// tracks the watermark, the newest timestamp ever inserted. A transaction is
// in-window iff watermark - timestamp < window; a transaction exactly one
// window old is evicted.
//
// Store.Insert advances the watermark, evicts stale entries from the oldest
// end, then places the new transaction at its ordered position. Every change
// is mirrored in the Tally: each transaction contributes one endpoint to its
// actor and one to its target, so a self-payment counts twice for the same
// participant. Participants whose count drops to zero are removed.
//
// Store is not safe for concurrent use. Callers serialise access.
package window
