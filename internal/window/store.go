package window

import (
	"slices"
	"sort"
	"time"

	"github.com/txgraph/rollingmedian/pkg/types"
)

// DefaultWindow is the trailing window length used when none is configured.
const DefaultWindow = 60 * time.Second

// Store is the ordered set of in-window transactions plus the degree tally
// derived from it.
type Store struct {
	window    time.Duration
	items     []types.Transaction // ascending by Timestamp, stable on ties
	watermark time.Time
	seen      bool // false until the first accepted insert sets the watermark
	tally     *Tally
}

// New returns an empty Store with the given window length.
// A non-positive window falls back to DefaultWindow.
func New(window time.Duration) *Store {
	if window <= 0 {
		window = DefaultWindow
	}
	return &Store{
		window: window,
		tally:  NewTally(),
	}
}

// Insert applies t to the window and reports whether t was stored.
//
// The watermark advances to t.Timestamp if t is newer, entries that fall out
// of the window are evicted, and t is placed in timestamp order. If t is
// already a full window behind the watermark it is rejected and nothing about
// the store changes.
func (s *Store) Insert(t types.Transaction) bool {
	if s.seen && s.stale(t.Timestamp) {
		return false
	}

	if !s.seen || t.Timestamp.After(s.watermark) {
		s.watermark = t.Timestamp
		s.seen = true
		s.evict()
	}

	// Upper bound keeps equal timestamps in arrival order.
	i := sort.Search(len(s.items), func(i int) bool {
		return s.items[i].Timestamp.After(t.Timestamp)
	})
	s.items = slices.Insert(s.items, i, t)
	s.tally.add(t.Actor, t.Target)
	return true
}

// evict drops every transaction at least one window older than the watermark
// and returns how many were removed.
func (s *Store) evict() int {
	n := 0
	for n < len(s.items) && s.stale(s.items[n].Timestamp) {
		s.tally.remove(s.items[n].Actor, s.items[n].Target)
		n++
	}
	if n == 0 {
		return 0
	}
	// Shift down and clear the vacated tail so evicted strings can be collected.
	kept := copy(s.items, s.items[n:])
	clear(s.items[kept:])
	s.items = s.items[:kept]
	return n
}

// stale reports whether ts lies outside the window ending at the watermark.
func (s *Store) stale(ts time.Time) bool {
	return s.watermark.Sub(ts) >= s.window
}

// Len returns the number of in-window transactions.
func (s *Store) Len() int {
	return len(s.items)
}

// Watermark returns the newest timestamp inserted so far and false if the
// store has never accepted a transaction.
func (s *Store) Watermark() (time.Time, bool) {
	return s.watermark, s.seen
}

// Window returns the configured window length.
func (s *Store) Window() time.Duration {
	return s.window
}

// Tally returns the live degree tally. Callers must not mutate it.
func (s *Store) Tally() *Tally {
	return s.tally
}

// Degrees returns a copy of the participant → degree mapping.
func (s *Store) Degrees() map[string]int {
	return s.tally.Snapshot()
}

// Transactions returns a copy of the in-window transactions in order.
func (s *Store) Transactions() []types.Transaction {
	return slices.Clone(s.items)
}
