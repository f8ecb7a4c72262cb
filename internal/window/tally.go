package window

// Tally maps a participant to its current degree: the number of transaction
// endpoints attributed to it inside the window.
type Tally struct {
	counts map[string]int
}

// NewTally returns an empty Tally.
func NewTally() *Tally {
	return &Tally{counts: make(map[string]int)}
}

// Inc adds one endpoint for id.
func (t *Tally) Inc(id string) {
	t.counts[id]++
}

// Dec removes one endpoint for id. The entry is deleted when it reaches zero
// so absent participants never show up in a median.
func (t *Tally) Dec(id string) {
	n, ok := t.counts[id]
	if !ok {
		return
	}
	if n <= 1 {
		delete(t.counts, id)
		return
	}
	t.counts[id] = n - 1
}

// Get returns the degree of id, 0 if absent.
func (t *Tally) Get(id string) int {
	return t.counts[id]
}

// Len returns the number of participants with a non-zero degree.
func (t *Tally) Len() int {
	return len(t.counts)
}

// Values returns the degrees in unspecified order. The slice is freshly
// allocated and owned by the caller.
func (t *Tally) Values() []int {
	out := make([]int, 0, len(t.counts))
	for _, n := range t.counts {
		out = append(out, n)
	}
	return out
}

// Snapshot returns a copy of the participant → degree mapping.
func (t *Tally) Snapshot() map[string]int {
	out := make(map[string]int, len(t.counts))
	for id, n := range t.counts {
		out[id] = n
	}
	return out
}

func (t *Tally) add(actor, target string) {
	t.Inc(actor)
	t.Inc(target)
}

func (t *Tally) remove(actor, target string) {
	t.Dec(actor)
	t.Dec(target)
}
