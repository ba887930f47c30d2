package codegen

// RegTracker remembers which variable's value, if any, a register
// currently holds so the expression generator can skip a reload it
// already knows is redundant. Grounded on the teacher's register
// allocator bookkeeping (lang/ygen tracks which YAPL register last
// loaded which symbol for the same reason); retargeted from the
// teacher's general-purpose r0-r7 bank to the 8080's small, unevenly
// capable set (A, HL, DE, BC), each with different addressing
// privileges, so the tracker is keyed by register name rather than
// number and any write through a register invalidates just that slot.
type RegTracker struct {
	holds map[string]string // register name -> symbol label currently cached there
}

// NewRegTracker creates an empty tracker.
func NewRegTracker() *RegTracker {
	return &RegTracker{holds: map[string]string{}}
}

// Holds reports whether reg currently caches label's value.
func (r *RegTracker) Holds(reg, label string) bool {
	return r.holds[reg] == label
}

// Set records that reg now holds label's value.
func (r *RegTracker) Set(reg, label string) {
	r.holds[reg] = label
}

// Invalidate forgets any cached value for label, wherever it is held; a
// store to that variable makes every other register's cached copy
// (there should be at most one, but the check is cheap) stale too.
func (r *RegTracker) Invalidate(label string) {
	for reg, held := range r.holds {
		if held == label {
			delete(r.holds, reg)
		}
	}
}

// ClobberAll forgets every cached value, used before a CALL: the callee
// may write to any static variable, including ones currently cached.
func (r *RegTracker) ClobberAll() {
	r.holds = map[string]string{}
}
