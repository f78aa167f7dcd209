package tracker

// Trace is an append-only, ordered sequence of instruction handles. It does
// not own the Instructions it holds — those are owned by the Store the
// engine is also feeding; Trace only records the order they executed in.
type Trace struct {
	handles []*Instruction
}

// NewTrace returns an empty trace.
func NewTrace() *Trace {
	return &Trace{}
}

// Append adds instr to the tail of the trace. It fails with
// InvalidArgument if either t or instr is nil.
func (t *Trace) Append(instr *Instruction) error {
	if t == nil || instr == nil {
		return newError(InvalidArgument, "trace and instruction must be non-nil")
	}
	t.handles = append(t.handles, instr)
	return nil
}

// Get returns the handle at the 1-based position index, or nil if index is
// out of range. A zero or negative index is an InvalidArgument error.
func (t *Trace) Get(index int) (*Instruction, error) {
	if index < 1 {
		return nil, newError(InvalidArgument, "index must be >= 1, got %d", index)
	}
	if t == nil || index > len(t.handles) {
		return nil, nil
	}
	return t.handles[index-1], nil
}

// Length returns the number of instructions appended so far.
func (t *Trace) Length() int {
	if t == nil {
		return 0
	}
	return len(t.handles)
}

// Compare returns 0 if t1 and t2 hold element-wise identical handle
// sequences, else the 1-based position at which they first differ. Two
// empty traces are identical sequences and compare equal (spec.md §8:
// Compare(t, t) == 0 for any trace t, empty included); the tie-break to
// position 1 only applies when exactly one of the two is empty.
func Compare(t1, t2 *Trace) int {
	if t1 == nil || t2 == nil {
		return 1
	}
	if t1.Length() == 0 && t2.Length() == 0 {
		return 0
	}
	if t1.Length() == 0 || t2.Length() == 0 {
		return 1
	}

	n := t1.Length()
	if t2.Length() < n {
		n = t2.Length()
	}

	for i := 0; i < n; i++ {
		if t1.handles[i] != t2.handles[i] {
			return i + 1
		}
	}

	if t1.Length() != t2.Length() {
		return n + 1
	}

	return 0
}
