// Package mocktracee provides a scripted tracker.Tracee for tests, so the
// tracing loop can be exercised without a real ptrace-supervised process.
package mocktracee

import "tracker"

// Step is one scripted step of a mock trace: the instruction pointer the
// tracee reports and the 16-byte window ReadBytes should return for it.
type Step struct {
	IP     uintptr
	Window [16]byte
}

// Tracee replays a scripted sequence of Steps, then reports the tracee
// exited.
type Tracee struct {
	Steps   []Step
	index   int
	stepped bool
	detach  bool
}

var _ tracker.Tracee = (*Tracee)(nil)

// Wait implements tracker.Tracee: reports "not exited" while steps remain,
// "exited" once they're exhausted.
func (t *Tracee) Wait() (tracker.WaitStatus, error) {
	if t.index >= len(t.Steps) {
		return tracker.WaitStatus{Exited: true}, nil
	}
	return tracker.WaitStatus{}, nil
}

// InstructionPointer implements tracker.Tracee.
func (t *Tracee) InstructionPointer() (uintptr, error) {
	if t.index >= len(t.Steps) {
		return 0, nil
	}
	return t.Steps[t.index].IP, nil
}

// ReadBytes implements tracker.Tracee, ignoring addr/n and returning the
// scripted window for the current step.
func (t *Tracee) ReadBytes(addr uintptr, n int) ([]byte, error) {
	if t.index >= len(t.Steps) {
		return make([]byte, n), nil
	}
	w := t.Steps[t.index].Window
	buf := make([]byte, n)
	copy(buf, w[:])
	return buf, nil
}

// Step implements tracker.Tracee, advancing to the next scripted step.
func (t *Tracee) Step() error {
	t.index++
	t.stepped = true
	return nil
}

// Detach implements tracker.Tracee.
func (t *Tracee) Detach() error {
	t.detach = true
	return nil
}

// Detached reports whether Detach was called.
func (t *Tracee) Detached() bool { return t.detach }
