//go:build linux && amd64

package tracker

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// InstructionPointer implements Tracee on x86-64: the instruction pointer
// lives in Regs.Rip.
func (t *PtraceTracee) InstructionPointer() (uintptr, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(t.pid, &regs); err != nil {
		return 0, errors.Wrapf(newError(TracerFailure, "GETREGS failed"), "%v", err)
	}
	return uintptr(regs.Rip), nil
}
