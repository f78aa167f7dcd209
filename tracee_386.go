//go:build linux && 386

package tracker

import (
	"github.com/pkg/errors"
	"golang.org/x/sys/unix"
)

// InstructionPointer implements Tracee on i386: the instruction pointer
// lives in Regs.Eip.
func (t *PtraceTracee) InstructionPointer() (uintptr, error) {
	var regs unix.PtraceRegs
	if err := unix.PtraceGetRegs(t.pid, &regs); err != nil {
		return 0, errors.Wrapf(newError(TracerFailure, "GETREGS failed"), "%v", err)
	}
	return uintptr(regs.Eip), nil
}
