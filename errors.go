package tracker

import "github.com/pkg/errors"

// ErrKind classifies a failure the way the original C implementation used
// errno values: constructors and the tracing loop return one of these so a
// caller can decide whether the failure is recoverable.
type ErrKind int

const (
	// InvalidArgument marks a nil input, a zero size or an out-of-range index.
	InvalidArgument ErrKind = iota + 1
	// OutOfMemory marks an allocation failure.
	OutOfMemory
	// NotFound marks a missing executable file.
	NotFound
	// NotExecutable marks a file that isn't a regular, executable file.
	NotExecutable
	// NotELF marks a file whose magic bytes aren't the ELF magic.
	NotELF
	// UnsupportedArch marks an e_machine value that isn't x86-32 or x86-64.
	UnsupportedArch
	// TracerFailure marks a failed attach/step/read against the tracee.
	TracerFailure
	// DecoderFailure marks a decoder that returned a zero size on bytes
	// that were expected to form a valid instruction.
	DecoderFailure
)

func (k ErrKind) String() string {
	switch k {
	case InvalidArgument:
		return "invalid argument"
	case OutOfMemory:
		return "out of memory"
	case NotFound:
		return "not found"
	case NotExecutable:
		return "not executable"
	case NotELF:
		return "not an ELF file"
	case UnsupportedArch:
		return "unsupported architecture"
	case TracerFailure:
		return "tracer failure"
	case DecoderFailure:
		return "decoder failure"
	default:
		return "unknown error"
	}
}

// kindError pairs an ErrKind with the message that produced it so that
// errors.Cause() still resolves to something printable while Kind() gives
// callers a way to branch on the failure class (spec.md §7's propagation
// policy: DecoderFailure is recoverable, everything else during the main
// loop is fatal).
type kindError struct {
	kind ErrKind
	msg  string
}

func (e *kindError) Error() string {
	if e.msg == "" {
		return e.kind.String()
	}
	return e.kind.String() + ": " + e.msg
}

// newError builds an error carrying the given kind, wrapped so call-site
// context survives up to main via github.com/pkg/errors.
func newError(kind ErrKind, format string, args ...interface{}) error {
	base := &kindError{kind: kind}
	if format != "" {
		base.msg = errors.Errorf(format, args...).Error()
	}
	return errors.WithStack(base)
}

// Kind extracts the ErrKind carried by err, or 0 if err (or its cause
// chain) doesn't carry one.
func Kind(err error) ErrKind {
	if err == nil {
		return 0
	}
	if ke, ok := errors.Cause(err).(*kindError); ok {
		return ke.kind
	}
	return 0
}
