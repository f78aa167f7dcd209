package tracker

// Kind classifies an Instruction by the control-flow effect its opcode
// bytes imply. Classification is a pure function of (opcodes, size,
// mnemonic); see classify below.
type Kind uint8

const (
	// Basic is any instruction that does not alter control flow.
	Basic Kind = iota
	// Branch is a conditional jump (short or near Jcc).
	Branch
	// Call is a call instruction (direct, far or indirect).
	Call
	// Jump is an unconditional jump (direct, indirect or loop).
	Jump
	// Ret is a return instruction, with or without an immediate operand.
	Ret
)

func (k Kind) String() string {
	switch k {
	case Basic:
		return "BASIC"
	case Branch:
		return "BRANCH"
	case Call:
		return "CALL"
	case Jump:
		return "JUMP"
	case Ret:
		return "RET"
	default:
		return "UNKNOWN"
	}
}

// Instruction is an immutable record of one executed machine instruction:
// where it sits in the tracee's address space, the exact bytes the tracee
// executed there, and the control-flow class those bytes imply. A single
// Store owns the lifetime of every Instruction created during a run.
type Instruction struct {
	address  uintptr
	size     uint8
	opcodes  []byte
	kind     Kind
	mnemonic string
}

// NewInstruction builds an Instruction from a decoded step. It fails with
// InvalidArgument when size is zero or opcodes is empty, mirroring
// instr_new's errno=EINVAL case in the original implementation.
func NewInstruction(address uintptr, size uint8, opcodes []byte, mnemonic string) (*Instruction, error) {
	if size == 0 || len(opcodes) == 0 {
		return nil, newError(InvalidArgument, "instruction requires a non-zero size and opcodes")
	}

	// Instruction identity is (address, size, opcode bytes); copy the
	// bytes so later mutation of the caller's buffer can't corrupt a
	// record the store has already deduplicated against.
	owned := make([]byte, size)
	copy(owned, opcodes[:size])

	return &Instruction{
		address:  address,
		size:     size,
		opcodes:  owned,
		kind:     classify(owned, size, mnemonic),
		mnemonic: mnemonic,
	}, nil
}

// Address returns the address where the instruction was executed.
func (i *Instruction) Address() uintptr { return i.address }

// Size returns the number of opcode bytes the instruction occupies.
func (i *Instruction) Size() uint8 { return i.size }

// Opcodes returns the raw opcode bytes, of length Size().
func (i *Instruction) Opcodes() []byte { return i.opcodes }

// Kind returns the control-flow classification of the instruction.
func (i *Instruction) Kind() Kind { return i.kind }

// Mnemonic returns the decoder-supplied mnemonic text. Classification uses
// it only to disambiguate the REX-prefixed indirect call/jmp encodings
// below; the engine also prints it in the per-step log.
func (i *Instruction) Mnemonic() string { return i.mnemonic }

// sameIdentity reports whether two instructions share the dedup identity
// (address, size, opcode bytes) spec.md §4.C and design note "Deduplication
// identity" require.
func (i *Instruction) sameIdentity(other *Instruction) bool {
	if i.address != other.address || i.size != other.size {
		return false
	}
	for k := range i.opcodes {
		if i.opcodes[k] != other.opcodes[k] {
			return false
		}
	}
	return true
}

// classify applies the x86/x86-64 classification table of spec.md §4.A, in
// order, first match wins. The table must be reproduced exactly: it
// disambiguates near call (0xFF /2) from near jmp (0xFF /4) purely by
// total encoded size, and resolves the REX-prefixed indirect form (0x41
// 0xFF ...) by inspecting the decoder's mnemonic text.
func classify(opcodes []byte, size uint8, mnemonic string) Kind {
	b0 := opcodes[0]

	switch {
	case b0 >= 0x70 && b0 <= 0x7F:
		return Branch
	case b0 == 0x0F && len(opcodes) > 1 && opcodes[1] >= 0x80 && opcodes[1] <= 0x8F:
		return Branch
	}

	switch {
	case b0 == 0xE8 || b0 == 0x9A:
		return Call
	case b0 == 0xFF && (size == 2 || size == 3):
		return Call
	case b0 == 0x41 && len(opcodes) > 1 && opcodes[1] == 0xFF && containsFold(mnemonic, "call"):
		return Call
	}

	switch {
	case b0 >= 0xE9 && b0 <= 0xEB:
		return Jump
	case b0 == 0xFF && (size == 4 || size == 5):
		return Jump
	case b0 >= 0xE0 && b0 <= 0xE3:
		return Jump
	case b0 == 0x41 && len(opcodes) > 1 && opcodes[1] == 0xFF && containsFold(mnemonic, "jmp"):
		return Jump
	}

	switch {
	case (b0 == 0xC3 || b0 == 0xCB) && size == 1:
		return Ret
	case (b0 == 0xC2 || b0 == 0xCA) && size == 3:
		return Ret
	case b0 == 0xF3 && len(opcodes) > 1 && opcodes[1] == 0xC3 && size == 2:
		return Ret
	}

	return Basic
}

// containsFold is a tiny case-insensitive substring test; it avoids pulling
// in strings.ToLower allocations on the hot classification path. An empty
// mnemonic never matches, so a REX-prefixed 0xFF form with no mnemonic
// text is neither CALL nor JUMP.
func containsFold(haystack, needle string) bool {
	if haystack == "" {
		return false
	}
	hn, nn := len(haystack), len(needle)
	if nn == 0 || nn > hn {
		return false
	}
	for i := 0; i+nn <= hn; i++ {
		match := true
		for j := 0; j < nn; j++ {
			hc, nc := haystack[i+j], needle[j]
			if hc >= 'A' && hc <= 'Z' {
				hc += 'a' - 'A'
			}
			if nc >= 'A' && nc <= 'Z' {
				nc += 'a' - 'A'
			}
			if hc != nc {
				match = false
				break
			}
		}
		if match {
			return true
		}
	}
	return false
}
