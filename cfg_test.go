package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func mustInstr(t *testing.T, addr uintptr, size uint8, opcodes []byte, mnemonic string) *Instruction {
	t.Helper()
	instr, err := NewInstruction(addr, size, opcodes, mnemonic)
	require.NoError(t, err)
	return instr
}

// BASIC -> BASIC -> BASIC: the second and third nodes each get exactly one
// predecessor edge, and function_id is 0 throughout.
func TestCFGLinearBasicChain(t *testing.T) {
	store, err := NewStore(16)
	require.NoError(t, err)

	a := mustInstr(t, 0x1000, 3, []byte{0x48, 0x89, 0xE5}, "mov")
	b := mustInstr(t, 0x1003, 3, []byte{0x48, 0x89, 0xE5}, "mov")
	c := mustInstr(t, 0x1006, 3, []byte{0x48, 0x89, 0xE5}, "mov")

	cfg, nodeA, err := NewCFG(store, a)
	require.NoError(t, err)

	nodeB, err := cfg.Insert(nodeA, b)
	require.NoError(t, err)
	nodeC, err := cfg.Insert(nodeB, c)
	require.NoError(t, err)

	assert.EqualValues(t, 1, nodeB.InDegree())
	assert.EqualValues(t, 1, nodeC.InDegree())
	assert.EqualValues(t, 0, nodeA.FunctionID())
	assert.EqualValues(t, 0, nodeB.FunctionID())
	assert.EqualValues(t, 0, nodeC.FunctionID())
}

// BASIC(A) -> CALL(B) -> BASIC(C) -> RET(D) -> BASIC(E), where
// E.address == B.address + B.size: E must appear as a successor of B (not
// of D), the call stack empties out, C gets function_id 1, A and E stay
// at function_id 0.
func TestCFGCallRetPairing(t *testing.T) {
	store, err := NewStore(16)
	require.NoError(t, err)

	a := mustInstr(t, 0x1000, 3, []byte{0x48, 0x89, 0xE5}, "mov")
	bSize := uint8(5)
	b := mustInstr(t, 0x1003, bSize, []byte{0xE8, 0x00, 0x00, 0x00, 0x00}, "call")
	c := mustInstr(t, 0x2000, 3, []byte{0x48, 0x89, 0xE5}, "mov")
	d := mustInstr(t, 0x2003, 1, []byte{0xC3}, "ret")
	eAddr := b.Address() + uintptr(bSize)
	e := mustInstr(t, eAddr, 3, []byte{0x48, 0x89, 0xE5}, "mov")

	cfg, nodeA, err := NewCFG(store, a)
	require.NoError(t, err)

	nodeB, err := cfg.Insert(nodeA, b)
	require.NoError(t, err)
	nodeC, err := cfg.Insert(nodeB, c)
	require.NoError(t, err)
	nodeD, err := cfg.Insert(nodeC, d)
	require.NoError(t, err)
	nodeE, err := cfg.Insert(nodeD, e)
	require.NoError(t, err)

	// B's first successor is C (the called function's entry, linked when
	// the CALL was inserted); its second is E, appended on RET handling.
	require.Len(t, nodeB.Successors(), 2)
	assert.Same(t, nodeC, nodeB.Successors()[0])
	assert.Same(t, nodeE, nodeB.Successors()[1], "E must be linked as B's successor, not D's")
	assert.False(t, nodeD.hasSuccessor(nodeE), "E must not be linked from D")
	assert.Equal(t, 0, cfg.CallDepth())

	assert.EqualValues(t, 1, nodeC.FunctionID())
	assert.EqualValues(t, 0, nodeA.FunctionID())
	assert.EqualValues(t, 0, nodeE.FunctionID())
}

// BRANCH(X) -> Y, then BRANCH(X) -> Z: a third distinct successor must be
// refused so X never exceeds two outgoing edges.
func TestCFGBranchCapsAtTwoSuccessors(t *testing.T) {
	store, err := NewStore(16)
	require.NoError(t, err)

	x := mustInstr(t, 0x1000, 2, []byte{0x74, 0x05}, "je")
	y := mustInstr(t, 0x1002, 1, []byte{0x90}, "nop")
	z := mustInstr(t, 0x1007, 1, []byte{0x90}, "nop")
	w := mustInstr(t, 0x1008, 1, []byte{0x90}, "nop")

	cfg, nodeX, err := NewCFG(store, x)
	require.NoError(t, err)

	_, err = cfg.Insert(nodeX, y)
	require.NoError(t, err)
	_, err = cfg.Insert(nodeX, z)
	require.NoError(t, err)
	_, err = cfg.Insert(nodeX, w)
	require.NoError(t, err)

	assert.Len(t, nodeX.Successors(), 2)
}

func TestCFGCallStackOverflowIsFatal(t *testing.T) {
	store, err := NewStore(16)
	require.NoError(t, err)

	entry := mustInstr(t, 0x1000, 1, []byte{0x90}, "nop")
	cfg, cur, err := NewCFGWithDepth(store, entry, 2)
	require.NoError(t, err)

	for i := 0; i < 2; i++ {
		call := mustInstr(t, uintptr(0x2000+i*0x10), 5, []byte{0xE8, 0x00, 0x00, 0x00, 0x00}, "call")
		next := mustInstr(t, uintptr(0x3000+i*0x10), 1, []byte{0x90}, "nop")
		cur, err = cfg.Insert(cur, call)
		require.NoError(t, err)
		cur, err = cfg.Insert(cur, next)
		require.NoError(t, err)
	}

	call := mustInstr(t, 0x4000, 5, []byte{0xE8, 0x00, 0x00, 0x00, 0x00}, "call")
	overflow := mustInstr(t, 0x5000, 1, []byte{0x90}, "nop")
	cur, err = cfg.Insert(cur, call)
	require.NoError(t, err)
	_, err = cfg.Insert(cur, overflow)

	assert.Equal(t, TracerFailure, Kind(err))
}
