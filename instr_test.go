package tracker

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewInstructionRejectsZeroSizeOrEmptyOpcodes(t *testing.T) {
	_, err := NewInstruction(0x1000, 0, []byte{0x90}, "nop")
	assert.Equal(t, InvalidArgument, Kind(err))

	_, err = NewInstruction(0x1000, 1, nil, "nop")
	assert.Equal(t, InvalidArgument, Kind(err))
}

func TestClassifyBranch(t *testing.T) {
	instr, err := NewInstruction(0x1000, 2, []byte{0x74, 0x05}, "je")
	require.NoError(t, err)
	assert.Equal(t, Branch, instr.Kind())

	instr, err = NewInstruction(0x2000, 6, []byte{0x0F, 0x84, 0x00, 0x00, 0x00, 0x00}, "je")
	require.NoError(t, err)
	assert.Equal(t, Branch, instr.Kind())
}

func TestClassifyCall(t *testing.T) {
	instr, err := NewInstruction(0x1000, 5, []byte{0xE8, 0x00, 0x00, 0x00, 0x00}, "call")
	require.NoError(t, err)
	assert.Equal(t, Call, instr.Kind())

	// 0xFF /2 near indirect call, disambiguated from /4 jmp purely by size.
	instr, err = NewInstruction(0x2000, 2, []byte{0xFF, 0xD0}, "call")
	require.NoError(t, err)
	assert.Equal(t, Call, instr.Kind())

	// REX-prefixed indirect call, disambiguated by mnemonic text.
	instr, err = NewInstruction(0x3000, 3, []byte{0x41, 0xFF, 0xD0}, "call r8")
	require.NoError(t, err)
	assert.Equal(t, Call, instr.Kind())
}

func TestClassifyJump(t *testing.T) {
	instr, err := NewInstruction(0x1000, 5, []byte{0xE9, 0x00, 0x00, 0x00, 0x00}, "jmp")
	require.NoError(t, err)
	assert.Equal(t, Jump, instr.Kind())

	// 0xFF /4 near indirect jmp.
	instr, err = NewInstruction(0x2000, 4, []byte{0xFF, 0x25, 0x00, 0x00}, "jmp")
	require.NoError(t, err)
	assert.Equal(t, Jump, instr.Kind())

	instr, err = NewInstruction(0x3000, 3, []byte{0x41, 0xFF, 0xE0}, "jmp r8")
	require.NoError(t, err)
	assert.Equal(t, Jump, instr.Kind())
}

func TestClassifyRet(t *testing.T) {
	instr, err := NewInstruction(0x1000, 1, []byte{0xC3}, "ret")
	require.NoError(t, err)
	assert.Equal(t, Ret, instr.Kind())

	instr, err = NewInstruction(0x2000, 3, []byte{0xC2, 0x04, 0x00}, "ret")
	require.NoError(t, err)
	assert.Equal(t, Ret, instr.Kind())

	instr, err = NewInstruction(0x3000, 2, []byte{0xF3, 0xC3}, "repz ret")
	require.NoError(t, err)
	assert.Equal(t, Ret, instr.Kind())
}

func TestClassifyBasicFallthrough(t *testing.T) {
	instr, err := NewInstruction(0x1000, 3, []byte{0x48, 0x89, 0xE5}, "mov rbp, rsp")
	require.NoError(t, err)
	assert.Equal(t, Basic, instr.Kind())
}

func TestSameIdentity(t *testing.T) {
	a, err := NewInstruction(0x1000, 2, []byte{0x90, 0x90}, "nop")
	require.NoError(t, err)
	b, err := NewInstruction(0x1000, 2, []byte{0x90, 0x90}, "nop")
	require.NoError(t, err)
	c, err := NewInstruction(0x1000, 2, []byte{0x90, 0x91}, "nop")
	require.NoError(t, err)

	assert.True(t, a.sameIdentity(b))
	assert.False(t, a.sameIdentity(c))
}
