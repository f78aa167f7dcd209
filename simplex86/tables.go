package simplex86

import (
	"fmt"

	"tracker"
)

// opcodeEntry describes how many extra bytes follow an opcode (beyond any
// ModRM/SIB/displacement, already handled generically by the cursor) and
// how to render its mnemonic/operand text.
type opcodeEntry struct {
	mnemonic  string
	hasModRM  bool
	immSizeFn func(*cursor) int
	render    func(c *cursor, syntax tracker.Syntax) (string, string)
}

func noImm(*cursor) int { return 0 }
func imm8(*cursor) int  { return 1 }
func imm16(*cursor) int { return 2 }
func imm32(*cursor) int { return 4 }

// immFull returns the effective operand-size immediate (2 bytes under an
// 0x66 prefix, otherwise 4 — x86-64 never extends an immediate to 8 bytes
// except via MOV reg64,imm64, handled as a special case in the table).
func immFull(c *cursor) int {
	if c.opSize16 {
		return 2
	}
	return 4
}

func simpleEntry(mnemonic string, hasModRM bool, immSizeFn func(*cursor) int) opcodeEntry {
	return opcodeEntry{
		mnemonic:  mnemonic,
		hasModRM:  hasModRM,
		immSizeFn: immSizeFn,
		render: func(c *cursor, syntax tracker.Syntax) (string, string) {
			return mnemonic, genericOperand(c, syntax)
		},
	}
}

// ffGroupMnemonic resolves opcode 0xFF's mnemonic from the ModRM reg field
// (the /digit extension), since spec.md §4.A's REX-prefixed disambiguation
// depends on whether that text contains "call" or "jmp".
func ffGroupMnemonic(reg byte) string {
	switch reg {
	case 2:
		return "call"
	case 3:
		return "lcall"
	case 4:
		return "jmp"
	case 5:
		return "ljmp"
	case 6:
		return "push"
	default:
		return "inc"
	}
}

func ffGroupEntry() opcodeEntry {
	return opcodeEntry{
		hasModRM:  true,
		immSizeFn: noImm,
		render: func(c *cursor, syntax tracker.Syntax) (string, string) {
			reg := (c.modrm >> 3) & 0x07
			m := ffGroupMnemonic(reg)
			return m, genericOperand(c, syntax)
		},
	}
}

// group1ImmSize picks imm8 for the byte-operand form (0x80) and the
// sign-extended-byte form (0x83), and a full-width immediate for 0x81.
func group1ImmSize(op byte) func(*cursor) int {
	if op == 0x83 {
		return imm8
	}
	if op == 0x80 {
		return imm8
	}
	return immFull
}

// group3ImmSize covers TEST r/m, imm (reg field 0 or 1) vs the remaining
// /2../7 sub-opcodes, which take no immediate.
func group3ImmSize(wide bool) func(*cursor) int {
	return func(c *cursor) int {
		reg := (c.modrm >> 3) & 0x07
		if reg == 0 || reg == 1 {
			if wide {
				return immFull(c)
			}
			return 1
		}
		return 0
	}
}

func genericOperand(c *cursor, syntax tracker.Syntax) string {
	if !c.hasModRM {
		return ""
	}
	mod := c.modrm >> 6
	reg := (c.modrm >> 3) & 0x07
	rm := c.modrm & 0x07
	if syntax == tracker.Intel {
		if mod == 3 {
			return fmt.Sprintf("r%d, r%d", reg, rm)
		}
		return fmt.Sprintf("[r%d], r%d", rm, reg)
	}
	if mod == 3 {
		return fmt.Sprintf("%%r%d, %%r%d", rm, reg)
	}
	return fmt.Sprintf("(%%r%d), %%r%d", rm, reg)
}

// oneByteTable maps a one-byte opcode to how its length should be computed.
// It covers the instructions a typical userspace program's hot path
// exercises; anything not covered by a specific case but within the ALU
// group ranges falls through to the byte-range handling in consumeOpcode.
var oneByteTable = map[byte]opcodeEntry{
	0x68: simpleEntry("push", false, immFull),
	0x6A: simpleEntry("push", false, imm8),
	0x69: simpleEntry("imul", true, immFull),
	0x6B: simpleEntry("imul", true, imm8),

	0x80: {mnemonic: "grp1b", hasModRM: true, immSizeFn: group1ImmSize(0x80), render: renderGrp1},
	0x81: {mnemonic: "grp1", hasModRM: true, immSizeFn: group1ImmSize(0x81), render: renderGrp1},
	0x83: {mnemonic: "grp1", hasModRM: true, immSizeFn: group1ImmSize(0x83), render: renderGrp1},

	0x84: simpleEntry("test", true, noImm),
	0x85: simpleEntry("test", true, noImm),
	0x86: simpleEntry("xchg", true, noImm),
	0x87: simpleEntry("xchg", true, noImm),
	0x88: simpleEntry("mov", true, noImm),
	0x89: simpleEntry("mov", true, noImm),
	0x8A: simpleEntry("mov", true, noImm),
	0x8B: simpleEntry("mov", true, noImm),
	0x8D: simpleEntry("lea", true, noImm),
	0x8F: simpleEntry("pop", true, noImm),

	0x90: simpleEntry("nop", false, noImm),
	0x98: simpleEntry("cwde", false, noImm),
	0x99: simpleEntry("cdq", false, noImm),
	0x9C: simpleEntry("pushf", false, noImm),
	0x9D: simpleEntry("popf", false, noImm),

	0xA8: simpleEntry("test", false, imm8),
	0xA9: simpleEntry("test", false, immFull),

	0xC0: {mnemonic: "grp2b", hasModRM: true, immSizeFn: imm8, render: renderGeneric},
	0xC1: {mnemonic: "grp2", hasModRM: true, immSizeFn: imm8, render: renderGeneric},
	0xC2: simpleEntry("ret", false, imm16),
	0xC3: simpleEntry("ret", false, noImm),
	0xC6: {mnemonic: "mov", hasModRM: true, immSizeFn: imm8, render: renderGeneric},
	0xC7: {mnemonic: "mov", hasModRM: true, immSizeFn: immFull, render: renderGeneric},
	0xC9: simpleEntry("leave", false, noImm),
	0xCA: simpleEntry("lret", false, imm16),
	0xCB: simpleEntry("lret", false, noImm),
	0xCC: simpleEntry("int3", false, noImm),
	0xCD: simpleEntry("int", false, imm8),

	0xD0: simpleEntry("grp2", true, noImm),
	0xD1: simpleEntry("grp2", true, noImm),
	0xD2: simpleEntry("grp2", true, noImm),
	0xD3: simpleEntry("grp2", true, noImm),

	0xE0: simpleEntry("loopne", false, imm8),
	0xE1: simpleEntry("loope", false, imm8),
	0xE2: simpleEntry("loop", false, imm8),
	0xE3: simpleEntry("jrcxz", false, imm8),
	0xE8: simpleEntry("call", false, imm32),
	0xE9: simpleEntry("jmp", false, imm32),
	0xEB: simpleEntry("jmp", false, imm8),

	0xF4: simpleEntry("hlt", false, noImm),
	0xF5: simpleEntry("cmc", false, noImm),
	0xF6: {mnemonic: "grp3b", hasModRM: true, immSizeFn: group3ImmSize(false), render: renderGeneric},
	0xF7: {mnemonic: "grp3", hasModRM: true, immSizeFn: group3ImmSize(true), render: renderGeneric},
	0xF8: simpleEntry("clc", false, noImm),
	0xF9: simpleEntry("stc", false, noImm),
	0xFA: simpleEntry("cli", false, noImm),
	0xFB: simpleEntry("sti", false, noImm),
	0xFC: simpleEntry("cld", false, noImm),
	0xFD: simpleEntry("std", false, noImm),
	0xFE: simpleEntry("grp4", true, noImm),
	0xFF: ffGroupEntry(),
}

func renderGeneric(c *cursor, syntax tracker.Syntax) (string, string) {
	return "?", genericOperand(c, syntax)
}

func renderGrp1(c *cursor, syntax tracker.Syntax) (string, string) {
	names := []string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}
	reg := (c.modrm >> 3) & 0x07
	return names[reg], genericOperand(c, syntax)
}

// twoByteTable maps the second byte of an 0x0F-prefixed opcode.
var twoByteTable = map[byte]opcodeEntry{
	0x05: simpleEntry("syscall", false, noImm),
	0x1F: simpleEntry("nop", true, noImm),
	0xA2: simpleEntry("cpuid", false, noImm),
	0xAF: simpleEntry("imul", true, noImm),
	0xB6: simpleEntry("movzbl", true, noImm),
	0xB7: simpleEntry("movzwl", true, noImm),
	0xBE: simpleEntry("movsbl", true, noImm),
	0xBF: simpleEntry("movswl", true, noImm),
}

func jccTwoByteEntry() opcodeEntry {
	return opcodeEntry{
		mnemonic:  "jcc",
		hasModRM:  false,
		immSizeFn: immFull,
		render: func(c *cursor, syntax tracker.Syntax) (string, string) {
			return "jcc", ""
		},
	}
}

func setccTwoByteEntry() opcodeEntry {
	return opcodeEntry{
		mnemonic:  "setcc",
		hasModRM:  true,
		immSizeFn: noImm,
		render: func(c *cursor, syntax tracker.Syntax) (string, string) {
			return "setcc", genericOperand(c, syntax)
		},
	}
}

// consumeOpcode resolves the one-byte opcode (and, for the 0x0F escape,
// the second byte) into an opcodeEntry describing what follows it.
func (c *cursor) consumeOpcode() (opcodeEntry, bool) {
	if c.pos >= maxWindow {
		return opcodeEntry{}, false
	}
	op := c.buf[c.pos]
	c.pos++
	c.opcode = op

	if op == 0x0F {
		if c.pos >= maxWindow {
			return opcodeEntry{}, false
		}
		op2 := c.buf[c.pos]
		c.pos++
		c.opcode2 = op2
		c.twoByte = true

		switch {
		case op2 >= 0x80 && op2 <= 0x8F:
			return jccTwoByteEntry(), true
		case op2 >= 0x90 && op2 <= 0x9F:
			return setccTwoByteEntry(), true
		}
		if e, ok := twoByteTable[op2]; ok {
			return e, true
		}
		return opcodeEntry{mnemonic: "?", hasModRM: true, immSizeFn: noImm, render: renderGeneric}, true
	}

	// Short Jcc.
	if op >= 0x70 && op <= 0x7F {
		return simpleEntry("jcc", false, imm8), true
	}

	// LOOP*/JCXZ already listed explicitly above (0xE0-0xE3).

	// The classic ALU group: add/or/adc/sbb/and/sub/xor/cmp, each with
	// 8 sub-opcodes (reg/mem forms at +0..+3, accumulator-immediate at
	// +4..+5, with +6/+7 unused in 64-bit mode).
	if op < 0x40 && op&0x07 <= 5 {
		switch op & 0x07 {
		case 0, 1, 2, 3:
			return simpleEntry(aluName(op), true, noImm), true
		case 4:
			return simpleEntry(aluName(op), false, imm8), true
		case 5:
			return simpleEntry(aluName(op), false, immFull), true
		}
	}

	if op >= 0x50 && op <= 0x5F {
		if op <= 0x57 {
			return simpleEntry("push", false, noImm), true
		}
		return simpleEntry("pop", false, noImm), true
	}

	if op >= 0xB0 && op <= 0xB7 {
		return simpleEntry("mov", false, imm8), true
	}
	if op >= 0xB8 && op <= 0xBF {
		return opcodeEntry{
			mnemonic:  "mov",
			hasModRM:  false,
			immSizeFn: func(cur *cursor) int {
				if cur.hasRex && cur.rex&0x08 != 0 {
					return 8
				}
				return immFull(cur)
			},
			render: renderGeneric,
		}, true
	}

	if e, ok := oneByteTable[op]; ok {
		return e, true
	}

	// Unknown opcode: treat as a bare single byte so the loop still makes
	// forward progress instead of stalling (mirrors the original
	// disassemble() loop's "else { print raw byte; cursor++ }" fallback
	// for opcodes missing from the table).
	return opcodeEntry{mnemonic: "(bad)", hasModRM: false, immSizeFn: noImm, render: renderGeneric}, true
}

func aluName(op byte) string {
	names := []string{"add", "or", "adc", "sbb", "and", "sub", "xor", "cmp"}
	return names[op/8]
}
