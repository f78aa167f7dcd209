package tracker

import (
	"fmt"
	"io"
	"strings"

	"github.com/olekukonko/tablewriter"
	"github.com/pkg/errors"
)

// windowSize is the number of bytes read at the instruction pointer on
// every step — spec.md §4.F step 3 ("read exactly 16 bytes at ip"),
// matching the original implementation's MAX_OPCODE_BYTES.
const windowSize = 16

// canonicalDecodeBase is the fixed base address the decoder is invoked
// with, per spec.md §9's "Decoder purity" note: decoding must be
// insensitive to where in the tracee's address space the window was read
// from, so the real ip is never passed to Decode — only used afterward to
// stamp the resulting Instruction's own address.
const canonicalDecodeBase uintptr = 0

// Engine drives the single-threaded tracing loop of spec.md §4.F/§5: it
// owns no concurrency of its own and blocks synchronously on Tracee.Wait
// and Tracee.Step between each instruction.
type Engine struct {
	tracee  Tracee
	decoder Decoder
	syntax  Syntax
	store   *Store
	cfg     *CFG
	curNode *Node
	trace   *Trace

	maxCallDepth int
	instrCount   uint64

	textBounds  *TextSection
	onOutOfText func(addr uintptr)
}

// NewEngine wires a Tracee and Decoder into the shared Store/Trace that
// accumulate state across (possibly many, in batch mode) invocations of
// Run. store and trace must be non-nil; cfg may be nil on the very first
// invocation, in which case Run bootstraps it from the first instruction
// using the default CallStackDepth bound (use NewEngineWithDepth to
// override it, e.g. from Config.CallStackDepth).
func NewEngine(tracee Tracee, decoder Decoder, syntax Syntax, store *Store, trace *Trace) (*Engine, error) {
	return NewEngineWithDepth(tracee, decoder, syntax, store, trace, CallStackDepth)
}

// NewEngineWithDepth is NewEngine with an explicit call-stack depth bound.
func NewEngineWithDepth(tracee Tracee, decoder Decoder, syntax Syntax, store *Store, trace *Trace, maxCallDepth int) (*Engine, error) {
	if tracee == nil || decoder == nil || store == nil || trace == nil {
		return nil, newError(InvalidArgument, "tracee, decoder, store and trace must be non-nil")
	}
	if maxCallDepth <= 0 {
		maxCallDepth = CallStackDepth
	}
	return &Engine{
		tracee:       tracee,
		decoder:      decoder,
		syntax:       syntax,
		store:        store,
		trace:        trace,
		maxCallDepth: maxCallDepth,
	}, nil
}

// SetTextBounds arms an optional `.text`-bounds check (spec.md §4.G's probe
// is "optional"; this is its one consumer): whenever the instruction
// pointer falls outside section, onOutOfText is called with that address.
// This never gates recording — every executed instruction is still stored
// and traced regardless of section — it only drives verbose diagnostics
// (e.g. dynamic loader, vDSO or JIT code running outside the main image).
func (e *Engine) SetTextBounds(section TextSection, onOutOfText func(addr uintptr)) {
	e.textBounds = &section
	e.onOutOfText = onOutOfText
}

// AttachCFG lets a caller share (and keep growing) a CFG built by an
// earlier invocation of Run — used by batch mode, which accumulates one
// CFG across every line of the batch file.
func (e *Engine) AttachCFG(cfg *CFG, curNode *Node) {
	e.cfg = cfg
	e.curNode = curNode
}

// CFG returns the engine's current control-flow graph, which may be nil
// if Run has not yet processed a single instruction.
func (e *Engine) CFG() *CFG { return e.cfg }

// CurNode returns the node Run will use as cfg_insert's cur_node on the
// next call — exposed so batch mode can carry it across invocations.
func (e *Engine) CurNode() *Node { return e.curNode }

// InstructionCount returns the number of instructions executed across
// every Run invocation this engine has driven.
func (e *Engine) InstructionCount() uint64 { return e.instrCount }

// Run executes spec.md §4.F's loop to completion: it blocks on
// tracee.Wait, reads the instruction pointer and a 16-byte window,
// decodes, deduplicates through the store/CFG, appends to the trace, logs
// the step to out, and steps the tracee — until Wait reports the tracee
// exited.
//
// A failed register/memory read is a fatal TracerFailure (spec.md §7): Run
// returns the error without stepping further. A zero-size decode is
// skipped — the step counter is not advanced and the tracee is simply
// stepped again, per spec.md §4.F's failure-handling note.
func (e *Engine) Run(out io.Writer) error {
	for {
		status, err := e.tracee.Wait()
		if err != nil {
			return err
		}
		if status.Exited {
			return nil
		}

		ip, err := e.tracee.InstructionPointer()
		if err != nil {
			return err
		}

		if e.textBounds != nil && e.onOutOfText != nil {
			if ip < uintptr(e.textBounds.Addr) || ip >= uintptr(e.textBounds.Addr+e.textBounds.Size) {
				e.onOutOfText(ip)
			}
		}

		raw, err := e.tracee.ReadBytes(ip, windowSize)
		if err != nil {
			return err
		}
		var window [windowSize]byte
		copy(window[:], raw)

		decoded := e.decoder.Decode(window, canonicalDecodeBase, e.syntax)
		if decoded.Size == 0 {
			// DecoderFailure: the tracee likely stopped on a signal
			// boundary. Recoverable — skip this step only.
			if err := e.tracee.Step(); err != nil {
				return err
			}
			continue
		}

		instr, err := NewInstruction(ip, decoded.Size, window[:decoded.Size], decoded.Mnemonic)
		if err != nil {
			return err
		}

		if e.cfg == nil {
			cfg, node, err := NewCFGWithDepth(e.store, instr, e.maxCallDepth)
			if err != nil {
				return err
			}
			e.cfg = cfg
			e.curNode = node
		} else {
			node, err := e.cfg.Insert(e.curNode, instr)
			if err != nil {
				return errors.Wrapf(err, "cfg_insert at 0x%x", ip)
			}
			e.curNode = node
		}

		if err := e.trace.Append(e.curNode.Instruction()); err != nil {
			return err
		}

		writeStep(out, e.curNode.Instruction(), decoded.Operand)
		e.instrCount++

		if err := e.tracee.Step(); err != nil {
			return err
		}
	}
}

// writeStep renders one line of spec.md §6's per-step textual log:
//
//	0x<hex_ip>  <space-separated hex bytes>\t...\t<mnemonic>  <operand>
//
// Tab padding is `4 - (S / 3)` tabs, with an extra leading tab when
// S is neither 8 nor 11 bytes — reproduced exactly from the original
// implementation's byte-for-byte formatting so downstream tooling that
// parses this log keeps working.
func writeStep(out io.Writer, instr *Instruction, operand string) {
	var b strings.Builder
	fmt.Fprintf(&b, "0x%x  ", instr.Address())

	for _, op := range instr.Opcodes() {
		fmt.Fprintf(&b, " %02x", op)
	}

	size := int(instr.Size())
	if size != 8 && size != 11 {
		b.WriteByte('\t')
	}
	for i := 0; i < 4-(size/3); i++ {
		b.WriteByte('\t')
	}

	fmt.Fprintf(&b, "%s  %s\n", instr.Mnemonic(), operand)
	io.WriteString(out, b.String())
}

// WriteStats renders the end-of-run statistics block of spec.md §6 —
// instructions executed, unique instructions, total/filled buckets and
// collisions — as a table via github.com/olekukonko/tablewriter rather
// than hand-aligned Printf columns.
func WriteStats(out io.Writer, instrCount uint64, store *Store) {
	io.WriteString(out, "\n\tStatistics about this run\n\t=========================\n")

	table := tablewriter.NewWriter(out)
	table.SetHeader([]string{"metric", "value"})
	table.SetAutoFormatHeaders(false)
	table.SetAlignment(tablewriter.ALIGN_LEFT)
	table.Append([]string{"instructions executed", fmt.Sprintf("%d", instrCount)})
	table.Append([]string{"unique instructions", fmt.Sprintf("%d", store.Entries())})
	table.Append([]string{"hashtable buckets", fmt.Sprintf("%d", store.Size())})
	table.Append([]string{"filled buckets", fmt.Sprintf("%d", store.FilledBuckets())})
	table.Append([]string{"hashtable collisions", fmt.Sprintf("%d", store.Collisions())})
	table.Render()
}
