package tracker_test

import (
	"bytes"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"tracker"
	"tracker/mockdecoder"
	"tracker/mocktracee"
)

func window(bytes ...byte) [16]byte {
	var w [16]byte
	copy(w[:], bytes)
	return w
}

func TestEngineRunAppendsTraceAndDeduplicates(t *testing.T) {
	tracee := &mocktracee.Tracee{
		Steps: []mocktracee.Step{
			{IP: 0x1000, Window: window(0x90)},
			{IP: 0x1001, Window: window(0x90)},
			{IP: 0x1000, Window: window(0x90)}, // revisits the first instruction
		},
	}
	decoder := &mockdecoder.Decoder{
		Results: []tracker.DecodedInstruction{
			{Size: 1, Mnemonic: "nop"},
			{Size: 1, Mnemonic: "nop"},
			{Size: 1, Mnemonic: "nop"},
		},
	}

	store, err := tracker.NewStore(16)
	require.NoError(t, err)
	trace := tracker.NewTrace()

	engine, err := tracker.NewEngine(tracee, decoder, tracker.ATT, store, trace)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, engine.Run(&out))

	assert.EqualValues(t, 3, engine.InstructionCount())
	assert.Equal(t, 3, trace.Length())

	first, err := trace.Get(1)
	require.NoError(t, err)
	third, err := trace.Get(3)
	require.NoError(t, err)
	assert.Same(t, first, third, "revisiting 0x1000 must dedup to the same instruction handle")

	assert.EqualValues(t, 2, store.Entries())
}

func TestEngineRunSkipsDecoderFailures(t *testing.T) {
	tracee := &mocktracee.Tracee{
		Steps: []mocktracee.Step{
			{IP: 0x1000, Window: window(0x90)},
			{IP: 0x1001, Window: window(0xFF)}, // decoder will refuse this one
			{IP: 0x1002, Window: window(0x90)},
		},
	}
	decoder := &mockdecoder.Decoder{
		Results: []tracker.DecodedInstruction{
			{Size: 1, Mnemonic: "nop"},
			{Size: 0},
			{Size: 1, Mnemonic: "nop"},
		},
	}

	store, err := tracker.NewStore(16)
	require.NoError(t, err)
	trace := tracker.NewTrace()

	engine, err := tracker.NewEngine(tracee, decoder, tracker.ATT, store, trace)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, engine.Run(&out))

	assert.EqualValues(t, 2, engine.InstructionCount())
	assert.Equal(t, 2, trace.Length())
}

func TestEngineRunWritesPerStepLog(t *testing.T) {
	tracee := &mocktracee.Tracee{
		Steps: []mocktracee.Step{
			{IP: 0x1000, Window: window(0x90)},
		},
	}
	decoder := &mockdecoder.Decoder{
		Results: []tracker.DecodedInstruction{{Size: 1, Mnemonic: "nop"}},
	}

	store, err := tracker.NewStore(16)
	require.NoError(t, err)
	trace := tracker.NewTrace()

	engine, err := tracker.NewEngine(tracee, decoder, tracker.ATT, store, trace)
	require.NoError(t, err)

	var out bytes.Buffer
	require.NoError(t, engine.Run(&out))
	assert.Contains(t, out.String(), "0x1000")
	assert.Contains(t, out.String(), "nop")
}

func TestEngineRunFlagsStepsOutsideTextBounds(t *testing.T) {
	tracee := &mocktracee.Tracee{
		Steps: []mocktracee.Step{
			{IP: 0x1000, Window: window(0x90)}, // inside .text
			{IP: 0x7f00, Window: window(0x90)}, // outside .text (e.g. vDSO)
		},
	}
	decoder := &mockdecoder.Decoder{
		Results: []tracker.DecodedInstruction{
			{Size: 1, Mnemonic: "nop"},
			{Size: 1, Mnemonic: "nop"},
		},
	}

	store, err := tracker.NewStore(16)
	require.NoError(t, err)
	trace := tracker.NewTrace()

	engine, err := tracker.NewEngine(tracee, decoder, tracker.ATT, store, trace)
	require.NoError(t, err)

	var flagged []uintptr
	engine.SetTextBounds(tracker.TextSection{Addr: 0x1000, Size: 0x100}, func(addr uintptr) {
		flagged = append(flagged, addr)
	})

	var out bytes.Buffer
	require.NoError(t, engine.Run(&out))

	require.Len(t, flagged, 1)
	assert.EqualValues(t, 0x7f00, flagged[0])
	// Out-of-bounds execution is flagged only, never excluded from the trace.
	assert.EqualValues(t, 2, engine.InstructionCount())
}
