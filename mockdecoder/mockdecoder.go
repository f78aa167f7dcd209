// Package mockdecoder provides a scripted tracker.Decoder for tests, so the
// tracing loop's logic can be exercised without a real tracee or a real
// x86 decoder (per spec.md, the decoder is an external collaborator
// "replaced by a mock in tests").
package mockdecoder

import "tracker"

// Decoder returns one scripted DecodedInstruction per call to Decode, in
// order. Once Results is exhausted it returns a zero-size result (the
// DecoderFailure case the engine recovers from by skipping the step).
type Decoder struct {
	Results []tracker.DecodedInstruction
	calls   int
}

var _ tracker.Decoder = (*Decoder)(nil)

// Decode implements tracker.Decoder.
func (d *Decoder) Decode(window [16]byte, baseAddr uintptr, syntax tracker.Syntax) tracker.DecodedInstruction {
	if d.calls >= len(d.Results) {
		d.calls++
		return tracker.DecodedInstruction{}
	}
	result := d.Results[d.calls]
	d.calls++
	return result
}

// Calls reports how many times Decode has been invoked.
func (d *Decoder) Calls() int { return d.calls }
