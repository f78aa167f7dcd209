package tracker

// fasthash64 constants, reproduced verbatim from spec.md §4.B so this
// implementation's hashes are bit-for-bit identical to the original C
// tracker's (and hence to any cross-implementation reference vectors).
const fasthashM = 0x880355f21e6d1965

// mix is fasthash64's Merkle-Damgard-style compression step.
func mix(h uint64) uint64 {
	h ^= h >> 23
	h *= 0x2127598bf4325c37
	h ^= h >> 47
	return h
}

// fasthash64 hashes buf (of length len(buf)) seeded with seed. It consumes
// 8-byte little-endian blocks, then folds any 1..7 trailing bytes into one
// final block before a last mix+multiply.
func fasthash64(buf []byte, seed uint64) uint64 {
	length := len(buf)
	h := seed ^ (uint64(length) * fasthashM)

	n := length / 8
	for i := 0; i < n; i++ {
		v := le64(buf[i*8 : i*8+8])
		h ^= mix(v)
		h *= fasthashM
	}

	tail := buf[n*8:]
	if len(tail) > 0 {
		var v uint64
		for i, b := range tail {
			v ^= uint64(b) << (8 * uint(i))
		}
		h ^= mix(v)
		h *= fasthashM
	}

	return mix(h)
}

// le64 reads up to 8 bytes as a little-endian uint64, as a plain read from
// an x86 (little-endian) instruction buffer would via `*(uint64_t *)buf`.
func le64(b []byte) uint64 {
	var v uint64
	for i := 0; i < 8 && i < len(b); i++ {
		v |= uint64(b[i]) << (8 * uint(i))
	}
	return v
}

// hashInstruction returns fasthash64(opcodes, seed=address), the hash used
// to place an instruction's bucket index in the Store.
func hashInstruction(instr *Instruction) uint64 {
	return fasthash64(instr.opcodes, uint64(instr.address))
}
