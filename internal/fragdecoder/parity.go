package fragdecoder

// prbs23 advances the 23-bit pseudo-random binary sequence shared with the
// sender.
func prbs23(x uint32) uint32 {
	b0 := x & 1
	b1 := (x & 0x20) >> 5
	return (x >> 1) + ((b0 ^ b1) << 22)
}

func isPowerOfTwo(x uint32) bool {
	return x != 0 && x&(x-1) == 0
}

// ParityRow returns which of the fragmentCount uncoded fragments are xored
// together into the coded fragment with the given 1-based index.
//
// The row must match the encoder bit for bit: the sequence is seeded with
// 1 + 1001*codedIndex and fragmentCount/2 positions are drawn by rejection
// sampling. A position drawn twice is set once.
func ParityRow(codedIndex, fragmentCount int) BitVector {
	row := NewBitVector(fragmentCount)
	if fragmentCount <= 0 {
		return row
	}

	m := uint32(fragmentCount)
	var mm uint32
	if isPowerOfTwo(m) {
		mm = 1
	}

	x := 1 + 1001*uint32(codedIndex)
	for nbCoeff := 0; nbCoeff < fragmentCount/2; nbCoeff++ {
		r := m
		for r >= m {
			x = prbs23(x)
			r = x % (m + mm)
		}
		row.Set(int(r), true)
	}

	return row
}
