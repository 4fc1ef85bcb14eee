package fragdecoder

import (
	"math/bits"
)

// BitVector is a packed bit array, bit i lives in byte i/8 at position i%8.
type BitVector []byte

// NewBitVector returns a zeroed BitVector able to hold n bits.
func NewBitVector(n int) BitVector {
	return make(BitVector, (n+7)/8)
}

// Get returns bit i.
func (v BitVector) Get(i int) bool {
	return v[i>>3]&(1<<uint(i&7)) != 0
}

// Set sets or clears bit i.
func (v BitVector) Set(i int, b bool) {
	if b {
		v[i>>3] |= 1 << uint(i&7)
	} else {
		v[i>>3] &^= 1 << uint(i&7)
	}
}

// Xor xors o into v. Both vectors must have the same length.
func (v BitVector) Xor(o BitVector) {
	for i := range v {
		v[i] ^= o[i]
	}
}

// FirstOne returns the index of the lowest set bit or -1 when all bits are
// zero.
func (v BitVector) FirstOne() int {
	for i, b := range v {
		if b != 0 {
			return i*8 + bits.TrailingZeros8(b)
		}
	}
	return -1
}

// IsZero returns true when no bit is set.
func (v BitVector) IsZero() bool {
	return v.FirstOne() == -1
}

// Clear resets all bits.
func (v BitVector) Clear() {
	for i := range v {
		v[i] = 0
	}
}

// Ones returns the indices of all set bits in ascending order.
func (v BitVector) Ones() []int {
	var out []int
	for i, b := range v {
		for b != 0 {
			j := bits.TrailingZeros8(b)
			out = append(out, i*8+j)
			b &^= 1 << uint(j)
		}
	}
	return out
}

// TriangularBitMatrix is an n x n upper-triangular matrix over GF(2).
//
// Row i only stores the columns i..n-1, the columns below the diagonal are
// zero by construction. Rows are packed back to back, row i starts at bit
// i*n - i*(i-1)/2. A row becomes solved when it is set and is never
// rewritten afterwards.
type TriangularBitMatrix struct {
	n      int
	bits   BitVector
	solved BitVector
}

// NewTriangularBitMatrix returns an empty matrix of dimension n.
func NewTriangularBitMatrix(n int) *TriangularBitMatrix {
	return &TriangularBitMatrix{
		n:      n,
		bits:   NewBitVector(n * (n + 1) / 2),
		solved: NewBitVector(n),
	}
}

// Size returns the dimension of the matrix.
func (m *TriangularBitMatrix) Size() int {
	return m.n
}

func (m *TriangularBitMatrix) offset(row int) int {
	return row*m.n - row*(row-1)/2
}

// IsSolved returns true when the given row holds a diagonalized equation.
func (m *TriangularBitMatrix) IsSolved(row int) bool {
	return m.solved.Get(row)
}

// SetRow stores columns row..n-1 of v as the given row and marks it solved.
// The columns of v below row must be zero. It returns false, leaving the
// matrix untouched, when the row was already solved.
func (m *TriangularBitMatrix) SetRow(row int, v BitVector) bool {
	if m.IsSolved(row) {
		return false
	}

	off := m.offset(row)
	for col := row; col < m.n; col++ {
		m.bits.Set(off+col-row, v.Get(col))
	}
	m.solved.Set(row, true)
	return true
}

// Row expands the given row into dst, which must be able to hold n bits.
func (m *TriangularBitMatrix) Row(row int, dst BitVector) {
	dst.Clear()
	off := m.offset(row)
	for col := row; col < m.n; col++ {
		if m.bits.Get(off + col - row) {
			dst.Set(col, true)
		}
	}
}

// Reset clears all rows.
func (m *TriangularBitMatrix) Reset() {
	m.bits.Clear()
	m.solved.Clear()
}
