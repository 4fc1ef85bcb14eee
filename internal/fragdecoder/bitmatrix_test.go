package fragdecoder

import (
	"fmt"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestBitVector(t *testing.T) {
	assert := require.New(t)

	v := NewBitVector(20)
	assert.Len(v, 3)
	assert.True(v.IsZero())
	assert.Equal(-1, v.FirstOne())

	v.Set(19, true)
	v.Set(3, true)
	v.Set(9, true)
	assert.Equal(3, v.FirstOne())
	assert.Equal([]int{3, 9, 19}, v.Ones())

	v.Set(3, false)
	assert.Equal(9, v.FirstOne())
	assert.True(v.Get(19))
	assert.False(v.Get(18))

	o := NewBitVector(20)
	o.Set(9, true)
	o.Set(10, true)
	v.Xor(o)
	assert.Equal([]int{10, 19}, v.Ones())

	v.Clear()
	assert.True(v.IsZero())
}

func TestTriangularBitMatrix(t *testing.T) {
	t.Run("packed size", func(t *testing.T) {
		assert := require.New(t)

		for _, n := range []int{1, 2, 7, 8, 9, 64, 100} {
			m := NewTriangularBitMatrix(n)
			assert.Equal(n, m.Size())
			assert.Len(m.bits, (n*(n+1)/2+7)/8)
			assert.Equal(n*(n+1)/2, m.offset(n-1)+1)
		}
	})

	t.Run("rows do not overlap", func(t *testing.T) {
		for _, n := range []int{1, 3, 8, 13, 40} {
			t.Run(fmt.Sprintf("n=%d", n), func(t *testing.T) {
				assert := require.New(t)
				rnd := rand.New(rand.NewSource(int64(n)))

				m := NewTriangularBitMatrix(n)
				dense := make([][]bool, n)

				for _, row := range rnd.Perm(n) {
					v := NewBitVector(n)
					dense[row] = make([]bool, n)
					v.Set(row, true)
					dense[row][row] = true
					for col := row + 1; col < n; col++ {
						if rnd.Intn(2) == 1 {
							v.Set(col, true)
							dense[row][col] = true
						}
					}

					assert.False(m.IsSolved(row))
					assert.True(m.SetRow(row, v))
					assert.True(m.IsSolved(row))
				}

				got := NewBitVector(n)
				for row := 0; row < n; row++ {
					m.Row(row, got)
					for col := 0; col < n; col++ {
						assert.Equal(dense[row][col], got.Get(col), "row %d col %d", row, col)
					}
				}
			})
		}
	})

	t.Run("solved row is never rewritten", func(t *testing.T) {
		assert := require.New(t)

		m := NewTriangularBitMatrix(4)
		v := NewBitVector(4)
		v.Set(1, true)
		v.Set(3, true)
		assert.True(m.SetRow(1, v))

		w := NewBitVector(4)
		w.Set(1, true)
		assert.False(m.SetRow(1, w))

		got := NewBitVector(4)
		m.Row(1, got)
		assert.Equal([]int{1, 3}, got.Ones())
	})

	t.Run("reset", func(t *testing.T) {
		assert := require.New(t)

		m := NewTriangularBitMatrix(3)
		v := NewBitVector(3)
		v.Set(0, true)
		v.Set(2, true)
		m.SetRow(0, v)
		m.Reset()

		assert.False(m.IsSolved(0))
		got := NewBitVector(3)
		m.Row(0, got)
		assert.True(got.IsZero())
	})
}
