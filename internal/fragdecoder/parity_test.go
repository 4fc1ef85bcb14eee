package fragdecoder

import (
	"fmt"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestPRBS23(t *testing.T) {
	assert := require.New(t)

	assert.EqualValues(4194805, prbs23(1002))
	assert.EqualValues(2097402, prbs23(4194805))
}

func TestParityRow(t *testing.T) {
	tests := []struct {
		codedIndex    int
		fragmentCount int
		expected      []int
	}{
		{1, 4, []int{0, 2}},
		{1, 5, []int{0, 2}},
		{1, 3, []int{1}},
		{7, 1, nil},
	}

	for _, tst := range tests {
		t.Run(fmt.Sprintf("n=%d m=%d", tst.codedIndex, tst.fragmentCount), func(t *testing.T) {
			assert := require.New(t)
			assert.Equal(tst.expected, ParityRow(tst.codedIndex, tst.fragmentCount).Ones())
		})
	}

	t.Run("deterministic", func(t *testing.T) {
		assert := require.New(t)

		for _, m := range []int{2, 10, 16, 17, 100, 1024} {
			for n := 1; n < 50; n++ {
				a := ParityRow(n, m)
				b := ParityRow(n, m)
				assert.Equal(a, b)
				assert.Len(a, (m+7)/8)

				ones := a.Ones()
				assert.True(len(ones) >= 1 && len(ones) <= m/2, "m=%d n=%d: %d coefficients", m, n, len(ones))
				for _, i := range ones {
					assert.True(i < m)
				}
			}
		}
	})

	t.Run("rows differ per coded index", func(t *testing.T) {
		assert := require.New(t)
		assert.NotEqual(ParityRow(1, 100), ParityRow(2, 100))
	})
}
