package otp

import (
	"errors"
	"strings"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestNewGenerator_Bounds(t *testing.T) {
	for _, d := range []int{0, 3, 11} {
		_, err := NewGenerator(d)
		assert.Error(t, err, "digits=%d", d)
	}
	for _, d := range []int{4, 6, 10} {
		g, err := NewGenerator(d)
		require.NoError(t, err)
		assert.Equal(t, d, g.Digits())
	}
}

func TestGenerate_FixedWidthDecimal(t *testing.T) {
	g, err := NewGenerator(DefaultDigits)
	require.NoError(t, err)

	for i := 0; i < 500; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		require.Len(t, code, DefaultDigits)
		for _, c := range code {
			require.True(t, c >= '0' && c <= '9', "non-digit in %q", code)
		}
	}
}

func TestGenerate_CoversLeadingZeros(t *testing.T) {
	// With 4 digits, 1000 draws hit a leading zero with probability ~1-0.9^1000.
	g, err := NewGenerator(4)
	require.NoError(t, err)

	seen := false
	for i := 0; i < 1000 && !seen; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		seen = strings.HasPrefix(code, "0")
	}
	assert.True(t, seen, "codes should span the full range including leading zeros")
}

func TestGenerate_Varies(t *testing.T) {
	g, err := NewGenerator(MaxDigits)
	require.NoError(t, err)

	seen := map[string]bool{}
	for i := 0; i < 50; i++ {
		code, err := g.Generate()
		require.NoError(t, err)
		seen[code] = true
	}
	assert.Greater(t, len(seen), 45)
}

type failingReader struct{}

func (failingReader) Read([]byte) (int, error) { return 0, errors.New("entropy exhausted") }

func TestGenerate_EntropyFailure(t *testing.T) {
	g, err := NewGenerator(6)
	require.NoError(t, err)
	g.rand = failingReader{}

	_, err = g.Generate()
	assert.ErrorContains(t, err, "entropy exhausted")
}
