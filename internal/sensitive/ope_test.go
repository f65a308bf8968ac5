package sensitive

import (
	"bytes"
	"math/rand"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestEncoder() *Encoder {
	return NewEncoder(bytes.Repeat([]byte{0x77}, 32))
}

func TestEncodePreservesOrder(t *testing.T) {
	e := newTestEncoder()
	rng := rand.New(rand.NewSource(1))
	for i := 0; i < 500; i++ {
		a := float64(rng.Intn(5000)) / 10
		b := float64(rng.Intn(5000)) / 10
		if a > b {
			a, b = b, a
		}
		ca, err := e.Encode(a)
		require.NoError(t, err)
		cb, err := e.Encode(b)
		require.NoError(t, err)
		if a < b {
			assert.Less(t, ca, cb, "encode(%v) must be < encode(%v)", a, b)
		} else {
			assert.Equal(t, ca, cb)
		}
	}
}

func TestEncodeIsDeterministicPerKey(t *testing.T) {
	a := newTestEncoder()
	b := newTestEncoder()
	other := NewEncoder(bytes.Repeat([]byte{0x78}, 32))

	ca, err := a.Encode(70.5)
	require.NoError(t, err)
	cb, err := b.Encode(70.5)
	require.NoError(t, err)
	co, err := other.Encode(70.5)
	require.NoError(t, err)

	assert.Equal(t, ca, cb)
	assert.NotEqual(t, ca, co, "a different key must produce a different table")
}

func TestDecodeRecoversExactQuantizedWeight(t *testing.T) {
	e := newTestEncoder()
	for _, w := range []float64{0, 0.1, 54.3, 70.5, 499.9, 500} {
		code, err := e.Encode(w)
		require.NoError(t, err)
		got, err := e.Decode(code)
		require.NoError(t, err)
		assert.InDelta(t, w, got, WeightQuantum/2)
	}
}

func TestDecodeRejectsFabricatedCode(t *testing.T) {
	e := newTestEncoder()
	code, err := e.Encode(70.5)
	require.NoError(t, err)
	_, err = e.Decode(code + 1)
	assert.Error(t, err, "a code off the table must not decode")
}

func TestEncodeRejectsOutOfRange(t *testing.T) {
	e := newTestEncoder()
	for _, w := range []float64{-0.1, 500.1, 1e9} {
		_, err := e.Encode(w)
		assert.Error(t, err, "weight %v", w)
	}
}

func TestEncodeRangeBracketsStoredCodes(t *testing.T) {
	e := newTestEncoder()
	lo, hi, err := e.EncodeRange(60, 80)
	require.NoError(t, err)

	inside, err := e.Encode(70.5)
	require.NoError(t, err)
	below, err := e.Encode(59.9)
	require.NoError(t, err)
	above, err := e.Encode(80.1)
	require.NoError(t, err)

	assert.GreaterOrEqual(t, inside, lo)
	assert.LessOrEqual(t, inside, hi)
	assert.Less(t, below, lo)
	assert.Greater(t, above, hi)
}

func TestEncodeRangeBoundaryInclusive(t *testing.T) {
	e := newTestEncoder()
	lo, hi, err := e.EncodeRange(70.5, 70.5)
	require.NoError(t, err)
	code, err := e.Encode(70.5)
	require.NoError(t, err)
	assert.Equal(t, code, lo)
	assert.Equal(t, code, hi)
}

func TestEncodeRangeInvalid(t *testing.T) {
	e := newTestEncoder()
	_, _, err := e.EncodeRange(80, 60)
	assert.Error(t, err)
}
