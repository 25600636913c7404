package arith

import (
	"testing"

	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/stretchr/testify/require"
)

// roundTripSymbols encodes then decodes a sequence of symbols drawn from a
// uniform 4-way alphabet (cumulative ranges [i, i+1) out of total 4) and
// asserts every symbol comes back unchanged.
func roundTripSymbols(t *testing.T, symbols []uint64) {
	t.Helper()
	out := bitset.New()
	enc := NewEncoder(out)
	for _, s := range symbols {
		require.NoError(t, enc.Encode(s, s+1, 4))
	}
	enc.Finish()

	dec := NewDecoder(out)
	for _, want := range symbols {
		got := dec.Freq(4)
		require.Equal(t, want, got)
		require.NoError(t, dec.Consume(got, got+1, 4))
	}
}

func TestEncodeDecodeShortSequence(t *testing.T) {
	roundTripSymbols(t, []uint64{2})
}

func TestEncodeDecodeMultiSymbolSequence(t *testing.T) {
	roundTripSymbols(t, []uint64{2, 0, 3, 1, 2})
}

func TestEncodeDecodeRepeatedSameSymbol(t *testing.T) {
	roundTripSymbols(t, []uint64{1, 1, 1, 1, 1, 1, 1, 1})
}

func TestSingleOutcomeModelCostsFewBits(t *testing.T) {
	out := bitset.New()
	enc := NewEncoder(out)
	// A model with exactly one possible outcome: [0, 1) out of total 1.
	require.NoError(t, enc.Encode(0, 1, 1))
	enc.Finish()
	require.LessOrEqual(t, out.Size(), 2)

	dec := NewDecoder(out)
	require.Equal(t, uint64(0), dec.Freq(1))
}

func TestPopBitOrZeroPastEndReturnsZero(t *testing.T) {
	b := bitset.New()
	require.Equal(t, uint64(0), popBitOrZero(b))
}
