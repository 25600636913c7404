package arith

import (
	"math"
	"testing"

	"github.com/stretchr/testify/require"
)

func TestValueToSymbolStrict(t *testing.T) {
	m, err := NewModel("m", []float64{0, 10, 20, 30}, nil, false, PolicyStrict)
	require.NoError(t, err)

	require.Equal(t, Symbol(0), m.ValueToSymbol(0))
	require.Equal(t, Symbol(0), m.ValueToSymbol(5))
	require.Equal(t, Symbol(1), m.ValueToSymbol(10))
	require.Equal(t, Symbol(2), m.ValueToSymbol(25))
	require.Equal(t, Symbol(3), m.ValueToSymbol(30))
	require.Equal(t, OutOfRangeSymbol, m.ValueToSymbol(-1))
	require.Equal(t, OutOfRangeSymbol, m.ValueToSymbol(31))
}

func TestValueToSymbolNearest(t *testing.T) {
	m, err := NewModel("m", []float64{0, 10, 20, 30}, nil, false, PolicyNearest)
	require.NoError(t, err)

	require.Equal(t, Symbol(0), m.ValueToSymbol(2))
	require.Equal(t, Symbol(1), m.ValueToSymbol(9))
	require.Equal(t, Symbol(2), m.ValueToSymbol(16))
	require.Equal(t, Symbol(3), m.ValueToSymbol(30))
}

func TestSymbolToValue(t *testing.T) {
	m, err := NewModel("m", []float64{1, 2, 3}, nil, false, PolicyStrict)
	require.NoError(t, err)

	v, err := m.SymbolToValue(Symbol(1))
	require.NoError(t, err)
	require.Equal(t, 2.0, v)

	v, err = m.SymbolToValue(OutOfRangeSymbol)
	require.NoError(t, err)
	require.True(t, math.IsNaN(v))

	_, err = m.SymbolToValue(EOFSymbol)
	require.Error(t, err)
}

func TestCumFreqInitialUniform(t *testing.T) {
	m, err := NewModel("m", []float64{1, 2, 3}, nil, true, PolicyStrict)
	require.NoError(t, err)

	// 3 regular symbols + EOF + OutOfRange == 5 slots, each starting at
	// frequency 1.
	lo, hi, total := m.CumFreq(EOFSymbol, StateEncoder)
	require.Equal(t, uint64(0), lo)
	require.Equal(t, uint64(1), hi)
	require.Equal(t, uint64(5), total)

	lo, hi, total = m.CumFreq(Symbol(0), StateEncoder)
	require.Equal(t, uint64(1), lo)
	require.Equal(t, uint64(2), hi)
	require.Equal(t, uint64(5), total)
}

func TestUpdateBumpsFrequencyAndAboveSymbols(t *testing.T) {
	m, err := NewModel("m", []float64{1, 2, 3}, nil, true, PolicyStrict)
	require.NoError(t, err)

	m.Update(Symbol(0), StateEncoder)

	lo, hi, total := m.CumFreq(Symbol(0), StateEncoder)
	require.Equal(t, uint64(1), lo)
	require.Equal(t, uint64(3), hi)
	require.Equal(t, uint64(6), total)

	// Symbol(1)'s lower bound moved up by the same increment.
	lo, _, _ = m.CumFreq(Symbol(1), StateEncoder)
	require.Equal(t, uint64(3), lo)
}

func TestUpdateIgnoredWhenNotAdaptive(t *testing.T) {
	m, err := NewModel("m", []float64{1, 2, 3}, nil, false, PolicyStrict)
	require.NoError(t, err)

	m.Update(Symbol(0), StateEncoder)

	_, hi, _ := m.CumFreq(Symbol(0), StateEncoder)
	require.Equal(t, uint64(2), hi)
}

func TestUpdateRescalesOnOverflow(t *testing.T) {
	m, err := NewModel("m", []float64{1, 2}, nil, true, PolicyStrict)
	require.NoError(t, err)

	for i := uint64(0); i < MaxFrequency; i++ {
		m.Update(Symbol(0), StateEncoder)
	}

	total := m.Total(StateEncoder)
	require.LessOrEqual(t, total, uint64(MaxFrequency))
}

func TestEncoderDecoderStateIndependent(t *testing.T) {
	m, err := NewModel("m", []float64{1, 2, 3}, nil, true, PolicyStrict)
	require.NoError(t, err)

	m.Update(Symbol(0), StateEncoder)

	encTotal := m.Total(StateEncoder)
	decTotal := m.Total(StateDecoder)
	require.NotEqual(t, encTotal, decTotal)
}

func TestSnapshotRestore(t *testing.T) {
	m, err := NewModel("m", []float64{1, 2, 3}, nil, true, PolicyStrict)
	require.NoError(t, err)

	snap := m.snapshot(StateEncoder)
	m.Update(Symbol(0), StateEncoder)
	require.NotEqual(t, snap, m.snapshot(StateEncoder))

	m.restore(StateEncoder, snap)
	require.Equal(t, snap, m.snapshot(StateEncoder))
}
