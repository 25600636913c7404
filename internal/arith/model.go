// Package arith implements the adaptive arithmetic (range-coded) field
// codec (spec §4.4): a range coder maintaining per-field probability models
// that can adapt during encode/decode, with reserved EOF/out-of-range
// symbols and two divergent, explicitly selectable value-to-symbol
// policies (spec §4.4, §9), grounded on
// original_source/src/arithmetic/field_codec_arithmetic.cpp.
package arith

import (
	"fmt"
	"math"
	"sort"
	"sync"
)

// Policy names a value_to_symbol strategy. Per Design Note 9/§9, the two
// divergent rules found in the reference source are kept as named,
// explicitly selectable strategies rather than one being silently chosen.
type Policy string

const (
	// PolicyStrict buckets a value into the symbol whose boundary is the
	// largest boundary <= value ("upper_bound - 1" bucketing).
	PolicyStrict Policy = "strict"

	// PolicyNearest assigns a value to whichever neighbouring boundary is
	// closer by squared distance, matching the older of the two
	// implementations in the reference source.
	PolicyNearest Policy = "nearest"
)

// Symbol identifies a position in a Model's cumulative-frequency table.
// Regular symbols are non-negative indices into Boundaries; EOFSymbol and
// OutOfRangeSymbol are reserved sentinels (spec §3's "Reserved symbols").
type Symbol int

const (
	EOFSymbol        Symbol = -2
	OutOfRangeSymbol Symbol = -1
	// MinSymbol is the first regular (non-reserved) symbol index.
	MinSymbol Symbol = 0
)

// Range-coder precision constants (spec §3).
const (
	CodeValueBits = 32
	FrequencyBits = 16
	// MaxFrequency must be <= 1<<FrequencyBits; kept one below the shift
	// to leave headroom before a rescale is forced.
	MaxFrequency = (1 << FrequencyBits) - 1
)

// State distinguishes the encoder's and the decoder's independent copies
// of the cumulative-frequency table (spec §3's "maintained twice... to
// preserve the update-after-emit/consume invariant").
type State int

const (
	StateEncoder State = iota
	StateDecoder
)

// slot layout: index 0 is EOFSymbol, indices 1..N are regular symbols
// 0..N-1 (Boundaries[i] is symbol i's value), index N+1 is
// OutOfRangeSymbol.
func (m *Model) slotOf(sym Symbol) int {
	switch {
	case sym == EOFSymbol:
		return 0
	case sym == OutOfRangeSymbol:
		return len(m.Boundaries) + 1
	default:
		return int(sym) + 1
	}
}

func (m *Model) symbolOf(slot int) Symbol {
	switch {
	case slot == 0:
		return EOFSymbol
	case slot == len(m.Boundaries)+1:
		return OutOfRangeSymbol
	default:
		return Symbol(slot - 1)
	}
}

// Model is a named probability model: boundary values partitioning the
// real line into symbols, per-symbol frequencies, and (if Adaptive) the
// rule for mutating those frequencies after each symbol is processed.
type Model struct {
	mu sync.Mutex

	Name       string
	Boundaries []float64
	Adaptive   bool
	Policy     Policy

	// initFreq is the frequency assigned to a regular symbol when no
	// explicit initial frequency table was supplied.
	initFreq uint64

	encFreq []uint64
	decFreq []uint64
}

// NewModel builds a Model. freqs, if non-nil, must have one entry per
// boundary (one per regular symbol); otherwise every regular symbol starts
// at frequency 1. EOFSymbol and OutOfRangeSymbol always start at frequency
// 1 in both the encoder and decoder copies.
func NewModel(name string, boundaries []float64, freqs []uint64, adaptive bool, policy Policy) (*Model, error) {
	if len(boundaries) == 0 {
		return nil, fmt.Errorf("arith: model %q has no boundaries", name)
	}
	if !sort.Float64sAreSorted(boundaries) {
		return nil, fmt.Errorf("arith: model %q boundaries must be ascending", name)
	}
	if freqs != nil && len(freqs) != len(boundaries) {
		return nil, fmt.Errorf("arith: model %q has %d boundaries but %d frequencies", name, len(boundaries), len(freqs))
	}
	if policy != PolicyStrict && policy != PolicyNearest {
		return nil, fmt.Errorf("arith: model %q names unrecognized policy %q", name, policy)
	}

	m := &Model{Name: name, Boundaries: boundaries, Adaptive: adaptive, Policy: policy, initFreq: 1}
	n := len(boundaries) + 2
	m.encFreq = make([]uint64, n)
	m.decFreq = make([]uint64, n)
	for slot := range m.encFreq {
		sym := m.symbolOf(slot)
		freq := uint64(1)
		if sym >= MinSymbol && freqs != nil {
			freq = freqs[sym]
		} else if sym >= MinSymbol {
			freq = m.initFreq
		}
		m.encFreq[slot] = freq
		m.decFreq[slot] = freq
	}
	return m, nil
}

// Reset sets both the encoder and decoder tables back to freqs (one per
// boundary) or, when freqs is nil, to frequency 1 for every regular
// symbol; EOFSymbol and OutOfRangeSymbol return to 1. Required between
// independent encode/decode sessions (spec §3).
func (m *Model) Reset(freqs []uint64) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if freqs != nil && len(freqs) != len(m.Boundaries) {
		return fmt.Errorf("arith: model %q reset with %d frequencies, want %d", m.Name, len(freqs), len(m.Boundaries))
	}
	for slot := range m.encFreq {
		sym := m.symbolOf(slot)
		freq := uint64(1)
		if sym >= MinSymbol && freqs != nil {
			freq = freqs[sym]
		} else if sym >= MinSymbol {
			freq = m.initFreq
		}
		m.encFreq[slot] = freq
		m.decFreq[slot] = freq
	}
	return nil
}

func (m *Model) freqTable(state State) []uint64 {
	if state == StateEncoder {
		return m.encFreq
	}
	return m.decFreq
}

// snapshot and restore support spec §7's adaptation-rollback requirement:
// a failed encode/decode step must not leave the model desynchronised.
func (m *Model) snapshot(state State) []uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	src := m.freqTable(state)
	cp := make([]uint64, len(src))
	copy(cp, src)
	return cp
}

func (m *Model) restore(state State, snap []uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()
	copy(m.freqTable(state), snap)
}

// CumFreq returns [lo, hi) and the total frequency for sym in state's
// table, the inputs the range coder needs to narrow its interval.
func (m *Model) CumFreq(sym Symbol, state State) (lo, hi, total uint64) {
	m.mu.Lock()
	defer m.mu.Unlock()

	freq := m.freqTable(state)
	slot := m.slotOf(sym)
	for i := 0; i < slot; i++ {
		lo += freq[i]
	}
	hi = lo + freq[slot]
	total = lo
	for i := slot; i < len(freq); i++ {
		total += freq[i]
	}
	return lo, hi, total
}

// Total returns state's current total frequency across every symbol.
func (m *Model) Total(state State) uint64 {
	m.mu.Lock()
	defer m.mu.Unlock()
	var total uint64
	for _, f := range m.freqTable(state) {
		total += f
	}
	return total
}

// SymbolForCumFreq finds the symbol whose [lo, hi) cumulative-frequency
// range contains target, the decoder's "which symbol did we just read"
// lookup (spec §4.4's cumulative_freq_to_symbol).
func (m *Model) SymbolForCumFreq(target uint64, state State) Symbol {
	m.mu.Lock()
	freq := m.freqTable(state)
	m.mu.Unlock()

	var cum uint64
	for slot, f := range freq {
		if target < cum+f {
			return m.symbolOf(slot)
		}
		cum += f
	}
	return m.symbolOf(len(freq) - 1)
}

// Update applies the adaptive-frequency bump for sym in state's table
// (spec §4.4): increment sym's own frequency (which raises every
// cumulative frequency at or above it, the "symbol and all symbols above
// it" rule), rescaling first if that would overflow MaxFrequency.
func (m *Model) Update(sym Symbol, state State) {
	if !m.Adaptive {
		return
	}
	m.mu.Lock()
	defer m.mu.Unlock()

	freq := m.freqTable(state)
	slot := m.slotOf(sym)

	var total uint64
	for _, f := range freq {
		total += f
	}
	if total+1 > MaxFrequency {
		for i := range freq {
			freq[i] = (freq[i] + 1) / 2
			if freq[i] == 0 {
				freq[i] = 1
			}
		}
	}
	freq[slot]++
}

// ValueToSymbol maps a numeric field value to a symbol per m.Policy (spec
// §4.4's two divergent rules).
func (m *Model) ValueToSymbol(value float64) Symbol {
	first, last := m.Boundaries[0], m.Boundaries[len(m.Boundaries)-1]
	if value < first || value > last {
		return OutOfRangeSymbol
	}

	switch m.Policy {
	case PolicyStrict:
		idx := sort.Search(len(m.Boundaries), func(i int) bool { return m.Boundaries[i] > value })
		if idx == 0 {
			return MinSymbol
		}
		return Symbol(idx - 1)

	default: // PolicyNearest
		upper := sort.Search(len(m.Boundaries), func(i int) bool { return m.Boundaries[i] > value })
		if upper == len(m.Boundaries) {
			upper = len(m.Boundaries) - 1
		}
		lower := upper
		if upper > 0 {
			lower = upper - 1
		}
		lowerDiff := (m.Boundaries[lower] - value) * (m.Boundaries[lower] - value)
		upperDiff := (m.Boundaries[upper] - value) * (m.Boundaries[upper] - value)
		if lowerDiff < upperDiff {
			return Symbol(lower)
		}
		return Symbol(upper)
	}
}

// SymbolToValue is the inverse of ValueToSymbol for a regular or
// out-of-range symbol; EOFSymbol has no value (spec §4.4).
func (m *Model) SymbolToValue(sym Symbol) (float64, error) {
	switch {
	case sym == EOFSymbol:
		return 0, fmt.Errorf("arith: EOF symbol has no value")
	case sym == OutOfRangeSymbol:
		return math.NaN(), nil
	default:
		if int(sym) < 0 || int(sym) >= len(m.Boundaries) {
			return 0, fmt.Errorf("arith: symbol %d out of range", sym)
		}
		return m.Boundaries[sym], nil
	}
}
