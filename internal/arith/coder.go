package arith

import (
	"errors"

	"github.com/benthic-labs/dccl/internal/bitset"
)

var errZeroTotal = errors.New("arith: model has zero total frequency")

// Encoder and Decoder implement the bit-oriented range coder described in
// spec §4.4's pseudocode (the classic Witten-Neal-Cleary CACM87 scheme):
// a shrinking [low, high] interval, one output bit per halving, and
// "pending bit" tracking across the interval's middle straddle. This is a
// from-scratch implementation in the teacher's explicit-struct,
// explicit-method style; the byte-oriented carry-propagating range coder
// in other_examples (an RFC 6716 Opus encoder) is structurally a different
// algorithm and was not portable, only consulted for Go idiom.
const (
	topValue     = uint64(1)<<CodeValueBits - 1
	firstQuarter = (topValue / 4) + 1
	half         = 2 * firstQuarter
	thirdQuarter = 3 * firstQuarter
)

// Encoder narrows [low, high] as symbols are coded and emits bits to out
// as the interval's leading bits settle.
type Encoder struct {
	low, high uint64
	pending   int
	out       *bitset.Bitset
}

// NewEncoder returns an Encoder that appends bits to out.
func NewEncoder(out *bitset.Bitset) *Encoder {
	return &Encoder{low: 0, high: topValue, out: out}
}

// Encode narrows the interval to the sub-range [lo, hi) out of total,
// then emits any bits that have become fixed.
func (e *Encoder) Encode(lo, hi, total uint64) error {
	if total == 0 {
		return errZeroTotal
	}
	span := e.high - e.low + 1
	e.high = e.low + (span*hi)/total - 1
	e.low = e.low + (span*lo)/total

	for {
		switch {
		case e.high < half:
			e.emit(0)
		case e.low >= half:
			e.emit(1)
			e.low -= half
			e.high -= half
		case e.low >= firstQuarter && e.high < thirdQuarter:
			e.pending++
			e.low -= firstQuarter
			e.high -= firstQuarter
		default:
			return nil
		}
		e.low <<= 1
		e.high = (e.high << 1) | 1
		e.low &= topValue
		e.high &= topValue
	}
}

func (e *Encoder) emit(bit uint64) {
	e.out.AppendBits(bit, 1)
	for ; e.pending > 0; e.pending-- {
		e.out.AppendBits(1-bit, 1)
	}
}

// Finish flushes the bits needed to disambiguate the final interval. Must
// be called exactly once, after the last symbol (conventionally EOFSymbol)
// has been encoded.
func (e *Encoder) Finish() {
	e.pending++
	if e.low < firstQuarter {
		e.emit(0)
	} else {
		e.emit(1)
	}
}

// Decoder mirrors Encoder, tracking the same [low, high] interval plus a
// value register holding the coded bits read so far.
type Decoder struct {
	low, high, value uint64
	in               *bitset.Bitset
}

// NewDecoder returns a Decoder reading from in, which must hold exactly
// the bits an Encoder emitted (Finish included); missing bits beyond in's
// length read as zero, matching the zero-padding convention used
// elsewhere in the wire format.
func NewDecoder(in *bitset.Bitset) *Decoder {
	d := &Decoder{low: 0, high: topValue, in: in}
	for i := 0; i < CodeValueBits; i++ {
		d.value = (d.value << 1) | popBitOrZero(in)
	}
	return d
}

// Freq returns the cumulative-frequency position (out of total) that the
// decoder's current value register corresponds to; the caller looks this
// up in its Model to find which symbol was coded.
func (d *Decoder) Freq(total uint64) uint64 {
	span := d.high - d.low + 1
	return ((d.value-d.low+1)*total - 1) / span
}

// Consume narrows the interval to [lo, hi) out of total (the range the
// caller determined d.Freq fell into) and reads in any newly required
// bits, mirroring Encoder.Encode.
func (d *Decoder) Consume(lo, hi, total uint64) error {
	if total == 0 {
		return errZeroTotal
	}
	span := d.high - d.low + 1
	d.high = d.low + (span*hi)/total - 1
	d.low = d.low + (span*lo)/total

	for {
		switch {
		case d.high < half:
		case d.low >= half:
			d.low -= half
			d.high -= half
			d.value -= half
		case d.low >= firstQuarter && d.high < thirdQuarter:
			d.low -= firstQuarter
			d.high -= firstQuarter
			d.value -= firstQuarter
		default:
			return nil
		}
		d.low <<= 1
		d.high = (d.high << 1) | 1
		d.value = (d.value<<1 | popBitOrZero(d.in)) & topValue
		d.low &= topValue
		d.high &= topValue
	}
}

func popBitOrZero(b *bitset.Bitset) uint64 {
	v, err := b.PopFrontBits(1)
	if err != nil {
		return 0
	}
	return v
}
