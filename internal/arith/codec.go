package arith

import (
	"fmt"
	"math"

	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/benthic-labs/dccl/internal/fieldcodec"
	"github.com/benthic-labs/dccl/internal/schema"
)

// maxPayloadBits conservatively bounds the bits a single field's range
// coding session (one value symbol, then the EOF symbol, then Finish's
// flush) can ever produce: each of the two symbol encodes can trigger at
// most CodeValueBits renormalization shifts, plus Finish's own two bits.
// Actual output is almost always far smaller; this bound only sizes the
// worst case the validator must reserve.
const maxPayloadBits = 2*CodeValueBits + 2

func payloadLengthWidth() int { return bitset.BitWidth(uint64(maxPayloadBits)) }

// Codec implements fieldcodec.Codec over an adaptive arith.Model, wiring
// the range coder into the field-codec contract (spec §4.4). Because the
// coder's own output is not a fixed number of bits per field, and because
// it must stay self-delimiting while sharing a bitstream with other
// (fixed-width) fields, the payload is wrapped in an explicit bit-length
// prefix sized from maxPayloadBits; the EOF symbol embedded inside that
// payload remains the decoder's correctness check that it read a
// well-formed range-coded stream, not merely a length count.
type Codec struct {
	Manager *ModelManager
}

func (c Codec) model(fd *schema.FieldDescriptor) (*Model, error) {
	if fd.ArithModel == "" {
		return nil, fmt.Errorf("arithmetic field %q: no ArithModel named", fd.Name)
	}
	return c.Manager.Get(fd.ArithModel)
}

func (c Codec) Validate(fd *schema.FieldDescriptor) error {
	_, err := c.model(fd)
	return err
}

func (c Codec) MinSize(*schema.FieldDescriptor) (int, error) {
	return payloadLengthWidth(), nil
}

func (c Codec) MaxSize(*schema.FieldDescriptor) (int, error) {
	return payloadLengthWidth() + maxPayloadBits, nil
}

func toArithValue(fd *schema.FieldDescriptor, value any) (float64, error) {
	switch v := value.(type) {
	case bool:
		if v {
			return 1, nil
		}
		return 0, nil
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int32:
		return float64(v), nil
	case int64:
		return float64(v), nil
	case uint32:
		return float64(v), nil
	case uint64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("arithmetic field %q: value %v (%T) is not numeric", fd.Name, value, value)
	}
}

func fromArithValue(fd *schema.FieldDescriptor, value float64) any {
	if math.IsNaN(value) {
		return value
	}
	switch fd.Type {
	case schema.Bool:
		return value != 0
	case schema.Int32, schema.Int64, schema.Uint32, schema.Uint64, schema.Enum:
		return int64(math.Round(value))
	default:
		return value
	}
}

func appendBits(dst, src *bitset.Bitset) error {
	for src.Size() > 0 {
		v, err := src.PopFrontBits(1)
		if err != nil {
			return err
		}
		if err := dst.AppendBits(v, 1); err != nil {
			return err
		}
	}
	return nil
}

func (c Codec) Encode(ctx *fieldcodec.Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) (err error) {
	m, merr := c.model(fd)
	if merr != nil {
		return merr
	}

	encSnap := m.snapshot(StateEncoder)
	defer func() {
		if err != nil {
			m.restore(StateEncoder, encSnap)
		}
	}()

	f, ferr := toArithValue(fd, value)
	if ferr != nil {
		return ferr
	}

	sym := m.ValueToSymbol(f)
	payload := bitset.New()
	enc := NewEncoder(payload)

	lo, hi, total := m.CumFreq(sym, StateEncoder)
	if err = enc.Encode(lo, hi, total); err != nil {
		return err
	}
	m.Update(sym, StateEncoder)

	eofLo, eofHi, eofTotal := m.CumFreq(EOFSymbol, StateEncoder)
	if err = enc.Encode(eofLo, eofHi, eofTotal); err != nil {
		return err
	}
	m.Update(EOFSymbol, StateEncoder)
	enc.Finish()

	if payload.Size() > maxPayloadBits {
		err = fmt.Errorf("arithmetic field %q: coded payload of %d bits exceeds reserved %d", fd.Name, payload.Size(), maxPayloadBits)
		return err
	}
	if err = out.AppendBits(uint64(payload.Size()), payloadLengthWidth()); err != nil {
		return err
	}
	return appendBits(out, payload)
}

func (c Codec) Decode(ctx *fieldcodec.Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (result any, err error) {
	m, merr := c.model(fd)
	if merr != nil {
		return nil, merr
	}

	decSnap := m.snapshot(StateDecoder)
	defer func() {
		if err != nil {
			m.restore(StateDecoder, decSnap)
		}
	}()

	n, nerr := in.PopFrontBits(payloadLengthWidth())
	if nerr != nil {
		return nil, nerr
	}
	payload := bitset.New()
	for i := uint64(0); i < n; i++ {
		v, perr := in.PopFrontBits(1)
		if perr != nil {
			err = perr
			return nil, err
		}
		if err = payload.AppendBits(v, 1); err != nil {
			return nil, err
		}
	}

	dec := NewDecoder(payload)

	total := m.Total(StateDecoder)
	freq := dec.Freq(total)
	sym := m.SymbolForCumFreq(freq, StateDecoder)
	lo, hi, _ := m.CumFreq(sym, StateDecoder)
	if err = dec.Consume(lo, hi, total); err != nil {
		return nil, err
	}
	m.Update(sym, StateDecoder)
	if sym == EOFSymbol {
		err = fmt.Errorf("arithmetic field %q: decoded EOF where a value symbol was expected", fd.Name)
		return nil, err
	}

	value, verr := m.SymbolToValue(sym)
	if verr != nil {
		err = verr
		return nil, err
	}

	eofTotal := m.Total(StateDecoder)
	eofFreq := dec.Freq(eofTotal)
	eofSym := m.SymbolForCumFreq(eofFreq, StateDecoder)
	eofLo, eofHi, _ := m.CumFreq(eofSym, StateDecoder)
	if err = dec.Consume(eofLo, eofHi, eofTotal); err != nil {
		return nil, err
	}
	m.Update(eofSym, StateDecoder)
	if eofSym != EOFSymbol {
		err = fmt.Errorf("arithmetic field %q: expected trailing EOF symbol, got %d", fd.Name, eofSym)
		return nil, err
	}

	return fromArithValue(fd, value), nil
}
