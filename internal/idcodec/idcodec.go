// Package idcodec implements the message-id prefix that precedes a
// message's header bits on the wire (spec §5): a short form for ids
// 0-127 and a long form for ids 128-32767, plus a fixed-width legacy
// form for the "legacy-ccl" codec group, grounded on how the reference
// source's id codec (original_source/src/field_codec_id.*) picks a
// width from the id's own value rather than from a declared field type.
package idcodec

import (
	"fmt"

	"github.com/benthic-labs/dccl/internal/bitset"
)

const (
	// MaxShortID is the largest id the short (8-bit total) form covers.
	MaxShortID = 127
	// MaxLongID is the largest id the long (16-bit total) form covers.
	MaxLongID = 32767

	shortIDBits = 7
	longIDBits  = 15
)

// Codec is the variable-length default id codec (spec §5's "short id" /
// "long id" forms).
type Codec struct{}

// Encode writes id's wire prefix to out: a 0 continuation bit followed by
// 7 id bits for id <= MaxShortID, or a 1 continuation bit followed by 15
// id bits otherwise.
func (Codec) Encode(id uint32, out *bitset.Bitset) error {
	if id > MaxLongID {
		return fmt.Errorf("idcodec: id %d exceeds maximum %d", id, MaxLongID)
	}
	if id <= MaxShortID {
		if err := out.AppendBits(0, 1); err != nil {
			return err
		}
		return out.AppendBits(uint64(id), shortIDBits)
	}
	if err := out.AppendBits(1, 1); err != nil {
		return err
	}
	return out.AppendBits(uint64(id), longIDBits)
}

// Decode reads an id previously written by Encode from in.
func (Codec) Decode(in *bitset.Bitset) (uint32, error) {
	form, err := in.PopFrontBits(1)
	if err != nil {
		return 0, fmt.Errorf("idcodec: decode continuation bit: %w", err)
	}
	if form == 0 {
		v, err := in.PopFrontBits(shortIDBits)
		if err != nil {
			return 0, fmt.Errorf("idcodec: decode short id: %w", err)
		}
		return uint32(v), nil
	}
	v, err := in.PopFrontBits(longIDBits)
	if err != nil {
		return 0, fmt.Errorf("idcodec: decode long id: %w", err)
	}
	return uint32(v), nil
}

// Size returns the exact bit width Encode(id, ...) will produce.
func (Codec) Size(id uint32) (int, error) {
	if id > MaxLongID {
		return 0, fmt.Errorf("idcodec: id %d exceeds maximum %d", id, MaxLongID)
	}
	if id <= MaxShortID {
		return 1 + shortIDBits, nil
	}
	return 1 + longIDBits, nil
}

const legacyIDBits = 8
const maxLegacyID = 255

// LegacyCodec is the fixed-width id form used by the "legacy-ccl" codec
// group (spec §9's legacy supplement): a single byte, no continuation
// bit, matching the historical wire format it stays compatible with.
type LegacyCodec struct{}

func (LegacyCodec) Encode(id uint32, out *bitset.Bitset) error {
	if id > maxLegacyID {
		return fmt.Errorf("idcodec: legacy id %d exceeds maximum %d", id, maxLegacyID)
	}
	return out.AppendBits(uint64(id), legacyIDBits)
}

func (LegacyCodec) Decode(in *bitset.Bitset) (uint32, error) {
	v, err := in.PopFrontBits(legacyIDBits)
	if err != nil {
		return 0, fmt.Errorf("idcodec: decode legacy id: %w", err)
	}
	return uint32(v), nil
}

func (LegacyCodec) Size(uint32) (int, error) { return legacyIDBits, nil }
