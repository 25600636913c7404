package fieldcodec

import (
	"fmt"
	"math"

	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/benthic-labs/dccl/internal/schema"
)

// This file implements the "legacy CCL" compatibility codec group (spec
// §4.3's "Fixed-legacy codecs"), grounded on
// original_source/src/dccl_ccl_compatibility.cpp: a historical fixed-width
// acoustic message format that predates DCCL's range/precision-hint
// system. These codecs ignore a field's Min and Precision and expose a
// constant width; LatLonCodec reads Max only to tell latitude (90) from
// longitude (180), and the others ignore Max as well.

const (
	latLonBits  = 24 // 3 bytes
	headingBits = 8  // 1 byte
	legacyEnumBits = 8
)

// LatLonCodec is a 3-byte fixed-point encoding of a latitude (range
// [-90, 90]) or longitude (range [-180, 180]) in degrees. Which range
// applies is read from the field's own Max (90 for latitude, 180 for
// longitude) rather than hard-coded per field name, so one implementation
// serves both.
type LatLonCodec struct{}

func (LatLonCodec) Validate(fd *schema.FieldDescriptor) error {
	if fd.Max != 90 && fd.Max != 180 {
		return fmt.Errorf("latlon field: Max must be 90 (latitude) or 180 (longitude), got %v", fd.Max)
	}
	return nil
}

func (LatLonCodec) MinSize(*schema.FieldDescriptor) (int, error) { return latLonBits, nil }
func (LatLonCodec) MaxSize(*schema.FieldDescriptor) (int, error) { return latLonBits, nil }

func (LatLonCodec) scale(fd *schema.FieldDescriptor) float64 {
	span := 2 * fd.Max
	return float64((uint64(1)<<latLonBits)-1) / span
}

func (c LatLonCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	f, err := toFloat64(value)
	if err != nil {
		return errPath(ctx, "%w", err)
	}
	if f < -fd.Max || f > fd.Max {
		return errPath(ctx, "latlon value %v out of range [-%v, %v]", f, fd.Max, fd.Max)
	}
	scaled := uint64(math.Round((f + fd.Max) * c.scale(fd)))
	return out.AppendBits(scaled, latLonBits)
}

func (c LatLonCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	v, err := in.PopFrontBits(latLonBits)
	if err != nil {
		return nil, errPath(ctx, "decode latlon: %w", err)
	}
	return float64(v)/c.scale(fd) - fd.Max, nil
}

// HeadingCodec is a 1-byte fixed-point encoding of a compass heading in
// [0, 360) degrees. It demonstrates Design Note 9's explicit-context
// replacement for the reference source's thread-local lookup: when the
// field descriptor names a SiblingField (the legacy "thrust mode" enum
// sitting alongside heading in the same message), the codec resolves it
// through ctx.Sibling rather than a global stack, and rejects a heading
// reading while the sibling reports "stopped" (a stationary platform has
// no meaningful heading in the legacy format).
type HeadingCodec struct{}

func (HeadingCodec) Validate(*schema.FieldDescriptor) error { return nil }

func (HeadingCodec) MinSize(*schema.FieldDescriptor) (int, error) { return headingBits, nil }
func (HeadingCodec) MaxSize(*schema.FieldDescriptor) (int, error) { return headingBits, nil }

const headingScale = float64((uint64(1) << headingBits)) / 360.0

func (HeadingCodec) checkThrustMode(ctx *Context, fd *schema.FieldDescriptor) error {
	if fd.SiblingField == "" {
		return nil
	}
	mode, ok := ctx.Sibling(fd.SiblingField)
	if !ok {
		return errPath(ctx, "sibling field %q not found for heading", fd.SiblingField)
	}
	if mode == "stopped" {
		return errPath(ctx, "heading is not meaningful while %q is \"stopped\"", fd.SiblingField)
	}
	return nil
}

func (c HeadingCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	if err := c.checkThrustMode(ctx, fd); err != nil {
		return err
	}
	f, err := toFloat64(value)
	if err != nil {
		return errPath(ctx, "%w", err)
	}
	if f < 0 || f >= 360 {
		return errPath(ctx, "heading value %v out of range [0, 360)", f)
	}
	scaled := uint64(math.Round(f * headingScale))
	if scaled >= uint64(1)<<headingBits {
		scaled = (uint64(1) << headingBits) - 1
	}
	return out.AppendBits(scaled, headingBits)
}

func (c HeadingCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	v, err := in.PopFrontBits(headingBits)
	if err != nil {
		return nil, errPath(ctx, "decode heading: %w", err)
	}
	return float64(v) / headingScale, nil
}

// LegacyEnumCodec is a dense 1-byte enum encoding (the legacy "thrust
// mode" field), regardless of how few values are declared: the legacy
// wire format always spends a full byte here, unlike EnumCodec's
// minimal-width encoding.
type LegacyEnumCodec struct{}

func (LegacyEnumCodec) Validate(fd *schema.FieldDescriptor) error {
	if len(fd.EnumValues) == 0 {
		return fmt.Errorf("legacy enum field: no enum values declared")
	}
	if len(fd.EnumValues) > 1<<legacyEnumBits {
		return fmt.Errorf("legacy enum field: %d values exceed 1-byte capacity", len(fd.EnumValues))
	}
	return nil
}

func (LegacyEnumCodec) MinSize(*schema.FieldDescriptor) (int, error) { return legacyEnumBits, nil }
func (LegacyEnumCodec) MaxSize(*schema.FieldDescriptor) (int, error) { return legacyEnumBits, nil }

func (LegacyEnumCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	name, ok := value.(string)
	if !ok {
		return errPath(ctx, "legacy enum field: value %v (%T) is not a string", value, value)
	}
	for i, v := range fd.EnumValues {
		if v == name {
			return out.AppendBits(uint64(i), legacyEnumBits)
		}
	}
	return errPath(ctx, "legacy enum field: %q is not a declared value", name)
}

func (LegacyEnumCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	v, err := in.PopFrontBits(legacyEnumBits)
	if err != nil {
		return nil, errPath(ctx, "decode legacy enum: %w", err)
	}
	if int(v) >= len(fd.EnumValues) {
		return nil, errPath(ctx, "decode legacy enum: index %d has no declared value", v)
	}
	return fd.EnumValues[v], nil
}

// BootstrapLegacy registers the legacy-ccl codec group's fixed-width
// codecs. Lat/lon and heading both cover the Float family (selected per
// field via CodecName, since both "latlon" and "heading" share the same
// type family but very different wire shapes); LegacyEnumCodec covers
// Enum.
func BootstrapLegacy(reg *Registry, group string) error {
	if err := reg.Add(group, schema.Float, "latlon", LatLonCodec{}); err != nil {
		return err
	}
	if err := reg.Add(group, schema.Float, "heading", HeadingCodec{}); err != nil {
		return err
	}
	reg.SetDefault(group, schema.Float, "latlon")
	if err := reg.Add(group, schema.Enum, "legacy-enum", LegacyEnumCodec{}); err != nil {
		return err
	}
	reg.SetDefault(group, schema.Enum, "legacy-enum")
	return nil
}
