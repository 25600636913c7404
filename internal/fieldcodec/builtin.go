package fieldcodec

import (
	"fmt"
	"math"

	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/benthic-labs/dccl/internal/schema"
)

// IntegerCodec implements spec §4.3's default integer codec: bits =
// ceil(log2(max-min+1)), value encoded as value-min. It is registered for
// every numeric family (Int32, Int64, Uint32, Uint64); it accepts an int,
// int32, int64, uint32 or uint64 value and always decodes to int64 (the
// schema surface does not itself coerce types).
type IntegerCodec struct{}

func (IntegerCodec) Validate(fd *schema.FieldDescriptor) error {
	if fd.Max < fd.Min {
		return fmt.Errorf("integer field: max %v is less than min %v", fd.Max, fd.Min)
	}
	return nil
}

func (IntegerCodec) span(fd *schema.FieldDescriptor) uint64 {
	return uint64(fd.Max - fd.Min)
}

func (c IntegerCodec) MinSize(fd *schema.FieldDescriptor) (int, error) {
	return bitset.BitWidth(c.span(fd)), nil
}

func (c IntegerCodec) MaxSize(fd *schema.FieldDescriptor) (int, error) {
	return bitset.BitWidth(c.span(fd)), nil
}

func (c IntegerCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	n, err := toInt64(value)
	if err != nil {
		return errPath(ctx, "%w", err)
	}
	if float64(n) < fd.Min || float64(n) > fd.Max {
		return errPath(ctx, "value %d out of range [%v, %v]", n, fd.Min, fd.Max)
	}
	width := bitset.BitWidth(c.span(fd))
	return out.AppendBits(uint64(n)-uint64(fd.Min), width)
}

func (c IntegerCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	width := bitset.BitWidth(c.span(fd))
	if width == 0 {
		return int64(fd.Min), nil
	}
	v, err := in.PopFrontBits(width)
	if err != nil {
		return nil, errPath(ctx, "decode integer: %w", err)
	}
	return int64(v) + int64(fd.Min), nil
}

func toInt64(value any) (int64, error) {
	switch v := value.(type) {
	case int:
		return int64(v), nil
	case int32:
		return int64(v), nil
	case int64:
		return v, nil
	case uint32:
		return int64(v), nil
	case uint64:
		return int64(v), nil
	default:
		return 0, fmt.Errorf("integer field: value %v (%T) is not an integer", value, value)
	}
}

// FloatCodec implements spec §4.3's precision-scaled float codec: multiply
// by 10^precision, round to nearest with ties to even, then delegate to the
// same bit-width math as IntegerCodec over the scaled range.
type FloatCodec struct{}

func (FloatCodec) Validate(fd *schema.FieldDescriptor) error {
	if fd.Precision < 0 {
		return fmt.Errorf("float field: precision must be non-negative, got %d", fd.Precision)
	}
	if fd.Max < fd.Min {
		return fmt.Errorf("float field: max %v is less than min %v", fd.Max, fd.Min)
	}
	return nil
}

func (FloatCodec) scale(fd *schema.FieldDescriptor) float64 {
	return math.Pow(10, float64(fd.Precision))
}

func (c FloatCodec) scaledSpan(fd *schema.FieldDescriptor) uint64 {
	scale := c.scale(fd)
	return uint64(math.Round(fd.Max*scale) - math.Round(fd.Min*scale))
}

func (c FloatCodec) MinSize(fd *schema.FieldDescriptor) (int, error) {
	return bitset.BitWidth(c.scaledSpan(fd)), nil
}

func (c FloatCodec) MaxSize(fd *schema.FieldDescriptor) (int, error) {
	return bitset.BitWidth(c.scaledSpan(fd)), nil
}

// roundTiesToEven rounds x to the nearest integer, breaking ties toward
// the even neighbour (banker's rounding), matching spec §4.3's "rounds to
// nearest (ties to even)".
func roundTiesToEven(x float64) float64 {
	floor := math.Floor(x)
	diff := x - floor
	switch {
	case diff < 0.5:
		return floor
	case diff > 0.5:
		return floor + 1
	default:
		if math.Mod(floor, 2) == 0 {
			return floor
		}
		return floor + 1
	}
}

func (c FloatCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	f, err := toFloat64(value)
	if err != nil {
		return errPath(ctx, "%w", err)
	}
	scale := c.scale(fd)
	scaled := roundTiesToEven(f * scale)
	scaledMin := roundTiesToEven(fd.Min * scale)
	scaledMax := roundTiesToEven(fd.Max * scale)
	if scaled < scaledMin || scaled > scaledMax {
		return errPath(ctx, "value %v out of range [%v, %v]", f, fd.Min, fd.Max)
	}
	width := bitset.BitWidth(uint64(scaledMax - scaledMin))
	return out.AppendBits(uint64(scaled-scaledMin), width)
}

func (c FloatCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	scale := c.scale(fd)
	scaledMin := roundTiesToEven(fd.Min * scale)
	scaledMax := roundTiesToEven(fd.Max * scale)
	width := bitset.BitWidth(uint64(scaledMax - scaledMin))
	if width == 0 {
		return fd.Min, nil
	}
	v, err := in.PopFrontBits(width)
	if err != nil {
		return nil, errPath(ctx, "decode float: %w", err)
	}
	return (float64(v) + scaledMin) / scale, nil
}

func toFloat64(value any) (float64, error) {
	switch v := value.(type) {
	case float32:
		return float64(v), nil
	case float64:
		return v, nil
	case int:
		return float64(v), nil
	case int64:
		return float64(v), nil
	default:
		return 0, fmt.Errorf("float field: value %v (%T) is not numeric", value, value)
	}
}

// BoolCodec implements spec §4.3's bool: it writes 1 bit per value and has
// no optional form of its own. For an Optional field EncodeMessage adds
// its presence bit, so an optional bool costs 2 bits in all and a
// required one 1 bit.
type BoolCodec struct{}

func (BoolCodec) Validate(*schema.FieldDescriptor) error { return nil }

func (BoolCodec) MinSize(*schema.FieldDescriptor) (int, error) { return 1, nil }
func (BoolCodec) MaxSize(*schema.FieldDescriptor) (int, error) { return 1, nil }

func (BoolCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	b, ok := value.(bool)
	if !ok {
		return errPath(ctx, "bool field: value %v (%T) is not a bool", value, value)
	}
	return out.AppendBits(boolBit(b), 1)
}

func (BoolCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	v, err := in.PopFrontBits(1)
	if err != nil {
		return nil, errPath(ctx, "decode bool: %w", err)
	}
	return v == 1, nil
}

// EnumCodec implements spec §4.3: a dense integer over fd.EnumValues, in
// declaration order.
type EnumCodec struct{}

func (EnumCodec) Validate(fd *schema.FieldDescriptor) error {
	if len(fd.EnumValues) == 0 {
		return fmt.Errorf("enum field: no enum values declared")
	}
	return nil
}

func (EnumCodec) width(fd *schema.FieldDescriptor) int {
	return bitset.BitWidth(uint64(len(fd.EnumValues) - 1))
}

func (c EnumCodec) MinSize(fd *schema.FieldDescriptor) (int, error) { return c.width(fd), nil }
func (c EnumCodec) MaxSize(fd *schema.FieldDescriptor) (int, error) { return c.width(fd), nil }

func (c EnumCodec) indexOf(fd *schema.FieldDescriptor, name string) (int, bool) {
	for i, v := range fd.EnumValues {
		if v == name {
			return i, true
		}
	}
	return 0, false
}

func (c EnumCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	name, ok := value.(string)
	if !ok {
		return errPath(ctx, "enum field: value %v (%T) is not a string", value, value)
	}
	idx, ok := c.indexOf(fd, name)
	if !ok {
		return errPath(ctx, "enum field: %q is not a declared value", name)
	}
	return out.AppendBits(uint64(idx), c.width(fd))
}

func (c EnumCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	v, err := in.PopFrontBits(c.width(fd))
	if err != nil {
		return nil, errPath(ctx, "decode enum: %w", err)
	}
	if int(v) >= len(fd.EnumValues) {
		return nil, errPath(ctx, "decode enum: index %d has no declared value", v)
	}
	return fd.EnumValues[v], nil
}

// StringCodec and BytesCodec implement spec §4.3: a length prefix (bits =
// ceil(log2(max_length+1))) followed by length*8 bits of payload.
type StringCodec struct{}
type BytesCodec struct{}

func lengthWidth(fd *schema.FieldDescriptor) int {
	return bitset.BitWidth(uint64(fd.MaxLength))
}

func (StringCodec) Validate(fd *schema.FieldDescriptor) error { return validateMaxLength(fd) }
func (BytesCodec) Validate(fd *schema.FieldDescriptor) error  { return validateMaxLength(fd) }

func validateMaxLength(fd *schema.FieldDescriptor) error {
	if fd.MaxLength <= 0 {
		return fmt.Errorf("string/bytes field: MaxLength must be positive, got %d", fd.MaxLength)
	}
	return nil
}

func (StringCodec) MinSize(fd *schema.FieldDescriptor) (int, error) { return lengthWidth(fd), nil }
func (StringCodec) MaxSize(fd *schema.FieldDescriptor) (int, error) {
	return lengthWidth(fd) + fd.MaxLength*8, nil
}
func (BytesCodec) MinSize(fd *schema.FieldDescriptor) (int, error) { return lengthWidth(fd), nil }
func (BytesCodec) MaxSize(fd *schema.FieldDescriptor) (int, error) {
	return lengthWidth(fd) + fd.MaxLength*8, nil
}

func encodeLengthPrefixed(ctx *Context, fd *schema.FieldDescriptor, data []byte, out *bitset.Bitset) error {
	if len(data) > fd.MaxLength {
		return errPath(ctx, "length %d exceeds max %d", len(data), fd.MaxLength)
	}
	if err := out.AppendBits(uint64(len(data)), lengthWidth(fd)); err != nil {
		return errPath(ctx, "encode length prefix: %w", err)
	}
	for _, b := range data {
		if err := out.AppendBits(uint64(b), 8); err != nil {
			return errPath(ctx, "encode byte: %w", err)
		}
	}
	return nil
}

func decodeLengthPrefixed(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) ([]byte, error) {
	length, err := in.PopFrontBits(lengthWidth(fd))
	if err != nil {
		return nil, errPath(ctx, "decode length prefix: %w", err)
	}
	if int(length) > fd.MaxLength {
		return nil, errPath(ctx, "decoded length %d exceeds max %d", length, fd.MaxLength)
	}
	data := make([]byte, length)
	for i := range data {
		b, err := in.PopFrontBits(8)
		if err != nil {
			return nil, errPath(ctx, "decode byte %d: %w", i, err)
		}
		data[i] = byte(b)
	}
	return data, nil
}

func (StringCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	s, ok := value.(string)
	if !ok {
		return errPath(ctx, "string field: value %v (%T) is not a string", value, value)
	}
	return encodeLengthPrefixed(ctx, fd, []byte(s), out)
}

func (StringCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	data, err := decodeLengthPrefixed(ctx, fd, in)
	if err != nil {
		return nil, err
	}
	return string(data), nil
}

func (BytesCodec) Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error {
	b, ok := value.([]byte)
	if !ok {
		return errPath(ctx, "bytes field: value %v (%T) is not []byte", value, value)
	}
	return encodeLengthPrefixed(ctx, fd, b, out)
}

func (BytesCodec) Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error) {
	return decodeLengthPrefixed(ctx, fd, in)
}

// Bootstrap registers the default, non-legacy codec set for group under
// every numeric/string/bool/enum family and marks them as that group's
// defaults (spec §4.6's "group default codec"). Embedded fields need no
// registry entry: EncodeMessage/DecodeMessage recurse into them directly.
func Bootstrap(reg *Registry, group string) error {
	codecs := []struct {
		family schema.FieldType
		name   string
		impl   Codec
	}{
		{schema.Int32, "integer", IntegerCodec{}},
		{schema.Int64, "integer", IntegerCodec{}},
		{schema.Uint32, "integer", IntegerCodec{}},
		{schema.Uint64, "integer", IntegerCodec{}},
		{schema.Float, "float", FloatCodec{}},
		{schema.Double, "float", FloatCodec{}},
		{schema.Bool, "bool", BoolCodec{}},
		{schema.String, "string", StringCodec{}},
		{schema.Bytes, "bytes", BytesCodec{}},
		{schema.Enum, "enum", EnumCodec{}},
	}

	for _, c := range codecs {
		if err := reg.Add(group, c.family, c.name, c.impl); err != nil {
			return err
		}
		reg.SetDefault(group, c.family, c.name)
	}
	return nil
}
