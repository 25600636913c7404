package fieldcodec

import (
	"fmt"

	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/benthic-labs/dccl/internal/schema"
)

// presenceBits is the width of the Optional-field presence prefix fixed by
// the Open Question resolution in DESIGN.md: every codec group, legacy-ccl
// included, uses a presence bit uniformly, rather than an in-range sentinel.
const presenceBits = 1

// EncodeMessage walks fields in order, encoding each into out. It applies
// the cardinality wrapper generically (presence bit for Optional, count
// prefix for Repeated) around whatever registry-resolved Codec handles the
// field's type family, and recurses directly for Embedded fields without
// any length delimiter (spec §4.3).
func EncodeMessage(ctx *Context, reg *Registry, fields []*schema.FieldDescriptor, record map[string]any, out *bitset.Bitset) error {
	for _, fd := range fields {
		if err := encodeField(ctx, reg, fd, record, out); err != nil {
			return err
		}
	}
	return nil
}

func encodeField(ctx *Context, reg *Registry, fd *schema.FieldDescriptor, record map[string]any, out *bitset.Bitset) error {
	value, present := record[fd.Name]
	fieldCtx := &Context{Root: ctx.Root, Enclosing: record, Group: ctx.Group,
		Path: append(append([]string{}, ctx.Path...), fd.Name)}

	switch fd.Cardinality {
	case schema.Repeated:
		elems, ok := value.([]any)
		if !present || !ok {
			elems = nil
		}
		if len(elems) > fd.MaxCount {
			return errPath(fieldCtx, "repeated count %d exceeds max %d", len(elems), fd.MaxCount)
		}
		countBits := bitset.BitWidth(uint64(fd.MaxCount))
		if err := out.AppendBits(uint64(len(elems)), countBits); err != nil {
			return errPath(fieldCtx, "encode repeated count: %w", err)
		}
		for i, elem := range elems {
			elemCtx := *fieldCtx
			elemCtx.Path = append(append([]string{}, fieldCtx.Path...), fmt.Sprintf("[%d]", i))
			if err := encodeScalar(&elemCtx, reg, fd, record, elem, out); err != nil {
				return err
			}
		}
		return nil

	case schema.Optional:
		if err := out.AppendBits(boolBit(present && value != nil), presenceBits); err != nil {
			return errPath(fieldCtx, "encode presence bit: %w", err)
		}
		if !present || value == nil {
			return nil
		}
		return encodeScalar(fieldCtx, reg, fd, record, value, out)

	default: // Required
		if !present || value == nil {
			return errPath(fieldCtx, "missing required field")
		}
		return encodeScalar(fieldCtx, reg, fd, record, value, out)
	}
}

func encodeScalar(ctx *Context, reg *Registry, fd *schema.FieldDescriptor, enclosing map[string]any, value any, out *bitset.Bitset) error {
	if fd.Type == schema.Embedded {
		nested, ok := value.(map[string]any)
		if !ok {
			return errPath(ctx, "embedded field value is not a record")
		}
		return EncodeMessage(ctx, reg, fd.Message.Fields(), nested, out)
	}

	codec, err := reg.Lookup(ctx.Group, fd.Type, fd.CodecName)
	if err != nil {
		return errPath(ctx, "%w", err)
	}
	return codec.Encode(ctx, fd, value, out)
}

// DecodeMessage is the inverse of EncodeMessage: it reads fields in the
// same order, returning a freshly built record. On error, it returns the
// record as populated so far (spec §7: "partial decodes leave the output
// record in a defined-but-partial state").
func DecodeMessage(ctx *Context, reg *Registry, fields []*schema.FieldDescriptor, in *bitset.Bitset) (map[string]any, error) {
	record := make(map[string]any, len(fields))
	childCtx := &Context{Root: ctx.Root, Enclosing: record, Path: ctx.Path, Group: ctx.Group}
	for _, fd := range fields {
		if err := decodeField(childCtx, reg, fd, record, in); err != nil {
			return record, err
		}
	}
	return record, nil
}

func decodeField(ctx *Context, reg *Registry, fd *schema.FieldDescriptor, record map[string]any, in *bitset.Bitset) error {
	fieldCtx := &Context{Root: ctx.Root, Enclosing: ctx.Enclosing, Group: ctx.Group,
		Path: append(append([]string{}, ctx.Path...), fd.Name)}

	switch fd.Cardinality {
	case schema.Repeated:
		countBits := bitset.BitWidth(uint64(fd.MaxCount))
		count, err := in.PopFrontBits(countBits)
		if err != nil {
			return errPath(fieldCtx, "decode repeated count: %w", err)
		}
		if int(count) > fd.MaxCount {
			return errPath(fieldCtx, "decoded repeated count %d exceeds max %d", count, fd.MaxCount)
		}
		elems := make([]any, 0, count)
		for i := 0; i < int(count); i++ {
			elemCtx := *fieldCtx
			elemCtx.Path = append(append([]string{}, fieldCtx.Path...), fmt.Sprintf("[%d]", i))
			v, err := decodeScalar(&elemCtx, reg, fd, record, in)
			if err != nil {
				return err
			}
			elems = append(elems, v)
		}
		record[fd.Name] = elems
		return nil

	case schema.Optional:
		presentBits, err := in.PopFrontBits(presenceBits)
		if err != nil {
			return errPath(fieldCtx, "decode presence bit: %w", err)
		}
		if presentBits == 0 {
			return nil
		}
		v, err := decodeScalar(fieldCtx, reg, fd, record, in)
		if err != nil {
			return err
		}
		record[fd.Name] = v
		return nil

	default: // Required
		v, err := decodeScalar(fieldCtx, reg, fd, record, in)
		if err != nil {
			return err
		}
		record[fd.Name] = v
		return nil
	}
}

func decodeScalar(ctx *Context, reg *Registry, fd *schema.FieldDescriptor, enclosing map[string]any, in *bitset.Bitset) (any, error) {
	if fd.Type == schema.Embedded {
		return DecodeMessage(ctx, reg, fd.Message.Fields(), in)
	}

	codec, err := reg.Lookup(ctx.Group, fd.Type, fd.CodecName)
	if err != nil {
		return nil, errPath(ctx, "%w", err)
	}
	return codec.Decode(ctx, fd, in)
}

func boolBit(b bool) uint64 {
	if b {
		return 1
	}
	return 0
}

// FieldMinMax returns the [min, max] bit-width bounds EncodeMessage's call
// for fd can produce, including the cardinality wrapper (presence bit or
// count prefix). The validator sums these across a message's fields.
func FieldMinMax(reg *Registry, group string, fd *schema.FieldDescriptor) (min, max int, err error) {
	var scalarMin, scalarMax int
	if fd.Type == schema.Embedded {
		if scalarMin, scalarMax, err = messageMinMax(reg, group, fd.Message.Fields()); err != nil {
			return 0, 0, err
		}
	} else {
		codec, err := reg.Lookup(group, fd.Type, fd.CodecName)
		if err != nil {
			return 0, 0, err
		}
		if scalarMin, err = codec.MinSize(fd); err != nil {
			return 0, 0, err
		}
		if scalarMax, err = codec.MaxSize(fd); err != nil {
			return 0, 0, err
		}
	}

	switch fd.Cardinality {
	case schema.Repeated:
		countBits := bitset.BitWidth(uint64(fd.MaxCount))
		return countBits, countBits + fd.MaxCount*scalarMax, nil
	case schema.Optional:
		return presenceBits, presenceBits + scalarMax, nil
	default:
		return scalarMin, scalarMax, nil
	}
}

// messageMinMax sums FieldMinMax across fields, the bound an embedded
// message or a top-level header/body section contributes.
func messageMinMax(reg *Registry, group string, fields []*schema.FieldDescriptor) (min, max int, err error) {
	for _, fd := range fields {
		fmin, fmax, err := FieldMinMax(reg, group, fd)
		if err != nil {
			return 0, 0, err
		}
		min += fmin
		max += fmax
	}
	return min, max, nil
}
