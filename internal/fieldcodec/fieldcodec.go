// Package fieldcodec defines the per-field encode/decode contract (spec
// §4.2), the built-in codecs for DCCL's scalar and container field types
// (spec §4.3), and the registry that resolves a codec for a given field
// (spec §4.6). It also owns the recursive message-level walk (encode/decode
// of a field list), since the embedded-message field type needs to recurse
// back into that walk and nothing above this package needs to.
package fieldcodec

import (
	"fmt"

	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/benthic-labs/dccl/internal/schema"
)

// Context replaces the reference implementation's thread-local "current
// root message" stack (Design Note 9) with an explicit argument every codec
// call receives: the record currently being encoded/decoded from its root,
// and the dotted path to the field in progress, used only to annotate
// errors and to let a codec read a named sibling field (schema's
// SiblingField, e.g. the legacy heading codec's "thrust mode" lookup).
type Context struct {
	// Root is the outermost record being encoded or decoded.
	Root map[string]any

	// Enclosing is the record that directly contains the field currently
	// being processed (may equal Root, or be a nested embedded message).
	Enclosing map[string]any

	// Path is the dotted field path from Root to the current field, used
	// only for error messages.
	Path []string

	// Group is the codec group in effect for the message being processed.
	Group string
}

// PathString renders Path for error messages, e.g. "nav.lat".
func (c *Context) PathString() string {
	s := ""
	for i, p := range c.Path {
		if i > 0 {
			s += "."
		}
		s += p
	}
	return s
}

// Sibling looks up another field of the enclosing record by name, the
// explicit-parameter replacement for the reference source's thread-local
// context (used by legacy codecs that need to read a sibling field, e.g.
// heading reading a "thrust mode" enum).
func (c *Context) Sibling(name string) (any, bool) {
	v, ok := c.Enclosing[name]
	return v, ok
}

// Codec is the contract every field-type implementation satisfies (spec
// §4.2). Encode/Decode operate on one already-present scalar value; the
// cardinality wrapper (presence bit for Optional, count prefix for
// Repeated) is handled once, generically, by EncodeMessage/DecodeMessage
// below, so individual codecs need not duplicate it.
type Codec interface {
	// Validate fails with a descriptive error if fd's options are
	// insufficient or contradictory for this codec (e.g. a float field
	// whose Max is below its Min).
	Validate(fd *schema.FieldDescriptor) error

	// Encode writes value's encoding to out. Most codecs write a fixed
	// number of bits per call (MinSize == MaxSize); string/bytes and the
	// arithmetic codec write a variable number bounded by
	// [MinSize, MaxSize].
	Encode(ctx *Context, fd *schema.FieldDescriptor, value any, out *bitset.Bitset) error

	// Decode consumes exactly the bits the matching Encode call produced
	// for a legal input and returns the decoded value.
	Decode(ctx *Context, fd *schema.FieldDescriptor, in *bitset.Bitset) (any, error)

	// MinSize and MaxSize bound, in bits, any single legal Encode call for
	// fd. The validator sums these across every field (via FieldMinMax)
	// to prove a bounded encoding.
	MinSize(fd *schema.FieldDescriptor) (int, error)
	MaxSize(fd *schema.FieldDescriptor) (int, error)
}

// errPath wraps err with the context's current field path, the way every
// codec in this package reports a failure.
func errPath(ctx *Context, format string, args ...any) error {
	msg := fmt.Sprintf(format, args...)
	if ctx == nil || len(ctx.Path) == 0 {
		return fmt.Errorf("%s", msg)
	}
	return fmt.Errorf("%s: %s", ctx.PathString(), msg)
}
