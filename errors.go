package dccl

import "fmt"

// The four error kinds named in spec §7. Each wraps an underlying cause
// and, where a field path applies, carries it for the caller to render or
// inspect via errors.As.

// ValidationError reports a schema- or configuration-level problem:
// missing range, precision without a numeric type, an overflowing total
// size, an invalid codec name, or an invalid Config or model definition.
// Raised by Validate and Load, by every Encode/Decode call on a
// descriptor whose (cached) validation failed, and by New, SetConfig,
// SetIDCodecName, CreateModel and ResetModel. A duplicated id is a
// RegistrationError.
type ValidationError struct {
	Path []string
	Err  error
}

func (e *ValidationError) Error() string { return pathError("validation", e.Path, e.Err) }
func (e *ValidationError) Unwrap() error { return e.Err }

// EncodeError reports a runtime encode failure: an out-of-range value for
// a non-arithmetic codec, a repeated count above its max, a string/bytes
// length above its max, or a missing required field. The façade returns
// it with no partial output (the in-progress Bitset is discarded).
type EncodeError struct {
	Path []string
	Err  error
}

func (e *EncodeError) Error() string { return pathError("encode", e.Path, e.Err) }
func (e *EncodeError) Unwrap() error { return e.Err }

// DecodeError reports a runtime decode failure: truncated input, an
// unknown message id, an unknown enum value, a decrypt failure, or a
// cumulative-frequency lookup miss in the arithmetic codec. The partially
// populated record, where one exists, is returned alongside the error.
type DecodeError struct {
	Path []string
	Err  error
}

func (e *DecodeError) Error() string { return pathError("decode", e.Path, e.Err) }
func (e *DecodeError) Unwrap() error { return e.Err }

// RegistrationError reports a duplicate or conflicting codec, model, or
// message-id registration.
type RegistrationError struct {
	Err error
}

func (e *RegistrationError) Error() string { return fmt.Sprintf("dccl: registration: %s", e.Err) }
func (e *RegistrationError) Unwrap() error { return e.Err }

func pathError(kind string, path []string, err error) string {
	if len(path) == 0 {
		return fmt.Sprintf("dccl: %s: %s", kind, err)
	}
	p := path[0]
	for _, seg := range path[1:] {
		p += "." + seg
	}
	return fmt.Sprintf("dccl: %s: %s: %s", kind, p, err)
}
