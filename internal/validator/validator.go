// Package validator implements schema-load validation (spec §4.5):
// proving a MessageDescriptor's header is fixed-width and that the whole
// message's encoding is bounded within its configured maximum size,
// before any record is ever encoded against it. Grounded on the
// teacher's internal/config.Validate's shape (a sequence of named checks
// each returning a wrapped error) applied to DCCL's own schema rules.
package validator

import (
	"fmt"

	"github.com/benthic-labs/dccl/internal/fieldcodec"
	"github.com/benthic-labs/dccl/internal/schema"
)

// ValidationError reports a schema problem found at the named field path.
type ValidationError struct {
	Path []string
	Err  error
}

func (e *ValidationError) Error() string {
	if len(e.Path) == 0 {
		return e.Err.Error()
	}
	path := e.Path[0]
	for _, p := range e.Path[1:] {
		path += "." + p
	}
	return fmt.Sprintf("%s: %s", path, e.Err)
}

func (e *ValidationError) Unwrap() error { return e.Err }

func fail(err error, path ...string) error {
	return &ValidationError{Path: path, Err: err}
}

// Validate checks md against every rule a schema must satisfy before it
// can be loaded: every header and body field must validate under reg,
// every header field must be required and the header fixed-width (min ==
// max bits), and the message's total bound (header + body, in bytes,
// rounded up) must not exceed maxSizeBytes, or md.MaxSizeBytes when that
// is set and smaller.
func Validate(reg *fieldcodec.Registry, group string, md *schema.MessageDescriptor, maxSizeBytes int) error {
	if md.Name == "" {
		return fail(fmt.Errorf("message has no name"))
	}

	for _, fd := range md.Header {
		if err := validateField(reg, group, fd, true); err != nil {
			return fail(err, md.Name, fd.Name)
		}
	}
	for _, fd := range md.Body {
		if err := validateField(reg, group, fd, false); err != nil {
			return fail(err, md.Name, fd.Name)
		}
	}

	headerMin, headerMax, err := sectionMinMax(reg, group, md.Header)
	if err != nil {
		return fail(err, md.Name)
	}
	if headerMin != headerMax {
		return fail(fmt.Errorf("header is not fixed-width: %d to %d bits", headerMin, headerMax), md.Name)
	}

	_, bodyMax, err := sectionMinMax(reg, group, md.Body)
	if err != nil {
		return fail(err, md.Name)
	}

	totalMaxBits := headerMax + bodyMax
	totalMaxBytes := (totalMaxBits + 7) / 8
	limit := maxSizeBytes
	if md.MaxSizeBytes > 0 && md.MaxSizeBytes < limit {
		limit = md.MaxSizeBytes
	}
	if limit > 0 && totalMaxBytes > limit {
		return fail(fmt.Errorf("worst-case size %d bytes exceeds maximum %d bytes", totalMaxBytes, limit), md.Name)
	}

	return nil
}

func validateField(reg *fieldcodec.Registry, group string, fd *schema.FieldDescriptor, inHeader bool) error {
	if fd.Name == "" {
		return fmt.Errorf("field has no name")
	}
	if fd.Type == schema.Embedded {
		if fd.Message == nil {
			return fmt.Errorf("embedded field %q names no message", fd.Name)
		}
		for _, nested := range fd.Message.Fields() {
			if err := validateField(reg, group, nested, false); err != nil {
				return fmt.Errorf("%s.%w", fd.Name, err)
			}
		}
		return nil
	}

	codec, err := reg.Lookup(group, fd.Type, fd.CodecName)
	if err != nil {
		return err
	}
	if err := codec.Validate(fd); err != nil {
		return err
	}
	if inHeader && fd.Cardinality != schema.Required {
		return fmt.Errorf("header field %q must be required (fixed-width)", fd.Name)
	}
	return nil
}

func sectionMinMax(reg *fieldcodec.Registry, group string, fields []*schema.FieldDescriptor) (min, max int, err error) {
	for _, fd := range fields {
		fmin, fmax, err := fieldcodec.FieldMinMax(reg, group, fd)
		if err != nil {
			return 0, 0, err
		}
		min += fmin
		max += fmax
	}
	return min, max, nil
}
