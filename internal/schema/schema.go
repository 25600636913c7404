// Package schema holds the read-only message/field metadata the codec
// walks to encode and decode a record. Descriptors are built once by the
// embedding application and are immutable afterward; nothing in this
// package mutates a descriptor once it is registered with dccl.Load.
package schema

// FieldType names a field's type family. The arithmetic codec may be
// selected for any numeric, Bool or Enum family via a field's CodecName;
// the legacy fixed-width codecs cover Float and Enum in the legacy-ccl
// group, which a message selects through MessageDescriptor.CodecGroup.
// The type family only fixes which Go value kind a codec must accept.
type FieldType int

const (
	Int32 FieldType = iota
	Int64
	Uint32
	Uint64
	Float
	Double
	Bool
	String
	Bytes
	Enum
	Embedded
)

func (t FieldType) String() string {
	switch t {
	case Int32:
		return "int32"
	case Int64:
		return "int64"
	case Uint32:
		return "uint32"
	case Uint64:
		return "uint64"
	case Float:
		return "float"
	case Double:
		return "double"
	case Bool:
		return "bool"
	case String:
		return "string"
	case Bytes:
		return "bytes"
	case Enum:
		return "enum"
	case Embedded:
		return "embedded"
	default:
		return "unknown"
	}
}

// Cardinality is a field's multiplicity.
type Cardinality int

const (
	Required Cardinality = iota
	Optional
	Repeated
)

// FieldDescriptor describes one field of a MessageDescriptor.
type FieldDescriptor struct {
	Name        string
	Type        FieldType
	Cardinality Cardinality

	// MaxCount bounds a Repeated field's element count.
	MaxCount int

	// Min, Max bound a numeric field's legal value (inclusive). Required
	// for every numeric codec except the arithmetic and legacy-fixed
	// families, which take their bounds from a Model or a hard-wired
	// scalar mapping instead (the legacy lat/lon codec reads Max only to
	// choose between the latitude and longitude ranges).
	Min, Max float64

	// Precision is the number of decimal places a Float/Double field is
	// rounded to before encoding (ties to even).
	Precision int

	// MaxLength bounds a String/Bytes field's byte length.
	MaxLength int

	// EnumValues lists an Enum field's legal values in declaration order;
	// the wire value is the dense index into this slice.
	EnumValues []string

	// Message describes a field of type Embedded.
	Message *MessageDescriptor

	// CodecName, if non-empty, overrides the codec group's default codec
	// for this field's type family (registry.Lookup order, spec §4.6).
	CodecName string

	// ArithModel names the probability model an arithmetic-family codec
	// should consult (arith.ModelManager).
	ArithModel string

	// SiblingField names another field of the same enclosing message this
	// field's codec may need to read (Design Note 9's explicit-parameter
	// replacement for the reference source's thread-local "current root
	// message" context — used by the legacy heading codec to read a
	// sibling "thrust mode" enum).
	SiblingField string
}

// MessageDescriptor is a named record: an ordered header (always encoded,
// must be fixed-width, carries routing information) followed by an
// ordered, optionally encrypted body.
type MessageDescriptor struct {
	Name string
	ID   uint32

	Header []*FieldDescriptor
	Body   []*FieldDescriptor

	// MaxSizeBytes overrides the codec-wide default maximum encoded size.
	// Zero means "use the codec's configured default."
	MaxSizeBytes int

	// CodecGroup selects the default field codecs for this message
	// (fieldcodec.Registry) and the group its id is claimed in
	// (idcodec.Registry). It does not select the id wire form: that is
	// set for the whole dccl.Codec by Config.IDCodecName.
	CodecGroup string

	// CryptoKeyID, if non-empty, enables body encryption for this message
	// when the dccl.Codec has a CryptoPassphrase configured. Each Codec
	// holds a single passphrase, so the name itself is not consulted: any
	// non-empty value just turns encryption on.
	CryptoKeyID string
}

// Fields returns the header fields followed by the body fields, the order
// encode/decode and the validator walk the message in.
func (m *MessageDescriptor) Fields() []*FieldDescriptor {
	all := make([]*FieldDescriptor, 0, len(m.Header)+len(m.Body))
	all = append(all, m.Header...)
	all = append(all, m.Body...)
	return all
}

// IsHeaderField reports whether fd is one of m's header fields.
func (m *MessageDescriptor) IsHeaderField(fd *FieldDescriptor) bool {
	for _, h := range m.Header {
		if h == fd {
			return true
		}
	}
	return false
}
