package dccl

import (
	"testing"

	"github.com/benthic-labs/dccl/internal/arith"
	"github.com/benthic-labs/dccl/internal/dccllog"
	"github.com/benthic-labs/dccl/internal/schema"
	"github.com/stretchr/testify/require"
)

func newTestCodec(t *testing.T) *Codec {
	t.Helper()
	c, err := New(Config{Logger: dccllog.Noop()})
	require.NoError(t, err)
	return c
}

// TestEncodeExampleScenario reproduces spec §8's worked example 2: a
// message with id 1 and one required uint32 field (min 0, max 15).
func TestEncodeExampleScenario(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{
		Name: "Nav",
		ID:   1,
		Body: []*schema.FieldDescriptor{
			{Name: "field", Type: schema.Uint32, Cardinality: schema.Required, Min: 0, Max: 15},
		},
	}
	require.NoError(t, c.Load(md))

	data, err := c.Encode("Nav", map[string]any{"field": int64(10)})
	require.NoError(t, err)
	require.Equal(t, []byte{0x01, 0xA0}, data)

	bits, err := c.Size("Nav", map[string]any{"field": int64(10)})
	require.NoError(t, err)
	require.Equal(t, 12, bits)

	name, record, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "Nav", name)
	require.Equal(t, int64(10), record["field"])
}

// TestLongIDScenario reproduces spec §8's example 5.
func TestLongIDScenario(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{
		Name: "Big",
		ID:   300,
		Body: []*schema.FieldDescriptor{
			{Name: "v", Type: schema.Uint32, Cardinality: schema.Required, Min: 0, Max: 1},
		},
	}
	require.NoError(t, c.Load(md))

	data, err := c.Encode("Big", map[string]any{"v": int64(0)})
	require.NoError(t, err)
	require.NotZero(t, data[0]&0x80, "first byte must have MSB set for a long id")

	name, record, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "Big", name)
	require.Equal(t, int64(0), record["v"])
}

func sampleHeaderBody(t *testing.T) *schema.MessageDescriptor {
	t.Helper()
	return &schema.MessageDescriptor{
		Name: "Status",
		ID:   7,
		Header: []*schema.FieldDescriptor{
			{Name: "platform", Type: schema.Uint32, Cardinality: schema.Required, Min: 0, Max: 3},
		},
		Body: []*schema.FieldDescriptor{
			{Name: "depth", Type: schema.Float, Cardinality: schema.Required, Min: -10, Max: 10, Precision: 1},
			{Name: "note", Type: schema.String, Cardinality: schema.Optional, MaxLength: 16},
			{Name: "readings", Type: schema.Int32, Cardinality: schema.Repeated, MaxCount: 4, Min: 0, Max: 100},
		},
	}
}

func TestRoundTripHeaderBodyOptionalRepeated(t *testing.T) {
	c := newTestCodec(t)
	md := sampleHeaderBody(t)
	require.NoError(t, c.Load(md))

	record := map[string]any{
		"platform": int64(2),
		"depth":    -1.5,
		"note":     "hello",
		"readings": []any{int64(1), int64(2), int64(3)},
	}
	data, err := c.Encode("Status", record)
	require.NoError(t, err)

	name, got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "Status", name)
	require.Equal(t, int64(2), got["platform"])
	require.InDelta(t, -1.5, got["depth"].(float64), 1e-9)
	require.Equal(t, "hello", got["note"])
	require.Equal(t, []any{int64(1), int64(2), int64(3)}, got["readings"])
}

func TestOptionalFieldAbsent(t *testing.T) {
	c := newTestCodec(t)
	md := sampleHeaderBody(t)
	require.NoError(t, c.Load(md))

	record := map[string]any{
		"platform": int64(0),
		"depth":    0.0,
		"readings": []any{},
	}
	data, err := c.Encode("Status", record)
	require.NoError(t, err)

	_, got, err := c.Decode(data)
	require.NoError(t, err)
	_, present := got["note"]
	require.False(t, present)
}

// TestEncryptionRoundTrip reproduces spec §8 example 6: the body bits of
// two encodes of the same record differ only within the body region; the
// header bytes and id are identical, and decoding recovers the plaintext.
func TestEncryptionRoundTrip(t *testing.T) {
	c, err := New(Config{CryptoPassphrase: []byte("x"), Logger: dccllog.Noop()})
	require.NoError(t, err)

	md := &schema.MessageDescriptor{
		Name:        "Secret",
		ID:          9,
		CryptoKeyID: "k1",
		Header: []*schema.FieldDescriptor{
			{Name: "route", Type: schema.Uint32, Cardinality: schema.Required, Min: 0, Max: 7},
		},
		Body: []*schema.FieldDescriptor{
			{Name: "payload", Type: schema.Bytes, Cardinality: schema.Required, MaxLength: 8},
		},
	}
	require.NoError(t, c.Load(md))

	record := map[string]any{"route": int64(3), "payload": []byte("secret!!")}
	data, err := c.Encode("Secret", record)
	require.NoError(t, err)

	plainCodec, err := New(Config{Logger: dccllog.Noop()})
	require.NoError(t, err)
	require.NoError(t, plainCodec.Load(md))
	plainData, err := plainCodec.Encode("Secret", record)
	require.NoError(t, err)

	// The id byte and the 3 header bits that follow it are identical
	// whether or not encryption is configured; only the body differs (the
	// encrypted form zero-pads the rest of byte 1 before the body).
	require.Equal(t, data[:1], plainData[:1])
	require.Equal(t, data[1]>>5, plainData[1]>>5)
	require.NotEqual(t, data[2:], plainData[2:])

	_, got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, int64(3), got["route"])
	require.Equal(t, []byte("secret!!"), got["payload"])
}

func TestDecodeAsBypassesIDResolution(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{
		Name: "Ping",
		ID:   4,
		Body: []*schema.FieldDescriptor{
			{Name: "ok", Type: schema.Bool, Cardinality: schema.Required},
		},
	}
	require.NoError(t, c.Load(md))

	data, err := c.Encode("Ping", map[string]any{"ok": true})
	require.NoError(t, err)

	got, err := c.DecodeAs(data, "Ping")
	require.NoError(t, err)
	require.Equal(t, true, got["ok"])
}

func TestLoadRejectsDuplicateID(t *testing.T) {
	c := newTestCodec(t)
	first := &schema.MessageDescriptor{Name: "A", ID: 5, Body: []*schema.FieldDescriptor{
		{Name: "x", Type: schema.Bool, Cardinality: schema.Required},
	}}
	second := &schema.MessageDescriptor{Name: "B", ID: 5, Body: []*schema.FieldDescriptor{
		{Name: "y", Type: schema.Bool, Cardinality: schema.Required},
	}}
	require.NoError(t, c.Load(first))
	err := c.Load(second)
	require.Error(t, err)
	require.IsType(t, &RegistrationError{}, err)
}

func TestLoadRejectsDuplicateName(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{Name: "A", ID: 5, Body: []*schema.FieldDescriptor{
		{Name: "x", Type: schema.Bool, Cardinality: schema.Required},
	}}
	require.NoError(t, c.Load(md))
	require.Error(t, c.Load(md))
}

func TestValidateIsIdempotent(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{Name: "A", ID: 1, Body: []*schema.FieldDescriptor{
		{Name: "x", Type: schema.Bool, Cardinality: schema.Required},
	}}
	require.NoError(t, c.Load(md))
	require.NoError(t, c.Validate("A"))
	require.NoError(t, c.Validate("A"))
}

func TestValidateCatchesOversizeMessage(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{
		Name:         "Huge",
		ID:           1,
		MaxSizeBytes: 1,
		Body: []*schema.FieldDescriptor{
			{Name: "x", Type: schema.Int64, Cardinality: schema.Required, Min: 0, Max: 1 << 30},
		},
	}
	require.NoError(t, c.Load(md))
	err := c.Validate("Huge")
	require.Error(t, err)
	require.IsType(t, &ValidationError{}, err)
}

func TestEncodeMissingRequiredFieldFails(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{Name: "A", ID: 1, Body: []*schema.FieldDescriptor{
		{Name: "x", Type: schema.Bool, Cardinality: schema.Required},
	}}
	require.NoError(t, c.Load(md))

	_, err := c.Encode("A", map[string]any{})
	require.Error(t, err)
	require.IsType(t, &EncodeError{}, err)
}

func TestDecodeUnknownIDFails(t *testing.T) {
	c := newTestCodec(t)
	md := &schema.MessageDescriptor{Name: "A", ID: 1, Body: []*schema.FieldDescriptor{
		{Name: "x", Type: schema.Bool, Cardinality: schema.Required},
	}}
	require.NoError(t, c.Load(md))

	data, err := c.Encode("A", map[string]any{"x": true})
	require.NoError(t, err)
	data[0] |= 0x7F // corrupt the id bits to something unloaded

	_, _, err = c.Decode(data)
	require.Error(t, err)
	require.IsType(t, &DecodeError{}, err)
}

func TestLegacyGroupRoundTrip(t *testing.T) {
	c, err := New(Config{IDCodecName: "legacy-ccl", Logger: dccllog.Noop()})
	require.NoError(t, err)

	md := &schema.MessageDescriptor{
		Name:       "LegacyNav",
		ID:         2,
		CodecGroup: "legacy-ccl",
		Body: []*schema.FieldDescriptor{
			{Name: "lat", Type: schema.Float, Cardinality: schema.Required, Max: 90, CodecName: "latlon"},
			{Name: "mode", Type: schema.Enum, Cardinality: schema.Required, EnumValues: []string{"stopped", "underway"}, CodecName: "legacy-enum"},
		},
	}
	require.NoError(t, c.Load(md))

	record := map[string]any{"lat": 45.0, "mode": "underway"}
	data, err := c.Encode("LegacyNav", record)
	require.NoError(t, err)

	name, got, err := c.Decode(data)
	require.NoError(t, err)
	require.Equal(t, "LegacyNav", name)
	require.InDelta(t, 45.0, got["lat"].(float64), 0.01)
	require.Equal(t, "underway", got["mode"])
}

func TestArithmeticFieldRoundTripAdaptive(t *testing.T) {
	c := newTestCodec(t)
	require.NoError(t, c.CreateModel("m1", []float64{0, 1, 2}, []uint64{1, 1, 1}, true, arith.PolicyStrict))

	md := &schema.MessageDescriptor{
		Name: "Arith",
		ID:   1,
		Body: []*schema.FieldDescriptor{
			{Name: "v", Type: schema.Double, Cardinality: schema.Required, CodecName: "arith", ArithModel: "m1"},
		},
	}
	require.NoError(t, c.Load(md))

	for _, v := range []float64{0, 0, 1} {
		data, err := c.Encode("Arith", map[string]any{"v": v})
		require.NoError(t, err)
		_, got, err := c.Decode(data)
		require.NoError(t, err)
		require.InDelta(t, v, got["v"].(float64), 1e-9)
	}
}

func TestSetIDCodecNameSwitchesWireForm(t *testing.T) {
	c := newTestCodec(t)
	// Id 200 takes the 16-bit long form by default but a single byte in
	// the legacy form; ids below 128 are bit-identical in both forms.
	md := &schema.MessageDescriptor{Name: "A", ID: 200, Body: []*schema.FieldDescriptor{
		{Name: "x", Type: schema.Bool, Cardinality: schema.Required},
	}}
	require.NoError(t, c.Load(md))

	data, err := c.Encode("A", map[string]any{"x": true})
	require.NoError(t, err)

	require.NoError(t, c.SetIDCodecName("legacy-ccl"))
	legacyData, err := c.Encode("A", map[string]any{"x": true})
	require.NoError(t, err)
	require.NotEqual(t, data, legacyData)
}
