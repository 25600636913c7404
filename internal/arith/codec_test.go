package arith

import (
	"testing"

	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/benthic-labs/dccl/internal/schema"
	"github.com/stretchr/testify/require"
)

func newTestManager(t *testing.T) *ModelManager {
	mm := NewModelManager()
	m, err := NewModel("depth-levels", []float64{0, 1, 2, 3}, nil, true, PolicyStrict)
	require.NoError(t, err)
	require.NoError(t, mm.Register(m))
	return mm
}

func TestArithmeticCodecRoundTrip(t *testing.T) {
	mm := newTestManager(t)
	c := Codec{Manager: mm}
	fd := &schema.FieldDescriptor{Name: "depth", Type: schema.Float, ArithModel: "depth-levels"}

	out := bitset.New()
	require.NoError(t, c.Encode(nil, fd, 2.0, out))

	v, err := c.Decode(nil, fd, out)
	require.NoError(t, err)
	require.Equal(t, 2.0, v)
}

func TestArithmeticCodecAdaptsFrequencies(t *testing.T) {
	mm := newTestManager(t)
	c := Codec{Manager: mm}
	fd := &schema.FieldDescriptor{Name: "depth", Type: schema.Float, ArithModel: "depth-levels"}

	out := bitset.New()
	require.NoError(t, c.Encode(nil, fd, 0.0, out))
	require.NoError(t, c.Encode(nil, fd, 0.0, out))
	require.NoError(t, c.Encode(nil, fd, 1.0, out))

	v, err := c.Decode(nil, fd, out)
	require.NoError(t, err)
	require.Equal(t, 0.0, v)
	v, err = c.Decode(nil, fd, out)
	require.NoError(t, err)
	require.Equal(t, 0.0, v)
	v, err = c.Decode(nil, fd, out)
	require.NoError(t, err)
	require.Equal(t, 1.0, v)

	m, err := mm.Get("depth-levels")
	require.NoError(t, err)
	require.Equal(t, m.Total(StateEncoder), m.Total(StateDecoder))
}

func TestArithmeticCodecOutOfRangeRoundTripsToNaN(t *testing.T) {
	mm := newTestManager(t)
	c := Codec{Manager: mm}
	fd := &schema.FieldDescriptor{Name: "depth", Type: schema.Float, ArithModel: "depth-levels"}

	out := bitset.New()
	require.NoError(t, c.Encode(nil, fd, 99.0, out))

	v, err := c.Decode(nil, fd, out)
	require.NoError(t, err)
	f, ok := v.(float64)
	require.True(t, ok)
	require.True(t, f != f) // NaN
}

func TestArithmeticCodecUnknownModel(t *testing.T) {
	mm := NewModelManager()
	c := Codec{Manager: mm}
	fd := &schema.FieldDescriptor{Name: "depth", Type: schema.Float, ArithModel: "missing"}
	require.Error(t, c.Validate(fd))
}

func TestArithmeticCodecIntegerField(t *testing.T) {
	mm := NewModelManager()
	m, err := NewModel("small-int", []float64{0, 1, 2}, nil, false, PolicyStrict)
	require.NoError(t, err)
	require.NoError(t, mm.Register(m))
	c := Codec{Manager: mm}
	fd := &schema.FieldDescriptor{Name: "n", Type: schema.Uint32, ArithModel: "small-int"}

	out := bitset.New()
	require.NoError(t, c.Encode(nil, fd, int64(1), out))

	v, err := c.Decode(nil, fd, out)
	require.NoError(t, err)
	require.Equal(t, int64(1), v)
}
