// Package dccl implements the Dynamic Compact Control Language codec
// façade (spec §4.8): the public encode/record/validate/size surface
// layered over the ID codec, the field-codec registry, the validator, and
// the optional crypto envelope. A *Codec is not safe for concurrent reuse
// across goroutines (it carries the in-progress encode/decode state only
// for the duration of a single call, per spec §5); construct one *Codec
// per goroutine that needs to encode or decode concurrently.
package dccl

import (
	"fmt"

	"github.com/benthic-labs/dccl/internal/arith"
	"github.com/benthic-labs/dccl/internal/bitset"
	"github.com/benthic-labs/dccl/internal/config"
	"github.com/benthic-labs/dccl/internal/dccllog"
	"github.com/benthic-labs/dccl/internal/envelope"
	"github.com/benthic-labs/dccl/internal/fieldcodec"
	"github.com/benthic-labs/dccl/internal/idcodec"
	"github.com/benthic-labs/dccl/internal/schema"
	"github.com/benthic-labs/dccl/internal/validator"
)

// Config is the façade's configuration surface (spec §6's "Configuration
// options"): crypto passphrase, id codec selection, default codec group,
// default maximum message size, and logging sink.
type Config = config.Config

// idCoder is the id-prefix contract both idcodec.Codec and
// idcodec.LegacyCodec satisfy; a Codec façade picks exactly one at a
// time, per Config.IDCodecName (spec §3: "a codec façade instance owns
// ... an id-codec selection").
type idCoder interface {
	Encode(id uint32, out *bitset.Bitset) error
	Decode(in *bitset.Bitset) (uint32, error)
	Size(id uint32) (int, error)
}

func idCoderFor(name string) (idCoder, error) {
	switch name {
	case "default", "":
		return idcodec.Codec{}, nil
	case "legacy-ccl":
		return idcodec.LegacyCodec{}, nil
	default:
		return nil, fmt.Errorf("unknown id codec %q", name)
	}
}

// entry is the registered, lazily-validated state for one loaded message.
type entry struct {
	md        *schema.MessageDescriptor
	validated bool
	validErr  error
}

// Codec is the public façade: the load/validate/encode/decode/size entry
// points spec §6 names, plus the administrative registries (field codec,
// id claim, probability model) a bootstrapping application populates
// before steady-state encode/decode traffic begins.
type Codec struct {
	cfg    Config
	reg    *fieldcodec.Registry
	ids    *idcodec.Registry
	models *arith.ModelManager
	idForm idCoder
	cipher *envelope.Cipher

	byName map[string]*entry
	byID   map[uint32]string
}

// New returns a Codec configured per cfg, with both shipped codec groups
// ("v3", the default per-descriptor-range/precision group, and
// "legacy-ccl", the fixed-width compatibility group of spec §4.3/§9)
// bootstrapped into its field codec registry. A message descriptor
// selects between them via MessageDescriptor.CodecGroup; both are always
// available regardless of Config.IDCodecName, since the id wire form and
// a message's field-codec defaults are independent choices (spec §3).
func New(cfg Config) (*Codec, error) {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return nil, &ValidationError{Err: err}
	}

	reg := fieldcodec.NewRegistry()
	if err := fieldcodec.Bootstrap(reg, "v3"); err != nil {
		return nil, &RegistrationError{Err: err}
	}
	if err := fieldcodec.Bootstrap(reg, "legacy-ccl"); err != nil {
		return nil, &RegistrationError{Err: err}
	}
	if err := fieldcodec.BootstrapLegacy(reg, "legacy-ccl"); err != nil {
		return nil, &RegistrationError{Err: err}
	}

	models := arith.NewModelManager()
	for _, group := range []string{"v3", "legacy-ccl"} {
		for _, family := range []schema.FieldType{
			schema.Int32, schema.Int64, schema.Uint32, schema.Uint64,
			schema.Float, schema.Double, schema.Bool, schema.Enum,
		} {
			if err := reg.Add(group, family, "arith", arith.Codec{Manager: models}); err != nil {
				return nil, &RegistrationError{Err: err}
			}
		}
	}

	ic, err := idCoderFor(cfg.IDCodecName)
	if err != nil {
		return nil, &ValidationError{Err: err}
	}

	c := &Codec{
		cfg:    cfg,
		reg:    reg,
		ids:    idcodec.NewRegistry(),
		models: models,
		idForm: ic,
		cipher: envelope.New(cfg.CryptoPassphrase),
		byName: make(map[string]*entry),
		byID:   make(map[uint32]string),
	}
	return c, nil
}

// SetConfig replaces the façade's Config, re-deriving the id codec
// selection and crypto cipher (spec §6's "set_config"). Already-loaded
// message descriptors and registered codecs/models are unaffected.
func (c *Codec) SetConfig(cfg Config) error {
	cfg = cfg.WithDefaults()
	if err := cfg.Validate(); err != nil {
		return &ValidationError{Err: err}
	}
	ic, err := idCoderFor(cfg.IDCodecName)
	if err != nil {
		return &ValidationError{Err: err}
	}
	c.cfg = cfg
	c.idForm = ic
	c.cipher = envelope.New(cfg.CryptoPassphrase)
	return nil
}

func (c *Codec) groupOf(md *schema.MessageDescriptor) string {
	if md.CodecGroup != "" {
		return md.CodecGroup
	}
	return c.cfg.DefaultCodecGroup
}

func (c *Codec) maxSizeOf(md *schema.MessageDescriptor) int {
	if md.MaxSizeBytes > 0 {
		return md.MaxSizeBytes
	}
	return c.cfg.MaxSizeBytes
}

// Load registers md under its own name (spec §6's "load"). It rejects a
// duplicate name, and — since one Codec speaks exactly one id wire form
// (idCoder) for every message it loads — a numeric id already claimed by
// a different name, matching spec §4.5's "collisions across codec groups
// are rejected at registration."
func (c *Codec) Load(md *schema.MessageDescriptor) error {
	if md == nil || md.Name == "" {
		return &ValidationError{Err: fmt.Errorf("message descriptor has no name")}
	}
	if _, exists := c.byName[md.Name]; exists {
		return &RegistrationError{Err: fmt.Errorf("message %q already loaded", md.Name)}
	}
	if owner, taken := c.byID[md.ID]; taken && owner != md.Name {
		return &RegistrationError{Err: fmt.Errorf("id %d already claimed by %q, cannot also load %q", md.ID, owner, md.Name)}
	}
	group := c.groupOf(md)
	if err := c.ids.Claim(group, md.ID, md.Name); err != nil {
		return &RegistrationError{Err: err}
	}

	c.byName[md.Name] = &entry{md: md}
	c.byID[md.ID] = md.Name
	c.cfg.Logger.Debugf("dccl: loaded message %q (id %d, group %q)", md.Name, md.ID, group)
	return nil
}

func (c *Codec) lookup(name string) (*entry, error) {
	e, ok := c.byName[name]
	if !ok {
		return nil, &DecodeError{Err: fmt.Errorf("no message loaded under name %q", name)}
	}
	return e, nil
}

// Validate runs the schema validator against the named message, if it has
// not already been validated, and caches the result (spec §8 invariant 5:
// "calling it twice ... yields the same result and does not mutate
// state"). Encode and Decode call this implicitly.
func (c *Codec) Validate(name string) error {
	e, err := c.lookup(name)
	if err != nil {
		return err
	}
	if !e.validated {
		e.validErr = validator.Validate(c.reg, c.groupOf(e.md), e.md, c.maxSizeOf(e.md))
		e.validated = true
	}
	if e.validErr != nil {
		return &ValidationError{Path: []string{e.md.Name}, Err: e.validErr}
	}
	return nil
}

// Size returns the exact bit length Encode(name, record) would produce
// (spec §6's "size"), by running the same encode path and counting the
// bits before they are packed into bytes.
func (c *Codec) Size(name string, record map[string]any) (int, error) {
	out, err := c.encodeBits(name, record)
	if err != nil {
		return 0, err
	}
	return out.Size(), nil
}

// Encode marshals record, which must conform to the message descriptor
// loaded under name, into its minimum-length bit string (spec §4.8):
// id prefix, header fields, body fields, optional body encryption, then
// big-endian byte packing with zero-padding in the final byte.
func (c *Codec) Encode(name string, record map[string]any) ([]byte, error) {
	out, err := c.encodeBits(name, record)
	if err != nil {
		return nil, err
	}
	return out.ToBytes(), nil
}

// encodeBits is Encode without the final byte packing.
func (c *Codec) encodeBits(name string, record map[string]any) (*bitset.Bitset, error) {
	e, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(name); err != nil {
		return nil, err
	}
	md := e.md
	group := c.groupOf(md)

	out := bitset.New()
	if err := c.idForm.Encode(md.ID, out); err != nil {
		return nil, &EncodeError{Path: []string{md.Name}, Err: err}
	}

	ctx := &fieldcodec.Context{Root: record, Enclosing: record, Group: group}
	if err := fieldcodec.EncodeMessage(ctx, c.reg, md.Header, record, out); err != nil {
		return nil, &EncodeError{Path: []string{md.Name}, Err: err}
	}

	useCrypto := md.CryptoKeyID != "" && c.cipher.Enabled()

	if !useCrypto {
		if err := fieldcodec.EncodeMessage(ctx, c.reg, md.Body, record, out); err != nil {
			return nil, &EncodeError{Path: []string{md.Name}, Err: err}
		}
		return out, nil
	}

	if pad := (8 - out.Size()%8) % 8; pad != 0 {
		if err := out.AppendBits(0, pad); err != nil {
			return nil, &EncodeError{Path: []string{md.Name}, Err: err}
		}
	}
	headerBytes := out.ToBytes()

	body := bitset.New()
	if err := fieldcodec.EncodeMessage(ctx, c.reg, md.Body, record, body); err != nil {
		return nil, &EncodeError{Path: []string{md.Name}, Err: err}
	}
	encBody, err := c.cipher.Seal(headerBytes, body.ToBytes())
	if err != nil {
		return nil, &EncodeError{Path: []string{md.Name}, Err: err}
	}
	for _, b := range encBody {
		if err := out.AppendBits(uint64(b), 8); err != nil {
			return nil, &EncodeError{Path: []string{md.Name}, Err: err}
		}
	}
	return out, nil
}

// Decode unmarshals data using the id prefix to resolve which loaded
// message descriptor produced it (spec §6's "decode(bytes)"). It returns
// the resolved message name alongside the record.
func (c *Codec) Decode(data []byte) (string, map[string]any, error) {
	in := bitset.FromBytes(data)
	id, err := c.idForm.Decode(in)
	if err != nil {
		return "", nil, &DecodeError{Err: fmt.Errorf("decode id prefix: %w", err)}
	}
	name, ok := c.byID[id]
	if !ok {
		return "", nil, &DecodeError{Err: fmt.Errorf("no message loaded for id %d", id)}
	}
	record, err := c.decodeBody(data, in, name)
	return name, record, err
}

// DecodeAs decodes data against the message descriptor loaded under name,
// bypassing id resolution entirely (spec §6's "decode(bytes,
// expected_descriptor) when the id codec is disabled"): it still reads
// and discards the id prefix bits (the id codec is a wire-format
// constant, not something individual calls can opt out of) but never
// consults c.byID.
func (c *Codec) DecodeAs(data []byte, name string) (map[string]any, error) {
	in := bitset.FromBytes(data)
	if _, err := c.idForm.Decode(in); err != nil {
		return nil, &DecodeError{Err: fmt.Errorf("decode id prefix: %w", err)}
	}
	return c.decodeBody(data, in, name)
}

func (c *Codec) decodeBody(data []byte, in *bitset.Bitset, name string) (map[string]any, error) {
	e, err := c.lookup(name)
	if err != nil {
		return nil, err
	}
	if err := c.Validate(name); err != nil {
		return nil, err
	}
	md := e.md
	group := c.groupOf(md)

	totalBits := len(data) * 8
	ctx := &fieldcodec.Context{Group: group}
	record, err := fieldcodec.DecodeMessage(ctx, c.reg, md.Header, in)
	if err != nil {
		return record, &DecodeError{Path: []string{md.Name}, Err: err}
	}

	useCrypto := md.CryptoKeyID != "" && c.cipher.Enabled()
	if !useCrypto {
		bodyCtx := &fieldcodec.Context{Root: record, Enclosing: record, Group: group}
		bodyRecord, err := fieldcodec.DecodeMessage(bodyCtx, c.reg, md.Body, in)
		for k, v := range bodyRecord {
			record[k] = v
		}
		if err != nil {
			return record, &DecodeError{Path: []string{md.Name}, Err: err}
		}
		return record, nil
	}

	consumedBits := totalBits - in.Size()
	headerPrefixBytes := bitset.BitsToBytes(consumedBits)
	if headerPrefixBytes > len(data) {
		return record, &DecodeError{Path: []string{md.Name}, Err: fmt.Errorf("truncated message: header alone needs %d bytes, got %d", headerPrefixBytes, len(data))}
	}
	headerBytes := data[:headerPrefixBytes]
	cipherBody := data[headerPrefixBytes:]

	plainBody, err := c.cipher.Open(headerBytes, cipherBody)
	if err != nil {
		return record, &DecodeError{Path: []string{md.Name}, Err: err}
	}
	bodyIn := bitset.FromBytes(plainBody)
	bodyCtx := &fieldcodec.Context{Root: record, Enclosing: record, Group: group}
	bodyRecord, err := fieldcodec.DecodeMessage(bodyCtx, c.reg, md.Body, bodyIn)
	for k, v := range bodyRecord {
		record[k] = v
	}
	if err != nil {
		return record, &DecodeError{Path: []string{md.Name}, Err: err}
	}
	return record, nil
}

// CreateModel registers a named probability model for the arithmetic
// field codec (spec §6's "create_model"); see arith.NewModel for the
// boundary/frequency/policy contract.
func (c *Codec) CreateModel(name string, boundaries []float64, freqs []uint64, adaptive bool, policy arith.Policy) error {
	m, err := arith.NewModel(name, boundaries, freqs, adaptive, policy)
	if err != nil {
		return &ValidationError{Err: err}
	}
	if err := c.models.Register(m); err != nil {
		return &RegistrationError{Err: err}
	}
	return nil
}

// ResetModel restores a model's adaptive frequency state (spec §6's
// "reset_model"), required between independent encode/decode sessions.
func (c *Codec) ResetModel(name string, freqs []uint64) error {
	m, err := c.models.Get(name)
	if err != nil {
		return &ValidationError{Err: err}
	}
	return m.Reset(freqs)
}

// AddFieldCodec registers impl for (group, family, name) (spec §6's
// "add_field_codec"), the entry point a plugin loader or bootstrap
// routine uses to extend the codecs available to loaded descriptors.
func (c *Codec) AddFieldCodec(group string, family schema.FieldType, name string, impl fieldcodec.Codec) error {
	if err := c.reg.Add(group, family, name, impl); err != nil {
		return &RegistrationError{Err: err}
	}
	return nil
}

// RemoveFieldCodec unregisters (group, family, name) (spec §6's
// "remove_field_codec").
func (c *Codec) RemoveFieldCodec(group string, family schema.FieldType, name string) {
	c.reg.Remove(group, family, name)
}

// SetDefaultFieldCodec names the codec (group, family) falls back to when
// a field does not name an explicit codec.
func (c *Codec) SetDefaultFieldCodec(group string, family schema.FieldType, name string) {
	c.reg.SetDefault(group, family, name)
}

// SetIDCodecName re-selects which id-prefix wire form this Codec speaks
// (spec §6's "set_id_codec"): "default" for the short/long variable-width
// form, or "legacy-ccl" for the fixed 8-bit legacy form.
func (c *Codec) SetIDCodecName(name string) error {
	ic, err := idCoderFor(name)
	if err != nil {
		return &ValidationError{Err: err}
	}
	c.idForm = ic
	c.cfg.IDCodecName = name
	return nil
}

// Logger exposes the configured logging sink (spec §6: "logging sink
// (opaque, not part of core contract)"), so an embedding application can
// write its own diagnostics through the same sink the façade uses.
func (c *Codec) Logger() dccllog.Sink { return c.cfg.Logger }
