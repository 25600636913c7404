package fieldcodec

import (
	"fmt"
	"sync"

	"github.com/benthic-labs/dccl/internal/schema"
)

// ErrRegistration is returned for duplicate or conflicting registrations
// (spec §7, RegistrationError).
type ErrRegistration struct {
	msg string
}

func (e *ErrRegistration) Error() string { return e.msg }

func registrationErrorf(format string, args ...any) error {
	return &ErrRegistration{msg: fmt.Sprintf(format, args...)}
}

type registryKey struct {
	group  string
	family schema.FieldType
	name   string
}

type defaultKey struct {
	group  string
	family schema.FieldType
}

// Registry resolves a Codec for a field, keyed by (codec group, type
// family, codec name) with a per-(group, family) default (spec §4.6).
// Steady-state lookups take the read lock; Add/Remove take the write lock,
// matching spec §5's "mutated only during bootstrap or plugin load/unload"
// lifecycle.
type Registry struct {
	mu       sync.RWMutex
	codecs   map[registryKey]Codec
	defaults map[defaultKey]string
}

// NewRegistry returns an empty Registry.
func NewRegistry() *Registry {
	return &Registry{
		codecs:   make(map[registryKey]Codec),
		defaults: make(map[defaultKey]string),
	}
}

// Add registers impl under (group, family, name). Re-registering the same
// key, even with an identical implementation, is rejected: registration is
// additive only (spec §4.6).
func (r *Registry) Add(group string, family schema.FieldType, name string, impl Codec) error {
	r.mu.Lock()
	defer r.mu.Unlock()

	key := registryKey{group, family, name}
	if _, exists := r.codecs[key]; exists {
		return registrationErrorf("fieldcodec: codec %q already registered for group %q, family %s", name, group, family)
	}
	r.codecs[key] = impl
	return nil
}

// Remove unregisters (group, family, name).
func (r *Registry) Remove(group string, family schema.FieldType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.codecs, registryKey{group, family, name})
}

// SetDefault names the codec used for (group, family) when a field does
// not name an explicit codec.
func (r *Registry) SetDefault(group string, family schema.FieldType, name string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.defaults[defaultKey{group, family}] = name
}

// Lookup resolves a codec per spec §4.6's order: (group, family, explicit
// name) if explicitName is non-empty, else (group, family, default name).
func (r *Registry) Lookup(group string, family schema.FieldType, explicitName string) (Codec, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	name := explicitName
	if name == "" {
		def, ok := r.defaults[defaultKey{group, family}]
		if !ok {
			return nil, fmt.Errorf("fieldcodec: no default codec for group %q, family %s", group, family)
		}
		name = def
	}

	codec, ok := r.codecs[registryKey{group, family, name}]
	if !ok {
		return nil, fmt.Errorf("fieldcodec: no codec %q registered for group %q, family %s", name, group, family)
	}
	return codec, nil
}
