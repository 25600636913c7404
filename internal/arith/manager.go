package arith

import (
	"fmt"
	"sync"
)

// ModelManager owns the named Models a codec group shares. Models are
// looked up by name from a field descriptor's ArithModel, mirroring how
// fieldcodec.Registry looks codecs up by name; kept as its own type
// (rather than folded into fieldcodec.Registry) because a Model's
// identity spans both encode and decode of a whole message exchange, not
// just a single field lookup.
type ModelManager struct {
	mu     sync.RWMutex
	models map[string]*Model
}

// NewModelManager returns an empty ModelManager.
func NewModelManager() *ModelManager {
	return &ModelManager{models: make(map[string]*Model)}
}

// Register adds a Model under its own Name. Re-registering the same name
// is an error: models are configured once, at group-assembly time.
func (mm *ModelManager) Register(m *Model) error {
	mm.mu.Lock()
	defer mm.mu.Unlock()
	if _, exists := mm.models[m.Name]; exists {
		return fmt.Errorf("arith: model %q already registered", m.Name)
	}
	mm.models[m.Name] = m
	return nil
}

// Get looks up a Model by name.
func (mm *ModelManager) Get(name string) (*Model, error) {
	mm.mu.RLock()
	defer mm.mu.RUnlock()
	m, ok := mm.models[name]
	if !ok {
		return nil, fmt.Errorf("arith: no model registered under name %q", name)
	}
	return m, nil
}
