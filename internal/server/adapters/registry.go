package adapters

import (
	"fmt"
	"slices"

	"github.com/dmitrijs2005/fieldsync/internal/common"
)

// Registry resolves entity names to adapters.
type Registry struct {
	adapters map[string]Adapter
}

func NewRegistry() *Registry {
	return &Registry{adapters: map[string]Adapter{}}
}

// Register adds a. Registering the same entity twice panics.
func (r *Registry) Register(a Adapter) {
	if _, dup := r.adapters[a.Entity()]; dup {
		panic(fmt.Sprintf("adapters: %s registered twice", a.Entity()))
	}
	r.adapters[a.Entity()] = a
}

// RegisterSchema wraps s in a SchemaAdapter stored in table and registers it.
func (r *Registry) RegisterSchema(s *Schema, table string) *SchemaAdapter {
	a := &SchemaAdapter{schema: s, table: table, reg: r}
	r.Register(a)
	return a
}

// Get returns the adapter of entity or common.ErrUnknownEntity.
func (r *Registry) Get(entity string) (Adapter, error) {
	a, ok := r.adapters[entity]
	if !ok {
		return nil, fmt.Errorf("%w: %q", common.ErrUnknownEntity, entity)
	}
	return a, nil
}

// All returns every adapter ordered by entity name.
func (r *Registry) All() []Adapter {
	names := make([]string, 0, len(r.adapters))
	for name := range r.adapters {
		names = append(names, name)
	}
	slices.Sort(names)

	out := make([]Adapter, 0, len(names))
	for _, name := range names {
		out = append(out, r.adapters[name])
	}
	return out
}
