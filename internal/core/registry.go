package core

import (
	"fmt"
	"sort"
	"sync"
)

var (
	registry   = make(map[string]*Schema)
	registryMu sync.RWMutex
)

// Register adds a schema to the registry.
// Panics if a schema with the same key is already registered, or if its
// identifying fields are not part of the schema.
func Register(s Schema) {
	registryMu.Lock()
	defer registryMu.Unlock()

	if _, exists := registry[s.Key]; exists {
		panic(fmt.Sprintf("schema already registered: %s", s.Key))
	}
	for _, name := range []string{s.NameField, s.TagField} {
		if _, ok := s.Field(name); !ok {
			panic(fmt.Sprintf("schema %s: identifying field %q not defined", s.Key, name))
		}
	}
	if s.OwnerField != "" {
		if _, ok := s.Field(s.OwnerField); !ok {
			panic(fmt.Sprintf("schema %s: owner field %q not defined", s.Key, s.OwnerField))
		}
	}

	registry[s.Key] = &s
}

// Get returns a schema by key.
// Returns false if not found.
func Get(key string) (*Schema, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()

	s, ok := registry[key]
	return s, ok
}

// All returns all registered schemas sorted by key.
func All() []*Schema {
	registryMu.RLock()
	defer registryMu.RUnlock()

	result := make([]*Schema, 0, len(registry))
	for _, s := range registry {
		result = append(result, s)
	}

	sort.Slice(result, func(i, j int) bool {
		return result[i].Key < result[j].Key
	})

	return result
}

// SchemaCount returns the number of registered schemas.
func SchemaCount() int {
	registryMu.RLock()
	defer registryMu.RUnlock()
	return len(registry)
}
