package blob

import (
	"context"
	"sort"
	"strings"
	"sync"
	"time"
)

type memObject struct {
	body []byte
	info Info
}

// Memory keeps objects in a map. Used by tests and BLOB_DRIVER=memory.
type Memory struct {
	mu      sync.RWMutex
	objects map[string]memObject
}

// NewMemory returns an empty in-memory store.
func NewMemory() *Memory {
	return &Memory{objects: make(map[string]memObject)}
}

func (m *Memory) Driver() Driver { return DriverMemory }

func (m *Memory) Put(_ context.Context, key string, body []byte, contentType string) error {
	k, err := cleanKey(key)
	if err != nil {
		return err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[k]; ok {
		return ErrExists
	}
	m.objects[k] = memObject{
		body: append([]byte(nil), body...),
		info: Info{Key: k, Size: int64(len(body)), ContentType: contentType, LastModified: time.Now().UTC()},
	}
	return nil
}

func (m *Memory) Get(_ context.Context, key string) ([]byte, Info, error) {
	k, err := cleanKey(key)
	if err != nil {
		return nil, Info{}, err
	}
	m.mu.RLock()
	defer m.mu.RUnlock()
	obj, ok := m.objects[k]
	if !ok {
		return nil, Info{}, ErrNotFound
	}
	return append([]byte(nil), obj.body...), obj.info, nil
}

func (m *Memory) Delete(_ context.Context, key string) (bool, error) {
	k, err := cleanKey(key)
	if err != nil {
		return false, err
	}
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.objects[k]; !ok {
		return false, nil
	}
	delete(m.objects, k)
	return true, nil
}

func (m *Memory) List(_ context.Context, prefix string) ([]Info, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	out := []Info{}
	for k, obj := range m.objects {
		if strings.HasPrefix(k, prefix) {
			out = append(out, obj.info)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
	return out, nil
}
