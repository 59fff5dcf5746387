package store

import (
	"context"
	"fmt"
	"sort"
	"sync"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

// MemoryStore keeps encoded layers in a map. It is safe for concurrent use.
type MemoryStore[F core.Float] struct {
	mu   sync.RWMutex
	data map[string][]byte
}

// NewMemoryStore returns an empty store.
func NewMemoryStore[F core.Float]() *MemoryStore[F] {
	return &MemoryStore[F]{data: make(map[string][]byte)}
}

func (m *MemoryStore[F]) Save(_ context.Context, layer string, t algebra.Tuple[F]) error {
	if err := validLayer(layer); err != nil {
		return err
	}
	lin, trans, err := encodeTuple(t)
	if err != nil {
		return err
	}
	m.mu.Lock()
	m.data[Key(layer, KindLinear)] = lin
	m.data[Key(layer, KindTranslation)] = trans
	m.mu.Unlock()
	storeOpsTotal.WithLabelValues("memory", "save", "ok").Inc()
	return nil
}

func (m *MemoryStore[F]) Load(_ context.Context, layer string) (algebra.Tuple[F], error) {
	m.mu.RLock()
	lin, ok1 := m.data[Key(layer, KindLinear)]
	trans, ok2 := m.data[Key(layer, KindTranslation)]
	m.mu.RUnlock()
	if !ok1 || !ok2 {
		storeOpsTotal.WithLabelValues("memory", "load", "not_found").Inc()
		return algebra.Tuple[F]{}, fmt.Errorf("%s: %w", layer, ErrNotFound)
	}
	t, err := decodeTuple[F](layer, lin, trans)
	if err != nil {
		storeOpsTotal.WithLabelValues("memory", "load", "error").Inc()
		return algebra.Tuple[F]{}, err
	}
	storeOpsTotal.WithLabelValues("memory", "load", "ok").Inc()
	return t, nil
}

func (m *MemoryStore[F]) Delete(_ context.Context, layer string) error {
	m.mu.Lock()
	defer m.mu.Unlock()
	if _, ok := m.data[Key(layer, KindLinear)]; !ok {
		return fmt.Errorf("%s: %w", layer, ErrNotFound)
	}
	delete(m.data, Key(layer, KindLinear))
	delete(m.data, Key(layer, KindTranslation))
	return nil
}

func (m *MemoryStore[F]) Layers(_ context.Context) ([]string, error) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	var names []string
	for key := range m.data {
		if name, ok := layerOf(key); ok {
			names = append(names, name)
		}
	}
	sort.Strings(names)
	return names, nil
}

// Close is a no-op.
func (m *MemoryStore[F]) Close() error { return nil }

// Raw returns the encoded bytes stored under key.
func (m *MemoryStore[F]) Raw(key string) ([]byte, bool) {
	m.mu.RLock()
	defer m.mu.RUnlock()
	b, ok := m.data[key]
	return b, ok
}

// PutRaw stores encoded bytes under key without validation.
func (m *MemoryStore[F]) PutRaw(key string, b []byte) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.data[key] = b
}
