// Package store persists affine operators as flat numeric arrays.
//
// Every layer is stored under two keys:
//
//	layer/<name>/linear       D×D floats
//	layer/<name>/translation  D floats
//
// Arrays are encoded by EncodeArray (header, CRC-32, little-endian floats).
// Two backends are provided: MemoryStore for tests and short-lived tools, and
// BadgerStore for embedded on-disk persistence.
package store

import (
	"context"
	"errors"
	"fmt"
	"sort"
	"strconv"
	"strings"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

const (
	KindLinear      = "linear"
	KindTranslation = "translation"

	keyPrefix = "layer/"
)

// ErrNotFound is returned when a layer has not been saved.
var ErrNotFound = errors.New("layer not found")

// Store is the load/store contract for operator layers.
type Store[F core.Float] interface {
	Save(ctx context.Context, layer string, t algebra.Tuple[F]) error
	Load(ctx context.Context, layer string) (algebra.Tuple[F], error)
	Delete(ctx context.Context, layer string) error
	// Layers lists saved layer names in ascending order.
	Layers(ctx context.Context) ([]string, error)
	Close() error
}

// Key returns the storage key of one component of a layer.
func Key(layer, kind string) string {
	return keyPrefix + layer + "/" + kind
}

// layerOf extracts the layer name from a linear key.
func layerOf(key string) (string, bool) {
	if !strings.HasPrefix(key, keyPrefix) || !strings.HasSuffix(key, "/"+KindLinear) {
		return "", false
	}
	return strings.TrimSuffix(strings.TrimPrefix(key, keyPrefix), "/"+KindLinear), true
}

func validLayer(layer string) error {
	if layer == "" {
		return errors.New("layer name must not be empty")
	}
	return nil
}

func encodeTuple[F core.Float](t algebra.Tuple[F]) (linear, translation []byte, err error) {
	d := t.Dim()
	if linear, err = EncodeArray(d, d, t.Linear().Values()); err != nil {
		return nil, nil, err
	}
	if translation, err = EncodeArray(d, 1, t.Translation().Values()); err != nil {
		return nil, nil, err
	}
	return linear, translation, nil
}

func decodeTuple[F core.Float](layer string, linear, translation []byte) (algebra.Tuple[F], error) {
	rows, cols, lv, err := DecodeArray[F](linear)
	if err != nil {
		return algebra.Tuple[F]{}, fmt.Errorf("layer %s %s: %w", layer, KindLinear, err)
	}
	d, _, tv, err := DecodeArray[F](translation)
	if err != nil {
		return algebra.Tuple[F]{}, fmt.Errorf("layer %s %s: %w", layer, KindTranslation, err)
	}
	if rows != cols || rows != d {
		return algebra.Tuple[F]{}, core.NewDimensionError("layer "+layer, d, rows)
	}
	return algebra.FromSlices(lv, tv)
}

// LayerName returns the conventional name of layer i in a stack.
func LayerName(stack string, i int) string {
	return fmt.Sprintf("%s/%03d", stack, i)
}

// SaveStack saves layers in order under stack/000, stack/001, ...
func SaveStack[F core.Float](ctx context.Context, s Store[F], stack string, layers []algebra.Tuple[F]) error {
	for i, t := range layers {
		if err := s.Save(ctx, LayerName(stack, i), t); err != nil {
			return err
		}
	}
	return nil
}

// LoadStack loads every layer saved under stack, ordered by layer index.
// Only names of the form stack/<index> belong to the stack.
func LoadStack[F core.Float](ctx context.Context, s Store[F], stack string) ([]algebra.Tuple[F], error) {
	names, err := s.Layers(ctx)
	if err != nil {
		return nil, err
	}
	type member struct {
		name  string
		index int
	}
	var members []member
	for _, name := range names {
		if i, ok := stackIndex(stack, name); ok {
			members = append(members, member{name: name, index: i})
		}
	}
	sort.Slice(members, func(a, b int) bool { return members[a].index < members[b].index })
	layers := make([]algebra.Tuple[F], 0, len(members))
	for _, m := range members {
		t, err := s.Load(ctx, m.name)
		if err != nil {
			return nil, err
		}
		layers = append(layers, t)
	}
	return layers, nil
}

// stackIndex parses the layer index of name within stack.
func stackIndex(stack, name string) (int, bool) {
	rest, ok := strings.CutPrefix(name, stack+"/")
	if !ok || rest == "" {
		return 0, false
	}
	for _, r := range rest {
		if r < '0' || r > '9' {
			return 0, false
		}
	}
	i, err := strconv.Atoi(rest)
	return i, err == nil
}
