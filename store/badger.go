package store

import (
	"context"
	"errors"
	"fmt"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"go.uber.org/zap"

	"github.com/sbl8/evolver/algebra"
	"github.com/sbl8/evolver/core"
)

var tracer = otel.Tracer("evolver.store")

// Config holds configuration for a BadgerDB-backed store.
type Config struct {
	// Path is the database directory. Ignored when InMemory is true.
	Path string

	// InMemory keeps everything in RAM. Useful for tests.
	InMemory bool

	// SyncWrites fsyncs every commit.
	SyncWrites bool

	// Logger receives BadgerDB's internal log lines. Nil disables them.
	Logger *zap.Logger

	NumVersionsToKeep int

	// GCInterval is how often value log GC runs. Zero disables it.
	GCInterval time.Duration

	// GCDiscardRatio is the garbage ratio that triggers a rewrite.
	GCDiscardRatio float64
}

// DefaultConfig returns durable settings for an on-disk store at path.
func DefaultConfig(path string) Config {
	return Config{
		Path:              path,
		SyncWrites:        true,
		NumVersionsToKeep: 1,
		GCInterval:        5 * time.Minute,
		GCDiscardRatio:    0.5,
	}
}

// InMemoryConfig returns settings for a throwaway store.
func InMemoryConfig() Config {
	return Config{
		InMemory:          true,
		NumVersionsToKeep: 1,
	}
}

// zapBadgerLogger adapts zap to badger.Logger.
type zapBadgerLogger struct {
	s *zap.SugaredLogger
}

func (l zapBadgerLogger) Errorf(format string, args ...interface{})   { l.s.Errorf(format, args...) }
func (l zapBadgerLogger) Warningf(format string, args ...interface{}) { l.s.Warnf(format, args...) }
func (l zapBadgerLogger) Infof(format string, args ...interface{})    { l.s.Infof(format, args...) }
func (l zapBadgerLogger) Debugf(format string, args ...interface{})   { l.s.Debugf(format, args...) }

// Open opens a BadgerDB instance, creating the directory if needed.
// The caller must Close the returned database.
func Open(cfg Config) (*badger.DB, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("path is required for persistent database")
	}

	var opts badger.Options
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	} else {
		if err := os.MkdirAll(cfg.Path, 0750); err != nil {
			return nil, fmt.Errorf("create database directory %s: %w", cfg.Path, err)
		}
		opts = badger.DefaultOptions(cfg.Path)
	}

	opts = opts.WithSyncWrites(cfg.SyncWrites)
	if cfg.NumVersionsToKeep > 0 {
		opts = opts.WithNumVersionsToKeep(cfg.NumVersionsToKeep)
	}
	if cfg.Logger != nil {
		opts = opts.WithLogger(zapBadgerLogger{s: cfg.Logger.Named("badger").Sugar()})
	} else {
		opts = opts.WithLogger(nil)
	}

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open badger database: %w", err)
	}
	return db, nil
}

// BadgerStore stores layers in BadgerDB. Both components of a layer are
// written in one transaction, so a reader never sees half a layer.
type BadgerStore[F core.Float] struct {
	db     *badger.DB
	logger *zap.Logger

	stop chan struct{}
	wg   sync.WaitGroup
	once sync.Once
}

// NewBadgerStore opens a database with cfg. A value log GC loop is started
// for on-disk stores when cfg.GCInterval is positive.
func NewBadgerStore[F core.Float](cfg Config) (*BadgerStore[F], error) {
	db, err := Open(cfg)
	if err != nil {
		return nil, err
	}
	logger := cfg.Logger
	if logger == nil {
		logger = zap.NewNop()
	}
	s := &BadgerStore[F]{db: db, logger: logger, stop: make(chan struct{})}
	if cfg.GCInterval > 0 && !cfg.InMemory {
		s.wg.Add(1)
		go s.gcLoop(cfg.GCInterval, cfg.GCDiscardRatio)
	}
	logger.Debug("layer store opened",
		zap.String("path", cfg.Path),
		zap.Bool("in_memory", cfg.InMemory))
	return s, nil
}

func (s *BadgerStore[F]) gcLoop(interval time.Duration, ratio float64) {
	defer s.wg.Done()
	ticker := time.NewTicker(interval)
	defer ticker.Stop()
	for {
		select {
		case <-s.stop:
			return
		case <-ticker.C:
			err := s.db.RunValueLogGC(ratio)
			if err != nil && !errors.Is(err, badger.ErrNoRewrite) {
				s.logger.Warn("value log GC failed", zap.Error(err))
			}
		}
	}
}

func (s *BadgerStore[F]) span(ctx context.Context, name, layer string) (context.Context, trace.Span) {
	return tracer.Start(ctx, name, trace.WithAttributes(attribute.String("layer", layer)))
}

func finish(span trace.Span, op string, err error) {
	result := "ok"
	switch {
	case errors.Is(err, ErrNotFound):
		result = "not_found"
	case err != nil:
		result = "error"
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
	}
	storeOpsTotal.WithLabelValues("badger", op, result).Inc()
	span.End()
}

func (s *BadgerStore[F]) Save(ctx context.Context, layer string, t algebra.Tuple[F]) (err error) {
	_, span := s.span(ctx, "BadgerStore.Save", layer)
	defer func() { finish(span, "save", err) }()

	if err := validLayer(layer); err != nil {
		return err
	}
	lin, trans, err := encodeTuple(t)
	if err != nil {
		return err
	}
	err = s.db.Update(func(txn *badger.Txn) error {
		if err := txn.Set([]byte(Key(layer, KindLinear)), lin); err != nil {
			return err
		}
		return txn.Set([]byte(Key(layer, KindTranslation)), trans)
	})
	if err != nil {
		return fmt.Errorf("save layer %s: %w", layer, err)
	}
	storeBytes.Observe(float64(len(lin) + len(trans)))
	return nil
}

func (s *BadgerStore[F]) Load(ctx context.Context, layer string) (t algebra.Tuple[F], err error) {
	_, span := s.span(ctx, "BadgerStore.Load", layer)
	defer func() { finish(span, "load", err) }()

	var lin, trans []byte
	err = s.db.View(func(txn *badger.Txn) error {
		var err error
		if lin, err = get(txn, Key(layer, KindLinear)); err != nil {
			return err
		}
		trans, err = get(txn, Key(layer, KindTranslation))
		return err
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return algebra.Tuple[F]{}, fmt.Errorf("%s: %w", layer, ErrNotFound)
	}
	if err != nil {
		return algebra.Tuple[F]{}, fmt.Errorf("load layer %s: %w", layer, err)
	}
	return decodeTuple[F](layer, lin, trans)
}

func get(txn *badger.Txn, key string) ([]byte, error) {
	item, err := txn.Get([]byte(key))
	if err != nil {
		return nil, err
	}
	return item.ValueCopy(nil)
}

func (s *BadgerStore[F]) Delete(ctx context.Context, layer string) (err error) {
	_, span := s.span(ctx, "BadgerStore.Delete", layer)
	defer func() { finish(span, "delete", err) }()

	err = s.db.Update(func(txn *badger.Txn) error {
		if _, err := txn.Get([]byte(Key(layer, KindLinear))); err != nil {
			return err
		}
		if err := txn.Delete([]byte(Key(layer, KindLinear))); err != nil {
			return err
		}
		return txn.Delete([]byte(Key(layer, KindTranslation)))
	})
	if errors.Is(err, badger.ErrKeyNotFound) {
		return fmt.Errorf("%s: %w", layer, ErrNotFound)
	}
	return err
}

func (s *BadgerStore[F]) Layers(ctx context.Context) ([]string, error) {
	var names []string
	err := s.db.View(func(txn *badger.Txn) error {
		opts := badger.DefaultIteratorOptions
		opts.PrefetchValues = false
		it := txn.NewIterator(opts)
		defer it.Close()

		prefix := []byte(keyPrefix)
		for it.Seek(prefix); it.ValidForPrefix(prefix); it.Next() {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			if name, ok := layerOf(string(it.Item().Key())); ok {
				names = append(names, name)
			}
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	sort.Strings(names)
	return names, nil
}

// Close stops the GC loop and closes the database. It is safe to call twice.
func (s *BadgerStore[F]) Close() error {
	var err error
	s.once.Do(func() {
		close(s.stop)
		s.wg.Wait()
		err = s.db.Close()
	})
	return err
}
