// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

// Package store is the transactional document store behind the pipeline.
//
// Documents are JSON values in BadgerDB. Every multi-key mutation goes
// through Update, which runs the callback in a serializable optimistic
// transaction and re-runs it from scratch on badger.ErrConflict. Callbacks
// must therefore issue all reads before writes and must not leak state
// between attempts.
package store

import (
	"context"
	"errors"
	"fmt"
	"math/rand/v2"
	"sync"
	"time"

	"github.com/dgraph-io/badger/v4"
	"github.com/dgraph-io/badger/v4/options"
	"github.com/goccy/go-json"

	"github.com/tomtom215/hotspot/internal/logging"
	"github.com/tomtom215/hotspot/internal/metrics"
)

var (
	// ErrClosed is returned after Close.
	ErrClosed = errors.New("store is closed")

	// ErrNotFound is returned by lookups of absent documents.
	ErrNotFound = errors.New("document not found")

	// ErrConflictRetriesExhausted is returned when a transaction keeps
	// conflicting after MaxTxnRetries attempts.
	ErrConflictRetriesExhausted = errors.New("transaction conflict retries exhausted")
)

// Config holds BadgerDB settings.
type Config struct {
	Path             string
	InMemory         bool
	SyncWrites       bool
	Compression      bool
	MemTableSize     int64
	ValueLogFileSize int64
	NumCompactors    int

	// MaxTxnRetries bounds conflict retries per Update call.
	MaxTxnRetries int

	// GCRatio is passed to RunValueLogGC.
	GCRatio float64

	CloseTimeout time.Duration
}

// DefaultConfig returns production defaults for path.
func DefaultConfig(path string) Config {
	return Config{
		Path:             path,
		SyncWrites:       true,
		Compression:      true,
		MemTableSize:     64 << 20,
		ValueLogFileSize: 256 << 20,
		NumCompactors:    2,
		MaxTxnRetries:    16,
		GCRatio:          0.5,
		CloseTimeout:     30 * time.Second,
	}
}

// Store wraps a BadgerDB handle.
type Store struct {
	db  *badger.DB
	cfg Config

	mu     sync.RWMutex
	closed bool
}

// Open opens (or creates) the database described by cfg.
func Open(cfg Config) (*Store, error) {
	if !cfg.InMemory && cfg.Path == "" {
		return nil, errors.New("store path is required")
	}
	if cfg.MaxTxnRetries <= 0 {
		cfg.MaxTxnRetries = 16
	}
	if cfg.GCRatio <= 0 || cfg.GCRatio >= 1 {
		cfg.GCRatio = 0.5
	}

	opts := badger.DefaultOptions(cfg.Path)
	if cfg.InMemory {
		opts = badger.DefaultOptions("").WithInMemory(true)
	}
	opts.SyncWrites = cfg.SyncWrites
	if cfg.MemTableSize > 0 {
		opts.MemTableSize = cfg.MemTableSize
	}
	if cfg.ValueLogFileSize > 0 && !cfg.InMemory {
		opts.ValueLogFileSize = cfg.ValueLogFileSize
	}
	if cfg.NumCompactors > 0 {
		opts.NumCompactors = cfg.NumCompactors
	}
	if cfg.Compression {
		opts.Compression = options.Snappy
	}
	opts.Logger = nil

	db, err := badger.Open(opts)
	if err != nil {
		return nil, fmt.Errorf("open BadgerDB: %w", err)
	}

	logging.Info().
		Str("path", cfg.Path).
		Bool("in_memory", cfg.InMemory).
		Bool("sync_writes", cfg.SyncWrites).
		Msg("store opened")
	return &Store{db: db, cfg: cfg}, nil
}

// OpenInMemory opens a throwaway in-memory store for tests and dry runs.
func OpenInMemory() (*Store, error) {
	return Open(Config{InMemory: true, NumCompactors: 2})
}

// Update runs fn in a read-write transaction, retrying on conflict.
// name labels the transaction in metrics and logs.
func (s *Store) Update(ctx context.Context, name string, fn func(*Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}

	for attempt := 1; attempt <= s.cfg.MaxTxnRetries; attempt++ {
		if err := ctx.Err(); err != nil {
			return err
		}

		err := s.db.Update(func(txn *badger.Txn) error {
			return fn(&Txn{txn: txn})
		})
		if !errors.Is(err, badger.ErrConflict) {
			return err
		}

		metrics.RecordTxnConflict(name)
		logging.Debug().Str("txn", name).Int("attempt", attempt).Msg("transaction conflict, retrying")

		backoff := time.Duration(attempt) * time.Millisecond
		backoff += time.Duration(rand.Int64N(int64(time.Millisecond)))
		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(backoff):
		}
	}
	return fmt.Errorf("%w: %s after %d attempts", ErrConflictRetriesExhausted, name, s.cfg.MaxTxnRetries)
}

// View runs fn in a read-only snapshot.
func (s *Store) View(ctx context.Context, fn func(*Txn) error) error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	return s.db.View(func(txn *badger.Txn) error {
		return fn(&Txn{txn: txn})
	})
}

// Get reads a single document outside of any caller transaction.
func (s *Store) Get(ctx context.Context, key []byte, v any) (bool, error) {
	var found bool
	err := s.View(ctx, func(txn *Txn) error {
		var err error
		found, err = txn.Get(key, v)
		return err
	})
	return found, err
}

// Put writes a single document in its own transaction.
func (s *Store) Put(ctx context.Context, key []byte, v any) error {
	return s.Update(ctx, "put", func(txn *Txn) error {
		return txn.Set(key, v)
	})
}

// Ping reports whether the store is usable.
func (s *Store) Ping() error {
	return s.checkOpen()
}

// RunGC reclaims value log space until nothing is left to rewrite.
func (s *Store) RunGC() error {
	if err := s.checkOpen(); err != nil {
		return err
	}
	if s.cfg.InMemory {
		return nil
	}
	for {
		err := s.db.RunValueLogGC(s.cfg.GCRatio)
		if errors.Is(err, badger.ErrNoRewrite) {
			return nil
		}
		if err != nil {
			return fmt.Errorf("run value log GC: %w", err)
		}
	}
}

// Close closes the database, giving up after CloseTimeout.
func (s *Store) Close() error {
	s.mu.Lock()
	if s.closed {
		s.mu.Unlock()
		return nil
	}
	s.closed = true
	timeout := s.cfg.CloseTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	s.mu.Unlock()

	done := make(chan error, 1)
	go func() { done <- s.db.Close() }()

	select {
	case err := <-done:
		if err != nil {
			return fmt.Errorf("close BadgerDB: %w", err)
		}
		logging.Info().Msg("store closed")
		return nil
	case <-time.After(timeout):
		return fmt.Errorf("close BadgerDB: timed out after %v", timeout)
	}
}

func (s *Store) checkOpen() error {
	s.mu.RLock()
	defer s.mu.RUnlock()
	if s.closed {
		return ErrClosed
	}
	return nil
}

// Txn is a JSON-document view over a badger transaction.
type Txn struct {
	txn *badger.Txn
}

// Get decodes the document at key into v. It reports false when absent.
func (t *Txn) Get(key []byte, v any) (bool, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	if err := item.Value(func(val []byte) error {
		return json.Unmarshal(val, v)
	}); err != nil {
		return false, fmt.Errorf("decode %s: %w", key, err)
	}
	return true, nil
}

// GetRaw returns the stored bytes at key.
func (t *Txn) GetRaw(key []byte) ([]byte, bool, error) {
	item, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return nil, false, nil
	}
	if err != nil {
		return nil, false, fmt.Errorf("get %s: %w", key, err)
	}
	val, err := item.ValueCopy(nil)
	if err != nil {
		return nil, false, fmt.Errorf("read %s: %w", key, err)
	}
	return val, true, nil
}

// Exists reports whether key is present. The read is tracked for conflicts.
func (t *Txn) Exists(key []byte) (bool, error) {
	_, err := t.txn.Get(key)
	if errors.Is(err, badger.ErrKeyNotFound) {
		return false, nil
	}
	if err != nil {
		return false, fmt.Errorf("get %s: %w", key, err)
	}
	return true, nil
}

// Set encodes v as JSON and stores it at key.
func (t *Txn) Set(key []byte, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode %s: %w", key, err)
	}
	return t.SetRaw(key, data)
}

// SetRaw stores raw bytes at key.
func (t *Txn) SetRaw(key, val []byte) error {
	if err := t.txn.Set(key, val); err != nil {
		return fmt.Errorf("set %s: %w", key, err)
	}
	return nil
}

// Delete removes key.
func (t *Txn) Delete(key []byte) error {
	if err := t.txn.Delete(key); err != nil {
		return fmt.Errorf("delete %s: %w", key, err)
	}
	return nil
}

// Scan walks keys under prefix in order, starting at seek (or prefix when
// seek is nil). fn returns false to stop. Key and value slices are copies.
func (t *Txn) Scan(prefix, seek []byte, fn func(key, val []byte) (bool, error)) error {
	opts := badger.DefaultIteratorOptions
	opts.Prefix = prefix
	it := t.txn.NewIterator(opts)
	defer it.Close()

	if seek == nil {
		seek = prefix
	}
	for it.Seek(seek); it.ValidForPrefix(prefix); it.Next() {
		item := it.Item()
		val, err := item.ValueCopy(nil)
		if err != nil {
			return fmt.Errorf("read %s: %w", item.Key(), err)
		}
		more, err := fn(item.KeyCopy(nil), val)
		if err != nil {
			return err
		}
		if !more {
			return nil
		}
	}
	return nil
}
