// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package config

import (
	"context"
	"errors"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/goccy/go-json"
)

// fakeDocs is an in-memory DocumentStore that counts reads.
type fakeDocs struct {
	mu    sync.Mutex
	data  map[string][]byte
	reads atomic.Int32
	err   error
}

func newFakeDocs() *fakeDocs {
	return &fakeDocs{data: make(map[string][]byte)}
}

func (f *fakeDocs) Get(_ context.Context, key []byte, v any) (bool, error) {
	f.reads.Add(1)
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return false, f.err
	}
	raw, ok := f.data[string(key)]
	if !ok {
		return false, nil
	}
	return true, json.Unmarshal(raw, v)
}

func (f *fakeDocs) Put(_ context.Context, key []byte, v any) error {
	raw, err := json.Marshal(v)
	if err != nil {
		return err
	}
	f.mu.Lock()
	defer f.mu.Unlock()
	f.data[string(key)] = raw
	return nil
}

func intPtr(v int) *int { return &v }

func TestRuntimeCacheDefaultsAndTTL(t *testing.T) {
	docs := newFakeDocs()
	cache := NewRuntimeCache(docs, []byte("config/runtime"), defaultConfig().Pipeline, time.Minute)
	now := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)
	cache.now = func() time.Time { return now }

	rt := cache.Get(context.Background())
	if rt.Source != SourceDefaults || rt.MinPtsH3 != 12 {
		t.Fatalf("snapshot = %+v, want defaults", rt)
	}

	_ = docs.Put(context.Background(), []byte("config/runtime"), RuntimeDocument{MinPtsH3: intPtr(3)})
	if got := cache.Get(context.Background()); got.MinPtsH3 != 12 {
		t.Errorf("cached snapshot changed before TTL: %d", got.MinPtsH3)
	}
	if docs.reads.Load() != 1 {
		t.Errorf("reads = %d, want 1", docs.reads.Load())
	}

	now = now.Add(2 * time.Minute)
	got := cache.Get(context.Background())
	if got.MinPtsH3 != 3 || got.Source != SourceStore {
		t.Errorf("after TTL snapshot = %+v, want min_pts_h3=3 from store", got)
	}
	if got.MinPtsDBSCAN != 5 {
		t.Errorf("unset override changed MinPtsDBSCAN to %d", got.MinPtsDBSCAN)
	}
}

func TestRuntimeCacheCollapsesConcurrentLoads(t *testing.T) {
	docs := newFakeDocs()
	cache := NewRuntimeCache(docs, []byte("config/runtime"), defaultConfig().Pipeline, time.Hour)

	var wg sync.WaitGroup
	for i := 0; i < 32; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_ = cache.Get(context.Background())
		}()
	}
	wg.Wait()

	if n := docs.reads.Load(); n > 2 {
		t.Errorf("reads = %d, expected concurrent loads to collapse", n)
	}
}

func TestRuntimeCacheKeepsStaleOnError(t *testing.T) {
	docs := newFakeDocs()
	_ = docs.Put(context.Background(), []byte("k"), RuntimeDocument{MinPtsH3: intPtr(7)})
	cache := NewRuntimeCache(docs, []byte("k"), defaultConfig().Pipeline, time.Minute)
	now := time.Now()
	cache.now = func() time.Time { return now }

	if cache.Get(context.Background()).MinPtsH3 != 7 {
		t.Fatal("expected stored override")
	}

	docs.err = errors.New("store unavailable")
	now = now.Add(time.Hour)
	rt := cache.Get(context.Background())
	if rt.MinPtsH3 != 7 || rt.Source != SourceStale {
		t.Errorf("snapshot = %+v, want stale copy with min_pts_h3=7", rt)
	}
}

func TestRuntimeCacheUpdate(t *testing.T) {
	docs := newFakeDocs()
	cache := NewRuntimeCache(docs, []byte("k"), defaultConfig().Pipeline, time.Hour)
	_ = cache.Get(context.Background())

	if _, err := cache.Update(context.Background(), RuntimeDocument{H3Resolution: intPtr(99)}); !errors.Is(err, ErrInvalidRuntime) {
		t.Errorf("err = %v, want ErrInvalidRuntime", err)
	}

	rt, err := cache.Update(context.Background(), RuntimeDocument{MinPtsDBSCAN: intPtr(8)})
	if err != nil {
		t.Fatalf("Update: %v", err)
	}
	if rt.MinPtsDBSCAN != 8 {
		t.Errorf("MinPtsDBSCAN = %d, want 8 immediately after update", rt.MinPtsDBSCAN)
	}
}
