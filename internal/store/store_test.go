// Hotspot - Outbreak Detection Pipeline
// Copyright 2026 Tom F. (tomtom215)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/tomtom215/hotspot

package store

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"
)

type counterDoc struct {
	Count int `json:"count"`
}

func openTestStore(t *testing.T) *Store {
	t.Helper()
	s, err := Open(Config{InMemory: true, NumCompactors: 2, MaxTxnRetries: 1000})
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	t.Cleanup(func() { _ = s.Close() })
	return s
}

func TestGetPut(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()

	var doc counterDoc
	found, err := s.Get(ctx, []byte("k"), &doc)
	if err != nil || found {
		t.Fatalf("Get on empty store = %v, %v", found, err)
	}

	if err := s.Put(ctx, []byte("k"), counterDoc{Count: 3}); err != nil {
		t.Fatalf("Put: %v", err)
	}
	found, err = s.Get(ctx, []byte("k"), &doc)
	if err != nil || !found || doc.Count != 3 {
		t.Fatalf("Get = %+v, %v, %v", doc, found, err)
	}
}

func TestUpdateRetriesConflicts(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	key := []byte("counter")

	const workers, perWorker = 8, 10
	var wg sync.WaitGroup
	for w := 0; w < workers; w++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			for i := 0; i < perWorker; i++ {
				err := s.Update(ctx, "increment", func(txn *Txn) error {
					var doc counterDoc
					if _, err := txn.Get(key, &doc); err != nil {
						return err
					}
					doc.Count++
					return txn.Set(key, doc)
				})
				if err != nil {
					t.Errorf("Update: %v", err)
					return
				}
			}
		}()
	}
	wg.Wait()

	var doc counterDoc
	if _, err := s.Get(ctx, key, &doc); err != nil {
		t.Fatalf("Get: %v", err)
	}
	if doc.Count != workers*perWorker {
		t.Errorf("count = %d, want %d (lost update)", doc.Count, workers*perWorker)
	}
}

func TestUpdateAbortsOnError(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	boom := errors.New("boom")

	err := s.Update(ctx, "abort", func(txn *Txn) error {
		if err := txn.Set([]byte("a"), counterDoc{Count: 1}); err != nil {
			return err
		}
		return boom
	})
	if !errors.Is(err, boom) {
		t.Fatalf("err = %v, want boom", err)
	}
	if found, _ := s.Get(ctx, []byte("a"), &counterDoc{}); found {
		t.Error("write from aborted transaction survived")
	}
}

func TestScanOrderAndStop(t *testing.T) {
	t.Parallel()
	s := openTestStore(t)
	ctx := context.Background()
	base := time.Date(2026, 1, 1, 0, 0, 0, 0, time.UTC)

	err := s.Update(ctx, "seed", func(txn *Txn) error {
		for i, id := range []string{"c", "a", "b"} {
			key := CaseIndexKey("flu", "88", base.Add(time.Duration(i)*time.Hour), id)
			if err := txn.SetRaw(key, []byte(id)); err != nil {
				return err
			}
		}
		return txn.SetRaw(CaseIndexKey("flu", "99", base, "other"), []byte("other"))
	})
	if err != nil {
		t.Fatalf("seed: %v", err)
	}

	var got []string
	err = s.View(ctx, func(txn *Txn) error {
		seek := CaseIndexKey("flu", "88", base.Add(time.Hour), "")
		return txn.Scan(CaseIndexPrefix("flu", "88"), seek, func(_, val []byte) (bool, error) {
			got = append(got, string(val))
			return true, nil
		})
	})
	if err != nil {
		t.Fatalf("Scan: %v", err)
	}
	if len(got) != 2 || got[0] != "a" || got[1] != "b" {
		t.Errorf("scan = %v, want [a b]", got)
	}

	var n int
	_ = s.View(ctx, func(txn *Txn) error {
		return txn.Scan([]byte(PrefixCaseIndex), nil, func(_, _ []byte) (bool, error) {
			n++
			return false, nil
		})
	})
	if n != 1 {
		t.Errorf("scan visited %d keys after stop, want 1", n)
	}
}

func TestClosedStore(t *testing.T) {
	t.Parallel()
	s, err := OpenInMemory()
	if err != nil {
		t.Fatalf("OpenInMemory: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("second Close: %v", err)
	}
	if err := s.Put(context.Background(), []byte("k"), 1); !errors.Is(err, ErrClosed) {
		t.Errorf("Put after close = %v, want ErrClosed", err)
	}
}

func TestSortableTimeOrdering(t *testing.T) {
	t.Parallel()
	a := SortableTime(time.Date(2026, 1, 1, 9, 0, 0, 5, time.UTC))
	b := SortableTime(time.Date(2026, 1, 1, 11, 0, 0, 0, time.FixedZone("X", 3600)))
	if !(a < b) {
		t.Errorf("%s should sort before %s", a, b)
	}
	if string(BucketKey("flu", "88", "2026-01-01T09:00:00Z")) != "buckets_1h/flu|88|2026-01-01T09:00:00Z" {
		t.Error("bucket key layout changed")
	}
	if ClusterID("flu", "88", "2026-01-01T09") != "flu|88|2026-01-01T09" {
		t.Error("cluster id layout changed")
	}
}
