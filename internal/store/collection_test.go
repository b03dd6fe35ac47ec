// Raceday - Marathon Event Operations Console
// Copyright 2026 K. Moyo (kmoyo)
// SPDX-License-Identifier: AGPL-3.0-or-later
// https://github.com/kmoyo/raceday

package store

import (
	"context"
	"errors"
	"runtime"
	"sync"
	"sync/atomic"
	"testing"

	"golang.org/x/time/rate"
)

type item struct {
	ID    string
	Value int
}

func (i item) Key() string { return i.ID }

type itemPatch struct {
	Value *int
}

func (p itemPatch) Apply(i item) item {
	if p.Value != nil {
		i.Value = *p.Value
	}
	return i
}

// fetcher is a scriptable FetchFunc with gating for stale-load tests.
type fetcher struct {
	mu    sync.Mutex
	pages map[int][]item
	total int
	err   error
	calls atomic.Int64

	// gate, when non-nil, blocks the fetch until released.
	gate chan struct{}
}

func (f *fetcher) fetch(ctx context.Context, q Query) ([]item, int, error) {
	f.calls.Add(1)
	f.mu.Lock()
	gate := f.gate
	f.mu.Unlock()
	if gate != nil {
		<-gate
	}

	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, 0, f.err
	}
	page := q.Page
	if page == 0 {
		page = 1
	}
	return f.pages[page], f.total, nil
}

func newFetcher() *fetcher {
	return &fetcher{
		pages: map[int][]item{
			1: {{ID: "a", Value: 1}, {ID: "b", Value: 2}},
			2: {{ID: "c", Value: 3}},
		},
		total: 3,
	}
}

func TestCollectionLoadReplacesWholesale(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)

	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if c.Len() != 2 {
		t.Fatalf("len = %d, want 2", c.Len())
	}
	if c.Total() != 3 {
		t.Errorf("total = %d, want 3", c.Total())
	}

	if err := c.Load(context.Background(), Query{Page: 2, PageSize: 2}); err != nil {
		t.Fatalf("load page 2: %v", err)
	}
	items := c.Items()
	if len(items) != 1 || items[0].ID != "c" {
		t.Errorf("page 2 items = %v, want just c", items)
	}
}

func TestCollectionLoadFailEmpty(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)

	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2}); err != nil {
		t.Fatalf("load: %v", err)
	}

	f.mu.Lock()
	f.err = errors.New("boom")
	f.mu.Unlock()

	if err := c.Load(context.Background(), Query{Page: 2, PageSize: 2}); err == nil {
		t.Fatal("expected load error")
	}
	if c.Len() != 0 {
		t.Errorf("len = %d after failed load, want 0 (fail-empty)", c.Len())
	}
	if c.Total() != 0 {
		t.Errorf("total = %d after failed load, want 0", c.Total())
	}
	if c.Err() == nil {
		t.Error("Err() = nil, want recorded error")
	}
}

func TestCollectionStaleLoadDiscarded(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)

	gate := make(chan struct{})
	f.mu.Lock()
	f.gate = gate
	f.mu.Unlock()

	firstDone := make(chan error, 1)
	go func() {
		firstDone <- c.Load(context.Background(), Query{Page: 1, PageSize: 2})
	}()

	// Wait until the slow load is in flight, then supersede it.
	for f.calls.Load() < 1 {
		runtime.Gosched()
	}
	f.mu.Lock()
	f.gate = nil
	f.mu.Unlock()

	if err := c.Load(context.Background(), Query{Page: 2, PageSize: 2}); err != nil {
		t.Fatalf("second load: %v", err)
	}

	close(gate)
	if err := <-firstDone; !errors.Is(err, ErrStale) {
		t.Fatalf("first load err = %v, want ErrStale", err)
	}

	// The store must reflect the newer load, not the slow one.
	items := c.Items()
	if len(items) != 1 || items[0].ID != "c" {
		t.Errorf("items = %v, want page 2 contents", items)
	}
	if got := c.Query().Page; got != 2 {
		t.Errorf("query page = %d, want 2", got)
	}
}

func TestCollectionPatchApplied(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)
	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2}); err != nil {
		t.Fatalf("load: %v", err)
	}

	v := 42
	if !c.Patch("a", itemPatch{Value: &v}) {
		t.Fatal("patch reported miss for present entity")
	}
	got, ok := c.Get("a")
	if !ok || got.Value != 42 {
		t.Errorf("a = %+v, want value 42", got)
	}

	// Untouched sibling stays as loaded.
	b, _ := c.Get("b")
	if b.Value != 2 {
		t.Errorf("b = %+v, want untouched", b)
	}
}

func TestCollectionPatchMissSchedulesOneRefetch(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, rate.NewLimiter(rate.Inf, 1))
	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2}); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := f.calls.Load()

	v := 7
	if c.Patch("zz", itemPatch{Value: &v}) {
		t.Fatal("patch applied for absent entity")
	}
	c.Wait()

	if got := f.calls.Load() - before; got != 1 {
		t.Errorf("refetch calls = %d, want exactly 1", got)
	}
}

func TestCollectionPatchMissNoRefetchWithoutLimiter(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)
	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2}); err != nil {
		t.Fatalf("load: %v", err)
	}
	before := f.calls.Load()

	v := 7
	c.Patch("zz", itemPatch{Value: &v})
	c.Wait()

	if got := f.calls.Load() - before; got != 0 {
		t.Errorf("refetch calls = %d, want 0", got)
	}
}

func TestCollectionPatchMatchingFallbackKey(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)
	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2}); err != nil {
		t.Fatalf("load: %v", err)
	}

	v := 9
	applied := c.PatchMatching(func(i item) bool { return i.Value == 2 }, itemPatch{Value: &v})
	if !applied {
		t.Fatal("predicate match not applied")
	}
	b, _ := c.Get("b")
	if b.Value != 9 {
		t.Errorf("b = %+v, want value 9", b)
	}
}

func TestCollectionTotalPages(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)

	cases := []struct {
		total    int
		pageSize int
		want     int
	}{
		{3, 2, 2},
		{4, 2, 2},
		{5, 2, 3},
		{0, 2, 0},
		{3, 0, 1}, // unpaginated is a single page
	}
	for _, tc := range cases {
		f.mu.Lock()
		f.total = tc.total
		f.mu.Unlock()
		if err := c.Load(context.Background(), Query{Page: 1, PageSize: tc.pageSize}); err != nil {
			t.Fatalf("load: %v", err)
		}
		if got := c.TotalPages(); got != tc.want {
			t.Errorf("TotalPages(total=%d, pageSize=%d) = %d, want %d",
				tc.total, tc.pageSize, got, tc.want)
		}
	}
}

func TestCollectionSubscribe(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)

	var calls []string
	t1 := c.Subscribe(func() { calls = append(calls, "first") })
	c.Subscribe(func() { calls = append(calls, "second") })

	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2}); err != nil {
		t.Fatalf("load: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Fatalf("calls after load = %v, want [first second] in order", calls)
	}

	c.Unsubscribe(t1)
	calls = nil
	v := 5
	c.Patch("a", itemPatch{Value: &v})
	if len(calls) != 1 || calls[0] != "second" {
		t.Errorf("calls after unsubscribe = %v, want [second]", calls)
	}
}

func TestCollectionFilterChangeReplacesContents(t *testing.T) {
	f := newFetcher()
	c := NewCollection[item, itemPatch]("test", f.fetch, nil)

	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2, Filters: map[string]string{"status": "active"}}); err != nil {
		t.Fatalf("load: %v", err)
	}

	f.mu.Lock()
	f.pages = map[int][]item{1: {{ID: "z", Value: 100}}}
	f.total = 1
	f.mu.Unlock()

	if err := c.Load(context.Background(), Query{Page: 1, PageSize: 2, Filters: map[string]string{"status": "completed"}}); err != nil {
		t.Fatalf("reload: %v", err)
	}
	items := c.Items()
	if len(items) != 1 || items[0].ID != "z" {
		t.Errorf("items = %v, want wholesale replacement", items)
	}
}
