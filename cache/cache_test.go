package cache_test

import (
	"context"
	"errors"
	"fmt"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/google/go-cmp/cmp"
	"go.uber.org/zap"

	"fontpipe/cache"
)

func testStorage(t *testing.T, s cache.Storage) {
	t.Helper()
	ctx := context.Background()

	if _, err := s.Get(ctx, "google:meta.json"); !errors.Is(err, cache.ErrNotFound) {
		t.Fatalf("expected ErrNotFound, got %v", err)
	}
	if err := s.Set(ctx, "google:meta.json", []byte("one")); err != nil {
		t.Fatalf("Set() error = %v", err)
	}
	if err := s.Set(ctx, "google:meta.json", []byte("two")); err != nil {
		t.Fatalf("Set() overwrite error = %v", err)
	}
	data, err := s.Get(ctx, "google:meta.json")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if string(data) != "two" {
		t.Errorf("expected 'two', got '%s'", data)
	}
}

func TestMemoryStore(t *testing.T) {
	testStorage(t, cache.NewMemoryStore())
}

func TestFSStore(t *testing.T) {
	dir := t.TempDir()
	s, err := cache.NewFSStore(filepath.Join(dir, "meta"))
	if err != nil {
		t.Fatalf("NewFSStore() error = %v", err)
	}
	testStorage(t, s)

	if err := s.Set(context.Background(), "../escape", []byte("x")); err == nil {
		t.Error("expected error for key escaping storage directory")
	}
}

func TestSQLiteStore(t *testing.T) {
	s, err := cache.NewSQLiteStore(filepath.Join(t.TempDir(), "cache.db"))
	if err != nil {
		t.Fatalf("NewSQLiteStore() error = %v", err)
	}
	defer s.Close()
	testStorage(t, s)
}

func TestData_CachesValue(t *testing.T) {
	c := cache.New(cache.NewMemoryStore(), zap.NewNop())
	ctx := context.Background()

	var calls int
	fetch := func(context.Context) ([]string, error) {
		calls++
		return []string{"Roboto", "Inter"}, nil
	}
	for range 3 {
		v, err := cache.Data(ctx, c, "google:meta.json", fetch, nil)
		if err != nil {
			t.Fatalf("Data() error = %v", err)
		}
		if len(v) != 2 || v[0] != "Roboto" {
			t.Fatalf("unexpected value %v", v)
		}
	}
	if calls != 1 {
		t.Errorf("expected single fetch, got %d", calls)
	}
}

func TestData_Expiration(t *testing.T) {
	store := cache.NewMemoryStore()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	c := cache.New(store, nil, cache.WithTTL(time.Hour), cache.WithClock(func() time.Time { return now }))
	ctx := context.Background()

	var calls int
	fetch := func(context.Context) (int, error) {
		calls++
		return calls, nil
	}

	if v, _ := cache.Data(ctx, c, "k", fetch, nil); v != 1 {
		t.Fatalf("expected 1, got %d", v)
	}
	now = now.Add(30 * time.Minute)
	if v, _ := cache.Data(ctx, c, "k", fetch, nil); v != 1 {
		t.Fatalf("expected cached 1, got %d", v)
	}
	now = now.Add(time.Hour)
	if v, _ := cache.Data(ctx, c, "k", fetch, nil); v != 2 {
		t.Fatalf("expected refreshed 2, got %d", v)
	}

	// entries written by different version are stale
	c2 := cache.New(store, nil, cache.WithVersion("2"), cache.WithClock(func() time.Time { return now }))
	if v, _ := cache.Data(ctx, c2, "k", fetch, nil); v != 3 {
		t.Fatalf("expected 3 after version change, got %d", v)
	}
}

func TestData_OnError(t *testing.T) {
	store := cache.NewMemoryStore()
	c := cache.New(store, nil)
	ctx := context.Background()

	var calls int
	failing := func(context.Context) ([]string, error) {
		calls++
		return nil, errors.New("network down")
	}

	if _, err := cache.Data(ctx, c, "bunny:meta.json", failing, nil); err == nil {
		t.Fatal("expected error without onError")
	}

	for range 2 {
		v, err := cache.Data(ctx, c, "fontshare:meta.json", failing, func(error) []string { return []string{} })
		if err != nil {
			t.Fatalf("expected no error with onError, got %v", err)
		}
		if len(v) != 0 {
			t.Errorf("expected empty fallback value, got %v", v)
		}
	}
	if calls != 2 {
		t.Errorf("expected failed fetch to be remembered, got %d calls", calls)
	}
	if store.Len() != 0 {
		t.Errorf("expected fallback value not to be persisted, got %d entries", store.Len())
	}
}

func TestData_Cancelled(t *testing.T) {
	c := cache.New(cache.NewMemoryStore(), nil)
	fallback := func(error) []string { return []string{} }

	var calls int
	fetch := func(ctx context.Context) ([]string, error) {
		calls++
		if err := ctx.Err(); err != nil {
			return nil, fmt.Errorf("request aborted: %w", err)
		}
		return []string{"Inter"}, nil
	}

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	if _, err := cache.Data(ctx, c, "google:Inter-0123456789-data.json", fetch, fallback); !errors.Is(err, context.Canceled) {
		t.Fatalf("expected cancellation error, got %v", err)
	}

	v, err := cache.Data(context.Background(), c, "google:Inter-0123456789-data.json", fetch, fallback)
	if err != nil {
		t.Fatalf("Data() error = %v", err)
	}
	if diff := cmp.Diff([]string{"Inter"}, v); diff != "" {
		t.Errorf("value mismatch (-want +got):\n%s", diff)
	}
	if calls != 2 {
		t.Errorf("expected cancelled fetch not to be remembered, got %d calls", calls)
	}

	// timeouts of the source itself are failures of the source
	deadline := func(context.Context) ([]string, error) {
		calls++
		return nil, errors.New("dial tcp: i/o timeout")
	}
	for range 2 {
		if _, err := cache.Data(context.Background(), c, "bunny:meta.json", deadline, fallback); err != nil {
			t.Fatalf("Data() error = %v", err)
		}
	}
	if calls != 3 {
		t.Errorf("expected source failure to be remembered, got %d calls", calls)
	}
}

func TestData_SharedFetch(t *testing.T) {
	c := cache.New(cache.NewMemoryStore(), nil)
	ctx := context.Background()

	var (
		calls   atomic.Int32
		release = make(chan struct{})
		wg      sync.WaitGroup
	)
	fetch := func(context.Context) (string, error) {
		calls.Add(1)
		<-release
		return "meta", nil
	}

	for range 5 {
		wg.Add(1)
		go func() {
			defer wg.Done()
			if v, err := cache.Data(ctx, c, "adobe:meta.json", fetch, nil); err != nil || v != "meta" {
				t.Errorf("unexpected result %q, %v", v, err)
			}
		}()
	}
	time.Sleep(50 * time.Millisecond)
	close(release)
	wg.Wait()

	if n := calls.Load(); n != 1 {
		t.Errorf("expected concurrent callers to share fetch, got %d fetches", n)
	}
}
