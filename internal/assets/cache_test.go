package assets

import (
	"context"
	"errors"
	"io"
	"os"
	"sync"
	"testing"
	"time"

	"github.com/AaronLay10/AdventureEngine/internal/events"
)

func TestMain(m *testing.M) {
	events.SetOutput(io.Discard)
	os.Exit(m.Run())
}

// mockLoader counts loads per address and can block or fail on demand.
type mockLoader struct {
	mu       sync.Mutex
	calls    map[string]int
	failures map[string]error
	released []string
	gate     chan struct{}
	started  chan string
}

func newMockLoader() *mockLoader {
	return &mockLoader{
		calls:    make(map[string]int),
		failures: make(map[string]error),
	}
}

func (m *mockLoader) Load(ctx context.Context, address string) (*Asset, error) {
	m.mu.Lock()
	m.calls[address]++
	gate := m.gate
	started := m.started
	failure := m.failures[address]
	m.mu.Unlock()

	if started != nil {
		started <- address
	}
	if gate != nil {
		<-gate
	}
	if failure != nil {
		return nil, failure
	}
	return &Asset{Address: address, Source: "mock", Data: []byte(address)}, nil
}

func (m *mockLoader) Release(a *Asset) {
	m.mu.Lock()
	defer m.mu.Unlock()
	m.released = append(m.released, a.Address)
}

func (m *mockLoader) Calls(address string) int {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.calls[address]
}

func (m *mockLoader) SetFailure(address string, err error) {
	m.mu.Lock()
	defer m.mu.Unlock()
	if err == nil {
		delete(m.failures, address)
		return
	}
	m.failures[address] = err
}

func (m *mockLoader) Released() []string {
	m.mu.Lock()
	defer m.mu.Unlock()
	return append([]string{}, m.released...)
}

func TestAcquireConcurrentCallersShareOneLoad(t *testing.T) {
	loader := newMockLoader()
	loader.gate = make(chan struct{})
	loader.started = make(chan string, 1)
	cache := NewCache(loader)

	const n = 16
	var wg sync.WaitGroup
	results := make([]*Asset, n)
	errs := make([]error, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		results[0], errs[0] = cache.Acquire(context.Background(), "X")
	}()

	// Wait until the first load is in flight before adding the others.
	select {
	case <-loader.started:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for load to start")
	}

	if h, ok := cache.Lookup("X"); !ok || h.Status != StatusPending {
		t.Fatalf("expected pending handle while load in flight, got %+v (ok=%v)", h, ok)
	}

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			results[i], errs[i] = cache.Acquire(context.Background(), "X")
		}(i)
	}

	// Give the joiners time to attach before the load completes.
	time.Sleep(50 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	if got := loader.Calls("X"); got != 1 {
		t.Errorf("expected exactly 1 backend load, got %d", got)
	}
	for i := 0; i < n; i++ {
		if errs[i] != nil {
			t.Fatalf("caller %d: unexpected error %v", i, errs[i])
		}
		if results[i] != results[0] {
			t.Errorf("caller %d received a different asset", i)
		}
	}

	h, _ := cache.Lookup("X")
	if h.Status != StatusSucceeded {
		t.Errorf("expected succeeded, got %s", h.Status)
	}
	if h.Refcount != n {
		t.Errorf("expected refcount %d, got %d", n, h.Refcount)
	}
}

func TestAcquireConcurrentCallersShareOneFailure(t *testing.T) {
	loader := newMockLoader()
	loader.gate = make(chan struct{})
	loader.started = make(chan string, 1)
	cause := errors.New("bundle corrupt")
	loader.SetFailure("ShopDatabase", cause)
	cache := NewCache(loader)

	const n = 16
	var wg sync.WaitGroup
	errs := make([]error, n)

	wg.Add(1)
	go func() {
		defer wg.Done()
		_, errs[0] = cache.Acquire(context.Background(), "ShopDatabase")
	}()

	select {
	case <-loader.started:
	case <-time.After(time.Second):
		t.Fatal("timeout waiting for load to start")
	}

	for i := 1; i < n; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, errs[i] = cache.Acquire(context.Background(), "ShopDatabase")
		}(i)
	}

	time.Sleep(50 * time.Millisecond)
	close(loader.gate)
	wg.Wait()

	if got := loader.Calls("ShopDatabase"); got != 1 {
		t.Errorf("expected exactly 1 backend load, got %d", got)
	}
	for i, err := range errs {
		if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, cause) {
			t.Errorf("caller %d: got %v, want ErrLoadFailed wrapping the cause", i, err)
		}
	}

	h, ok := cache.Lookup("ShopDatabase")
	if !ok || h.Status != StatusFailed || h.Refcount != 0 {
		t.Errorf("expected failed handle with no references, got %+v (ok=%v)", h, ok)
	}
}

func TestAcquireCachedReturnsWithoutNewLoad(t *testing.T) {
	loader := newMockLoader()
	cache := NewCache(loader)
	ctx := context.Background()

	first, err := cache.Acquire(ctx, "CharacterDatabase")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}
	second, err := cache.Acquire(ctx, "CharacterDatabase")
	if err != nil {
		t.Fatalf("acquire: %v", err)
	}

	if first != second {
		t.Error("expected the cached asset to be returned")
	}
	if loader.Calls("CharacterDatabase") != 1 {
		t.Errorf("expected 1 load, got %d", loader.Calls("CharacterDatabase"))
	}
	if cache.LoadCount() != 1 {
		t.Errorf("expected LoadCount 1, got %d", cache.LoadCount())
	}
}

func TestAcquireFailureIsNotCached(t *testing.T) {
	events.Clear()
	loader := newMockLoader()
	loader.SetFailure("ShopDatabase", errors.New("disk on fire"))
	cache := NewCache(loader)
	ctx := context.Background()

	_, err := cache.Acquire(ctx, "ShopDatabase")
	if !errors.Is(err, ErrLoadFailed) {
		t.Fatalf("expected ErrLoadFailed, got %v", err)
	}

	h, ok := cache.Lookup("ShopDatabase")
	if !ok || h.Status != StatusFailed {
		t.Errorf("expected failed handle, got %+v", h)
	}
	if len(events.Find("asset.load_failed")) != 1 {
		t.Errorf("expected failure to be logged once")
	}

	// a later Acquire retries
	loader.SetFailure("ShopDatabase", nil)
	a, err := cache.Acquire(ctx, "ShopDatabase")
	if err != nil {
		t.Fatalf("retry failed: %v", err)
	}
	if a == nil || string(a.Data) != "ShopDatabase" {
		t.Errorf("unexpected asset after retry: %+v", a)
	}
	if loader.Calls("ShopDatabase") != 2 {
		t.Errorf("expected 2 loads (fail + retry), got %d", loader.Calls("ShopDatabase"))
	}
}

func TestAcquireNilAssetIsFailure(t *testing.T) {
	cache := NewCache(LoaderFunc(func(ctx context.Context, address string) (*Asset, error) {
		return nil, nil
	}))
	_, err := cache.Acquire(context.Background(), "empty")
	if !errors.Is(err, ErrLoadFailed) || !errors.Is(err, ErrNotFound) {
		t.Fatalf("expected ErrLoadFailed wrapping ErrNotFound, got %v", err)
	}
}

func TestAcquireContextCancelledWhileWaiting(t *testing.T) {
	loader := newMockLoader()
	loader.gate = make(chan struct{})
	cache := NewCache(loader)

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() {
		_, err := cache.Acquire(ctx, "slow")
		done <- err
	}()

	time.Sleep(20 * time.Millisecond)
	cancel()

	select {
	case err := <-done:
		if !errors.Is(err, context.Canceled) {
			t.Errorf("expected context.Canceled, got %v", err)
		}
	case <-time.After(time.Second):
		t.Fatal("caller did not stop waiting after cancel")
	}

	// the load itself runs to completion
	close(loader.gate)
	a, err := cache.Acquire(context.Background(), "slow")
	if err != nil || a == nil {
		t.Fatalf("expected load to complete, got %v", err)
	}
	if loader.Calls("slow") != 1 {
		t.Errorf("expected the original load to be reused, got %d loads", loader.Calls("slow"))
	}
}

func TestReleaseUnknownAddressIsSafe(t *testing.T) {
	loader := newMockLoader()
	cache := NewCache(loader)
	ctx := context.Background()

	if _, err := cache.Acquire(ctx, "kept"); err != nil {
		t.Fatalf("acquire: %v", err)
	}

	cache.Release("never-loaded")

	h, ok := cache.Lookup("kept")
	if !ok || h.Status != StatusSucceeded || h.Refcount != 1 {
		t.Errorf("unrelated entry changed: %+v (ok=%v)", h, ok)
	}
	if len(loader.Released()) != 0 {
		t.Errorf("expected nothing released, got %v", loader.Released())
	}
}

func TestReleaseRefcounting(t *testing.T) {
	loader := newMockLoader()
	cache := NewCache(loader)
	ctx := context.Background()

	cache.Acquire(ctx, "ItemDatabase")
	cache.Acquire(ctx, "ItemDatabase")

	cache.Release("ItemDatabase")
	h, ok := cache.Lookup("ItemDatabase")
	if !ok || h.Refcount != 1 {
		t.Fatalf("expected refcount 1 after first release, got %+v (ok=%v)", h, ok)
	}

	cache.Release("ItemDatabase")
	if _, ok := cache.Lookup("ItemDatabase"); ok {
		t.Error("expected entry removed when refcount reaches zero")
	}
	if got := loader.Released(); len(got) != 1 || got[0] != "ItemDatabase" {
		t.Errorf("expected asset handed back to loader, got %v", got)
	}

	// reacquire loads again
	cache.Acquire(ctx, "ItemDatabase")
	if loader.Calls("ItemDatabase") != 2 {
		t.Errorf("expected reload after release, got %d loads", loader.Calls("ItemDatabase"))
	}
}

func TestReleaseDuringLoadDoesNotCancel(t *testing.T) {
	loader := newMockLoader()
	loader.gate = make(chan struct{})
	loader.started = make(chan string, 1)
	cache := NewCache(loader)

	done := make(chan *Asset, 1)
	go func() {
		a, _ := cache.Acquire(context.Background(), "pending")
		done <- a
	}()
	<-loader.started

	cache.Release("pending")
	close(loader.gate)

	select {
	case a := <-done:
		if a == nil {
			t.Fatal("expected the waiter to receive the loaded asset")
		}
	case <-time.After(time.Second):
		t.Fatal("waiter never completed")
	}
	if _, ok := cache.Lookup("pending"); ok {
		t.Error("released entry should not reappear after the load completes")
	}
}

func TestTeardown(t *testing.T) {
	loader := newMockLoader()
	cache := NewCache(loader)
	ctx := context.Background()

	cache.Acquire(ctx, "A")
	cache.Acquire(ctx, "B")
	loader.SetFailure("C", errors.New("nope"))
	cache.Acquire(ctx, "C")

	cache.Teardown()

	if len(cache.Snapshot()) != 0 {
		t.Errorf("expected empty cache after teardown, got %v", cache.Snapshot())
	}
	if len(loader.Released()) != 2 {
		t.Errorf("expected 2 succeeded assets released, got %v", loader.Released())
	}

	// cold start afterwards
	cache.Acquire(ctx, "A")
	if loader.Calls("A") != 2 {
		t.Errorf("expected reload after teardown, got %d", loader.Calls("A"))
	}
}

func TestEvict(t *testing.T) {
	loader := newMockLoader()
	cache := NewCache(loader)
	ctx := context.Background()

	cache.Acquire(ctx, "AdventureDatabase")
	cache.Acquire(ctx, "AdventureDatabase")

	if !cache.Evict("AdventureDatabase") {
		t.Fatal("expected evict to report a removed entry")
	}
	if cache.Evict("AdventureDatabase") {
		t.Error("second evict should be a no-op")
	}
	cache.Acquire(ctx, "AdventureDatabase")
	if loader.Calls("AdventureDatabase") != 2 {
		t.Errorf("expected reload after evict, got %d", loader.Calls("AdventureDatabase"))
	}
}

func TestSnapshotSorted(t *testing.T) {
	cache := NewCache(newMockLoader())
	ctx := context.Background()
	cache.Acquire(ctx, "b")
	cache.Acquire(ctx, "a")

	snap := cache.Snapshot()
	if len(snap) != 2 || snap[0].Address != "a" || snap[1].Address != "b" {
		t.Errorf("unexpected snapshot: %+v", snap)
	}
	if snap[0].Source != "mock" {
		t.Errorf("expected source recorded, got %q", snap[0].Source)
	}
}
