package cache

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeBackend struct {
	mu      sync.Mutex
	data    map[string][]byte
	failGet bool
	failSet bool
	deletes [][]string
	prefix  []string
}

func newFake() *fakeBackend {
	return &fakeBackend{data: make(map[string][]byte)}
}

func (f *fakeBackend) Get(_ context.Context, key string) ([]byte, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failGet {
		return nil, false, errors.New("connection refused")
	}
	v, ok := f.data[key]
	return v, ok, nil
}

func (f *fakeBackend) Set(_ context.Context, key string, value []byte, _ time.Duration) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.failSet {
		return errors.New("connection refused")
	}
	f.data[key] = value
	return nil
}

func (f *fakeBackend) Delete(_ context.Context, keys ...string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.deletes = append(f.deletes, keys)
	for _, k := range keys {
		delete(f.data, k)
	}
	return nil
}

func (f *fakeBackend) DeletePrefix(_ context.Context, prefix string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.prefix = append(f.prefix, prefix)
	n := 0
	for k := range f.data {
		if strings.HasPrefix(k, prefix) {
			delete(f.data, k)
			n++
		}
	}
	return n, nil
}

func (f *fakeBackend) has(key string) bool {
	f.mu.Lock()
	defer f.mu.Unlock()
	_, ok := f.data[key]
	return ok
}

func quietLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestGetOrCompute_MissThenHit(t *testing.T) {
	layer := New(newFake(), quietLogger())
	ctx := context.Background()
	calls := 0
	compute := func(context.Context) ([]byte, error) {
		calls++
		return []byte("payload"), nil
	}

	v, hit, err := layer.GetOrCompute(ctx, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "payload", string(v))

	v, hit, err = layer.GetOrCompute(ctx, "k", time.Minute, compute)
	require.NoError(t, err)
	assert.True(t, hit)
	assert.Equal(t, "payload", string(v))
	assert.Equal(t, 1, calls)
}

func TestGetOrCompute_ComputeErrorIsNotCached(t *testing.T) {
	backend := newFake()
	layer := New(backend, quietLogger())
	boom := errors.New("store down")

	_, _, err := layer.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return nil, boom
	})
	assert.ErrorIs(t, err, boom)
	assert.False(t, backend.has("k"))
}

func TestGetOrCompute_BackendFailuresDegradeToCompute(t *testing.T) {
	backend := newFake()
	backend.failGet = true
	backend.failSet = true
	layer := New(backend, quietLogger())

	v, hit, err := layer.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
		return []byte("fresh"), nil
	})
	require.NoError(t, err)
	assert.False(t, hit)
	assert.Equal(t, "fresh", string(v))
}

func TestNilBackendIsPassThrough(t *testing.T) {
	layer := New(nil, quietLogger())
	assert.False(t, layer.Enabled())

	for i := 0; i < 2; i++ {
		_, hit, err := layer.GetOrCompute(context.Background(), "k", time.Minute, func(context.Context) ([]byte, error) {
			return []byte("x"), nil
		})
		require.NoError(t, err)
		assert.False(t, hit)
	}
	layer.InvalidatePrefix(context.Background(), ListPrefix)
	layer.Invalidate(context.Background(), ItemKey("a"))
}

func TestListKey(t *testing.T) {
	assert.Equal(t, "items:list:search=&genre=", ListKey("", ""))
	assert.Equal(t, ListKey("Ocean", "Nature"), ListKey("  ocean ", "Nature "))
	assert.NotEqual(t, ListKey("a&genre=b", ""), ListKey("a", "b"))
	assert.NotEqual(t, ListKey("", "Drama"), ListKey("", "drama"))
	assert.True(t, strings.HasPrefix(ListKey("x", "y"), ListPrefix))
	assert.Equal(t, "items:byid:abc", ItemKey("abc"))
}

func TestInvalidator_Scopes(t *testing.T) {
	backend := newFake()
	layer := New(backend, quietLogger())
	inv := NewInvalidator(layer, 0, 0, quietLogger())
	ctx := context.Background()

	seed := func() {
		for _, k := range []string{ListKey("", ""), ListKey("a", ""), ItemKey("abc"), ItemKey("abcd")} {
			require.NoError(t, backend.Set(ctx, k, []byte("x"), time.Minute))
		}
	}

	seed()
	inv.CommentAdded(ctx, "abc")
	assert.False(t, backend.has(ItemKey("abc")))
	assert.True(t, backend.has(ItemKey("abcd")))
	assert.True(t, backend.has(ListKey("", "")), "comments never touch lists")

	seed()
	inv.ItemChanged(ctx, "abc")
	assert.False(t, backend.has(ItemKey("abc")))
	assert.False(t, backend.has(ListKey("", "")))
	assert.False(t, backend.has(ListKey("a", "")))
	assert.True(t, backend.has(ItemKey("abcd")))
}

func TestInvalidator_QueueDrainsOnClose(t *testing.T) {
	backend := newFake()
	layer := New(backend, quietLogger())
	inv := NewInvalidator(layer, 4, 2, quietLogger())
	ctx := context.Background()

	for i := 0; i < 50; i++ {
		require.NoError(t, backend.Set(ctx, ItemKey("a"), []byte("x"), time.Minute))
		inv.ItemChanged(ctx, "a")
	}
	require.NoError(t, inv.Close(ctx))
	assert.False(t, backend.has(ItemKey("a")))

	require.NoError(t, backend.Set(ctx, ItemKey("b"), []byte("x"), time.Minute))
	inv.CommentAdded(ctx, "b")
	assert.False(t, backend.has(ItemKey("b")), "after Close invalidation is synchronous")
	require.NoError(t, inv.Close(ctx))
}
