package principalcache

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/alicebob/miniredis/v2"
	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/example/cloud-tracker/models"
)

type MockLoader struct {
	mock.Mock
}

func (m *MockLoader) LoadByIdentifier(ctx context.Context, identifier string) (*models.Principal, error) {
	args := m.Called(ctx, identifier)
	if p := args.Get(0); p != nil {
		return p.(*models.Principal), args.Error(1)
	}
	return nil, args.Error(1)
}

func alice() *models.Principal {
	return &models.Principal{
		UserID:         uuid.New(),
		Identifier:     "alice@example.com",
		CredentialHash: "$2a$04$hash",
		Authorities:    []string{"user"},
	}
}

func newTestRedis(t *testing.T) (*miniredis.Miniredis, *redis.Client) {
	t.Helper()
	mr := miniredis.RunT(t)
	client := redis.NewClient(&redis.Options{Addr: mr.Addr()})
	t.Cleanup(func() { _ = client.Close() })
	return mr, client
}

func backends(t *testing.T) map[string]Backend {
	_, client := newTestRedis(t)
	return map[string]Backend{
		"memory": NewMemoryBackend(10, time.Minute),
		"redis":  NewRedisBackend(client, "", time.Minute),
	}
}

func TestStore_ReadThrough(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			p := alice()
			loader := new(MockLoader)
			loader.On("LoadByIdentifier", ctx, "alice@example.com").Return(p, nil).Once()
			store := New(loader, backend, zap.NewNop())

			first, err := store.LoadByIdentifier(ctx, "alice@example.com")
			require.NoError(t, err)
			second, err := store.LoadByIdentifier(ctx, "alice@example.com")
			require.NoError(t, err)

			assert.Equal(t, p, first)
			assert.Equal(t, p, second)
			loader.AssertNumberOfCalls(t, "LoadByIdentifier", 1)
		})
	}
}

func TestStore_DoesNotCacheFailures(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			notFound := errors.New("principal not found")
			loader := new(MockLoader)
			loader.On("LoadByIdentifier", ctx, "ghost@example.com").Return(nil, notFound).Twice()
			store := New(loader, backend, zap.NewNop())

			_, err := store.LoadByIdentifier(ctx, "ghost@example.com")
			assert.ErrorIs(t, err, notFound)
			_, err = store.LoadByIdentifier(ctx, "ghost@example.com")
			assert.ErrorIs(t, err, notFound)

			loader.AssertExpectations(t)
		})
	}
}

func TestStore_NilPrincipalIsNotCached(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			loader := new(MockLoader)
			loader.On("LoadByIdentifier", ctx, "ghost@example.com").Return(nil, nil).Twice()
			store := New(loader, backend, zap.NewNop())

			for i := 0; i < 2; i++ {
				var p *models.Principal
				require.NotPanics(t, func() {
					var err error
					p, err = store.LoadByIdentifier(ctx, "ghost@example.com")
					require.NoError(t, err)
				})
				assert.Nil(t, p)
			}

			_, ok, err := backend.Get(ctx, "ghost@example.com")
			require.NoError(t, err)
			assert.False(t, ok)
			loader.AssertExpectations(t)
		})
	}
}

func TestBackends_RejectNilPrincipal(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			err := backend.Set(context.Background(), "ghost@example.com", nil)
			assert.ErrorIs(t, err, errNilPrincipal)
		})
	}
}

func TestStore_Invalidate(t *testing.T) {
	for name, backend := range backends(t) {
		t.Run(name, func(t *testing.T) {
			ctx := context.Background()
			loader := new(MockLoader)
			loader.On("LoadByIdentifier", ctx, "alice@example.com").Return(alice(), nil).Twice()
			store := New(loader, backend, zap.NewNop())

			_, err := store.LoadByIdentifier(ctx, "alice@example.com")
			require.NoError(t, err)
			require.NoError(t, store.Invalidate(ctx, "Alice@Example.com"))
			_, err = store.LoadByIdentifier(ctx, "alice@example.com")
			require.NoError(t, err)

			loader.AssertExpectations(t)
		})
	}
}

func TestStore_CallersCannotMutateCache(t *testing.T) {
	ctx := context.Background()
	loader := new(MockLoader)
	loader.On("LoadByIdentifier", ctx, "alice@example.com").Return(alice(), nil).Once()
	store := New(loader, NewMemoryBackend(10, time.Minute), zap.NewNop())

	_, err := store.LoadByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)

	cached, err := store.LoadByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	cached.Authorities[0] = "admin"

	again, err := store.LoadByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, []string{"user"}, again.Authorities)
}

func TestStore_RedisDownFallsBackToLoader(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	p := alice()
	loader := new(MockLoader)
	loader.On("LoadByIdentifier", ctx, "alice@example.com").Return(p, nil)
	store := New(loader, NewRedisBackend(client, "", time.Minute), zap.NewNop())

	mr.Close()

	got, err := store.LoadByIdentifier(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.Equal(t, p, got)
}

func TestMemoryBackend_TTLAndEviction(t *testing.T) {
	ctx := context.Background()
	now := time.Date(2024, 1, 1, 0, 0, 0, 0, time.UTC)
	backend := NewMemoryBackend(2, time.Minute)
	backend.now = func() time.Time { return now }

	a := &models.Principal{Identifier: "a@example.com"}
	b := &models.Principal{Identifier: "b@example.com"}
	c := &models.Principal{Identifier: "c@example.com"}

	require.NoError(t, backend.Set(ctx, a.Identifier, a))
	require.NoError(t, backend.Set(ctx, b.Identifier, b))

	_, ok, _ := backend.Get(ctx, a.Identifier)
	require.True(t, ok)

	require.NoError(t, backend.Set(ctx, c.Identifier, c))
	assert.Equal(t, 2, backend.Len())

	_, ok, _ = backend.Get(ctx, b.Identifier)
	assert.False(t, ok, "least recently used entry is evicted")

	now = now.Add(time.Minute)
	_, ok, _ = backend.Get(ctx, a.Identifier)
	assert.False(t, ok, "expired")

	hits, misses := backend.Stats()
	assert.Equal(t, uint64(1), hits)
	assert.Equal(t, uint64(2), misses)
}

func TestRedisBackend_StoresCredentialHashWithTTL(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	backend := NewRedisBackend(client, "test:", 30*time.Second)
	p := alice()

	require.NoError(t, backend.Set(ctx, "Alice@Example.com", p))
	assert.True(t, mr.Exists("test:alice@example.com"))
	assert.Equal(t, 30*time.Second, mr.TTL("test:alice@example.com"))

	got, ok, err := backend.Get(ctx, "alice@example.com")
	require.NoError(t, err)
	require.True(t, ok)
	assert.Equal(t, p, got)

	mr.FastForward(31 * time.Second)
	_, ok, err = backend.Get(ctx, "alice@example.com")
	require.NoError(t, err)
	assert.False(t, ok)
}

func TestRedisBackend_CorruptValue(t *testing.T) {
	ctx := context.Background()
	mr, client := newTestRedis(t)
	backend := NewRedisBackend(client, "", time.Minute)

	require.NoError(t, mr.Set(DefaultKeyPrefix+"alice@example.com", "{not json"))

	_, ok, err := backend.Get(ctx, "alice@example.com")
	assert.False(t, ok)
	assert.ErrorContains(t, err, "decode cached principal")
}
