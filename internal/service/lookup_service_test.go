package service

import (
	"context"
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"github.com/noah-isme/backoffice-api/internal/models"
	appErrors "github.com/noah-isme/backoffice-api/pkg/errors"
	"github.com/noah-isme/backoffice-api/pkg/retry"
)

type memoryCacheRepo struct {
	entries map[string][]byte
}

func newMemoryCacheRepo() *memoryCacheRepo {
	return &memoryCacheRepo{entries: make(map[string][]byte)}
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	m.entries = make(map[string][]byte)
	return nil
}

type storeListerStub struct {
	stores   []models.Store
	failures int
	calls    int
}

func (s *storeListerStub) List(ctx context.Context) ([]models.Store, error) {
	s.calls++
	if s.calls <= s.failures {
		return nil, errors.New("connection refused")
	}
	return s.stores, nil
}

type catalogLookupsStub struct {
	categories []models.Category
	suppliers  []models.Supplier
}

func (c *catalogLookupsStub) ListCategories(ctx context.Context) ([]models.Category, error) {
	return c.categories, nil
}

func (c *catalogLookupsStub) ListSuppliers(ctx context.Context) ([]models.Supplier, error) {
	return c.suppliers, nil
}

type userDirectoryStub struct {
	users []models.User
}

func (u *userDirectoryStub) List(ctx context.Context, filter models.UserFilter) ([]models.User, int, error) {
	return u.users, len(u.users), nil
}

func fastRetry() retry.Config {
	return retry.Config{Attempts: 3, InitialDelay: time.Millisecond, MaxDelay: 2 * time.Millisecond}
}

func newLookupFixture(stores *storeListerStub, cache *CacheService) *LookupService {
	catalog := &catalogLookupsStub{
		categories: []models.Category{{ID: "c1", Name: "Beverages"}},
		suppliers:  []models.Supplier{{ID: "sup1", Name: "Acme Goods"}},
	}
	users := &userDirectoryStub{users: []models.User{{ID: "u1", FullName: "Sam Clerk", Role: models.RoleClerk}}}
	return NewLookupService(stores, catalog, users, cache, fastRetry(), time.Minute, nil)
}

func TestFormDataRetriesTransientFailure(t *testing.T) {
	stores := &storeListerStub{failures: 2, stores: []models.Store{{ID: "s1", Name: "Central"}}}
	svc := newLookupFixture(stores, disabledCache())

	data, cached, err := svc.FormData(context.Background())
	require.NoError(t, err)
	require.False(t, cached)
	require.Empty(t, data.Warnings)
	require.Len(t, data.Stores, 1)
	require.Equal(t, 3, stores.calls)
}

func TestFormDataDegradesPerSource(t *testing.T) {
	stores := &storeListerStub{failures: 10}
	svc := newLookupFixture(stores, disabledCache())

	data, _, err := svc.FormData(context.Background())
	require.NoError(t, err)
	require.Contains(t, data.Warnings, "stores unavailable")
	require.Empty(t, data.Stores)
	require.Len(t, data.Categories, 1)
	require.Len(t, data.Suppliers, 1)
	require.Len(t, data.Users, 1)
	require.Equal(t, 3, stores.calls)
}

func TestFormDataCachesCompleteAggregateOnly(t *testing.T) {
	cacheRepo := newMemoryCacheRepo()
	cache := NewCacheService(cacheRepo, nil, time.Minute, nil, true)

	degraded := newLookupFixture(&storeListerStub{failures: 10}, cache)
	data, _, err := degraded.FormData(context.Background())
	require.NoError(t, err)
	require.NotEmpty(t, data.Warnings)
	require.Empty(t, cacheRepo.entries)

	stores := &storeListerStub{stores: []models.Store{{ID: "s1", Name: "Central"}}}
	healthy := newLookupFixture(stores, cache)
	data, cached, err := healthy.FormData(context.Background())
	require.NoError(t, err)
	require.False(t, cached)
	require.Empty(t, data.Warnings)
	require.Len(t, cacheRepo.entries, 1)

	data, cached, err = healthy.FormData(context.Background())
	require.NoError(t, err)
	require.True(t, cached)
	require.Len(t, data.Stores, 1)
	require.Equal(t, 1, stores.calls)
}
