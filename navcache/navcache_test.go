package navcache_test

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/jrsteele09/go-backoffice-session/navcache"
	"github.com/jrsteele09/go-backoffice-session/navcache/cachefake"
	"github.com/jrsteele09/go-backoffice-session/navigation"
	"github.com/stretchr/testify/require"
)

var testNow = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func sampleTree() []navigation.Node {
	return navigation.BuildTree([]navigation.Route{
		{ID: 1, Title: "Dispatch", IsGroupHeader: true},
		{ID: 2, ParentID: 1, Title: "Live board", ExternalRouteID: "dispatch.board", Icon: "map"},
		{ID: 3, Title: "Finance", ExternalRouteID: "finance"},
	})
}

func setupCache(t *testing.T, options ...navcache.Option) (*navcache.Cache, *cachefake.FakeBackend, *time.Time) {
	t.Helper()
	now := testNow
	backend := cachefake.NewFakeBackend()
	options = append([]navcache.Option{navcache.WithNowFunc(func() time.Time { return now })}, options...)
	return navcache.Open(context.Background(), backend, options...), backend, &now
}

func TestCache_SaveThenGet(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := setupCache(t)
	tree := sampleTree()

	require.True(t, cache.SaveEntry(ctx, "u1", tree, "dispatcher"))

	entry := cache.GetEntry(ctx, "u1")
	require.NotNil(t, entry)
	require.Equal(t, "u1", entry.UserID)
	require.Equal(t, "dispatcher", entry.Role)
	require.Equal(t, tree, entry.NavigationTree)
	require.True(t, testNow.Equal(entry.CachedAt))
}

func TestCache_SaveOverwrites(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := setupCache(t)

	require.True(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))
	require.True(t, cache.SaveEntry(ctx, "u1", []navigation.Node{{ID: 9, Title: "Support"}}, "support"))

	entry := cache.GetEntry(ctx, "u1")
	require.NotNil(t, entry)
	require.Equal(t, "support", entry.Role)
	require.Len(t, entry.NavigationTree, 1)
	require.Equal(t, 1, backend.Len())
}

func TestCache_ReturnedTreeIsACopy(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := setupCache(t)
	tree := sampleTree()
	require.True(t, cache.SaveEntry(ctx, "u1", tree, "dispatcher"))

	tree[0].Title = "mutated"
	first := cache.GetEntry(ctx, "u1")
	first.NavigationTree[0].Children[0].Title = "mutated"

	second := cache.GetEntry(ctx, "u1")
	require.Equal(t, "Dispatch", second.NavigationTree[0].Title)
	require.Equal(t, "Live board", second.NavigationTree[0].Children[0].Title)
}

func TestCache_MissingEntry(t *testing.T) {
	cache, _, _ := setupCache(t)
	require.Nil(t, cache.GetEntry(context.Background(), "nobody"))
	require.Nil(t, cache.GetEntry(context.Background(), ""))
}

func TestCache_StaleEntryIsNotReturned(t *testing.T) {
	ctx := context.Background()
	cache, backend, now := setupCache(t, navcache.WithMaxAge(time.Hour))
	require.True(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))

	*now = now.Add(time.Hour)
	require.NotNil(t, cache.GetEntry(ctx, "u1"), "exactly max age old is still fresh")

	*now = now.Add(time.Second)
	require.Nil(t, cache.GetEntry(ctx, "u1"))
	require.True(t, backend.Has("u1"), "reads do not evict")
}

func TestCache_OpenEvictsStaleEntries(t *testing.T) {
	backend := cachefake.NewFakeBackend()
	backend.Seed(navcache.Entry{UserID: "old", CachedAt: testNow.Add(-25 * time.Hour)})
	backend.Seed(navcache.Entry{UserID: "fresh", CachedAt: testNow.Add(-time.Hour)})

	cache := navcache.Open(context.Background(), backend, navcache.WithNowFunc(func() time.Time { return testNow }))

	require.True(t, cache.IsAvailable(context.Background()))
	require.False(t, backend.Has("old"))
	require.True(t, backend.Has("fresh"))
}

func TestCache_CleanStale(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := setupCache(t)
	backend.Seed(navcache.Entry{UserID: "a", CachedAt: testNow.Add(-2 * time.Hour)})
	backend.Seed(navcache.Entry{UserID: "b", CachedAt: testNow.Add(-10 * time.Minute)})

	cache.CleanStale(ctx, time.Hour)

	require.False(t, backend.Has("a"))
	require.True(t, backend.Has("b"))
}

func TestCache_DeleteAndInvalidate(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := setupCache(t)
	require.True(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))
	require.True(t, cache.SaveEntry(ctx, "u2", sampleTree(), "finance"))

	cache.DeleteEntry(ctx, "u1")
	require.Nil(t, cache.GetEntry(ctx, "u1"))
	require.NotNil(t, cache.GetEntry(ctx, "u2"))

	cache.DeleteEntry(ctx, "u1")
	cache.Invalidate(ctx)
	require.Equal(t, 0, backend.Len())
}

func TestCache_UnavailableBackendIsANoop(t *testing.T) {
	ctx := context.Background()
	backend := cachefake.NewFakeBackend()
	backend.FailPing(errors.New("disk gone"))
	cache := navcache.Open(ctx, backend)

	require.False(t, cache.IsAvailable(ctx))
	require.False(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))
	require.Nil(t, cache.GetEntry(ctx, "u1"))
	cache.DeleteEntry(ctx, "u1")
	cache.CleanStale(ctx, time.Hour)
	cache.Invalidate(ctx)
	require.Equal(t, 0, backend.Len())
}

func TestCache_DisabledCache(t *testing.T) {
	ctx := context.Background()
	cache := navcache.Disabled()

	require.False(t, cache.IsAvailable(ctx))
	require.False(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))
	require.Nil(t, cache.GetEntry(ctx, "u1"))
	require.NoError(t, cache.Close())
}

func TestCache_BackendErrorsDegrade(t *testing.T) {
	ctx := context.Background()
	cache, backend, _ := setupCache(t)
	require.True(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))

	backend.FailGet(errors.New("read failed"))
	require.Nil(t, cache.GetEntry(ctx, "u1"))

	backend.FailPut(errors.New("write failed"))
	require.False(t, cache.SaveEntry(ctx, "u2", sampleTree(), "finance"))

	backend.FailDelete(errors.New("delete failed"))
	cache.DeleteEntry(ctx, "u1")
	cache.Invalidate(ctx)
	require.True(t, backend.Has("u1"))
}

func TestCache_RecoversWhenBackendReturns(t *testing.T) {
	ctx := context.Background()
	backend := cachefake.NewFakeBackend()
	backend.FailPing(errors.New("locked"))
	cache := navcache.Open(ctx, backend)
	require.False(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))

	backend.FailPing(nil)
	require.True(t, cache.IsAvailable(ctx))
	require.True(t, cache.SaveEntry(ctx, "u1", sampleTree(), "dispatcher"))
}

func TestCache_EmptyTreeIsStoredAsEmpty(t *testing.T) {
	ctx := context.Background()
	cache, _, _ := setupCache(t)

	require.True(t, cache.SaveEntry(ctx, "u1", nil, "support"))
	entry := cache.GetEntry(ctx, "u1")
	require.NotNil(t, entry)
	require.NotNil(t, entry.NavigationTree)
	require.Empty(t, entry.NavigationTree)
}
