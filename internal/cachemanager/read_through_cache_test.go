package cachemanager

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type mockCacheManager struct {
	mock.Mock
}

func (m *mockCacheManager) Get(ctx context.Context, key string) (string, bool) {
	args := m.Called(ctx, key)
	return args.String(0), args.Bool(1)
}

func (m *mockCacheManager) GetWithRefresh(ctx context.Context, key string, ttl time.Duration) (string, bool) {
	args := m.Called(ctx, key, ttl)
	return args.String(0), args.Bool(1)
}

func (m *mockCacheManager) Set(ctx context.Context, key string, value string, ttl time.Duration) {
	m.Called(ctx, key, value, ttl)
}

func (m *mockCacheManager) Delete(ctx context.Context, keys ...string) error {
	return m.Called(ctx, keys).Error(0)
}

func (m *mockCacheManager) DeletePrefix(ctx context.Context, prefix string) int {
	return m.Called(ctx, prefix).Int(0)
}

func (m *mockCacheManager) Flush(ctx context.Context) error {
	return m.Called(ctx).Error(0)
}

type renderInput struct {
	File    string
	Section string
}

func newMockCache(t *testing.T) *mockCacheManager {
	m := &mockCacheManager{}
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}

func render(calls *int) func(context.Context, renderInput) (string, error) {
	return func(_ context.Context, in renderInput) (string, error) {
		*calls++
		return in.File + ":" + in.Section, nil
	}
}

func TestReadThroughCache_SkipCacheAlwaysRenders(t *testing.T) {
	m := newMockCache(t)
	calls := 0
	rtc := NewReadThroughCache[string, string, renderInput](m, render(&calls), true)

	for range 2 {
		got, err := rtc.Get(context.Background(), "k", renderInput{File: "a.md", Section: "x"}, time.Minute)
		require.NoError(t, err)
		require.Equal(t, "a.md:x", got)
	}
	got, err := rtc.GetWithRefresh(context.Background(), "k", renderInput{File: "a.md", Section: "y"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "a.md:y", got)
	require.Equal(t, 3, calls)
}

func TestReadThroughCache_Get_Hit(t *testing.T) {
	m := newMockCache(t)
	m.On("Get", mock.Anything, "k").Return("cached", true)
	calls := 0
	rtc := NewReadThroughCache[string, string, renderInput](m, render(&calls), false)

	got, err := rtc.Get(context.Background(), "k", renderInput{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "cached", got)
	require.Zero(t, calls)
}

func TestReadThroughCache_Get_MissStores(t *testing.T) {
	m := newMockCache(t)
	m.On("Get", mock.Anything, "k").Return("", false)
	m.On("Set", mock.Anything, "k", "a.md:x", time.Minute).Return()
	calls := 0
	rtc := NewReadThroughCache[string, string, renderInput](m, render(&calls), false)

	got, err := rtc.Get(context.Background(), "k", renderInput{File: "a.md", Section: "x"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "a.md:x", got)
	require.Equal(t, 1, calls)
}

func TestReadThroughCache_Get_ErrorNotStored(t *testing.T) {
	m := newMockCache(t)
	m.On("Get", mock.Anything, "k").Return("", false)
	rtc := NewReadThroughCache[string, string, renderInput](m, func(context.Context, renderInput) (string, error) {
		return "", errors.New("no such section")
	}, false)

	_, err := rtc.Get(context.Background(), "k", renderInput{}, time.Minute)
	require.Error(t, err)
	m.AssertNotCalled(t, "Set", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
}

func TestReadThroughCache_GetWithRefresh_Hit(t *testing.T) {
	m := newMockCache(t)
	m.On("GetWithRefresh", mock.Anything, "k", time.Minute).Return("cached", true)
	calls := 0
	rtc := NewReadThroughCache[string, string, renderInput](m, render(&calls), false)

	got, err := rtc.GetWithRefresh(context.Background(), "k", renderInput{}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "cached", got)
	require.Zero(t, calls)
}

func TestReadThroughCache_GetWithRefresh_MissStores(t *testing.T) {
	m := newMockCache(t)
	m.On("GetWithRefresh", mock.Anything, "k", time.Minute).Return("", false)
	m.On("Set", mock.Anything, "k", "b.md:", time.Minute).Return()
	calls := 0
	rtc := NewReadThroughCache[string, string, renderInput](m, render(&calls), false)

	got, err := rtc.GetWithRefresh(context.Background(), "k", renderInput{File: "b.md"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, "b.md:", got)
}

func TestReadThroughCache_InvalidateFile(t *testing.T) {
	m := newMockCache(t)
	m.On("DeletePrefix", mock.Anything, FilePrefix("a.md")).Return(3)
	rtc := NewReadThroughCache[string, string, renderInput](m, nil, false)

	require.Equal(t, 3, rtc.InvalidateFile(context.Background(), "a.md"))
}

func TestReadThroughCache_WithInMemoryManager(t *testing.T) {
	ctx := context.Background()
	calls := 0
	rtc := NewReadThroughCache[string, string, renderInput](
		NewInMemoryCacheManager[string, string]("embed", DefaultExpiration, DefaultCleanupInterval),
		render(&calls),
		false,
	)
	key := Key[string]("a.md", "x")

	for range 3 {
		_, err := rtc.Get(ctx, key, renderInput{File: "a.md", Section: "x"}, time.Minute)
		require.NoError(t, err)
	}
	require.Equal(t, 1, calls)

	require.Equal(t, 1, rtc.InvalidateFile(ctx, "a.md"))
	_, err := rtc.Get(ctx, key, renderInput{File: "a.md", Section: "x"}, time.Minute)
	require.NoError(t, err)
	require.Equal(t, 2, calls)
}
