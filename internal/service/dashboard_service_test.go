package service

import (
	"context"
	"encoding/json"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

type mockClassLister struct {
	classes []string
}

func (m *mockClassLister) ListClasses(ctx context.Context) ([]string, error) {
	return m.classes, nil
}

type mockAggregator struct {
	statCalls []string
}

func (m *mockAggregator) ClassStats(ctx context.Context, className string) (*models.ClassStat, error) {
	m.statCalls = append(m.statCalls, className)
	return &models.ClassStat{ClassName: className, StudentCount: 2, Average: 70}, nil
}

func (m *mockAggregator) Distribution(ctx context.Context) ([]models.GradeDistributionEntry, error) {
	return []models.GradeDistributionEntry{{Level: "Good", Count: 4}}, nil
}

func (m *mockAggregator) TopPerformers(ctx context.Context, limit int) ([]models.StudentRecord, error) {
	top := []models.StudentRecord{{ID: "stu1"}, {ID: "stu2"}, {ID: "stu3"}}
	if len(top) > limit {
		top = top[:limit]
	}
	return top, nil
}

// memoryCacheRepo is an in-process CacheRepository for tests.
type memoryCacheRepo struct {
	entries map[string][]byte
}

func (m *memoryCacheRepo) Get(ctx context.Context, key string, dest interface{}) error {
	raw, ok := m.entries[key]
	if !ok {
		return appErrors.ErrCacheMiss
	}
	return json.Unmarshal(raw, dest)
}

func (m *memoryCacheRepo) Set(ctx context.Context, key string, value interface{}, ttl time.Duration) error {
	if m.entries == nil {
		m.entries = make(map[string][]byte)
	}
	raw, err := json.Marshal(value)
	if err != nil {
		return err
	}
	m.entries[key] = raw
	return nil
}

func (m *memoryCacheRepo) DeleteByPattern(ctx context.Context, pattern string) error {
	prefix := pattern
	if n := len(prefix); n > 0 && prefix[n-1] == '*' {
		prefix = prefix[:n-1]
	}
	for key := range m.entries {
		if len(key) >= len(prefix) && key[:len(prefix)] == prefix {
			delete(m.entries, key)
		}
	}
	return nil
}

func TestDashboardOverviewComposes(t *testing.T) {
	classes := &mockClassLister{classes: []string{"S1", "S2"}}
	agg := &mockAggregator{}
	svc := NewDashboardService(classes, agg, nil, zap.NewNop(), DashboardServiceConfig{TopPerformers: 2})

	overview, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{"S1", "S2"}, agg.statCalls)
	require.Len(t, overview.Classes, 2)
	assert.Len(t, overview.TopPerformers, 2)
	require.Len(t, overview.Distribution, 1)
	assert.Equal(t, "Good", overview.Distribution[0].Level)
}

func TestDashboardOverviewUsesCache(t *testing.T) {
	classes := &mockClassLister{classes: []string{"S1"}}
	agg := &mockAggregator{}
	cacheRepo := &memoryCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(classes, agg, cache, zap.NewNop(), DashboardServiceConfig{})

	_, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)

	_, cached, err = svc.Overview(context.Background())
	require.NoError(t, err)
	assert.True(t, cached)
	// The second call was served from cache, not recomputed.
	assert.Equal(t, []string{"S1"}, agg.statCalls)
}

func TestDashboardOverviewRecomputesAfterInvalidation(t *testing.T) {
	classes := &mockClassLister{classes: []string{"S1"}}
	agg := &mockAggregator{}
	cacheRepo := &memoryCacheRepo{}
	cache := NewCacheService(cacheRepo, nil, time.Minute, zap.NewNop(), true)
	svc := NewDashboardService(classes, agg, cache, zap.NewNop(), DashboardServiceConfig{})

	_, _, err := svc.Overview(context.Background())
	require.NoError(t, err)

	cache.InvalidateDerived(context.Background())

	_, cached, err := svc.Overview(context.Background())
	require.NoError(t, err)
	assert.False(t, cached)
	assert.Equal(t, []string{"S1", "S1"}, agg.statCalls)
}
