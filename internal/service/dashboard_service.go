package service

import (
	"context"
	"time"

	"go.uber.org/zap"

	"github.com/noah-isme/markaz-go-api/internal/models"
	appErrors "github.com/noah-isme/markaz-go-api/pkg/errors"
)

type classNameLister interface {
	ListClasses(ctx context.Context) ([]string, error)
}

type cohortAggregator interface {
	ClassStats(ctx context.Context, className string) (*models.ClassStat, error)
	Distribution(ctx context.Context) ([]models.GradeDistributionEntry, error)
	TopPerformers(ctx context.Context, limit int) ([]models.StudentRecord, error)
}

// DashboardServiceConfig tunes dashboard behaviour.
type DashboardServiceConfig struct {
	CacheTTL      time.Duration
	TopPerformers int
}

// DashboardService composes the admin overview: per-class statistics, the
// cohort level distribution and the top performers list.
type DashboardService struct {
	classes     classNameLister
	performance cohortAggregator
	cache       *CacheService
	logger      *zap.Logger
	cfg         DashboardServiceConfig
}

// NewDashboardService constructs a DashboardService with sane defaults.
func NewDashboardService(classes classNameLister, performance cohortAggregator, cache *CacheService, logger *zap.Logger, cfg DashboardServiceConfig) *DashboardService {
	if cfg.CacheTTL <= 0 {
		cfg.CacheTTL = 5 * time.Minute
	}
	if cfg.TopPerformers <= 0 {
		cfg.TopPerformers = 5
	}
	if logger == nil {
		logger = zap.NewNop()
	}
	return &DashboardService{classes: classes, performance: performance, cache: cache, logger: logger, cfg: cfg}
}

// Overview returns the dashboard payload and whether it came from cache.
func (s *DashboardService) Overview(ctx context.Context) (*models.DashboardOverview, bool, error) {
	if s.cache != nil {
		var cached models.DashboardOverview
		hit, err := s.cache.Get(ctx, CacheKeyDashboardOverview, &cached)
		if err == nil && hit {
			return &cached, true, nil
		}
	}

	overview, err := s.compose(ctx)
	if err != nil {
		return nil, false, err
	}
	if s.cache != nil {
		if err := s.cache.Set(ctx, CacheKeyDashboardOverview, overview, s.cfg.CacheTTL); err != nil {
			s.logger.Warn("dashboard cache write failed", zap.Error(err))
		}
	}
	return overview, false, nil
}

func (s *DashboardService) compose(ctx context.Context) (*models.DashboardOverview, error) {
	classNames, err := s.classes.ListClasses(ctx)
	if err != nil {
		return nil, appErrors.Wrap(err, appErrors.ErrInternal.Code, appErrors.ErrInternal.Status, "failed to list classes")
	}

	stats := make([]models.ClassStat, 0, len(classNames))
	for _, className := range classNames {
		stat, err := s.performance.ClassStats(ctx, className)
		if err != nil {
			return nil, err
		}
		stats = append(stats, *stat)
	}

	distribution, err := s.performance.Distribution(ctx)
	if err != nil {
		return nil, err
	}
	top, err := s.performance.TopPerformers(ctx, s.cfg.TopPerformers)
	if err != nil {
		return nil, err
	}

	return &models.DashboardOverview{
		Classes:       stats,
		Distribution:  distribution,
		TopPerformers: top,
	}, nil
}
