// Package dashboard считает агрегаты админ-панели и держит их в кеше.
//
// Кеш обновляется сквозной записью: после коммита изменений пользователей
// или подписок хранилище вызывает RefreshUsers или RefreshEarnings.
// Если пересчёт не удался, ключи агрегата удаляются, чтобы не отдавать
// значение, устаревшее после коммита.
// При промахе или недоступном кеше значение считается запросом к базе.
package dashboard

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/magabrotheeeer/marketplace-backend/internal/lib/apperr"
	"github.com/magabrotheeeer/marketplace-backend/internal/lib/sl"
	"github.com/magabrotheeeer/marketplace-backend/internal/metrics"
	"github.com/magabrotheeeer/marketplace-backend/internal/models"
	"github.com/magabrotheeeer/marketplace-backend/internal/storage"
)

// Имена агрегатов, они же суффиксы ключей кеша.
const (
	MetricTotalUsers      = "total_users"
	MetricTotalVerified   = "total_verified"
	MetricTotalUnverified = "total_unverified"
	MetricTotalEarnings   = "total_earnings"
)

// Cache порт кеша значений.
type Cache interface {
	Get(ctx context.Context, key string, result any) (bool, error)
	Set(ctx context.Context, key string, value any, expiration time.Duration) error
	Invalidate(ctx context.Context, keys ...string) error
}

// StatsRepository источник агрегатов и списков пользователей.
type StatsRepository interface {
	CountUsers(ctx context.Context) (total, verified int64, err error)
	SumActiveEarnings(ctx context.Context) (float64, error)
	ListUsers(ctx context.Context, page models.Page) ([]models.UserWithSubscriptions, int64, error)
	GetUserWithSubscriptions(ctx context.Context, id int64) (*models.UserWithSubscriptions, error)
}

// HookRegistrar регистрирует хуки после коммита.
type HookRegistrar interface {
	OnCommit(e storage.Entity, h storage.Hook)
}

// Options параметры кеша.
type Options struct {
	TTL       time.Duration
	KeyPrefix string
}

// DashboardService агрегаты админ-панели.
type DashboardService struct {
	repo    StatsRepository
	cache   Cache
	metrics *metrics.Metrics
	opts    Options
	log     *slog.Logger
}

// NewDashboardService создает новый экземпляр DashboardService.
func NewDashboardService(repo StatsRepository, cache Cache, m *metrics.Metrics, opts Options, log *slog.Logger) *DashboardService {
	if opts.TTL <= 0 {
		opts.TTL = time.Minute
	}
	if opts.KeyPrefix == "" {
		opts.KeyPrefix = "dashboard"
	}
	return &DashboardService{repo: repo, cache: cache, metrics: m, opts: opts, log: log}
}

// Key возвращает ключ кеша агрегата.
func (s *DashboardService) Key(metric string) string {
	return s.opts.KeyPrefix + ":" + metric
}

// Register подписывает обновление кеша на изменения пользователей и подписок.
func (s *DashboardService) Register(r HookRegistrar) {
	r.OnCommit(storage.EntityUsers, func(ctx context.Context) {
		if err := s.RefreshUsers(ctx); err != nil {
			s.log.Warn("failed to refresh user counters", sl.Err(err))
		}
	})
	r.OnCommit(storage.EntitySubscriptions, func(ctx context.Context) {
		if err := s.RefreshEarnings(ctx); err != nil {
			s.log.Warn("failed to refresh earnings", sl.Err(err))
		}
	})
}

var userMetrics = []string{MetricTotalUsers, MetricTotalVerified, MetricTotalUnverified}

// invalidate удаляет ключи агрегатов. Ошибка кеша только логируется.
func (s *DashboardService) invalidate(ctx context.Context, op string, names ...string) {
	keys := make([]string, 0, len(names))
	for _, name := range names {
		keys = append(keys, s.Key(name))
	}
	if err := s.cache.Invalidate(ctx, keys...); err != nil {
		s.log.Warn("failed to invalidate dashboard cache", sl.Op(op), sl.Err(err))
	}
}

type userCounts struct {
	total, verified int64
}

func (u userCounts) pick(metric string) int64 {
	switch metric {
	case MetricTotalVerified:
		return u.verified
	case MetricTotalUnverified:
		return u.total - u.verified
	default:
		return u.total
	}
}

// RefreshUsers пересчитывает счётчики пользователей и перезаписывает кеш.
func (s *DashboardService) RefreshUsers(ctx context.Context) error {
	_, err := s.refreshUsers(ctx)
	return err
}

func (s *DashboardService) refreshUsers(ctx context.Context) (userCounts, error) {
	const op = "dashboard.RefreshUsers"
	total, verified, err := s.repo.CountUsers(ctx)
	if err != nil {
		s.invalidate(ctx, op, userMetrics...)
		return userCounts{}, fmt.Errorf("%s: %w", op, err)
	}
	counts := userCounts{total: total, verified: verified}
	for _, metric := range userMetrics {
		if err := s.cache.Set(ctx, s.Key(metric), counts.pick(metric), s.opts.TTL); err != nil {
			s.log.Warn("failed to cache counter", sl.Op(op), slog.String("metric", metric), sl.Err(err))
		}
	}
	return counts, nil
}

// RefreshEarnings пересчитывает сумму активных подписок и перезаписывает кеш.
func (s *DashboardService) RefreshEarnings(ctx context.Context) error {
	_, err := s.refreshEarnings(ctx)
	return err
}

func (s *DashboardService) refreshEarnings(ctx context.Context) (float64, error) {
	const op = "dashboard.RefreshEarnings"
	total, err := s.repo.SumActiveEarnings(ctx)
	if err != nil {
		s.invalidate(ctx, op, MetricTotalEarnings)
		return 0, fmt.Errorf("%s: %w", op, err)
	}
	if err := s.cache.Set(ctx, s.Key(MetricTotalEarnings), total, s.opts.TTL); err != nil {
		s.log.Warn("failed to cache earnings", sl.Op(op), sl.Err(err))
	}
	return total, nil
}

// TotalUsers общее число пользователей.
func (s *DashboardService) TotalUsers(ctx context.Context) (int64, error) {
	return s.userMetric(ctx, MetricTotalUsers)
}

// TotalVerified число подтверждённых пользователей.
func (s *DashboardService) TotalVerified(ctx context.Context) (int64, error) {
	return s.userMetric(ctx, MetricTotalVerified)
}

// TotalUnverified число неподтверждённых пользователей.
func (s *DashboardService) TotalUnverified(ctx context.Context) (int64, error) {
	return s.userMetric(ctx, MetricTotalUnverified)
}

// TotalEarnings сумма цен тарифов активных подписок.
func (s *DashboardService) TotalEarnings(ctx context.Context) (float64, error) {
	var v float64
	if s.lookup(ctx, MetricTotalEarnings, &v) {
		return v, nil
	}
	return s.refreshEarnings(ctx)
}

func (s *DashboardService) userMetric(ctx context.Context, metric string) (int64, error) {
	var v int64
	if s.lookup(ctx, metric, &v) {
		return v, nil
	}
	counts, err := s.refreshUsers(ctx)
	if err != nil {
		return 0, err
	}
	return counts.pick(metric), nil
}

// lookup читает агрегат из кеша. Ошибка кеша считается промахом.
func (s *DashboardService) lookup(ctx context.Context, metric string, result any) bool {
	hit, err := s.cache.Get(ctx, s.Key(metric), result)
	if err != nil {
		s.log.Warn("dashboard cache unavailable", slog.String("metric", metric), sl.Err(err))
		hit = false
	}
	if s.metrics != nil {
		res := metrics.ResultMiss
		if hit {
			res = metrics.ResultHit
		}
		s.metrics.DashboardCache.WithLabelValues(metric, res).Inc()
	}
	return hit
}

// Stats собирает четыре агрегата.
func (s *DashboardService) Stats(ctx context.Context) (*models.DashboardStats, error) {
	const op = "dashboard.Stats"
	var (
		stats models.DashboardStats
		err   error
	)
	if stats.TotalUsers, err = s.TotalUsers(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stats.TotalVerified, err = s.TotalVerified(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stats.TotalUnverified, err = s.TotalUnverified(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	if stats.TotalEarnings, err = s.TotalEarnings(ctx); err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return &stats, nil
}

// Overview возвращает агрегаты и страницу пользователей с подписками.
func (s *DashboardService) Overview(ctx context.Context, page models.Page) (*models.DashboardOverview, models.PageInfo, error) {
	const op = "dashboard.Overview"
	stats, err := s.Stats(ctx)
	if err != nil {
		return nil, models.PageInfo{}, err
	}
	users, count, err := s.repo.ListUsers(ctx, page)
	if err != nil {
		return nil, models.PageInfo{}, fmt.Errorf("%s: %w", op, err)
	}
	return &models.DashboardOverview{DashboardStats: *stats, Users: users}, models.NewPageInfo(page, count), nil
}

// UserDetail возвращает пользователя с историей подписок.
func (s *DashboardService) UserDetail(ctx context.Context, id int64) (*models.UserWithSubscriptions, error) {
	const op = "dashboard.UserDetail"
	u, err := s.repo.GetUserWithSubscriptions(ctx, id)
	if errors.Is(err, storage.ErrNotFound) {
		return nil, apperr.New(apperr.KindNotFound, "User not found.")
	}
	if err != nil {
		return nil, fmt.Errorf("%s: %w", op, err)
	}
	return u, nil
}
