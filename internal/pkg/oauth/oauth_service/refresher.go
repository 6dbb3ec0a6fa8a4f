package oauth_service

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"golang.org/x/sync/errgroup"

	"yadisk_bot/internal/pkg/metrics"
)

type RefresherConfig struct {
	Interval    time.Duration
	Timeout     time.Duration
	Concurrency int
}

// Refresher периодически обновляет токены пользователей, у которых наступил refreshAt.
type Refresher struct {
	tokens *TokenManager
	users  UserStore
	cfg    RefresherConfig
}

func NewRefresher(tokens *TokenManager, users UserStore, cfg RefresherConfig) *Refresher {
	if cfg.Interval <= 0 {
		cfg.Interval = 5 * time.Second
	}
	if cfg.Timeout <= 0 {
		cfg.Timeout = 30 * time.Second
	}
	if cfg.Concurrency <= 0 {
		cfg.Concurrency = 1
	}
	return &Refresher{tokens: tokens, users: users, cfg: cfg}
}

// Run выполняет Tick каждые Interval до отмены ctx. Следующий проход планируется
// только после завершения предыдущего. Ошибка чтения списка пользователей останавливает Run.
func (r *Refresher) Run(ctx context.Context) error {
	log.Info().Dur("interval", r.cfg.Interval).Msg("token refresher started")

	timer := time.NewTimer(r.cfg.Interval)
	defer timer.Stop()

	for {
		select {
		case <-ctx.Done():
			log.Info().Msg("token refresher stopped")
			return nil
		case <-timer.C:
		}

		if err := r.Tick(ctx); err != nil {
			if ctx.Err() != nil {
				return nil
			}
			return err
		}
		timer.Reset(r.cfg.Interval)
	}
}

// Tick - один синхронный проход по всем известным пользователям.
func (r *Refresher) Tick(ctx context.Context) error {
	ids, err := r.users.All(ctx)
	if err != nil {
		return fmt.Errorf("token refresher: %w", err)
	}

	now := r.tokens.now()

	var g errgroup.Group
	g.SetLimit(r.cfg.Concurrency)
	for _, id := range ids {
		g.Go(func() error {
			r.refreshUser(ctx, id, now)
			return nil
		})
	}
	return g.Wait()
}

func (r *Refresher) refreshUser(ctx context.Context, userID int64, now time.Time) {
	ctx, cancel := context.WithTimeout(ctx, r.cfg.Timeout)
	defer cancel()

	user, err := r.users.Load(ctx, userID)
	if err != nil {
		log.Error().Err(err).Int64("chat_id", userID).Msg("failed to load user for refresh")
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}

	tokens, refreshAt := user.Tokens(), user.RefreshAt()
	if tokens == nil || refreshAt == nil || refreshAt.After(now) {
		return
	}

	err = r.tokens.Refresh(ctx, user, tokens.RefreshToken)
	if errors.Is(err, ErrSuperseded) {
		log.Info().Int64("chat_id", userID).Msg("tokens were reset during refresh, result discarded")
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultSkipped).Inc()
		return
	}
	if err != nil {
		log.Error().Err(err).Int64("chat_id", userID).Msg("failed to refresh token")
		metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultFailed).Inc()
		return
	}

	metrics.TokenRefreshesTotal.WithLabelValues(metrics.ResultSuccess).Inc()
	log.Info().Int64("chat_id", userID).Msg("token refreshed")
}
