package main

import (
	"context"
	"os"
	"os/signal"
	"path/filepath"
	"strings"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"

	"yadisk_bot/internal/bot"
	"yadisk_bot/internal/config"
	"yadisk_bot/internal/pkg/cloud/cloud_service"
	"yadisk_bot/internal/pkg/http_client"
	"yadisk_bot/internal/pkg/logger"
	"yadisk_bot/internal/pkg/media"
	"yadisk_bot/internal/pkg/oauth/oauth_service"
	"yadisk_bot/internal/pkg/user/repository"
	"yadisk_bot/internal/pkg/user/usecase"
	"yadisk_bot/internal/pkg/web_server/web_server_service"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		logger.Init("prod", "info")
		log.Fatal().Err(err).Msg("failed to load config")
	}
	logger.Init(cfg.Env, cfg.LogLevel)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	store, health, closeStore, err := openStore(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Str("driver", cfg.DBDriver).Msg("failed to open store")
	}

	users := usecase.NewUserService(store)
	client := http_client.NewLoggedClient(30 * time.Second)

	tokens := oauth_service.NewTokenManager(oauth_service.OAuthConfig{
		ClientID:     cfg.ClientID,
		ClientSecret: cfg.ClientSecret,
		BaseURL:      cfg.OAuthBaseURL,
	}, users, client)

	refresher := oauth_service.NewRefresher(tokens, users, oauth_service.RefresherConfig{
		Interval:    cfg.RefreshInterval,
		Timeout:     cfg.RefreshTimeout,
		Concurrency: cfg.RefreshConcurrency,
	})

	cloud := cloud_service.NewCloudService(cloud_service.Config{
		BaseURL:      cfg.DiskAPIURL,
		PollInterval: cfg.PollInterval,
		PollTimeout:  cfg.PollTimeout,
	}, client)

	api, err := bot.NewBotAPI(cfg.TelegramToken)
	if err != nil {
		log.Fatal().Err(err).Msg("failed to connect to Telegram")
	}

	b := bot.New(api, cfg, users, tokens, media.NewMediaProcessor(api, cloud, cfg.TelegramToken, cfg.MaxFileSize))

	webServer := web_server_service.NewWebServer(cfg.WebPort, health)
	go func() {
		if err := webServer.Start(); err != nil {
			log.Fatal().Err(err).Msg("failed to start web server")
		}
	}()

	refresherErr := make(chan error, 1)
	go func() {
		refresherErr <- refresher.Run(ctx)
	}()

	botDone := make(chan struct{})
	go func() {
		b.Start(ctx)
		close(botDone)
	}()

	log.Info().Msg("started")

	var fatalErr error
	select {
	case <-ctx.Done():
	case fatalErr = <-refresherErr:
	}
	stop()
	<-botDone

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := webServer.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("failed to stop web server")
	}
	closeStore()

	if fatalErr != nil {
		log.Fatal().Err(fatalErr).Msg("token refresher stopped")
	}
	log.Info().Msg("stopped")
}

func openStore(ctx context.Context, cfg config.Config) (repository.Store, web_server_service.HealthFunc, func(), error) {
	if cfg.DBDriver == "memory" {
		log.Warn().Msg("using in-memory store, data will be lost on restart")
		return repository.NewMemoryStorage(), nil, func() {}, nil
	}

	dialect, err := repository.DialectByName(cfg.DBDriver)
	if err != nil {
		return nil, nil, nil, err
	}

	if dialect == repository.SQLite {
		if err := ensureSQLiteDir(cfg.DBDSN); err != nil {
			return nil, nil, nil, err
		}
	}

	db, err := repository.Open(ctx, dialect, cfg.DBDSN)
	if err != nil {
		return nil, nil, nil, err
	}

	closeDB := func() {
		if err := db.Close(); err != nil {
			log.Error().Err(err).Msg("failed to close db")
		}
	}
	return repository.NewSQLStorage(db, dialect), db.PingContext, closeDB, nil
}

// ensureSQLiteDir создает каталог для файла базы из DSN вида file:path?params
func ensureSQLiteDir(dsn string) error {
	path, _, _ := strings.Cut(strings.TrimPrefix(dsn, "file:"), "?")
	if path == "" || strings.HasPrefix(path, ":memory:") {
		return nil
	}
	return os.MkdirAll(filepath.Dir(path), 0o755)
}
