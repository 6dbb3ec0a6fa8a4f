package main

import (
	"net/http"

	"github.com/caarlos0/env/v11"
	"github.com/joho/godotenv"
	"github.com/rs/zerolog/log"

	"yadisk_bot/internal/pkg/logger"
	"yadisk_bot/internal/pkg/mock-api/handlers"
)

type mockConfig struct {
	Port             string `env:"MOCK_PORT" envDefault:"8082"`
	ClientID         string `env:"YD_CLIENT_ID" envDefault:"mock-client"`
	ClientSecret     string `env:"YD_CLIENT_SECRET" envDefault:"mock-secret"`
	ExpiresIn        int64  `env:"MOCK_EXPIRES_IN" envDefault:"3600"`
	PollsUntilDone   int    `env:"MOCK_POLLS_UNTIL_DONE" envDefault:"2"`
	FailURLSubstring string `env:"MOCK_FAIL_URL_SUBSTRING"`
}

func main() {
	_ = godotenv.Load()
	logger.Init("dev", "debug")

	cfg, err := env.ParseAs[mockConfig]()
	if err != nil {
		log.Fatal().Err(err).Msg("Ошибка чтения конфигурации")
	}

	server := handlers.NewServer(handlers.Options{
		ClientID:         cfg.ClientID,
		ClientSecret:     cfg.ClientSecret,
		ExpiresIn:        cfg.ExpiresIn,
		PollsUntilDone:   cfg.PollsUntilDone,
		FailURLSubstring: cfg.FailURLSubstring,
	})

	log.Info().
		Str("port", cfg.Port).
		Strs("endpoints", []string{
			"GET  /authorize",
			"POST /token",
			"GET  /v1/disk/resources",
			"PUT  /v1/disk/resources",
			"POST /v1/disk/resources/upload",
			"GET  /v1/disk/operations/{id}",
			"GET  /health",
		}).
		Msg("Mock API Server запущен")

	if err := http.ListenAndServe(":"+cfg.Port, corsMiddleware(server.Handler())); err != nil {
		log.Fatal().Err(err).Msg("Mock API Server остановлен")
	}
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "POST, GET, OPTIONS, PUT")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}

		next.ServeHTTP(w, r)
	})
}
