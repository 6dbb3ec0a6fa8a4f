package web_server_service

import (
	"context"
	"errors"
	"net/http"
	"strconv"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"github.com/rs/zerolog/log"
)

// HealthFunc сообщает, готов ли процесс обслуживать пользователей.
type HealthFunc func(ctx context.Context) error

type WebServer struct {
	srv    *http.Server
	health HealthFunc
}

func NewWebServer(port string, health HealthFunc) *WebServer {
	gin.SetMode(gin.ReleaseMode)

	ws := &WebServer{health: health}

	r := gin.New()
	r.Use(gin.Recovery())
	r.Use(requestLogger())
	r.GET("/health", ws.handleHealthCheck)
	r.GET("/metrics", gin.WrapH(promhttp.Handler()))

	ws.srv = &http.Server{
		Addr:              ":" + port,
		Handler:           r,
		ReadHeaderTimeout: 5 * time.Second,
	}
	return ws
}

func (ws *WebServer) Handler() http.Handler {
	return ws.srv.Handler
}

// Start блокируется до остановки сервера. Штатная остановка не считается ошибкой.
func (ws *WebServer) Start() error {
	log.Info().Str("addr", ws.srv.Addr).Msg("starting web server")
	if err := ws.srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return err
	}
	return nil
}

func (ws *WebServer) Shutdown(ctx context.Context) error {
	return ws.srv.Shutdown(ctx)
}

func (ws *WebServer) handleHealthCheck(c *gin.Context) {
	if ws.health != nil {
		if err := ws.health(c.Request.Context()); err != nil {
			log.Warn().Err(err).Msg("health check failed")
			c.JSON(http.StatusServiceUnavailable, gin.H{"status": "unavailable"})
			return
		}
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func requestLogger() gin.HandlerFunc {
	return func(c *gin.Context) {
		start := time.Now()
		c.Next()
		log.Debug().
			Str("method", c.Request.Method).
			Str("path", c.Request.URL.Path).
			Str("status", strconv.Itoa(c.Writer.Status())).
			Dur("duration", time.Since(start)).
			Msg("http request served")
	}
}
