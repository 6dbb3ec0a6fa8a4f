package oauth_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/google/uuid"
	"golang.org/x/oauth2"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/http_client"
	"yadisk_bot/internal/pkg/user/domain"
)

// Токены обновляются за 10 минут до истечения
const refreshMargin = 10 * time.Minute

// ErrSuperseded - пока шло обновление, пользователь сбросил или сменил токены.
// Новые токены в этом случае не сохраняются.
var ErrSuperseded = errors.New("tokens changed during refresh")

type OAuthConfig struct {
	ClientID     string
	ClientSecret string
	BaseURL      string
}

// TokenManager ведет пользователя от первой ссылки авторизации до подключенного аккаунта
// и обновляет его токены.
type TokenManager struct {
	users       UserStore
	oauth       *oauth2.Config
	client      *http_client.LoggedClient
	now         func() time.Time
	newDeviceID func() string
}

type Option func(*TokenManager)

// WithClock подменяет источник текущего времени.
func WithClock(now func() time.Time) Option {
	return func(m *TokenManager) { m.now = now }
}

func WithDeviceIDGenerator(gen func() string) Option {
	return func(m *TokenManager) { m.newDeviceID = gen }
}

func NewTokenManager(cfg OAuthConfig, users UserStore, client *http_client.LoggedClient, opts ...Option) *TokenManager {
	baseURL := strings.TrimRight(cfg.BaseURL, "/")
	m := &TokenManager{
		users: users,
		oauth: &oauth2.Config{
			ClientID:     cfg.ClientID,
			ClientSecret: cfg.ClientSecret,
			Endpoint: oauth2.Endpoint{
				AuthURL:   baseURL + "/authorize",
				TokenURL:  baseURL + "/token",
				AuthStyle: oauth2.AuthStyleInHeader,
			},
		},
		client:      client,
		now:         time.Now,
		newDeviceID: uuid.NewString,
	}
	for _, opt := range opts {
		opt(m)
	}
	return m
}

func (m *TokenManager) IsLinked(u *domain.User) bool {
	return u.IsLinked()
}

// AuthLink сбрасывает токены пользователя и возвращает ссылку на страницу подтверждения.
// Идентификатор устройства создается один раз и переиспользуется.
func (m *TokenManager) AuthLink(ctx context.Context, u *domain.User) (string, error) {
	deviceID := u.DeviceID()
	if deviceID == "" {
		deviceID = m.newDeviceID()
	}

	patch, err := domain.NewAttributes(map[string]any{
		domain.AttrDeviceID:  deviceID,
		domain.AttrTokens:    nil,
		domain.AttrRefreshAt: nil,
	})
	if err != nil {
		return "", fmt.Errorf("%w: %v", apperr.ErrStore, err)
	}
	if err := m.users.Add(ctx, u, patch); err != nil {
		return "", err
	}

	return m.oauth.AuthCodeURL("",
		oauth2.SetAuthURLParam("device_id", deviceID),
		oauth2.SetAuthURLParam("force_confirm", "yes"),
	), nil
}

// Approve обменивает код подтверждения на токены. При отказе сервера возвращает apperr.ErrAuth,
// пользователь остается неподключенным.
func (m *TokenManager) Approve(ctx context.Context, u *domain.User, code string) error {
	tok, err := m.oauth.Exchange(m.httpContext(ctx), strings.TrimSpace(code),
		oauth2.SetAuthURLParam("device_id", u.DeviceID()),
	)
	if err != nil {
		return tokenError("exchange code", err)
	}
	return m.save(ctx, u, tok)
}

func (m *TokenManager) Refresh(ctx context.Context, u *domain.User, refreshToken string) error {
	source := m.oauth.TokenSource(m.httpContext(ctx), &oauth2.Token{RefreshToken: refreshToken})
	tok, err := source.Token()
	if err != nil {
		return tokenError("refresh token", err)
	}

	patch, err := m.tokensPatch(tok)
	if err != nil {
		return err
	}
	applied, err := m.users.AddIf(ctx, u, patch, func(current *domain.User) bool {
		tokens := current.Tokens()
		return tokens != nil && tokens.RefreshToken == refreshToken
	})
	if err != nil {
		return err
	}
	if !applied {
		return fmt.Errorf("user %d: %w", u.ID, ErrSuperseded)
	}
	return nil
}

func (m *TokenManager) httpContext(ctx context.Context) context.Context {
	if m.client == nil {
		return ctx
	}
	return context.WithValue(ctx, oauth2.HTTPClient, m.client.Client)
}

func (m *TokenManager) save(ctx context.Context, u *domain.User, tok *oauth2.Token) error {
	patch, err := m.tokensPatch(tok)
	if err != nil {
		return err
	}
	return m.users.Add(ctx, u, patch)
}

// tokensPatch - атрибуты tokens и refreshAt для ответа сервера
func (m *TokenManager) tokensPatch(tok *oauth2.Token) (domain.Attributes, error) {
	now := m.now()
	tokens := domain.Tokens{
		AccessToken:  tok.AccessToken,
		RefreshToken: tok.RefreshToken,
		ExpiresIn:    expiresIn(tok, now),
		TokenType:    tok.TokenType,
	}
	if scope, ok := tok.Extra("scope").(string); ok {
		tokens.Scope = scope
	}

	refreshAt := now.UnixMilli() + tokens.ExpiresIn*1000 - refreshMargin.Milliseconds()

	patch, err := domain.NewAttributes(map[string]any{
		domain.AttrTokens:    tokens,
		domain.AttrRefreshAt: refreshAt,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", apperr.ErrStore, err)
	}
	return patch, nil
}

// expiresIn достает срок жизни токена в секундах из ответа сервера.
func expiresIn(tok *oauth2.Token, now time.Time) int64 {
	if tok.ExpiresIn > 0 {
		return tok.ExpiresIn
	}

	switch v := tok.Extra("expires_in").(type) {
	case float64:
		return int64(v)
	case int64:
		return v
	case json.Number:
		if n, err := v.Int64(); err == nil {
			return n
		}
	case string:
		if n, err := strconv.ParseInt(v, 10, 64); err == nil {
			return n
		}
	}

	if !tok.Expiry.IsZero() {
		return int64(tok.Expiry.Sub(now).Seconds())
	}
	return 0
}

func tokenError(op string, err error) error {
	var retrieveErr *oauth2.RetrieveError
	if errors.As(err, &retrieveErr) {
		detail := retrieveErr.ErrorCode
		if retrieveErr.ErrorDescription != "" {
			detail += ": " + retrieveErr.ErrorDescription
		}
		if detail == "" && retrieveErr.Response != nil {
			detail = retrieveErr.Response.Status
		}
		return fmt.Errorf("%w: %s: %s", apperr.ErrAuth, op, detail)
	}
	return fmt.Errorf("%s: %w", op, err)
}
