package oauth_service

import (
	"context"
	"errors"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/http_client"
	"yadisk_bot/internal/pkg/mock-api/handlers"
	"yadisk_bot/internal/pkg/user/domain"
	"yadisk_bot/internal/pkg/user/repository"
	"yadisk_bot/internal/pkg/user/usecase"
)

var testNow = time.Date(2024, 5, 1, 12, 0, 0, 0, time.UTC)

type fixture struct {
	mock    *handlers.Server
	users   *usecase.UserService
	manager *TokenManager
}

func newFixture(t *testing.T) *fixture {
	t.Helper()
	return newFixtureWith(t, nil)
}

// newFixtureWith позволяет обернуть обработчик мок-сервера
func newFixtureWith(t *testing.T, wrap func(http.Handler) http.Handler) *fixture {
	t.Helper()
	mock := handlers.NewServer(handlers.Options{ClientID: "cid", ClientSecret: "secret", ExpiresIn: 3600})
	handler := mock.Handler()
	if wrap != nil {
		handler = wrap(handler)
	}
	srv := httptest.NewServer(handler)
	t.Cleanup(srv.Close)

	users := usecase.NewUserService(repository.NewMemoryStorage())
	manager := NewTokenManager(
		OAuthConfig{ClientID: "cid", ClientSecret: "secret", BaseURL: srv.URL},
		users,
		http_client.NewLoggedClient(5*time.Second),
		WithClock(func() time.Time { return testNow }),
	)
	return &fixture{mock: mock, users: users, manager: manager}
}

func (f *fixture) load(t *testing.T, id int64) *domain.User {
	t.Helper()
	u, err := f.users.Load(context.Background(), id)
	require.NoError(t, err)
	return u
}

// seedLinked записывает пользователю действующие токены в обход OAuth-флоу
func (f *fixture) seedLinked(t *testing.T, id int64, refreshAt time.Time) domain.Tokens {
	t.Helper()
	issued := f.mock.IssueTokens()
	tokens := domain.Tokens{
		AccessToken:  issued.AccessToken,
		RefreshToken: issued.RefreshToken,
		ExpiresIn:    issued.ExpiresIn,
		TokenType:    issued.TokenType,
	}
	patch, err := domain.NewAttributes(map[string]any{
		domain.AttrDeviceID:  "device",
		domain.AttrTokens:    tokens,
		domain.AttrRefreshAt: refreshAt.UnixMilli(),
	})
	require.NoError(t, err)
	require.NoError(t, f.users.Add(context.Background(), f.load(t, id), patch))
	return tokens
}

func TestAuthLink_BuildsDeviceFlowURL(t *testing.T) {
	f := newFixture(t)
	u := f.load(t, 1)

	link, err := f.manager.AuthLink(context.Background(), u)
	require.NoError(t, err)

	parsed, err := url.Parse(link)
	require.NoError(t, err)
	assert.Equal(t, "/authorize", parsed.Path)

	query := parsed.Query()
	assert.Equal(t, "code", query.Get("response_type"))
	assert.Equal(t, "cid", query.Get("client_id"))
	assert.Equal(t, "yes", query.Get("force_confirm"))
	assert.Equal(t, u.DeviceID(), query.Get("device_id"))
	assert.NotEmpty(t, u.DeviceID())
	assert.False(t, f.manager.IsLinked(u))
}

func TestAuthLink_ReusesDeviceID(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()

	_, err := f.manager.AuthLink(ctx, f.load(t, 1))
	require.NoError(t, err)
	first := f.load(t, 1).DeviceID()

	_, err = f.manager.AuthLink(ctx, f.load(t, 1))
	require.NoError(t, err)

	assert.Equal(t, first, f.load(t, 1).DeviceID())
}

func TestAuthLink_ResetsTokens(t *testing.T) {
	f := newFixture(t)
	f.seedLinked(t, 1, testNow.Add(time.Hour))

	_, err := f.manager.AuthLink(context.Background(), f.load(t, 1))
	require.NoError(t, err)

	u := f.load(t, 1)
	assert.False(t, u.IsLinked())
	assert.Nil(t, u.RefreshAt())
	assert.Equal(t, "device", u.DeviceID())
}

func TestApprove_LinksAccount(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.load(t, 1)

	_, err := f.manager.AuthLink(ctx, u)
	require.NoError(t, err)
	assert.False(t, f.manager.IsLinked(u))

	code := f.mock.IssueCode(u.DeviceID())
	require.NoError(t, f.manager.Approve(ctx, u, code))
	assert.True(t, f.manager.IsLinked(u))

	stored := f.load(t, 1)
	require.True(t, stored.IsLinked())
	assert.NotEmpty(t, stored.Tokens().AccessToken)
	assert.Equal(t, int64(3600), stored.Tokens().ExpiresIn)

	require.NotNil(t, stored.RefreshAt())
	assert.Equal(t, testNow.UnixMilli()+3600*1000-600000, stored.RefreshAt().UnixMilli())
}

func TestApprove_WrongCodeKeepsUserPending(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.load(t, 1)

	_, err := f.manager.AuthLink(ctx, u)
	require.NoError(t, err)

	err = f.manager.Approve(ctx, u, "000000")
	require.Error(t, err)
	assert.True(t, errors.Is(err, apperr.ErrAuth))

	stored := f.load(t, 1)
	assert.False(t, stored.IsLinked())
	assert.Equal(t, u.DeviceID(), stored.DeviceID())
}

func TestApprove_CodeForAnotherDevice(t *testing.T) {
	f := newFixture(t)
	ctx := context.Background()
	u := f.load(t, 1)

	_, err := f.manager.AuthLink(ctx, u)
	require.NoError(t, err)

	code := f.mock.IssueCode("someone-else")
	err = f.manager.Approve(ctx, u, code)
	assert.ErrorIs(t, err, apperr.ErrAuth)
}

func TestRefresh_ReplacesTokens(t *testing.T) {
	f := newFixture(t)
	old := f.seedLinked(t, 1, testNow.Add(-time.Minute))
	u := f.load(t, 1)

	require.NoError(t, f.manager.Refresh(context.Background(), u, old.RefreshToken))

	stored := f.load(t, 1)
	require.True(t, stored.IsLinked())
	assert.NotEqual(t, old.AccessToken, stored.Tokens().AccessToken)
	assert.Equal(t, old.RefreshToken, stored.Tokens().RefreshToken)
	assert.Equal(t, testNow.UnixMilli()+3600*1000-600000, stored.RefreshAt().UnixMilli())
	assert.Equal(t, 1, f.mock.TokenRequests("refresh_token"))
}

func TestRefresh_RevokedToken(t *testing.T) {
	f := newFixture(t)
	old := f.seedLinked(t, 1, testNow.Add(-time.Minute))
	f.mock.RevokeRefreshToken(old.RefreshToken)

	err := f.manager.Refresh(context.Background(), f.load(t, 1), old.RefreshToken)
	assert.ErrorIs(t, err, apperr.ErrAuth)

	assert.Equal(t, old.AccessToken, f.load(t, 1).Tokens().AccessToken)
}

func TestRefresh_DiscardedAfterAuthReset(t *testing.T) {
	f := newFixture(t)
	old := f.seedLinked(t, 1, testNow.Add(-time.Minute))
	stale := f.load(t, 1)

	// /auth сбрасывает токены уже после того, как их прочитали для обновления
	_, err := f.manager.AuthLink(context.Background(), f.load(t, 1))
	require.NoError(t, err)

	err = f.manager.Refresh(context.Background(), stale, old.RefreshToken)
	require.ErrorIs(t, err, ErrSuperseded)

	assert.False(t, f.load(t, 1).IsLinked())
	assert.False(t, stale.IsLinked())
	assert.Equal(t, 1, f.mock.TokenRequests("refresh_token"))
}

func TestTokenManager_UnreachableServer(t *testing.T) {
	users := usecase.NewUserService(repository.NewMemoryStorage())
	manager := NewTokenManager(
		OAuthConfig{ClientID: "cid", ClientSecret: "secret", BaseURL: "http://127.0.0.1:1"},
		users,
		http_client.NewLoggedClient(time.Second),
	)

	u, err := users.Load(context.Background(), 1)
	require.NoError(t, err)

	err = manager.Refresh(context.Background(), u, "rt")
	require.Error(t, err)
	assert.False(t, errors.Is(err, apperr.ErrAuth))
}
