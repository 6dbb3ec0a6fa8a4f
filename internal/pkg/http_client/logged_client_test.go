package http_client

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"net/url"
	"testing"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestRedactURL(t *testing.T) {
	u, err := url.Parse("https://example.com/token?code=123456&path=app%3A%2Fx&refresh_token=r")
	require.NoError(t, err)

	got := RedactURL(u)

	assert.NotContains(t, got, "123456")
	assert.NotContains(t, got, "refresh_token=r&")
	assert.Contains(t, got, "code=REDACTED")
	assert.Contains(t, got, "path=app%3A%2Fx")
	assert.Equal(t, "", RedactURL(nil))
}

func TestLoggedClient_LogsWithoutSecrets(t *testing.T) {
	var buf bytes.Buffer
	prev := log.Logger
	log.Logger = zerolog.New(&buf).Level(zerolog.DebugLevel)
	t.Cleanup(func() { log.Logger = prev })

	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusTeapot)
	}))
	defer srv.Close()

	client := NewLoggedClient(5 * time.Second)
	req, err := http.NewRequest(http.MethodGet, srv.URL+"/x?access_token=secret", nil)
	require.NoError(t, err)
	req.Header.Set("Authorization", "OAuth secret")

	resp, err := client.Do(req)
	require.NoError(t, err)
	resp.Body.Close()

	out := buf.String()
	assert.Contains(t, out, `"status":418`)
	assert.Contains(t, out, `"level":"warn"`)
	assert.NotContains(t, out, "secret")
}
