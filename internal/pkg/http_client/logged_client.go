package http_client

import (
	"net/http"
	"net/url"
	"time"

	"github.com/rs/zerolog/log"
)

// Параметры запроса, значения которых не попадают в лог
var secretParams = []string{"access_token", "refresh_token", "code", "client_secret"}

// LoggedClient - http.Client, который пишет каждый исходящий запрос в лог.
type LoggedClient struct {
	*http.Client
}

func NewLoggedClient(timeout time.Duration) *LoggedClient {
	return &LoggedClient{
		Client: &http.Client{
			Timeout:   timeout,
			Transport: &loggingTransport{next: http.DefaultTransport},
		},
	}
}

type loggingTransport struct {
	next http.RoundTripper
}

func (t *loggingTransport) RoundTrip(req *http.Request) (*http.Response, error) {
	startTime := time.Now()

	resp, err := t.next.RoundTrip(req)

	// Заголовок Authorization и тела не логируем: там токены
	event := log.Debug()
	if err != nil {
		event = log.Warn().Err(err)
	} else if resp.StatusCode >= http.StatusBadRequest {
		event = log.Warn()
	}
	if err == nil {
		event = event.Int("status", resp.StatusCode)
	}

	event.
		Str("method", req.Method).
		Str("url", RedactURL(req.URL)).
		Dur("duration", time.Since(startTime)).
		Msg("http request")

	return resp, err
}

// RedactURL возвращает URL, в котором значения секретных параметров заменены.
func RedactURL(u *url.URL) string {
	if u == nil {
		return ""
	}
	redacted := *u
	query := redacted.Query()
	changed := false
	for _, name := range secretParams {
		if query.Has(name) {
			query.Set(name, "REDACTED")
			changed = true
		}
	}
	if changed {
		redacted.RawQuery = query.Encode()
	}
	return redacted.String()
}
