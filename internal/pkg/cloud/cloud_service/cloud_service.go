package cloud_service

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/cenkalti/backoff/v5"
	"github.com/rs/zerolog/log"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/http_client"
)

// Статусы асинхронной операции
const (
	StatusInProgress = "in-progress"
	StatusSuccess    = "success"
)

var errInProgress = errors.New("operation in progress")

type Config struct {
	BaseURL      string
	PollInterval time.Duration
	PollTimeout  time.Duration
}

type CloudService struct {
	baseURL      string
	client       *http_client.LoggedClient
	now          func() time.Time
	pollInterval time.Duration
	pollTimeout  time.Duration
}

// Resource - метаинформация о файле или папке на Диске
type Resource struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Type      string `json:"type,omitempty"`
	PublicURL string `json:"public_url,omitempty"`
}

// Link - ссылка на асинхронную операцию или созданный ресурс
type Link struct {
	Href   string `json:"href"`
	Method string `json:"method"`
}

type Operation struct {
	Href   string `json:"-"`
	Status string `json:"status"`
}

// APIError - ответ Диска с кодом >= 300
type APIError struct {
	StatusCode int
	Code       string `json:"error"`
	Message    string `json:"message"`
}

func (e *APIError) Error() string {
	if e.Code == "" {
		return fmt.Sprintf("status=%d", e.StatusCode)
	}
	return fmt.Sprintf("status=%d, error=%s, message=%s", e.StatusCode, e.Code, e.Message)
}

type Option func(*CloudService)

func WithClock(now func() time.Time) Option {
	return func(cs *CloudService) { cs.now = now }
}

func NewCloudService(cfg Config, client *http_client.LoggedClient, opts ...Option) *CloudService {
	cs := &CloudService{
		baseURL:      strings.TrimRight(cfg.BaseURL, "/"),
		client:       client,
		now:          time.Now,
		pollInterval: cfg.PollInterval,
		pollTimeout:  cfg.PollTimeout,
	}
	if cs.pollInterval <= 0 {
		cs.pollInterval = 2 * time.Second
	}
	if cs.pollTimeout <= 0 {
		cs.pollTimeout = 30 * time.Minute
	}
	for _, opt := range opts {
		opt(cs)
	}
	return cs
}

// FolderName - имя папки дня в формате YYYY-MM-DD
func FolderName(t time.Time) string {
	return t.Format(time.DateOnly)
}

// EnsureTodayFolder создает папку текущего дня, если ее еще нет, и возвращает ее путь.
// Папка, созданная параллельным запросом, считается успехом.
func (cs *CloudService) EnsureTodayFolder(ctx context.Context, accessToken string) (string, error) {
	dir := "app:/" + FolderName(cs.now())
	query := url.Values{"path": {dir}}

	err := cs.call(ctx, http.MethodGet, cs.baseURL+"/resources", query, accessToken, nil)
	if err == nil {
		return dir, nil
	}
	if !isStatus(err, http.StatusNotFound) {
		return "", fmt.Errorf("%w: check folder %s: %v", apperr.ErrTransfer, dir, err)
	}

	err = cs.call(ctx, http.MethodPut, cs.baseURL+"/resources", query, accessToken, nil)
	if err != nil && !isAPIError(err, http.StatusConflict, codeDirExists) {
		return "", fmt.Errorf("%w: create folder %s: %v", apperr.ErrTransfer, dir, err)
	}

	log.Debug().Str("folder", dir).Msg("folder ready")
	return dir, nil
}

// TransferFile просит Диск скачать sourceURL в папку дня под именем targetName
// и ждет завершения операции.
func (cs *CloudService) TransferFile(ctx context.Context, accessToken, sourceURL, targetName string) (*Resource, error) {
	dir, err := cs.EnsureTodayFolder(ctx, accessToken)
	if err != nil {
		return nil, err
	}
	target := dir + "/" + targetName

	var link Link
	err = cs.call(ctx, http.MethodPost, cs.baseURL+"/resources/upload",
		url.Values{"url": {sourceURL}, "path": {target}}, accessToken, &link)
	if err != nil {
		return nil, fmt.Errorf("%w: upload request: %v", apperr.ErrTransfer, err)
	}
	if link.Href == "" {
		return nil, fmt.Errorf("%w: upload request: empty operation link", apperr.ErrTransfer)
	}

	op, err := cs.WaitOperation(ctx, accessToken, link.Href)
	if err != nil {
		return nil, err
	}
	log.Debug().Str("href", op.Href).Str("status", op.Status).Str("file", target).Msg("operation finished")

	var resource Resource
	err = cs.call(ctx, http.MethodGet, cs.baseURL+"/resources",
		url.Values{"path": {target}, "fields": {"path,name,public_url"}}, accessToken, &resource)
	if err != nil {
		// файл уже загружен, метаданные не обязательны
		log.Warn().Err(err).Str("file", target).Msg("failed to fetch resource metadata")
		return &Resource{Path: target, Name: targetName}, nil
	}
	return &resource, nil
}

// WaitOperation опрашивает операцию каждые pollInterval, пока она не завершится.
// Через pollTimeout возвращает apperr.ErrTimeout.
func (cs *CloudService) WaitOperation(ctx context.Context, accessToken, href string) (*Operation, error) {
	poll := func() (*Operation, error) {
		op := &Operation{Href: href}
		if err := cs.call(ctx, http.MethodGet, href, nil, accessToken, op); err != nil {
			if ctx.Err() != nil {
				return nil, backoff.Permanent(ctx.Err())
			}
			return nil, backoff.Permanent(fmt.Errorf("%w: poll operation: %v", apperr.ErrTransfer, err))
		}

		switch op.Status {
		case StatusSuccess:
			return op, nil
		case StatusInProgress:
			return nil, errInProgress
		default:
			return nil, backoff.Permanent(fmt.Errorf("%w: operation status %q", apperr.ErrTransfer, op.Status))
		}
	}

	op, err := backoff.Retry(ctx, poll,
		backoff.WithBackOff(backoff.NewConstantBackOff(cs.pollInterval)),
		backoff.WithMaxElapsedTime(cs.pollTimeout),
	)
	if errors.Is(err, errInProgress) {
		return nil, fmt.Errorf("%w: operation %s still in progress after %s", apperr.ErrTimeout, href, cs.pollTimeout)
	}
	if err != nil {
		return nil, err
	}
	return op, nil
}

func (cs *CloudService) call(ctx context.Context, method, endpoint string, query url.Values, accessToken string, out any) error {
	if len(query) > 0 {
		endpoint += "?" + query.Encode()
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, nil)
	if err != nil {
		return fmt.Errorf("failed to create request: %w", err)
	}
	req.Header.Set("Authorization", "OAuth "+accessToken)
	req.Header.Set("Accept", "application/json")

	resp, err := cs.client.Do(req)
	if err != nil {
		return fmt.Errorf("failed to make request: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return fmt.Errorf("failed to read response: %w", err)
	}

	if resp.StatusCode >= http.StatusMultipleChoices {
		apiErr := &APIError{StatusCode: resp.StatusCode}
		_ = json.Unmarshal(body, apiErr)
		return apiErr
	}

	if out != nil && len(body) > 0 {
		if err := json.Unmarshal(body, out); err != nil {
			return fmt.Errorf("failed to decode response: %w", err)
		}
	}
	return nil
}

func isStatus(err error, status int) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status
}

// codeDirExists - ответ Диска на создание уже существующей папки
const codeDirExists = "DiskPathPointsToExistentDirectoryError"

func isAPIError(err error, status int, code string) bool {
	var apiErr *APIError
	return errors.As(err, &apiErr) && apiErr.StatusCode == status && apiErr.Code == code
}
