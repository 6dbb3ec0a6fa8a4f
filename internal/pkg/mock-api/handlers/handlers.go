package handlers

import (
	"crypto/subtle"
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"path"
	"strings"
	"sync"

	"yadisk_bot/internal/pkg/mock-api/models"
)

// Options настраивает поведение мок-сервера.
type Options struct {
	ClientID     string
	ClientSecret string
	// ExpiresIn - срок жизни выдаваемых access-токенов, секунды
	ExpiresIn int64
	// PollsUntilDone - сколько опросов операция остается in-progress
	PollsUntilDone int
	// FailURLSubstring - загрузки, чей url содержит эту подстроку, завершаются ошибкой
	FailURLSubstring string
}

type operation struct {
	target    string
	sourceURL string
	polls     int
	status    string
}

// Server - мок OAuth-сервера и REST API Диска. Состояние хранится в памяти.
type Server struct {
	opts Options

	mu            sync.Mutex
	seq           int
	codes         map[string]string
	accessTokens  map[string]bool
	refreshTokens map[string]bool
	resources     map[string]models.Resource
	operations    map[string]*operation
	folderCreates int
	tokenRequests map[string]int
}

func NewServer(opts Options) *Server {
	if opts.ExpiresIn == 0 {
		opts.ExpiresIn = 3600
	}
	if opts.PollsUntilDone == 0 {
		opts.PollsUntilDone = 1
	}
	return &Server{
		opts:          opts,
		codes:         make(map[string]string),
		accessTokens:  make(map[string]bool),
		refreshTokens: make(map[string]bool),
		resources: map[string]models.Resource{
			"app:/": {Path: "app:/", Name: "", Type: "dir"},
		},
		operations:    make(map[string]*operation),
		tokenRequests: make(map[string]int),
	}
}

func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /authorize", s.AuthorizeHandler)
	mux.HandleFunc("POST /token", s.TokenHandler)
	mux.HandleFunc("GET /v1/disk/resources", s.withAuth(s.GetResourceHandler))
	mux.HandleFunc("PUT /v1/disk/resources", s.withAuth(s.CreateFolderHandler))
	mux.HandleFunc("POST /v1/disk/resources/upload", s.withAuth(s.UploadHandler))
	mux.HandleFunc("GET /v1/disk/operations/{id}", s.withAuth(s.OperationHandler))
	mux.HandleFunc("GET /health", func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("OK"))
	})
	return mux
}

// ------------------ OAuth ------------------

// AuthorizeHandler выдает код подтверждения для device_id
func (s *Server) AuthorizeHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	if query.Get("client_id") != s.opts.ClientID {
		sendOAuthError(w, "invalid_client", "Unknown client", http.StatusBadRequest)
		return
	}
	deviceID := query.Get("device_id")
	if deviceID == "" {
		sendOAuthError(w, "invalid_request", "device_id is required", http.StatusBadRequest)
		return
	}

	code := s.IssueCode(deviceID)

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "<html><body><p>Код подтверждения: <b>%s</b></p></body></html>", code)
}

// TokenHandler обменивает код или refresh-токен на пару токенов
func (s *Server) TokenHandler(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		sendOAuthError(w, "invalid_request", "Bad form", http.StatusBadRequest)
		return
	}

	clientID, clientSecret, ok := r.BasicAuth()
	if !ok {
		clientID, clientSecret = r.PostForm.Get("client_id"), r.PostForm.Get("client_secret")
	}
	if clientID != s.opts.ClientID || subtle.ConstantTimeCompare([]byte(clientSecret), []byte(s.opts.ClientSecret)) != 1 {
		sendOAuthError(w, "invalid_client", "Client authentication failed", http.StatusUnauthorized)
		return
	}

	grantType := r.PostForm.Get("grant_type")

	s.mu.Lock()
	defer s.mu.Unlock()
	s.tokenRequests[grantType]++

	switch grantType {
	case "authorization_code":
		code := r.PostForm.Get("code")
		deviceID, exists := s.codes[code]
		if !exists || deviceID != r.PostForm.Get("device_id") {
			sendOAuthError(w, "invalid_grant", "Code has expired", http.StatusBadRequest)
			return
		}
		delete(s.codes, code)
		sendJSON(w, http.StatusOK, s.issueTokensLocked(""))

	case "refresh_token":
		refreshToken := r.PostForm.Get("refresh_token")
		if !s.refreshTokens[refreshToken] {
			sendOAuthError(w, "invalid_grant", "Refresh token expired or revoked", http.StatusBadRequest)
			return
		}
		sendJSON(w, http.StatusOK, s.issueTokensLocked(refreshToken))

	default:
		sendOAuthError(w, "unsupported_grant_type", "Unsupported grant type", http.StatusBadRequest)
	}
}

// IssueCode регистрирует новый код подтверждения для device_id
func (s *Server) IssueCode(deviceID string) string {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.seq++
	code := fmt.Sprintf("%06d", 100000+s.seq)
	s.codes[code] = deviceID
	return code
}

// IssueTokens выдает пару токенов в обход OAuth-флоу
func (s *Server) IssueTokens() models.TokenResponse {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.issueTokensLocked("")
}

// RevokeRefreshToken делает refresh-токен недействительным
func (s *Server) RevokeRefreshToken(refreshToken string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	delete(s.refreshTokens, refreshToken)
}

func (s *Server) issueTokensLocked(refreshToken string) models.TokenResponse {
	s.seq++
	accessToken := fmt.Sprintf("AT-%d", s.seq)
	if refreshToken == "" {
		refreshToken = fmt.Sprintf("RT-%d", s.seq)
	}
	s.accessTokens[accessToken] = true
	s.refreshTokens[refreshToken] = true
	return models.TokenResponse{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		ExpiresIn:    s.opts.ExpiresIn,
		TokenType:    "bearer",
	}
}

func (s *Server) TokenRequests(grantType string) int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tokenRequests[grantType]
}

// ------------------ Диск ------------------

func (s *Server) withAuth(next http.HandlerFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		token, found := strings.CutPrefix(r.Header.Get("Authorization"), "OAuth ")
		s.mu.Lock()
		valid := found && s.accessTokens[token]
		s.mu.Unlock()
		if !valid {
			sendError(w, "UnauthorizedError", "Не авторизован.", http.StatusUnauthorized)
			return
		}
		next(w, r)
	}
}

// GetResourceHandler возвращает метаинформацию о ресурсе
func (s *Server) GetResourceHandler(w http.ResponseWriter, r *http.Request) {
	resourcePath := r.URL.Query().Get("path")

	s.mu.Lock()
	resource, exists := s.resources[resourcePath]
	s.mu.Unlock()

	if !exists {
		sendError(w, "DiskNotFoundError", "Не удалось найти запрошенный ресурс.", http.StatusNotFound)
		return
	}
	sendJSON(w, http.StatusOK, resource)
}

// CreateFolderHandler создает папку
func (s *Server) CreateFolderHandler(w http.ResponseWriter, r *http.Request) {
	folderPath := r.URL.Query().Get("path")
	if folderPath == "" {
		sendError(w, "FieldValidationError", "Path is required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[folderPath]; exists {
		sendError(w, "DiskPathPointsToExistentDirectoryError", "По указанному пути уже существует папка с таким именем.", http.StatusConflict)
		return
	}
	if _, exists := s.resources[parentOf(folderPath)]; !exists {
		sendError(w, "DiskPathDoesntExistsError", "Указанного пути не существует.", http.StatusConflict)
		return
	}

	s.resources[folderPath] = models.Resource{Path: folderPath, Name: path.Base(folderPath), Type: "dir"}
	s.folderCreates++

	sendJSON(w, http.StatusCreated, models.Link{
		Href:   baseURL(r) + "/v1/disk/resources?path=" + url.QueryEscape(folderPath),
		Method: http.MethodGet,
	})
}

// UploadHandler ставит в очередь загрузку файла по URL
func (s *Server) UploadHandler(w http.ResponseWriter, r *http.Request) {
	query := r.URL.Query()
	sourceURL, target := query.Get("url"), query.Get("path")
	if sourceURL == "" || target == "" {
		sendError(w, "FieldValidationError", "url and path are required", http.StatusBadRequest)
		return
	}

	s.mu.Lock()
	defer s.mu.Unlock()

	if _, exists := s.resources[target]; exists {
		sendError(w, "DiskResourceAlreadyExistsError", "Ресурс уже существует.", http.StatusConflict)
		return
	}
	if _, exists := s.resources[parentOf(target)]; !exists {
		sendError(w, "DiskPathDoesntExistsError", "Указанного пути не существует.", http.StatusConflict)
		return
	}

	s.seq++
	id := fmt.Sprintf("op-%d", s.seq)
	s.operations[id] = &operation{target: target, sourceURL: sourceURL, status: "in-progress"}

	sendJSON(w, http.StatusAccepted, models.Link{
		Href:   baseURL(r) + "/v1/disk/operations/" + id,
		Method: http.MethodGet,
	})
}

// OperationHandler возвращает статус асинхронной операции
func (s *Server) OperationHandler(w http.ResponseWriter, r *http.Request) {
	id := r.PathValue("id")

	s.mu.Lock()
	defer s.mu.Unlock()

	op, exists := s.operations[id]
	if !exists {
		sendError(w, "DiskNotFoundError", "Операция не найдена.", http.StatusNotFound)
		return
	}

	op.polls++
	if op.status == "in-progress" && op.polls >= s.opts.PollsUntilDone {
		if s.opts.FailURLSubstring != "" && strings.Contains(op.sourceURL, s.opts.FailURLSubstring) {
			op.status = "failed"
		} else {
			op.status = "success"
			s.resources[op.target] = models.Resource{
				Path:      op.target,
				Name:      path.Base(op.target),
				Type:      "file",
				PublicURL: "https://yadi.sk/d/" + id,
			}
		}
	}

	sendJSON(w, http.StatusOK, models.Operation{Status: op.status})
}

func (s *Server) Resource(resourcePath string) (models.Resource, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	resource, exists := s.resources[resourcePath]
	return resource, exists
}

func (s *Server) FolderCreates() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.folderCreates
}

// Вспомогательные функции
func parentOf(resourcePath string) string {
	rest, _ := strings.CutPrefix(resourcePath, "app:/")
	parent := path.Dir("/" + rest)
	if parent == "/" {
		return "app:/"
	}
	return "app:" + parent
}

func baseURL(r *http.Request) string {
	return "http://" + r.Host
}

func sendJSON(w http.ResponseWriter, status int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(data)
}

func sendError(w http.ResponseWriter, code, message string, status int) {
	sendJSON(w, status, models.ErrorResponse{
		Error:       code,
		Message:     message,
		Description: message,
	})
}

func sendOAuthError(w http.ResponseWriter, code, description string, status int) {
	sendJSON(w, status, models.OAuthError{Error: code, ErrorDescription: description})
}
