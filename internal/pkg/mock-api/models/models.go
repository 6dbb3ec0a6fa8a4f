package models

// ErrorResponse - ошибка в формате Диска
type ErrorResponse struct {
	Message     string `json:"message"`
	Description string `json:"description"`
	Error       string `json:"error"`
}

// OAuthError - ошибка токен-эндпоинта
type OAuthError struct {
	Error            string `json:"error"`
	ErrorDescription string `json:"error_description,omitempty"`
}

type TokenResponse struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
}

// Link - ответ на асинхронные и создающие запросы
type Link struct {
	Href      string `json:"href"`
	Method    string `json:"method"`
	Templated bool   `json:"templated"`
}

type Resource struct {
	Path      string `json:"path"`
	Name      string `json:"name"`
	Type      string `json:"type"`
	PublicURL string `json:"public_url,omitempty"`
}

type Operation struct {
	Status string `json:"status"`
}
