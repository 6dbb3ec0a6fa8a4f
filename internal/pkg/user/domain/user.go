package domain

import (
	"bytes"
	"encoding/json"
	"fmt"
	"time"
)

// Ключи атрибутов пользователя
const (
	AttrDeviceID  = "deviceId"
	AttrTokens    = "tokens"
	AttrRefreshAt = "refreshAt"
)

// Attributes - набор именованных полей пользователя, хранится одной записью.
type Attributes map[string]json.RawMessage

// NewAttributes собирает набор атрибутов из обычных значений.
// nil сохраняется как JSON null.
func NewAttributes(values map[string]any) (Attributes, error) {
	attrs := make(Attributes, len(values))
	for key, value := range values {
		if err := attrs.Set(key, value); err != nil {
			return nil, err
		}
	}
	return attrs, nil
}

func (a Attributes) Set(key string, value any) error {
	raw, err := json.Marshal(value)
	if err != nil {
		return fmt.Errorf("failed to encode attribute %s: %w", key, err)
	}
	a[key] = raw
	return nil
}

// Decode читает атрибут в dst. Возвращает false, если атрибута нет или он равен null.
func (a Attributes) Decode(key string, dst any) (bool, error) {
	raw, ok := a[key]
	if !ok || isNull(raw) {
		return false, nil
	}
	if err := json.Unmarshal(raw, dst); err != nil {
		return false, fmt.Errorf("failed to decode attribute %s: %w", key, err)
	}
	return true, nil
}

// Merge возвращает новый набор: текущие атрибуты, поверх которых записан patch.
func (a Attributes) Merge(patch Attributes) Attributes {
	merged := a.Clone()
	for key, value := range patch {
		merged[key] = value
	}
	return merged
}

func (a Attributes) Clone() Attributes {
	clone := make(Attributes, len(a))
	for key, value := range a {
		clone[key] = append(json.RawMessage(nil), value...)
	}
	return clone
}

func isNull(raw json.RawMessage) bool {
	trimmed := bytes.TrimSpace(raw)
	return len(trimmed) == 0 || bytes.Equal(trimmed, []byte("null"))
}

// Tokens - ответ токен-эндпоинта в том виде, в котором он хранится у пользователя.
type Tokens struct {
	AccessToken  string `json:"access_token"`
	RefreshToken string `json:"refresh_token"`
	ExpiresIn    int64  `json:"expires_in"`
	TokenType    string `json:"token_type"`
	Scope        string `json:"scope,omitempty"`
}

// User - пользователь чата и его атрибуты.
type User struct {
	ID    int64
	Attrs Attributes
}

func NewUser(id int64, attrs Attributes) *User {
	if attrs == nil {
		attrs = Attributes{}
	}
	return &User{ID: id, Attrs: attrs}
}

func (u *User) DeviceID() string {
	var deviceID string
	if ok, err := u.Attrs.Decode(AttrDeviceID, &deviceID); !ok || err != nil {
		return ""
	}
	return deviceID
}

// Tokens возвращает nil, если аккаунт не подключен.
func (u *User) Tokens() *Tokens {
	var tokens Tokens
	if ok, err := u.Attrs.Decode(AttrTokens, &tokens); !ok || err != nil {
		return nil
	}
	return &tokens
}

// RefreshAt хранится как unix-время в миллисекундах.
func (u *User) RefreshAt() *time.Time {
	var ms int64
	if ok, err := u.Attrs.Decode(AttrRefreshAt, &ms); !ok || err != nil {
		return nil
	}
	at := time.UnixMilli(ms)
	return &at
}

// IsLinked - true, если у пользователя есть токены диска.
func (u *User) IsLinked() bool {
	return u.Tokens() != nil
}

// AccessToken возвращает пустую строку для неподключенного пользователя.
func (u *User) AccessToken() string {
	if tokens := u.Tokens(); tokens != nil {
		return tokens.AccessToken
	}
	return ""
}
