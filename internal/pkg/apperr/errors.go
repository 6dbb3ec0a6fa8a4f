// Package apperr holds the error taxonomy shared by the bot components.
// Callers wrap these sentinels with fmt.Errorf("%w: ...") and match them with errors.Is.
package apperr

import "errors"

var (
	// хранилище недоступно или данные повреждены
	ErrStore = errors.New("store error")

	// сервер авторизации отклонил обмен кода или refresh-токена
	ErrAuth = errors.New("authorization rejected")

	// провайдер сообщил о неудачной загрузке
	ErrTransfer = errors.New("transfer failed")

	// файл больше, чем транспорт может отдать одним запросом
	ErrSizeLimit = errors.New("file too large")

	// операция на стороне провайдера не завершилась вовремя
	ErrTimeout = errors.New("operation timed out")
)
