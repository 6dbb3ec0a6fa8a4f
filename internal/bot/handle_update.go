package bot

import (
	"context"
	"errors"
	"strings"
	"unicode"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/media"
	"yadisk_bot/internal/pkg/metrics"
)

// HandleUpdate обрабатывает одно обновление. Ошибки логируются и не выходят за пределы обновления.
func (b *Bot) HandleUpdate(ctx context.Context, update tgbotapi.Update) {
	msg := update.Message
	if msg == nil || msg.Chat == nil {
		return
	}
	metrics.UpdatesTotal.Inc()

	chatID := msg.Chat.ID
	logger := log.With().Int64("chat_id", chatID).Logger()

	defer func() {
		if r := recover(); r != nil {
			logger.Error().Interface("panic", r).Msg("panic while handling update")
		}
	}()

	if !b.cfg.IsAllowed(chatID) {
		logger.Debug().Msg("chat is not in whitelist")
		return
	}
	// вложения не ограничиваем: альбом приходит пачкой обновлений
	if len(media.FromMessage(msg)) == 0 {
		allowed, notify := b.limiter.Allow(chatID)
		if !allowed {
			logger.Warn().Msg("rate limit exceeded, update dropped")
			if notify {
				b.reply(chatID, msgTooManyMessages)
			}
			return
		}
	}

	if err := b.handleMessage(ctx, msg); err != nil {
		logger.Error().Err(err).Msg("failed to handle message")
		if errors.Is(err, apperr.ErrStore) {
			b.reply(chatID, msgFailure)
		}
	}
}

func (b *Bot) handleMessage(ctx context.Context, msg *tgbotapi.Message) error {
	if msg.IsCommand() {
		if handler, ok := b.commands[msg.Command()]; ok {
			return handler(ctx, msg)
		}
	}

	chatID := msg.Chat.ID
	user, err := b.users.Load(ctx, chatID)
	if err != nil {
		return err
	}

	if !b.tokens.IsLinked(user) {
		code := strings.TrimSpace(msg.Text)
		if !isConfirmationCode(code) {
			b.reply(chatID, msgConnectPrompt)
			return nil
		}

		if err := b.tokens.Approve(ctx, user, code); err != nil {
			if errors.Is(err, apperr.ErrAuth) {
				log.Warn().Err(err).Int64("chat_id", chatID).Msg("confirmation code rejected")
				b.reply(chatID, msgFreshCode)
				return nil
			}
			b.reply(chatID, msgFailure)
			return err
		}

		log.Info().Int64("chat_id", chatID).Msg("disk linked")
		b.reply(chatID, msgConnected)
		return nil
	}

	b.uploadFiles(ctx, user, msg)
	return nil
}

func isConfirmationCode(text string) bool {
	if text == "" {
		return false
	}
	for _, r := range text {
		if !unicode.IsDigit(r) {
			return false
		}
	}
	return true
}

// reply отправляет текст. Ошибка отправки только логируется.
func (b *Bot) reply(chatID int64, text string) {
	if _, err := b.api.Send(tgbotapi.NewMessage(chatID, text)); err != nil {
		log.Error().Err(err).Int64("chat_id", chatID).Msg("failed to send message")
	}
}
