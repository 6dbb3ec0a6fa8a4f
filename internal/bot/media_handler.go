package bot

import (
	"context"
	"errors"
	"fmt"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"

	"yadisk_bot/internal/pkg/apperr"
	"yadisk_bot/internal/pkg/media"
	"yadisk_bot/internal/pkg/metrics"
	"yadisk_bot/internal/pkg/user/domain"
)

// uploadFiles переносит все вложения сообщения по очереди
func (b *Bot) uploadFiles(ctx context.Context, user *domain.User, msg *tgbotapi.Message) {
	for _, req := range media.FromMessage(msg) {
		b.transferFile(ctx, user, req)
	}
}

func (b *Bot) transferFile(ctx context.Context, user *domain.User, req media.TransferRequest) {
	chatID := user.ID
	logger := log.With().Int64("chat_id", chatID).Str("file", media.DisplayName(req)).Logger()

	prepared, err := b.media.Prepare(req)
	if err != nil {
		if errors.Is(err, apperr.ErrSizeLimit) {
			metrics.TransfersTotal.WithLabelValues(metrics.ResultTooLarge).Inc()
			logger.Info().Int64("size", req.FileSize).Msg("file too large")
			b.reply(chatID, fmt.Sprintf(msgTooLarge, media.DisplayName(req), b.media.MaxFileSize()/(1024*1024)))
			return
		}
		metrics.TransfersTotal.WithLabelValues(metrics.ResultFailed).Inc()
		logger.Error().Err(err).Msg("failed to prepare file")
		b.reply(chatID, fmt.Sprintf(msgUploadFailed, media.DisplayName(req)))
		return
	}

	status, err := b.api.Send(tgbotapi.NewMessage(chatID, fmt.Sprintf(msgUploading, prepared.TargetName)))
	if err != nil {
		logger.Error().Err(err).Msg("failed to send status message")
		return
	}

	start := time.Now()
	resource, err := b.media.Transfer(ctx, user.AccessToken(), prepared)
	metrics.TransferDuration.Observe(time.Since(start).Seconds())

	var text string
	switch {
	case err == nil:
		metrics.TransfersTotal.WithLabelValues(metrics.ResultSuccess).Inc()
		logger.Info().Str("path", resource.Path).Dur("duration", time.Since(start)).Msg("file uploaded")
		text = fmt.Sprintf(msgUploaded, prepared.TargetName)
		if resource.PublicURL != "" {
			text = fmt.Sprintf(msgUploadedLink, prepared.TargetName, resource.PublicURL)
		}
	case errors.Is(err, apperr.ErrTimeout):
		metrics.TransfersTotal.WithLabelValues(metrics.ResultTimeout).Inc()
		logger.Warn().Err(err).Msg("upload timed out")
		text = fmt.Sprintf(msgUploadTimedOut, prepared.TargetName)
	default:
		metrics.TransfersTotal.WithLabelValues(metrics.ResultFailed).Inc()
		logger.Error().Err(err).Msg("upload failed")
		text = fmt.Sprintf(msgUploadFailed, prepared.TargetName)
	}

	if _, err := b.api.Send(tgbotapi.NewEditMessageText(chatID, status.MessageID, text)); err != nil {
		logger.Error().Err(err).Msg("failed to edit status message")
	}
}
