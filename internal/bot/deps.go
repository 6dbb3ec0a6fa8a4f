package bot

import (
	"context"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"yadisk_bot/internal/pkg/cloud/cloud_service"
	"yadisk_bot/internal/pkg/media"
	"yadisk_bot/internal/pkg/user/domain"
)

// API - методы Bot API, которыми пользуется бот. *tgbotapi.BotAPI подходит как есть.
type API interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFile(config tgbotapi.FileConfig) (tgbotapi.File, error)
	GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel
	StopReceivingUpdates()
}

type UserService interface {
	Load(ctx context.Context, userID int64) (*domain.User, error)
	All(ctx context.Context) ([]int64, error)
}

type TokenManager interface {
	IsLinked(u *domain.User) bool
	AuthLink(ctx context.Context, u *domain.User) (string, error)
	Approve(ctx context.Context, u *domain.User, code string) error
}

type MediaProcessor interface {
	Prepare(req media.TransferRequest) (*media.Prepared, error)
	Transfer(ctx context.Context, accessToken string, p *media.Prepared) (*cloud_service.Resource, error)
	MaxFileSize() int64
}
