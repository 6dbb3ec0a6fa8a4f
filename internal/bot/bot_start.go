package bot

import (
	"context"
	"fmt"
	"sync"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
	"golang.org/x/time/rate"

	"yadisk_bot/internal/config"
)

// CommandHandler обрабатывает команду вида /name
type CommandHandler func(ctx context.Context, msg *tgbotapi.Message) error

type Bot struct {
	api      API
	cfg      config.Config
	users    UserService
	tokens   TokenManager
	media    MediaProcessor
	limiter  *chatLimiters
	commands map[string]CommandHandler
	wg       sync.WaitGroup
}

// NewBotAPI подключается к Telegram.
func NewBotAPI(token string) (*tgbotapi.BotAPI, error) {
	api, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("failed to create bot: %w", err)
	}
	return api, nil
}

func New(api API, cfg config.Config, users UserService, tokens TokenManager, media MediaProcessor) *Bot {
	b := &Bot{
		api:     api,
		cfg:     cfg,
		users:   users,
		tokens:  tokens,
		media:   media,
		limiter: newChatLimiters(rate.Limit(cfg.RateLimit), cfg.RateBurst),
	}
	b.commands = map[string]CommandHandler{
		"start": b.handleStart,
		"help":  b.handleStart,
		"auth":  b.handleAuth,
		"users": b.handleUsers,
	}
	return b
}

// Start читает обновления до отмены ctx. Каждое обновление обрабатывается в своей горутине,
// перед возвратом Start дожидается всех обработчиков.
func (b *Bot) Start(ctx context.Context) {
	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60

	updates := b.api.GetUpdatesChan(u)

	if botAPI, ok := b.api.(*tgbotapi.BotAPI); ok {
		log.Info().Str("account", botAPI.Self.UserName).Msg("authorized on account")
	}

	defer b.wg.Wait()
	for {
		select {
		case <-ctx.Done():
			b.api.StopReceivingUpdates()
			log.Info().Msg("bot stopping, waiting for handlers")
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			b.wg.Add(1)
			go func() {
				defer b.wg.Done()
				b.HandleUpdate(ctx, update)
			}()
		}
	}
}
