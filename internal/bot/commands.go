package bot

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/rs/zerolog/log"
)

func (b *Bot) handleStart(_ context.Context, msg *tgbotapi.Message) error {
	b.reply(msg.Chat.ID, msgStart)
	return nil
}

// handleAuth выдает ссылку на подтверждение. Токены уже подключенного пользователя сбрасываются.
func (b *Bot) handleAuth(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID

	user, err := b.users.Load(ctx, chatID)
	if err != nil {
		return err
	}

	link, err := b.tokens.AuthLink(ctx, user)
	if err != nil {
		return err
	}

	reply := tgbotapi.NewMessage(chatID, msgAuthRequest)
	reply.ReplyMarkup = tgbotapi.NewInlineKeyboardMarkup(
		tgbotapi.NewInlineKeyboardRow(
			tgbotapi.NewInlineKeyboardButtonURL(msgAuthButton, link),
		),
	)
	if _, err := b.api.Send(reply); err != nil {
		return fmt.Errorf("failed to send auth link: %w", err)
	}

	log.Info().Int64("chat_id", chatID).Msg("auth link sent")
	return nil
}

// handleUsers - список известных пользователей, только для администраторов
func (b *Bot) handleUsers(ctx context.Context, msg *tgbotapi.Message) error {
	chatID := msg.Chat.ID
	if !b.cfg.IsAdmin(chatID) {
		b.reply(chatID, msgAdminsOnly)
		return nil
	}

	ids, err := b.users.All(ctx)
	if err != nil {
		return err
	}
	if len(ids) == 0 {
		b.reply(chatID, msgNoUsers)
		return nil
	}

	var sb strings.Builder
	fmt.Fprintf(&sb, "👥 Пользователи (%d):\n", len(ids))
	for _, id := range ids {
		mark := "⏳"
		user, err := b.users.Load(ctx, id)
		if err != nil {
			mark = "⚠️"
		} else if b.tokens.IsLinked(user) {
			mark = "✅"
		}
		fmt.Fprintf(&sb, "%s %d\n", mark, id)
	}

	b.reply(chatID, sb.String())
	return nil
}
