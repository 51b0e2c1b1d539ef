package notificator

import (
	"context"
	"fmt"
	"strconv"

	"github.com/go-telegram/bot"
	tgModels "github.com/go-telegram/bot/models"

	"github.com/fleetpay/ledgerd/internal/models"
	"github.com/fleetpay/ledgerd/pkg/logger"
	"github.com/fleetpay/ledgerd/pkg/validation"
)

// TelegramNotificator delivers messages to Telegram chats. The contact
// address of an account is its chat id.
type TelegramNotificator struct {
	logger *logger.Logger
	bot    *bot.Bot
}

func NewTelegramNotificator(logger *logger.Logger, token string, opts ...bot.Option) (*TelegramNotificator, error) {
	provider := &TelegramNotificator{logger: logger}
	opts = append([]bot.Option{bot.WithDefaultHandler(provider.handler)}, opts...)

	b, err := bot.New(token, opts...)
	if err != nil {
		return nil, fmt.Errorf("create telegram bot: %w", err)
	}
	provider.bot = b
	return provider, nil
}

// Start polls for updates until ctx is done, so /start can answer with the
// chat id an operator stores as the account's contact address.
func (t *TelegramNotificator) Start(ctx context.Context) {
	t.bot.Start(ctx)
}

func (t *TelegramNotificator) Send(ctx context.Context, address, text string) models.SendResult {
	if err := validation.ValidateChatID(address); err != nil {
		return failed(err.Error())
	}
	msg, err := t.bot.SendMessage(ctx, &bot.SendMessageParams{
		ChatID: address,
		Text:   text,
	})
	if err != nil {
		t.logger.Errorw("Failed to send telegram message", "chat_id", address, "error", err)
		return failed(err.Error())
	}
	return models.SendResult{Success: true, ProviderMessageID: strconv.Itoa(msg.ID)}
}

func (t *TelegramNotificator) handler(ctx context.Context, b *bot.Bot, update *tgModels.Update) {
	if update.Message == nil || update.Message.From == nil {
		return
	}
	t.logger.Debugw("Telegram update", "username", update.Message.From.Username, "text", update.Message.Text)
	if update.Message.Text != "/start" {
		return
	}
	chatID := strconv.FormatInt(update.Message.Chat.ID, 10)
	res := t.Send(ctx, chatID, "Billing notices for this chat are enabled. Chat id: "+chatID)
	if !res.Success {
		t.logger.Errorw("Failed to answer /start", "chat_id", chatID, "error", res.Error)
	}
}
