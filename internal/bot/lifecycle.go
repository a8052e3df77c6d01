package bot

import (
	"errors"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"go.uber.org/zap"
)

// Start starts the bot in polling mode
func (b *Bot) Start() error {
	if b.api == nil {
		return errors.New("bot API is not initialized")
	}
	b.logger.Info("Starting bot in polling mode")

	// Remove webhook (if any was set previously)
	if _, err := b.api.Request(tgbotapi.DeleteWebhookConfig{}); err != nil {
		b.logger.Warn("Failed to delete webhook", zap.Error(err))
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := b.api.GetUpdatesChan(u)

	b.logger.Info("Bot started successfully. Waiting for updates...")

	// blocks until Stop
	b.handleUpdates(updates)
	return nil
}

// Stop ends polling started by Start
func (b *Bot) Stop() {
	if b.api != nil {
		b.api.StopReceivingUpdates()
	}
}

// StartWebhook sets up the bot to receive updates via webhook
func (b *Bot) StartWebhook(webhookURL string) error {
	if b.api == nil {
		return errors.New("bot API is not initialized")
	}
	b.logger.Info("Setting up webhook", zap.String("webhook_url", webhookURL))

	webhookConfig, err := tgbotapi.NewWebhook(webhookURL + "/telegram-webhook")
	if err != nil {
		return err
	}
	webhookConfig.MaxConnections = 40

	if _, err := b.api.Request(webhookConfig); err != nil {
		b.logger.Error("Failed to set webhook", zap.Error(err), zap.String("webhook_url", webhookURL))
		return err
	}

	info, err := b.api.GetWebhookInfo()
	if err != nil {
		b.logger.Warn("Failed to get webhook info", zap.Error(err))
	} else {
		b.logger.Info("Webhook set successfully",
			zap.String("url", info.URL),
			zap.Int("pending_updates", info.PendingUpdateCount),
		)
	}
	return nil
}

// HandleWebhookUpdate dispatches one update from polling or the webhook.
// Updates from users outside the allow list are dropped.
func (b *Bot) HandleWebhookUpdate(update tgbotapi.Update) {
	switch {
	case update.Message != nil && update.Message.From != nil:
		msg := update.Message
		if !b.authorized(msg.From, zap.String("text", msg.Text)) {
			b.reply(msg.Chat.ID, "Sorry, you are not authorized to use this bot.")
			return
		}
		b.handleMessage(msg)

	case update.CallbackQuery != nil:
		query := update.CallbackQuery
		if !b.authorized(query.From, zap.String("callback_data", query.Data)) {
			return
		}
		b.handleCallbackQuery(query)
	}
}

// authorized checks the allow list and logs rejected users
func (b *Bot) authorized(user *tgbotapi.User, detail zap.Field) bool {
	if user != nil && b.allowedUsers[user.ID] {
		return true
	}
	fields := []zap.Field{detail}
	if user != nil {
		fields = append(fields, zap.Int64("user_id", user.ID), zap.String("username", user.UserName))
	}
	b.logger.Warn("Unauthorized update", fields...)
	return false
}

func (b *Bot) handleUpdates(updates tgbotapi.UpdatesChannel) {
	for update := range updates {
		b.HandleWebhookUpdate(update)
	}
}
