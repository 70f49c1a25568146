package handlers

import (
	"context"
	"fmt"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/formatters"
	"granit/internal/models"
	"granit/internal/telegram_api"
)

// HandleIntakeUpdate обрабатывает обновление бота приёма заявок: текст и фото
// сохраняются в telegram_orders, пользователь получает номер заявки.
func (bh *BotHandler) HandleIntakeUpdate(ctx context.Context, update tgbotapi.Update) (string, error) {
	if !bh.firstSeen(ctx, scopeIntake, update.UpdateID) {
		return ResultDuplicate, nil
	}
	message := update.Message
	if message == nil {
		return "", nil
	}
	if bh.Deps.IntakeBot == nil || bh.Deps.Orders == nil {
		return "", fmt.Errorf("бот приёма заявок не настроен (TELEGRAM_BOT_TOKEN)")
	}

	result, err := bh.handleIntakeMessage(ctx, message)
	if err != nil {
		bh.forget(ctx, scopeIntake, update.UpdateID)
		bh.log.Error("Ошибка обработки заявки", zap.Int64("chat_id", message.Chat.ID), zap.Error(err))
		return "", err
	}
	return result, nil
}

func (bh *BotHandler) handleIntakeMessage(ctx context.Context, message *tgbotapi.Message) (string, error) {
	chatID := message.Chat.ID
	text := strings.TrimSpace(message.Text)

	if command, _ := parseCommand(text); command == "start" {
		if _, err := telegram_api.SendText(bh.Deps.IntakeBot, chatID, formatters.IntakeWelcome, tgbotapi.ModeHTML); err != nil {
			bh.log.Warn("Не удалось отправить приветствие бота заявок", zap.Int64("chat_id", chatID), zap.Error(err))
		}
		return ResultCommand, nil
	}
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}

	photoURLs := []string{}
	if fileID := telegram_api.LargestPhotoID(message.Photo); fileID != "" {
		photoURL, err := bh.Deps.IntakeBot.GetFileDirectURL(fileID)
		if err != nil {
			return "", fmt.Errorf("getFile %s: %w", fileID, err)
		}
		photoURLs = append(photoURLs, photoURL)
	}
	if text == "" && len(photoURLs) == 0 {
		return ResultEmpty, nil
	}

	order := models.TelegramOrder{
		ChatID:    chatID,
		Message:   models.NewNullString(text),
		PhotoURLs: photoURLs,
	}
	if from := message.From; from != nil {
		order.Username = models.NewNullString(from.UserName)
		order.FirstName = models.NewNullString(from.FirstName)
		order.LastName = models.NewNullString(from.LastName)
	}
	orderID, err := bh.Deps.Orders.CreateTelegramOrder(ctx, order)
	if err != nil {
		return "", err
	}

	if _, err := telegram_api.SendText(bh.Deps.IntakeBot, chatID, formatters.FormatIntakeAccepted(orderID), tgbotapi.ModeHTML); err != nil {
		bh.log.Warn("Не удалось подтвердить заявку пользователю", zap.Int64("order_id", orderID), zap.Error(err))
	}
	return ResultOrderCreated, nil
}
