// Файл: internal/handlers/message_handler.go

package handlers

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"unicode/utf8"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/config"
	"granit/internal/constants"
	"granit/internal/formatters"
	"granit/internal/models"
	"granit/internal/telegram_api"
	"granit/internal/utils"
)

// HandleUpdate обрабатывает обновление CRM-бота: сообщения клиентов уходят в группу
// менеджеров, ответы менеджеров (Reply в группе) уходят клиенту.
// Возвращает короткий результат для ответа вебхука.
func (bh *BotHandler) HandleUpdate(ctx context.Context, update tgbotapi.Update) (string, error) {
	if !bh.firstSeen(ctx, scopeCRM, update.UpdateID) {
		bh.log.Info("Повторное обновление пропущено", zap.Int("update_id", update.UpdateID))
		return ResultDuplicate, nil
	}
	if update.Message == nil {
		return "", nil
	}

	result, err := bh.routeMessage(ctx, update.Message)
	if err != nil {
		bh.forget(ctx, scopeCRM, update.UpdateID)
		bh.log.Error("Ошибка обработки обновления CRM", zap.Int("update_id", update.UpdateID), zap.Int64("chat_id", update.Message.Chat.ID), zap.Error(err))
		return "", err
	}
	return result, nil
}

func (bh *BotHandler) routeMessage(ctx context.Context, message *tgbotapi.Message) (string, error) {
	cfg := bh.Deps.Config
	chatID := message.Chat.ID

	bh.log.Debug("HandleUpdate",
		zap.Int64("chat_id", chatID),
		zap.String("chat_type", message.Chat.Type),
		zap.Int("message_id", message.MessageID),
		zap.String("media", utils.GetMediaType(message)),
		zap.Bool("is_reply", message.ReplyToMessage != nil))

	switch {
	case cfg.ManagerChatID != 0 && chatID == cfg.ManagerChatID:
		return bh.handleManagerMessage(ctx, message)
	case message.Chat.Type != constants.CHAT_TYPE_PRIVATE:
		bh.log.Debug("Сообщение из постороннего чата проигнорировано", zap.Int64("chat_id", chatID), zap.String("chat_type", message.Chat.Type))
		return ResultIgnored, nil
	case message.From == nil || message.From.IsBot:
		return ResultIgnored, nil
	case cfg.CRMAdminID != 0 && message.From.ID == cfg.CRMAdminID:
		return bh.handleAdminMessage(ctx, message)
	default:
		return bh.handleClientMessage(ctx, message)
	}
}

// handleClientMessage сохраняет сообщение клиента и пересылает его в группу менеджеров.
func (bh *BotHandler) handleClientMessage(ctx context.Context, message *tgbotapi.Message) (string, error) {
	from := message.From
	identity := models.ClientIdentity{
		TelegramID: from.ID,
		Username:   from.UserName,
		FirstName:  from.FirstName,
		LastName:   from.LastName,
	}
	text := strings.TrimSpace(message.Text)
	if text == "" {
		text = strings.TrimSpace(message.Caption)
	}
	photoID := telegram_api.LargestPhotoID(message.Photo)

	client, created, err := bh.Deps.Store.UpsertClient(ctx, identity)
	if err != nil {
		return "", err
	}
	record := models.ChatMessage{
		ClientID:     client.ID,
		SenderID:     from.ID,
		Message:      text,
		IsFromClient: true,
		PhotoFileID:  models.NewNullString(photoID),
	}

	command, args := parseCommand(text)
	isStart := command == "start"
	if created || isStart {
		if _, errSend := telegram_api.SendText(bh.Deps.CRMBot, from.ID, formatters.FormatWelcome(from.FirstName), tgbotapi.ModeHTML); errSend != nil {
			bh.log.Warn("Не удалось отправить приветствие клиенту", zap.Int64("telegram_id", from.ID), zap.Error(errSend))
		}
	}
	if isStart && photoID == "" && (args == "" || args == constants.BOT_START_PAYLOAD) {
		if _, err := bh.Deps.Store.AddChatMessage(ctx, record); err != nil {
			return "", err
		}
		bh.log.Info("Клиент открыл бота", zap.Int64("telegram_id", from.ID), zap.Bool("new_client", created), zap.String("payload", args))
		return ResultReceived, nil
	}

	// Сначала пересылка, потом запись: при ошибке Telegram повторит обновление,
	// и строка в crm_messages не задвоится.
	if err := bh.forwardToManagers(identity, text, photoID); err != nil {
		return "", err
	}
	if _, err := bh.Deps.Store.AddChatMessage(ctx, record); err != nil {
		return "", err
	}
	bh.log.Info("Сообщение клиента переслано менеджерам",
		zap.Int64("client_id", client.ID),
		zap.Int64("telegram_id", from.ID),
		zap.Bool("new_client", created),
		zap.Bool("photo", photoID != ""))
	return ResultReceived, nil
}

func (bh *BotHandler) forwardToManagers(identity models.ClientIdentity, text, photoID string) error {
	groupID := bh.Deps.Config.ManagerChatID
	if groupID == 0 {
		return fmt.Errorf("группа менеджеров не настроена (TELEGRAM_NEW_CHAT_ID)")
	}
	parts := formatters.FormatClientForwardParts(identity, text)

	if photoID != "" && len(parts) == 1 && utf8.RuneCountInString(parts[0]) <= constants.PHOTO_CAPTION_SAFE_LIMIT {
		_, err := telegram_api.SendPhoto(bh.Deps.CRMBot, groupID, photoID, parts[0], tgbotapi.ModeHTML)
		return err
	}
	for _, part := range parts {
		if _, err := telegram_api.SendText(bh.Deps.CRMBot, groupID, part, tgbotapi.ModeHTML); err != nil {
			return err
		}
	}
	if photoID == "" {
		return nil
	}
	_, err := telegram_api.SendPhoto(bh.Deps.CRMBot, groupID, photoID, formatters.FormatClientPhotoCaption(identity.TelegramID), tgbotapi.ModeHTML)
	return err
}

// handleManagerMessage отправляет клиенту ответ менеджера из группы.
func (bh *BotHandler) handleManagerMessage(ctx context.Context, message *tgbotapi.Message) (string, error) {
	if isFolderCommand(message.Text) {
		return bh.handleFolderCommand(ctx, message.Chat.ID, message.Text)
	}
	if message.ReplyToMessage == nil {
		bh.log.Debug("Сообщение в группе без Reply пропущено", zap.Int("message_id", message.MessageID))
		return ResultNotReply, nil
	}

	text := message.Text
	photoID := telegram_api.LargestPhotoID(message.Photo)
	if text == "" && photoID == "" {
		return ResultEmpty, nil
	}

	client, clientTelegramID, err := bh.resolveReplyTarget(ctx, message.ReplyToMessage)
	if err != nil {
		return "", err
	}
	if clientTelegramID == 0 {
		bh.log.Info("Не удалось определить клиента по сообщению, на которое ответил менеджер", zap.Int("reply_to", message.ReplyToMessage.MessageID))
		return ResultNoClient, nil
	}

	if photoID != "" {
		_, err = telegram_api.SendPhoto(bh.Deps.CRMBot, clientTelegramID, photoID, message.Caption, "")
	} else {
		_, err = telegram_api.SendText(bh.Deps.CRMBot, clientTelegramID, text, "")
	}
	if err != nil {
		return "", err
	}

	if client != nil {
		saved := text
		if photoID != "" {
			saved = message.Caption
		}
		var senderID int64
		if message.From != nil {
			senderID = message.From.ID
		}
		if _, err := bh.Deps.Store.AddChatMessage(ctx, models.ChatMessage{
			ClientID:     client.ID,
			SenderID:     senderID,
			Message:      saved,
			IsFromClient: false,
			PhotoFileID:  models.NewNullString(photoID),
		}); err != nil {
			return "", err
		}
		if err := bh.Deps.Store.TouchClient(ctx, client.ID); err != nil {
			return "", err
		}
	}
	bh.log.Info("Ответ менеджера отправлен клиенту", zap.Int64("telegram_id", clientTelegramID), zap.Bool("known_client", client != nil), zap.Bool("photo", photoID != ""))
	return ResultReplySent, nil
}

// resolveReplyTarget находит клиента по сообщению, на которое ответил менеджер:
// сначала по метке ID, затем по @username, затем (если включено) последний писавший клиент.
// Возвращает telegram id 0, если клиента определить не удалось. client == nil, если
// id найден в тексте, но в crm_clients такой записи нет.
func (bh *BotHandler) resolveReplyTarget(ctx context.Context, replied *tgbotapi.Message) (*models.Client, int64, error) {
	// Ответ на сообщение коллеги, а не бота, клиенту не отправляется.
	if replied.From != nil && !replied.From.IsBot {
		return nil, 0, nil
	}
	source := replied.Text
	if source == "" {
		source = replied.Caption
	}

	// Несколько разных id (например, список папки): адресат неоднозначен, никому не отправляем.
	switch ids := formatters.ExtractClientIDs(source); {
	case len(ids) > 1:
		bh.log.Info("В сообщении несколько клиентов, ответ не отправлен", zap.Int("clients", len(ids)))
		return nil, 0, nil
	case len(ids) == 1:
		id := ids[0]
		client, err := bh.Deps.Store.GetClientByTelegramID(ctx, id)
		switch {
		case err == nil:
			return &client, id, nil
		case errors.Is(err, sql.ErrNoRows):
			return nil, id, nil
		default:
			return nil, 0, fmt.Errorf("поиск клиента %d: %w", id, err)
		}
	}

	switch names := formatters.ExtractUsernames(source); {
	case len(names) > 1:
		bh.log.Info("В сообщении несколько username, ответ не отправлен", zap.Int("usernames", len(names)))
		return nil, 0, nil
	case len(names) == 1:
		client, err := bh.Deps.Store.GetClientByUsername(ctx, names[0])
		switch {
		case err == nil:
			return &client, client.TelegramID, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, 0, fmt.Errorf("поиск клиента @%s: %w", names[0], err)
		}
	}

	if bh.Deps.Config.ReplyFallback == config.ReplyFallbackLastClient {
		client, err := bh.Deps.Store.GetLastActiveClient(ctx)
		switch {
		case err == nil:
			bh.log.Info("Ответ менеджера направлен последнему писавшему клиенту", zap.Int64("telegram_id", client.TelegramID))
			return &client, client.TelegramID, nil
		case !errors.Is(err, sql.ErrNoRows):
			return nil, 0, fmt.Errorf("поиск последнего клиента: %w", err)
		}
	}
	return nil, 0, nil
}

// handleAdminMessage отвечает на команды папок в личке администратора CRM.
func (bh *BotHandler) handleAdminMessage(ctx context.Context, message *tgbotapi.Message) (string, error) {
	if !isFolderCommand(message.Text) {
		bh.log.Debug("Сообщение администратора без команды пропущено", zap.Int64("telegram_id", message.From.ID))
		return ResultIgnored, nil
	}
	return bh.handleFolderCommand(ctx, message.Chat.ID, message.Text)
}
