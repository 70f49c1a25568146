package handlers

import (
	"context"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/constants"
	"granit/internal/formatters"
	"granit/internal/telegram_api"
	"granit/internal/utils"
)

// Команды переноса клиента в папку.
var moveCommands = map[string]string{
	"work": constants.STATUS_WORK,
	"pay":  constants.STATUS_PAY,
	"done": constants.STATUS_DONE,
}

// Команды просмотра папки.
var listCommands = map[string]string{
	"list_new":  constants.STATUS_NEW,
	"list_work": constants.STATUS_WORK,
	"list_pay":  constants.STATUS_PAY,
	"list_done": constants.STATUS_DONE,
}

// parseCommand разбирает "/Cmd@bot args" в ("cmd", "args"). Для обычного текста command пустой.
func parseCommand(text string) (command, args string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", ""
	}
	head, rest, _ := strings.Cut(text, " ")
	head = strings.ToLower(strings.TrimPrefix(head, "/"))
	if i := strings.Index(head, "@"); i >= 0 {
		head = head[:i]
	}
	return head, strings.TrimSpace(rest)
}

// folderButtonStatus сопоставляет надпись кнопки клавиатуры с папкой без учёта регистра.
func folderButtonStatus(text string) (string, bool) {
	text = strings.TrimSpace(text)
	for label, status := range constants.FolderButtonMap {
		if strings.EqualFold(label, text) {
			return status, true
		}
	}
	return "", false
}

func isFolderCommand(text string) bool {
	if _, ok := folderButtonStatus(text); ok {
		return true
	}
	command, _ := parseCommand(text)
	if command == "start" || command == "help" {
		return true
	}
	if _, ok := moveCommands[command]; ok {
		return true
	}
	_, ok := listCommands[command]
	return ok
}

// folderKeyboard - reply-клавиатура с папками, по две кнопки в ряд.
func folderKeyboard() tgbotapi.ReplyKeyboardMarkup {
	labels := constants.FolderButtonOrder
	keyboard := tgbotapi.NewReplyKeyboard(
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(labels[0]), tgbotapi.NewKeyboardButton(labels[1])),
		tgbotapi.NewKeyboardButtonRow(tgbotapi.NewKeyboardButton(labels[2]), tgbotapi.NewKeyboardButton(labels[3])),
	)
	keyboard.ResizeKeyboard = true
	return keyboard
}

// handleFolderCommand выполняет команду папок и отвечает в тот же чат.
func (bh *BotHandler) handleFolderCommand(ctx context.Context, chatID int64, text string) (string, error) {
	if status, ok := folderButtonStatus(text); ok {
		return bh.sendFolderList(ctx, chatID, status)
	}

	command, args := parseCommand(text)
	switch {
	case command == "start" || command == "help":
		if _, err := telegram_api.SendTextWithKeyboard(bh.Deps.CRMBot, chatID, formatters.FormatFolderMenu(), folderKeyboard()); err != nil {
			return "", err
		}
		return ResultCommand, nil
	case listCommands[command] != "":
		return bh.sendFolderList(ctx, chatID, listCommands[command])
	case moveCommands[command] != "":
		return bh.moveClient(ctx, chatID, command, args)
	}
	return ResultIgnored, nil
}

func (bh *BotHandler) sendFolderList(ctx context.Context, chatID int64, status string) (string, error) {
	clients, err := bh.Deps.Store.ListClientsByStatus(ctx, status)
	if err != nil {
		return "", err
	}
	if _, err := telegram_api.SendText(bh.Deps.CRMBot, chatID, formatters.FormatFolderList(status, clients), ""); err != nil {
		return "", err
	}
	return ResultCommand, nil
}

func (bh *BotHandler) moveClient(ctx context.Context, chatID int64, command, args string) (string, error) {
	status := moveCommands[command]
	idArg, _, _ := strings.Cut(args, " ")
	telegramID, errParse := utils.ParseTelegramID(idArg)

	var reply string
	switch {
	case errParse != nil:
		reply = formatters.FormatMoveUsage(command)
	default:
		found, err := bh.Deps.Store.SetClientStatus(ctx, telegramID, status)
		if err != nil {
			return "", err
		}
		if found {
			reply = constants.StatusMovedMap[status]
			bh.log.Info("Клиент перенесён в папку", zap.Int64("telegram_id", telegramID), zap.String("status", status))
		} else {
			reply = formatters.FormatClientNotFound(telegramID)
		}
	}
	if _, err := telegram_api.SendText(bh.Deps.CRMBot, chatID, reply, ""); err != nil {
		return "", err
	}
	return ResultCommand, nil
}
