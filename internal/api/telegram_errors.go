package api

import (
	"errors"
	"net/http"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// errTelegramNotConfigured - ответ, когда нет токена бота или id чата.
const errTelegramNotConfigured = "Telegram не настроен"

// telegramErrorResponse превращает ошибку отправки в 500 с описанием от Bot API,
// либо с текстом сетевой ошибки.
func telegramErrorResponse(err error) Response {
	var apiErr *tgbotapi.Error
	if errors.As(err, &apiErr) {
		return ErrorResponse(http.StatusInternalServerError, "Telegram API: "+apiErr.Message)
	}
	return ErrorResponse(http.StatusInternalServerError, "Ошибка соединения: "+err.Error())
}
