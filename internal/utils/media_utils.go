// internal/utils/media_utils.go
package utils

import (
	"path"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// GetMediaType определяет тип содержимого сообщения для логов.
func GetMediaType(msg *tgbotapi.Message) string {
	if msg == nil {
		return "unknown"
	}
	switch {
	case len(msg.Photo) > 0:
		return "photo"
	case msg.Document != nil:
		return "document"
	case msg.Text != "":
		return "text"
	}
	return "unknown"
}

// IsImageContentType проверяет Content-Type ответа прокси.
func IsImageContentType(contentType string) bool {
	return strings.HasPrefix(strings.ToLower(strings.TrimSpace(contentType)), "image/")
}

// SafeFileName оставляет только имя файла без пути. Пустое или подозрительное имя
// заменяется на "<uuid><fallbackExt>".
func SafeFileName(name, fallbackExt string) string {
	name = strings.ReplaceAll(name, "\\", "/")
	base := path.Base(strings.TrimSpace(name))
	if base == "" || base == "." || base == "/" || base == ".." {
		return GenerateUUID() + fallbackExt
	}
	return base
}
