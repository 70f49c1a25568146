package telegram_api

import (
	"encoding/json"
	"fmt"
	"path/filepath"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

// SendText отправляет текст; parseMode может быть пустым.
func SendText(m Messenger, chatID int64, text, parseMode string) (tgbotapi.Message, error) {
	if m == nil {
		return tgbotapi.Message{}, fmt.Errorf("Telegram не настроен")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ParseMode = parseMode
	sent, err := m.Send(msg)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("sendMessage в чат %d: %w", chatID, err)
	}
	return sent, nil
}

// SendTextWithKeyboard отправляет текст с reply-клавиатурой.
func SendTextWithKeyboard(m Messenger, chatID int64, text string, keyboard tgbotapi.ReplyKeyboardMarkup) (tgbotapi.Message, error) {
	if m == nil {
		return tgbotapi.Message{}, fmt.Errorf("Telegram не настроен")
	}
	msg := tgbotapi.NewMessage(chatID, text)
	msg.ReplyMarkup = keyboard
	sent, err := m.Send(msg)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("sendMessage в чат %d: %w", chatID, err)
	}
	return sent, nil
}

// SendPhoto пересылает уже загруженное в Telegram фото по file_id.
func SendPhoto(m Messenger, chatID int64, fileID, caption, parseMode string) (tgbotapi.Message, error) {
	if m == nil {
		return tgbotapi.Message{}, fmt.Errorf("Telegram не настроен")
	}
	photo := tgbotapi.NewPhoto(chatID, tgbotapi.FileID(fileID))
	photo.Caption = caption
	if caption != "" {
		photo.ParseMode = parseMode
	}
	sent, err := m.Send(photo)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("sendPhoto в чат %d: %w", chatID, err)
	}
	return sent, nil
}

// SendDocument загружает файл как документ (без сжатия, в отличие от sendPhoto).
func SendDocument(m Messenger, chatID int64, name string, data []byte, caption string) (tgbotapi.Message, error) {
	if m == nil {
		return tgbotapi.Message{}, fmt.Errorf("Telegram не настроен")
	}
	doc := tgbotapi.NewDocument(chatID, tgbotapi.FileBytes{Name: name, Bytes: data})
	doc.Caption = caption
	sent, err := m.Send(doc)
	if err != nil {
		return tgbotapi.Message{}, fmt.Errorf("sendDocument в чат %d: %w", chatID, err)
	}
	return sent, nil
}

// LargestPhotoID возвращает file_id самого большого размера фото (последний в массиве).
func LargestPhotoID(photos []tgbotapi.PhotoSize) string {
	if len(photos) == 0 {
		return ""
	}
	return photos[len(photos)-1].FileID
}

// ParseUpdate разбирает тело вебхука. Пустое тело считается пустым обновлением.
func ParseUpdate(body []byte) (tgbotapi.Update, error) {
	var update tgbotapi.Update
	if len(strings.TrimSpace(string(body))) == 0 {
		return update, nil
	}
	if err := json.Unmarshal(body, &update); err != nil {
		return update, fmt.Errorf("некорректное обновление Telegram: %w", err)
	}
	return update, nil
}

// DocumentMIMEType определяет MIME-тип по расширению файла заявки на ретушь.
func DocumentMIMEType(filename string) string {
	switch strings.ToLower(filepath.Ext(filename)) {
	case ".png":
		return "image/png"
	case ".heic":
		return "image/heic"
	default:
		return "image/jpeg"
	}
}
