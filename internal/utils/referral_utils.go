package utils

import (
	"fmt"
	"log"
	"net/url"
	"strings"

	"github.com/skip2/go-qrcode"
)

// GenerateChatLink собирает ссылку на CRM-бота с параметром start.
// botUsername передаётся из конфигурации.
func GenerateChatLink(botUsername, startPayload string) (string, error) {
	botUsername = strings.TrimPrefix(strings.TrimSpace(botUsername), "@")
	if botUsername == "" {
		log.Println("GenerateChatLink: botUsername не предоставлен.")
		return "", fmt.Errorf("имя пользователя бота не настроено")
	}
	link := "https://t.me/" + botUsername
	if startPayload != "" {
		link += "?start=" + url.QueryEscape(startPayload)
	}
	return link, nil
}

// GenerateQRCode генерирует PNG с QR-кодом ссылки на бота.
func GenerateQRCode(botUsername, startPayload string, size int) ([]byte, error) {
	link, err := GenerateChatLink(botUsername, startPayload)
	if err != nil {
		return nil, err
	}
	if size <= 0 {
		size = 256
	}

	// qrcode.Medium - уровень коррекции ошибок.
	qrBytes, err := qrcode.Encode(link, qrcode.Medium, size)
	if err != nil {
		log.Printf("GenerateQRCode: ошибка кодирования QR-кода для ссылки '%s': %v", link, err)
		return nil, err
	}
	return qrBytes, nil
}
