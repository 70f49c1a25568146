// Файл: internal/utils/formatters.go

package utils

import (
	"fmt"
	"html"
	"math"
	"regexp"
	"strconv"
	"strings"

	"github.com/google/uuid" // Для GenerateUUID
)

var phoneCleanRegex = regexp.MustCompile(`[^\d+]`)

// FormatPhoneNumber форматирует номер телефона для отображения.
// Нераспознанный номер возвращается как есть.
func FormatPhoneNumber(phone string) string {
	cleanedPhone := phoneCleanRegex.ReplaceAllString(phone, "")

	if strings.HasPrefix(cleanedPhone, "+7") && len(cleanedPhone) == 12 {
		return fmt.Sprintf("+7 (%s) %s-%s-%s", cleanedPhone[2:5], cleanedPhone[5:8], cleanedPhone[8:10], cleanedPhone[10:12])
	}
	if len(cleanedPhone) == 11 && (cleanedPhone[0] == '8' || cleanedPhone[0] == '7') {
		return fmt.Sprintf("+7 (%s) %s-%s-%s", cleanedPhone[1:4], cleanedPhone[4:7], cleanedPhone[7:9], cleanedPhone[9:11])
	}
	if len(cleanedPhone) == 10 {
		return fmt.Sprintf("+7 (%s) %s-%s-%s", cleanedPhone[0:3], cleanedPhone[3:6], cleanedPhone[6:8], cleanedPhone[8:10])
	}
	return phone
}

// FormatPrice округляет сумму до рубля и разделяет тысячи запятой: 125000 -> "125,000".
func FormatPrice(amount float64) string {
	rounded := math.Round(amount)
	negative := rounded < 0
	digits := strconv.FormatFloat(math.Abs(rounded), 'f', 0, 64)

	var b strings.Builder
	if negative {
		b.WriteByte('-')
	}
	for i, r := range digits {
		if i > 0 && (len(digits)-i)%3 == 0 {
			b.WriteByte(',')
		}
		b.WriteRune(r)
	}
	return b.String()
}

// EscapeTelegramHTML экранирует пользовательский текст для parse_mode=HTML.
func EscapeTelegramHTML(text string) string {
	return html.EscapeString(text)
}

// FormatUsername возвращает "@username" или подстановку для пустого значения.
func FormatUsername(username, missing string) string {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return missing
	}
	return "@" + username
}

// GenerateUUID генерирует новый UUID.
func GenerateUUID() string {
	return uuid.New().String()
}
