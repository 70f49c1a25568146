package utils

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"
)

// localPhoneRegex используется внутри NormalizePhoneNumber.
var localPhoneRegex = regexp.MustCompile(`^\+7\d{10}$`)

var nonDigitRegex = regexp.MustCompile(`[^\d]`)

// NormalizePhoneNumber проверяет и нормализует российский номер телефона.
// Возвращает номер в формате +7XXXXXXXXXX или ошибку.
// NormalizePhoneNumber checks and normalizes a Russian phone number.
func NormalizePhoneNumber(phone string) (string, error) {
	phone = strings.ReplaceAll(phone, "\\", "")
	phone = strings.TrimSpace(phone)
	if phone == "" {
		return "", fmt.Errorf("номер телефона пуст")
	}

	digitsOnly := nonDigitRegex.ReplaceAllString(phone, "")
	var normalized string
	switch {
	case strings.HasPrefix(phone, "+") && !strings.HasPrefix(phone, "+7"):
		return "", fmt.Errorf("поддерживаются только российские номера в формате +7XXXXXXXXXX или 8XXXXXXXXXX")
	case len(digitsOnly) == 11 && (digitsOnly[0] == '8' || digitsOnly[0] == '7'):
		normalized = "+7" + digitsOnly[1:]
	case len(digitsOnly) == 10:
		normalized = "+7" + digitsOnly
	default:
		return "", fmt.Errorf("неверный формат номера телефона, укажите в формате +7XXXXXXXXXX или 8XXXXXXXXXX")
	}
	if !localPhoneRegex.MatchString(normalized) {
		return "", fmt.Errorf("номер должен быть в формате +7XXXXXXXXXX")
	}
	return normalized, nil
}

// ParseTelegramID разбирает числовой Telegram id из аргумента команды (/work 123).
func ParseTelegramID(s string) (int64, error) {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0, fmt.Errorf("ID клиента не указан")
	}
	id, err := strconv.ParseInt(s, 10, 64)
	if err != nil || id <= 0 {
		return 0, fmt.Errorf("некорректный ID клиента: %q", s)
	}
	return id, nil
}

// ValidateProxyURL допускает только абсолютные http(s)-ссылки для прокси изображений.
func ValidateProxyURL(raw string) (*url.URL, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return nil, fmt.Errorf("Missing url parameter")
	}
	u, err := url.Parse(raw)
	if err != nil {
		return nil, fmt.Errorf("некорректный url: %w", err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return nil, fmt.Errorf("поддерживаются только http и https, получено %q", u.Scheme)
	}
	if u.Host == "" {
		return nil, fmt.Errorf("в url не указан хост")
	}
	return u, nil
}
