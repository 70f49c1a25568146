package telegram_api

import (
	"fmt"
	"net/http"
	"time"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"
)

// Messenger - то, что обработчикам нужно от Bot API. Реализуется BotClient,
// в тестах подменяется фейком.
type Messenger interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
	GetFileDirectURL(fileID string) (string, error)
}

// BotClient представляет собой обертку для Telegram Bot API.
type BotClient struct {
	api   *tgbotapi.BotAPI
	log   *zap.Logger
	Debug bool
}

// NewBotClient авторизует бота по токену (getMe) и настраивает HTTP-клиент с таймаутом.
// Вебхук не трогается: в проде обновления приходят через него.
func NewBotClient(token string, debug bool, timeout time.Duration, log *zap.Logger) (*BotClient, error) {
	if token == "" {
		return nil, fmt.Errorf("токен Telegram API не предоставлен")
	}
	if timeout <= 0 {
		timeout = 30 * time.Second
	}

	api, err := tgbotapi.NewBotAPIWithClient(token, tgbotapi.APIEndpoint, &http.Client{Timeout: timeout})
	if err != nil {
		return nil, fmt.Errorf("ошибка инициализации Telegram Bot API: %w", err)
	}
	api.Debug = debug

	log.Info("Авторизован как бот", zap.String("username", api.Self.UserName))
	return &BotClient{api: api, log: log, Debug: debug}, nil
}

// Username возвращает @username бота без "@".
func (bc *BotClient) Username() string {
	if bc == nil || bc.api == nil {
		return ""
	}
	return bc.api.Self.UserName
}

// Token нужен для сборки ссылок на файлы.
func (bc *BotClient) Token() string {
	if bc == nil || bc.api == nil {
		return ""
	}
	return bc.api.Token
}

// Send отправляет сообщение через BotClient.
func (bc *BotClient) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if bc == nil || bc.api == nil {
		return tgbotapi.Message{}, fmt.Errorf("BotClient или его API не инициализирован")
	}
	if bc.Debug {
		switch msg := c.(type) {
		case tgbotapi.MessageConfig:
			bc.log.Debug("Отправка сообщения", zap.Int64("chat_id", msg.ChatID), zap.String("text", truncate(msg.Text, 50)))
		case tgbotapi.PhotoConfig:
			bc.log.Debug("Отправка фото", zap.Int64("chat_id", msg.ChatID), zap.String("caption", truncate(msg.Caption, 50)))
		case tgbotapi.DocumentConfig:
			bc.log.Debug("Отправка документа", zap.Int64("chat_id", msg.ChatID), zap.String("caption", truncate(msg.Caption, 50)))
		default:
			bc.log.Debug("Отправка", zap.String("type", fmt.Sprintf("%T", c)))
		}
	}
	return bc.api.Send(c)
}

// Request выполняет запрос через BotClient.
func (bc *BotClient) Request(c tgbotapi.Chattable) (*tgbotapi.APIResponse, error) {
	if bc == nil || bc.api == nil {
		return nil, fmt.Errorf("BotClient или его API не инициализирован")
	}
	return bc.api.Request(c)
}

// MakeRequest выполняет произвольный запрос к API Telegram.
// Нужен для вызовов, параметры которых библиотека не оборачивает (secret_token вебхука).
func (bc *BotClient) MakeRequest(endpoint string, params tgbotapi.Params) (*tgbotapi.APIResponse, error) {
	if bc == nil || bc.api == nil {
		return nil, fmt.Errorf("BotClient или его API не инициализирован")
	}
	if bc.Debug {
		bc.log.Debug("MakeRequest", zap.String("endpoint", endpoint))
	}
	return bc.api.MakeRequest(endpoint, params)
}

// GetFileDirectURL возвращает ссылку на скачивание файла по file_id.
func (bc *BotClient) GetFileDirectURL(fileID string) (string, error) {
	if bc == nil || bc.api == nil {
		return "", fmt.Errorf("BotClient или его API не инициализирован")
	}
	return bc.api.GetFileDirectURL(fileID)
}

// SetWebhook регистрирует вебхук. secret попадает в заголовок
// X-Telegram-Bot-Api-Secret-Token каждого обновления.
func (bc *BotClient) SetWebhook(webhookURL, secret string) error {
	params := tgbotapi.Params{
		"url":             webhookURL,
		"allowed_updates": `["message"]`,
	}
	if secret != "" {
		params["secret_token"] = secret
	}
	resp, err := bc.MakeRequest("setWebhook", params)
	if err != nil {
		return fmt.Errorf("setWebhook %s: %w", webhookURL, err)
	}
	if !resp.Ok {
		return fmt.Errorf("setWebhook %s: %s", webhookURL, resp.Description)
	}
	bc.log.Info("Вебхук зарегистрирован", zap.String("bot", bc.Username()), zap.String("url", webhookURL))
	return nil
}

// DeleteWebhook отключает вебхук (нужно для getUpdates в режиме опроса).
func (bc *BotClient) DeleteWebhook() error {
	_, err := bc.Request(tgbotapi.DeleteWebhookConfig{DropPendingUpdates: false})
	return err
}

// GetUpdatesChan возвращает канал обновлений от Telegram (режим опроса для разработки).
func (bc *BotClient) GetUpdatesChan(config tgbotapi.UpdateConfig) tgbotapi.UpdatesChannel {
	return bc.api.GetUpdatesChan(config)
}

// StopReceivingUpdates останавливает опрос.
func (bc *BotClient) StopReceivingUpdates() {
	if bc != nil && bc.api != nil {
		bc.api.StopReceivingUpdates()
	}
}

func truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "..."
}
