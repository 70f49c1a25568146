// internal/config/config.go
package config

import (
	"log"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
)

// Режимы подбора клиента, если ответ менеджера не удалось сопоставить.
const (
	ReplyFallbackNone       = "none"
	ReplyFallbackLastClient = "last_client"
)

// Config хранит все конфигурационные параметры приложения.
type Config struct {
	DatabaseURL string
	DBSchema    string
	DBHost      string
	DBPort      string
	DBName      string
	AppEnv      string
	Port        string

	// CRM-бот: переписка клиентов с группой менеджеров.
	CRMBotToken   string
	ManagerChatID int64
	CRMAdminID    int64
	ReplyFallback string
	BotUsername   string

	// Бот приёма заявок (telegram-bot / telegram-orders) и чат для ретуши.
	IntakeBotToken string
	RetouchChatID  int64

	RedisURL      string
	AdminAPIToken string
	WebhookSecret string

	HTTPTimeout     time.Duration
	DocumentTimeout time.Duration
}

// IsDev сообщает, запущено ли приложение в режиме разработки.
func (c *Config) IsDev() bool {
	return c.AppEnv == "dev"
}

// LoadConfig загружает конфигурацию из переменных окружения.
func LoadConfig() (*Config, error) {
	cfg := &Config{
		DatabaseURL:     os.Getenv("DATABASE_URL"),
		DBSchema:        strings.TrimSpace(os.Getenv("DB_SCHEMA")),
		AppEnv:          os.Getenv("ENV"),
		Port:            os.Getenv("PORT"),
		BotUsername:     strings.TrimPrefix(os.Getenv("BOT_USERNAME"), "@"),
		IntakeBotToken:  os.Getenv("TELEGRAM_BOT_TOKEN"),
		RedisURL:        os.Getenv("REDIS_URL"),
		AdminAPIToken:   os.Getenv("ADMIN_API_TOKEN"),
		WebhookSecret:   os.Getenv("TELEGRAM_WEBHOOK_SECRET"),
		HTTPTimeout:     10 * time.Second,
		DocumentTimeout: 30 * time.Second,
	}
	if cfg.Port == "" {
		cfg.Port = "8080"
	}
	if cfg.DBSchema == "" {
		cfg.DBSchema = "public"
	}

	// Новые секреты с откатом на старые, как это делала отправка заказов.
	cfg.CRMBotToken = firstNonEmpty(os.Getenv("TELEGRAM_NEW_BOT_TOKEN"), os.Getenv("TELEGRAM_ORDERS_BOT_TOKEN"))
	cfg.ManagerChatID = parseChatID("TELEGRAM_NEW_CHAT_ID", firstNonEmpty(os.Getenv("TELEGRAM_NEW_CHAT_ID"), os.Getenv("TELEGRAM_ORDERS_CHAT_ID")))
	cfg.CRMAdminID = parseChatID("CRM_ADMIN_ID", os.Getenv("CRM_ADMIN_ID"))
	cfg.RetouchChatID = parseChatID("TELEGRAM_CHAT_ID", os.Getenv("TELEGRAM_CHAT_ID"))
	if cfg.RetouchChatID == 0 {
		cfg.RetouchChatID = cfg.ManagerChatID
	}

	switch fallback := strings.ToLower(strings.TrimSpace(os.Getenv("CRM_REPLY_FALLBACK"))); fallback {
	case "", ReplyFallbackNone:
		cfg.ReplyFallback = ReplyFallbackNone
	case ReplyFallbackLastClient:
		cfg.ReplyFallback = ReplyFallbackLastClient
	default:
		log.Printf("Предупреждение: неизвестное значение CRM_REPLY_FALLBACK ('%s'), используется '%s'.", fallback, ReplyFallbackNone)
		cfg.ReplyFallback = ReplyFallbackNone
	}

	if cfg.CRMBotToken == "" {
		log.Println("Предупреждение: TELEGRAM_NEW_BOT_TOKEN не установлен. CRM-бот и уведомления с сайта не будут работать.")
	}
	if cfg.ManagerChatID == 0 {
		log.Println("Предупреждение: TELEGRAM_NEW_CHAT_ID не установлен. Сообщения клиентов некуда пересылать.")
	}
	if cfg.IntakeBotToken == "" {
		log.Println("Предупреждение: TELEGRAM_BOT_TOKEN не установлен. Бот приёма заявок и ретушь отключены.")
	}
	if cfg.AdminAPIToken == "" {
		log.Println("Предупреждение: ADMIN_API_TOKEN не установлен. Админские эндпоинты открыты без проверки.")
	}

	if cfg.DatabaseURL == "" {
		log.Println("Критическая ошибка: DATABASE_URL не установлен.")
	} else {
		parsedURL, parseErr := url.Parse(cfg.DatabaseURL)
		if parseErr != nil {
			log.Printf("Критическая ошибка: ошибка парсинга DATABASE_URL: %v", parseErr)
		} else {
			cfg.DBHost = parsedURL.Hostname()
			cfg.DBPort = parsedURL.Port()
			if cfg.DBPort == "" {
				cfg.DBPort = "5432"
			}
			cfg.DBName = strings.TrimPrefix(parsedURL.Path, "/")
		}
	}

	return cfg, nil
}

func parseChatID(name, raw string) int64 {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return 0
	}
	id, err := strconv.ParseInt(raw, 10, 64)
	if err != nil {
		log.Printf("Предупреждение: не удалось прочитать %s: %v. Установлено в 0.", name, err)
		return 0
	}
	return id
}

func firstNonEmpty(values ...string) string {
	for _, v := range values {
		if strings.TrimSpace(v) != "" {
			return strings.TrimSpace(v)
		}
	}
	return ""
}
