package api

import (
	"context"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"go.uber.org/zap"

	"granit/internal/config"
	"granit/internal/handlers"
	"granit/internal/models"
	"granit/internal/telegram_api"
)

// Store - запросы к БД, которые нужны HTTP-функциям. Реализуется *db.Store.
type Store interface {
	GetClientThreads(ctx context.Context) ([]models.ClientThread, error)
	GetClientByTelegramID(ctx context.Context, telegramID int64) (models.Client, error)
	AddChatMessage(ctx context.Context, msg models.ChatMessage) (int64, error)
	TouchClient(ctx context.Context, clientID int64) error
	ListTelegramOrders(ctx context.Context, status string, limit int) ([]models.TelegramOrder, error)
	GetTelegramOrderChatID(ctx context.Context, orderID int64) (int64, error)
	UpdateTelegramOrderReply(ctx context.Context, orderID int64, status, response string) error
}

// ApiDependencies содержит зависимости для обработчиков API.
type ApiDependencies struct {
	Config     *config.Config
	Store      Store
	Bot        *handlers.BotHandler
	CRMBot     telegram_api.Messenger // может быть nil, если токен не задан
	IntakeBot  telegram_api.Messenger // может быть nil
	HTTPClient *http.Client           // для прокси изображений и скачивания файлов Telegram
	Log        *zap.Logger
}

const adminAllowHeaders = "Content-Type, " + AdminTokenHeader

// Functions возвращает все функции сайта. Имя функции - путь, по которому она доступна.
func Functions(deps ApiDependencies) []Function {
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
		deps.Log = log
	}
	if deps.HTTPClient == nil {
		timeout := 10 * time.Second
		if deps.Config != nil && deps.Config.HTTPTimeout > 0 {
			timeout = deps.Config.HTTPTimeout
		}
		deps.HTTPClient = &http.Client{Timeout: timeout}
	}
	var adminToken, webhookSecret string
	if deps.Config != nil {
		adminToken = deps.Config.AdminAPIToken
		webhookSecret = deps.Config.WebhookSecret
	}
	admin := AdminTokenMiddleware(adminToken, log)
	webhook := WebhookSecretMiddleware(webhookSecret, log)
	h := &apiHandlers{deps: deps, log: log}

	fns := []Function{
		{Name: "telegram-chat", Methods: []string{http.MethodPost}, Handler: webhook(h.TelegramChatWebhook)},
		{Name: "telegram-crm", Methods: []string{http.MethodPost}, Handler: webhook(h.TelegramChatWebhook)},
		{Name: "telegram-bot", Methods: []string{http.MethodPost}, Handler: webhook(h.TelegramBotWebhook)},
		{Name: "crm-messages", Methods: []string{http.MethodGet, http.MethodPost}, AllowHeaders: adminAllowHeaders, Handler: admin(h.CRMMessages)},
		{Name: "crm-media", Methods: []string{http.MethodGet}, AllowHeaders: adminAllowHeaders, Handler: admin(h.CRMMedia)},
		{Name: "crm-export", Methods: []string{http.MethodGet}, AllowHeaders: adminAllowHeaders, Handler: admin(h.CRMExport)},
		{Name: "telegram-orders", Methods: []string{http.MethodGet, http.MethodPost}, AllowHeaders: adminAllowHeaders, Handler: admin(h.TelegramOrders)},
		{Name: "send-order", Methods: []string{http.MethodPost}, Handler: h.SendOrder},
		{Name: "send-quick-message", Methods: []string{http.MethodPost}, Handler: h.SendQuickMessage},
		{Name: "retouch-form", Methods: []string{http.MethodPost}, Handler: h.RetouchForm},
		{Name: "image-proxy", Methods: []string{http.MethodGet}, Handler: h.ImageProxy},
		{Name: "chat-qr", Methods: []string{http.MethodGet}, Handler: h.ChatQR},
	}
	for i := range fns {
		fns[i].Log = log
	}
	return fns
}

// FindFunction ищет функцию по имени (режим -invoke).
func FindFunction(fns []Function, name string) (Function, bool) {
	for _, f := range fns {
		if f.Name == name {
			return f, true
		}
	}
	return Function{}, false
}

// SetupRoutes настраивает все маршруты для API.
func SetupRoutes(r chi.Router, deps ApiDependencies) {
	r.Get("/healthz", func(w http.ResponseWriter, _ *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		_, _ = w.Write([]byte(`{"status":"ok"}`))
	})
	for _, f := range Functions(deps) {
		r.Handle("/"+f.Name, f)
	}
}

type apiHandlers struct {
	deps ApiDependencies
	log  *zap.Logger
}
