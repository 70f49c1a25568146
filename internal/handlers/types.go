package handlers

import (
	"context"

	"go.uber.org/zap"

	"granit/internal/config"
	"granit/internal/models"
	"granit/internal/telegram_api"
)

// Store - операции с CRM-таблицами, которые нужны обработчикам бота.
// Реализуется *db.Store.
type Store interface {
	UpsertClient(ctx context.Context, ci models.ClientIdentity) (models.Client, bool, error)
	GetClientByTelegramID(ctx context.Context, telegramID int64) (models.Client, error)
	GetClientByUsername(ctx context.Context, username string) (models.Client, error)
	GetLastActiveClient(ctx context.Context) (models.Client, error)
	TouchClient(ctx context.Context, clientID int64) error
	SetClientStatus(ctx context.Context, telegramID int64, status string) (bool, error)
	ListClientsByStatus(ctx context.Context, status string) ([]models.Client, error)
	AddChatMessage(ctx context.Context, msg models.ChatMessage) (int64, error)
}

// OrderStore сохраняет заявки бота приёма заявок.
type OrderStore interface {
	CreateTelegramOrder(ctx context.Context, o models.TelegramOrder) (int64, error)
}

// UpdateGuard отсекает повторно доставленные обновления. Реализуется *dedup.UpdateGuard.
type UpdateGuard interface {
	FirstSeen(ctx context.Context, scope string, updateID int) bool
	Forget(ctx context.Context, scope string, updateID int)
}

// HandlerDependencies содержит все зависимости, необходимые для обработчиков.
type HandlerDependencies struct {
	Config    *config.Config
	Store     Store
	Orders    OrderStore
	CRMBot    telegram_api.Messenger // бот переписки клиентов с группой менеджеров
	IntakeBot telegram_api.Messenger // бот приёма заявок, может быть nil
	Guard     UpdateGuard            // может быть nil
	Log       *zap.Logger
}

// BotHandler инкапсулирует логику обработки обновлений Telegram.
type BotHandler struct {
	Deps HandlerDependencies
	log  *zap.Logger
}

// NewBotHandler создает новый экземпляр BotHandler.
func NewBotHandler(deps HandlerDependencies) *BotHandler {
	if deps.Config == nil || deps.Store == nil {
		// Без конфигурации и БД обработчик работать не может.
		panic("Не все зависимости для BotHandler были предоставлены.")
	}
	log := deps.Log
	if log == nil {
		log = zap.NewNop()
	}
	return &BotHandler{Deps: deps, log: log}
}

// Скоупы дедупликации: у каждого бота своя нумерация update_id.
const (
	scopeCRM    = "crm"
	scopeIntake = "intake"
)

// Результаты обработки, которые уходят в поле "message" ответа вебхука.
const (
	ResultDuplicate    = "Duplicate update"
	ResultNotReply     = "Not a reply"
	ResultNoClient     = "Cannot extract user_id"
	ResultEmpty        = "Empty message"
	ResultReplySent    = "Reply sent to client"
	ResultReceived     = "Сообщение получено"
	ResultCommand      = "Command handled"
	ResultIgnored      = "Ignored"
	ResultOrderCreated = "Order created"
)

func (bh *BotHandler) firstSeen(ctx context.Context, scope string, updateID int) bool {
	if bh.Deps.Guard == nil {
		return true
	}
	return bh.Deps.Guard.FirstSeen(ctx, scope, updateID)
}

func (bh *BotHandler) forget(ctx context.Context, scope string, updateID int) {
	if bh.Deps.Guard != nil {
		bh.Deps.Guard.Forget(ctx, scope, updateID)
	}
}
