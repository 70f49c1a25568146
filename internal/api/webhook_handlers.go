package api

import (
	"context"
	"fmt"
	"net/http"

	"granit/internal/telegram_api"
)

type webhookResult struct {
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}

// TelegramChatWebhook - вебхук CRM-бота (переписка клиентов с группой менеджеров).
func (h *apiHandlers) TelegramChatWebhook(ctx context.Context, ev Event) (Response, error) {
	if h.deps.Bot == nil {
		return Response{}, fmt.Errorf("CRM-бот не настроен (TELEGRAM_NEW_BOT_TOKEN)")
	}
	body, err := ev.RawBody()
	if err != nil {
		return Response{}, err
	}
	update, err := telegram_api.ParseUpdate(body)
	if err != nil {
		return Response{}, err
	}
	result, err := h.deps.Bot.HandleUpdate(ctx, update)
	if err != nil {
		return Response{}, err
	}
	return JSONResponse(http.StatusOK, webhookResult{OK: true, Message: result}), nil
}

// TelegramBotWebhook - вебхук бота приёма заявок.
func (h *apiHandlers) TelegramBotWebhook(ctx context.Context, ev Event) (Response, error) {
	if h.deps.Bot == nil {
		return Response{}, fmt.Errorf("бот приёма заявок не настроен (TELEGRAM_BOT_TOKEN)")
	}
	body, err := ev.RawBody()
	if err != nil {
		return Response{}, err
	}
	update, err := telegram_api.ParseUpdate(body)
	if err != nil {
		return Response{}, err
	}
	result, err := h.deps.Bot.HandleIntakeUpdate(ctx, update)
	if err != nil {
		return Response{}, err
	}
	return JSONResponse(http.StatusOK, webhookResult{OK: true, Message: result}), nil
}
