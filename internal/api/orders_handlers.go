package api

import (
	"context"
	"database/sql"
	"errors"
	"net/http"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/constants"
	"granit/internal/formatters"
	"granit/internal/models"
	"granit/internal/telegram_api"
)

type orderReplyRequest struct {
	OrderID  int64  `json:"order_id"`
	Response string `json:"response"`
	Status   string `json:"status"`
}

// TelegramOrders: GET - последние заявки из бота приёма заявок, POST - ответ на заявку.
func (h *apiHandlers) TelegramOrders(ctx context.Context, ev Event) (Response, error) {
	if ev.HTTPMethod == http.MethodGet {
		status := strings.TrimSpace(ev.Query("status"))
		if status == "" {
			status = constants.ORDER_STATUS_ALL
		}
		orders, err := h.deps.Store.ListTelegramOrders(ctx, status, constants.ORDERS_PAGE_LIMIT)
		if err != nil {
			return Response{}, err
		}
		if orders == nil {
			orders = []models.TelegramOrder{}
		}
		return JSONResponse(http.StatusOK, map[string]any{"orders": orders}), nil
	}

	var req orderReplyRequest
	if err := ev.DecodeJSON(&req); err != nil {
		return ErrorResponse(http.StatusBadRequest, "Некорректный JSON: "+err.Error()), nil
	}
	req.Response = strings.TrimSpace(req.Response)
	if req.OrderID == 0 || req.Response == "" {
		return ErrorResponse(http.StatusBadRequest, "order_id и response обязательны"), nil
	}
	status := strings.TrimSpace(req.Status)
	if status == "" {
		status = constants.ORDER_STATUS_REPLIED
	}

	chatID, err := h.deps.Store.GetTelegramOrderChatID(ctx, req.OrderID)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrorResponse(http.StatusNotFound, "Заявка не найдена"), nil
	}
	if err != nil {
		return Response{}, err
	}

	if h.deps.IntakeBot == nil {
		return ErrorResponse(http.StatusInternalServerError, errTelegramNotConfigured), nil
	}
	if _, err := telegram_api.SendText(h.deps.IntakeBot, chatID, formatters.FormatOrderReply(req.OrderID, req.Response), tgbotapi.ModeHTML); err != nil {
		h.log.Error("TelegramOrders: не удалось отправить ответ", zap.Int64("order_id", req.OrderID), zap.Error(err))
		return ErrorResponse(http.StatusInternalServerError, "Не удалось отправить сообщение"), nil
	}
	if err := h.deps.Store.UpdateTelegramOrderReply(ctx, req.OrderID, status, req.Response); err != nil {
		return Response{}, err
	}
	h.log.Info("Ответ на заявку отправлен", zap.Int64("order_id", req.OrderID), zap.String("status", status))
	return JSONResponse(http.StatusOK, map[string]any{"success": true, "message": "Ответ отправлен"}), nil
}
