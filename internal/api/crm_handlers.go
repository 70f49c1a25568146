package api

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"net/http"
	"path"
	"strings"
	"time"

	"go.uber.org/zap"

	"granit/internal/models"
	"granit/internal/reports"
	"granit/internal/telegram_api"
)

// maxMediaBytes - Bot API отдаёт файлы до 20 МБ.
const maxMediaBytes = 20 << 20

type crmSendRequest struct {
	TelegramID int64  `json:"telegram_id"`
	Message    string `json:"message"`
}

// CRMMessages: GET - клиенты с перепиской, POST - сообщение клиенту из CRM-панели.
func (h *apiHandlers) CRMMessages(ctx context.Context, ev Event) (Response, error) {
	if ev.HTTPMethod == http.MethodGet {
		threads, err := h.deps.Store.GetClientThreads(ctx)
		if err != nil {
			return Response{}, err
		}
		if threads == nil {
			threads = []models.ClientThread{}
		}
		return JSONResponse(http.StatusOK, map[string]any{"clients": threads}), nil
	}

	var req crmSendRequest
	if err := ev.DecodeJSON(&req); err != nil {
		return ErrorResponse(http.StatusBadRequest, "Некорректный JSON: "+err.Error()), nil
	}
	req.Message = strings.TrimSpace(req.Message)
	if req.TelegramID == 0 || req.Message == "" {
		return ErrorResponse(http.StatusBadRequest, "telegram_id и message обязательны"), nil
	}
	if h.deps.CRMBot == nil {
		return ErrorResponse(http.StatusInternalServerError, errTelegramNotConfigured), nil
	}

	client, err := h.deps.Store.GetClientByTelegramID(ctx, req.TelegramID)
	known := err == nil
	if err != nil && !errors.Is(err, sql.ErrNoRows) {
		return Response{}, err
	}

	if _, err := telegram_api.SendText(h.deps.CRMBot, req.TelegramID, req.Message, ""); err != nil {
		h.log.Error("CRMMessages: не удалось отправить сообщение клиенту", zap.Int64("telegram_id", req.TelegramID), zap.Error(err))
		return telegramErrorResponse(err), nil
	}

	if known {
		if _, err := h.deps.Store.AddChatMessage(ctx, models.ChatMessage{
			ClientID:     client.ID,
			Message:      req.Message,
			IsFromClient: false,
		}); err != nil {
			h.log.Error("CRMMessages: сообщение отправлено, но не сохранено", zap.Int64("client_id", client.ID), zap.Error(err))
		} else if err := h.deps.Store.TouchClient(ctx, client.ID); err != nil {
			h.log.Warn("CRMMessages: не удалось обновить last_contact", zap.Int64("client_id", client.ID), zap.Error(err))
		}
	}
	return JSONResponse(http.StatusOK, map[string]any{"success": true, "message": "Сообщение отправлено"}), nil
}

// CRMMedia отдаёт файл из Telegram по file_id, чтобы CRM-панель могла показать фото клиента.
func (h *apiHandlers) CRMMedia(ctx context.Context, ev Event) (Response, error) {
	fileID := strings.TrimSpace(ev.Query("file_id"))
	if fileID == "" {
		return ErrorResponse(http.StatusBadRequest, "Missing file_id parameter"), nil
	}
	if h.deps.CRMBot == nil {
		return ErrorResponse(http.StatusInternalServerError, errTelegramNotConfigured), nil
	}
	fileURL, err := h.deps.CRMBot.GetFileDirectURL(fileID)
	if err != nil {
		return telegramErrorResponse(err), nil
	}

	data, contentType, err := h.fetch(ctx, fileURL, maxMediaBytes)
	if err != nil {
		// Ссылка содержит токен бота, в ответ она не попадает.
		h.log.Error("CRMMedia: ошибка загрузки файла Telegram", zap.String("file_id", fileID), zap.Error(err))
		return ErrorResponse(http.StatusBadGateway, "Не удалось загрузить файл из Telegram"), nil
	}
	if contentType == "" || contentType == "application/octet-stream" {
		contentType = mediaContentType(path.Ext(fileURL))
	}
	return BinaryResponse(contentType, data, "private, max-age=3600"), nil
}

// CRMExport выгружает клиентов и переписку в Excel.
func (h *apiHandlers) CRMExport(ctx context.Context, ev Event) (Response, error) {
	threads, err := h.deps.Store.GetClientThreads(ctx)
	if err != nil {
		return Response{}, err
	}
	buf, err := reports.BuildCRMWorkbook(threads, time.Local)
	if err != nil {
		return Response{}, err
	}
	resp := BinaryResponse(reports.XLSXContentType, buf.Bytes(), "no-store")
	resp.Headers["Content-Disposition"] = fmt.Sprintf(`attachment; filename="%s"`, reports.ExportFileName(time.Now()))
	h.log.Info("CRMExport: выгрузка сформирована", zap.Int("clients", len(threads)), zap.Int("bytes", buf.Len()))
	return resp, nil
}

// fetch скачивает ресурс с ограничением размера; ошибки не-2xx возвращаются как error.
func (h *apiHandlers) fetch(ctx context.Context, rawURL string, limit int64) ([]byte, string, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, rawURL, nil)
	if err != nil {
		return nil, "", err
	}
	req.Header.Set("User-Agent", browserUserAgent)
	resp, err := h.deps.HTTPClient.Do(req)
	if err != nil {
		return nil, "", err
	}
	defer resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, "", fmt.Errorf("HTTP %d", resp.StatusCode)
	}
	data, err := io.ReadAll(io.LimitReader(resp.Body, limit+1))
	if err != nil {
		return nil, "", err
	}
	if int64(len(data)) > limit {
		return nil, "", fmt.Errorf("файл больше %d байт", limit)
	}
	return data, resp.Header.Get("Content-Type"), nil
}
