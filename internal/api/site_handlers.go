package api

import (
	"bytes"
	"context"
	"errors"
	"io"
	"mime"
	"mime/multipart"
	"net/http"
	"path"
	"strconv"
	"strings"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/constants"
	"granit/internal/formatters"
	"granit/internal/models"
	"granit/internal/telegram_api"
	"granit/internal/utils"
)

// SendOrder отправляет заказ из корзины в группу менеджеров.
func (h *apiHandlers) SendOrder(ctx context.Context, ev Event) (Response, error) {
	var order models.SiteOrder
	if err := ev.DecodeJSON(&order); err != nil {
		return ErrorResponse(http.StatusBadRequest, "Некорректный JSON: "+err.Error()), nil
	}
	order.Name = strings.TrimSpace(order.Name)
	order.Phone = strings.TrimSpace(order.Phone)
	if order.Name == "" || order.Phone == "" {
		return ErrorResponse(http.StatusBadRequest, "Имя и телефон обязательны"), nil
	}
	if len(order.Items) == 0 {
		return ErrorResponse(http.StatusBadRequest, "Корзина пуста"), nil
	}
	if normalized, err := utils.NormalizePhoneNumber(order.Phone); err == nil {
		order.Phone = utils.FormatPhoneNumber(normalized)
	}

	return h.notifyManagers(formatters.FormatSiteOrder(order), "Заказ отправлен",
		zap.String("kind", "order"), zap.Int("items", len(order.Items)), zap.Float64("total", float64(order.TotalPrice)))
}

// SendQuickMessage отправляет форму быстрой связи в группу менеджеров.
func (h *apiHandlers) SendQuickMessage(ctx context.Context, ev Event) (Response, error) {
	var qm models.QuickMessage
	if err := ev.DecodeJSON(&qm); err != nil {
		return ErrorResponse(http.StatusBadRequest, "Некорректный JSON: "+err.Error()), nil
	}
	qm.Name = strings.TrimSpace(qm.Name)
	qm.Phone = strings.TrimSpace(qm.Phone)
	qm.Message = strings.TrimSpace(qm.Message)
	if qm.Phone == "" {
		return ErrorResponse(http.StatusBadRequest, "Телефон обязателен"), nil
	}
	if normalized, err := utils.NormalizePhoneNumber(qm.Phone); err == nil {
		qm.Phone = utils.FormatPhoneNumber(normalized)
	}

	return h.notifyManagers(formatters.FormatQuickMessage(qm), "Сообщение отправлено", zap.String("kind", "quick_message"))
}

func (h *apiHandlers) notifyManagers(text, okMessage string, fields ...zap.Field) (Response, error) {
	if h.deps.CRMBot == nil || h.deps.Config == nil || h.deps.Config.ManagerChatID == 0 {
		return ErrorResponse(http.StatusInternalServerError, errTelegramNotConfigured), nil
	}
	if _, err := telegram_api.SendText(h.deps.CRMBot, h.deps.Config.ManagerChatID, text, tgbotapi.ModeHTML); err != nil {
		h.log.Error("Не удалось отправить уведомление с сайта", append(fields, zap.Error(err))...)
		return telegramErrorResponse(err), nil
	}
	h.log.Info("Уведомление с сайта отправлено", fields...)
	return JSONResponse(http.StatusOK, map[string]any{"success": true, "message": okMessage}), nil
}

// RetouchForm принимает multipart-форму с фото и отправляет фото документом (без сжатия).
func (h *apiHandlers) RetouchForm(ctx context.Context, ev Event) (Response, error) {
	if h.deps.IntakeBot == nil || h.deps.Config == nil || h.deps.Config.RetouchChatID == 0 {
		return ErrorResponse(http.StatusInternalServerError, errTelegramNotConfigured), nil
	}

	_, params, err := mime.ParseMediaType(ev.Header("Content-Type"))
	boundary := params["boundary"]
	if err != nil || boundary == "" {
		return ErrorResponse(http.StatusBadRequest, "No boundary in Content-Type"), nil
	}
	body, err := ev.RawBody()
	if err != nil {
		return ErrorResponse(http.StatusBadRequest, err.Error()), nil
	}

	req, err := parseRetouchForm(body, boundary)
	if err != nil {
		return ErrorResponse(http.StatusBadRequest, "Некорректная форма: "+err.Error()), nil
	}
	if len(req.PhotoData) < constants.MIN_PHOTO_BYTES {
		return ErrorResponse(http.StatusBadRequest, "Фото не загружено или повреждено"), nil
	}

	fileName := utils.SafeFileName(req.FileName, ".jpg")
	if path.Ext(fileName) == "" {
		fileName += ".jpg"
	}
	if _, err := telegram_api.SendDocument(h.deps.IntakeBot, h.deps.Config.RetouchChatID, fileName, req.PhotoData, formatters.FormatRetouchCaption(req)); err != nil {
		h.log.Error("RetouchForm: ошибка отправки документа", zap.String("file", fileName), zap.Error(err))
		return telegramErrorResponse(err), nil
	}
	h.log.Info("Заявка на ретушь отправлена",
		zap.String("file", fileName),
		zap.String("mime", telegram_api.DocumentMIMEType(fileName)),
		zap.Int("bytes", len(req.PhotoData)))
	return JSONResponse(http.StatusOK, map[string]any{"success": true, "message": "Заявка отправлена"}), nil
}

// maxFormField ограничивает текстовые поля формы.
const maxFormField = 64 << 10

func parseRetouchForm(body []byte, boundary string) (models.RetouchRequest, error) {
	var req models.RetouchRequest
	reader := multipart.NewReader(bytes.NewReader(body), boundary)
	for {
		part, err := reader.NextPart()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return req, err
		}

		name := part.FormName()
		if name == "photo" && part.FileName() != "" {
			data, errRead := io.ReadAll(io.LimitReader(part, maxRequestBody))
			if errRead != nil {
				return req, errRead
			}
			req.FileName = part.FileName()
			req.PhotoData = data
			continue
		}

		value, errRead := io.ReadAll(io.LimitReader(part, maxFormField))
		if errRead != nil {
			return req, errRead
		}
		text := strings.TrimSpace(string(value))
		switch name {
		case "name":
			req.Name = text
		case "phone":
			req.Phone = text
		case "comment":
			req.Comment = text
		}
	}
	return req, nil
}

// ChatQR отдаёт PNG с QR-кодом ссылки на CRM-бота (для печатных материалов и сайта).
func (h *apiHandlers) ChatQR(ctx context.Context, ev Event) (Response, error) {
	var botUsername string
	if h.deps.Config != nil {
		botUsername = h.deps.Config.BotUsername
	}
	size := 256
	if raw := ev.Query("size"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 128 || n > 1024 {
			return ErrorResponse(http.StatusBadRequest, "size должен быть от 128 до 1024"), nil
		}
		size = n
	}
	png, err := utils.GenerateQRCode(botUsername, constants.BOT_START_PAYLOAD, size)
	if err != nil {
		return Response{}, err
	}
	return BinaryResponse("image/png", png, "public, max-age=86400"), nil
}
