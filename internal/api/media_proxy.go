package api

import (
	"context"
	"net/http"
	"path"
	"strings"

	"go.uber.org/zap"

	"granit/internal/utils"
)

const (
	browserUserAgent = "Mozilla/5.0 (compatible; GranitImageProxy/1.0)"
	// maxProxyBytes - картинки каталога и галереи заметно меньше.
	maxProxyBytes = 15 << 20
	// Кэшировать на 1 день
	proxyCacheControl = "public, max-age=86400"
)

// ImageProxy загружает изображение по ?url= и возвращает его в base64,
// чтобы редактор на сайте мог работать с картинками с других доменов.
func (h *apiHandlers) ImageProxy(ctx context.Context, ev Event) (Response, error) {
	u, err := utils.ValidateProxyURL(ev.Query("url"))
	if err != nil {
		return ErrorResponse(http.StatusBadRequest, err.Error()), nil
	}

	data, contentType, err := h.fetch(ctx, u.String(), maxProxyBytes)
	if err != nil {
		h.log.Warn("ImageProxy: не удалось загрузить изображение", zap.String("host", u.Host), zap.Error(err))
		return ErrorResponse(http.StatusInternalServerError, "Failed to fetch image: "+err.Error()), nil
	}
	if contentType == "" {
		contentType = mediaContentType(path.Ext(u.Path))
	}
	if !utils.IsImageContentType(contentType) && contentType != "application/octet-stream" {
		return ErrorResponse(http.StatusUnsupportedMediaType, "URL не указывает на изображение: "+contentType), nil
	}
	return BinaryResponse(contentType, data, proxyCacheControl), nil
}

// mediaContentType возвращает MIME-тип на основе расширения файла.
func mediaContentType(ext string) string {
	switch strings.ToLower(ext) {
	case ".jpg", ".jpeg":
		return "image/jpeg"
	case ".png":
		return "image/png"
	case ".gif":
		return "image/gif"
	case ".webp":
		return "image/webp"
	case ".heic":
		return "image/heic"
	case ".mp4":
		return "video/mp4"
	default:
		return "application/octet-stream"
	}
}
