// Файл: internal/api/middleware.go
package api

import (
	"context"
	"crypto/subtle"
	"net/http"

	"go.uber.org/zap"
)

// Заголовки авторизации.
const (
	AdminTokenHeader    = "X-Auth-Token"
	WebhookSecretHeader = "X-Telegram-Bot-Api-Secret-Token"
)

// AdminTokenMiddleware пропускает запрос только с заголовком X-Auth-Token, равным token.
// Пустой token отключает проверку (локальная разработка).
func AdminTokenMiddleware(token string, log *zap.Logger) func(HandlerFunc) HandlerFunc {
	return func(next HandlerFunc) HandlerFunc {
		if token == "" {
			return next
		}
		return func(ctx context.Context, ev Event) (Response, error) {
			if !secretEqual(ev.Header(AdminTokenHeader), token) {
				log.Warn("AdminTokenMiddleware: неверный или отсутствующий токен", zap.String("request_id", ev.RequestContext.RequestID))
				return ErrorResponse(http.StatusUnauthorized, "Unauthorized"), nil
			}
			return next(ctx, ev)
		}
	}
}

// WebhookSecretMiddleware проверяет secret_token, который Telegram присылает с каждым обновлением.
// Пустой secret отключает проверку.
func WebhookSecretMiddleware(secret string, log *zap.Logger) func(HandlerFunc) HandlerFunc {
	return func(next HandlerFunc) HandlerFunc {
		if secret == "" {
			return next
		}
		return func(ctx context.Context, ev Event) (Response, error) {
			if !secretEqual(ev.Header(WebhookSecretHeader), secret) {
				log.Warn("WebhookSecretMiddleware: запрос без верного secret_token", zap.String("request_id", ev.RequestContext.RequestID))
				return ErrorResponse(http.StatusForbidden, "Forbidden"), nil
			}
			return next(ctx, ev)
		}
	}
}

func secretEqual(got, want string) bool {
	return subtle.ConstantTimeCompare([]byte(got), []byte(want)) == 1
}
