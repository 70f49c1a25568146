package api

import (
	"encoding/base64"
	"io"
	"mime"
	"net/http"
	"strings"
	"unicode/utf8"

	"github.com/go-chi/chi/v5/middleware"
	"github.com/google/uuid"
	"go.uber.org/zap"
)

// maxRequestBody ограничивает тело запроса (фото для ретуши приходят целиком в памяти).
const maxRequestBody = 20 << 20

// ServeHTTP позволяет смонтировать функцию в chi-роутер: запрос превращается в Event,
// Response пишется обратно в http.ResponseWriter.
func (f Function) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	ev, err := EventFromRequest(r)
	if err != nil {
		writeResponse(w, ErrorResponse(http.StatusRequestEntityTooLarge, err.Error()), f.Log)
		return
	}
	writeResponse(w, f.Invoke(r.Context(), ev), f.Log)
}

// EventFromRequest собирает Event из HTTP-запроса. Двоичные и multipart-тела кодируются в base64.
func EventFromRequest(r *http.Request) (Event, error) {
	ev := Event{
		HTTPMethod:            r.Method,
		Headers:               make(map[string]string, len(r.Header)),
		QueryStringParameters: make(map[string]string),
	}
	for name, values := range r.Header {
		if len(values) > 0 {
			ev.Headers[name] = values[0]
		}
	}
	for name, values := range r.URL.Query() {
		if len(values) > 0 {
			ev.QueryStringParameters[name] = values[0]
		}
	}

	ev.RequestContext.RequestID = middleware.GetReqID(r.Context())
	if ev.RequestContext.RequestID == "" {
		ev.RequestContext.RequestID = uuid.New().String()
	}

	if r.Body == nil {
		return ev, nil
	}
	body, err := io.ReadAll(io.LimitReader(r.Body, maxRequestBody+1))
	if err != nil {
		return ev, err
	}
	if len(body) > maxRequestBody {
		return ev, errBodyTooLarge
	}
	if isBinaryBody(r.Header.Get("Content-Type"), body) {
		ev.Body = base64.StdEncoding.EncodeToString(body)
		ev.IsBase64Encoded = true
	} else {
		ev.Body = string(body)
	}
	return ev, nil
}

type apiError string

func (e apiError) Error() string { return string(e) }

const errBodyTooLarge = apiError("Тело запроса слишком большое")

func isBinaryBody(contentType string, body []byte) bool {
	mediaType, _, err := mime.ParseMediaType(contentType)
	if err == nil && strings.HasPrefix(mediaType, "multipart/") {
		return true
	}
	return !utf8.Valid(body)
}

func writeResponse(w http.ResponseWriter, resp Response, log *zap.Logger) {
	for k, v := range resp.Headers {
		w.Header().Set(k, v)
	}
	body := []byte(resp.Body)
	if resp.IsBase64Encoded {
		decoded, err := base64.StdEncoding.DecodeString(resp.Body)
		if err != nil {
			if log != nil {
				log.Error("Некорректное base64-тело ответа", zap.Error(err))
			}
			w.WriteHeader(http.StatusInternalServerError)
			return
		}
		body = decoded
	}
	status := resp.StatusCode
	if status == 0 {
		status = http.StatusOK
	}
	w.WriteHeader(status)
	_, _ = w.Write(body)
}
