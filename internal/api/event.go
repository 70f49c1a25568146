package api

import (
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"net/http"
	"runtime/debug"
	"strings"

	"go.uber.org/zap"
)

// Event - входящий запрос в формате облачной функции.
type Event struct {
	HTTPMethod            string            `json:"httpMethod"`
	Headers               map[string]string `json:"headers"`
	QueryStringParameters map[string]string `json:"queryStringParameters"`
	Body                  string            `json:"body"`
	IsBase64Encoded       bool              `json:"isBase64Encoded"`
	RequestContext        RequestContext    `json:"requestContext"`
}

// RequestContext - служебные данные запроса.
type RequestContext struct {
	RequestID string `json:"requestId"`
}

// Response - ответ облачной функции.
type Response struct {
	StatusCode      int               `json:"statusCode"`
	Headers         map[string]string `json:"headers"`
	Body            string            `json:"body"`
	IsBase64Encoded bool              `json:"isBase64Encoded"`
}

// Header возвращает заголовок без учёта регистра имени.
func (e Event) Header(name string) string {
	if v, ok := e.Headers[name]; ok {
		return v
	}
	for k, v := range e.Headers {
		if strings.EqualFold(k, name) {
			return v
		}
	}
	return ""
}

// Query возвращает параметр строки запроса.
func (e Event) Query(name string) string {
	return e.QueryStringParameters[name]
}

// RawBody возвращает тело запроса, декодируя base64 при необходимости.
func (e Event) RawBody() ([]byte, error) {
	if !e.IsBase64Encoded {
		return []byte(e.Body), nil
	}
	data, err := base64.StdEncoding.DecodeString(e.Body)
	if err != nil {
		return nil, fmt.Errorf("некорректное base64-тело запроса: %w", err)
	}
	return data, nil
}

// DecodeJSON разбирает JSON-тело. Пустое тело считается пустым объектом.
func (e Event) DecodeJSON(v any) error {
	body, err := e.RawBody()
	if err != nil {
		return err
	}
	if len(strings.TrimSpace(string(body))) == 0 {
		return nil
	}
	return json.Unmarshal(body, v)
}

// HandlerFunc обрабатывает событие. Возвращённая ошибка превращается в 500.
type HandlerFunc func(ctx context.Context, ev Event) (Response, error)

// Function - одна облачная функция: имя (оно же путь), методы и обработчик.
type Function struct {
	Name         string
	Methods      []string
	AllowHeaders string
	Handler      HandlerFunc
	Log          *zap.Logger
}

const defaultAllowHeaders = "Content-Type"

func (f Function) allows(method string) bool {
	for _, m := range f.Methods {
		if m == method {
			return true
		}
	}
	return false
}

// Invoke выполняет функцию с общими правилами: OPTIONS, 405, CORS, ошибки и паники -> 500.
func (f Function) Invoke(ctx context.Context, ev Event) (resp Response) {
	log := f.Log
	if log == nil {
		log = zap.NewNop()
	}
	method := strings.ToUpper(ev.HTTPMethod)
	if method == "" {
		method = http.MethodPost
	}

	if method == http.MethodOptions {
		allowHeaders := f.AllowHeaders
		if allowHeaders == "" {
			allowHeaders = defaultAllowHeaders
		}
		return Response{
			StatusCode: http.StatusOK,
			Headers: map[string]string{
				"Access-Control-Allow-Origin":  "*",
				"Access-Control-Allow-Methods": strings.Join(append(append([]string{}, f.Methods...), http.MethodOptions), ", "),
				"Access-Control-Allow-Headers": allowHeaders,
				"Access-Control-Max-Age":       "86400",
			},
		}
	}
	if !f.allows(method) {
		return ErrorResponse(http.StatusMethodNotAllowed, "Method not allowed")
	}

	defer func() {
		if rec := recover(); rec != nil {
			log.Error("Паника в обработчике",
				zap.String("function", f.Name),
				zap.String("request_id", ev.RequestContext.RequestID),
				zap.Any("panic", rec),
				zap.ByteString("stack", debug.Stack()))
			resp = ErrorResponse(http.StatusInternalServerError, fmt.Sprint(rec))
		}
	}()

	ev.HTTPMethod = method
	resp, err := f.Handler(ctx, ev)
	if err != nil {
		log.Error("Ошибка обработчика",
			zap.String("function", f.Name),
			zap.String("request_id", ev.RequestContext.RequestID),
			zap.Error(err))
		return ErrorResponse(http.StatusInternalServerError, err.Error())
	}
	if resp.Headers == nil {
		resp.Headers = map[string]string{}
	}
	resp.Headers["Access-Control-Allow-Origin"] = "*"
	return resp
}

// JSONResponse сериализует v в тело ответа.
func JSONResponse(status int, v any) Response {
	body, err := json.Marshal(v)
	if err != nil {
		status = http.StatusInternalServerError
		body = []byte(`{"error":"ошибка сериализации ответа"}`)
	}
	return Response{
		StatusCode: status,
		Headers: map[string]string{
			"Content-Type":                "application/json",
			"Access-Control-Allow-Origin": "*",
		},
		Body: string(body),
	}
}

// ErrorResponse - {"error": message} с нужным статусом.
func ErrorResponse(status int, message string) Response {
	return JSONResponse(status, map[string]string{"error": message})
}

// BinaryResponse возвращает двоичные данные в base64.
func BinaryResponse(contentType string, data []byte, cacheControl string) Response {
	headers := map[string]string{
		"Content-Type":                contentType,
		"Access-Control-Allow-Origin": "*",
	}
	if cacheControl != "" {
		headers["Cache-Control"] = cacheControl
	}
	return Response{
		StatusCode:      http.StatusOK,
		Headers:         headers,
		Body:            base64.StdEncoding.EncodeToString(data),
		IsBase64Encoded: true,
	}
}
