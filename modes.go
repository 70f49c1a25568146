package main

import (
	"context"
	"encoding/json"
	"io"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/api"
	"granit/internal/telegram_api"
)

// invokeOnce выполняет одну функцию так, как её вызвала бы облачная платформа.
// Код возврата: 0 - ответ записан (любой statusCode), 2 - неизвестная функция или битое событие.
func invokeOnce(ctx context.Context, fns []api.Function, name string, in io.Reader, out io.Writer, zlog *zap.Logger) int {
	f, ok := api.FindFunction(fns, name)
	if !ok {
		zlog.Error("Неизвестная функция", zap.String("name", name))
		return 2
	}
	var ev api.Event
	if err := json.NewDecoder(in).Decode(&ev); err != nil {
		zlog.Error("Не удалось разобрать событие", zap.String("name", name), zap.Error(err))
		return 2
	}
	resp := f.Invoke(ctx, ev)
	enc := json.NewEncoder(out)
	enc.SetEscapeHTML(false)
	if err := enc.Encode(resp); err != nil {
		zlog.Error("Не удалось записать ответ", zap.Error(err))
		return 1
	}
	return 0
}

// cleanupStack закрывает ресурсы в обратном порядке. Повторный run ничего не делает.
type cleanupStack []func()

func (c *cleanupStack) push(f func()) { *c = append(*c, f) }

func (c *cleanupStack) run() {
	fns := *c
	*c = nil
	for i := len(fns) - 1; i >= 0; i-- {
		fns[i]()
	}
}

type updateFunc func(ctx context.Context, update tgbotapi.Update) (string, error)

// pollUpdates снимает вебхук и читает обновления через getUpdates до отмены ctx.
func pollUpdates(ctx context.Context, name string, bot *telegram_api.BotClient, handle updateFunc, zlog *zap.Logger) {
	log := zlog.With(zap.String("bot", name))
	if err := bot.DeleteWebhook(); err != nil {
		log.Error("Не удалось снять вебхук, опрос не запущен", zap.Error(err))
		return
	}

	u := tgbotapi.NewUpdate(0)
	u.Timeout = 60
	updates := bot.GetUpdatesChan(u)
	log.Info("Опрос обновлений запущен")

	for {
		select {
		case <-ctx.Done():
			bot.StopReceivingUpdates()
			return
		case update, ok := <-updates:
			if !ok {
				return
			}
			result, err := handle(ctx, update)
			if err != nil {
				log.Error("Ошибка обработки обновления", zap.Int("update_id", update.UpdateID), zap.Error(err))
				continue
			}
			log.Debug("Обновление обработано", zap.Int("update_id", update.UpdateID), zap.String("result", result))
		}
	}
}
