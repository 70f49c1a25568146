package handlers

import (
	"context"
	"strings"
	"testing"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

func TestIntakeStartSendsWelcome(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.handler.HandleIntakeUpdate(context.Background(), privateUpdate(5001, "", "Ира", "/start"))
	if err != nil || res != ResultCommand {
		t.Fatalf("got %q, %v", res, err)
	}
	texts := env.intake.texts()
	if len(texts) != 1 || !strings.Contains(texts[0].Text, "Добро пожаловать") || texts[0].ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("texts = %+v", texts)
	}
	if len(env.store.orders) != 0 {
		t.Fatal("/start must not create an order")
	}
}

func TestIntakePhotoCreatesOrder(t *testing.T) {
	env := newTestEnv(t)
	upd := privateUpdate(5002, "olga", "Ольга", "")
	upd.Message.Caption = "Нужен такой же памятник"
	upd.Message.Photo = []tgbotapi.PhotoSize{{FileID: "s"}, {FileID: "xl"}}

	res, err := env.handler.HandleIntakeUpdate(context.Background(), upd)
	if err != nil || res != ResultOrderCreated {
		t.Fatalf("got %q, %v", res, err)
	}
	if len(env.store.orders) != 1 {
		t.Fatalf("orders = %d", len(env.store.orders))
	}
	o := env.store.orders[0]
	if o.ChatID != 5002 || o.Message.String != "Нужен такой же памятник" || o.Username.String != "olga" || o.LastName.Valid {
		t.Fatalf("order = %+v", o)
	}
	if len(o.PhotoURLs) != 1 || !strings.HasSuffix(o.PhotoURLs[0], "/xl.jpg") {
		t.Fatalf("photo urls = %v", o.PhotoURLs)
	}
	texts := env.intake.texts()
	if len(texts) != 1 || !strings.Contains(texts[0].Text, "Заявка #1 принята") {
		t.Fatalf("confirmation = %+v", texts)
	}
	if len(env.bot.sent) != 0 {
		t.Fatal("intake flow must use its own bot")
	}
}

func TestIntakeEmptyMessageIgnored(t *testing.T) {
	env := newTestEnv(t)
	upd := privateUpdate(5003, "", "", "")
	res, err := env.handler.HandleIntakeUpdate(context.Background(), upd)
	if err != nil || res != ResultEmpty || len(env.store.orders) != 0 {
		t.Fatalf("got %q, %v, orders %d", res, err, len(env.store.orders))
	}
}

func TestIntakeNotConfigured(t *testing.T) {
	env := newTestEnv(t)
	env.handler.Deps.IntakeBot = nil
	if _, err := env.handler.HandleIntakeUpdate(context.Background(), privateUpdate(5004, "", "", "заявка")); err == nil {
		t.Fatal("expected error without intake bot")
	}
}
