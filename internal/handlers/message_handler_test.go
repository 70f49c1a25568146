package handlers

import (
	"context"
	"errors"
	"html"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"

	"granit/internal/config"
	"granit/internal/constants"
	"granit/internal/formatters"
	"granit/internal/models"
)

func TestClientFirstMessageIsStoredWelcomedAndForwarded(t *testing.T) {
	env := newTestEnv(t)
	ctx := context.Background()

	res, err := env.handler.HandleUpdate(ctx, privateUpdate(555000111, "ivan", "Иван", "Сколько стоит <гранит>?"))
	if err != nil {
		t.Fatalf("HandleUpdate: %v", err)
	}
	if res != ResultReceived {
		t.Fatalf("result = %q", res)
	}
	if len(env.store.clients) != 1 || len(env.store.messages) != 1 {
		t.Fatalf("clients=%d messages=%d", len(env.store.clients), len(env.store.messages))
	}
	if m := env.store.messages[0]; !m.IsFromClient || m.Message != "Сколько стоит <гранит>?" || m.SenderID != 555000111 {
		t.Fatalf("stored message = %+v", m)
	}

	texts := env.bot.texts()
	if len(texts) != 2 {
		t.Fatalf("sent %d texts, want welcome + forward", len(texts))
	}
	if texts[0].ChatID != 555000111 || !strings.Contains(texts[0].Text, "Привет, Иван!") {
		t.Fatalf("welcome = %+v", texts[0])
	}
	forward := texts[1]
	if forward.ChatID != testGroupID || forward.ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("forward chat=%d mode=%q", forward.ChatID, forward.ParseMode)
	}
	if !strings.Contains(forward.Text, "<code>555000111</code>") || !strings.Contains(forward.Text, "&lt;гранит&gt;") {
		t.Fatalf("forward text:\n%s", forward.Text)
	}

	// Второе сообщение: без приветствия.
	if _, err := env.handler.HandleUpdate(ctx, privateUpdate(555000111, "ivan", "Иван", "Ещё вопрос")); err != nil {
		t.Fatal(err)
	}
	if got := len(env.bot.texts()); got != 3 {
		t.Fatalf("sent %d texts after second message, want 3", got)
	}
}

func TestBareStartIsNotForwarded(t *testing.T) {
	env := newTestEnv(t)
	for _, text := range []string{"/start", "/start site"} {
		if _, err := env.handler.HandleUpdate(context.Background(), privateUpdate(42424242, "", "Анна", text)); err != nil {
			t.Fatal(err)
		}
	}
	for _, msg := range env.bot.texts() {
		if msg.ChatID == testGroupID {
			t.Fatalf("/start was forwarded: %s", msg.Text)
		}
	}
	// Приветствие на каждый /start.
	if got := len(env.bot.texts()); got != 2 {
		t.Fatalf("sent %d welcomes, want 2", got)
	}
	if len(env.store.messages) != 2 {
		t.Fatalf("history must keep /start messages, got %d", len(env.store.messages))
	}
}

func TestClientPhotoForwarding(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients, models.Client{ID: 1, TelegramID: 900100, Status: constants.STATUS_NEW})

	upd := privateUpdate(900100, "petr", "Пётр", "")
	upd.Message.Caption = "Вот фото"
	upd.Message.Photo = []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "large"}}
	if _, err := env.handler.HandleUpdate(context.Background(), upd); err != nil {
		t.Fatal(err)
	}
	photos := env.bot.photos()
	if len(photos) != 1 {
		t.Fatalf("sent %d photos", len(photos))
	}
	if photos[0].File != tgbotapi.FileID("large") || !strings.Contains(photos[0].Caption, "Вот фото") || photos[0].ParseMode != tgbotapi.ModeHTML {
		t.Fatalf("photo = %+v", photos[0])
	}
	if got := env.store.messages[0].PhotoFileID.String; got != "large" {
		t.Fatalf("stored photo id = %q", got)
	}
}

func TestClientPhotoWithLongTextSplitsForward(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients, models.Client{ID: 1, TelegramID: 900200})

	upd := privateUpdate(900200, "petr", "Пётр", "")
	upd.Message.Caption = strings.Repeat("т", constants.PHOTO_CAPTION_SAFE_LIMIT)
	upd.Message.Photo = []tgbotapi.PhotoSize{{FileID: "p1"}}
	if _, err := env.handler.HandleUpdate(context.Background(), upd); err != nil {
		t.Fatal(err)
	}
	texts, photos := env.bot.texts(), env.bot.photos()
	if len(texts) != 1 || len(photos) != 1 {
		t.Fatalf("texts=%d photos=%d", len(texts), len(photos))
	}
	if _, ok := env.bot.sent[0].(tgbotapi.MessageConfig); !ok {
		t.Fatal("text must be sent before the photo")
	}
	if !strings.HasPrefix(photos[0].Caption, formatters.ClientPhotoCaption) {
		t.Fatalf("caption = %q", photos[0].Caption)
	}
	if id, ok := formatters.ExtractClientID(photos[0].Caption); !ok || id != 900200 {
		t.Fatal("short caption must keep the client id for replies")
	}
}

func TestManagerReplyResolvedByID(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients, models.Client{ID: 7, TelegramID: 123456789, Username: "ivan"})

	replied := botMessage("📩 Новое сообщение от клиента\n\n👤 Имя: Иван\n🆔 ID: 123456789\n📱 Username: @ivan")
	res, err := env.handler.HandleUpdate(context.Background(), groupReply(replied, "Здравствуйте! <b>не разметка</b>"))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultReplySent {
		t.Fatalf("result = %q", res)
	}
	texts := env.bot.texts()
	if len(texts) != 1 || texts[0].ChatID != 123456789 || texts[0].ParseMode != "" {
		t.Fatalf("reply = %+v", texts)
	}
	if texts[0].Text != "Здравствуйте! <b>не разметка</b>" {
		t.Fatalf("manager text changed: %q", texts[0].Text)
	}
	if len(env.store.messages) != 1 || env.store.messages[0].IsFromClient || env.store.messages[0].SenderID != 777 {
		t.Fatalf("stored = %+v", env.store.messages)
	}
	if len(env.store.touched) != 1 || env.store.touched[0] != 7 {
		t.Fatalf("touched = %v", env.store.touched)
	}
}

func TestManagerReplyToFolderListIsNotDelivered(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ReplyFallback = config.ReplyFallbackLastClient
	clients := []models.Client{
		{ID: 1, TelegramID: 111111, FullName: "Иван", Username: "ivan", Status: constants.STATUS_NEW},
		{ID: 2, TelegramID: 222222, FullName: "Анна", Username: "anna", Status: constants.STATUS_NEW},
	}
	env.store.clients = append(env.store.clients, clients...)

	replied := botMessage(formatters.FormatFolderList(constants.STATUS_NEW, clients))
	res, err := env.handler.HandleUpdate(context.Background(), groupReply(replied, "Коллеги, кто берёт второго?"))
	if err != nil {
		t.Fatal(err)
	}
	if res != ResultNoClient {
		t.Fatalf("result = %q", res)
	}
	if len(env.bot.sent) != 0 || len(env.store.messages) != 0 {
		t.Fatalf("sent=%d stored=%d", len(env.bot.sent), len(env.store.messages))
	}
}

func TestManagerReplyWithSeveralUsernamesIsNotDelivered(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients,
		models.Client{ID: 1, TelegramID: 111111, Username: "ivan"},
		models.Client{ID: 2, TelegramID: 222222, Username: "anna"})

	replied := botMessage("Сегодня писали @ivan и @anna")
	res, err := env.handler.HandleUpdate(context.Background(), groupReply(replied, "Беру"))
	if err != nil || res != ResultNoClient {
		t.Fatalf("res=%q err=%v", res, err)
	}
	if len(env.bot.sent) != 0 {
		t.Fatalf("sent = %d", len(env.bot.sent))
	}
}

func TestManagerReplyFailureStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients, models.Client{ID: 7, TelegramID: 123456789})
	env.bot.sendErr = errBoom

	replied := botMessage("🆔 ID: 123456789")
	if _, err := env.handler.HandleUpdate(context.Background(), groupReply(replied, "Готово")); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
	if len(env.store.messages) != 0 || len(env.store.touched) != 0 {
		t.Fatalf("stored=%d touched=%v", len(env.store.messages), env.store.touched)
	}
}

func TestManagerReplyToUnknownIDStillDelivered(t *testing.T) {
	env := newTestEnv(t)
	replied := botMessage("🆔 ID: 31337000")
	if _, err := env.handler.HandleUpdate(context.Background(), groupReply(replied, "Ответ")); err != nil {
		t.Fatal(err)
	}
	if texts := env.bot.texts(); len(texts) != 1 || texts[0].ChatID != 31337000 {
		t.Fatalf("reply = %+v", texts)
	}
	if len(env.store.messages) != 0 {
		t.Fatal("no client row, nothing must be persisted")
	}
}

func TestManagerReplyResolvedByUsernameAndCaption(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients, models.Client{ID: 3, TelegramID: 600600, Username: "Maria_K"})

	replied := botMessage("")
	replied.Caption = "📩 Новое сообщение\n\n👤 Мария\n🆔 @maria_k\n💬 фото"
	upd := groupReply(replied, "")
	upd.Message.Photo = []tgbotapi.PhotoSize{{FileID: "mgr-photo"}}
	upd.Message.Caption = "Эскиз"
	if _, err := env.handler.HandleUpdate(context.Background(), upd); err != nil {
		t.Fatal(err)
	}
	photos := env.bot.photos()
	if len(photos) != 1 || photos[0].ChatID != 600600 || photos[0].Caption != "Эскиз" || photos[0].ParseMode != "" {
		t.Fatalf("photos = %+v", photos)
	}
	if env.store.messages[0].Message != "Эскиз" || env.store.messages[0].PhotoFileID.String != "mgr-photo" {
		t.Fatalf("stored = %+v", env.store.messages[0])
	}
}

func TestManagerReplyFallbackToLastClient(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients,
		models.Client{ID: 1, TelegramID: 100001},
		models.Client{ID: 2, TelegramID: 100002},
	)
	replied := botMessage("Сообщение без метки")

	res, err := env.handler.HandleUpdate(context.Background(), groupReply(replied, "Ответ"))
	if err != nil || res != ResultNoClient || len(env.bot.sent) != 0 {
		t.Fatalf("fallback off: res=%q err=%v sent=%d", res, err, len(env.bot.sent))
	}

	env.cfg.ReplyFallback = config.ReplyFallbackLastClient
	if _, err := env.handler.HandleUpdate(context.Background(), groupReply(replied, "Ответ")); err != nil {
		t.Fatal(err)
	}
	if texts := env.bot.texts(); len(texts) != 1 || texts[0].ChatID != 100002 {
		t.Fatalf("reply = %+v", texts)
	}
}

func TestManagerGroupChatterIsIgnored(t *testing.T) {
	env := newTestEnv(t)
	env.cfg.ReplyFallback = config.ReplyFallbackLastClient
	env.store.clients = append(env.store.clients, models.Client{ID: 1, TelegramID: 100001})

	plain := groupReply(nil, "всем привет")
	if res, _ := env.handler.HandleUpdate(context.Background(), plain); res != ResultNotReply {
		t.Fatalf("result = %q", res)
	}

	colleague := &tgbotapi.Message{From: &tgbotapi.User{ID: 778}, Text: "🆔 ID: 100001"}
	if res, _ := env.handler.HandleUpdate(context.Background(), groupReply(colleague, "согласен")); res != ResultNoClient {
		t.Fatalf("reply to colleague result = %q", res)
	}

	empty := groupReply(botMessage("🆔 ID: 100001"), "")
	if res, _ := env.handler.HandleUpdate(context.Background(), empty); res != ResultEmpty {
		t.Fatalf("empty result = %q", res)
	}
	if len(env.bot.sent) != 0 {
		t.Fatalf("nothing must be sent, got %d", len(env.bot.sent))
	}
}

func TestOtherGroupsAndBotsAreIgnored(t *testing.T) {
	env := newTestEnv(t)

	upd := privateUpdate(1, "", "", "hello")
	upd.Message.Chat = tgbotapi.Chat{ID: -42, Type: constants.CHAT_TYPE_GROUP}
	if res, err := env.handler.HandleUpdate(context.Background(), upd); err != nil || res != ResultIgnored {
		t.Fatalf("foreign group: %q %v", res, err)
	}

	botUpd := privateUpdate(2, "", "", "hello")
	botUpd.Message.From.IsBot = true
	if res, _ := env.handler.HandleUpdate(context.Background(), botUpd); res != ResultIgnored {
		t.Fatalf("bot sender: %q", res)
	}
	if len(env.store.clients) != 0 || len(env.bot.sent) != 0 {
		t.Fatal("ignored updates must not touch store or bot")
	}
}

func TestUpdateWithoutMessage(t *testing.T) {
	env := newTestEnv(t)
	res, err := env.handler.HandleUpdate(context.Background(), tgbotapi.Update{UpdateID: 1})
	if err != nil || res != "" {
		t.Fatalf("got %q, %v", res, err)
	}
}

func TestDuplicateUpdateIsDropped(t *testing.T) {
	env := newTestEnv(t)
	upd := privateUpdate(555, "", "Олег", "Привет")
	if _, err := env.handler.HandleUpdate(context.Background(), upd); err != nil {
		t.Fatal(err)
	}
	res, err := env.handler.HandleUpdate(context.Background(), upd)
	if err != nil || res != ResultDuplicate {
		t.Fatalf("second delivery: %q %v", res, err)
	}
	if len(env.store.messages) != 1 {
		t.Fatalf("messages = %d", len(env.store.messages))
	}
}

func TestFailedUpdateIsReleasedForRetry(t *testing.T) {
	env := newTestEnv(t)
	env.bot.sendErr = errBoom
	upd := privateUpdate(556, "", "Олег", "Привет")

	_, err := env.handler.HandleUpdate(context.Background(), upd)
	if !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
	if len(env.guard.forgotten) != 1 || env.guard.forgotten[0] != upd.UpdateID {
		t.Fatalf("forgotten = %v", env.guard.forgotten)
	}

	env.bot.sendErr = nil
	if res, err := env.handler.HandleUpdate(context.Background(), upd); err != nil || res != ResultReceived {
		t.Fatalf("retry: %q %v", res, err)
	}
	if len(env.store.messages) != 1 {
		t.Fatalf("retry must store exactly one row, got %d", len(env.store.messages))
	}
}

func TestStoreErrorIsReturned(t *testing.T) {
	env := newTestEnv(t)
	env.store.failAdd = errBoom
	if _, err := env.handler.HandleUpdate(context.Background(), privateUpdate(557, "", "", "x")); !errors.Is(err, errBoom) {
		t.Fatalf("err = %v", err)
	}
}

func TestFailedForwardStoresNothing(t *testing.T) {
	env := newTestEnv(t)
	env.store.clients = append(env.store.clients, models.Client{ID: 4, TelegramID: 558})
	env.bot.sendErr = errBoom
	upd := privateUpdate(558, "", "Олег", "Сколько стоит гравировка?")

	for i := 0; i < 3; i++ {
		if _, err := env.handler.HandleUpdate(context.Background(), upd); !errors.Is(err, errBoom) {
			t.Fatalf("attempt %d: err = %v", i, err)
		}
	}
	if len(env.store.messages) != 0 {
		t.Fatalf("failed deliveries must not be stored, got %d rows", len(env.store.messages))
	}

	env.bot.sendErr = nil
	if res, err := env.handler.HandleUpdate(context.Background(), upd); err != nil || res != ResultReceived {
		t.Fatalf("retry: %q %v", res, err)
	}
	if len(env.store.messages) != 1 {
		t.Fatalf("messages = %d", len(env.store.messages))
	}
}

func TestLongClientMessageIsSplit(t *testing.T) {
	env := newTestEnv(t)
	env.bot.maxText = 4096
	env.store.clients = append(env.store.clients, models.Client{ID: 5, TelegramID: 900300})

	long := strings.Repeat("я", 3000) + " " + strings.Repeat("<>", 500)
	upd := privateUpdate(900300, "dlinniy", "Мария", long)
	res, err := env.handler.HandleUpdate(context.Background(), upd)
	if err != nil || res != ResultReceived {
		t.Fatalf("res=%q err=%v", res, err)
	}

	texts := env.bot.texts()
	if len(texts) < 3 {
		t.Fatalf("expected client card plus at least two parts, got %d messages", len(texts))
	}
	var joined strings.Builder
	for i, msg := range texts {
		if n := utf8.RuneCountInString(msg.Text); n > 4096 {
			t.Fatalf("message %d is %d runes", i, n)
		}
		if msg.ChatID != testGroupID || msg.ParseMode != tgbotapi.ModeHTML {
			t.Fatalf("message %d: chat=%d mode=%q", i, msg.ChatID, msg.ParseMode)
		}
		if id, ok := formatters.ExtractClientID(msg.Text); !ok || id != 900300 {
			t.Fatalf("message %d has no client id marker", i)
		}
		if i > 0 {
			_, body, _ := strings.Cut(msg.Text, "\n")
			joined.WriteString(body)
		}
	}
	if got := html.UnescapeString(joined.String()); got != long {
		t.Fatalf("parts do not add up to the original text (%d vs %d runes)", utf8.RuneCountInString(got), utf8.RuneCountInString(long))
	}
	if len(env.store.messages) != 1 || env.store.messages[0].Message != long {
		t.Fatalf("stored rows = %d", len(env.store.messages))
	}
}
