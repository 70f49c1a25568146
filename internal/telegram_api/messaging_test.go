package telegram_api

import (
	"errors"
	"testing"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
)

type recordingMessenger struct {
	sent []tgbotapi.Chattable
	err  error
}

func (r *recordingMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	r.sent = append(r.sent, c)
	return tgbotapi.Message{MessageID: len(r.sent)}, r.err
}

func (r *recordingMessenger) GetFileDirectURL(fileID string) (string, error) {
	return "https://api.telegram.org/file/botTOKEN/" + fileID, nil
}

func TestSendPhotoOmitsParseModeWithoutCaption(t *testing.T) {
	m := &recordingMessenger{}
	if _, err := SendPhoto(m, 10, "file-1", "", tgbotapi.ModeHTML); err != nil {
		t.Fatal(err)
	}
	photo, ok := m.sent[0].(tgbotapi.PhotoConfig)
	if !ok {
		t.Fatalf("sent %T, want PhotoConfig", m.sent[0])
	}
	if photo.ChatID != 10 || photo.ParseMode != "" {
		t.Fatalf("photo = chat %d parse mode %q", photo.ChatID, photo.ParseMode)
	}
}

func TestSendTextWrapsError(t *testing.T) {
	m := &recordingMessenger{err: errors.New("Bad Request: chat not found")}
	_, err := SendText(m, 5, "hi", "")
	if err == nil || !errors.Is(err, m.err) {
		t.Fatalf("err = %v", err)
	}
	if _, err := SendText(nil, 5, "hi", ""); err == nil {
		t.Fatal("expected error for nil messenger")
	}
}

func TestLargestPhotoID(t *testing.T) {
	if got := LargestPhotoID(nil); got != "" {
		t.Fatalf("got %q", got)
	}
	sizes := []tgbotapi.PhotoSize{{FileID: "small"}, {FileID: "medium"}, {FileID: "large"}}
	if got := LargestPhotoID(sizes); got != "large" {
		t.Fatalf("got %q", got)
	}
}

func TestParseUpdate(t *testing.T) {
	update, err := ParseUpdate([]byte(`{"update_id":7,"message":{"message_id":3,"text":"Здравствуйте","chat":{"id":42,"type":"private"},"from":{"id":42,"first_name":"Иван","username":"ivan"}}}`))
	if err != nil {
		t.Fatal(err)
	}
	if update.UpdateID != 7 || update.Message == nil || update.Message.From.UserName != "ivan" || update.Message.Chat.Type != "private" {
		t.Fatalf("unexpected update %+v", update)
	}

	empty, err := ParseUpdate([]byte("  "))
	if err != nil || empty.Message != nil {
		t.Fatalf("empty body: %+v, %v", empty, err)
	}
	if _, err := ParseUpdate([]byte("{")); err == nil {
		t.Fatal("expected error for broken JSON")
	}
}

func TestDocumentMIMEType(t *testing.T) {
	tests := map[string]string{"a.PNG": "image/png", "b.heic": "image/heic", "c.jpg": "image/jpeg", "noext": "image/jpeg"}
	for name, want := range tests {
		if got := DocumentMIMEType(name); got != want {
			t.Fatalf("DocumentMIMEType(%q) = %q; want %q", name, got, want)
		}
	}
}
