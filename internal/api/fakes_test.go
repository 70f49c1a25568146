package api

import (
	"context"
	"database/sql"
	"testing"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/config"
	"granit/internal/models"
)

type fakeStore struct {
	threads  []models.ClientThread
	messages []models.ChatMessage
	touched  []int64
	orders   []models.TelegramOrder
	replies  map[int64]string
	statuses map[int64]string
	listArgs []string
}

func (s *fakeStore) GetClientThreads(_ context.Context) ([]models.ClientThread, error) {
	return s.threads, nil
}

func (s *fakeStore) GetClientByTelegramID(_ context.Context, telegramID int64) (models.Client, error) {
	for _, t := range s.threads {
		if t.TelegramID == telegramID {
			return t.Client, nil
		}
	}
	return models.Client{}, sql.ErrNoRows
}

func (s *fakeStore) AddChatMessage(_ context.Context, msg models.ChatMessage) (int64, error) {
	msg.ID = int64(len(s.messages) + 1)
	s.messages = append(s.messages, msg)
	return msg.ID, nil
}

func (s *fakeStore) TouchClient(_ context.Context, clientID int64) error {
	s.touched = append(s.touched, clientID)
	return nil
}

func (s *fakeStore) ListTelegramOrders(_ context.Context, status string, _ int) ([]models.TelegramOrder, error) {
	s.listArgs = append(s.listArgs, status)
	return s.orders, nil
}

func (s *fakeStore) GetTelegramOrderChatID(_ context.Context, orderID int64) (int64, error) {
	for _, o := range s.orders {
		if o.ID == orderID {
			return o.ChatID, nil
		}
	}
	return 0, sql.ErrNoRows
}

func (s *fakeStore) UpdateTelegramOrderReply(_ context.Context, orderID int64, status, response string) error {
	if s.replies == nil {
		s.replies = map[int64]string{}
		s.statuses = map[int64]string{}
	}
	s.replies[orderID] = response
	s.statuses[orderID] = status
	return nil
}

type fakeMessenger struct {
	sent    []tgbotapi.Chattable
	sendErr error
	fileURL string
}

func (m *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *fakeMessenger) GetFileDirectURL(fileID string) (string, error) {
	return m.fileURL, nil
}

func (m *fakeMessenger) texts() []tgbotapi.MessageConfig {
	var out []tgbotapi.MessageConfig
	for _, c := range m.sent {
		if msg, ok := c.(tgbotapi.MessageConfig); ok {
			out = append(out, msg)
		}
	}
	return out
}

func (m *fakeMessenger) documents() []tgbotapi.DocumentConfig {
	var out []tgbotapi.DocumentConfig
	for _, c := range m.sent {
		if d, ok := c.(tgbotapi.DocumentConfig); ok {
			out = append(out, d)
		}
	}
	return out
}

const (
	testManagerChat = int64(-1009876543210)
	testRetouchChat = int64(-1005550001111)
)

type apiEnv struct {
	store  *fakeStore
	crm    *fakeMessenger
	intake *fakeMessenger
	cfg    *config.Config
	fns    []Function
}

func newAPIEnv(t *testing.T, mutate func(cfg *config.Config)) *apiEnv {
	t.Helper()
	env := &apiEnv{
		store:  &fakeStore{},
		crm:    &fakeMessenger{},
		intake: &fakeMessenger{},
		cfg: &config.Config{
			ManagerChatID: testManagerChat,
			RetouchChatID: testRetouchChat,
			BotUsername:   "granit_crm_bot",
		},
	}
	if mutate != nil {
		mutate(env.cfg)
	}
	env.fns = Functions(ApiDependencies{
		Config:    env.cfg,
		Store:     env.store,
		CRMBot:    env.crm,
		IntakeBot: env.intake,
		Log:       zap.NewNop(),
	})
	return env
}

func (env *apiEnv) invoke(t *testing.T, name string, ev Event) Response {
	t.Helper()
	f, ok := FindFunction(env.fns, name)
	if !ok {
		t.Fatalf("функция %q не зарегистрирована", name)
	}
	return f.Invoke(context.Background(), ev)
}

func jsonEvent(method, body string) Event {
	return Event{
		HTTPMethod: method,
		Headers:    map[string]string{"Content-Type": "application/json"},
		Body:       body,
	}
}
