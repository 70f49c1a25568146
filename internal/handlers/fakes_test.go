package handlers

import (
	"context"
	"database/sql"
	"errors"
	"strings"
	"testing"
	"unicode/utf8"

	tgbotapi "github.com/OvyFlash/telegram-bot-api"
	"go.uber.org/zap"

	"granit/internal/config"
	"granit/internal/constants"
	"granit/internal/models"
)

type fakeStore struct {
	clients  []models.Client
	messages []models.ChatMessage
	orders   []models.TelegramOrder
	touched  []int64
	failAdd  error
}

func (s *fakeStore) find(match func(c models.Client) bool) (int, bool) {
	for i, c := range s.clients {
		if match(c) {
			return i, true
		}
	}
	return -1, false
}

func (s *fakeStore) UpsertClient(_ context.Context, ci models.ClientIdentity) (models.Client, bool, error) {
	if i, ok := s.find(func(c models.Client) bool { return c.TelegramID == ci.TelegramID }); ok {
		s.clients[i].Username = ci.Username
		s.clients[i].FullName = ci.FullName()
		return s.clients[i], false, nil
	}
	c := models.Client{
		ID:         int64(len(s.clients) + 1),
		TelegramID: ci.TelegramID,
		Username:   ci.Username,
		FirstName:  ci.FirstName,
		LastName:   ci.LastName,
		FullName:   ci.FullName(),
		Status:     constants.STATUS_NEW,
	}
	s.clients = append(s.clients, c)
	return c, true, nil
}

func (s *fakeStore) GetClientByTelegramID(_ context.Context, telegramID int64) (models.Client, error) {
	if i, ok := s.find(func(c models.Client) bool { return c.TelegramID == telegramID }); ok {
		return s.clients[i], nil
	}
	return models.Client{}, sql.ErrNoRows
}

func (s *fakeStore) GetClientByUsername(_ context.Context, username string) (models.Client, error) {
	username = strings.TrimPrefix(username, "@")
	if i, ok := s.find(func(c models.Client) bool { return c.Username != "" && strings.EqualFold(c.Username, username) }); ok {
		return s.clients[i], nil
	}
	return models.Client{}, sql.ErrNoRows
}

// GetLastActiveClient: последний добавленный/обновлённый считается самым свежим.
func (s *fakeStore) GetLastActiveClient(_ context.Context) (models.Client, error) {
	if len(s.clients) == 0 {
		return models.Client{}, sql.ErrNoRows
	}
	return s.clients[len(s.clients)-1], nil
}

func (s *fakeStore) TouchClient(_ context.Context, clientID int64) error {
	s.touched = append(s.touched, clientID)
	return nil
}

func (s *fakeStore) SetClientStatus(_ context.Context, telegramID int64, status string) (bool, error) {
	i, ok := s.find(func(c models.Client) bool { return c.TelegramID == telegramID })
	if !ok {
		return false, nil
	}
	s.clients[i].Status = status
	return true, nil
}

func (s *fakeStore) ListClientsByStatus(_ context.Context, status string) ([]models.Client, error) {
	var out []models.Client
	for _, c := range s.clients {
		if c.Status == status {
			out = append(out, c)
		}
	}
	return out, nil
}

func (s *fakeStore) AddChatMessage(_ context.Context, msg models.ChatMessage) (int64, error) {
	if s.failAdd != nil {
		return 0, s.failAdd
	}
	msg.ID = int64(len(s.messages) + 1)
	s.messages = append(s.messages, msg)
	return msg.ID, nil
}

func (s *fakeStore) CreateTelegramOrder(_ context.Context, o models.TelegramOrder) (int64, error) {
	o.ID = int64(len(s.orders) + 1)
	s.orders = append(s.orders, o)
	return o.ID, nil
}

type fakeMessenger struct {
	sent    []tgbotapi.Chattable
	sendErr error
	maxText int // 0 - без ограничения, иначе как sendMessage в Telegram
}

func (m *fakeMessenger) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if m.sendErr != nil {
		return tgbotapi.Message{}, m.sendErr
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok && m.maxText > 0 && utf8.RuneCountInString(msg.Text) > m.maxText {
		return tgbotapi.Message{}, &tgbotapi.Error{Code: 400, Message: "Bad Request: message is too long"}
	}
	m.sent = append(m.sent, c)
	return tgbotapi.Message{MessageID: len(m.sent)}, nil
}

func (m *fakeMessenger) GetFileDirectURL(fileID string) (string, error) {
	return "https://api.telegram.org/file/botTOKEN/photos/" + fileID + ".jpg", nil
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

func (m *fakeMessenger) photos() []tgbotapi.PhotoConfig {
	var out []tgbotapi.PhotoConfig
	for _, c := range m.sent {
		if p, ok := c.(tgbotapi.PhotoConfig); ok {
			out = append(out, p)
		}
	}
	return out
}

type fakeGuard struct {
	seen      map[int]bool
	forgotten []int
}

func (g *fakeGuard) FirstSeen(_ context.Context, _ string, updateID int) bool {
	if g.seen == nil {
		g.seen = map[int]bool{}
	}
	if g.seen[updateID] {
		return false
	}
	g.seen[updateID] = true
	return true
}

func (g *fakeGuard) Forget(_ context.Context, _ string, updateID int) {
	delete(g.seen, updateID)
	g.forgotten = append(g.forgotten, updateID)
}

const (
	testGroupID = int64(-1001234567890)
	testAdminID = int64(332684498)
)

type testEnv struct {
	handler *BotHandler
	store   *fakeStore
	bot     *fakeMessenger
	intake  *fakeMessenger
	guard   *fakeGuard
	cfg     *config.Config
}

func newTestEnv(t *testing.T) *testEnv {
	t.Helper()
	env := &testEnv{
		store:  &fakeStore{},
		bot:    &fakeMessenger{},
		intake: &fakeMessenger{},
		guard:  &fakeGuard{},
		cfg: &config.Config{
			ManagerChatID: testGroupID,
			CRMAdminID:    testAdminID,
			ReplyFallback: config.ReplyFallbackNone,
		},
	}
	env.handler = NewBotHandler(HandlerDependencies{
		Config:    env.cfg,
		Store:     env.store,
		Orders:    env.store,
		CRMBot:    env.bot,
		IntakeBot: env.intake,
		Guard:     env.guard,
		Log:       zap.NewNop(),
	})
	return env
}

var nextUpdateID = 1000

func privateUpdate(userID int64, username, firstName, text string) tgbotapi.Update {
	nextUpdateID++
	return tgbotapi.Update{
		UpdateID: nextUpdateID,
		Message: &tgbotapi.Message{
			MessageID: nextUpdateID,
			From:      &tgbotapi.User{ID: userID, UserName: username, FirstName: firstName},
			Chat:      tgbotapi.Chat{ID: userID, Type: constants.CHAT_TYPE_PRIVATE},
			Text:      text,
		},
	}
}

func groupReply(replied *tgbotapi.Message, text string) tgbotapi.Update {
	nextUpdateID++
	return tgbotapi.Update{
		UpdateID: nextUpdateID,
		Message: &tgbotapi.Message{
			MessageID:      nextUpdateID,
			From:           &tgbotapi.User{ID: 777, FirstName: "Менеджер"},
			Chat:           tgbotapi.Chat{ID: testGroupID, Type: constants.CHAT_TYPE_SUPERGROUP},
			Text:           text,
			ReplyToMessage: replied,
		},
	}
}

func botMessage(text string) *tgbotapi.Message {
	return &tgbotapi.Message{
		MessageID: 1,
		From:      &tgbotapi.User{ID: 1, IsBot: true, UserName: "granit_crm_bot"},
		Chat:      tgbotapi.Chat{ID: testGroupID, Type: constants.CHAT_TYPE_SUPERGROUP},
		Text:      text,
	}
}

var errBoom = errors.New("boom")
