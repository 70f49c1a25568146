package models

import (
	"strings"
)

// ClientIdentity - данные отправителя из Telegram, по которым делается upsert клиента.
type ClientIdentity struct {
	TelegramID int64
	Username   string
	FirstName  string
	LastName   string
}

// FullName собирает отображаемое имя так же, как оно хранится в crm_clients.full_name.
func (ci ClientIdentity) FullName() string {
	return strings.TrimSpace(ci.FirstName + " " + ci.LastName)
}

// Client - клиент CRM (личный чат с ботом).
type Client struct {
	ID           int64    `json:"id"`
	TelegramID   int64    `json:"telegram_id"`
	Username     string   `json:"telegram_username"`
	FirstName    string   `json:"first_name"`
	LastName     string   `json:"last_name"`
	FullName     string   `json:"full_name"`
	Status       string   `json:"status"`
	FirstContact NullTime `json:"first_contact"`
	LastContact  NullTime `json:"last_contact"`
}

// ClientThread - клиент вместе с историей переписки для CRM-панели.
type ClientThread struct {
	Client
	MessageCount    int           `json:"message_count"`
	LastMessageTime NullTime      `json:"last_message_time"`
	Messages        []ChatMessage `json:"messages"`
}
