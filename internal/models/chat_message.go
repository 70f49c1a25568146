package models

import "time"

// ChatMessage - сообщение переписки клиента с менеджерами.
type ChatMessage struct {
	ID           int64      `json:"id"`
	ClientID     int64      `json:"-"`
	SenderID     int64      `json:"-"` // Telegram id отправителя: клиента или менеджера
	Message      string     `json:"message_text"`
	IsFromClient bool       `json:"is_from_client"`
	PhotoFileID  NullString `json:"photo_file_id"`
	CreatedAt    time.Time  `json:"created_at"`
}
