package models

// TelegramOrder - заявка, оставленная через бота приёма заявок.
type TelegramOrder struct {
	ID            int64      `json:"id"`
	ChatID        int64      `json:"telegram_chat_id"`
	Username      NullString `json:"telegram_username"`
	FirstName     NullString `json:"telegram_first_name"`
	LastName      NullString `json:"telegram_last_name"`
	Message       NullString `json:"message"`
	PhotoURLs     []string   `json:"photo_urls"`
	Status        string     `json:"status"`
	AdminResponse NullString `json:"admin_response"`
	CreatedAt     NullTime   `json:"created_at"`
	UpdatedAt     NullTime   `json:"updated_at"`
}
