package db

import (
	"context"
	"fmt"

	"github.com/lib/pq"
	"go.uber.org/zap"

	"granit/internal/constants"
	"granit/internal/models"
)

// CreateTelegramOrder сохраняет заявку из бота приёма заявок со статусом new.
func (s *Store) CreateTelegramOrder(ctx context.Context, o models.TelegramOrder) (int64, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (telegram_chat_id, telegram_username, telegram_first_name, telegram_last_name,
                        message, photo_urls, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id`, s.table("telegram_orders"))

	photos := o.PhotoURLs
	if photos == nil {
		photos = []string{}
	}
	var id int64
	err := s.DB.QueryRowContext(ctx, query,
		o.ChatID, o.Username, o.FirstName, o.LastName, o.Message, pq.Array(photos), constants.ORDER_STATUS_NEW,
	).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("сохранение заявки из чата %d: %w", o.ChatID, err)
	}
	s.log.Info("Заявка из Telegram сохранена", zap.Int64("order_id", id), zap.Int64("chat_id", o.ChatID), zap.Int("photos", len(photos)))
	return id, nil
}

// ListTelegramOrders возвращает последние заявки; status "all" или пустой - без фильтра.
func (s *Store) ListTelegramOrders(ctx context.Context, status string, limit int) ([]models.TelegramOrder, error) {
	if limit <= 0 {
		limit = constants.ORDERS_PAGE_LIMIT
	}
	query := fmt.Sprintf(`
        SELECT id, telegram_chat_id, telegram_username, telegram_first_name, telegram_last_name,
               message, photo_urls, status, admin_response, created_at, updated_at
        FROM %s`, s.table("telegram_orders"))
	args := []any{}
	if status != "" && status != constants.ORDER_STATUS_ALL {
		query += " WHERE status = $1"
		args = append(args, status)
	}
	query += fmt.Sprintf(" ORDER BY created_at DESC LIMIT %d", limit)

	rows, err := s.DB.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, fmt.Errorf("список заявок: %w", err)
	}
	defer rows.Close()

	orders := []models.TelegramOrder{}
	for rows.Next() {
		var o models.TelegramOrder
		var photos pq.StringArray
		if errScan := rows.Scan(&o.ID, &o.ChatID, &o.Username, &o.FirstName, &o.LastName,
			&o.Message, &photos, &o.Status, &o.AdminResponse, &o.CreatedAt, &o.UpdatedAt); errScan != nil {
			return nil, fmt.Errorf("сканирование заявки: %w", errScan)
		}
		o.PhotoURLs = []string(photos)
		if o.PhotoURLs == nil {
			o.PhotoURLs = []string{}
		}
		orders = append(orders, o)
	}
	return orders, rows.Err()
}

// GetTelegramOrderChatID возвращает чат заявки или sql.ErrNoRows.
func (s *Store) GetTelegramOrderChatID(ctx context.Context, orderID int64) (int64, error) {
	var chatID int64
	err := s.DB.QueryRowContext(ctx, fmt.Sprintf(`SELECT telegram_chat_id FROM %s WHERE id = $1`, s.table("telegram_orders")), orderID).Scan(&chatID)
	return chatID, err
}

// UpdateTelegramOrderReply фиксирует ответ администратора и новый статус.
func (s *Store) UpdateTelegramOrderReply(ctx context.Context, orderID int64, status, response string) error {
	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(`
        UPDATE %s
        SET status = $1, admin_response = $2, updated_at = NOW()
        WHERE id = $3`, s.table("telegram_orders")), status, response, orderID)
	if err != nil {
		return fmt.Errorf("обновление заявки %d: %w", orderID, err)
	}
	return nil
}
