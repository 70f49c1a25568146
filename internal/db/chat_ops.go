package db

import (
	"context"
	"fmt"

	"go.uber.org/zap"

	"granit/internal/constants"
	"granit/internal/models"
)

// AddChatMessage сохраняет сообщение переписки. SenderID - Telegram id клиента
// или менеджера, ответившего из группы.
func (s *Store) AddChatMessage(ctx context.Context, msg models.ChatMessage) (int64, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (client_id, telegram_id, message_text, is_from_client, photo_file_id, created_at)
        VALUES ($1, $2, $3, $4, $5, NOW())
        RETURNING id`, s.table("crm_messages"))

	var id int64
	err := s.DB.QueryRowContext(ctx, query, msg.ClientID, msg.SenderID, msg.Message, msg.IsFromClient, msg.PhotoFileID).Scan(&id)
	if err != nil {
		s.log.Error("AddChatMessage: ошибка добавления сообщения", zap.Int64("client_id", msg.ClientID), zap.Error(err))
		return 0, fmt.Errorf("сохранение сообщения клиента %d: %w", msg.ClientID, err)
	}
	s.log.Debug("Сообщение сохранено", zap.Int64("message_id", id), zap.Int64("client_id", msg.ClientID), zap.Bool("from_client", msg.IsFromClient))
	return id, nil
}

// GetClientThreads возвращает клиентов (свежие сверху) с их перепиской (новые сообщения первыми).
// message_count - полное число сообщений, а в Messages только последние THREAD_MESSAGES_LIMIT.
func (s *Store) GetClientThreads(ctx context.Context) ([]models.ClientThread, error) {
	clientsQuery := fmt.Sprintf(`
        SELECT c.id, c.telegram_id, c.telegram_username, c.first_name, c.last_name, c.full_name, c.status,
               c.first_contact, c.last_contact, COUNT(m.id), MAX(m.created_at)
        FROM %s c
        LEFT JOIN %s m ON m.client_id = c.id
        GROUP BY c.id
        ORDER BY c.last_contact DESC NULLS LAST`, s.table("crm_clients"), s.table("crm_messages"))

	rows, err := s.DB.QueryContext(ctx, clientsQuery)
	if err != nil {
		return nil, fmt.Errorf("список клиентов CRM: %w", err)
	}
	defer rows.Close()

	var threads []models.ClientThread
	index := make(map[int64]int)
	for rows.Next() {
		var t models.ClientThread
		c, errScan := scanClient(rows, &t.MessageCount, &t.LastMessageTime)
		if errScan != nil {
			return nil, fmt.Errorf("сканирование клиента CRM: %w", errScan)
		}
		t.Client = c
		t.Messages = []models.ChatMessage{}
		index[c.ID] = len(threads)
		threads = append(threads, t)
	}
	if err := rows.Err(); err != nil {
		return nil, err
	}
	if len(threads) == 0 {
		return threads, nil
	}

	msgRows, err := s.DB.QueryContext(ctx, s.recentMessagesQuery(), constants.THREAD_MESSAGES_LIMIT)
	if err != nil {
		return nil, fmt.Errorf("сообщения CRM: %w", err)
	}
	defer msgRows.Close()

	for msgRows.Next() {
		var m models.ChatMessage
		if errScan := msgRows.Scan(&m.ID, &m.ClientID, &m.SenderID, &m.Message, &m.IsFromClient, &m.PhotoFileID, &m.CreatedAt); errScan != nil {
			return nil, fmt.Errorf("сканирование сообщения CRM: %w", errScan)
		}
		if i, ok := index[m.ClientID]; ok {
			threads[i].Messages = append(threads[i].Messages, m)
		}
	}
	return threads, msgRows.Err()
}

// recentMessagesQuery выбирает не больше $1 последних сообщений на каждого клиента.
func (s *Store) recentMessagesQuery() string {
	return fmt.Sprintf(`
        SELECT id, client_id, COALESCE(telegram_id, 0), message_text, is_from_client, photo_file_id, COALESCE(created_at, NOW())
        FROM (
            SELECT m.*, ROW_NUMBER() OVER (PARTITION BY m.client_id ORDER BY m.created_at DESC NULLS LAST, m.id DESC) AS rn
            FROM %s m
        ) recent
        WHERE rn <= $1
        ORDER BY created_at DESC NULLS LAST, id DESC`, s.table("crm_messages"))
}
