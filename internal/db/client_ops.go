package db

import (
	"context"
	"database/sql"
	"fmt"
	"strings"

	"go.uber.org/zap"

	"granit/internal/constants"
	"granit/internal/models"
)

const clientColumns = `id, telegram_id, telegram_username, first_name, last_name, full_name, status, first_contact, last_contact`

type rowScanner interface {
	Scan(dest ...any) error
}

func scanClient(row rowScanner, extra ...any) (models.Client, error) {
	var c models.Client
	dest := []any{&c.ID, &c.TelegramID, &c.Username, &c.FirstName, &c.LastName, &c.FullName, &c.Status, &c.FirstContact, &c.LastContact}
	err := row.Scan(append(dest, extra...)...)
	return c, err
}

// UpsertClient создаёт клиента или обновляет его имя и время последнего контакта.
// Одна инструкция INSERT ... ON CONFLICT; created=true, если строка была вставлена.
func (s *Store) UpsertClient(ctx context.Context, ci models.ClientIdentity) (models.Client, bool, error) {
	query := fmt.Sprintf(`
        INSERT INTO %s (telegram_id, telegram_username, first_name, last_name, full_name, status, first_contact, last_contact)
        VALUES ($1, $2, $3, $4, $5, $6, NOW(), NOW())
        ON CONFLICT (telegram_id) DO UPDATE SET
            telegram_username = EXCLUDED.telegram_username,
            first_name = EXCLUDED.first_name,
            last_name = EXCLUDED.last_name,
            full_name = EXCLUDED.full_name,
            last_contact = NOW()
        RETURNING %s, (xmax = 0) AS inserted`, s.table("crm_clients"), clientColumns)

	var created bool
	c, err := scanClient(s.DB.QueryRowContext(ctx, query,
		ci.TelegramID, ci.Username, ci.FirstName, ci.LastName, ci.FullName(), constants.STATUS_NEW), &created)
	if err != nil {
		s.log.Error("UpsertClient: ошибка сохранения клиента", zap.Int64("telegram_id", ci.TelegramID), zap.Error(err))
		return models.Client{}, false, fmt.Errorf("upsert клиента %d: %w", ci.TelegramID, err)
	}
	if created {
		s.log.Info("Новый клиент CRM", zap.Int64("client_id", c.ID), zap.Int64("telegram_id", c.TelegramID))
	}
	return c, created, nil
}

// GetClientByTelegramID возвращает sql.ErrNoRows, если клиента нет.
func (s *Store) GetClientByTelegramID(ctx context.Context, telegramID int64) (models.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE telegram_id = $1`, clientColumns, s.table("crm_clients"))
	return scanClient(s.DB.QueryRowContext(ctx, query, telegramID))
}

// GetClientByUsername ищет клиента по username без учёта регистра.
// При совпадении у нескольких записей берётся писавший последним.
func (s *Store) GetClientByUsername(ctx context.Context, username string) (models.Client, error) {
	username = strings.TrimPrefix(strings.TrimSpace(username), "@")
	if username == "" {
		return models.Client{}, sql.ErrNoRows
	}
	query := fmt.Sprintf(`
        SELECT %s FROM %s
        WHERE lower(telegram_username) = lower($1)
        ORDER BY last_contact DESC NULLS LAST
        LIMIT 1`, clientColumns, s.table("crm_clients"))
	return scanClient(s.DB.QueryRowContext(ctx, query, username))
}

// GetLastActiveClient возвращает клиента с самым свежим last_contact.
func (s *Store) GetLastActiveClient(ctx context.Context) (models.Client, error) {
	query := fmt.Sprintf(`SELECT %s FROM %s ORDER BY last_contact DESC NULLS LAST LIMIT 1`, clientColumns, s.table("crm_clients"))
	return scanClient(s.DB.QueryRowContext(ctx, query))
}

// TouchClient обновляет last_contact после ответа менеджера.
func (s *Store) TouchClient(ctx context.Context, clientID int64) error {
	_, err := s.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET last_contact = NOW() WHERE id = $1`, s.table("crm_clients")), clientID)
	if err != nil {
		return fmt.Errorf("обновление last_contact клиента %d: %w", clientID, err)
	}
	return nil
}

// SetClientStatus переносит клиента в папку. Возвращает false, если клиент не найден.
func (s *Store) SetClientStatus(ctx context.Context, telegramID int64, status string) (bool, error) {
	if !constants.IsClientStatus(status) {
		return false, fmt.Errorf("неизвестная папка клиента %q", status)
	}
	res, err := s.DB.ExecContext(ctx, fmt.Sprintf(`UPDATE %s SET status = $1 WHERE telegram_id = $2`, s.table("crm_clients")), status, telegramID)
	if err != nil {
		return false, fmt.Errorf("смена статуса клиента %d на %s: %w", telegramID, status, err)
	}
	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}
	return n > 0, nil
}

// ListClientsByStatus возвращает клиентов папки, свежие сверху.
func (s *Store) ListClientsByStatus(ctx context.Context, status string) ([]models.Client, error) {
	if !constants.IsClientStatus(status) {
		return nil, fmt.Errorf("неизвестная папка клиента %q", status)
	}
	query := fmt.Sprintf(`SELECT %s FROM %s WHERE status = $1 ORDER BY last_contact DESC NULLS LAST`, clientColumns, s.table("crm_clients"))
	rows, err := s.DB.QueryContext(ctx, query, status)
	if err != nil {
		return nil, fmt.Errorf("список клиентов папки %s: %w", status, err)
	}
	defer rows.Close()

	var clients []models.Client
	for rows.Next() {
		c, errScan := scanClient(rows)
		if errScan != nil {
			s.log.Warn("ListClientsByStatus: ошибка сканирования клиента", zap.Error(errScan))
			continue
		}
		clients = append(clients, c)
	}
	return clients, rows.Err()
}
