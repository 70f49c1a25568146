// Файл: internal/db/db.go
package db

import (
	"context"
	"database/sql"
	"fmt"
	"net/url"
	"strings"
	"time"

	"github.com/lib/pq" // PostgreSQL driver
	"go.uber.org/zap"
)

// Store - доступ к таблицам CRM в заданной схеме Postgres.
type Store struct {
	DB     *sql.DB
	schema string
	log    *zap.Logger
}

// NewStore оборачивает уже открытое соединение (используется и в InitDB).
func NewStore(conn *sql.DB, schema string, log *zap.Logger) *Store {
	if schema == "" {
		schema = "public"
	}
	if log == nil {
		log = zap.NewNop()
	}
	return &Store{DB: conn, schema: schema, log: log}
}

// InitDB открывает пул соединений, создаёт схему и таблицы и применяет миграции.
func InitDB(ctx context.Context, dbURL, schema string, log *zap.Logger) (*Store, error) {
	if dbURL == "" {
		return nil, fmt.Errorf("DATABASE_URL не установлена")
	}

	parsedURL, err := url.Parse(dbURL)
	if err != nil {
		return nil, fmt.Errorf("ошибка парсинга DATABASE_URL: %w", err)
	}
	query := parsedURL.Query()
	if query.Get("sslmode") == "" && (parsedURL.Hostname() == "localhost" || parsedURL.Hostname() == "127.0.0.1") {
		query.Set("sslmode", "disable")
	}
	parsedURL.RawQuery = query.Encode()

	conn, err := sql.Open("postgres", parsedURL.String())
	if err != nil {
		return nil, fmt.Errorf("ошибка подключения к базе данных: %w", err)
	}

	// Обработчики короткие, пул небольшой
	conn.SetMaxOpenConns(10)
	conn.SetMaxIdleConns(5)
	conn.SetConnMaxLifetime(5 * time.Minute)

	if err := conn.PingContext(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка проверки соединения с базой данных: %w", err)
	}
	log.Info("Успешное подключение к базе данных.", zap.String("schema", schema))

	s := NewStore(conn, schema, log)
	if err := s.createTables(ctx); err != nil {
		conn.Close()
		return nil, err
	}
	if err := s.migrateDBSchema(ctx); err != nil {
		conn.Close()
		return nil, fmt.Errorf("ошибка выполнения миграции схемы: %w", err)
	}
	s.createIndexes(ctx)

	log.Info("Инициализация базы данных успешно завершена.")
	return s, nil
}

// table возвращает имя таблицы, квалифицированное схемой и экранированное.
func (s *Store) table(name string) string {
	return pq.QuoteIdentifier(s.schema) + "." + pq.QuoteIdentifier(name)
}

func (s *Store) createTables(ctx context.Context) error {
	tx, err := s.DB.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("ошибка начала транзакции для создания таблиц: %w", err)
	}
	defer tx.Rollback()

	createTablesSQL := fmt.Sprintf(`
        CREATE SCHEMA IF NOT EXISTS %[1]s;
        CREATE TABLE IF NOT EXISTS %[2]s (
            id BIGSERIAL PRIMARY KEY,
            telegram_id BIGINT NOT NULL UNIQUE,
            telegram_username TEXT NOT NULL DEFAULT '',
            first_name TEXT NOT NULL DEFAULT '',
            last_name TEXT NOT NULL DEFAULT '',
            full_name TEXT NOT NULL DEFAULT '',
            status TEXT NOT NULL DEFAULT 'new',
            first_contact TIMESTAMPTZ DEFAULT NOW(),
            last_contact TIMESTAMPTZ DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS %[3]s (
            id BIGSERIAL PRIMARY KEY,
            client_id BIGINT NOT NULL REFERENCES %[2]s(id) ON DELETE CASCADE,
            telegram_id BIGINT,
            message_text TEXT NOT NULL DEFAULT '',
            is_from_client BOOLEAN NOT NULL DEFAULT TRUE,
            photo_file_id TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW()
        );
        CREATE TABLE IF NOT EXISTS %[4]s (
            id BIGSERIAL PRIMARY KEY,
            telegram_chat_id BIGINT NOT NULL,
            telegram_username TEXT,
            telegram_first_name TEXT,
            telegram_last_name TEXT,
            message TEXT,
            photo_urls TEXT[],
            status TEXT NOT NULL DEFAULT 'new',
            admin_response TEXT,
            created_at TIMESTAMPTZ DEFAULT NOW(),
            updated_at TIMESTAMPTZ DEFAULT NOW()
        );`,
		pq.QuoteIdentifier(s.schema), s.table("crm_clients"), s.table("crm_messages"), s.table("telegram_orders"))

	if _, err = tx.ExecContext(ctx, createTablesSQL); err != nil {
		return fmt.Errorf("ошибка создания таблиц: %w", err)
	}
	if err = tx.Commit(); err != nil {
		return fmt.Errorf("ошибка фиксации транзакции создания таблиц: %w", err)
	}
	s.log.Info("Создание таблиц (если не существуют) завершено.")
	return nil
}

// migrateDBSchema доводит таблицы, созданные старыми версиями функций, до текущей схемы.
// Каждая миграция идемпотентна.
func (s *Store) migrateDBSchema(ctx context.Context) error {
	migrations := []struct {
		name string
		sql  string
	}{
		{
			name: "crm_clients.names",
			sql: fmt.Sprintf(`ALTER TABLE %s
                  ADD COLUMN IF NOT EXISTS first_name TEXT NOT NULL DEFAULT '',
                  ADD COLUMN IF NOT EXISTS last_name TEXT NOT NULL DEFAULT '';`, s.table("crm_clients")),
		},
		{
			name: "crm_clients.status",
			sql:  fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS status TEXT NOT NULL DEFAULT 'new';`, s.table("crm_clients")),
		},
		{
			name: "crm_messages.is_from_client",
			sql:  fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS is_from_client BOOLEAN NOT NULL DEFAULT TRUE;`, s.table("crm_messages")),
		},
		{
			name: "crm_messages.photo_file_id",
			sql:  fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS photo_file_id TEXT;`, s.table("crm_messages")),
		},
		{
			name: "telegram_orders.updated_at",
			sql:  fmt.Sprintf(`ALTER TABLE %s ADD COLUMN IF NOT EXISTS updated_at TIMESTAMPTZ DEFAULT NOW();`, s.table("telegram_orders")),
		},
	}

	for _, migration := range migrations {
		if _, err := s.DB.ExecContext(ctx, migration.sql); err != nil {
			if strings.Contains(err.Error(), "already exists") {
				s.log.Info("Миграция пропущена: объект уже существует.", zap.String("migration", migration.name), zap.Error(err))
				continue
			}
			return fmt.Errorf("миграция '%s': %w", migration.name, err)
		}
		s.log.Debug("Миграция применена.", zap.String("migration", migration.name))
	}
	return nil
}

// createIndexes создаёт индексы по одному, ошибка одного не мешает остальным.
func (s *Store) createIndexes(ctx context.Context) {
	statements := []string{
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_crm_clients_username ON %s (lower(telegram_username))`, s.table("crm_clients")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_crm_clients_status_contact ON %s (status, last_contact DESC)`, s.table("crm_clients")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_crm_messages_client_created ON %s (client_id, created_at DESC)`, s.table("crm_messages")),
		fmt.Sprintf(`CREATE INDEX IF NOT EXISTS idx_telegram_orders_status_created ON %s (status, created_at DESC)`, s.table("telegram_orders")),
	}
	for _, stmt := range statements {
		if _, err := s.DB.ExecContext(ctx, stmt); err != nil {
			s.log.Warn("Ошибка при создании индекса.", zap.String("statement", stmt), zap.Error(err))
		}
	}
}

// Close закрывает соединение с базой данных.
func (s *Store) Close() {
	if s != nil && s.DB != nil {
		s.DB.Close()
		s.log.Info("Соединение с базой данных закрыто.")
	}
}
