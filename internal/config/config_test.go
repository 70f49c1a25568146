package config

import "testing"

func TestLoadConfigFallbacks(t *testing.T) {
	t.Setenv("TELEGRAM_NEW_BOT_TOKEN", "")
	t.Setenv("TELEGRAM_ORDERS_BOT_TOKEN", "orders-token")
	t.Setenv("TELEGRAM_NEW_CHAT_ID", "")
	t.Setenv("TELEGRAM_ORDERS_CHAT_ID", "-100200")
	t.Setenv("TELEGRAM_CHAT_ID", "")
	t.Setenv("CRM_REPLY_FALLBACK", "LAST_CLIENT")
	t.Setenv("DATABASE_URL", "postgres://u:p@db.local/granit?sslmode=disable")
	t.Setenv("DB_SCHEMA", "")
	t.Setenv("PORT", "")
	t.Setenv("BOT_USERNAME", "@otvetzakaz_bot")

	cfg, err := LoadConfig()
	if err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if cfg.CRMBotToken != "orders-token" {
		t.Fatalf("CRMBotToken = %q", cfg.CRMBotToken)
	}
	if cfg.ManagerChatID != -100200 || cfg.RetouchChatID != -100200 {
		t.Fatalf("chat ids = %d/%d", cfg.ManagerChatID, cfg.RetouchChatID)
	}
	if cfg.ReplyFallback != ReplyFallbackLastClient {
		t.Fatalf("ReplyFallback = %q", cfg.ReplyFallback)
	}
	if cfg.DBSchema != "public" || cfg.Port != "8080" {
		t.Fatalf("defaults: schema=%q port=%q", cfg.DBSchema, cfg.Port)
	}
	if cfg.DBHost != "db.local" || cfg.DBPort != "5432" || cfg.DBName != "granit" {
		t.Fatalf("db parts: %q %q %q", cfg.DBHost, cfg.DBPort, cfg.DBName)
	}
	if cfg.BotUsername != "otvetzakaz_bot" {
		t.Fatalf("BotUsername = %q", cfg.BotUsername)
	}
}

func TestLoadConfigInvalidChatID(t *testing.T) {
	t.Setenv("TELEGRAM_NEW_CHAT_ID", "not-a-number")
	t.Setenv("TELEGRAM_ORDERS_CHAT_ID", "")
	t.Setenv("CRM_REPLY_FALLBACK", "sometimes")

	cfg, _ := LoadConfig()
	if cfg.ManagerChatID != 0 {
		t.Fatalf("ManagerChatID = %d, want 0", cfg.ManagerChatID)
	}
	if cfg.ReplyFallback != ReplyFallbackNone {
		t.Fatalf("ReplyFallback = %q, want none", cfg.ReplyFallback)
	}
}
