package db

import (
	"context"
	"fmt"
	"log"
	"time"

	"github.com/jmoiron/sqlx"
	_ "github.com/lib/pq"
)

// Connect opens the postgres pool. Migrations are applied separately.
func Connect(ctx context.Context, dsn string) (*sqlx.DB, error) {
	db, err := sqlx.ConnectContext(ctx, "postgres", dsn)
	if err != nil {
		return nil, fmt.Errorf("connect db: %w", err)
	}
	db.SetMaxOpenConns(20)
	db.SetMaxIdleConns(5)
	db.SetConnMaxLifetime(30 * time.Minute)
	return db, nil
}

// Migrate applies the schema. Every statement is idempotent.
func Migrate(ctx context.Context, db *sqlx.DB) error {
	for i, m := range migrations {
		if _, err := db.ExecContext(ctx, m); err != nil {
			return fmt.Errorf("migration %d: %w", i, err)
		}
	}
	log.Println("database migrations applied")
	return nil
}

var migrations = []string{
	`CREATE TABLE IF NOT EXISTS users (
            id BIGSERIAL PRIMARY KEY,
            name TEXT NOT NULL,
            email TEXT NOT NULL UNIQUE,
            password_hash TEXT NOT NULL,
            role_id INT NOT NULL DEFAULT 10,
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE TABLE IF NOT EXISTS leads (
            id BIGSERIAL PRIMARY KEY,
            title TEXT NOT NULL,
            phone TEXT,
            owner_id BIGINT REFERENCES users(id) ON DELETE SET NULL,
            status TEXT NOT NULL DEFAULT 'new',
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
	`CREATE INDEX IF NOT EXISTS idx_leads_phone ON leads(phone);`,
	`CREATE TABLE IF NOT EXISTS chats (
            id BIGSERIAL PRIMARY KEY,
            type TEXT NOT NULL CHECK (type IN ('direct', 'group', 'whatsapp')),
            title TEXT,
            status TEXT NOT NULL DEFAULT 'active' CHECK (status IN ('active', 'archived')),
            is_whatsapp_integrated BOOLEAN NOT NULL DEFAULT FALSE,
            whatsapp_number TEXT,
            lead_id BIGINT REFERENCES leads(id) ON DELETE SET NULL,
            created_by BIGINT NOT NULL REFERENCES users(id),
            created_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            CHECK (NOT is_whatsapp_integrated OR whatsapp_number IS NOT NULL)
        );`,
	// one live integrated chat per number
	`CREATE UNIQUE INDEX IF NOT EXISTS uq_chats_active_whatsapp_number
            ON chats(whatsapp_number)
            WHERE is_whatsapp_integrated AND status = 'active';`,
	`CREATE TABLE IF NOT EXISTS chat_participants (
            chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            user_id BIGINT NOT NULL REFERENCES users(id),
            added_at TIMESTAMPTZ NOT NULL DEFAULT NOW(),
            PRIMARY KEY (chat_id, user_id)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_chat_participants_user ON chat_participants(user_id);`,
	`CREATE TABLE IF NOT EXISTS messages (
            id BIGSERIAL PRIMARY KEY,
            chat_id BIGINT NOT NULL REFERENCES chats(id) ON DELETE CASCADE,
            sender_id BIGINT NOT NULL REFERENCES users(id),
            content TEXT,
            type TEXT NOT NULL DEFAULT 'text' CHECK (type IN ('text', 'media', 'system')),
            source TEXT NOT NULL DEFAULT 'human' CHECK (source IN ('human', 'external', 'ai', 'automated')),
            sent_at TIMESTAMPTZ NOT NULL DEFAULT clock_timestamp(),
            read_at TIMESTAMPTZ,
            is_ai_generated BOOLEAN NOT NULL DEFAULT FALSE,
            external_id TEXT UNIQUE,
            CHECK (read_at IS NULL OR read_at >= sent_at)
        );`,
	`CREATE INDEX IF NOT EXISTS idx_messages_chat_sent ON messages(chat_id, sent_at, id);`,
	`CREATE TABLE IF NOT EXISTS attachments (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            name TEXT NOT NULL,
            url TEXT NOT NULL,
            mime_type TEXT NOT NULL DEFAULT 'application/octet-stream',
            size BIGINT NOT NULL DEFAULT 0
        );`,
	`CREATE INDEX IF NOT EXISTS idx_attachments_message ON attachments(message_id);`,
	`CREATE TABLE IF NOT EXISTS ai_suggested_replies (
            id BIGSERIAL PRIMARY KEY,
            message_id BIGINT NOT NULL REFERENCES messages(id) ON DELETE CASCADE,
            content TEXT NOT NULL,
            is_used BOOLEAN NOT NULL DEFAULT FALSE
        );`,
	`CREATE INDEX IF NOT EXISTS idx_ai_suggested_replies_message ON ai_suggested_replies(message_id);`,
	`CREATE TABLE IF NOT EXISTS integration_settings (
            id INT PRIMARY KEY CHECK (id = 1),
            api_key TEXT NOT NULL,
            phone_number_id TEXT NOT NULL,
            business_account_id TEXT NOT NULL DEFAULT '',
            api_version TEXT NOT NULL DEFAULT 'v20.0',
            is_active BOOLEAN NOT NULL DEFAULT TRUE,
            webhook_verify_token TEXT NOT NULL,
            app_secret TEXT NOT NULL DEFAULT '',
            auto_responder_enabled BOOLEAN NOT NULL DEFAULT FALSE,
            auto_responder_message TEXT NOT NULL DEFAULT '',
            updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
        );`,
}
