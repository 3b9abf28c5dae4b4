package db

import (
	"database/sql"
	"fmt"
)

const Schema = `
-- Create editor_drafts table
CREATE TABLE IF NOT EXISTS editor_drafts (
    session_id UUID PRIMARY KEY,
    user_id INTEGER NOT NULL,
    quiz_id VARCHAR(64) NOT NULL,
    snapshot JSONB NOT NULL,
    updated_at TIMESTAMPTZ NOT NULL DEFAULT NOW()
);

CREATE INDEX IF NOT EXISTS idx_editor_drafts_updated_at ON editor_drafts (updated_at);
`

// InitSchema initializes the database schema
func InitSchema(db *sql.DB) error {
	_, err := db.Exec(Schema)
	if err != nil {
		return fmt.Errorf("error initializing database schema: %w", err)
	}
	return nil
}
