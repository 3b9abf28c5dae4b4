package drafts

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/lib/pq"

	"questionnaire_editor/editor"
)

// invalid_text_representation, raised when a session id is not a uuid.
const pqInvalidText = "22P02"

// PostgresStore keeps drafts in the editor_drafts table.
type PostgresStore struct {
	db *sql.DB
}

func NewPostgresStore(db *sql.DB) *PostgresStore {
	return &PostgresStore{db: db}
}

func (s *PostgresStore) Save(ctx context.Context, d editor.Draft) error {
	snapshot, err := json.Marshal(d.Snapshot)
	if err != nil {
		return fmt.Errorf("encoding draft %s: %w", d.SessionID, err)
	}

	_, err = s.db.ExecContext(ctx, `
		INSERT INTO editor_drafts (session_id, user_id, quiz_id, snapshot, updated_at)
		VALUES ($1, $2, $3, $4, $5)
		ON CONFLICT (session_id) DO UPDATE
		SET snapshot = EXCLUDED.snapshot, updated_at = EXCLUDED.updated_at
	`, d.SessionID, d.UserID, d.Snapshot.QuizID, snapshot, d.UpdatedAt)
	if err != nil {
		return fmt.Errorf("saving draft %s: %w", d.SessionID, err)
	}
	return nil
}

func (s *PostgresStore) Load(ctx context.Context, sessionID string) (editor.Draft, error) {
	var (
		d        editor.Draft
		snapshot []byte
	)
	err := s.db.QueryRowContext(ctx, `
		SELECT session_id, user_id, snapshot, updated_at
		FROM editor_drafts
		WHERE session_id = $1
	`, sessionID).Scan(&d.SessionID, &d.UserID, &snapshot, &d.UpdatedAt)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) || isInvalidText(err) {
			return editor.Draft{}, editor.ErrDraftNotFound
		}
		return editor.Draft{}, fmt.Errorf("loading draft %s: %w", sessionID, err)
	}

	if err := json.Unmarshal(snapshot, &d.Snapshot); err != nil {
		return editor.Draft{}, fmt.Errorf("decoding draft %s: %w", sessionID, err)
	}
	return d, nil
}

func (s *PostgresStore) Delete(ctx context.Context, sessionID string) error {
	_, err := s.db.ExecContext(ctx, `DELETE FROM editor_drafts WHERE session_id = $1`, sessionID)
	if err != nil && !isInvalidText(err) {
		return fmt.Errorf("deleting draft %s: %w", sessionID, err)
	}
	return nil
}

func (s *PostgresStore) Purge(ctx context.Context, before time.Time) (int64, error) {
	result, err := s.db.ExecContext(ctx, `DELETE FROM editor_drafts WHERE updated_at < $1`, before)
	if err != nil {
		return 0, fmt.Errorf("purging drafts: %w", err)
	}
	return result.RowsAffected()
}

func (s *PostgresStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func isInvalidText(err error) bool {
	var pqErr *pq.Error
	return errors.As(err, &pqErr) && pqErr.Code == pqInvalidText
}
