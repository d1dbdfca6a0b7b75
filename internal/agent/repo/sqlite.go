package repo

import (
	"context"
	"database/sql"
	"fmt"
	"time"

	"github.com/cloudwego/eino/schema"

	"github.com/lofty-concierge/server/internal/agent/model"
	errx "github.com/lofty-concierge/server/internal/core/error"
	logx "github.com/lofty-concierge/server/pkg/logger"
)

// SQLiteSessionStore is the embedded session backend. Sessions idle for longer
// than ttl are dropped on the next load.
type SQLiteSessionStore struct {
	db  *sql.DB
	ttl time.Duration
	now func() time.Time
}

// NewSQLiteSessionStore creates the tables if they don't exist.
func NewSQLiteSessionStore(ctx context.Context, db *sql.DB, ttl time.Duration) (*SQLiteSessionStore, error) {
	s := &SQLiteSessionStore{db: db, ttl: ttl, now: time.Now}
	if err := s.initSchema(ctx); err != nil {
		return nil, fmt.Errorf("failed to initialize schema: %w", err)
	}
	return s, nil
}

func (s *SQLiteSessionStore) initSchema(ctx context.Context) error {
	ddl := `
	CREATE TABLE IF NOT EXISTS sessions (
		session_id TEXT PRIMARY KEY,
		segment    TEXT NOT NULL DEFAULT '',
		stage      TEXT NOT NULL DEFAULT '',
		created_at INTEGER NOT NULL,
		updated_at INTEGER NOT NULL
	);

	CREATE TABLE IF NOT EXISTS session_messages (
		message_id INTEGER PRIMARY KEY AUTOINCREMENT,
		session_id TEXT NOT NULL,
		body       TEXT NOT NULL,
		FOREIGN KEY (session_id) REFERENCES sessions(session_id) ON DELETE CASCADE
	);

	CREATE INDEX IF NOT EXISTS idx_session_messages_session ON session_messages(session_id, message_id);
	`
	_, err := s.db.ExecContext(ctx, ddl)
	return err
}

func (s *SQLiteSessionStore) Load(ctx context.Context, sessionID string) (*model.Session, error) {
	session := &model.Session{ID: sessionID, Messages: []*schema.Message{}}

	var segment, stage string
	var createdAt, updatedAt int64
	err := s.db.QueryRowContext(ctx,
		`SELECT segment, stage, created_at, updated_at FROM sessions WHERE session_id = ?`, sessionID,
	).Scan(&segment, &stage, &createdAt, &updatedAt)
	if err == sql.ErrNoRows {
		return session, nil
	}
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session row")
		return nil, errx.WrapSQL(err)
	}

	if s.ttl > 0 && s.now().Sub(time.Unix(updatedAt, 0)) > s.ttl {
		logx.Debug().Str("session_id", sessionID).Msg("session expired")
		if err := s.Reset(ctx, sessionID); err != nil {
			return nil, err
		}
		return session, nil
	}

	session.Segment = model.Segment(segment)
	session.Stage = model.DialogueStage(stage)
	session.CreatedAt = time.Unix(createdAt, 0)
	session.UpdatedAt = time.Unix(updatedAt, 0)

	rows, err := s.db.QueryContext(ctx,
		`SELECT body FROM session_messages WHERE session_id = ? ORDER BY message_id`, sessionID)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to load session messages")
		return nil, errx.WrapSQL(err)
	}
	defer rows.Close()

	for i := 0; rows.Next(); i++ {
		var body string
		if err := rows.Scan(&body); err != nil {
			return nil, errx.WrapSQL(err)
		}
		m, err := decodeMessage([]byte(body))
		if err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Int("index", i).Msg("failed to unmarshal message")
			return nil, fmt.Errorf("message at index %d: %w", i, err)
		}
		session.Messages = append(session.Messages, m)
	}
	if err := rows.Err(); err != nil {
		return nil, errx.WrapSQL(err)
	}
	return session, nil
}

func (s *SQLiteSessionStore) Apply(ctx context.Context, sessionID string, update model.SessionUpdate) (err error) {
	bodies := make([]string, 0, len(update.Append))
	for _, m := range update.Append {
		b, err := encodeMessage(m)
		if err != nil {
			return err
		}
		bodies = append(bodies, string(b))
	}

	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapSQL(err)
	}
	defer func() {
		if err != nil {
			_ = tx.Rollback()
		}
	}()

	now := s.now().Unix()
	// An existing segment is never replaced. An unknown stage keeps the stored one.
	_, err = tx.ExecContext(ctx, `
		INSERT INTO sessions (session_id, segment, stage, created_at, updated_at)
		VALUES (?, ?, ?, ?, ?)
		ON CONFLICT(session_id) DO UPDATE SET
			segment    = CASE WHEN sessions.segment = '' THEN excluded.segment ELSE sessions.segment END,
			stage      = CASE WHEN excluded.stage = '' THEN sessions.stage ELSE excluded.stage END,
			updated_at = excluded.updated_at`,
		sessionID, string(update.Segment), string(update.Stage), now, now)
	if err != nil {
		logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to upsert session")
		return errx.WrapSQL(err)
	}

	for _, body := range bodies {
		if _, err = tx.ExecContext(ctx,
			`INSERT INTO session_messages (session_id, body) VALUES (?, ?)`, sessionID, body); err != nil {
			logx.Error().Err(err).Str("session_id", sessionID).Msg("failed to append message")
			return errx.WrapSQL(err)
		}
	}

	if err = tx.Commit(); err != nil {
		return errx.WrapSQL(err)
	}
	return nil
}

func (s *SQLiteSessionStore) Reset(ctx context.Context, sessionID string) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return errx.WrapSQL(err)
	}
	defer func() { _ = tx.Rollback() }()

	if _, err := tx.ExecContext(ctx, `DELETE FROM session_messages WHERE session_id = ?`, sessionID); err != nil {
		return errx.WrapSQL(err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM sessions WHERE session_id = ?`, sessionID); err != nil {
		return errx.WrapSQL(err)
	}
	if err := tx.Commit(); err != nil {
		return errx.WrapSQL(err)
	}
	return nil
}

var _ model.SessionStore = (*SQLiteSessionStore)(nil)
