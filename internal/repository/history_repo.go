package repository

import (
	"context"
	"database/sql"
	"time"

	"github.com/google/uuid"

	"github.com/isntboxs/b3s-chat/internal/domain"
)

// HistoryRepository persists chat sessions and their messages.
type HistoryRepository struct {
	db *DB
}

// NewHistoryRepository creates a new history repository
func NewHistoryRepository(db *DB) *HistoryRepository {
	return &HistoryRepository{db: db}
}

// CreateSession creates a new session for the user with the default title.
func (r *HistoryRepository) CreateSession(ctx context.Context, userID string) (*domain.Session, error) {
	now := time.Now()
	session := &domain.Session{
		ID:        uuid.New().String(),
		UserID:    userID,
		Title:     domain.DefaultSessionTitle,
		CreatedAt: now,
		UpdatedAt: now,
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_sessions (id, user_id, title, pinned, created_at, updated_at)
		VALUES (?, ?, ?, 0, ?, ?)
	`, session.ID, session.UserID, session.Title, session.CreatedAt, session.UpdatedAt)
	if err != nil {
		return nil, err
	}

	return session, nil
}

// GetSession retrieves a session by ID
func (r *HistoryRepository) GetSession(ctx context.Context, id string) (*domain.Session, error) {
	session := &domain.Session{}

	err := r.db.QueryRowContext(ctx, `
		SELECT id, user_id, title, pinned, created_at, updated_at
		FROM chat_sessions WHERE id = ?
	`, id).Scan(&session.ID, &session.UserID, &session.Title, &session.Pinned,
		&session.CreatedAt, &session.UpdatedAt)

	if err == sql.ErrNoRows {
		return nil, nil
	}
	if err != nil {
		return nil, err
	}

	return session, nil
}

// ListSessions returns the user's sessions, pinned first, then most
// recently updated.
func (r *HistoryRepository) ListSessions(ctx context.Context, userID string) ([]*domain.Session, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, user_id, title, pinned, created_at, updated_at
		FROM chat_sessions WHERE user_id = ?
		ORDER BY pinned DESC, updated_at DESC
	`, userID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var sessions []*domain.Session
	for rows.Next() {
		session := &domain.Session{}
		if err := rows.Scan(&session.ID, &session.UserID, &session.Title,
			&session.Pinned, &session.CreatedAt, &session.UpdatedAt); err != nil {
			return nil, err
		}
		sessions = append(sessions, session)
	}

	return sessions, rows.Err()
}

// SaveMessage persists one finalized turn and touches the session's
// updated_at timestamp.
func (r *HistoryRepository) SaveMessage(ctx context.Context, sessionID string, msg domain.NewMessage) (*domain.Turn, error) {
	turn := &domain.Turn{
		ID:        uuid.New().String(),
		SessionID: sessionID,
		Role:      msg.Role,
		Content:   msg.Content,
		Thinking:  msg.Thinking,
		Status:    domain.TurnComplete,
		CreatedAt: time.Now(),
	}

	_, err := r.db.ExecContext(ctx, `
		INSERT INTO chat_messages (id, session_id, role, content, thinking, created_at)
		VALUES (?, ?, ?, ?, ?, ?)
	`, turn.ID, turn.SessionID, string(turn.Role), turn.Content, turn.Thinking, turn.CreatedAt)
	if err != nil {
		return nil, err
	}

	_, err = r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET updated_at = ? WHERE id = ?`, time.Now(), sessionID)
	if err != nil {
		return nil, err
	}

	return turn, nil
}

// ListMessages retrieves all turns for a session ordered by creation time.
func (r *HistoryRepository) ListMessages(ctx context.Context, sessionID string) ([]domain.Turn, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, session_id, role, content, thinking, created_at
		FROM chat_messages WHERE session_id = ?
		ORDER BY created_at ASC
	`, sessionID)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var turns []domain.Turn
	for rows.Next() {
		turn := domain.Turn{Status: domain.TurnComplete}
		var thinking sql.NullString

		if err := rows.Scan(&turn.ID, &turn.SessionID, &turn.Role,
			&turn.Content, &thinking, &turn.CreatedAt); err != nil {
			return nil, err
		}

		if thinking.Valid {
			turn.Thinking = thinking.String
		}
		turns = append(turns, turn)
	}

	return turns, rows.Err()
}

// UpdateTitle sets a session's title.
func (r *HistoryRepository) UpdateTitle(ctx context.Context, sessionID, title string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET title = ? WHERE id = ?`, title, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// TogglePin flips a session's pinned flag.
func (r *HistoryRepository) TogglePin(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`UPDATE chat_sessions SET pinned = NOT pinned WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// DeleteSession removes a session; its messages cascade.
func (r *HistoryRepository) DeleteSession(ctx context.Context, sessionID string) error {
	res, err := r.db.ExecContext(ctx,
		`DELETE FROM chat_sessions WHERE id = ?`, sessionID)
	if err != nil {
		return err
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return domain.ErrNotFound
	}
	return nil
}

// Stats returns aggregate counts across all sessions.
func (r *HistoryRepository) Stats(ctx context.Context) (*domain.Stats, error) {
	stats := &domain.Stats{}

	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_sessions`).Scan(&stats.TotalSessions); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages`).Scan(&stats.TotalMessages); err != nil {
		return nil, err
	}
	if err := r.db.QueryRowContext(ctx,
		`SELECT COUNT(*) FROM chat_messages WHERE role = 'user'`).Scan(&stats.TotalChats); err != nil {
		return nil, err
	}

	return stats, nil
}
