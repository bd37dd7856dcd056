package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/nihongoquest/pkg/models"
	"github.com/google/uuid"
	"github.com/jmoiron/sqlx"
)

// SessionRepository handles database operations for play sessions
type SessionRepository struct {
	db *sqlx.DB
}

// NewSessionRepository creates a new repository instance
func NewSessionRepository(db *sqlx.DB) *SessionRepository {
	return &SessionRepository{db: db}
}

// Start inserts an open session. An empty ID is filled with a new UUID.
func (r *SessionRepository) Start(ctx context.Context, s *models.PlaySession) error {
	if s.ID == "" {
		s.ID = uuid.NewString()
	}
	if s.StartedAt.IsZero() {
		s.StartedAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO play_sessions (id, slot, player_name, difficulty, started_at, play_seconds)
		VALUES (?, ?, ?, ?, ?, ?)
	`)
	_, err := r.db.ExecContext(ctx, query,
		s.ID,
		s.Slot,
		s.PlayerName,
		s.Difficulty,
		s.StartedAt,
		s.PlaySeconds,
	)
	if err != nil {
		return fmt.Errorf("failed to start session: %w", err)
	}
	return nil
}

// End closes a session with its final play time
func (r *SessionRepository) End(ctx context.Context, id string, endedAt time.Time, playSeconds float64) error {
	query := r.db.Rebind(`
		UPDATE play_sessions SET ended_at = ?, play_seconds = ?
		WHERE id = ?
	`)
	result, err := r.db.ExecContext(ctx, query, endedAt, playSeconds, id)
	if err != nil {
		return fmt.Errorf("failed to end session: %w", err)
	}
	rows, err := result.RowsAffected()
	if err != nil {
		return fmt.Errorf("failed to get affected rows: %w", err)
	}
	if rows == 0 {
		return fmt.Errorf("session %s not found", id)
	}
	return nil
}

// GetByID returns a session by ID
func (r *SessionRepository) GetByID(ctx context.Context, id string) (*models.PlaySession, error) {
	var s models.PlaySession
	err := r.db.GetContext(ctx, &s, r.db.Rebind("SELECT * FROM play_sessions WHERE id = ?"), id)
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %w", err)
	}
	return &s, nil
}

// ListBySlot returns the most recent sessions of a slot, newest first
func (r *SessionRepository) ListBySlot(ctx context.Context, slot, limit int) ([]models.PlaySession, error) {
	if limit <= 0 {
		limit = 20
	}
	var sessions []models.PlaySession
	query := r.db.Rebind(`
		SELECT * FROM play_sessions
		WHERE slot = ?
		ORDER BY started_at DESC
		LIMIT ?
	`)
	if err := r.db.SelectContext(ctx, &sessions, query, slot, limit); err != nil {
		return nil, fmt.Errorf("failed to list sessions: %w", err)
	}
	return sessions, nil
}

// DeleteBySlot removes every session of a slot
func (r *SessionRepository) DeleteBySlot(ctx context.Context, slot int) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM play_sessions WHERE slot = ?"), slot)
	if err != nil {
		return 0, fmt.Errorf("failed to delete sessions: %w", err)
	}
	return result.RowsAffected()
}
