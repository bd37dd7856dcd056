package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/nihongoquest/pkg/models"
	"github.com/jmoiron/sqlx"
)

// AnswerRepository handles database operations for SRS answers
type AnswerRepository struct {
	db *sqlx.DB
}

// NewAnswerRepository creates a new repository instance
func NewAnswerRepository(db *sqlx.DB) *AnswerRepository {
	return &AnswerRepository{db: db}
}

// Create inserts an answer and sets its ID
func (r *AnswerRepository) Create(ctx context.Context, a *models.AnswerEvent) error {
	if a.AnsweredAt.IsZero() {
		a.AnsweredAt = time.Now().UTC()
	}
	query := r.db.Rebind(`
		INSERT INTO review_answers (
			session_id, slot, script, item_id, correct,
			stage_before, stage_after, answered_at
		) VALUES (?, ?, ?, ?, ?, ?, ?, ?)
		RETURNING id
	`)
	err := r.db.QueryRowxContext(ctx, query,
		a.SessionID,
		a.Slot,
		a.Script,
		a.ItemID,
		a.Correct,
		a.StageBefore,
		a.StageAfter,
		a.AnsweredAt,
	).Scan(&a.ID)
	if err != nil {
		return fmt.Errorf("failed to create answer: %w", err)
	}
	return nil
}

// AccuracyBySlot aggregates attempts and correct answers per script
func (r *AnswerRepository) AccuracyBySlot(ctx context.Context, slot int) ([]models.ScriptAccuracy, error) {
	var stats []models.ScriptAccuracy
	query := r.db.Rebind(`
		SELECT
			script,
			COUNT(*) AS attempts,
			COALESCE(SUM(CASE WHEN correct THEN 1 ELSE 0 END), 0) AS correct
		FROM review_answers
		WHERE slot = ?
		GROUP BY script
		ORDER BY script
	`)
	if err := r.db.SelectContext(ctx, &stats, query, slot); err != nil {
		return nil, fmt.Errorf("failed to get accuracy: %w", err)
	}
	return stats, nil
}

// RecentBySlot returns the latest answers of a slot, newest first
func (r *AnswerRepository) RecentBySlot(ctx context.Context, slot, limit int) ([]models.AnswerEvent, error) {
	if limit <= 0 {
		limit = 50
	}
	var answers []models.AnswerEvent
	query := r.db.Rebind(`
		SELECT * FROM review_answers
		WHERE slot = ?
		ORDER BY answered_at DESC, id DESC
		LIMIT ?
	`)
	if err := r.db.SelectContext(ctx, &answers, query, slot, limit); err != nil {
		return nil, fmt.Errorf("failed to get recent answers: %w", err)
	}
	return answers, nil
}

// DeleteBySlot removes every answer of a slot
func (r *AnswerRepository) DeleteBySlot(ctx context.Context, slot int) (int64, error) {
	result, err := r.db.ExecContext(ctx, r.db.Rebind("DELETE FROM review_answers WHERE slot = ?"), slot)
	if err != nil {
		return 0, fmt.Errorf("failed to delete answers: %w", err)
	}
	return result.RowsAffected()
}
