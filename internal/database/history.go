package database

import (
	"context"
	"fmt"
	"time"

	"github.com/example/nihongoquest/pkg/models"
	"github.com/jmoiron/sqlx"
)

// History groups the play-session and answer repositories behind the
// ledger interface the game session writes to
type History struct {
	Sessions *SessionRepository
	Answers  *AnswerRepository
}

// NewHistory creates both repositories on db
func NewHistory(db *sqlx.DB) *History {
	return &History{
		Sessions: NewSessionRepository(db),
		Answers:  NewAnswerRepository(db),
	}
}

// StartSession records the start of a play session
func (h *History) StartSession(ctx context.Context, s *models.PlaySession) error {
	return h.Sessions.Start(ctx, s)
}

// EndSession closes a play session
func (h *History) EndSession(ctx context.Context, id string, endedAt time.Time, playSeconds float64) error {
	return h.Sessions.End(ctx, id, endedAt, playSeconds)
}

// RecordAnswer appends one SRS answer
func (h *History) RecordAnswer(ctx context.Context, a *models.AnswerEvent) error {
	return h.Answers.Create(ctx, a)
}

// ForgetSlot removes all history of a slot
func (h *History) ForgetSlot(ctx context.Context, slot int) error {
	if _, err := h.Answers.DeleteBySlot(ctx, slot); err != nil {
		return err
	}
	if _, err := h.Sessions.DeleteBySlot(ctx, slot); err != nil {
		return fmt.Errorf("failed to forget slot %d: %w", slot, err)
	}
	return nil
}
