package models

import "time"

// PlaySession is one sitting with a loaded save slot
type PlaySession struct {
	ID          string     `json:"id" db:"id"`
	Slot        int        `json:"slot" db:"slot"`
	PlayerName  string     `json:"player_name" db:"player_name"`
	Difficulty  string     `json:"difficulty" db:"difficulty"`
	StartedAt   time.Time  `json:"started_at" db:"started_at"`
	EndedAt     *time.Time `json:"ended_at" db:"ended_at"`
	PlaySeconds float64    `json:"play_seconds" db:"play_seconds"`
}

// AnswerEvent records a single SRS answer
type AnswerEvent struct {
	ID          int64     `json:"id" db:"id"`
	SessionID   string    `json:"session_id" db:"session_id"`
	Slot        int       `json:"slot" db:"slot"`
	Script      string    `json:"script" db:"script"`
	ItemID      string    `json:"item_id" db:"item_id"`
	Correct     bool      `json:"correct" db:"correct"`
	StageBefore string    `json:"stage_before" db:"stage_before"`
	StageAfter  string    `json:"stage_after" db:"stage_after"`
	AnsweredAt  time.Time `json:"answered_at" db:"answered_at"`
}

// ScriptAccuracy aggregates answers for one script
type ScriptAccuracy struct {
	Script   string `json:"script" db:"script"`
	Attempts int    `json:"attempts" db:"attempts"`
	Correct  int    `json:"correct" db:"correct"`
}

// Ratio returns correct/attempts, or 0 with no attempts
func (a ScriptAccuracy) Ratio() float64 {
	if a.Attempts == 0 {
		return 0
	}
	return float64(a.Correct) / float64(a.Attempts)
}
