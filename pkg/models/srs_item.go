package models

import (
	"encoding/json"
	"errors"
	"fmt"
)

var ErrUnknownScript = errors.New("unknown script")

// Script groups character items for SRS bucketing
type Script string

const (
	ScriptHiragana Script = "hiragana"
	ScriptKatakana Script = "katakana"
	ScriptKanji    Script = "kanji"
)

// Scripts lists every tracked script in display order
var Scripts = []Script{ScriptHiragana, ScriptKatakana, ScriptKanji}

// Valid reports whether s is one of Scripts
func (s Script) Valid() bool {
	for _, known := range Scripts {
		if s == known {
			return true
		}
	}
	return false
}

// ParseScript converts a script name to a Script
func ParseScript(name string) (Script, error) {
	if s := Script(name); s.Valid() {
		return s, nil
	}
	return "", fmt.Errorf("%w %q", ErrUnknownScript, name)
}

// MasteryStage is the ordinal proficiency level of a single item
type MasteryStage int

const (
	StageNew MasteryStage = iota
	StageLearning
	StageReview
	StageMastered
)

var stageNames = map[MasteryStage]string{
	StageNew:      "new",
	StageLearning: "learning",
	StageReview:   "review",
	StageMastered: "mastered",
}

var stagesByName = map[string]MasteryStage{
	"new":      StageNew,
	"learning": StageLearning,
	"review":   StageReview,
	"mastered": StageMastered,
}

func (s MasteryStage) String() string {
	if name, ok := stageNames[s]; ok {
		return name
	}
	return stageNames[StageNew]
}

// ParseMasteryStage maps a serialized stage name back to the enum.
// Unknown names fall back to StageNew.
func ParseMasteryStage(name string) MasteryStage {
	if s, ok := stagesByName[name]; ok {
		return s
	}
	return StageNew
}

// MarshalJSON writes the stage as its name
func (s MasteryStage) MarshalJSON() ([]byte, error) {
	return json.Marshal(s.String())
}

// UnmarshalJSON accepts the stage name; anything unrecognised becomes new
func (s *MasteryStage) UnmarshalJSON(data []byte) error {
	var name string
	if err := json.Unmarshal(data, &name); err != nil {
		*s = StageNew
		return nil
	}
	*s = ParseMasteryStage(name)
	return nil
}

// SRSItem is the spaced-repetition state of one learnable item
type SRSItem struct {
	ItemID             string       `json:"item_id"`
	Stage              MasteryStage `json:"stage"`
	ConsecutiveCorrect int          `json:"consecutive"`
	TotalCorrect       int          `json:"total_correct"`
	TotalAttempts      int          `json:"total_attempts"`
	LastReviewed       float64      `json:"last_reviewed"` // unix seconds, 0 if never reviewed
	NextReview         float64      `json:"next_review"`   // unix seconds
}

// NewSRSItem returns a fresh item at the new stage
func NewSRSItem(itemID string) SRSItem {
	return SRSItem{ItemID: itemID, Stage: StageNew}
}

// Accuracy returns lifetime accuracy in the range 0..1
func (i SRSItem) Accuracy() float64 {
	if i.TotalAttempts == 0 {
		return 0.0
	}
	return float64(i.TotalCorrect) / float64(i.TotalAttempts)
}
