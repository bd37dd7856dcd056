package models

import "encoding/json"

// Difficulty is one of the fixed difficulty presets
type Difficulty string

const (
	DifficultyEasy    Difficulty = "easy"
	DifficultyNormal  Difficulty = "normal"
	DifficultyHard    Difficulty = "hard"
	DifficultyExtreme Difficulty = "extreme"
)

// DefaultDifficulty is used for new records and unknown values
const DefaultDifficulty = DifficultyNormal

// Valid reports whether d is a known preset
func (d Difficulty) Valid() bool {
	switch d {
	case DifficultyEasy, DifficultyNormal, DifficultyHard, DifficultyExtreme:
		return true
	}
	return false
}

// SaveRecord is the persisted player state of one save slot
type SaveRecord struct {
	Slot                int                           `json:"slot"`
	PlayerName          string                        `json:"player_name"`
	CharacterAppearance map[string]string             `json:"character_appearance"`
	CurrentMonument     int                           `json:"current_monument"`
	CompletedLessons    []string                      `json:"completed_lessons"`
	CompletedMinigames  []string                      `json:"completed_minigames"`
	MasteredCharacters  map[Script]map[string]SRSItem `json:"mastered_characters"`
	VocabularyLearned   []string                      `json:"vocabulary_learned"`
	GrammarLearned      []string                      `json:"grammar_learned"`
	TotalPlayTime       float64                       `json:"total_play_time"` // seconds
	LastPlayed          *string                       `json:"last_played"`     // ISO-8601 UTC, nil if never saved
	Difficulty          Difficulty                    `json:"difficulty"`
	PlayerXP            int                           `json:"player_xp"`
	PlayerLevel         int                           `json:"player_level"`

	// Extra holds top-level keys this version does not know about so they
	// survive a load/save cycle.
	Extra map[string]json.RawMessage `json:"-"`
}

// DefaultAppearance returns the starting character look
func DefaultAppearance() map[string]string {
	return map[string]string{
		"body_type":    "average",
		"hair_style":   "short",
		"hair_color":   "black",
		"eye_color":    "brown",
		"skin_tone":    "medium",
		"outfit_style": "casual",
	}
}

// NewSaveRecord returns a record with every field at its default
func NewSaveRecord(slot int) *SaveRecord {
	return &SaveRecord{
		Slot:                slot,
		CharacterAppearance: DefaultAppearance(),
		CompletedLessons:    []string{},
		CompletedMinigames:  []string{},
		MasteredCharacters:  NewMasteryMap(),
		VocabularyLearned:   []string{},
		GrammarLearned:      []string{},
		Difficulty:          DefaultDifficulty,
		PlayerLevel:         1,
	}
}

// NewMasteryMap returns an empty per-script item map
func NewMasteryMap() map[Script]map[string]SRSItem {
	m := make(map[Script]map[string]SRSItem, len(Scripts))
	for _, s := range Scripts {
		m[s] = map[string]SRSItem{}
	}
	return m
}

// ScriptItems returns the item map for a script, creating it if needed
func (r *SaveRecord) ScriptItems(script Script) map[string]SRSItem {
	if r.MasteredCharacters == nil {
		r.MasteredCharacters = NewMasteryMap()
	}
	items, ok := r.MasteredCharacters[script]
	if !ok || items == nil {
		items = map[string]SRSItem{}
		r.MasteredCharacters[script] = items
	}
	return items
}

// AddCompletedLesson appends id if absent and reports whether it was added
func (r *SaveRecord) AddCompletedLesson(id string) bool {
	return appendUnique(&r.CompletedLessons, id)
}

// AddCompletedMinigame appends id if absent and reports whether it was added
func (r *SaveRecord) AddCompletedMinigame(id string) bool {
	return appendUnique(&r.CompletedMinigames, id)
}

// AddVocabulary appends word if absent and reports whether it was added
func (r *SaveRecord) AddVocabulary(word string) bool {
	return appendUnique(&r.VocabularyLearned, word)
}

// AddGrammar appends a grammar point if absent and reports whether it was added
func (r *SaveRecord) AddGrammar(point string) bool {
	return appendUnique(&r.GrammarLearned, point)
}

func appendUnique(list *[]string, id string) bool {
	for _, existing := range *list {
		if existing == id {
			return false
		}
	}
	*list = append(*list, id)
	return true
}

// SaveSummary is the subset of a record shown in a slot picker
type SaveSummary struct {
	Slot            int        `json:"slot"`
	PlayerName      string     `json:"player_name"`
	CurrentMonument int        `json:"current_monument"`
	TotalPlayTime   float64    `json:"total_play_time"`
	LastPlayed      *string    `json:"last_played"`
	Difficulty      Difficulty `json:"difficulty"`
}

// Summary builds the slot-picker view of the record
func (r *SaveRecord) Summary() SaveSummary {
	return SaveSummary{
		Slot:            r.Slot,
		PlayerName:      r.PlayerName,
		CurrentMonument: r.CurrentMonument,
		TotalPlayTime:   r.TotalPlayTime,
		LastPlayed:      r.LastPlayed,
		Difficulty:      r.Difficulty,
	}
}
