package savestore

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"math"

	"github.com/example/nihongoquest/pkg/models"
	"github.com/sirupsen/logrus"
)

// Top-level keys this version understands. Everything else goes to Extra.
var knownKeys = map[string]bool{
	"slot":                 true,
	"player_name":          true,
	"character_appearance": true,
	"current_monument":     true,
	"completed_lessons":    true,
	"completed_minigames":  true,
	"mastered_characters":  true,
	"vocabulary_learned":   true,
	"grammar_learned":      true,
	"total_play_time":      true,
	"last_played":          true,
	"difficulty":           true,
	"player_xp":            true,
	"player_level":         true,
}

// decodeRecord parses a save document and repairs structural drift.
// Only a document that is not a JSON object is rejected; missing or
// wrong-typed fields fall back to their defaults.
func decodeRecord(data []byte, slot, totalMonuments int, log *logrus.Entry) (*models.SaveRecord, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("document is not a JSON object: %w", err)
	}
	if raw == nil {
		return nil, errors.New("document is null")
	}

	rec := models.NewSaveRecord(slot)
	for key := range knownKeys {
		if key == "slot" {
			continue
		}
		if _, ok := raw[key]; !ok {
			log.Warnf("Save slot %d missing key '%s', using default", slot, key)
		}
	}

	decodeField(raw, "player_name", &rec.PlayerName, log)
	decodeField(raw, "character_appearance", &rec.CharacterAppearance, log)
	decodeField(raw, "current_monument", &rec.CurrentMonument, log)
	decodeField(raw, "total_play_time", &rec.TotalPlayTime, log)
	decodeField(raw, "last_played", &rec.LastPlayed, log)
	decodeField(raw, "difficulty", &rec.Difficulty, log)
	decodeField(raw, "player_xp", &rec.PlayerXP, log)
	decodeField(raw, "player_level", &rec.PlayerLevel, log)

	rec.CompletedLessons = decodeStringList(raw, "completed_lessons", log)
	rec.CompletedMinigames = decodeStringList(raw, "completed_minigames", log)
	rec.VocabularyLearned = decodeStringList(raw, "vocabulary_learned", log)
	rec.GrammarLearned = decodeStringList(raw, "grammar_learned", log)
	rec.MasteredCharacters = decodeMastery(raw, log)

	for key, value := range raw {
		if knownKeys[key] {
			continue
		}
		if rec.Extra == nil {
			rec.Extra = make(map[string]json.RawMessage)
		}
		rec.Extra[key] = value
	}

	rec.Slot = slot
	normalize(rec, totalMonuments, log)
	return rec, nil
}

// decodeField overwrites dst only when the value decodes cleanly
func decodeField[T any](raw map[string]json.RawMessage, key string, dst *T, log *logrus.Entry) {
	msg, ok := raw[key]
	if !ok {
		return
	}
	var v T
	if err := json.Unmarshal(msg, &v); err != nil {
		log.Warnf("Field '%s' has the wrong type, using default: %v", key, err)
		return
	}
	*dst = v
}

// decodeStringList keeps the string entries of a list in order, dropping
// duplicates and non-string values
func decodeStringList(raw map[string]json.RawMessage, key string, log *logrus.Entry) []string {
	out := []string{}
	msg, ok := raw[key]
	if !ok {
		return out
	}
	var items []json.RawMessage
	if err := json.Unmarshal(msg, &items); err != nil {
		log.Warnf("Field '%s' is not a list, using empty list", key)
		return out
	}
	seen := make(map[string]bool, len(items))
	for _, item := range items {
		var s string
		if err := json.Unmarshal(item, &s); err != nil {
			log.Warnf("Dropping non-string entry in '%s'", key)
			continue
		}
		if seen[s] {
			continue
		}
		seen[s] = true
		out = append(out, s)
	}
	return out
}

func decodeMastery(raw map[string]json.RawMessage, log *logrus.Entry) map[models.Script]map[string]models.SRSItem {
	mastery := models.NewMasteryMap()
	msg, ok := raw["mastered_characters"]
	if !ok {
		return mastery
	}
	var scripts map[string]json.RawMessage
	if err := json.Unmarshal(msg, &scripts); err != nil || scripts == nil {
		log.Warn("Field 'mastered_characters' is not an object, resetting")
		return mastery
	}

	for name, scriptMsg := range scripts {
		var entries map[string]json.RawMessage
		if err := json.Unmarshal(scriptMsg, &entries); err != nil {
			log.Warnf("Mastery data for '%s' is not an object, resetting", name)
			continue
		}
		items := make(map[string]models.SRSItem, len(entries))
		for id, entry := range entries {
			item, ok := decodeItem(id, entry, log)
			if !ok {
				log.Warnf("Dropping malformed %s item '%s'", name, id)
				continue
			}
			items[id] = item
		}
		mastery[models.Script(name)] = items
	}
	return mastery
}

// decodeItem reads an SRS item field by field so one bad counter does not
// cost the rest of its progress. Only a non-object entry is rejected.
func decodeItem(id string, entry json.RawMessage, log *logrus.Entry) (models.SRSItem, bool) {
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(entry, &fields); err != nil || fields == nil {
		return models.SRSItem{}, false
	}
	item := models.NewSRSItem(id)
	decodeField(fields, "stage", &item.Stage, log)
	decodeField(fields, "consecutive", &item.ConsecutiveCorrect, log)
	decodeField(fields, "total_correct", &item.TotalCorrect, log)
	decodeField(fields, "total_attempts", &item.TotalAttempts, log)
	decodeField(fields, "last_reviewed", &item.LastReviewed, log)
	decodeField(fields, "next_review", &item.NextReview, log)
	clampItem(&item)
	return item, true
}

func clampItem(item *models.SRSItem) {
	if item.Stage < models.StageNew {
		item.Stage = models.StageNew
	}
	if item.Stage > models.StageMastered {
		item.Stage = models.StageMastered
	}
	if item.ConsecutiveCorrect < 0 {
		item.ConsecutiveCorrect = 0
	}
	if item.TotalAttempts < 0 {
		item.TotalAttempts = 0
	}
	if item.TotalCorrect < 0 {
		item.TotalCorrect = 0
	}
	if item.TotalCorrect > item.TotalAttempts {
		item.TotalCorrect = item.TotalAttempts
	}
}

// normalize enforces the record invariants after decoding or before saving
func normalize(rec *models.SaveRecord, totalMonuments int, log *logrus.Entry) {
	if rec.CharacterAppearance == nil {
		rec.CharacterAppearance = models.DefaultAppearance()
	}
	if rec.CompletedLessons == nil {
		rec.CompletedLessons = []string{}
	}
	if rec.CompletedMinigames == nil {
		rec.CompletedMinigames = []string{}
	}
	if rec.VocabularyLearned == nil {
		rec.VocabularyLearned = []string{}
	}
	if rec.GrammarLearned == nil {
		rec.GrammarLearned = []string{}
	}
	for _, s := range models.Scripts {
		rec.ScriptItems(s)
	}

	if totalMonuments > 0 && (rec.CurrentMonument < 0 || rec.CurrentMonument >= totalMonuments) {
		log.Warnf("current_monument %d out of range, resetting to 0", rec.CurrentMonument)
		rec.CurrentMonument = 0
	}
	if rec.TotalPlayTime < 0 || math.IsNaN(rec.TotalPlayTime) || math.IsInf(rec.TotalPlayTime, 0) {
		rec.TotalPlayTime = 0
	}
	if rec.Difficulty == "" {
		rec.Difficulty = models.DefaultDifficulty
	} else if !rec.Difficulty.Valid() {
		log.Warnf("Unknown difficulty '%s', using %s", rec.Difficulty, models.DefaultDifficulty)
		rec.Difficulty = models.DefaultDifficulty
	}
	if rec.PlayerXP < 0 {
		rec.PlayerXP = 0
	}
	if rec.PlayerLevel < 1 {
		rec.PlayerLevel = 1
	}
}

// encodeRecord renders the record as indented JSON with unknown keys
// merged back in. Non-ASCII text is written literally.
func encodeRecord(rec *models.SaveRecord) ([]byte, error) {
	var doc interface{} = rec
	if len(rec.Extra) > 0 {
		known, err := json.Marshal(rec)
		if err != nil {
			return nil, err
		}
		merged := make(map[string]json.RawMessage, len(rec.Extra)+len(knownKeys))
		if err := json.Unmarshal(known, &merged); err != nil {
			return nil, err
		}
		for key, value := range rec.Extra {
			if _, clash := merged[key]; !clash {
				merged[key] = value
			}
		}
		doc = merged
	}

	var buf bytes.Buffer
	enc := json.NewEncoder(&buf)
	enc.SetEscapeHTML(false)
	enc.SetIndent("", "  ")
	if err := enc.Encode(doc); err != nil {
		return nil, err
	}
	return buf.Bytes(), nil
}
