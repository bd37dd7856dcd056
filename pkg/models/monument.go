package models

import "strings"

// Monument is a fixed learning stage on the overworld
type Monument struct {
	ID          int    `json:"id"`
	Name        string `json:"name"`
	NameJP      string `json:"name_jp"`
	Description string `json:"description"`
	Category    string `json:"category"`
	// UnlockRequires is the category whose minigames open this monument.
	// Empty means always unlocked.
	UnlockRequires string `json:"unlock_requires,omitempty"`
}

// Prefix is the id prefix used by lessons and minigames of this category
func (m Monument) Prefix() string {
	return m.Category + "_"
}

// Owns reports whether a lesson or minigame id belongs to the monument
func (m Monument) Owns(id string) bool {
	return strings.HasPrefix(id, m.Prefix())
}

// CharacterScript maps a category onto the SRS script that tracks it.
// Categories without character mastery return false.
func CharacterScript(category string) (Script, bool) {
	switch {
	case category == string(ScriptHiragana):
		return ScriptHiragana, true
	case category == string(ScriptKatakana):
		return ScriptKatakana, true
	case strings.HasPrefix(category, string(ScriptKanji)):
		return ScriptKanji, true
	}
	return "", false
}
