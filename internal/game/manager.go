// Package game holds the live save record, the screen state machine and
// the monument unlock rules.
package game

import (
	"errors"
	"fmt"
	"math"
	"strings"
	"time"

	"github.com/example/nihongoquest/internal/config"
	"github.com/example/nihongoquest/pkg/logger"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoRecord        = errors.New("no save record loaded")
	ErrInvalidMonument = errors.New("invalid monument")
)

// Reference character totals for mastery percentages
var characterTotals = map[models.Script]int{
	models.ScriptHiragana: 46,
	models.ScriptKatakana: 46,
	models.ScriptKanji:    200,
}

// Lessons plus minigames expected per monument for the simple completion bar
const expectedItemsPerMonument = 8

// LearningStats is the dashboard summary of the loaded record
type LearningStats struct {
	Mastery            map[models.Script]float64 `json:"mastery"`
	VocabularyCount    int                       `json:"vocabulary_count"`
	GrammarCount       int                       `json:"grammar_count"`
	LessonsCompleted   int                       `json:"lessons_completed"`
	MinigamesCompleted int                       `json:"minigames_completed"`
	OverallCompletion  float64                   `json:"overall_completion"`
	TotalPlayTime      float64                   `json:"total_play_time"`
	CurrentMonument    int                       `json:"current_monument"`
	HighestUnlocked    int                       `json:"highest_unlocked"`
	Difficulty         models.Difficulty         `json:"difficulty"`
}

// Manager owns at most one live save record and the screen state.
// It is not safe for concurrent use.
type Manager struct {
	data *config.GameData

	current     State
	previous    State
	hasPrevious bool
	callbacks   map[State][]registeredCallback
	nextID      CallbackID

	record *models.SaveRecord

	sessionStart     time.Time
	pausedAt         time.Time
	paused           bool
	accumulatedPause time.Duration

	clk func() time.Time
	log *logrus.Entry
}

// NewManager returns a manager in the menu state with no record loaded
func NewManager(data *config.GameData) *Manager {
	m := &Manager{
		data:      data,
		current:   StateMenu,
		callbacks: make(map[State][]registeredCallback),
		clk:       time.Now,
		log:       logger.For("game"),
	}
	m.sessionStart = m.clk()
	return m
}

// WithClock replaces the wall clock and restarts session accounting
func (m *Manager) WithClock(clk func() time.Time) *Manager {
	if clk != nil {
		m.clk = clk
		m.sessionStart = clk()
	}
	return m
}

// State returns the current state
func (m *Manager) State() State {
	return m.current
}

// PreviousState returns the state before the last transition
func (m *Manager) PreviousState() (State, bool) {
	return m.previous, m.hasPrevious
}

// TransitionTo enters newState and runs its callbacks. Entering the current
// state is a no-op.
func (m *Manager) TransitionTo(newState State) {
	if newState == m.current {
		m.log.Debugf("Already in state %s, no transition", newState)
		return
	}

	old := m.current
	m.log.Infof("State transition: %s -> %s", old, newState)

	now := m.clk()
	if newState == StatePaused {
		m.pausedAt = now
		m.paused = true
	} else if old == StatePaused && m.paused {
		m.accumulatedPause += now.Sub(m.pausedAt)
		m.paused = false
	}

	m.previous = old
	m.hasPrevious = true
	m.current = newState

	// Callbacks may unregister themselves while running
	callbacks := append([]registeredCallback(nil), m.callbacks[newState]...)
	for _, cb := range callbacks {
		m.invoke(newState, cb)
	}
}

func (m *Manager) invoke(state State, cb registeredCallback) {
	defer func() {
		if r := recover(); r != nil {
			m.log.Errorf("Callback panic on entering %s: %v", state, r)
		}
	}()
	if err := cb.fn(); err != nil {
		m.log.Errorf("Callback error on entering %s: %v", state, err)
	}
}

// ReturnToPreviousState transitions back to the prior state, if any
func (m *Manager) ReturnToPreviousState() {
	if m.hasPrevious {
		m.TransitionTo(m.previous)
	}
}

// OnStateEnter registers fn to run whenever state is entered
func (m *Manager) OnStateEnter(state State, fn StateCallback) CallbackID {
	m.nextID++
	m.callbacks[state] = append(m.callbacks[state], registeredCallback{id: m.nextID, fn: fn})
	return m.nextID
}

// RemoveStateCallback unregisters a callback. Unknown ids are ignored.
func (m *Manager) RemoveStateCallback(state State, id CallbackID) {
	list := m.callbacks[state]
	for i, cb := range list {
		if cb.id == id {
			m.callbacks[state] = append(list[:i:i], list[i+1:]...)
			return
		}
	}
}

// LoadRecord makes rec the live record and starts a new play session
func (m *Manager) LoadRecord(rec *models.SaveRecord) {
	m.record = rec
	m.resetSession()
	m.log.Infof("Save data loaded for player '%s'", rec.PlayerName)
}

// ClearRecord unloads the live record
func (m *Manager) ClearRecord() {
	m.record = nil
}

// Record returns the live record, or nil
func (m *Manager) Record() *models.SaveRecord {
	return m.record
}

func (m *Manager) resetSession() {
	now := m.clk()
	m.sessionStart = now
	m.accumulatedPause = 0
	if m.paused {
		m.pausedAt = now
	}
}

// SessionPlayTime returns time played since the session started, excluding
// pauses
func (m *Manager) SessionPlayTime() time.Duration {
	now := m.clk()
	elapsed := now.Sub(m.sessionStart) - m.accumulatedPause
	if m.paused {
		elapsed -= now.Sub(m.pausedAt)
	}
	if elapsed < 0 {
		return 0
	}
	return elapsed
}

// TotalPlayTime returns the stored play time plus the current session
func (m *Manager) TotalPlayTime() time.Duration {
	saved := 0.0
	if m.record != nil {
		saved = m.record.TotalPlayTime
	}
	return time.Duration(saved*float64(time.Second)) + m.SessionPlayTime()
}

// FlushPlayTime writes the total play time into the record and restarts
// session accounting so time is not counted twice
func (m *Manager) FlushPlayTime() {
	if m.record == nil {
		return
	}
	m.record.TotalPlayTime = m.TotalPlayTime().Seconds()
	m.resetSession()
}

// Difficulty returns the record's difficulty, or the default without a record
func (m *Manager) Difficulty() models.Difficulty {
	if m.record == nil || !m.record.Difficulty.Valid() {
		return models.DefaultDifficulty
	}
	return m.record.Difficulty
}

// DifficultyProfile returns the preset for the active difficulty
func (m *Manager) DifficultyProfile() config.DifficultyProfile {
	return m.data.Difficulty(m.Difficulty())
}

// CurrentMonument returns the monument the player is at
func (m *Manager) CurrentMonument() int {
	if m.record == nil {
		return 0
	}
	return m.record.CurrentMonument
}

// SetCurrentMonument moves the player to monument id
func (m *Manager) SetCurrentMonument(id int) error {
	if m.record == nil {
		return ErrNoRecord
	}
	if _, ok := m.data.Monument(id); !ok {
		return fmt.Errorf("%w: %d", ErrInvalidMonument, id)
	}
	m.record.CurrentMonument = id
	return nil
}

// IsMonumentUnlocked reports whether the player may enter monument id.
// Monument 0 is always open; any other opens once one minigame of its
// prerequisite category has been completed.
func (m *Manager) IsMonumentUnlocked(id int) bool {
	mon, ok := m.data.Monument(id)
	if !ok {
		return false
	}
	if id == 0 {
		return true
	}
	if m.record == nil {
		return false
	}
	if mon.UnlockRequires == "" {
		return true
	}
	prefix := mon.UnlockRequires + "_"
	for _, mg := range m.record.CompletedMinigames {
		if strings.HasPrefix(mg, prefix) {
			return true
		}
	}
	return false
}

// UnlockedMonuments returns the ids of every unlocked monument, ascending
func (m *Manager) UnlockedMonuments() []int {
	var ids []int
	for id := 0; id < m.data.TotalMonuments(); id++ {
		if m.IsMonumentUnlocked(id) {
			ids = append(ids, id)
		}
	}
	return ids
}

// HighestUnlockedMonument returns the largest unlocked monument id
func (m *Manager) HighestUnlockedMonument() int {
	ids := m.UnlockedMonuments()
	if len(ids) == 0 {
		return 0
	}
	return ids[len(ids)-1]
}

// CompleteLesson records a finished lesson and reports whether it was new
func (m *Manager) CompleteLesson(id string) (bool, error) {
	if m.record == nil {
		return false, ErrNoRecord
	}
	added := m.record.AddCompletedLesson(id)
	if added {
		m.log.Infof("Lesson completed: %s", id)
	}
	return added, nil
}

// CompleteMinigame records a finished minigame and reports whether it was new
func (m *Manager) CompleteMinigame(id string) (bool, error) {
	if m.record == nil {
		return false, ErrNoRecord
	}
	added := m.record.AddCompletedMinigame(id)
	if added {
		m.log.Infof("Minigame completed: %s", id)
	}
	return added, nil
}

// LearnVocabulary adds a word to the learned list
func (m *Manager) LearnVocabulary(word string) (bool, error) {
	if m.record == nil {
		return false, ErrNoRecord
	}
	return m.record.AddVocabulary(word), nil
}

// LearnGrammar adds a grammar point to the learned list
func (m *Manager) LearnGrammar(point string) (bool, error) {
	if m.record == nil {
		return false, ErrNoRecord
	}
	return m.record.AddGrammar(point), nil
}

// MasteryPercentages returns mastered characters per script against the
// reference totals, 0..100
func (m *Manager) MasteryPercentages() map[models.Script]float64 {
	result := make(map[models.Script]float64, len(characterTotals))
	for script, total := range characterTotals {
		mastered := 0
		if m.record != nil {
			for _, item := range m.record.MasteredCharacters[script] {
				if item.Stage == models.StageMastered {
					mastered++
				}
			}
		}
		result[script] = round1(float64(mastered) / float64(total) * 100)
	}
	return result
}

// MonumentCompletion is a simple completion bar: lessons plus minigames of
// the monument's category over eight, capped at 100
func (m *Manager) MonumentCompletion(id int) float64 {
	mon, ok := m.data.Monument(id)
	if !ok || m.record == nil {
		return 0
	}
	done := 0
	for _, l := range m.record.CompletedLessons {
		if mon.Owns(l) {
			done++
		}
	}
	for _, mg := range m.record.CompletedMinigames {
		if mon.Owns(mg) {
			done++
		}
	}
	return math.Min(100, round1(float64(done)/expectedItemsPerMonument*100))
}

// OverallCompletion averages MonumentCompletion over every monument
func (m *Manager) OverallCompletion() float64 {
	total := m.data.TotalMonuments()
	if m.record == nil || total == 0 {
		return 0
	}
	sum := 0.0
	for id := 0; id < total; id++ {
		sum += m.MonumentCompletion(id)
	}
	return round1(sum / float64(total))
}

// LearningStats aggregates counts, completion and play time
func (m *Manager) LearningStats() LearningStats {
	stats := LearningStats{
		Mastery:           m.MasteryPercentages(),
		OverallCompletion: m.OverallCompletion(),
		TotalPlayTime:     m.TotalPlayTime().Seconds(),
		CurrentMonument:   m.CurrentMonument(),
		HighestUnlocked:   m.HighestUnlockedMonument(),
		Difficulty:        m.Difficulty(),
	}
	if m.record != nil {
		stats.VocabularyCount = len(m.record.VocabularyLearned)
		stats.GrammarCount = len(m.record.GrammarLearned)
		stats.LessonsCompleted = len(m.record.CompletedLessons)
		stats.MinigamesCompleted = len(m.record.CompletedMinigames)
	}
	return stats
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
