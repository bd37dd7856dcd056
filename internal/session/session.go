// Package session is the entry point the presentation layer talks to. A
// Session owns at most one live save record together with its state
// machine, SRS tracker and progression service.
package session

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/example/nihongoquest/internal/config"
	"github.com/example/nihongoquest/internal/game"
	"github.com/example/nihongoquest/internal/progression"
	"github.com/example/nihongoquest/internal/savestore"
	"github.com/example/nihongoquest/internal/spaced_repetition"
	"github.com/example/nihongoquest/pkg/logger"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/google/uuid"
	"github.com/sirupsen/logrus"
)

var (
	ErrNoSave         = errors.New("no save found")
	ErrNoActiveSave   = errors.New("no active save")
	ErrMonumentLocked = errors.New("monument is locked")
)

const ledgerTimeout = 5 * time.Second

// Ledger receives play-session and answer history. Failures are logged and
// never interrupt play.
type Ledger interface {
	StartSession(ctx context.Context, s *models.PlaySession) error
	EndSession(ctx context.Context, id string, endedAt time.Time, playSeconds float64) error
	RecordAnswer(ctx context.Context, a *models.AnswerEvent) error
}

// AnswerOutcome reports what one SRS answer changed
type AnswerOutcome struct {
	StageBefore models.MasteryStage
	Stage       models.MasteryStage
	// Set when the answer moved the item into the mastered stage
	Award *progression.XPAward
}

// Promoted reports whether the answer advanced the item
func (o AnswerOutcome) Promoted() bool {
	return o.Stage > o.StageBefore
}

// Demoted reports whether the answer dropped the item a stage
func (o AnswerOutcome) Demoted() bool {
	return o.Stage < o.StageBefore
}

// Session serializes access to the live game so scheduled jobs can run
// alongside the game loop
type Session struct {
	mu sync.Mutex

	store   *savestore.Store
	data    *config.GameData
	ledger  Ledger
	manager *game.Manager

	slot      int
	sessionID string
	// Record play time when the session started
	baseline float64
	tracker  *spaced_repetition.Tracker
	progress *progression.Service

	clk func() time.Time
	log *logrus.Entry
}

// New creates a session with no save loaded. ledger may be nil.
func New(store *savestore.Store, data *config.GameData, ledger Ledger) *Session {
	return &Session{
		store:   store,
		data:    data,
		ledger:  ledger,
		manager: game.NewManager(data),
		clk:     time.Now,
		log:     logger.For("session"),
	}
}

// WithClock replaces the clock of the session and everything it creates
func (s *Session) WithClock(clk func() time.Time) *Session {
	if clk != nil {
		s.clk = clk
		s.manager.WithClock(clk)
	}
	return s
}

// Manager returns the state machine. Callers must not use it concurrently
// with the session.
func (s *Session) Manager() *game.Manager {
	return s.manager
}

// Progression returns the progression service of the active save, or nil
func (s *Session) Progression() *progression.Service {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.progress
}

// Slot returns the active slot
func (s *Session) Slot() (int, bool) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.slot, s.slot != 0
}

// ID returns the identifier of the current play session
func (s *Session) ID() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.sessionID
}

// NewGame creates a save in slot and makes it active. Invalid arguments
// leave the current save loaded.
func (s *Session) NewGame(slot int, name string, appearance map[string]string, difficulty models.Difficulty) (*models.SaveRecord, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.store.ValidateSlot(slot); err != nil {
		return nil, err
	}
	if difficulty == "" {
		difficulty = models.DefaultDifficulty
	}
	if !difficulty.Valid() {
		return nil, fmt.Errorf("%w: %q", savestore.ErrInvalidDifficulty, difficulty)
	}

	if s.slot != 0 {
		s.deactivate()
	}
	rec, err := s.store.Create(slot, name, appearance, difficulty)
	if err != nil {
		return nil, err
	}
	if exists, _ := s.store.Exists(slot); !exists {
		s.log.WithField("slot", slot).Warn("New game is running without a save file")
	}
	s.activate(slot, rec)
	return rec, nil
}

// LoadSlot loads slot and makes it active
func (s *Session) LoadSlot(slot int) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.loadSlot(slot)
}

// loadSlot reads the new save before unloading the current one, so a
// bad slot leaves the session as it was
func (s *Session) loadSlot(slot int) error {
	if err := s.store.ValidateSlot(slot); err != nil {
		return err
	}
	if s.slot == slot {
		// Reloading the active slot picks up what was just saved
		s.deactivate()
	}
	rec, err := s.store.Load(slot)
	if err != nil {
		return err
	}
	if rec == nil {
		return fmt.Errorf("%w in slot %d", ErrNoSave, slot)
	}
	if s.slot != 0 {
		s.deactivate()
	}
	s.activate(slot, rec)
	return nil
}

// Continue loads the most recently played slot
func (s *Session) Continue() (int, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	slot, ok := s.store.MostRecent()
	if !ok {
		return 0, ErrNoSave
	}
	return slot, s.loadSlot(slot)
}

func (s *Session) activate(slot int, rec *models.SaveRecord) {
	s.manager.TransitionTo(game.StateLoading)
	s.manager.LoadRecord(rec)
	s.tracker = spaced_repetition.NewTracker(rec, s.data.SRSIntervalHours).WithClock(s.clk)
	s.progress = progression.NewService(rec, s.tracker, s.data)
	s.slot = slot
	s.sessionID = uuid.NewString()
	s.baseline = rec.TotalPlayTime

	if s.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		defer cancel()
		err := s.ledger.StartSession(ctx, &models.PlaySession{
			ID:         s.sessionID,
			Slot:       slot,
			PlayerName: rec.PlayerName,
			Difficulty: string(rec.Difficulty),
			StartedAt:  s.clk().UTC(),
		})
		if err != nil {
			s.log.Warnf("Could not record session start: %v", err)
		}
	}

	s.manager.TransitionTo(game.StateOverworld)
	s.log.WithFields(logrus.Fields{"slot": slot, "session": s.sessionID}).Info("Session started")
}

// Save flushes play time and writes the active save
func (s *Session) Save() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return false, ErrNoActiveSave
	}
	return s.save()
}

func (s *Session) save() (bool, error) {
	s.manager.FlushPlayTime()
	return s.store.Save(s.slot, s.manager.Record())
}

// Autosave saves when a save is active and does nothing otherwise
func (s *Session) Autosave() (bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return false, nil
	}
	ok, err := s.save()
	if ok {
		s.log.WithField("slot", s.slot).Debug("Autosaved")
	}
	return ok, err
}

// Close saves and unloads the active save, ending the play session
func (s *Session) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return nil
	}
	ok, err := s.deactivate()
	if err != nil {
		return err
	}
	if !ok {
		return fmt.Errorf("failed to save slot before closing")
	}
	return nil
}

// Discard unloads the active save without writing it. The save file,
// its backup and last_played stay untouched.
func (s *Session) Discard() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot != 0 {
		s.unload()
	}
}

func (s *Session) deactivate() (bool, error) {
	ok, err := s.save()
	s.unload()
	return ok, err
}

func (s *Session) unload() {
	if s.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		defer cancel()
		playSeconds := s.manager.TotalPlayTime().Seconds() - s.baseline
		if err := s.ledger.EndSession(ctx, s.sessionID, s.clk().UTC(), playSeconds); err != nil {
			s.log.Warnf("Could not record session end: %v", err)
		}
	}

	s.log.WithFields(logrus.Fields{"slot": s.slot, "session": s.sessionID}).Info("Session closed")
	s.manager.ClearRecord()
	s.manager.TransitionTo(game.StateMenu)
	s.slot = 0
	s.sessionID = ""
	s.tracker = nil
	s.progress = nil
}

// RecordAnswer applies an SRS answer for script and item. Reaching the
// mastered stage awards character XP.
func (s *Session) RecordAnswer(script models.Script, itemID string, correct bool) (AnswerOutcome, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return AnswerOutcome{}, ErrNoActiveSave
	}
	if !script.Valid() {
		return AnswerOutcome{}, fmt.Errorf("%w %q", models.ErrUnknownScript, script)
	}

	before := s.tracker.Item(script, itemID).Stage
	stage, err := s.progress.RecordCharacterAnswer(script, itemID, correct)
	if err != nil {
		return AnswerOutcome{}, err
	}
	outcome := AnswerOutcome{StageBefore: before, Stage: stage}

	if stage == models.StageMastered && before != models.StageMastered {
		award, err := s.progress.AwardXP(config.RewardCharacterMastered)
		if err != nil {
			return outcome, err
		}
		outcome.Award = &award
	}

	if s.ledger != nil {
		ctx, cancel := context.WithTimeout(context.Background(), ledgerTimeout)
		defer cancel()
		err := s.ledger.RecordAnswer(ctx, &models.AnswerEvent{
			SessionID:   s.sessionID,
			Slot:        s.slot,
			Script:      string(script),
			ItemID:      itemID,
			Correct:     correct,
			StageBefore: before.String(),
			StageAfter:  stage.String(),
			AnsweredAt:  s.clk().UTC(),
		})
		if err != nil {
			s.log.Warnf("Could not record answer: %v", err)
		}
	}
	return outcome, nil
}

// CompleteLesson marks a lesson done. XP is awarded only the first time.
func (s *Session) CompleteLesson(lessonID string) (*progression.XPAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeOnce(s.manager.CompleteLesson, lessonID, config.RewardLessonComplete)
}

// CompleteMinigame marks a minigame done. XP is awarded only the first time,
// at the perfect rate when perfect is set.
func (s *Session) CompleteMinigame(minigameID string, perfect bool) (*progression.XPAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	key := config.RewardMinigameComplete
	if perfect {
		key = config.RewardMinigamePerfect
	}
	return s.completeOnce(s.manager.CompleteMinigame, minigameID, key)
}

// LearnVocabulary adds a word and awards word XP the first time
func (s *Session) LearnVocabulary(word string) (*progression.XPAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeOnce(s.manager.LearnVocabulary, word, config.RewardWordMastered)
}

// LearnGrammar adds a grammar point and awards grammar XP the first time
func (s *Session) LearnGrammar(point string) (*progression.XPAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.completeOnce(s.manager.LearnGrammar, point, config.RewardGrammarMastered)
}

func (s *Session) completeOnce(add func(string) (bool, error), id, rewardKey string) (*progression.XPAward, error) {
	if s.slot == 0 {
		return nil, ErrNoActiveSave
	}
	added, err := add(id)
	if err != nil || !added {
		return nil, err
	}
	award, err := s.progress.AwardXP(rewardKey)
	if err != nil {
		return nil, err
	}
	return &award, nil
}

// CompleteReview awards XP for finishing a review session
func (s *Session) CompleteReview() (*progression.XPAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return nil, ErrNoActiveSave
	}
	award, err := s.progress.AwardXP(config.RewardReviewComplete)
	if err != nil {
		return nil, err
	}
	return &award, nil
}

// AdvanceMonument moves the player to the next monument once it is
// unlocked and awards the monument bonus
func (s *Session) AdvanceMonument() (*progression.XPAward, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return nil, ErrNoActiveSave
	}

	next := s.manager.CurrentMonument() + 1
	if _, ok := s.data.Monument(next); !ok {
		return nil, fmt.Errorf("%w: %d", game.ErrInvalidMonument, next)
	}
	if !s.manager.IsMonumentUnlocked(next) {
		return nil, fmt.Errorf("%w: %d", ErrMonumentLocked, next)
	}
	if err := s.manager.SetCurrentMonument(next); err != nil {
		return nil, err
	}
	award, err := s.progress.AwardXP(config.RewardMonumentComplete)
	if err != nil {
		return nil, err
	}
	return &award, nil
}

// PendingReviews counts SRS items due across all scripts. Zero without an
// active save.
func (s *Session) PendingReviews() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return 0
	}
	return s.tracker.DueCount()
}

// Stats returns the dashboard view of the active save
func (s *Session) Stats() (progression.FullStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return progression.FullStats{}, ErrNoActiveSave
	}
	return s.progress.FullStats(), nil
}

// LearningStats returns counts, completion and play time of the active save
func (s *Session) LearningStats() (game.LearningStats, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.slot == 0 {
		return game.LearningStats{}, ErrNoActiveSave
	}
	return s.manager.LearningStats(), nil
}

// Tracker returns the SRS tracker of the active save, or nil
func (s *Session) Tracker() *spaced_repetition.Tracker {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.tracker
}
