package session

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/example/nihongoquest/internal/config"
	"github.com/example/nihongoquest/internal/game"
	"github.com/example/nihongoquest/internal/savestore"
	"github.com/example/nihongoquest/pkg/models"
)

type fakeLedger struct {
	started []models.PlaySession
	ended   map[string]float64
	answers []models.AnswerEvent
	fail    bool
}

func newFakeLedger() *fakeLedger {
	return &fakeLedger{ended: make(map[string]float64)}
}

func (l *fakeLedger) StartSession(ctx context.Context, s *models.PlaySession) error {
	if l.fail {
		return errors.New("ledger offline")
	}
	l.started = append(l.started, *s)
	return nil
}

func (l *fakeLedger) EndSession(ctx context.Context, id string, endedAt time.Time, playSeconds float64) error {
	if l.fail {
		return errors.New("ledger offline")
	}
	l.ended[id] = playSeconds
	return nil
}

func (l *fakeLedger) RecordAnswer(ctx context.Context, a *models.AnswerEvent) error {
	if l.fail {
		return errors.New("ledger offline")
	}
	l.answers = append(l.answers, *a)
	return nil
}

type testClock struct {
	now time.Time
}

func (c *testClock) Now() time.Time { return c.now }

func (c *testClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestSession(t *testing.T, ledger Ledger) (*Session, *testClock, *savestore.Store) {
	t.Helper()
	clk := &testClock{now: time.Date(2024, 7, 1, 18, 0, 0, 0, time.UTC)}
	store := savestore.New(savestore.DefaultOptions(t.TempDir())).WithClock(clk.Now)
	return New(store, config.DefaultGameData(), ledger).WithClock(clk.Now), clk, store
}

func TestRequiresActiveSave(t *testing.T) {
	s, _, _ := newTestSession(t, nil)

	if _, err := s.Save(); !errors.Is(err, ErrNoActiveSave) {
		t.Errorf("Save err = %v", err)
	}
	if _, err := s.RecordAnswer(models.ScriptHiragana, "あ", true); !errors.Is(err, ErrNoActiveSave) {
		t.Errorf("RecordAnswer err = %v", err)
	}
	if _, err := s.CompleteLesson("hiragana_lesson_1"); !errors.Is(err, ErrNoActiveSave) {
		t.Errorf("CompleteLesson err = %v", err)
	}
	if _, err := s.Stats(); !errors.Is(err, ErrNoActiveSave) {
		t.Errorf("Stats err = %v", err)
	}
	if ok, err := s.Autosave(); ok || err != nil {
		t.Errorf("Autosave = %v, %v", ok, err)
	}
	if n := s.PendingReviews(); n != 0 {
		t.Errorf("PendingReviews = %d", n)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close = %v", err)
	}
	if err := s.LoadSlot(2); !errors.Is(err, ErrNoSave) {
		t.Errorf("LoadSlot(empty) err = %v", err)
	}
	if _, err := s.Continue(); !errors.Is(err, ErrNoSave) {
		t.Errorf("Continue err = %v", err)
	}
}

func TestNewGameAnswerSaveReload(t *testing.T) {
	ledger := newFakeLedger()
	s, clk, store := newTestSession(t, ledger)

	rec, err := s.NewGame(1, "Aiko", nil, models.DifficultyNormal)
	if err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if rec.PlayerName != "Aiko" || s.Manager().State() != game.StateOverworld {
		t.Fatalf("record = %+v, state = %s", rec, s.Manager().State())
	}
	if len(ledger.started) != 1 || ledger.started[0].ID != s.ID() {
		t.Fatalf("ledger sessions = %+v", ledger.started)
	}

	var out AnswerOutcome
	for i := 0; i < 5; i++ {
		out, err = s.RecordAnswer(models.ScriptHiragana, "あ", true)
		if err != nil {
			t.Fatal(err)
		}
	}
	if !out.Promoted() || out.Stage != models.StageLearning || out.Award != nil {
		t.Errorf("outcome = %+v", out)
	}
	if len(ledger.answers) != 5 || ledger.answers[4].StageAfter != "learning" || ledger.answers[4].StageBefore != "new" {
		t.Errorf("ledger answers = %+v", ledger.answers)
	}

	clk.Advance(90 * time.Second)
	sessionID := s.ID()
	if err := s.Close(); err != nil {
		t.Fatalf("Close: %v", err)
	}
	if got := ledger.ended[sessionID]; got != 90 {
		t.Errorf("session play seconds = %v, want 90", got)
	}
	if _, ok := s.Slot(); ok || s.Manager().State() != game.StateMenu {
		t.Error("Close should unload the save")
	}

	loaded, err := store.Load(1)
	if err != nil || loaded == nil {
		t.Fatalf("Load = %v, %v", loaded, err)
	}
	item := loaded.MasteredCharacters[models.ScriptHiragana]["あ"]
	if item.Stage != models.StageLearning || item.TotalAttempts != 5 {
		t.Errorf("saved item = %+v", item)
	}
	if loaded.TotalPlayTime != 90 {
		t.Errorf("saved play time = %v", loaded.TotalPlayTime)
	}
}

func TestMasteryAwardsXP(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	rec, err := s.NewGame(1, "Ren", nil, models.DifficultyNormal)
	if err != nil {
		t.Fatal(err)
	}
	rec.ScriptItems(models.ScriptKatakana)["ア"] = models.SRSItem{
		ItemID: "ア", Stage: models.StageReview, ConsecutiveCorrect: 4, TotalCorrect: 20, TotalAttempts: 22,
	}

	out, err := s.RecordAnswer(models.ScriptKatakana, "ア", true)
	if err != nil {
		t.Fatal(err)
	}
	if out.Stage != models.StageMastered || out.Award == nil || out.Award.XPGained != 20 {
		t.Fatalf("outcome = %+v", out)
	}

	out, _ = s.RecordAnswer(models.ScriptKatakana, "ア", true)
	if out.Award != nil {
		t.Error("staying mastered must not award XP again")
	}
	if rec.PlayerXP != 20 {
		t.Errorf("xp = %d", rec.PlayerXP)
	}

	out, _ = s.RecordAnswer(models.ScriptKatakana, "ア", false)
	if !out.Demoted() || out.Stage != models.StageReview {
		t.Errorf("miss outcome = %+v", out)
	}
}

func TestCompletionsAwardOnce(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	rec, _ := s.NewGame(2, "Sora", nil, models.DifficultyNormal)

	award, err := s.CompleteLesson("hiragana_lesson_1")
	if err != nil || award == nil || award.XPGained != 50 {
		t.Fatalf("first lesson = %+v, %v", award, err)
	}
	if award, err = s.CompleteLesson("hiragana_lesson_1"); err != nil || award != nil {
		t.Errorf("repeat lesson = %+v, %v", award, err)
	}

	award, _ = s.CompleteMinigame("hiragana_minigame_1", true)
	if award == nil || award.XPGained != 150 || !award.LeveledUp || award.Level != 2 {
		t.Errorf("perfect minigame = %+v", award)
	}
	if award, _ = s.CompleteMinigame("hiragana_minigame_1", false); award != nil {
		t.Error("repeat minigame awarded XP")
	}

	if award, _ = s.LearnVocabulary("ねこ"); award == nil || award.XPGained != 25 {
		t.Errorf("vocabulary = %+v", award)
	}
	if award, _ = s.LearnGrammar("は"); award == nil || award.XPGained != 40 {
		t.Errorf("grammar = %+v", award)
	}
	if award, _ = s.CompleteReview(); award == nil || award.XPGained != 25 {
		t.Errorf("review = %+v", award)
	}

	if rec.PlayerXP != 290 || rec.PlayerLevel != 3 {
		t.Errorf("xp = %d, level = %d", rec.PlayerXP, rec.PlayerLevel)
	}
}

func TestAdvanceMonument(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	rec, _ := s.NewGame(1, "Mei", nil, models.DifficultyHard)

	if _, err := s.AdvanceMonument(); !errors.Is(err, ErrMonumentLocked) {
		t.Fatalf("err = %v, want ErrMonumentLocked", err)
	}

	s.CompleteMinigame("hiragana_minigame_1", false)
	award, err := s.AdvanceMonument()
	if err != nil {
		t.Fatalf("AdvanceMonument: %v", err)
	}
	if rec.CurrentMonument != 1 || award.XPGained != 650 {
		t.Errorf("monument = %d, award = %+v", rec.CurrentMonument, award)
	}

	rec.CurrentMonument = 12
	if _, err := s.AdvanceMonument(); !errors.Is(err, game.ErrInvalidMonument) {
		t.Errorf("err = %v, want ErrInvalidMonument", err)
	}
}

func TestContinueLoadsMostRecent(t *testing.T) {
	s, clk, _ := newTestSession(t, nil)

	if _, err := s.NewGame(3, "First", nil, ""); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)
	if _, err := s.NewGame(1, "Second", nil, ""); err != nil {
		t.Fatal(err)
	}
	clk.Advance(time.Minute)
	if err := s.Close(); err != nil {
		t.Fatal(err)
	}

	slot, err := s.Continue()
	if err != nil || slot != 1 {
		t.Fatalf("Continue = %d, %v", slot, err)
	}
	if got := s.Progression(); got == nil {
		t.Fatal("expected progression service after Continue")
	}
}

func TestLedgerFailuresDoNotBlockPlay(t *testing.T) {
	ledger := newFakeLedger()
	ledger.fail = true
	s, _, _ := newTestSession(t, ledger)

	if _, err := s.NewGame(1, "Kai", nil, ""); err != nil {
		t.Fatalf("NewGame: %v", err)
	}
	if _, err := s.RecordAnswer(models.ScriptKanji, "日", true); err != nil {
		t.Errorf("RecordAnswer: %v", err)
	}
	if err := s.Close(); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestPendingReviewsAndStats(t *testing.T) {
	s, _, _ := newTestSession(t, nil)
	s.NewGame(1, "Yui", nil, "")

	s.Tracker().Introduce(models.ScriptHiragana, "か", "き")
	if n := s.PendingReviews(); n != 2 {
		t.Errorf("PendingReviews = %d", n)
	}

	stats, err := s.Stats()
	if err != nil {
		t.Fatal(err)
	}
	if stats.Recommendation == nil || stats.Recommendation.Type != "review" {
		t.Errorf("recommendation = %+v", stats.Recommendation)
	}
	if stats.TotalTracked[models.ScriptHiragana] != 2 {
		t.Errorf("tracked = %v", stats.TotalTracked)
	}

	ls, err := s.LearningStats()
	if err != nil || ls.CurrentMonument != 0 {
		t.Errorf("learning stats = %+v, %v", ls, err)
	}
}

func TestRejectedSlotKeepsActiveSave(t *testing.T) {
	ledger := newFakeLedger()
	s, _, _ := newTestSession(t, ledger)
	if _, err := s.NewGame(1, "Aoi", nil, ""); err != nil {
		t.Fatal(err)
	}
	id := s.ID()

	if err := s.LoadSlot(99); !errors.Is(err, savestore.ErrInvalidSlot) {
		t.Errorf("LoadSlot(99) err = %v", err)
	}
	if err := s.LoadSlot(4); !errors.Is(err, ErrNoSave) {
		t.Errorf("LoadSlot(empty) err = %v", err)
	}
	if _, err := s.NewGame(0, "Bad", nil, ""); !errors.Is(err, savestore.ErrInvalidSlot) {
		t.Errorf("NewGame(0) err = %v", err)
	}
	if _, err := s.NewGame(2, "Bad", nil, "nightmare"); !errors.Is(err, savestore.ErrInvalidDifficulty) {
		t.Errorf("NewGame(nightmare) err = %v", err)
	}

	if slot, ok := s.Slot(); !ok || slot != 1 || s.ID() != id {
		t.Fatalf("active save lost: slot = %d, id = %q", slot, s.ID())
	}
	if len(ledger.ended) != 0 {
		t.Errorf("session ended by a rejected call: %v", ledger.ended)
	}
	if _, err := s.RecordAnswer(models.ScriptHiragana, "え", true); err != nil {
		t.Errorf("RecordAnswer after rejected calls: %v", err)
	}
}

func TestLoadSlotSwitchesAndReloads(t *testing.T) {
	s, _, store := newTestSession(t, nil)
	s.NewGame(2, "Other", nil, "")
	s.NewGame(1, "Riku", nil, "")
	s.CompleteLesson("hiragana_lesson_1")

	if err := s.LoadSlot(1); err != nil {
		t.Fatalf("reload active slot: %v", err)
	}
	if rec := s.Manager().Record(); len(rec.CompletedLessons) != 1 {
		t.Errorf("reloaded lessons = %v", rec.CompletedLessons)
	}

	if err := s.LoadSlot(2); err != nil {
		t.Fatalf("LoadSlot(2): %v", err)
	}
	if s.Manager().Record().PlayerName != "Other" {
		t.Errorf("player = %q", s.Manager().Record().PlayerName)
	}
	if rec, _ := store.Load(1); rec == nil || len(rec.CompletedLessons) != 1 {
		t.Errorf("slot 1 not saved on switch: %+v", rec)
	}
}

func TestRecordAnswerRejectsUnknownScript(t *testing.T) {
	s, _, store := newTestSession(t, nil)
	rec, _ := s.NewGame(1, "Nao", nil, "")

	if _, err := s.RecordAnswer(models.Script("romaji"), "a", true); !errors.Is(err, models.ErrUnknownScript) {
		t.Fatalf("err = %v, want ErrUnknownScript", err)
	}
	if len(rec.MasteredCharacters) != len(models.Scripts) {
		t.Errorf("scripts in memory = %d", len(rec.MasteredCharacters))
	}

	if err := s.Close(); err != nil {
		t.Fatal(err)
	}
	saved, _ := store.Load(1)
	if _, ok := saved.MasteredCharacters[models.Script("romaji")]; ok {
		t.Error("unknown script was persisted")
	}
}

func TestDiscardLeavesFilesUntouched(t *testing.T) {
	ledger := newFakeLedger()
	s, clk, store := newTestSession(t, ledger)
	s.NewGame(1, "Emi", nil, "")
	s.Close()
	before, _ := store.Load(1)

	clk.Advance(time.Hour)
	if err := s.LoadSlot(1); err != nil {
		t.Fatal(err)
	}
	id := s.ID()
	s.CompleteLesson("hiragana_lesson_1")
	clk.Advance(30 * time.Second)
	s.Discard()

	if _, ok := s.Slot(); ok {
		t.Error("Discard should unload the save")
	}
	if got := ledger.ended[id]; got != 30 {
		t.Errorf("discarded session seconds = %v, want 30", got)
	}
	after, _ := store.Load(1)
	if *after.LastPlayed != *before.LastPlayed || len(after.CompletedLessons) != 0 {
		t.Errorf("save written by Discard: %+v", after)
	}
}
