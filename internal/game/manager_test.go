package game

import (
	"errors"
	"fmt"
	"reflect"
	"testing"
	"time"

	"github.com/example/nihongoquest/internal/config"
	"github.com/example/nihongoquest/pkg/models"
)

type fakeClock struct {
	now time.Time
}

func (c *fakeClock) Now() time.Time { return c.now }

func (c *fakeClock) Advance(d time.Duration) { c.now = c.now.Add(d) }

func newTestManager() (*Manager, *fakeClock) {
	clk := &fakeClock{now: time.Date(2024, 5, 1, 9, 0, 0, 0, time.UTC)}
	return NewManager(config.DefaultGameData()).WithClock(clk.Now), clk
}

func TestTransitions(t *testing.T) {
	m, _ := newTestManager()
	entered := 0
	m.OnStateEnter(StateOverworld, func() error {
		entered++
		return nil
	})

	if m.State() != StateMenu {
		t.Fatalf("initial state = %s", m.State())
	}
	if _, ok := m.PreviousState(); ok {
		t.Error("no previous state expected before any transition")
	}

	m.TransitionTo(StateOverworld)
	m.TransitionTo(StateOverworld)
	if entered != 1 {
		t.Errorf("callback ran %d times, want 1", entered)
	}

	m.TransitionTo(StateLesson)
	m.ReturnToPreviousState()
	if m.State() != StateOverworld || entered != 2 {
		t.Errorf("state = %s, entered = %d", m.State(), entered)
	}
	if prev, ok := m.PreviousState(); !ok || prev != StateLesson {
		t.Errorf("previous = %s, %v", prev, ok)
	}
}

func TestCallbackFailuresAreIsolated(t *testing.T) {
	m, _ := newTestManager()
	var order []string
	m.OnStateEnter(StateLesson, func() error {
		order = append(order, "error")
		return errors.New("boom")
	})
	m.OnStateEnter(StateLesson, func() error {
		order = append(order, "panic")
		panic("kaboom")
	})
	m.OnStateEnter(StateLesson, func() error {
		order = append(order, "ok")
		return nil
	})

	m.TransitionTo(StateLesson)

	want := []string{"error", "panic", "ok"}
	if !reflect.DeepEqual(order, want) {
		t.Errorf("callbacks ran %v, want %v", order, want)
	}
	if m.State() != StateLesson {
		t.Errorf("state = %s", m.State())
	}
}

func TestRemoveStateCallback(t *testing.T) {
	m, _ := newTestManager()
	calls := 0
	var id CallbackID
	id = m.OnStateEnter(StateDialog, func() error {
		calls++
		m.RemoveStateCallback(StateDialog, id)
		return nil
	})
	other := m.OnStateEnter(StateDialog, func() error {
		calls += 10
		return nil
	})
	m.RemoveStateCallback(StateDialog, CallbackID(999))

	m.TransitionTo(StateDialog)
	m.TransitionTo(StateMenu)
	m.TransitionTo(StateDialog)
	if calls != 21 {
		t.Errorf("calls = %d, want 21", calls)
	}

	m.RemoveStateCallback(StateDialog, other)
	m.TransitionTo(StateMenu)
	m.TransitionTo(StateDialog)
	if calls != 21 {
		t.Errorf("calls after removal = %d", calls)
	}
}

func TestPauseAccounting(t *testing.T) {
	m, clk := newTestManager()
	rec := models.NewSaveRecord(1)
	rec.TotalPlayTime = 100
	m.LoadRecord(rec)

	clk.Advance(10 * time.Second)
	m.TransitionTo(StatePaused)
	clk.Advance(5 * time.Second)
	if got := m.SessionPlayTime(); got != 10*time.Second {
		t.Errorf("session while paused = %v, want 10s", got)
	}

	m.TransitionTo(StateOverworld)
	clk.Advance(3 * time.Second)
	if got := m.SessionPlayTime(); got != 13*time.Second {
		t.Errorf("session = %v, want 13s", got)
	}
	if got := m.TotalPlayTime(); got != 113*time.Second {
		t.Errorf("total = %v, want 113s", got)
	}

	m.FlushPlayTime()
	if rec.TotalPlayTime != 113 {
		t.Errorf("flushed total = %v", rec.TotalPlayTime)
	}
	if got := m.SessionPlayTime(); got != 0 {
		t.Errorf("session after flush = %v", got)
	}

	clk.Advance(2 * time.Second)
	m.FlushPlayTime()
	if rec.TotalPlayTime != 115 {
		t.Errorf("second flush = %v, want 115", rec.TotalPlayTime)
	}
}

func TestFlushWhilePaused(t *testing.T) {
	m, clk := newTestManager()
	rec := models.NewSaveRecord(1)
	m.LoadRecord(rec)

	clk.Advance(20 * time.Second)
	m.TransitionTo(StatePaused)
	clk.Advance(30 * time.Second)
	m.FlushPlayTime()
	if rec.TotalPlayTime != 20 {
		t.Fatalf("flushed = %v, want 20", rec.TotalPlayTime)
	}

	clk.Advance(30 * time.Second)
	m.TransitionTo(StateOverworld)
	clk.Advance(5 * time.Second)
	m.FlushPlayTime()
	if rec.TotalPlayTime != 25 {
		t.Errorf("flushed = %v, want 25", rec.TotalPlayTime)
	}
}

func TestMonumentUnlocking(t *testing.T) {
	m, _ := newTestManager()

	if !m.IsMonumentUnlocked(0) {
		t.Error("monument 0 must always be unlocked")
	}
	if m.IsMonumentUnlocked(1) {
		t.Error("monument 1 should be locked without a record")
	}

	rec := models.NewSaveRecord(1)
	m.LoadRecord(rec)
	if _, err := m.CompleteMinigame("hiragana_minigame_1"); err != nil {
		t.Fatal(err)
	}

	if !m.IsMonumentUnlocked(1) {
		t.Error("monument 1 should unlock after a hiragana minigame")
	}
	if m.IsMonumentUnlocked(2) {
		t.Error("monument 2 should stay locked")
	}
	if got := m.UnlockedMonuments(); !reflect.DeepEqual(got, []int{0, 1}) {
		t.Errorf("unlocked = %v", got)
	}
	if got := m.HighestUnlockedMonument(); got != 1 {
		t.Errorf("highest = %d", got)
	}

	m.CompleteLesson("katakana_lesson_1")
	if m.IsMonumentUnlocked(2) {
		t.Error("lessons must not unlock monuments")
	}
	m.CompleteMinigame("katakanaX_minigame_1")
	if m.IsMonumentUnlocked(2) {
		t.Error("prefix must include the separator")
	}

	for _, id := range []int{-1, 13} {
		if m.IsMonumentUnlocked(id) {
			t.Errorf("monument %d should not exist", id)
		}
	}
}

func TestRecordHelpersAreIdempotent(t *testing.T) {
	m, _ := newTestManager()

	if _, err := m.CompleteLesson("x"); !errors.Is(err, ErrNoRecord) {
		t.Errorf("err = %v, want ErrNoRecord", err)
	}

	rec := models.NewSaveRecord(1)
	m.LoadRecord(rec)

	helpers := map[string]func(string) (bool, error){
		"lesson":     m.CompleteLesson,
		"minigame":   m.CompleteMinigame,
		"vocabulary": m.LearnVocabulary,
		"grammar":    m.LearnGrammar,
	}
	for name, fn := range helpers {
		t.Run(name, func(t *testing.T) {
			id := fmt.Sprintf("hiragana_%s_1", name)
			if added, err := fn(id); err != nil || !added {
				t.Fatalf("first call = %v, %v", added, err)
			}
			if added, err := fn(id); err != nil || added {
				t.Fatalf("second call = %v, %v", added, err)
			}
		})
	}

	for name, list := range map[string][]string{
		"lessons":    rec.CompletedLessons,
		"minigames":  rec.CompletedMinigames,
		"vocabulary": rec.VocabularyLearned,
		"grammar":    rec.GrammarLearned,
	} {
		if len(list) != 1 {
			t.Errorf("%s = %v, want one entry", name, list)
		}
	}
}

func TestSetCurrentMonument(t *testing.T) {
	m, _ := newTestManager()
	if err := m.SetCurrentMonument(1); !errors.Is(err, ErrNoRecord) {
		t.Errorf("err = %v", err)
	}

	m.LoadRecord(models.NewSaveRecord(1))
	if err := m.SetCurrentMonument(13); !errors.Is(err, ErrInvalidMonument) {
		t.Errorf("err = %v", err)
	}
	if err := m.SetCurrentMonument(4); err != nil || m.CurrentMonument() != 4 {
		t.Errorf("SetCurrentMonument(4) = %v, current = %d", err, m.CurrentMonument())
	}
}

func TestDifficulty(t *testing.T) {
	m, _ := newTestManager()
	if m.Difficulty() != models.DifficultyNormal || m.DifficultyProfile().ConsecutiveCorrectToMaster != 5 {
		t.Error("expected normal defaults without a record")
	}
	rec := models.NewSaveRecord(1)
	rec.Difficulty = models.DifficultyHard
	m.LoadRecord(rec)
	if m.DifficultyProfile().XPMultiplier != 1.3 {
		t.Errorf("profile = %+v", m.DifficultyProfile())
	}
}

func TestLearningStats(t *testing.T) {
	m, clk := newTestManager()
	rec := models.NewSaveRecord(1)
	rec.TotalPlayTime = 60
	for i := 1; i <= 3; i++ {
		rec.AddCompletedLesson(fmt.Sprintf("hiragana_lesson_%d", i))
	}
	rec.AddCompletedMinigame("hiragana_minigame_1")
	rec.AddVocabulary("猫")
	items := rec.ScriptItems(models.ScriptHiragana)
	for i := 0; i < 23; i++ {
		id := fmt.Sprintf("h%d", i)
		items[id] = models.SRSItem{ItemID: id, Stage: models.StageMastered}
	}
	rec.ScriptItems(models.ScriptKanji)["木"] = models.SRSItem{ItemID: "木", Stage: models.StageMastered}
	m.LoadRecord(rec)
	clk.Advance(30 * time.Second)

	if got := m.MonumentCompletion(0); got != 50 {
		t.Errorf("monument completion = %v", got)
	}
	if got := m.OverallCompletion(); got != 3.8 {
		t.Errorf("overall = %v", got)
	}

	stats := m.LearningStats()
	if stats.Mastery[models.ScriptHiragana] != 50 || stats.Mastery[models.ScriptKanji] != 0.5 || stats.Mastery[models.ScriptKatakana] != 0 {
		t.Errorf("mastery = %v", stats.Mastery)
	}
	if stats.LessonsCompleted != 3 || stats.MinigamesCompleted != 1 || stats.VocabularyCount != 1 {
		t.Errorf("counts = %+v", stats)
	}
	if stats.TotalPlayTime != 90 || stats.HighestUnlocked != 1 {
		t.Errorf("stats = %+v", stats)
	}
}
