// Package progression layers XP, leveling, completion scoring and lesson
// recommendations over a save record and its SRS tracker.
package progression

import (
	"errors"
	"fmt"
	"math"
	"sort"

	"github.com/example/nihongoquest/internal/config"
	"github.com/example/nihongoquest/internal/spaced_repetition"
	"github.com/example/nihongoquest/pkg/logger"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/sirupsen/logrus"
)

var (
	ErrUnknownReward   = errors.New("unknown reward key")
	ErrUnknownMonument = errors.New("unknown monument")
)

// Items with at least this many attempts and accuracy below the threshold
// count as weak
const (
	lowAccuracyMinAttempts = 3
	lowAccuracyThreshold   = 0.5
)

// XPAward describes the outcome of one XP event
type XPAward struct {
	XPGained   int  `json:"xp_gained"`
	NewTotalXP int  `json:"new_total_xp"`
	Level      int  `json:"level"`
	LeveledUp  bool `json:"leveled_up"`
	OldLevel   int  `json:"old_level"`
}

// LevelInfo is the data behind a level progress bar
type LevelInfo struct {
	Level       int     `json:"level"`
	TotalXP     int     `json:"total_xp"`
	XPInLevel   int     `json:"xp_in_level"`
	XPForNext   int     `json:"xp_for_next"`
	ProgressPct float64 `json:"progress_pct"`
}

// Weakness is one monument that still needs work
type Weakness struct {
	Category     string  `json:"category"`
	MonumentID   int     `json:"monument_id"`
	MonumentName string  `json:"monument_name"`
	Completion   float64 `json:"completion"`
	Reason       string  `json:"reason"`
}

// RecommendationType is the kind of activity being recommended
type RecommendationType string

const (
	RecommendReview      RecommendationType = "review"
	RecommendLesson      RecommendationType = "lesson"
	RecommendMinigame    RecommendationType = "minigame"
	RecommendNewMonument RecommendationType = "new_monument"
)

// Recommendation is the single next activity suggested to the player
type Recommendation struct {
	Type       RecommendationType `json:"type"`
	Category   string             `json:"category"`
	MonumentID int                `json:"monument_id"`
	Detail     string             `json:"detail"`
}

// MonumentProgress is the completion of a single monument
type MonumentProgress struct {
	ID         int     `json:"id"`
	Name       string  `json:"name"`
	Completion float64 `json:"completion"`
}

// FullStats aggregates everything a dashboard shows
type FullStats struct {
	LevelInfo          LevelInfo             `json:"level_info"`
	MasteryCounts      map[models.Script]int `json:"mastery_counts"`
	TotalTracked       map[models.Script]int `json:"total_tracked"`
	VocabularyCount    int                   `json:"vocabulary_count"`
	GrammarCount       int                   `json:"grammar_count"`
	LessonsCompleted   int                   `json:"lessons_completed"`
	MinigamesCompleted int                   `json:"minigames_completed"`
	MonumentProgress   []MonumentProgress    `json:"monument_progress"`
	WeakestAreas       []Weakness            `json:"weakest_areas"`
	Recommendation     *Recommendation       `json:"recommendation"`
	Difficulty         models.Difficulty     `json:"difficulty"`
}

// Service reads and writes progression data on one live record
type Service struct {
	record  *models.SaveRecord
	tracker *spaced_repetition.Tracker
	data    *config.GameData
	curve   *Curve
	log     *logrus.Entry
}

// NewService binds a service to record and tracker. The stored level is
// recomputed from the stored XP so the two never disagree.
func NewService(record *models.SaveRecord, tracker *spaced_repetition.Tracker, data *config.GameData) *Service {
	s := &Service{
		record:  record,
		tracker: tracker,
		data:    data,
		curve:   NewCurve(data.Leveling),
		log:     logger.For("progression"),
	}
	if lv := s.curve.LevelFromXP(record.PlayerXP); lv != record.PlayerLevel {
		s.log.Warnf("Stored level %d disagrees with %d XP, using level %d", record.PlayerLevel, record.PlayerXP, lv)
		record.PlayerLevel = lv
	}
	return s
}

// Curve returns the leveling curve in use
func (s *Service) Curve() *Curve {
	return s.curve
}

// Tracker returns the SRS tracker bound to the record
func (s *Service) Tracker() *spaced_repetition.Tracker {
	return s.tracker
}

// CalculateXPReward returns the base reward for key scaled by the XP
// multiplier of difficulty, rounded up
func (s *Service) CalculateXPReward(key string, difficulty models.Difficulty) (int, error) {
	base, ok := s.data.XPRewards[key]
	if !ok {
		return 0, fmt.Errorf("%w: %q", ErrUnknownReward, key)
	}
	mult := s.data.Difficulty(difficulty).XPMultiplier
	return int(math.Ceil(float64(base) * mult)), nil
}

// AwardXP adds the reward for key to the record and recomputes the level
func (s *Service) AwardXP(key string) (XPAward, error) {
	gained, err := s.CalculateXPReward(key, s.record.Difficulty)
	if err != nil {
		return XPAward{}, err
	}

	oldLevel := s.record.PlayerLevel
	total := s.record.PlayerXP + gained
	newLevel := s.curve.LevelFromXP(total)

	s.record.PlayerXP = total
	s.record.PlayerLevel = newLevel

	leveledUp := newLevel > oldLevel
	if leveledUp {
		s.log.Infof("Player leveled up! %d -> %d", oldLevel, newLevel)
	}
	return XPAward{
		XPGained:   gained,
		NewTotalXP: total,
		Level:      newLevel,
		LeveledUp:  leveledUp,
		OldLevel:   oldLevel,
	}, nil
}

// RecordCharacterAnswer records an answer using the streak threshold and
// interval multiplier of the record's difficulty
func (s *Service) RecordCharacterAnswer(script models.Script, itemID string, correct bool) (models.MasteryStage, error) {
	if !script.Valid() {
		return models.StageNew, fmt.Errorf("%w %q", models.ErrUnknownScript, script)
	}
	profile := s.data.Difficulty(s.record.Difficulty)
	return s.tracker.RecordAnswer(script, itemID, correct, profile.ConsecutiveCorrectToMaster, profile.SRSIntervalMultiplier), nil
}

// LevelInfo returns the current level and progress toward the next one
func (s *Service) LevelInfo() LevelInfo {
	total := s.record.PlayerXP
	into, needed := s.curve.ProgressInLevel(total)
	pct := 100.0
	if needed > 0 {
		pct = round1(float64(into) / float64(needed) * 100)
	}
	return LevelInfo{
		Level:       s.curve.LevelFromXP(total),
		TotalXP:     total,
		XPInLevel:   into,
		XPForNext:   needed,
		ProgressPct: pct,
	}
}

// MonumentCompletionPercentage scores a monument from 0 to 100: 30% lessons,
// 30% minigames and 40% mastered items. Only character categories track
// mastered items, so other monuments top out at 60.
func (s *Service) MonumentCompletionPercentage(monumentID int) (float64, error) {
	m, ok := s.data.Monument(monumentID)
	if !ok {
		return 0, fmt.Errorf("%w: %d", ErrUnknownMonument, monumentID)
	}

	lessons := countOwned(s.record.CompletedLessons, m)
	minigames := countOwned(s.record.CompletedMinigames, m)
	mastered := 0
	if script, ok := models.CharacterScript(m.Category); ok {
		mastered = s.tracker.MasteredCount(script)
	}

	lessonPct := ratio(lessons, s.data.ExpectedLessonsPerMonument)
	minigamePct := ratio(minigames, s.data.ExpectedMinigamesPerMonument)
	masteryPct := ratio(mastered, s.data.ExpectedMasteryCount(m.Category))

	weighted := lessonPct*0.30 + minigamePct*0.30 + masteryPct*0.40
	return round1(weighted * 100), nil
}

// WeakestAreas lists unfinished monuments up to one past the current one,
// weakest first
func (s *Service) WeakestAreas() []Weakness {
	weaknesses := []Weakness{}
	for _, m := range s.data.Monuments {
		if m.ID > s.record.CurrentMonument+1 {
			continue
		}
		completion, err := s.MonumentCompletionPercentage(m.ID)
		if err != nil || completion >= 100.0 {
			continue
		}
		weaknesses = append(weaknesses, Weakness{
			Category:     m.Category,
			MonumentID:   m.ID,
			MonumentName: m.Name,
			Completion:   completion,
			Reason:       s.diagnose(m),
		})
	}

	sort.SliceStable(weaknesses, func(i, j int) bool {
		return weaknesses[i].Completion < weaknesses[j].Completion
	})
	return weaknesses
}

func (s *Service) diagnose(m models.Monument) string {
	if countOwned(s.record.CompletedLessons, m) == 0 {
		return "No lessons started yet."
	}
	if countOwned(s.record.CompletedMinigames, m) == 0 {
		return "Lessons started but no minigames attempted."
	}
	if script, ok := models.CharacterScript(m.Category); ok {
		if n := s.tracker.LowAccuracyCount(script, lowAccuracyMinAttempts, lowAccuracyThreshold); n > 0 {
			return fmt.Sprintf("%d item(s) with low accuracy, more practice needed.", n)
		}
	}
	return "In progress, keep going!"
}

// RecommendNextLesson picks the next activity in a fixed priority order:
// due reviews, the next lesson of the current monument, its next minigame,
// then the next monument. Returns nil when everything is done.
func (s *Service) RecommendNextLesson() *Recommendation {
	current, ok := s.data.Monument(s.record.CurrentMonument)
	if !ok {
		current, _ = s.data.Monument(0)
	}

	for _, script := range models.Scripts {
		if due := s.tracker.DueItems(script, 0); len(due) > 0 {
			return &Recommendation{
				Type:       RecommendReview,
				Category:   string(script),
				MonumentID: current.ID,
				Detail:     fmt.Sprintf("Review %s characters: %d item(s) due.", script, len(due)),
			}
		}
	}

	lessons := toSet(s.record.CompletedLessons)
	for n := 1; n <= s.data.ExpectedLessonsPerMonument; n++ {
		if id := fmt.Sprintf("%slesson_%d", current.Prefix(), n); !lessons[id] {
			return &Recommendation{
				Type:       RecommendLesson,
				Category:   current.Category,
				MonumentID: current.ID,
				Detail:     fmt.Sprintf("Continue with lesson %d at %s.", n, current.Name),
			}
		}
	}

	minigames := toSet(s.record.CompletedMinigames)
	for n := 1; n <= s.data.ExpectedMinigamesPerMonument; n++ {
		if id := fmt.Sprintf("%sminigame_%d", current.Prefix(), n); !minigames[id] {
			return &Recommendation{
				Type:       RecommendMinigame,
				Category:   current.Category,
				MonumentID: current.ID,
				Detail:     fmt.Sprintf("Play minigame %d at %s to prove mastery.", n, current.Name),
			}
		}
	}

	if next, ok := s.data.Monument(current.ID + 1); ok {
		return &Recommendation{
			Type:       RecommendNewMonument,
			Category:   next.Category,
			MonumentID: next.ID,
			Detail:     fmt.Sprintf("Advance to %s (%s)!", next.Name, next.NameJP),
		}
	}
	return nil
}

// FullStats builds the dashboard view. It does not modify the record.
func (s *Service) FullStats() FullStats {
	mastery := make(map[models.Script]int, len(models.Scripts))
	tracked := make(map[models.Script]int, len(models.Scripts))
	for _, script := range models.Scripts {
		mastery[script] = s.tracker.MasteredCount(script)
		tracked[script] = s.tracker.TrackedCount(script)
	}

	progress := make([]MonumentProgress, 0, len(s.data.Monuments))
	for _, m := range s.data.Monuments {
		completion, _ := s.MonumentCompletionPercentage(m.ID)
		progress = append(progress, MonumentProgress{ID: m.ID, Name: m.Name, Completion: completion})
	}

	return FullStats{
		LevelInfo:          s.LevelInfo(),
		MasteryCounts:      mastery,
		TotalTracked:       tracked,
		VocabularyCount:    len(s.record.VocabularyLearned),
		GrammarCount:       len(s.record.GrammarLearned),
		LessonsCompleted:   len(s.record.CompletedLessons),
		MinigamesCompleted: len(s.record.CompletedMinigames),
		MonumentProgress:   progress,
		WeakestAreas:       s.WeakestAreas(),
		Recommendation:     s.RecommendNextLesson(),
		Difficulty:         s.record.Difficulty,
	}
}

func countOwned(ids []string, m models.Monument) int {
	n := 0
	for _, id := range ids {
		if m.Owns(id) {
			n++
		}
	}
	return n
}

func toSet(ids []string) map[string]bool {
	set := make(map[string]bool, len(ids))
	for _, id := range ids {
		set[id] = true
	}
	return set
}

// ratio returns n/expected clamped to [0, 1]; a zero denominator yields 0
func ratio(n, expected int) float64 {
	if expected <= 0 {
		return 0
	}
	return math.Min(1.0, float64(n)/float64(expected))
}

func round1(v float64) float64 {
	return math.Round(v*10) / 10
}
