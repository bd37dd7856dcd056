package spaced_repetition

import (
	"sort"
	"time"

	"github.com/example/nihongoquest/pkg/logger"
	"github.com/example/nihongoquest/pkg/models"
	"github.com/sirupsen/logrus"
)

// Tracker implements the four-stage review schedule over the
// mastered_characters map of a live save record
type Tracker struct {
	record *models.SaveRecord
	// Hours until the next review, per stage reached
	intervals map[models.MasteryStage]float64
	clk       func() time.Time
	log       *logrus.Entry
}

// DefaultIntervals returns the stage intervals in hours
func DefaultIntervals() map[models.MasteryStage]float64 {
	return map[models.MasteryStage]float64{
		models.StageNew:      0,
		models.StageLearning: 4,
		models.StageReview:   24,
		models.StageMastered: 168,
	}
}

// NewTracker binds a tracker to record. Mutations are visible in the record
// immediately. A nil interval table uses DefaultIntervals.
func NewTracker(record *models.SaveRecord, intervals map[models.MasteryStage]float64) *Tracker {
	if intervals == nil {
		intervals = DefaultIntervals()
	}
	return &Tracker{
		record:    record,
		intervals: intervals,
		clk:       time.Now,
		log:       logger.For("srs"),
	}
}

// WithClock replaces the wall clock
func (t *Tracker) WithClock(clk func() time.Time) *Tracker {
	if clk != nil {
		t.clk = clk
	}
	return t
}

// Record returns the bound save record
func (t *Tracker) Record() *models.SaveRecord {
	return t.record
}

func (t *Tracker) now() float64 {
	return float64(t.clk().UnixNano()) / float64(time.Second)
}

// Item returns the stored item, or a fresh new-stage item that is not stored
func (t *Tracker) Item(script models.Script, itemID string) models.SRSItem {
	if item, ok := t.record.MasteredCharacters[script][itemID]; ok {
		return item
	}
	return models.NewSRSItem(itemID)
}

// Introduce starts tracking the given ids as new items and returns how many
// were not tracked before
func (t *Tracker) Introduce(script models.Script, itemIDs ...string) int {
	items := t.record.ScriptItems(script)
	added := 0
	for _, id := range itemIDs {
		if id == "" {
			continue
		}
		if _, ok := items[id]; ok {
			continue
		}
		items[id] = models.NewSRSItem(id)
		added++
	}
	return added
}

// RecordAnswer applies one answer and returns the item's new stage.
//
// A correct answer extends the streak; when the streak reaches
// consecutiveToMaster the item advances one stage and the streak restarts.
// A wrong answer clears the streak and drops the item one stage. The next
// review is scheduled from the stage interval scaled by intervalMultiplier.
func (t *Tracker) RecordAnswer(script models.Script, itemID string, correct bool, consecutiveToMaster int, intervalMultiplier float64) models.MasteryStage {
	if consecutiveToMaster < 1 {
		consecutiveToMaster = 1
	}
	items := t.record.ScriptItems(script)
	item, ok := items[itemID]
	if !ok {
		item = models.NewSRSItem(itemID)
	}
	before := item.Stage
	now := t.now()

	item.TotalAttempts++
	if correct {
		item.TotalCorrect++
		item.ConsecutiveCorrect++
		if item.ConsecutiveCorrect >= consecutiveToMaster && item.Stage < models.StageMastered {
			item.Stage++
			item.ConsecutiveCorrect = 0
		}
	} else {
		item.ConsecutiveCorrect = 0
		if item.Stage > models.StageNew {
			item.Stage--
		}
	}

	item.LastReviewed = now
	item.NextReview = now + t.intervals[item.Stage]*3600*intervalMultiplier
	items[itemID] = item

	if item.Stage != before {
		t.log.WithFields(logrus.Fields{
			"script": script,
			"item":   itemID,
		}).Debugf("Stage %s -> %s", before, item.Stage)
	}
	return item.Stage
}

// DueItems returns the items due for review, earliest first. New items are
// always due. A limit of zero or less returns every due item.
func (t *Tracker) DueItems(script models.Script, limit int) []models.SRSItem {
	now := t.now()
	var due []models.SRSItem
	for _, item := range t.record.ScriptItems(script) {
		if item.Stage == models.StageNew || now >= item.NextReview {
			due = append(due, item)
		}
	}

	sort.Slice(due, func(i, j int) bool {
		if due[i].NextReview != due[j].NextReview {
			return due[i].NextReview < due[j].NextReview
		}
		return due[i].ItemID < due[j].ItemID
	})

	if limit > 0 && len(due) > limit {
		return due[:limit]
	}
	return due
}

// DueCount counts due items across every script
func (t *Tracker) DueCount() int {
	total := 0
	for _, script := range models.Scripts {
		total += len(t.DueItems(script, 0))
	}
	return total
}

// NewItemCount counts items still at the new stage
func (t *Tracker) NewItemCount(script models.Script) int {
	return t.countStage(script, models.StageNew)
}

// MasteredCount counts items at the mastered stage
func (t *Tracker) MasteredCount(script models.Script) int {
	return t.countStage(script, models.StageMastered)
}

// TrackedCount counts every item stored for script
func (t *Tracker) TrackedCount(script models.Script) int {
	return len(t.record.ScriptItems(script))
}

// LowAccuracyCount counts items with at least minAttempts answers and an
// accuracy below threshold
func (t *Tracker) LowAccuracyCount(script models.Script, minAttempts int, threshold float64) int {
	n := 0
	for _, item := range t.record.ScriptItems(script) {
		if item.TotalAttempts >= minAttempts && item.Accuracy() < threshold {
			n++
		}
	}
	return n
}

// IsMastered reports whether the item has reached the final stage
func (t *Tracker) IsMastered(script models.Script, itemID string) bool {
	return t.Item(script, itemID).Stage == models.StageMastered
}

func (t *Tracker) countStage(script models.Script, stage models.MasteryStage) int {
	n := 0
	for _, item := range t.record.ScriptItems(script) {
		if item.Stage == stage {
			n++
		}
	}
	return n
}
