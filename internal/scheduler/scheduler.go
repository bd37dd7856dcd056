package scheduler

import (
	"fmt"
	"time"

	"github.com/example/nihongoquest/internal/config"
	"github.com/example/nihongoquest/pkg/logger"
	"github.com/go-co-op/gocron"
	"github.com/sirupsen/logrus"
)

// Default notification window, local hours inclusive
const (
	DefaultNotificationStartHour = 8
	DefaultNotificationEndHour   = 22
)

// Saver writes the active save, reporting false when nothing was written
type Saver interface {
	Autosave() (bool, error)
}

// ReviewSource counts SRS items that are due
type ReviewSource interface {
	PendingReviews() int
}

// Notifier interface for sending review reminders
type Notifier interface {
	SendReviewReminder(count int) error
}

// Scheduler manages the periodic autosave and reminder jobs
type Scheduler struct {
	scheduler *gocron.Scheduler
	saver     Saver
	reviews   ReviewSource
	notifier  Notifier

	autosaveEvery time.Duration
	reminderEvery time.Duration
	startHour     int
	endHour       int

	clk func() time.Time
	log *logrus.Entry
}

// New creates a scheduler. notifier may be nil, which disables reminders.
func New(cfg *config.Config, saver Saver, reviews ReviewSource, notifier Notifier) *Scheduler {
	s := &Scheduler{
		scheduler:     gocron.NewScheduler(time.Local),
		saver:         saver,
		reviews:       reviews,
		notifier:      notifier,
		autosaveEvery: cfg.AutosaveInterval,
		reminderEvery: cfg.ReminderInterval,
		startHour:     DefaultNotificationStartHour,
		endHour:       DefaultNotificationEndHour,
		clk:           time.Now,
		log:           logger.For("scheduler"),
	}
	if validHour(cfg.NotificationStartHour) && validHour(cfg.NotificationEndHour) {
		s.startHour = cfg.NotificationStartHour
		s.endHour = cfg.NotificationEndHour
	}
	return s
}

// WithClock replaces the clock used for the notification window
func (s *Scheduler) WithClock(clk func() time.Time) *Scheduler {
	if clk != nil {
		s.clk = clk
	}
	return s
}

// Start begins running all scheduled tasks
func (s *Scheduler) Start() error {
	if s.saver != nil && s.autosaveEvery > 0 {
		if _, err := s.scheduler.Every(s.autosaveEvery).Do(s.RunAutosave); err != nil {
			return fmt.Errorf("failed to schedule autosave: %w", err)
		}
	}
	if s.notifier != nil && s.reviews != nil && s.reminderEvery > 0 {
		// The first run waits a full interval so startup does not ping the player
		if _, err := s.scheduler.Every(s.reminderEvery).WaitForSchedule().Do(s.RunReminderCheck); err != nil {
			return fmt.Errorf("failed to schedule reminders: %w", err)
		}
	}

	s.scheduler.StartAsync()
	s.log.WithFields(logrus.Fields{
		"autosave": s.autosaveEvery,
		"reminder": s.reminderEvery,
	}).Info("Scheduler started")
	return nil
}

// Stop terminates all scheduled tasks
func (s *Scheduler) Stop() {
	s.scheduler.Stop()
}

// RunAutosave saves the active game, if any
func (s *Scheduler) RunAutosave() {
	ok, err := s.saver.Autosave()
	if err != nil {
		s.log.Errorf("Autosave failed: %v", err)
		return
	}
	if ok {
		s.log.Debug("Autosave complete")
	}
}

// RunReminderCheck sends a reminder when reviews are due inside the
// notification window. It reports whether a reminder was sent.
func (s *Scheduler) RunReminderCheck() bool {
	if s.notifier == nil || s.reviews == nil {
		return false
	}

	currentHour := s.clk().Hour()
	if !s.inWindow(currentHour) {
		s.log.Debugf("Current hour %d is outside notification hours (%d-%d), skipping reminders",
			currentHour, s.startHour, s.endHour)
		return false
	}

	count := s.reviews.PendingReviews()
	if count == 0 {
		return false
	}
	if err := s.notifier.SendReviewReminder(count); err != nil {
		s.log.Errorf("Error sending review reminder: %v", err)
		return false
	}
	s.log.WithField("due", count).Info("Review reminder sent")
	return true
}

// inWindow handles windows that wrap past midnight, e.g. 20-2
func (s *Scheduler) inWindow(hour int) bool {
	if s.startHour <= s.endHour {
		return hour >= s.startHour && hour <= s.endHour
	}
	return hour >= s.startHour || hour <= s.endHour
}

func validHour(h int) bool {
	return h >= 0 && h <= 23
}
