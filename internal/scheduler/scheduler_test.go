package scheduler

import (
	"errors"
	"testing"
	"time"

	"github.com/example/nihongoquest/internal/config"
)

type fakeNotifier struct {
	sent []int
	err  error
}

func (n *fakeNotifier) SendReviewReminder(count int) error {
	if n.err != nil {
		return n.err
	}
	n.sent = append(n.sent, count)
	return nil
}

type fixedReviews int

func (r fixedReviews) PendingReviews() int { return int(r) }

type fakeSaver struct {
	calls int
	ok    bool
	err   error
}

func (s *fakeSaver) Autosave() (bool, error) {
	s.calls++
	return s.ok, s.err
}

func at(hour int) func() time.Time {
	return func() time.Time {
		return time.Date(2024, 7, 1, hour, 30, 0, 0, time.Local)
	}
}

func TestReminderWindow(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NotificationStartHour = 9
	cfg.NotificationEndHour = 21

	tests := []struct {
		name    string
		hour    int
		due     int
		wantHit bool
	}{
		{"inside window", 12, 7, true},
		{"at start hour", 9, 1, true},
		{"at end hour", 21, 3, true},
		{"before window", 8, 7, false},
		{"after window", 22, 7, false},
		{"nothing due", 12, 0, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			n := &fakeNotifier{}
			s := New(cfg, nil, fixedReviews(tt.due), n).WithClock(at(tt.hour))
			if got := s.RunReminderCheck(); got != tt.wantHit {
				t.Errorf("RunReminderCheck() = %v, want %v", got, tt.wantHit)
			}
			if tt.wantHit && (len(n.sent) != 1 || n.sent[0] != tt.due) {
				t.Errorf("sent = %v", n.sent)
			}
		})
	}
}

func TestReminderWindowWrapsMidnight(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NotificationStartHour = 20
	cfg.NotificationEndHour = 2

	for hour, want := range map[int]bool{23: true, 1: true, 2: true, 3: false, 19: false} {
		s := New(cfg, nil, fixedReviews(4), &fakeNotifier{}).WithClock(at(hour))
		if got := s.RunReminderCheck(); got != want {
			t.Errorf("hour %d: got %v, want %v", hour, got, want)
		}
	}
}

func TestReminderFailureAndDisabled(t *testing.T) {
	cfg := config.DefaultConfig()

	failing := &fakeNotifier{err: errors.New("network down")}
	s := New(cfg, nil, fixedReviews(5), failing).WithClock(at(12))
	if s.RunReminderCheck() {
		t.Error("failed send reported as sent")
	}

	s = New(cfg, nil, fixedReviews(5), nil).WithClock(at(12))
	if s.RunReminderCheck() {
		t.Error("reminder sent without a notifier")
	}
}

func TestInvalidHoursFallBack(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.NotificationStartHour = 30
	s := New(cfg, nil, nil, nil)
	if s.startHour != DefaultNotificationStartHour || s.endHour != DefaultNotificationEndHour {
		t.Errorf("window = %d-%d", s.startHour, s.endHour)
	}
}

func TestRunAutosave(t *testing.T) {
	saver := &fakeSaver{ok: true}
	s := New(config.DefaultConfig(), saver, nil, nil)
	s.RunAutosave()
	saver.err = errors.New("disk full")
	s.RunAutosave()
	if saver.calls != 2 {
		t.Errorf("calls = %d", saver.calls)
	}
}

func TestStartStop(t *testing.T) {
	cfg := config.DefaultConfig()
	cfg.AutosaveInterval = time.Hour
	cfg.ReminderInterval = time.Hour
	s := New(cfg, &fakeSaver{}, fixedReviews(0), &fakeNotifier{})
	if err := s.Start(); err != nil {
		t.Fatalf("Start: %v", err)
	}
	s.Stop()
}
