package notify

import (
	"errors"
	"testing"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
)

type fakeSender struct {
	sent []tgbotapi.MessageConfig
	err  error
}

func (f *fakeSender) Send(c tgbotapi.Chattable) (tgbotapi.Message, error) {
	if f.err != nil {
		return tgbotapi.Message{}, f.err
	}
	if msg, ok := c.(tgbotapi.MessageConfig); ok {
		f.sent = append(f.sent, msg)
	}
	return tgbotapi.Message{}, nil
}

func TestSendReviewReminder(t *testing.T) {
	api := &fakeSender{}
	tg := newTelegram(api, 4242)

	if err := tg.SendReviewReminder(3); err != nil {
		t.Fatalf("SendReviewReminder: %v", err)
	}
	if len(api.sent) != 1 {
		t.Fatalf("sent %d messages", len(api.sent))
	}
	if api.sent[0].ChatID != 4242 || api.sent[0].Text != ReminderText(3) {
		t.Errorf("message = %+v", api.sent[0])
	}

	api.err = errors.New("timeout")
	if err := tg.SendReviewReminder(1); err == nil {
		t.Error("expected send error")
	}
}

func TestReminderText(t *testing.T) {
	if got := ReminderText(1); got != "You have 1 item ready for review! Open Nihongo Quest to keep your streak going." {
		t.Errorf("singular = %q", got)
	}
	if got := ReminderText(12); got != "You have 12 items ready for review! Open Nihongo Quest to keep your streak going." {
		t.Errorf("plural = %q", got)
	}
}

func TestNewTelegramRequiresSettings(t *testing.T) {
	if _, err := NewTelegram("", 1); err == nil {
		t.Error("expected error without token")
	}
	if _, err := NewTelegram("token", 0); err == nil {
		t.Error("expected error without chat id")
	}
}
