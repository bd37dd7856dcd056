package notify

import (
	"fmt"

	"github.com/example/nihongoquest/pkg/logger"
	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"
	"github.com/sirupsen/logrus"
)

// sender is the part of tgbotapi.BotAPI the notifier uses
type sender interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// Telegram sends review reminders to a single chat
type Telegram struct {
	api    sender
	chatID int64
	log    *logrus.Entry
}

// NewTelegram connects to the Bot API with token
func NewTelegram(token string, chatID int64) (*Telegram, error) {
	if token == "" {
		return nil, fmt.Errorf("TELEGRAM_BOT_TOKEN is not set")
	}
	if chatID == 0 {
		return nil, fmt.Errorf("TELEGRAM_CHAT_ID is not set")
	}
	botAPI, err := tgbotapi.NewBotAPI(token)
	if err != nil {
		return nil, fmt.Errorf("unable to create bot: %w", err)
	}
	t := newTelegram(botAPI, chatID)
	t.log.Infof("Authorized on account %s", botAPI.Self.UserName)
	return t, nil
}

func newTelegram(api sender, chatID int64) *Telegram {
	return &Telegram{
		api:    api,
		chatID: chatID,
		log:    logger.For("notify"),
	}
}

// SendReviewReminder tells the player how many items are waiting
func (t *Telegram) SendReviewReminder(count int) error {
	msg := tgbotapi.NewMessage(t.chatID, ReminderText(count))
	if _, err := t.api.Send(msg); err != nil {
		return fmt.Errorf("failed to send reminder: %w", err)
	}
	t.log.WithField("due", count).Debug("Reminder delivered")
	return nil
}

// ReminderText builds the reminder message for count due items
func ReminderText(count int) string {
	noun := "items"
	if count == 1 {
		noun = "item"
	}
	return fmt.Sprintf("You have %d %s ready for review! Open Nihongo Quest to keep your streak going.", count, noun)
}
