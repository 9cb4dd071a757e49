package emergency

import (
	"context"
	"fmt"
	"net/http"
	"strconv"
	"strings"
	"sync"
	"time"

	tgbotapi "github.com/go-telegram-bot-api/telegram-bot-api/v5"

	"github.com/nadzzz/thirdeye/internal/config"
)

// botAPI is the part of tgbotapi.BotAPI the sender uses.
type botAPI interface {
	Send(c tgbotapi.Chattable) (tgbotapi.Message, error)
}

// TelegramSender delivers alerts through a Telegram bot. The contact is a
// numeric chat ID or an @channel name.
type TelegramSender struct {
	token    string
	endpoint string
	timeout  time.Duration

	mu     sync.Mutex
	bot    botAPI
	newBot func(token, endpoint string, client *http.Client) (botAPI, error)
}

// NewTelegramSender creates a sender. The bot is connected on first use so
// that startup does not depend on Telegram being reachable.
func NewTelegramSender(cfg config.TelegramConfig, timeout time.Duration) *TelegramSender {
	endpoint := cfg.Endpoint
	if endpoint == "" {
		endpoint = tgbotapi.APIEndpoint
	}
	return &TelegramSender{
		token:    cfg.Token,
		endpoint: endpoint,
		timeout:  timeout,
		newBot: func(token, endpoint string, client *http.Client) (botAPI, error) {
			return tgbotapi.NewBotAPIWithClient(token, endpoint, client)
		},
	}
}

// Name returns the channel name.
func (s *TelegramSender) Name() string { return "telegram" }

func (s *TelegramSender) connect() (botAPI, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.bot != nil {
		return s.bot, nil
	}
	if s.token == "" {
		return nil, fmt.Errorf("telegram bot token not configured")
	}
	bot, err := s.newBot(s.token, s.endpoint, &http.Client{Timeout: s.timeout})
	if err != nil {
		return nil, fmt.Errorf("connecting telegram bot: %w", err)
	}
	s.bot = bot
	return bot, nil
}

// Send posts the alert text, followed by a location pin when known.
func (s *TelegramSender) Send(ctx context.Context, alert Alert) error {
	bot, err := s.connect()
	if err != nil {
		return err
	}

	var text, pin tgbotapi.Chattable
	if chatID, err := strconv.ParseInt(alert.Contact, 10, 64); err == nil {
		text = tgbotapi.NewMessage(chatID, alert.Text)
		if alert.Location != nil {
			pin = tgbotapi.NewLocation(chatID, alert.Location.Latitude, alert.Location.Longitude)
		}
	} else if strings.HasPrefix(alert.Contact, "@") {
		text = tgbotapi.NewMessageToChannel(alert.Contact, alert.Text)
	} else {
		return fmt.Errorf("invalid telegram contact %q", alert.Contact)
	}

	for _, msg := range []tgbotapi.Chattable{text, pin} {
		if msg == nil {
			continue
		}
		if err := ctx.Err(); err != nil {
			return err
		}
		if _, err := bot.Send(msg); err != nil {
			return fmt.Errorf("telegram send: %w", err)
		}
	}
	return nil
}
