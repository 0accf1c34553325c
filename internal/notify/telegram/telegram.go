// Package telegram posts operator notifications (forwarded log lines and the
// end-of-run report) to a single Telegram chat.
package telegram

import (
	"context"
	"errors"
	"net/http"
	"strings"
	"time"

	tele "gopkg.in/telebot.v4"

	logx "zapsender/pkg/logx"
)

const textLimit = 4000

type Config struct {
	Token    string
	ChatID   int64
	ThreadID int
	// URL overrides the Bot API endpoint (tests, self-hosted API servers).
	URL     string
	Timeout time.Duration
}

// Notifier sends plain text to the configured chat.
type Notifier struct {
	cfg  Config
	bot  *tele.Bot
	chat *tele.Chat
}

var _ logx.Sender = (*Notifier)(nil)

// New validates the token against the Bot API (getMe). No polling is started.
func New(cfg Config) (*Notifier, error) {
	if strings.TrimSpace(cfg.Token) == "" {
		return nil, errors.New("telegram token is empty")
	}
	if cfg.ChatID == 0 {
		return nil, errors.New("telegram chat id is empty")
	}
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	b, err := tele.NewBot(tele.Settings{
		Token:  cfg.Token,
		URL:    cfg.URL,
		Client: &http.Client{Timeout: timeout},
	})
	if err != nil {
		return nil, err
	}
	return &Notifier{cfg: cfg, bot: b, chat: &tele.Chat{ID: cfg.ChatID}}, nil
}

func (n *Notifier) SendText(ctx context.Context, text string) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	text = strings.TrimSpace(text)
	if text == "" {
		return nil
	}
	if r := []rune(text); len(r) > textLimit {
		text = string(r[:textLimit-3]) + "..."
	}
	_, err := n.bot.Send(n.chat, text, &tele.SendOptions{
		DisableWebPagePreview: true,
		ThreadID:              n.cfg.ThreadID,
	})
	return err
}
