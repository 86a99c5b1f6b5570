// Package feed delivers raw chat messages from the Telegram Bot API. The
// feed long-polls getUpdates and forwards every visible message; it does no
// interpretation, that is the signal parser's job.
package feed

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/mkravets/signalbot/internal/domain"
)

// errorBackoff is the pause after a failed poll before retrying.
const errorBackoff = 5 * time.Second

// Config holds the feed parameters.
type Config struct {
	// APIBase overrides the Telegram API host, for tests.
	APIBase string
	// BotToken authenticates against the Bot API.
	BotToken string
	// ChatID restricts the feed to one chat. Empty accepts all chats the
	// bot can see.
	ChatID string
	// PollTimeoutSec is the long-poll timeout passed to getUpdates.
	PollTimeoutSec int
}

// TelegramFeed long-polls the Bot API and emits raw messages on a channel.
type TelegramFeed struct {
	apiBase     string
	token       string
	chatID      string
	pollTimeout int
	client      *http.Client
	out         chan domain.RawMessage
	logger      *slog.Logger

	// offset is the next update id to request; advancing it acknowledges
	// everything before it.
	offset int64
}

// NewTelegram creates a TelegramFeed.
func NewTelegram(cfg Config, logger *slog.Logger) *TelegramFeed {
	apiBase := cfg.APIBase
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	pollTimeout := cfg.PollTimeoutSec
	if pollTimeout < 1 {
		pollTimeout = 30
	}
	return &TelegramFeed{
		apiBase:     apiBase,
		token:       cfg.BotToken,
		chatID:      cfg.ChatID,
		pollTimeout: pollTimeout,
		// The HTTP timeout must outlast the long poll itself.
		client: &http.Client{Timeout: time.Duration(pollTimeout+10) * time.Second},
		out:    make(chan domain.RawMessage, 64),
		logger: logger.With(slog.String("component", "feed")),
	}
}

// Messages returns the channel raw messages are delivered on. It is closed
// when Run returns.
func (f *TelegramFeed) Messages() <-chan domain.RawMessage {
	return f.out
}

// Run polls until the context is cancelled. Poll failures are logged and
// retried after a backoff; only cancellation stops the loop.
func (f *TelegramFeed) Run(ctx context.Context) error {
	f.logger.Info("feed started")
	defer f.logger.Info("feed stopped")
	defer close(f.out)

	for {
		updates, err := f.getUpdates(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return ctx.Err()
			}
			f.logger.Warn("poll failed, backing off",
				slog.String("error", err.Error()),
			)
			select {
			case <-ctx.Done():
				return ctx.Err()
			case <-time.After(errorBackoff):
			}
			continue
		}

		for _, up := range updates {
			if up.UpdateID >= f.offset {
				f.offset = up.UpdateID + 1
			}
			msg, ok := f.extract(up)
			if !ok {
				continue
			}
			select {
			case <-ctx.Done():
				return ctx.Err()
			case f.out <- msg:
			}
		}
	}
}

// extract pulls the message body out of an update, filtering by chat when
// configured. Both direct messages and channel posts are accepted.
func (f *TelegramFeed) extract(up update) (domain.RawMessage, bool) {
	m := up.Message
	if m == nil {
		m = up.ChannelPost
	}
	if m == nil {
		return domain.RawMessage{}, false
	}
	if f.chatID != "" && strconv.FormatInt(m.Chat.ID, 10) != f.chatID {
		return domain.RawMessage{}, false
	}

	text := m.Text
	if text == "" {
		text = m.Caption
	}
	if text == "" {
		return domain.RawMessage{}, false
	}

	return domain.RawMessage{
		Text:       text,
		LinkURL:    m.linkURL(),
		ReceivedAt: time.Now().UTC(),
	}, true
}

// getUpdates performs one long poll.
func (f *TelegramFeed) getUpdates(ctx context.Context) ([]update, error) {
	q := url.Values{}
	q.Set("offset", strconv.FormatInt(f.offset, 10))
	q.Set("timeout", strconv.Itoa(f.pollTimeout))

	reqURL := fmt.Sprintf("%s/bot%s/getUpdates?%s", f.apiBase, f.token, q.Encode())
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, fmt.Errorf("feed: create request: %w", err)
	}

	resp, err := f.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("feed: getUpdates: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("feed: read response: %w", err)
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("feed: unexpected status %d: %s", resp.StatusCode, body)
	}

	var envelope updatesResponse
	if err := json.Unmarshal(body, &envelope); err != nil {
		return nil, fmt.Errorf("feed: decode response: %w", err)
	}
	if !envelope.OK {
		return nil, fmt.Errorf("feed: api error: %s", envelope.Description)
	}
	return envelope.Result, nil
}

type updatesResponse struct {
	OK          bool     `json:"ok"`
	Description string   `json:"description"`
	Result      []update `json:"result"`
}

type update struct {
	UpdateID    int64    `json:"update_id"`
	Message     *message `json:"message"`
	ChannelPost *message `json:"channel_post"`
}

type message struct {
	Chat               chat             `json:"chat"`
	Text               string           `json:"text"`
	Caption            string           `json:"caption"`
	LinkPreviewOptions *linkPreviewOpts `json:"link_preview_options"`
	Entities           []entity         `json:"entities"`
}

type chat struct {
	ID int64 `json:"id"`
}

type linkPreviewOpts struct {
	URL string `json:"url"`
}

type entity struct {
	Type string `json:"type"`
	URL  string `json:"url"`
}

// linkURL returns the message's embedded link: the explicit link preview when
// present, otherwise the first text_link entity.
func (m *message) linkURL() string {
	if m.LinkPreviewOptions != nil && m.LinkPreviewOptions.URL != "" {
		return m.LinkPreviewOptions.URL
	}
	for _, e := range m.Entities {
		if e.Type == "text_link" && e.URL != "" {
			return e.URL
		}
	}
	return ""
}
