package feed

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"
)

func discard() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func TestRunDeliversMessagesAndAdvancesOffset(t *testing.T) {
	var polls atomic.Int64
	var lastOffset atomic.Value
	lastOffset.Store("")

	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		lastOffset.Store(r.URL.Query().Get("offset"))
		switch polls.Add(1) {
		case 1:
			fmt.Fprint(rw, `{"ok":true,"result":[
				{"update_id":10,"message":{"chat":{"id":42},"text":"hello"}},
				{"update_id":11,"channel_post":{"chat":{"id":42},"text":"world",
					"link_preview_options":{"url":"https://example.com/token_MintA"}}}
			]}`)
		default:
			// Empty long poll; keeps Run spinning until cancel.
			fmt.Fprint(rw, `{"ok":true,"result":[]}`)
		}
	}))
	defer srv.Close()

	f := NewTelegram(Config{
		APIBase:        srv.URL,
		BotToken:       "token",
		PollTimeoutSec: 1,
	}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	msg1 := <-f.Messages()
	if msg1.Text != "hello" {
		t.Errorf("first message = %q", msg1.Text)
	}
	msg2 := <-f.Messages()
	if msg2.Text != "world" {
		t.Errorf("second message = %q", msg2.Text)
	}
	if msg2.LinkURL != "https://example.com/token_MintA" {
		t.Errorf("LinkURL = %q", msg2.LinkURL)
	}

	// Wait for a follow-up poll and verify the updates were acknowledged.
	deadline := time.After(time.Second)
	for polls.Load() < 2 {
		select {
		case <-deadline:
			t.Fatal("no follow-up poll")
		case <-time.After(time.Millisecond):
		}
	}
	cancel()
	<-done

	if got := lastOffset.Load().(string); got != "12" {
		t.Errorf("offset = %q, want 12", got)
	}
}

func TestRunFiltersByChat(t *testing.T) {
	var polls atomic.Int64
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		if polls.Add(1) == 1 {
			fmt.Fprint(rw, `{"ok":true,"result":[
				{"update_id":1,"message":{"chat":{"id":99},"text":"wrong chat"}},
				{"update_id":2,"message":{"chat":{"id":42},"text":"right chat"}}
			]}`)
			return
		}
		fmt.Fprint(rw, `{"ok":true,"result":[]}`)
	}))
	defer srv.Close()

	f := NewTelegram(Config{
		APIBase:        srv.URL,
		BotToken:       "token",
		ChatID:         "42",
		PollTimeoutSec: 1,
	}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()
	go func() { _ = f.Run(ctx) }()

	msg := <-f.Messages()
	if msg.Text != "right chat" {
		t.Errorf("message = %q", msg.Text)
	}
	select {
	case extra := <-f.Messages():
		t.Errorf("unexpected extra message %q", extra.Text)
	case <-time.After(20 * time.Millisecond):
	}
}

func TestExtractUsesEntityLink(t *testing.T) {
	f := NewTelegram(Config{BotToken: "token"}, discard())

	msg, ok := f.extract(update{
		UpdateID: 1,
		Message: &message{
			Chat: chat{ID: 1},
			Text: "click here",
			Entities: []entity{
				{Type: "bold"},
				{Type: "text_link", URL: "https://example.com/token_MintB"},
			},
		},
	})
	if !ok {
		t.Fatal("message dropped")
	}
	if msg.LinkURL != "https://example.com/token_MintB" {
		t.Errorf("LinkURL = %q", msg.LinkURL)
	}
}

func TestExtractDropsEmpty(t *testing.T) {
	f := NewTelegram(Config{BotToken: "token"}, discard())

	if _, ok := f.extract(update{UpdateID: 1}); ok {
		t.Error("update without message accepted")
	}
	if _, ok := f.extract(update{UpdateID: 2, Message: &message{Chat: chat{ID: 1}}}); ok {
		t.Error("empty-text message accepted")
	}
}

func TestRunChannelClosesOnCancel(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(rw http.ResponseWriter, r *http.Request) {
		fmt.Fprint(rw, `{"ok":true,"result":[]}`)
	}))
	defer srv.Close()

	f := NewTelegram(Config{APIBase: srv.URL, BotToken: "token", PollTimeoutSec: 1}, discard())

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error, 1)
	go func() { done <- f.Run(ctx) }()

	time.Sleep(10 * time.Millisecond)
	cancel()
	<-done

	if _, open := <-f.Messages(); open {
		t.Error("messages channel still open after Run returned")
	}
}
