package senders

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"testing"

	"github.com/fiffu/timetablewatch/config"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap/zaptest"
)

type telegramCall struct {
	Path    string
	Payload map[string]any
}

func newTelegramServer(t *testing.T, failOn string) (*httptest.Server, *[]telegramCall) {
	var mu sync.Mutex
	calls := &[]telegramCall{}
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		payload := map[string]any{}
		require.NoError(t, json.NewDecoder(r.Body).Decode(&payload))

		mu.Lock()
		*calls = append(*calls, telegramCall{r.URL.Path, payload})
		n := len(*calls)
		mu.Unlock()

		if failOn != "" && r.URL.Path == failOn {
			json.NewEncoder(w).Encode(map[string]any{"ok": false, "description": "Bad Request: chat not found"})
			return
		}
		json.NewEncoder(w).Encode(map[string]any{"ok": true, "result": map[string]any{"message_id": 100 + n}})
	}))
	t.Cleanup(srv.Close)
	return srv, calls
}

func TestTelegramSender_Send(t *testing.T) {
	srv, calls := newTelegramServer(t, "")
	s := newTelegramSender(base{zaptest.NewLogger(t), &config.Config{}, srv.Client()}, srv.URL, "123:abc")

	id, err := s.Send(context.Background(), "42", Message{Text: "changed", DocumentURL: "https://bit.ly/1"})
	require.NoError(t, err)
	assert.Equal(t, "102", id)

	require.Len(t, *calls, 2)
	assert.Equal(t, "/bot123:abc/sendMessage", (*calls)[0].Path)
	assert.Equal(t, "42", (*calls)[0].Payload["chat_id"])
	assert.Equal(t, "changed", (*calls)[0].Payload["text"])
	assert.Equal(t, "/bot123:abc/sendDocument", (*calls)[1].Path)
	assert.Equal(t, "https://bit.ly/1", (*calls)[1].Payload["document"])
}

func TestTelegramSender_SendWithoutDocument(t *testing.T) {
	srv, calls := newTelegramServer(t, "")
	s := newTelegramSender(base{zaptest.NewLogger(t), &config.Config{}, srv.Client()}, srv.URL, "t")

	id, err := s.Send(context.Background(), "42", Message{Text: "deleted"})
	require.NoError(t, err)
	assert.Equal(t, "101", id)
	assert.Len(t, *calls, 1)
}

func TestTelegramSender_NotOK(t *testing.T) {
	srv, _ := newTelegramServer(t, "/bott/sendMessage")
	s := newTelegramSender(base{zaptest.NewLogger(t), &config.Config{}, srv.Client()}, srv.URL, "t")

	_, err := s.Send(context.Background(), "42", Message{Text: "x", DocumentURL: "y"})
	assert.ErrorContains(t, err, "chat not found")
}

func TestMailgunSender_Send(t *testing.T) {
	var form map[string]string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		assert.Equal(t, "/v3/mg.example.com/messages", r.URL.Path)
		form = map[string]string{
			"from":    r.FormValue("from"),
			"to":      r.FormValue("to"),
			"subject": r.FormValue("subject"),
			"html":    r.FormValue("html"),
		}
		json.NewEncoder(w).Encode(map[string]string{"id": "<20240510.1@mg.example.com>", "message": "Queued. Thank you."})
	}))
	defer srv.Close()

	cfg := &config.Config{}
	cfg.Mailgun.Domain = "mg.example.com"
	cfg.Mailgun.APIKey = "key"
	cfg.Mailgun.APIBase = srv.URL + "/v3"
	cfg.Mailgun.SenderFrom = "orari@example.com"
	cfg.Mailgun.TimeoutSecs = 5

	s := &mailgunSender{base{zaptest.NewLogger(t), cfg, srv.Client()}}
	id, err := s.Send(context.Background(), "a@example.com", Message{
		Subject:     "Linea 101 aggiornata",
		Text:        "first\nsecond",
		DocumentURL: "https://bit.ly/101",
	})
	require.NoError(t, err)
	assert.Equal(t, "<20240510.1@mg.example.com>", id)

	assert.Equal(t, "orari@example.com", form["from"])
	assert.Equal(t, "a@example.com", form["to"])
	assert.Equal(t, "Linea 101 aggiornata", form["subject"])
	assert.Contains(t, form["html"], "first")
	assert.Contains(t, form["html"], "second")
	assert.Contains(t, form["html"], "https://bit.ly/101")
}

func TestNewSenderRegistry(t *testing.T) {
	log := zaptest.NewLogger(t)

	cfg := &config.Config{}
	assert.Empty(t, NewSenderRegistry(log, cfg, http.DefaultClient))

	cfg.Telegram.Token = "t"
	cfg.Mailgun.Domain = "mg.example.com"
	registry := NewSenderRegistry(log, cfg, http.DefaultClient)
	assert.Contains(t, registry, "telegram")
	assert.NotContains(t, registry, "email")

	cfg.Mailgun.APIKey = "key"
	registry = NewSenderRegistry(log, cfg, http.DefaultClient)
	assert.Contains(t, registry, "email")
}
