package senders

import (
	"context"
	"fmt"
	"strconv"

	"github.com/carlmjohnson/requests"
)

const DefaultTelegramAPIBase = "https://api.telegram.org"

type telegramSender struct {
	base
	apiBase string
	token   string
}

func newTelegramSender(b base, apiBase, token string) *telegramSender {
	if apiBase == "" {
		apiBase = DefaultTelegramAPIBase
	}
	return &telegramSender{b, apiBase, token}
}

type telegramResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
	Result      struct {
		MessageID int64 `json:"message_id"`
	} `json:"result"`
}

// Send posts the text and, if present, the document. The returned id is the
// id of the last message sent.
func (t *telegramSender) Send(ctx context.Context, chatID string, msg Message) (string, error) {
	id, err := t.call(ctx, "sendMessage", map[string]any{
		"chat_id":    chatID,
		"text":       msg.Text,
		"parse_mode": "Markdown",
	})
	if err != nil || msg.DocumentURL == "" {
		return id, err
	}

	return t.call(ctx, "sendDocument", map[string]any{
		"chat_id":  chatID,
		"document": msg.DocumentURL,
	})
}

func (t *telegramSender) call(ctx context.Context, method string, payload map[string]any) (string, error) {
	var resp telegramResponse
	err := requests.URL(t.apiBase).
		Pathf("/bot%s/%s", t.token, method).
		Client(t.client).
		BodyJSON(payload).
		ToJSON(&resp).
		Fetch(ctx)
	if err != nil {
		return "", fmt.Errorf("telegram %s: %w", method, err)
	}
	if !resp.OK {
		return "", fmt.Errorf("telegram %s: %s", method, resp.Description)
	}
	return strconv.FormatInt(resp.Result.MessageID, 10), nil
}
