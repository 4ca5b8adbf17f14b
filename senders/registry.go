package senders

import (
	"context"
	"net/http"

	"github.com/fiffu/timetablewatch/config"
	"go.uber.org/zap"
)

type Message struct {
	Subject string
	Text    string
	// DocumentURL is delivered as an attachment where the platform supports it.
	DocumentURL string
}

type Sender interface {
	Send(ctx context.Context, recipient string, msg Message) (string, error)
}

// Registry maps a subscriber platform to its sender.
type Registry map[string]Sender

func NewSenderRegistry(log *zap.Logger, cfg *config.Config, client *http.Client) Registry {
	base := base{log, cfg, client}
	registry := Registry{}

	if cfg.Telegram.Token != "" {
		registry["telegram"] = newTelegramSender(base, cfg.Telegram.APIBase, cfg.Telegram.Token)
	} else {
		log.Sugar().Info("Telegram sender disabled since TELEGRAM_TOKEN is not set")
	}

	if cfg.Mailgun.Domain != "" && cfg.Mailgun.APIKey != "" {
		registry["email"] = &mailgunSender{base}
	} else {
		log.Sugar().Info("Email sender disabled since Mailgun is not configured")
	}

	return registry
}

type base struct {
	log    *zap.Logger
	cfg    *config.Config
	client *http.Client
}
