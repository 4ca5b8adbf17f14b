package senders

import (
	"context"
	"time"

	"github.com/fiffu/timetablewatch/senders/email"
	"github.com/mailgun/mailgun-go/v4"
)

type mailgunSender struct {
	base
}

func (e *mailgunSender) Send(ctx context.Context, recipient string, msg Message) (string, error) {
	mg := mailgun.NewMailgun(e.cfg.Mailgun.Domain, e.cfg.Mailgun.APIKey)
	if e.cfg.Mailgun.APIBase != "" {
		mg.SetAPIBase(e.cfg.Mailgun.APIBase)
	}
	mg.SetClient(e.client)

	// Create message with empty body first.
	message := mg.NewMessage(e.cfg.Mailgun.SenderFrom, msg.Subject, "", recipient)
	// SetHtml with the payload proper. This will assign the MIME type properly.
	message.SetHtml((&email.NotificationFormat{Text: msg.Text, DocumentURL: msg.DocumentURL}).Body())

	timeout := time.Duration(e.cfg.Mailgun.TimeoutSecs) * time.Second
	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	_, id, err := mg.Send(ctx, message)
	return id, err
}
