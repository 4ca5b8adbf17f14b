package notify

import (
	"context"

	"github.com/fiffu/timetablewatch/lib/models"
	"github.com/fiffu/timetablewatch/senders"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promauto"
	"go.uber.org/zap"
)

// Dispatcher fans change notifications out to every subscriber of a line,
// one message per subscriber per line. Delivery failures are logged and
// never retried.
type Dispatcher struct {
	log     *zap.Logger
	senders senders.Registry
	sent    *prometheus.CounterVec
}

func NewDispatcher(log *zap.Logger, registry senders.Registry, reg prometheus.Registerer) *Dispatcher {
	sent := promauto.With(reg).NewCounterVec(prometheus.CounterOpts{
		Name: "timetablewatch_notifications_total",
		Help: "Notifications by kind and delivery result.",
	}, []string{"kind", "result"})
	return &Dispatcher{log, registry, sent}
}

func (d *Dispatcher) OnDeleted(ctx context.Context, lines models.Lines) {
	d.fanOut(ctx, "deleted", lines, deletedMessage)
}

func (d *Dispatcher) OnChanged(ctx context.Context, lines models.Lines) {
	d.fanOut(ctx, "changed", lines, changedMessage)
}

func (d *Dispatcher) fanOut(ctx context.Context, kind string, lines models.Lines, compose func(models.Line) senders.Message) {
	for _, line := range lines {
		msg := compose(line)
		seen := make(map[string]struct{}, len(line.Subscribers))
		for _, id := range line.Subscribers {
			key := models.ParseSubscriber(id).ID()
			if _, dup := seen[key]; dup {
				continue
			}
			seen[key] = struct{}{}
			d.send(ctx, kind, line, id, msg)
		}
	}
}

func (d *Dispatcher) send(ctx context.Context, kind string, line models.Line, subscriberID string, msg senders.Message) {
	sub := models.ParseSubscriber(subscriberID)

	sender, ok := d.senders[sub.Platform]
	if !ok {
		d.sent.WithLabelValues(kind, "unsupported").Inc()
		d.log.Sugar().Warnw("Unsupported notifier platform", "platform", sub.Platform, "subscriber", subscriberID, "code", line.Code)
		return
	}

	id, err := sender.Send(ctx, sub.Identifier, msg)
	if err != nil {
		d.sent.WithLabelValues(kind, "failed").Inc()
		d.log.Sugar().Errorw("Failed to send update", "kind", kind, "code", line.Code, "subscriber", subscriberID, "err", err)
		return
	}
	d.sent.WithLabelValues(kind, "sent").Inc()
	d.log.Sugar().Infow("Sent update", "kind", kind, "code", line.Code, "subscriber", subscriberID, "message_id", id)
}
