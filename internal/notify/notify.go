// Package notify forwards timer expiry notifications from the in-process bus
// to NATS, so that other tools can react when a work order is returned to the
// queue.
package notify

import (
	"context"
	"encoding/json"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
	"github.com/nats-io/nats.go/jetstream"

	"git.home.luguber.info/inful/wodesk/internal/config"
	"git.home.luguber.info/inful/wodesk/internal/events"
	"git.home.luguber.info/inful/wodesk/internal/foundation/errors"
	"git.home.luguber.info/inful/wodesk/internal/logfields"
)

const (
	connectTimeout = 5 * time.Second
	publishTimeout = 5 * time.Second
)

// Publisher sends one message to a subject.
type Publisher interface {
	Publish(ctx context.Context, subject string, data []byte) error
}

// NATSPublisher publishes over core NATS, or through JetStream when the
// subject is bound to a stream and acknowledgements are wanted.
type NATSPublisher struct {
	conn *nats.Conn
	js   jetstream.JetStream
}

// NewNATSPublisher connects to cfg.NATSURL.
func NewNATSPublisher(cfg config.NotifyConfig) (*NATSPublisher, error) {
	if cfg.NATSURL == "" {
		return nil, errors.ConfigError("notify.nats_url is required").Build()
	}

	conn, err := nats.Connect(cfg.NATSURL,
		nats.Name("wodesk"),
		nats.Timeout(connectTimeout),
	)
	if err != nil {
		return nil, errors.WrapError(err, errors.CategoryNotify, "failed to connect to NATS").
			WithContext("url", cfg.NATSURL).
			WithRetry(errors.RetryBackoff).Build()
	}

	p := &NATSPublisher{conn: conn}
	if cfg.JetStream {
		js, err := jetstream.New(conn)
		if err != nil {
			conn.Close()
			return nil, errors.WrapError(err, errors.CategoryNotify, "failed to create JetStream context").Build()
		}
		p.js = js
	}

	slog.Info("NATS notifications enabled",
		logfields.URL(cfg.NATSURL),
		logfields.Subject(cfg.Subject),
		slog.Bool("jetstream", cfg.JetStream))
	return p, nil
}

// Publish implements Publisher.
func (p *NATSPublisher) Publish(ctx context.Context, subject string, data []byte) error {
	if p.conn == nil || p.conn.IsClosed() {
		return errors.NotifyError("NATS connection is closed").
			WithContext("subject", subject).Build()
	}
	if p.js != nil {
		if _, err := p.js.Publish(ctx, subject, data); err != nil {
			return errors.WrapError(err, errors.CategoryNotify, "jetstream publish failed").
				WithContext("subject", subject).Build()
		}
		return nil
	}
	if err := p.conn.Publish(subject, data); err != nil {
		return errors.WrapError(err, errors.CategoryNotify, "publish failed").
			WithContext("subject", subject).Build()
	}
	return nil
}

// Close drains pending messages and closes the connection.
func (p *NATSPublisher) Close() error {
	if p == nil || p.conn == nil {
		return nil
	}
	return p.conn.Drain()
}

// Forwarder relays events.TimerExpired from the bus to a Publisher.
type Forwarder struct {
	pub     Publisher
	subject string
}

// NewForwarder returns a Forwarder publishing to subject.
func NewForwarder(pub Publisher, subject string) *Forwarder {
	return &Forwarder{pub: pub, subject: subject}
}

// Run forwards expiries until ctx ends or the bus closes. Publish failures are
// logged and the expiry is not retried.
func (f *Forwarder) Run(ctx context.Context, bus *events.Bus, buffer int) {
	ch, unsubscribe := events.Subscribe[events.TimerExpired](bus, buffer)
	defer unsubscribe()
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-ch:
			if !ok {
				return
			}
			f.forward(ctx, evt)
		}
	}
}

func (f *Forwarder) forward(ctx context.Context, evt events.TimerExpired) {
	data, err := json.Marshal(evt)
	if err != nil {
		slog.Warn("Failed to encode expiry notification", logfields.WorkOrderID(evt.WorkOrderID), logfields.Error(err))
		return
	}
	pctx, cancel := context.WithTimeout(ctx, publishTimeout)
	defer cancel()
	if err := f.pub.Publish(pctx, f.subject, data); err != nil {
		slog.Warn("Failed to forward expiry notification",
			logfields.WorkOrderID(evt.WorkOrderID),
			logfields.Subject(f.subject),
			logfields.Error(err))
		return
	}
	slog.Debug("Forwarded expiry notification", logfields.WorkOrderID(evt.WorkOrderID), logfields.Subject(f.subject))
}
