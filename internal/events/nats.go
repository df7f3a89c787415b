package events

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"time"

	"github.com/nats-io/nats.go"
)

// DefaultSubject is the NATS subject events are published on.
const DefaultSubject = "voicecmd.events"

// Publisher is the part of a NATS connection the sink needs.
type Publisher interface {
	Publish(subject string, data []byte) error
}

// NATSSink publishes events as JSON to a NATS subject.
type NATSSink struct {
	pub     Publisher
	subject string
	logger  *slog.Logger
	conn    *nats.Conn
}

// NewNATSSink publishes through pub.
func NewNATSSink(pub Publisher, subject string, logger *slog.Logger) *NATSSink {
	if subject == "" {
		subject = DefaultSubject
	}
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	return &NATSSink{pub: pub, subject: subject, logger: logger}
}

// DialNATS connects to url and returns a sink owning the connection. The
// client keeps reconnecting in the background, so a server that is down at
// startup does not fail the daemon.
func DialNATS(url, subject string, logger *slog.Logger) (*NATSSink, error) {
	if logger == nil {
		logger = slog.New(slog.DiscardHandler)
	}
	conn, err := nats.Connect(url,
		nats.Name("voicecmd"),
		nats.RetryOnFailedConnect(true),
		nats.ReconnectWait(2*time.Second),
		nats.MaxReconnects(-1),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				logger.Warn("nats disconnected", "error", err.Error())
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			logger.Info("nats reconnected", "url", nc.ConnectedUrl())
		}),
	)
	if err != nil {
		return nil, fmt.Errorf("connect nats %s: %w", url, err)
	}
	sink := NewNATSSink(conn, subject, logger)
	sink.conn = conn
	return sink, nil
}

func (s *NATSSink) Publish(e Event) {
	data, err := json.Marshal(e)
	if err != nil {
		s.logger.Debug("encode event", "error", err.Error())
		return
	}
	if err := s.pub.Publish(s.subject, data); err != nil {
		s.logger.Debug("publish event", "subject", s.subject, "error", err.Error())
	}
}

// Close drains the owned connection, if any.
func (s *NATSSink) Close() error {
	if s.conn == nil {
		return nil
	}
	return s.conn.Drain()
}
