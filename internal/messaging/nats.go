// Package messaging publishes server lifecycle events to NATS for external
// consumers (analytics, moderation dashboards). Publishing is strictly
// best-effort: the chat path never blocks or fails on a NATS outage.
package messaging

import (
	"encoding/json"
	"fmt"
	"log"
	"time"

	"github.com/nats-io/nats.go"
)

// NATS subjects for server events.
const (
	SubjectRoomCreated    = "room.created"
	SubjectRoomClosed     = "room.closed"
	SubjectMessageFlagged = "moderation.flagged"
	SubjectReportFiled    = "report.filed"
)

// NATSConfig holds NATS connection settings.
type NATSConfig struct {
	URL           string        // nats://localhost:4222
	Name          string        // client name for identification
	ReconnectWait time.Duration // time between reconnect attempts
	MaxReconnects int           // max reconnect attempts (-1 for infinite)
}

// DefaultNATSConfig returns sensible defaults.
func DefaultNATSConfig() NATSConfig {
	return NATSConfig{
		URL:           "nats://localhost:4222",
		Name:          "veilchat",
		ReconnectWait: 2 * time.Second,
		MaxReconnects: -1, // infinite reconnects
	}
}

// Publisher emits server events to NATS.
type Publisher struct {
	conn *nats.Conn
}

// NewPublisher connects to NATS with the given config and returns a ready
// publisher. It returns an error if the initial connection fails.
func NewPublisher(config NATSConfig) (*Publisher, error) {
	opts := []nats.Option{
		nats.Name(config.Name),
		nats.ReconnectWait(config.ReconnectWait),
		nats.MaxReconnects(config.MaxReconnects),
		nats.DisconnectErrHandler(func(_ *nats.Conn, err error) {
			if err != nil {
				log.Printf("[nats] disconnected: %v", err)
			} else {
				log.Printf("[nats] disconnected")
			}
		}),
		nats.ReconnectHandler(func(nc *nats.Conn) {
			log.Printf("[nats] reconnected to %s", nc.ConnectedUrl())
		}),
		nats.ClosedHandler(func(_ *nats.Conn) {
			log.Printf("[nats] connection closed")
		}),
	}

	nc, err := nats.Connect(config.URL, opts...)
	if err != nil {
		return nil, fmt.Errorf("nats connect: %w", err)
	}

	log.Printf("[nats] connected to %s", nc.ConnectedUrl())

	return &Publisher{conn: nc}, nil
}

// RoomCreated announces a new room pairing two users.
func (p *Publisher) RoomCreated(roomID, userA, userB string) {
	p.publish(SubjectRoomCreated, map[string]any{
		"room":  roomID,
		"userA": userA,
		"userB": userB,
		"ts":    time.Now().UnixMilli(),
	})
}

// RoomClosed announces a room teardown with the close reason
// ("leave", "disconnect").
func (p *Publisher) RoomClosed(roomID, reason string) {
	p.publish(SubjectRoomClosed, map[string]any{
		"room":   roomID,
		"reason": reason,
		"ts":     time.Now().UnixMilli(),
	})
}

// MessageFlagged announces a message blocked by the content filter.
func (p *Publisher) MessageFlagged(roomID, senderID, term string) {
	p.publish(SubjectMessageFlagged, map[string]any{
		"room":   roomID,
		"sender": senderID,
		"term":   term,
		"ts":     time.Now().UnixMilli(),
	})
}

// ReportFiled announces an abuse report.
func (p *Publisher) ReportFiled(roomID, reporterID, reportedID, reason string) {
	p.publish(SubjectReportFiled, map[string]any{
		"room":     roomID,
		"reporter": reporterID,
		"reported": reportedID,
		"reason":   reason,
		"ts":       time.Now().UnixMilli(),
	})
}

// publish marshals and sends an event. Failures are logged and swallowed so
// event delivery never affects the chat path.
func (p *Publisher) publish(subject string, payload map[string]any) {
	data, err := json.Marshal(payload)
	if err != nil {
		log.Printf("[nats] marshal %s: %v", subject, err)
		return
	}
	if err := p.conn.Publish(subject, data); err != nil {
		log.Printf("[nats] publish %s: %v", subject, err)
	}
}

// Close drains and closes the NATS connection.
func (p *Publisher) Close() {
	if err := p.conn.Drain(); err != nil {
		log.Printf("[nats] connection drain: %v", err)
	}
	log.Printf("[nats] publisher closed")
}
