// Package hub implements the pairing core: the matching queue and matcher,
// the session relay, and the connection lifecycle manager. All pairing state
// lives in memory behind a single mutex; every compound scan-and-mutate
// sequence runs inside it, which is what keeps the at-most-one-partner
// invariant safe under concurrent message handling.
package hub

import (
	"context"
	"log"
	"sync"
	"time"

	"github.com/veilchat/server/internal/history"
	"github.com/veilchat/server/internal/presence"
	"github.com/veilchat/server/internal/report"
)

// Sender delivers an encoded server event to a connection. Implemented by
// the WebSocket server; tests substitute an in-memory recorder.
type Sender interface {
	Send(connID string, data []byte) error
}

// SenderFunc adapts a plain function to the Sender interface.
type SenderFunc func(connID string, data []byte) error

// Send calls f.
func (f SenderFunc) Send(connID string, data []byte) error { return f(connID, data) }

// BanService answers ban lookups and files report-driven escalations. Both
// are backed by Redis in production; errors fail open.
type BanService interface {
	IsBanned(ctx context.Context, userID, ip string) (bool, string, error)
	ReportAndCheck(ctx context.Context, userID, reason string) (bool, time.Duration, error)
}

// TierResolver returns the authoritative tier for a stable user id, as
// written by the external identity provider. An empty string means the user
// id has no trusted tier on record.
type TierResolver interface {
	Resolve(ctx context.Context, userID string) (string, error)
}

// Moderator screens text payloads before relay.
type Moderator interface {
	Sanitize(text string) (clean string, triggered bool)
}

// Limiter throttles per-connection message sends and per-user queue joins.
type Limiter interface {
	AllowMessage(ctx context.Context, connID string) bool
	AllowJoin(ctx context.Context, userID string) bool
}

// ReportStore persists abuse reports for moderator review.
type ReportStore interface {
	Create(ctx context.Context, r *report.Report) error
}

// EventPublisher emits best-effort notifications about room lifecycle and
// moderation outcomes for external collaborators. Implementations must not
// block; failures are logged, never propagated.
type EventPublisher interface {
	RoomCreated(roomID, userA, userB string)
	RoomClosed(roomID, reason string)
	MessageFlagged(roomID, senderID, term string)
	ReportFiled(roomID, reporterID, reportedID, reason string)
}

// Config holds hub tunables.
type Config struct {
	// MaxQueueWait bounds how long an entry may sit in the waiting queue
	// before the eviction sweep removes it. Zero disables eviction.
	MaxQueueWait time.Duration

	// SweepInterval is how often the eviction sweep runs.
	SweepInterval time.Duration
}

// DefaultConfig returns the production defaults.
func DefaultConfig() Config {
	return Config{
		MaxQueueWait:  5 * time.Minute,
		SweepInterval: 15 * time.Second,
	}
}

// Hub owns the presence registry and the waiting queue. All mutations of
// pairing state go through its methods.
type Hub struct {
	mu       sync.Mutex
	registry *presence.Registry
	queue    *waitQueue
	config   Config

	sender  Sender
	filter  Moderator
	bans    BanService
	tiers   TierResolver
	limits  Limiter
	reports ReportStore
	events  EventPublisher
	history *history.Buffer

	done chan struct{}
}

// New creates a Hub. sender and filter are required; bans, tiers, limits,
// reports and events may be nil, in which case the corresponding checks are
// skipped (useful in tests and degraded deployments).
func New(config Config, sender Sender, filter Moderator) *Hub {
	return &Hub{
		registry: presence.NewRegistry(),
		queue:    newWaitQueue(),
		config:   config,
		sender:   sender,
		filter:   filter,
		history:  history.NewBuffer(),
		done:     make(chan struct{}),
	}
}

// SetBanService wires the ban/escalation backend.
func (h *Hub) SetBanService(b BanService) { h.bans = b }

// SetTierResolver wires the trusted tier source.
func (h *Hub) SetTierResolver(t TierResolver) { h.tiers = t }

// SetLimiter wires the rate limiter.
func (h *Hub) SetLimiter(l Limiter) { h.limits = l }

// SetReportStore wires abuse report persistence.
func (h *Hub) SetReportStore(r ReportStore) { h.reports = r }

// SetEventPublisher wires the outbound event bus.
func (h *Hub) SetEventPublisher(p EventPublisher) { h.events = p }

// Registry exposes the presence registry for read access (health endpoints,
// metrics collection).
func (h *Hub) Registry() *presence.Registry { return h.registry }

// Start launches the background queue eviction sweep. It returns
// immediately; the goroutine exits when Stop is called.
func (h *Hub) Start() {
	if h.config.MaxQueueWait <= 0 {
		return
	}
	interval := h.config.SweepInterval
	if interval <= 0 {
		interval = 15 * time.Second
	}
	go func() {
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		for {
			select {
			case <-h.done:
				return
			case <-ticker.C:
				h.evictStale()
			}
		}
	}()
}

// Stop terminates the background sweep.
func (h *Hub) Stop() {
	close(h.done)
}

// outbound is a server event staged during a critical section and delivered
// after the hub lock is released, so socket writes never run under the lock.
type outbound struct {
	connID string
	data   []byte
}

// flush delivers staged events. Send errors are logged and otherwise
// ignored; a dead connection is cleaned up by the transport layer.
func (h *Hub) flush(msgs []outbound) {
	for _, m := range msgs {
		if m.data == nil {
			continue
		}
		if err := h.sender.Send(m.connID, m.data); err != nil {
			log.Printf("[hub] send to %s failed: %v", m.connID, err)
		}
	}
}
