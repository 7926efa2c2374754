// Package presence tracks live connections and their transient user records:
// tier, declared attributes, partner link, queue membership, and the stable
// user id -> connection id map that makes reconnection possible. All state is
// in memory and is lost on process restart; clients tolerate that by
// reconnecting and rejoining the queue.
package presence

import (
	"sync"
	"time"
)

// Tier labels supplied by the external identity provider. Only premium and
// admin may hold non-any partner filters.
const (
	TierAnonymous = "anonymous"
	TierFree      = "free"
	TierStarter   = "starter"
	TierCasual    = "casual"
	TierPremium   = "premium"
	TierAdmin     = "admin"
)

// Any is the wildcard filter value that matches every partner attribute.
const Any = "any"

// Filter is a connection's acceptance constraint for a future partner.
// Zero values are treated as Any.
type Filter struct {
	Gender  string
	Country string
}

// Matches reports whether a candidate with the given gender and country
// satisfies the filter. Empty filter fields match everything.
func (f Filter) Matches(gender, country string) bool {
	if f.Gender != "" && f.Gender != Any && f.Gender != gender {
		return false
	}
	if f.Country != "" && f.Country != Any && f.Country != country {
		return false
	}
	return true
}

// Client is the transient record for one live connection. It is owned by the
// Registry; the hub mutates it only while holding the hub lock, so no
// per-field synchronization is needed here.
type Client struct {
	ConnID     string // transport-assigned connection id
	UserID     string // stable user id, empty until attached
	Tier       string
	Gender     string
	Country    string // 2-letter code, empty if undeclared
	Filter     Filter
	Searching  bool   // currently in the waiting queue
	PartnerID  string // connection id of the paired partner, empty if unpaired
	Room       string // room id shared with the partner, empty if unpaired
	LastActive time.Time
}

// Privileged reports whether the client's tier unlocks partner filters.
func (c *Client) Privileged() bool {
	return c.Tier == TierPremium || c.Tier == TierAdmin
}

// Registry is the thread-safe presence store: connection id -> Client plus
// stable user id -> connection id. All operations are O(1).
type Registry struct {
	mu      sync.RWMutex
	clients map[string]*Client // conn id -> record
	users   map[string]string  // stable user id -> current conn id
}

// NewRegistry creates an empty Registry ready for use.
func NewRegistry() *Registry {
	return &Registry{
		clients: make(map[string]*Client),
		users:   make(map[string]string),
	}
}

// Register creates a fresh record for a connection that just completed the
// transport handshake. The record starts idle: no user id, anonymous tier,
// no partner, not searching.
func (r *Registry) Register(connID string) *Client {
	c := &Client{
		ConnID:     connID,
		Tier:       TierAnonymous,
		LastActive: time.Now(),
	}
	r.mu.Lock()
	r.clients[connID] = c
	r.mu.Unlock()
	return c
}

// Get returns the record for a connection id, or nil if none exists.
func (r *Registry) Get(connID string) *Client {
	r.mu.RLock()
	c := r.clients[connID]
	r.mu.RUnlock()
	return c
}

// GetByUser returns the record currently mapped to a stable user id, or nil.
func (r *Registry) GetByUser(userID string) *Client {
	r.mu.RLock()
	connID, ok := r.users[userID]
	var c *Client
	if ok {
		c = r.clients[connID]
	}
	r.mu.RUnlock()
	return c
}

// AttachUser binds a stable user id to a connection, overwriting any prior
// mapping for that user id. It returns the record previously mapped to the
// user id (nil if there was none, or if it was this same connection), so the
// caller can decide whether an in-progress pairing should be migrated.
func (r *Registry) AttachUser(connID, userID string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return nil
	}

	var prev *Client
	if oldConnID, mapped := r.users[userID]; mapped && oldConnID != connID {
		prev = r.clients[oldConnID]
	}

	c.UserID = userID
	c.LastActive = time.Now()
	r.users[userID] = connID
	return prev
}

// Migrate moves the pairing state of old onto the record of connID: partner
// link, room, and attributes survive a client reconnect while the old record
// is discarded. The partner's own partner-reference is updated by the caller,
// which owns the pairing invariants.
func (r *Registry) Migrate(connID string, old *Client) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return nil
	}

	c.Tier = old.Tier
	c.Gender = old.Gender
	c.Country = old.Country
	c.Filter = old.Filter
	c.PartnerID = old.PartnerID
	c.Room = old.Room
	c.LastActive = time.Now()

	delete(r.clients, old.ConnID)
	return c
}

// Remove deletes a connection's record. If the record was the current
// mapping for its user id, that mapping is removed too. Returns the removed
// record, or nil if the connection was unknown.
func (r *Registry) Remove(connID string) *Client {
	r.mu.Lock()
	defer r.mu.Unlock()

	c, ok := r.clients[connID]
	if !ok {
		return nil
	}
	delete(r.clients, connID)
	if c.UserID != "" && r.users[c.UserID] == connID {
		delete(r.users, c.UserID)
	}
	return c
}

// Count returns the number of live records.
func (r *Registry) Count() int {
	r.mu.RLock()
	n := len(r.clients)
	r.mu.RUnlock()
	return n
}
