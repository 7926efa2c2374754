package hub

import (
	"context"
	"log"
	"strings"
	"time"

	"github.com/google/uuid"

	"github.com/veilchat/server/internal/metrics"
	"github.com/veilchat/server/internal/presence"
	"github.com/veilchat/server/internal/protocol"
)

// JoinQueue handles a join_queue event: it validates the caller against the
// ban list, resolves the trusted tier, normalizes filters, and either pairs
// the caller with the first mutually compatible waiting connection or
// appends it to the queue.
//
// Joining while already searching or paired is a silent no-op: those are
// expected races between the client UI and server truth, not errors.
func (h *Hub) JoinQueue(ctx context.Context, connID, ip string, msg protocol.JoinQueueMsg) {
	// Ban check and tier resolution hit Redis, so they run before the hub
	// lock is taken. Both fail open. The check runs even with no user id:
	// the IP leg must hold against anonymous joins.
	if h.bans != nil {
		banned, reason, err := h.bans.IsBanned(ctx, msg.UserID, ip)
		if err != nil {
			log.Printf("[hub] ban check conn=%s failed: %v (failing open)", connID, err)
		} else if banned {
			data, _ := protocol.NewServerMessage(protocol.TypeError, protocol.ErrorMsg{
				Message: "you are banned from matching: " + reason,
			})
			h.flush([]outbound{{connID: connID, data: data}})
			log.Printf("[hub] join_queue refused for banned user=%q conn=%s", msg.UserID, connID)
			return
		}
	}

	// Anonymous callers are throttled by connection id so a leave/rejoin
	// loop without a user id hits the same limit.
	limiterID := msg.UserID
	if limiterID == "" {
		limiterID = connID
	}
	if h.limits != nil && !h.limits.AllowJoin(ctx, limiterID) {
		data, _ := protocol.NewServerMessage(protocol.TypeSystemMessage, protocol.SystemMessageMsg{
			Text: "you are rejoining too quickly, please wait a moment",
		})
		h.flush([]outbound{{connID: connID, data: data}})
		return
	}

	tier := h.resolveTier(ctx, msg.UserID, msg.Tier)

	h.mu.Lock()
	staged := h.enqueueOrMatch(connID, tier, msg)
	h.mu.Unlock()

	h.flush(staged)
}

// resolveTier returns the tier to trust for filter-privilege enforcement.
// The claimed tier in the payload is only honored up to what the identity
// backend has on record; with no trusted record the caller is anonymous.
func (h *Hub) resolveTier(ctx context.Context, userID, claimed string) string {
	if h.tiers == nil || userID == "" {
		return presence.TierAnonymous
	}
	trusted, err := h.tiers.Resolve(ctx, userID)
	if err != nil {
		log.Printf("[hub] tier resolve for %s failed: %v (treating as anonymous)", userID, err)
		return presence.TierAnonymous
	}
	if trusted == "" {
		return presence.TierAnonymous
	}
	_ = claimed // the claim is advisory only; the trusted record wins
	return trusted
}

// enqueueOrMatch runs the matching pass under the hub lock and returns the
// events to deliver once the lock is released.
func (h *Hub) enqueueOrMatch(connID, tier string, msg protocol.JoinQueueMsg) []outbound {
	c := h.registry.Get(connID)
	if c == nil {
		return nil
	}
	if c.Searching || c.PartnerID != "" {
		return nil
	}

	if msg.UserID != "" && c.UserID == "" {
		// join_queue doubles as identity attachment for clients that never
		// sent reconnect_user.
		h.registry.AttachUser(connID, msg.UserID)
	}

	c.Tier = tier
	c.Gender = strings.ToLower(strings.TrimSpace(msg.Gender))
	c.Country = normalizeCountry(msg.Country)
	c.Filter = normalizeFilter(c, msg.Filters)
	c.LastActive = time.Now()

	// Front-to-back scan. Entries whose connection is gone are swept, not
	// errored; the first mutually compatible candidate wins, FIFO tie-break.
	for _, entry := range h.queue.snapshot() {
		cand := h.registry.Get(entry.connID)
		if cand == nil || !cand.Searching {
			h.queue.remove(entry.connID)
			continue
		}
		if cand.ConnID == connID {
			continue
		}
		if cand.UserID != "" && cand.UserID == c.UserID {
			// Same identity on two connections never self-matches.
			continue
		}
		if !c.Filter.Matches(cand.Gender, cand.Country) {
			continue
		}
		if !cand.Filter.Matches(c.Gender, c.Country) {
			continue
		}
		return h.pair(c, cand, entry.joinedAt)
	}

	h.queue.push(connID)
	c.Searching = true
	metrics.MatchQueueSize.Set(float64(h.queue.len()))
	log.Printf("[hub] enqueued conn=%s user=%s tier=%s (queue size: %d)",
		connID, c.UserID, c.Tier, h.queue.len())
	return nil
}

// pair links two connections into a fresh room and stages match_found for
// both sides. Must be called with the hub lock held.
func (h *Hub) pair(caller, cand *presence.Client, candJoinedAt time.Time) []outbound {
	h.queue.remove(cand.ConnID)
	caller.Searching = false
	cand.Searching = false

	roomID := uuid.New().String()
	caller.PartnerID = cand.ConnID
	caller.Room = roomID
	cand.PartnerID = caller.ConnID
	cand.Room = roomID

	metrics.MatchQueueSize.Set(float64(h.queue.len()))
	metrics.ActiveRooms.Inc()
	metrics.MatchDuration.Observe(time.Since(candJoinedAt).Seconds())

	if h.events != nil {
		h.events.RoomCreated(roomID, caller.UserID, cand.UserID)
	}
	log.Printf("[hub] matched conn=%s and conn=%s room=%s", caller.ConnID, cand.ConnID, roomID)

	toCaller, _ := protocol.NewServerMessage(protocol.TypeMatchFound, protocol.MatchFoundMsg{
		Room:           roomID,
		PartnerGender:  cand.Gender,
		PartnerTier:    cand.Tier,
		PartnerCountry: cand.Country,
	})
	toCand, _ := protocol.NewServerMessage(protocol.TypeMatchFound, protocol.MatchFoundMsg{
		Room:           roomID,
		PartnerGender:  caller.Gender,
		PartnerTier:    caller.Tier,
		PartnerCountry: caller.Country,
	})
	return []outbound{
		{connID: caller.ConnID, data: toCaller},
		{connID: cand.ConnID, data: toCand},
	}
}

// normalizeFilter enforces filter privilege server-side: non-premium tiers
// always get the wildcard filter regardless of payload content.
func normalizeFilter(c *presence.Client, f protocol.Filters) presence.Filter {
	if !c.Privileged() {
		return presence.Filter{}
	}
	out := presence.Filter{
		Gender:  strings.ToLower(strings.TrimSpace(f.Gender)),
		Country: normalizeCountry(f.Country),
	}
	if out.Gender == presence.Any {
		out.Gender = ""
	}
	if out.Country == presence.Any || len(out.Country) != 2 {
		out.Country = ""
	}
	return out
}

// normalizeCountry upper-cases a 2-letter country code; anything else is
// passed through lower-cased so "any" survives normalization.
func normalizeCountry(s string) string {
	s = strings.TrimSpace(s)
	if len(s) == 2 {
		return strings.ToUpper(s)
	}
	return strings.ToLower(s)
}

// evictStale removes queue entries older than MaxQueueWait and tells the
// affected clients to retry. Stale entries with no live connection are
// dropped on the same pass.
func (h *Hub) evictStale() {
	cutoff := time.Now().Add(-h.config.MaxQueueWait)

	h.mu.Lock()
	var staged []outbound
	evicted := 0
	for _, entry := range h.queue.snapshot() {
		c := h.registry.Get(entry.connID)
		if c == nil || !c.Searching {
			h.queue.remove(entry.connID)
			continue
		}
		if entry.joinedAt.After(cutoff) {
			// Entries are in join order; everything after this one is newer.
			break
		}
		h.queue.remove(entry.connID)
		c.Searching = false
		data, _ := protocol.NewServerMessage(protocol.TypeSystemMessage, protocol.SystemMessageMsg{
			Text: "no match found, please try again",
		})
		staged = append(staged, outbound{connID: entry.connID, data: data})
		evicted++
	}
	metrics.MatchQueueSize.Set(float64(h.queue.len()))
	h.mu.Unlock()

	if evicted > 0 {
		log.Printf("[hub] evicted %d queue entries older than %s", evicted, h.config.MaxQueueWait)
	}
	h.flush(staged)
}
