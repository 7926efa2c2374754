package ws

import (
	"log"
	"time"

	"github.com/gobwas/ws"
)

// HeartbeatConfig tunes the connection liveness monitor.
type HeartbeatConfig struct {
	Interval time.Duration // ping cadence
	Timeout  time.Duration // extra grace after a ping before a connection counts as dead
}

// DefaultHeartbeatConfig returns the production heartbeat cadence.
func DefaultHeartbeatConfig() HeartbeatConfig {
	return HeartbeatConfig{
		Interval: 30 * time.Second,
		Timeout:  10 * time.Second,
	}
}

// startHeartbeat runs the liveness monitor in the background: every Interval
// it sweeps the connection set, evicting anything silent for longer than
// Interval+Timeout and pinging the rest. The goroutine exits when the
// server's done channel is closed.
func (s *Server) startHeartbeat(config HeartbeatConfig) {
	go func() {
		ticker := time.NewTicker(config.Interval)
		defer ticker.Stop()

		for {
			select {
			case <-s.done:
				return
			case <-ticker.C:
				s.sweepDead(config)
			}
		}
	}()
}

// sweepDead walks the live connections once. Dead ones are removed; the rest
// get a protocol-level ping frame (opcode 0x9), which browsers answer with a
// pong automatically.
func (s *Server) sweepDead(config HeartbeatConfig) {
	deadline := config.Interval + config.Timeout
	now := time.Now()

	for _, c := range s.conns.All() {
		idle := now.Sub(c.LastPing)
		if idle > deadline {
			log.Printf("ws: heartbeat timeout conn=%s idle=%s", c.ID, idle.Round(time.Second))
			s.RemoveConnection(c)
			continue
		}

		if err := c.WritePing(); err != nil {
			log.Printf("ws: heartbeat ping failed conn=%s: %v", c.ID, err)
			s.RemoveConnection(c)
		}
	}
}

// WritePing sends a WebSocket ping frame on the connection, serialized with
// other outbound frames by the per-connection write mutex.
func (c *Connection) WritePing() error {
	c.writeMu.Lock()
	defer c.writeMu.Unlock()
	return ws.WriteFrame(c.Conn, ws.NewPingFrame(nil))
}
