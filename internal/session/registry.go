package session

import (
	"net"
	"sync"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/protocol/attrack"

	cache "github.com/go-pkgz/expirable-cache/v3"
)

// Disposition classifies what an inbound event means for device liveness.
type Disposition int

const (
	// NewDevice: first event seen for this IMEI; a connection event is worth
	// logging and notifying about.
	NewDevice Disposition = iota
	// KnownDeviceActivity: routine traffic from a tracked device.
	KnownDeviceActivity
	// HeartbeatOnly: keep-alive from a tracked device. Heartbeats refresh
	// liveness but must never be reported as connection churn, even when they
	// arrive on a socket the registry has not seen before.
	HeartbeatOnly
)

func (d Disposition) String() string {
	switch d {
	case NewDevice:
		return "new-device"
	case KnownDeviceActivity:
		return "activity"
	case HeartbeatOnly:
		return "heartbeat"
	}
	return "?"
}

// Session is the live state for one logical device. Identity is the IMEI,
// never the socket: a device may reopen TCP connections at will, and only the
// most recent socket is tracked.
type Session struct {
	IMEI         string
	ConnectedAt  time.Time
	LastSeenAt   time.Time
	MessageCount int64
	Conn         net.Conn
}

// Registry owns the IMEI -> Session map shared by all connection handlers.
// All mutations are serialized under one mutex; the TTL-evicting store keeps
// the map bounded when devices go dark without closing their sockets.
type Registry struct {
	mu       sync.Mutex
	sessions cache.Cache[string, *Session]
	now      func() time.Time
}

func NewRegistry(ttl time.Duration, maxDevices int) *Registry {
	if ttl <= 0 {
		ttl = 30 * time.Minute
	}
	if maxDevices <= 0 {
		maxDevices = 10000
	}
	return &Registry{
		sessions: cache.NewCache[string, *Session]().WithTTL(ttl).WithMaxKeys(maxDevices),
		now:      time.Now,
	}
}

// Track records one inbound event and reports its disposition. A fresh
// connection from an already-tracked IMEI replaces the stale socket; the old
// one is closed so its handler unwinds.
func (r *Registry) Track(ev *attrack.Event, conn net.Conn) Disposition {
	r.mu.Lock()
	defer r.mu.Unlock()

	now := r.now()
	s, ok := r.sessions.Get(ev.IMEI)
	if !ok {
		s = &Session{
			IMEI:         ev.IMEI,
			ConnectedAt:  now,
			LastSeenAt:   now,
			MessageCount: 1,
			Conn:         conn,
		}
		r.sessions.Set(ev.IMEI, s, 0)
		return NewDevice
	}

	s.LastSeenAt = now
	s.MessageCount++
	if s.Conn != conn {
		if s.Conn != nil {
			s.Conn.Close()
		}
		s.Conn = conn
		s.ConnectedAt = now
	}
	r.sessions.Set(ev.IMEI, s, 0) // refresh TTL

	if ev.Kind == attrack.KindHeartbeat {
		return HeartbeatOnly
	}
	return KnownDeviceActivity
}

// Drop detaches the connection when its handler unwinds. The session entry
// itself stays until the TTL evicts it: devices reconnect silently between
// heartbeats, and the next heartbeat on a fresh socket must find the IMEI and
// read as liveness, not as a new device. A session already superseded by a
// newer socket is left alone.
func (r *Registry) Drop(imei string, conn net.Conn) {
	if imei == "" {
		return
	}
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Get(imei)
	if !ok || s.Conn != conn {
		return
	}
	s.Conn = nil
}

// Get returns a snapshot of the session for an IMEI.
func (r *Registry) Get(imei string) (Session, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()

	s, ok := r.sessions.Get(imei)
	if !ok {
		return Session{}, false
	}
	return *s, true
}

// Len reports how many devices are currently tracked.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return r.sessions.Len()
}
