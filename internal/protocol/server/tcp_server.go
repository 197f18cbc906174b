package server

import (
	"context"
	"errors"
	"fmt"
	"net"
	"sync"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/service"
	"github.com/RodrigoCastroMoura/Tracker/internal/engine"
	"github.com/RodrigoCastroMoura/Tracker/internal/logging"
	"github.com/RodrigoCastroMoura/Tracker/internal/session"

	"go.uber.org/zap"
	"golang.org/x/sync/semaphore"
)

// Config bounds the listener's resource use.
type Config struct {
	Host           string
	Port           int
	MaxConnections int
	MaxFrameBytes  int
	IdleTimeout    time.Duration
	ShutdownGrace  time.Duration
	MalformedLimit int
}

func (c Config) withDefaults() Config {
	if c.MaxConnections <= 0 {
		c.MaxConnections = 2000
	}
	if c.IdleTimeout <= 0 {
		c.IdleTimeout = 5 * time.Minute
	}
	if c.ShutdownGrace <= 0 {
		c.ShutdownGrace = 15 * time.Second
	}
	if c.MalformedLimit <= 0 {
		c.MalformedLimit = 5
	}
	return c
}

// TCPServer accepts device connections and runs one session goroutine per
// socket. Admission is a semaphore: past the ceiling new connections are
// refused outright rather than queued, so memory stays bounded under a
// reconnect storm.
type TCPServer struct {
	cfg      Config
	registry *session.Registry
	tracking service.TrackingService
	engine   *engine.Engine

	listener net.Listener
	sem      *semaphore.Weighted
	wg       sync.WaitGroup
	ctx      context.Context
	cancel   context.CancelFunc

	connMu sync.Mutex
	conns  map[net.Conn]struct{}
}

func NewTCPServer(cfg Config, registry *session.Registry, tracking service.TrackingService, eng *engine.Engine) *TCPServer {
	cfg = cfg.withDefaults()
	ctx, cancel := context.WithCancel(context.Background())
	return &TCPServer{
		cfg:      cfg,
		registry: registry,
		tracking: tracking,
		engine:   eng,
		sem:      semaphore.NewWeighted(int64(cfg.MaxConnections)),
		ctx:      ctx,
		cancel:   cancel,
		conns:    make(map[net.Conn]struct{}),
	}
}

func (s *TCPServer) Start() error {
	var err error
	s.listener, err = net.Listen("tcp", fmt.Sprintf("%s:%d", s.cfg.Host, s.cfg.Port))
	if err != nil {
		return fmt.Errorf("failed to start TCP server: %w", err)
	}

	logging.Info("TCP server listening",
		zap.String("addr", s.listener.Addr().String()),
		zap.Int("maxConnections", s.cfg.MaxConnections))

	go s.acceptConnections()
	return nil
}

// Stop closes the listener, lets in-flight sessions drain for the grace
// period, then force-closes whatever remains.
func (s *TCPServer) Stop() {
	if s.listener != nil {
		s.listener.Close()
	}
	s.cancel()

	done := make(chan struct{})
	go func() {
		s.wg.Wait()
		close(done)
	}()

	select {
	case <-done:
	case <-time.After(s.cfg.ShutdownGrace):
		logging.Warn("shutdown grace elapsed, force-closing sessions")
		s.connMu.Lock()
		for conn := range s.conns {
			conn.Close()
		}
		s.connMu.Unlock()
		<-done
	}
	logging.Info("TCP server stopped")
}

func (s *TCPServer) acceptConnections() {
	for {
		conn, err := s.listener.Accept()
		if err != nil {
			if errors.Is(err, net.ErrClosed) {
				return
			}
			logging.Error("error accepting connection", zap.Error(err))
			continue
		}

		if !s.sem.TryAcquire(1) {
			// At capacity: refuse, do not queue. The device retries on its
			// own schedule.
			logging.Warn("connection refused at capacity",
				zap.String("remote", conn.RemoteAddr().String()))
			conn.Close()
			continue
		}

		s.track(conn)
		s.wg.Add(1)
		go func() {
			defer s.wg.Done()
			defer s.sem.Release(1)
			defer s.untrack(conn)
			s.handleConnection(conn)
		}()
	}
}

func (s *TCPServer) track(conn net.Conn) {
	s.connMu.Lock()
	s.conns[conn] = struct{}{}
	s.connMu.Unlock()
}

func (s *TCPServer) untrack(conn net.Conn) {
	s.connMu.Lock()
	delete(s.conns, conn)
	s.connMu.Unlock()
}
