package server

import (
	"context"
	"errors"
	"net"
	"os"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/logging"
	"github.com/RodrigoCastroMoura/Tracker/internal/protocol/attrack"

	"go.uber.org/zap"
)

const processTimeout = 10 * time.Second

// handleConnection owns one device socket for its lifetime: read, frame,
// decode, register, persist, then answer with whatever the control engine
// has pending. A session that keeps sending garbage is cut loose once it
// crosses the malformed strike limit.
func (s *TCPServer) handleConnection(conn net.Conn) {
	remote := conn.RemoteAddr().String()
	logging.Debug("device connected", zap.String("remote", remote))

	framer := attrack.NewFramer(s.cfg.MaxFrameBytes)
	buf := make([]byte, 4096)
	strikes := 0
	imei := ""

	defer func() {
		conn.Close()
		if imei != "" {
			s.registry.Drop(imei, conn)
		}
		logging.Debug("device disconnected", zap.String("remote", remote), zap.String("imei", imei))
	}()

	for {
		if s.ctx.Err() != nil {
			return
		}
		conn.SetReadDeadline(time.Now().Add(s.cfg.IdleTimeout))
		n, err := conn.Read(buf)
		if err != nil {
			if errors.Is(err, os.ErrDeadlineExceeded) {
				logging.Debug("idle timeout", zap.String("remote", remote), zap.String("imei", imei))
			}
			return
		}

		frames, dropped := framer.Push(buf[:n])
		strikes += dropped
		for _, frame := range frames {
			ev, err := attrack.Decode(frame)
			if err != nil {
				strikes++
				logging.Warn("undecodable frame",
					zap.String("remote", remote), zap.Error(err))
				continue
			}
			if ev.IMEI != "" {
				imei = ev.IMEI
			}
			s.dispatch(conn, ev)
		}
		if strikes >= s.cfg.MalformedLimit {
			logging.Warn("malformed limit reached, closing connection",
				zap.String("remote", remote), zap.String("imei", imei))
			return
		}
	}
}

// dispatch runs the pipeline for one decoded event and writes any reply
// the protocol or the control engine calls for.
func (s *TCPServer) dispatch(conn net.Conn, ev *attrack.Event) {
	if ev.IMEI != "" {
		disposition := s.registry.Track(ev, conn)
		logging.Debug("event received",
			zap.String("imei", ev.IMEI),
			zap.String("type", ev.Type),
			zap.Stringer("class", ev.Class),
			zap.Stringer("disposition", disposition))
	}

	ctx, cancel := context.WithTimeout(s.ctx, processTimeout)
	defer cancel()

	if err := s.tracking.ProcessEvent(ctx, ev); err != nil {
		logging.Error("failed to process event",
			zap.String("imei", ev.IMEI), zap.Error(err))
	}

	if ev.Kind == attrack.KindHeartbeat {
		s.write(conn, ev.IMEI, attrack.BuildHeartbeatAck(ev.ProtocolVersion, ev.CountNumber))
	}

	if command := s.engine.Evaluate(ctx, ev); command != "" {
		s.write(conn, ev.IMEI, command)
	}
}

func (s *TCPServer) write(conn net.Conn, imei, payload string) {
	conn.SetWriteDeadline(time.Now().Add(10 * time.Second))
	if _, err := conn.Write([]byte(payload)); err != nil {
		logging.Warn("failed to write to device",
			zap.String("imei", imei), zap.Error(err))
	}
}
