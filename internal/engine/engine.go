package engine

import (
	"context"

	"github.com/RodrigoCastroMoura/Tracker/internal/cache"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/repository"
	"github.com/RodrigoCastroMoura/Tracker/internal/lock"
	"github.com/RodrigoCastroMoura/Tracker/internal/logging"
	"github.com/RodrigoCastroMoura/Tracker/internal/notify"
	"github.com/RodrigoCastroMoura/Tracker/internal/protocol/attrack"

	"go.uber.org/zap"
)

// Engine turns stored operator intent into device commands and reconciles
// device acknowledgments back into confirmed state. Persisted intent, not
// in-process memory, is the source of truth: the desired state survives
// restarts and is re-offered on every message exchange until a device ack
// with a successful result clears it.
type Engine struct {
	vehicles        repository.VehicleRepository
	controlCache    *cache.ControlCache
	notifier        notify.Notifier
	defaultPassword string
	locks           *lock.Keyed
}

// New builds the engine. locks must be shared with every other writer of
// vehicle records (the tracking service in particular); nil allocates a
// private instance for callers that have no other writer.
func New(vehicles repository.VehicleRepository, controlCache *cache.ControlCache, notifier notify.Notifier, defaultPassword string, locks *lock.Keyed) *Engine {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &Engine{
		vehicles:        vehicles,
		controlCache:    controlCache,
		notifier:        notifier,
		defaultPassword: defaultPassword,
		locks:           locks,
	}
}

// Evaluate runs the command state machine for one inbound event and returns
// the wire command to send back on the same socket, or "" when there is
// nothing to do. It is called for every event from a device, heartbeats
// included, because a device holding one long connection gets no other
// opportunity to receive its pending command. Two connections claiming the
// same IMEI are serialized on a sharded per-IMEI lock.
func (e *Engine) Evaluate(ctx context.Context, ev *attrack.Event) string {
	if ev.IMEI == "" {
		return ""
	}

	mu := e.locks.For(ev.IMEI)
	mu.Lock()
	defer mu.Unlock()

	vehicle, err := e.controlState(ctx, ev.IMEI)
	if err != nil {
		logging.Error("loading control state", zap.String("imei", ev.IMEI), zap.Error(err))
		return ""
	}
	if vehicle == nil {
		return ""
	}

	if ev.Kind == attrack.KindCommandAck && ev.Type == "GTOUT" {
		e.reconcileAck(ctx, vehicle, ev)
		// Reload so a just-confirmed command is not offered again below.
		vehicle, err = e.controlState(ctx, ev.IMEI)
		if err != nil || vehicle == nil {
			return ""
		}
	}

	// The firmware family does not implement the server-change command; a
	// persisted intent to send it is a configuration mistake. Clear it so it
	// cannot linger, and never put it on the wire.
	if vehicle.IPChangeCommand {
		logging.Warn("clearing unsupported IP-change command", zap.String("imei", ev.IMEI))
		if err := e.vehicles.SetIPChangeCommand(ctx, ev.IMEI, false); err != nil {
			logging.Error("clearing IP-change command", zap.String("imei", ev.IMEI), zap.Error(err))
		} else {
			e.invalidate(ctx, ev.IMEI)
		}
	}

	if vehicle.BlockCommand == nil {
		return ""
	}

	if vehicle.TrackerModel == "" {
		logging.Warn("block command pending but tracker model unset, holding command",
			zap.String("imei", ev.IMEI))
		return ""
	}

	cmd, err := attrack.BuildOutputCommand(
		attrack.TrackerModel(vehicle.TrackerModel),
		vehicle.Password(e.defaultPassword),
		*vehicle.BlockCommand,
	)
	if err != nil {
		logging.Warn("cannot build output command",
			zap.String("imei", ev.IMEI),
			zap.String("model", vehicle.TrackerModel),
			zap.Error(err))
		return ""
	}

	logging.Info("offering output command",
		zap.String("imei", ev.IMEI),
		zap.Bool("block", *vehicle.BlockCommand),
		zap.String("model", vehicle.TrackerModel))
	return cmd
}

// reconcileAck applies a GTOUT acknowledgment. An ack with no matching
// pending command is ignored: acks can arrive long after the window due to
// network delay, and the second ack for an already-confirmed device must be a
// no-op. Desire is cleared only here, never on send.
func (e *Engine) reconcileAck(ctx context.Context, vehicle *model.Vehicle, ev *attrack.Event) {
	if vehicle.BlockCommand == nil {
		logging.Debug("ack without pending command, ignoring",
			zap.String("imei", ev.IMEI),
			zap.String("result", ev.ResultCode))
		return
	}

	if !attrack.AckSuccess(ev.ResultCode) {
		logging.Warn("device reported command failure",
			zap.String("imei", ev.IMEI),
			zap.String("result", ev.ResultCode))
		return
	}

	blocked := *vehicle.BlockCommand
	if err := e.vehicles.SetConfirmedBlocked(ctx, ev.IMEI, blocked); err != nil {
		logging.Error("recording confirmed block state", zap.String("imei", ev.IMEI), zap.Error(err))
		return
	}
	e.invalidate(ctx, ev.IMEI)

	state := "unblocked"
	eventKind := "vehicle_unblocked"
	if blocked {
		state = "blocked"
		eventKind = "vehicle_blocked"
	}
	logging.Info("command confirmed by device",
		zap.String("imei", ev.IMEI),
		zap.String("state", state),
		zap.String("result", ev.ResultCode))
	e.notifier.Notify(ctx, ev.IMEI, eventKind, "Vehicle "+state+" confirmed by device")
}

func (e *Engine) controlState(ctx context.Context, imei string) (*model.Vehicle, error) {
	if e.controlCache != nil {
		if vehicle, ok := e.controlCache.GetVehicle(ctx, imei); ok {
			return vehicle, nil
		}
	}
	vehicle, err := e.vehicles.FindByIMEI(ctx, imei)
	if err != nil {
		return nil, err
	}
	if vehicle != nil && e.controlCache != nil {
		e.controlCache.SetVehicle(ctx, vehicle)
	}
	return vehicle, nil
}

func (e *Engine) invalidate(ctx context.Context, imei string) {
	if e.controlCache != nil {
		e.controlCache.InvalidateVehicle(ctx, imei)
	}
}
