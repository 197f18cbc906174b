package service

import (
	"context"
	"errors"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/cache"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/repository"
	"github.com/RodrigoCastroMoura/Tracker/internal/lock"
	"github.com/RodrigoCastroMoura/Tracker/internal/logging"
	"github.com/RodrigoCastroMoura/Tracker/internal/notify"
	"github.com/RodrigoCastroMoura/Tracker/internal/protocol/attrack"

	"go.uber.org/zap"
)

var ErrVehicleNotFound = errors.New("vehicle not found")

// TrackingService persists decoded events and maintains the per-vehicle
// control record. It also carries operator intent from the API into storage,
// where the command engine picks it up on the device's next exchange.
type TrackingService interface {
	ProcessEvent(ctx context.Context, ev *attrack.Event) error
	ListVehicles(ctx context.Context) ([]*model.Vehicle, error)
	GetVehicle(ctx context.Context, imei string) (*model.Vehicle, error)
	LatestEvents(ctx context.Context, imei string, limit int64) ([]*model.TrackEvent, error)
	RequestBlock(ctx context.Context, imei string, block bool) error
	RequestIPChange(ctx context.Context, imei string) error
}

type trackingService struct {
	vehicles     repository.VehicleRepository
	events       repository.TrackEventRepository
	controlCache *cache.ControlCache
	notifier     notify.Notifier
	locks        *lock.Keyed
	now          func() time.Time
}

// NewTrackingService builds the service. locks must be the same Keyed
// instance the command engine uses so that vehicle reads and writes for one
// IMEI never interleave with an ack reconciliation; passing nil allocates a
// private instance, which is only safe when no engine shares the repository.
func NewTrackingService(
	vehicles repository.VehicleRepository,
	events repository.TrackEventRepository,
	controlCache *cache.ControlCache,
	notifier notify.Notifier,
	locks *lock.Keyed,
) TrackingService {
	if notifier == nil {
		notifier = notify.Nop{}
	}
	if locks == nil {
		locks = lock.NewKeyed()
	}
	return &trackingService{
		vehicles:     vehicles,
		events:       events,
		controlCache: controlCache,
		notifier:     notifier,
		locks:        locks,
		now:          time.Now,
	}
}

// ProcessEvent stores one decoded event and refreshes the vehicle record.
// Every call appends a fresh record — the store does not deduplicate, replays
// are an upstream concern. Storage failures are returned for logging but the
// caller continues the session; a database outage never tears down protocol
// handling.
func (s *trackingService) ProcessEvent(ctx context.Context, ev *attrack.Event) error {
	if ev.IMEI == "" {
		// Unknown frames without identity are log-only.
		logging.Debug("skipping event without IMEI", zap.String("raw", ev.Raw))
		return nil
	}

	if s.discardStale(ev) {
		return nil
	}

	var storeErr error
	if persistable(ev) {
		record := s.toRecord(ev)
		if err := s.events.Create(ctx, record); err != nil {
			storeErr = err
		}
	}

	if err := s.updateVehicle(ctx, ev); err != nil && storeErr == nil {
		storeErr = err
	}
	return storeErr
}

// discardStale applies the buffered-report guard: a +BUFF location report is
// only trusted when its device clock parses and is strictly before server
// time. Anything else is a replay of a clock we cannot order.
func (s *trackingService) discardStale(ev *attrack.Event) bool {
	if ev.Class != attrack.ClassBuffered || ev.Kind != attrack.KindLocationReport {
		return false
	}
	if ev.DeviceTime == nil || !ev.DeviceTime.Before(s.now()) {
		logging.Debug("discarding stale buffered report",
			zap.String("imei", ev.IMEI),
			zap.String("deviceTimestamp", ev.DeviceTimestamp))
		return true
	}
	return false
}

// persistable: heartbeats keep the connection warm but are not tracking data.
func persistable(ev *attrack.Event) bool {
	return ev.Kind != attrack.KindHeartbeat
}

func (s *trackingService) toRecord(ev *attrack.Event) *model.TrackEvent {
	record := model.NewTrackEvent(ev.IMEI)
	record.ServerTime = s.now().UTC()
	record.Kind = ev.Kind.String()
	record.Class = ev.Class.String()
	record.Type = ev.Type
	record.Longitude = ev.Longitude
	record.Latitude = ev.Latitude
	record.Altitude = ev.Altitude
	record.Speed = ev.Speed
	record.Course = ev.Course
	record.Ignition = ev.Ignition
	record.StatusCode = ev.StatusCode
	record.StatusLabel = ev.StatusLabel
	record.ResultCode = ev.ResultCode
	record.DeviceTimestamp = ev.DeviceTimestamp
	record.DeviceTime = ev.DeviceTime
	record.Raw = ev.Raw
	return record
}

// updateVehicle refreshes the telemetry slice of the vehicle record. It runs
// under the same per-IMEI lock as the command engine and writes only through
// the narrow UpdateTelemetry operation, so a command confirmation landing on
// another connection can never be overwritten by a stale read from this one.
func (s *trackingService) updateVehicle(ctx context.Context, ev *attrack.Event) error {
	mu := s.locks.For(ev.IMEI)
	mu.Lock()
	defer mu.Unlock()

	vehicle, err := s.vehicles.FindByIMEI(ctx, ev.IMEI)
	if err != nil {
		return err
	}

	telemetry := repository.VehicleTelemetry{
		LastRawMessage: ev.Raw,
		LastUpdate:     s.now().UTC(),
	}
	if ev.HasFix() {
		telemetry.LastLongitude = ev.Longitude
		telemetry.LastLatitude = ev.Latitude
	}

	if ev.Kind == attrack.KindIgnitionChange && ev.Ignition != nil {
		telemetry.Ignition = ev.Ignition
		if vehicle == nil || vehicle.Ignition != *ev.Ignition {
			eventKind := "ignition_off"
			body := "Ignition turned off"
			if *ev.Ignition {
				eventKind = "ignition_on"
				body = "Ignition turned on"
			}
			logging.Info("ignition change",
				zap.String("imei", ev.IMEI),
				zap.Bool("on", *ev.Ignition))
			s.notifier.Notify(ctx, ev.IMEI, eventKind, body)
		}
	}

	if err := s.vehicles.UpdateTelemetry(ctx, ev.IMEI, telemetry); err != nil {
		return err
	}
	s.invalidate(ctx, ev.IMEI)
	return nil
}

func (s *trackingService) ListVehicles(ctx context.Context) ([]*model.Vehicle, error) {
	return s.vehicles.FindAll(ctx)
}

func (s *trackingService) GetVehicle(ctx context.Context, imei string) (*model.Vehicle, error) {
	vehicle, err := s.vehicles.FindByIMEI(ctx, imei)
	if err != nil {
		return nil, err
	}
	if vehicle == nil {
		return nil, ErrVehicleNotFound
	}
	return vehicle, nil
}

func (s *trackingService) LatestEvents(ctx context.Context, imei string, limit int64) ([]*model.TrackEvent, error) {
	return s.events.FindLatestByIMEI(ctx, imei, limit)
}

// RequestBlock records operator intent. The command reaches the device on its
// next message exchange; nothing is sent from here.
func (s *trackingService) RequestBlock(ctx context.Context, imei string, block bool) error {
	vehicle, err := s.vehicles.FindByIMEI(ctx, imei)
	if err != nil {
		return err
	}
	if vehicle == nil {
		return ErrVehicleNotFound
	}
	if err := s.vehicles.SetBlockCommand(ctx, imei, &block); err != nil {
		return err
	}
	s.invalidate(ctx, imei)
	logging.Info("block command requested", zap.String("imei", imei), zap.Bool("block", block))
	return nil
}

// RequestIPChange records the legacy server-change intent. The engine treats
// it as unsupported on this firmware family and clears it instead of sending;
// the API keeps accepting it so existing operator tooling does not break.
func (s *trackingService) RequestIPChange(ctx context.Context, imei string) error {
	vehicle, err := s.vehicles.FindByIMEI(ctx, imei)
	if err != nil {
		return err
	}
	if vehicle == nil {
		return ErrVehicleNotFound
	}
	if err := s.vehicles.SetIPChangeCommand(ctx, imei, true); err != nil {
		return err
	}
	s.invalidate(ctx, imei)
	return nil
}

func (s *trackingService) invalidate(ctx context.Context, imei string) {
	if s.controlCache != nil {
		s.controlCache.InvalidateVehicle(ctx, imei)
	}
}
