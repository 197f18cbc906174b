package service

import (
	"context"
	"testing"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/repository"
	"github.com/RodrigoCastroMoura/Tracker/internal/protocol/attrack"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIMEI = "865083030086961"

func newService(t *testing.T) (*trackingService, *repository.MemoryVehicleRepository, *repository.MemoryTrackEventRepository) {
	t.Helper()
	vehicles := repository.NewMemoryVehicleRepository()
	events := repository.NewMemoryTrackEventRepository()
	svc := NewTrackingService(vehicles, events, nil, nil, nil).(*trackingService)
	return svc, vehicles, events
}

func decode(t *testing.T, msg string) *attrack.Event {
	t.Helper()
	ev, err := attrack.Decode(msg)
	require.NoError(t, err)
	return ev
}

func TestProcessEventPersistsAndUpsertsVehicle(t *testing.T) {
	svc, vehicles, events := newService(t)
	ctx := context.Background()

	ev := decode(t, "+RESP:GTFRI,090302,"+testIMEI+",,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,20250724055410,0497")
	require.NoError(t, svc.ProcessEvent(ctx, ev))

	assert.Equal(t, 1, events.Count(testIMEI))
	v, err := vehicles.FindByIMEI(ctx, testIMEI)
	require.NoError(t, err)
	require.NotNil(t, v)
	assert.Equal(t, "-46.778597", v.LastLongitude)
	assert.Equal(t, "-23.562412", v.LastLatitude)
	assert.Equal(t, ev.Raw, v.LastRawMessage)
}

func TestProcessEventNoDeduplication(t *testing.T) {
	svc, _, events := newService(t)
	ctx := context.Background()

	ev := decode(t, "+RESP:GTFRI,090302,"+testIMEI+",,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,20250724055410,0497")
	require.NoError(t, svc.ProcessEvent(ctx, ev))
	require.NoError(t, svc.ProcessEvent(ctx, ev))

	// Same frame twice is two records; replay suppression is not this layer's job.
	assert.Equal(t, 2, events.Count(testIMEI))
}

func TestProcessEventIgnitionUpdatesVehicle(t *testing.T) {
	svc, vehicles, _ := newService(t)
	ctx := context.Background()

	on := decode(t, "+RESP:GTIGN,090302,"+testIMEI+",,120,0,0.0,76,744.6,-46.778597,-23.562412,20250724055410,0497")
	require.NoError(t, svc.ProcessEvent(ctx, on))
	v, _ := vehicles.FindByIMEI(ctx, testIMEI)
	assert.True(t, v.Ignition)

	off := decode(t, "+RESP:GTIGF,090302,"+testIMEI+",,120,0,0.0,76,744.6,-46.778597,-23.562412,20250724055410,0497")
	require.NoError(t, svc.ProcessEvent(ctx, off))
	v, _ = vehicles.FindByIMEI(ctx, testIMEI)
	assert.False(t, v.Ignition)
}

func TestHeartbeatUpdatesVehicleWithoutRecord(t *testing.T) {
	svc, vehicles, events := newService(t)
	ctx := context.Background()

	hb := decode(t, "+ACK:GTHBD,090302,"+testIMEI+",,20250724055411,0497")
	require.NoError(t, svc.ProcessEvent(ctx, hb))

	assert.Zero(t, events.Count(testIMEI), "heartbeats are liveness, not tracking data")
	v, _ := vehicles.FindByIMEI(ctx, testIMEI)
	require.NotNil(t, v)
}

func TestBufferedReportStalenessGuard(t *testing.T) {
	svc, _, events := newService(t)
	svc.now = func() time.Time { return time.Date(2025, 7, 24, 6, 0, 0, 0, time.UTC) }
	ctx := context.Background()

	// Device clock before server time: stored.
	past := decode(t, "+BUFF:GTFRI,090302,"+testIMEI+",,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,20250724055410,0497")
	require.NoError(t, svc.ProcessEvent(ctx, past))
	assert.Equal(t, 1, events.Count(testIMEI))

	// Device clock in the future: discarded.
	future := decode(t, "+BUFF:GTFRI,090302,"+testIMEI+",,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,20260101000000,0497")
	require.NoError(t, svc.ProcessEvent(ctx, future))
	assert.Equal(t, 1, events.Count(testIMEI))

	// Unparseable device clock on a buffered report: discarded too.
	garbage := decode(t, "+BUFF:GTFRI,090302,"+testIMEI+",,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,0000,0497")
	require.NoError(t, svc.ProcessEvent(ctx, garbage))
	assert.Equal(t, 1, events.Count(testIMEI))

	// Realtime reports are never subject to the guard.
	rt := decode(t, "+RESP:GTFRI,090302,"+testIMEI+",,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,20260101000000,0497")
	require.NoError(t, svc.ProcessEvent(ctx, rt))
	assert.Equal(t, 2, events.Count(testIMEI))
}

func TestEventWithoutIMEIIsSkipped(t *testing.T) {
	svc, vehicles, events := newService(t)
	ctx := context.Background()

	ev := decode(t, "+RESP:GTFRI,090302")
	require.NoError(t, svc.ProcessEvent(ctx, ev))
	assert.Zero(t, events.Count(""))
	all, _ := vehicles.FindAll(ctx)
	assert.Empty(t, all)
}

func TestRequestBlock(t *testing.T) {
	svc, vehicles, _ := newService(t)
	ctx := context.Background()

	assert.ErrorIs(t, svc.RequestBlock(ctx, testIMEI, true), ErrVehicleNotFound)

	require.NoError(t, vehicles.Upsert(ctx, model.NewVehicle(testIMEI)))
	require.NoError(t, svc.RequestBlock(ctx, testIMEI, true))

	v, _ := vehicles.FindByIMEI(ctx, testIMEI)
	require.NotNil(t, v.BlockCommand)
	assert.True(t, *v.BlockCommand)
	assert.False(t, v.Blocked, "desire is not confirmation")
}

func TestTelemetryWriteLeavesControlStateAlone(t *testing.T) {
	svc, vehicles, _ := newService(t)
	ctx := context.Background()

	v := model.NewVehicle(testIMEI)
	v.TrackerModel = "GV50"
	v.Blocked = true
	require.NoError(t, vehicles.Upsert(ctx, v))

	ev := decode(t, "+RESP:GTFRI,090302,"+testIMEI+",,0,0,1,1,0.0,92,70.0,-46.778597,-23.562412,20250724055410,0497")
	require.NoError(t, svc.ProcessEvent(ctx, ev))

	got, err := vehicles.FindByIMEI(ctx, testIMEI)
	require.NoError(t, err)
	assert.Equal(t, "-46.778597", got.LastLongitude)
	// Persisting telemetry touches only telemetry; confirmed block state and
	// model stay exactly as the engine left them.
	assert.True(t, got.Blocked)
	assert.Equal(t, "GV50", got.TrackerModel)
}
