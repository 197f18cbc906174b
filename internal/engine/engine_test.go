package engine

import (
	"context"
	"sync"
	"testing"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/repository"
	"github.com/RodrigoCastroMoura/Tracker/internal/core/service"
	"github.com/RodrigoCastroMoura/Tracker/internal/lock"
	"github.com/RodrigoCastroMoura/Tracker/internal/protocol/attrack"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const testIMEI = "865083030086961"

type recordingNotifier struct {
	mu     sync.Mutex
	events []string
}

func (n *recordingNotifier) Notify(_ context.Context, _ string, eventKind, _ string) {
	n.mu.Lock()
	defer n.mu.Unlock()
	n.events = append(n.events, eventKind)
}

func seedVehicle(t *testing.T, repo *repository.MemoryVehicleRepository, mutate func(*model.Vehicle)) {
	t.Helper()
	v := model.NewVehicle(testIMEI)
	v.TrackerModel = string(attrack.ModelGV50)
	if mutate != nil {
		mutate(v)
	}
	require.NoError(t, repo.Upsert(context.Background(), v))
}

func locationEvent() *attrack.Event {
	return &attrack.Event{Kind: attrack.KindLocationReport, IMEI: testIMEI}
}

func ackEvent(result string) *attrack.Event {
	return &attrack.Event{Kind: attrack.KindCommandAck, Type: "GTOUT", IMEI: testIMEI, ResultCode: result}
}

func boolPtr(b bool) *bool { return &b }

func TestBlockFlow(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	seedVehicle(t, repo, func(v *model.Vehicle) { v.BlockCommand = boolPtr(true) })
	n := &recordingNotifier{}
	e := New(repo, nil, n, "gv50", nil)
	ctx := context.Background()

	// Any inbound event re-offers the pending command.
	cmd := e.Evaluate(ctx, locationEvent())
	assert.Equal(t, "AT+GTOUT=gv50,1,,,,,,0,,,,,,,0001$", cmd)

	// Not cleared on send: the next exchange offers it again.
	cmd = e.Evaluate(ctx, &attrack.Event{Kind: attrack.KindHeartbeat, IMEI: testIMEI})
	assert.Equal(t, "AT+GTOUT=gv50,1,,,,,,0,,,,,,,0001$", cmd)

	// Successful ack confirms and clears.
	cmd = e.Evaluate(ctx, ackEvent("0000"))
	assert.Empty(t, cmd)

	v, err := repo.FindByIMEI(ctx, testIMEI)
	require.NoError(t, err)
	assert.True(t, v.Blocked)
	assert.Nil(t, v.BlockCommand)
	assert.Equal(t, []string{"vehicle_blocked"}, n.events)

	// No further command on later traffic.
	assert.Empty(t, e.Evaluate(ctx, locationEvent()))
}

func TestUnblockFlow(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	seedVehicle(t, repo, func(v *model.Vehicle) {
		v.Blocked = true
		v.BlockCommand = boolPtr(false)
	})
	e := New(repo, nil, nil, "gv50", nil)
	ctx := context.Background()

	assert.Equal(t, "AT+GTOUT=gv50,0,,,,,,0,,,,,,,0000$", e.Evaluate(ctx, locationEvent()))

	e.Evaluate(ctx, ackEvent("0000"))
	v, _ := repo.FindByIMEI(ctx, testIMEI)
	assert.False(t, v.Blocked)
	assert.Nil(t, v.BlockCommand)
}

func TestTolerantAckCodes(t *testing.T) {
	for _, code := range []string{"0000", "0001", "0002", "0003"} {
		t.Run(code, func(t *testing.T) {
			repo := repository.NewMemoryVehicleRepository()
			seedVehicle(t, repo, func(v *model.Vehicle) { v.BlockCommand = boolPtr(true) })
			e := New(repo, nil, nil, "gv50", nil)

			e.Evaluate(context.Background(), ackEvent(code))
			v, _ := repo.FindByIMEI(context.Background(), testIMEI)
			assert.True(t, v.Blocked, "code %s must count as success", code)
			assert.Nil(t, v.BlockCommand)
		})
	}
}

func TestNonSuccessAckKeepsDesire(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	seedVehicle(t, repo, func(v *model.Vehicle) { v.BlockCommand = boolPtr(true) })
	e := New(repo, nil, nil, "gv50", nil)
	ctx := context.Background()

	e.Evaluate(ctx, ackEvent("0005"))
	v, _ := repo.FindByIMEI(ctx, testIMEI)
	assert.False(t, v.Blocked)
	require.NotNil(t, v.BlockCommand)

	// Desire survives, so the command is re-offered right after the failed ack.
	assert.NotEmpty(t, e.Evaluate(ctx, locationEvent()))
}

func TestLateAckIsNoOp(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	seedVehicle(t, repo, func(v *model.Vehicle) { v.BlockCommand = boolPtr(true) })
	n := &recordingNotifier{}
	e := New(repo, nil, n, "gv50", nil)
	ctx := context.Background()

	e.Evaluate(ctx, ackEvent("0000"))
	e.Evaluate(ctx, ackEvent("0000")) // duplicate ack after confirmation

	v, _ := repo.FindByIMEI(ctx, testIMEI)
	assert.True(t, v.Blocked)
	assert.Nil(t, v.BlockCommand)
	assert.Len(t, n.events, 1, "second ack must not double-transition")
}

func TestUnknownModelNeverCommanded(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	seedVehicle(t, repo, func(v *model.Vehicle) {
		v.TrackerModel = ""
		v.BlockCommand = boolPtr(true)
	})
	e := New(repo, nil, nil, "gv50", nil)
	ctx := context.Background()

	assert.Empty(t, e.Evaluate(ctx, locationEvent()))

	// The desire is held, not discarded: setting the model later unblocks it.
	v, _ := repo.FindByIMEI(ctx, testIMEI)
	require.NotNil(t, v.BlockCommand)
}

func TestVehiclePasswordOverridesDefault(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	seedVehicle(t, repo, func(v *model.Vehicle) {
		v.TrackerPassword = "secret"
		v.BlockCommand = boolPtr(true)
	})
	e := New(repo, nil, nil, "gv50", nil)

	cmd := e.Evaluate(context.Background(), locationEvent())
	assert.Equal(t, "AT+GTOUT=secret,1,,,,,,0,,,,,,,0001$", cmd)
}

func TestUnsupportedIPChangeCleared(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	seedVehicle(t, repo, func(v *model.Vehicle) { v.IPChangeCommand = true })
	e := New(repo, nil, nil, "gv50", nil)
	ctx := context.Background()

	// The command is suppressed, never sent, and the stored intent is
	// actively cleared.
	assert.Empty(t, e.Evaluate(ctx, locationEvent()))
	v, _ := repo.FindByIMEI(ctx, testIMEI)
	assert.False(t, v.IPChangeCommand)
}

func TestUntrackedIMEIDoesNothing(t *testing.T) {
	repo := repository.NewMemoryVehicleRepository()
	e := New(repo, nil, nil, "gv50", nil)
	assert.Empty(t, e.Evaluate(context.Background(), locationEvent()))
	assert.Empty(t, e.Evaluate(context.Background(), &attrack.Event{Kind: attrack.KindLocationReport}))
}

// slowReadRepo adds database read latency so a telemetry persist can hold a
// stale snapshot of the vehicle while an ack lands on another connection.
type slowReadRepo struct {
	*repository.MemoryVehicleRepository
	delay time.Duration
}

func (r *slowReadRepo) FindByIMEI(ctx context.Context, imei string) (*model.Vehicle, error) {
	time.Sleep(r.delay)
	return r.MemoryVehicleRepository.FindByIMEI(ctx, imei)
}

func TestConcurrentPersistCannotClobberConfirmation(t *testing.T) {
	mem := repository.NewMemoryVehicleRepository()
	seedVehicle(t, mem, func(v *model.Vehicle) { v.BlockCommand = boolPtr(true) })
	repo := &slowReadRepo{MemoryVehicleRepository: mem, delay: 50 * time.Millisecond}

	locks := lock.NewKeyed()
	svc := service.NewTrackingService(repo, repository.NewMemoryTrackEventRepository(), nil, nil, locks)
	e := New(repo, nil, nil, "gv50", locks)
	ctx := context.Background()

	loc := locationEvent()
	loc.Longitude = "-46.778597"
	loc.Latitude = "-23.550520"

	// Two sockets for one IMEI: a location report persisting while the
	// device's ack is reconciled.
	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		assert.NoError(t, svc.ProcessEvent(ctx, loc))
	}()
	go func() {
		defer wg.Done()
		e.Evaluate(ctx, ackEvent("0000"))
	}()
	wg.Wait()

	v, err := mem.FindByIMEI(ctx, testIMEI)
	require.NoError(t, err)
	assert.True(t, v.Blocked, "confirmation must survive a concurrent telemetry persist")
	assert.Nil(t, v.BlockCommand, "cleared desire must not be resurrected")
	assert.Equal(t, "-23.550520", v.LastLatitude, "telemetry still landed")
}
