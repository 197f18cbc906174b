package repository

import (
	"context"
	"sync"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"
)

// MemoryVehicleRepository is an in-memory VehicleRepository used by tests and
// by local runs without a database.
type MemoryVehicleRepository struct {
	mutex    sync.RWMutex
	vehicles map[string]*model.Vehicle // keyed by IMEI
}

func NewMemoryVehicleRepository() *MemoryVehicleRepository {
	return &MemoryVehicleRepository{
		vehicles: make(map[string]*model.Vehicle),
	}
}

func (r *MemoryVehicleRepository) FindByIMEI(_ context.Context, imei string) (*model.Vehicle, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	vehicle, exists := r.vehicles[imei]
	if !exists {
		return nil, nil
	}
	copied := *vehicle
	return &copied, nil
}

func (r *MemoryVehicleRepository) FindAll(_ context.Context) ([]*model.Vehicle, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	vehicles := make([]*model.Vehicle, 0, len(r.vehicles))
	for _, vehicle := range r.vehicles {
		copied := *vehicle
		vehicles = append(vehicles, &copied)
	}
	return vehicles, nil
}

func (r *MemoryVehicleRepository) Upsert(_ context.Context, vehicle *model.Vehicle) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	copied := *vehicle
	r.vehicles[vehicle.IMEI] = &copied
	return nil
}

func (r *MemoryVehicleRepository) UpdateTelemetry(_ context.Context, imei string, t VehicleTelemetry) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	vehicle, exists := r.vehicles[imei]
	if !exists {
		vehicle = model.NewVehicle(imei)
		r.vehicles[imei] = vehicle
	}
	vehicle.LastRawMessage = t.LastRawMessage
	vehicle.LastUpdate = t.LastUpdate
	if t.LastLongitude != "" {
		vehicle.LastLongitude = t.LastLongitude
		vehicle.LastLatitude = t.LastLatitude
	}
	if t.Ignition != nil {
		vehicle.Ignition = *t.Ignition
	}
	return nil
}

func (r *MemoryVehicleRepository) SetBlockCommand(_ context.Context, imei string, block *bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if vehicle, exists := r.vehicles[imei]; exists {
		vehicle.BlockCommand = block
		vehicle.LastUpdate = time.Now().UTC()
	}
	return nil
}

func (r *MemoryVehicleRepository) SetConfirmedBlocked(_ context.Context, imei string, blocked bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if vehicle, exists := r.vehicles[imei]; exists {
		vehicle.Blocked = blocked
		vehicle.BlockCommand = nil
		vehicle.LastUpdate = time.Now().UTC()
	}
	return nil
}

func (r *MemoryVehicleRepository) SetIPChangeCommand(_ context.Context, imei string, pending bool) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	if vehicle, exists := r.vehicles[imei]; exists {
		vehicle.IPChangeCommand = pending
		vehicle.LastUpdate = time.Now().UTC()
	}
	return nil
}
