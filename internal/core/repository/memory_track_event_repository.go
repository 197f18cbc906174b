package repository

import (
	"context"
	"sync"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"
)

// MemoryTrackEventRepository is an in-memory TrackEventRepository for tests.
type MemoryTrackEventRepository struct {
	mutex  sync.RWMutex
	events []*model.TrackEvent
}

func NewMemoryTrackEventRepository() *MemoryTrackEventRepository {
	return &MemoryTrackEventRepository{}
}

func (r *MemoryTrackEventRepository) Create(_ context.Context, event *model.TrackEvent) error {
	r.mutex.Lock()
	defer r.mutex.Unlock()

	copied := *event
	r.events = append(r.events, &copied)
	return nil
}

func (r *MemoryTrackEventRepository) FindLatestByIMEI(_ context.Context, imei string, limit int64) ([]*model.TrackEvent, error) {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	if limit <= 0 {
		limit = 10
	}
	var events []*model.TrackEvent
	for i := len(r.events) - 1; i >= 0 && int64(len(events)) < limit; i-- {
		if r.events[i].IMEI == imei {
			copied := *r.events[i]
			events = append(events, &copied)
		}
	}
	return events, nil
}

// Count reports how many events are stored for an IMEI; test helper.
func (r *MemoryTrackEventRepository) Count(imei string) int {
	r.mutex.RLock()
	defer r.mutex.RUnlock()

	n := 0
	for _, event := range r.events {
		if event.IMEI == imei {
			n++
		}
	}
	return n
}
