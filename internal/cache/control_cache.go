package cache

import (
	"context"
	"time"

	"github.com/RodrigoCastroMoura/Tracker/internal/core/model"
	"github.com/RodrigoCastroMoura/Tracker/internal/logging"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/bson"
	"go.uber.org/zap"
)

// ControlCache keeps recently-read vehicle control state in Redis so that a
// chatty device does not hit MongoDB on every message exchange. When no Redis
// URL is configured the cache stays disabled and every call is a cheap no-op;
// the gateway works identically, just with more database reads.
type ControlCache struct {
	client  *redis.Client
	ttl     time.Duration
	enabled bool
}

const vehicleKeyPrefix = "vehicle:"

func NewControlCache(redisURL string, ttl time.Duration) *ControlCache {
	c := &ControlCache{ttl: ttl}
	if redisURL == "" {
		logging.Info("Redis URL not provided, control-state caching disabled")
		return c
	}

	opt, err := redis.ParseURL(redisURL)
	if err != nil {
		logging.Warn("failed to parse Redis URL, caching disabled", zap.Error(err))
		return c
	}

	client := redis.NewClient(opt)
	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := client.Ping(ctx).Err(); err != nil {
		logging.Warn("failed to connect to Redis, caching disabled", zap.Error(err))
		return c
	}

	c.client = client
	c.enabled = true
	logging.Info("Redis control-state cache initialized")
	return c
}

func (c *ControlCache) Close() {
	if c.client != nil {
		_ = c.client.Close()
	}
}

// GetVehicle returns the cached control state, or (nil, false) on miss,
// disabled cache, or any Redis error. Cache errors never surface to callers.
func (c *ControlCache) GetVehicle(ctx context.Context, imei string) (*model.Vehicle, bool) {
	if !c.enabled {
		return nil, false
	}

	data, err := c.client.Get(ctx, vehicleKeyPrefix+imei).Bytes()
	if err != nil {
		return nil, false
	}
	var vehicle model.Vehicle
	if err := bson.Unmarshal(data, &vehicle); err != nil {
		return nil, false
	}
	return &vehicle, true
}

func (c *ControlCache) SetVehicle(ctx context.Context, vehicle *model.Vehicle) {
	if !c.enabled || vehicle == nil {
		return
	}

	data, err := bson.Marshal(vehicle)
	if err != nil {
		return
	}
	if err := c.client.Set(ctx, vehicleKeyPrefix+vehicle.IMEI, data, c.ttl).Err(); err != nil {
		logging.Debug("cache set failed", zap.String("imei", vehicle.IMEI), zap.Error(err))
	}
}

// InvalidateVehicle drops the cached entry after any control-state write.
func (c *ControlCache) InvalidateVehicle(ctx context.Context, imei string) {
	if !c.enabled {
		return
	}
	if err := c.client.Del(ctx, vehicleKeyPrefix+imei).Err(); err != nil {
		logging.Debug("cache invalidate failed", zap.String("imei", imei), zap.Error(err))
	}
}
