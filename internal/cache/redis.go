package cache

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/prescripto/booking/config"
	"github.com/prescripto/booking/internal/domain"
	"github.com/redis/go-redis/v9"
)

type RedisCache struct {
	client     *redis.Client
	doctorsTTL time.Duration
}

func NewRedisCache(cfg config.RedisConfig, doctorsTTL time.Duration) *RedisCache {
	return &RedisCache{
		client:     redis.NewClient(&redis.Options{Addr: cfg.Addr, Password: cfg.Password, DB: cfg.DB}),
		doctorsTTL: doctorsTTL,
	}
}

// NewRedisCacheWithClient wraps an existing client, e.g. one pointed at a test server.
func NewRedisCacheWithClient(client *redis.Client, doctorsTTL time.Duration) *RedisCache {
	return &RedisCache{client: client, doctorsTTL: doctorsTTL}
}

func (c *RedisCache) Ping(ctx context.Context) error {
	return c.client.Ping(ctx).Err()
}

func (c *RedisCache) Close() error {
	return c.client.Close()
}

// GetDoctors returns nil without error on a cache miss.
func (c *RedisCache) GetDoctors(ctx context.Context) ([]domain.Doctor, error) {
	data, err := c.client.Get(ctx, doctorsKey()).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return nil, nil
		}
		return nil, err
	}

	var doctors []domain.Doctor
	if err := json.Unmarshal(data, &doctors); err != nil {
		return nil, err
	}
	return doctors, nil
}

func (c *RedisCache) SetDoctors(ctx context.Context, doctors []domain.Doctor) error {
	payload, err := json.Marshal(doctors)
	if err != nil {
		return err
	}
	return c.client.Set(ctx, doctorsKey(), payload, c.doctorsTTL).Err()
}

func (c *RedisCache) InvalidateDoctors(ctx context.Context) error {
	return c.client.Del(ctx, doctorsKey()).Err()
}

// releaseLockSource deletes the lock only while it still carries the caller's token.
const releaseLockSource = `
if redis.call("GET", KEYS[1]) == ARGV[1] then
	return redis.call("DEL", KEYS[1])
end
return 0
`

var releaseLockScript = redis.NewScript(releaseLockSource)

// AcquireSlotLock returns the token that must be presented to release the lock.
func (c *RedisCache) AcquireSlotLock(ctx context.Context, key domain.SlotKey, ttl time.Duration) (string, bool, error) {
	token := uuid.NewString()
	ok, err := c.client.SetNX(ctx, slotLockKey(key), token, ttl).Result()
	if err != nil || !ok {
		return "", false, err
	}
	return token, true, nil
}

// ReleaseSlotLock is a no-op when the lock expired and was taken by someone else.
func (c *RedisCache) ReleaseSlotLock(ctx context.Context, key domain.SlotKey, token string) error {
	return releaseLockScript.Run(ctx, c.client, []string{slotLockKey(key)}, token).Err()
}

func doctorsKey() string {
	return "cache:doctors"
}

func slotLockKey(key domain.SlotKey) string {
	return "lock:slot:" + key.String()
}
