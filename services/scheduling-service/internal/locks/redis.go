package locks

import (
	"context"
	"errors"
	"time"

	"github.com/google/uuid"
	"github.com/redis/go-redis/v9"
)

var releaseScript = redis.NewScript(`
if redis.call("GET", KEYS[1]) == ARGV[1] then
  return redis.call("DEL", KEYS[1])
end
return 0
`)

type redisClient interface {
	redis.Scripter
	SetNX(ctx context.Context, key string, value interface{}, expiration time.Duration) *redis.BoolCmd
}

// Redis is a lease lock shared by every replica. The TTL bounds how long a
// crashed holder can block a technician's calendar.
type Redis struct {
	rdb    redisClient
	prefix string
	ttl    time.Duration
	wait   time.Duration
	retry  time.Duration
}

type RedisConfig struct {
	Prefix string
	TTL    time.Duration
	Wait   time.Duration
}

func NewRedis(rdb redisClient, cfg RedisConfig) *Redis {
	if cfg.Prefix == "" {
		cfg.Prefix = "supportsched:lock"
	}
	if cfg.TTL <= 0 {
		cfg.TTL = 15 * time.Second
	}
	if cfg.Wait <= 0 {
		cfg.Wait = 5 * time.Second
	}
	return &Redis{rdb: rdb, prefix: cfg.Prefix, ttl: cfg.TTL, wait: cfg.Wait, retry: 50 * time.Millisecond}
}

func (r *Redis) Acquire(ctx context.Context, key string) (Release, error) {
	full := r.prefix + ":" + key
	token := uuid.NewString()
	deadline := time.Now().Add(r.wait)

	for {
		ok, err := r.rdb.SetNX(ctx, full, token, r.ttl).Result()
		if err != nil {
			return nil, err
		}
		if ok {
			return func(ctx context.Context) error {
				err := releaseScript.Run(ctx, r.rdb, []string{full}, token).Err()
				if errors.Is(err, redis.Nil) {
					return nil
				}
				return err
			}, nil
		}
		if time.Now().After(deadline) {
			return nil, ErrNotAcquired
		}
		select {
		case <-ctx.Done():
			return nil, ErrNotAcquired
		case <-time.After(r.retry):
		}
	}
}

func ReadyCheck(rdb *redis.Client) func(context.Context) error {
	return func(ctx context.Context) error {
		if rdb == nil {
			return errors.New("redis not configured")
		}
		return rdb.Ping(ctx).Err()
	}
}
