package store

import (
	"context"
	"fmt"
	"time"

	"github.com/bytedance/sonic"
	"github.com/redis/rueidis"
	"github.com/rs/zerolog/log"

	"github.com/bridgeguard/nodeguard/internal/config"
	"github.com/bridgeguard/nodeguard/internal/noderpc"
)

type Redis struct {
	client rueidis.Client
	cfg    *config.RedisEnvConfig
}

type RedisInterface interface {
	Get(ctx context.Context, key string) (string, error)
	Set(ctx context.Context, key, value string, ttl time.Duration) error
	PushCapped(ctx context.Context, key, value string, max int64) error
	LRange(ctx context.Context, key string, start, stop int64) ([]string, error)
	Close()
}

func NewRedis(cfg *config.RedisEnvConfig) (*Redis, error) {
	if cfg == nil {
		return nil, fmt.Errorf("redis config cannot be nil")
	}
	client, err := rueidis.NewClient(rueidis.ClientOption{
		InitAddress: []string{fmt.Sprintf("%s:%d", cfg.RedisHost, cfg.RedisPort)},
		Username:    cfg.RedisUsername,
		Password:    cfg.RedisPassword,
		SelectDB:    cfg.RedisDB,
	})
	if err != nil {
		return nil, err
	}

	return &Redis{
		client: client,
		cfg:    cfg,
	}, nil
}

func (r *Redis) Get(ctx context.Context, key string) (string, error) {
	resp := r.client.Do(ctx, r.client.B().Get().Key(key).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return "", nil
		}
		return "", err
	}
	return resp.ToString()
}

func (r *Redis) Set(ctx context.Context, key, value string, ttl time.Duration) error {
	if ttl > 0 {
		return r.client.Do(ctx, r.client.B().Set().Key(key).Value(value).Ex(ttl).Build()).Error()
	}
	return r.client.Do(ctx, r.client.B().Set().Key(key).Value(value).Build()).Error()
}

// PushCapped prepends value to the list at key and trims it to max entries.
func (r *Redis) PushCapped(ctx context.Context, key, value string, max int64) error {
	cmds := rueidis.Commands{
		r.client.B().Lpush().Key(key).Element(value).Build(),
		r.client.B().Ltrim().Key(key).Start(0).Stop(max - 1).Build(),
	}
	for _, resp := range r.client.DoMulti(ctx, cmds...) {
		if err := resp.Error(); err != nil && !rueidis.IsRedisNil(err) {
			return err
		}
	}
	return nil
}

func (r *Redis) LRange(ctx context.Context, key string, start, stop int64) ([]string, error) {
	resp := r.client.Do(ctx, r.client.B().Lrange().Key(key).Start(start).Stop(stop).Build())
	if err := resp.Error(); err != nil {
		if rueidis.IsRedisNil(err) {
			return []string{}, nil
		}
		return nil, err
	}
	vals, err := resp.AsStrSlice()
	if err != nil {
		if rueidis.IsRedisNil(err) {
			return []string{}, nil
		}
		return nil, err
	}
	return vals, nil
}

func (r *Redis) Close() {
	r.client.Close()
}

// RedisStore keeps snapshots as JSON under a single key plus a capped history list.
type RedisStore struct {
	redis      RedisInterface
	key        string
	historyKey string
	max        int64
}

func NewRedisStore(r RedisInterface, key string, maxHistory int) *RedisStore {
	if maxHistory <= 0 {
		maxHistory = DefaultHistory
	}
	return &RedisStore{
		redis:      r,
		key:        key,
		historyKey: key + ":history",
		max:        int64(maxHistory),
	}
}

// NewRedisStoreFromConfig connects to Redis and returns a store on cfg.SnapshotKey.
func NewRedisStoreFromConfig(cfg *config.RedisEnvConfig) (*RedisStore, error) {
	r, err := NewRedis(cfg)
	if err != nil {
		return nil, fmt.Errorf("connect redis %s:%d: %w", cfg.RedisHost, cfg.RedisPort, err)
	}
	log.Info().
		Str("host", cfg.RedisHost).
		Int("port", cfg.RedisPort).
		Str("key", cfg.SnapshotKey).
		Msg("redis snapshot store connected")
	return NewRedisStore(r, cfg.SnapshotKey, DefaultHistory), nil
}

func (s *RedisStore) SaveSnapshot(ctx context.Context, report noderpc.HealthReport) error {
	b, err := sonic.Marshal(report)
	if err != nil {
		return fmt.Errorf("encode snapshot: %w", err)
	}
	if err := s.redis.Set(ctx, s.key, string(b), 0); err != nil {
		return fmt.Errorf("save snapshot: %w", err)
	}
	if err := s.redis.PushCapped(ctx, s.historyKey, string(b), s.max); err != nil {
		return fmt.Errorf("append snapshot history: %w", err)
	}
	return nil
}

func (s *RedisStore) LatestSnapshot(ctx context.Context) (noderpc.HealthReport, bool, error) {
	var report noderpc.HealthReport
	raw, err := s.redis.Get(ctx, s.key)
	if err != nil {
		return report, false, fmt.Errorf("load snapshot: %w", err)
	}
	if raw == "" {
		return report, false, nil
	}
	if err := sonic.UnmarshalString(raw, &report); err != nil {
		return report, false, fmt.Errorf("decode snapshot: %w", err)
	}
	return report, true, nil
}

func (s *RedisStore) History(ctx context.Context, limit int) ([]noderpc.HealthReport, error) {
	stop := int64(limit) - 1
	if limit <= 0 || int64(limit) > s.max {
		stop = s.max - 1
	}
	vals, err := s.redis.LRange(ctx, s.historyKey, 0, stop)
	if err != nil {
		return nil, fmt.Errorf("load snapshot history: %w", err)
	}

	out := make([]noderpc.HealthReport, 0, len(vals))
	for _, v := range vals {
		var report noderpc.HealthReport
		if err := sonic.UnmarshalString(v, &report); err != nil {
			log.Warn().Err(err).Str("key", s.historyKey).Msg("skipping undecodable snapshot")
			continue
		}
		out = append(out, report)
	}
	return out, nil
}

func (s *RedisStore) Close() {
	s.redis.Close()
}
