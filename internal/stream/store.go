package stream

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"time"

	"github.com/go-redis/redis/v8"
)

// Store persists prediction results
type Store interface {
	Save(ctx context.Context, result *Result) error
}

// RedisConfig holds the Redis connection and retention settings
type RedisConfig struct {
	Addr          string        `mapstructure:"addr"`
	Password      string        `mapstructure:"password"`
	DB            int           `mapstructure:"db"`
	KeyPrefix     string        `mapstructure:"key_prefix"`
	LatestTTL     time.Duration `mapstructure:"latest_ttl"`
	HistoryMaxLen int64         `mapstructure:"history_max_len"`
}

// RedisStore keeps the latest result per device and an append-only history stream
type RedisStore struct {
	client        *redis.Client
	keyPrefix     string
	latestTTL     time.Duration
	historyMaxLen int64
}

// NewRedisStore creates a new store on an existing client
func NewRedisStore(client *redis.Client, cfg RedisConfig) *RedisStore {
	prefix := cfg.KeyPrefix
	if prefix == "" {
		prefix = "activity"
	}
	return &RedisStore{
		client:        client,
		keyPrefix:     prefix,
		latestTTL:     cfg.LatestTTL,
		historyMaxLen: cfg.HistoryMaxLen,
	}
}

// NewRedisClient creates a client and checks the connection
func NewRedisClient(ctx context.Context, cfg RedisConfig) (*redis.Client, error) {
	client := redis.NewClient(&redis.Options{
		Addr:     cfg.Addr,
		Password: cfg.Password,
		DB:       cfg.DB,
	})
	if err := client.Ping(ctx).Err(); err != nil {
		client.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.Addr, err)
	}
	return client, nil
}

// LatestKey returns the key holding the most recent result of a device
func (s *RedisStore) LatestKey(deviceID string) string {
	return s.keyPrefix + ":" + deviceID + ":latest"
}

// HistoryKey returns the stream key holding every result of a device
func (s *RedisStore) HistoryKey(deviceID string) string {
	return s.keyPrefix + ":" + deviceID + ":history"
}

// Save writes the latest result with its TTL and appends it to the history stream
func (s *RedisStore) Save(ctx context.Context, result *Result) error {
	payload, err := json.Marshal(result)
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}

	pipe := s.client.TxPipeline()
	pipe.Set(ctx, s.LatestKey(result.DeviceID), payload, s.latestTTL)
	args := &redis.XAddArgs{
		Stream: s.HistoryKey(result.DeviceID),
		Values: map[string]any{
			"window_end":      strconv.FormatInt(result.WindowEnd, 10),
			"predicted_index": strconv.Itoa(result.Index),
			"predicted_class": result.Class,
			"data":            string(payload),
		},
	}
	if s.historyMaxLen > 0 {
		args.MaxLen = s.historyMaxLen
	}
	pipe.XAdd(ctx, args)

	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("failed to store result for device %s: %w", result.DeviceID, err)
	}
	return nil
}

// Latest reads the most recent result of a device, or nil when none is cached
func (s *RedisStore) Latest(ctx context.Context, deviceID string) (*Result, error) {
	data, err := s.client.Get(ctx, s.LatestKey(deviceID)).Bytes()
	if err == redis.Nil {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read latest result: %w", err)
	}

	var result Result
	if err := json.Unmarshal(data, &result); err != nil {
		return nil, fmt.Errorf("failed to decode latest result: %w", err)
	}
	return &result, nil
}
