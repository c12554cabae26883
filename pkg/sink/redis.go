package sink

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/redis/go-redis/v9"

	"github.com/vnykmshr/rateguard/pkg/batch"
	gfcontext "github.com/vnykmshr/rateguard/pkg/common/context"
	gferrors "github.com/vnykmshr/rateguard/pkg/common/errors"
	"github.com/vnykmshr/rateguard/pkg/metrics"
)

// DefaultKeyPrefix prefixes report hashes.
const DefaultKeyPrefix = "rateguard:results"

// DefaultTTL is how long stored reports live.
const DefaultTTL = 24 * time.Hour

// RedisConfig holds configuration for RedisSink.
type RedisConfig struct {
	// Redis client. Required.
	Redis redis.UniversalClient

	// KeyPrefix for report hashes (default: DefaultKeyPrefix).
	KeyPrefix string

	// TTL applied to each report hash (default: DefaultTTL).
	TTL time.Duration

	// Timeout for a single write (0 = none).
	Timeout time.Duration

	Metrics *metrics.Registry
}

// RedisSink stores each report as a hash at <prefix>:<runID>, one field per
// question ID holding the JSON-encoded Entry.
type RedisSink struct {
	config RedisConfig
}

// NewRedisSink validates config and applies defaults.
func NewRedisSink(config RedisConfig) (*RedisSink, error) {
	if config.Redis == nil {
		return nil, gferrors.NewValidationError("sink", "redis", nil, "client cannot be nil")
	}
	if config.KeyPrefix == "" {
		config.KeyPrefix = DefaultKeyPrefix
	}
	if config.TTL <= 0 {
		config.TTL = DefaultTTL
	}
	return &RedisSink{config: config}, nil
}

// Key returns the hash key for a run.
func (s *RedisSink) Key(runID string) string {
	return s.config.KeyPrefix + ":" + runID
}

// Write stores the report in a single pipeline.
func (s *RedisSink) Write(ctx context.Context, report batch.Report) error {
	err := s.write(ctx, report)
	observe(s.config.Metrics, "redis", len(report.Results), err)
	return err
}

func (s *RedisSink) write(ctx context.Context, report batch.Report) error {
	if len(report.Results) == 0 {
		return nil
	}
	ctx, cancel := gfcontext.WithOptionalTimeout(ctx, s.config.Timeout)
	defer cancel()

	fields := make(map[string]interface{}, len(report.Results))
	for _, id := range ids(report) {
		data, err := json.Marshal(NewEntry(report.Results[id]))
		if err != nil {
			return fmt.Errorf("redis sink: encode %s: %w", id, err)
		}
		fields[id] = string(data)
	}

	key := s.Key(report.RunID)
	_, err := s.config.Redis.TxPipelined(ctx, func(pipe redis.Pipeliner) error {
		pipe.HSet(ctx, key, fields)
		pipe.Expire(ctx, key, s.config.TTL)
		return nil
	})
	if err != nil {
		return fmt.Errorf("redis sink: %w", err)
	}
	return nil
}

// Read loads a stored report's entries.
func (s *RedisSink) Read(ctx context.Context, runID string) (map[string]Entry, error) {
	raw, err := s.config.Redis.HGetAll(ctx, s.Key(runID)).Result()
	if err != nil {
		return nil, fmt.Errorf("redis sink: %w", err)
	}

	entries := make(map[string]Entry, len(raw))
	for id, data := range raw {
		var e Entry
		if err := json.Unmarshal([]byte(data), &e); err != nil {
			return nil, fmt.Errorf("redis sink: decode %s: %w", id, err)
		}
		entries[id] = e
	}
	return entries, nil
}
