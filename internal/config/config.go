// Package config loads the per-binary configuration each service in
// cmd/ needs to run: logging, Redis addressing, stream batch sizes,
// snapshot intervals. One struct per binary, nested sections, backed
// by a YAML file plus env-var overrides via viper's AutomaticEnv.
package config

import (
	"fmt"
	"strings"
	"time"

	"github.com/spf13/viper"
)

// LoggingConfig controls the zerolog setup every binary performs at
// startup: level plus whether to use zerolog's console writer. There
// is no file destination or rotation; all four services log to stderr.
type LoggingConfig struct {
	Level   string `mapstructure:"level"`
	Console bool   `mapstructure:"console"`
}

// Check validates the logging section before a service is allowed to boot.
func (l LoggingConfig) Check() error {
	if l.Level == "" {
		return fmt.Errorf("config: logging.level is empty")
	}
	return nil
}

// RedisConfig addresses the single Redis instance backing every
// stream and cache key this repo touches.
type RedisConfig struct {
	Addr     string `mapstructure:"addr"`
	Password string `mapstructure:"password"`
	DB       int    `mapstructure:"db"`
}

// MatchEngineConfig is cmd/matchengine's configuration: logging plus
// engine_input_mq, engine_output_mq, and engine sections.
type MatchEngineConfig struct {
	Logging        LoggingConfig        `mapstructure:"logging"`
	Redis          RedisConfig          `mapstructure:"redis"`
	EngineInputMQ  EngineInputMQConfig  `mapstructure:"engine_input_mq"`
	EngineOutputMQ EngineOutputMQConfig `mapstructure:"engine_output_mq"`
	Engine         EngineConfig         `mapstructure:"engine"`
	SnapshotPath   string               `mapstructure:"snapshot_path"`
	SnapshotEvery  time.Duration        `mapstructure:"snapshot_every"`
}

// EngineInputMQConfig sizes the order_input / event_input consumers
// reading control messages off their respective streams.
type EngineInputMQConfig struct {
	OrderInputConsumerCount int `mapstructure:"order_input_consumer_count"`
	OrderInputBatchSize     int `mapstructure:"order_input_batch_size"`
	EventInputBatchSize     int `mapstructure:"event_input_batch_size"`
}

// EngineOutputMQConfig sizes the output publisher's worker pool
// (internal/publish), sharded by (event_id, market_id).
type EngineOutputMQConfig struct {
	OutputTaskCount int   `mapstructure:"output_task_count"`
	StreamMaxLen    int64 `mapstructure:"stream_max_len"`
}

// EngineConfig holds the engine section. MaxOrderCount is loaded from
// max_order_count but no component reads it, so resting-order capacity
// is not capped.
type EngineConfig struct {
	MaxOrderCount uint64 `mapstructure:"max_order_count"`
}

// Check validates the sections MatchEngineConfig owns directly; nested
// sections validate themselves.
func (c MatchEngineConfig) Check() error {
	if err := c.Logging.Check(); err != nil {
		return err
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	if c.SnapshotPath == "" {
		return fmt.Errorf("config: snapshot_path is required")
	}
	return nil
}

// StoreConfig is cmd/store's configuration.
type StoreConfig struct {
	Logging        LoggingConfig        `mapstructure:"logging"`
	Redis          RedisConfig          `mapstructure:"redis"`
	EngineOutputMQ EngineOutputMQConfig `mapstructure:"engine_output_mq"`
	SnapshotPath   string               `mapstructure:"snapshot_path"`
	SnapshotEvery  time.Duration        `mapstructure:"snapshot_every"`
}

func (c StoreConfig) Check() error {
	if err := c.Logging.Check(); err != nil {
		return err
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	return nil
}

// DepthConfig is cmd/depth's configuration.
type DepthConfig struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Pusher   PusherConfig   `mapstructure:"pusher"`
}

type ConsumerConfig struct {
	BatchSize int `mapstructure:"batch_size"`
}

// PusherConfig controls the batched websocket_stream publish
// interval — pushes on a fixed tick rather than per-message, to cap
// fan-out volume.
type PusherConfig struct {
	FlushInterval time.Duration `mapstructure:"flush_interval"`
	StreamMaxLen  int64         `mapstructure:"stream_max_len"`
}

func (c DepthConfig) Check() error {
	if err := c.Logging.Check(); err != nil {
		return err
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	return nil
}

// UserFeedConfig is cmd/userfeed's configuration: a consumer/publisher
// split matching DepthConfig's shape.
type UserFeedConfig struct {
	Logging  LoggingConfig  `mapstructure:"logging"`
	Redis    RedisConfig    `mapstructure:"redis"`
	Consumer ConsumerConfig `mapstructure:"consumer"`
	Pusher   PusherConfig   `mapstructure:"pusher"`
}

func (c UserFeedConfig) Check() error {
	if err := c.Logging.Check(); err != nil {
		return err
	}
	if c.Redis.Addr == "" {
		return fmt.Errorf("config: redis.addr is required")
	}
	return nil
}

// Load reads a YAML config file at path into dst (a pointer to one of
// the structs above), applying env-var overrides under prefix — e.g.
// Load("deploy/matchengine/prod.yaml", "MATCHENGINE", &cfg) lets
// MATCHENGINE_REDIS_ADDR override redis.addr, matching
// 0xtitan6-polymarket-mm's config.Load env-override pattern.
func Load(path, envPrefix string, dst any) error {
	v := viper.New()
	v.SetConfigFile(path)
	v.SetEnvPrefix(envPrefix)
	v.SetEnvKeyReplacer(strings.NewReplacer(".", "_"))
	v.AutomaticEnv()

	if err := v.ReadInConfig(); err != nil {
		return fmt.Errorf("config: read %s: %w", path, err)
	}
	if err := v.Unmarshal(dst); err != nil {
		return fmt.Errorf("config: unmarshal %s: %w", path, err)
	}
	return nil
}
