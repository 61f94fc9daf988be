// Command depth runs L6: depth aggregation from depth_stream plus the
// periodic batch push to websocket_stream and the depth/price cache
// hashes. Entrypoint follows this repo's standard shape across
// cmd/ binaries (signal.NotifyContext graceful shutdown).
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/config"
	"predictex/internal/depth"
	"predictex/internal/logging"
	"predictex/internal/streaming"
)

func main() {
	configPath := flag.String("config", "deploy/depth/config.yaml", "path to config file")
	flag.Parse()

	var cfg config.DepthConfig
	if err := config.Load(*configPath, "DEPTH", &cfg); err != nil {
		log.Fatal().Err(err).Msg("depth: failed to load config")
	}
	if err := cfg.Check(); err != nil {
		log.Fatal().Err(err).Msg("depth: invalid config")
	}
	logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	client := streaming.NewRedisClient(rdb)
	cache := streaming.NewRedisCache(rdb)

	batchSize := int64(cfg.Consumer.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}
	flushInterval := cfg.Pusher.FlushInterval
	if flushInterval <= 0 {
		flushInterval = 5 * time.Second
	}

	storage := depth.NewStorage()
	svc := depth.NewService(client, cache, storage, batchSize, flushInterval, cfg.Pusher.StreamMaxLen)

	var t tomb.Tomb
	svc.Run(&t)

	go func() {
		<-ctx.Done()
		log.Info().Msg("depth: shutdown signal received")
		t.Kill(nil)
	}()

	<-t.Dead()
	if err := t.Err(); err != nil {
		log.Error().Err(err).Msg("depth: exited with error")
	}
}
