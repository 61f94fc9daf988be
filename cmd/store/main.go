// Command store runs L5: the authoritative order-state store,
// replaying store_stream since its last snapshot and re-snapshotting
// on a timer. Entrypoint follows this repo's standard cmd/ shape
// (signal.NotifyContext graceful shutdown).
package main

import (
	"context"
	"flag"
	"os/signal"
	"syscall"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/config"
	"predictex/internal/logging"
	"predictex/internal/metrics"
	"predictex/internal/store"
	"predictex/internal/streaming"
)

func main() {
	configPath := flag.String("config", "deploy/store/config.yaml", "path to config file")
	flag.Parse()

	var cfg config.StoreConfig
	if err := config.Load(*configPath, "STORE", &cfg); err != nil {
		log.Fatal().Err(err).Msg("store: failed to load config")
	}
	if err := cfg.Check(); err != nil {
		log.Fatal().Err(err).Msg("store: invalid config")
	}
	logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	client := streaming.NewRedisClient(rdb)
	m := metrics.New()

	storage := store.NewOrderStorage(m)
	batchSize := int64(cfg.EngineOutputMQ.OutputTaskCount)
	if batchSize <= 0 {
		batchSize = 100
	}
	svc := store.NewService(client, storage, cfg.SnapshotPath, batchSize, cfg.SnapshotEvery)

	if err := svc.Boot(ctx); err != nil {
		log.Fatal().Err(err).Msg("store: failed to boot from snapshot")
	}
	log.Info().Int("orders", storage.OrderCount()).Msg("store: booted")

	var t tomb.Tomb
	svc.Run(&t)

	go func() {
		<-ctx.Done()
		log.Info().Msg("store: shutdown signal received")
		t.Kill(nil)
	}()

	<-t.Dead()
	if err := t.Err(); err != nil {
		log.Error().Err(err).Msg("store: exited with error")
	}
}
