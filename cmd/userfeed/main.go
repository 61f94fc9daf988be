// Command userfeed runs L7: per-user event derivation from
// processor_stream, appended one by one onto user_event_stream. Entrypoint shape
// follows this repo's standard cmd/ entrypoint shape
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
	"predictex/internal/streaming"
	"predictex/internal/userfeed"
)

func main() {
	configPath := flag.String("config", "deploy/userfeed/config.yaml", "path to config file")
	flag.Parse()

	var cfg config.UserFeedConfig
	if err := config.Load(*configPath, "USERFEED", &cfg); err != nil {
		log.Fatal().Err(err).Msg("userfeed: failed to load config")
	}
	if err := cfg.Check(); err != nil {
		log.Fatal().Err(err).Msg("userfeed: invalid config")
	}
	logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	client := streaming.NewRedisClient(rdb)

	batchSize := int64(cfg.Consumer.BatchSize)
	if batchSize <= 0 {
		batchSize = 100
	}
	svc := userfeed.NewService(client, batchSize, cfg.Pusher.StreamMaxLen)

	var t tomb.Tomb
	svc.Run(&t)

	go func() {
		<-ctx.Done()
		log.Info().Msg("userfeed: shutdown signal received")
		t.Kill(nil)
	}()

	<-t.Dead()
	if err := t.Err(); err != nil {
		log.Error().Err(err).Msg("userfeed: exited with error")
	}
}
