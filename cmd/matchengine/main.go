// Command matchengine runs L2+L3+L4+L8: the per-event matching
// engines, the output publisher, and boot-time snapshot recovery.
// Follows this repo's standard cmd/ entrypoint shape
// (signal.NotifyContext-driven graceful shutdown), generalized from a
// single server + engine pair to a tomb-supervised pipeline of
// many per-event engines feeding a sharded output publisher.
package main

import (
	"context"
	"encoding/json"
	"errors"
	"flag"
	"os/signal"
	"strconv"
	"sync"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/config"
	"predictex/internal/logging"
	"predictex/internal/manager"
	"predictex/internal/market"
	"predictex/internal/metrics"
	"predictex/internal/publish"
	"predictex/internal/snapshot"
	"predictex/internal/streaming"
	"predictex/internal/types"
)

const (
	orderInputStream = "order_input_stream"
	eventInputStream = "event_input_stream"
)

// cursorTracker is the order_input_stream read position, shared
// between the consume loop that advances it and the snapshot loop
// that persists it — so a restored snapshot's LastMessageID always
// reflects what has actually been applied.
type cursorTracker struct {
	mu    sync.Mutex
	value string
}

func newCursorTracker(initial string) *cursorTracker {
	if initial == "" {
		initial = "0"
	}
	return &cursorTracker{value: initial}
}

func (c *cursorTracker) Set(id string) {
	c.mu.Lock()
	c.value = id
	c.mu.Unlock()
}

func (c *cursorTracker) Get() string {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.value
}

func main() {
	configPath := flag.String("config", "deploy/matchengine/config.yaml", "path to config file")
	flag.Parse()

	var cfg config.MatchEngineConfig
	if err := config.Load(*configPath, "MATCHENGINE", &cfg); err != nil {
		log.Fatal().Err(err).Msg("matchengine: failed to load config")
	}
	if err := cfg.Check(); err != nil {
		log.Fatal().Err(err).Msg("matchengine: invalid config")
	}
	logging.Setup(cfg.Logging)

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr, Password: cfg.Redis.Password, DB: cfg.Redis.DB})
	defer rdb.Close()
	client := streaming.NewRedisClient(rdb)
	m := metrics.New()

	pub := publish.New(client, m, cfg.EngineOutputMQ.OutputTaskCount, cfg.EngineOutputMQ.StreamMaxLen)

	mgr := manager.New(
		func(eventID int64, marketID int16, result market.SubmitResult) { onSubmit(pub, m, eventID, marketID, result) },
		func(eventID int64, marketID int16, result market.CancelResultMsg) { onCancel(pub, m, eventID, marketID, result) },
		func(eventID int64, change types.OrderChangeEvent) {
			if err := pub.PublishChange(eventID, change.MarketID, change); err != nil {
				log.Error().Err(err).Msg("matchengine: failed to publish lifecycle change")
			}
		},
	)

	snap, err := snapshot.Load(cfg.SnapshotPath)
	if err != nil {
		log.Fatal().Err(err).Msg("matchengine: failed to load snapshot")
	}
	cursor, err := mgr.Restore(snap)
	if err != nil {
		log.Fatal().Err(err).Msg("matchengine: failed to restore snapshot state")
	}
	log.Info().Int("events", len(snap.Events)).Str("cursor", cursor).Msg("matchengine: restored snapshot")

	var t tomb.Tomb
	pub.Start(&t)

	orderBatch := int64(cfg.EngineInputMQ.OrderInputBatchSize)
	if orderBatch <= 0 {
		orderBatch = 100
	}
	eventBatch := int64(cfg.EngineInputMQ.EventInputBatchSize)
	if eventBatch <= 0 {
		eventBatch = 20
	}

	cursorT := newCursorTracker(cursor)
	t.Go(func() error { return consumeOrderInput(&t, client, mgr, cursorT, orderBatch) })
	t.Go(func() error { return consumeEventInput(&t, client, mgr, eventBatch) })
	if cfg.SnapshotEvery > 0 {
		t.Go(func() error { return snapshotLoop(&t, mgr, cursorT, cfg.SnapshotPath, cfg.SnapshotEvery) })
	}

	go func() {
		<-ctx.Done()
		log.Info().Msg("matchengine: shutdown signal received, draining")
		mgr.StopReceiving()
		mgr.RemoveAll()
		t.Kill(nil)
	}()

	<-t.Dead()
	if err := t.Err(); err != nil && !errors.Is(err, tomb.ErrStillAlive) {
		log.Error().Err(err).Msg("matchengine: exited with error")
	}
}

func onSubmit(pub *publish.Publisher, m *metrics.Collector, eventID int64, marketID int16, result market.SubmitResult) {
	for _, change := range result.Changes {
		if err := pub.PublishChange(eventID, marketID, change); err != nil {
			log.Error().Err(err).Msg("matchengine: failed to publish store change")
		}
	}

	var msg *types.ProcessorMessage
	switch {
	case result.Rejected != nil:
		msg = &types.ProcessorMessage{Kind: types.OrderRejectedKind, Rejected: result.Rejected}
		m.OrdersRejected.WithLabelValues(fmtID(eventID), fmtID16(marketID), result.Rejected.Reason).Inc()
	case result.Traded != nil:
		msg = &types.ProcessorMessage{Kind: types.OrderTradedKind, Traded: result.Traded}
	case result.Resting != nil:
		msg = &types.ProcessorMessage{Kind: types.OrderSubmittedKind, Submitted: result.Resting}
	}
	if msg != nil {
		if err := pub.PublishProcessor(eventID, marketID, *msg); err != nil {
			log.Error().Err(err).Msg("matchengine: failed to publish processor message")
		}
	}
	if result.Rejected == nil {
		side := ""
		switch {
		case result.Traded != nil:
			side = result.Traded.TakerSide.String()
		case result.Resting != nil:
			side = result.Resting.Side.String()
		}
		m.OrdersProcessed.WithLabelValues(fmtID(eventID), fmtID16(marketID), side).Inc()
	}
	if result.Depth != nil {
		if err := pub.PublishDepth(*result.Depth); err != nil {
			log.Error().Err(err).Msg("matchengine: failed to publish depth snapshot")
		}
	}
	if result.UpdateID > 0 {
		m.MarketUpdateID.WithLabelValues(fmtID(eventID), fmtID16(marketID)).Set(float64(result.UpdateID))
	}
}

func onCancel(pub *publish.Publisher, m *metrics.Collector, eventID int64, marketID int16, result market.CancelResultMsg) {
	if !result.Found {
		return
	}
	for _, change := range result.Changes {
		if err := pub.PublishChange(eventID, marketID, change); err != nil {
			log.Error().Err(err).Msg("matchengine: failed to publish store change")
		}
	}
	if result.Cancelled != nil {
		msg := types.ProcessorMessage{Kind: types.OrderCancelledMsg, Cancelled: result.Cancelled}
		if err := pub.PublishProcessor(eventID, marketID, msg); err != nil {
			log.Error().Err(err).Msg("matchengine: failed to publish processor message")
		}
	}
	m.MarketUpdateID.WithLabelValues(fmtID(eventID), fmtID16(marketID)).Set(float64(result.UpdateID))
}

// consumeOrderInput tails order_input_stream from cursor (the
// snapshot's last-applied id, or "0" on a fresh boot) and dispatches
// each SubmitOrder/CancelOrder to the manager. Input replay after a
// restore is safe because both operations are idempotent only at the
// order_id granularity that book-level Cancel/InsertResting already
// enforce; a duplicate SubmitOrder after restore is not de-duplicated
// here and would re-submit, so callers must not replay an input stream
// whose entries the engine has already durably rested into its own
// snapshot — cursor tracking exists precisely to prevent that.
func consumeOrderInput(t *tomb.Tomb, client streaming.Client, mgr *manager.Manager, cursor *cursorTracker, batchSize int64) error {
	ctx := context.Background()
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msgs, err := client.Read(ctx, orderInputStream, cursor.Get(), batchSize, 5*time.Second)
		if errors.Is(err, streaming.ErrTimeout) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("matchengine: error reading order_input_stream, backing off")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			cursor.Set(msg.ID)
			var input types.OrderInputMessage
			if err := json.Unmarshal([]byte(msg.Values["payload"]), &input); err != nil {
				log.Error().Err(err).Str("msg_id", msg.ID).Msg("matchengine: failed to decode order input")
				continue
			}
			dispatchOrderInput(mgr, input)
		}
	}
}

func dispatchOrderInput(mgr *manager.Manager, input types.OrderInputMessage) {
	switch input.Kind {
	case types.SubmitOrderInputKind:
		price, err := types.ParsePrice(input.Price)
		if err != nil && input.OrderType == types.LimitOrder {
			log.Error().Err(err).Msg("matchengine: bad price in order input")
			return
		}
		qty, err := types.ParseQuantity(input.Quantity)
		if err != nil {
			log.Error().Err(err).Msg("matchengine: bad quantity in order input")
			return
		}
		submitted := input.Submitted
		if submitted.IsZero() {
			submitted = time.Now()
		}
		mgr.SubmitOrder(input.EventID, &market.SubmitOrderMessage{
			MarketID:    input.MarketID,
			TokenID:     input.TokenID,
			Side:        input.Side,
			OrderType:   input.OrderType,
			Price:       price,
			Quantity:    qty,
			UserID:      input.UserID,
			PrivyID:     input.PrivyID,
			OutcomeName: input.OutcomeName,
			Submitted:   submitted,
		})
	case types.CancelOrderInputKind:
		mgr.CancelOrder(input.EventID, &market.CancelOrderMessage{OrderID: input.OrderID, UserID: input.UserID})
	}
}

// consumeEventInput tails event_input_stream from "0" — event
// lifecycle messages are low-volume and the manager's EventCreate is
// itself idempotent-by-ignore on a duplicate event_id, so replaying
// from the beginning on every boot is harmless and simpler than
// tracking a second cursor.
func consumeEventInput(t *tomb.Tomb, client streaming.Client, mgr *manager.Manager, batchSize int64) error {
	ctx := context.Background()
	cursor := "0"
	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msgs, err := client.Read(ctx, eventInputStream, cursor, batchSize, 5*time.Second)
		if errors.Is(err, streaming.ErrTimeout) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("matchengine: error reading event_input_stream, backing off")
			time.Sleep(time.Second)
			continue
		}

		for _, msg := range msgs {
			cursor = msg.ID
			var input types.EventInputMessage
			if err := json.Unmarshal([]byte(msg.Values["payload"]), &input); err != nil {
				log.Error().Err(err).Str("msg_id", msg.ID).Msg("matchengine: failed to decode event input")
				continue
			}
			switch input.Kind {
			case types.EventCreateInputKind:
				if input.Spec != nil {
					mgr.EventCreate(*input.Spec)
				}
			case types.EventCloseInputKind:
				mgr.EventClose(input.EventID)
			}
		}
	}
}

// snapshotLoop periodically persists a full Manager.Snapshot to disk,
// embedding the order_input_stream cursor so the next boot resumes
// input replay from exactly where this process left off — mirrors
// internal/store's own snapshotLoop, one layer further upstream.
func snapshotLoop(t *tomb.Tomb, mgr *manager.Manager, cursor *cursorTracker, path string, every time.Duration) error {
	ticker := time.NewTicker(every)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			snap := mgr.Snapshot(cursor.Get())
			if err := snapshot.WriteAtomic(path, snap); err != nil {
				log.Error().Err(err).Msg("matchengine: failed to write snapshot")
			}
		}
	}
}

func fmtID(v int64) string   { return strconv.FormatInt(v, 10) }
func fmtID16(v int16) string { return strconv.Itoa(int(v)) }
