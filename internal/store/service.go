package store

import (
	"context"
	"encoding/json"
	"errors"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/publish"
	"predictex/internal/streaming"
	"predictex/internal/types"
)

// Service wires an OrderStorage to store_stream: the four-step boot
// sequence is load snapshot, trim stream, replay, periodic
// re-snapshot.
type Service struct {
	client        streaming.Client
	storage       *OrderStorage
	snapshotPath  string
	batchSize     int64
	snapshotEvery time.Duration
}

// NewService builds a Service. batchSize bounds how many stream
// entries Run's consume loop reads per XREAD call — store_stream is
// read with a tracked cursor, not a consumer group, matching the
// match engine's single-replica-per-stream shape.
func NewService(client streaming.Client, storage *OrderStorage, snapshotPath string, batchSize int64, snapshotEvery time.Duration) *Service {
	return &Service{
		client:        client,
		storage:       storage,
		snapshotPath:  snapshotPath,
		batchSize:     batchSize,
		snapshotEvery: snapshotEvery,
	}
}

// Boot loads the snapshot and trims store_stream up to (and
// including) the snapshot's cursor, so replay begins strictly after it.
func (s *Service) Boot(ctx context.Context) error {
	lastID, err := s.storage.LoadSnapshot(s.snapshotPath)
	if err != nil {
		return err
	}
	if lastID == "" || lastID == "0" {
		return nil
	}
	if err := s.client.TrimMinID(ctx, publish.StoreStream, lastID); err != nil {
		log.Error().Err(err).Msg("store: failed to trim store_stream on boot")
	}
	if err := s.client.Delete(ctx, publish.StoreStream, lastID); err != nil {
		log.Error().Err(err).Msg("store: failed to delete snapshot boundary id")
	}
	return nil
}

// Run starts the replay/consume loop and the periodic snapshot ticker
// under t as tomb.Tomb-supervised workers.
func (s *Service) Run(t *tomb.Tomb) {
	t.Go(func() error { return s.consumeLoop(t) })
	if s.snapshotEvery > 0 {
		t.Go(func() error { return s.snapshotLoop(t) })
	}
}

func (s *Service) consumeLoop(t *tomb.Tomb) error {
	ctx := context.Background()
	lastID := s.storage.LastMessageID()
	if lastID == "" {
		lastID = "0"
	}

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msgs, err := s.client.Read(ctx, publish.StoreStream, lastID, s.batchSize, 5*time.Second)
		if errors.Is(err, streaming.ErrTimeout) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("store: error reading store_stream, backing off")
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			event, err := decodeChange(m)
			if err != nil {
				log.Error().Err(err).Str("msg_id", m.ID).Msg("store: failed to decode order change event")
				continue
			}
			s.storage.Apply(event, m.ID)
		}
	}
}

func (s *Service) snapshotLoop(t *tomb.Tomb) error {
	ticker := time.NewTicker(s.snapshotEvery)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			if err := s.storage.SaveSnapshot(s.snapshotPath); err != nil {
				log.Error().Err(err).Msg("store: periodic snapshot write failed")
			}
		}
	}
}

func decodeChange(m streaming.Message) (types.OrderChangeEvent, error) {
	var event types.OrderChangeEvent
	err := json.Unmarshal([]byte(m.Values["payload"]), &event)
	return event, err
}
