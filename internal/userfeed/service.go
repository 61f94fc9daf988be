package userfeed

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

// Service consumes processor_stream (up to batchSize entries per read),
// derives per-user events, and appends each one to user_event_stream
// with its own XADD and approximate MAXLEN trimming; appends are not
// batched or pipelined.
type Service struct {
	client       streaming.Client
	seq          *Sequencer
	batchSize    int64
	streamMaxLen int64
}

// NewService builds a userfeed Service.
func NewService(client streaming.Client, batchSize, streamMaxLen int64) *Service {
	return &Service{client: client, seq: NewSequencer(), batchSize: batchSize, streamMaxLen: streamMaxLen}
}

// Run starts the consume loop under t.
func (s *Service) Run(t *tomb.Tomb) {
	t.Go(func() error { return s.consumeLoop(t) })
}

func (s *Service) consumeLoop(t *tomb.Tomb) error {
	ctx := context.Background()
	lastID := "0"

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msgs, err := s.client.Read(ctx, publish.ProcessorStream, lastID, s.batchSize, 5*time.Second)
		if errors.Is(err, streaming.ErrTimeout) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("userfeed: error reading processor_stream, backing off")
			time.Sleep(time.Second)
			continue
		}

		for _, m := range msgs {
			lastID = m.ID
			var pm types.ProcessorMessage
			if err := json.Unmarshal([]byte(m.Values["payload"]), &pm); err != nil {
				log.Error().Err(err).Str("msg_id", m.ID).Msg("userfeed: failed to decode processor message")
				continue
			}
			for _, event := range Derive(pm) {
				event.UpdateID = s.seq.Next(event.TrackingKey)
				s.publish(ctx, event)
			}
		}
	}
}

func (s *Service) publish(ctx context.Context, event types.UserEvent) {
	data, err := json.Marshal(event)
	if err != nil {
		log.Error().Err(err).Msg("userfeed: failed to marshal user event")
		return
	}
	if _, err := s.client.Append(ctx, publish.UserEventStream, map[string]string{"payload": string(data)}, s.streamMaxLen); err != nil {
		log.Error().Err(err).Msg("userfeed: failed to append to user_event_stream")
	}
}
