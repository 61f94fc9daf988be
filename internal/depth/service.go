package depth

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/publish"
	"predictex/internal/streaming"
	"predictex/internal/types"
)

// Cache hash keys and field format.
const (
	DepthCacheKey = "depth"
	PriceCacheKey = "price"
)

func marketField(eventID int64, marketID int16) string {
	return fmt.Sprintf("%d::%d", eventID, marketID)
}

// Service tails depth_stream (single replica, last-write-wins, no
// consumer group — same single-replica-per-stream shape as the match
// engine's own input consumers) and periodically batch-pushes every
// stored snapshot downstream.
type Service struct {
	client        streaming.Client
	cache         streaming.Cache
	storage       *Storage
	batchSize     int64
	flushInterval time.Duration
	streamMaxLen  int64
}

// NewService builds a depth Service.
func NewService(client streaming.Client, cache streaming.Cache, storage *Storage, batchSize int64, flushInterval time.Duration, streamMaxLen int64) *Service {
	return &Service{
		client:        client,
		cache:         cache,
		storage:       storage,
		batchSize:     batchSize,
		flushInterval: flushInterval,
		streamMaxLen:  streamMaxLen,
	}
}

// Run starts the tail consumer and the periodic pusher under t.
func (s *Service) Run(t *tomb.Tomb) {
	t.Go(func() error { return s.consumeLoop(t) })
	t.Go(func() error { return s.pushLoop(t) })
}

// consumeLoop tails depth_stream from "0", deleting each entry once
// applied — depth_stream carries no history worth replaying, only the
// latest snapshot per market matters.
func (s *Service) consumeLoop(t *tomb.Tomb) error {
	ctx := context.Background()
	lastID := "0"

	for {
		select {
		case <-t.Dying():
			return nil
		default:
		}

		msgs, err := s.client.Read(ctx, publish.DepthStream, lastID, s.batchSize, 0)
		if errors.Is(err, streaming.ErrTimeout) {
			continue
		}
		if err != nil {
			log.Error().Err(err).Msg("depth: error reading depth_stream, backing off")
			time.Sleep(time.Second)
			continue
		}

		ids := make([]string, 0, len(msgs))
		for _, m := range msgs {
			lastID = m.ID
			ids = append(ids, m.ID)
			var d types.DepthSnapshot
			if err := json.Unmarshal([]byte(m.Values["payload"]), &d); err != nil {
				log.Error().Err(err).Str("msg_id", m.ID).Msg("depth: failed to decode snapshot")
				continue
			}
			s.storage.Update(d)
		}
		if len(ids) > 0 {
			if err := s.client.Delete(ctx, publish.DepthStream, ids...); err != nil {
				log.Error().Err(err).Msg("depth: failed to delete consumed entries")
			}
		}
	}
}

func (s *Service) pushLoop(t *tomb.Tomb) error {
	ticker := time.NewTicker(s.flushInterval)
	defer ticker.Stop()
	for {
		select {
		case <-t.Dying():
			return nil
		case <-ticker.C:
			s.pushOnce(context.Background())
		}
	}
}

// pushOnce walks every current snapshot in batchSize-sized chunks,
// appending each snapshot to websocket_stream with its own XADD and
// refreshing the depth/price cache hashes; nothing is pipelined.
func (s *Service) pushOnce(ctx context.Context) {
	snapshots := s.storage.AllDepths()
	if len(snapshots) == 0 {
		return
	}

	chunkSize := int(s.batchSize)
	if chunkSize <= 0 {
		chunkSize = len(snapshots)
	}
	for start := 0; start < len(snapshots); start += chunkSize {
		end := start + chunkSize
		if end > len(snapshots) {
			end = len(snapshots)
		}
		s.pushChunk(ctx, snapshots[start:end])
	}
}

func (s *Service) pushChunk(ctx context.Context, chunk []types.DepthSnapshot) {
	for _, d := range chunk {
		data, err := json.Marshal(d)
		if err != nil {
			log.Error().Err(err).Msg("depth: failed to marshal snapshot for push")
			continue
		}
		if _, err := s.client.Append(ctx, publish.WebsocketStream, map[string]string{"payload": string(data)}, s.streamMaxLen); err != nil {
			log.Error().Err(err).Msg("depth: failed to append to websocket_stream")
		}

		field := marketField(d.EventID, d.MarketID)
		if err := s.cache.HSet(ctx, DepthCacheKey, field, string(data)); err != nil {
			log.Error().Err(err).Msg("depth: failed to HSET depth cache")
		}
		if err := s.cache.HSet(ctx, PriceCacheKey, field, string(priceInfoJSON(d))); err != nil {
			log.Error().Err(err).Msg("depth: failed to HSET price cache")
		}
	}
}

func priceInfoJSON(d types.DepthSnapshot) []byte {
	prices := make(map[string]types.CacheTokenPriceInfo, len(d.Depths))
	for tokenID, td := range d.Depths {
		info := types.CacheTokenPriceInfo{LatestTradePrice: td.LatestTradePrice}
		if len(td.Bids) > 0 {
			info.BestBid = td.Bids[0].Price
		}
		if len(td.Asks) > 0 {
			info.BestAsk = td.Asks[0].Price
		}
		prices[tokenID] = info
	}
	out, _ := json.Marshal(types.CacheMarketPriceInfo{UpdateID: d.UpdateID, Timestamp: d.Timestamp, Prices: prices})
	return out
}
