// Package publish is the output publisher (L4): it converts matcher
// events into stream records and appends them to the right Redis
// Stream, fanning out across a fixed worker pool while preserving
// per-(event_id, market_id) ordering by sharding on that key.
// Uses a tomb-supervised fixed worker count draining task channels,
// generalized from raw connection tasks to publishTask values
// carrying a stream name and a JSON payload.
package publish

import (
	"context"
	"encoding/json"
	"fmt"
	"hash/fnv"
	"time"

	"github.com/rs/zerolog/log"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/metrics"
	"predictex/internal/streaming"
	"predictex/internal/types"
)

// Stream names.
const (
	StoreStream     = "store_stream"
	ProcessorStream = "processor_stream"
	DepthStream     = "depth_stream"
	UserEventStream = "user_event_stream"
	WebsocketStream = "websocket_stream"
)

type publishTask struct {
	stream string
	values map[string]string
}

// Publisher shards publishTasks across a fixed set of worker
// goroutines keyed by (event_id, market_id), so two tasks for the
// same market are always appended in submission order while different
// markets proceed concurrently — the one place in this repo multiple
// goroutines touch a single engine's output path at once.
type Publisher struct {
	client  streaming.Client
	metrics *metrics.Collector
	maxLen  int64
	shards  []chan publishTask
	t       *tomb.Tomb
}

// New builds a Publisher with shardCount workers, each draining its
// own buffered task channel. maxLen is the approximate MAXLEN applied
// to every XADD, uniformly across streams.
func New(client streaming.Client, m *metrics.Collector, shardCount int, maxLen int64) *Publisher {
	if shardCount < 1 {
		shardCount = 1
	}
	shards := make([]chan publishTask, shardCount)
	for i := range shards {
		shards[i] = make(chan publishTask, 256)
	}
	return &Publisher{client: client, metrics: m, maxLen: maxLen, shards: shards}
}

// Start launches one tomb-supervised worker per shard. t is shared
// with the caller's wider supervision tree (the match engine process).
func (p *Publisher) Start(t *tomb.Tomb) {
	p.t = t
	for i, ch := range p.shards {
		shardCh := ch
		shardIdx := i
		t.Go(func() error {
			return p.runShard(t, shardIdx, shardCh)
		})
	}
}

func (p *Publisher) runShard(t *tomb.Tomb, idx int, ch chan publishTask) error {
	log.Info().Int("shard", idx).Msg("publish shard starting")
	ctx := context.Background()
	for {
		select {
		case <-t.Dying():
			return nil
		case task := <-ch:
			p.append(ctx, task)
		}
	}
}

// append performs the XADD, retrying once after a short backoff on
// transient error before logging and dropping — a best-effort output
// publisher that never recovers its own book state has nothing to
// replay, so an exhausted retry is logged and swallowed rather than
// blocking the shard forever.
func (p *Publisher) append(ctx context.Context, task publishTask) {
	start := time.Now()
	_, err := p.client.Append(ctx, task.stream, task.values, p.maxLen)
	if err != nil {
		time.Sleep(50 * time.Millisecond)
		_, err = p.client.Append(ctx, task.stream, task.values, p.maxLen)
	}
	if p.metrics != nil {
		p.metrics.StreamAppendLatency.WithLabelValues(task.stream).Observe(time.Since(start).Seconds())
	}
	if err != nil {
		log.Error().Err(err).Str("stream", task.stream).Msg("publish: append failed, dropping")
	}
}

func (p *Publisher) shardFor(eventID int64, marketID int16) int {
	h := fnv.New32a()
	fmt.Fprintf(h, "%d:%d", eventID, marketID)
	return int(h.Sum32()) % len(p.shards)
}

func (p *Publisher) enqueue(eventID int64, marketID int16, stream string, values map[string]string) {
	p.shards[p.shardFor(eventID, marketID)] <- publishTask{stream: stream, values: values}
}

func encode(v any) (map[string]string, error) {
	data, err := json.Marshal(v)
	if err != nil {
		return nil, fmt.Errorf("publish: marshal: %w", err)
	}
	return map[string]string{"payload": string(data)}, nil
}

// PublishChange appends an OrderChangeEvent to store_stream.
func (p *Publisher) PublishChange(eventID int64, marketID int16, change types.OrderChangeEvent) error {
	values, err := encode(change)
	if err != nil {
		return err
	}
	p.enqueue(eventID, marketID, StoreStream, values)
	return nil
}

// PublishProcessor appends a ProcessorMessage to processor_stream.
func (p *Publisher) PublishProcessor(eventID int64, marketID int16, msg types.ProcessorMessage) error {
	values, err := encode(msg)
	if err != nil {
		return err
	}
	p.enqueue(eventID, marketID, ProcessorStream, values)
	if p.metrics != nil && msg.Kind == types.OrderTradedKind && msg.Traded != nil {
		p.metrics.TradesTotal.WithLabelValues(fmtInt(eventID), fmtInt16(marketID)).Add(float64(len(msg.Traded.Trades)))
	}
	return nil
}

// PublishDepth appends a DepthSnapshot to depth_stream.
func (p *Publisher) PublishDepth(depth types.DepthSnapshot) error {
	values, err := encode(depth)
	if err != nil {
		return err
	}
	p.enqueue(depth.EventID, depth.MarketID, DepthStream, values)
	return nil
}

// PublishUserEvent appends a UserEvent to user_event_stream, sharded
// by event_id alone since user events have no single owning market.
func (p *Publisher) PublishUserEvent(event types.UserEvent) error {
	values, err := encode(event)
	if err != nil {
		return err
	}
	p.enqueue(event.EventID, 0, UserEventStream, values)
	return nil
}

func fmtInt(v int64) string   { return fmt.Sprintf("%d", v) }
func fmtInt16(v int16) string { return fmt.Sprintf("%d", v) }
