package streaming

import (
	"context"
	"errors"
	"time"

	"github.com/redis/go-redis/v9"
)

// RedisClient is the Client realization backed by a live Redis
// connection (standalone or cluster — redis.Cmdable covers both, per
// rishavpaul-system-design's rate-limiter seam).
type RedisClient struct {
	rdb redis.Cmdable
}

// NewRedisClient wraps an already-configured redis.Cmdable.
func NewRedisClient(rdb redis.Cmdable) *RedisClient {
	return &RedisClient{rdb: rdb}
}

func (c *RedisClient) Append(ctx context.Context, stream string, values map[string]string, maxLen int64) (string, error) {
	args := &redis.XAddArgs{
		Stream: stream,
		Values: values,
	}
	if maxLen > 0 {
		args.MaxLen = maxLen
		args.Approx = true
	}
	return c.rdb.XAdd(ctx, args).Result()
}

func (c *RedisClient) Read(ctx context.Context, stream, afterID string, count int64, block time.Duration) ([]Message, error) {
	res, err := c.rdb.XRead(ctx, &redis.XReadArgs{
		Streams: []string{stream, afterID},
		Count:   count,
		Block:   block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTimeout
	}
	if err != nil {
		return nil, err
	}
	return flatten(res), nil
}

func (c *RedisClient) ReadGroup(ctx context.Context, group, consumer, stream, afterID string, count int64, block time.Duration) ([]Message, error) {
	res, err := c.rdb.XReadGroup(ctx, &redis.XReadGroupArgs{
		Group:    group,
		Consumer: consumer,
		Streams:  []string{stream, afterID},
		Count:    count,
		Block:    block,
	}).Result()
	if errors.Is(err, redis.Nil) {
		return nil, ErrTimeout
	}
	if err != nil {
		return nil, err
	}
	return flatten(res), nil
}

func (c *RedisClient) EnsureGroup(ctx context.Context, stream, group, start string) error {
	err := c.rdb.XGroupCreateMkStream(ctx, stream, group, start).Err()
	if err != nil && isBusyGroup(err) {
		return nil
	}
	return err
}

func (c *RedisClient) Ack(ctx context.Context, stream, group string, ids ...string) error {
	return c.rdb.XAck(ctx, stream, group, ids...).Err()
}

func (c *RedisClient) TrimMinID(ctx context.Context, stream, minID string) error {
	return c.rdb.XTrimMinIDApprox(ctx, stream, minID, 0).Err()
}

func (c *RedisClient) Delete(ctx context.Context, stream string, ids ...string) error {
	return c.rdb.XDel(ctx, stream, ids...).Err()
}

func flatten(streams []redis.XStream) []Message {
	var out []Message
	for _, s := range streams {
		for _, entry := range s.Messages {
			values := make(map[string]string, len(entry.Values))
			for k, v := range entry.Values {
				if sv, ok := v.(string); ok {
					values[k] = sv
				}
			}
			out = append(out, Message{ID: entry.ID, Values: values})
		}
	}
	return out
}

func isBusyGroup(err error) bool {
	return err != nil && (err.Error() == "BUSYGROUP Consumer Group name already exists")
}
