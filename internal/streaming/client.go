// Package streaming wraps the Redis Streams commands every pipeline
// stage (store, depth, userfeed) rides on: XAdd with approximate
// MAXLEN trimming, XRead/XReadGroup, and the XTrim MINID + XDel
// boundary cleanup the store service uses after loading a snapshot.
// Grounded on rishavpaul-system-design's rate-limiter gateway, which
// takes redis.Cmdable (not a concrete *redis.Client) as its seam so
// standalone and cluster clients are interchangeable — here the same
// seam separates the real redis/go-redis/v9 client from the in-memory
// Fake the rest of this repo's tests run against.
package streaming

import (
	"context"
	"time"
)

// Message is one entry read back from a stream.
type Message struct {
	ID     string
	Values map[string]string
}

// Client is the subset of Redis Streams behavior this exchange needs.
// The real implementation (RedisClient) delegates to
// github.com/redis/go-redis/v9; Fake backs every package's tests.
type Client interface {
	// Append adds one entry to stream, trimming approximately to
	// maxLen (0 disables trimming), and returns the assigned id.
	Append(ctx context.Context, stream string, values map[string]string, maxLen int64) (string, error)

	// Read blocks until at least one entry newer than afterID is
	// available (or block elapses, returning ErrTimeout), and returns
	// up to count entries for a single stream.
	Read(ctx context.Context, stream, afterID string, count int64, block time.Duration) ([]Message, error)

	// ReadGroup is Read's consumer-group counterpart, used by services
	// that need at-least-once delivery with acknowledgement. ">"
	// requests only entries never delivered to this group.
	ReadGroup(ctx context.Context, group, consumer, stream, afterID string, count int64, block time.Duration) ([]Message, error)

	// EnsureGroup creates group on stream starting at start ("0" or
	// "$"), tolerating MKSTREAM-style idempotent re-creation.
	EnsureGroup(ctx context.Context, stream, group, start string) error

	// Ack acknowledges ids as processed within group.
	Ack(ctx context.Context, stream, group string, ids ...string) error

	// TrimMinID deletes every entry with id < minID (approximate),
	// the store service's post-snapshot-load cleanup.
	TrimMinID(ctx context.Context, stream, minID string) error

	// Delete removes the exact ids given — used alongside TrimMinID to
	// explicitly evict the snapshot boundary entry itself.
	Delete(ctx context.Context, stream string, ids ...string) error
}

// ErrTimeout is returned by Read/ReadGroup when block elapses with no
// new entries — not a failure, callers loop back.
var ErrTimeout = errTimeout{}

type errTimeout struct{}

func (errTimeout) Error() string { return "streaming: read timed out" }
