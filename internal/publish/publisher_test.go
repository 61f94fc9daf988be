package publish

import (
	"context"
	"fmt"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	tomb "gopkg.in/tomb.v2"

	"predictex/internal/streaming"
	"predictex/internal/types"
)

func waitFor(t *testing.T, cond func() bool) {
	t.Helper()
	deadline := time.Now().Add(time.Second)
	for time.Now().Before(deadline) {
		if cond() {
			return
		}
		time.Sleep(time.Millisecond)
	}
	require.True(t, cond(), "condition never became true")
}

func TestPublishChangeAppendsToStoreStream(t *testing.T) {
	fake := streaming.NewFake()
	pub := New(fake, nil, 2, 0)
	var tm tomb.Tomb
	pub.Start(&tm)
	defer func() { tm.Kill(nil); _ = tm.Wait() }()

	require.NoError(t, pub.PublishChange(1, 1, types.OrderCancelledEvent("o1", types.Symbol{EventID: 1, MarketID: 1, TokenID: types.TokenA})))

	waitFor(t, func() bool { return fake.Len(StoreStream) == 1 })
}

func TestPublishPreservesPerMarketOrdering(t *testing.T) {
	fake := streaming.NewFake()
	pub := New(fake, nil, 4, 0)
	var tm tomb.Tomb
	pub.Start(&tm)
	defer func() { tm.Kill(nil); _ = tm.Wait() }()

	for i := 0; i < 20; i++ {
		require.NoError(t, pub.PublishChange(7, 3, types.MarketUpdateID(7, 3, uint64(i+1))))
	}

	waitFor(t, func() bool { return fake.Len(StoreStream) == 20 })

	msgs, err := fake.Read(context.Background(), StoreStream, "0-0", 20, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 20)
	for i, m := range msgs {
		assert.Contains(t, m.Values["payload"], fmt.Sprintf(`"update_id":%d}`, i+1))
	}
}

func TestShardForIsStableForSameKey(t *testing.T) {
	pub := New(streaming.NewFake(), nil, 8, 0)
	a := pub.shardFor(5, 2)
	b := pub.shardFor(5, 2)
	assert.Equal(t, a, b)
}

func TestPublishDepthRoutesToDepthStream(t *testing.T) {
	fake := streaming.NewFake()
	pub := New(fake, nil, 1, 0)
	var tm tomb.Tomb
	pub.Start(&tm)
	defer func() { tm.Kill(nil); _ = tm.Wait() }()

	require.NoError(t, pub.PublishDepth(types.DepthSnapshot{EventID: 1, MarketID: 1, Depths: map[string]types.TokenDepth{}}))

	waitFor(t, func() bool { return fake.Len(DepthStream) == 1 })
}
