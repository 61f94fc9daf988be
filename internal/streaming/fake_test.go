package streaming

import (
	"context"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestAppendAndReadTail(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	id1, err := f.Append(ctx, "s1", map[string]string{"v": "1"}, 0)
	require.NoError(t, err)
	_, err = f.Append(ctx, "s1", map[string]string{"v": "2"}, 0)
	require.NoError(t, err)

	msgs, err := f.Read(ctx, "s1", id1, 10, time.Second)
	require.NoError(t, err)
	require.Len(t, msgs, 1)
	assert.Equal(t, "2", msgs[0].Values["v"])
}

func TestReadTimesOutWithNoNewEntries(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	id, err := f.Append(ctx, "s1", map[string]string{"v": "1"}, 0)
	require.NoError(t, err)

	_, err = f.Read(ctx, "s1", id, 10, time.Second)
	assert.ErrorIs(t, err, ErrTimeout)
}

func TestMaxLenApproxTrimsOldest(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	for i := 0; i < 5; i++ {
		_, err := f.Append(ctx, "s1", map[string]string{"v": "x"}, 3)
		require.NoError(t, err)
	}
	assert.Equal(t, 3, f.Len("s1"))
}

func TestTrimMinIDRemovesOlderEntries(t *testing.T) {
	f := NewFake()
	ctx := context.Background()

	_, _ = f.Append(ctx, "s1", map[string]string{"v": "1"}, 0)
	boundary, _ := f.Append(ctx, "s1", map[string]string{"v": "2"}, 0)
	_, _ = f.Append(ctx, "s1", map[string]string{"v": "3"}, 0)

	require.NoError(t, f.TrimMinID(ctx, "s1", boundary))
	require.NoError(t, f.Delete(ctx, "s1", boundary))

	assert.Equal(t, 1, f.Len("s1"))
}

func TestReadGroupDeliversOnceAndAdvancesCursor(t *testing.T) {
	f := NewFake()
	ctx := context.Background()
	require.NoError(t, f.EnsureGroup(ctx, "s1", "g1", "0"))

	_, _ = f.Append(ctx, "s1", map[string]string{"v": "1"}, 0)

	first, err := f.ReadGroup(ctx, "g1", "c1", "s1", ">", 10, time.Second)
	require.NoError(t, err)
	require.Len(t, first, 1)

	_, err = f.ReadGroup(ctx, "g1", "c1", "s1", ">", 10, time.Second)
	assert.ErrorIs(t, err, ErrTimeout)
}
