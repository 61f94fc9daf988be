package snapshot

import (
	"path/filepath"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"predictex/internal/types"
)

func TestWriteAtomicThenLoadRoundTrips(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders_snapshot.json")

	snap := New()
	snap.LastMessageID = "42-0"
	snap.Timestamp = time.Now().Unix()
	snap.Snapshots = []SymbolSnapshot{
		{
			Symbol: types.Symbol{EventID: 1, MarketID: 1, TokenID: types.TokenA},
			Orders: []types.Order{
				{OrderID: "o1", Side: types.Buy, Price: 5000, Quantity: 100},
			},
			Timestamp: snap.Timestamp,
		},
	}
	snap.Events["1"] = EventSnapshot{
		Markets: map[string]MarketSnapshot{
			"1": {MarketID: 1, Outcomes: []string{"Yes", "No"}, TokenIDs: []string{"A", "B"}, UpdateID: 7},
		},
	}

	require.NoError(t, WriteAtomic(path, snap))

	loaded, err := Load(path)
	require.NoError(t, err)

	assert.Equal(t, snap.LastMessageID, loaded.LastMessageID)
	assert.Equal(t, CurrentSchemaVersion, loaded.SchemaVersion)
	require.Len(t, loaded.Snapshots, 1)
	assert.Equal(t, "o1", loaded.Snapshots[0].Orders[0].OrderID)
	assert.Equal(t, uint64(7), loaded.Events["1"].Markets["1"].UpdateID)
}

func TestLoadMissingFileReturnsEmptySnapshot(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "does-not-exist.json")

	snap, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, CurrentSchemaVersion, snap.SchemaVersion)
	assert.Empty(t, snap.Snapshots)
	assert.Empty(t, snap.LastMessageID)
}

func TestLoadToleratesMissingNewerFields(t *testing.T) {
	dir := t.TempDir()
	path := filepath.Join(dir, "orders_snapshot.json")

	require.NoError(t, WriteAtomic(path, Snapshot{
		SchemaVersion: CurrentSchemaVersion,
		LastMessageID: "10-0",
	}))

	loaded, err := Load(path)
	require.NoError(t, err)
	assert.Equal(t, "10-0", loaded.LastMessageID)
	assert.NotNil(t, loaded.Events)
	assert.Empty(t, loaded.Snapshots)
}
