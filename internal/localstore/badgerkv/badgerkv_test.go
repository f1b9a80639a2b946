package badgerkv

import (
	"log"
	"testing"

	"github.com/stretchr/testify/require"

	"example.com/fittracker/internal/domain"
	"example.com/fittracker/internal/localstore"
)

func TestGetMissingKey(t *testing.T) {
	kv, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	value, ok, err := kv.Get("absent")
	require.NoError(t, err)
	require.False(t, ok)
	require.Empty(t, value)
}

func TestSetOverwrites(t *testing.T) {
	kv, err := Open(InMemoryConfig())
	require.NoError(t, err)
	t.Cleanup(func() { _ = kv.Close() })

	require.NoError(t, kv.Set("goals", "v1"))
	require.NoError(t, kv.Set("goals", "v2"))

	value, ok, err := kv.Get("goals")
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, "v2", value)
}

func TestPersistsAcrossReopen(t *testing.T) {
	dir := t.TempDir()
	cfg := DefaultConfig(dir)
	cfg.GCInterval = 0

	kv, err := Open(cfg)
	require.NoError(t, err)
	store := localstore.New[domain.WeightEntry](kv, localstore.WithLogger(log.New(log.Writer(), "", 0)))
	require.NoError(t, store.Save("progress:user-1", []domain.Record[domain.WeightEntry]{
		{ID: "local_1", Payload: domain.WeightEntry{Weight: 80, Unit: domain.UnitKilograms, MeasuredOn: "2024-01-01"}},
	}))
	require.NoError(t, kv.Close())

	reopened, err := Open(cfg)
	require.NoError(t, err)
	t.Cleanup(func() { _ = reopened.Close() })

	records := localstore.New[domain.WeightEntry](reopened).Load("progress:user-1")
	require.Len(t, records, 1)
	require.Equal(t, "local_1", records[0].ID)
	require.InDelta(t, 80, records[0].Payload.Weight, 0.0001)
}

func TestOpenRequiresPath(t *testing.T) {
	_, err := Open(Config{})
	require.Error(t, err)
}
