package sqlx_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/stretchr/testify/require"

	storage "wastewise/adapters/sqlx"
	"wastewise/core"
)

func TestSQLite_RoundTrip(t *testing.T) {
	ctx := context.Background()
	cfg := storage.DefaultConfig(storage.DriverSQLite)
	cfg.DSN = "file:" + filepath.Join(t.TempDir(), "progress.db")

	store, err := storage.New(ctx, cfg)
	require.NoError(t, err)
	defer store.Close()

	_, err = store.LoadProgress(ctx)
	require.ErrorIs(t, err, core.ErrNotFound)

	p := core.NewUserProgress()
	p.Coins = 66
	require.NoError(t, store.SaveProgress(ctx, p))
	p.Coins = 51
	p.UnlockedStickers["earth"] = struct{}{}
	require.NoError(t, store.SaveProgress(ctx, p))

	got, err := store.LoadProgress(ctx)
	require.NoError(t, err)
	require.Equal(t, int64(51), got.Coins)
	require.True(t, got.Unlocked(core.RewardSticker, "earth"))
}

func TestNew_RejectsUnknownDriver(t *testing.T) {
	_, err := storage.New(context.Background(), storage.Config{Driver: "oracle"})
	require.Error(t, err)
}
