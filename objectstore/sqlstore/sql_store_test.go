package sqlstore_test

import (
	"context"
	"path/filepath"
	"testing"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/objectstore/sqlstore"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func newStore(t *testing.T) (*sqlstore.SQLStore, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "objects", "objects.db")
	s, err := sqlstore.NewStore(path)
	require.NoError(t, err)
	t.Cleanup(func() { s.Close() })
	return s, path
}

func trigger(t *testing.T, id common.Hash, at uint64) *autotx.Object {
	t.Helper()
	tx := &autotx.AutoTx{
		ID:          id,
		TriggerTime: at,
		GasID:       common.HexToHash("0x9a5"),
	}
	obj, err := tx.Object(1, autotx.Shared(1))
	require.NoError(t, err)
	return obj
}

func TestApplyChangesAndLoadSnapshot(t *testing.T) {
	ctx := context.Background()
	s, _ := newStore(t)

	coin := autotx.NewGasCoin(common.HexToHash("0x9a5"), 1, autotx.AddressOwned(common.HexToHash("0xa1")), 5_000_000)
	trig := trigger(t, common.HexToHash("0xa1"), 100)

	checkpoint, ok, err := s.LastCheckpoint(ctx)
	require.NoError(t, err)
	require.False(t, ok)
	require.Equal(t, uint64(0), checkpoint)

	err = s.ApplyChanges(ctx, 7, []*autotx.Object{coin, trig}, nil)
	require.NoError(t, err)

	checkpoint, ok, err = s.LastCheckpoint(ctx)
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(7), checkpoint)

	got, err := s.GetObject(coin.ID)
	require.NoError(t, err)
	require.Equal(t, coin.Digest(), got.Digest())

	triggers := []common.Hash{}
	err = s.ForEachTrigger(ctx, func(o *autotx.Object) error {
		triggers = append(triggers, o.ID)
		return nil
	})
	require.NoError(t, err)
	require.Equal(t, []common.Hash{trig.ID}, triggers)

	snapshot, err := s.LoadSnapshot(ctx)
	require.NoError(t, err)
	require.Equal(t, 2, snapshot.Len())

	err = s.ApplyChanges(ctx, 8, nil, []common.Hash{coin.ID})
	require.NoError(t, err)

	got, err = s.GetObject(coin.ID)
	require.NoError(t, err)
	require.Nil(t, got)
}

func TestReopenKeepsObjects(t *testing.T) {
	ctx := context.Background()
	s, path := newStore(t)

	trig := trigger(t, common.HexToHash("0xa1"), 100)
	require.NoError(t, s.ApplyChanges(ctx, 1, []*autotx.Object{trig}, nil))
	require.NoError(t, s.Close())

	reopened, err := sqlstore.NewStore(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.GetObject(trig.ID)
	require.NoError(t, err)
	require.NotNil(t, got)

	decoded, ok := autotx.DecodeAutoTx(got)
	require.True(t, ok)
	require.Equal(t, uint64(100), decoded.TriggerTime)
}
