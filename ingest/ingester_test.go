package ingest_test

import (
	"context"
	"path/filepath"
	"strings"
	"testing"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/ingest"
	"github.com/Arkiv-Network/autoexec/objectstore/sqlstore"
	"github.com/Arkiv-Network/autoexec/testutil"
	"github.com/Arkiv-Network/autoexec/triggerindex"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func triggerObject(t *testing.T, id common.Hash, at uint64, version uint64) *autotx.Object {
	t.Helper()
	return triggerWithGas(t, id, at, version, common.HexToHash("0x9a5"))
}

func triggerWithGas(t *testing.T, id common.Hash, at uint64, version uint64, gasID common.Hash) *autotx.Object {
	t.Helper()
	typeInputs, err := autotx.EncodeTypeInputs([]autotx.TypeTag{})
	require.NoError(t, err)
	args, err := autotx.EncodeArguments([]autotx.MoveCallArg{})
	require.NoError(t, err)

	tx := &autotx.AutoTx{
		ID:           id,
		TriggerTime:  at,
		Callee:       common.HexToHash("0xc0de"),
		ModuleName:   []byte("counter"),
		FunctionName: []byte("increment"),
		TypeInputs:   typeInputs,
		GasID:        gasID,
		Arguments:    args,
	}
	obj, err := tx.Object(version, autotx.Shared(1))
	require.NoError(t, err)
	return obj
}

func TestClassify(t *testing.T) {
	w := testutil.NewWorld()

	indexed := triggerObject(t, w.NewID(), 100, 1)
	moved := triggerObject(t, w.NewID(), 100, 1)
	retagged := triggerObject(t, w.NewID(), 100, 1)
	gone := triggerObject(t, w.NewID(), 100, 1)
	w.Store.Put(indexed, moved, retagged, gone)
	for _, o := range []*autotx.Object{indexed, moved, retagged, gone} {
		w.Index.Update([]triggerindex.Entry{{Time: 100, ID: o.ID}}, nil, nil)
	}

	created := triggerObject(t, w.NewID(), 300, 1)
	createdThenDeleted := triggerObject(t, w.NewID(), 300, 1)
	coin := autotx.NewGasCoin(w.NewID(), 1, autotx.AddressOwned(common.Hash{}), 1)

	notTrigger := *retagged
	notTrigger.Type = autotx.GasCoinType
	notTrigger.Version = 2

	effects := &ingest.Effects{
		Checkpoint: 1,
		Created:    []*autotx.Object{created, createdThenDeleted, coin},
		Mutated: []*autotx.Object{
			triggerObject(t, indexed.ID, 100, 2),
			triggerObject(t, moved.ID, 200, 2),
			&notTrigger,
		},
		Deleted: []common.Hash{gone.ID, createdThenDeleted.ID, w.NewID()},
	}

	changes, err := ingest.Classify(w.Index, w.Store, effects)
	require.NoError(t, err)

	require.Equal(t, []triggerindex.Entry{{Time: 300, ID: created.ID}}, changes.ToAdd)
	require.Equal(t, []triggerindex.Entry{{Time: 200, ID: moved.ID}}, changes.ToUpdate)
	require.ElementsMatch(t, []common.Hash{retagged.ID, gone.ID}, changes.ToDelete)

	t.Run("without a snapshot every indexed trigger is moved", func(t *testing.T) {
		changes, err := ingest.Classify(w.Index, nil, effects)
		require.NoError(t, err)
		require.Len(t, changes.ToUpdate, 2)
	})
}

func TestClassifyUsesLastWrittenVersion(t *testing.T) {
	w := testutil.NewWorld()

	fresh := w.NewID()
	indexed := triggerObject(t, w.NewID(), 100, 1)
	w.Store.Put(indexed)
	w.Index.Update([]triggerindex.Entry{{Time: 100, ID: indexed.ID}}, nil, nil)

	changes, err := ingest.Classify(w.Index, w.Store, &ingest.Effects{
		Checkpoint: 1,
		Created:    []*autotx.Object{triggerObject(t, fresh, 100, 1)},
		Mutated: []*autotx.Object{
			triggerObject(t, fresh, 300, 2),
			triggerObject(t, indexed.ID, 200, 2),
			triggerObject(t, indexed.ID, 400, 3),
		},
	})
	require.NoError(t, err)

	require.Equal(t, []triggerindex.Entry{{Time: 300, ID: fresh}}, changes.ToAdd)
	require.Equal(t, []triggerindex.Entry{{Time: 400, ID: indexed.ID}}, changes.ToUpdate)
	require.Empty(t, changes.ToDelete)
}

func TestIngesterTracksCheckpointZero(t *testing.T) {
	ctx := context.Background()
	w := testutil.NewWorld()

	store, err := sqlstore.NewStore(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	defer store.Close()

	in, err := ingest.NewIngester(ctx, w.Index, w.Store, store)
	require.NoError(t, err)

	id := w.NewID()
	_, err = in.Apply(ctx, &ingest.Effects{Checkpoint: 0, Created: []*autotx.Object{triggerObject(t, id, 100, 1)}})
	require.NoError(t, err)
	require.True(t, w.Index.Contains(id))

	summary, err := in.Apply(ctx, &ingest.Effects{Checkpoint: 0, Created: []*autotx.Object{triggerObject(t, id, 100, 1)}})
	require.NoError(t, err)
	require.True(t, summary.Skipped)

	_, err = in.Apply(ctx, &ingest.Effects{Checkpoint: 2})
	require.ErrorIs(t, err, ingest.ErrCheckpointGap)

	resumed, err := ingest.NewIngester(ctx, w.Index, w.Store, store)
	require.NoError(t, err)
	require.Equal(t, uint64(0), resumed.LastCheckpoint())

	_, err = resumed.Apply(ctx, &ingest.Effects{Checkpoint: 5})
	require.ErrorIs(t, err, ingest.ErrCheckpointGap)

	summary, err = resumed.Apply(ctx, &ingest.Effects{Checkpoint: 1})
	require.NoError(t, err)
	require.False(t, summary.Skipped)
}

func TestIngesterAppliesCheckpoints(t *testing.T) {
	ctx := context.Background()
	w := testutil.NewWorld()

	store, err := sqlstore.NewStore(filepath.Join(t.TempDir(), "objects.db"))
	require.NoError(t, err)
	defer store.Close()

	in, err := ingest.NewIngester(ctx, w.Index, w.Store, store)
	require.NoError(t, err)
	require.Equal(t, uint64(0), in.LastCheckpoint())

	id := w.NewID()
	gas := autotx.NewGasCoin(w.NewID(), 1, autotx.AddressOwned(id), testutil.DefaultBalance)
	trigger := triggerWithGas(t, id, 100, 1, gas.ID)

	summary, err := in.Apply(ctx, &ingest.Effects{
		Checkpoint: 1,
		Created:    []*autotx.Object{gas, trigger},
	})
	require.NoError(t, err)
	require.Equal(t, 1, summary.Added)
	require.True(t, w.Index.Contains(id))

	stored, err := store.GetObject(id)
	require.NoError(t, err)
	require.NotNil(t, stored)

	txs := w.Index.GetTill(0, 100, 1)
	require.Len(t, txs, 1)
	require.Equal(t, testutil.DefaultBalance, txs[0].Transaction().Gas.Budget)

	t.Run("replayed checkpoints are skipped", func(t *testing.T) {
		summary, err := in.Apply(ctx, &ingest.Effects{Checkpoint: 1, Deleted: []common.Hash{id}})
		require.NoError(t, err)
		require.True(t, summary.Skipped)
		require.True(t, w.Index.Contains(id))
	})

	t.Run("gaps are rejected", func(t *testing.T) {
		_, err := in.Apply(ctx, &ingest.Effects{Checkpoint: 3})
		require.ErrorIs(t, err, ingest.ErrCheckpointGap)
	})

	t.Run("deletion reaches every layer", func(t *testing.T) {
		summary, err := in.Apply(ctx, &ingest.Effects{Checkpoint: 2, Deleted: []common.Hash{id}})
		require.NoError(t, err)
		require.Equal(t, 1, summary.Deleted)
		require.False(t, w.Index.Contains(id))

		obj, err := w.Store.GetObject(id)
		require.NoError(t, err)
		require.Nil(t, obj)

		last, ok, err := store.LastCheckpoint(ctx)
		require.NoError(t, err)
		require.True(t, ok)
		require.Equal(t, uint64(2), last)
	})

	t.Run("a new ingester resumes after the stored checkpoint", func(t *testing.T) {
		resumed, err := ingest.NewIngester(ctx, w.Index, w.Store, store)
		require.NoError(t, err)
		require.Equal(t, uint64(2), resumed.LastCheckpoint())
	})
}

func TestReadEffects(t *testing.T) {
	input := `
{"checkpoint": 1, "deleted": ["0x00000000000000000000000000000000000000000000000000000000000000aa"]}
{"checkpoint": 2}
`
	effects, err := ingest.ReadEffects(strings.NewReader(input))
	require.NoError(t, err)
	require.Len(t, effects, 2)
	require.Equal(t, uint64(1), effects[0].Checkpoint)
	require.Equal(t, []common.Hash{common.HexToHash("0xaa")}, effects[0].Deleted)
	require.Equal(t, uint64(2), effects[1].Checkpoint)

	_, err = ingest.ReadEffects(strings.NewReader(`{"checkpoint": "x"}`))
	require.Error(t, err)
}
