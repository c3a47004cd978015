package triggerlog_test

import (
	"math"
	"path/filepath"
	"testing"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/triggerlog"
	"github.com/ethereum/go-ethereum/common"
	"github.com/stretchr/testify/require"
)

func openLog(t *testing.T) (*triggerlog.Log, string) {
	t.Helper()
	path := filepath.Join(t.TempDir(), "triggerlog")
	l, err := triggerlog.Open(path)
	require.NoError(t, err)
	return l, path
}

func transaction(t *testing.T, id string, at uint64) *autotx.AutoExecutableTransaction {
	t.Helper()
	signer := common.HexToHash(id)
	tx, err := autotx.NewAutoExecutableTransaction(signer, at, signer, autotx.TransactionData{
		Sender: signer,
		Call: autotx.MoveCall{
			Package:  common.HexToHash("0xc0de"),
			Module:   "counter",
			Function: "increment",
		},
		Gas: autotx.GasData{Owner: signer, Price: 1, Budget: 100},
	})
	require.NoError(t, err)
	return tx
}

func digests(txs []*autotx.AutoExecutableTransaction) []common.Hash {
	d := []common.Hash{}
	for _, tx := range txs {
		d = append(d, tx.Digest())
	}
	return d
}

func TestInsertMergesEntries(t *testing.T) {
	l, _ := openLog(t)
	defer l.Close()

	a, b := transaction(t, "0xa", 100), transaction(t, "0xb", 100)

	require.NoError(t, l.Insert(100, []*autotx.AutoExecutableTransaction{a}))
	require.NoError(t, l.Insert(100, []*autotx.AutoExecutableTransaction{b}))
	require.NoError(t, l.Insert(100, nil))

	got, err := l.Get(100)
	require.NoError(t, err)
	require.Equal(t, digests([]*autotx.AutoExecutableTransaction{a, b}), digests(got))

	missing, err := l.Get(101)
	require.NoError(t, err)
	require.Empty(t, missing)
}

func TestQueryIsExclusiveBelow(t *testing.T) {
	l, _ := openLog(t)
	defer l.Close()

	for _, at := range []uint64{10, 20, 30} {
		require.NoError(t, l.Insert(at, []*autotx.AutoExecutableTransaction{transaction(t, "0xa", at)}))
	}

	got, err := l.Query(10, 30)
	require.NoError(t, err)
	require.Len(t, got, 2)
	require.Equal(t, uint64(20), got[0].TriggerTime())
	require.Equal(t, uint64(30), got[1].TriggerTime())

	got, err = l.Query(30, 10)
	require.NoError(t, err)
	require.Empty(t, got)

	got, err = l.Query(0, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, got, 3)
}

func TestRemoveDeletesRange(t *testing.T) {
	l, _ := openLog(t)
	defer l.Close()

	for _, at := range []uint64{10, 20, 30, math.MaxUint64} {
		require.NoError(t, l.Insert(at, []*autotx.AutoExecutableTransaction{transaction(t, "0xa", at)}))
	}

	require.NoError(t, l.Remove(10, 20))

	got, err := l.Query(0, math.MaxUint64)
	require.NoError(t, err)
	times := []uint64{}
	for _, tx := range got {
		times = append(times, tx.TriggerTime())
	}
	require.Equal(t, []uint64{10, 30, math.MaxUint64}, times)

	require.NoError(t, l.Remove(20, math.MaxUint64))

	got, err = l.Query(0, math.MaxUint64)
	require.NoError(t, err)
	require.Len(t, got, 1)

	last, ok, err := l.Last()
	require.NoError(t, err)
	require.True(t, ok)
	require.Equal(t, uint64(10), last)
}

func TestReopenKeepsEntries(t *testing.T) {
	l, path := openLog(t)

	tx := transaction(t, "0xa", 42)
	require.NoError(t, l.Insert(42, []*autotx.AutoExecutableTransaction{tx}))
	require.NoError(t, l.Close())

	reopened, err := triggerlog.Open(path)
	require.NoError(t, err)
	defer reopened.Close()

	got, err := reopened.Get(42)
	require.NoError(t, err)
	require.Len(t, got, 1)
	require.Equal(t, tx.Digest(), got[0].Digest())
	require.Equal(t, tx.TriggerID(), got[0].TriggerID())
}

func TestLastOnEmptyLog(t *testing.T) {
	l, _ := openLog(t)
	defer l.Close()

	_, ok, err := l.Last()
	require.NoError(t, err)
	require.False(t, ok)
}
