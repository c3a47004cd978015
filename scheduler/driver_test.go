package scheduler_test

import (
	"context"
	"errors"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/scheduler"
	"github.com/Arkiv-Network/autoexec/testutil"
	"github.com/Arkiv-Network/autoexec/triggerindex"
	"github.com/Arkiv-Network/autoexec/triggerlog"
	"github.com/stretchr/testify/require"
	"go.uber.org/goleak"
)

func TestMain(m *testing.M) {
	goleak.VerifyTestMain(m)
}

// manualClock is a chain clock tests move by hand.
type manualClock struct {
	now atomic.Uint64
}

func (c *manualClock) Now(context.Context) (uint64, error) {
	return c.now.Load(), nil
}

type recordingSink struct {
	mu      sync.Mutex
	windows map[uint64][]*autotx.AutoExecutableTransaction
	err     error
}

func (s *recordingSink) Deliver(_ context.Context, at uint64, txs []*autotx.AutoExecutableTransaction) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.windows == nil {
		s.windows = map[uint64][]*autotx.AutoExecutableTransaction{}
	}
	s.windows[at] = txs
	return s.err
}

func (s *recordingSink) count() int {
	s.mu.Lock()
	defer s.mu.Unlock()
	return len(s.windows)
}

func openLog(t *testing.T) *triggerlog.Log {
	t.Helper()
	l, err := triggerlog.Open(filepath.Join(t.TempDir(), "triggerlog"))
	require.NoError(t, err)
	t.Cleanup(func() { l.Close() })
	return l
}

func scheduleAll(w *testutil.World, times ...uint64) []*autotx.AutoTx {
	triggers := []*autotx.AutoTx{}
	entries := []triggerindex.Entry{}
	for _, at := range times {
		tx := w.ScheduleTrigger(at)
		triggers = append(triggers, tx)
		entries = append(entries, triggerindex.Entry{Time: at, ID: tx.ID})
	}
	w.Index.Update(entries, nil, nil)
	return triggers
}

func TestStepLogsAndDeliversWindows(t *testing.T) {
	ctx := context.Background()
	w := testutil.NewWorld()
	triggers := scheduleAll(w, 100, 150, 300)

	l := openLog(t)
	clock := &manualClock{}
	sink := &recordingSink{}
	d := scheduler.NewDriver(w.Index, l, clock, sink, scheduler.Config{GasPrice: 1})

	clock.now.Store(150)
	window, err := d.Step(ctx)
	require.NoError(t, err)
	require.Equal(t, uint64(0), window.From)
	require.Equal(t, uint64(150), window.To)
	require.Len(t, window.Transactions, 2)
	require.Equal(t, triggers[0].ID, window.Transactions[0].TriggerID())
	require.Equal(t, uint64(150), d.Last())
	require.Equal(t, uint64(150), w.Index.Watermark())

	logged, err := l.Get(150)
	require.NoError(t, err)
	require.Len(t, logged, 2)
	require.Equal(t, 1, sink.count())

	t.Run("clock going backwards is an empty step", func(t *testing.T) {
		clock.now.Store(120)
		window, err := d.Step(ctx)
		require.NoError(t, err)
		require.Empty(t, window.Transactions)
		require.Equal(t, uint64(150), d.Last())
	})

	t.Run("next window starts after the previous one", func(t *testing.T) {
		clock.now.Store(400)
		window, err := d.Step(ctx)
		require.NoError(t, err)
		require.Len(t, window.Transactions, 1)
		require.Equal(t, triggers[2].ID, window.Transactions[0].TriggerID())

		all, err := l.Query(0, 400)
		require.NoError(t, err)
		require.Len(t, all, 3)
	})
}

func TestStepKeepsGoingWhenDeliveryFails(t *testing.T) {
	ctx := context.Background()
	w := testutil.NewWorld()
	scheduleAll(w, 10)

	clock := &manualClock{}
	clock.now.Store(20)
	sink := &recordingSink{err: errors.New("executor offline")}
	l := openLog(t)

	d := scheduler.NewDriver(w.Index, l, clock, sink, scheduler.Config{GasPrice: 1})
	window, err := d.Step(ctx)
	require.NoError(t, err)
	require.Len(t, window.Transactions, 1)
	require.Equal(t, uint64(20), d.Last())

	logged, err := l.Get(20)
	require.NoError(t, err)
	require.Len(t, logged, 1)
}

func TestStepPrunesOldWindows(t *testing.T) {
	ctx := context.Background()
	w := testutil.NewWorld()
	scheduleAll(w, 100, 200, 1_000)

	l := openLog(t)
	clock := &manualClock{}
	d := scheduler.NewDriver(w.Index, l, clock, nil, scheduler.Config{GasPrice: 1, HistoryWindowMs: 500})

	for _, now := range []uint64{100, 200, 1_000} {
		clock.now.Store(now)
		_, err := d.Step(ctx)
		require.NoError(t, err)
	}

	kept, err := l.Query(0, 1_000)
	require.NoError(t, err)
	require.Len(t, kept, 1)
	require.Equal(t, uint64(1_000), kept[0].TriggerTime())
}

func TestStepWithoutLog(t *testing.T) {
	w := testutil.NewWorld()
	scheduleAll(w, 5)

	d := scheduler.NewDriver(w.Index, nil, scheduler.ClockFunc(func(context.Context) (uint64, error) {
		return 5, nil
	}), nil, scheduler.Config{GasPrice: 1, Start: 4})

	window, err := d.Step(context.Background())
	require.NoError(t, err)
	require.Len(t, window.Transactions, 1)
}

func TestStepClockError(t *testing.T) {
	w := testutil.NewWorld()
	d := scheduler.NewDriver(w.Index, nil, scheduler.ClockFunc(func(context.Context) (uint64, error) {
		return 0, errors.New("node unreachable")
	}), nil, scheduler.Config{GasPrice: 1})

	_, err := d.Step(context.Background())
	require.ErrorContains(t, err, "node unreachable")
}

func TestRunStopsWithContext(t *testing.T) {
	w := testutil.NewWorld()
	scheduleAll(w, 1)

	clock := &manualClock{}
	clock.now.Store(10)
	sink := &recordingSink{}

	d := scheduler.NewDriver(w.Index, nil, clock, sink, scheduler.Config{
		PollInterval: time.Millisecond,
		GasPrice:     1,
	})

	ctx, cancel := context.WithCancel(context.Background())
	done := make(chan error)
	go func() {
		done <- d.Run(ctx)
	}()

	require.Eventually(t, func() bool { return sink.count() == 1 }, time.Second, time.Millisecond)

	cancel()
	require.NoError(t, <-done)
}
