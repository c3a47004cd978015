// Package scheduler drives the trigger index from the chain clock: every
// tick it asks for the window since the previous tick, records the result
// in the trigger log and hands it to a sink.
package scheduler

import (
	"context"
	"fmt"
	"time"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/ethereum/go-ethereum/log"
	"github.com/ethereum/go-ethereum/metrics"
)

var (
	ticksMeter        = metrics.NewRegisteredCounter("autoexec/scheduler/ticks", nil)
	materializedMeter = metrics.NewRegisteredCounter("autoexec/scheduler/materialized", nil)
	watermarkGauge    = metrics.NewRegisteredGauge("autoexec/scheduler/watermark", nil)
	stepTimer         = metrics.NewRegisteredTimer("autoexec/scheduler/step", nil)
)

type Index interface {
	GetTill(from, to, gasPrice uint64) []*autotx.AutoExecutableTransaction
	Watermark() uint64
}

// TriggerLog is the durable record of handed out windows.
type TriggerLog interface {
	Insert(at uint64, txs []*autotx.AutoExecutableTransaction) error
	Remove(t1, t2 uint64) error
}

// ChainClock reports the current chain time in milliseconds.
type ChainClock interface {
	Now(ctx context.Context) (uint64, error)
}

type ClockFunc func(ctx context.Context) (uint64, error)

func (f ClockFunc) Now(ctx context.Context) (uint64, error) {
	return f(ctx)
}

// SystemClock uses the local wall clock.
type SystemClock struct{}

func (SystemClock) Now(context.Context) (uint64, error) {
	return uint64(time.Now().UnixMilli()), nil
}

// Sink receives every non-empty window.
type Sink interface {
	Deliver(ctx context.Context, at uint64, txs []*autotx.AutoExecutableTransaction) error
}

type SinkFunc func(ctx context.Context, at uint64, txs []*autotx.AutoExecutableTransaction) error

func (f SinkFunc) Deliver(ctx context.Context, at uint64, txs []*autotx.AutoExecutableTransaction) error {
	return f(ctx, at, txs)
}

type Config struct {
	PollInterval time.Duration
	GasPrice     uint64

	// HistoryWindowMs bounds how long windows stay in the trigger log.
	// 0 disables pruning.
	HistoryWindowMs uint64

	// Start is the end of the last window already handed out.
	Start uint64
}

// Window is the result of one step.
type Window struct {
	From         uint64
	To           uint64
	Transactions []*autotx.AutoExecutableTransaction
}

type Driver struct {
	index      Index
	triggerLog TriggerLog
	clock      ChainClock
	sink       Sink
	cfg        Config

	last       uint64
	prunedTill uint64

	logger log.Logger
}

// NewDriver creates a driver. triggerLog and sink may be nil.
func NewDriver(index Index, triggerLog TriggerLog, clock ChainClock, sink Sink, cfg Config) *Driver {
	return &Driver{
		index:      index,
		triggerLog: triggerLog,
		clock:      clock,
		sink:       sink,
		cfg:        cfg,
		last:       cfg.Start,
		logger:     log.New("module", "scheduler"),
	}
}

// Last is the end of the last window handed out.
func (d *Driver) Last() uint64 {
	return d.last
}

// Run steps every PollInterval until ctx is done. Step must not be called
// while Run is active.
func (d *Driver) Run(ctx context.Context) error {
	d.logger.Info("scheduler started", "start", d.last, "pollInterval", d.cfg.PollInterval, "gasPrice", d.cfg.GasPrice)
	defer d.logger.Info("scheduler stopped", "last", d.last)

	ticker := time.NewTicker(d.cfg.PollInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			_, err := d.Step(ctx)
			if err != nil {
				d.logger.Error("scheduler step failed", "error", err)
			}
		}
	}
}

// Step handles the window (last, now]. A clock that has not moved past the
// previous window yields an empty window and changes nothing.
func (d *Driver) Step(ctx context.Context) (Window, error) {
	defer stepTimer.UpdateSince(time.Now())
	ticksMeter.Inc(1)

	now, err := d.clock.Now(ctx)
	if err != nil {
		return Window{}, fmt.Errorf("failed to read chain time: %w", err)
	}

	w := Window{From: d.last, To: now}
	if now <= d.last {
		return w, nil
	}

	w.Transactions = d.index.GetTill(d.last, now, d.cfg.GasPrice)
	watermarkGauge.Update(int64(d.index.Watermark()))

	if len(w.Transactions) > 0 {
		if d.triggerLog != nil {
			err = d.triggerLog.Insert(now, w.Transactions)
			if err != nil {
				return w, fmt.Errorf("failed to log window (%d, %d]: %w", d.last, now, err)
			}
		}

		materializedMeter.Inc(int64(len(w.Transactions)))
		d.logger.Info("triggers due", "from", d.last, "now", now, "transactions", len(w.Transactions))

		if d.sink != nil {
			err = d.sink.Deliver(ctx, now, w.Transactions)
			if err != nil {
				// the window is in the log and can be replayed from there
				d.logger.Error("failed to deliver window", "now", now, "error", err)
			}
		}
	}

	d.last = now

	if d.cfg.HistoryWindowMs > 0 && now > d.cfg.HistoryWindowMs {
		err = d.Prune(now - d.cfg.HistoryWindowMs)
		if err != nil {
			return w, err
		}
	}

	return w, nil
}

// Prune drops every logged window at or before before.
func (d *Driver) Prune(before uint64) error {
	if d.triggerLog == nil || before <= d.prunedTill {
		return nil
	}

	err := d.triggerLog.Remove(d.prunedTill, before)
	if err != nil {
		return fmt.Errorf("failed to prune trigger log up to %d: %w", before, err)
	}

	d.logger.Debug("trigger log pruned", "from", d.prunedTill, "to", before)
	d.prunedTill = before
	return nil
}
