package run

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"
	"sync"
	"syscall"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/chainclock"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/engine"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/Arkiv-Network/autoexec/scheduler"
	"github.com/Arkiv-Network/autoexec/triggerlog"
	"github.com/ethereum/go-ethereum/log"
	"github.com/urfave/cli/v2"
	"golang.org/x/sync/errgroup"
)

type window struct {
	At           uint64                              `json:"at"`
	Transactions []*autotx.AutoExecutableTransaction `json:"transactions"`
}

// stdoutSink writes every window as one JSON line.
func stdoutSink(w io.Writer) scheduler.SinkFunc {
	mu := &sync.Mutex{}
	enc := json.NewEncoder(w)
	return func(_ context.Context, at uint64, txs []*autotx.AutoExecutableTransaction) error {
		mu.Lock()
		defer mu.Unlock()
		return enc.Encode(window{At: at, Transactions: txs})
	}
}

func Run() *cli.Command {
	cfg := struct {
		nodeURL  string
		effects  string
		gasPrice uint64
	}{}

	return &cli.Command{
		Name:  "run",
		Usage: "Schedule triggers and print due transactions as JSON lines",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:        "node-url",
				Usage:       "The URL of the node chain time is read from, local time when empty",
				EnvVars:     []string{"NODE_URL"},
				Destination: &cfg.nodeURL,
			},
			&cli.StringFlag{
				Name:        "effects",
				Usage:       "File with checkpoint effects to ingest while running, - for stdin",
				Destination: &cfg.effects,
			},
			&cli.Uint64Flag{
				Name:        "gas-price",
				Usage:       "Gas price of materialized transactions",
				Destination: &cfg.gasPrice,
			},
		},
		Action: func(c *cli.Context) error {
			conf, err := settings.Load(c)
			if err != nil {
				return err
			}
			if c.IsSet("node-url") {
				conf.NodeURL = cfg.nodeURL
			}
			if c.IsSet("gas-price") {
				conf.GasPrice = cfg.gasPrice
			}

			ctx, stop := signal.NotifyContext(c.Context, os.Interrupt, syscall.SIGTERM)
			defer stop()

			e, err := engine.Open(ctx, conf)
			if err != nil {
				return err
			}
			defer e.Close()

			triggerLog, err := triggerlog.Open(conf.LogPath())
			if err != nil {
				return err
			}
			defer triggerLog.Close()

			start, _, err := triggerLog.Last()
			if err != nil {
				return err
			}

			var clock scheduler.ChainClock = scheduler.SystemClock{}
			if conf.NodeURL != "" {
				rpcClock, err := chainclock.Dial(ctx, conf.NodeURL)
				if err != nil {
					return err
				}
				defer rpcClock.Close()
				clock = rpcClock
			}

			driver := scheduler.NewDriver(e.Index, triggerLog, clock, stdoutSink(os.Stdout), scheduler.Config{
				PollInterval:    conf.PollInterval.Std(),
				GasPrice:        conf.GasPrice,
				HistoryWindowMs: conf.HistoryWindowMs,
				Start:           start,
			})

			var effects io.ReadCloser
			if cfg.effects != "" {
				effects, err = openEffects(cfg.effects)
				if err != nil {
					return err
				}
			}

			eg, ctx := errgroup.WithContext(ctx)

			eg.Go(func() error {
				return driver.Run(ctx)
			})

			if effects != nil {
				eg.Go(func() error {
					<-ctx.Done()
					return effects.Close()
				})

				eg.Go(func() error {
					err := e.IngestStream(ctx, effects, nil)
					if err != nil && ctx.Err() == nil {
						return fmt.Errorf("effects ingestion stopped: %w", err)
					}
					log.Info("effects stream finished", "checkpoint", e.Ingester.LastCheckpoint())
					return nil
				})
			}

			err = eg.Wait()
			if err != nil && !engine.IsStopped(err) {
				return err
			}
			return nil
		},
	}
}

func openEffects(path string) (io.ReadCloser, error) {
	if path == "-" {
		return os.Stdin, nil
	}
	f, err := os.Open(path)
	if err != nil {
		return nil, fmt.Errorf("failed to open effects: %w", err)
	}
	return f, nil
}
