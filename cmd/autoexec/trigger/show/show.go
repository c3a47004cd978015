package show

import (
	"encoding/json"
	"fmt"
	"os"
	"os/signal"

	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/engine"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/ethereum/go-ethereum/common"
	"github.com/urfave/cli/v2"
)

func Show() *cli.Command {
	cfg := struct {
		gasPrice uint64
	}{}
	return &cli.Command{
		Name:      "show",
		Usage:     "Materialize a trigger without scheduling it and print the result",
		ArgsUsage: "<trigger id>",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:        "gas-price",
				Usage:       "Gas price to materialize with, the configured one when 0",
				Destination: &cfg.gasPrice,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()

			if c.Args().Len() != 1 {
				return fmt.Errorf("trigger id is required")
			}
			id := common.HexToHash(c.Args().Get(0))

			conf, err := settings.Load(c)
			if err != nil {
				return err
			}
			if cfg.gasPrice == 0 {
				cfg.gasPrice = conf.GasPrice
			}

			e, err := engine.Open(ctx, conf)
			if err != nil {
				return err
			}
			defer e.Close()

			at, scheduled := e.Index.ScheduledAt(id)

			tx, err := e.Materializer.MaterializeID(id, cfg.gasPrice)
			if err != nil {
				return fmt.Errorf("failed to materialize trigger: %w", err)
			}

			enc := json.NewEncoder(os.Stdout)
			enc.SetIndent("", "  ")
			return enc.Encode(struct {
				Scheduled   bool        `json:"scheduled"`
				ScheduledAt uint64      `json:"scheduledAt"`
				Digest      common.Hash `json:"digest"`
				Transaction any         `json:"transaction"`
			}{scheduled, at, tx.Digest(), tx})
		},
	}
}
