package query

import (
	"encoding/json"
	"fmt"
	"math"
	"os"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/Arkiv-Network/autoexec/triggerlog"
	"github.com/urfave/cli/v2"
)

func Query() *cli.Command {
	cfg := struct {
		from uint64
		to   uint64
	}{}
	return &cli.Command{
		Name:  "query",
		Usage: "Print the logged transactions of the windows in (from, to]",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:        "from",
				Usage:       "Exclusive lower bound in milliseconds",
				Destination: &cfg.from,
			},
			&cli.Uint64Flag{
				Name:        "to",
				Usage:       "Inclusive upper bound in milliseconds",
				Value:       math.MaxUint64,
				Destination: &cfg.to,
			},
		},
		Action: func(c *cli.Context) error {
			conf, err := settings.Load(c)
			if err != nil {
				return err
			}

			l, err := triggerlog.Open(conf.LogPath())
			if err != nil {
				return err
			}
			defer l.Close()

			enc := json.NewEncoder(os.Stdout)
			err = l.ForEach(cfg.from, cfg.to, func(at uint64, txs []*autotx.AutoExecutableTransaction) error {
				return enc.Encode(struct {
					At           uint64                              `json:"at"`
					Transactions []*autotx.AutoExecutableTransaction `json:"transactions"`
				}{at, txs})
			})
			if err != nil {
				return fmt.Errorf("failed to query trigger log: %w", err)
			}

			return nil
		},
	}
}
