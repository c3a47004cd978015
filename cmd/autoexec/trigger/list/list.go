package list

import (
	"encoding/json"
	"math"
	"os"
	"os/signal"

	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/engine"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/urfave/cli/v2"
)

func List() *cli.Command {
	cfg := struct {
		till uint64
	}{}
	return &cli.Command{
		Name:  "list",
		Usage: "List scheduled triggers grouped by trigger time",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:        "till",
				Usage:       "Only list triggers due at or before this time in milliseconds",
				Value:       math.MaxUint64,
				Destination: &cfg.till,
			},
		},
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()

			conf, err := settings.Load(c)
			if err != nil {
				return err
			}

			e, err := engine.Open(ctx, conf)
			if err != nil {
				return err
			}
			defer e.Close()

			enc := json.NewEncoder(os.Stdout)
			for _, b := range e.Index.BucketsTill(cfg.till) {
				err = enc.Encode(b)
				if err != nil {
					return err
				}
			}

			return nil
		},
	}
}
