package importeffects

import (
	"encoding/json"
	"fmt"
	"io"
	"os"
	"os/signal"

	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/engine"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/Arkiv-Network/autoexec/ingest"
	"github.com/urfave/cli/v2"
)

func ImportEffects() *cli.Command {
	return &cli.Command{
		Name:      "import-effects",
		Usage:     "Apply checkpoint effects to the object snapshot, reading stdin when no file is given",
		ArgsUsage: "[file]",
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()

			conf, err := settings.Load(c)
			if err != nil {
				return err
			}

			var r io.Reader = os.Stdin
			if c.Args().Len() > 0 {
				f, err := os.Open(c.Args().Get(0))
				if err != nil {
					return fmt.Errorf("failed to open effects: %w", err)
				}
				defer f.Close()
				r = f
			}

			e, err := engine.Open(ctx, conf)
			if err != nil {
				return err
			}
			defer e.Close()

			enc := json.NewEncoder(os.Stdout)
			err = e.IngestStream(ctx, r, func(s ingest.Summary) error {
				return enc.Encode(s)
			})
			if err != nil {
				return fmt.Errorf("failed to import effects: %w", err)
			}

			return nil
		},
	}
}
