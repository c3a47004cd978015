package prune

import (
	"fmt"

	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/Arkiv-Network/autoexec/triggerlog"
	"github.com/urfave/cli/v2"
)

func Prune() *cli.Command {
	cfg := struct {
		before uint64
	}{}
	return &cli.Command{
		Name:  "prune",
		Usage: "Drop every logged window at or before the given time",
		Flags: []cli.Flag{
			&cli.Uint64Flag{
				Name:        "before",
				Usage:       "Time in milliseconds",
				Required:    true,
				Destination: &cfg.before,
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

			// windows always end after 0, so (0, before] covers all of them
			err = l.Remove(0, cfg.before)
			if err != nil {
				return err
			}

			fmt.Println("pruned trigger log up to", cfg.before)
			return nil
		},
	}
}
