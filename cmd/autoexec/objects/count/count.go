package count

import (
	"fmt"
	"os"
	"os/signal"

	"github.com/Arkiv-Network/autoexec/autotx"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/Arkiv-Network/autoexec/objectstore/sqlstore"
	"github.com/urfave/cli/v2"
)

func Count() *cli.Command {
	return &cli.Command{
		Name:  "count",
		Usage: "Count the stored objects and triggers",
		Action: func(c *cli.Context) error {
			ctx, cancel := signal.NotifyContext(c.Context, os.Interrupt)
			defer cancel()

			conf, err := settings.Load(c)
			if err != nil {
				return err
			}

			store, err := sqlstore.NewStore(conf.ObjectsPath())
			if err != nil {
				return err
			}
			defer store.Close()

			objects := 0
			err = store.ForEachObject(ctx, func(*autotx.Object) error {
				objects++
				return nil
			})
			if err != nil {
				return err
			}

			triggers := 0
			err = store.ForEachTrigger(ctx, func(*autotx.Object) error {
				triggers++
				return nil
			})
			if err != nil {
				return err
			}

			checkpoint, ok, err := store.LastCheckpoint(ctx)
			if err != nil {
				return err
			}

			if ok {
				fmt.Println("checkpoint", checkpoint)
			} else {
				fmt.Println("checkpoint none")
			}
			fmt.Println("objects", objects)
			fmt.Println("triggers", triggers)
			return nil
		},
	}
}
