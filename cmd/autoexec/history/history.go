package history

import (
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/history/prune"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/history/query"
	"github.com/urfave/cli/v2"
)

func History() *cli.Command {
	return &cli.Command{
		Name:  "history",
		Usage: "Inspect the log of handed out transactions",
		Subcommands: []*cli.Command{
			query.Query(),
			prune.Prune(),
		},
	}
}
