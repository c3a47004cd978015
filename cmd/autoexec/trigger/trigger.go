package trigger

import (
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/trigger/list"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/trigger/show"
	"github.com/urfave/cli/v2"
)

func Trigger() *cli.Command {
	return &cli.Command{
		Name:  "trigger",
		Usage: "Inspect scheduled triggers",
		Subcommands: []*cli.Command{
			list.List(),
			show.Show(),
		},
	}
}
