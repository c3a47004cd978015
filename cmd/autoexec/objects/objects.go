package objects

import (
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/objects/count"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/objects/importeffects"
	"github.com/urfave/cli/v2"
)

func Objects() *cli.Command {
	return &cli.Command{
		Name:  "objects",
		Usage: "Manage the object snapshot",
		Subcommands: []*cli.Command{
			importeffects.ImportEffects(),
			count.Count(),
		},
	}
}
