package main

import (
	"log"
	"os"

	"github.com/Arkiv-Network/autoexec/cmd/autoexec/history"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/objects"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/pkg/settings"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/run"
	"github.com/Arkiv-Network/autoexec/cmd/autoexec/trigger"
	"github.com/urfave/cli/v2"
)

func main() {

	app := &cli.App{
		Name:  "autoexec",
		Usage: "Autonomous trigger scheduler",
		Flags: settings.GlobalFlags(),

		Commands: []*cli.Command{
			run.Run(),
			history.History(),
			objects.Objects(),
			trigger.Trigger(),
		},
	}

	err := app.Run(os.Args)
	if err != nil {
		log.Fatal(err)
	}
}
