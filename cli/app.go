// Package cli implements the wgsync command line application.
package cli

import (
	"io"

	"github.com/urfave/cli/v2"
)

// NewApp returns the wgsync application writing output to out.
func NewApp(out io.Writer) *cli.App {
	return &cli.App{
		Name:            "wgsync",
		Usage:           "sync Withings health measurements to Garmin Connect",
		HideHelpCommand: true,
		Writer:          out,
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:    "config",
				Aliases: []string{"c"},
				Usage:   "load configuration from `FILE` instead of the environment",
			},
			&cli.StringFlag{
				Name:    "from",
				Aliases: []string{"f"},
				Usage:   "start `DATE` (YYYY-MM-DD); defaults to the last sync",
			},
			&cli.StringFlag{
				Name:    "to",
				Aliases: []string{"t"},
				Usage:   "end `DATE` (YYYY-MM-DD); defaults to now",
			},
			&cli.BoolFlag{
				Name:  "garmin",
				Usage: "upload the FIT file to Garmin Connect",
			},
			&cli.PathFlag{
				Name:  "output-json",
				Usage: "write measurements to a JSON `FILE`",
			},
			&cli.PathFlag{
				Name:  "output-fit",
				Usage: "write the FIT file to `FILE`",
			},
			&cli.BoolFlag{
				Name:    "verbose",
				Aliases: []string{"v"},
				Usage:   "enable debug logging",
			},
		},
		Action: SyncAction,
	}
}
