// The wgsync command fetches health measurements from Withings and syncs
// them to Garmin Connect as a FIT file.
package main

import (
	"os"

	"github.com/edaniels/golog"

	"github.com/wgsync/wgsync/cli"
)

func main() {
	if err := cli.NewApp(os.Stdout).Run(os.Args); err != nil {
		golog.Global().Fatal(err)
	}
}
