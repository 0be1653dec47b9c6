// Command bpmcore is a thin operator CLI over the package registry: it
// can generate maintainer keys, sign and verify package descriptors, run
// a synchronization pass against a ledger, and inspect the local mirror.
package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

var gitCommit = ""
var gitDate = ""

var app *cli.App

func init() {
	app = cli.NewApp()
	app.Name = "bpmcore"
	app.Usage = "inspect and drive a BPM local mirror"
	app.Version = versionString()
	app.Commands = []*cli.Command{
		commandKeygen,
		commandSign,
		commandVerify,
		commandShow,
		commandList,
		commandSync,
	}
}

func versionString() string {
	if gitCommit == "" {
		return "dev"
	}
	if gitDate == "" {
		return gitCommit
	}
	return fmt.Sprintf("%s-%s", gitCommit, gitDate)
}

func main() {
	if err := app.Run(os.Args); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
