package main

import (
	"fmt"

	"github.com/urfave/cli/v2"
)

var commandShow = &cli.Command{
	Name:  "show",
	Usage: "print a human-readable summary of a package descriptor",
	Flags: []cli.Flag{fileFlag},
	Action: func(c *cli.Context) error {
		p, err := readPackageFile(c.String(fileFlag.Name))
		if err != nil {
			return err
		}
		fmt.Print(p.String())
		return nil
	},
}
