package main

import (
	"crypto/ed25519"
	"crypto/rand"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/bpmcore/signing"
)

var outFlag = &cli.StringFlag{
	Name:     "out",
	Usage:    "path to write the new PEM-encoded maintainer key",
	Required: true,
}

var commandKeygen = &cli.Command{
	Name:  "keygen",
	Usage: "generate a new Ed25519 maintainer key",
	Flags: []cli.Flag{outFlag},
	Action: func(c *cli.Context) error {
		pub, priv, err := ed25519.GenerateKey(rand.Reader)
		if err != nil {
			return fmt.Errorf("generating key: %w", err)
		}
		path := c.String(outFlag.Name)
		if err := signing.WritePEM(path, priv); err != nil {
			return err
		}
		fmt.Printf("wrote maintainer key to %s\n", path)
		fmt.Printf("maintainer public key: %x\n", []byte(pub))
		return nil
	},
}
