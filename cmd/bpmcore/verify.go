package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/signing"
)

var fileFlag = &cli.StringFlag{
	Name:     "file",
	Usage:    "path to a signed package descriptor (JSON or RLP)",
	Required: true,
}

var commandVerify = &cli.Command{
	Name:  "verify",
	Usage: "verify a signed package descriptor's signature",
	Flags: []cli.Flag{fileFlag},
	Action: func(c *cli.Context) error {
		p, err := readPackageFile(c.String(fileFlag.Name))
		if err != nil {
			return err
		}
		if signing.Verify(p) {
			fmt.Printf("OK: %s@%s signature verifies\n", p.Name, p.Version)
			return nil
		}
		fmt.Printf("FAIL: %s@%s signature does not verify\n", p.Name, p.Version)
		os.Exit(1)
		return nil
	},
}

// readPackageFile loads a package descriptor, trying the RLP wire format
// first and falling back to tagged-map JSON.
func readPackageFile(path string) (*pkg.Package, error) {
	raw, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading %s: %w", path, err)
	}
	if p, err := pkg.Decode(raw); err == nil {
		return p, nil
	}
	var p pkg.Package
	if err := p.UnmarshalJSON(raw); err != nil {
		return nil, fmt.Errorf("%s is neither valid RLP nor valid JSON: %w", path, err)
	}
	return &p, nil
}
