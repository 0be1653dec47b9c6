package main

import (
	"encoding/hex"
	"encoding/json"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/signing"
)

// draft is the unsigned input shape accepted by the sign command: hex
// strings in place of the raw byte arrays the wire formats use, since a
// human is expected to hand-edit this file.
type draft struct {
	Name        string `json:"name"`
	Version     string `json:"version"`
	Status      uint8  `json:"status"`
	Maintainer  string `json:"maintainer"`
	ArchiveURL  string `json:"archive_url"`
	Algorithm   string `json:"algorithm"`
	ArchiveHash string `json:"archive_hash"`
}

var (
	keyFlag = &cli.StringFlag{
		Name:     "key",
		Usage:    "path to the maintainer's PEM-encoded private key",
		Required: true,
	}
	draftFlag = &cli.StringFlag{
		Name:     "draft",
		Usage:    "path to the unsigned package draft JSON file",
		Required: true,
	}
)

var commandSign = &cli.Command{
	Name:  "sign",
	Usage: "sign an unsigned package draft and print the signed descriptor",
	Flags: []cli.Flag{keyFlag, draftFlag},
	Action: func(c *cli.Context) error {
		priv, err := signing.LoadPEM(c.String(keyFlag.Name))
		if err != nil {
			return err
		}

		raw, err := os.ReadFile(c.String(draftFlag.Name))
		if err != nil {
			return fmt.Errorf("reading draft: %w", err)
		}
		var d draft
		if err := json.Unmarshal(raw, &d); err != nil {
			return fmt.Errorf("parsing draft: %w", err)
		}

		maintainerBytes, err := hex.DecodeString(d.Maintainer)
		if err != nil {
			return fmt.Errorf("parsing maintainer hex: %w", err)
		}
		archiveHash, err := hex.DecodeString(d.ArchiveHash)
		if err != nil {
			return fmt.Errorf("parsing archive_hash hex: %w", err)
		}
		var maintainer pkg.Maintainer
		copy(maintainer[:], maintainerBytes)

		status, err := pkg.ParseStatus(d.Status)
		if err != nil {
			return err
		}

		p, err := pkg.NewBuilder().
			Name(d.Name).
			Version(d.Version).
			Status(status).
			Maintainer(maintainer).
			ArchiveURL(d.ArchiveURL).
			Integrity(d.Algorithm, archiveHash).
			Build()
		if err != nil {
			return err
		}

		if _, err := signing.Sign(p, priv); err != nil {
			return err
		}

		signed, err := p.MarshalJSON()
		if err != nil {
			return err
		}
		fmt.Println(string(signed))
		return nil
	},
}
