package main

import (
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/bpmcore/config"
	"github.com/tos-network/bpmcore/registry"
	"github.com/tos-network/bpmcore/store"
)

var (
	configFlag = &cli.StringFlag{
		Name:  "config",
		Usage: "path to the bpmcore TOML configuration file",
	}
	ledgerLabelFlag = &cli.StringFlag{
		Name:     "ledger",
		Usage:    "ledger label to list records for",
		Required: true,
	}
)

var commandList = &cli.Command{
	Name:  "list",
	Usage: "list every package record mirrored for a ledger",
	Flags: []cli.Flag{configFlag, ledgerLabelFlag},
	Action: func(c *cli.Context) error {
		cfg, err := loadConfig(c)
		if err != nil {
			return err
		}
		s, err := openStoreFromConfig(cfg)
		if err != nil {
			return err
		}
		defer s.Close()

		label := c.String(ledgerLabelFlag.Name)
		ledgers, err := activateLedger(s, label, noopIO{})
		if err != nil {
			return err
		}
		pr := registry.NewPackageRegistry(s, ledgers)

		pkgs, err := pr.All()
		if err != nil {
			return err
		}
		for _, p := range pkgs {
			fmt.Printf("%s@%s\tmaintainer=%s\tstatus=%s\n", p.Name, p.Version, p.Maintainer.Hex(), p.Status)
		}
		return nil
	},
}

func loadConfig(c *cli.Context) (*config.Config, error) {
	path := c.String(configFlag.Name)
	if path == "" {
		return config.Default(), nil
	}
	return config.Load(path)
}

func openStoreFromConfig(cfg *config.Config) (*store.Store, error) {
	return store.Open(cfg.StoreDir)
}
