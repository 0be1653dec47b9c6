package main

import (
	"bufio"
	"context"
	"encoding/hex"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	"github.com/tos-network/bpmcore/ledger"
	"github.com/tos-network/bpmcore/pkg"
	"github.com/tos-network/bpmcore/registry"
	bpmsync "github.com/tos-network/bpmcore/sync"
)

// fileReplayIO is a minimal ledger.IO that replays hex-encoded RLP
// packages from a local file, one per line. It exists so `bpmcore sync`
// has something concrete to drive end to end without depending on any
// particular production ledger transport, which the core deliberately
// treats as injected (spec §4.4).
type fileReplayIO struct {
	path string
}

// Read replays every line in the file regardless of sinceWatermark: a
// flat hex-line file carries no per-message timestamp to resume from, so
// this transport always offers its full contents and leaves resumption
// to whatever already-processed state the caller tracks (here, none -
// a real transport, unlike this replay stand-in, would use
// sinceWatermark to skip messages already delivered).
func (f fileReplayIO) Read(ctx context.Context, ch chan<- []byte, sinceWatermark int64) error {
	file, err := os.Open(f.path)
	if err != nil {
		return err
	}
	defer file.Close()

	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := scanner.Text()
		if line == "" {
			continue
		}
		raw, err := hex.DecodeString(line)
		if err != nil {
			return fmt.Errorf("decoding replay line: %w", err)
		}
		select {
		case ch <- raw:
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	<-ctx.Done()
	return scanner.Err()
}

func (f fileReplayIO) Write(ctx context.Context, message []byte) error {
	file, err := os.OpenFile(f.path, os.O_APPEND|os.O_CREATE|os.O_WRONLY, 0o644)
	if err != nil {
		return err
	}
	defer file.Close()
	_, err = fmt.Fprintln(file, hex.EncodeToString(message))
	return err
}

var replayFileFlag = &cli.StringFlag{
	Name:     "replay-file",
	Usage:    "local file of hex-encoded RLP packages to subscribe from",
	Required: true,
}

var commandSync = &cli.Command{
	Name:  "sync",
	Usage: "run one synchronization pass against a file-replayed ledger",
	Flags: []cli.Flag{configFlag, ledgerLabelFlag, replayFileFlag},
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
		io := fileReplayIO{path: c.String(replayFileFlag.Name)}
		ledgers, err := activateLedger(s, label, io, ledger.WithIdleTimeout(cfg.SubscribeIdleTimeout.Duration))
		if err != nil {
			return err
		}
		packages := registry.NewPackageRegistry(s, ledgers)
		engine := bpmsync.NewEngine(ledgers, packages)

		out := make(chan *pkg.Package, 16)
		done := make(chan struct{})
		go func() {
			for p := range out {
				fmt.Printf("synced %s@%s\n", p.Name, p.Version)
			}
			close(done)
		}()

		stats, err := engine.Run(context.Background(), out)
		close(out)
		<-done
		if err != nil {
			return err
		}
		fmt.Printf("received=%d verified=%d rejected=%d upserted=%d watermark=%d\n",
			stats.Received, stats.Verified, stats.Rejected, stats.Upserted, stats.Watermark)
		return nil
	},
}
