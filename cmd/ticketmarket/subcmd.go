package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"os"

	"github.com/urfave/cli/v2"

	market "github.com/xyths/ticket-market/app"
	"github.com/xyths/ticket-market/chain"
	"github.com/xyths/ticket-market/marketplace"
)

var (
	serveCommand = &cli.Command{
		Action: serve,
		Name:   "serve",
		Usage:  "Serve the marketplace HTTP API",
		Flags: []cli.Flag{
			ListenFlag,
		},
	}
	salesCommand = &cli.Command{
		Name:  "sales",
		Usage: "Read marketplace sales from chain",
		Subcommands: []*cli.Command{
			{
				Action: listSales,
				Name:   "list",
				Usage:  "List active sales",
				Flags: []cli.Flag{
					EventTypeFlag,
				},
			},
			{
				Action: listClaimable,
				Name:   "claimable",
				Usage:  "List expired auctions a wallet can settle",
				Flags: []cli.Flag{
					WalletFlag,
				},
			},
		},
	}
	monitorCommand = &cli.Command{
		Action: runMonitor,
		Name:   "monitor",
		Usage:  "Notify Telegram and Discord about listings, bids and ended auctions",
		Flags: []cli.Flag{
			NotifyExistingFlag,
			OnceFlag,
		},
	}
)

func setup(c *cli.Context) (*market.App, error) {
	cfg, err := market.Load(c.String(ConfigFlag.Name))
	if err != nil {
		return nil, err
	}
	if listen := c.String(ListenFlag.Name); listen != "" {
		cfg.Http.Listen = listen
	}
	if c.Bool(NotifyExistingFlag.Name) {
		cfg.Monitor.NotifyExisting = true
	}
	a := market.New(cfg)
	if err = a.Init(c.Context); err != nil {
		return nil, err
	}
	return a, nil
}

func serve(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close(c.Context)
	return a.Serve(c.Context)
}

func listSales(c *cli.Context) error {
	var et marketplace.EventType
	if raw := c.String(EventTypeFlag.Name); raw != "" {
		var ok bool
		if et, ok = marketplace.ParseEventType(raw); !ok {
			return fmt.Errorf("unknown event type %q", raw)
		}
	}
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close(c.Context)

	sales, err := a.Scanner.ListActiveSales(c.Context)
	if err != nil {
		return err
	}
	if et != "" {
		kept := sales[:0]
		for _, s := range sales {
			if s.NFTData.EventType == et {
				kept = append(kept, s)
			}
		}
		sales = kept
	}
	return printJSON(map[string]interface{}{"sales": sales})
}

func listClaimable(c *cli.Context) error {
	wallet, ok := chain.NormalizeAddress(c.String(WalletFlag.Name))
	if !ok {
		return fmt.Errorf("invalid wallet address %q", c.String(WalletFlag.Name))
	}
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close(c.Context)

	claimable, err := a.Scanner.ListClaimable(c.Context, wallet)
	if err != nil {
		return err
	}
	return printJSON(map[string]interface{}{"claimableAuctions": claimable})
}

func runMonitor(c *cli.Context) error {
	a, err := setup(c)
	if err != nil {
		return err
	}
	defer a.Close(c.Context)

	m, err := a.NewMonitor(c.Context)
	if err != nil {
		return err
	}
	defer m.Close()
	if c.Bool(OnceFlag.Name) {
		return m.Poll(c.Context)
	}
	if err = m.Run(c.Context); errors.Is(err, context.Canceled) {
		return nil
	}
	return err
}

func printJSON(v interface{}) error {
	enc := json.NewEncoder(os.Stdout)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}
