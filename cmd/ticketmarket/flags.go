package main

import "github.com/urfave/cli/v2"

var (
	ConfigFlag = &cli.StringFlag{
		Name:    "config",
		Aliases: []string{"c"},
		Value:   "config.json",
		Usage:   "load configuration from `file`",
	}
	ListenFlag = &cli.StringFlag{
		Name:  "listen",
		Usage: "listen on `address`, overrides http.listen",
	}
	WalletFlag = &cli.StringFlag{
		Name:     "wallet",
		Aliases:  []string{"w"},
		Usage:    "wallet `address`",
		Required: true,
	}
	EventTypeFlag = &cli.StringFlag{
		Name:  "event-type",
		Usage: "only sales of this event `type`",
	}
	NotifyExistingFlag = &cli.BoolFlag{
		Name:  "notify-existing",
		Usage: "send notifications for sales open before the first poll",
	}
	OnceFlag = &cli.BoolFlag{
		Name:  "once",
		Usage: "poll once and exit",
	}
)
