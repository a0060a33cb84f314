package main

import (
	"fmt"
	"os"

	"github.com/urfave/cli/v2"
)

func main() {
	if err := newApp().Run(os.Args); err != nil {
		fmt.Fprintf(os.Stderr, "checkoutctl: %v\n", err)
		os.Exit(1)
	}
}

func newApp() *cli.App {
	jsonFlag := &cli.BoolFlag{
		Name:    "json",
		Aliases: []string{"j"},
		Usage:   "Output as JSON",
	}

	return &cli.App{
		Name:                   "checkoutctl",
		Usage:                  "Inspect checkout field rules and probe the token service",
		UseShortOptionHandling: true,
		Commands: []*cli.Command{
			{
				Name:      "cpf",
				Usage:     "Format and validate a CPF",
				ArgsUsage: "<value>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    fieldCommand(fieldCPF),
			},
			{
				Name:      "phone",
				Usage:     "Format and validate a mobile phone number",
				ArgsUsage: "<value>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    fieldCommand(fieldPhone),
			},
			{
				Name:      "card",
				Usage:     "Format a card number and classify its brand",
				ArgsUsage: "<number>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    fieldCommand(fieldCard),
			},
			{
				Name:      "expiry",
				Usage:     "Format and validate a card expiry (MM/YY)",
				ArgsUsage: "<value>",
				Flags: []cli.Flag{
					jsonFlag,
					&cli.TimestampFlag{
						Name:   "now",
						Usage:  "Reference date (YYYY-MM-DD) instead of today",
						Layout: "2006-01-02",
					},
				},
				Action: fieldCommand(fieldExpiry),
			},
			{
				Name:      "email",
				Usage:     "Validate an email and suggest a provider for typos",
				ArgsUsage: "<address>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    fieldCommand(fieldEmail),
			},
			{
				Name:      "installments",
				Usage:     "List the installment plans for a total",
				ArgsUsage: "<total>",
				Flags:     []cli.Flag{jsonFlag},
				Action:    installmentsCommand,
			},
			{
				Name:      "currency",
				Usage:     "Format an amount as BRL",
				ArgsUsage: "<amount>",
				Action:    currencyCommand,
			},
			{
				Name:      "resolve",
				Usage:     "Resolve an access token against the token service",
				ArgsUsage: "<token>",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:     "endpoint",
						Aliases:  []string{"e"},
						Usage:    "Token validation URL",
						EnvVars:  []string{"CHECKOUT_TOKEN_ENDPOINT"},
						Required: true,
					},
					&cli.DurationFlag{
						Name:  "timeout",
						Usage: "Request timeout",
					},
				},
				Action: resolveCommand,
			},
		},
	}
}
