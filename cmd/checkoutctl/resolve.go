package main

import (
	"encoding/json"
	"fmt"

	"github.com/urfave/cli/v2"

	"github.com/siege-masterclass/checkout/internal/gateway"
)

func resolveCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("resolve expects the token")
	}

	client, err := gateway.NewClient(gateway.Options{
		TokenURL: c.String("endpoint"),
		Timeout:  c.Duration("timeout"),
	})
	if err != nil {
		return err
	}

	resp, err := client.ResolveToken(c.Context, c.Args().First())
	if err != nil {
		return fmt.Errorf("resolve token: %w", err)
	}

	enc := json.NewEncoder(c.App.Writer)
	enc.SetIndent("", "  ")
	if err := enc.Encode(resp); err != nil {
		return err
	}
	if !resp.Usable() {
		return cli.Exit("token is not usable", 2)
	}
	return nil
}
