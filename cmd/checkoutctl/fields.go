package main

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	"github.com/urfave/cli/v2"

	"github.com/siege-masterclass/checkout/internal/cards"
	"github.com/siege-masterclass/checkout/internal/fields"
	"github.com/siege-masterclass/checkout/internal/installments"
)

// fieldReport is what the field commands print.
type fieldReport struct {
	Value      string        `json:"value"`
	OK         bool          `json:"ok"`
	Reason     fields.Reason `json:"reason,omitempty"`
	Message    string        `json:"message,omitempty"`
	Brand      cards.Brand   `json:"brand,omitempty"`
	CVV        string        `json:"cvv,omitempty"`
	Suggestion string        `json:"suggestion,omitempty"`
}

type fieldFunc func(c *cli.Context, raw string) fieldReport

func fieldCommand(fn fieldFunc) cli.ActionFunc {
	return func(c *cli.Context) error {
		if c.NArg() != 1 {
			return fmt.Errorf("%s expects exactly one value", c.Command.Name)
		}
		report := fn(c, c.Args().First())
		report.Message = report.Reason.Message()
		return printReport(c, report)
	}
}

func fieldCPF(_ *cli.Context, raw string) fieldReport {
	value := fields.FormatCPF(raw, "")
	return withResult(fieldReport{Value: value}, fields.ValidateCPF(value))
}

func fieldPhone(_ *cli.Context, raw string) fieldReport {
	value := fields.FormatPhone(raw, "")
	return withResult(fieldReport{Value: value}, fields.ValidatePhone(value))
}

func fieldCard(_ *cli.Context, raw string) fieldReport {
	value := fields.FormatCardNumber(raw, "")
	brand := cards.Classify(value)
	report := fieldReport{
		Value: value,
		Brand: brand,
		CVV:   fmt.Sprintf("%s (%d)", cards.CVVLabel(brand), cards.CVVLength(brand)),
	}
	return withResult(report, fields.ValidateCardNumber(value))
}

func fieldExpiry(c *cli.Context, raw string) fieldReport {
	now := time.Now()
	if ts := c.Timestamp("now"); ts != nil {
		now = *ts
	}
	value := fields.FormatExpiry(raw, "")
	return withResult(fieldReport{Value: value}, fields.ValidateExpiry(value, now))
}

func fieldEmail(_ *cli.Context, raw string) fieldReport {
	value := strings.ToLower(strings.TrimSpace(raw))
	report := fieldReport{
		Value:      value,
		Suggestion: fields.SuggestEmailDomain(fields.EmailDomain(value)),
	}
	return withResult(report, fields.ValidateEmail(value))
}

func withResult(report fieldReport, result fields.Result) fieldReport {
	report.OK = result.OK
	report.Reason = result.Reason
	return report
}

func printReport(c *cli.Context, report fieldReport) error {
	out := c.App.Writer
	if c.Bool("json") {
		enc := json.NewEncoder(out)
		enc.SetIndent("", "  ")
		return enc.Encode(report)
	}

	status := "ok"
	if !report.OK {
		status = fmt.Sprintf("invalid (%s: %s)", report.Reason, report.Message)
	}
	fmt.Fprintf(out, "%s\t%s\n", report.Value, status)
	if report.Brand != "" {
		fmt.Fprintf(out, "brand\t%s\ncvv\t%s\n", report.Brand, report.CVV)
	}
	if report.Suggestion != "" {
		fmt.Fprintf(out, "did you mean\t%s\n", report.Suggestion)
	}
	return nil
}

func parseAmount(raw string) (float64, error) {
	amount, err := strconv.ParseFloat(strings.ReplaceAll(strings.TrimSpace(raw), ",", "."), 64)
	if err != nil {
		return 0, fmt.Errorf("invalid amount %q", raw)
	}
	return amount, nil
}

func installmentsCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("installments expects the total")
	}
	total, err := parseAmount(c.Args().First())
	if err != nil {
		return err
	}
	if total <= 0 {
		return fmt.Errorf("total must be positive")
	}

	plans := installments.Calculate(total)
	out := c.App.Writer
	if c.Bool("json") {
		return json.NewEncoder(out).Encode(plans)
	}
	for _, plan := range plans {
		fmt.Fprintf(out, "%s\ttotal %s\n", installments.Label(plan), fields.FormatCurrency(installments.Total(plan)))
	}
	return nil
}

func currencyCommand(c *cli.Context) error {
	if c.NArg() != 1 {
		return fmt.Errorf("currency expects the amount")
	}
	amount, err := parseAmount(c.Args().First())
	if err != nil {
		return err
	}
	fmt.Fprintln(c.App.Writer, fields.FormatCurrency(amount))
	return nil
}
