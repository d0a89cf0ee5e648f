package cmd

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/shopspring/decimal"
	"golang.org/x/text/language"
	"golang.org/x/text/message"

	"github.com/skwf/portal/apiclient"
	"github.com/skwf/portal/guard"
)

var printer = message.NewPrinter(language.English)

// formatPKR renders an amount in rupees with digit grouping.
func formatPKR(d decimal.Decimal) string {
	if d.IsInteger() {
		return printer.Sprintf("PKR %d", d.IntPart())
	}
	return printer.Sprintf("PKR %.2f", d.InexactFloat64())
}

func formatDate(t *time.Time) string {
	if t == nil {
		return "-"
	}
	return t.Local().Format("2006-01-02")
}

func orDash(s string) string {
	if s == "" {
		return "-"
	}
	return s
}

func newTable(w io.Writer) *tabwriter.Writer {
	return tabwriter.NewWriter(w, 0, 4, 2, ' ', 0)
}

func printNext(w io.Writer, next guard.Area) {
	fmt.Fprintf(w, "next: %s\n", next)
}

func printPayment(w io.Writer, p *apiclient.Payment) {
	fmt.Fprintf(w, "Status:   %s\n", apiclient.StatusOf(p))
	if p == nil {
		return
	}
	fmt.Fprintf(w, "ID:       %s\n", p.ID)
	fmt.Fprintf(w, "Amount:   %s\n", formatPKR(p.Amount))
	fmt.Fprintf(w, "Created:  %s\n", formatDate(p.CreatedAt))
	if p.AdminNotes != "" {
		fmt.Fprintf(w, "Notes:    %s\n", p.AdminNotes)
	}
	if p.CreditHours != nil {
		fmt.Fprintf(w, "Credit:   %d hours\n", *p.CreditHours)
	}
}

// readFile loads an upload from disk. An empty path is an empty File.
func readFile(path string) (apiclient.File, error) {
	if path == "" {
		return apiclient.File{}, nil
	}
	return apiclient.ReadFile(path)
}

func readFiles(paths []string) ([]apiclient.File, error) {
	out := make([]apiclient.File, 0, len(paths))
	for _, p := range paths {
		f, err := readFile(p)
		if err != nil {
			return nil, err
		}
		out = append(out, f)
	}
	return out, nil
}
