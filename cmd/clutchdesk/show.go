package main

import (
	"context"
	"encoding/json"
	"io"

	"github.com/go-faster/errors"
	"github.com/spf13/cobra"

	"github.com/Joseda-hg/clutchdesk/internal/app"
	"github.com/Joseda-hg/clutchdesk/internal/gateway"
)

var showCmd = &cobra.Command{
	Use:       "show <employees|appointments|inventory|listings> <id>",
	Short:     "Print one record as JSON",
	Args:      cobra.ExactArgs(2),
	ValidArgs: []string{"employees", "appointments", "inventory", "listings"},
	RunE:      runShow,
}

func runShow(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	out := cmd.OutOrStdout()
	id := args[1]
	switch args[0] {
	case "employees":
		return printRecord(ctx, out, a.Resources.Employees, id)
	case "appointments":
		return printRecord(ctx, out, a.Resources.Appointments, id)
	case "inventory":
		return printRecord(ctx, out, a.Resources.Inventory, id)
	case "listings":
		return printRecord(ctx, out, a.Resources.Listings, id)
	default:
		return errors.Errorf("unknown collection %q", args[0])
	}
}

func printRecord[T any](ctx context.Context, out io.Writer, resource *gateway.Resource[T], id string) error {
	record, err := resource.Get(ctx, id)
	if err != nil {
		return err
	}
	encoder := json.NewEncoder(out)
	encoder.SetIndent("", "  ")
	return encoder.Encode(record)
}
