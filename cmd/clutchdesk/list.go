package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/url"
	"slices"
	"strconv"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"

	"github.com/Joseda-hg/clutchdesk/internal/app"
	"github.com/Joseda-hg/clutchdesk/internal/gateway"
	"github.com/Joseda-hg/clutchdesk/internal/model"
	"github.com/Joseda-hg/clutchdesk/internal/theme"
	"github.com/Joseda-hg/clutchdesk/internal/viewstate"
)

var (
	listQuery  string
	listStatus string
	listJSON   bool
	listPage   int
	listLimit  int
)

var listCmd = &cobra.Command{
	Use:       "list <employees|appointments|inventory|listings>",
	Short:     "Print one collection",
	Args:      cobra.MatchAll(cobra.ExactArgs(1), cobra.OnlyValidArgs),
	ValidArgs: []string{"employees", "appointments", "inventory", "listings"},
	RunE:      runList,
}

func init() {
	listCmd.Flags().StringVarP(&listQuery, "query", "q", "", "search text")
	listCmd.Flags().StringVarP(&listStatus, "status", "s", "", "status filter")
	listCmd.Flags().BoolVar(&listJSON, "json", false, "print records as JSON")
	listCmd.Flags().IntVar(&listPage, "page", 0, "print only this page")
	listCmd.Flags().IntVar(&listLimit, "limit", 0, "records per page (server default 20)")
}

var headerStyle = lipgloss.NewStyle().Bold(true).Padding(0, 1)
var cellStyle = lipgloss.NewStyle().Padding(0, 1)

// collectionSource is what list reads one collection through.
type collectionSource[T model.Record] struct {
	ctrl     *viewstate.Controller[T]
	resource *gateway.Resource[T]
}

func runList(cmd *cobra.Command, args []string) error {
	ctx := cmd.Context()
	a, err := app.Open(ctx, cfg, logger)
	if err != nil {
		return err
	}
	defer a.Close()

	params := url.Values{}
	if listQuery != "" {
		params.Set("q", listQuery)
	}
	if listStatus != "" {
		params.Set("status", listStatus)
	}
	if listPage > 0 {
		params.Set("page", strconv.Itoa(listPage))
	}
	if listLimit > 0 {
		params.Set("limit", strconv.Itoa(listLimit))
	}
	criteria := viewstate.Criteria{Query: listQuery, Status: listStatus}
	out := cmd.OutOrStdout()

	switch args[0] {
	case "employees":
		return printCollection(ctx, out, collectionSource[model.Employee]{a.Controllers.Employees, a.Resources.Employees}, params, criteria,
			[]string{"Name", "Email", "Department", "Status"},
			func(e model.Employee) []string {
				return []string{e.FullName(), e.Email, e.Department, e.Status}
			})
	case "appointments":
		return printCollection(ctx, out, collectionSource[model.Appointment]{a.Controllers.Appointments, a.Resources.Appointments}, params, criteria,
			[]string{"Customer", "Service", "Scheduled", "Status"},
			func(ap model.Appointment) []string {
				return []string{ap.CustomerName, ap.ServiceType, humanize.Time(ap.ScheduledAt), ap.Status}
			})
	case "inventory":
		return printCollection(ctx, out, collectionSource[model.InventoryItem]{a.Controllers.Inventory, a.Resources.Inventory}, params, criteria,
			[]string{"SKU", "Name", "Quantity", "Price", "Status"},
			func(i model.InventoryItem) []string {
				return []string{i.SKU, i.Name, humanize.Comma(i.Quantity), "$" + i.Price.StringFixed(2), i.Status}
			})
	default:
		return printCollection(ctx, out, collectionSource[model.Listing]{a.Controllers.Listings, a.Resources.Listings}, params, criteria,
			[]string{"Type", "Title", "Status"},
			func(l model.Listing) []string {
				return []string{string(l.Kind), l.Title(), l.StatusValue()}
			})
	}
}

// printCollection loads once with the server-side filter, then applies the
// same criteria locally. With page or limit set it asks for that one page
// instead and reports where it sits.
func printCollection[T model.Record](
	ctx context.Context,
	out io.Writer,
	source collectionSource[T],
	params url.Values,
	criteria viewstate.Criteria,
	headers []string,
	columns func(T) []string,
) error {
	var items []T
	var page *gateway.Pagination
	if params.Has("page") || params.Has("limit") {
		result, err := source.resource.ListPage(ctx, params)
		if err != nil {
			return err
		}
		items, page = result.Items, &result.Pagination
	} else {
		if err := source.ctrl.Load(ctx, params); err != nil {
			return err
		}
		items = source.ctrl.Snapshot().Data
	}
	items = viewstate.Apply(items, criteria)

	if listJSON {
		encoder := json.NewEncoder(out)
		encoder.SetIndent("", "  ")
		return encoder.Encode(items)
	}

	rows := make([][]string, 0, len(items))
	for _, item := range items {
		rows = append(rows, columns(item))
	}
	statusCol := slices.Index(headers, "Status")
	tones := theme.New(out)
	t := table.New().
		Border(lipgloss.NormalBorder()).
		Headers(headers...).
		Rows(rows...).
		StyleFunc(func(row, col int) lipgloss.Style {
			if row == table.HeaderRow {
				return headerStyle
			}
			if col == statusCol && row >= 0 && row < len(rows) {
				return cellStyle.Inherit(tones.StatusStyle(rows[row][col]))
			}
			return cellStyle
		})
	fmt.Fprintln(out, t.Render())
	if page != nil {
		fmt.Fprintf(out, "page %d of %d, %s %s\n", page.Page, max(page.Pages, 1), humanize.Comma(int64(page.Total)), source.ctrl.Name())
		return nil
	}
	fmt.Fprintf(out, "%s %s\n", humanize.Comma(int64(len(items))), source.ctrl.Name())
	return nil
}
