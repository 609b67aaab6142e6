package main

import (
	"encoding/json"
	"fmt"
	"os"
	"strconv"

	"github.com/spf13/cobra"

	"github.com/aretw0/sitecost/pkg/core"
	"github.com/aretw0/sitecost/pkg/query"
)

var (
	listJSON     bool
	listGroup    string
	listCategory string
	listFrom     string
	listTo       string
	listSearch   string
	listSort     string
	listPage     int
	listSize     int
)

func printJSON(v any) {
	encoder := json.NewEncoder(os.Stdout)
	encoder.SetIndent("", "  ")
	if err := encoder.Encode(v); err != nil {
		fatal("failed to encode JSON", err)
	}
}

func listFilter() query.Filter {
	f := query.Filter{Group: listGroup, Category: listCategory, Text: listSearch}
	var err error
	if listFrom != "" {
		if f.From, err = parseFilterDate(listFrom); err != nil {
			fatal("invalid --from", err)
		}
	}
	if listTo != "" {
		if f.To, err = parseFilterDate(listTo); err != nil {
			fatal("invalid --to", err)
		}
	}
	if err := f.Validate(); err != nil {
		fatal("invalid filter", err)
	}
	return f
}

func parseFilterDate(s string) (core.Date, error) {
	date, err := parseDate(s)
	if err != nil {
		return core.Date{}, err
	}
	return core.ParseDate(date)
}

var listCmd = &cobra.Command{
	Use:     "list",
	Aliases: []string{"ls"},
	Short:   "List cost entries",
	Example: `  sitecost list --group Ground --sort -amount
  sitecost list --category "cem*" --from "last month"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()

		sort, err := query.ParseSort(listSort)
		if err != nil {
			fatal("invalid --sort", err)
		}
		entries := sort.Apply(query.Select(app.Service.Entries(), listFilter()))
		page := query.Paginate(entries, listPage, listSize)

		if listJSON {
			printJSON(page)
			return
		}
		if page.Total == 0 {
			fmt.Println(dim.Render("No entries."))
			return
		}

		currency := app.Settings().Currency
		rows := make([][]string, 0, len(page.Items))
		for _, e := range page.Items {
			rows = append(rows, []string{e.ID, e.Date.String(), e.Group, e.Category, money(currency, e.Amount), e.Note})
		}
		fmt.Println(newTable([]string{"ID", "Date", "Group", "Category", "Amount", "Note"}, rows, 4))
		fmt.Println(dim.Render(fmt.Sprintf("Page %d of %d, %d entries", page.Number, page.Pages, page.Total)))
	},
}

var totalsCmd = &cobra.Command{
	Use:   "totals",
	Short: "Show spend per group",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		totals := query.Summarize(query.Select(app.Service.Entries(), listFilter()))

		if listJSON {
			printJSON(totals)
			return
		}

		currency := app.Settings().Currency
		rows := make([][]string, 0, len(totals.Groups)+1)
		for _, g := range totals.Groups {
			name := g.Group
			if name == "" {
				name = dim.Render("(none)")
			}
			rows = append(rows, []string{name, strconv.Itoa(g.Count), money(currency, g.Total)})
		}
		rows = append(rows, []string{bold.Render("Total"), strconv.Itoa(totals.Count), bold.Render(money(currency, totals.Total))})
		fmt.Println(newTable([]string{"Group", "Entries", "Spend"}, rows, 1, 2))
	},
}

var analyzeCmd = &cobra.Command{
	Use:   "analyze <category>",
	Short: "Break down the spend on one category",
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		a := query.AnalyzeCategory(app.Service.Entries(), args[0])

		if listJSON {
			printJSON(a)
			return
		}
		if a.Count == 0 {
			fmt.Printf("No entries for %s.\n", a.Category)
			return
		}

		currency := app.Settings().Currency
		rows := make([][]string, 0, len(a.Groups))
		for _, g := range a.Groups {
			rows = append(rows, []string{g.Group, strconv.Itoa(g.Count), money(currency, g.Total)})
		}
		fmt.Println(accent.Render(a.Category))
		fmt.Println(newTable([]string{"Group", "Entries", "Spend"}, rows, 1, 2))
		fmt.Printf("%s across %d entries, %.1f%% of all spend\n", money(currency, a.Total), a.Count, a.Percentage)
	},
}

var logAction string

var logCmd = &cobra.Command{
	Use:   "log",
	Short: "Show the change log, newest first",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()

		records := app.Service.ChangeLog()
		if logAction != "" {
			action := core.Action(logAction)
			if !action.Valid() {
				fatal("invalid --action", fmt.Errorf("%q is not one of create, update, delete", logAction))
			}
			records = app.Ledger.ChangeLog().Filter(action)
		}

		if listJSON {
			printJSON(records)
			return
		}
		if len(records) == 0 {
			fmt.Println(dim.Render("No changes recorded."))
			return
		}

		rows := make([][]string, 0, len(records))
		for _, r := range records {
			ts := r.Timestamp
			rows = append(rows, []string{ago(&ts), string(r.Action), r.EntryID, r.Details})
		}
		fmt.Println(newTable([]string{"When", "Action", "Entry", "Details"}, rows))
	},
}

func init() {
	rootCmd.AddCommand(listCmd, totalsCmd, analyzeCmd, logCmd)

	for _, c := range []*cobra.Command{listCmd, totalsCmd, analyzeCmd, logCmd} {
		c.Flags().BoolVar(&listJSON, "json", false, "Output in JSON format")
	}
	for _, c := range []*cobra.Command{listCmd, totalsCmd} {
		c.Flags().StringVarP(&listGroup, "group", "g", "", "Only this group")
		c.Flags().StringVarP(&listCategory, "category", "c", "", "Category pattern, e.g. \"cem*\" or \"{sand,gravel}\"")
		c.Flags().StringVar(&listFrom, "from", "", "Earliest date (inclusive)")
		c.Flags().StringVar(&listTo, "to", "", "Latest date (inclusive)")
		c.Flags().StringVarP(&listSearch, "search", "s", "", "Text in category, note or group")
	}
	listCmd.Flags().StringVar(&listSort, "sort", "date", "Sort by date, amount or category; prefix with - for descending")
	listCmd.Flags().IntVar(&listPage, "page", 1, "Page number")
	listCmd.Flags().IntVar(&listSize, "size", 0, "Entries per page (0 shows all)")
	logCmd.Flags().StringVar(&logAction, "action", "", "Only create, update or delete records")
}
