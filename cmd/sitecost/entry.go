package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/sitecost/pkg/core"
)

var (
	entryDate     string
	entryCategory string
	entryAmount   string
	entryNote     string
	entryGroup    string
)

var addCmd = &cobra.Command{
	Use:   "add",
	Short: "Record a cost entry",
	Example: `  sitecost add --category Cement --amount 1200 --group Ground
  sitecost add -c Steel -a 850.50 -g First --date yesterday --note "12mm bars"`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		authorize(app, "add")

		date, err := parseDate(entryDate)
		if err != nil {
			fatal("failed to add entry", err)
		}
		e, err := core.NewEntry(date, entryCategory, entryAmount, entryNote, entryGroup)
		if err != nil {
			fatal("failed to add entry", err)
		}
		e, err = app.Service.AddEntry(e)
		if err != nil {
			fatal("failed to add entry", err)
		}

		success("Added %s %s on %s (%s)", e.Category, money(app.Settings().Currency, e.Amount), e.Date, e.ID)
		saveAndSync(app)
	},
}

var editCmd = &cobra.Command{
	Use:   "edit <id>",
	Short: "Change fields of an existing entry",
	Long:  `Only the flags given are changed; everything else keeps its current value.`,
	Args:  cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		authorize(app, "edit")

		e, err := app.Service.GetEntry(args[0])
		if err != nil {
			fatal("failed to edit entry", err)
		}

		flags := cmd.Flags()
		if flags.Changed("date") {
			date, err := parseDate(entryDate)
			if err != nil {
				fatal("failed to edit entry", err)
			}
			if e.Date, err = core.ParseDate(date); err != nil {
				fatal("failed to edit entry", err)
			}
		}
		if flags.Changed("amount") {
			if e.Amount, err = core.ParseAmount(entryAmount); err != nil {
				fatal("failed to edit entry", err)
			}
		}
		if flags.Changed("category") {
			e.Category = strings.TrimSpace(entryCategory)
		}
		if flags.Changed("note") {
			e.Note = strings.TrimSpace(entryNote)
		}
		if flags.Changed("group") {
			e.Group = strings.TrimSpace(entryGroup)
		}

		if _, err := app.Service.UpdateEntry(e); err != nil {
			fatal("failed to edit entry", err)
		}
		success("Updated %s", e.ID)
		saveAndSync(app)
	},
}

var deleteYes bool

var deleteCmd = &cobra.Command{
	Use:     "delete <id>",
	Aliases: []string{"rm"},
	Short:   "Delete an entry",
	Args:    cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		authorize(app, "delete")

		e, err := app.Service.GetEntry(args[0])
		if err != nil {
			fatal("failed to delete entry", err)
		}
		if !deleteYes {
			answer := promptLine(fmt.Sprintf("Delete %s %s from %s? [y/N] ", e.Category, money(app.Settings().Currency, e.Amount), e.Date))
			if !strings.EqualFold(strings.TrimSpace(answer), "y") {
				fmt.Println("Aborted.")
				return
			}
		}

		if _, err := app.Service.DeleteEntry(e.ID); err != nil {
			fatal("failed to delete entry", err)
		}
		success("Deleted %s", e.ID)
		saveAndSync(app)
	},
}

func init() {
	rootCmd.AddCommand(addCmd, editCmd, deleteCmd)

	for _, c := range []*cobra.Command{addCmd, editCmd} {
		c.Flags().StringVarP(&entryDate, "date", "d", "", "Date (YYYY-MM-DD, or e.g. \"yesterday\"; default today)")
		c.Flags().StringVarP(&entryCategory, "category", "c", "", "Category, e.g. Cement")
		c.Flags().StringVarP(&entryAmount, "amount", "a", "", "Amount, greater than zero")
		c.Flags().StringVarP(&entryNote, "note", "n", "", "Free-text note")
		c.Flags().StringVarP(&entryGroup, "group", "g", "", "Group tag, e.g. a floor or phase")
	}
	addCmd.MarkFlagRequired("category")
	addCmd.MarkFlagRequired("amount")

	deleteCmd.Flags().BoolVarP(&deleteYes, "yes", "y", false, "Do not ask for confirmation")
}
