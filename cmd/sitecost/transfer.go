package main

import (
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/sitecost/pkg/transfer"
)

var (
	exportFormat string
	exportOutput string
)

var exportCmd = &cobra.Command{
	Use:   "export",
	Short: "Export entries and the change log",
	Long: `Write the ledger as JSON ({data, changeLog, exportDate}), YAML, or CSV
(entries only). The JSON form can be read back with 'sitecost import'.`,
	Args: cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		b := app.Export()

		var out io.Writer = os.Stdout
		if exportOutput != "" && exportOutput != "-" {
			f, err := os.Create(exportOutput)
			if err != nil {
				fatal("failed to create export file", err)
			}
			defer f.Close()
			out = f
		}

		var err error
		switch strings.ToLower(exportFormat) {
		case "json":
			err = transfer.Encode(out, b)
		case "yaml", "yml":
			err = transfer.WriteYAML(out, b)
		case "csv":
			err = transfer.WriteCSV(out, b.Entries)
		default:
			err = fmt.Errorf("unknown format %q (want json, yaml or csv)", exportFormat)
		}
		if err != nil {
			fatal("failed to export", err)
		}
		if out != os.Stdout {
			success("Exported %d entries and %d change log records to %s", len(b.Entries), len(b.ChangeLog), exportOutput)
		}
	},
}

var importCmd = &cobra.Command{
	Use:   "import <file>",
	Short: "Replace the ledger with an exported file",
	Long: `Read a JSON export. Entries are replaced when the file has a "data" field
and the change log when it has a "changeLog" field. Files written by older
versions, with entries keyed by floor, are converted to groups.`,
	Args: cobra.ExactArgs(1),
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()
		authorize(app, "import")

		var in io.Reader = os.Stdin
		if args[0] != "-" {
			f, err := os.Open(args[0])
			if err != nil {
				fatal("failed to open import file", err)
			}
			defer f.Close()
			in = f
		}

		b, err := transfer.Decode(in)
		if err != nil {
			fatal("failed to import", err)
		}
		if err := app.Import(b); err != nil {
			fatal("failed to import", err)
		}

		switch {
		case b.HasEntries && b.HasChangeLog:
			success("Imported %d entries and %d change log records", len(b.Entries), len(b.ChangeLog))
		case b.HasEntries:
			success("Imported %d entries", len(b.Entries))
		case b.HasChangeLog:
			success("Imported %d change log records", len(b.ChangeLog))
		default:
			fmt.Println("Nothing to import.")
			return
		}
		if b.Legacy {
			fmt.Println(dim.Render("Converted floor-keyed entries to groups."))
		}
		saveAndSync(app)
	},
}

func init() {
	rootCmd.AddCommand(exportCmd, importCmd)
	exportCmd.Flags().StringVarP(&exportFormat, "format", "f", "json", "Output format: json, yaml or csv")
	exportCmd.Flags().StringVarP(&exportOutput, "output", "o", "", "Output file (default stdout)")
}
