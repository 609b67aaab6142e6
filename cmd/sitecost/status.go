package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/aretw0/sitecost"
)

var (
	statusJSON    bool
	statusDiagram bool
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show workspace, ledger and sync state",
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		app := openApp()

		if statusDiagram {
			fmt.Println(app.Diagram())
			return
		}
		st := app.State().(sitecost.AppState)
		if statusJSON {
			printJSON(st)
			return
		}

		fmt.Println(bold.Render("Workspace"), st.Workspace.Root)
		fmt.Printf("  entries:    %d (%d change log records)\n", st.Ledger.Entries, st.Ledger.ChangeLogLength)
		if len(st.Ledger.Groups) > 0 {
			fmt.Printf("  groups:     %v\n", st.Ledger.Groups)
		}
		fmt.Printf("  last saved: %s\n", ago(st.Workspace.LastSave))

		fmt.Println(bold.Render("Remote"), remoteLabel(app))
		fmt.Printf("  adapter:    %s\n", st.Adapter)
		fmt.Printf("  state:      %s\n", stateStyle(st.Coordinator.State).Render(st.Coordinator.State.String()))
		fmt.Printf("  last push:  %s\n", ago(st.Workspace.LastPush))
		fmt.Printf("  last pull:  %s\n", ago(st.Workspace.LastPull))
		if st.Unsynced {
			fmt.Printf("  pending:    %s\n", bad.Render("local changes not pushed"))
		}
		fmt.Printf("  auto-sync:  %t\n", st.AutoSync)

		lock := "open"
		if st.Protected {
			lock = "locked"
			if st.Session {
				lock = "unlocked"
			}
		}
		fmt.Println(bold.Render("Editing"), lock)
	},
}

func init() {
	rootCmd.AddCommand(statusCmd)
	statusCmd.Flags().BoolVar(&statusJSON, "json", false, "Output in JSON format")
	statusCmd.Flags().BoolVar(&statusDiagram, "diagram", false, "Print a Mermaid diagram of the components")
}
