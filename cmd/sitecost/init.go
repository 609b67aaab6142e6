package main

import (
	"fmt"
	"log/slog"
	"os"

	"github.com/spf13/cobra"

	"github.com/aretw0/sitecost"
)

var initProtect bool

// initCmd represents the init command
var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize a sitecost workspace",
	Long:  `Create the .sitecost directory with default settings in the current directory (or --dir).`,
	Args:  cobra.NoArgs,
	Run: func(cmd *cobra.Command, args []string) {
		dir := workDir
		if dir == "" {
			cwd, err := os.Getwd()
			if err != nil {
				fatal("failed to get working directory", err)
			}
			dir = cwd
		}

		app, err := sitecost.Open(dir, sitecost.WithAutoInit(true), sitecost.WithLogger(slog.Default()))
		if err != nil {
			fatal("failed to initialize workspace", err)
		}

		if initProtect && !app.Gate.HasPassword() {
			password := promptSecret("New password: ")
			confirm := promptSecret("Confirm password: ")
			if err := app.SetPassword("", password, confirm); err != nil {
				fatal("failed to set password", err)
			}
		}

		fmt.Println("Initialized sitecost workspace in", app.Workspace.Dir())
		if !app.Settings().RemoteConfigured() {
			fmt.Println(dim.Render("Next: sitecost configure --owner <owner> --repo <repo> --token <token>"))
		}
	},
}

func init() {
	rootCmd.AddCommand(initCmd)
	initCmd.Flags().BoolVar(&initProtect, "protect", false, "Set a password guarding edits")
}
