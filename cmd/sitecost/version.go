package main

import (
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/aretw0/sitecost"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print the version number of sitecost",
	Run: func(cmd *cobra.Command, args []string) {
		fmt.Printf("sitecost version %s\n", strings.TrimSpace(sitecost.Version))
	},
}

func init() {
	rootCmd.AddCommand(versionCmd)
}
