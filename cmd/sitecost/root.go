package main

import (
	"fmt"
	"io"
	"log/slog"
	"os"

	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"
)

var (
	verbose bool
	logFile string
	workDir string
	adapter string
)

// rootCmd represents the base command when called without any subcommands
var rootCmd = &cobra.Command{
	Use:   "sitecost",
	Short: "Track construction costs and keep them in sync with a remote repository",
	Long: `sitecost records dated cost entries per floor or phase, keeps an audit
trail of every change and synchronises both with a GitHub repository,
refusing to overwrite edits made from another device.`,
	SilenceUsage: true,
	PersistentPreRun: func(cmd *cobra.Command, args []string) {
		level := slog.LevelInfo
		if verbose {
			level = slog.LevelDebug
		}

		var out io.Writer = os.Stderr
		if logFile != "" {
			out = io.MultiWriter(os.Stderr, &lumberjack.Logger{
				Filename:   logFile,
				MaxSize:    10, // megabytes
				MaxBackups: 3,
				MaxAge:     28, // days
			})
		}
		logger := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level}))
		slog.SetDefault(logger)
	},
}

// Execute adds all child commands to the root command and sets flags appropriately.
// This is called by main.main().
func Execute() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

func init() {
	rootCmd.PersistentFlags().BoolVarP(&verbose, "verbose", "v", false, "Enable verbose logging")
	rootCmd.PersistentFlags().StringVar(&logFile, "log-file", "", "Also write logs to this file (rotated)")
	rootCmd.PersistentFlags().StringVarP(&workDir, "dir", "C", "", "Workspace directory (default: nearest .sitecost above the current directory)")
	rootCmd.PersistentFlags().StringVar(&adapter, "adapter", "", "Remote adapter override (github, fs, memory)")
}
