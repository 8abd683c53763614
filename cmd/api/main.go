package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

var (
	configPath string
	envPath    string
)

var rootCmd = &cobra.Command{
	Use:   "crossfade",
	Short: "crossfade - a conversational music recommendation service",
	Long: `crossfade turns free-text listening requests into catalog searches.

It asks a few clarifying questions when a request is vague, then returns a
ranked track list and optionally a playlist.

Run without a subcommand to start the HTTP server.`,
	SilenceUsage: true,
	RunE: func(cmd *cobra.Command, args []string) error {
		return runServe(cmd)
	},
}

func init() {
	rootCmd.PersistentFlags().StringVar(&configPath, "config", "./crossfade.toml", "path to the TOML configuration file")
	rootCmd.PersistentFlags().StringVar(&envPath, "env-file", ".env", "optional .env file loaded before environment overrides")
	rootCmd.AddCommand(serveCmd, askCmd)
}

func main() {
	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
