package main

import (
	"fmt"
	"os"

	"github.com/spf13/cobra"
)

// Version info set via ldflags at build time.
var (
	Version = "dev"
	Commit  = "none"
	Date    = "unknown"
)

const defaultConfigPath = "warwatch.yaml"

func newRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:          "warwatch",
		Short:        "Warwatch: battle-watch chat bot",
		Long:         "Warwatch watches game battles, motivates new citizens and answers lookups in chat.",
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringP("config", "c", defaultConfigPath, "path to warwatch config file")

	cmd.AddCommand(newVersionCmd())
	cmd.AddCommand(newStartCmd())
	cmd.AddCommand(newDBCmd())
	cmd.AddCommand(newOrgCmd())
	cmd.AddCommand(newWatchCmd())
	cmd.AddCommand(newCountryCmd())
	cmd.AddCommand(newUserCmd())
	cmd.AddCommand(newChannelCmd())
	return cmd
}

func newVersionCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "version",
		Short: "Print version information",
		Run: func(cmd *cobra.Command, args []string) {
			fmt.Fprintf(cmd.OutOrStdout(), "warwatch %s (commit: %s, built: %s)\n", Version, Commit, Date)
		},
	}
}

func configPath(cmd *cobra.Command) string {
	path, _ := cmd.Flags().GetString("config")
	if path == "" {
		return defaultConfigPath
	}
	return path
}

func execute(cmd *cobra.Command) int {
	if err := cmd.Execute(); err != nil {
		return 1
	}
	return 0
}

func main() {
	os.Exit(execute(newRootCmd()))
}
