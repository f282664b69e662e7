package main

import (
	"fmt"
	"text/tabwriter"

	"github.com/dustin/go-humanize"
	"github.com/spf13/cobra"
)

func newWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch",
		Short: "Inspect persisted battle watches",
	}
	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List persisted battle watches",
		RunE: func(cmd *cobra.Command, args []string) error {
			return runWatchList(cmd, configPath(cmd))
		},
	})
	return cmd
}

func runWatchList(cmd *cobra.Command, path string) error {
	_, st, err := openStore(path)
	if err != nil {
		return err
	}
	watches, err := st.Watches()
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()
	if len(watches) == 0 {
		fmt.Fprintln(out, "No battles are being watched.")
		return nil
	}

	w := tabwriter.NewWriter(out, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "SERVER\tBATTLE\tCOUNTRY\tSIDE\tMODE\tCHANNEL\tBY\tSINCE\tLABEL")
	for _, wa := range watches {
		fmt.Fprintf(w, "%s\t%d\t%s\t%s\t%s\t%s\t%s\t%s\t%s\n",
			wa.Server.Name, wa.BattleID, wa.Country.Name, wa.Side, wa.Mode,
			wa.Channel.Name, wa.CreatedBy, humanize.Time(wa.CreatedAt), wa.Label)
	}
	return w.Flush()
}
