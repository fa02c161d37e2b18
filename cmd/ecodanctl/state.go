package main

import (
	"encoding/json"
	"fmt"
	"os"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
)

var stateJSON bool

var stateCmd = &cobra.Command{
	Use:   "state",
	Short: "List the persisted energy counter state",
	Long:  `Displays the last accepted reading of every energy stream in the state store.`,
	Args:  cobra.NoArgs,
	RunE:  runState,
}

func init() {
	stateCmd.Flags().BoolVar(&stateJSON, "json", false, "Print the state as JSON")
	rootCmd.AddCommand(stateCmd)
}

func runState(cmd *cobra.Command, _ []string) error {
	cfg, err := loadConfig(cmd)
	if err != nil {
		return err
	}

	repo, err := openState(cfg)
	if err != nil {
		return err
	}
	defer repo.Close()

	states, err := repo.List(cmd.Context())
	if err != nil {
		return err
	}

	if stateJSON {
		enc := json.NewEncoder(os.Stdout)
		enc.SetIndent("", "  ")
		return enc.Encode(states)
	}

	if len(states) == 0 {
		fmt.Println("No energy state recorded yet")
		return nil
	}

	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	fmt.Fprintln(w, "STREAM\tDATE\tVALUE (kWh)\tUPDATED")
	for _, s := range states {
		updated := "-"
		if !s.UpdatedAt.IsZero() {
			updated = s.UpdatedAt.Local().Format(time.RFC3339)
		}
		fmt.Fprintf(w, "%s\t%s\t%.2f\t%s\n", s.Stream, s.LastDate, s.LastValue, updated)
	}
	return w.Flush()
}
