package main

import (
	"encoding/json"
	"errors"
	"fmt"
	"text/tabwriter"
	"time"

	"github.com/spf13/cobra"
	"github.com/tidwall/gjson"

	"github.com/RowanDark/cipherlab/internal/history"
)

var errNoHistory = errors.New("history is disabled (--no-history or empty history_path)")

func newHistoryCmd(a *app) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded executions",
	}
	cmd.AddCommand(newHistoryListCmd(a), newHistoryShowCmd(a), newHistoryPurgeCmd(a))
	return cmd
}

func (a *app) historyStore() (*history.Store, error) {
	if _, err := a.service(); err != nil {
		return nil, err
	}
	if a.store == nil {
		return nil, errNoHistory
	}
	return a.store, nil
}

func newHistoryListCmd(a *app) *cobra.Command {
	var filter history.Filter
	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recent executions, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			entries, err := store.List(cmd.Context(), filter)
			if err != nil {
				return err
			}
			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 2, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tTIME\tOPERATION\tRESULT\tOUTPUT")
			for _, e := range entries {
				result := "ok"
				if e.Error != "" {
					result = e.ErrorKind
				}
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\n", e.ID, e.CreatedAt.Local().Format(time.DateTime), e.Operation, result, clip(e.Output, 40))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().StringVar(&filter.Operation, "operation", "", "only this operation")
	cmd.Flags().BoolVar(&filter.ErrorsOnly, "errors", false, "only failed executions")
	cmd.Flags().IntVarP(&filter.Limit, "limit", "n", 20, "maximum entries")
	return cmd
}

func newHistoryShowCmd(a *app) *cobra.Command {
	var field string
	cmd := &cobra.Command{
		Use:   "show <id>",
		Short: "Print one execution as JSON",
		Long: `Print one execution as JSON. With --field only the value at that
path is printed, for example --field output or --field params.shift.`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			entry, err := store.Get(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			if field != "" {
				data, err := json.Marshal(entry)
				if err != nil {
					return err
				}
				value := gjson.GetBytes(data, field)
				if !value.Exists() {
					return fmt.Errorf("entry %s has no field %q", entry.ID, field)
				}
				fmt.Fprintln(cmd.OutOrStdout(), value.String())
				return nil
			}
			enc := json.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent("", "  ")
			return enc.Encode(entry)
		},
	}
	cmd.Flags().StringVar(&field, "field", "", "print only the value at this JSON path")
	return cmd
}

func newHistoryPurgeCmd(a *app) *cobra.Command {
	var olderThan time.Duration
	cmd := &cobra.Command{
		Use:   "purge",
		Short: "Delete executions older than a duration",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			store, err := a.historyStore()
			if err != nil {
				return err
			}
			removed, err := store.Purge(cmd.Context(), time.Now().Add(-olderThan))
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "purged %d entries\n", removed)
			return nil
		},
	}
	cmd.Flags().DurationVar(&olderThan, "older-than", 30*24*time.Hour, "age threshold")
	return cmd
}

func clip(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n]) + "…"
}
