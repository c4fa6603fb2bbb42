// GC command: one garbage-collection pass over the store.
package main

import (
	"encoding/json"
	"fmt"
	"time"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/panelhost/depot/internal/gc"
)

var (
	flagGCOlderThan time.Duration
	flagGCDryRun    bool
)

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Remove stale packages and unreferenced content",
	Long: `Garbage-collect the store: packages not linked within the retention
window are removed, and content blobs no surviving package references are
deleted from disk.`,
	RunE: runGC,
}

func init() {
	gcCmd.Flags().DurationVar(&flagGCOlderThan, "older-than", 0, "retention window (default: config gc_retention, else 720h)")
	gcCmd.Flags().BoolVar(&flagGCDryRun, "dry-run", false, "report what would be removed without mutating")
}

func runGC(cmd *cobra.Command, args []string) error {
	olderThan := flagGCOlderThan
	if olderThan == 0 {
		olderThan = resolvedGCRetention
	}

	result, err := gc.Run(cmd.Context(), resolvedStoreDir, gc.Options{
		OlderThan: olderThan,
		DryRun:    flagGCDryRun,
		Logger:    logrus.NewEntry(log),
	})
	if err != nil {
		return fmt.Errorf("garbage collection: %w", err)
	}

	if flagJSON {
		out, err := json.MarshalIndent(result, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	verb := "removed"
	if flagGCDryRun {
		verb = "would remove"
	}
	fmt.Fprintf(cmd.OutOrStdout(), "%s %d packages, %d files, %d bytes\n",
		verb, result.PackagesRemoved, result.FilesRemoved, result.BytesFreed)
	return nil
}
