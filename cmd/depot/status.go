// Status command: summarize store contents.
package main

import (
	"encoding/json"
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelhost/depot/internal/store"
	"github.com/panelhost/depot/pkg/types"
)

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show store statistics",
	RunE:  runStatus,
}

func runStatus(cmd *cobra.Command, args []string) error {
	s, err := store.Open(types.Config{StoreDir: resolvedStoreDir})
	if err != nil {
		return fmt.Errorf("open store: %w", err)
	}
	defer s.Close()

	stats, err := s.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("read stats: %w", err)
	}

	if flagJSON {
		out, err := json.MarshalIndent(stats, "", "  ")
		if err != nil {
			return err
		}
		fmt.Fprintln(cmd.OutOrStdout(), string(out))
		return nil
	}

	fmt.Fprintf(cmd.OutOrStdout(), "store: %s\n", resolvedStoreDir)
	fmt.Fprintf(cmd.OutOrStdout(), "packages: %d\nfiles: %d\nblob bytes: %d\n",
		stats.Packages, stats.Files, stats.BlobBytes)
	return nil
}
