// Prune command: drop registry entries for consumers that no longer exist.
package main

import (
	"fmt"
	"path/filepath"

	"github.com/sirupsen/logrus"
	"github.com/spf13/cobra"

	"github.com/panelhost/depot/internal/registry"
)

// registryFileName is the consumer registry document under the store
// directory.
const registryFileName = "consumers.json"

var pruneCmd = &cobra.Command{
	Use:   "prune",
	Short: "Remove registry entries for missing consumers",
	Long: `Prune decodes each registered consumer key and removes entries whose
backing panel or worker path no longer exists on disk.`,
	RunE: runPrune,
}

func runPrune(cmd *cobra.Command, args []string) error {
	reg, err := registry.Open(
		filepath.Join(resolvedStoreDir, registryFileName),
		registry.WithLogger(logrus.NewEntry(log)),
	)
	if err != nil {
		return fmt.Errorf("open registry: %w", err)
	}

	removed := reg.PruneStaleConsumers()
	if err := reg.Close(); err != nil {
		return fmt.Errorf("persist registry: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "pruned %d stale consumers\n", removed)
	return nil
}
