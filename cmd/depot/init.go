// Init command: create the store directories and metadata schema.
package main

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/panelhost/depot/internal/store"
	"github.com/panelhost/depot/pkg/types"
)

var initCmd = &cobra.Command{
	Use:   "init",
	Short: "Initialize the package store",
	Long:  "Create the store directory, blob layout, and metadata database.",
	RunE:  runInit,
}

func runInit(cmd *cobra.Command, args []string) error {
	s, err := store.Open(types.Config{StoreDir: resolvedStoreDir})
	if err != nil {
		return fmt.Errorf("initialize store: %w", err)
	}
	if err := s.Close(); err != nil {
		return fmt.Errorf("close store: %w", err)
	}

	fmt.Fprintf(cmd.OutOrStdout(), "Initialized package store at %s\n", resolvedStoreDir)
	return nil
}
