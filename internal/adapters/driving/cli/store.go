package cli

import (
	"fmt"

	"github.com/spf13/cobra"
)

var storeCmd = &cobra.Command{
	Use:   "store",
	Short: "Inspect and maintain the vector store",
}

var storeStatsCmd = &cobra.Command{
	Use:   "stats",
	Short: "Show vector store statistics",
	Args:  cobra.NoArgs,
	RunE:  runStoreStats,
}

var storeDeleteCmd = &cobra.Command{
	Use:   "delete [document-id]",
	Short: "Remove every chunk of a document",
	Args:  cobra.ExactArgs(1),
	RunE:  runStoreDelete,
}

var storeVerifyCmd = &cobra.Command{
	Use:   "verify",
	Short: "Re-read the store and check every record",
	Long: `Re-reads durable storage from disk. Fails if the schema version is
unrecognised or a record is missing required fields.`,
	Args: cobra.NoArgs,
	RunE: runStoreVerify,
}

func init() {
	storeCmd.AddCommand(storeStatsCmd)
	storeCmd.AddCommand(storeDeleteCmd)
	storeCmd.AddCommand(storeVerifyCmd)
	rootCmd.AddCommand(storeCmd)
}

func runStoreStats(cmd *cobra.Command, _ []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}

	cmd.Println("Vector Store")
	cmd.Println("============")
	cmd.Printf("  Backend:   %s\n", stats.Backend)
	if stats.Path != "" {
		cmd.Printf("  Path:      %s\n", stats.Path)
	}
	cmd.Printf("  Documents: %d\n", stats.Documents)
	cmd.Printf("  Chunks:    %d\n", stats.Chunks)
	if stats.Dimension > 0 {
		cmd.Printf("  Dimension: %d\n", stats.Dimension)
	} else {
		cmd.Println("  Dimension: (not established)")
	}
	return nil
}

func runStoreDelete(cmd *cobra.Command, args []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	removed, err := store.DeleteDocument(cmd.Context(), args[0])
	if err != nil {
		return fmt.Errorf("failed to delete document: %w", err)
	}
	if removed == 0 {
		cmd.Printf("No chunks stored for %s\n", args[0])
		return nil
	}
	cmd.Printf("Removed %d chunks of %s\n", removed, args[0])
	return nil
}

func runStoreVerify(cmd *cobra.Command, _ []string) error {
	store, err := loadStore()
	if err != nil {
		return err
	}

	if err := store.Reload(cmd.Context()); err != nil {
		return fmt.Errorf("store verification failed: %w", err)
	}
	stats, err := store.Stats(cmd.Context())
	if err != nil {
		return fmt.Errorf("failed to read stats: %w", err)
	}
	cmd.Printf("Store OK: %d chunks across %d documents\n", stats.Chunks, stats.Documents)
	return nil
}
