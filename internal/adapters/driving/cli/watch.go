package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/webrage/internal/connectors/filesystem"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/logger"
)

var (
	watchInitial    bool
	watchExtensions []string
)

var watchCmd = &cobra.Command{
	Use:   "watch [DIR]",
	Short: "Ingest text files dropped into a folder",
	Long: `Watches DIR and its subdirectories. Text files that are created or
modified are re-ingested with their absolute path as the document ID;
deleted files are removed from the vector store. Hidden files are skipped.

Runs until interrupted.`,
	Args: cobra.ExactArgs(1),
	RunE: runWatch,
}

func init() {
	watchCmd.Flags().BoolVar(&watchInitial, "initial", true, "ingest files already in the folder before watching")
	watchCmd.Flags().StringSliceVar(&watchExtensions, "ext", filesystem.DefaultExtensions, "file extensions to ingest")
	rootCmd.AddCommand(watchCmd)
}

func runWatch(cmd *cobra.Command, args []string) error {
	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	if a.Ingestion == nil || a.Store == nil {
		return errors.New("ingestion service not configured")
	}

	w := filesystem.New(filesystem.DocumentID(args[0]), watchExtensions...)
	defer w.Close()

	return watchFolder(cmd.Context(), cmd.OutOrStdout(), a, w, watchInitial)
}

// watchFolder applies every change reported by w until ctx is done.
// A file that fails to ingest is reported and the watch continues.
func watchFolder(ctx context.Context, out io.Writer, a *App, w *filesystem.Watcher, initial bool) error {
	changes, err := w.Watch(ctx)
	if err != nil {
		return err
	}

	if initial {
		files, err := w.Scan()
		if err != nil {
			return err
		}
		for _, path := range files {
			applyChange(ctx, out, a, filesystem.Change{Type: filesystem.ChangeCreated, Path: path})
		}
	}

	fmt.Fprintf(out, "Watching %s (Ctrl-C to stop)\n", w.Root())
	for change := range changes {
		applyChange(ctx, out, a, change)
	}
	return nil
}

func applyChange(ctx context.Context, out io.Writer, a *App, change filesystem.Change) {
	docID := filesystem.DocumentID(change.Path)

	if change.Type == filesystem.ChangeDeleted {
		removed, err := a.Store.DeleteDocument(ctx, docID)
		if err != nil {
			logger.Warn("remove %s: %v", docID, err)
			return
		}
		if removed > 0 {
			fmt.Fprintf(out, "- %s (%d chunks removed)\n", docID, removed)
		}
		return
	}

	text, err := os.ReadFile(change.Path)
	if err != nil {
		logger.Warn("read %s: %v", change.Path, err)
		return
	}

	result, err := a.Ingestion.Ingest(ctx, docID, string(text), domain.IngestOptions{
		Replace:  true,
		Metadata: map[string]any{domain.MetaSourcePath: docID},
	})
	if err != nil {
		logger.Warn("ingest %s: %v (%d of %d chunks written)", docID, err, result.Written, result.Windows)
		return
	}
	fmt.Fprintf(out, "+ %s (%d chunks, %s)\n", docID, result.Written, change.Type)
}
