package cli

import (
	"errors"
	"fmt"
	"io"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/webrage/internal/connectors/filesystem"
	"github.com/custodia-labs/webrage/internal/core/domain"
)

var (
	ingestDocID   string
	ingestReplace bool
	ingestMeta    map[string]string
)

var ingestCmd = &cobra.Command{
	Use:   "ingest [FILE|-]",
	Short: "Chunk, embed and store a document",
	Long: `Reads extracted text from FILE (or stdin with "-"), splits it into
overlapping token windows, embeds each window and appends the chunks to the
vector store.

The document ID defaults to the absolute file path and is required when
reading stdin. Use --replace to re-ingest a document that is already stored.
If embedding fails part way, the chunks written so far stay queryable.`,
	Args: cobra.ExactArgs(1),
	RunE: runIngest,
}

func init() {
	ingestCmd.Flags().StringVar(&ingestDocID, "doc-id", "", "document ID (default: absolute file path)")
	ingestCmd.Flags().BoolVar(&ingestReplace, "replace", false, "remove previously stored chunks of the document first")
	ingestCmd.Flags().StringToStringVar(&ingestMeta, "meta", nil, "metadata key=value added to every chunk")
	rootCmd.AddCommand(ingestCmd)
}

func runIngest(cmd *cobra.Command, args []string) error {
	source := args[0]
	docID := strings.TrimSpace(ingestDocID)

	var (
		text []byte
		err  error
	)
	meta := make(map[string]any, len(ingestMeta)+1)
	for k, v := range ingestMeta {
		meta[k] = v
	}

	if source == "-" {
		if docID == "" {
			return fmt.Errorf("--doc-id is required when reading stdin: %w", domain.ErrInvalidInput)
		}
		text, err = io.ReadAll(cmd.InOrStdin())
	} else {
		path := filesystem.DocumentID(source)
		if docID == "" {
			docID = path
		}
		meta[domain.MetaSourcePath] = path
		text, err = os.ReadFile(path)
	}
	if err != nil {
		return fmt.Errorf("read %s: %w", source, err)
	}

	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	if a.Ingestion == nil {
		return errors.New("ingestion service not configured")
	}

	result, err := a.Ingestion.Ingest(cmd.Context(), docID, string(text), domain.IngestOptions{
		Replace:  ingestReplace,
		Metadata: meta,
	})
	if err == nil || result.Written > 0 {
		printIngestResult(cmd, result)
	}
	if err != nil {
		return fmt.Errorf("ingest failed: %w", err)
	}
	return nil
}

func printIngestResult(cmd *cobra.Command, result domain.IngestResult) {
	cmd.Printf("Ingested %s: %d of %d chunks written", result.DocumentID, result.Written, result.Windows)
	if result.Removed > 0 {
		cmd.Printf(", %d replaced", result.Removed)
	}
	cmd.Println()
}
