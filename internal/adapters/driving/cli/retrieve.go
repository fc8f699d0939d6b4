package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/webrage/internal/core/domain"
)

var (
	retrieveMode   string
	retrieveTopK   int
	retrieveFormat string
	retrieveDocs   []string
)

var retrieveCmd = &cobra.Command{
	Use:   "retrieve [query]",
	Short: "Retrieve ranked evidence for a query",
	Long: `Retrieves evidence from the local vector store and live web search,
merges the candidates and reranks them against the query.

Modes:
  local  - vector store only
  web    - web search only
  hybrid - both sources (default)

A source that is unavailable is skipped and reported; the command fails only
when neither source could be queried.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runRetrieve,
}

func init() {
	retrieveCmd.Flags().StringVarP(&retrieveMode, "mode", "m", "", "retrieval mode: local, web or hybrid (default from settings)")
	retrieveCmd.Flags().IntVarP(&retrieveTopK, "top-k", "k", 0, "number of results (default from settings)")
	retrieveCmd.Flags().StringVarP(&retrieveFormat, "format", "f", formatText, "output format: text, json or yaml")
	retrieveCmd.Flags().StringSliceVar(&retrieveDocs, "doc", nil, "restrict local results to these document IDs")
	rootCmd.AddCommand(retrieveCmd)
}

func runRetrieve(cmd *cobra.Command, args []string) error {
	if err := validateFormat(retrieveFormat); err != nil {
		return err
	}
	mode := domain.RetrievalMode(retrieveMode)
	if retrieveMode != "" && !mode.IsValid() {
		return fmt.Errorf("unknown mode %q: %w", retrieveMode, domain.ErrInvalidInput)
	}

	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	if a.Retrieval == nil {
		return errors.New("retrieval service not configured")
	}

	result, err := a.Retrieval.Retrieve(cmd.Context(), strings.Join(args, " "), domain.RetrieveOptions{
		Mode:        mode,
		TopK:        retrieveTopK,
		DocumentIDs: retrieveDocs,
	})
	if err != nil {
		return fmt.Errorf("retrieve failed: %w", err)
	}

	if retrieveFormat != formatText {
		return writeStructured(cmd.OutOrStdout(), retrieveFormat, result)
	}
	return outputRetrieveText(cmd, result)
}

func outputRetrieveText(cmd *cobra.Command, result *domain.RetrievalResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Query: %s\n", result.Query)
	fmt.Fprintf(w, "Sources: %s\n\n", result.Diagnostics.Describe())

	if len(result.Items) == 0 {
		fmt.Fprintln(w, "No results found.")
	} else {
		printItems(w, result.Items)
	}
	printWarnings(cmd.ErrOrStderr(), &result.Diagnostics)
	return nil
}
