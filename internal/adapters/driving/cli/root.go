// Package cli provides the webrage command line interface.
package cli

import (
	"context"
	"errors"
	"fmt"
	"io/fs"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"github.com/custodia-labs/webrage/internal/adapters/driven/config/file"
	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/ports/driving"
	"github.com/custodia-labs/webrage/internal/core/services"
	"github.com/custodia-labs/webrage/internal/logger"
)

// Exit codes returned by Execute.
const (
	ExitOK         = 0
	ExitError      = 1
	ExitNoEvidence = 2
)

// NoAnswerMessage is printed when neither source produced evidence.
const NoAnswerMessage = "could not answer from available sources"

var version = "dev"

var (
	verboseFlag   bool
	configFlag    string
	ephemeralFlag bool
	envFileFlag   string
)

// settingsService is opened in the persistent pre-run unless already set.
var settingsService driving.SettingsService

var rootCmd = &cobra.Command{
	Use:   "webrage",
	Short: "Hybrid local and web retrieval for RAG",
	Long: `webrage answers queries from a local vector store of ingested documents
and from live web search, reranks the combined evidence and can run
multi-round deep research.

Configuration lives in ~/.webrage/config.toml; see 'webrage settings'.`,
	SilenceUsage:      true,
	SilenceErrors:     true,
	PersistentPreRunE: preRun,
	PersistentPostRunE: func(_ *cobra.Command, _ []string) error {
		return closeApp()
	},
}

func init() {
	flags := rootCmd.PersistentFlags()
	flags.BoolVarP(&verboseFlag, "verbose", "v", false, "enable debug logging (also DEBUG=1)")
	flags.StringVar(&configFlag, "config", "", "config file (default ~/.webrage/config.toml)")
	flags.BoolVar(&ephemeralFlag, "ephemeral", false, "keep the vector store in memory for this run")
	flags.StringVar(&envFileFlag, "env-file", ".env", "dotenv file loaded before configuration")
}

// Execute runs the root command and returns the process exit code.
func Execute(ctx context.Context, v string) int {
	if v != "" {
		version = v
	}

	err := rootCmd.ExecuteContext(ctx)
	switch {
	case err == nil:
		return ExitOK
	case errors.Is(err, domain.ErrNoEvidenceFound):
		fmt.Fprintln(rootCmd.ErrOrStderr(), NoAnswerMessage)
		return ExitNoEvidence
	default:
		fmt.Fprintf(rootCmd.ErrOrStderr(), "Error: %v\n", err)
		return ExitError
	}
}

func preRun(_ *cobra.Command, _ []string) error {
	logger.SetVerbose(verboseFlag || logger.VerboseFromEnv())

	if envFileFlag != "" {
		if err := godotenv.Load(envFileFlag); err != nil && !errors.Is(err, fs.ErrNotExist) {
			return fmt.Errorf("load %s: %w", envFileFlag, err)
		}
	}

	if settingsService != nil {
		return nil
	}

	var (
		store *file.ConfigStore
		err   error
	)
	if configFlag != "" {
		store, err = file.NewConfigStoreAt(configFlag)
	} else {
		store, err = file.NewConfigStore("")
	}
	if err != nil {
		return fmt.Errorf("open config: %w", err)
	}
	logger.Debug("Config: %s", store.Path())

	settingsService = services.NewSettingsService(store)
	return nil
}
