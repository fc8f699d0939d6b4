package cli

import (
	"bufio"
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"strconv"
	"strings"

	"github.com/spf13/cobra"
	"golang.org/x/term"

	"github.com/custodia-labs/webrage/internal/adapters/driven/ai"
	"github.com/custodia-labs/webrage/internal/core/domain"
)

var settingsCmd = &cobra.Command{
	Use:   "settings",
	Short: "Manage application settings",
	Long: `View and configure providers, retrieval tuning and timeouts.

Settings are stored as dotted keys in ~/.webrage/config.toml. Use 'settings
keys' to list them and 'settings set' to change one.`,
	RunE: runSettingsShow,
}

var settingsShowCmd = &cobra.Command{
	Use:   "show",
	Short: "Show current settings",
	RunE:  runSettingsShow,
}

var settingsSetCmd = &cobra.Command{
	Use:   "set [key] [value]",
	Short: "Set a single setting",
	Long: `Sets a dotted key such as retrieval.top_k or embedding.provider.

Omit the value for an api_key setting to be prompted without echo.`,
	Args: cobra.RangeArgs(1, 2),
	RunE: runSettingsSet,
}

var settingsKeysCmd = &cobra.Command{
	Use:   "keys",
	Short: "List every recognised setting key",
	Args:  cobra.NoArgs,
	RunE:  runSettingsKeys,
}

var settingsCheckCmd = &cobra.Command{
	Use:   "check",
	Short: "Validate settings and ping every configured service",
	Args:  cobra.NoArgs,
	RunE:  runSettingsCheck,
}

var settingsWizardCmd = &cobra.Command{
	Use:   "wizard",
	Short: "Interactive setup wizard",
	Long:  `Run an interactive wizard to configure the embedding, LLM and web search providers.`,
	RunE:  runSettingsWizard,
}

func init() {
	settingsCmd.AddCommand(settingsShowCmd)
	settingsCmd.AddCommand(settingsSetCmd)
	settingsCmd.AddCommand(settingsKeysCmd)
	settingsCmd.AddCommand(settingsCheckCmd)
	settingsCmd.AddCommand(settingsWizardCmd)
	rootCmd.AddCommand(settingsCmd)
}

// keyLister is implemented by settings services that can enumerate keys.
type keyLister interface {
	Keys() []string
}

func runSettingsShow(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	cmd.Println("Current Settings")
	cmd.Println("================")
	cmd.Println()

	cmd.Println("[Store]")
	cmd.Printf("  Backend: %s\n", settings.Store.Backend)
	if settings.Store.Path != "" {
		cmd.Printf("  Path: %s\n", settings.Store.Path)
	}
	cmd.Printf("  Chunk window: %d tokens, overlap %d\n", settings.Chunker.WindowSize, settings.Chunker.Overlap)
	cmd.Println()

	cmd.Println("[Embedding]")
	printProvider(cmd, settings.Embedding.Provider, settings.Embedding.Model,
		settings.Embedding.BaseURL, settings.Embedding.APIKey, settings.Embedding.IsConfigured())
	cmd.Println()

	cmd.Println("[LLM]")
	printProvider(cmd, settings.LLM.Provider, settings.LLM.Model,
		settings.LLM.BaseURL, settings.LLM.APIKey, settings.LLM.IsConfigured())
	cmd.Println()

	cmd.Println("[Reranker]")
	cmd.Printf("  Backend: %s\n", settings.Reranker.Backend)
	if settings.Reranker.Model != "" {
		cmd.Printf("  Model: %s\n", settings.Reranker.Model)
	}
	if settings.Reranker.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.Reranker.BaseURL)
	}
	cmd.Println()

	cmd.Println("[Web Search]")
	cmd.Printf("  Backend: %s\n", settings.WebSearch.Backend)
	if settings.WebSearch.BaseURL != "" {
		cmd.Printf("  Base URL: %s\n", settings.WebSearch.BaseURL)
	}
	cmd.Printf("  Rate: %.2g req/s, %d retries\n", settings.WebSearch.RequestsPerSecond, settings.WebSearch.MaxRetries)
	cmd.Println()

	cmd.Println("[Retrieval]")
	cmd.Printf("  Mode: %s\n", settings.Retrieval.Mode.Description())
	cmd.Printf("  Top K: %d (local oversample x%d, %d web results)\n",
		settings.Retrieval.TopK, settings.Retrieval.LocalOversample, settings.Retrieval.WebResults)
	cmd.Println()

	cmd.Println("[Research]")
	cmd.Printf("  Max rounds: %d, min improvement %.3f\n", settings.Research.MaxRounds, settings.Research.MinImprovement)
	cmd.Printf("  Reformulations: %d, concurrency %d\n", settings.Research.Reformulations, settings.Research.Concurrency)
	cmd.Println()

	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
		cmd.Println("Run 'webrage settings wizard' to fix configuration issues.")
	} else {
		cmd.Println("Configuration is valid.")
	}

	return nil
}

func printProvider(cmd *cobra.Command, provider domain.AIProvider, model, baseURL, apiKey string, configured bool) {
	cmd.Printf("  Provider: %s\n", provider.Description())
	if provider == domain.AIProviderNone {
		return
	}
	cmd.Printf("  Model: %s\n", model)
	if baseURL != "" {
		cmd.Printf("  Base URL: %s\n", baseURL)
	}
	if provider.RequiresAPIKey() {
		if apiKey != "" {
			cmd.Printf("  API Key: %s\n", maskAPIKey(apiKey))
		} else {
			cmd.Printf("  API Key: (not set)\n")
		}
	}
	status := "configured"
	if !configured {
		status = "not configured"
	}
	cmd.Printf("  Status: %s\n", status)
}

func runSettingsSet(cmd *cobra.Command, args []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	key := args[0]
	var value string
	switch {
	case len(args) == 2:
		value = args[1]
	case strings.HasSuffix(key, ".api_key"):
		cmd.Printf("Enter %s: ", key)
		value = readPassword(cmd.InOrStdin())
		cmd.Println()
	default:
		return fmt.Errorf("missing value for %s", key)
	}

	if err := settingsService.Set(key, value); err != nil {
		return err
	}

	shown := value
	if strings.HasSuffix(key, ".api_key") {
		shown = maskAPIKey(value)
	}
	cmd.Printf("Set %s = %s\n", key, shown)
	return nil
}

func runSettingsKeys(cmd *cobra.Command, _ []string) error {
	lister, ok := settingsService.(keyLister)
	if !ok {
		return errors.New("settings service cannot list keys")
	}
	for _, key := range lister.Keys() {
		cmd.Println(key)
	}
	return nil
}

func runSettingsCheck(cmd *cobra.Command, _ []string) error {
	settings, err := currentSettings()
	if err != nil {
		return err
	}

	validateErr := settingsService.Validate()
	if validateErr != nil {
		cmd.Printf("settings: %v\n", validateErr)
	}

	prompts, err := openPromptStore()
	if err != nil {
		return err
	}

	failed := 0
	for _, st := range ai.NewConfigValidator(prompts).Check(cmd.Context(), settings) {
		switch {
		case st.Disabled:
			cmd.Printf("  %-10s disabled\n", st.Component)
		case st.Err != nil:
			failed++
			cmd.Printf("  %-10s %s: FAILED: %v\n", st.Component, st.Backend, st.Err)
		default:
			cmd.Printf("  %-10s %s: OK\n", st.Component, st.Backend)
		}
	}

	if validateErr != nil || failed > 0 {
		return fmt.Errorf("%d component(s) failed validation", failed)
	}
	cmd.Println("All components OK.")
	return nil
}

func runSettingsWizard(cmd *cobra.Command, _ []string) error {
	if settingsService == nil {
		return errors.New("settings service not configured")
	}

	cmd.Println("WebRAGE Settings Wizard")
	cmd.Println("=======================")
	cmd.Println()

	reader := bufio.NewReader(cmd.InOrStdin())

	cmd.Println("Step 1: Embedding Provider")
	cmd.Println("--------------------------")
	if err := configureProvider(cmd, reader, "embedding", domain.DefaultEmbeddingModels()); err != nil {
		return err
	}

	cmd.Println("Step 2: LLM Provider (query reformulation)")
	cmd.Println("------------------------------------------")
	if err := configureProvider(cmd, reader, "llm", domain.DefaultLLMModels()); err != nil {
		return err
	}

	cmd.Println("Step 3: Web Search")
	cmd.Println("------------------")
	if err := configureWebSearch(cmd, reader); err != nil {
		return err
	}

	cmd.Println("Configuration Complete!")
	cmd.Println("=======================")
	if err := settingsService.Validate(); err != nil {
		cmd.Printf("Warning: %v\n", err)
	} else {
		cmd.Println("All settings are valid and saved.")
	}

	return nil
}

var wizardProviders = []domain.AIProvider{domain.AIProviderOllama, domain.AIProviderOpenAI, domain.AIProviderNone}

// configureProvider asks for a provider, model and API key under prefix
// ("embedding" or "llm") and validates the result by pinging the provider.
func configureProvider(cmd *cobra.Command, reader *bufio.Reader, prefix string, models map[domain.AIProvider]string) error {
	for i, p := range wizardProviders {
		cmd.Printf("  %d. %s\n", i+1, p.Description())
	}
	cmd.Print("\nEnter choice [1]: ")
	provider := wizardProviders[parseChoice(readLine(reader), len(wizardProviders), 1)-1]

	if err := settingsService.Set(prefix+".provider", string(provider)); err != nil {
		return fmt.Errorf("failed to set %s provider: %w", prefix, err)
	}
	if provider == domain.AIProviderNone {
		cmd.Printf("%s disabled\n\n", prefix)
		return nil
	}

	defaultModel := models[provider]
	cmd.Printf("Enter model name [%s]: ", defaultModel)
	model := readLine(reader)
	if model == "" {
		model = defaultModel
	}
	if err := settingsService.Set(prefix+".model", model); err != nil {
		return err
	}

	cmd.Print("Enter base URL (blank for default): ")
	if baseURL := readLine(reader); baseURL != "" {
		if err := settingsService.Set(prefix+".base_url", baseURL); err != nil {
			return err
		}
	}

	if provider.RequiresAPIKey() {
		cmd.Print("Enter API key (blank to use the environment): ")
		if apiKey := readLine(reader); apiKey != "" {
			if err := settingsService.Set(prefix+".api_key", apiKey); err != nil {
				return err
			}
		}
	}

	settings, err := currentSettings()
	if err != nil {
		return err
	}

	cmd.Print("Validating configuration... ")
	validator := ai.NewConfigValidator(nil)
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	if prefix == "embedding" {
		err = validator.ValidateEmbedding(ctx, &settings.Embedding)
	} else {
		err = validator.ValidateLLM(ctx, &settings.LLM)
	}
	if err != nil {
		cmd.Printf("FAILED: %v\n\n", err)
		return nil
	}
	cmd.Println("OK")
	cmd.Printf("%s provider configured: %s (%s)\n\n", prefix, provider.Description(), model)
	return nil
}

var wizardWebBackends = []domain.WebSearchBackend{domain.WebSearchDuckDuckGo, domain.WebSearchSearXNG, domain.WebSearchNone}

func configureWebSearch(cmd *cobra.Command, reader *bufio.Reader) error {
	for i, b := range wizardWebBackends {
		cmd.Printf("  %d. %s\n", i+1, b)
	}
	cmd.Print("\nEnter choice [1]: ")
	backend := wizardWebBackends[parseChoice(readLine(reader), len(wizardWebBackends), 1)-1]

	if backend == domain.WebSearchSearXNG {
		cmd.Print("Enter SearXNG URL: ")
		baseURL := readLine(reader)
		if baseURL == "" {
			return errors.New("SearXNG requires a base URL")
		}
		if err := settingsService.Set("websearch.base_url", baseURL); err != nil {
			return err
		}
	}
	if err := settingsService.Set("websearch.backend", string(backend)); err != nil {
		return fmt.Errorf("failed to set web search backend: %w", err)
	}
	cmd.Printf("Web search: %s\n\n", backend)
	return nil
}

// Helper functions.

//nolint:errcheck // CLI helper, error ignored for UX
func readLine(reader *bufio.Reader) string {
	input, _ := reader.ReadString('\n')
	return strings.TrimSpace(input)
}

func parseChoice(input string, maxVal, defaultVal int) int {
	if input == "" {
		return defaultVal
	}
	val, err := strconv.Atoi(input)
	if err != nil || val < 1 || val > maxVal {
		return defaultVal
	}
	return val
}

//nolint:errcheck // CLI helper, error ignored for UX
func readPassword(in io.Reader) string {
	if f, ok := in.(*os.File); ok && term.IsTerminal(int(f.Fd())) {
		password, err := term.ReadPassword(int(f.Fd()))
		if err == nil {
			return string(password)
		}
	}
	return readLine(bufio.NewReader(in))
}

func maskAPIKey(key string) string {
	if len(key) <= 8 {
		return "****"
	}
	return key[:4] + "..." + key[len(key)-4:]
}
