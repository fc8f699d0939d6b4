package cli

import (
	"errors"
	"fmt"
	"strings"

	"github.com/spf13/cobra"

	"github.com/custodia-labs/webrage/internal/core/domain"
	"github.com/custodia-labs/webrage/internal/core/services"
)

var (
	researchMaxRounds int
	researchMargin    float64
	researchTopK      int
	researchFormat    string
	researchContext   bool
)

var researchCmd = &cobra.Command{
	Use:   "research [prompt]",
	Short: "Run multi-round deep research",
	Long: `Runs retrieval over several rounds. After each round the prompt is
reformulated into new sub-queries from the evidence gathered so far, until
the round limit is reached or the best relevance stops improving by the
margin.

Interrupting the command (Ctrl-C) between rounds prints the evidence
gathered so far, marked as partial.

Use --context to print the assembled answer-generation prompt instead of
the evidence list.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runResearch,
}

func init() {
	researchCmd.Flags().IntVarP(&researchMaxRounds, "max-rounds", "r", 0, "maximum number of rounds (default from settings)")
	researchCmd.Flags().Float64Var(&researchMargin, "margin", 0, "minimum top-relevance improvement to continue (default from settings)")
	researchCmd.Flags().IntVarP(&researchTopK, "top-k", "k", 0, "results per sub-query (default from settings)")
	researchCmd.Flags().StringVarP(&researchFormat, "format", "f", formatText, "output format: text, json or yaml")
	researchCmd.Flags().BoolVar(&researchContext, "context", false, "print the answer-generation prompt built from the evidence")
	rootCmd.AddCommand(researchCmd)
}

func runResearch(cmd *cobra.Command, args []string) error {
	if err := validateFormat(researchFormat); err != nil {
		return err
	}

	a, err := loadApp(cmd.Context())
	if err != nil {
		return err
	}
	if a.Research == nil {
		return errors.New("research service not configured")
	}

	prompt := strings.Join(args, " ")
	opts := domain.ResearchOptions{
		MaxRounds: researchMaxRounds,
		TopK:      researchTopK,
	}
	if cmd.Flags().Changed("margin") {
		opts.MinImprovement = researchMargin
		opts.MinImprovementSet = true
	}

	result, err := a.Research.Research(cmd.Context(), prompt, opts)
	if err != nil {
		return fmt.Errorf("research failed: %w", err)
	}

	if researchContext {
		fmt.Fprint(cmd.OutOrStdout(), services.BuildAnswerPrompt(a.Prompts, prompt, result.Evidence))
		return nil
	}
	if researchFormat != formatText {
		return writeStructured(cmd.OutOrStdout(), researchFormat, result)
	}
	return outputResearchText(cmd, result)
}

func outputResearchText(cmd *cobra.Command, result *domain.ResearchResult) error {
	w := cmd.OutOrStdout()
	fmt.Fprintf(w, "Research: %s\n", result.Prompt)
	status := fmt.Sprintf("Rounds: %d (stop: %s)", result.RoundsRun, result.StopReason)
	if result.Partial {
		status += " [partial]"
	}
	fmt.Fprintln(w, status)
	fmt.Fprintf(w, "Sources: %s\n\n", result.Diagnostics.Describe())

	fmt.Fprintln(w, "Sub-queries:")
	for i := range result.Rounds {
		r := &result.Rounds[i]
		if r.Error != "" {
			fmt.Fprintf(w, "  round %d: %s (error: %s)\n", r.RoundIndex, r.SubQuery, r.Error)
			continue
		}
		fmt.Fprintf(w, "  round %d: %s (%d results, top %.2f)\n",
			r.RoundIndex, r.SubQuery, len(r.Results), r.TopRelevance())
	}
	fmt.Fprintln(w)

	if len(result.Evidence) == 0 {
		fmt.Fprintln(w, "No evidence gathered.")
	} else {
		fmt.Fprintln(w, "Evidence:")
		printItems(w, result.Evidence)
	}
	printWarnings(cmd.ErrOrStderr(), &result.Diagnostics)
	return nil
}
