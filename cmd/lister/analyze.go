package main

import (
	"fmt"
	"net/http"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/raine/photo-lister/internal/analysis"
	"github.com/raine/photo-lister/internal/llm"
	"github.com/raine/photo-lister/internal/usage"
	"github.com/spf13/cobra"
)

func analyzeCommand(c *cli) *cobra.Command {
	var provider, model string

	cmd := &cobra.Command{
		Use:   "analyze <image>",
		Short: "Analyze a local photo with the configured provider",
		Example: `  lister analyze lamp.jpg
  lister analyze lamp.jpg --provider ollama --model llava`,
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			data, err := os.ReadFile(args[0])
			if err != nil {
				return fmt.Errorf("failed to read image: %w", err)
			}

			cfg := c.app.Settings.Snapshot()
			if provider != "" {
				cfg = llm.ProviderConfig{Provider: strings.ToLower(provider), Model: model}
				if info, ok := c.app.Registry.Lookup(cfg.Provider); ok {
					if cfg.Model == "" {
						cfg.Model = info.DefaultModel
					}
					if info.KeyEnv != "" {
						cfg.CredentialRef = "env:" + info.KeyEnv
					}
				}
			} else if model != "" {
				cfg.Model = model
			}
			if !c.app.Settings.Configured(cfg) {
				return fmt.Errorf("provider %q is not configured (set AI_PROVIDER and its API key, or pass --provider)", cfg.Provider)
			}

			out := c.app.Client.AnalyzeImage(cmd.Context(), cfg, data, http.DetectContentType(data))
			if !out.Cached {
				if _, err := c.app.Ledger.Record(usage.Entry{
					Operation: usage.OpImageAnalysis,
					Provider:  out.Provider,
					Model:     out.Model,
					Usage:     out.Usage,
					Success:   out.Succeeded(),
				}); err != nil {
					warnColor.Fprintf(os.Stderr, "failed to record usage: %v\n", err)
				}
			}

			printOutcome(out)
			if !out.Succeeded() {
				return fmt.Errorf("analysis failed: %s", out.Reason)
			}
			return nil
		},
	}
	cmd.Flags().StringVar(&provider, "provider", "", "Provider to use instead of the configured one")
	cmd.Flags().StringVar(&model, "model", "", "Model to use")
	return cmd
}

func printOutcome(out analysis.Outcome) {
	w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
	defer w.Flush()

	headerColor.Fprintf(w, "--- %s / %s ---\n", out.Provider, out.Model)
	if out.Succeeded() {
		r := out.Result
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Status"), goodColor.Sprint(out.Status))
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Title"), r.Title)
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Category"), r.Category)
		fmt.Fprintf(w, "%s:\t%.2f\n", labelColor.Sprint("Price"), r.EstimatedPrice)
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Condition"), r.Condition)
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Tags"), strings.Join(r.Tags, ", "))
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Description"), r.Description)
	} else {
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Status"), badColor.Sprint(out.Status))
		fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Reason"), out.Reason)
		if out.RawText != "" {
			fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Raw reply"), out.RawText)
		}
	}

	tokens := fmt.Sprintf("%d in / %d out", out.Usage.PromptTokens, out.Usage.CompletionTokens)
	if out.Usage.Estimated {
		tokens += warnColor.Sprint(" (estimated)")
	}
	if out.Cached {
		tokens = warnColor.Sprint("cached, no call made")
	}
	fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Tokens"), tokens)
	fmt.Fprintf(w, "%s:\t%d ms (provider %d ms)\n", labelColor.Sprint("Time"), out.Timing.TotalMs, out.Timing.ProviderCallMs)
}
