package main

import (
	"fmt"
	"os"
	"text/tabwriter"

	"github.com/spf13/cobra"
)

func providerCommand(c *cli) *cobra.Command {
	cmd := &cobra.Command{
		Use:   "provider",
		Short: "Show or change the AI provider",
	}

	cmd.AddCommand(&cobra.Command{
		Use:   "get",
		Short: "Show the active provider",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			cfg := c.app.Settings.Snapshot()
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()

			provider := cfg.Provider
			if provider == "" {
				provider = "(none)"
			}
			fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Provider"), provider)
			fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Model"), cfg.Model)
			if c.app.Settings.Configured(cfg) {
				fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Configured"), goodColor.Sprint("yes"))
			} else {
				fmt.Fprintf(w, "%s:\t%s\n", labelColor.Sprint("Configured"), badColor.Sprint("no"))
			}
		},
	})

	var model, apiKey string
	set := &cobra.Command{
		Use:     "set <provider>",
		Short:   "Select the provider used for analysis",
		Example: "  lister provider set openai --model gpt-4o-mini\n  lister provider set none",
		Args:    cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := c.app.Settings.Update(args[0], model, apiKey)
			if err != nil {
				return err
			}
			status := goodColor.Sprint("configured")
			if !c.app.Settings.Configured(cfg) {
				status = warnColor.Sprint("not configured (API key missing)")
			}
			fmt.Printf("%s %s/%s, %s\n", labelColor.Sprint("Provider set:"), cfg.Provider, cfg.Model, status)
			return nil
		},
	}
	set.Flags().StringVar(&model, "model", "", "Model name (default: the provider's default)")
	set.Flags().StringVar(&apiKey, "api-key", "", "API key to store encrypted (requires LISTER_SECRET_KEY)")
	cmd.AddCommand(set)

	cmd.AddCommand(&cobra.Command{
		Use:   "list",
		Short: "List available providers",
		Args:  cobra.NoArgs,
		Run: func(cmd *cobra.Command, args []string) {
			w := tabwriter.NewWriter(os.Stdout, 0, 0, 2, ' ', 0)
			defer w.Flush()
			fmt.Fprintf(w, "%s\t%s\t%s\n", labelColor.Sprint("NAME"), labelColor.Sprint("DEFAULT MODEL"), labelColor.Sprint("KEY"))
			for _, p := range c.app.Registry.Providers() {
				key := p.KeyEnv
				if key == "" {
					key = "-"
				}
				fmt.Fprintf(w, "%s\t%s\t%s\n", p.Name, p.DefaultModel, key)
			}
		},
	})
	return cmd
}
