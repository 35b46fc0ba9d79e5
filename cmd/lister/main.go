// Command lister inspects and drives the photo-lister pipeline from a
// terminal: analyze a local photo, print token usage, manage the provider.
package main

import (
	"context"
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/raine/photo-lister/config"
	"github.com/raine/photo-lister/internal/app"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var (
	headerColor = color.New(color.FgCyan, color.Bold)
	goodColor   = color.New(color.FgGreen)
	warnColor   = color.New(color.FgYellow)
	badColor    = color.New(color.FgRed)
	labelColor  = color.New(color.Bold)
)

// cli carries the wired application into subcommands.
type cli struct {
	app *app.App
}

func (c *cli) preRun(debug *bool, noColor *bool) func(cmd *cobra.Command, args []string) error {
	return func(cmd *cobra.Command, args []string) error {
		level := zerolog.WarnLevel
		if *debug {
			level = zerolog.DebugLevel
		}
		zerolog.SetGlobalLevel(level)
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
		if *noColor {
			color.NoColor = true
		}

		config.LoadEnvFile()
		cfg, err := config.Load()
		if err != nil {
			return fmt.Errorf("invalid configuration: %w", err)
		}
		a, err := app.New(cmd.Context(), cfg)
		if err != nil {
			return err
		}
		c.app = a
		return nil
	}
}

func (c *cli) postRun(cmd *cobra.Command, args []string) {
	if c.app != nil {
		c.app.Close()
	}
}

func newRootCmd() *cobra.Command {
	var debug, noColor bool
	c := &cli{}

	rootCmd := &cobra.Command{
		Use:               "lister",
		Short:             "Photo lister command line tools",
		SilenceUsage:      true,
		PersistentPreRunE: c.preRun(&debug, &noColor),
		PersistentPostRun: c.postRun,
	}
	rootCmd.PersistentFlags().BoolVar(&debug, "debug", false, "Enable debug logging")
	rootCmd.PersistentFlags().BoolVar(&noColor, "no-color", false, "Disable colored output")

	rootCmd.AddCommand(analyzeCommand(c))
	rootCmd.AddCommand(usageCommand(c))
	rootCmd.AddCommand(providerCommand(c))
	return rootCmd
}

func main() {
	if err := newRootCmd().ExecuteContext(context.Background()); err != nil {
		badColor.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}
