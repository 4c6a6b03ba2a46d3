// Command dermnet prepares the HAM10000 lesion images, trains and compares
// the cnn, ann and fnn classifiers, exports the best one and classifies new
// images with it.
package main

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/YuminosukeSato/dermnet/pkg/log"
	"github.com/spf13/cobra"
)

type globalFlags struct {
	configPath string
	logLevel   string
	logFormat  string
}

func rootCmd() *cobra.Command {
	var g globalFlags
	cmd := &cobra.Command{
		Use:           "dermnet",
		Short:         "skin lesion classification on HAM10000",
		SilenceUsage:  true,
		SilenceErrors: true,
		PersistentPreRunE: func(cmd *cobra.Command, args []string) error {
			_, err := log.SetupLogger(g.logLevel, g.logFormat)
			return err
		},
	}
	pf := cmd.PersistentFlags()
	pf.StringVar(&g.configPath, "config", "", "YAML config file; flags override its values")
	pf.StringVar(&g.logLevel, "log-level", "info", "debug, info, warn or error")
	pf.StringVar(&g.logFormat, "log-format", "console", "json or console")

	cmd.AddCommand(
		prepareCmd(&g),
		trainCmd(&g),
		predictCmd(),
		configCmd(&g),
	)
	return cmd
}

func main() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	err := rootCmd().ExecuteContext(ctx)
	stop()
	if err != nil {
		log.GetLogger().Error("dermnet failed", log.ErrAttrKey, err)
		os.Exit(1)
	}
}
