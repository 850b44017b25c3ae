package main

import (
	"codegen-app/internal/logger"

	"github.com/spf13/cobra"
)

var logLevel string

func newRootCommand() *cobra.Command {
	// rootCmd represents the base command when called without any subcommands
	cmd := &cobra.Command{
		Use:   "codegen-server",
		Short: "Generates web applications from chat prompts and publishes them",
		PersistentPreRun: func(cmd *cobra.Command, args []string) {
			if logLevel != "" {
				logger.SetLevel(logLevel)
			}
		},
		SilenceUsage: true,
	}

	cmd.PersistentFlags().StringVar(&logLevel, "log-level", "",
		"Log level (trace,debug,info,warn,error), overrides LOG_LEVEL")

	cmd.AddCommand(NewServeCommand(), NewMigrateCommand())
	return cmd
}

func main() {
	if err := newRootCommand().Execute(); err != nil {
		logger.Log.WithError(err).Fatal("could not execute root command")
	}
}
