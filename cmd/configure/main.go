package main

import (
	"fmt"
	"os"

	"github.com/benvon/thought-capture/cmd/configure/commands"
	"github.com/spf13/cobra"
)

func main() {
	var rootCmd = &cobra.Command{
		Use:          "thought-capture-configure",
		Short:        "Configuration tool for the thought-capture API",
		Long:         "CLI tool for configuring OIDC providers, runtime settings and the rule table, and for running the engine offline",
		SilenceUsage: true,
	}

	rootCmd.AddCommand(commands.NewOIDCCmd())
	rootCmd.AddCommand(commands.NewListCmd())
	rootCmd.AddCommand(commands.NewTestCmd())
	rootCmd.AddCommand(commands.NewCorsCmd())
	rootCmd.AddCommand(commands.NewRatelimitCmd())
	rootCmd.AddCommand(commands.NewMigrateCmd())
	rootCmd.AddCommand(commands.NewProcessCmd())
	rootCmd.AddCommand(commands.NewRulesCmd())

	if err := rootCmd.Execute(); err != nil {
		fmt.Fprintf(os.Stderr, "Error: %v\n", err)
		os.Exit(1)
	}
}
