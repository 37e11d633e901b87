package commands

import (
	"errors"
	"fmt"
	"os"
	"sort"

	"github.com/benvon/thought-capture/internal/config"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewRulesCmd creates the rules command with print and validate subcommands.
func NewRulesCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "rules",
		Short: "Inspect rule tables",
	}
	cmd.AddCommand(newRulesPrintCmd())
	cmd.AddCommand(newRulesValidateCmd())
	return cmd
}

type ruleDocument struct {
	Version string     `yaml:"version"`
	Rules   []nlp.Rule `yaml:"rules"`
}

func newRulesPrintCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "print",
		Short: "Print the effective rule table as YAML",
		Long:  "Print the table the API would load: RULES_FILE when set, the built-in table otherwise. The output is a valid starting point for a custom table.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := config.LoadEngine()
			if err != nil {
				return err
			}
			engine, err := cfg.NewEngine()
			if err != nil {
				return err
			}
			rules := engine.Rules()
			enc := yaml.NewEncoder(cmd.OutOrStdout())
			enc.SetIndent(2)
			if err := enc.Encode(ruleDocument{Version: rules.Version(), Rules: rules.Rules()}); err != nil {
				return fmt.Errorf("failed to encode rules: %w", err)
			}
			return enc.Close()
		},
	}
}

func newRulesValidateCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "validate <file>",
		Short: "Check that a rule table file loads",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			f, err := os.Open(args[0])
			if err != nil {
				return fmt.Errorf("failed to open rules file: %w", err)
			}
			defer f.Close()

			rules, err := nlp.LoadRules(f)
			if err != nil {
				if errors.Is(err, nlp.ErrInvalidRules) {
					return fmt.Errorf("%s is not a valid rule table: %w", args[0], err)
				}
				return err
			}

			counts := make(map[nlp.Tag]int)
			for _, r := range rules.Rules() {
				counts[r.Tag]++
			}
			tags := make([]string, 0, len(counts))
			for tag := range counts {
				tags = append(tags, string(tag))
			}
			sort.Strings(tags)

			out := cmd.OutOrStdout()
			fmt.Fprintf(out, "✓ %s: version %s, %d rules\n", args[0], rules.Version(), len(rules.Rules()))
			for _, tag := range tags {
				fmt.Fprintf(out, "  %-12s %d\n", tag, counts[nlp.Tag(tag)])
			}
			return nil
		},
	}
}
