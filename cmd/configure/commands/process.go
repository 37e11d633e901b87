package commands

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/benvon/thought-capture/internal/config"
	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/spf13/cobra"
	"gopkg.in/yaml.v3"
)

// NewProcessCmd creates the process command, which runs the engine locally
// without a database or model.
func NewProcessCmd() *cobra.Command {
	var now, format, rulesFile string

	cmd := &cobra.Command{
		Use:   "process [text...]",
		Short: "Run the rule engine over text",
		Long:  "Split and classify text the way the API does for a capture. Text comes from the arguments, or from stdin when there are none.",
		RunE: func(cmd *cobra.Command, args []string) error {
			if format != "json" && format != "yaml" {
				return fmt.Errorf("--format must be json or yaml, got %q", format)
			}
			clock := time.Now
			if now != "" {
				ts, err := time.Parse(time.RFC3339, now)
				if err != nil {
					return fmt.Errorf("--now must be RFC3339: %w", err)
				}
				clock = func() time.Time { return ts }
			}

			text := strings.Join(args, " ")
			if len(args) == 0 || text == "-" {
				data, err := io.ReadAll(cmd.InOrStdin())
				if err != nil {
					return fmt.Errorf("failed to read stdin: %w", err)
				}
				text = string(data)
			}

			cfg, err := config.LoadEngine()
			if err != nil {
				return err
			}
			if rulesFile != "" {
				cfg.RulesFile = rulesFile
			}
			engine, err := cfg.NewEngine()
			if err != nil {
				return err
			}

			svc := capture.NewService(capture.Options{
				Engine:    engine,
				Mode:      config.LLMModeOff,
				Threshold: cfg.LLMConfidenceThreshold,
				MaxLength: cfg.MaxCaptureLength,
				Clock:     clock,
			})
			result, err := svc.Preview(cmd.Context(), text)
			if err != nil {
				return err
			}
			return writeDocument(cmd.OutOrStdout(), format, result)
		},
	}

	cmd.Flags().StringVar(&now, "now", "", "Reference time for relative dates (RFC3339, default current time)")
	cmd.Flags().StringVarP(&format, "format", "o", "json", "Output format: json or yaml")
	cmd.Flags().StringVar(&rulesFile, "rules", "", "Rule table file (default RULES_FILE or the built-in table)")
	return cmd
}

// writeDocument prints v as indented JSON, or as YAML with the same keys.
func writeDocument(w io.Writer, format string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode result: %w", err)
	}
	if format == "json" {
		_, err = fmt.Fprintln(w, string(data))
		return err
	}

	var doc any
	if err := json.Unmarshal(data, &doc); err != nil {
		return fmt.Errorf("failed to re-decode result: %w", err)
	}
	enc := yaml.NewEncoder(w)
	enc.SetIndent(2)
	if err := enc.Encode(doc); err != nil {
		return fmt.Errorf("failed to encode yaml: %w", err)
	}
	return enc.Close()
}
