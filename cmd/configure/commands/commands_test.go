package commands

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/benvon/thought-capture/internal/services/capture"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"gopkg.in/yaml.v3"
)

// clearEngineEnv keeps host settings out of the engine config. t.Setenv
// rules out t.Parallel for these tests.
func clearEngineEnv(t *testing.T) {
	t.Helper()
	for _, key := range []string{"RULES_FILE", "MAX_CAPTURE_LENGTH", "LLM_CONFIDENCE_THRESHOLD", "LOG_FORMAT"} {
		t.Setenv(key, "")
	}
}

func TestProcessCmd(t *testing.T) {
	clearEngineEnv(t)

	tests := []struct {
		name    string
		args    []string
		stdin   string
		wantErr error
		check   func(t *testing.T, out []byte)
	}{
		{
			name: "json from args",
			args: []string{"--now", "2026-10-14T10:00:00Z", "Call", "the", "dentist", "tomorrow"},
			check: func(t *testing.T, out []byte) {
				var doc map[string]any
				if err := json.Unmarshal(out, &doc); err != nil {
					t.Fatalf("output is not JSON: %v\n%s", err, out)
				}
				thoughts, _ := doc["thoughts"].([]any)
				if len(thoughts) == 0 {
					t.Errorf("no thoughts in %s", out)
				}
				if _, ok := doc["metadata"]; !ok {
					t.Error("metadata missing")
				}
			},
		},
		{
			name:  "yaml from stdin",
			args:  []string{"--format", "yaml"},
			stdin: "buy milk\n",
			check: func(t *testing.T, out []byte) {
				var doc map[string]any
				if err := yaml.Unmarshal(out, &doc); err != nil {
					t.Fatalf("output is not YAML: %v\n%s", err, out)
				}
				if _, ok := doc["thoughts"]; !ok {
					t.Errorf("thoughts missing from %s", out)
				}
			},
		},
		{
			name:    "blank text",
			args:    []string{"   "},
			wantErr: capture.ErrEmptyText,
		},
		{
			name: "bad now",
			args: []string{"--now", "tomorrow", "buy milk"},
		},
		{
			name: "bad format",
			args: []string{"--format", "xml", "buy milk"},
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cmd := NewProcessCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetIn(strings.NewReader(tt.stdin))
			cmd.SetArgs(tt.args)

			err := cmd.Execute()
			if tt.check == nil {
				if err == nil {
					t.Fatal("Execute() succeeded, want error")
				}
				if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
					t.Errorf("Execute() error = %v, want %v", err, tt.wantErr)
				}
				return
			}
			if err != nil {
				t.Fatalf("Execute() error = %v", err)
			}
			tt.check(t, out.Bytes())
		})
	}
}

func TestRulesPrintRoundTrips(t *testing.T) {
	clearEngineEnv(t)

	cmd := NewRulesCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"print"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("rules print: %v", err)
	}

	rules, err := nlp.ParseRules(out.Bytes())
	if err != nil {
		t.Fatalf("printed table does not load: %v", err)
	}
	if rules.Version() != nlp.DefaultRules().Version() {
		t.Errorf("version = %q, want %q", rules.Version(), nlp.DefaultRules().Version())
	}
	if len(rules.Rules()) != len(nlp.DefaultRules().Rules()) {
		t.Errorf("rule count = %d, want %d", len(rules.Rules()), len(nlp.DefaultRules().Rules()))
	}
}

func TestRulesValidate(t *testing.T) {
	t.Parallel()

	dir := t.TempDir()
	bad := filepath.Join(dir, "bad.yaml")
	if err := os.WriteFile(bad, []byte("rules: []\n"), 0o600); err != nil {
		t.Fatal(err)
	}
	defaults := nlp.DefaultRules().Rules()
	table, err := yaml.Marshal(ruleDocument{Version: "t1", Rules: defaults})
	if err != nil {
		t.Fatal(err)
	}
	good := filepath.Join(dir, "good.yaml")
	if err := os.WriteFile(good, table, 0o600); err != nil {
		t.Fatal(err)
	}
	wantSummary := fmt.Sprintf("version t1, %d rules", len(defaults))

	tests := []struct {
		name    string
		file    string
		wantErr bool
	}{
		{"valid table", good, false},
		{"missing version", bad, true},
		{"missing file", filepath.Join(dir, "absent.yaml"), true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()
			cmd := NewRulesCmd()
			var out bytes.Buffer
			cmd.SetOut(&out)
			cmd.SetErr(&bytes.Buffer{})
			cmd.SetArgs([]string{"validate", tt.file})
			err := cmd.Execute()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Execute() error = %v, wantErr %v", err, tt.wantErr)
			}
			if !tt.wantErr && !strings.Contains(out.String(), wantSummary) {
				t.Errorf("output = %q", out.String())
			}
		})
	}
}

func TestMigratePrint(t *testing.T) {
	t.Parallel()

	cmd := NewMigrateCmd()
	var out bytes.Buffer
	cmd.SetOut(&out)
	cmd.SetArgs([]string{"--print"})
	if err := cmd.Execute(); err != nil {
		t.Fatalf("Execute() error = %v", err)
	}
	if !strings.Contains(out.String(), "CREATE TABLE") {
		t.Errorf("schema output missing CREATE TABLE:\n%s", out.String())
	}
}
