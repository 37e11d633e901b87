// Package mcpserver exposes the thought engine as Model Context Protocol
// tools so assistants can split and classify captured text without the API.
// Nothing here touches storage; every tool is a pure engine call.
package mcpserver

import (
	"context"
	"encoding/json"
	"fmt"
	"time"
	"unicode/utf8"

	"github.com/benvon/thought-capture/internal/logger"
	"github.com/benvon/thought-capture/internal/services/nlp"
	"github.com/benvon/thought-capture/internal/validation"
	"github.com/mark3labs/mcp-go/mcp"
	"github.com/mark3labs/mcp-go/server"
	"go.uber.org/zap"
)

// ServerName is the MCP server name reported to clients.
const ServerName = "thought-capture"

// Config wires a server.
type Config struct {
	Engine    *nlp.Engine
	Version   string
	MaxLength int
	// Threshold is the confidence weight below which a segment is flagged
	// for the categorization model.
	Threshold float64
	Clock     func() time.Time
	Logger    *zap.Logger
}

type tools struct {
	engine    *nlp.Engine
	maxLength int
	threshold float64
	clock     func() time.Time
	logger    *zap.Logger
}

// NewServer creates an MCP server with the engine tools and the rule table resource.
func NewServer(cfg Config) *server.MCPServer {
	ver := cfg.Version
	if ver == "" {
		ver = "dev"
	}
	t := &tools{
		engine:    cfg.Engine,
		maxLength: cfg.MaxLength,
		threshold: cfg.Threshold,
		clock:     cfg.Clock,
		logger:    cfg.Logger,
	}
	if t.engine == nil {
		t.engine = nlp.Default()
	}
	if t.clock == nil {
		t.clock = time.Now
	}
	if t.logger == nil {
		t.logger = zap.NewNop()
	}

	s := server.NewMCPServer(
		ServerName,
		ver,
		server.WithToolCapabilities(false),
		server.WithResourceCapabilities(false, false),
		server.WithRecovery(),
	)

	s.AddTool(processTool(), t.handleProcess)
	s.AddTool(splitTool(), t.handleSplit)
	s.AddTool(classifyTool(), t.handleClassify)
	registerRulesResource(s, t.engine)
	return s
}

func processTool() mcp.Tool {
	return mcp.NewTool("process_thoughts",
		mcp.WithDescription("Split freeform captured text into thoughts and classify each as task, event, note or uncertain with structured content. Relative dates resolve against 'now'."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The captured text, e.g. a voice transcript"),
		),
		mcp.WithString("now",
			mcp.Description("Reference time in RFC 3339 (default: the server clock)"),
		),
	)
}

func splitTool() mcp.Tool {
	return mcp.NewTool("split_thoughts",
		mcp.WithDescription("Split captured text into ordered candidate thoughts without classifying them. Each segment has the cleaned text and the source it came from."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("text",
			mcp.Required(),
			mcp.Description("The captured text"),
		),
	)
}

func classifyTool() mcp.Tool {
	return mcp.NewTool("classify_segment",
		mcp.WithDescription("Classify one already-split segment and report the task and event indicators behind the verdict. Pass a segment's source from split_thoughts to get the verdict process_thoughts gives."),
		mcp.WithReadOnlyHintAnnotation(true),
		mcp.WithDestructiveHintAnnotation(false),
		mcp.WithString("segment",
			mcp.Required(),
			mcp.Description("A single candidate thought, as the source text from split_thoughts"),
		),
	)
}

// text reads and sanitizes a required text argument.
func (t *tools) text(req mcp.CallToolRequest, name string) (string, *mcp.CallToolResult) {
	raw, err := req.RequireString(name)
	if err != nil {
		return "", mcp.NewToolResultError(name + " is required")
	}
	text := validation.SanitizeText(raw)
	if text == "" {
		return "", mcp.NewToolResultError(name + " is empty")
	}
	if t.maxLength > 0 && utf8.RuneCountInString(text) > t.maxLength {
		return "", mcp.NewToolResultError(fmt.Sprintf("%s exceeds %d characters", name, t.maxLength))
	}
	return text, nil
}

func jsonResult(v any) (*mcp.CallToolResult, error) {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return mcp.NewToolResultError(fmt.Sprintf("failed to encode result: %v", err)), nil
	}
	return mcp.NewToolResultText(string(data)), nil
}

func (t *tools) handleProcess(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, errResult := t.text(req, "text")
	if errResult != nil {
		return errResult, nil
	}
	now := t.clock()
	if v := req.GetString("now", ""); v != "" {
		parsed, err := time.Parse(time.RFC3339, v)
		if err != nil {
			return mcp.NewToolResultError(fmt.Sprintf("invalid now %q: must be RFC 3339", v)), nil
		}
		now = parsed
	}

	result := t.engine.Process(text, now, nlp.WithoutOriginalText())
	t.logger.Debug("mcp_process_thoughts",
		zap.String("text", logger.SanitizeThoughtText(text)),
		zap.Int("thought_count", len(result.Thoughts)),
		zap.Float64("confidence", result.Metadata.Confidence),
	)
	return jsonResult(result)
}

// SplitResult is the split_thoughts output. Each segment's source is the
// text classify_segment expects.
type SplitResult struct {
	Segments []nlp.Segment `json:"segments"`
}

func (t *tools) handleSplit(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	text, errResult := t.text(req, "text")
	if errResult != nil {
		return errResult, nil
	}
	segments := t.engine.Segments(text)
	if segments == nil {
		segments = []nlp.Segment{}
	}
	return jsonResult(SplitResult{Segments: segments})
}

// ClassifyResult is the classify_segment output.
type ClassifyResult struct {
	nlp.Classification
	Time            nlp.TimeInfo `json:"time"`
	TaskIndicators  bool         `json:"has_task_indicators"`
	StrongTask      bool         `json:"has_strong_task_indicators"`
	EventIndicators bool         `json:"has_event_indicators"`
	StrongEvent     bool         `json:"has_strong_event_indicators"`
	Uncertain       bool         `json:"is_uncertain"`
	NeedsLLM        bool         `json:"needs_llm"`
}

func (t *tools) handleClassify(ctx context.Context, req mcp.CallToolRequest) (*mcp.CallToolResult, error) {
	segment, errResult := t.text(req, "segment")
	if errResult != nil {
		return errResult, nil
	}
	now := t.clock()
	c := t.engine.ClassifySegment(segment, now)
	result := ClassifyResult{
		Classification:  c,
		Time:            nlp.ExtractTimeInfo(segment, now),
		TaskIndicators:  t.engine.HasTaskIndicators(segment),
		StrongTask:      t.engine.HasStrongTaskIndicators(segment),
		EventIndicators: t.engine.HasEventIndicators(segment),
		StrongEvent:     t.engine.HasStrongEventIndicators(segment),
		Uncertain:       t.engine.IsUncertainType(segment),
	}
	result.NeedsLLM = c.Type == nlp.TypeUncertain || c.Confidence.Weight() < t.threshold
	return jsonResult(result)
}
