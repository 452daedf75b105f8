package analysis

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"net"
	"os"
	"strings"
	"sync"
	"text/template"
	"time"

	"github.com/anthropics/anthropic-sdk-go"
	"github.com/anthropics/anthropic-sdk-go/option"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/metric"

	"github.com/triagehq/triage/internal/telemetry"
	"github.com/triagehq/triage/internal/types"
)

// DefaultModel is the model used when the config leaves it unset.
const DefaultModel = "claude-3-5-haiku-latest"

// errAPIKeyRequired is returned when an API key is needed but not provided.
var errAPIKeyRequired = errors.New("API key required")

// AnthropicClient implements Client against the Anthropic API.
type AnthropicClient struct {
	client      anthropic.Client
	model       anthropic.Model
	maxTokens   int64
	analyzeTmpl *template.Template
	planTmpl    *template.Template
}

// AnthropicOptions configures NewAnthropicClient.
type AnthropicOptions struct {
	APIKey    string // overridden by ANTHROPIC_API_KEY when set
	Model     string // defaults to DefaultModel
	MaxTokens int64  // defaults to 1024
}

// NewAnthropicClient creates a new Anthropic-backed analysis client.
// Env var ANTHROPIC_API_KEY takes precedence over the explicit key.
func NewAnthropicClient(opts AnthropicOptions) (*AnthropicClient, error) {
	apiKey := opts.APIKey
	if envKey := os.Getenv("ANTHROPIC_API_KEY"); envKey != "" {
		apiKey = envKey
	}
	if apiKey == "" {
		return nil, fmt.Errorf("%w: set ANTHROPIC_API_KEY environment variable or provide via config", errAPIKeyRequired)
	}

	model := opts.Model
	if model == "" {
		model = DefaultModel
	}
	maxTokens := opts.MaxTokens
	if maxTokens <= 0 {
		maxTokens = 1024
	}

	analyzeTmpl, err := template.New("analyze").Parse(analyzePromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("analysis: parse analyze template: %w", err)
	}
	planTmpl, err := template.New("plan").Parse(planPromptTemplate)
	if err != nil {
		return nil, fmt.Errorf("analysis: parse plan template: %w", err)
	}

	aiMetricsOnce.Do(initAIMetrics)

	return &AnthropicClient{
		client:      anthropic.NewClient(option.WithAPIKey(apiKey)),
		model:       anthropic.Model(model),
		maxTokens:   maxTokens,
		analyzeTmpl: analyzeTmpl,
		planTmpl:    planTmpl,
	}, nil
}

// Analyze implements Client.
func (c *AnthropicClient) Analyze(ctx context.Context, issue *types.Issue) (*types.Analysis, error) {
	prompt, err := renderPrompt(c.analyzeTmpl, issue)
	if err != nil {
		return nil, fmt.Errorf("analysis: render analyze prompt: %w", err)
	}

	text, err := c.call(ctx, "analyze", issue.ID, prompt)
	if err != nil {
		return nil, err
	}

	var result types.Analysis
	if err := json.Unmarshal(extractJSON(text), &result); err != nil {
		return nil, fmt.Errorf("analysis: parse analyze response for %s: %w", issue.ID, err)
	}
	if result.Confidence != nil && (*result.Confidence < 0 || *result.Confidence > 1) {
		return nil, fmt.Errorf("analysis: confidence %g out of range for %s", *result.Confidence, issue.ID)
	}
	if !result.Priority.IsValid() {
		return nil, fmt.Errorf("analysis: invalid priority %q for %s", result.Priority, issue.ID)
	}
	return &result, nil
}

// PlanFix implements Client.
func (c *AnthropicClient) PlanFix(ctx context.Context, issue *types.Issue) (*types.Plan, error) {
	prompt, err := renderPrompt(c.planTmpl, issue)
	if err != nil {
		return nil, fmt.Errorf("analysis: render plan prompt: %w", err)
	}

	text, err := c.call(ctx, "plan", issue.ID, prompt)
	if err != nil {
		return nil, err
	}
	trimmed := strings.TrimSpace(text)
	if trimmed == "" {
		return nil, fmt.Errorf("analysis: empty plan response for %s", issue.ID)
	}
	return &types.Plan{Text: trimmed}, nil
}

// aiMetrics holds lazily-initialized OTel instruments for Anthropic API calls.
var aiMetrics struct {
	inputTokens  metric.Int64Counter
	outputTokens metric.Int64Counter
	duration     metric.Float64Histogram
}

var aiMetricsOnce sync.Once

func initAIMetrics() {
	m := telemetry.Meter("github.com/triagehq/triage/ai")
	aiMetrics.inputTokens, _ = m.Int64Counter("triage.ai.input_tokens",
		metric.WithDescription("Anthropic API input tokens consumed"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.outputTokens, _ = m.Int64Counter("triage.ai.output_tokens",
		metric.WithDescription("Anthropic API output tokens generated"),
		metric.WithUnit("{token}"),
	)
	aiMetrics.duration, _ = m.Float64Histogram("triage.ai.request.duration",
		metric.WithDescription("Anthropic API request duration in milliseconds"),
		metric.WithUnit("ms"),
	)
}

// call makes a single API request. Retry lives with the caller; this method
// only classifies the outcome and records telemetry.
func (c *AnthropicClient) call(ctx context.Context, operation, issueID, prompt string) (string, error) {
	tracer := telemetry.Tracer("github.com/triagehq/triage/ai")
	ctx, span := tracer.Start(ctx, "anthropic.messages.new")
	defer span.End()
	span.SetAttributes(
		attribute.String("triage.ai.model", string(c.model)),
		attribute.String("triage.ai.operation", operation),
		attribute.String("triage.issue.id", issueID),
	)

	t0 := time.Now()
	message, err := c.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     c.model,
		MaxTokens: c.maxTokens,
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(prompt)),
		},
	})
	ms := float64(time.Since(t0).Milliseconds())

	if err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return "", fmt.Errorf("analysis: %s %s: %w", operation, issueID, err)
	}

	modelAttr := attribute.String("triage.ai.model", string(c.model))
	if aiMetrics.inputTokens != nil {
		aiMetrics.inputTokens.Add(ctx, message.Usage.InputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.outputTokens.Add(ctx, message.Usage.OutputTokens, metric.WithAttributes(modelAttr))
		aiMetrics.duration.Record(ctx, ms, metric.WithAttributes(modelAttr))
	}
	span.SetAttributes(
		attribute.Int64("triage.ai.input_tokens", message.Usage.InputTokens),
		attribute.Int64("triage.ai.output_tokens", message.Usage.OutputTokens),
	)

	if len(message.Content) == 0 {
		return "", fmt.Errorf("analysis: %s %s: unexpected response format: no content blocks", operation, issueID)
	}
	content := message.Content[0]
	if content.Type != "text" {
		return "", fmt.Errorf("analysis: %s %s: unexpected response format: not a text block (type=%s)", operation, issueID, content.Type)
	}
	return content.Text, nil
}

// IsRetryable reports whether an error from this client is worth retrying.
// Rate limits, server errors, network timeouts and unrecognized failures
// retry; context cancellation and client-side API errors other than 429
// (bad request, auth) are permanent. Unrecognized failures retry because
// misclassifying a transient as permanent loses work, while the reverse
// only costs the bounded backoff schedule.
func IsRetryable(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var apiErr *anthropic.Error
	if errors.As(err, &apiErr) {
		return apiErr.StatusCode == 429 || apiErr.StatusCode >= 500
	}

	var netErr net.Error
	if errors.As(err, &netErr) {
		return netErr.Timeout()
	}

	return true
}

func renderPrompt(tmpl *template.Template, issue *types.Issue) (string, error) {
	var sb strings.Builder
	if err := tmpl.Execute(&sb, issue); err != nil {
		return "", err
	}
	return sb.String(), nil
}

// extractJSON pulls the outermost JSON object out of a model response,
// tolerating prose or code fences around it.
func extractJSON(text string) []byte {
	start := strings.Index(text, "{")
	end := strings.LastIndex(text, "}")
	if start < 0 || end < start {
		return []byte(text)
	}
	return []byte(text[start : end+1])
}

const analyzePromptTemplate = `You are triaging a software issue. Analyze it and respond with ONLY a JSON object, no prose, in this exact shape:

{"labels": ["..."], "assigned_to": "...", "confidence": 0.0, "priority": "low|medium|high"}

Rules:
- labels: 1-4 short lowercase tags describing the problem area
- assigned_to: the team best suited ("frontend", "backend", "infra", "docs")
- confidence: how certain you are of this triage, 0.0-1.0
- priority: low, medium, or high

**Title:** {{.Title}}

**Description:**
{{.Description}}
{{if .Author}}
**Reported by:** {{.Author}}
{{end}}`

const planPromptTemplate = `You are planning the fix for a triaged software issue. Write a short, concrete remediation plan in markdown: a one-line summary, then 3-6 numbered steps. Do not restate the issue.

**Title:** {{.Title}}

**Description:**
{{.Description}}
{{if .Labels}}
**Labels:** {{range .Labels}}{{.}} {{end}}
{{end}}{{if .Priority}}**Priority:** {{.Priority}}
{{end}}`
