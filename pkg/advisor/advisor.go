// Package advisor asks Claude for a short triage note on rigs flagged as
// underperforming. It is optional and never blocks a poll cycle.
package advisor

import (
	"context"
	"encoding/json"
	"fmt"
	"time"

	"github.com/anthropics/anthropic-sdk-go"

	"github.com/koptimizer/rigwatch/pkg/fleet"
)

const (
	DefaultModel       = "claude-sonnet-4-6"
	DefaultTimeout     = 20 * time.Second
	DefaultMaxOutliers = 20
)

// Advisor produces triage notes for flagged rigs.
type Advisor struct {
	client      *anthropic.Client
	model       string
	enabled     bool
	timeout     time.Duration
	maxOutliers int
}

// Config holds advisor configuration. The API key is read from
// ANTHROPIC_API_KEY by the SDK.
type Config struct {
	Enabled     bool
	Model       string
	Timeout     time.Duration
	MaxOutliers int
}

// New creates an Advisor. A disabled advisor is valid and returns no advice.
func New(cfg Config) *Advisor {
	if !cfg.Enabled {
		return &Advisor{enabled: false}
	}

	client := anthropic.NewClient()

	model := cfg.Model
	if model == "" {
		model = DefaultModel
	}
	timeout := cfg.Timeout
	if timeout == 0 {
		timeout = DefaultTimeout
	}
	maxOutliers := cfg.MaxOutliers
	if maxOutliers <= 0 {
		maxOutliers = DefaultMaxOutliers
	}

	return &Advisor{
		client:      &client,
		model:       model,
		enabled:     true,
		timeout:     timeout,
		maxOutliers: maxOutliers,
	}
}

// Enabled reports whether Advise will call the API. Safe on a nil receiver.
func (a *Advisor) Enabled() bool {
	return a != nil && a.enabled
}

// Request is the fleet context sent with flagged rigs.
type Request struct {
	Summary  fleet.FleetSummary
	Classes  map[string]fleet.ClassStats
	Outliers []fleet.Outlier
	Rows     []fleet.InstanceMetrics
}

// Advice is the parsed model reply.
type Advice struct {
	Summary string   `json:"summary"`
	Actions []string `json:"actions"`
	Model   string   `json:"model,omitempty"`
}

// Advise returns nil advice when the advisor is disabled or nothing is
// flagged.
func (a *Advisor) Advise(ctx context.Context, req Request) (*Advice, error) {
	if !a.Enabled() || len(req.Outliers) == 0 {
		return nil, nil
	}

	ctx, cancel := context.WithTimeout(ctx, a.timeout)
	defer cancel()

	resp, err := a.client.Messages.New(ctx, anthropic.MessageNewParams{
		Model:     anthropic.Model(a.model),
		MaxTokens: int64(1024),
		System: []anthropic.TextBlockParam{
			{Text: advisorSystemPrompt},
		},
		Messages: []anthropic.MessageParam{
			anthropic.NewUserMessage(anthropic.NewTextBlock(buildPrompt(req, a.maxOutliers))),
		},
	})
	if err != nil {
		return nil, fmt.Errorf("advisor request: %w", err)
	}
	if len(resp.Content) == 0 {
		return nil, fmt.Errorf("empty response from advisor")
	}

	advice, err := parseAdvice(resp.Content[0].Text)
	if err != nil {
		return nil, err
	}
	advice.Model = a.model
	return advice, nil
}

// parseAdvice accepts a bare JSON object or one wrapped in prose or a
// markdown fence.
func parseAdvice(text string) (*Advice, error) {
	var result Advice
	if err := json.Unmarshal([]byte(text), &result); err == nil {
		return &result, nil
	}

	start := findJSONStart(text)
	if start < 0 {
		return nil, fmt.Errorf("parsing advisor response: no JSON object (raw: %s)", text)
	}
	end := findJSONEnd(text, start)
	if end <= start {
		return nil, fmt.Errorf("parsing advisor response: unterminated JSON object (raw: %s)", text)
	}
	if err := json.Unmarshal([]byte(text[start:end+1]), &result); err != nil {
		return nil, fmt.Errorf("parsing advisor response: %w (raw: %s)", err, text)
	}
	return &result, nil
}

func findJSONStart(s string) int {
	for i, c := range s {
		if c == '{' {
			return i
		}
	}
	return -1
}

func findJSONEnd(s string, start int) int {
	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		ch := s[i]
		if escaped {
			escaped = false
			continue
		}
		if ch == '\\' && inString {
			escaped = true
			continue
		}
		if ch == '"' {
			inString = !inString
			continue
		}
		if inString {
			continue
		}
		switch ch {
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return i
			}
		}
	}
	return -1
}
