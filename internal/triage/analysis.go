package triage

import (
	"context"
	"encoding/json"
	"strings"
)

// analysisOutcome is the structured completion check the model returns after
// each turn. CanComplete gates finalization; the rest feeds the result.
type analysisOutcome struct {
	CanComplete        bool     `json:"can_complete"`
	UrgencyLevel       string   `json:"urgency_level"`
	RecommendedAction  string   `json:"recommended_action"`
	Timeframe          string   `json:"timeframe"`
	Reasoning          string   `json:"reasoning"`
	MissingInformation []string `json:"missing_information"`
	WarningSigns       []string `json:"warning_signs"`
}

// analyzeCompletion asks the model whether enough information has been
// gathered to triage, and with what outcome. It never returns an error: a
// failed call or unparseable reply degrades to "keep asking", so one bad
// analysis can never finalize or wedge a session.
func (c *Controller) analyzeCompletion(ctx context.Context, s *Session) *analysisOutcome {
	req := &GenerateRequest{
		System: analysisSystemPrompt,
		Messages: []PromptMessage{
			{Role: RoleUser, Content: buildAnalysisPrompt(s)},
		},
		MaxTokens: analysisMaxTokens,
	}

	resp, err := c.generate(ctx, req)
	if err != nil {
		c.logger.Warn(ctx, "completion analysis failed, continuing session",
			"session_id", s.ID, "error", err)
		c.hooks.AnalysisFailure()
		return analysisFallback()
	}

	raw := extractJSONObject(resp.Text)
	if raw == "" {
		c.logger.Warn(ctx, "completion analysis returned no JSON object",
			"session_id", s.ID)
		c.hooks.AnalysisParseFailure()
		return analysisFallback()
	}

	var out analysisOutcome
	if err := json.Unmarshal([]byte(raw), &out); err != nil {
		c.logger.Warn(ctx, "completion analysis JSON did not parse",
			"session_id", s.ID, "error", err)
		c.hooks.AnalysisParseFailure()
		return analysisFallback()
	}
	out.UrgencyLevel = strings.ToUpper(strings.TrimSpace(out.UrgencyLevel))
	return &out
}

func analysisFallback() *analysisOutcome {
	return &analysisOutcome{
		CanComplete:        false,
		MissingInformation: []string{"analysis unavailable"},
	}
}
