package engine

import (
	"encoding/json"
	"strings"
)

// The parser recovers structure from raw model text best-effort and never
// fails: whole-text decode first, then the first balanced {…} span, then a
// degraded record carrying the raw text as content. The same layering
// serves both advisor output and scene analysis.

// decodeStages runs the shared two JSON recovery stages into dst. Returns
// the confidence on success, or ParseDegraded when neither stage decoded.
func decodeStages(raw string, dst any) ParseConfidence {
	text := stripCodeFences(raw)

	if json.Unmarshal([]byte(text), dst) == nil {
		return ParseStrict
	}
	if span, ok := extractJSONObject(text); ok {
		if json.Unmarshal([]byte(span), dst) == nil {
			return ParseExtracted
		}
	}
	return ParseDegraded
}

// advisorPayload mirrors the JSON schema the composer instructs advisors to
// produce. Kept separate from AdvisorResponse so wire-format quirks stay
// out of the domain type.
type advisorPayload struct {
	Content        string              `json:"content"`
	Strategy       string              `json:"strategy"`
	RiskLevel      string              `json:"riskLevel"`
	WhyThis        string              `json:"whyThis"`
	SuccessRate    int                 `json:"successRate"`
	SafetyAnalysis SafetyAnalysis      `json:"safetyAnalysis"`
	NextPossible   []PredictedReaction `json:"nextPossible"`

	// Older prompt revisions used these names; accept them as fallbacks.
	Approach  string `json:"approach"`
	Reasoning string `json:"reasoning"`
}

// ParseAdvisorResponse normalizes raw advisor output. Never returns an
// error: unparseable text degrades to a response that carries the raw text
// as content with documented defaults for everything else.
func ParseAdvisorResponse(persona PersonaID, raw string) AdvisorResponse {
	resp := AdvisorResponse{
		ID:        replyID(persona),
		Persona:   persona,
		RiskLevel: RiskMedium,
		Reactions: []PredictedReaction{},
	}

	var payload advisorPayload
	conf := decodeStages(raw, &payload)
	resp.Confidence = conf
	if conf == ParseDegraded {
		resp.Content = strings.TrimSpace(raw)
		return resp
	}

	resp.Content = strings.TrimSpace(payload.Content)
	if resp.Content == "" {
		// Structured but missing the one required field: keep the raw text
		// so the user still sees something.
		resp.Content = strings.TrimSpace(raw)
		resp.Confidence = ParseDegraded
		return resp
	}
	resp.Strategy = payload.Strategy
	resp.RiskLevel = normalizeRisk(payload.RiskLevel)
	resp.Rationale = payload.WhyThis
	if resp.Rationale == "" {
		resp.Rationale = payload.Reasoning
	}
	if resp.Rationale == "" {
		resp.Rationale = payload.Approach
	}
	resp.SuccessRate = clampPercent(payload.SuccessRate)
	resp.Safety = payload.SafetyAnalysis
	if payload.NextPossible != nil {
		resp.Reactions = payload.NextPossible
	}
	return resp
}

// ParseSceneAnalysis recovers a scene analysis from raw analyzer output.
// Unlike advisor parsing there is no useful degraded form: callers get nil
// when no structure was recovered and fall back to the no-scene path.
func ParseSceneAnalysis(raw string) (*SceneAnalysis, ParseConfidence) {
	var scene SceneAnalysis
	conf := decodeStages(raw, &scene)
	if conf == ParseDegraded {
		return nil, ParseDegraded
	}
	if scene.Intent == "" && scene.DeepNeed == "" && scene.Emotion.Primary == "" {
		return nil, ParseDegraded
	}
	scene.Emotion.Intensity = clampScale(scene.Emotion.Intensity)
	scene.Urgency = clampScale(scene.Urgency)
	if scene.Taboos == nil {
		scene.Taboos = []string{}
	}
	return &scene, conf
}

// extractJSONObject returns the first balanced top-level {…} span,
// respecting string literals and escapes.
func extractJSONObject(s string) (string, bool) {
	start := strings.IndexByte(s, '{')
	if start < 0 {
		return "", false
	}

	depth := 0
	inString := false
	escaped := false
	for i := start; i < len(s); i++ {
		c := s[i]
		if inString {
			switch {
			case escaped:
				escaped = false
			case c == '\\':
				escaped = true
			case c == '"':
				inString = false
			}
			continue
		}
		switch c {
		case '"':
			inString = true
		case '{':
			depth++
		case '}':
			depth--
			if depth == 0 {
				return s[start : i+1], true
			}
		}
	}
	return "", false
}

func stripCodeFences(s string) string {
	s = strings.TrimSpace(s)
	if !strings.HasPrefix(s, "```") {
		return s
	}
	s = strings.TrimPrefix(s, "```json")
	s = strings.TrimPrefix(s, "```")
	s = strings.TrimSuffix(strings.TrimSpace(s), "```")
	return strings.TrimSpace(s)
}

func normalizeRisk(s string) RiskLevel {
	switch RiskLevel(strings.ToLower(strings.TrimSpace(s))) {
	case RiskLow:
		return RiskLow
	case RiskHigh:
		return RiskHigh
	default:
		return RiskMedium
	}
}

func clampPercent(n int) int {
	if n < 0 {
		return 0
	}
	if n > 100 {
		return 100
	}
	return n
}

func clampScale(n int) int {
	if n < 1 {
		return 1
	}
	if n > 10 {
		return 10
	}
	return n
}

// replyID derives a stable identifier from the persona, keeping the whole
// pipeline deterministic for identical inputs.
func replyID(persona PersonaID) string {
	return "reply_" + string(persona)
}
