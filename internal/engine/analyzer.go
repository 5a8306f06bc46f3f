package engine

import (
	"context"
	"fmt"

	"github.com/replycoach/service/internal/llm"
)

// analyzeScene runs the scene analyzer once: one cool-temperature call with
// the analyzer rubric, parsed by the shared parser. When the call fails or
// parsing yields nothing usable the error wraps ErrAnalysisUnavailable;
// callers treat that as "no scene context" and compose without the scene
// block rather than fabricating values.
func (e *Engine) analyzeScene(ctx context.Context, cc ConversationContext, images [][]byte) (*SceneAnalysis, error) {
	prompt := ComposePrompt(LookupPersona(PersonaAnalyzer), cc, nil)

	callCtx, cancel := context.WithTimeout(ctx, e.analysisTimeout)
	defer cancel()

	var (
		raw string
		err error
	)
	if len(images) > 0 {
		raw, err = e.client.CompleteWithImages(callCtx, prompt, images, "image/jpeg", llm.RoleAnalysis)
	} else {
		raw, err = e.client.Complete(callCtx, prompt, llm.RoleAnalysis)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrAnalysisUnavailable, err)
	}

	scene, conf := ParseSceneAnalysis(raw)
	if scene == nil {
		e.log.WarnContext(ctx, "Scene analysis output unusable", "raw_len", len(raw))
		return nil, ErrAnalysisUnavailable
	}

	e.log.DebugContext(ctx, "Scene analysis complete",
		"confidence", conf, "urgency", scene.Urgency, "taboo_count", len(scene.Taboos))
	return scene, nil
}
