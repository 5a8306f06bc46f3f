package engine

import (
	"context"

	"golang.org/x/sync/errgroup"

	"github.com/replycoach/service/internal/llm"
)

// degradedContent is what a failed advisor slot carries instead of advice.
const degradedContent = "抱歉，我这边暂时出了点状况，没能给出建议，请稍后重试。"

// advisorCall pairs a persona with its fully composed prompt.
type advisorCall struct {
	persona *Persona
	prompt  string
}

// dispatch issues one generation call per persona concurrently and waits
// for every slot to settle. The result slice always has the same length and
// order as calls: each failure (transport error, timeout, empty completion)
// is absorbed into a degraded response in its own slot, never dropped and
// never allowed to fail the batch. Calls are not retried.
func (e *Engine) dispatch(ctx context.Context, calls []advisorCall) []AdvisorResponse {
	results := make([]AdvisorResponse, len(calls))

	g := new(errgroup.Group)
	for i, call := range calls {
		g.Go(func() error {
			callCtx, cancel := context.WithTimeout(ctx, e.advisorTimeout)
			defer cancel()

			raw, err := e.client.Complete(callCtx, call.prompt, llm.RoleAdvisor)
			if err != nil {
				e.log.WarnContext(ctx, "Advisor call failed, degrading slot",
					"persona", call.persona.ID, "error", err)
				results[i] = degradedResponse(call.persona.ID)
				return nil
			}
			results[i] = ParseAdvisorResponse(call.persona.ID, raw)
			return nil
		})
	}
	// Join barrier only: slot failures are absorbed above and the
	// goroutines never return errors.
	_ = g.Wait()

	return results
}

// degradedResponse is the placeholder for a failed advisor slot: static
// apology content, neutral risk, no prediction, rate 0.
func degradedResponse(persona PersonaID) AdvisorResponse {
	return AdvisorResponse{
		ID:         replyID(persona),
		Persona:    persona,
		Content:    degradedContent,
		RiskLevel:  RiskMedium,
		Reactions:  []PredictedReaction{},
		Confidence: ParseDegraded,
	}
}
