package engine_test

import (
	"testing"

	"github.com/replycoach/service/internal/engine"
)

func genuine(id string, persona engine.PersonaID, rate int) engine.AdvisorResponse {
	return engine.AdvisorResponse{
		ID:          id,
		Persona:     persona,
		Content:     "content " + id,
		RiskLevel:   engine.RiskMedium,
		SuccessRate: rate,
		Confidence:  engine.ParseStrict,
		Reactions:   []engine.PredictedReaction{},
	}
}

func degraded(id string, persona engine.PersonaID) engine.AdvisorResponse {
	r := genuine(id, persona, 0)
	r.Confidence = engine.ParseDegraded
	return r
}

func TestRank(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name      string
		responses []engine.AdvisorResponse
		want      string
	}{
		{
			name: "highest success rate wins",
			responses: []engine.AdvisorResponse{
				genuine("reply_warm", engine.PersonaWarm, 50),
				genuine("reply_humor", engine.PersonaHumor, 80),
				genuine("reply_cool", engine.PersonaCool, 30),
				genuine("reply_direct", engine.PersonaDirect, 75),
			},
			want: "reply_humor",
		},
		{
			name: "tie goes to earlier dispatch slot",
			responses: []engine.AdvisorResponse{
				genuine("reply_warm", engine.PersonaWarm, 70),
				genuine("reply_humor", engine.PersonaHumor, 70),
				genuine("reply_cool", engine.PersonaCool, 70),
			},
			want: "reply_warm",
		},
		{
			name: "genuine beats degraded at equal rate",
			responses: []engine.AdvisorResponse{
				degraded("reply_warm", engine.PersonaWarm),
				genuine("reply_humor", engine.PersonaHumor, 0),
			},
			want: "reply_humor",
		},
		{
			name: "all degraded still picks exactly one",
			responses: []engine.AdvisorResponse{
				degraded("reply_warm", engine.PersonaWarm),
				degraded("reply_humor", engine.PersonaHumor),
			},
			want: "reply_warm",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			set := engine.Rank(tt.responses)

			if set.RecommendedID != tt.want {
				t.Errorf("recommended = %q, want %q", set.RecommendedID, tt.want)
			}
			for i := range tt.responses {
				if set.Responses[i].ID != tt.responses[i].ID {
					t.Errorf("presentation order changed at %d: got %q, want %q",
						i, set.Responses[i].ID, tt.responses[i].ID)
				}
			}
		})
	}
}

func TestRank_EmptyBatch(t *testing.T) {
	t.Parallel()

	set := engine.Rank(nil)
	if set.RecommendedID != "" {
		t.Errorf("recommended = %q, want empty", set.RecommendedID)
	}
}
