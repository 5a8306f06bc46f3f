package engine_test

import (
	"testing"

	"github.com/replycoach/service/internal/engine"
)

const wellFormedAdvisorJSON = `{
  "content": "宝贝是对哪部分有疑问呀？我们挑一个你喜欢的😊",
  "strategy": "俏皮澄清",
  "riskLevel": "low",
  "whyThis": "不接字面意思，给对方台阶",
  "successRate": 78,
  "safetyAnalysis": {"bestCase": "对方说出真实想法", "worstCase": "对方继续冷淡", "ifWorstHappens": "过一会儿再关心一次"},
  "nextPossible": [{"probability": 70, "theirResponse": "其实我想要A", "meaning": "台阶起效", "yourReply": "那就A啦"}]
}`

func TestParseAdvisorResponse(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name        string
		raw         string
		confidence  engine.ParseConfidence
		content     string
		risk        engine.RiskLevel
		successRate int
	}{
		{
			name:        "well-formed JSON",
			raw:         wellFormedAdvisorJSON,
			confidence:  engine.ParseStrict,
			content:     "宝贝是对哪部分有疑问呀？我们挑一个你喜欢的😊",
			risk:        engine.RiskLow,
			successRate: 78,
		},
		{
			name:        "JSON inside code fence",
			raw:         "```json\n" + wellFormedAdvisorJSON + "\n```",
			confidence:  engine.ParseStrict,
			content:     "宝贝是对哪部分有疑问呀？我们挑一个你喜欢的😊",
			risk:        engine.RiskLow,
			successRate: 78,
		},
		{
			name:        "JSON embedded in prose",
			raw:         "好的，我的建议如下：\n" + wellFormedAdvisorJSON + "\n希望有帮助！",
			confidence:  engine.ParseExtracted,
			content:     "宝贝是对哪部分有疑问呀？我们挑一个你喜欢的😊",
			risk:        engine.RiskLow,
			successRate: 78,
		},
		{
			name:        "unstructured prose degrades",
			raw:         "直接回一句：宝贝我们选A好不好？",
			confidence:  engine.ParseDegraded,
			content:     "直接回一句：宝贝我们选A好不好？",
			risk:        engine.RiskMedium,
			successRate: 0,
		},
		{
			name:        "unknown risk level defaults to medium",
			raw:         `{"content": "嗯，我知道了", "riskLevel": "extreme", "successRate": 40}`,
			confidence:  engine.ParseStrict,
			content:     "嗯，我知道了",
			risk:        engine.RiskMedium,
			successRate: 40,
		},
		{
			name:        "out-of-range success rate clamped",
			raw:         `{"content": "我直接说了", "riskLevel": "high", "successRate": 150}`,
			confidence:  engine.ParseStrict,
			content:     "我直接说了",
			risk:        engine.RiskHigh,
			successRate: 100,
		},
		{
			name:        "structured but empty content degrades",
			raw:         `{"strategy": "高冷", "successRate": 60}`,
			confidence:  engine.ParseDegraded,
			content:     `{"strategy": "高冷", "successRate": 60}`,
			risk:        engine.RiskMedium,
			successRate: 0,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			got := engine.ParseAdvisorResponse(engine.PersonaWarm, tt.raw)

			if got.Confidence != tt.confidence {
				t.Errorf("confidence = %q, want %q", got.Confidence, tt.confidence)
			}
			if got.Content != tt.content {
				t.Errorf("content = %q, want %q", got.Content, tt.content)
			}
			if got.RiskLevel != tt.risk {
				t.Errorf("riskLevel = %q, want %q", got.RiskLevel, tt.risk)
			}
			if got.SuccessRate != tt.successRate {
				t.Errorf("successRate = %d, want %d", got.SuccessRate, tt.successRate)
			}
			if got.Reactions == nil {
				t.Error("reactions must never be nil")
			}
			if got.Persona != engine.PersonaWarm {
				t.Errorf("persona = %q, want warm", got.Persona)
			}
		})
	}
}

func TestParseAdvisorResponse_BracesInsideStrings(t *testing.T) {
	t.Parallel()

	raw := `前言 {"content": "说一句 {加油} 就好", "riskLevel": "low"} 后记`
	got := engine.ParseAdvisorResponse(engine.PersonaHumor, raw)

	if got.Confidence != engine.ParseExtracted {
		t.Fatalf("confidence = %q, want extracted", got.Confidence)
	}
	if got.Content != "说一句 {加油} 就好" {
		t.Errorf("content = %q", got.Content)
	}
}

func TestParseSceneAnalysis(t *testing.T) {
	t.Parallel()

	tests := []struct {
		name     string
		raw      string
		wantNil  bool
		wantConf engine.ParseConfidence
	}{
		{
			name:     "well-formed",
			raw:      `{"emotion":{"primary":"受伤","secondary":"失望","intensity":7},"intent":"等待道歉","deepNeed":"被重视","risk":"冷战","urgency":8,"taboos":["我很忙"]}`,
			wantConf: engine.ParseStrict,
		},
		{
			name:     "embedded in prose",
			raw:      "分析如下 {\"emotion\":{\"primary\":\"生气\",\"intensity\":9},\"intent\":\"发泄\",\"deepNeed\":\"被理解\",\"risk\":\"升级\",\"urgency\":9,\"taboos\":[]} 完毕",
			wantConf: engine.ParseExtracted,
		},
		{
			name:    "pure prose is unusable",
			raw:     "对方看起来有点生气，建议先道歉。",
			wantNil: true,
		},
		{
			name:    "structured but empty fields are unusable",
			raw:     `{"urgency": 5}`,
			wantNil: true,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			t.Parallel()

			scene, conf := engine.ParseSceneAnalysis(tt.raw)

			if tt.wantNil {
				if scene != nil {
					t.Fatalf("expected nil scene, got %+v", scene)
				}
				return
			}
			if scene == nil {
				t.Fatal("expected a scene, got nil")
			}
			if conf != tt.wantConf {
				t.Errorf("confidence = %q, want %q", conf, tt.wantConf)
			}
			if scene.Taboos == nil {
				t.Error("taboos must never be nil")
			}
		})
	}
}

func TestParseSceneAnalysis_ClampsScales(t *testing.T) {
	t.Parallel()

	scene, _ := engine.ParseSceneAnalysis(`{"emotion":{"primary":"愤怒","intensity":15},"intent":"发泄","deepNeed":"被理解","risk":"高","urgency":0,"taboos":[]}`)
	if scene == nil {
		t.Fatal("expected a scene")
	}
	if scene.Emotion.Intensity != 10 {
		t.Errorf("intensity = %d, want clamped to 10", scene.Emotion.Intensity)
	}
	if scene.Urgency != 1 {
		t.Errorf("urgency = %d, want clamped to 1", scene.Urgency)
	}
}
