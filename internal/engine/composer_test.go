package engine_test

import (
	"strings"
	"testing"

	"github.com/replycoach/service/internal/engine"
)

func cohabitationContext() engine.ConversationContext {
	return engine.ConversationContext{
		TheirMessage: "随便你",
		Profile: &engine.RelationshipProfile{
			ID:               "rel-1",
			PersonName:       "小美",
			RelationshipType: "恋爱关系",
			Goal:             "推进到同居阶段",
			Persona:          []string{"独立", "温柔", "不作不闹"},
			Style: engine.CommunicationStyle{
				Vocabulary:     []string{"宝贝", "呀", "哈哈"},
				SentenceLength: engine.SentenceShort,
				EmojiUsage:     engine.EmojiFrequent,
				Tone:           "温柔",
			},
		},
		Memory: &engine.PatternMemory{
			Successes: []engine.SuccessfulPattern{
				{Strategy: "撒娇式沟通", SuccessRate: 80, Example: "宝贝你是对哪部分有疑问呀？😊"},
			},
			Failures: []engine.FailedPattern{
				{Strategy: "被动等待", Reason: "对方会觉得你没主见"},
			},
		},
	}
}

func TestComposePrompt_ProfileAndPatternsRendered(t *testing.T) {
	t.Parallel()

	ctx := cohabitationContext()
	prompt := engine.ComposePrompt(engine.LookupPersona(engine.PersonaWarm), ctx, nil)

	mustContain := []string{
		"推进到同居阶段",
		"撒娇式沟通",
		"成功率 80%",
		"被动等待",
		"宝贝、呀、哈哈",
		"随便你",
	}
	for _, want := range mustContain {
		if !strings.Contains(prompt, want) {
			t.Errorf("prompt missing %q", want)
		}
	}
}

func TestComposePrompt_ScenarioForbidsLiteralEcho(t *testing.T) {
	t.Parallel()

	prompt := engine.ComposePrompt(engine.LookupPersona(engine.PersonaWarm), cohabitationContext(), nil)

	if !strings.Contains(prompt, "绝对不要出现\"随便\"") {
		t.Errorf("prompt does not forbid echoing the dismissive phrase:\n%s", prompt)
	}
}

func TestComposePrompt_Pure(t *testing.T) {
	t.Parallel()

	ctx := cohabitationContext()
	persona := engine.LookupPersona(engine.PersonaHumor)
	scene := &engine.SceneAnalysis{
		Emotion: engine.Emotion{Primary: "不满", Intensity: 6},
		Intent:  "试探你是否在意",
		Taboos:  []string{"那就随便吧"},
	}

	first := engine.ComposePrompt(persona, ctx, scene)
	second := engine.ComposePrompt(persona, ctx, scene)
	if first != second {
		t.Error("identical inputs produced different prompts")
	}
}

func TestComposePrompt_NoProfileUsesGenericRules(t *testing.T) {
	t.Parallel()

	ctx := engine.ConversationContext{TheirMessage: "今天有点累"}
	prompt := engine.ComposePrompt(engine.LookupPersona(engine.PersonaDirect), ctx, nil)

	if !strings.Contains(prompt, "社交安全规则") {
		t.Error("generic safety rules missing from profile-less prompt")
	}
	if !strings.Contains(prompt, "你总是") {
		t.Error("absolute-language warning missing from generic rules")
	}
	if strings.Contains(prompt, "理解用户是谁") {
		t.Error("profile mirror rendered without a profile")
	}
}

func TestComposePrompt_SceneLayerPlacement(t *testing.T) {
	t.Parallel()

	ctx := engine.ConversationContext{TheirMessage: "哦"}
	scene := &engine.SceneAnalysis{
		Emotion:  engine.Emotion{Primary: "失望", Intensity: 7},
		Intent:   "等你主动发现问题",
		DeepNeed: "被重视",
		Risk:     "冷战升级",
		Urgency:  8,
		Taboos:   []string{"那行吧"},
	}

	advisor := engine.ComposePrompt(engine.LookupPersona(engine.PersonaCool), ctx, scene)
	if !strings.Contains(advisor, "场景分析师的判断") {
		t.Error("advisor prompt missing scene block")
	}

	analyzer := engine.ComposePrompt(engine.LookupPersona(engine.PersonaAnalyzer), ctx, scene)
	if strings.Contains(analyzer, "场景分析师的判断") {
		t.Error("analyzer prompt must not consume a scene block")
	}
	if !strings.Contains(analyzer, "taboos") {
		t.Error("analyzer prompt missing its output format")
	}
}
