package engine

import (
	"fmt"
	"strings"
)

// ComposePrompt assembles the full instruction payload for one persona. It
// is a pure function of its inputs: no clock, no randomness, no I/O. The
// layers run in a fixed order; each contributes a block or nothing.
//
// Layer order: persona identity, scenario guidance, profile mirror,
// pattern memory, scene context, output format. Analyzer personas skip the
// scene layer since they produce the analysis rather than consume it.
func ComposePrompt(persona *Persona, ctx ConversationContext, scene *SceneAnalysis) string {
	blocks := []string{
		renderIdentity(persona),
		renderScenarioGuidance(ctx),
		renderMirrorLayer(ctx),
		renderPatternMemory(ctx.Memory),
	}
	if persona.ID != PersonaAnalyzer {
		blocks = append(blocks, renderSceneBlock(scene))
	}
	blocks = append(blocks, renderSituation(ctx), renderOutputFormat(persona.ID))

	var nonEmpty []string
	for _, b := range blocks {
		if b != "" {
			nonEmpty = append(nonEmpty, b)
		}
	}
	return strings.Join(nonEmpty, "\n\n")
}

func renderIdentity(persona *Persona) string {
	var b strings.Builder
	fmt.Fprintf(&b, "你是「%s」，%s。\n", persona.Name, persona.Title)
	b.WriteString("\n## 你的核心理念\n")
	for _, p := range persona.Philosophy {
		fmt.Fprintf(&b, "- %s\n", p)
	}
	if len(persona.StyleRules) > 0 {
		b.WriteString("\n## 你的沟通风格\n")
		for _, r := range persona.StyleRules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	if len(persona.Canonical) > 0 {
		b.WriteString("\n## 你的典型用语\n")
		for _, c := range persona.Canonical {
			fmt.Fprintf(&b, "- \"%s\"\n", c)
		}
	}
	if len(persona.Forbidden) > 0 {
		b.WriteString("\n## 你绝对不会说\n")
		for _, f := range persona.Forbidden {
			fmt.Fprintf(&b, "- %s\n", f)
		}
	}
	if len(persona.RiskNotes) > 0 {
		b.WriteString("\n## 风险意识\n")
		for _, r := range persona.RiskNotes {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderScenarioGuidance injects matched-scenario guidance, or the generic
// social-safety rules when nothing in the catalogue matches.
func renderScenarioGuidance(ctx ConversationContext) string {
	var b strings.Builder
	if sc := matchScenario(ctx); sc != nil {
		b.WriteString("## 场景知识\n")
		fmt.Fprintf(&b, "- 对方的潜台词：%s\n", sc.Intent)
		fmt.Fprintf(&b, "- 推荐应对模式：%s\n", sc.Pattern)
		for _, ap := range sc.AntiPattern {
			fmt.Fprintf(&b, "- 不要这样做：%s\n", ap)
		}
		for _, fr := range sc.ForbiddenReplies {
			fmt.Fprintf(&b, "- 你的回复中绝对不要出现\"%s\"\n", fr)
		}
	} else {
		b.WriteString("## 社交安全规则\n")
		for _, r := range genericSafetyRules {
			fmt.Fprintf(&b, "- %s\n", r)
		}
	}
	return strings.TrimRight(b.String(), "\n")
}

// renderMirrorLayer picks the richest available identity context: full
// profile mirror, then contact block, then the generic register
// instruction.
func renderMirrorLayer(ctx ConversationContext) string {
	if ctx.Profile != nil {
		return renderProfileMirror(ctx.Profile)
	}
	if ctx.Contact != nil {
		return renderContactBlock(ctx.Contact)
	}
	return "## 表达要求\n- 使用自然、口语化的表达方式，符合你的人设即可\n- 考虑中国人的沟通习惯和文化背景"
}

func renderSceneBlock(scene *SceneAnalysis) string {
	if scene == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("## 场景分析师的判断\n")
	fmt.Fprintf(&b, "- 对方情绪：%s", scene.Emotion.Primary)
	if scene.Emotion.Secondary != "" {
		fmt.Fprintf(&b, "（夹杂%s）", scene.Emotion.Secondary)
	}
	fmt.Fprintf(&b, "，强度 %d/10\n", scene.Emotion.Intensity)
	fmt.Fprintf(&b, "- 对方意图：%s\n", scene.Intent)
	fmt.Fprintf(&b, "- 深层需求：%s\n", scene.DeepNeed)
	fmt.Fprintf(&b, "- 风险判断：%s\n", scene.Risk)
	fmt.Fprintf(&b, "- 紧急程度：%d/10\n", scene.Urgency)
	if len(scene.Taboos) > 0 {
		fmt.Fprintf(&b, "- 绝对禁区：%s\n", strings.Join(scene.Taboos, "；"))
	}
	if scene.Advice != "" {
		fmt.Fprintf(&b, "- 整体建议方向：%s\n", scene.Advice)
	}
	return strings.TrimRight(b.String(), "\n")
}

func renderSituation(ctx ConversationContext) string {
	var b strings.Builder
	b.WriteString("## 当前对话情境\n")
	fmt.Fprintf(&b, "对方说：“%s”\n", ctx.TheirMessage)
	if ctx.Background != "" {
		fmt.Fprintf(&b, "背景：%s\n", ctx.Background)
	}
	return strings.TrimRight(b.String(), "\n")
}

// Output formats are repeated identically for every reply persona so the
// parser can share one schema across all of them.
const advisorOutputFormat = `## 输出格式（JSON）
只输出一个 JSON 对象，结构如下：
{
  "content": "具体的回复话术，可以直接复制使用",
  "strategy": "策略名称",
  "riskLevel": "low/medium/high",
  "whyThis": "为什么这样说（解释给用户听）",
  "successRate": 75,
  "safetyAnalysis": {
    "bestCase": "最好的结果",
    "worstCase": "最坏的结果",
    "ifWorstHappens": "如果最坏情况发生，如何补救"
  },
  "nextPossible": [
    { "probability": 70, "theirResponse": "最可能的反应", "meaning": "这个反应意味着什么", "yourReply": "你可以接着这样回" },
    { "probability": 20, "theirResponse": "次可能的反应", "meaning": "", "yourReply": "" },
    { "probability": 10, "theirResponse": "低概率反应", "meaning": "", "yourReply": "" }
  ]
}

要求：
1. 回复内容必须自然、真诚，不要太正式或机械
2. 预测要具体、可信，基于实际人际交往逻辑`

const analyzerOutputFormat = `## 输出格式（JSON）
只输出一个 JSON 对象，结构如下：
{
  "emotion": { "primary": "主要情绪", "secondary": "次要情绪", "intensity": 7 },
  "intent": "对方的真实意图（不只是字面意思）",
  "deepNeed": "深层需求",
  "risk": "当前局面的风险判断（一句话）",
  "urgency": 7,
  "taboos": ["这个场景下绝对不能说的话"],
  "advice": "整体建议方向"
}

要求：
1. intensity 和 urgency 都是 1-10 的整数
2. 分析要具体，不要泛泛而谈`

func renderOutputFormat(id PersonaID) string {
	if id == PersonaAnalyzer {
		return analyzerOutputFormat
	}
	return advisorOutputFormat
}
