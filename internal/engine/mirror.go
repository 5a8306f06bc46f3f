package engine

import (
	"fmt"
	"strings"
)

// Fragment builders for the profile-mirroring and pattern-memory layers.
// All pure string functions so each layer is testable in isolation.

var sentenceLengthDirectives = map[SentenceLength]string{
	SentenceShort:  "短句为主",
	SentenceMedium: "中等长度",
	SentenceLong:   "长句为主",
}

var emojiUsageDirectives = map[EmojiUsage]string{
	EmojiFrequent:   "频繁使用",
	EmojiOccasional: "偶尔使用",
	EmojiRare:       "很少使用",
}

// renderProfileMirror turns a relationship profile into directive sentences
// so replies sound like the user. Returns "" for a nil profile; the caller
// substitutes the generic register instruction.
func renderProfileMirror(profile *RelationshipProfile) string {
	if profile == nil {
		return ""
	}

	var b strings.Builder
	b.WriteString("## 理解用户是谁\n")
	if profile.PersonName != "" {
		fmt.Fprintf(&b, "- 对象称呼：%s\n", profile.PersonName)
	}
	if profile.RelationshipType != "" {
		fmt.Fprintf(&b, "- 关系类型：%s\n", profile.RelationshipType)
	}
	if profile.CurrentStage != "" {
		fmt.Fprintf(&b, "- 关系阶段：%s\n", profile.CurrentStage)
	}
	if profile.Goal != "" {
		fmt.Fprintf(&b, "- 关系目标：%s，回复要推进这个目标\n", profile.Goal)
	}
	if len(profile.Persona) > 0 {
		fmt.Fprintf(&b, "- 期望展现的人设：%s\n", strings.Join(profile.Persona, "、"))
	}
	b.WriteString(renderStyleGuidance(profile.Style))
	if profile.SpecialNotes != "" {
		fmt.Fprintf(&b, "- 特别注意：%s\n", profile.SpecialNotes)
	}
	b.WriteString("\n回复内容必须听起来就像用户自己说的，不要太正式或机械。")
	return b.String()
}

// renderStyleGuidance renders the communication-style portion of the
// mirror. Empty style fields are skipped.
func renderStyleGuidance(style CommunicationStyle) string {
	var lines []string
	if len(style.Vocabulary) > 0 {
		lines = append(lines, fmt.Sprintf("使用这些常用词汇：%s", strings.Join(style.Vocabulary, "、")))
	}
	if d, ok := sentenceLengthDirectives[style.SentenceLength]; ok {
		lines = append(lines, fmt.Sprintf("句子长度：%s", d))
	}
	if d, ok := emojiUsageDirectives[style.EmojiUsage]; ok {
		lines = append(lines, fmt.Sprintf("Emoji使用：%s", d))
	}
	if style.Tone != "" {
		lines = append(lines, fmt.Sprintf("语气：%s", style.Tone))
	}
	if len(lines) == 0 {
		return ""
	}
	return "- 说话风格：\n  - " + strings.Join(lines, "\n  - ") + "\n"
}

// renderContactBlock renders the lightweight contact context used by chat
// requests that carry no standing profile.
func renderContactBlock(contact *ContactInfo) string {
	if contact == nil {
		return ""
	}
	var b strings.Builder
	b.WriteString("## 关系背景信息\n")
	fmt.Fprintf(&b, "- 对象称呼：%s\n", contact.Name)
	fmt.Fprintf(&b, "- 关系类型：%s\n", contact.RelationshipType)
	fmt.Fprintf(&b, "- 关系阶段：%s\n", contact.RelationshipStage)
	if contact.Traits != "" {
		fmt.Fprintf(&b, "- TA的特点：%s\n", contact.Traits)
	}
	b.WriteString("\n请根据这个关系背景，给出更有针对性的建议。")
	return b.String()
}

// renderPatternMemory enumerates what has worked and what has backfired in
// this relationship. Returns "" when there is nothing to say.
func renderPatternMemory(memory *PatternMemory) string {
	if memory == nil || (len(memory.Successes) == 0 && len(memory.Failures) == 0) {
		return ""
	}

	var b strings.Builder
	b.WriteString("## 历史经验告诉我们\n")
	if len(memory.Successes) > 0 {
		b.WriteString("在这个关系中最有效的策略，继续使用但不要复制原话：\n")
		for _, p := range memory.Successes {
			fmt.Fprintf(&b, "✅ %s（成功率 %d%%）\n", p.Strategy, p.SuccessRate)
			if p.Example != "" {
				fmt.Fprintf(&b, "   案例：“%s”\n", p.Example)
			}
		}
	}
	if len(memory.Failures) > 0 {
		b.WriteString("要避免的策略：\n")
		for _, p := range memory.Failures {
			fmt.Fprintf(&b, "❌ %s\n", p.Strategy)
			if p.Reason != "" {
				fmt.Fprintf(&b, "   原因：%s\n", p.Reason)
			}
		}
	}
	return strings.TrimRight(b.String(), "\n")
}
