package engine

import "strings"

// Scenario is one entry in the static social-scenario catalogue: a known
// situation, what the other party usually means by it, the response pattern
// that tends to work, and the replies that reliably backfire.
type Scenario struct {
	ID          string
	Category    string
	Keywords    []string
	Intent      string
	Pattern     string
	AntiPattern []string
	// ForbiddenReplies are literal phrases the advisor must not use in its
	// own reply for this scenario.
	ForbiddenReplies []string
}

// scenarioCatalogue is pure data. Matching order matters: the first entry
// whose keyword appears in the message wins.
var scenarioCatalogue = []Scenario{
	{
		ID:       "dismissive_concession",
		Category: "恋爱关系",
		Keywords: []string{"随便", "都行", "无所谓", "你看着办"},
		Intent:   "表面让步，实际在试探你是否在意TA的感受",
		Pattern:  "俏皮澄清：不接字面意思，主动给出两个具体选项让对方选，顺便表达在意",
		AntiPattern: []string{
			"照字面意思直接接受",
			"反问\"你到底想怎样\"",
		},
		ForbiddenReplies: []string{"随便", "那就这样吧"},
	},
	{
		ID:       "cold_short_reply",
		Category: "恋爱关系",
		Keywords: []string{"嗯", "哦", "呵呵", "没事"},
		Intent:   "用最短的字数表达不满或失望，等你主动发现问题",
		Pattern:  "温和破冰：承认察觉到TA情绪不对，表达在意，给TA台阶说出真实想法",
		AntiPattern: []string{
			"假装没注意到情绪变化",
			"追问\"你怎么了\"连环轰炸",
		},
		ForbiddenReplies: []string{"哦", "那行吧"},
	},
	{
		ID:       "boss_delegates_decision",
		Category: "职场沟通",
		Keywords: []string{"你定", "你决定", "就这么定", "看着办吧"},
		Intent:   "授权的同时在考察你的判断力，期待一个有理有据的方案而非反弹问题",
		Pattern:  "带方案确认：给出倾向方案和一句理由，留一个确认的口子",
		AntiPattern: []string{
			"把问题原样抛回去",
			"不说理由直接拍板",
		},
		ForbiddenReplies: []string{"都可以", "听您的"},
	},
	{
		ID:       "seen_not_replied",
		Category: "恋爱关系",
		Keywords: []string{"在吗", "怎么不回", "不理我"},
		Intent:   "TA在等待被重视的信号，拖得越久补救成本越高",
		Pattern:  "先回应情绪再解释原因：让TA知道不回复不等于不在乎",
		AntiPattern: []string{
			"只解释忙，不回应情绪",
			"反过来指责对方太粘人",
		},
	},
	{
		ID:       "family_pressure",
		Category: "家庭沟通",
		Keywords: []string{"相亲", "结婚", "稳定", "别人家"},
		Intent:   "关心包装成催促，核心诉求是确认你过得好、有规划",
		Pattern:  "接住关心，给出规划感：认可出发点，给一个具体但不承诺时间表的回应",
		AntiPattern: []string{
			"正面顶撞",
			"敷衍答应了事",
		},
	},
}

// genericSafetyRules is injected when no catalogue entry matches. Baseline
// face-protecting rules for Chinese social contexts.
var genericSafetyRules = []string{
	"保全对方的面子，不让TA下不来台",
	"避免指责式表达，多用\"我\"句式陈述感受",
	"避免绝对化语言，如\"你总是\"\"你从来\"",
	"不翻旧账，只处理当前这一件事",
}

// matchScenario scans the catalogue for the first entry whose keyword
// appears in the message. Category is used as a weak filter: an entry with
// a category only matches when the context has no relationship category or
// the categories agree.
func matchScenario(ctx ConversationContext) *Scenario {
	category := ""
	if ctx.Profile != nil {
		category = ctx.Profile.RelationshipType
	} else if ctx.Contact != nil {
		category = ctx.Contact.RelationshipType
	}

	for i := range scenarioCatalogue {
		sc := &scenarioCatalogue[i]
		if category != "" && sc.Category != "" && sc.Category != category {
			continue
		}
		for _, kw := range sc.Keywords {
			if strings.Contains(ctx.TheirMessage, kw) {
				return sc
			}
		}
	}

	// Second pass ignoring category: a keyword hit in the wrong category
	// still beats generic rules.
	for i := range scenarioCatalogue {
		sc := &scenarioCatalogue[i]
		for _, kw := range sc.Keywords {
			if strings.Contains(ctx.TheirMessage, kw) {
				return sc
			}
		}
	}
	return nil
}
