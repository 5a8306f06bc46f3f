package engine

import (
	"context"
	"errors"
	"fmt"

	"github.com/replycoach/service/internal/llm"
)

// ErrScreenshotUnreadable signals that nothing structured could be
// recovered from the screenshot extraction call.
var ErrScreenshotUnreadable = errors.New("screenshot content could not be extracted")

const screenshotPrompt = `你是一位聊天记录分析专家。用户上传了聊天截图，请提取其中的对话内容并分析。

## 你的任务
1. 逐条提取截图中的消息，标明每条是谁说的（"我" 或 "对方"）
2. 推测双方的关系类型（如：恋人、朋友、同事、家人）
3. 分析对方的说话风格和特点

## 输出格式（JSON）
只输出一个 JSON 对象，结构如下：
{
  "messages": [
    { "speaker": "对方", "content": "消息内容" },
    { "speaker": "我", "content": "消息内容" }
  ],
  "context": "对话情境的简短描述",
  "relationshipGuess": "推测的关系类型",
  "personStyle": {
    "communicationStyle": "对方的整体沟通风格",
    "characteristics": ["特点1", "特点2"],
    "notes": "其他观察"
  },
  "confidence": 0.8
}

要求：
1. 按截图中的顺序提取消息，不要遗漏
2. confidence 是 0-1 的小数，表示提取内容的可信度
3. 如果无法判断某条消息是谁说的，speaker 填 "未知"`

type screenshotPayload struct {
	Messages          []ExtractedMessage `json:"messages"`
	Context           string             `json:"context"`
	RelationshipGuess string             `json:"relationshipGuess"`
	PersonStyle       PersonStyle        `json:"personStyle"`
	Confidence        float64            `json:"confidence"`
}

// AnalyzeScreenshot extracts the conversation from chat screenshots and
// infers the relationship and the other party's style. Unlike advisor
// output there is no useful degraded form here, so an unparseable
// extraction is an error.
func (e *Engine) AnalyzeScreenshot(ctx context.Context, images [][]byte, mimeType string) (*ScreenshotResult, error) {
	if len(images) == 0 {
		return nil, fmt.Errorf("at least one image is required")
	}

	callCtx, cancel := context.WithTimeout(ctx, e.analysisTimeout)
	defer cancel()

	raw, err := e.client.CompleteWithImages(callCtx, screenshotPrompt, images, mimeType, llm.RoleAnalysis)
	if err != nil {
		return nil, fmt.Errorf("screenshot extraction call: %w", err)
	}

	var payload screenshotPayload
	if decodeStages(raw, &payload) == ParseDegraded || len(payload.Messages) == 0 {
		e.log.WarnContext(ctx, "Screenshot extraction output unusable", "raw_len", len(raw))
		return nil, ErrScreenshotUnreadable
	}

	if payload.Confidence < 0 {
		payload.Confidence = 0
	} else if payload.Confidence > 1 {
		payload.Confidence = 1
	}
	if payload.PersonStyle.Characteristics == nil {
		payload.PersonStyle.Characteristics = []string{}
	}

	return &ScreenshotResult{
		ExtractedConversation: ExtractedConversation{
			Messages: payload.Messages,
			Context:  payload.Context,
		},
		RelationshipGuess: payload.RelationshipGuess,
		PersonStyle:       payload.PersonStyle,
		Confidence:        payload.Confidence,
	}, nil
}
