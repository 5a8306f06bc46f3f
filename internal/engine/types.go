// Package engine implements the advisory orchestration core: scene
// analysis, persona prompt composition, concurrent advisor fan-out with
// per-call failure isolation, response normalization, and deterministic
// ranking into a single recommendation set.
package engine

import "errors"

// ErrEmptyMessage is returned when a caller supplies an empty message.
// This is the only condition that short-circuits a request before any
// generation call is made.
var ErrEmptyMessage = errors.New("their message is empty")

// ErrAnalysisUnavailable signals that the scene analyzer produced nothing
// usable. Downstream composition treats it as "no scene context" and omits
// the scene block from persona prompts.
var ErrAnalysisUnavailable = errors.New("scene analysis unavailable")

// RiskLevel grades how risky a suggested reply is.
type RiskLevel string

const (
	RiskLow    RiskLevel = "low"
	RiskMedium RiskLevel = "medium"
	RiskHigh   RiskLevel = "high"
)

// ParseConfidence marks how the structured record was recovered from raw
// model output.
type ParseConfidence string

const (
	// ParseStrict means the whole text parsed as the expected record.
	ParseStrict ParseConfidence = "strict"
	// ParseExtracted means a JSON object was recovered from surrounding prose.
	ParseExtracted ParseConfidence = "extracted"
	// ParseDegraded means no structure was recovered; the raw text was
	// carried as content and every other field defaulted.
	ParseDegraded ParseConfidence = "degraded"
)

// SentenceLength is a user's sentence-length preference.
type SentenceLength string

const (
	SentenceShort  SentenceLength = "short"
	SentenceMedium SentenceLength = "medium"
	SentenceLong   SentenceLength = "long"
)

// EmojiUsage is a user's emoji frequency preference.
type EmojiUsage string

const (
	EmojiFrequent   EmojiUsage = "frequent"
	EmojiOccasional EmojiUsage = "occasional"
	EmojiRare       EmojiUsage = "rare"
)

// CommunicationStyle captures a user's remembered speech style. Read-only
// to the engine.
type CommunicationStyle struct {
	Vocabulary     []string       `json:"vocabulary"`
	SentenceLength SentenceLength `json:"sentenceLength"`
	EmojiUsage     EmojiUsage     `json:"emojiUsage"`
	Tone           string         `json:"tone"`
}

// RelationshipProfile is a read-only snapshot of a standing relationship
// record. The engine never mutates it.
type RelationshipProfile struct {
	ID               string
	PersonName       string
	RelationshipType string
	Goal             string
	Persona          []string
	Style            CommunicationStyle
	CurrentStage     string
	SpecialNotes     string
	LearningProgress int
}

// SuccessfulPattern is a previously observed strategy that worked.
type SuccessfulPattern struct {
	Strategy    string
	SuccessRate int
	Example     string
}

// FailedPattern is a previously observed strategy that backfired.
type FailedPattern struct {
	Strategy string
	Reason   string
}

// PatternMemory holds historical success/failure patterns for one
// relationship, derived externally and passed in read-only.
type PatternMemory struct {
	Successes []SuccessfulPattern
	Failures  []FailedPattern
}

// ContactInfo is the lightweight relationship context attached to chat
// requests that have no standing profile.
type ContactInfo struct {
	Name              string `json:"name"`
	RelationshipType  string `json:"relationshipType"`
	RelationshipStage string `json:"relationshipStage"`
	Traits            string `json:"traits,omitempty"`
}

// ConversationContext carries everything known about one request. Immutable
// for the duration of the request.
type ConversationContext struct {
	TheirMessage string
	Background   string
	Profile      *RelationshipProfile
	Memory       *PatternMemory
	Contact      *ContactInfo
}

// Emotion describes the other party's emotional state.
type Emotion struct {
	Primary   string `json:"primary"`
	Secondary string `json:"secondary,omitempty"`
	Intensity int    `json:"intensity"`
}

// SceneAnalysis is the analyzer's structured read of the situation.
// Produced once per request and never mutated afterwards.
type SceneAnalysis struct {
	Emotion  Emotion  `json:"emotion"`
	Intent   string   `json:"intent"`
	DeepNeed string   `json:"deepNeed"`
	Risk     string   `json:"risk"`
	Urgency  int      `json:"urgency"`
	Taboos   []string `json:"taboos"`
	Advice   string   `json:"advice,omitempty"`
}

// PredictedReaction is one possible way the other party may respond.
type PredictedReaction struct {
	Probability   int    `json:"probability"`
	TheirResponse string `json:"theirResponse"`
	Meaning       string `json:"meaning,omitempty"`
	YourReply     string `json:"yourReply,omitempty"`
}

// SafetyAnalysis sketches the outcome range of sending a reply.
type SafetyAnalysis struct {
	BestCase       string `json:"bestCase"`
	WorstCase      string `json:"worstCase"`
	IfWorstHappens string `json:"ifWorstHappens"`
}

// AdvisorResponse is one advisor's normalized output. Immutable once
// produced.
type AdvisorResponse struct {
	ID          string              `json:"id"`
	Persona     PersonaID           `json:"persona"`
	Content     string              `json:"content"`
	Strategy    string              `json:"strategy"`
	RiskLevel   RiskLevel           `json:"riskLevel"`
	Rationale   string              `json:"whyThis"`
	SuccessRate int                 `json:"successRate"`
	Safety      SafetyAnalysis      `json:"safetyAnalysis"`
	Reactions   []PredictedReaction `json:"nextPossible"`
	Confidence  ParseConfidence     `json:"-"`
}

// RecommendationSet is the engine's final output: responses in original
// dispatch order plus a single designated recommendation.
type RecommendationSet struct {
	Responses     []AdvisorResponse `json:"responses"`
	RecommendedID string            `json:"recommendedId"`
}

// QuickReplyRequest is the quick-reply operation input.
type QuickReplyRequest struct {
	TheirMessage   string `json:"theirMessage" binding:"required"`
	Context        string `json:"context,omitempty"`
	RelationshipID string `json:"relationshipId,omitempty"`
}

// AnalysisSummary is the condensed scene read returned to callers.
type AnalysisSummary struct {
	Subtext string `json:"subtext"`
	Emotion string `json:"emotion"`
	Risk    string `json:"risk"`
}

// ReplyOption is one candidate reply in the quick-reply response.
type ReplyOption struct {
	ID             string              `json:"id"`
	Content        string              `json:"content"`
	Strategy       string              `json:"strategy"`
	RiskLevel      RiskLevel           `json:"riskLevel"`
	WhyThis        string              `json:"whyThis"`
	SafetyAnalysis SafetyAnalysis      `json:"safetyAnalysis"`
	NextPossible   []PredictedReaction `json:"nextPossible"`
}

// AvoidItem is something the user should not say, with the reason.
type AvoidItem struct {
	Content string `json:"content"`
	Reason  string `json:"reason"`
}

// QuickReplyResponse is the quick-reply operation output.
type QuickReplyResponse struct {
	Analysis           *AnalysisSummary `json:"analysis,omitempty"`
	RecommendedReply   ReplyOption      `json:"recommendedReply"`
	AlternativeReplies []ReplyOption    `json:"alternativeReplies"`
	AvoidSaying        []AvoidItem      `json:"avoidSaying"`
	Tips               string           `json:"tips,omitempty"`
}

// ChatContext is the optional context block of a chat request.
type ChatContext struct {
	Contact        *ContactInfo `json:"contact,omitempty"`
	RecentMessages []string     `json:"recentMessages,omitempty"`
}

// ChatRequest is the multi-advisor chat operation input. Images are
// base64-encoded chat screenshots.
type ChatRequest struct {
	Message        string       `json:"message"`
	Images         []string     `json:"images,omitempty"`
	MentionedAgent PersonaID    `json:"mentionedAgent,omitempty"`
	Context        *ChatContext `json:"context,omitempty"`
}

// Script is one copy-pasteable line with its explanation.
type Script struct {
	Content     string `json:"content"`
	Explanation string `json:"explanation,omitempty"`
}

// ChatMessage is one advisor (or analyzer) message in a chat response.
type ChatMessage struct {
	ID            string         `json:"id"`
	AgentID       PersonaID      `json:"agentId"`
	Content       string         `json:"content"`
	Analysis      *SceneAnalysis `json:"analysis,omitempty"`
	Scripts       []Script       `json:"scripts,omitempty"`
	SuccessRate   int            `json:"successRate,omitempty"`
	RiskLevel     RiskLevel      `json:"riskLevel,omitempty"`
	Reasoning     string         `json:"reasoning,omitempty"`
	IsRecommended bool           `json:"isRecommended"`
}

// ChatResponse is the multi-advisor chat operation output: the analyzer's
// structured scene summary first, then each advisor's message.
type ChatResponse struct {
	Messages []ChatMessage `json:"messages"`
}

// ExtractedMessage is one message recovered from a chat screenshot.
type ExtractedMessage struct {
	Speaker string `json:"speaker"`
	Content string `json:"content"`
}

// ExtractedConversation is the conversation recovered from a screenshot.
type ExtractedConversation struct {
	Messages []ExtractedMessage `json:"messages"`
	Context  string             `json:"context,omitempty"`
}

// PersonStyle describes the other party's communication style as inferred
// from a screenshot.
type PersonStyle struct {
	CommunicationStyle string   `json:"communicationStyle,omitempty"`
	Characteristics    []string `json:"characteristics"`
	Notes              string   `json:"notes,omitempty"`
}

// ScreenshotResult is the structured output of a screenshot analysis.
type ScreenshotResult struct {
	ID                    string                `json:"id"`
	ExtractedConversation ExtractedConversation `json:"extractedConversation"`
	RelationshipGuess     string                `json:"relationshipGuess"`
	PersonStyle           PersonStyle           `json:"personStyle"`
	Confidence            float64               `json:"confidence"`
}
