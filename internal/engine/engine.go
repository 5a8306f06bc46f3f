package engine

import (
	"context"
	"encoding/base64"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/replycoach/service/internal/config"
	"github.com/replycoach/service/internal/database"
	"github.com/replycoach/service/internal/llm"
)

const (
	defaultCallTimeout  = 45 * time.Second
	defaultPatternLimit = 5
)

// ProfileStore resolves relationship profiles and pattern memory. All
// calls are read-only during recommendation generation; conversation and
// feedback writes happen outside the engine after the user acts.
type ProfileStore interface {
	GetRelationship(ctx context.Context, id string) (*database.Relationship, error)
	GetRecentSuccessfulPatterns(ctx context.Context, relationshipID string, limit int) ([]database.SuccessfulPattern, error)
	GetRecentFailedPatterns(ctx context.Context, relationshipID string, limit int) ([]database.FailedPattern, error)
}

// Engine orchestrates the full advisory pipeline: profile resolution,
// scene analysis, prompt composition, concurrent advisor fan-out, and
// ranking. Its external contract is "a complete, well-shaped result
// (possibly containing degraded entries) or a single validation error" —
// per-call failures never bubble past it.
type Engine struct {
	client          llm.Client
	store           ProfileStore
	log             *slog.Logger
	advisorTimeout  time.Duration
	analysisTimeout time.Duration
	patternLimit    int
}

// New creates the engine. store may be nil, in which case every request
// runs the profile-less composition path.
func New(client llm.Client, store ProfileStore, cfg config.EngineConfig, log *slog.Logger) *Engine {
	e := &Engine{
		client:          client,
		store:           store,
		log:             log.With("component", "engine"),
		advisorTimeout:  cfg.AdvisorTimeout,
		analysisTimeout: cfg.AnalysisTimeout,
		patternLimit:    cfg.PatternLimit,
	}
	if e.advisorTimeout <= 0 {
		e.advisorTimeout = defaultCallTimeout
	}
	if e.analysisTimeout <= 0 {
		e.analysisTimeout = defaultCallTimeout
	}
	if e.patternLimit <= 0 {
		e.patternLimit = defaultPatternLimit
	}
	return e
}

// QuickReply runs the full pipeline for one incoming message and returns
// ranked reply options. The only error condition is an empty message; every
// downstream failure degrades in place.
func (e *Engine) QuickReply(ctx context.Context, req QuickReplyRequest) (*QuickReplyResponse, error) {
	message := strings.TrimSpace(req.TheirMessage)
	if message == "" {
		return nil, ErrEmptyMessage
	}

	cc := ConversationContext{
		TheirMessage: message,
		Background:   strings.TrimSpace(req.Context),
	}
	if req.RelationshipID != "" {
		cc.Profile, cc.Memory = e.resolveProfile(ctx, req.RelationshipID)
	}

	scene, err := e.analyzeScene(ctx, cc, nil)
	if err != nil {
		e.log.WarnContext(ctx, "Proceeding without scene analysis", "error", err)
	}

	set := e.fanOut(ctx, cc, scene)
	return e.assembleQuickReply(cc, scene, set), nil
}

// Chat runs the multi-advisor chat pipeline: the analyzer's scene summary
// first, then one message per advisor with exactly one flagged recommended.
// When mentionedAgent names a non-analyzer persona, only that persona is
// dispatched and the scene analysis stage is skipped entirely.
func (e *Engine) Chat(ctx context.Context, req ChatRequest) (*ChatResponse, error) {
	message := strings.TrimSpace(req.Message)
	images := decodeImages(req.Images)
	if message == "" && len(images) == 0 {
		return nil, ErrEmptyMessage
	}
	if message == "" {
		message = "请分析这段对话"
	}

	cc := ConversationContext{TheirMessage: message}
	if req.Context != nil {
		cc.Contact = req.Context.Contact
		if len(req.Context.RecentMessages) > 0 {
			cc.Background = "最近的对话：\n" + strings.Join(req.Context.RecentMessages, "\n")
		}
	}

	if persona := LookupPersona(req.MentionedAgent); persona != nil && persona.ID != PersonaAnalyzer {
		results := e.dispatch(ctx, []advisorCall{{persona: persona, prompt: ComposePrompt(persona, cc, nil)}})
		msg := advisorChatMessage(results[0])
		msg.IsRecommended = true
		return &ChatResponse{Messages: []ChatMessage{msg}}, nil
	}

	scene, err := e.analyzeScene(ctx, cc, images)
	if err != nil {
		e.log.WarnContext(ctx, "Proceeding without scene analysis", "error", err)
	}

	messages := []ChatMessage{analyzerChatMessage(scene)}
	set := e.fanOut(ctx, cc, scene)
	for _, r := range set.Responses {
		msg := advisorChatMessage(r)
		msg.IsRecommended = r.ID == set.RecommendedID
		messages = append(messages, msg)
	}
	return &ChatResponse{Messages: messages}, nil
}

// fanOut composes one prompt per reply persona and dispatches them
// concurrently, then ranks the settled batch.
func (e *Engine) fanOut(ctx context.Context, cc ConversationContext, scene *SceneAnalysis) RecommendationSet {
	personas := ReplyPersonas()
	calls := make([]advisorCall, 0, len(personas))
	for _, p := range personas {
		calls = append(calls, advisorCall{persona: p, prompt: ComposePrompt(p, cc, scene)})
	}
	return Rank(e.dispatch(ctx, calls))
}

// resolveProfile loads the profile and pattern memory for a relationship.
// Any resolution failure degrades silently to the profile-less path: it is
// logged, never surfaced to the end user.
func (e *Engine) resolveProfile(ctx context.Context, relationshipID string) (*RelationshipProfile, *PatternMemory) {
	if e.store == nil {
		return nil, nil
	}

	rel, err := e.store.GetRelationship(ctx, relationshipID)
	if err != nil {
		e.log.WarnContext(ctx, "Profile resolution failed, using profile-less path",
			"relationship_id", relationshipID, "error", err)
		return nil, nil
	}
	if rel == nil {
		e.log.WarnContext(ctx, "Relationship not found, using profile-less path",
			"relationship_id", relationshipID)
		return nil, nil
	}

	profile := &RelationshipProfile{
		ID:               rel.ID,
		PersonName:       rel.PersonName,
		RelationshipType: rel.RelationshipType,
		Goal:             rel.Goal,
		Persona:          splitList(rel.Persona),
		Style: CommunicationStyle{
			Vocabulary:     splitList(rel.Vocabulary),
			SentenceLength: SentenceLength(rel.SentenceLength),
			EmojiUsage:     EmojiUsage(rel.EmojiUsage),
			Tone:           rel.Tone,
		},
		CurrentStage:     rel.CurrentStage,
		SpecialNotes:     rel.SpecialNotes,
		LearningProgress: rel.LearningProgress,
	}

	memory := &PatternMemory{}
	successes, err := e.store.GetRecentSuccessfulPatterns(ctx, relationshipID, e.patternLimit)
	if err != nil {
		e.log.WarnContext(ctx, "Loading successful patterns failed",
			"relationship_id", relationshipID, "error", err)
	}
	for _, p := range successes {
		memory.Successes = append(memory.Successes, SuccessfulPattern{
			Strategy:    p.StrategyName,
			SuccessRate: p.SuccessRate,
			Example:     p.Example,
		})
	}
	failures, err := e.store.GetRecentFailedPatterns(ctx, relationshipID, e.patternLimit)
	if err != nil {
		e.log.WarnContext(ctx, "Loading failed patterns failed",
			"relationship_id", relationshipID, "error", err)
	}
	for _, p := range failures {
		memory.Failures = append(memory.Failures, FailedPattern{
			Strategy: p.StrategyName,
			Reason:   p.Reason,
		})
	}
	return profile, memory
}

// assembleQuickReply maps the internal recommendation set onto the
// quick-reply response shape, preserving dispatch order among alternatives.
func (e *Engine) assembleQuickReply(cc ConversationContext, scene *SceneAnalysis, set RecommendationSet) *QuickReplyResponse {
	resp := &QuickReplyResponse{
		AlternativeReplies: []ReplyOption{},
		AvoidSaying:        []AvoidItem{},
	}

	if scene != nil {
		resp.Analysis = &AnalysisSummary{
			Subtext: scene.DeepNeed,
			Emotion: emotionLabel(scene.Emotion),
			Risk:    scene.Risk,
		}
		resp.Tips = scene.Advice
		for _, taboo := range scene.Taboos {
			resp.AvoidSaying = append(resp.AvoidSaying, AvoidItem{
				Content: taboo,
				Reason:  "场景分析判定为绝对禁区",
			})
		}
	}

	if sc := matchScenario(cc); sc != nil {
		for _, fr := range sc.ForbiddenReplies {
			resp.AvoidSaying = append(resp.AvoidSaying, AvoidItem{
				Content: fr,
				Reason:  sc.Intent,
			})
		}
		if resp.Tips == "" {
			resp.Tips = sc.Pattern
		}
	}
	if cc.Memory != nil {
		for _, p := range cc.Memory.Failures {
			resp.AvoidSaying = append(resp.AvoidSaying, AvoidItem{
				Content: p.Strategy,
				Reason:  p.Reason,
			})
		}
	}

	for _, r := range set.Responses {
		opt := toReplyOption(r)
		if r.ID == set.RecommendedID {
			resp.RecommendedReply = opt
		} else {
			resp.AlternativeReplies = append(resp.AlternativeReplies, opt)
		}
	}
	return resp
}

func toReplyOption(r AdvisorResponse) ReplyOption {
	return ReplyOption{
		ID:             r.ID,
		Content:        r.Content,
		Strategy:       r.Strategy,
		RiskLevel:      r.RiskLevel,
		WhyThis:        r.Rationale,
		SafetyAnalysis: r.Safety,
		NextPossible:   r.Reactions,
	}
}

func advisorChatMessage(r AdvisorResponse) ChatMessage {
	msg := ChatMessage{
		ID:          "msg_" + string(r.Persona),
		AgentID:     r.Persona,
		Content:     r.Content,
		SuccessRate: r.SuccessRate,
		RiskLevel:   r.RiskLevel,
		Reasoning:   r.Rationale,
	}
	if r.Confidence != ParseDegraded {
		msg.Scripts = []Script{{Content: r.Content, Explanation: r.Rationale}}
	}
	return msg
}

// analyzerChatMessage renders the analyzer's slot. A nil scene still
// produces a message so the response shape stays stable.
func analyzerChatMessage(scene *SceneAnalysis) ChatMessage {
	msg := ChatMessage{
		ID:      "msg_" + string(PersonaAnalyzer),
		AgentID: PersonaAnalyzer,
	}
	if scene == nil {
		msg.Content = "场景分析暂时不可用，以下建议基于消息本身给出。"
		return msg
	}
	msg.Analysis = scene
	msg.Content = fmt.Sprintf("对方现在的情绪是%s（强度 %d/10）。%s，深层需求是%s。%s",
		emotionLabel(scene.Emotion), scene.Emotion.Intensity, scene.Intent, scene.DeepNeed, scene.Risk)
	return msg
}

func emotionLabel(em Emotion) string {
	if em.Secondary != "" {
		return em.Primary + "、" + em.Secondary
	}
	return em.Primary
}

// decodeImages converts base64 payloads (with or without a data: URL
// prefix) into raw bytes, skipping anything undecodable.
func decodeImages(encoded []string) [][]byte {
	var out [][]byte
	for _, img := range encoded {
		if idx := strings.Index(img, ";base64,"); idx >= 0 {
			img = img[idx+len(";base64,"):]
		}
		raw, err := base64.StdEncoding.DecodeString(img)
		if err != nil || len(raw) == 0 {
			continue
		}
		out = append(out, raw)
	}
	return out
}

func splitList(s string) []string {
	var out []string
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}
