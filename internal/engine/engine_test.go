package engine_test

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"reflect"
	"strings"
	"sync"
	"testing"
	"time"

	"github.com/replycoach/service/internal/config"
	"github.com/replycoach/service/internal/database"
	"github.com/replycoach/service/internal/engine"
	"github.com/replycoach/service/internal/llm"
)

const sceneJSON = `{"emotion":{"primary":"不满","secondary":"委屈","intensity":6},"intent":"试探你是否在意","deepNeed":"被放在心上","risk":"继续冷淡会升级成冷战","urgency":6,"taboos":["那就随便吧"],"advice":"主动给出具体选项"}`

func advisorJSON(strategy string, rate int) string {
	return fmt.Sprintf(`{"content":"具体话术（%s）","strategy":"%s","riskLevel":"low","whyThis":"给台阶","successRate":%d,"safetyAnalysis":{"bestCase":"好","worstCase":"坏","ifWorstHappens":"补救"},"nextPossible":[{"probability":70,"theirResponse":"软化"}]}`, strategy, strategy, rate)
}

// fakeClient routes on the persona name embedded in the composed prompt.
// Optional per-persona delays simulate arbitrary completion order.
type fakeClient struct {
	mu            sync.Mutex
	analysisCalls int
	advisorCalls  int

	byPersona map[string]string
	errFor    map[string]error
	delayFor  map[string]time.Duration
	sceneRaw  string
	sceneErr  error
}

func (f *fakeClient) Complete(_ context.Context, prompt string, role llm.Role) (string, error) {
	if role == llm.RoleAnalysis {
		f.mu.Lock()
		f.analysisCalls++
		f.mu.Unlock()
		return f.sceneRaw, f.sceneErr
	}

	f.mu.Lock()
	f.advisorCalls++
	f.mu.Unlock()
	for name, d := range f.delayFor {
		if strings.Contains(prompt, name) {
			time.Sleep(d)
		}
	}
	for name, err := range f.errFor {
		if strings.Contains(prompt, name) {
			return "", err
		}
	}
	for name, resp := range f.byPersona {
		if strings.Contains(prompt, name) {
			return resp, nil
		}
	}
	return "", errors.New("no canned response for prompt")
}

func (f *fakeClient) CompleteWithImages(ctx context.Context, prompt string, _ [][]byte, _ string, role llm.Role) (string, error) {
	return f.Complete(ctx, prompt, role)
}

func (f *fakeClient) calls() (analysis, advisor int) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.analysisCalls, f.advisorCalls
}

type fakeStore struct {
	rel       *database.Relationship
	relErr    error
	successes []database.SuccessfulPattern
	failures  []database.FailedPattern
}

func (f *fakeStore) GetRelationship(context.Context, string) (*database.Relationship, error) {
	return f.rel, f.relErr
}

func (f *fakeStore) GetRecentSuccessfulPatterns(context.Context, string, int) ([]database.SuccessfulPattern, error) {
	return f.successes, nil
}

func (f *fakeStore) GetRecentFailedPatterns(context.Context, string, int) ([]database.FailedPattern, error) {
	return f.failures, nil
}

func newTestEngine(client llm.Client, store engine.ProfileStore) *engine.Engine {
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	cfg := config.EngineConfig{
		AdvisorTimeout:  2 * time.Second,
		AnalysisTimeout: 2 * time.Second,
		PatternLimit:    5,
	}
	return engine.New(client, store, cfg, log)
}

func healthyClient() *fakeClient {
	return &fakeClient{
		sceneRaw: sceneJSON,
		byPersona: map[string]string{
			"温柔姐姐":  advisorJSON("温柔共情", 75),
			"段子手":   advisorJSON("自嘲幽默", 65),
			"冷静分析师": advisorJSON("高冷留白", 40),
			"真诚战士":  advisorJSON("直球表达", 80),
		},
	}
}

func TestQuickReply_EmptyMessageShortCircuits(t *testing.T) {
	t.Parallel()

	client := healthyClient()
	e := newTestEngine(client, nil)

	_, err := e.QuickReply(context.Background(), engine.QuickReplyRequest{TheirMessage: "   "})
	if !errors.Is(err, engine.ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}

	analysis, advisor := client.calls()
	if analysis != 0 || advisor != 0 {
		t.Errorf("generation calls made for invalid input: analysis=%d advisor=%d", analysis, advisor)
	}
}

func TestQuickReply_FullPipeline(t *testing.T) {
	t.Parallel()

	e := newTestEngine(healthyClient(), nil)

	resp, err := e.QuickReply(context.Background(), engine.QuickReplyRequest{TheirMessage: "随便你"})
	if err != nil {
		t.Fatalf("QuickReply: %v", err)
	}

	if resp.RecommendedReply.ID != "reply_direct" {
		t.Errorf("recommended = %q, want reply_direct (highest success rate)", resp.RecommendedReply.ID)
	}
	if len(resp.AlternativeReplies) != 3 {
		t.Fatalf("alternatives = %d, want 3", len(resp.AlternativeReplies))
	}
	// Alternatives keep dispatch order with the recommended one removed.
	wantOrder := []string{"reply_warm", "reply_humor", "reply_cool"}
	for i, want := range wantOrder {
		if resp.AlternativeReplies[i].ID != want {
			t.Errorf("alternative[%d] = %q, want %q", i, resp.AlternativeReplies[i].ID, want)
		}
	}

	if resp.Analysis == nil {
		t.Fatal("analysis summary missing")
	}
	if resp.Analysis.Subtext != "被放在心上" {
		t.Errorf("subtext = %q", resp.Analysis.Subtext)
	}

	var foundTaboo bool
	for _, item := range resp.AvoidSaying {
		if item.Content == "那就随便吧" {
			foundTaboo = true
		}
	}
	if !foundTaboo {
		t.Error("scene taboo missing from avoidSaying")
	}
}

func TestQuickReply_AdvisorFailureDegradesInPlace(t *testing.T) {
	t.Parallel()

	client := healthyClient()
	client.errFor = map[string]error{"段子手": errors.New("upstream transport failure")}
	e := newTestEngine(client, nil)

	resp, err := e.QuickReply(context.Background(), engine.QuickReplyRequest{TheirMessage: "嗯"})
	if err != nil {
		t.Fatalf("QuickReply: %v", err)
	}

	total := 1 + len(resp.AlternativeReplies)
	if total != 4 {
		t.Fatalf("got %d options, want 4 (failed slot must degrade, not drop)", total)
	}

	var humor *engine.ReplyOption
	for i := range resp.AlternativeReplies {
		if resp.AlternativeReplies[i].ID == "reply_humor" {
			humor = &resp.AlternativeReplies[i]
		}
	}
	if humor == nil {
		t.Fatal("degraded humor slot missing")
	}
	if !strings.Contains(humor.Content, "抱歉") {
		t.Errorf("degraded content = %q, want apology", humor.Content)
	}
}

func TestQuickReply_ProfileNotFoundDegradesSilently(t *testing.T) {
	t.Parallel()

	e := newTestEngine(healthyClient(), &fakeStore{rel: nil})

	resp, err := e.QuickReply(context.Background(), engine.QuickReplyRequest{
		TheirMessage:   "在吗",
		RelationshipID: "missing-id",
	})
	if err != nil {
		t.Fatalf("profile miss must not error: %v", err)
	}
	if 1+len(resp.AlternativeReplies) != 4 {
		t.Errorf("got %d options, want 4", 1+len(resp.AlternativeReplies))
	}
}

func TestQuickReply_Idempotent(t *testing.T) {
	t.Parallel()

	store := &fakeStore{
		rel: &database.Relationship{
			ID:               "rel-1",
			PersonName:       "小美",
			RelationshipType: "恋爱关系",
			Goal:             "推进到同居阶段",
			Persona:          "独立,温柔",
			Vocabulary:       "宝贝,呀",
			SentenceLength:   "short",
			EmojiUsage:       "frequent",
			Tone:             "温柔",
			IsActive:         true,
		},
		successes: []database.SuccessfulPattern{{StrategyName: "撒娇式沟通", SuccessRate: 80, Example: "宝贝你是对哪部分有疑问呀？😊"}},
	}
	e := newTestEngine(healthyClient(), store)
	req := engine.QuickReplyRequest{TheirMessage: "随便你", RelationshipID: "rel-1"}

	first, err := e.QuickReply(context.Background(), req)
	if err != nil {
		t.Fatalf("first run: %v", err)
	}
	second, err := e.QuickReply(context.Background(), req)
	if err != nil {
		t.Fatalf("second run: %v", err)
	}

	if !reflect.DeepEqual(first, second) {
		t.Error("identical inputs with a deterministic service produced different results")
	}
}

func TestChat_CompletionOrderDoesNotAffectOutcome(t *testing.T) {
	t.Parallel()

	slow := healthyClient()
	slow.delayFor = map[string]time.Duration{"真诚战士": 50 * time.Millisecond}
	fast := healthyClient()
	fast.delayFor = map[string]time.Duration{"温柔姐姐": 50 * time.Millisecond}

	req := engine.ChatRequest{Message: "随便你"}

	a, err := newTestEngine(slow, nil).Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	b, err := newTestEngine(fast, nil).Chat(context.Background(), req)
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if !reflect.DeepEqual(a, b) {
		t.Error("completion timing changed the recommendation set")
	}
}

func TestChat_FullRoster(t *testing.T) {
	t.Parallel()

	e := newTestEngine(healthyClient(), nil)

	resp, err := e.Chat(context.Background(), engine.ChatRequest{Message: "你怎么不回我"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Messages) != 5 {
		t.Fatalf("got %d messages, want analyzer + 4 advisors", len(resp.Messages))
	}
	if resp.Messages[0].AgentID != engine.PersonaAnalyzer {
		t.Errorf("first message agent = %q, want analyzer", resp.Messages[0].AgentID)
	}
	if resp.Messages[0].Analysis == nil {
		t.Error("analyzer message missing structured analysis")
	}

	recommended := 0
	for _, m := range resp.Messages[1:] {
		if m.IsRecommended {
			recommended++
			if m.AgentID != engine.PersonaDirect {
				t.Errorf("recommended agent = %q, want direct", m.AgentID)
			}
		}
	}
	if recommended != 1 {
		t.Errorf("recommended count = %d, want exactly 1", recommended)
	}
}

func TestChat_MentionedAgentFastPath(t *testing.T) {
	t.Parallel()

	client := healthyClient()
	e := newTestEngine(client, nil)

	resp, err := e.Chat(context.Background(), engine.ChatRequest{
		Message:        "帮我回这句",
		MentionedAgent: engine.PersonaCool,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if len(resp.Messages) != 1 {
		t.Fatalf("got %d messages, want 1", len(resp.Messages))
	}
	if resp.Messages[0].AgentID != engine.PersonaCool {
		t.Errorf("agent = %q, want cool", resp.Messages[0].AgentID)
	}
	if !resp.Messages[0].IsRecommended {
		t.Error("single fast-path message must carry the recommended flag")
	}

	analysis, advisor := client.calls()
	if analysis != 0 {
		t.Errorf("fast path made %d scene analysis calls, want 0", analysis)
	}
	if advisor != 1 {
		t.Errorf("fast path made %d advisor calls, want 1", advisor)
	}
}

func TestChat_EmptyMessageWithoutImages(t *testing.T) {
	t.Parallel()

	e := newTestEngine(healthyClient(), nil)

	_, err := e.Chat(context.Background(), engine.ChatRequest{Message: ""})
	if !errors.Is(err, engine.ErrEmptyMessage) {
		t.Fatalf("err = %v, want ErrEmptyMessage", err)
	}
}

func TestChat_AnalysisUnavailableStillAnswers(t *testing.T) {
	t.Parallel()

	client := healthyClient()
	client.sceneRaw = "今天天气不错"
	e := newTestEngine(client, nil)

	resp, err := e.Chat(context.Background(), engine.ChatRequest{Message: "哦"})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}
	if len(resp.Messages) != 5 {
		t.Fatalf("got %d messages, want 5", len(resp.Messages))
	}
	if resp.Messages[0].Analysis != nil {
		t.Error("unusable analysis must not be fabricated")
	}
}
