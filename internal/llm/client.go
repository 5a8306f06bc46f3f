// Package llm implements integration with Google's Gemini API. It exposes
// the text-generation service as a minimal completion interface: a prompt
// and a role in, raw text out. No output schema is enforced here; callers
// recover structure themselves.
package llm

import (
	"context"
	"fmt"
	"log/slog"

	"google.golang.org/genai"

	"github.com/replycoach/service/internal/config"
)

// Role selects the generation settings for a call. Analysis calls run
// cooler than advisor calls.
type Role string

const (
	// RoleAnalysis is used for scene analysis and screenshot extraction.
	RoleAnalysis Role = "analysis"
	// RoleAdvisor is used for persona reply generation.
	RoleAdvisor Role = "advisor"
)

const analysisTemperature float32 = 0.3

// Client defines the interface for completion operations used throughout
// the application.
type Client interface {
	// Complete submits one prompt and returns the raw response text.
	Complete(ctx context.Context, prompt string, role Role) (string, error)

	// CompleteWithImages submits a prompt plus inline images (e.g. chat
	// screenshots) and returns the raw response text.
	CompleteWithImages(ctx context.Context, prompt string, images [][]byte, mimeType string, role Role) (string, error)
}

type sdkClient struct {
	genaiClient *genai.Client
	log         *slog.Logger
	model       string
	visionModel string
	temperature float32
}

// NewClient creates a new Gemini client with the provided configuration.
func NewClient(ctx context.Context, cfg config.AIConfig, log *slog.Logger) (Client, error) {
	if cfg.APIKey == "" {
		return nil, fmt.Errorf("gemini API key is required")
	}

	gi, err := genai.NewClient(ctx, &genai.ClientConfig{
		APIKey:  cfg.APIKey,
		Backend: genai.BackendGeminiAPI,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to create genai client: %w", err)
	}

	logger := log.With("component", "llm_client")
	logger.Info("Gemini client initialized successfully", "model", cfg.Model)
	return &sdkClient{
		genaiClient: gi,
		log:         logger,
		model:       cfg.Model,
		visionModel: cfg.VisionModel,
		temperature: cfg.Temperature,
	}, nil
}

func (c *sdkClient) contentConfig(role Role) *genai.GenerateContentConfig {
	temp := c.temperature
	if role == RoleAnalysis {
		temp = analysisTemperature
	}
	return &genai.GenerateContentConfig{
		Temperature: &temp,
		SafetySettings: []*genai.SafetySetting{
			{Category: genai.HarmCategoryHarassment, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryHateSpeech, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategorySexuallyExplicit, Threshold: genai.HarmBlockThresholdBlockNone},
			{Category: genai.HarmCategoryDangerousContent, Threshold: genai.HarmBlockThresholdBlockNone},
		},
	}
}

func (c *sdkClient) Complete(ctx context.Context, prompt string, role Role) (string, error) {
	c.log.DebugContext(ctx, "Generating completion", "role", role, "prompt_len", len(prompt))

	contents := []*genai.Content{genai.NewContentFromText(prompt, genai.RoleUser)}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.model, contents, c.contentConfig(role))
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini completion failed", "role", role, "error", err)
		return "", fmt.Errorf("gemini API call failed: %w", err)
	}

	return c.extractText(ctx, resp, string(role))
}

func (c *sdkClient) CompleteWithImages(ctx context.Context, prompt string, images [][]byte, mimeType string, role Role) (string, error) {
	if len(images) == 0 {
		return c.Complete(ctx, prompt, role)
	}
	if mimeType == "" {
		mimeType = "image/jpeg"
	}

	c.log.DebugContext(ctx, "Generating completion with images",
		"role", role, "image_count", len(images))

	parts := []*genai.Part{genai.NewPartFromText(prompt)}
	for _, img := range images {
		parts = append(parts, genai.NewPartFromBytes(img, mimeType))
	}
	contents := []*genai.Content{genai.NewContentFromParts(parts, genai.RoleUser)}

	resp, err := c.genaiClient.Models.GenerateContent(ctx, c.visionModel, contents, c.contentConfig(role))
	if err != nil {
		c.log.ErrorContext(ctx, "Gemini vision completion failed", "role", role, "error", err)
		return "", fmt.Errorf("gemini vision API call failed: %w", err)
	}

	return c.extractText(ctx, resp, string(role)+"_vision")
}

func (c *sdkClient) extractText(ctx context.Context, resp *genai.GenerateContentResponse, op string) (string, error) {
	if resp.PromptFeedback != nil && resp.PromptFeedback.BlockReason != genai.BlockedReasonUnspecified {
		reasonMsg := fmt.Sprintf("%v", resp.PromptFeedback.BlockReason)
		if resp.PromptFeedback.BlockReasonMessage != "" {
			reasonMsg = resp.PromptFeedback.BlockReasonMessage
		}
		c.log.ErrorContext(ctx, "Gemini request blocked", "operation", op, "reason", reasonMsg)
		return "", fmt.Errorf("%s blocked by safety filter: %s", op, reasonMsg)
	}

	if len(resp.Candidates) == 0 || resp.Candidates[0].Content == nil || len(resp.Candidates[0].Content.Parts) == 0 {
		finishReason := "unknown"
		if len(resp.Candidates) > 0 && resp.Candidates[0].FinishReason != genai.FinishReasonUnspecified {
			finishReason = fmt.Sprintf("%v", resp.Candidates[0].FinishReason)
		}
		c.log.WarnContext(ctx, "Gemini response missing candidates or content",
			"operation", op, "finish_reason", finishReason)
		return "", fmt.Errorf("%s returned no content, finish reason: %s", op, finishReason)
	}

	text := resp.Text()
	if text == "" {
		c.log.WarnContext(ctx, "Gemini response text is empty", "operation", op)
		return "", fmt.Errorf("%s returned empty text", op)
	}

	return text, nil
}
