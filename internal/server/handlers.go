package server

import (
	"database/sql"
	"encoding/base64"
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/google/uuid"

	"github.com/replycoach/service/internal/database"
	"github.com/replycoach/service/internal/engine"
)

type handlers struct {
	engine *engine.Engine
	store  database.Store
	log    *slog.Logger
}

func (h *handlers) register(r *gin.Engine) {
	r.GET("/healthz", h.health)

	api := r.Group("/api")
	api.POST("/quick-reply", h.quickReply)
	api.POST("/chat", h.chat)
	api.GET("/relationships", h.listRelationships)
	api.POST("/relationships", h.createRelationship)
	api.GET("/relationships/:id", h.getRelationship)
	api.PATCH("/relationships/:id", h.updateRelationship)
	api.DELETE("/relationships/:id", h.deactivateRelationship)
	api.POST("/relationships/:id/conversations", h.createConversation)
	api.GET("/relationships/:id/conversations", h.listConversations)
	api.POST("/conversations/:id/feedback", h.saveFeedback)
	api.POST("/screenshots", h.analyzeScreenshot)
}

func (h *handlers) health(c *gin.Context) {
	if err := h.store.Ping(c.Request.Context()); err != nil {
		c.JSON(http.StatusServiceUnavailable, gin.H{"status": "degraded", "error": err.Error()})
		return
	}
	c.JSON(http.StatusOK, gin.H{"status": "ok"})
}

func (h *handlers) quickReply(c *gin.Context) {
	var req engine.QuickReplyRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供对方的消息"})
		return
	}

	resp, err := h.engine.QuickReply(c.Request.Context(), req)
	switch {
	case errors.Is(err, engine.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供对方的消息"})
		return
	case err != nil:
		h.log.ErrorContext(c.Request.Context(), "Quick reply generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成建议失败，请重试"})
		return
	}

	if req.RelationshipID != "" {
		h.persistConversation(c, &req, resp)
	}
	c.JSON(http.StatusOK, resp)
}

// persistConversation records the exchange and the suggestion set so the
// feedback loop can attribute outcomes to strategies later. Persistence
// failures are logged, never surfaced: the user already has their replies.
func (h *handlers) persistConversation(c *gin.Context, req *engine.QuickReplyRequest, resp *engine.QuickReplyResponse) {
	suggestions, err := json.Marshal(resp)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Marshaling suggestions failed", "error", err)
		return
	}

	conv := &database.Conversation{
		ID:                  uuid.NewString(),
		RelationshipID:      req.RelationshipID,
		TheirMessage:        strings.TrimSpace(req.TheirMessage),
		Context:             req.Context,
		AISuggestions:       string(suggestions),
		UsedSuggestionIndex: -1,
		SuggestedStrategy:   resp.RecommendedReply.Strategy,
		CreatedAt:           time.Now().UTC(),
	}
	if err := h.store.SaveConversation(c.Request.Context(), conv); err != nil {
		h.log.WarnContext(c.Request.Context(), "Saving conversation failed",
			"relationship_id", req.RelationshipID, "error", err)
	}
}

func (h *handlers) chat(c *gin.Context) {
	var req engine.ChatRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供消息内容"})
		return
	}

	resp, err := h.engine.Chat(c.Request.Context(), req)
	switch {
	case errors.Is(err, engine.ErrEmptyMessage):
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供消息内容或截图"})
		return
	case err != nil:
		h.log.ErrorContext(c.Request.Context(), "Chat generation failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "生成建议失败，请重试"})
		return
	}
	c.JSON(http.StatusOK, resp)
}

// relationshipPayload is the write shape for relationship records. Lists
// arrive as arrays and are stored comma-joined.
type relationshipPayload struct {
	ID                 string   `json:"id"`
	PersonName         string   `json:"personName" binding:"required"`
	RelationshipType   string   `json:"relationshipType" binding:"required"`
	Goal               string   `json:"goal"`
	Persona            []string `json:"persona"`
	CurrentStage       string   `json:"currentStage"`
	SpecialNotes       string   `json:"specialNotes"`
	CommunicationStyle struct {
		Vocabulary     []string `json:"vocabulary"`
		SentenceLength string   `json:"sentenceLength" binding:"omitempty,oneof=short medium long"`
		EmojiUsage     string   `json:"emojiUsage" binding:"omitempty,oneof=frequent occasional rare"`
		Tone           string   `json:"tone"`
	} `json:"communicationStyle"`
}

// relationshipView is the read shape, with stored lists split back out.
type relationshipView struct {
	ID                 string    `json:"id"`
	PersonName         string    `json:"personName"`
	RelationshipType   string    `json:"relationshipType"`
	Goal               string    `json:"goal,omitempty"`
	Persona            []string  `json:"persona"`
	CurrentStage       string    `json:"currentStage,omitempty"`
	SpecialNotes       string    `json:"specialNotes,omitempty"`
	LearningProgress   int       `json:"learningProgress"`
	CreatedAt          time.Time `json:"createdAt"`
	UpdatedAt          time.Time `json:"updatedAt"`
	CommunicationStyle struct {
		Vocabulary     []string `json:"vocabulary"`
		SentenceLength string   `json:"sentenceLength,omitempty"`
		EmojiUsage     string   `json:"emojiUsage,omitempty"`
		Tone           string   `json:"tone,omitempty"`
	} `json:"communicationStyle"`
}

func toRelationshipView(rel *database.Relationship) relationshipView {
	view := relationshipView{
		ID:               rel.ID,
		PersonName:       rel.PersonName,
		RelationshipType: rel.RelationshipType,
		Goal:             rel.Goal,
		Persona:          splitList(rel.Persona),
		CurrentStage:     rel.CurrentStage,
		SpecialNotes:     rel.SpecialNotes,
		LearningProgress: rel.LearningProgress,
		CreatedAt:        rel.CreatedAt,
		UpdatedAt:        rel.UpdatedAt,
	}
	view.CommunicationStyle.Vocabulary = splitList(rel.Vocabulary)
	view.CommunicationStyle.SentenceLength = rel.SentenceLength
	view.CommunicationStyle.EmojiUsage = rel.EmojiUsage
	view.CommunicationStyle.Tone = rel.Tone
	return view
}

func (h *handlers) listRelationships(c *gin.Context) {
	rels, err := h.store.ListRelationships(c.Request.Context())
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Listing relationships failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取关系列表失败"})
		return
	}

	views := make([]relationshipView, 0, len(rels))
	for _, rel := range rels {
		views = append(views, toRelationshipView(rel))
	}
	c.JSON(http.StatusOK, gin.H{"relationships": views})
}

func relationshipFromPayload(payload *relationshipPayload) *database.Relationship {
	return &database.Relationship{
		ID:               payload.ID,
		PersonName:       payload.PersonName,
		RelationshipType: payload.RelationshipType,
		Goal:             payload.Goal,
		Persona:          joinList(payload.Persona),
		Vocabulary:       joinList(payload.CommunicationStyle.Vocabulary),
		SentenceLength:   payload.CommunicationStyle.SentenceLength,
		EmojiUsage:       payload.CommunicationStyle.EmojiUsage,
		Tone:             payload.CommunicationStyle.Tone,
		CurrentStage:     payload.CurrentStage,
		SpecialNotes:     payload.SpecialNotes,
		IsActive:         true,
	}
}

func (h *handlers) createRelationship(c *gin.Context) {
	var payload relationshipPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供称呼和关系类型"})
		return
	}

	rel := relationshipFromPayload(&payload)
	if rel.ID == "" {
		rel.ID = uuid.NewString()
	}
	h.writeRelationship(c, rel)
}

func (h *handlers) updateRelationship(c *gin.Context) {
	existing, err := h.store.GetRelationship(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Getting relationship failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取关系失败"})
		return
	}
	if existing == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "关系不存在"})
		return
	}

	var payload relationshipPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供称呼和关系类型"})
		return
	}

	rel := relationshipFromPayload(&payload)
	rel.ID = existing.ID
	h.writeRelationship(c, rel)
}

func (h *handlers) writeRelationship(c *gin.Context, rel *database.Relationship) {
	if err := h.store.SaveRelationship(c.Request.Context(), rel); err != nil {
		h.log.ErrorContext(c.Request.Context(), "Saving relationship failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存关系失败"})
		return
	}

	saved, err := h.store.GetRelationship(c.Request.Context(), rel.ID)
	if err != nil || saved == nil {
		c.JSON(http.StatusOK, gin.H{"id": rel.ID})
		return
	}
	c.JSON(http.StatusOK, toRelationshipView(saved))
}

func (h *handlers) getRelationship(c *gin.Context) {
	rel, err := h.store.GetRelationship(c.Request.Context(), c.Param("id"))
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Getting relationship failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取关系失败"})
		return
	}
	if rel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "关系不存在"})
		return
	}
	c.JSON(http.StatusOK, toRelationshipView(rel))
}

func (h *handlers) deactivateRelationship(c *gin.Context) {
	err := h.store.DeactivateRelationship(c.Request.Context(), c.Param("id"))
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "关系不存在"})
		return
	case err != nil:
		h.log.ErrorContext(c.Request.Context(), "Deactivating relationship failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "删除关系失败"})
		return
	}
	c.Status(http.StatusNoContent)
}

// conversationPayload records an exchange after the fact, typically once the
// user has picked (or rewritten) one of the suggested replies.
type conversationPayload struct {
	TheirMessage        string `json:"theirMessage" binding:"required"`
	OurReply            string `json:"ourReply"`
	Context             string `json:"context"`
	SuggestedStrategy   string `json:"suggestedStrategy"`
	UsedSuggestionIndex *int   `json:"usedSuggestionIndex"`
}

func (h *handlers) createConversation(c *gin.Context) {
	relationshipID := c.Param("id")
	rel, err := h.store.GetRelationship(c.Request.Context(), relationshipID)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Getting relationship failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取关系失败"})
		return
	}
	if rel == nil {
		c.JSON(http.StatusNotFound, gin.H{"error": "关系不存在"})
		return
	}

	var payload conversationPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供对方的消息"})
		return
	}

	usedIndex := -1
	if payload.UsedSuggestionIndex != nil {
		usedIndex = *payload.UsedSuggestionIndex
	}
	conv := &database.Conversation{
		ID:                  uuid.NewString(),
		RelationshipID:      relationshipID,
		TheirMessage:        strings.TrimSpace(payload.TheirMessage),
		OurReply:            payload.OurReply,
		Context:             payload.Context,
		UsedSuggestionIndex: usedIndex,
		SuggestedStrategy:   payload.SuggestedStrategy,
		CreatedAt:           time.Now().UTC(),
	}
	if err := h.store.SaveConversation(c.Request.Context(), conv); err != nil {
		h.log.ErrorContext(c.Request.Context(), "Saving conversation failed",
			"relationship_id", relationshipID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存对话记录失败"})
		return
	}
	c.JSON(http.StatusCreated, gin.H{"id": conv.ID})
}

func (h *handlers) listConversations(c *gin.Context) {
	relationshipID := c.Param("id")
	limit, _ := strconv.Atoi(c.DefaultQuery("limit", "20"))

	convs, err := h.store.GetRecentConversations(c.Request.Context(), relationshipID, limit)
	if err != nil {
		h.log.ErrorContext(c.Request.Context(), "Listing conversations failed",
			"relationship_id", relationshipID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "读取对话记录失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"conversations": convs})
}

type feedbackPayload struct {
	Effect      string `json:"effect" binding:"required,oneof=success failure"`
	WhatWorked  string `json:"whatWorked"`
	WhatToAvoid string `json:"whatToAvoid"`
	UserNotes   string `json:"userNotes"`
}

func (h *handlers) saveFeedback(c *gin.Context) {
	var payload feedbackPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供 effect（success 或 failure）"})
		return
	}

	fb := &database.Feedback{
		ID:             uuid.NewString(),
		ConversationID: c.Param("id"),
		Effect:         payload.Effect,
		WhatWorked:     payload.WhatWorked,
		WhatToAvoid:    payload.WhatToAvoid,
		UserNotes:      payload.UserNotes,
	}

	err := h.store.SaveFeedback(c.Request.Context(), fb)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		c.JSON(http.StatusNotFound, gin.H{"error": "对话记录不存在"})
		return
	case err != nil:
		h.log.ErrorContext(c.Request.Context(), "Saving feedback failed",
			"conversation_id", fb.ConversationID, "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "保存反馈失败"})
		return
	}
	c.JSON(http.StatusOK, gin.H{"id": fb.ID})
}

type screenshotPayload struct {
	Images   []string `json:"images" binding:"required,min=1"`
	MimeType string   `json:"mimeType"`
}

func (h *handlers) analyzeScreenshot(c *gin.Context) {
	var payload screenshotPayload
	if err := c.ShouldBindJSON(&payload); err != nil {
		c.JSON(http.StatusBadRequest, gin.H{"error": "请提供至少一张截图"})
		return
	}

	images := decodeBase64Images(payload.Images)
	if len(images) == 0 {
		c.JSON(http.StatusBadRequest, gin.H{"error": "截图数据无法解码"})
		return
	}

	result, err := h.engine.AnalyzeScreenshot(c.Request.Context(), images, payload.MimeType)
	switch {
	case errors.Is(err, engine.ErrScreenshotUnreadable):
		c.JSON(http.StatusUnprocessableEntity, gin.H{"error": "无法识别截图内容，请换一张更清晰的截图"})
		return
	case err != nil:
		h.log.ErrorContext(c.Request.Context(), "Screenshot analysis failed", "error", err)
		c.JSON(http.StatusInternalServerError, gin.H{"error": "截图分析失败，请重试"})
		return
	}
	result.ID = uuid.NewString()

	h.persistScreenshot(c, result)
	c.JSON(http.StatusOK, result)
}

func (h *handlers) persistScreenshot(c *gin.Context, result *engine.ScreenshotResult) {
	conversation, err := json.Marshal(result.ExtractedConversation)
	if err != nil {
		return
	}
	style, err := json.Marshal(result.PersonStyle)
	if err != nil {
		return
	}

	sa := &database.ScreenshotAnalysis{
		ID:                    result.ID,
		ExtractedConversation: string(conversation),
		RelationshipGuess:     result.RelationshipGuess,
		PersonStyle:           string(style),
		Confidence:            result.Confidence,
	}
	if err := h.store.SaveScreenshotAnalysis(c.Request.Context(), sa); err != nil {
		h.log.WarnContext(c.Request.Context(), "Saving screenshot analysis failed", "error", err)
	}
}

// decodeBase64Images accepts raw base64 strings or data: URLs, skipping
// anything undecodable.
func decodeBase64Images(encoded []string) [][]byte {
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
	out := []string{}
	for _, part := range strings.Split(s, ",") {
		if p := strings.TrimSpace(part); p != "" {
			out = append(out, p)
		}
	}
	return out
}

func joinList(items []string) string {
	var kept []string
	for _, item := range items {
		if v := strings.TrimSpace(item); v != "" {
			kept = append(kept, v)
		}
	}
	return strings.Join(kept, ",")
}
