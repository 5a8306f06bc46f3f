package database

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"time"

	"github.com/jmoiron/sqlx"
)

// Store defines the interface for data access operations. Methods accept
// context.Context for cancellation and timeouts. Read methods used during
// recommendation generation never mutate state.
type Store interface {
	// Ping checks the database connection.
	Ping(ctx context.Context) error

	// GetRelationship retrieves a relationship profile by ID.
	// Returns nil, nil if not found.
	GetRelationship(ctx context.Context, id string) (*Relationship, error)

	// ListRelationships retrieves all active relationship profiles.
	ListRelationships(ctx context.Context) ([]*Relationship, error)

	// SaveRelationship inserts or updates a relationship profile.
	SaveRelationship(ctx context.Context, rel *Relationship) error

	// DeactivateRelationship soft-deletes a relationship profile.
	DeactivateRelationship(ctx context.Context, id string) error

	// SaveConversation inserts a conversation record.
	SaveConversation(ctx context.Context, conv *Conversation) error

	// GetConversation retrieves a conversation by ID. Returns nil, nil if not found.
	GetConversation(ctx context.Context, id string) (*Conversation, error)

	// GetRecentConversations retrieves the most recent 'limit' conversations
	// for a relationship, newest first.
	GetRecentConversations(ctx context.Context, relationshipID string, limit int) ([]*Conversation, error)

	// SaveFeedback records the outcome of a conversation and updates the
	// strategy counters derived from it.
	SaveFeedback(ctx context.Context, fb *Feedback) error

	// GetRecentSuccessfulPatterns returns up to 'limit' strategies that have
	// worked for this relationship, best success rate first.
	GetRecentSuccessfulPatterns(ctx context.Context, relationshipID string, limit int) ([]SuccessfulPattern, error)

	// GetRecentFailedPatterns returns up to 'limit' strategies that failed
	// for this relationship, most recent first.
	GetRecentFailedPatterns(ctx context.Context, relationshipID string, limit int) ([]FailedPattern, error)

	// SaveScreenshotAnalysis persists a screenshot extraction result.
	SaveScreenshotAnalysis(ctx context.Context, sa *ScreenshotAnalysis) error

	// RefreshInsights recomputes strategy success rates and relationship
	// learning progress from accumulated conversations and feedback.
	RefreshInsights(ctx context.Context) error

	// RunSQLMaintenance performs database maintenance tasks like VACUUM.
	RunSQLMaintenance(ctx context.Context) error
}

type sqlxStore struct {
	db     *sqlx.DB
	logger *slog.Logger
}

// NewStore creates a new Store implementation backed by sqlx.
func NewStore(db *sqlx.DB, logger *slog.Logger) Store {
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(io.Discard, nil))
	}
	return &sqlxStore{
		db:     db,
		logger: logger.With("component", "store"),
	}
}

func (s *sqlxStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

func (s *sqlxStore) GetRelationship(ctx context.Context, id string) (*Relationship, error) {
	if id == "" {
		return nil, fmt.Errorf("relationship id cannot be empty")
	}
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var rel Relationship
	query := `SELECT id, person_name, relationship_type, goal, persona, vocabulary,
	                 sentence_length, emoji_usage, tone, current_stage, special_notes,
	                 learning_progress, is_active, created_at, updated_at
	          FROM relationships WHERE id = ? AND is_active = 1`

	err := s.db.GetContext(ctx, &rel, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		s.logger.DebugContext(ctx, "No relationship found", "relationship_id", id)
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting relationship", "relationship_id", id, "error", err)
		return nil, fmt.Errorf("failed to get relationship %s: %w", id, err)
	}

	return &rel, nil
}

func (s *sqlxStore) ListRelationships(ctx context.Context) ([]*Relationship, error) {
	if ctx.Err() != nil {
		return nil, ctx.Err()
	}

	var rels []*Relationship
	query := `SELECT id, person_name, relationship_type, goal, persona, vocabulary,
	                 sentence_length, emoji_usage, tone, current_stage, special_notes,
	                 learning_progress, is_active, created_at, updated_at
	          FROM relationships WHERE is_active = 1 ORDER BY updated_at DESC`

	if err := s.db.SelectContext(ctx, &rels, query); err != nil {
		s.logger.ErrorContext(ctx, "Error listing relationships", "error", err)
		return nil, fmt.Errorf("failed to list relationships: %w", err)
	}

	return rels, nil
}

func (s *sqlxStore) SaveRelationship(ctx context.Context, rel *Relationship) error {
	if rel == nil {
		return fmt.Errorf("cannot save nil relationship")
	}
	if rel.ID == "" {
		return fmt.Errorf("relationship must have an id")
	}
	if rel.PersonName == "" {
		return fmt.Errorf("relationship must have a person name")
	}

	now := time.Now().UTC()
	rel.UpdatedAt = now
	if rel.CreatedAt.IsZero() {
		rel.CreatedAt = now
	}

	query := `
		INSERT INTO relationships (
			id, person_name, relationship_type, goal, persona, vocabulary,
			sentence_length, emoji_usage, tone, current_stage, special_notes,
			learning_progress, is_active, created_at, updated_at
		) VALUES (
			:id, :person_name, :relationship_type, :goal, :persona, :vocabulary,
			:sentence_length, :emoji_usage, :tone, :current_stage, :special_notes,
			:learning_progress, :is_active, :created_at, :updated_at
		)
		ON CONFLICT (id) DO UPDATE SET
			person_name       = excluded.person_name,
			relationship_type = excluded.relationship_type,
			goal              = excluded.goal,
			persona           = excluded.persona,
			vocabulary        = excluded.vocabulary,
			sentence_length   = excluded.sentence_length,
			emoji_usage       = excluded.emoji_usage,
			tone              = excluded.tone,
			current_stage     = excluded.current_stage,
			special_notes     = excluded.special_notes,
			is_active         = excluded.is_active,
			updated_at        = excluded.updated_at
	`

	if _, err := s.db.NamedExecContext(ctx, query, rel); err != nil {
		s.logger.ErrorContext(ctx, "Error saving relationship", "relationship_id", rel.ID, "error", err)
		return fmt.Errorf("failed to save relationship %s: %w", rel.ID, err)
	}

	s.logger.DebugContext(ctx, "Relationship saved", "relationship_id", rel.ID)
	return nil
}

func (s *sqlxStore) DeactivateRelationship(ctx context.Context, id string) error {
	if id == "" {
		return fmt.Errorf("relationship id cannot be empty")
	}

	result, err := s.db.ExecContext(ctx,
		`UPDATE relationships SET is_active = 0, updated_at = ? WHERE id = ?`,
		time.Now().UTC(), id)
	if err != nil {
		s.logger.ErrorContext(ctx, "Error deactivating relationship", "relationship_id", id, "error", err)
		return fmt.Errorf("failed to deactivate relationship %s: %w", id, err)
	}

	affected, err := result.RowsAffected()
	if err == nil && affected == 0 {
		return sql.ErrNoRows
	}

	s.logger.InfoContext(ctx, "Relationship deactivated", "relationship_id", id)
	return nil
}

func (s *sqlxStore) SaveConversation(ctx context.Context, conv *Conversation) error {
	if conv == nil {
		return fmt.Errorf("cannot save nil conversation")
	}
	if conv.RelationshipID == "" {
		return fmt.Errorf("conversation must have a relationship_id")
	}
	if conv.TheirMessage == "" {
		return fmt.Errorf("conversation must have non-empty their_message")
	}

	if conv.CreatedAt.IsZero() {
		conv.CreatedAt = time.Now().UTC()
	}
	if conv.Effect == "" {
		conv.Effect = "unknown"
	}

	query := `
		INSERT INTO conversations (
			id, relationship_id, their_message, our_reply, context, ai_suggestions,
			used_suggestion_index, suggested_strategy, effect, their_response, created_at
		) VALUES (
			:id, :relationship_id, :their_message, :our_reply, :context, :ai_suggestions,
			:used_suggestion_index, :suggested_strategy, :effect, :their_response, :created_at
		)
	`

	if _, err := s.db.NamedExecContext(ctx, query, conv); err != nil {
		s.logger.ErrorContext(ctx, "Error saving conversation",
			"relationship_id", conv.RelationshipID, "error", err)
		return fmt.Errorf("failed to save conversation for relationship %s: %w", conv.RelationshipID, err)
	}

	s.logger.DebugContext(ctx, "Conversation saved",
		"conversation_id", conv.ID, "relationship_id", conv.RelationshipID)
	return nil
}

func (s *sqlxStore) GetConversation(ctx context.Context, id string) (*Conversation, error) {
	if id == "" {
		return nil, fmt.Errorf("conversation id cannot be empty")
	}

	var conv Conversation
	query := `SELECT id, relationship_id, their_message, our_reply, context, ai_suggestions,
	                 used_suggestion_index, suggested_strategy, effect, their_response, created_at
	          FROM conversations WHERE id = ?`

	err := s.db.GetContext(ctx, &conv, query, id)
	switch {
	case errors.Is(err, sql.ErrNoRows):
		return nil, nil
	case err != nil:
		s.logger.ErrorContext(ctx, "Error getting conversation", "conversation_id", id, "error", err)
		return nil, fmt.Errorf("failed to get conversation %s: %w", id, err)
	}

	return &conv, nil
}

func (s *sqlxStore) GetRecentConversations(ctx context.Context, relationshipID string, limit int) ([]*Conversation, error) {
	if relationshipID == "" {
		return nil, fmt.Errorf("relationship id cannot be empty")
	}
	if limit <= 0 {
		limit = 20
	} else if limit > 100 {
		limit = 100
	}

	var convs []*Conversation
	query := `SELECT id, relationship_id, their_message, our_reply, context, ai_suggestions,
	                 used_suggestion_index, suggested_strategy, effect, their_response, created_at
	          FROM conversations
	          WHERE relationship_id = ?
	          ORDER BY created_at DESC
	          LIMIT ?`

	if err := s.db.SelectContext(ctx, &convs, query, relationshipID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting recent conversations",
			"relationship_id", relationshipID, "error", err)
		return nil, fmt.Errorf("failed to get conversations for relationship %s: %w", relationshipID, err)
	}

	return convs, nil
}

// SaveFeedback inserts the feedback row, stamps the conversation's effect,
// and upserts the strategy counters derived from the conversation's
// suggested strategy, all in one transaction.
func (s *sqlxStore) SaveFeedback(ctx context.Context, fb *Feedback) error {
	if fb == nil {
		return fmt.Errorf("cannot save nil feedback")
	}
	if fb.ConversationID == "" {
		return fmt.Errorf("feedback must have a conversation_id")
	}
	if fb.Effect != "success" && fb.Effect != "failure" {
		return fmt.Errorf("feedback effect must be success or failure, got %q", fb.Effect)
	}

	if fb.CreatedAt.IsZero() {
		fb.CreatedAt = time.Now().UTC()
	}

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		s.logger.ErrorContext(ctx, "Failed to begin transaction for feedback", "error", err)
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	var conv Conversation
	err = tx.GetContext(ctx, &conv,
		`SELECT id, relationship_id, suggested_strategy, our_reply, created_at
		 FROM conversations WHERE id = ?`, fb.ConversationID)
	if errors.Is(err, sql.ErrNoRows) {
		return sql.ErrNoRows
	}
	if err != nil {
		return fmt.Errorf("failed to load conversation %s for feedback: %w", fb.ConversationID, err)
	}

	insertFeedback := `
		INSERT INTO feedback (id, conversation_id, effect, what_worked, what_to_avoid, user_notes, created_at)
		VALUES (:id, :conversation_id, :effect, :what_worked, :what_to_avoid, :user_notes, :created_at)
	`
	if _, err := tx.NamedExecContext(ctx, insertFeedback, fb); err != nil {
		return fmt.Errorf("failed to save feedback for conversation %s: %w", fb.ConversationID, err)
	}

	if _, err := tx.ExecContext(ctx,
		`UPDATE conversations SET effect = ? WHERE id = ?`, fb.Effect, fb.ConversationID); err != nil {
		return fmt.Errorf("failed to update conversation effect: %w", err)
	}

	if conv.SuggestedStrategy != "" {
		successInc := 0
		if fb.Effect == "success" {
			successInc = 1
		}
		now := time.Now().UTC()
		upsert := `
			INSERT INTO strategies (
				id, relationship_id, strategy_name, strategy_content,
				used_count, success_count, success_rate, created_at, updated_at
			) VALUES (?, ?, ?, ?, 1, ?, ?, ?, ?)
			ON CONFLICT (relationship_id, strategy_name) DO UPDATE SET
				used_count      = used_count + 1,
				success_count   = success_count + excluded.success_count,
				success_rate    = (100 * (success_count + excluded.success_count)) / (used_count + 1),
				strategy_content = CASE WHEN excluded.strategy_content != ''
				                        THEN excluded.strategy_content
				                        ELSE strategy_content END,
				updated_at      = excluded.updated_at
		`
		strategyID := fb.ID + "-s"
		if _, err := tx.ExecContext(ctx, upsert,
			strategyID, conv.RelationshipID, conv.SuggestedStrategy, conv.OurReply,
			successInc, successInc*100, now, now); err != nil {
			return fmt.Errorf("failed to update strategy counters: %w", err)
		}
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit feedback transaction: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Feedback recorded",
		"conversation_id", fb.ConversationID, "effect", fb.Effect)
	return nil
}

func (s *sqlxStore) GetRecentSuccessfulPatterns(ctx context.Context, relationshipID string, limit int) ([]SuccessfulPattern, error) {
	if relationshipID == "" {
		return nil, fmt.Errorf("relationship id cannot be empty")
	}
	if limit <= 0 {
		limit = 5
	}

	patterns := []SuccessfulPattern{}
	query := `SELECT strategy_name, success_rate, strategy_content
	          FROM strategies
	          WHERE relationship_id = ? AND used_count > 0 AND success_rate > 0
	          ORDER BY success_rate DESC, updated_at DESC
	          LIMIT ?`

	if err := s.db.SelectContext(ctx, &patterns, query, relationshipID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting successful patterns",
			"relationship_id", relationshipID, "error", err)
		return nil, fmt.Errorf("failed to get successful patterns for %s: %w", relationshipID, err)
	}

	return patterns, nil
}

func (s *sqlxStore) GetRecentFailedPatterns(ctx context.Context, relationshipID string, limit int) ([]FailedPattern, error) {
	if relationshipID == "" {
		return nil, fmt.Errorf("relationship id cannot be empty")
	}
	if limit <= 0 {
		limit = 5
	}

	patterns := []FailedPattern{}
	query := `SELECT c.suggested_strategy, f.what_to_avoid
	          FROM feedback f
	          JOIN conversations c ON c.id = f.conversation_id
	          WHERE c.relationship_id = ? AND f.effect = 'failure' AND c.suggested_strategy != ''
	          ORDER BY f.created_at DESC
	          LIMIT ?`

	if err := s.db.SelectContext(ctx, &patterns, query, relationshipID, limit); err != nil {
		s.logger.ErrorContext(ctx, "Error getting failed patterns",
			"relationship_id", relationshipID, "error", err)
		return nil, fmt.Errorf("failed to get failed patterns for %s: %w", relationshipID, err)
	}

	return patterns, nil
}

func (s *sqlxStore) SaveScreenshotAnalysis(ctx context.Context, sa *ScreenshotAnalysis) error {
	if sa == nil {
		return fmt.Errorf("cannot save nil screenshot analysis")
	}
	if sa.CreatedAt.IsZero() {
		sa.CreatedAt = time.Now().UTC()
	}

	query := `
		INSERT INTO screenshot_analyses (id, extracted_conversation, relationship_guess, person_style, confidence, created_at)
		VALUES (:id, :extracted_conversation, :relationship_guess, :person_style, :confidence, :created_at)
	`
	if _, err := s.db.NamedExecContext(ctx, query, sa); err != nil {
		s.logger.ErrorContext(ctx, "Error saving screenshot analysis", "error", err)
		return fmt.Errorf("failed to save screenshot analysis: %w", err)
	}

	return nil
}

// RefreshInsights recomputes strategy success rates from raw counters and
// derives each relationship's learning progress (0-100) from how much
// conversation and feedback history has accumulated.
func (s *sqlxStore) RefreshInsights(ctx context.Context) error {
	if ctx.Err() != nil {
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Refreshing relationship insights...")

	tx, err := s.db.BeginTxx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin insights transaction: %w", err)
	}
	defer func() {
		if tx != nil {
			if rollbackErr := tx.Rollback(); rollbackErr != nil {
				if !errors.Is(rollbackErr, sql.ErrTxDone) {
					s.logger.WarnContext(ctx, "Error rolling back transaction", "error", rollbackErr)
				}
			}
		}
	}()

	if _, err := tx.ExecContext(ctx,
		`UPDATE strategies SET success_rate = (100 * success_count) / used_count WHERE used_count > 0`); err != nil {
		return fmt.Errorf("failed to recompute strategy rates: %w", err)
	}

	progressQuery := `
		UPDATE relationships SET learning_progress = MIN(100, COALESCE((
			SELECT 5 * COUNT(*) + 10 * SUM(CASE WHEN c.effect != 'unknown' THEN 1 ELSE 0 END)
			FROM conversations c WHERE c.relationship_id = relationships.id
		), 0))
		WHERE is_active = 1
	`
	if _, err := tx.ExecContext(ctx, progressQuery); err != nil {
		return fmt.Errorf("failed to recompute learning progress: %w", err)
	}

	if err := tx.Commit(); err != nil {
		return fmt.Errorf("failed to commit insights transaction: %w", err)
	}
	tx = nil

	s.logger.InfoContext(ctx, "Relationship insights refreshed")
	return nil
}

// RunSQLMaintenance executes a VACUUM command on the SQLite database.
func (s *sqlxStore) RunSQLMaintenance(ctx context.Context) error {
	if ctx.Err() != nil {
		s.logger.WarnContext(ctx, "Context cancelled before starting VACUUM", "error", ctx.Err())
		return ctx.Err()
	}

	s.logger.InfoContext(ctx, "Starting database maintenance (VACUUM)...")

	_, err := s.db.ExecContext(ctx, "VACUUM;")
	switch {
	case errors.Is(err, context.DeadlineExceeded) || errors.Is(err, context.Canceled):
		s.logger.WarnContext(ctx, "VACUUM operation timed out or was cancelled", "error", err)
		return fmt.Errorf("database maintenance (VACUUM) timed out: %w", err)
	case err != nil:
		s.logger.ErrorContext(ctx, "Database maintenance (VACUUM) failed", "error", err)
		return fmt.Errorf("failed to execute VACUUM: %w", err)
	}

	s.logger.InfoContext(ctx, "Database maintenance (VACUUM) completed successfully")
	return nil
}
