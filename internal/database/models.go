package database

import "time"

// Relationship is a standing profile for one person the user talks to.
// List-valued fields (persona traits, vocabulary) are stored comma-joined.
type Relationship struct {
	ID               string    `db:"id"`
	PersonName       string    `db:"person_name"`
	RelationshipType string    `db:"relationship_type"`
	Goal             string    `db:"goal"`
	Persona          string    `db:"persona"`
	Vocabulary       string    `db:"vocabulary"`
	SentenceLength   string    `db:"sentence_length"`
	EmojiUsage       string    `db:"emoji_usage"`
	Tone             string    `db:"tone"`
	CurrentStage     string    `db:"current_stage"`
	SpecialNotes     string    `db:"special_notes"`
	LearningProgress int       `db:"learning_progress"`
	IsActive         bool      `db:"is_active"`
	CreatedAt        time.Time `db:"created_at"`
	UpdatedAt        time.Time `db:"updated_at"`
}

// Conversation records one exchange: their message, the suggestion set the
// engine produced for it, and (later) what the user actually sent.
type Conversation struct {
	ID                  string    `db:"id"`
	RelationshipID      string    `db:"relationship_id"`
	TheirMessage        string    `db:"their_message"`
	OurReply            string    `db:"our_reply"`
	Context             string    `db:"context"`
	AISuggestions       string    `db:"ai_suggestions"`
	UsedSuggestionIndex int       `db:"used_suggestion_index"`
	SuggestedStrategy   string    `db:"suggested_strategy"`
	Effect              string    `db:"effect"`
	TheirResponse       string    `db:"their_response"`
	CreatedAt           time.Time `db:"created_at"`
}

// Strategy accumulates per-relationship usage and success counters for a
// named communication strategy. SuccessRate is a 0-100 percentage.
type Strategy struct {
	ID              string    `db:"id"`
	RelationshipID  string    `db:"relationship_id"`
	StrategyName    string    `db:"strategy_name"`
	StrategyContent string    `db:"strategy_content"`
	UsedCount       int       `db:"used_count"`
	SuccessCount    int       `db:"success_count"`
	SuccessRate     int       `db:"success_rate"`
	CreatedAt       time.Time `db:"created_at"`
	UpdatedAt       time.Time `db:"updated_at"`
}

// Feedback is the user's after-the-fact judgement of one conversation.
type Feedback struct {
	ID             string    `db:"id"`
	ConversationID string    `db:"conversation_id"`
	Effect         string    `db:"effect"`
	WhatWorked     string    `db:"what_worked"`
	WhatToAvoid    string    `db:"what_to_avoid"`
	UserNotes      string    `db:"user_notes"`
	CreatedAt      time.Time `db:"created_at"`
}

// ScreenshotAnalysis stores the structured result of a chat-screenshot
// extraction run. JSON-valued columns hold the raw serialized structures.
type ScreenshotAnalysis struct {
	ID                    string    `db:"id"`
	ExtractedConversation string    `db:"extracted_conversation"`
	RelationshipGuess     string    `db:"relationship_guess"`
	PersonStyle           string    `db:"person_style"`
	Confidence            float64   `db:"confidence"`
	CreatedAt             time.Time `db:"created_at"`
}

// SuccessfulPattern is a read-model row derived from the strategies table:
// a strategy that has worked before for this relationship.
type SuccessfulPattern struct {
	StrategyName string `db:"strategy_name"`
	SuccessRate  int    `db:"success_rate"`
	Example      string `db:"strategy_content"`
}

// FailedPattern is a read-model row derived from feedback on past
// conversations: a strategy to avoid and why.
type FailedPattern struct {
	StrategyName string `db:"suggested_strategy"`
	Reason       string `db:"what_to_avoid"`
}
