package domain

import "time"

// Category is the classification bucket assigned by the AI model
type Category string

const (
	CategoryImportant          Category = "important"
	CategoryIndirectlyRelevant Category = "indirectly-relevant"
	CategoryMarketing          Category = "marketing"
	CategorySystemAlert        Category = "system-alert"
	CategoryUnknown            Category = "unknown"
)

// IsValid checks if the category is part of the closed vocabulary
func (c Category) IsValid() bool {
	switch c {
	case CategoryImportant, CategoryIndirectlyRelevant, CategoryMarketing, CategorySystemAlert, CategoryUnknown:
		return true
	}
	return false
}

// Action is the follow-up the pipeline should take for a classified message
type Action string

const (
	ActionGeneratePrompt Action = "generate-prompt"
	ActionCreateSummary  Action = "create-summary"
	ActionMarkRead       Action = "mark-read"
	ActionMove           Action = "move"
)

// IsValid checks if the action is part of the closed vocabulary
func (a Action) IsValid() bool {
	switch a {
	case ActionGeneratePrompt, ActionCreateSummary, ActionMarkRead, ActionMove:
		return true
	}
	return false
}

// DefaultActionFor maps a category to its default action when the model
// did not supply one
func DefaultActionFor(c Category) Action {
	switch c {
	case CategoryImportant:
		return ActionGeneratePrompt
	case CategoryIndirectlyRelevant:
		return ActionCreateSummary
	case CategorySystemAlert:
		return ActionMove
	default:
		return ActionMarkRead
	}
}

// ProcessedMessage stores the classification result for one message.
// Written once per queue item and kept for audit/history, independent of
// the queue item's own status.
type ProcessedMessage struct {
	ID                    string    `json:"id" gorm:"primaryKey"`
	UserID                string    `json:"user_id" gorm:"uniqueIndex:idx_processed_owner_message;not null"`
	MessageID             string    `json:"message_id" gorm:"uniqueIndex:idx_processed_owner_message;not null"`
	Source                Source    `json:"source" gorm:"uniqueIndex:idx_processed_owner_message;not null"`
	Category              Category  `json:"category" gorm:"size:32;not null"`
	Action                Action    `json:"action" gorm:"size:32;not null"`
	Summary               string    `json:"summary,omitempty" gorm:"type:text"`
	Prompt                string    `json:"prompt,omitempty" gorm:"type:text"`
	RequiresVoiceResponse bool      `json:"requires_voice_response"`
	ProcessedAt           time.Time `json:"processed_at"`
}

// TableName specifies the table name for GORM
func (ProcessedMessage) TableName() string {
	return "processed_messages"
}
