package domain

import (
	"encoding/json"
	"time"
)

// Source identifies which external system a message came from
type Source string

const (
	SourceEmail       Source = "email"
	SourceChannelChat Source = "channel-chat"
	SourceTeamChat    Source = "team-chat"
)

// IsValid checks if the source is a known one
func (s Source) IsValid() bool {
	switch s {
	case SourceEmail, SourceChannelChat, SourceTeamChat:
		return true
	}
	return false
}

// AllSources lists every source the pipeline can attach an adapter for
func AllSources() []Source {
	return []Source{SourceEmail, SourceChannelChat, SourceTeamChat}
}

// NormalizedMessage is the canonical cross-source message shape.
// Adapters create one per fetched provider message; it is immutable after
// creation and only carried until it is enqueued (never persisted directly).
type NormalizedMessage struct {
	ID        string          `json:"id"` // provider-scoped, unique per source only
	Source    Source          `json:"source"`
	Sender    string          `json:"sender"`
	Subject   string          `json:"subject,omitempty"`
	Content   string          `json:"content"`
	Timestamp time.Time       `json:"timestamp"`
	Raw       json.RawMessage `json:"raw,omitempty"` // opaque provider payload, audit/debug only
}

// FetchFilter narrows what an adapter's FetchMessages returns
type FetchFilter struct {
	UnreadOnly bool
	Limit      int
	Since      *time.Time
}
