package adapter

import (
	"context"
	"errors"
	"fmt"

	messagedomain "voicebox-backend/internal/message/domain"
	userrepo "voicebox-backend/internal/user/repository"
	"voicebox-backend/pkg/msgraph"
)

// graphAPI is the subset of the Microsoft Graph client the adapter uses
type graphAPI interface {
	FetchMessages(ctx context.Context, accessToken string, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error)
	Validate(ctx context.Context, accessToken string) error
	CheckHealth(ctx context.Context, accessToken string) bool
}

// TeamChatAdapter fetches Microsoft Teams chat messages for one user
type TeamChatAdapter struct {
	userID      string
	connections userrepo.ConnectionRepository
	client      graphAPI
	accessToken string
}

// NewTeamChatAdapter creates a new team-chat adapter for one user
func NewTeamChatAdapter(userID string, connections userrepo.ConnectionRepository, client *msgraph.Client) *TeamChatAdapter {
	return &TeamChatAdapter{
		userID:      userID,
		connections: connections,
		client:      client,
	}
}

func (a *TeamChatAdapter) Source() messagedomain.Source {
	return messagedomain.SourceTeamChat
}

func (a *TeamChatAdapter) Connect(ctx context.Context) error {
	conn, err := a.connections.Find(a.userID, messagedomain.SourceTeamChat)
	if err != nil {
		return err
	}
	if conn == nil {
		return ErrCredentialsNotFound
	}
	if err := a.client.Validate(ctx, conn.AccessToken); err != nil {
		// A rejected token and an unreachable provider demand different
		// operator responses
		if errors.Is(err, msgraph.ErrUnauthorized) {
			return fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		return fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	a.accessToken = conn.AccessToken
	return nil
}

func (a *TeamChatAdapter) FetchMessages(ctx context.Context, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	if a.accessToken == "" {
		return nil, ErrCredentialsNotFound
	}
	messages, err := a.client.FetchMessages(ctx, a.accessToken, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return messages, nil
}

// MarkMessageAsRead is not supported for Teams chats; no-op by contract
func (a *TeamChatAdapter) MarkMessageAsRead(ctx context.Context, messageID string) error {
	return nil
}

// MoveMessage is not supported for Teams chats; no-op by contract
func (a *TeamChatAdapter) MoveMessage(ctx context.Context, messageID, destination string) error {
	return nil
}

func (a *TeamChatAdapter) IsHealthy(ctx context.Context) bool {
	if a.accessToken == "" {
		return false
	}
	return a.client.CheckHealth(ctx, a.accessToken)
}
