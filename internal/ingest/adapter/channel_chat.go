package adapter

import (
	"context"
	"encoding/json"
	"fmt"
	"strconv"
	"strings"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
	userrepo "voicebox-backend/internal/user/repository"

	"github.com/slack-go/slack"
)

// slackAPI is the subset of the Slack client the adapter uses,
// extracted so tests can substitute a fake
type slackAPI interface {
	AuthTestContext(ctx context.Context) (*slack.AuthTestResponse, error)
	GetConversationsForUserContext(ctx context.Context, params *slack.GetConversationsForUserParameters) ([]slack.Channel, string, error)
	GetConversationHistoryContext(ctx context.Context, params *slack.GetConversationHistoryParameters) (*slack.GetConversationHistoryResponse, error)
	MarkConversationContext(ctx context.Context, channel, ts string) error
}

// ChannelChatAdapter fetches messages from the Slack channels one user
// is a member of
type ChannelChatAdapter struct {
	userID      string
	connections userrepo.ConnectionRepository
	api         slackAPI
	// newAPI builds the client from a stored token; replaced in tests
	newAPI func(token string) slackAPI
}

// NewChannelChatAdapter creates a new channel-chat adapter for one user
func NewChannelChatAdapter(userID string, connections userrepo.ConnectionRepository) *ChannelChatAdapter {
	return &ChannelChatAdapter{
		userID:      userID,
		connections: connections,
		newAPI: func(token string) slackAPI {
			return slack.New(token)
		},
	}
}

func (a *ChannelChatAdapter) Source() messagedomain.Source {
	return messagedomain.SourceChannelChat
}

func (a *ChannelChatAdapter) Connect(ctx context.Context) error {
	conn, err := a.connections.Find(a.userID, messagedomain.SourceChannelChat)
	if err != nil {
		return err
	}
	if conn == nil {
		return ErrCredentialsNotFound
	}

	api := a.newAPI(conn.AccessToken)
	if _, err := api.AuthTestContext(ctx); err != nil {
		return fmt.Errorf("%w: %v", ErrAuthExpired, err)
	}
	a.api = api
	return nil
}

func (a *ChannelChatAdapter) FetchMessages(ctx context.Context, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	if a.api == nil {
		return nil, ErrCredentialsNotFound
	}

	channels, _, err := a.api.GetConversationsForUserContext(ctx, &slack.GetConversationsForUserParameters{
		Types: []string{"public_channel", "private_channel"},
		Limit: 20,
	})
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}

	perChannel := 20
	if filter != nil && filter.Limit > 0 {
		perChannel = filter.Limit
	}

	oldest := ""
	if filter != nil && filter.Since != nil {
		oldest = strconv.FormatInt(filter.Since.Unix(), 10)
	}

	var messages []*messagedomain.NormalizedMessage
	for _, channel := range channels {
		history, err := a.api.GetConversationHistoryContext(ctx, &slack.GetConversationHistoryParameters{
			ChannelID: channel.ID,
			Limit:     perChannel,
			Oldest:    oldest,
		})
		if err != nil {
			return nil, fmt.Errorf("%w: channel %s: %v", ErrProviderUnavailable, channel.ID, err)
		}
		for _, msg := range history.Messages {
			if msg.SubType != "" || msg.Text == "" {
				continue
			}
			messages = append(messages, normalizeSlackMessage(channel, msg))
		}
	}
	return messages, nil
}

// MarkMessageAsRead moves the channel's read cursor to this message
func (a *ChannelChatAdapter) MarkMessageAsRead(ctx context.Context, messageID string) error {
	if a.api == nil {
		return ErrCredentialsNotFound
	}
	channelID, ts, ok := splitSlackMessageID(messageID)
	if !ok {
		return nil
	}
	return a.api.MarkConversationContext(ctx, channelID, ts)
}

// MoveMessage is not supported by Slack; no-op by contract
func (a *ChannelChatAdapter) MoveMessage(ctx context.Context, messageID, destination string) error {
	return nil
}

func (a *ChannelChatAdapter) IsHealthy(ctx context.Context) bool {
	if a.api == nil {
		return false
	}
	_, err := a.api.AuthTestContext(ctx)
	return err == nil
}

// Slack message ids are "<channel>:<ts>" since a ts alone is only unique
// within one channel
func slackMessageID(channelID, ts string) string {
	return channelID + ":" + ts
}

func splitSlackMessageID(id string) (channelID, ts string, ok bool) {
	parts := strings.SplitN(id, ":", 2)
	if len(parts) != 2 {
		return "", "", false
	}
	return parts[0], parts[1], true
}

func normalizeSlackMessage(channel slack.Channel, msg slack.Message) *messagedomain.NormalizedMessage {
	timestamp := time.Now()
	if secs, err := strconv.ParseFloat(msg.Timestamp, 64); err == nil {
		timestamp = time.Unix(int64(secs), 0)
	}

	raw, _ := json.Marshal(map[string]string{
		"channel": channel.ID,
		"ts":      msg.Timestamp,
	})

	return &messagedomain.NormalizedMessage{
		ID:        slackMessageID(channel.ID, msg.Timestamp),
		Source:    messagedomain.SourceChannelChat,
		Sender:    msg.User,
		Subject:   "#" + channel.Name,
		Content:   msg.Text,
		Timestamp: timestamp,
		Raw:       raw,
	}
}
