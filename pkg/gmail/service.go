package gmail

import (
	"context"
	"encoding/json"
	"fmt"
	"log"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"

	"golang.org/x/oauth2"
	"golang.org/x/oauth2/google"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// TokenUpdateFunc is a callback invoked when the oauth token is refreshed,
// so the stored connection can be kept current
type TokenUpdateFunc func(token *oauth2.Token) error

// Service builds per-user Gmail clients from stored oauth tokens
type Service struct {
	clientID     string
	clientSecret string
}

type notifyTokenSource struct {
	src      oauth2.TokenSource
	current  *oauth2.Token
	callback TokenUpdateFunc
}

func (s *notifyTokenSource) Token() (*oauth2.Token, error) {
	t, err := s.src.Token()
	if err != nil {
		return nil, err
	}
	if s.callback != nil && s.current.AccessToken != t.AccessToken {
		s.current = t
		if err := s.callback(t); err != nil {
			log.Printf("[Gmail] Failed to persist refreshed token: %v", err)
		}
	}
	return t, nil
}

func NewService(clientID, clientSecret string) *Service {
	return &Service{
		clientID:     clientID,
		clientSecret: clientSecret,
	}
}

// NewClient creates a Gmail API client with the user's tokens
func (s *Service) NewClient(ctx context.Context, accessToken, refreshToken string, onTokenRefresh TokenUpdateFunc) (*gmail.Service, error) {
	token := &oauth2.Token{
		AccessToken:  accessToken,
		RefreshToken: refreshToken,
		TokenType:    "Bearer",
	}

	// Only force refresh if we have a refresh token
	if refreshToken != "" {
		token.Expiry = time.Now()
	}

	config := &oauth2.Config{
		ClientID:     s.clientID,
		ClientSecret: s.clientSecret,
		Endpoint:     google.Endpoint,
	}

	wrappedSource := &notifyTokenSource{
		src:      config.TokenSource(ctx, token),
		current:  token,
		callback: onTokenRefresh,
	}

	client := oauth2.NewClient(ctx, wrappedSource)
	// Cap every request so a hung connection cannot stall a worker tick
	client.Timeout = 30 * time.Second

	srv, err := gmail.NewService(ctx, option.WithHTTPClient(client))
	if err != nil {
		return nil, fmt.Errorf("unable to create Gmail service: %w", err)
	}
	return srv, nil
}

// FetchMessages lists messages matching the filter and normalizes them.
// The listing itself never mutates mailbox state.
func FetchMessages(ctx context.Context, srv *gmail.Service, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	user := "me"

	q := ""
	limit := int64(50)
	if filter != nil {
		if filter.UnreadOnly {
			q = "is:unread"
		}
		if filter.Since != nil {
			q += fmt.Sprintf(" after:%d", filter.Since.Unix())
		}
		if filter.Limit > 0 {
			limit = int64(filter.Limit)
		}
	}
	if limit > 500 {
		limit = 500 // Gmail API maximum
	}

	listQuery := srv.Users.Messages.List(user).MaxResults(limit)
	if q != "" {
		listQuery = listQuery.Q(q)
	}

	resp, err := listQuery.Context(ctx).Do()
	if err != nil {
		return nil, fmt.Errorf("unable to retrieve messages: %w", err)
	}

	messages := make([]*messagedomain.NormalizedMessage, 0, len(resp.Messages))
	for _, ref := range resp.Messages {
		full, err := srv.Users.Messages.Get(user, ref.Id).Format("metadata").
			MetadataHeaders("From", "Subject", "Date").Context(ctx).Do()
		if err != nil {
			log.Printf("[Gmail] Skipping message %s: %v", ref.Id, err)
			continue
		}
		messages = append(messages, normalize(full))
	}
	return messages, nil
}

// MarkAsRead removes the UNREAD label from a message
func MarkAsRead(ctx context.Context, srv *gmail.Service, messageID string) error {
	_, err := srv.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		RemoveLabelIds: []string{"UNREAD"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to mark message as read: %w", err)
	}
	return nil
}

// Move applies a label to a message and archives it out of the inbox
func Move(ctx context.Context, srv *gmail.Service, messageID, labelID string) error {
	_, err := srv.Users.Messages.Modify("me", messageID, &gmail.ModifyMessageRequest{
		AddLabelIds:    []string{labelID},
		RemoveLabelIds: []string{"INBOX"},
	}).Context(ctx).Do()
	if err != nil {
		return fmt.Errorf("unable to move message: %w", err)
	}
	return nil
}

// CheckHealth verifies the account with a profile lookup
func CheckHealth(ctx context.Context, srv *gmail.Service) bool {
	_, err := srv.Users.GetProfile("me").Context(ctx).Do()
	return err == nil
}

func normalize(msg *gmail.Message) *messagedomain.NormalizedMessage {
	var sender, subject string
	if msg.Payload != nil {
		for _, h := range msg.Payload.Headers {
			switch h.Name {
			case "From":
				sender = h.Value
			case "Subject":
				subject = h.Value
			}
		}
	}

	timestamp := time.UnixMilli(msg.InternalDate)

	raw, _ := json.Marshal(map[string]interface{}{
		"threadId": msg.ThreadId,
		"labelIds": msg.LabelIds,
	})

	return &messagedomain.NormalizedMessage{
		ID:        msg.Id,
		Source:    messagedomain.SourceEmail,
		Sender:    sender,
		Subject:   subject,
		Content:   msg.Snippet,
		Timestamp: timestamp,
		Raw:       raw,
	}
}
