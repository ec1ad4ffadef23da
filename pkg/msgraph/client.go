package msgraph

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"regexp"
	"strings"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
)

// ErrUnauthorized means Graph rejected the access token (401), as opposed
// to a transport or 5xx failure
var ErrUnauthorized = errors.New("msgraph: access token rejected")

// Client talks to the Microsoft Graph REST API for Teams chat messages
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a new Microsoft Graph client
func NewClient(baseURL string) *Client {
	if baseURL == "" {
		baseURL = "https://graph.microsoft.com/v1.0"
	}
	return &Client{
		baseURL: baseURL,
		client:  &http.Client{Timeout: 30 * time.Second},
	}
}

type chatMessage struct {
	ID   string `json:"id"`
	From struct {
		User struct {
			DisplayName string `json:"displayName"`
		} `json:"user"`
	} `json:"from"`
	Body struct {
		ContentType string `json:"contentType"`
		Content     string `json:"content"`
	} `json:"body"`
	ChatID          string    `json:"chatId"`
	Subject         string    `json:"subject"`
	CreatedDateTime time.Time `json:"createdDateTime"`
}

// FetchMessages lists the user's recent chat messages across all chats
func (c *Client) FetchMessages(ctx context.Context, accessToken string, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	top := 50
	if filter != nil && filter.Limit > 0 {
		top = filter.Limit
	}

	url := fmt.Sprintf("%s/me/chats/getAllMessages?$top=%d", c.baseURL, top)
	if filter != nil && filter.Since != nil {
		url += "&$filter=createdDateTime gt " + filter.Since.UTC().Format(time.RFC3339)
	}

	body, err := c.get(ctx, accessToken, url)
	if err != nil {
		return nil, err
	}

	var result struct {
		Value []chatMessage `json:"value"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response: %w", err)
	}

	messages := make([]*messagedomain.NormalizedMessage, 0, len(result.Value))
	for _, msg := range result.Value {
		content := msg.Body.Content
		if msg.Body.ContentType == "html" {
			content = stripHTML(content)
		}

		raw, _ := json.Marshal(map[string]string{"chatId": msg.ChatID})

		messages = append(messages, &messagedomain.NormalizedMessage{
			ID:        msg.ID,
			Source:    messagedomain.SourceTeamChat,
			Sender:    msg.From.User.DisplayName,
			Subject:   msg.Subject,
			Content:   content,
			Timestamp: msg.CreatedDateTime,
			Raw:       raw,
		})
	}
	return messages, nil
}

// Validate checks the token with a profile lookup. Returns
// ErrUnauthorized when Graph rejects the token; any other error is a
// transport or service failure.
func (c *Client) Validate(ctx context.Context, accessToken string) error {
	_, err := c.get(ctx, accessToken, c.baseURL+"/me")
	return err
}

// CheckHealth reports whether the token is currently usable
func (c *Client) CheckHealth(ctx context.Context, accessToken string) bool {
	return c.Validate(ctx, accessToken) == nil
}

func (c *Client) get(ctx context.Context, accessToken, url string) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, "GET", url, nil)
	if err != nil {
		return nil, err
	}
	req.Header.Set("Authorization", "Bearer "+accessToken)

	resp, err := c.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("graph request failed: %w", err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("failed to read response: %w", err)
	}
	if resp.StatusCode == http.StatusUnauthorized {
		return nil, fmt.Errorf("%w: %s", ErrUnauthorized, string(body))
	}
	if resp.StatusCode != http.StatusOK {
		return nil, fmt.Errorf("graph API error (%d): %s", resp.StatusCode, string(body))
	}
	return body, nil
}

var htmlTagPattern = regexp.MustCompile(`<[^>]*>`)

func stripHTML(s string) string {
	return strings.TrimSpace(htmlTagPattern.ReplaceAllString(s, ""))
}
