package adapter

import (
	"context"
	"errors"
	"fmt"

	messagedomain "voicebox-backend/internal/message/domain"
	userrepo "voicebox-backend/internal/user/repository"
	"voicebox-backend/pkg/gmail"
	"voicebox-backend/pkg/msgraph"
)

var (
	// ErrCredentialsNotFound means the user never connected this source
	ErrCredentialsNotFound = errors.New("adapter: no stored connection for source")
	// ErrAuthExpired means the stored credentials no longer work and a
	// refresh attempt failed
	ErrAuthExpired = errors.New("adapter: authentication expired")
	// ErrProviderUnavailable wraps network or 5xx failures from a provider
	ErrProviderUnavailable = errors.New("adapter: provider unavailable")
)

// SourceAdapter translates one external message source into the canonical
// NormalizedMessage shape. The pipeline never branches on source type
// except to pick which adapter to build.
type SourceAdapter interface {
	Source() messagedomain.Source
	// Connect establishes/validates credentials for the owner
	Connect(ctx context.Context) error
	// FetchMessages returns a finite batch of normalized messages matching
	// the optional filter. Never mutates source state.
	FetchMessages(ctx context.Context, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error)
	// MarkMessageAsRead and MoveMessage are best-effort; sources that
	// cannot support an operation return nil rather than failing
	MarkMessageAsRead(ctx context.Context, messageID string) error
	MoveMessage(ctx context.Context, messageID, destination string) error
	// IsHealthy is a best-effort connectivity check; false on any failure
	IsHealthy(ctx context.Context) bool
}

// Factory builds the adapter for a (user, source) pair
type Factory struct {
	connections userrepo.ConnectionRepository
	gmailSvc    *gmail.Service
	graphClient *msgraph.Client
}

// NewFactory creates a new adapter factory
func NewFactory(connections userrepo.ConnectionRepository, gmailSvc *gmail.Service, graphClient *msgraph.Client) *Factory {
	return &Factory{
		connections: connections,
		gmailSvc:    gmailSvc,
		graphClient: graphClient,
	}
}

// New returns the adapter for the given source, not yet connected
func (f *Factory) New(userID string, source messagedomain.Source) (SourceAdapter, error) {
	switch source {
	case messagedomain.SourceEmail:
		return NewEmailAdapter(userID, f.connections, f.gmailSvc), nil
	case messagedomain.SourceChannelChat:
		return NewChannelChatAdapter(userID, f.connections), nil
	case messagedomain.SourceTeamChat:
		return NewTeamChatAdapter(userID, f.connections, f.graphClient), nil
	default:
		return nil, fmt.Errorf("unknown source %q", source)
	}
}
