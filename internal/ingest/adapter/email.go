package adapter

import (
	"context"
	"fmt"

	messagedomain "voicebox-backend/internal/message/domain"
	userdomain "voicebox-backend/internal/user/domain"
	userrepo "voicebox-backend/internal/user/repository"
	"voicebox-backend/pkg/gmail"
	"voicebox-backend/pkg/imap"

	"golang.org/x/oauth2"
	gmailapi "google.golang.org/api/gmail/v1"
)

// mailSession abstracts the two email backends (Gmail API, plain IMAP)
// behind one set of operations so tests can substitute a fake
type mailSession interface {
	fetch(ctx context.Context, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error)
	markRead(ctx context.Context, messageID string) error
	move(ctx context.Context, messageID, destination string) error
	healthy(ctx context.Context) bool
}

// EmailAdapter fetches mail for one user, via the Gmail API for Google
// connections and IMAP otherwise
type EmailAdapter struct {
	userID      string
	connections userrepo.ConnectionRepository
	gmailSvc    *gmail.Service
	session     mailSession
}

// NewEmailAdapter creates a new email adapter for one user
func NewEmailAdapter(userID string, connections userrepo.ConnectionRepository, gmailSvc *gmail.Service) *EmailAdapter {
	return &EmailAdapter{
		userID:      userID,
		connections: connections,
		gmailSvc:    gmailSvc,
	}
}

func (a *EmailAdapter) Source() messagedomain.Source {
	return messagedomain.SourceEmail
}

func (a *EmailAdapter) Connect(ctx context.Context) error {
	conn, err := a.connections.Find(a.userID, messagedomain.SourceEmail)
	if err != nil {
		return err
	}
	if conn == nil {
		return ErrCredentialsNotFound
	}

	switch conn.Provider {
	case "imap":
		a.session = &imapSession{
			svc: imap.NewService(conn.IMAPHost, conn.IMAPUsername, conn.IMAPPassword),
		}
		return nil
	default:
		srv, err := a.gmailSvc.NewClient(ctx, conn.AccessToken, conn.RefreshToken, a.persistTokens(conn))
		if err != nil {
			return fmt.Errorf("%w: %v", ErrAuthExpired, err)
		}
		a.session = &gmailSession{srv: srv}
		return nil
	}
}

// persistTokens keeps the stored connection in sync when the oauth layer
// refreshes the access token
func (a *EmailAdapter) persistTokens(conn *userdomain.Connection) gmail.TokenUpdateFunc {
	return func(token *oauth2.Token) error {
		refresh := token.RefreshToken
		if refresh == "" {
			refresh = conn.RefreshToken
		}
		return a.connections.UpdateTokens(conn.ID, token.AccessToken, refresh)
	}
}

func (a *EmailAdapter) FetchMessages(ctx context.Context, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	if a.session == nil {
		return nil, ErrCredentialsNotFound
	}
	messages, err := a.session.fetch(ctx, filter)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrProviderUnavailable, err)
	}
	return messages, nil
}

func (a *EmailAdapter) MarkMessageAsRead(ctx context.Context, messageID string) error {
	if a.session == nil {
		return ErrCredentialsNotFound
	}
	return a.session.markRead(ctx, messageID)
}

func (a *EmailAdapter) MoveMessage(ctx context.Context, messageID, destination string) error {
	if a.session == nil {
		return ErrCredentialsNotFound
	}
	return a.session.move(ctx, messageID, destination)
}

func (a *EmailAdapter) IsHealthy(ctx context.Context) bool {
	if a.session == nil {
		return false
	}
	return a.session.healthy(ctx)
}

// gmailSession is the Gmail API backed mail session
type gmailSession struct {
	srv *gmailapi.Service
}

func (s *gmailSession) fetch(ctx context.Context, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	return gmail.FetchMessages(ctx, s.srv, filter)
}

func (s *gmailSession) markRead(ctx context.Context, messageID string) error {
	return gmail.MarkAsRead(ctx, s.srv, messageID)
}

func (s *gmailSession) move(ctx context.Context, messageID, destination string) error {
	return gmail.Move(ctx, s.srv, messageID, destination)
}

func (s *gmailSession) healthy(ctx context.Context) bool {
	return gmail.CheckHealth(ctx, s.srv)
}

// imapSession is the plain IMAP backed mail session
type imapSession struct {
	svc *imap.Service
}

func (s *imapSession) fetch(_ context.Context, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	return s.svc.FetchMessages(filter)
}

func (s *imapSession) markRead(_ context.Context, messageID string) error {
	return s.svc.MarkAsRead(messageID)
}

func (s *imapSession) move(_ context.Context, messageID, destination string) error {
	return s.svc.Move(messageID, destination)
}

func (s *imapSession) healthy(_ context.Context) bool {
	return s.svc.CheckHealth()
}
