package adapter

import (
	"context"
	"errors"
	"fmt"
	"testing"
	"time"

	messagedomain "voicebox-backend/internal/message/domain"
	userdomain "voicebox-backend/internal/user/domain"
	"voicebox-backend/pkg/msgraph"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeGraphAPI struct {
	validateErr error
	messages    []*messagedomain.NormalizedMessage
	fetchErr    error
	tokens      []string
}

func (f *fakeGraphAPI) FetchMessages(ctx context.Context, accessToken string, filter *messagedomain.FetchFilter) ([]*messagedomain.NormalizedMessage, error) {
	f.tokens = append(f.tokens, accessToken)
	if f.fetchErr != nil {
		return nil, f.fetchErr
	}
	return f.messages, nil
}

func (f *fakeGraphAPI) Validate(ctx context.Context, accessToken string) error {
	return f.validateErr
}

func (f *fakeGraphAPI) CheckHealth(ctx context.Context, accessToken string) bool {
	return f.validateErr == nil
}

func newTestTeamAdapter(conns *fakeConnections, api graphAPI) *TeamChatAdapter {
	return &TeamChatAdapter{
		userID:      "user-1",
		connections: conns,
		client:      api,
	}
}

func teamConnection() *fakeConnections {
	return &fakeConnections{conns: map[messagedomain.Source]*userdomain.Connection{
		messagedomain.SourceTeamChat: {ID: "c1", UserID: "user-1", AccessToken: "graph-token"},
	}}
}

func TestTeamChatConnectWithoutConnection(t *testing.T) {
	a := newTestTeamAdapter(&fakeConnections{conns: map[messagedomain.Source]*userdomain.Connection{}}, &fakeGraphAPI{})
	assert.ErrorIs(t, a.Connect(context.Background()), ErrCredentialsNotFound)
}

func TestTeamChatConnectRejectedToken(t *testing.T) {
	api := &fakeGraphAPI{validateErr: fmt.Errorf("%w: token expired", msgraph.ErrUnauthorized)}
	a := newTestTeamAdapter(teamConnection(), api)
	assert.ErrorIs(t, a.Connect(context.Background()), ErrAuthExpired)
}

func TestTeamChatConnectProviderDown(t *testing.T) {
	// a transport failure during validation is not an auth problem
	api := &fakeGraphAPI{validateErr: errors.New("dial tcp: connection refused")}
	a := newTestTeamAdapter(teamConnection(), api)

	err := a.Connect(context.Background())
	assert.ErrorIs(t, err, ErrProviderUnavailable)
	assert.NotErrorIs(t, err, ErrAuthExpired)
}

func TestTeamChatFetchMessages(t *testing.T) {
	api := &fakeGraphAPI{
				messages: []*messagedomain.NormalizedMessage{{
			ID:        "teams-1",
			Source:    messagedomain.SourceTeamChat,
			Sender:    "Carol",
			Content:   "standup moved to 10",
			Timestamp: time.Now(),
		}},
	}
	a := newTestTeamAdapter(teamConnection(), api)
	require.NoError(t, a.Connect(context.Background()))

	messages, err := a.FetchMessages(context.Background(), nil)
	require.NoError(t, err)
	require.Len(t, messages, 1)
	assert.Equal(t, "teams-1", messages[0].ID)
	assert.Equal(t, []string{"graph-token"}, api.tokens)
}

func TestTeamChatFetchBeforeConnect(t *testing.T) {
	a := newTestTeamAdapter(teamConnection(), &fakeGraphAPI{})
	_, err := a.FetchMessages(context.Background(), nil)
	assert.ErrorIs(t, err, ErrCredentialsNotFound)
}

func TestTeamChatFetchProviderDown(t *testing.T) {
	api := &fakeGraphAPI{fetchErr: errors.New("503 service unavailable")}
	a := newTestTeamAdapter(teamConnection(), api)
	require.NoError(t, a.Connect(context.Background()))

	_, err := a.FetchMessages(context.Background(), nil)
	assert.ErrorIs(t, err, ErrProviderUnavailable)
}

func TestTeamChatReadAndMoveAreNoOps(t *testing.T) {
	a := newTestTeamAdapter(teamConnection(), &fakeGraphAPI{})
	assert.NoError(t, a.MarkMessageAsRead(context.Background(), "teams-1"))
	assert.NoError(t, a.MoveMessage(context.Background(), "teams-1", "archive"))
}

func TestFactoryBuildsAdapterPerSource(t *testing.T) {
	f := NewFactory(&fakeConnections{}, nil, nil)

	for _, source := range messagedomain.AllSources() {
		a, err := f.New("user-1", source)
		require.NoError(t, err)
		assert.Equal(t, source, a.Source())
	}

	_, err := f.New("user-1", "carrier-pigeon")
	assert.Error(t, err)
}
