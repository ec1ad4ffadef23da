package gmail

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/api/gmail/v1"
	"google.golang.org/api/option"
)

// stalledServer never answers until the request context is cancelled,
// simulating a provider that accepts the connection and then hangs
func stalledServer(t *testing.T) *httptest.Server {
	t.Helper()
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		select {
		case <-r.Context().Done():
		case <-time.After(5 * time.Second):
		}
	}))
	t.Cleanup(srv.Close)
	return srv
}

func newStalledService(t *testing.T, srv *httptest.Server) *gmail.Service {
	t.Helper()
	svc, err := gmail.NewService(context.Background(),
		option.WithEndpoint(srv.URL),
		option.WithHTTPClient(srv.Client()))
	require.NoError(t, err)
	return svc
}

func TestFetchMessagesHonorsContextDeadline(t *testing.T) {
	svc := newStalledService(t, stalledServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	_, err := FetchMessages(ctx, svc, nil)
	require.Error(t, err)
	assert.Less(t, time.Since(start), 2*time.Second, "a hung provider must not outlive the caller's deadline")
}

func TestCheckHealthHonorsContextDeadline(t *testing.T) {
	svc := newStalledService(t, stalledServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	start := time.Now()
	assert.False(t, CheckHealth(ctx, svc))
	assert.Less(t, time.Since(start), 2*time.Second)
}

func TestMarkAsReadHonorsContextDeadline(t *testing.T) {
	svc := newStalledService(t, stalledServer(t))

	ctx, cancel := context.WithTimeout(context.Background(), 50*time.Millisecond)
	defer cancel()

	err := MarkAsRead(ctx, svc, "msg-1")
	require.Error(t, err)
}
