package realtime_test

import (
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"github.com/magabrotheeeer/campus-pass/internal/models"
	"github.com/magabrotheeeer/campus-pass/internal/realtime"
	"github.com/magabrotheeeer/campus-pass/internal/services/auth"
)

type AuthServiceMock struct {
	mock.Mock
}

func (m *AuthServiceMock) ParseToken(token string) (auth.Session, error) {
	args := m.Called(token)
	return args.Get(0).(auth.Session), args.Error(1)
}

func setup(t *testing.T) (*realtime.Hub, string) {
	t.Helper()
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	authMock := new(AuthServiceMock)
	authMock.On("ParseToken", "alice-token").Return(auth.Session{UserID: "u1", Role: models.RoleUser}, nil)
	authMock.On("ParseToken", mock.Anything).Return(auth.Session{}, auth.ErrInvalidSession)

	hub := realtime.NewHub(logger)
	srv := httptest.NewServer(realtime.NewHandler(hub, authMock, logger))
	t.Cleanup(srv.Close)
	return hub, "ws" + strings.TrimPrefix(srv.URL, "http")
}

func TestHandler_JoinAndReceivePassUpdate(t *testing.T) {
	hub, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=alice-token", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "join", "data": "u1"}))
	require.Eventually(t, func() bool { return hub.RoomSize("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	hub.Emit("u1", "passUpdate", models.Pass{ID: "PASS-1", Status: models.StatusCompleted})

	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "passUpdate", msg.Event)
	assert.Contains(t, string(msg.Data), `"status":"completed"`)
}

func TestHandler_HeaderToken(t *testing.T) {
	hub, url := setup(t)

	header := http.Header{}
	header.Set("Authorization", "Bearer alice-token")
	conn, _, err := websocket.DefaultDialer.Dial(url, header)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "join", "data": "u1"}))
	require.Eventually(t, func() bool { return hub.RoomSize("u1") == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	assert.Eventually(t, func() bool { return hub.RoomSize("u1") == 0 }, 2*time.Second, 10*time.Millisecond)
}

func TestHandler_RejectsForeignRoom(t *testing.T) {
	hub, url := setup(t)

	conn, _, err := websocket.DefaultDialer.Dial(url+"?token=alice-token", nil)
	require.NoError(t, err)
	defer conn.Close()

	require.NoError(t, conn.WriteJSON(map[string]string{"event": "join", "data": "u2"}))
	_ = conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg realtime.Message
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, realtime.EventError, msg.Event)
	assert.Equal(t, 0, hub.RoomSize("u2"))
}

func TestHandler_Unauthenticated(t *testing.T) {
	_, url := setup(t)

	for _, target := range []string{url, url + "?token=forged"} {
		_, resp, err := websocket.DefaultDialer.Dial(target, nil)
		require.Error(t, err)
		require.NotNil(t, resp)
		assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
		_ = resp.Body.Close()
	}
}
