package handlers

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/voluma/forge/internal/common"
	"github.com/voluma/forge/internal/interfaces"
	"github.com/voluma/forge/internal/models"
	"github.com/voluma/forge/internal/services/events"
)

type wsMessage struct {
	Type             string                    `json:"type"`
	ServerInstanceID string                    `json:"server_instance_id"`
	Data             *interfaces.ProgressEvent `json:"data"`
}

func dialTestClient(t *testing.T, handler *WebSocketHandler) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(handler.HandleWebSocket))
	t.Cleanup(server.Close)

	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) wsMessage {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg wsMessage
	require.NoError(t, conn.ReadJSON(&msg))
	return msg
}

func TestWebSocket_ConnectHandshake(t *testing.T) {
	handler := NewWebSocketHandler(nil, common.GetLogger())
	conn := dialTestClient(t, handler)

	msg := readMessage(t, conn)
	assert.Equal(t, "connected", msg.Type)
	assert.NotEmpty(t, msg.ServerInstanceID)
	assert.Equal(t, 1, handler.ClientCount())
}

func TestWebSocket_ReceivesTerminalEvent(t *testing.T) {
	eventService := events.NewService(common.GetLogger())
	handler := NewWebSocketHandler(eventService, common.GetLogger())
	conn := dialTestClient(t, handler)

	readMessage(t, conn) // connected handshake

	err := eventService.PublishSync(context.Background(), interfaces.Event{
		Type: interfaces.EventJobCompleted,
		Payload: &interfaces.ProgressEvent{
			JobID:    "J1",
			Stage:    "completed",
			Progress: 100,
			Status:   models.JobStatusCompleted,
		},
	})
	require.NoError(t, err)

	msg := readMessage(t, conn)
	assert.Equal(t, "job_completed", msg.Type)
	require.NotNil(t, msg.Data)
	assert.Equal(t, "J1", msg.Data.JobID)
	assert.Equal(t, 100, msg.Data.Progress)
}

func TestWebSocket_DisconnectRemovesClient(t *testing.T) {
	handler := NewWebSocketHandler(nil, common.GetLogger())
	conn := dialTestClient(t, handler)

	readMessage(t, conn)
	require.Equal(t, 1, handler.ClientCount())

	conn.Close()

	require.Eventually(t, func() bool {
		return handler.ClientCount() == 0
	}, 2*time.Second, 10*time.Millisecond)
}
