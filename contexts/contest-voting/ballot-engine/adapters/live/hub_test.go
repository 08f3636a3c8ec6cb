package live

import (
	"context"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"contestvote/contexts/contest-voting/ballot-engine/domain/entities"

	json "github.com/goccy/go-json"
	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type gaugeRecorder struct {
	mu    sync.Mutex
	value float64
}

func (g *gaugeRecorder) Set(value float64) {
	g.mu.Lock()
	defer g.mu.Unlock()
	g.value = value
}

func (g *gaugeRecorder) get() float64 {
	g.mu.Lock()
	defer g.mu.Unlock()
	return g.value
}

func dialHub(t *testing.T, hub *Hub, initial *entities.CategoryResult) *websocket.Conn {
	t.Helper()
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		_ = hub.ServeCategory(w, r, "cat-1", initial)
	}))
	t.Cleanup(server.Close)

	conn, _, err := websocket.DefaultDialer.Dial("ws"+strings.TrimPrefix(server.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func readMessage(t *testing.T, conn *websocket.Conn) (Message, map[string]any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, raw, err := conn.ReadMessage()
	require.NoError(t, err)
	var message Message
	require.NoError(t, json.Unmarshal(raw, &message))
	var loose map[string]any
	require.NoError(t, json.Unmarshal(raw, &loose))
	return message, loose
}

func TestHubSendsSnapshotThenUpdates(t *testing.T) {
	gauge := &gaugeRecorder{}
	hub := NewHub(gauge, nil)
	initial := entities.CategoryResult{CategoryID: "cat-1", TotalBallots: 1, VoterKeys: []string{"secret"}}
	conn := dialHub(t, hub, &initial)

	snapshot, loose := readMessage(t, conn)
	assert.Equal(t, "snapshot", snapshot.Type)
	assert.Equal(t, 1, snapshot.Result.TotalBallots)
	result, ok := loose["result"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, result, "voter_keys")

	require.Eventually(t, func() bool { return hub.Subscribers("cat-1") == 1 }, 2*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 1, gauge.get(), 0)

	require.NoError(t, hub.PublishCategoryResult(context.Background(), entities.CategoryResult{
		CategoryID:   "cat-1",
		TotalBallots: 2,
		VoterKeys:    []string{"secret", "other"},
	}))
	require.NoError(t, hub.PublishCategoryResult(context.Background(), entities.CategoryResult{CategoryID: "cat-2", TotalBallots: 9}))

	update, loose := readMessage(t, conn)
	assert.Equal(t, "update", update.Type)
	assert.Equal(t, 2, update.Result.TotalBallots)
	assert.Empty(t, update.Result.VoterKeys)
	result, ok = loose["result"].(map[string]any)
	require.True(t, ok)
	assert.NotContains(t, result, "voter_keys")
}

func TestHubUnregistersClosedSubscribers(t *testing.T) {
	gauge := &gaugeRecorder{}
	hub := NewHub(gauge, nil)
	conn := dialHub(t, hub, nil)

	require.Eventually(t, func() bool { return hub.Subscribers("cat-1") == 1 }, 2*time.Second, 10*time.Millisecond)
	require.NoError(t, conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(websocket.CloseNormalClosure, "")))
	_ = conn.Close()

	require.Eventually(t, func() bool { return hub.Subscribers("cat-1") == 0 }, 2*time.Second, 10*time.Millisecond)
	assert.InDelta(t, 0, gauge.get(), 0)
	require.NoError(t, hub.PublishCategoryResult(context.Background(), entities.CategoryResult{CategoryID: "cat-1"}))
}

func TestHubRejectsPlainHTTP(t *testing.T) {
	hub := NewHub(nil, nil)
	recorder := httptest.NewRecorder()
	request := httptest.NewRequest(http.MethodGet, "/v1/categories/cat-1/live", nil)

	err := hub.ServeCategory(recorder, request, "cat-1", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusBadRequest, recorder.Code)
	assert.Zero(t, hub.Subscribers("cat-1"))
}
