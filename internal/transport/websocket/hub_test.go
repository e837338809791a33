package websocket

import (
	"encoding/json"
	"errors"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	ws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/vmap/mapviewer/internal/popup"
	"github.com/vmap/mapviewer/pkg/core"
	"github.com/vmap/mapviewer/pkg/streaming"
)

var _ popup.Presenter = (*Hub)(nil)

type received struct {
	mu   sync.Mutex
	msgs []streaming.Envelope
	ids  []string
}

func (r *received) HandleMessage(clientID string, env streaming.Envelope) error {
	r.mu.Lock()
	defer r.mu.Unlock()
	r.msgs = append(r.msgs, env)
	r.ids = append(r.ids, clientID)
	if env.Type == streaming.TypeRemoveMarker {
		return errors.New("no such marker")
	}
	return nil
}

func (r *received) all() []streaming.Envelope {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]streaming.Envelope(nil), r.msgs...)
}

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

// testHub starts a hub behind httptest and returns a connected client
// together with the id the hub assigned to it.
func testHub(t *testing.T) (*Hub, *received, *ws.Conn, string) {
	t.Helper()

	hub, err := NewHub(testLogger(), Config{})
	require.NoError(t, err)
	rec := &received{}
	hub.SetHandler(rec)

	connected := make(chan string, 1)
	hub.OnConnect(func(id string) { connected <- id })

	srv := httptest.NewServer(hub)
	t.Cleanup(srv.Close)
	t.Cleanup(hub.Close)

	conn, _, err := ws.DefaultDialer.Dial("ws"+strings.TrimPrefix(srv.URL, "http"), nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })

	select {
	case id := <-connected:
		return hub, rec, conn, id
	case <-time.After(2 * time.Second):
		t.Fatal("client never registered")
		return nil, nil, nil, ""
	}
}

func readJSON(t *testing.T, conn *ws.Conn, v any) {
	t.Helper()
	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, data, err := conn.ReadMessage()
	require.NoError(t, err)
	require.NoError(t, json.Unmarshal(data, v))
}

func TestHub_RegistersClient(t *testing.T) {
	hub, _, _, id := testHub(t)
	assert.Equal(t, []string{id}, hub.Clients())
}

func TestHub_ForwardsValidMessages(t *testing.T) {
	_, rec, conn, id := testHub(t)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"map_click","payload":{"x":5,"y":6}}`)))

	require.Eventually(t, func() bool { return len(rec.all()) == 1 }, 2*time.Second, 10*time.Millisecond)
	env := rec.all()[0]
	assert.Equal(t, streaming.TypeMapClick, env.Type)
	assert.JSONEq(t, `{"x":5,"y":6}`, string(env.Payload))
	rec.mu.Lock()
	assert.Equal(t, id, rec.ids[0])
	rec.mu.Unlock()
}

func TestHub_RejectsInvalidMessages(t *testing.T) {
	_, rec, conn, _ := testHub(t)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"map_click"}`)))

	var msg streaming.ErrorMessage
	readJSON(t, conn, &msg)
	assert.Equal(t, streaming.TypeError, msg.Type)
	assert.Contains(t, msg.Message, "invalid message")
	assert.Empty(t, rec.all())
}

func TestHub_ReportsHandlerErrors(t *testing.T) {
	_, _, conn, _ := testHub(t)

	require.NoError(t, conn.WriteMessage(ws.TextMessage, []byte(`{"type":"remove_marker","payload":{"id":9}}`)))

	var msg streaming.ErrorMessage
	readJSON(t, conn, &msg)
	assert.Equal(t, streaming.TypeRemoveMarker, msg.For)
	assert.Equal(t, "no such marker", msg.Message)
}

func TestHub_PresenterBroadcasts(t *testing.T) {
	hub, _, conn, _ := testHub(t)

	hub.SetContent("<p>Null Island</p>")
	hub.SetPosition(core.Pixel{X: 512, Y: 384}, true)

	var content streaming.Envelope
	readJSON(t, conn, &content)
	assert.Equal(t, streaming.TypePopupContent, content.Type)
	assert.JSONEq(t, `{"html":"<p>Null Island</p>"}`, string(content.Payload))

	var pos streaming.Envelope
	readJSON(t, conn, &pos)
	assert.Equal(t, streaming.TypePopupPosition, pos.Type)
	assert.JSONEq(t, `{"visible":true,"x":512,"y":384}`, string(pos.Payload))
}

func TestHub_SendToAndAck(t *testing.T) {
	hub, _, conn, id := testHub(t)

	require.NoError(t, hub.SendTo(id, streaming.TypeRequestPosition, nil))
	var req streaming.Envelope
	readJSON(t, conn, &req)
	assert.Equal(t, streaming.TypeRequestPosition, req.Type)

	require.NoError(t, hub.Ack(id, streaming.TypeAddMarker, 3))
	var ack streaming.AckMessage
	readJSON(t, conn, &ack)
	assert.Equal(t, streaming.AckMessage{Type: streaming.TypeAck, For: streaming.TypeAddMarker, ID: 3}, ack)
}

func TestHub_SendToUnknownClient(t *testing.T) {
	hub, err := NewHub(testLogger(), Config{})
	require.NoError(t, err)

	assert.ErrorIs(t, hub.SendTo("nobody", streaming.TypeView, nil), ErrUnknownClient)
	assert.ErrorIs(t, hub.Ack("nobody", streaming.TypeAddMarker, 1), ErrUnknownClient)
}

func TestHub_CloseDisconnectsClients(t *testing.T) {
	hub, _, conn, _ := testHub(t)

	hub.Close()

	require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
	_, _, err := conn.ReadMessage()
	require.Error(t, err)
	assert.Empty(t, hub.Clients())
}

func TestCheckOrigin(t *testing.T) {
	assert.Nil(t, checkOrigin(nil))

	check := checkOrigin([]string{"maps.example.com"})
	req := func(origin string) *http.Request {
		r := httptest.NewRequest(http.MethodGet, "/ws", nil)
		if origin != "" {
			r.Header.Set("Origin", origin)
		}
		return r
	}
	assert.True(t, check(req("https://maps.example.com")))
	assert.False(t, check(req("https://evil.example.com")))
	assert.True(t, check(req("")))

	assert.True(t, checkOrigin([]string{"*"})(req("https://anything.test")))
}
