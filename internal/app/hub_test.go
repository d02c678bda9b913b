package app

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestHub_BroadcastReachesClient(t *testing.T) {
	cfg := testConfig()
	hub := NewHub()
	state := newWebState(cfg, hub, nil)
	srv := httptest.NewServer(state.routes())
	defer srv.Close()

	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	defer conn.Close()

	require.Eventually(t, func() bool { return hub.Len() == 1 }, 2*time.Second, 10*time.Millisecond)

	state.update(cfg.TopicLocationFused, []byte(`{"lat":49.2,"lon":18.7}`))

	conn.SetReadDeadline(time.Now().Add(2 * time.Second))
	var msg liveUpdate
	require.NoError(t, conn.ReadJSON(&msg))
	assert.Equal(t, "location", msg.Type)
	assert.JSONEq(t, `{"lat":49.2,"lon":18.7}`, string(msg.Data))

	conn.Close()
	assert.Eventually(t, func() bool { return hub.Len() == 0 }, 2*time.Second, 10*time.Millisecond)
}
