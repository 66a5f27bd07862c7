package handlers

import (
	"encoding/json"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
	"github.com/sirupsen/logrus/hooks/test"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func dialTenant(t *testing.T, srv *httptest.Server, tenantID string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws?tenant=" + tenantID
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func TestBroadcastUpdate_OnlyReachesTenant(t *testing.T) {
	log, _ := test.NewNullLogger()
	h := NewWSHandler(log)
	defer h.Close()

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) {
		c.Set("tenant_id", c.Query("tenant"))
		c.Next()
	}, h.HandleWS)
	srv := httptest.NewServer(r)
	defer srv.Close()

	mine := dialTenant(t, srv, "tenant-a")
	other := dialTenant(t, srv, "tenant-b")
	require.Eventually(t, func() bool { return h.M.Len() == 2 }, time.Second, 10*time.Millisecond)

	h.BroadcastUpdate("tenant-a", "transactions", "created", "tx-1")

	require.NoError(t, mine.SetReadDeadline(time.Now().Add(time.Second)))
	_, raw, err := mine.ReadMessage()
	require.NoError(t, err)
	var event UpdateEvent
	require.NoError(t, json.Unmarshal(raw, &event))
	assert.Equal(t, UpdateEvent{Type: "updated", Entity: "transactions", Action: "created", ID: "tx-1"}, event)

	require.NoError(t, other.SetReadDeadline(time.Now().Add(200*time.Millisecond)))
	_, _, err = other.ReadMessage()
	assert.Error(t, err, "another tenant must not receive the event")
}
