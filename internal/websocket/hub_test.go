package websocket

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"procurement/internal/service"
	"procurement/internal/workflow"

	"github.com/gin-gonic/gin"
	gws "github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/zap"
)

var secret = []byte("ws-secret")

func startServer(t *testing.T) (*Hub, string) {
	t.Helper()
	gin.SetMode(gin.TestMode)

	hub := NewHub(zap.NewNop())
	ctx, cancel := context.WithCancel(context.Background())
	t.Cleanup(cancel)
	go hub.Run(ctx)

	resolve := func(ctx context.Context, role string) (workflow.PermissionSet, error) {
		switch role {
		case "approver":
			return workflow.NewPermissionSet(workflow.Permission(workflow.KindPurchaseOrder, workflow.VerbView)), nil
		case "requester":
			return workflow.NewPermissionSet(workflow.Permission(workflow.KindExpense, workflow.VerbView)), nil
		}
		return nil, errors.New("unknown role")
	}

	r := gin.New()
	r.GET("/ws", func(c *gin.Context) { hub.ServeWs(c, secret, resolve) })
	srv := httptest.NewServer(r)
	t.Cleanup(srv.Close)

	return hub, "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws"
}

func dial(t *testing.T, url, role string) *gws.Conn {
	t.Helper()
	tok, err := service.IssueToken(secret, "user-"+role, role, time.Hour, time.Now())
	require.NoError(t, err)
	conn, _, err := gws.DefaultDialer.Dial(url+"?token="+tok, nil)
	require.NoError(t, err)
	t.Cleanup(func() { _ = conn.Close() })
	return conn
}

func TestServeWsRejectsBadTokens(t *testing.T) {
	_, url := startServer(t)

	_, resp, err := gws.DefaultDialer.Dial(url, nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)

	_, resp, err = gws.DefaultDialer.Dial(url+"?token=garbage", nil)
	require.Error(t, err)
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestPublishRespectsViewPermission(t *testing.T) {
	hub, url := startServer(t)
	approver := dial(t, url, "approver")
	requester := dial(t, url, "requester")

	require.Eventually(t, func() bool { return hub.Clients() == 2 }, 2*time.Second, 10*time.Millisecond)

	hub.Publish(workflow.Event{
		Type:   workflow.EventStatusChanged,
		Entity: workflow.Entity{ID: "po-1", Kind: workflow.KindPurchaseOrder, Status: workflow.StatusApproved},
	})
	hub.Publish(workflow.Event{
		Type:   workflow.EventCreated,
		Entity: workflow.Entity{ID: "exp-1", Kind: workflow.KindExpense, Status: workflow.StatusDraft},
	})

	read := func(conn *gws.Conn) workflow.Event {
		require.NoError(t, conn.SetReadDeadline(time.Now().Add(2*time.Second)))
		_, msg, err := conn.ReadMessage()
		require.NoError(t, err)
		var ev workflow.Event
		require.NoError(t, json.Unmarshal([]byte(strings.Split(string(msg), "\n")[0]), &ev))
		return ev
	}

	got := read(approver)
	assert.Equal(t, "po-1", got.Entity.ID)
	assert.Equal(t, workflow.StatusApproved, got.Entity.Status)

	got = read(requester)
	assert.Equal(t, "exp-1", got.Entity.ID)
}

func TestClientDisconnectUnregisters(t *testing.T) {
	hub, url := startServer(t)
	conn := dial(t, url, "approver")
	require.Eventually(t, func() bool { return hub.Clients() == 1 }, 2*time.Second, 10*time.Millisecond)

	require.NoError(t, conn.Close())
	require.Eventually(t, func() bool { return hub.Clients() == 0 }, 2*time.Second, 10*time.Millisecond)
}
