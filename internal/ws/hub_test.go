package ws

import (
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"tokenguard/config"
	"tokenguard/internal/auth"

	"github.com/gin-gonic/gin"
	"github.com/gorilla/websocket"
)

func TestBroadcastToUser(t *testing.T) {
	h := NewHub()
	a1, a2, b := NewClient(1, "USER"), NewClient(1, "USER"), NewClient(2, "USER")
	for _, c := range []*Client{a1, a2, b} {
		h.Register(c)
	}
	h.BroadcastToUser(1, map[string]int{"balance": 5})
	for _, c := range []*Client{a1, a2} {
		select {
		case msg := <-c.Send:
			if string(msg) != `{"balance":5}` {
				t.Errorf("msg = %s", msg)
			}
		default:
			t.Error("user 1 connection got nothing")
		}
	}
	if len(b.Send) != 0 {
		t.Error("user 2 received user 1's message")
	}

	a1.Close()
	a1.Close()
	h.BroadcastToUser(1, "after close")
	if h.ClientCount() != 2 || !h.UserConnected(1) {
		t.Errorf("count = %d", h.ClientCount())
	}
	a2.Close()
	if h.UserConnected(1) {
		t.Error("user 1 still connected")
	}
}

func TestUpgradeUpdatesWS(t *testing.T) {
	gin.SetMode(gin.TestMode)
	cfg := &config.JWTConfig{AccessSecret: "s", AccessExpiry: time.Minute}
	hub := NewHub()
	r := gin.New()
	r.GET("/ws/updates", UpgradeUpdatesWS(cfg, hub, func(uid uint) interface{} {
		return map[string]interface{}{"type": "hello", "user_id": uid}
	}))
	srv := httptest.NewServer(r)
	defer srv.Close()
	base := "ws" + strings.TrimPrefix(srv.URL, "http") + "/ws/updates"

	if _, resp, err := websocket.DefaultDialer.Dial(base+"?token=bad", nil); err == nil || resp.StatusCode != 401 {
		t.Fatalf("bad token: err=%v", err)
	}

	tok, _ := auth.GenerateAccessToken(cfg, 9, "u@example.com", "USER")
	conn, _, err := websocket.DefaultDialer.Dial(base+"?token="+tok, nil)
	if err != nil {
		t.Fatal(err)
	}
	defer conn.Close()
	conn.SetReadDeadline(time.Now().Add(2 * time.Second))

	var hello map[string]interface{}
	if err := conn.ReadJSON(&hello); err != nil || hello["type"] != "hello" || hello["user_id"] != float64(9) {
		t.Fatalf("hello = %v, %v", hello, err)
	}
	hub.BroadcastToUser(9, map[string]string{"type": "notification"})
	var msg map[string]string
	if err := conn.ReadJSON(&msg); err != nil || msg["type"] != "notification" {
		t.Fatalf("push = %v, %v", msg, err)
	}
}
