package probe

import (
	"context"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"
)

func TestSendTest(t *testing.T) {
	var gotBody string
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		b, _ := io.ReadAll(r.Body)
		gotBody = string(b)
		if strings.HasSuffix(r.URL.Path, "/fail") {
			w.WriteHeader(http.StatusInternalServerError)
			w.Write([]byte("upstream exploded"))
			return
		}
		w.Write([]byte(`{"output":"pong"}`))
	}))
	defer srv.Close()

	c := New()
	ok := c.SendTest(context.Background(), srv.URL+"/ok", map[string]string{"message": "test"})
	if !ok.Success || ok.StatusCode != 200 || ok.Body != `{"output":"pong"}` {
		t.Errorf("200 result = %+v", ok)
	}
	if gotBody != `{"message":"test"}` {
		t.Errorf("posted body = %q", gotBody)
	}

	bad := c.SendTest(context.Background(), srv.URL+"/fail", map[string]string{"message": "test"})
	if bad.Success || bad.StatusCode != 500 || bad.Body != "upstream exploded" {
		t.Errorf("500 result = %+v", bad)
	}
	if !strings.Contains(bad.Message, "500") {
		t.Errorf("message = %q", bad.Message)
	}
}

func TestSendTestTimeoutIsReported(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		time.Sleep(200 * time.Millisecond)
	}))
	defer srv.Close()

	res := New().WithTimeouts(50*time.Millisecond, 50*time.Millisecond).SendTest(context.Background(), srv.URL, nil)
	if res.Success || res.StatusCode != 0 || res.Message == "" {
		t.Errorf("timeout result = %+v", res)
	}
}

func TestPing(t *testing.T) {
	status := http.StatusMethodNotAllowed
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.Method != http.MethodHead {
			t.Errorf("method = %s", r.Method)
		}
		w.WriteHeader(status)
	}))
	defer srv.Close()

	c := New()
	if r := c.Ping(context.Background(), srv.URL); !r.Online {
		t.Errorf("405 should count as online: %+v", r)
	}
	status = http.StatusBadGateway
	if r := c.Ping(context.Background(), srv.URL); r.Online || r.StatusCode != 502 {
		t.Errorf("502 result = %+v", r)
	}
	if r := c.Ping(context.Background(), ""); r.Online {
		t.Error("empty URL cannot be online")
	}
	srv.Close()
	if r := c.Ping(context.Background(), srv.URL); r.Online {
		t.Error("closed server should be offline")
	}
}
