package escalation

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/rs/zerolog"
)

func TestWebhookNotifierSuccess(t *testing.T) {
	var received map[string]any
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if err := json.NewDecoder(r.Body).Decode(&received); err != nil {
			t.Fatalf("解析请求体失败: %v", err)
		}
		w.WriteHeader(http.StatusOK)
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, time.Second, testLogger())
	if err := notifier.Notify(context.Background(), "[L2] sentinel:AAPL"); err != nil {
		t.Fatalf("Webhook Notify 应成功: %v", err)
	}

	if received["msg_type"] != "text" {
		t.Fatalf("msg_type 不正确: %#v", received)
	}
	content, ok := received["content"].(map[string]any)
	if !ok || content["text"] != "[L2] sentinel:AAPL" {
		t.Fatalf("content 不正确: %#v", received)
	}
}

func TestWebhookNotifierHTTPError(t *testing.T) {
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.WriteHeader(http.StatusInternalServerError)
		_, _ = w.Write([]byte(strings.Repeat("x", 500)))
	}))
	defer srv.Close()

	notifier := NewWebhookNotifier(srv.URL, time.Second, testLogger())
	err := notifier.Notify(context.Background(), "hello")
	if err == nil {
		t.Fatal("HTTP 500 应报错")
	}
	if len(err.Error()) > 300 {
		t.Fatalf("错误信息应截断响应体: %d chars", len(err.Error()))
	}
}

func testLogger() zerolog.Logger {
	return zerolog.Nop()
}
