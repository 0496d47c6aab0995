package chat_test

import (
	"context"
	"errors"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/coder/websocket"

	"github.com/p-n-ai/pai-quiz/internal/chat"
)

func TestNewWebSocketChannel_RandomKeyWithoutSecret(t *testing.T) {
	ch, err := chat.NewWebSocketChannel(nil)
	if err != nil {
		t.Fatalf("NewWebSocketChannel(nil) error = %v", err)
	}
	if err := ch.Start(t.Context(), func(chat.InboundMessage) {}); err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	// The generated key must still sign cookies for new visitors.
	server := httptest.NewServer(ch)
	defer server.Close()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()
	conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer conn.CloseNow()
	if !strings.Contains(resp.Header.Get("Set-Cookie"), "quiz_session=") {
		t.Errorf("Set-Cookie = %q, want quiz_session cookie", resp.Header.Get("Set-Cookie"))
	}
}

func TestWebSocketChannel_NotStarted(t *testing.T) {
	ch, err := chat.NewWebSocketChannel([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewWebSocketChannel() error = %v", err)
	}

	rec := httptest.NewRecorder()
	ch.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/ws", nil))
	if rec.Code != http.StatusServiceUnavailable {
		t.Errorf("status = %d, want 503", rec.Code)
	}
}

func TestWebSocketChannel_SendWithoutConnection(t *testing.T) {
	ch, err := chat.NewWebSocketChannel([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewWebSocketChannel() error = %v", err)
	}

	err = ch.SendMessage(t.Context(), "nobody", chat.OutboundMessage{Text: "hi"})
	if !errors.Is(err, chat.ErrNotConnected) {
		t.Errorf("SendMessage() error = %v, want ErrNotConnected", err)
	}
}

func TestWebSocketChannel_RoundTrip(t *testing.T) {
	ch, err := chat.NewWebSocketChannel([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewWebSocketChannel() error = %v", err)
	}

	inbound := make(chan chat.InboundMessage, 1)
	err = ch.Start(t.Context(), func(msg chat.InboundMessage) {
		inbound <- msg
		if err := ch.SendMessage(context.Background(), msg.UserID, chat.OutboundMessage{Text: "echo " + msg.Text}); err != nil {
			t.Errorf("SendMessage() error = %v", err)
		}
	})
	if err != nil {
		t.Fatalf("Start() error = %v", err)
	}

	server := httptest.NewServer(ch)
	defer server.Close()
	defer func() { _ = ch.Stop() }()

	ctx, cancel := context.WithTimeout(t.Context(), 5*time.Second)
	defer cancel()

	conn, resp, err := websocket.Dial(ctx, "ws"+strings.TrimPrefix(server.URL, "http"), nil)
	if err != nil {
		t.Fatalf("Dial() error = %v", err)
	}
	defer func() { _ = conn.CloseNow() }()

	if !strings.Contains(resp.Header.Get("Set-Cookie"), "quiz_session=") {
		t.Errorf("Set-Cookie = %q, want identity cookie", resp.Header.Get("Set-Cookie"))
	}

	if err := conn.Write(ctx, websocket.MessageText, []byte("  /start ")); err != nil {
		t.Fatalf("Write() error = %v", err)
	}

	msg := <-inbound
	if msg.Channel != "websocket" || msg.Text != "/start" || msg.UserID == "" {
		t.Errorf("inbound = %+v", msg)
	}

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("Read() error = %v", err)
	}
	if string(data) != "echo /start" {
		t.Errorf("reply = %q, want %q", data, "echo /start")
	}
}

func TestWebSocketChannel_PageHandler(t *testing.T) {
	ch, err := chat.NewWebSocketChannel([]byte("0123456789abcdef0123456789abcdef"))
	if err != nil {
		t.Fatalf("NewWebSocketChannel() error = %v", err)
	}

	server := httptest.NewServer(ch.PageHandler())
	defer server.Close()

	resp, err := http.Get(server.URL)
	if err != nil {
		t.Fatalf("GET error = %v", err)
	}
	defer func() { _ = resp.Body.Close() }()
	body, _ := io.ReadAll(resp.Body)

	if !strings.Contains(string(body), `"/ws"`) {
		t.Error("page should connect to /ws")
	}
}
