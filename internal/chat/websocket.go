package chat

import (
	"context"
	_ "embed"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"strings"
	"sync"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/gorilla/securecookie"
	"github.com/gorilla/sessions"
)

const (
	webSessionName = "quiz_session"
	webUserIDKey   = "user_id"
	webMaxAge      = 30 * 24 * 60 * 60
	webReadLimit   = 4096
)

//go:embed web/index.html
var indexPage []byte

// ErrNotConnected is returned when sending to a user with no open socket.
var ErrNotConnected = errors.New("user not connected")

// WebSocketChannel serves the browser view. Each browser is identified by a
// signed cookie holding a generated user ID, so a reload resumes the same quiz.
type WebSocketChannel struct {
	store sessions.Store

	mu      sync.RWMutex
	conns   map[string]*websocket.Conn
	handler func(InboundMessage)
	ctx     context.Context
}

// NewWebSocketChannel creates the browser channel. secret signs the identity cookie.
// An empty secret is replaced by a random key, so identities last only until restart.
func NewWebSocketChannel(secret []byte) (*WebSocketChannel, error) {
	if len(secret) == 0 {
		secret = securecookie.GenerateRandomKey(32)
		if secret == nil {
			return nil, fmt.Errorf("generating web session key")
		}
		slog.Warn("QUIZ_WEB_SESSION_SECRET not set, using a random key; web identities reset on restart")
	}
	store := sessions.NewCookieStore(secret)
	store.Options = &sessions.Options{
		Path:     "/",
		MaxAge:   webMaxAge,
		HttpOnly: true,
		SameSite: http.SameSiteLaxMode,
	}
	return &WebSocketChannel{
		store: store,
		conns: make(map[string]*websocket.Conn),
	}, nil
}

func (w *WebSocketChannel) Start(ctx context.Context, handler func(InboundMessage)) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	w.handler = handler
	w.ctx = ctx
	return nil
}

func (w *WebSocketChannel) Stop() error {
	w.mu.Lock()
	defer w.mu.Unlock()
	for userID, conn := range w.conns {
		_ = conn.Close(websocket.StatusGoingAway, "server shutting down")
		delete(w.conns, userID)
	}
	return nil
}

func (w *WebSocketChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	w.mu.RLock()
	conn, ok := w.conns[userID]
	w.mu.RUnlock()
	if !ok {
		return fmt.Errorf("%w: %s", ErrNotConnected, userID)
	}
	if err := conn.Write(ctx, websocket.MessageText, []byte(msg.Text)); err != nil {
		return fmt.Errorf("writing websocket message: %w", err)
	}
	return nil
}

func (w *WebSocketChannel) SendTyping(_ context.Context, _ string) error {
	return nil
}

// PageHandler serves the browser page that connects to the socket.
func (w *WebSocketChannel) PageHandler() http.Handler {
	return http.HandlerFunc(func(rw http.ResponseWriter, _ *http.Request) {
		rw.Header().Set("Content-Type", "text/html; charset=utf-8")
		_, _ = rw.Write(indexPage)
	})
}

// ServeHTTP upgrades the request and relays text frames to the handler.
func (w *WebSocketChannel) ServeHTTP(rw http.ResponseWriter, r *http.Request) {
	w.mu.RLock()
	handler, ctx := w.handler, w.ctx
	w.mu.RUnlock()
	if handler == nil {
		http.Error(rw, "quiz view not started", http.StatusServiceUnavailable)
		return
	}

	userID, err := w.identify(rw, r)
	if err != nil {
		slog.Error("websocket session failed", "error", err)
		http.Error(rw, "session error", http.StatusInternalServerError)
		return
	}

	conn, err := websocket.Accept(rw, r, nil)
	if err != nil {
		slog.Warn("websocket accept failed", "error", err)
		return
	}
	conn.SetReadLimit(webReadLimit)

	w.register(userID, conn)
	defer w.unregister(userID, conn)
	slog.Info("websocket connected", "user_id", userID)

	for {
		typ, data, err := conn.Read(ctx)
		if err != nil {
			if websocket.CloseStatus(err) == -1 && ctx.Err() == nil {
				slog.Debug("websocket read ended", "user_id", userID, "error", err)
			}
			return
		}
		if typ != websocket.MessageText {
			continue
		}
		text := strings.TrimSpace(string(data))
		if text == "" {
			continue
		}
		handler(InboundMessage{
			Channel: "websocket",
			UserID:  userID,
			Text:    text,
		})
	}
}

func (w *WebSocketChannel) identify(rw http.ResponseWriter, r *http.Request) (string, error) {
	sess, err := w.store.Get(r, webSessionName)
	if err != nil {
		// A cookie signed with an old secret yields a fresh session.
		slog.Debug("discarding invalid session cookie", "error", err)
	}
	if sess == nil {
		return "", fmt.Errorf("no session for %s", webSessionName)
	}
	if userID, ok := sess.Values[webUserIDKey].(string); ok && userID != "" {
		return userID, nil
	}

	userID := uuid.NewString()
	sess.Values[webUserIDKey] = userID
	if err := sess.Save(r, rw); err != nil {
		return "", fmt.Errorf("saving session: %w", err)
	}
	return userID, nil
}

func (w *WebSocketChannel) register(userID string, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if old, ok := w.conns[userID]; ok {
		_ = old.Close(websocket.StatusPolicyViolation, "opened in another tab")
	}
	w.conns[userID] = conn
}

func (w *WebSocketChannel) unregister(userID string, conn *websocket.Conn) {
	w.mu.Lock()
	defer w.mu.Unlock()
	if w.conns[userID] == conn {
		delete(w.conns, userID)
	}
	_ = conn.CloseNow()
}
