package main

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"net"
	"net/http"
	"os"
	"os/signal"
	"slices"
	"strconv"
	"syscall"
	"time"

	"github.com/p-n-ai/pai-quiz/internal/agent"
	"github.com/p-n-ai/pai-quiz/internal/analytics"
	"github.com/p-n-ai/pai-quiz/internal/chat"
	"github.com/p-n-ai/pai-quiz/internal/grading"
	"github.com/p-n-ai/pai-quiz/internal/platform/cache"
	"github.com/p-n-ai/pai-quiz/internal/platform/config"
	"github.com/p-n-ai/pai-quiz/internal/platform/database"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/report"
	"github.com/p-n-ai/pai-quiz/internal/source"
)

const (
	readyCheckTimeout = 2 * time.Second
	evictInterval     = time.Minute
)

// checkFunc reports whether a dependency is reachable.
type checkFunc func(ctx context.Context) error

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	// The terminal view owns stdout.
	var logOut io.Writer = os.Stdout
	if cfg.Terminal.Enabled {
		logOut = os.Stderr
	}
	slog.SetDefault(cfg.Log.NewLogger(logOut))

	if err := cfg.Validate(); err != nil {
		slog.Error("invalid config", "error", err)
		os.Exit(1)
	}

	// Graceful shutdown on SIGTERM/SIGINT.
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	if err := run(ctx, cfg); err != nil {
		slog.Error("server error", "error", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, cfg *config.Config) error {
	svc, err := newServices(ctx, cfg)
	if err != nil {
		return err
	}
	defer svc.close()

	store := agent.NewMemoryStore()
	engine := agent.NewEngine(agent.EngineConfig{
		Source:   svc.source,
		Grader:   svc.grader,
		Store:    store,
		Events:   svc.events,
		Reporter: report.NewExporter(cfg.Export.Dir),
	})
	go evictIdleSessions(ctx, store, cfg.Quiz.SessionIdleTimeout)

	gw := chat.NewGateway()
	var ws *chat.WebSocketChannel
	var terminalDone <-chan struct{}

	if cfg.Telegram.BotToken != "" {
		tg, err := chat.NewTelegramChannel(cfg.Telegram.BotToken)
		if err != nil {
			return err
		}
		gw.Register("telegram", tg)
	}
	if cfg.Web.Enabled {
		ws, err = chat.NewWebSocketChannel([]byte(cfg.Web.SessionSecret))
		if err != nil {
			return err
		}
		gw.Register("websocket", ws)
	}
	if cfg.Terminal.Enabled {
		term := chat.NewTerminalChannel(os.Stdin, os.Stdout)
		gw.Register("terminal", term)
		terminalDone = term.Done()
	}

	if err := gw.StartAll(ctx, newHandler(ctx, engine, gw)); err != nil {
		return err
	}
	defer func() {
		if err := gw.StopAll(); err != nil {
			slog.Error("failed to stop channels", "error", err)
		}
	}()

	srv := &http.Server{
		Addr:         net.JoinHostPort(cfg.Server.Host, strconv.Itoa(cfg.Server.Port)),
		Handler:      newMux(svc.checks, ws),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: 30 * time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		slog.Info("server starting", "addr", srv.Addr, "channels", gw.Channels())
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
	}()

	select {
	case <-ctx.Done():
	case <-terminalDone:
		slog.Info("terminal input closed")
	case err := <-serveErr:
		return err
	}
	slog.Info("shutting down")

	shutdownCtx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	if err := srv.Shutdown(shutdownCtx); err != nil {
		slog.Error("shutdown error", "error", err)
	}
	return nil
}

// services are the long-lived collaborators shared by every quiz session.
type services struct {
	source  quiz.QuestionSource
	grader  quiz.Grader
	events  analytics.EventLogger
	checks  map[string]checkFunc
	closers []func()
}

func newServices(ctx context.Context, cfg *config.Config) (*services, error) {
	svc := &services{checks: make(map[string]checkFunc)}
	client := &http.Client{Timeout: cfg.Quiz.RequestTimeout}

	if err := svc.initSource(ctx, cfg, client); err != nil {
		svc.close()
		return nil, err
	}
	if err := svc.initEvents(ctx, cfg); err != nil {
		svc.close()
		return nil, err
	}
	svc.grader = grading.NewHTTPGrader(cfg.Quiz.APIURL, grading.WithHTTPClient(client))
	return svc, nil
}

func (s *services) initSource(ctx context.Context, cfg *config.Config, client *http.Client) error {
	var inner quiz.QuestionSource
	var key string
	if cfg.Quiz.QuestionsFile != "" {
		fs := source.NewFileSource(cfg.Quiz.QuestionsFile)
		inner, key = fs, fs.CacheKey()
		slog.Info("questions from file", "path", cfg.Quiz.QuestionsFile)
	} else {
		hs := source.NewHTTPSource(cfg.Quiz.APIURL, source.WithHTTPClient(client))
		inner, key = hs, hs.CacheKey()
		slog.Info("questions from API", "url", cfg.Quiz.APIURL)
	}

	var store cache.Store
	if cfg.Cache.URL != "" {
		c, err := cache.New(ctx, cfg.Cache.URL)
		if err != nil {
			return fmt.Errorf("connecting to cache: %w", err)
		}
		s.checks["cache"] = c.HealthCheck
		s.closers = append(s.closers, func() { _ = c.Close() })
		store = c
	} else {
		store = cache.NewMemoryStore(time.Minute)
	}

	s.source = source.NewCachedSource(inner, store, key, cfg.Cache.TTL)
	return nil
}

func (s *services) initEvents(ctx context.Context, cfg *config.Config) error {
	switch {
	case cfg.Database.URL != "":
		db, err := database.New(ctx, cfg.Database)
		if err != nil {
			return fmt.Errorf("connecting to database: %w", err)
		}
		s.closers = append(s.closers, db.Close)
		s.checks["database"] = db.HealthCheck

		pg := analytics.NewPostgresEventLogger(db.Pool)
		if err := pg.EnsureSchema(ctx); err != nil {
			return err
		}
		s.events = pg
		slog.Info("quiz events stored in PostgreSQL")
	case cfg.Events.SQLitePath != "":
		l, err := analytics.NewSQLiteEventLogger(cfg.Events.SQLitePath)
		if err != nil {
			return err
		}
		s.closers = append(s.closers, func() { _ = l.Close() })
		s.checks["events"] = l.HealthCheck
		s.events = l
		slog.Info("quiz events stored in SQLite", "path", cfg.Events.SQLitePath)
	default:
		s.events = analytics.NopEventLogger{}
	}
	return nil
}

func (s *services) close() {
	for i := len(s.closers) - 1; i >= 0; i-- {
		s.closers[i]()
	}
	s.closers = nil
}

// newHandler returns the inbound message handler shared by all channels.
func newHandler(ctx context.Context, engine *agent.Engine, gw *chat.Gateway) func(chat.InboundMessage) {
	return func(msg chat.InboundMessage) {
		if err := gw.SendTyping(ctx, msg.Channel, msg.UserID); err != nil {
			slog.Debug("typing indicator failed", "channel", msg.Channel, "error", err)
		}

		resp, err := engine.ProcessMessage(ctx, msg)
		if err != nil {
			slog.Error("failed to process message", "channel", msg.Channel, "user_id", msg.UserID, "error", err)
			return
		}
		if resp == "" {
			return
		}

		if err := gw.Send(ctx, chat.OutboundMessage{
			Channel: msg.Channel,
			UserID:  msg.UserID,
			Text:    resp,
		}); err != nil {
			slog.Error("failed to send reply", "channel", msg.Channel, "user_id", msg.UserID, "error", err)
		}
	}
}

func evictIdleSessions(ctx context.Context, store *agent.MemoryStore, idle time.Duration) {
	if idle <= 0 {
		return
	}
	ticker := time.NewTicker(evictInterval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case now := <-ticker.C:
			if n := store.EvictIdle(now.Add(-idle)); n > 0 {
				slog.Info("evicted idle quiz sessions", "count", n)
			}
		}
	}
}

// newMux creates the HTTP router with health check endpoints and, when the
// browser view is enabled, the quiz page and its socket.
func newMux(checks map[string]checkFunc, ws *chat.WebSocketChannel) *http.ServeMux {
	mux := http.NewServeMux()
	mux.HandleFunc("GET /healthz", handleHealthz)
	mux.Handle("GET /readyz", handleReadyz(checks))
	if ws != nil {
		mux.Handle("GET /ws", ws)
		mux.Handle("GET /{$}", ws.PageHandler())
	}
	return mux
}

func handleHealthz(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(http.StatusOK)
	_, _ = w.Write([]byte(`{"status":"ok"}`))
}

func handleReadyz(checks map[string]checkFunc) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var failed []string
		for name, check := range checks {
			ctx, cancel := context.WithTimeout(r.Context(), readyCheckTimeout)
			err := check(ctx)
			cancel()
			if err != nil {
				slog.Warn("readiness check failed", "check", name, "error", err)
				failed = append(failed, name)
			}
		}

		w.Header().Set("Content-Type", "application/json")
		if len(failed) == 0 {
			w.WriteHeader(http.StatusOK)
			_, _ = w.Write([]byte(`{"status":"ready"}`))
			return
		}

		slices.Sort(failed)
		w.WriteHeader(http.StatusServiceUnavailable)
		_ = json.NewEncoder(w).Encode(map[string]any{
			"status": "not ready",
			"failed": failed,
		})
	}
}
