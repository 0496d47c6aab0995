// Package agent maps chat commands onto quiz sessions, one session per user.
package agent

import (
	"context"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"unicode/utf8"

	"github.com/p-n-ai/pai-quiz/internal/analytics"
	"github.com/p-n-ai/pai-quiz/internal/chat"
	"github.com/p-n-ai/pai-quiz/internal/quiz"
	"github.com/p-n-ai/pai-quiz/internal/render"
)

const (
	msgNoSession     = "No quiz loaded. Send /start to begin."
	msgExportOff     = "Report export is not enabled."
	msgExportFailed  = "Failed to export the report. Please try again."
	msgFirstQuestion = "You are on the first question."
	msgLastQuestion  = "You are on the last question."
	msgNotUnderstood = "Send the letter or number of an option to select it, or /help for commands."
)

const helpText = `Commands:
/start - start a new quiz
/next, /prev - move between questions
/go N - jump to question N
/answer X - select option X (or just send the letter or number)
/submit - submit the selected answer
/stats - show your score
/grid - show all questions
/export - save a report of this session
/help - show this message`

// Reporter writes a session report and returns where it was saved.
type Reporter interface {
	Export(ctx context.Context, userKey string, s *quiz.Session) (string, error)
}

// EngineConfig holds dependencies for the agent engine.
type EngineConfig struct {
	Source   quiz.QuestionSource
	Grader   quiz.Grader
	Store    SessionStore
	Events   analytics.EventLogger
	Reporter Reporter // optional; /export is disabled without one
}

// Engine is the core message processor.
type Engine struct {
	source   quiz.QuestionSource
	grader   quiz.Grader
	store    SessionStore
	events   analytics.EventLogger
	reporter Reporter
}

// NewEngine creates a new agent engine.
func NewEngine(cfg EngineConfig) *Engine {
	store := cfg.Store
	if store == nil {
		store = NewMemoryStore()
	}
	events := cfg.Events
	if events == nil {
		events = analytics.NopEventLogger{}
	}
	return &Engine{
		source:   cfg.Source,
		grader:   cfg.Grader,
		store:    store,
		events:   events,
		reporter: cfg.Reporter,
	}
}

// ProcessMessage handles an incoming message and returns a response.
func (e *Engine) ProcessMessage(ctx context.Context, msg chat.InboundMessage) (string, error) {
	slog.Info("processing message",
		"channel", msg.Channel,
		"user_id", msg.UserID,
		"text_len", len(msg.Text),
	)

	cmd, arg := parseCommand(msg.Text)
	key := sessionKey(msg)

	switch cmd {
	case "/start":
		return e.handleStart(ctx, msg, key), nil
	case "/help":
		return helpText, nil
	}

	sess, ok := e.store.Get(key)
	if !ok {
		if cmd == "" || isQuizCommand(cmd) {
			return msgNoSession, nil
		}
		return unknownCommand(cmd), nil
	}

	switch cmd {
	case "":
		if !looksLikeChoice(arg) {
			return msgNotUnderstood, nil
		}
		return e.handleChoice(sess, arg), nil
	case "/next":
		if !sess.Next() {
			return msgLastQuestion + "\n\n" + render.Question(sess.Snapshot()), nil
		}
		return render.Question(sess.Snapshot()), nil
	case "/prev":
		if !sess.Previous() {
			return msgFirstQuestion + "\n\n" + render.Question(sess.Snapshot()), nil
		}
		return render.Question(sess.Snapshot()), nil
	case "/go":
		return e.handleGo(sess, arg), nil
	case "/answer":
		return e.handleChoice(sess, arg), nil
	case "/submit":
		return e.handleSubmit(ctx, sess), nil
	case "/stats":
		return render.Stats(sess.Stats()), nil
	case "/grid":
		return render.Grid(sess.Snapshot()), nil
	case "/export":
		return e.handleExport(ctx, key, sess), nil
	default:
		return unknownCommand(cmd), nil
	}
}

func (e *Engine) handleStart(ctx context.Context, msg chat.InboundMessage, key string) string {
	// A failed load leaves the user without a session until the next /start.
	e.store.Delete(key)

	sess, err := quiz.Load(ctx, e.source, quiz.Config{
		Grader: e.grader,
		Events: e.events,
		UserID: msg.UserID,
	})
	if err != nil {
		slog.Error("failed to load questions", "channel", msg.Channel, "user_id", msg.UserID, "error", err)
		return render.Error(err)
	}
	e.store.Put(key, sess)

	slog.Info("quiz session started",
		"session_id", sess.ID(),
		"channel", msg.Channel,
		"user_id", msg.UserID,
		"questions", sess.Len(),
	)

	sn := sess.Snapshot()
	if sn.Empty() {
		return render.MsgNoQuestions
	}
	return fmt.Sprintf("Hi %s! Your quiz has %d questions.\n\n%s", displayName(msg), sn.Total, render.Question(sn))
}

func (e *Engine) handleGo(sess *quiz.Session, arg string) string {
	n, err := strconv.Atoi(strings.TrimSpace(arg))
	if err != nil {
		return "Usage: /go N"
	}
	if !sess.GoTo(n - 1) {
		return fmt.Sprintf("There is no question %d. Choose 1 to %d.", n, sess.Len())
	}
	return render.Question(sess.Snapshot())
}

func (e *Engine) handleChoice(sess *quiz.Session, arg string) string {
	sn := sess.Snapshot()
	if sn.Empty() {
		return render.MsgNoQuestions
	}

	idx, ok := parseChoice(sn.Question, arg)
	if !ok {
		if strings.TrimSpace(arg) == "" {
			return "Usage: /answer X"
		}
		return render.MsgNoSuchOption
	}
	if err := sess.SelectAnswer(idx); err != nil {
		return render.Error(err)
	}
	return render.Question(sess.Snapshot())
}

func (e *Engine) handleSubmit(ctx context.Context, sess *quiz.Session) string {
	outcome, err := sess.Submit(ctx)
	if err != nil {
		return render.Error(err)
	}

	sn := sess.Snapshot()
	var b strings.Builder
	b.WriteString(render.Feedback(outcome))
	b.WriteString("\n\n")
	b.WriteString(render.Progress(sn.Stats))
	if controls := render.Controls(sn); controls != "" {
		b.WriteString("\n")
		b.WriteString(controls)
	}
	return b.String()
}

func (e *Engine) handleExport(ctx context.Context, key string, sess *quiz.Session) string {
	if e.reporter == nil {
		return msgExportOff
	}
	path, err := e.reporter.Export(ctx, key, sess)
	if err != nil {
		slog.Error("failed to export report", "session_id", sess.ID(), "error", err)
		return msgExportFailed
	}
	return "Report saved: " + path
}

// parseCommand splits "/go 3" into ("/go", "3"). Plain text yields ("", text).
func parseCommand(text string) (string, string) {
	text = strings.TrimSpace(text)
	if !strings.HasPrefix(text, "/") {
		return "", text
	}
	cmd, arg, _ := strings.Cut(text, " ")
	return strings.ToLower(cmd), strings.TrimSpace(arg)
}

// parseChoice resolves "2", "b", "B." or "B)" to an option index. Numbers are 1-based.
func parseChoice(q quiz.Question, s string) (int, bool) {
	s = strings.TrimRight(strings.TrimSpace(s), ".)")
	if s == "" {
		return 0, false
	}
	if n, err := strconv.Atoi(s); err == nil {
		return n - 1, true
	}
	if utf8.RuneCountInString(s) != 1 {
		return 0, false
	}
	return q.OptionByLetter(s)
}

func looksLikeChoice(s string) bool {
	s = strings.TrimRight(strings.TrimSpace(s), ".)")
	if _, err := strconv.Atoi(s); err == nil {
		return true
	}
	return utf8.RuneCountInString(s) == 1
}

func isQuizCommand(cmd string) bool {
	switch cmd {
	case "/next", "/prev", "/go", "/answer", "/submit", "/stats", "/grid", "/export":
		return true
	}
	return false
}

func unknownCommand(cmd string) string {
	return fmt.Sprintf("Unknown command: %s\nSend /help for the list of commands.", cmd)
}

func sessionKey(msg chat.InboundMessage) string {
	return msg.Channel + ":" + msg.UserID
}

func displayName(msg chat.InboundMessage) string {
	if msg.FirstName != "" {
		return msg.FirstName
	}
	if msg.Username != "" {
		return msg.Username
	}
	return "there"
}
