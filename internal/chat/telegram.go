package chat

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"
	"sync"
	"time"
)

const telegramMaxMessageLen = 4096

// telegramCommands is the command menu registered with the bot.
var telegramCommands = []tgBotCommand{
	{Command: "start", Description: "Start a new quiz"},
	{Command: "next", Description: "Next question"},
	{Command: "prev", Description: "Previous question"},
	{Command: "go", Description: "Jump to question N"},
	{Command: "answer", Description: "Select an option, e.g. /answer B"},
	{Command: "submit", Description: "Submit the selected answer"},
	{Command: "stats", Description: "Show your score"},
	{Command: "grid", Description: "Show all questions"},
	{Command: "export", Description: "Export a session report"},
	{Command: "help", Description: "List commands"},
}

// TelegramChannel implements the Channel interface for Telegram Bot API.
type TelegramChannel struct {
	token    string
	baseURL  string
	client   *http.Client
	offset   int
	stop     chan struct{}
	stopOnce sync.Once

	// queues holds undelivered messages per chat. A key is present while
	// that chat's drain goroutine runs.
	queueMu sync.Mutex
	queues  map[string][]InboundMessage
}

// NewTelegramChannel creates a Telegram channel adapter.
func NewTelegramChannel(token string) (*TelegramChannel, error) {
	if token == "" {
		return nil, fmt.Errorf("telegram bot token is required (QUIZ_TELEGRAM_BOT_TOKEN)")
	}
	return &TelegramChannel{
		token:   token,
		baseURL: "https://api.telegram.org/bot" + token,
		client: &http.Client{
			Timeout: 60 * time.Second,
		},
		stop: make(chan struct{}),
	}, nil
}

func (t *TelegramChannel) SendTyping(ctx context.Context, userID string) error {
	params := url.Values{
		"chat_id": {userID},
		"action":  {"typing"},
	}
	resp, err := t.postForm(ctx, "/sendChatAction", params)
	if err != nil {
		return fmt.Errorf("sending typing indicator: %w", err)
	}
	_ = resp.Body.Close()
	return nil
}

func (t *TelegramChannel) SendMessage(ctx context.Context, userID string, msg OutboundMessage) error {
	for _, part := range SplitMessage(msg.Text, telegramMaxMessageLen) {
		params := url.Values{
			"chat_id": {userID},
			"text":    {part},
		}

		resp, err := t.postForm(ctx, "/sendMessage", params)
		if err != nil {
			return fmt.Errorf("sending Telegram message: %w", err)
		}
		_ = resp.Body.Close()

		if resp.StatusCode != http.StatusOK {
			return fmt.Errorf("telegram API error %d", resp.StatusCode)
		}
	}

	return nil
}

func (t *TelegramChannel) Start(ctx context.Context, handler func(InboundMessage)) error {
	if err := t.syncCommands(ctx); err != nil {
		slog.Warn("failed to register Telegram commands", "error", err)
	}
	go t.pollLoop(ctx, handler)
	return nil
}

func (t *TelegramChannel) Stop() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return nil
}

func (t *TelegramChannel) postForm(ctx context.Context, method string, params url.Values) (*http.Response, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, t.baseURL+method, strings.NewReader(params.Encode()))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
	return t.client.Do(req)
}

func (t *TelegramChannel) syncCommands(ctx context.Context) error {
	payload, err := json.Marshal(telegramCommands)
	if err != nil {
		return fmt.Errorf("encoding commands: %w", err)
	}

	resp, err := t.postForm(ctx, "/setMyCommands", url.Values{"commands": {string(payload)}})
	if err != nil {
		return fmt.Errorf("setMyCommands request: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(resp.Body)
		return fmt.Errorf("setMyCommands error %d: %s", resp.StatusCode, string(body))
	}
	return nil
}

func (t *TelegramChannel) pollLoop(ctx context.Context, handler func(InboundMessage)) {
	slog.Info("Telegram long-polling started")
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		default:
			updates, err := t.getUpdates(ctx)
			if err != nil {
				slog.Error("Telegram getUpdates error", "error", err)
				select {
				case <-ctx.Done():
					return
				case <-t.stop:
					return
				case <-time.After(5 * time.Second):
				}
				continue
			}

			for _, u := range updates {
				t.offset = u.UpdateID + 1
				msg, ok := mapTelegramInbound(u)
				if !ok {
					continue
				}
				t.dispatch(msg, handler)
			}
		}
	}
}

// dispatch hands msg to handler after every earlier message from the same
// chat has been handled. Different chats are handled concurrently.
func (t *TelegramChannel) dispatch(msg InboundMessage, handler func(InboundMessage)) {
	t.queueMu.Lock()
	if t.queues == nil {
		t.queues = make(map[string][]InboundMessage)
	}
	queue, running := t.queues[msg.UserID]
	t.queues[msg.UserID] = append(queue, msg)
	t.queueMu.Unlock()

	if !running {
		go t.drain(msg.UserID, handler)
	}
}

func (t *TelegramChannel) drain(chatID string, handler func(InboundMessage)) {
	for {
		t.queueMu.Lock()
		queue := t.queues[chatID]
		if len(queue) == 0 {
			delete(t.queues, chatID)
			t.queueMu.Unlock()
			return
		}
		msg := queue[0]
		t.queues[chatID] = queue[1:]
		t.queueMu.Unlock()

		handler(msg)
	}
}

func (t *TelegramChannel) getUpdates(ctx context.Context) ([]tgUpdate, error) {
	params := url.Values{
		"offset":  {strconv.Itoa(t.offset)},
		"timeout": {"30"},
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, t.baseURL+"/getUpdates?"+params.Encode(), nil)
	if err != nil {
		return nil, err
	}

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, err
	}
	defer func() { _ = resp.Body.Close() }()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	var result struct {
		OK     bool       `json:"ok"`
		Result []tgUpdate `json:"result"`
	}
	if err := json.Unmarshal(body, &result); err != nil {
		return nil, err
	}

	if !result.OK {
		return nil, fmt.Errorf("telegram API returned ok=false")
	}

	return result.Result, nil
}

// Telegram API types (minimal)
type tgUpdate struct {
	UpdateID int        `json:"update_id"`
	Message  *tgMessage `json:"message"`
}

type tgMessage struct {
	Text string `json:"text"`
	Chat tgChat `json:"chat"`
	From tgUser `json:"from"`
}

type tgChat struct {
	ID int64 `json:"id"`
}

type tgUser struct {
	Username  string `json:"username"`
	FirstName string `json:"first_name"`
}

type tgBotCommand struct {
	Command     string `json:"command"`
	Description string `json:"description"`
}

// SplitMessage splits text into chunks that fit Telegram's max message length.
func SplitMessage(text string, maxLen int) []string {
	if text == "" {
		return nil
	}
	if len(text) <= maxLen {
		return []string{text}
	}

	var parts []string
	for len(text) > 0 {
		if len(text) <= maxLen {
			parts = append(parts, text)
			break
		}
		// Find last newline or space within limit
		cutAt := maxLen
		if idx := strings.LastIndex(text[:maxLen], "\n"); idx > 0 {
			cutAt = idx + 1
		} else if idx := strings.LastIndex(text[:maxLen], " "); idx > 0 {
			cutAt = idx + 1
		}
		parts = append(parts, text[:cutAt])
		text = text[cutAt:]
	}
	return parts
}

func mapTelegramInbound(u tgUpdate) (InboundMessage, bool) {
	if u.Message == nil {
		return InboundMessage{}, false
	}

	text := strings.TrimSpace(u.Message.Text)
	if text == "" {
		return InboundMessage{}, false
	}

	// Commands addressed to a bot in groups arrive as "/next@quiz_bot".
	if strings.HasPrefix(text, "/") {
		cmd, rest, _ := strings.Cut(text, " ")
		if at := strings.IndexByte(cmd, '@'); at > 0 {
			cmd = cmd[:at]
		}
		text = strings.TrimSpace(cmd + " " + rest)
	}

	return InboundMessage{
		Channel:   "telegram",
		UserID:    strconv.FormatInt(u.Message.Chat.ID, 10),
		Text:      text,
		Username:  u.Message.From.Username,
		FirstName: u.Message.From.FirstName,
	}, true
}
