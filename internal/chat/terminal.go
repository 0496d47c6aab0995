package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log/slog"
	"strings"
	"sync"
)

// TerminalUserID is the user ID attached to every terminal message.
const TerminalUserID = "local"

// TerminalChannel reads commands line by line from in and writes replies to out.
// Messages are handled one at a time, in order.
type TerminalChannel struct {
	in       io.Reader
	out      io.Writer
	mu       sync.Mutex
	stop     chan struct{}
	stopOnce sync.Once
	done     chan struct{}
}

// NewTerminalChannel creates a terminal channel over the given streams.
func NewTerminalChannel(in io.Reader, out io.Writer) *TerminalChannel {
	return &TerminalChannel{
		in:   in,
		out:  out,
		stop: make(chan struct{}),
		done: make(chan struct{}),
	}
}

func (t *TerminalChannel) SendMessage(_ context.Context, _ string, msg OutboundMessage) error {
	t.mu.Lock()
	defer t.mu.Unlock()
	if _, err := fmt.Fprintf(t.out, "%s\n\n", msg.Text); err != nil {
		return fmt.Errorf("writing terminal message: %w", err)
	}
	return nil
}

func (t *TerminalChannel) SendTyping(_ context.Context, _ string) error {
	return nil
}

func (t *TerminalChannel) Start(ctx context.Context, handler func(InboundMessage)) error {
	go t.readLoop(ctx, handler)
	return nil
}

func (t *TerminalChannel) Stop() error {
	t.stopOnce.Do(func() { close(t.stop) })
	return nil
}

// Done is closed once the input stream is exhausted or the channel stops.
func (t *TerminalChannel) Done() <-chan struct{} {
	return t.done
}

func (t *TerminalChannel) readLoop(ctx context.Context, handler func(InboundMessage)) {
	defer close(t.done)

	scanner := bufio.NewScanner(t.in)
	for scanner.Scan() {
		select {
		case <-ctx.Done():
			return
		case <-t.stop:
			return
		default:
		}

		text := strings.TrimSpace(scanner.Text())
		if text == "" {
			continue
		}
		handler(InboundMessage{
			Channel: "terminal",
			UserID:  TerminalUserID,
			Text:    text,
		})
	}
	if err := scanner.Err(); err != nil {
		slog.Error("terminal input error", "error", err)
	}
}
