package chat

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"strings"
	"sync"

	"github.com/google/uuid"
)

// Console is a Transport for local runs: outbound messages are printed to a
// writer and inbound events are read line by line.
//
// Input format:
//
//	<conversation-id> <text>          incoming text
//	/react <message-id> <marker>      reaction on a previous prompt
type Console struct {
	out io.Writer
	mu  sync.Mutex
}

// NewConsole creates a console transport writing to out.
func NewConsole(out io.Writer) *Console {
	return &Console{out: out}
}

// SendMessage prints the message and returns a generated message ID.
func (c *Console) SendMessage(_ context.Context, conversationID, text string) (string, error) {
	messageID := uuid.NewString()

	c.mu.Lock()
	defer c.mu.Unlock()
	if _, err := fmt.Fprintf(c.out, "[%s] (%s)\n%s\n\n", conversationID, messageID, text); err != nil {
		return "", fmt.Errorf("failed to write message: %w", err)
	}

	return messageID, nil
}

// TextFunc handles an incoming text event.
type TextFunc func(ctx context.Context, conversationID, text string)

// ReactionFunc handles a reaction event. The conversation ID is the one the
// reacting user typed the command in.
type ReactionFunc func(ctx context.Context, conversationID, messageID, marker string)

// Listen reads input events until the reader is exhausted or the context is
// cancelled.
func (c *Console) Listen(ctx context.Context, in io.Reader, onText TextFunc, onReaction ReactionFunc) error {
	scanner := bufio.NewScanner(in)
	for scanner.Scan() {
		if ctx.Err() != nil {
			return ctx.Err()
		}

		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}

		if rest, found := strings.CutPrefix(line, "/react "); found {
			fields := strings.Fields(rest)
			if len(fields) < 2 {
				fmt.Fprintln(c.out, "usage: /react <message-id> <marker>")
				continue
			}
			onReaction(ctx, "console", fields[0], fields[1])
			continue
		}

		conversationID, text, found := strings.Cut(line, " ")
		if !found {
			conversationID, text = "console", line
		}
		onText(ctx, conversationID, text)
	}

	if err := scanner.Err(); err != nil {
		return fmt.Errorf("failed to read input: %w", err)
	}
	return nil
}
