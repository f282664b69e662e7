package chat

import (
	"context"
	"fmt"
	"strings"
	"sync"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
)

// Request is one command line addressed to the bot.
type Request struct {
	Message InboundMessage
	// Line is the message text without the command prefix.
	Line string
	// Reply sends text back to where the request came from. Multi-line
	// text is sent one line per message. Safe to call after Dispatch
	// returns, e.g. from a long-running scan.
	Reply func(ctx context.Context, text string)
}

// Dispatcher executes command requests.
type Dispatcher interface {
	Dispatch(ctx context.Context, req Request)
}

// Router classifies inbound chat messages and hands command lines to the
// Dispatcher. Channel messages must start with the prefix; private
// messages are bare verbs and the prefix is optional. Every request runs
// in its own goroutine.
type Router struct {
	sender     Sender
	dispatcher Dispatcher
	prefix     string
	botUserID  string
	log        zerolog.Logger
	wg         sync.WaitGroup
}

// RouterOpts holds parameters for creating a Router.
type RouterOpts struct {
	Sender     Sender
	Dispatcher Dispatcher
	Prefix     string
	BotUserID  string // bot's user ID for self-message filtering
	Logger     *zerolog.Logger
}

// NewRouter creates a Router.
func NewRouter(opts RouterOpts) (*Router, error) {
	if opts.Sender == nil {
		return nil, fmt.Errorf("chat: router: sender is required")
	}
	if opts.Dispatcher == nil {
		return nil, fmt.Errorf("chat: router: dispatcher is required")
	}
	if opts.Prefix == "" {
		return nil, fmt.Errorf("chat: router: prefix is required")
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	return &Router{
		sender:     opts.Sender,
		dispatcher: opts.Dispatcher,
		prefix:     opts.Prefix,
		botUserID:  opts.BotUserID,
		log:        logger.With().Str("component", "router").Logger(),
	}, nil
}

// Handle classifies a single inbound message and dispatches it when it is
// a command. It returns without waiting for the command to finish.
func (r *Router) Handle(ctx context.Context, msg InboundMessage) {
	if r.botUserID != "" && msg.UserID == r.botUserID {
		return
	}
	line, ok := r.commandLine(msg)
	if !ok {
		return
	}
	r.log.Debug().
		Str("channel", msg.ChannelID).
		Str("user", msg.UserName).
		Bool("private", msg.Private).
		Str("line", truncate(line, 80)).
		Msg("command")

	target := msg.ReplyTarget()
	req := Request{
		Message: msg,
		Line:    line,
		Reply: func(ctx context.Context, text string) {
			r.reply(ctx, target, text)
		},
	}
	r.wg.Add(1)
	go func() {
		defer r.wg.Done()
		r.dispatcher.Dispatch(ctx, req)
	}()
}

// Wait blocks until every dispatched request has returned.
func (r *Router) Wait() {
	r.wg.Wait()
}

func (r *Router) commandLine(msg InboundMessage) (string, bool) {
	text := strings.TrimSpace(msg.Text)
	if strings.HasPrefix(text, r.prefix) {
		line := strings.TrimSpace(strings.TrimPrefix(text, r.prefix))
		return line, line != ""
	}
	if msg.Private && text != "" {
		return text, true
	}
	return "", false
}

func (r *Router) reply(ctx context.Context, target, text string) {
	for _, line := range strings.Split(text, "\n") {
		if strings.TrimSpace(line) == "" {
			continue
		}
		if err := r.sender.Send(ctx, OutboundMessage{ChannelID: target, Text: line}); err != nil {
			r.log.Error().Err(err).Str("target", target).Msg("send reply")
			return
		}
	}
}

// truncate returns s truncated to maxLen with "..." appended if needed.
func truncate(s string, maxLen int) string {
	if len(s) <= maxLen {
		return s
	}
	return s[:maxLen] + "..."
}
