// Package discord implements the chat Adapter for Discord using the Gateway
// WebSocket. Guild text channels are addressed as "#name" so they match the
// channel records; direct messages are private requests.
package discord

import (
	"context"
	"errors"
	"fmt"
	"math"
	"net/http"
	"strings"
	"sync"
	"time"

	"github.com/bwmarrin/discordgo"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"

	"github.com/zulandar/warwatch/internal/chat"
)

const (
	// maxRetries is the max number of retries for rate-limited API calls.
	maxRetries = 3
	// baseBackoff is the initial wait after a rate limit.
	baseBackoff = 2 * time.Second
	// maxBackoff caps the exponential backoff.
	maxBackoff = 2 * time.Minute
)

// session abstracts the discordgo.Session methods we use, enabling test mocks.
type session interface {
	Open() error
	Close() error
	Channel(channelID string) (*discordgo.Channel, error)
	ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error)
	AddHandler(handler interface{}) func()
}

// realSession wraps *discordgo.Session to implement the session interface.
type realSession struct {
	s *discordgo.Session
}

func (r *realSession) Open() error  { return r.s.Open() }
func (r *realSession) Close() error { return r.s.Close() }
func (r *realSession) Channel(channelID string) (*discordgo.Channel, error) {
	if ch, err := r.s.State.Channel(channelID); err == nil {
		return ch, nil
	}
	return r.s.Channel(channelID)
}
func (r *realSession) ChannelMessageSendComplex(channelID string, data *discordgo.MessageSend, options ...discordgo.RequestOption) (*discordgo.Message, error) {
	return r.s.ChannelMessageSendComplex(channelID, data, options...)
}
func (r *realSession) AddHandler(handler interface{}) func() {
	return r.s.AddHandler(handler)
}

// Adapter implements chat.Adapter for Discord.
type Adapter struct {
	sess          session
	botToken      string
	channelID     string // default channel for notices
	botUserID     string
	log           zerolog.Logger
	mu            sync.Mutex
	connected     bool
	closed        bool
	inbound       chan chat.InboundMessage
	removeHandler func()
	// channels maps "#name" to channel ID; dms maps user ID to the DM
	// channel the user last wrote from.
	channels    map[string]string
	dms         map[string]string
	baseBackoff time.Duration
	maxBackoff  time.Duration
}

// AdapterOpts holds parameters for creating a Discord Adapter.
type AdapterOpts struct {
	BotToken  string // Discord bot token
	ChannelID string // default channel to post to
	Logger    *zerolog.Logger
	// For testing: inject a mock session instead of real Discord API.
	Session session
}

// New creates a Discord Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Session == nil && opts.BotToken == "" {
		return nil, fmt.Errorf("discord: bot token is required")
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}

	a := &Adapter{
		botToken:    opts.BotToken,
		channelID:   opts.ChannelID,
		log:         logger.With().Str("component", "discord").Logger(),
		inbound:     make(chan chat.InboundMessage, 100),
		channels:    make(map[string]string),
		dms:         make(map[string]string),
		baseBackoff: baseBackoff,
		maxBackoff:  maxBackoff,
	}
	if opts.Session != nil {
		a.sess = opts.Session
	}
	return a, nil
}

// Connect establishes the Discord Gateway WebSocket connection.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return fmt.Errorf("discord: adapter already closed")
	}
	if a.connected {
		return nil
	}

	if a.sess == nil {
		dg, err := discordgo.New("Bot " + a.botToken)
		if err != nil {
			return fmt.Errorf("discord: create session: %w", err)
		}
		dg.Identify.Intents = discordgo.IntentsGuilds | discordgo.IntentsGuildMessages |
			discordgo.IntentsDirectMessages | discordgo.IntentsMessageContent
		a.sess = &realSession{s: dg}
	}

	a.sess.AddHandler(func(_ *discordgo.Session, r *discordgo.Ready) {
		a.mu.Lock()
		a.botUserID = r.User.ID
		a.mu.Unlock()
		a.log.Info().Str("user", r.User.Username).Str("id", r.User.ID).Msg("connected")
	})
	a.sess.AddHandler(func(_ *discordgo.Session, g *discordgo.GuildCreate) {
		a.learnGuild(g.Guild)
	})
	a.sess.AddHandler(func(_ *discordgo.Session, d *discordgo.Disconnect) {
		a.log.Warn().Msg("gateway disconnected, discordgo will reconnect")
	})

	if err := a.sess.Open(); err != nil {
		return fmt.Errorf("discord: open gateway: %w", err)
	}
	a.connected = true
	return nil
}

// learnGuild records the names of a guild's text channels.
func (a *Adapter) learnGuild(g *discordgo.Guild) {
	if g == nil {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	for _, ch := range g.Channels {
		if ch.Type == discordgo.ChannelTypeGuildText {
			a.channels["#"+strings.ToLower(ch.Name)] = ch.ID
		}
	}
}

// Listen returns a channel of inbound messages from Discord. Must be called
// after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.connected {
		return nil, fmt.Errorf("discord: not connected")
	}
	a.removeHandler = a.sess.AddHandler(func(_ *discordgo.Session, m *discordgo.MessageCreate) {
		a.handleMessage(m)
	})
	return a.inbound, nil
}

// Send delivers a message. Targets are "#name", a user ID that wrote to
// the bot privately, or a raw channel ID.
func (a *Adapter) Send(ctx context.Context, msg chat.OutboundMessage) error {
	a.mu.Lock()
	if !a.connected {
		a.mu.Unlock()
		return fmt.Errorf("discord: not connected")
	}
	channelID, err := a.resolveLocked(msg.ChannelID)
	a.mu.Unlock()
	if err != nil {
		return err
	}

	data := &discordgo.MessageSend{Content: chat.ToMarkdown(msg.Text, "**")}
	err = a.retryOnRateLimit(ctx, func() error {
		_, sendErr := a.sess.ChannelMessageSendComplex(channelID, data)
		return sendErr
	})
	if err != nil {
		return fmt.Errorf("discord: send message: %w", err)
	}
	return nil
}

func (a *Adapter) resolveLocked(target string) (string, error) {
	switch {
	case target == "":
		if a.channelID == "" {
			return "", fmt.Errorf("discord: no channel specified")
		}
		return a.channelID, nil
	case strings.HasPrefix(target, "#"):
		id, ok := a.channels[strings.ToLower(target)]
		if !ok {
			return "", fmt.Errorf("discord: unknown channel %s", target)
		}
		return id, nil
	}
	if dm, ok := a.dms[target]; ok {
		return dm, nil
	}
	return target, nil
}

// Close gracefully shuts down the adapter connection.
func (a *Adapter) Close() error {
	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return nil
	}
	a.closed = true
	a.connected = false
	if a.removeHandler != nil {
		a.removeHandler()
	}
	close(a.inbound)
	if a.sess != nil {
		return a.sess.Close()
	}
	return nil
}

// BotUserID returns the bot's Discord user ID (available after Ready).
func (a *Adapter) BotUserID() string {
	a.mu.Lock()
	defer a.mu.Unlock()
	return a.botUserID
}

// SetBotUserID sets the bot user ID (used for self-message filtering).
func (a *Adapter) SetBotUserID(id string) {
	a.mu.Lock()
	defer a.mu.Unlock()
	a.botUserID = id
}

// handleMessage converts a Discord message event to an InboundMessage.
// Discord authenticates every author, so the username is the account.
func (a *Adapter) handleMessage(m *discordgo.MessageCreate) {
	if m.Author == nil || m.Author.Bot {
		return
	}
	a.mu.Lock()
	if a.closed || m.Author.ID == a.botUserID {
		a.mu.Unlock()
		return
	}
	a.mu.Unlock()

	in := chat.InboundMessage{
		Platform: "discord",
		UserID:   m.Author.ID,
		UserName: m.Author.Username,
		Account:  m.Author.Username,
		Text:     m.Content,
	}
	in.Timestamp, _ = discordgo.SnowflakeTimestamp(m.ID)

	if m.GuildID == "" {
		in.Private = true
		a.mu.Lock()
		a.dms[m.Author.ID] = m.ChannelID
		a.mu.Unlock()
	} else {
		name := m.ChannelID
		if ch, err := a.sess.Channel(m.ChannelID); err == nil {
			if ch.IsThread() && ch.ParentID != "" {
				if parent, perr := a.sess.Channel(ch.ParentID); perr == nil {
					ch = parent
				}
			}
			name = "#" + strings.ToLower(ch.Name)
			a.mu.Lock()
			a.channels[name] = ch.ID
			a.mu.Unlock()
		}
		in.ChannelID = name
	}

	a.mu.Lock()
	defer a.mu.Unlock()
	if a.closed {
		return
	}
	select {
	case a.inbound <- in:
	default:
		a.log.Warn().Str("channel", in.ChannelID).Msg("inbound queue full, dropping message")
	}
}

// retryOnRateLimit calls fn and retries with exponential backoff on Discord
// rate limit errors. It respects context cancellation.
func (a *Adapter) retryOnRateLimit(ctx context.Context, fn func() error) error {
	for attempt := 0; ; attempt++ {
		err := fn()
		if err == nil {
			return nil
		}
		var restErr *discordgo.RESTError
		if !errors.As(err, &restErr) || restErr.Response == nil || restErr.Response.StatusCode != http.StatusTooManyRequests {
			return err
		}
		if attempt == maxRetries {
			return err
		}

		wait := time.Duration(math.Pow(2, float64(attempt))) * a.baseBackoff
		if wait > a.maxBackoff {
			wait = a.maxBackoff
		}
		a.log.Warn().Int("attempt", attempt+1).Dur("wait", wait).Msg("rate limited")

		select {
		case <-ctx.Done():
			return ctx.Err()
		case <-time.After(wait):
		}
	}
}
