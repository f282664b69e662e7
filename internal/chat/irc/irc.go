// Package irc implements the chat Adapter for IRC networks. Sender
// identity is not carried on IRC messages, so the adapter answers
// Identify with a WHOIS round trip and reads the services account from
// the 330 reply.
package irc

import (
	"context"
	"crypto/tls"
	"fmt"
	stdlog "log"
	"strings"
	"sync"
	"time"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	ircevent "github.com/thoj/go-ircevent"

	"github.com/zulandar/warwatch/internal/chat"
)

// Numeric replies used by the adapter.
const (
	rplWelcome        = "001"
	rplWhoisAccount   = "330"
	rplEndOfWhois     = "318"
	errNicknameInUse  = "433"
	maxLineBytes      = 400
	inboundBufferSize = 100
)

// ircConn abstracts the go-ircevent connection, enabling test mocks.
type ircConn interface {
	AddCallback(eventcode string, callback func(*ircevent.Event)) int
	Connect(server string) error
	Loop()
	Join(channel string)
	Part(channel string)
	Privmsg(target, message string)
	Whois(nick string)
	SendRawf(format string, a ...interface{})
	GetNick() string
	Quit()
}

// whoisRequest collects the replies of one WHOIS. done closes on the end
// of the reply.
type whoisRequest struct {
	account string
	done    chan struct{}
}

// Adapter implements chat.Adapter, chat.Identifier and chat.Joiner for IRC.
type Adapter struct {
	conn     ircConn
	server   string
	log      zerolog.Logger
	mu       sync.Mutex
	started  bool
	closed   bool
	inbound  chan chat.InboundMessage
	channels map[string]string // joined channel -> key, rejoined on welcome
	pending  map[string]*whoisRequest
	welcome  chan struct{}
	timeout  time.Duration
}

// AdapterOpts holds parameters for creating an IRC Adapter.
type AdapterOpts struct {
	Server   string // host:port
	Nick     string
	User     string
	Password string
	TLS      bool
	Channels []string // joined after every welcome, "#name" or "#name key"
	// ConnectTimeout bounds the wait for the server welcome. Default 30s.
	ConnectTimeout time.Duration
	Logger         *zerolog.Logger
	// For testing: inject a mock connection instead of dialing.
	Conn ircConn
}

// New creates an IRC Adapter.
func New(opts AdapterOpts) (*Adapter, error) {
	if opts.Conn == nil && opts.Server == "" {
		return nil, fmt.Errorf("irc: server is required")
	}
	if opts.Conn == nil && opts.Nick == "" {
		return nil, fmt.Errorf("irc: nick is required")
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "irc").Logger()

	conn := opts.Conn
	if conn == nil {
		user := opts.User
		if user == "" {
			user = opts.Nick
		}
		c := ircevent.IRC(opts.Nick, user)
		c.UseTLS = opts.TLS
		if opts.TLS {
			c.TLSConfig = &tls.Config{ServerName: hostOf(opts.Server)}
		}
		c.Password = opts.Password
		c.QuitMessage = "warwatch"
		// The library only logs through the standard logger.
		c.Log = stdlog.New(logger.With().Str("source", "ircevent").Logger(), "", 0)
		conn = c
	}

	timeout := opts.ConnectTimeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	a := &Adapter{
		conn:     conn,
		server:   opts.Server,
		log:      logger,
		inbound:  make(chan chat.InboundMessage, inboundBufferSize),
		channels: make(map[string]string),
		pending:  make(map[string]*whoisRequest),
		welcome:  make(chan struct{}),
		timeout:  timeout,
	}
	for _, spec := range opts.Channels {
		name, key, _ := strings.Cut(strings.TrimSpace(spec), " ")
		if name != "" {
			a.channels[strings.ToLower(name)] = key
		}
	}
	return a, nil
}

func hostOf(server string) string {
	host, _, _ := strings.Cut(server, ":")
	return host
}

// Connect dials the server, starts the event loop and waits for the
// welcome reply.
func (a *Adapter) Connect(ctx context.Context) error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return fmt.Errorf("irc: adapter already closed")
	}
	if a.started {
		a.mu.Unlock()
		return nil
	}
	a.started = true
	a.mu.Unlock()

	var once sync.Once
	a.conn.AddCallback(rplWelcome, func(e *ircevent.Event) {
		a.joinAll()
		once.Do(func() { close(a.welcome) })
	})
	a.conn.AddCallback("PRIVMSG", a.handlePrivmsg)
	a.conn.AddCallback(rplWhoisAccount, a.handleWhoisAccount)
	a.conn.AddCallback(rplEndOfWhois, a.handleEndOfWhois)
	a.conn.AddCallback(errNicknameInUse, func(e *ircevent.Event) {
		a.log.Warn().Str("nick", a.conn.GetNick()).Msg("nickname in use")
	})

	if err := a.conn.Connect(a.server); err != nil {
		return fmt.Errorf("irc: connect %s: %w", a.server, err)
	}
	go a.conn.Loop()

	select {
	case <-a.welcome:
		a.log.Info().Str("server", a.server).Str("nick", a.conn.GetNick()).Msg("registered")
		return nil
	case <-ctx.Done():
		return ctx.Err()
	case <-time.After(a.timeout):
		return fmt.Errorf("irc: no welcome from %s after %s", a.server, a.timeout)
	}
}

// Listen returns the inbound message channel. Must be called after Connect.
func (a *Adapter) Listen(ctx context.Context) (<-chan chat.InboundMessage, error) {
	a.mu.Lock()
	defer a.mu.Unlock()
	if !a.started || a.closed {
		return nil, fmt.Errorf("irc: not connected")
	}
	return a.inbound, nil
}

// Send posts text to a channel or nick, one PRIVMSG per line. Lines over
// the IRC length limit are split on spaces.
func (a *Adapter) Send(ctx context.Context, msg chat.OutboundMessage) error {
	a.mu.Lock()
	ready := a.started && !a.closed
	a.mu.Unlock()
	if !ready {
		return fmt.Errorf("irc: not connected")
	}
	if msg.ChannelID == "" {
		return fmt.Errorf("irc: no target specified")
	}
	for _, line := range strings.Split(msg.Text, "\n") {
		for _, part := range splitLine(line, maxLineBytes) {
			if err := ctx.Err(); err != nil {
				return err
			}
			a.conn.Privmsg(msg.ChannelID, part)
		}
	}
	return nil
}

// splitLine breaks s into chunks of at most n bytes, preferring spaces.
func splitLine(s string, n int) []string {
	if s == "" {
		return nil
	}
	var out []string
	for len(s) > n {
		cut := strings.LastIndexByte(s[:n], ' ')
		if cut <= 0 {
			cut = n
		}
		out = append(out, s[:cut])
		s = strings.TrimLeft(s[cut:], " ")
	}
	if s != "" {
		out = append(out, s)
	}
	return out
}

// Identify returns the services account nick is logged in as, or "" when
// the WHOIS reply carries none. Concurrent lookups of one nick share a
// single WHOIS.
func (a *Adapter) Identify(ctx context.Context, nick string) (string, error) {
	key := strings.ToLower(nick)
	a.mu.Lock()
	req, inflight := a.pending[key]
	if !inflight {
		req = &whoisRequest{done: make(chan struct{})}
		a.pending[key] = req
	}
	a.mu.Unlock()
	if !inflight {
		a.conn.Whois(nick)
	}

	select {
	case <-req.done:
		return req.account, nil
	case <-ctx.Done():
		a.mu.Lock()
		if a.pending[key] == req {
			delete(a.pending, key)
		}
		a.mu.Unlock()
		return "", ctx.Err()
	}
}

// Join joins a channel and remembers it for reconnects.
func (a *Adapter) Join(ctx context.Context, channel, key string) error {
	if !strings.HasPrefix(channel, "#") && !strings.HasPrefix(channel, "&") {
		return fmt.Errorf("irc: %q is not a channel", channel)
	}
	a.mu.Lock()
	a.channels[strings.ToLower(channel)] = key
	a.mu.Unlock()
	a.join(channel, key)
	return nil
}

// Part leaves a channel.
func (a *Adapter) Part(ctx context.Context, channel string) error {
	a.mu.Lock()
	delete(a.channels, strings.ToLower(channel))
	a.mu.Unlock()
	a.conn.Part(channel)
	return nil
}

// Close quits the server and closes the inbound channel.
func (a *Adapter) Close() error {
	a.mu.Lock()
	if a.closed {
		a.mu.Unlock()
		return nil
	}
	a.closed = true
	started := a.started
	close(a.inbound)
	for _, req := range a.pending {
		close(req.done)
	}
	a.pending = make(map[string]*whoisRequest)
	a.mu.Unlock()

	if started {
		a.conn.Quit()
	}
	return nil
}

// BotUserID returns the bot's current nick.
func (a *Adapter) BotUserID() string {
	return a.conn.GetNick()
}

func (a *Adapter) join(channel, key string) {
	if key != "" {
		a.conn.SendRawf("JOIN %s %s", channel, key)
		return
	}
	a.conn.Join(channel)
}

func (a *Adapter) joinAll() {
	a.mu.Lock()
	channels := make(map[string]string, len(a.channels))
	for ch, key := range a.channels {
		channels[ch] = key
	}
	a.mu.Unlock()
	for ch, key := range channels {
		a.join(ch, key)
	}
}

func (a *Adapter) handlePrivmsg(e *ircevent.Event) {
	if len(e.Arguments) < 1 || strings.EqualFold(e.Nick, a.conn.GetNick()) {
		return
	}
	target := e.Arguments[0]
	in := chat.InboundMessage{
		Platform:  "irc",
		UserID:    e.Nick,
		UserName:  e.Nick,
		Text:      e.Message(),
		Timestamp: time.Now(),
	}
	if strings.HasPrefix(target, "#") || strings.HasPrefix(target, "&") {
		in.ChannelID = strings.ToLower(target)
	} else {
		in.Private = true
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

// handleWhoisAccount reads ":server 330 me nick account :is logged in as".
func (a *Adapter) handleWhoisAccount(e *ircevent.Event) {
	if len(e.Arguments) < 3 {
		return
	}
	a.mu.Lock()
	defer a.mu.Unlock()
	if req, ok := a.pending[strings.ToLower(e.Arguments[1])]; ok {
		req.account = e.Arguments[2]
	}
}

// handleEndOfWhois completes the request: ":server 318 me nick :End of /WHOIS list."
func (a *Adapter) handleEndOfWhois(e *ircevent.Event) {
	if len(e.Arguments) < 2 {
		return
	}
	key := strings.ToLower(e.Arguments[1])
	a.mu.Lock()
	defer a.mu.Unlock()
	if req, ok := a.pending[key]; ok {
		delete(a.pending, key)
		close(req.done)
	}
}
