package command

import (
	"context"
	"errors"
	"fmt"
	"io"
	"sort"
	"strings"
	"time"

	"github.com/google/shlex"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/pflag"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/ratelock"
	"github.com/zulandar/warwatch/internal/store"
	"github.com/zulandar/warwatch/internal/watch"
)

// Opts configures a Pipeline.
type Opts struct {
	Store   *store.Store
	Sites   Sites
	Watches Watcher
	Locks   *ratelock.Registry
	// Sender posts messages on behalf of admins (say).
	Sender chat.Sender
	// Identifier verifies nicks on platforms that do not authenticate
	// senders themselves. Optional.
	Identifier chat.Identifier
	// Joiner lets admins move the bot between channels. Optional.
	Joiner chat.Joiner
	// AddressFor returns the base URL of a server for battle links.
	AddressFor func(models.Server) string

	Prefix string
	// MaxCitizens caps one motivate scan. Zero means no cap.
	MaxCitizens int
	// IdentifyTimeout bounds the identity round trip. Default 10s.
	IdentifyTimeout time.Duration
	Logger          *zerolog.Logger
}

// Pipeline resolves and runs chat commands. It implements chat.Dispatcher.
type Pipeline struct {
	opts    Opts
	channel map[string]*Command
	private map[string]*Command
	log     zerolog.Logger
}

// New builds a Pipeline with the standard command tables.
func New(opts Opts) (*Pipeline, error) {
	if opts.Store == nil {
		return nil, fmt.Errorf("command: store is required")
	}
	if opts.Sites == nil {
		return nil, fmt.Errorf("command: sites are required")
	}
	if opts.Watches == nil {
		return nil, fmt.Errorf("command: watcher is required")
	}
	if opts.Locks == nil {
		return nil, fmt.Errorf("command: rate lock registry is required")
	}
	if opts.AddressFor == nil {
		return nil, fmt.Errorf("command: address func is required")
	}
	if opts.Prefix == "" {
		opts.Prefix = "!"
	}
	if opts.IdentifyTimeout <= 0 {
		opts.IdentifyTimeout = 10 * time.Second
	}
	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	p := &Pipeline{
		opts:    opts,
		channel: make(map[string]*Command),
		private: make(map[string]*Command),
		log:     logger.With().Str("component", "command").Logger(),
	}
	for _, c := range p.channelCommands() {
		p.channel[c.Name] = c
	}
	for _, c := range p.privateCommands() {
		p.private[c.Name] = c
	}
	return p, nil
}

// Dispatch runs one request and replies with the result or the rendered
// error.
func (p *Pipeline) Dispatch(ctx context.Context, req chat.Request) {
	cmd, text, err := p.Execute(ctx, req)
	if err != nil {
		var pe *watch.PollError
		if errors.As(err, &pe) {
			return
		}
		op := "run the command"
		if cmd != nil && cmd.Op != "" {
			op = cmd.Op
		}
		if !isUserError(err) {
			p.log.Warn().Err(err).Str("line", req.Line).Str("user", req.Message.UserName).Msg("command failed")
		}
		text = Render(op, err)
	}
	if text != "" && req.Reply != nil {
		req.Reply(ctx, text)
	}
}

func isUserError(err error) bool {
	var (
		ce *ContextError
		ae *AuthError
		ue *UsageError
	)
	return errors.As(err, &ce) || errors.As(err, &ae) || errors.As(err, &ue) || ratelock.IsDenied(err)
}

// Execute resolves and runs a request, returning the matched command and
// its reply. An unknown channel command yields no command and no text.
func (p *Pipeline) Execute(ctx context.Context, req chat.Request) (*Command, string, error) {
	tokens, err := shlex.Split(req.Line)
	if err != nil {
		return nil, "", &UsageError{Msg: "could not parse the command line: unbalanced quotes"}
	}
	if len(tokens) == 0 {
		return nil, "", nil
	}

	verb := strings.ToLower(tokens[0])
	table := p.channel
	if req.Message.Private {
		table = p.private
	}
	cmd, ok := table[verb]
	if !ok {
		if req.Message.Private {
			return nil, fmt.Sprintf("Unknown command %q. Try help.", verb), nil
		}
		return nil, "", nil
	}

	fs, err := p.flagSet(cmd)
	if err != nil {
		return cmd, "", err
	}
	prefix := p.opts.Prefix
	if req.Message.Private {
		prefix = ""
	}
	for _, t := range tokens[1:] {
		if t == "-h" || t == "--help" {
			return cmd, cmd.usage(prefix, fs), nil
		}
		if cmd.MaxArgs == Unlimited && !strings.HasPrefix(t, "-") {
			break
		}
	}

	inv := &Invocation{Request: req, Command: cmd, Flags: fs}

	if !cmd.Anonymous {
		account, err := p.identify(ctx, req.Message)
		if err != nil {
			return cmd, "", err
		}
		inv.Account = account
	}

	if err := fs.Parse(tokens[1:]); err != nil {
		return cmd, "", &UsageError{Msg: err.Error(), Usage: cmd.usage(prefix, fs)}
	}
	inv.Args = fs.Args()
	if len(inv.Args) < cmd.MinArgs {
		return cmd, "", &UsageError{Msg: "not enough arguments", Usage: cmd.usage(prefix, fs)}
	}
	if cmd.MaxArgs != Unlimited && len(inv.Args) > cmd.MaxArgs {
		return cmd, "", &UsageError{Msg: "too many arguments", Usage: cmd.usage(prefix, fs)}
	}

	if cmd.UserLevel > 0 || cmd.CountryLevel > 0 {
		if err := p.resolveUser(inv); err != nil {
			return cmd, "", err
		}
	}
	if err := p.resolveChannel(inv); err != nil {
		return cmd, "", err
	}
	if cmd.Server || cmd.CountryLevel > 0 || cmd.ChannelType != "" {
		if err := p.resolveServer(inv); err != nil {
			return cmd, "", err
		}
	}
	if cmd.CountryLevel > 0 || cmd.ChannelType != "" {
		if err := p.resolveCountry(inv); err != nil {
			return cmd, "", err
		}
	}

	text, err := cmd.Run(ctx, inv)
	return cmd, text, err
}

// flagSet builds the command's flag schema plus one --<server> flag per
// enabled server.
func (p *Pipeline) flagSet(cmd *Command) (*pflag.FlagSet, error) {
	fs := pflag.NewFlagSet(cmd.Name, pflag.ContinueOnError)
	fs.SetOutput(io.Discard)
	// Free text after the positionals is not parsed for flags.
	fs.SetInterspersed(cmd.MaxArgs != Unlimited)
	if cmd.Flags != nil {
		cmd.Flags(fs)
	}
	if !cmd.Server {
		return fs, nil
	}
	servers, err := p.opts.Store.Servers()
	if err != nil {
		return nil, err
	}
	for _, s := range servers {
		name := strings.ToLower(s.Name)
		if fs.Lookup(name) == nil {
			fs.Bool(name, false, "use server "+s.Name)
		}
	}
	return fs, nil
}

// identify returns the sender's verified network account.
func (p *Pipeline) identify(ctx context.Context, msg chat.InboundMessage) (string, error) {
	if msg.Account != "" {
		return msg.Account, nil
	}
	if p.opts.Identifier == nil {
		return "", &AuthError{Msg: "cannot verify your identity on this network"}
	}
	ctx, cancel := context.WithTimeout(ctx, p.opts.IdentifyTimeout)
	defer cancel()
	account, err := p.opts.Identifier.Identify(ctx, msg.UserName)
	if err != nil {
		p.log.Warn().Err(err).Str("nick", msg.UserName).Msg("identify")
		return "", &AuthError{Msg: "could not verify your identity, try again"}
	}
	if account == "" {
		return "", &AuthError{Msg: fmt.Sprintf("%s: you are not identified with the network", msg.UserName)}
	}
	return account, nil
}

func (p *Pipeline) resolveUser(inv *Invocation) error {
	u, err := p.opts.Store.UserByAccount(inv.Account)
	if errors.Is(err, store.ErrNotFound) {
		return &AuthError{Msg: fmt.Sprintf("account %s is not registered", inv.Account)}
	}
	if err != nil {
		return err
	}
	if u.Level < inv.Command.UserLevel {
		return contextErrorf("permission denied")
	}
	inv.User = u
	return nil
}

// resolveChannel loads the invoking channel when it is registered.
func (p *Pipeline) resolveChannel(inv *Invocation) error {
	msg := inv.Request.Message
	if msg.Private || msg.ChannelID == "" {
		return nil
	}
	ch, err := p.opts.Store.ChannelByName(msg.ChannelID)
	if errors.Is(err, store.ErrNotFound) {
		return nil
	}
	if err != nil {
		return err
	}
	inv.Channel = ch
	return nil
}

// resolveServer picks the server: an explicit --<server> flag, else the
// server of the channel's first country, else the first server.
func (p *Pipeline) resolveServer(inv *Invocation) error {
	servers, err := p.opts.Store.Servers()
	if err != nil {
		return err
	}
	var chosen []models.Server
	for _, s := range servers {
		if inv.Bool(strings.ToLower(s.Name)) {
			chosen = append(chosen, s)
		}
	}
	switch {
	case len(chosen) > 1:
		return &UsageError{Msg: "choose only one server"}
	case len(chosen) == 1:
		inv.Server = &chosen[0]
		return nil
	}
	if inv.Channel != nil && len(inv.Channel.Links) > 0 {
		srv := inv.Channel.Links[0].Country.Server
		inv.Server = &srv
		return nil
	}
	if len(servers) == 0 {
		return contextErrorf("no game servers are configured")
	}
	inv.Server = &servers[0]
	return nil
}

// resolveCountry narrows the channel's countries to the chosen server,
// the required channel type and the caller's access level. Exactly one
// must remain.
func (p *Pipeline) resolveCountry(inv *Invocation) error {
	cmd := inv.Command
	if inv.Channel == nil || len(inv.Channel.Links) == 0 {
		return contextErrorf("channel not registered")
	}

	var onServer []models.ChannelCountry
	for _, l := range inv.Channel.Links {
		if l.Country.ServerID == inv.Server.ID {
			onServer = append(onServer, l)
		}
	}
	if len(onServer) == 0 {
		return contextErrorf("channel not registered for server %s", inv.Server.Name)
	}

	typed := onServer
	if cmd.ChannelType != "" {
		typed = nil
		for _, l := range onServer {
			if l.HasType(cmd.ChannelType) {
				typed = append(typed, l)
			}
		}
		if len(typed) == 0 {
			return contextErrorf("this is not a %s channel for server %s", cmd.ChannelType, inv.Server.Name)
		}
	}

	var qualified []models.Country
	for _, l := range typed {
		if cmd.CountryLevel == 0 || (inv.User != nil && l.Country.LevelFor(inv.User.ID) >= cmd.CountryLevel) {
			qualified = append(qualified, l.Country)
		}
	}
	switch len(qualified) {
	case 0:
		return contextErrorf("permission denied")
	case 1:
		inv.Country = &qualified[0]
		return nil
	}
	names := make([]string, len(qualified))
	for i, c := range qualified {
		names[i] = c.Name
	}
	sort.Strings(names)
	return contextErrorf("multiple countries match (%s)", strings.Join(names, ", "))
}

// commandNames returns the sorted names of a table.
func commandNames(table map[string]*Command) []string {
	names := make([]string, 0, len(table))
	for n := range table {
		names = append(names, n)
	}
	sort.Strings(names)
	return names
}
