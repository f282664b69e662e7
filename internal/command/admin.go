package command

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/models"
	"github.com/zulandar/warwatch/internal/store"
)

func (p *Pipeline) channelCommands() []*Command {
	return []*Command{
		p.helpCommand(false),
		p.battleCommand(),
		p.watchCommand(),
		p.unwatchCommand(),
		p.watchesCommand(),
		p.motivateCommand(),
		p.donateCommand(),
		p.citizenCommand(),
		p.countryCommand(),
		p.regionsCommand(),
	}
}

func (p *Pipeline) privateCommands() []*Command {
	return []*Command{
		p.helpCommand(true),
		p.joinCommand(),
		p.partCommand(),
		p.sayCommand(),
	}
}

func (p *Pipeline) helpCommand(private bool) *Command {
	return &Command{
		Name:      "help",
		Args:      "[command]",
		Summary:   "list commands or show one command's usage",
		MaxArgs:   1,
		Anonymous: true,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			table, prefix := p.channel, p.opts.Prefix
			if private {
				table, prefix = p.private, ""
			}
			if len(inv.Args) == 1 {
				name := strings.TrimPrefix(strings.ToLower(inv.Args[0]), p.opts.Prefix)
				cmd, ok := table[name]
				if !ok {
					return fmt.Sprintf("Unknown command %q.", name), nil
				}
				fs, err := p.flagSet(cmd)
				if err != nil {
					return "", err
				}
				return cmd.usage(prefix, fs), nil
			}
			names := commandNames(table)
			for i, n := range names {
				names[i] = prefix + n
			}
			return fmt.Sprintf("Commands: %s. Use %shelp <command> or <command> -h for usage.",
				strings.Join(names, ", "), prefix), nil
		},
	}
}

func (p *Pipeline) joiner() (chat.Joiner, error) {
	if p.opts.Joiner == nil {
		return nil, errors.New("joining channels is not supported on this platform")
	}
	return p.opts.Joiner, nil
}

func (p *Pipeline) joinCommand() *Command {
	return &Command{
		Name:      "join",
		Args:      "<#channel> [key]",
		Summary:   "join a channel",
		Op:        "join",
		MinArgs:   1,
		MaxArgs:   2,
		UserLevel: models.LevelAdmin,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			j, err := p.joiner()
			if err != nil {
				return "", err
			}
			name, key := inv.Args[0], ""
			if len(inv.Args) == 2 {
				key = inv.Args[1]
			} else if ch, err := p.opts.Store.ChannelByName(name); err == nil {
				key = ch.Keyword
			} else if !errors.Is(err, store.ErrNotFound) {
				return "", err
			}
			if err := j.Join(ctx, name, key); err != nil {
				return "", err
			}
			p.log.Info().Str("channel", name).Str("by", inv.Account).Msg("joined channel")
			return "Joined " + name + ".", nil
		},
	}
}

func (p *Pipeline) partCommand() *Command {
	return &Command{
		Name:      "part",
		Args:      "<#channel>",
		Summary:   "leave a channel",
		Op:        "part",
		MinArgs:   1,
		MaxArgs:   1,
		UserLevel: models.LevelAdmin,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			j, err := p.joiner()
			if err != nil {
				return "", err
			}
			if err := j.Part(ctx, inv.Args[0]); err != nil {
				return "", err
			}
			p.log.Info().Str("channel", inv.Args[0]).Str("by", inv.Account).Msg("left channel")
			return "Left " + inv.Args[0] + ".", nil
		},
	}
}

func (p *Pipeline) sayCommand() *Command {
	return &Command{
		Name:      "say",
		Args:      "<#channel> <text...>",
		Summary:   "post a message as the bot",
		Op:        "send the message",
		MinArgs:   2,
		MaxArgs:   Unlimited,
		UserLevel: models.LevelAdmin,
		Run: func(ctx context.Context, inv *Invocation) (string, error) {
			if p.opts.Sender == nil {
				return "", errors.New("no chat connection")
			}
			text := strings.Join(inv.Args[1:], " ")
			if err := p.opts.Sender.Send(ctx, chat.OutboundMessage{ChannelID: inv.Args[0], Text: text}); err != nil {
				return "", err
			}
			return "", nil
		},
	}
}
