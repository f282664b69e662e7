// Package command turns chat command lines into validated, authorized
// invocations. Every command is a declarative Command entry; the Pipeline
// does tokenizing, identity, flag parsing, access checks and context
// resolution before the handler runs.
package command

import (
	"context"
	"fmt"
	"strings"

	"github.com/spf13/pflag"

	"github.com/zulandar/warwatch/internal/chat"
	"github.com/zulandar/warwatch/internal/models"
)

// Unlimited as MaxArgs accepts any number of trailing arguments.
const Unlimited = -1

// Handler runs a resolved invocation and returns the reply text.
type Handler func(ctx context.Context, inv *Invocation) (string, error)

// Command declares one chat command.
type Command struct {
	Name    string
	Args    string // positional synopsis, e.g. "<id>"
	Summary string
	// Op names the action in failure replies: "Failed to <Op>: ...".
	Op string

	MinArgs int
	MaxArgs int

	// Anonymous commands skip the chat identity check.
	Anonymous bool
	// UserLevel > 0 requires a registered account of at least that level.
	UserLevel int
	// CountryLevel > 0 requires exactly one country on the channel the
	// caller holds that access level on.
	CountryLevel int
	// ChannelType restricts the command to channels granting that type.
	ChannelType string
	// Server, when set, registers one --<servername> flag per server.
	Server bool

	Flags func(fs *pflag.FlagSet)
	Run   Handler
}

// Invocation is the resolved context of one command call.
type Invocation struct {
	Request chat.Request
	Command *Command
	Flags   *pflag.FlagSet
	Args    []string

	// Account is the sender's verified chat identity; empty for anonymous
	// commands.
	Account string
	User    *models.User
	Channel *models.Channel
	Server  *models.Server
	Country *models.Country
}

// Bool returns a boolean flag value, false when undefined.
func (inv *Invocation) Bool(name string) bool {
	v, err := inv.Flags.GetBool(name)
	return err == nil && v
}

// Reply sends an intermediate answer while the command keeps working.
func (inv *Invocation) Reply(ctx context.Context, text string) {
	if inv.Request.Reply != nil {
		inv.Request.Reply(ctx, text)
	}
}

// Nick is the sender's display name.
func (inv *Invocation) Nick() string {
	return inv.Request.Message.UserName
}

// usage renders the banner of a command.
func (c *Command) usage(prefix string, fs *pflag.FlagSet) string {
	var b strings.Builder
	fmt.Fprintf(&b, "Usage: %s%s", prefix, c.Name)
	if c.Args != "" {
		b.WriteString(" " + c.Args)
	}
	var flags []string
	fs.VisitAll(func(f *pflag.Flag) {
		if f.Shorthand != "" {
			flags = append(flags, fmt.Sprintf("-%s|--%s", f.Shorthand, f.Name))
		} else {
			flags = append(flags, "--"+f.Name)
		}
	})
	if len(flags) > 0 {
		b.WriteString(" [" + strings.Join(flags, "] [") + "]")
	}
	if c.Summary != "" {
		b.WriteString(" - " + c.Summary)
	}
	return b.String()
}
