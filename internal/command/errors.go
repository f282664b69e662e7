package command

import (
	"errors"
	"fmt"

	"github.com/zulandar/warwatch/internal/client"
	"github.com/zulandar/warwatch/internal/page"
	"github.com/zulandar/warwatch/internal/ratelock"
)

// ContextError means the channel, server or country of an invocation could
// not be resolved, or the caller lacks access to it.
type ContextError struct {
	Msg string
}

func (e *ContextError) Error() string { return e.Msg }

// AuthError means the sender is not identified with the chat network or
// has no registered account.
type AuthError struct {
	Msg string
}

func (e *AuthError) Error() string { return e.Msg }

// UsageError is a malformed invocation. Usage is the command's banner.
type UsageError struct {
	Msg   string
	Usage string
}

func (e *UsageError) Error() string {
	if e.Usage == "" {
		return e.Msg
	}
	return e.Msg + ". " + e.Usage
}

func contextErrorf(format string, args ...any) error {
	return &ContextError{Msg: fmt.Sprintf(format, args...)}
}

// Render turns any command error into a single chat line. User-facing
// errors are shown as is; everything else is prefixed with the operation.
func Render(op string, err error) string {
	var (
		ce *ContextError
		ae *AuthError
		ue *UsageError
		le *client.LoginError
		pe *page.ParseError
		de *ratelock.DeniedError
	)
	switch {
	case errors.As(err, &ce), errors.As(err, &ae), errors.As(err, &ue), errors.As(err, &de):
		return err.Error()
	case errors.As(err, &le):
		msg := le.Message
		if msg == "" {
			msg = "the game site refused the login"
		}
		return fmt.Sprintf("Failed to %s: login failed: %s", op, msg)
	case errors.As(err, &pe):
		return fmt.Sprintf("Failed to %s: failed to parse the game page", op)
	}
	if se, ok := page.IsSiteError(err); ok {
		return se.Message
	}
	if errors.Is(err, client.ErrSessionExpired) {
		return fmt.Sprintf("Failed to %s: the game session expired", op)
	}
	var he *client.HTTPError
	if errors.As(err, &he) {
		return fmt.Sprintf("Failed to %s: game site answered %d", op, he.Status)
	}
	return fmt.Sprintf("Failed to %s: %v", op, err)
}
