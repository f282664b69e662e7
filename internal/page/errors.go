package page

import (
	"errors"
	"fmt"
)

// ErrNotLoggedIn means the body was served to an anonymous session.
var ErrNotLoggedIn = errors.New("page: not logged in")

// SiteError carries an error banner the site rendered, e.g. "No citizen
// with this name". The message is safe to show to users verbatim.
type SiteError struct {
	Message string
}

func (e *SiteError) Error() string {
	return e.Message
}

// ParseError means the body did not have the expected structure.
type ParseError struct {
	What string
	Err  error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("page: parse %s: %v", e.What, e.Err)
	}
	return fmt.Sprintf("page: parse %s", e.What)
}

func (e *ParseError) Unwrap() error {
	return e.Err
}

func parseErr(what string, err error) error {
	return &ParseError{What: what, Err: err}
}

// IsSiteError reports whether err carries a site banner and returns it.
func IsSiteError(err error) (*SiteError, bool) {
	var se *SiteError
	if errors.As(err, &se) {
		return se, true
	}
	return nil, false
}
