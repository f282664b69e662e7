package client

import (
	"errors"
	"fmt"
)

// ErrSessionExpired is returned when a page still lacks the logged-in
// marker after one re-login.
var ErrSessionExpired = errors.New("client: session expired")

// HTTPError is a non-200 answer from the site.
type HTTPError struct {
	Method string
	URL    string
	Status int
}

func (e *HTTPError) Error() string {
	return fmt.Sprintf("client: %s %s: status %d", e.Method, e.URL, e.Status)
}

// LoginError means the login form was replayed Attempts times without
// success. Message is the site's banner from the last attempt, if any.
type LoginError struct {
	Username string
	Message  string
	Attempts int
	Err      error
}

func (e *LoginError) Error() string {
	msg := e.Message
	if msg == "" && e.Err != nil {
		msg = e.Err.Error()
	}
	return fmt.Sprintf("login failed for %s after %d attempt(s): %s", e.Username, e.Attempts, msg)
}

func (e *LoginError) Unwrap() error {
	return e.Err
}
