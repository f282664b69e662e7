// Package client owns authenticated HTTP access to the game site. A Session
// belongs to one organization account and re-logs in transparently when a
// page comes back anonymous; Client layers typed calls on top of it.
package client

import (
	"context"
	"fmt"
	"net/http"
	"net/http/cookiejar"
	"net/url"
	"strings"
	"sync"
	"sync/atomic"
	"time"

	"github.com/jpillora/backoff"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"golang.org/x/net/publicsuffix"
	"golang.org/x/time/rate"

	"github.com/zulandar/warwatch/internal/page"
)

// AuthState is what the session last learned about its login.
type AuthState int32

const (
	StateUnknown AuthState = iota
	StateAuthenticated
	StateExpired
)

func (s AuthState) String() string {
	switch s {
	case StateAuthenticated:
		return "authenticated"
	case StateExpired:
		return "expired"
	default:
		return "unknown"
	}
}

// SessionOpts configures a Session.
type SessionOpts struct {
	BaseURL  string // e.g. https://alpha.e-sim.org/
	Username string
	Password string
	Cookies  string // blob from a previous login

	UserAgent         string
	Timeout           time.Duration
	RequestsPerSecond float64
	LoginRetries      int
	RetryDelay        time.Duration // first login backoff step, default 1s

	// OnCookies receives the serialized jar after every successful login.
	OnCookies func(blob string) error

	Transport http.RoundTripper
	Logger    *zerolog.Logger
}

// Session is an authenticated HTTP session for one organization.
type Session struct {
	base      *url.URL
	http      *http.Client
	username  string
	password  string
	userAgent string
	retries   int
	delay     time.Duration
	limiter   *rate.Limiter
	onCookies func(string) error
	log       zerolog.Logger

	state atomic.Int32
	// generation counts successful logins. A caller that saw generation g
	// before its fetch only logs in again if nobody else has since.
	generation atomic.Uint64
	loginMu    sync.Mutex
}

// NewSession builds a session and restores any stored cookies.
func NewSession(opts SessionOpts) (*Session, error) {
	base, err := url.Parse(opts.BaseURL)
	if err != nil || base.Scheme == "" || base.Host == "" {
		return nil, fmt.Errorf("client: invalid base url %q", opts.BaseURL)
	}
	if !strings.HasSuffix(base.Path, "/") {
		base.Path += "/"
	}
	jar, err := cookiejar.New(&cookiejar.Options{PublicSuffixList: publicsuffix.List})
	if err != nil {
		return nil, fmt.Errorf("client: cookie jar: %w", err)
	}

	logger := log.Logger
	if opts.Logger != nil {
		logger = *opts.Logger
	}
	logger = logger.With().Str("component", "session").Str("account", opts.Username).Logger()

	if err := decodeCookies(jar, base, opts.Cookies); err != nil {
		logger.Warn().Err(err).Msg("discarding stored cookies")
	}

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = 30 * time.Second
	}
	limit := rate.Inf
	if opts.RequestsPerSecond > 0 {
		limit = rate.Limit(opts.RequestsPerSecond)
	}
	retries := opts.LoginRetries
	if retries <= 0 {
		retries = 3
	}
	delay := opts.RetryDelay
	if delay <= 0 {
		delay = time.Second
	}

	return &Session{
		base:      base,
		http:      &http.Client{Jar: jar, Timeout: timeout, Transport: opts.Transport},
		username:  opts.Username,
		password:  opts.Password,
		userAgent: opts.UserAgent,
		retries:   retries,
		delay:     delay,
		limiter:   rate.NewLimiter(limit, 1),
		onCookies: opts.OnCookies,
		log:       logger,
	}, nil
}

// BaseURL returns the server address the session talks to.
func (s *Session) BaseURL() string {
	return s.base.String()
}

// State returns the last known authentication state.
func (s *Session) State() AuthState {
	return AuthState(s.state.Load())
}

func (s *Session) resolve(path string, params url.Values, method string) (string, error) {
	ref, err := url.Parse(path)
	if err != nil {
		return "", fmt.Errorf("client: bad path %q: %w", path, err)
	}
	u := s.base.ResolveReference(ref)
	if method == http.MethodGet && len(params) > 0 {
		q := u.Query()
		for k, vs := range params {
			for _, v := range vs {
				q.Add(k, v)
			}
		}
		u.RawQuery = q.Encode()
	}
	return u.String(), nil
}

// Request performs one HTTP call through the cookie jar and returns the
// decoded body. GET params go in the query, POST params in the form body.
// Non-200 answers are returned as *HTTPError.
func (s *Session) Request(ctx context.Context, method, path string, params url.Values) (string, error) {
	target, err := s.resolve(path, params, method)
	if err != nil {
		return "", err
	}
	if err := s.limiter.Wait(ctx); err != nil {
		return "", fmt.Errorf("client: %s %s: %w", method, path, err)
	}

	var req *http.Request
	if method == http.MethodPost {
		req, err = http.NewRequestWithContext(ctx, method, target, strings.NewReader(params.Encode()))
		if err == nil {
			req.Header.Set("Content-Type", "application/x-www-form-urlencoded")
		}
	} else {
		req, err = http.NewRequestWithContext(ctx, method, target, nil)
	}
	if err != nil {
		return "", fmt.Errorf("client: build request: %w", err)
	}
	req.Header.Set("Accept-Encoding", "gzip, deflate")
	if s.userAgent != "" {
		req.Header.Set("User-Agent", s.userAgent)
	}

	resp, err := s.http.Do(req)
	if err != nil {
		return "", fmt.Errorf("client: %s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		return "", &HTTPError{Method: method, URL: target, Status: resp.StatusCode}
	}
	return readBody(resp)
}

// Get fetches an HTML page that must carry the logged-in marker.
func (s *Session) Get(ctx context.Context, path string, params url.Values) (string, error) {
	return s.fetch(ctx, http.MethodGet, path, params, page.IsLoggedIn)
}

// Post submits a form on a page that must carry the logged-in marker.
func (s *Session) Post(ctx context.Context, path string, params url.Values) (string, error) {
	return s.fetch(ctx, http.MethodPost, path, params, page.IsLoggedIn)
}

// GetData fetches a JSON endpoint. Only an explicit login page triggers
// re-authentication; any other body is handed to the caller.
func (s *Session) GetData(ctx context.Context, path string, params url.Values) (string, error) {
	return s.fetch(ctx, http.MethodGet, path, params, func(body string) bool {
		return !page.LoginRequired(body)
	})
}

// fetch runs one request, re-logs in if authed rejects the body, and retries
// once. A second rejection is ErrSessionExpired.
func (s *Session) fetch(ctx context.Context, method, path string, params url.Values, authed func(string) bool) (string, error) {
	seen := s.generation.Load()
	body, err := s.Request(ctx, method, path, params)
	if err != nil {
		return "", err
	}
	if authed(body) {
		s.state.Store(int32(StateAuthenticated))
		return body, nil
	}

	s.state.Store(int32(StateExpired))
	s.log.Debug().Str("path", path).Msg("page is anonymous, logging in")
	if err := s.ensureLoggedIn(ctx, seen); err != nil {
		return "", err
	}

	body, err = s.Request(ctx, method, path, params)
	if err != nil {
		return "", err
	}
	if !authed(body) {
		s.state.Store(int32(StateExpired))
		return "", ErrSessionExpired
	}
	return body, nil
}

// ensureLoggedIn logs in unless another caller already did so after seen.
// Only one login runs at a time per session.
func (s *Session) ensureLoggedIn(ctx context.Context, seen uint64) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	if s.generation.Load() != seen {
		return nil
	}
	return s.login(ctx)
}

// Login replays the login form regardless of the current state.
func (s *Session) Login(ctx context.Context) error {
	s.loginMu.Lock()
	defer s.loginMu.Unlock()
	return s.login(ctx)
}

func (s *Session) login(ctx context.Context) error {
	form := url.Values{
		"login":    {s.username},
		"password": {s.password},
		"remember": {"true"},
		"submit":   {"Login"},
	}
	b := &backoff.Backoff{Min: s.delay, Max: 8 * s.delay, Factor: 2, Jitter: true}

	var lastErr error
	for attempt := 1; attempt <= s.retries; attempt++ {
		body, err := s.Request(ctx, http.MethodPost, "login.html", form)
		if err == nil {
			err = page.ParseLogin(body)
		}
		if err == nil {
			s.generation.Add(1)
			s.state.Store(int32(StateAuthenticated))
			s.log.Info().Int("attempt", attempt).Msg("logged in")
			s.persistCookies()
			return nil
		}
		lastErr = err
		s.log.Warn().Err(err).Int("attempt", attempt).Msg("login attempt failed")
		if se, ok := page.IsSiteError(err); ok {
			// A refusal from the site is final.
			s.state.Store(int32(StateExpired))
			return &LoginError{Username: s.username, Message: se.Message, Attempts: attempt, Err: err}
		}

		if attempt == s.retries {
			break
		}
		select {
		case <-ctx.Done():
			return &LoginError{Username: s.username, Attempts: attempt, Err: ctx.Err()}
		case <-time.After(b.Duration()):
		}
	}
	s.state.Store(int32(StateExpired))
	return &LoginError{Username: s.username, Attempts: s.retries, Err: lastErr}
}

func (s *Session) persistCookies() {
	if s.onCookies == nil {
		return
	}
	blob, err := encodeCookies(s.http.Jar, s.base)
	if err != nil {
		s.log.Error().Err(err).Msg("encoding cookies")
		return
	}
	if err := s.onCookies(blob); err != nil {
		s.log.Error().Err(err).Msg("persisting cookies")
	}
}
