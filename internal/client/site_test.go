package client

import (
	"bytes"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"sync"
	"sync/atomic"
	"testing"

	"github.com/klauspost/compress/gzip"
)

func fixture(t *testing.T, name string) string {
	t.Helper()
	data, err := os.ReadFile(filepath.Join("..", "page", "testdata", name))
	if err != nil {
		t.Fatalf("read fixture %s: %v", name, err)
	}
	return string(data)
}

// fakeSite imitates the game site: a login form that sets a session cookie
// and pages that render anonymously without it.
type fakeSite struct {
	t        *testing.T
	password string
	anon     bool // pages never see the session
	gzip     bool

	logins       atomic.Int32
	loginOutages atomic.Int32 // login posts answered with a 503 first
	mu           sync.Mutex
	pages        map[string]string
	forms        map[string]string // POST answers
	posts        []string
	query        map[string]string
}

func newFakeSite(t *testing.T) (*fakeSite, *httptest.Server) {
	t.Helper()
	fs := &fakeSite{t: t, password: "hunter2", pages: make(map[string]string), forms: make(map[string]string), query: make(map[string]string)}
	srv := httptest.NewServer(fs)
	t.Cleanup(srv.Close)
	return fs, srv
}

func (fs *fakeSite) set(path, body string) {
	fs.mu.Lock()
	fs.pages[path] = body
	fs.mu.Unlock()
}

func (fs *fakeSite) setPost(path, body string) {
	fs.mu.Lock()
	fs.forms[path] = body
	fs.mu.Unlock()
}

func (fs *fakeSite) authed(r *http.Request) bool {
	if fs.anon {
		return false
	}
	c, err := r.Cookie("sid")
	return err == nil && c.Value == "valid"
}

func (fs *fakeSite) ServeHTTP(w http.ResponseWriter, r *http.Request) {
	if err := r.ParseForm(); err != nil {
		http.Error(w, err.Error(), http.StatusBadRequest)
		return
	}
	fs.mu.Lock()
	fs.query[r.URL.Path] = r.URL.RawQuery
	if r.Method == http.MethodPost && r.URL.Path != "/login.html" {
		fs.posts = append(fs.posts, r.URL.Path+" "+r.PostForm.Encode())
	}
	body, ok := fs.pages[r.URL.Path]
	if answer, isForm := fs.forms[r.URL.Path]; isForm && r.Method == http.MethodPost {
		body, ok = answer, true
	}
	fs.mu.Unlock()

	switch {
	case r.URL.Path == "/login.html":
		fs.logins.Add(1)
		if fs.loginOutages.Add(-1) >= 0 {
			w.WriteHeader(http.StatusServiceUnavailable)
			return
		}
		if r.PostFormValue("login") != "org" || r.PostFormValue("password") != fs.password {
			fs.write(w, fixture(fs.t, "login_failed.html"))
			return
		}
		http.SetCookie(w, &http.Cookie{Name: "sid", Value: "valid", Path: "/"})
		fs.write(w, fixture(fs.t, "home.html"))
	case r.URL.Path == "/broken.html":
		w.WriteHeader(http.StatusServiceUnavailable)
	case !ok:
		http.NotFound(w, r)
	case !fs.authed(r):
		fs.write(w, fixture(fs.t, "not_logged_in.html"))
	default:
		fs.write(w, body)
	}
}

func (fs *fakeSite) write(w http.ResponseWriter, body string) {
	if !fs.gzip {
		_, _ = w.Write([]byte(body))
		return
	}
	var buf bytes.Buffer
	zw := gzip.NewWriter(&buf)
	_, _ = zw.Write([]byte(body))
	_ = zw.Close()
	w.Header().Set("Content-Encoding", "gzip")
	_, _ = w.Write(buf.Bytes())
}

func (fs *fakeSite) postLog() []string {
	fs.mu.Lock()
	defer fs.mu.Unlock()
	return append([]string(nil), fs.posts...)
}

func newTestSession(t *testing.T, baseURL string, mod func(*SessionOpts)) *Session {
	t.Helper()
	opts := SessionOpts{
		BaseURL:    baseURL,
		Username:   "org",
		Password:   "hunter2",
		RetryDelay: 1,
	}
	if mod != nil {
		mod(&opts)
	}
	s, err := NewSession(opts)
	if err != nil {
		t.Fatalf("NewSession: %v", err)
	}
	return s
}
