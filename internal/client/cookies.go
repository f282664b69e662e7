package client

import (
	"encoding/json"
	"fmt"
	"net/http"
	"net/url"
	"strings"
)

type storedCookie struct {
	Name  string `json:"name"`
	Value string `json:"value"`
}

// encodeCookies serializes the jar's cookies for u into the blob stored on
// the organization row.
func encodeCookies(jar http.CookieJar, u *url.URL) (string, error) {
	var out []storedCookie
	for _, c := range jar.Cookies(u) {
		out = append(out, storedCookie{Name: c.Name, Value: c.Value})
	}
	data, err := json.Marshal(out)
	if err != nil {
		return "", fmt.Errorf("client: encode cookies: %w", err)
	}
	return string(data), nil
}

// decodeCookies loads a blob produced by encodeCookies into the jar. An
// empty blob is not an error.
func decodeCookies(jar http.CookieJar, u *url.URL, blob string) error {
	if strings.TrimSpace(blob) == "" {
		return nil
	}
	var in []storedCookie
	if err := json.Unmarshal([]byte(blob), &in); err != nil {
		return fmt.Errorf("client: decode cookies: %w", err)
	}
	cookies := make([]*http.Cookie, 0, len(in))
	for _, c := range in {
		cookies = append(cookies, &http.Cookie{Name: c.Name, Value: c.Value, Path: "/"})
	}
	jar.SetCookies(u, cookies)
	return nil
}
