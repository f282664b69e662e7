// Package page turns raw game-site bodies into typed snapshots. Every
// assumption about the site's HTML and JSON shapes lives in this package.
package page

import (
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// Selectors for the markers the site renders on every page.
const (
	loggedInSelector = "a#userName"
	errorSelector    = ".testDivred, .errorMessage"
	successSelector  = ".testDivgreen, .successMessage"
)

func document(body string) (*goquery.Document, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(body))
	if err != nil {
		return nil, parseErr("html", err)
	}
	return doc, nil
}

// IsLoggedIn reports whether the page carries the profile link that the
// site only renders for authenticated sessions.
func IsLoggedIn(body string) bool {
	doc, err := document(body)
	if err != nil {
		return false
	}
	return doc.Find(loggedInSelector).Length() > 0
}

// ErrorBanner returns the text of the site's error banner, or "".
func ErrorBanner(body string) string {
	doc, err := document(body)
	if err != nil {
		return ""
	}
	return bannerText(doc, errorSelector)
}

func bannerText(doc *goquery.Document, sel string) string {
	return cleanText(doc.Find(sel).First().Text())
}

// cleanText collapses whitespace runs into single spaces.
func cleanText(s string) string {
	return strings.Join(strings.Fields(s), " ")
}

// LoginRequired reports whether the body is the anonymous login page. JSON
// endpoints never carry the profile link, so they are checked this way.
func LoginRequired(body string) bool {
	doc, err := document(body)
	if err != nil {
		return false
	}
	return doc.Find(loggedInSelector).Length() == 0 && doc.Find(loginFormSelector).Length() > 0
}
