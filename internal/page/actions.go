package page

import (
	"fmt"

	"github.com/PuerkitoBio/goquery"
)

// CitizenRef is a link to a citizen profile.
type CitizenRef struct {
	ID   int
	Name string
}

const (
	newCitizensSelector   = `#newCitizens a[href*="profile.html?id="]`
	motivateFormSelector  = "form#motivateForm"
	loginFormSelector     = "form#loginForm"
	donateFormSelector    = "form#donateProductForm"
	productOptionSelector = `select[name="product"] option`
)

// ParseNewCitizens lists the citizens on newCitizens.html.
func ParseNewCitizens(body string) ([]CitizenRef, error) {
	doc, err := document(body)
	if err != nil {
		return nil, err
	}
	if doc.Find(loggedInSelector).Length() == 0 {
		return nil, ErrNotLoggedIn
	}
	var refs []CitizenRef
	seen := make(map[int]bool)
	doc.Find(newCitizensSelector).Each(func(_ int, a *goquery.Selection) {
		href, _ := a.Attr("href")
		id := queryID(href)
		if id == 0 || seen[id] {
			return
		}
		seen[id] = true
		refs = append(refs, CitizenRef{ID: id, Name: cleanText(a.Text())})
	})
	return refs, nil
}

// CanMotivate reports whether motivateCitizen.html offers the motivation
// form. When it does not, the site's reason is returned as a SiteError.
func CanMotivate(body string) (bool, error) {
	doc, err := document(body)
	if err != nil {
		return false, err
	}
	if doc.Find(loggedInSelector).Length() == 0 {
		return false, ErrNotLoggedIn
	}
	if doc.Find(motivateFormSelector).Length() > 0 {
		return true, nil
	}
	if msg := bannerText(doc, errorSelector); msg != "" {
		return false, &SiteError{Message: msg}
	}
	return false, nil
}

// ParseActionResult reads the banner a form POST answers with. A success
// banner yields its message; an error banner yields a SiteError.
func ParseActionResult(body string) (string, error) {
	doc, err := document(body)
	if err != nil {
		return "", err
	}
	if doc.Find(loggedInSelector).Length() == 0 {
		return "", ErrNotLoggedIn
	}
	if msg := bannerText(doc, errorSelector); msg != "" {
		return "", &SiteError{Message: msg}
	}
	if msg := bannerText(doc, successSelector); msg != "" {
		return msg, nil
	}
	return "", parseErr("action result", fmt.Errorf("no result banner"))
}

// ParseLogin checks the body returned by the login POST. Failure carries
// the site's message when one is shown.
func ParseLogin(body string) error {
	doc, err := document(body)
	if err != nil {
		return err
	}
	if doc.Find(loggedInSelector).Length() > 0 {
		return nil
	}
	if msg := bannerText(doc, errorSelector); msg != "" {
		return &SiteError{Message: msg}
	}
	return ErrNotLoggedIn
}

// DonateProducts lists the product values offered on donateProducts.html.
func DonateProducts(body string) ([]string, error) {
	doc, err := document(body)
	if err != nil {
		return nil, err
	}
	if doc.Find(loggedInSelector).Length() == 0 {
		return nil, ErrNotLoggedIn
	}
	form := doc.Find(donateFormSelector)
	if form.Length() == 0 {
		if msg := bannerText(doc, errorSelector); msg != "" {
			return nil, &SiteError{Message: msg}
		}
		return nil, parseErr("donate form", fmt.Errorf("form not found"))
	}
	var products []string
	form.Find(productOptionSelector).Each(func(_ int, o *goquery.Selection) {
		if v, ok := o.Attr("value"); ok && v != "" {
			products = append(products, v)
		}
	})
	return products, nil
}
