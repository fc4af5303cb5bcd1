package crawler

import (
	"fmt"
	"net/url"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/ulritter/freelance-crawler/internal/config"
	"github.com/ulritter/freelance-crawler/internal/store"
)

// listingFromSelection extracts one listing from a result card.
func listingFromSelection(s *goquery.Selection, site config.SiteConfig, query string) store.Listing {
	sel := site.Selectors
	l := store.Listing{
		Site:  site.Name,
		Query: query,
		Title: text(s, sel.Title),
	}
	if sel.Link != "" {
		href, _ := s.Find(sel.Link).First().Attr("href")
		l.Link = resolveURL(site.BaseURL, href)
	}
	l.Company = text(s, sel.Company)
	l.Location = text(s, sel.Location)
	l.Posted = text(s, sel.Posted)
	return l
}

// parseDocument extracts all listings from a rendered HTML document.
func parseDocument(html string, site config.SiteConfig, query string) ([]store.Listing, error) {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil, fmt.Errorf("parse document: %w", err)
	}
	var out []store.Listing
	doc.Find(site.Selectors.Item).Each(func(_ int, s *goquery.Selection) {
		out = append(out, listingFromSelection(s, site, query))
	})
	return out, nil
}

func text(s *goquery.Selection, selector string) string {
	if selector == "" {
		return ""
	}
	return strings.TrimSpace(s.Find(selector).First().Text())
}

// resolveURL makes href absolute against the site base URL.
func resolveURL(base, href string) string {
	if href == "" {
		return ""
	}
	baseURL, err := url.Parse(base)
	if err != nil {
		return href
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	return baseURL.ResolveReference(ref).String()
}

// matchesKeywords reports whether the listing text contains any keyword.
// An empty keyword list accepts everything.
func matchesKeywords(l store.Listing, keywords []string) bool {
	if len(keywords) == 0 {
		return true
	}
	haystack := strings.ToLower(l.Title + " " + l.Company + " " + l.Location)
	for _, kw := range keywords {
		if kw == "" {
			continue
		}
		if strings.Contains(haystack, strings.ToLower(kw)) {
			return true
		}
	}
	return false
}
