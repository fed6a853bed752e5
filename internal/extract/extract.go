package extract

import (
	"errors"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

// PageMeta summarizes the on-page content of a fetched website.
type PageMeta struct {
	Title       string   `json:"title"`
	Description string   `json:"description"`
	H1          []string `json:"h1,omitempty"`
	WordCount   int      `json:"wordCount"`
}

// ErrEmptyHTML indicates there was no page content to parse.
var ErrEmptyHTML = errors.New("empty html")

// Page parses raw HTML into a PageMeta summary.
func Page(html string) (PageMeta, error) {
	if strings.TrimSpace(html) == "" {
		return PageMeta{}, ErrEmptyHTML
	}

	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return PageMeta{}, err
	}

	meta := PageMeta{
		Title: strings.TrimSpace(doc.Find("title").First().Text()),
	}
	if desc, ok := doc.Find(`meta[name="description"]`).First().Attr("content"); ok {
		meta.Description = strings.TrimSpace(desc)
	}
	doc.Find("h1").Each(func(_ int, sel *goquery.Selection) {
		if text := strings.TrimSpace(sel.Text()); text != "" {
			meta.H1 = append(meta.H1, text)
		}
	})

	doc.Find("script, style, noscript").Remove()
	meta.WordCount = len(strings.Fields(doc.Find("body").Text()))

	return meta, nil
}
