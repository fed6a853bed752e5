package extract

import (
	"errors"
	"testing"
)

func TestPageParsesTitleDescriptionAndHeadings(t *testing.T) {
	html := `<html><head>
		<title> Chaussures de course </title>
		<meta name="description" content="Les meilleures chaussures.">
	</head><body>
		<h1>Courir mieux</h1>
		<script>var ignored = true;</script>
		<p>un deux trois quatre</p>
	</body></html>`

	meta, err := Page(html)
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if meta.Title != "Chaussures de course" {
		t.Fatalf("unexpected title %q", meta.Title)
	}
	if meta.Description != "Les meilleures chaussures." {
		t.Fatalf("unexpected description %q", meta.Description)
	}
	if len(meta.H1) != 1 || meta.H1[0] != "Courir mieux" {
		t.Fatalf("unexpected h1 %v", meta.H1)
	}
	// "Courir mieux" + "un deux trois quatre"
	if meta.WordCount != 6 {
		t.Fatalf("unexpected word count %d", meta.WordCount)
	}
}

func TestPageEmptyHTML(t *testing.T) {
	if _, err := Page("  "); !errors.Is(err, ErrEmptyHTML) {
		t.Fatalf("expected ErrEmptyHTML, got %v", err)
	}
}

func TestPageMissingMeta(t *testing.T) {
	meta, err := Page("<html><body><p>hello world</p></body></html>")
	if err != nil {
		t.Fatalf("Page: %v", err)
	}
	if meta.Title != "" || meta.Description != "" || len(meta.H1) != 0 {
		t.Fatalf("expected empty meta fields, got %+v", meta)
	}
	if meta.WordCount != 2 {
		t.Fatalf("unexpected word count %d", meta.WordCount)
	}
}
