package papers

import (
	"errors"
	"strings"
	"testing"
)

const listingHTML = `<!DOCTYPE html>
<html><body>
<div class="infinite-container">
  <div class="row paper-card">
    <h1 class="paper-title"><a href="/paper/first">First  Paper
      Title</a></h1>
    <p class="paper-authors">Alice Able, Bob Baker</p>
    <p class="paper-abstract">
      An abstract with
      odd   spacing.
    </p>
  </div>
  <div class="row paper-card">
    <h1 class="paper-title"><a href="/paper/second">Second Paper</a></h1>
    <p class="paper-abstract">Another abstract.</p>
  </div>
  <div class="row paper-card">
    <h1 class="paper-title">No Link Here</h1>
    <p class="paper-abstract">Skipped: no href.</p>
  </div>
  <div class="row paper-card">
    <h1 class="paper-title"><a href="/paper/fourth">Fourth Paper</a></h1>
    <p class="paper-abstract">Beyond the limit.</p>
  </div>
</div>
</body></html>`

func TestParse(t *testing.T) {
	t.Parallel()

	papers, err := Parse(strings.NewReader(listingHTML), "https://example.org", 3)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(papers) != 2 {
		t.Fatalf("papers = %d, want 2 (card without link skipped)", len(papers))
	}

	first := papers[0]
	if first.Title != "First Paper Title" {
		t.Fatalf("title = %q, whitespace must collapse", first.Title)
	}
	if first.Link != "https://example.org/paper/first" {
		t.Fatalf("link = %q", first.Link)
	}
	if first.Description != "An abstract with odd spacing." {
		t.Fatalf("description = %q", first.Description)
	}
	if len(first.Authors) != 2 || first.Authors[0] != "Alice Able" || first.Authors[1] != "Bob Baker" {
		t.Fatalf("authors = %v", first.Authors)
	}

	second := papers[1]
	if second.Title != "Second Paper" || len(second.Authors) != 0 {
		t.Fatalf("second = %+v", second)
	}
}

func TestParseHonorsMax(t *testing.T) {
	t.Parallel()

	papers, err := Parse(strings.NewReader(listingHTML), "https://example.org", 1)
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if len(papers) != 1 || papers[0].Title != "First Paper Title" {
		t.Fatalf("papers = %+v, want only the first card", papers)
	}
}

func TestParseMissingContainer(t *testing.T) {
	t.Parallel()

	_, err := Parse(strings.NewReader("<html><body><p>maintenance</p></body></html>"), "https://example.org", 3)
	if !errors.Is(err, ErrNoContainer) {
		t.Fatalf("err = %v, want ErrNoContainer", err)
	}
}
