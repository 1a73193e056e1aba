package papers

import (
	"errors"
	"io"
	"strings"

	"golang.org/x/net/html"

	"github.com/antoniofrancaib/alan/internal/domain"
)

// ErrNoContainer means the listing page did not contain the papers container,
// usually a site layout change. Surfaced loudly instead of storing nothing.
var ErrNoContainer = errors.New("papers: container not found in page")

// Parse extracts up to max papers from the listing page HTML.
//
// Selectors mirror the upstream page: an ".infinite-container" holding
// ".paper-card" entries, each with ".paper-title", ".paper-abstract",
// ".paper-authors" and a link relative to siteRoot.
func Parse(r io.Reader, siteRoot string, max int) ([]domain.Paper, error) {
	root, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	container := findByClass(root, "infinite-container")
	if container == nil {
		return nil, ErrNoContainer
	}

	cards := collectByClass(container, "paper-card", max)
	papers := make([]domain.Paper, 0, len(cards))
	for _, card := range cards {
		title := textOfClass(card, "paper-title")
		desc := textOfClass(card, "paper-abstract")
		link := firstHref(card)
		if title == "" || link == "" || desc == "" {
			continue
		}
		p := domain.Paper{
			Title:       title,
			Link:        strings.TrimRight(siteRoot, "/") + link,
			Description: desc,
		}
		if authors := textOfClass(card, "paper-authors"); authors != "" {
			for _, a := range strings.Split(authors, ",") {
				if a = strings.TrimSpace(a); a != "" {
					p.Authors = append(p.Authors, a)
				}
			}
		}
		papers = append(papers, p)
	}
	return papers, nil
}

func hasClass(n *html.Node, class string) bool {
	if n.Type != html.ElementNode {
		return false
	}
	for _, a := range n.Attr {
		if a.Key != "class" {
			continue
		}
		for _, c := range strings.Fields(a.Val) {
			if c == class {
				return true
			}
		}
	}
	return false
}

func findByClass(n *html.Node, class string) *html.Node {
	if hasClass(n, class) {
		return n
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if found := findByClass(c, class); found != nil {
			return found
		}
	}
	return nil
}

func collectByClass(n *html.Node, class string, max int) []*html.Node {
	var out []*html.Node
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if max > 0 && len(out) >= max {
			return
		}
		if hasClass(n, class) {
			out = append(out, n)
			return // cards do not nest
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(n)
	return out
}

func textOfClass(n *html.Node, class string) string {
	el := findByClass(n, class)
	if el == nil {
		return ""
	}
	var b strings.Builder
	var walk func(*html.Node)
	walk = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			walk(c)
		}
	}
	walk(el)
	return strings.Join(strings.Fields(b.String()), " ")
}

func firstHref(n *html.Node) string {
	if n.Type == html.ElementNode && n.Data == "a" {
		for _, a := range n.Attr {
			if a.Key == "href" {
				return a.Val
			}
		}
	}
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if href := firstHref(c); href != "" {
			return href
		}
	}
	return ""
}
