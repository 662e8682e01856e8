// Package scrape harvests the USITC commission publications library into
// Publication records.
package scrape

import (
	"fmt"
	"net/url"
	"regexp"
	"strconv"
	"strings"

	"golang.org/x/net/html"
	"golang.org/x/net/html/atom"
)

// Publication is one row of the publications listing.
type Publication struct {
	PubNumber   string `json:"pub_number"`
	Title       string `json:"title"`
	Date        string `json:"date"`
	Subject     string `json:"subject"`
	Type        string `json:"type"`
	Link        string `json:"link"`
	PubFileLink string `json:"pub_file_link"`
}

const notUsed = "Number Not Used"

var displaying = regexp.MustCompile(`Displaying\s+\d+\s*-\s*(\d+)\s+of\s+(\d+)`)

// ParseTotalPages returns the zero-based index of the last listing page.
// It reads the "Displaying X - Y of N" banner and falls back to the
// largest pager number. Zero means a single page or nothing found.
func ParseTotalPages(page string) (int, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return 0, fmt.Errorf("parse listing: %w", err)
	}

	if m := displaying.FindStringSubmatch(textOf(doc, " ")); m != nil {
		perPage, _ := strconv.Atoi(m[1])
		total, _ := strconv.Atoi(m[2])
		if perPage > 0 {
			pages := (total + perPage - 1) / perPage
			return max(pages-1, 0), nil
		}
	}

	maxPage := 0
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || !hasClass(n, "usa-pagination__item") || !hasClass(n, "usa-pagination__page-no") {
			return
		}
		if num, err := strconv.Atoi(textOf(n, "")); err == nil && num > maxPage {
			maxPage = num
		}
	})
	if maxPage > 0 {
		return maxPage - 1, nil
	}
	return 0, nil
}

// ParsePublications extracts the publications table. Rows with fewer than
// five cells and "Number Not Used" placeholders are skipped. Title links
// are resolved against base.
func ParsePublications(page string, base *url.URL) ([]Publication, error) {
	doc, err := html.Parse(strings.NewReader(page))
	if err != nil {
		return nil, fmt.Errorf("parse listing: %w", err)
	}

	var pubs []Publication
	walk(doc, func(n *html.Node) {
		if n.Type != html.ElementNode || n.DataAtom != atom.Tr || !inTableBody(n) {
			return
		}
		cells := children(n, atom.Td)
		if len(cells) < 5 {
			return
		}
		title := textOf(cells[1], " ")
		if title == "" || strings.Contains(title, notUsed) {
			return
		}
		pub := Publication{
			PubNumber: textOf(cells[0], ""),
			Title:     title,
			Date:      textOf(cells[2], ""),
			Subject:   textOf(cells[3], ""),
			Type:      textOf(cells[4], ""),
		}
		if a := first(cells[0], atom.A); a != nil {
			pub.PubFileLink = attr(a, "href")
		}
		if a := first(cells[1], atom.A); a != nil {
			pub.Link = resolve(base, attr(a, "href"))
		}
		pubs = append(pubs, pub)
	})
	return pubs, nil
}

func walk(n *html.Node, fn func(*html.Node)) {
	fn(n)
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		walk(c, fn)
	}
}

// textOf joins the trimmed text nodes under n with sep.
func textOf(n *html.Node, sep string) string {
	var parts []string
	walk(n, func(c *html.Node) {
		if c.Type != html.TextNode {
			return
		}
		if t := strings.TrimSpace(c.Data); t != "" {
			parts = append(parts, t)
		}
	})
	return strings.Join(parts, sep)
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return a.Val
		}
	}
	return ""
}

func children(n *html.Node, a atom.Atom) []*html.Node {
	var out []*html.Node
	for c := n.FirstChild; c != nil; c = c.NextSibling {
		if c.Type == html.ElementNode && c.DataAtom == a {
			out = append(out, c)
		}
	}
	return out
}

func first(n *html.Node, a atom.Atom) *html.Node {
	var found *html.Node
	walk(n, func(c *html.Node) {
		if found == nil && c.Type == html.ElementNode && c.DataAtom == a {
			found = c
		}
	})
	return found
}

func inTableBody(n *html.Node) bool {
	p := n.Parent
	if p == nil || p.DataAtom != atom.Tbody {
		return false
	}
	for a := p.Parent; a != nil; a = a.Parent {
		if a.DataAtom == atom.Table {
			return true
		}
	}
	return false
}

func resolve(base *url.URL, href string) string {
	if href == "" {
		return ""
	}
	ref, err := url.Parse(href)
	if err != nil {
		return href
	}
	if base == nil {
		return ref.String()
	}
	return base.ResolveReference(ref).String()
}
