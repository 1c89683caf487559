package duckduckgo

import (
	"io"
	"strings"

	"golang.org/x/net/html"
)

// Result is one organic hit from the lite results page.
type Result struct {
	Title   string
	URL     string
	Snippet string
}

// parseResults walks the lite page and pairs each result-link anchor with
// the result-snippet cell that follows it. Sponsored rows carry no
// result-link and are skipped.
func parseResults(r io.Reader, limit int) ([]Result, error) {
	doc, err := html.Parse(r)
	if err != nil {
		return nil, err
	}

	var out []Result
	var walk func(n *html.Node) bool
	walk = func(n *html.Node) bool {
		if n.Type == html.ElementNode {
			switch {
			case n.Data == "a" && hasClass(n, "result-link"):
				res := Result{Title: textOf(n), URL: attr(n, "href")}
				if res.URL != "" && res.Title != "" {
					out = append(out, res)
				}
			case n.Data == "td" && hasClass(n, "result-snippet"):
				if len(out) > 0 && out[len(out)-1].Snippet == "" {
					out[len(out)-1].Snippet = textOf(n)
				}
			}
		}
		// Stop once the limit is reached and the last hit has its snippet.
		if limit > 0 && len(out) > limit {
			out = out[:limit]
			return false
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			if !walk(c) {
				return false
			}
		}
		return true
	}
	walk(doc)

	if limit > 0 && len(out) > limit {
		out = out[:limit]
	}
	return out, nil
}

func attr(n *html.Node, key string) string {
	for _, a := range n.Attr {
		if a.Key == key {
			return strings.TrimSpace(a.Val)
		}
	}
	return ""
}

func hasClass(n *html.Node, class string) bool {
	for _, c := range strings.Fields(attr(n, "class")) {
		if c == class {
			return true
		}
	}
	return false
}

func textOf(n *html.Node) string {
	var b strings.Builder
	var collect func(*html.Node)
	collect = func(n *html.Node) {
		if n.Type == html.TextNode {
			b.WriteString(n.Data)
		}
		for c := n.FirstChild; c != nil; c = c.NextSibling {
			collect(c)
		}
	}
	collect(n)
	return strings.Join(strings.Fields(b.String()), " ")
}
