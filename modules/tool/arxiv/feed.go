package arxiv

import (
	"encoding/xml"
	"fmt"
	"strings"
	"time"
)

// feed is the subset of the export API's Atom document we read.
type feed struct {
	XMLName xml.Name `xml:"http://www.w3.org/2005/Atom feed"`
	Entries []entry  `xml:"entry"`
}

type entry struct {
	ID        string   `xml:"id"`
	Title     string   `xml:"title"`
	Summary   string   `xml:"summary"`
	Published string   `xml:"published"`
	Authors   []author `xml:"author"`
}

type author struct {
	Name string `xml:"name"`
}

// Paper is one arXiv search hit.
type Paper struct {
	ID        string
	Title     string
	Authors   []string
	Summary   string
	Published time.Time
}

func decodeFeed(data []byte) ([]Paper, error) {
	var f feed
	if err := xml.Unmarshal(data, &f); err != nil {
		return nil, fmt.Errorf("decode atom feed: %w", err)
	}

	papers := make([]Paper, 0, len(f.Entries))
	for _, e := range f.Entries {
		// The API reports query errors as a single entry titled "Error".
		if strings.TrimSpace(e.Title) == "Error" {
			return nil, fmt.Errorf("arxiv api error: %s", collapse(e.Summary))
		}
		p := Paper{
			ID:      strings.TrimSpace(e.ID),
			Title:   collapse(e.Title),
			Summary: collapse(e.Summary),
		}
		for _, a := range e.Authors {
			if name := strings.TrimSpace(a.Name); name != "" {
				p.Authors = append(p.Authors, name)
			}
		}
		if ts, err := time.Parse(time.RFC3339, strings.TrimSpace(e.Published)); err == nil {
			p.Published = ts
		}
		papers = append(papers, p)
	}
	return papers, nil
}

// Format renders the paper as the model sees it.
func (p Paper) Format() string {
	var b strings.Builder
	if !p.Published.IsZero() {
		fmt.Fprintf(&b, "Published: %s\n", p.Published.Format(time.DateOnly))
	}
	fmt.Fprintf(&b, "Title: %s\n", p.Title)
	fmt.Fprintf(&b, "Authors: %s\n", strings.Join(p.Authors, ", "))
	fmt.Fprintf(&b, "Summary: %s", p.Summary)
	return b.String()
}

func collapse(s string) string {
	return strings.Join(strings.Fields(s), " ")
}
