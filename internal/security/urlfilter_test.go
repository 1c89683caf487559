package security

import (
	"errors"
	"testing"
)

func TestURLFilter_Check(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{
		AllowDomains: []string{"wikipedia.org", " Export.arXiv.org "},
		DenyDomains:  []string{"evil.wikipedia.org"},
	})

	tests := []struct {
		url     string
		allowed bool
	}{
		{"https://en.wikipedia.org/w/api.php", true},
		{"https://wikipedia.org", true},
		{"http://export.arxiv.org/api/query", true},
		{"https://evil.wikipedia.org/x", false},
		{"https://notwikipedia.org", false},
		{"https://duckduckgo.com", false},
		{"file:///etc/passwd", false},
		{"gopher://wikipedia.org", false},
		{"https://", false},
		{"://bad", false},
	}

	for _, tt := range tests {
		t.Run(tt.url, func(t *testing.T) {
			t.Parallel()
			err := f.Check(tt.url)
			if tt.allowed && err != nil {
				t.Errorf("Check(%q) = %v, want allowed", tt.url, err)
			}
			if !tt.allowed && !errors.Is(err, ErrURLBlocked) {
				t.Errorf("Check(%q) = %v, want ErrURLBlocked", tt.url, err)
			}
		})
	}
}

func TestURLFilter_DenyOnly(t *testing.T) {
	t.Parallel()

	f := NewURLFilter(URLFilterConfig{DenyDomains: []string{"example.com"}})
	if err := f.Check("https://duckduckgo.com/html"); err != nil {
		t.Errorf("expected allow without allow list, got %v", err)
	}
	if err := f.Check("https://api.example.com"); !errors.Is(err, ErrURLBlocked) {
		t.Errorf("expected deny, got %v", err)
	}
}

func TestURLFilter_Nil(t *testing.T) {
	t.Parallel()

	var f *URLFilter
	if err := f.Check("https://duckduckgo.com"); err != nil {
		t.Errorf("nil filter should allow, got %v", err)
	}
	if err := f.Check("ftp://duckduckgo.com"); !errors.Is(err, ErrURLBlocked) {
		t.Errorf("nil filter should still reject non-http schemes, got %v", err)
	}
}

func TestMatchDomain(t *testing.T) {
	t.Parallel()

	if !matchDomain("api.example.com", "example.com") {
		t.Error("subdomain should match")
	}
	if matchDomain("notexample.com", "example.com") {
		t.Error("suffix without dot must not match")
	}
}
