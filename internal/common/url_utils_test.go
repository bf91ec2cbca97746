package common

import "testing"

// TestNormalizeURL verifies dedup canonicalization
func TestNormalizeURL(t *testing.T) {
	tests := []struct {
		name  string
		input string
		want  string
	}{
		{
			name:  "lowercases scheme and host",
			input: "HTTPS://Forum.Example.COM/thread/42",
			want:  "https://forum.example.com/thread/42",
		},
		{
			name:  "strips fragment",
			input: "https://example.com/page#section-3",
			want:  "https://example.com/page",
		},
		{
			name:  "strips tracking params",
			input: "https://example.com/page?utm_source=search&id=7&fbclid=xyz",
			want:  "https://example.com/page?id=7",
		},
		{
			name:  "trims trailing slash",
			input: "https://example.com/page/",
			want:  "https://example.com/page",
		},
		{
			name:  "root slash preserved",
			input: "https://example.com/",
			want:  "https://example.com/",
		},
		{
			name:  "relative url passed through",
			input: "/just/a/path",
			want:  "/just/a/path",
		},
		{
			name:  "whitespace trimmed",
			input: "  https://example.com/page  ",
			want:  "https://example.com/page",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := NormalizeURL(tt.input); got != tt.want {
				t.Errorf("NormalizeURL(%q) = %q, want %q", tt.input, got, tt.want)
			}
		})
	}
}

// TestURLDomain verifies host extraction
func TestURLDomain(t *testing.T) {
	tests := []struct {
		input string
		want  string
	}{
		{input: "https://Forum.Example.com:8080/thread", want: "forum.example.com"},
		{input: "https://reddit.com/r/parenting", want: "reddit.com"},
		{input: "not a url at all ://", want: ""},
	}

	for _, tt := range tests {
		if got := URLDomain(tt.input); got != tt.want {
			t.Errorf("URLDomain(%q) = %q, want %q", tt.input, got, tt.want)
		}
	}
}
