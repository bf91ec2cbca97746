package common

import (
	"net/url"
	"strings"
)

// trackingParams are query parameters stripped during normalization.
// Search providers frequently decorate result URLs with these, which
// would defeat per-job URL deduplication.
var trackingParams = map[string]bool{
	"utm_source":   true,
	"utm_medium":   true,
	"utm_campaign": true,
	"utm_term":     true,
	"utm_content":  true,
	"gclid":        true,
	"fbclid":       true,
	"ref":          true,
}

// NormalizeURL canonicalizes a URL for deduplication: lowercases the
// scheme and host, drops fragments and tracking parameters, and trims a
// trailing slash from the path. Returns the input unchanged when it does
// not parse as an absolute URL.
func NormalizeURL(raw string) string {
	raw = strings.TrimSpace(raw)
	parsed, err := url.Parse(raw)
	if err != nil || !parsed.IsAbs() || parsed.Host == "" {
		return raw
	}

	parsed.Scheme = strings.ToLower(parsed.Scheme)
	parsed.Host = strings.ToLower(parsed.Host)
	parsed.Fragment = ""

	if parsed.RawQuery != "" {
		query := parsed.Query()
		for param := range query {
			if trackingParams[strings.ToLower(param)] {
				query.Del(param)
			}
		}
		parsed.RawQuery = query.Encode()
	}

	if len(parsed.Path) > 1 {
		parsed.Path = strings.TrimSuffix(parsed.Path, "/")
	}

	return parsed.String()
}

// URLDomain extracts the lowercased host from a URL, without port.
// Returns empty string for unparseable input.
func URLDomain(raw string) string {
	parsed, err := url.Parse(raw)
	if err != nil {
		return ""
	}
	return strings.ToLower(parsed.Hostname())
}
