package urlutil

import (
	"fmt"
	"net/url"
	"strings"
)

// BuildAbsolute builds an absolute URL from a base origin and a path.
func BuildAbsolute(base, path string) string {
	base = NormalizeBaseURL(base)
	if path == "" {
		return base
	}
	if strings.HasPrefix(path, "http://") || strings.HasPrefix(path, "https://") {
		return path
	}
	if strings.HasPrefix(path, "/") {
		return base + path
	}
	return base + "/" + path
}

// NormalizeBaseURL trims whitespace and trailing slashes.
func NormalizeBaseURL(base string) string {
	base = strings.TrimSpace(base)
	if base == "" {
		return ""
	}
	return strings.TrimRight(base, "/")
}

// ValidateBaseURL checks that base is an absolute http(s) URL with a host
// and no query or fragment.
func ValidateBaseURL(base string) error {
	base = NormalizeBaseURL(base)
	if base == "" {
		return fmt.Errorf("base URL is empty")
	}
	u, err := url.Parse(base)
	if err != nil {
		return fmt.Errorf("base URL %q: %w", base, err)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return fmt.Errorf("base URL %q must use http or https", base)
	}
	if u.Host == "" {
		return fmt.Errorf("base URL %q has no host", base)
	}
	if u.RawQuery != "" || u.Fragment != "" {
		return fmt.Errorf("base URL %q must not carry a query or fragment", base)
	}
	return nil
}

// PathOf returns the path component of raw, "/" for an empty path,
// or "" if raw does not parse.
func PathOf(raw string) string {
	u, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ""
	}
	if u.Path == "" {
		return "/"
	}
	return u.Path
}
