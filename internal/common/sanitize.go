// Package common holds small helpers shared by services and handlers.
package common

import (
	"net/url"
	"regexp"
	"strings"
	"unicode"
)

var (
	tagPattern     = regexp.MustCompile(`<[^>]*>`)
	spacePattern   = regexp.MustCompile(`[\t\n\r ]+`)
	addressPattern = regexp.MustCompile(`^[A-Za-z0-9:]{20,128}$`)
)

// SanitizeText strips markup and control characters and collapses whitespace.
func SanitizeText(s string) string {
	s = tagPattern.ReplaceAllString(s, "")
	s = strings.Map(func(r rune) rune {
		if unicode.IsControl(r) && r != '\n' && r != '\t' {
			return -1
		}
		return r
	}, s)
	s = spacePattern.ReplaceAllString(s, " ")
	return strings.TrimSpace(s)
}

// SanitizeMultiline is SanitizeText that keeps line breaks.
func SanitizeMultiline(s string) string {
	lines := strings.Split(strings.ReplaceAll(s, "\r\n", "\n"), "\n")
	for i, l := range lines {
		lines[i] = SanitizeText(l)
	}
	return strings.TrimSpace(strings.Join(lines, "\n"))
}

// SanitizeURL returns s if it is an absolute http(s) URL, otherwise "".
func SanitizeURL(s string) string {
	s = strings.TrimSpace(s)
	if s == "" {
		return ""
	}
	u, err := url.Parse(s)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") || u.Host == "" {
		return ""
	}
	return u.String()
}

// SanitizeAddress keeps wallet/contract addresses that look plausible.
func SanitizeAddress(s string) string {
	s = strings.TrimSpace(s)
	if !addressPattern.MatchString(s) {
		return ""
	}
	return s
}

// Truncate cuts s to at most n runes.
func Truncate(s string, n int) string {
	r := []rune(s)
	if len(r) <= n {
		return s
	}
	return string(r[:n])
}
