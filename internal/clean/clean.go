// Package clean transforms raw crawler markdown into content suitable for
// chunking and embedding. It strips navigation chrome, social-link lines, and
// pure link lines, then reports how much of the page survived.
package clean

import (
	"regexp"
	"strings"
)

// NavKeywords mark text that belongs to page chrome rather than content.
// Matched against lowercased input, both per-line here and per-chunk in the
// chunk filter.
var NavKeywords = []string{
	"navigation", "menu", "sidebar", "breadcrumb", "skip to",
	"table of contents", "on this page", "sign in", "log in",
	"subscribe", "follow us", "share on", "copyright ©",
	"all rights reserved", "privacy policy", "terms of service",
	"back to top",
}

// socialDomains mark lines that only reference social platforms.
var socialDomains = []string{
	"facebook.com", "twitter.com", "x.com", "instagram.com",
	"linkedin.com", "youtube.com", "tiktok.com", "pinterest.com",
	"reddit.com", "t.me", "discord.gg",
}

// linkLineRe matches lines that are nothing but a markdown link, optionally
// prefixed by list bullets: "* [text](url)".
var linkLineRe = regexp.MustCompile(`^[\s*\-]+\[.*?\]\s*\(.*?\)\s*$`)

// multiNewlineRe collapses runs of 3+ newlines down to a paragraph break.
var multiNewlineRe = regexp.MustCompile(`\n{3,}`)

// Stats describes the effect of cleaning one document.
type Stats struct {
	OriginalLines  int     `json:"original_lines"`
	CleanedLines   int     `json:"cleaned_lines"`
	ReductionRatio float64 `json:"reduction_ratio"`
	NavCount       int     `json:"nav_count"`
	// IsClean is false when the page lost most of its lines or was
	// dominated by navigation, signalling low-quality extraction.
	IsClean bool `json:"is_clean"`
}

// Result is the cleaned text plus its statistics.
type Result struct {
	Text  string
	Stats Stats
}

// Markdown cleans raw markdown fetched from sourceURL.
func Markdown(raw, sourceURL string) Result {
	lines := strings.Split(raw, "\n")
	kept := make([]string, 0, len(lines))
	navCount := 0

	for _, line := range lines {
		lower := strings.ToLower(line)

		if containsAny(lower, NavKeywords) {
			navCount++
			continue
		}
		if containsAny(lower, socialDomains) {
			continue
		}
		if linkLineRe.MatchString(line) {
			continue
		}
		kept = append(kept, line)
	}

	cleaned := strings.Join(kept, "\n")
	cleaned = multiNewlineRe.ReplaceAllString(cleaned, "\n\n")
	cleaned = strings.TrimSpace(cleaned)

	original := len(lines)
	remaining := 0
	if cleaned != "" {
		remaining = len(strings.Split(cleaned, "\n"))
	}

	reduction := 0.0
	if original > 0 {
		reduction = 1.0 - float64(remaining)/float64(original)
	}

	return Result{
		Text: cleaned,
		Stats: Stats{
			OriginalLines:  original,
			CleanedLines:   remaining,
			ReductionRatio: reduction,
			NavCount:       navCount,
			IsClean:        reduction <= 0.7 && navCount <= 10,
		},
	}
}

func containsAny(s string, needles []string) bool {
	for _, n := range needles {
		if strings.Contains(s, n) {
			return true
		}
	}
	return false
}
