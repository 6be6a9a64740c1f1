package crawl

import (
	"net/url"
	"regexp"
	"strings"
)

// hrefRe pulls anchor targets out of fetched HTML.
var hrefRe = regexp.MustCompile(`href=["']([^"'#]+)["']`)

// assetExtensions are link targets that are never pages worth crawling.
var assetExtensions = map[string]struct{}{
	".css": {}, ".js": {}, ".png": {}, ".jpg": {}, ".jpeg": {}, ".gif": {},
	".svg": {}, ".ico": {}, ".pdf": {}, ".zip": {}, ".gz": {}, ".tar": {},
	".mp4": {}, ".mp3": {}, ".woff": {}, ".woff2": {},
}

// extractLinks pulls up to max candidate links from a page's HTML, resolved
// against the page URL. Asset links and cross-domain links (unless
// includeExternal) are dropped; order of appearance is kept.
func extractLinks(pageURL, html string, max int, includeExternal bool) []string {
	base, err := url.Parse(pageURL)
	if err != nil || base.Host == "" {
		return nil
	}

	seen := make(map[string]struct{})
	var links []string
	for _, match := range hrefRe.FindAllStringSubmatch(html, -1) {
		if len(links) >= max {
			break
		}
		raw := strings.TrimSpace(match[1])
		if raw == "" || strings.HasPrefix(raw, "mailto:") || strings.HasPrefix(raw, "javascript:") {
			continue
		}

		ref, err := url.Parse(raw)
		if err != nil {
			continue
		}
		resolved := base.ResolveReference(ref)
		if resolved.Scheme != "http" && resolved.Scheme != "https" {
			continue
		}
		if isAsset(resolved.Path) {
			continue
		}
		if !includeExternal && !strings.EqualFold(resolved.Host, base.Host) {
			continue
		}

		resolved.Fragment = ""
		link := resolved.String()
		if _, dup := seen[link]; dup {
			continue
		}
		seen[link] = struct{}{}
		links = append(links, link)
	}
	return links
}

func isAsset(path string) bool {
	dot := strings.LastIndex(path, ".")
	if dot < 0 {
		return false
	}
	_, ok := assetExtensions[strings.ToLower(path[dot:])]
	return ok
}
