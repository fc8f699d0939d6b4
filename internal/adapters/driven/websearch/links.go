package websearch

import (
	"net/url"
	"strings"
)

// UnwrapRedirect returns the target of a search-engine redirect link
// carrying a uddg parameter, or href unchanged.
func UnwrapRedirect(href string) string {
	if !strings.Contains(href, "uddg=") {
		return href
	}
	u, err := url.Parse(href)
	if err != nil {
		return href
	}
	if target := u.Query().Get("uddg"); target != "" {
		return target
	}
	return href
}

// CleanLink normalises a result link. It returns "" for links that cannot
// point at a web page.
func CleanLink(link string) string {
	link = strings.TrimSpace(link)
	if link == "" {
		return ""
	}
	lower := strings.ToLower(link)
	for _, prefix := range []string{"javascript:", "mailto:", "tel:", "data:"} {
		if strings.HasPrefix(lower, prefix) {
			return ""
		}
	}
	if strings.HasPrefix(link, "//") {
		link = "https:" + link
	}

	u, err := url.Parse(link)
	if err != nil {
		return ""
	}
	if u.Scheme == "" {
		u, err = url.Parse("http://" + link)
		if err != nil {
			return ""
		}
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return ""
	}
	if u.Host == "" {
		return ""
	}
	u.Fragment = ""
	return u.String()
}

// Dedup is a first-seen URL filter.
type Dedup map[string]struct{}

// Add reports whether link is new.
func (d Dedup) Add(link string) bool {
	if _, ok := d[link]; ok {
		return false
	}
	d[link] = struct{}{}
	return true
}
