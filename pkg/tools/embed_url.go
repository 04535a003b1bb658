package tools

import (
	"net/url"
	"regexp"
	"strings"
)

var vimeoIDPattern = regexp.MustCompile(`^/(\d+)`)

// EmbedURL turns YouTube and Vimeo page links into iframe-embeddable URLs.
// Anything else, including URLs that are already embeddable, is returned as-is.
func EmbedURL(raw string) string {
	if raw == "" {
		return raw
	}
	parsed, err := url.Parse(raw)
	if err != nil {
		return raw
	}

	host := parsed.Host
	switch {
	case strings.Contains(host, "youtube.com") && parsed.Path == "/watch":
		if id := parsed.Query().Get("v"); id != "" {
			return "https://www.youtube.com/embed/" + id
		}
	case strings.Contains(host, "youtu.be"):
		if id := strings.TrimPrefix(parsed.Path, "/"); id != "" {
			return "https://www.youtube.com/embed/" + id
		}
	}

	if strings.Contains(host, "vimeo.com") && !strings.Contains(parsed.Path, "/video/") {
		if m := vimeoIDPattern.FindStringSubmatch(parsed.Path); m != nil {
			return "https://player.vimeo.com/video/" + m[1]
		}
	}
	return raw
}
