package video

import (
	"net/url"
	"regexp"
	"strings"
)

var videoID = regexp.MustCompile(`^[a-zA-Z0-9_-]{11}$`)

var hosts = map[string]bool{
	"youtube.com":              true,
	"www.youtube.com":          true,
	"m.youtube.com":            true,
	"music.youtube.com":        true,
	"gaming.youtube.com":       true,
	"youtube-nocookie.com":     true,
	"www.youtube-nocookie.com": true,
}

// pathPrefixes carry the id as the next path segment.
var pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// ValidateURL checks that raw points at a YouTube video and returns its id.
func ValidateURL(raw string) (string, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return "", ErrInvalidURL
	}
	u, err := url.Parse(raw)
	if err != nil || (u.Scheme != "http" && u.Scheme != "https") {
		return "", ErrInvalidURL
	}
	host := strings.ToLower(u.Hostname())

	var id string
	switch {
	case host == "youtu.be":
		id = firstSegment(u.Path)
	case hosts[host]:
		if u.Path == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, p := range pathPrefixes {
			if strings.HasPrefix(u.Path, p) {
				id = firstSegment(strings.TrimPrefix(u.Path, p[:len(p)-1]))
				break
			}
		}
	default:
		return "", ErrInvalidURL
	}

	if !videoID.MatchString(id) {
		return "", ErrInvalidURL
	}
	return id, nil
}

func firstSegment(path string) string {
	path = strings.TrimPrefix(path, "/")
	if i := strings.IndexByte(path, '/'); i >= 0 {
		path = path[:i]
	}
	return path
}
