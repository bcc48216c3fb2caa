// Package sourceurl parses user-supplied video references.
package sourceurl

import (
	"fmt"
	"net/url"
	"regexp"
	"strings"

	"github.com/forPelevin/podclips/internal/ports"
)

// Source is a validated YouTube reference.
type Source struct {
	URL     string
	VideoID string
}

var videoIDRE = regexp.MustCompile(`^[A-Za-z0-9_-]{11}$`)

var watchHosts = map[string]struct{}{
	"youtube.com":       {},
	"www.youtube.com":   {},
	"m.youtube.com":     {},
	"music.youtube.com": {},
}

var pathPrefixes = []string{"/shorts/", "/embed/", "/live/", "/v/"}

// Parse accepts watch, short-link, shorts, embed and live URLs. The returned
// URL is the canonical watch URL for the video id.
func Parse(raw string) (Source, error) {
	raw = strings.TrimSpace(raw)
	if raw == "" {
		return Source{}, invalid(raw, "url is empty")
	}
	if !strings.Contains(raw, "://") {
		raw = "https://" + raw
	}
	u, err := url.Parse(raw)
	if err != nil {
		return Source{}, ports.Wrap(ports.ErrInputValidation, "parse source url", fmt.Sprintf("%q", raw), err)
	}
	switch strings.ToLower(u.Scheme) {
	case "http", "https":
	default:
		return Source{}, invalid(raw, "http or https is required")
	}

	host := strings.ToLower(u.Hostname())
	var id string
	switch {
	case host == "youtu.be" || host == "www.youtu.be":
		id = firstSegment(u.Path)
	case isWatchHost(host):
		if strings.TrimRight(u.Path, "/") == "/watch" {
			id = u.Query().Get("v")
			break
		}
		for _, p := range pathPrefixes {
			if strings.HasPrefix(u.Path, p) {
				id = firstSegment(strings.TrimPrefix(u.Path, p))
				break
			}
		}
	default:
		return Source{}, invalid(raw, fmt.Sprintf("host %q is not a YouTube host", host))
	}

	if !videoIDRE.MatchString(id) {
		return Source{}, invalid(raw, "no valid video id")
	}
	return Source{URL: "https://www.youtube.com/watch?v=" + id, VideoID: id}, nil
}

func isWatchHost(host string) bool {
	_, ok := watchHosts[host]
	return ok
}

func firstSegment(p string) string {
	p = strings.TrimPrefix(p, "/")
	if i := strings.IndexByte(p, '/'); i >= 0 {
		p = p[:i]
	}
	return p
}

func invalid(raw, reason string) error {
	return ports.Wrap(ports.ErrInputValidation, "parse source url", fmt.Sprintf("%q: %s", raw, reason), nil)
}
