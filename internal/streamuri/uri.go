// Package streamuri decomposes and rewrites stream URIs of the canonical
// scheme://host[:port]/path[?query] form.
package streamuri

import (
	"fmt"
	"net/url"
	"strconv"
	"strings"

	"camcast.app/rtsp-announcer/internal/domain"
)

// ParsedURI holds the components of a stream URI. Port is 0 when the URI
// carries no explicit port. Query collapses repeated keys to the first
// occurrence's value; first-wins is the contract, not an accident.
type ParsedURI struct {
	Scheme string
	Host   string
	Port   int
	Path   string
	Query  map[string]string
}

// Parse decomposes a stream URI. Malformed input, including a missing
// scheme or host, fails with MALFORMED_URI.
func Parse(raw string) (ParsedURI, error) {
	parsed, err := url.Parse(strings.TrimSpace(raw))
	if err != nil {
		return ParsedURI{}, malformedURI(raw, err.Error())
	}
	if parsed.Scheme == "" {
		return ParsedURI{}, malformedURI(raw, "missing scheme")
	}
	if parsed.Hostname() == "" {
		return ParsedURI{}, malformedURI(raw, "missing host")
	}

	port := 0
	if rawPort := parsed.Port(); rawPort != "" {
		port, err = strconv.Atoi(rawPort)
		if err != nil {
			return ParsedURI{}, malformedURI(raw, "invalid port")
		}
	}

	return ParsedURI{
		Scheme: parsed.Scheme,
		Host:   parsed.Hostname(),
		Port:   port,
		Path:   parsed.Path,
		Query:  firstValues(parsed.Query()),
	}, nil
}

// InjectAuth rewrites the network-location component of uri to
// username:password@host[:port], leaving scheme, path, query and fragment
// untouched. Username and password are NOT percent-encoded; callers must
// pre-sanitize values containing reserved characters.
func InjectAuth(uri, username, password string) (string, error) {
	parsed, err := url.Parse(strings.TrimSpace(uri))
	if err != nil {
		return "", malformedURI(uri, err.Error())
	}
	if parsed.Scheme == "" || parsed.Hostname() == "" {
		return "", malformedURI(uri, "missing scheme or host")
	}

	var out strings.Builder
	out.WriteString(parsed.Scheme)
	out.WriteString("://")
	out.WriteString(username)
	out.WriteByte(':')
	out.WriteString(password)
	out.WriteByte('@')
	out.WriteString(parsed.Hostname())
	if port := parsed.Port(); port != "" {
		out.WriteByte(':')
		out.WriteString(port)
	}
	out.WriteString(parsed.EscapedPath())
	if parsed.RawQuery != "" {
		out.WriteByte('?')
		out.WriteString(parsed.RawQuery)
	}
	if parsed.Fragment != "" {
		out.WriteByte('#')
		out.WriteString(parsed.EscapedFragment())
	}
	return out.String(), nil
}

func firstValues(values url.Values) map[string]string {
	out := make(map[string]string, len(values))
	for key, list := range values {
		if len(list) == 0 {
			continue
		}
		out[key] = list[0]
	}
	return out
}

func malformedURI(raw, reason string) *domain.AnnounceError {
	return domain.NewAnnounceError(
		domain.ErrCodeMalformedURI,
		fmt.Sprintf("cannot parse stream URI %q: %s", raw, reason),
	)
}
