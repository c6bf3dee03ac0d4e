// Package streamreq converts raw stream URIs into protocol-neutral
// StreamRequest descriptors for the delivery channel.
package streamreq

import (
	"html"
	"time"

	"camcast.app/rtsp-announcer/internal/domain"
	"camcast.app/rtsp-announcer/internal/streamuri"
)

// entityPathPrefix namespaces announced stream paths for the consumer.
const entityPathPrefix = "/rtsp_request"

var timeNow = time.Now

// Build converts a stream URI plus credentials into a StreamRequest.
// Camera firmware may emit HTML-escaped query separators (&amp;), so the
// URI is unescaped before parsing. Pure apart from the timestamp;
// MALFORMED_URI from the parser propagates unmodified.
func Build(streamURI, username, password string) (*domain.StreamRequest, error) {
	parsed, err := streamuri.Parse(html.UnescapeString(streamURI))
	if err != nil {
		return nil, err
	}

	header := domain.Header{
		Timestamp:  timeNow().UTC(),
		EntityPath: entityPathPrefix + parsed.Path,
	}

	return &domain.StreamRequest{
		Header: header,
		Endpoint: domain.Endpoint{
			Protocol:    parsed.Scheme,
			Host:        parsed.Host,
			Port:        parsed.Port,
			Path:        parsed.Path,
			QueryParams: parsed.Query,
		},
		Method: domain.MethodPlay,
		DigestAuth: domain.DigestAuth{
			Username:  username,
			Password:  password,
			Algorithm: domain.DigestAlgorithmMD5,
		},
	}, nil
}
