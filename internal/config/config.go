// Package config loads the announcer's startup configuration from the
// environment and hands it to main as an explicit struct; no ambient
// global state.
package config

import (
	"fmt"
	"net"
	"net/url"
	"os"
	"strconv"
	"strings"
)

// Environment variables. ONVIF_* describe the camera; ANNOUNCER_* are
// daemon-local.
const (
	EnvDevice         = "ONVIF_DEVICE"
	EnvUsername       = "ONVIF_USERNAME"
	EnvPassword       = "ONVIF_PASSWORD"
	EnvProfileIndices = "PROFILE_INDEX"
	EnvChannelURL     = "ANNOUNCER_CHANNEL_URL"
	EnvLogLevel       = "ANNOUNCER_LOG_LEVEL"
)

type Config struct {
	// DeviceXAddr is the ONVIF service endpoint in host[:port] form,
	// decomposed from ONVIF_DEVICE (which may be a full URL).
	DeviceXAddr string
	Username    string
	Password    string
	// ProfileIndices is the announcement order; duplicates allowed,
	// never deduplicated.
	ProfileIndices []int
	ChannelURL     string
}

func Load() (Config, error) {
	device := strings.TrimSpace(os.Getenv(EnvDevice))
	if device == "" {
		return Config{}, fmt.Errorf("%s is required", EnvDevice)
	}
	xaddr, err := deviceXAddr(device)
	if err != nil {
		return Config{}, err
	}

	channelURL := strings.TrimSpace(os.Getenv(EnvChannelURL))
	if channelURL == "" {
		return Config{}, fmt.Errorf("%s is required", EnvChannelURL)
	}

	indices, err := parseProfileIndices(os.Getenv(EnvProfileIndices))
	if err != nil {
		return Config{}, err
	}

	return Config{
		DeviceXAddr:    xaddr,
		Username:       strings.TrimSpace(os.Getenv(EnvUsername)),
		Password:       os.Getenv(EnvPassword),
		ProfileIndices: indices,
		ChannelURL:     channelURL,
	}, nil
}

// deviceXAddr accepts either a bare host[:port] or a full device URL
// (http://host:port/onvif/device_service) and returns host[:port].
func deviceXAddr(raw string) (string, error) {
	if !strings.Contains(raw, "://") {
		return raw, nil
	}

	parsed, err := url.Parse(raw)
	if err != nil || parsed.Hostname() == "" {
		return "", fmt.Errorf("%s is not a valid device address: %q", EnvDevice, raw)
	}
	if port := parsed.Port(); port != "" {
		return net.JoinHostPort(parsed.Hostname(), port), nil
	}
	return parsed.Hostname(), nil
}

// parseProfileIndices parses the comma-separated PROFILE_INDEX list.
// Whitespace is trimmed, empty entries are dropped, and an empty result
// falls back to [0].
func parseProfileIndices(raw string) ([]int, error) {
	items := strings.Split(raw, ",")
	out := make([]int, 0, len(items))
	for _, item := range items {
		item = strings.TrimSpace(item)
		if item == "" {
			continue
		}
		idx, err := strconv.Atoi(item)
		if err != nil {
			return nil, fmt.Errorf("%s entry %q is not an integer", EnvProfileIndices, item)
		}
		if idx < 0 {
			return nil, fmt.Errorf("%s entry %d is negative", EnvProfileIndices, idx)
		}
		out = append(out, idx)
	}
	if len(out) == 0 {
		out = append(out, 0)
	}
	return out, nil
}
