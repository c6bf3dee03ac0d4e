package diagnostics

import (
	"net"
	"net/url"
	"strings"
	"time"
)

var dialTimeout = net.DialTimeout

const probeWait = 1 * time.Second

type EndpointStatus struct {
	Address   string `json:"address"`
	Reachable bool   `json:"reachable"`
	Error     string `json:"error,omitempty"`
}

type Report struct {
	Camera       EndpointStatus `json:"camera"`
	Channel      EndpointStatus `json:"channel"`
	AllReachable bool           `json:"all_reachable"`
}

// ProbeEndpoints checks TCP reachability of the camera's ONVIF endpoint
// and the delivery channel endpoint for the -self-test report.
func ProbeEndpoints(cameraXAddr, channelURL string) Report {
	camera := probe(hostPortOrDefault(cameraXAddr, "80"))
	channel := probe(channelHostPort(channelURL))

	return Report{
		Camera:       camera,
		Channel:      channel,
		AllReachable: camera.Reachable && channel.Reachable,
	}
}

func probe(hostPort string) EndpointStatus {
	status := EndpointStatus{Address: hostPort}
	if hostPort == "" {
		status.Error = "no address configured"
		return status
	}

	conn, err := dialTimeout("tcp", hostPort, probeWait)
	if err != nil {
		status.Error = err.Error()
		return status
	}
	_ = conn.Close()
	status.Reachable = true
	return status
}

func hostPortOrDefault(addr, defaultPort string) string {
	addr = strings.TrimSpace(addr)
	if addr == "" {
		return ""
	}
	if _, _, err := net.SplitHostPort(addr); err == nil {
		return addr
	}
	return net.JoinHostPort(addr, defaultPort)
}

func channelHostPort(channelURL string) string {
	parsed, err := url.Parse(strings.TrimSpace(channelURL))
	if err != nil || parsed.Hostname() == "" {
		return ""
	}

	port := parsed.Port()
	if port == "" {
		switch strings.ToLower(parsed.Scheme) {
		case "wss", "https":
			port = "443"
		default:
			port = "80"
		}
	}
	return net.JoinHostPort(parsed.Hostname(), port)
}
