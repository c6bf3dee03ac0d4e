package domain

import "time"

// Method is the streaming operation requested from the downstream consumer.
type Method string

const (
	// MethodPlay asks the consumer to start pulling the stream.
	MethodPlay Method = "PLAY"
)

// DigestAlgorithm tags the hash scheme carried with digest credentials.
type DigestAlgorithm string

const (
	DigestAlgorithmMD5 DigestAlgorithm = "MD5"
)

// Header carries the request timestamp and its entity path.
type Header struct {
	Timestamp  time.Time `json:"timestamp"`
	EntityPath string    `json:"entity_path"`
}

// Endpoint describes where a live stream can be pulled from. Port 0 means
// the URI carried no explicit port and the scheme default applies.
type Endpoint struct {
	Protocol    string            `json:"protocol"`
	Host        string            `json:"host"`
	Port        int               `json:"port,omitempty"`
	Path        string            `json:"path"`
	QueryParams map[string]string `json:"query_params,omitempty"`
}

// DigestAuth carries the credential metadata for a digest exchange. Only
// username/password/algorithm travel here; the challenge/response itself is
// the consumer's business. Must never be logged.
type DigestAuth struct {
	Username  string          `json:"username"`
	Password  string          `json:"password"`
	Algorithm DigestAlgorithm `json:"algorithm"`
}

// StreamRequest is the boundary artifact handed to the delivery channel.
// Immutable once built; one instance per (profile, cycle).
type StreamRequest struct {
	Header     Header     `json:"header"`
	Endpoint   Endpoint   `json:"endpoint"`
	Method     Method     `json:"method"`
	DigestAuth DigestAuth `json:"digest_auth"`
}
