package domain

// Error codes used across the announcer. Only PROFILE_UNAVAILABLE is fatal;
// everything else is recoverable at the cycle boundary.
const (
	ErrCodeMalformedURI       = "MALFORMED_URI"
	ErrCodeProfileUnavailable = "PROFILE_UNAVAILABLE"
	ErrCodeDeviceUnavailable  = "DEVICE_UNAVAILABLE"
	ErrCodeProfileNotFound    = "PROFILE_NOT_FOUND"
	ErrCodeChannelTimeout     = "CHANNEL_TIMEOUT"
)

type AnnounceError struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

func (e *AnnounceError) Error() string {
	if e == nil {
		return ""
	}
	return e.Code + ": " + e.Message
}

func NewAnnounceError(code, message string) *AnnounceError {
	return &AnnounceError{Code: code, Message: message}
}
