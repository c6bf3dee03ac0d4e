package domain

// Profile is a camera-side stream configuration addressable by token.
// Index is the position in the device's ordered profile list.
type Profile struct {
	Token string `json:"token"`
	Name  string `json:"name,omitempty"`
	Index int    `json:"index"`
}
