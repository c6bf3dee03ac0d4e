package wschannel

import (
	"time"

	"camcast.app/rtsp-announcer/internal/domain"
)

// announceEnvelope is the wire form of one announcement. The ID correlates
// the acknowledgement with its request.
type announceEnvelope struct {
	ID          string                `json:"id"`
	SubmittedAt time.Time             `json:"submitted_at"`
	Request     *domain.StreamRequest `json:"request"`
}

// ackEnvelope is the consumer's reply. OK false means the consumer saw the
// announcement but refused it; the announcer treats both outcomes alike
// and relies on the next cycle.
type ackEnvelope struct {
	ID      string `json:"id"`
	OK      bool   `json:"ok"`
	Message string `json:"message,omitempty"`
}
