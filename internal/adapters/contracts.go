package adapters

import (
	"context"

	"camcast.app/rtsp-announcer/internal/domain"
)

// Camera enumerates configured stream profiles and resolves each profile
// token to a live stream URI.
type Camera interface {
	Profiles(ctx context.Context) ([]domain.Profile, error)
	StreamURI(ctx context.Context, profileToken string) (string, error)
}

// Channel delivers StreamRequests to the downstream consumer and reports
// acknowledgement. Submit honors the context deadline as a hard limit.
type Channel interface {
	Submit(ctx context.Context, req *domain.StreamRequest) error
	Close() error
}
