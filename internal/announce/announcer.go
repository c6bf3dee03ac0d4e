// Package announce runs the stream discovery-and-announcement loop:
// enumerate camera profiles once, then republish every configured
// profile's stream endpoint to the delivery channel on a fixed cadence.
package announce

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"camcast.app/rtsp-announcer/internal/domain"
	"camcast.app/rtsp-announcer/internal/streamreq"
)

const (
	defaultSubmitTimeout = 10 * time.Second
	defaultCycleDelay    = time.Second
)

// Camera is the device capability client the loop pulls profiles and
// stream URIs from.
type Camera interface {
	Profiles(ctx context.Context) ([]domain.Profile, error)
	StreamURI(ctx context.Context, profileToken string) (string, error)
}

// Channel accepts one announcement and reports acknowledgement within the
// context deadline.
type Channel interface {
	Submit(ctx context.Context, req *domain.StreamRequest) error
}

type Config struct {
	Camera   Camera
	Channel  Channel
	Username string
	Password string
	// ProfileIndices is announced in order; duplicates are announced per
	// occurrence. Empty defaults to [0].
	ProfileIndices []int
	Logger         *slog.Logger
}

type Announcer struct {
	camera         Camera
	channel        Channel
	username       string
	password       string
	profileIndices []int
	logger         *slog.Logger

	submitTimeout time.Duration
	cycleDelay    time.Duration
}

func New(cfg Config) *Announcer {
	indices := cfg.ProfileIndices
	if len(indices) == 0 {
		indices = []int{0}
	}

	return &Announcer{
		camera:         cfg.Camera,
		channel:        cfg.Channel,
		username:       cfg.Username,
		password:       cfg.Password,
		profileIndices: append([]int{}, indices...),
		logger:         cfg.Logger,
		submitTimeout:  defaultSubmitTimeout,
		cycleDelay:     defaultCycleDelay,
	}
}

// Run fetches the profile list once, validates the configured indices
// against it, then announces indefinitely until ctx is cancelled. Only the
// startup validation is fatal; every per-profile failure is logged and the
// cycle moves on.
func (a *Announcer) Run(ctx context.Context) error {
	if a.camera == nil {
		return errors.New("camera client is not configured")
	}
	if a.channel == nil {
		return errors.New("delivery channel is not configured")
	}

	profiles, err := a.camera.Profiles(ctx)
	if err != nil {
		return fmt.Errorf("fetch profiles: %w", err)
	}
	if err := validateIndices(a.profileIndices, len(profiles)); err != nil {
		return err
	}

	a.log(slog.LevelInfo, "announce_loop_start",
		slog.Int("available_profiles", len(profiles)),
		slog.Int("configured_indices", len(a.profileIndices)),
	)

	for {
		a.runCycle(ctx, profiles)
		if err := waitForDelay(ctx, a.cycleDelay); err != nil {
			a.log(slog.LevelInfo, "announce_loop_stop", slog.String("reason", err.Error()))
			return err
		}
	}
}

// runCycle attempts every configured index once. One profile's failure
// must never block or cancel another's attempt within the same cycle.
func (a *Announcer) runCycle(ctx context.Context, profiles []domain.Profile) {
	for _, idx := range a.profileIndices {
		if ctx.Err() != nil {
			return
		}
		a.announceProfile(ctx, profiles[idx])
	}
	a.log(slog.LevelDebug, "announce_cycle_done",
		slog.Int("attempted", len(a.profileIndices)),
		slog.String("next_cycle_in", a.cycleDelay.String()),
	)
}

func (a *Announcer) announceProfile(ctx context.Context, profile domain.Profile) {
	uri, err := a.camera.StreamURI(ctx, profile.Token)
	if err != nil {
		a.log(slog.LevelError, "stream_uri_failed",
			slog.Int("profile_index", profile.Index),
			slog.String("error_code", errorCode(err)),
			slog.String("error", err.Error()),
		)
		return
	}
	a.log(slog.LevelInfo, "stream_uri_resolved",
		slog.Int("profile_index", profile.Index),
		slog.String("uri", uri),
	)

	req, err := streamreq.Build(uri, a.username, a.password)
	if err != nil {
		a.log(slog.LevelError, "stream_request_build_failed",
			slog.Int("profile_index", profile.Index),
			slog.String("error_code", errorCode(err)),
			slog.String("error", err.Error()),
		)
		return
	}

	submitCtx, cancel := context.WithTimeout(ctx, a.submitTimeout)
	defer cancel()
	if err := a.channel.Submit(submitCtx, req); err != nil {
		// Dropped, not retried within the cycle; the next cycle re-announces.
		a.log(slog.LevelError, "stream_submit_timeout",
			slog.Int("profile_index", profile.Index),
			slog.String("entity_path", req.Header.EntityPath),
			slog.String("error_code", errorCode(err)),
			slog.String("error", err.Error()),
		)
		return
	}

	a.log(slog.LevelDebug, "stream_announced",
		slog.Int("profile_index", profile.Index),
		slog.String("entity_path", req.Header.EntityPath),
	)
}

// validateIndices is the startup contract: the largest configured index
// must exist in the device's profile list.
func validateIndices(indices []int, available int) error {
	for _, idx := range indices {
		if idx < 0 {
			return domain.NewAnnounceError(
				domain.ErrCodeProfileUnavailable,
				fmt.Sprintf("profile index %d is negative", idx),
			)
		}
		if idx >= available {
			return domain.NewAnnounceError(
				domain.ErrCodeProfileUnavailable,
				fmt.Sprintf("no profile with index %d available (device has %d)", idx, available),
			)
		}
	}
	return nil
}

func waitForDelay(ctx context.Context, delay time.Duration) error {
	if err := ctx.Err(); err != nil {
		return err
	}
	if delay <= 0 {
		return nil
	}
	timer := time.NewTimer(delay)
	defer timer.Stop()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}

func errorCode(err error) string {
	var aErr *domain.AnnounceError
	if errors.As(err, &aErr) && aErr != nil && aErr.Code != "" {
		return aErr.Code
	}
	return "INTERNAL_ERROR"
}

func (a *Announcer) log(level slog.Level, msg string, attrs ...any) {
	if a == nil || a.logger == nil {
		return
	}
	a.logger.Log(context.Background(), level, msg, attrs...)
}
