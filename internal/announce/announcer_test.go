package announce

import (
	"context"
	"errors"
	"sync"
	"testing"
	"time"

	"camcast.app/rtsp-announcer/internal/domain"
)

type fakeCamera struct {
	profiles    []domain.Profile
	profilesErr error
	uriByToken  map[string]string
	uriErrs     map[string]error

	mu       sync.Mutex
	uriCalls []string
}

func (f *fakeCamera) Profiles(ctx context.Context) ([]domain.Profile, error) {
	if f.profilesErr != nil {
		return nil, f.profilesErr
	}
	return append([]domain.Profile{}, f.profiles...), nil
}

func (f *fakeCamera) StreamURI(ctx context.Context, token string) (string, error) {
	f.mu.Lock()
	f.uriCalls = append(f.uriCalls, token)
	f.mu.Unlock()

	if err, ok := f.uriErrs[token]; ok && err != nil {
		return "", err
	}
	uri, ok := f.uriByToken[token]
	if !ok {
		return "", domain.NewAnnounceError(domain.ErrCodeProfileNotFound, "unknown token "+token)
	}
	return uri, nil
}

type fakeChannel struct {
	mu       sync.Mutex
	requests []*domain.StreamRequest
	errFor   map[string]error // keyed by entity path
	notify   chan struct{}
}

func (f *fakeChannel) Submit(ctx context.Context, req *domain.StreamRequest) error {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	err := f.errFor[req.Header.EntityPath]
	f.mu.Unlock()

	if f.notify != nil {
		select {
		case f.notify <- struct{}{}:
		default:
		}
	}
	return err
}

func (f *fakeChannel) submitted() []*domain.StreamRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]*domain.StreamRequest{}, f.requests...)
}

func twoProfileCamera() *fakeCamera {
	return &fakeCamera{
		profiles: []domain.Profile{
			{Token: "t0", Name: "MainStream", Index: 0},
			{Token: "t1", Name: "SubStream", Index: 1},
		},
		uriByToken: map[string]string{
			"t0": "rtsp://cam/track1",
			"t1": "rtsp://cam/track2",
		},
	}
}

func runAnnouncer(t *testing.T, a *Announcer, stopAfter func() bool) error {
	t.Helper()
	a.cycleDelay = time.Millisecond
	a.submitTimeout = 100 * time.Millisecond

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	errCh := make(chan error, 1)
	go func() {
		errCh <- a.Run(ctx)
	}()

	deadline := time.After(5 * time.Second)
	for {
		select {
		case err := <-errCh:
			return err
		case <-deadline:
			t.Fatal("announcer did not settle in time")
		case <-time.After(time.Millisecond):
			if stopAfter() {
				cancel()
				err := <-errCh
				return err
			}
		}
	}
}

func TestRunAnnouncesAllConfiguredProfiles(t *testing.T) {
	camera := twoProfileCamera()
	channel := &fakeChannel{}
	a := New(Config{
		Camera:         camera,
		Channel:        channel,
		Username:       "admin",
		Password:       "pw",
		ProfileIndices: []int{0, 1},
	})

	err := runAnnouncer(t, a, func() bool {
		return len(channel.submitted()) >= 2
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	requests := channel.submitted()
	if len(requests) < 2 {
		t.Fatalf("expected at least 2 submissions, got %d", len(requests))
	}
	if requests[0].Header.EntityPath != "/rtsp_request/track1" {
		t.Fatalf("first entity path = %q", requests[0].Header.EntityPath)
	}
	if requests[1].Header.EntityPath != "/rtsp_request/track2" {
		t.Fatalf("second entity path = %q", requests[1].Header.EntityPath)
	}
	for _, req := range requests[:2] {
		if req.Method != domain.MethodPlay {
			t.Fatalf("method = %q, want PLAY", req.Method)
		}
		if req.DigestAuth.Username != "admin" || req.DigestAuth.Algorithm != domain.DigestAlgorithmMD5 {
			t.Fatalf("unexpected digest auth: %+v", req.DigestAuth)
		}
	}
}

func TestRunFailsFatallyWhenIndexExceedsProfileCount(t *testing.T) {
	camera := twoProfileCamera()
	channel := &fakeChannel{}
	a := New(Config{
		Camera:         camera,
		Channel:        channel,
		ProfileIndices: []int{0, 2},
	})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := a.Run(ctx)
	if err == nil {
		t.Fatal("expected startup validation failure")
	}
	var aErr *domain.AnnounceError
	if !errors.As(err, &aErr) || aErr.Code != domain.ErrCodeProfileUnavailable {
		t.Fatalf("expected PROFILE_UNAVAILABLE, got %v", err)
	}
	if len(channel.submitted()) != 0 {
		t.Fatalf("expected no announcements before validation, got %d", len(channel.submitted()))
	}
}

func TestRunProfileFetchErrorIsFatal(t *testing.T) {
	camera := &fakeCamera{
		profilesErr: domain.NewAnnounceError(domain.ErrCodeDeviceUnavailable, "device offline"),
	}
	a := New(Config{Camera: camera, Channel: &fakeChannel{}})

	ctx, cancel := context.WithTimeout(context.Background(), time.Second)
	defer cancel()
	err := a.Run(ctx)
	var aErr *domain.AnnounceError
	if !errors.As(err, &aErr) || aErr.Code != domain.ErrCodeDeviceUnavailable {
		t.Fatalf("expected DEVICE_UNAVAILABLE, got %v", err)
	}
}

func TestChannelTimeoutOnOneProfileDoesNotBlockOthers(t *testing.T) {
	camera := twoProfileCamera()
	channel := &fakeChannel{
		errFor: map[string]error{
			"/rtsp_request/track1": domain.NewAnnounceError(domain.ErrCodeChannelTimeout, "no ack"),
		},
	}
	a := New(Config{
		Camera:         camera,
		Channel:        channel,
		ProfileIndices: []int{0, 1},
	})

	// Four submissions means the second profile was attempted in the same
	// cycle as the timed-out first one, and a second cycle followed.
	err := runAnnouncer(t, a, func() bool {
		return len(channel.submitted()) >= 4
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	requests := channel.submitted()
	if requests[0].Header.EntityPath != "/rtsp_request/track1" || requests[1].Header.EntityPath != "/rtsp_request/track2" {
		t.Fatalf("cycle order broken: %q then %q", requests[0].Header.EntityPath, requests[1].Header.EntityPath)
	}
	if requests[2].Header.EntityPath != "/rtsp_request/track1" {
		t.Fatalf("expected next cycle to retry track1, got %q", requests[2].Header.EntityPath)
	}
}

func TestStreamURIFailureSkipsProfileNotCycle(t *testing.T) {
	camera := twoProfileCamera()
	camera.uriErrs = map[string]error{
		"t0": domain.NewAnnounceError(domain.ErrCodeDeviceUnavailable, "soap fault"),
	}
	channel := &fakeChannel{}
	a := New(Config{
		Camera:         camera,
		Channel:        channel,
		ProfileIndices: []int{0, 1},
	})

	err := runAnnouncer(t, a, func() bool {
		return len(channel.submitted()) >= 2
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	for _, req := range channel.submitted() {
		if req.Header.EntityPath != "/rtsp_request/track2" {
			t.Fatalf("expected only track2 announcements, got %q", req.Header.EntityPath)
		}
	}

	camera.mu.Lock()
	calls := append([]string{}, camera.uriCalls...)
	camera.mu.Unlock()
	sawFailing := false
	for _, token := range calls {
		if token == "t0" {
			sawFailing = true
		}
	}
	if !sawFailing {
		t.Fatal("expected the failing profile to still be attempted each cycle")
	}
}

func TestDuplicateIndicesAnnouncedPerOccurrence(t *testing.T) {
	camera := twoProfileCamera()
	channel := &fakeChannel{}
	a := New(Config{
		Camera:         camera,
		Channel:        channel,
		ProfileIndices: []int{0, 0},
	})

	err := runAnnouncer(t, a, func() bool {
		return len(channel.submitted()) >= 2
	})
	if !errors.Is(err, context.Canceled) {
		t.Fatalf("expected context.Canceled, got %v", err)
	}

	requests := channel.submitted()
	if requests[0].Header.EntityPath != "/rtsp_request/track1" || requests[1].Header.EntityPath != "/rtsp_request/track1" {
		t.Fatalf("expected duplicate announcements of track1, got %q and %q",
			requests[0].Header.EntityPath, requests[1].Header.EntityPath)
	}
}

func TestEmptyIndicesDefaultToZero(t *testing.T) {
	a := New(Config{Camera: twoProfileCamera(), Channel: &fakeChannel{}})
	if len(a.profileIndices) != 1 || a.profileIndices[0] != 0 {
		t.Fatalf("expected default [0], got %v", a.profileIndices)
	}
}

func TestValidateIndices(t *testing.T) {
	cases := []struct {
		indices   []int
		available int
		wantErr   bool
	}{
		{indices: []int{0}, available: 1, wantErr: false},
		{indices: []int{0, 1}, available: 2, wantErr: false},
		{indices: []int{2}, available: 2, wantErr: true},
		{indices: []int{-1}, available: 2, wantErr: true},
		{indices: []int{0, 0, 1}, available: 2, wantErr: false},
	}

	for _, tc := range cases {
		err := validateIndices(tc.indices, tc.available)
		if (err != nil) != tc.wantErr {
			t.Fatalf("validateIndices(%v, %d) err=%v, wantErr=%v", tc.indices, tc.available, err, tc.wantErr)
		}
		if err != nil {
			var aErr *domain.AnnounceError
			if !errors.As(err, &aErr) || aErr.Code != domain.ErrCodeProfileUnavailable {
				t.Fatalf("expected PROFILE_UNAVAILABLE, got %v", err)
			}
		}
	}
}

func TestRunRequiresWiring(t *testing.T) {
	ctx := context.Background()
	if err := New(Config{Channel: &fakeChannel{}}).Run(ctx); err == nil {
		t.Fatal("expected error without camera")
	}
	if err := New(Config{Camera: twoProfileCamera()}).Run(ctx); err == nil {
		t.Fatal("expected error without channel")
	}
}
