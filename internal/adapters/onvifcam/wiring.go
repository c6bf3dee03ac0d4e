// Package onvifcam wires the ONVIF Media service as the announcer's
// device capability client.
package onvifcam

import (
	"context"
	"fmt"
	"strings"

	"github.com/use-go/onvif"
	"github.com/use-go/onvif/media"
	sdkmedia "github.com/use-go/onvif/sdk/media"
	xsdonvif "github.com/use-go/onvif/xsd/onvif"

	"camcast.app/rtsp-announcer/internal/adapters"
	"camcast.app/rtsp-announcer/internal/domain"
)

type Params struct {
	// Xaddr is the ONVIF endpoint in host[:port] form.
	Xaddr    string
	Username string
	Password string
}

type Client struct {
	dev   *onvif.Device
	xaddr string
}

func NewClient(p Params) (*Client, error) {
	dev, err := onvif.NewDevice(onvif.DeviceParams{
		Xaddr:    p.Xaddr,
		Username: p.Username,
		Password: p.Password,
	})
	if err != nil {
		return nil, domain.NewAnnounceError(
			domain.ErrCodeDeviceUnavailable,
			fmt.Sprintf("cannot reach ONVIF device at %s: %v", p.Xaddr, err),
		)
	}

	return &Client{dev: dev, xaddr: p.Xaddr}, nil
}

// Profiles returns the device's configured media profiles in device order.
func (c *Client) Profiles(ctx context.Context) ([]domain.Profile, error) {
	resp, err := sdkmedia.Call_GetProfiles(ctx, c.dev, media.GetProfiles{})
	if err != nil {
		return nil, c.classify("GetProfiles", err)
	}

	profiles := make([]domain.Profile, 0, len(resp.Profiles))
	for i, p := range resp.Profiles {
		profiles = append(profiles, domain.Profile{
			Token: string(p.Token),
			Name:  string(p.Name),
			Index: i,
		})
	}
	return profiles, nil
}

// StreamURI resolves a profile token to a live RTSP stream URI,
// requesting RTP-Unicast over RTSP.
func (c *Client) StreamURI(ctx context.Context, profileToken string) (string, error) {
	resp, err := sdkmedia.Call_GetStreamUri(ctx, c.dev, media.GetStreamUri{
		StreamSetup: xsdonvif.StreamSetup{
			Stream: xsdonvif.StreamType("RTP-Unicast"),
			Transport: xsdonvif.Transport{
				Protocol: xsdonvif.TransportProtocol("RTSP"),
			},
		},
		ProfileToken: xsdonvif.ReferenceToken(profileToken),
	})
	if err != nil {
		return "", c.classify("GetStreamUri", err)
	}

	uri := strings.TrimSpace(string(resp.MediaUri.Uri))
	if uri == "" {
		return "", domain.NewAnnounceError(
			domain.ErrCodeProfileNotFound,
			fmt.Sprintf("device %s returned no stream URI for profile %q", c.xaddr, profileToken),
		)
	}
	return uri, nil
}

// classify maps SOAP faults mentioning the profile token onto
// PROFILE_NOT_FOUND; everything else is a device availability problem.
func (c *Client) classify(operation string, err error) error {
	msg := strings.ToLower(err.Error())
	if strings.Contains(msg, "profile") || strings.Contains(msg, "no such token") {
		return domain.NewAnnounceError(
			domain.ErrCodeProfileNotFound,
			fmt.Sprintf("%s on %s: %v", operation, c.xaddr, err),
		)
	}
	return domain.NewAnnounceError(
		domain.ErrCodeDeviceUnavailable,
		fmt.Sprintf("%s on %s: %v", operation, c.xaddr, err),
	)
}

var _ adapters.Camera = (*Client)(nil)
