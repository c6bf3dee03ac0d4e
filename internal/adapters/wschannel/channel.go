// Package wschannel implements the delivery channel over a websocket
// request/acknowledge exchange.
package wschannel

import (
	"context"
	"errors"
	"fmt"
	"net"
	"strings"
	"sync"
	"time"

	"github.com/google/uuid"
	"github.com/gorilla/websocket"

	"camcast.app/rtsp-announcer/internal/adapters"
	"camcast.app/rtsp-announcer/internal/domain"
)

const (
	defaultHandshakeTimeout = 5 * time.Second

	dialRetryAttempts    = 3
	dialRetryBaseBackoff = 120 * time.Millisecond
	dialRetryMaxBackoff  = 800 * time.Millisecond
)

type Channel struct {
	url    string
	dialer *websocket.Dialer
	logf   func(format string, args ...any)

	mu     sync.Mutex
	conn   *websocket.Conn
	closed bool
}

func New(channelURL string) *Channel {
	return &Channel{
		url: channelURL,
		dialer: &websocket.Dialer{
			HandshakeTimeout: defaultHandshakeTimeout,
		},
		logf: func(string, ...any) {},
	}
}

// SetLogf installs an optional debug log sink for redial events.
func (c *Channel) SetLogf(logf func(format string, args ...any)) {
	if logf == nil {
		return
	}
	c.logf = logf
}

// Submit writes one announcement and blocks until the matching
// acknowledgement arrives or the context deadline passes. Any failure
// (dial, write, read, deadline, negative ack) surfaces as CHANNEL_TIMEOUT
// so the caller skips the profile and relies on the next cycle. The
// connection is torn down on failure; the next submit redials.
func (c *Channel) Submit(ctx context.Context, req *domain.StreamRequest) error {
	if req == nil {
		return errors.New("stream request is nil")
	}

	conn, err := c.connect(ctx)
	if err != nil {
		return channelTimeout(c.url, err)
	}

	deadline, hasDeadline := ctx.Deadline()
	if hasDeadline {
		if err := conn.SetWriteDeadline(deadline); err != nil {
			c.drop(conn)
			return channelTimeout(c.url, err)
		}
		if err := conn.SetReadDeadline(deadline); err != nil {
			c.drop(conn)
			return channelTimeout(c.url, err)
		}
	}

	env := announceEnvelope{
		ID:          uuid.NewString(),
		SubmittedAt: time.Now().UTC(),
		Request:     req,
	}
	if err := conn.WriteJSON(env); err != nil {
		c.drop(conn)
		return channelTimeout(c.url, err)
	}

	// Stale acks from earlier, abandoned submissions may still be queued;
	// skip anything that does not correlate.
	for {
		var ack ackEnvelope
		if err := conn.ReadJSON(&ack); err != nil {
			c.drop(conn)
			return channelTimeout(c.url, err)
		}
		if ack.ID != env.ID {
			continue
		}
		if !ack.OK {
			return channelTimeout(c.url, fmt.Errorf("consumer rejected announcement: %s", ack.Message))
		}
		return nil
	}
}

// Close sends a normal-closure frame and drops the connection.
func (c *Channel) Close() error {
	c.mu.Lock()
	defer c.mu.Unlock()

	c.closed = true
	if c.conn == nil {
		return nil
	}

	_ = c.conn.WriteMessage(
		websocket.CloseMessage,
		websocket.FormatCloseMessage(websocket.CloseNormalClosure, ""),
	)
	err := c.conn.Close()
	c.conn = nil
	return err
}

func (c *Channel) connect(ctx context.Context) (*websocket.Conn, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.closed {
		return nil, errors.New("channel is closed")
	}
	if c.conn != nil {
		return c.conn, nil
	}

	var lastErr error
	for attempt := 1; attempt <= dialRetryAttempts; attempt++ {
		conn, _, err := c.dialer.DialContext(ctx, c.url, nil)
		if err == nil {
			c.conn = conn
			return conn, nil
		}
		lastErr = err
		if attempt >= dialRetryAttempts || !isTransientNetworkError(err) {
			break
		}

		backoff := backoffForAttempt(dialRetryBaseBackoff, dialRetryMaxBackoff, attempt)
		c.logf("channel redial attempt=%d/%d backoff=%s err=%s", attempt+1, dialRetryAttempts, backoff, err.Error())
		if waitErr := waitForBackoff(ctx, backoff); waitErr != nil {
			return nil, waitErr
		}
	}
	return nil, lastErr
}

func (c *Channel) drop(conn *websocket.Conn) {
	c.mu.Lock()
	defer c.mu.Unlock()

	_ = conn.Close()
	if c.conn == conn {
		c.conn = nil
	}
}

func backoffForAttempt(base, max time.Duration, attempt int) time.Duration {
	if base <= 0 {
		return 0
	}
	backoff := base
	for i := 1; i < attempt; i++ {
		backoff *= 2
		if max > 0 && backoff >= max {
			return max
		}
	}
	if max > 0 && backoff > max {
		return max
	}
	return backoff
}

func waitForBackoff(ctx context.Context, delay time.Duration) error {
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

func isTransientNetworkError(err error) bool {
	if err == nil {
		return false
	}
	if errors.Is(err, context.Canceled) || errors.Is(err, context.DeadlineExceeded) {
		return false
	}

	var netErr net.Error
	if errors.As(err, &netErr) && netErr.Timeout() {
		return true
	}

	msg := strings.ToLower(err.Error())
	transientPatterns := []string{
		"timeout",
		"temporar",
		"connection reset",
		"connection refused",
		"broken pipe",
		"unexpected eof",
		"i/o timeout",
		"network is unreachable",
		"no route to host",
	}
	for _, pattern := range transientPatterns {
		if strings.Contains(msg, pattern) {
			return true
		}
	}
	return false
}

func channelTimeout(channelURL string, err error) *domain.AnnounceError {
	return domain.NewAnnounceError(
		domain.ErrCodeChannelTimeout,
		fmt.Sprintf("delivery channel %s did not acknowledge: %v", channelURL, err),
	)
}

var _ adapters.Channel = (*Channel)(nil)
