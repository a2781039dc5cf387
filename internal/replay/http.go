package replay

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"github.com/okian/zonetrack/internal/domain/geometry"
	"github.com/okian/zonetrack/internal/domain/types"
)

// ErrUnexpectedStatus is returned for responses outside the documented set.
var ErrUnexpectedStatus = errors.New("unexpected status")

const (
	defaultRetries = 10
	retryBackoff   = 20 * time.Millisecond
	pollInterval   = 20 * time.Millisecond
	maxErrorBody   = 1024
)

// Frame submission outcomes.
const (
	outcomeAccepted  = "accepted"
	outcomeDuplicate = "duplicate"
	outcomeRejected  = "rejected"
)

// Client talks to a running zonetrack service.
type Client struct {
	baseURL string
	client  *http.Client
}

// NewClient creates a client with the given request timeout.
func NewClient(baseURL string, timeout time.Duration) *Client {
	return &Client{baseURL: baseURL, client: &http.Client{Timeout: timeout}}
}

func (c *Client) do(ctx context.Context, method, path string, body, out any) (int, error) {
	var rd io.Reader = http.NoBody
	if body != nil {
		data, err := json.Marshal(body)
		if err != nil {
			return 0, fmt.Errorf("marshal request body: %w", err)
		}
		rd = bytes.NewReader(data)
	}
	req, err := http.NewRequestWithContext(ctx, method, c.baseURL+path, rd)
	if err != nil {
		return 0, fmt.Errorf("create request: %w", err)
	}
	if body != nil {
		req.Header.Set("Content-Type", "application/json")
	}
	resp, err := c.client.Do(req)
	if err != nil {
		return 0, fmt.Errorf("%s %s: %w", method, path, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode >= http.StatusBadRequest {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
		return resp.StatusCode, fmt.Errorf("%w: %s %s: %d %s", ErrUnexpectedStatus, method, path, resp.StatusCode, bytes.TrimSpace(msg))
	}
	if out != nil {
		if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
			return resp.StatusCode, fmt.Errorf("decode %s response: %w", path, err)
		}
	}
	return resp.StatusCode, nil
}

// PostFrame submits one frame, retrying while the service reports
// backpressure. It returns "accepted", "duplicate" or "rejected".
func (c *Client) PostFrame(ctx context.Context, f types.FrameRequest, retries int) (string, error) {
	if retries <= 0 {
		retries = defaultRetries
	}
	backoff := retryBackoff
	for attempt := 0; ; attempt++ {
		status, err := c.do(ctx, http.MethodPost, "/frames", f, nil)
		switch {
		case status == http.StatusAccepted:
			return outcomeAccepted, nil
		case status == http.StatusOK:
			return outcomeDuplicate, nil
		case status == http.StatusTooManyRequests && attempt < retries:
			select {
			case <-ctx.Done():
				return "", ctx.Err()
			case <-time.After(backoff):
			}
			backoff *= 2
		case status == http.StatusBadRequest:
			return outcomeRejected, nil
		case err != nil:
			return "", err
		default:
			return "", fmt.Errorf("%w: POST /frames: %d", ErrUnexpectedStatus, status)
		}
	}
}

// PutROI replaces the service's region of interest.
func (c *Client) PutROI(ctx context.Context, poly geometry.Polygon) (types.ROI, error) {
	var out types.ROI
	_, err := c.do(ctx, http.MethodPut, "/roi", types.ROIRequest{Points: poly}, &out)
	return out, err
}

// Reset starts a new session on the service.
func (c *Client) Reset(ctx context.Context) (types.Snapshot, error) {
	var out types.Snapshot
	_, err := c.do(ctx, http.MethodPost, "/reset", nil, &out)
	return out, err
}

// Tracks fetches the latest snapshot.
func (c *Client) Tracks(ctx context.Context) (types.Snapshot, error) {
	var out types.Snapshot
	_, err := c.do(ctx, http.MethodGet, "/tracks", nil, &out)
	return out, err
}

// Counters fetches the cumulative counters.
func (c *Client) Counters(ctx context.Context) (types.Counters, error) {
	var out types.Counters
	_, err := c.do(ctx, http.MethodGet, "/counters", nil, &out)
	return out, err
}

// WaitForTS polls /tracks until the service has applied a tick at ts or
// later.
func (c *Client) WaitForTS(ctx context.Context, ts int64) (types.Snapshot, error) {
	ticker := time.NewTicker(pollInterval)
	defer ticker.Stop()
	for {
		snap, err := c.Tracks(ctx)
		if err != nil {
			return snap, err
		}
		if snap.TS >= ts {
			return snap, nil
		}
		select {
		case <-ctx.Done():
			return snap, fmt.Errorf("wait for ts %d: %w", ts, ctx.Err())
		case <-ticker.C:
		}
	}
}

// RunHTTP posts frames in order to the service and waits until the last
// accepted one has been applied.
func RunHTTP(ctx context.Context, cfg *Config, frames []types.FrameRequest) (Summary, error) {
	start := time.Now()
	c := NewClient(cfg.BaseURL, cfg.Timeout)
	sum := Summary{Mode: ModeHTTP, Frames: len(frames)}

	if cfg.Reset {
		if _, err := c.Reset(ctx); err != nil {
			return sum, fmt.Errorf("reset: %w", err)
		}
	}
	if len(cfg.ROI) > 0 {
		if _, err := c.PutROI(ctx, cfg.ROI); err != nil {
			return sum, fmt.Errorf("put roi: %w", err)
		}
	}

	var lastTS int64 = -1
	for i := range frames {
		outcome, err := c.PostFrame(ctx, frames[i], cfg.Retries)
		if err != nil {
			return sum, fmt.Errorf("frame %d: %w", i, err)
		}
		switch outcome {
		case outcomeAccepted:
			sum.Accepted++
			lastTS = max(lastTS, frames[i].TS)
		case outcomeDuplicate:
			sum.Duplicate++
		default:
			sum.Rejected++
		}
	}

	if lastTS >= 0 {
		if _, err := c.WaitForTS(ctx, lastTS); err != nil {
			return sum, err
		}
	}
	snap, err := c.Tracks(ctx)
	if err != nil {
		return sum, err
	}
	sum.SessionID = snap.SessionID
	sum.Entered = snap.Entered
	sum.Exited = snap.Exited
	sum.Tracks = len(snap.Tracks)
	sum.Duration = time.Since(start)
	return sum, nil
}
