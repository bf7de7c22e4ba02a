// Package probe implements the per-vessel Time-Series Probe Client: a
// read-only client that executes a fixed query shape against one vessel's
// ping measurement and returns raw samples (spec.md §4.1).
package probe

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math/rand"
	"net/http"
	"net/url"
	"strings"
	"time"

	"github.com/wisbric/fleetwatch/pkg/vessel"
)

// PingSample is one raw measurement for a device.
type PingSample struct {
	IP        string
	Timestamp time.Time
	Success   bool
}

// PingData is the full set of samples collected for a role's device set in
// one window, including IPs with no samples at all.
type PingData struct {
	Role    vessel.Role
	Samples map[string][]PingSample // keyed by device IP; present but empty for no-data IPs
}

// RetryConfig controls the Client's internal retry behavior (spec.md §4.1).
type RetryConfig struct {
	MaxAttempts int
	BaseDelay   time.Duration
	MaxDelay    time.Duration
}

// DefaultRetryConfig matches spec.md's defaults: 3 attempts, exponential
// backoff with 10-30% jitter.
var DefaultRetryConfig = RetryConfig{
	MaxAttempts: 3,
	BaseDelay:   500 * time.Millisecond,
	MaxDelay:    10 * time.Second,
}

// Client queries one vessel's ping measurement over HTTP.
type Client struct {
	vesselID string
	conn     vessel.Connection
	http     *http.Client
	retry    RetryConfig
}

// NewClient creates a probe Client for one vessel.
func NewClient(vesselID string, conn vessel.Connection, retry RetryConfig) *Client {
	timeout := time.Duration(conn.Timeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	return &Client{
		vesselID: vesselID,
		conn:     conn,
		http:     &http.Client{Timeout: timeout},
		retry:    retry,
	}
}

// QueryPings executes the fixed query for the given role's device set over
// the trailing windowHours, retrying retryable failures internally per
// spec.md §4.1. IPs with no samples in the window are represented with an
// empty (but present) entry.
func (c *Client) QueryPings(ctx context.Context, v *vessel.Vessel, role vessel.Role, windowHours int) (*PingData, error) {
	ips := v.DevicesForRole(role)
	data := &PingData{Role: role, Samples: make(map[string][]PingSample, len(ips))}
	for _, ip := range ips {
		data.Samples[ip] = nil
	}
	if len(ips) == 0 {
		return data, nil
	}

	q := buildQuery(ips, windowHours)

	var lastErr error
	for attempt := 0; attempt < max(1, c.retry.MaxAttempts); attempt++ {
		if attempt > 0 {
			if err := c.sleepBackoff(ctx, attempt); err != nil {
				return nil, err
			}
		}

		rows, err := c.doQuery(ctx, q)
		if err == nil {
			for _, row := range rows {
				if !row.hasURL {
					continue
				}
				ts, terr := time.Parse(time.RFC3339, row.Time)
				if terr != nil {
					continue
				}
				data.Samples[row.URL] = append(data.Samples[row.URL], PingSample{
					IP:        row.URL,
					Timestamp: ts.UTC(),
					Success:   row.successful(),
				})
			}
			return data, nil
		}

		lastErr = err
		if !IsRetryable(err) {
			return nil, err
		}
	}
	return nil, lastErr
}

// TestConnection verifies the vessel's endpoint is reachable and
// authenticated, without querying ping data.
func (c *Client) TestConnection(ctx context.Context) bool {
	q := "SHOW MEASUREMENTS LIMIT 1"
	_, err := c.doQuery(ctx, q)
	return err == nil
}

func (c *Client) doQuery(ctx context.Context, q string) ([]decodedRow, error) {
	u, err := url.Parse(strings.TrimRight(c.conn.URL, "/") + "/query")
	if err != nil {
		return nil, newError(c.vesselID, ClassConfig, err)
	}
	params := url.Values{}
	params.Set("db", c.conn.Org)
	params.Set("q", q)
	u.RawQuery = params.Encode()

	req, err := http.NewRequestWithContext(ctx, http.MethodGet, u.String(), nil)
	if err != nil {
		return nil, newError(c.vesselID, ClassConfig, err)
	}
	req.Header.Set("Authorization", "Token "+c.conn.Token)

	resp, err := c.http.Do(req)
	if err != nil {
		if ctx.Err() != nil {
			return nil, newError(c.vesselID, ClassTimeout, err)
		}
		return nil, newError(c.vesselID, ClassConnection, err)
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, newError(c.vesselID, ClassConnection, err)
	}

	if resp.StatusCode == http.StatusUnauthorized || resp.StatusCode == http.StatusForbidden {
		return nil, newError(c.vesselID, ClassAuth, fmt.Errorf("authentication failed"))
	}
	if resp.StatusCode >= 400 {
		return nil, newHTTPError(c.vesselID, resp.StatusCode, fmt.Errorf("%s", string(body)))
	}

	var qr queryResponse
	if err := json.Unmarshal(body, &qr); err != nil {
		return nil, newError(c.vesselID, ClassConfig, fmt.Errorf("decoding response: %w", err))
	}

	var rows []decodedRow
	for _, r := range qr.Results {
		if r.Error != "" {
			return nil, newError(c.vesselID, ClassConfig, fmt.Errorf("query error: %s", r.Error))
		}
		for _, s := range r.Series {
			rows = append(rows, decodeSeries(s.Columns, s.Values)...)
		}
	}
	return rows, nil
}

// sleepBackoff sleeps base*2^(attempt-1) plus 10-30% jitter, capped at
// MaxDelay, or returns ctx.Err() if the context is cancelled first.
func (c *Client) sleepBackoff(ctx context.Context, attempt int) error {
	base := c.retry.BaseDelay
	if base <= 0 {
		base = DefaultRetryConfig.BaseDelay
	}
	delay := base << uint(attempt-1)
	jitter := time.Duration(float64(delay) * (0.10 + rand.Float64()*0.20))
	delay += jitter
	if max := c.retry.MaxDelay; max > 0 && delay > max {
		delay = max
	}

	t := time.NewTimer(delay)
	defer t.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-t.C:
		return nil
	}
}

// buildQuery constructs the fixed query shape for a role's device set:
// select {time, url, result_code, packet_loss} from the ping measurement,
// filtered to the given IPs and trailing window, ordered ascending by time.
func buildQuery(ips []string, windowHours int) string {
	clauses := make([]string, len(ips))
	for i, ip := range ips {
		clauses[i] = fmt.Sprintf("url='%s'", ip)
	}
	return fmt.Sprintf(
		"SELECT time,url,result_code,packet_loss FROM ping WHERE (%s) AND time > now() - %dh ORDER BY time ASC",
		strings.Join(clauses, " OR "), windowHours,
	)
}
