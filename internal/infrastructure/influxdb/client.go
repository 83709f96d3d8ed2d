package influxdb

import (
	"context"
	"fmt"
	"sync"
	"sync/atomic"
	"time"

	influxdb2 "github.com/influxdata/influxdb-client-go/v2"
	"github.com/influxdata/influxdb-client-go/v2/api"

	"github.com/nerrad567/gray-logic-upnp/internal/infrastructure/config"
)

const (
	defaultBatchSize     = 100
	defaultFlushInterval = 10 * time.Second
	defaultPingTimeout   = 5 * time.Second
)

// Client writes state history and invocation latency for one site.
//
// Points are buffered by the non-blocking write API and sent in batches,
// so the writers never stall a GENA listener or an HTTP handler. Batch
// failures surface through SetOnError.
type Client struct {
	influx   influxdb2.Client
	writeAPI api.WriteAPI
	cfg      config.InfluxDBConfig

	connected atomic.Bool

	mu      sync.RWMutex
	onError func(err error)
}

// Connect pings the server and prepares the batched write API. Every point
// carries a site tag so several daemons can share one bucket.
//
// Parameters:
//   - ctx: Bounds the initial ping
//   - cfg: The influxdb section of config.yaml
//   - site: Site ID written as the default tag, omitted when empty
//
// Returns:
//   - *Client: Ready for writes
//   - error: ErrDisabled, or ErrConnectionFailed wrapping the ping failure
func Connect(ctx context.Context, cfg config.InfluxDBConfig, site string) (*Client, error) {
	if !cfg.Enabled {
		return nil, ErrDisabled
	}

	influx := influxdb2.NewClientWithOptions(cfg.URL, cfg.Token, writeOptions(cfg, site))

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := influx.Ping(pingCtx)
	if err != nil || !healthy {
		influx.Close()
		if err == nil {
			err = ErrUnhealthy
		}
		return nil, fmt.Errorf("%w: %s: %w", ErrConnectionFailed, cfg.URL, err)
	}

	c := &Client{
		influx:   influx,
		writeAPI: influx.WriteAPI(cfg.Org, cfg.Bucket),
		cfg:      cfg,
	}
	c.connected.Store(true)
	go c.forwardErrors(c.writeAPI.Errors())

	return c, nil
}

// writeOptions applies the configured batching, falling back to the
// defaults for zero or negative values.
func writeOptions(cfg config.InfluxDBConfig, site string) *influxdb2.Options {
	batch := uint(defaultBatchSize)
	if cfg.BatchSize > 0 {
		batch = uint(cfg.BatchSize) // #nosec G115 -- checked positive
	}
	flush := defaultFlushInterval
	if cfg.FlushInterval > 0 {
		flush = time.Duration(cfg.FlushInterval) * time.Second
	}

	opts := influxdb2.DefaultOptions().
		SetBatchSize(batch).
		SetFlushInterval(uint(flush.Milliseconds())) // #nosec G115 -- positive duration
	if site != "" {
		opts.AddDefaultTag("site", site)
	}
	return opts
}

func (c *Client) forwardErrors(errs <-chan error) {
	for err := range errs {
		c.mu.RLock()
		callback := c.onError
		c.mu.RUnlock()
		if callback != nil {
			callback(fmt.Errorf("%w: %w", ErrWriteFailed, err))
		}
	}
}

// Close flushes buffered points and releases the client. Writers become
// no-ops afterwards. Close always returns nil.
func (c *Client) Close() error {
	if c.influx == nil {
		return nil
	}
	c.connected.Store(false)
	c.writeAPI.Flush()
	c.influx.Close()
	return nil
}

// HealthCheck pings the server.
func (c *Client) HealthCheck(ctx context.Context) error {
	if !c.IsConnected() {
		return ErrNotConnected
	}

	pingCtx, cancel := context.WithTimeout(ctx, defaultPingTimeout)
	defer cancel()
	healthy, err := c.influx.Ping(pingCtx)
	if err != nil {
		return fmt.Errorf("influxdb health check: %w", err)
	}
	if !healthy {
		return fmt.Errorf("influxdb health check: %w", ErrUnhealthy)
	}
	return nil
}

// IsConnected reports false before Connect and after Close. It does not
// reflect the server's reachability; use HealthCheck for that.
func (c *Client) IsConnected() bool {
	return c.influx != nil && c.connected.Load()
}

// SetOnError sets the callback for failed batches. Errors are wrapped in
// ErrWriteFailed.
func (c *Client) SetOnError(callback func(err error)) {
	c.mu.Lock()
	c.onError = callback
	c.mu.Unlock()
}
