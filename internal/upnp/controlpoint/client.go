// Package controlpoint invokes actions on remote UPnP services and
// delivers event notifications to subscriber callbacks over HTTP.
package controlpoint

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"net/http"
	"net/url"
	"strconv"
	"time"

	"github.com/nerrad567/gray-logic-upnp/internal/upnp/control"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/gena"
	"github.com/nerrad567/gray-logic-upnp/internal/upnp/soap"
)

// Defaults for HTTP exchanges.
const (
	defaultTimeout   = 10 * time.Second
	defaultUserAgent = "upnpd/1.0 UPnP/1.1"
	maxResponseBytes = 4 << 20
)

// Logger defines the logging interface used by the client.
type Logger interface {
	Debug(msg string, args ...any)
	Warn(msg string, args ...any)
}

type noopLogger struct{}

func (noopLogger) Debug(string, ...any) {}
func (noopLogger) Warn(string, ...any)  {}

// Config configures a Client.
type Config struct {
	Timeout   time.Duration // Per request; defaults to 10s
	UserAgent string
}

// Client sends SOAP action requests and GENA NOTIFY messages.
//
// Thread Safety: All methods are safe for concurrent use.
type Client struct {
	httpClient *http.Client
	soap       soap.Processor
	gena       gena.Processor
	userAgent  string
	logger     Logger
}

// New creates a client that encodes bodies with the given processors.
func New(cfg Config, soapProcessor soap.Processor, genaProcessor gena.Processor) *Client {
	timeout := cfg.Timeout
	if timeout <= 0 {
		timeout = defaultTimeout
	}
	userAgent := cfg.UserAgent
	if userAgent == "" {
		userAgent = defaultUserAgent
	}
	return &Client{
		httpClient: &http.Client{Timeout: timeout},
		soap:       soapProcessor,
		gena:       genaProcessor,
		userAgent:  userAgent,
		logger:     noopLogger{},
	}
}

// SetLogger sets the logger for the client.
func (c *Client) SetLogger(logger Logger) {
	c.logger = logger
}

// Invoke sends inv to the control URL of its remote service and reads the
// response into it.
//
// Every failure is recorded on inv and returned as a *control.ActionError.
// Transport problems carry ErrRequestFailed or ErrUnexpectedStatus in their
// chain; a Fault from the peer keeps its code and description.
//
// Parameters:
//   - ctx: Context for cancellation of the HTTP request
//   - inv: Invocation of an action of a remote service, inputs set
//
// Returns:
//   - error: nil when inv holds the output values
func (c *Client) Invoke(ctx context.Context, inv *control.Invocation) error {
	err := c.invoke(ctx, inv)
	if err == nil && inv.Failed() {
		err = inv.Failure()
	}
	if err != nil {
		failure := control.FromError(err, control.ActionFailed)
		inv.SetFailure(failure)
		return failure
	}
	return nil
}

func (c *Client) invoke(ctx context.Context, inv *control.Invocation) error {
	action := inv.Action()
	svc := action.Service()
	if svc == nil || svc.Endpoints() == nil || svc.Endpoints().Control == nil {
		return fmt.Errorf("%w: action %s", ErrNotRemote, action.Name())
	}
	controlURL := svc.Endpoints().Control.String()

	body, err := c.soap.WriteRequest(inv)
	if err != nil {
		return fmt.Errorf("encoding %s request: %w", action.Name(), err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, controlURL, bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", soap.ContentType)
	req.Header.Set("SOAPACTION", soap.ActionHeader(action))
	req.Header.Set("User-Agent", c.userAgent)

	c.logger.Debug("invoking remote action", "action", action.Name(), "url", controlURL)

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()

	respBody, err := readBody(resp.Body)
	if err != nil {
		return err
	}

	switch resp.StatusCode {
	case http.StatusOK:
		return c.soap.ReadResponse(respBody, inv)

	case http.StatusInternalServerError:
		// A Fault travels with status 500.
		if err := c.soap.ReadResponse(respBody, inv); err != nil || !inv.Failed() {
			c.logger.Warn("HTTP 500 without a readable Fault", "action", action.Name(), "error", err)
			return fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
		}
		return nil
	}
	return fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
}

// Notify delivers one event message to a subscriber callback.
//
// Parameters:
//   - ctx: Context for cancellation of the HTTP request
//   - callback: Delivery URL registered by the subscriber
//   - sid: Subscription identifier, e.g. "uuid:..."
//   - seq: Event key of this message
//   - values: Evented state variable values
//
// Returns:
//   - error: nil if the subscriber answered 200 OK
func (c *Client) Notify(ctx context.Context, callback *url.URL, sid string, seq uint32, values []gena.StateVariableValue) error {
	body, err := c.gena.WriteBody(values)
	if err != nil {
		return fmt.Errorf("encoding event body: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, "NOTIFY", callback.String(), bytes.NewReader(body))
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	req.Header.Set("Content-Type", soap.ContentType)
	req.Header.Set("NT", "upnp:event")
	req.Header.Set("NTS", "upnp:propchange")
	req.Header.Set("SID", sid)
	req.Header.Set("SEQ", strconv.FormatUint(uint64(seq), 10))

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("%w: %w", ErrRequestFailed, err)
	}
	defer resp.Body.Close()
	// Drain body to allow connection reuse
	_, _ = io.Copy(io.Discard, resp.Body)

	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("%w: HTTP %d", ErrUnexpectedStatus, resp.StatusCode)
	}
	return nil
}

func readBody(r io.Reader) ([]byte, error) {
	body, err := io.ReadAll(io.LimitReader(r, maxResponseBytes+1))
	if err != nil {
		return nil, fmt.Errorf("%w: reading response: %w", ErrRequestFailed, err)
	}
	if len(body) > maxResponseBytes {
		return nil, ErrResponseTooLarge
	}
	return body, nil
}
