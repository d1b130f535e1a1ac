package gateway

import (
	"bytes"
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"io"
	"net/http"
	"time"

	"drivermonitor/internal/config"
	"drivermonitor/internal/dto"

	"github.com/sony/gobreaker"
)

const (
	breakerMaxFailures = 5
	breakerOpenTimeout = 30 * time.Second
)

// ErrUpstream marks any failure to obtain an answer from the model server.
var ErrUpstream = errors.New("model server not responding")

// StatusError is a non-2xx answer from the model server.
type StatusError struct {
	Code int
}

func (e *StatusError) Error() string {
	return fmt.Sprintf("unexpected status %d", e.Code)
}

// Client forwards frames to the model server through a circuit breaker.
type Client struct {
	url     string
	http    *http.Client
	breaker *gobreaker.CircuitBreaker
}

func NewClient(cfg *config.Config) *Client {
	timeout := time.Duration(cfg.GatewayTimeout) * time.Second
	if timeout <= 0 {
		timeout = 10 * time.Second
	}

	return &Client{
		url:  cfg.ModelServerURL,
		http: &http.Client{Timeout: timeout},
		breaker: gobreaker.NewCircuitBreaker(gobreaker.Settings{
			Name:        "model-server",
			MaxRequests: 1,
			Timeout:     breakerOpenTimeout,
			ReadyToTrip: func(counts gobreaker.Counts) bool {
				return counts.ConsecutiveFailures >= breakerMaxFailures
			},
			IsSuccessful: healthyUpstream,
		}),
	}
}

// healthyUpstream counts only transport errors and 5xx answers as breaker
// failures. Rejected frames and cancelled callers leave the breaker alone.
func healthyUpstream(err error) bool {
	if err == nil || errors.Is(err, context.Canceled) {
		return true
	}
	var statusErr *StatusError
	if errors.As(err, &statusErr) {
		return statusErr.Code < http.StatusInternalServerError
	}
	return false
}

// State reports the circuit breaker state.
func (c *Client) State() gobreaker.State {
	return c.breaker.State()
}

// Relay posts the frame to the model server and returns its JSON body verbatim.
func (c *Client) Relay(ctx context.Context, frame string) ([]byte, error) {
	payload, err := json.Marshal(dto.InferRequest{Frame: frame})
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrUpstream, err)
	}

	body, err := c.breaker.Execute(func() (interface{}, error) {
		return c.post(ctx, payload)
	})
	if err != nil {
		return nil, fmt.Errorf("%w: breaker (%s): %w", ErrUpstream, c.breaker.Name(), err)
	}
	return body.([]byte), nil
}

func (c *Client) post(ctx context.Context, payload []byte) ([]byte, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.url, bytes.NewReader(payload))
	if err != nil {
		return nil, err
	}
	req.Header.Set("Content-Type", "application/json")

	resp, err := c.http.Do(req)
	if err != nil {
		return nil, err
	}
	defer resp.Body.Close()

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, err
	}

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, &StatusError{Code: resp.StatusCode}
	}
	return body, nil
}
