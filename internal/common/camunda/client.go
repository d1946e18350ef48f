// internal/common/camunda/client.go
package camunda

import (
	"context"
	stderrors "errors"
	"fmt"
	"strings"
	"time"

	"jobboard-workers/internal/common/errors"

	"github.com/camunda/zeebe/clients/go/v8/pkg/zbc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

// Client is the gateway connection shared by the job workers and the
// camunda notification queue.
type Client struct {
	client  zbc.Client
	options Options
}

type Options struct {
	GatewayAddress string
	Plaintext      bool
	DialTimeout    time.Duration
	RequestTimeout time.Duration
	Backoff        Backoff
}

// Backoff bounds how often a gateway command is re-sent after a transient failure.
type Backoff struct {
	Attempts int
	Initial  time.Duration
	Max      time.Duration
}

var defaultBackoff = Backoff{Attempts: 3, Initial: time.Second, Max: 10 * time.Second}

// NewClient connects to a plaintext gateway, the setup used by the local
// docker-compose broker.
func NewClient(address string, requestTimeout time.Duration) (*Client, error) {
	return Dial(Options{
		GatewayAddress: address,
		Plaintext:      true,
		RequestTimeout: requestTimeout,
	})
}

// Dial opens the gateway connection and checks it with a topology request.
func Dial(opts Options) (*Client, error) {
	if opts.DialTimeout <= 0 {
		opts.DialTimeout = 10 * time.Second
	}
	if opts.RequestTimeout <= 0 {
		opts.RequestTimeout = 30 * time.Second
	}
	if opts.Backoff.Attempts <= 0 {
		opts.Backoff = defaultBackoff
	}

	zc, err := zbc.NewClient(&zbc.ClientConfig{
		GatewayAddress:         opts.GatewayAddress,
		UsePlaintextConnection: opts.Plaintext,
	})
	if err != nil {
		return nil, fmt.Errorf("zeebe client for %s: %w", opts.GatewayAddress, err)
	}

	c := &Client{client: zc, options: opts}
	if err := c.HealthCheck(context.Background()); err != nil {
		zc.Close()
		return nil, err
	}
	return c, nil
}

// GetClient returns the raw Zeebe client used to open job workers.
func (c *Client) GetClient() zbc.Client {
	return c.client
}

func (c *Client) Close() error {
	return c.client.Close()
}

// HealthCheck asks the gateway for the cluster topology.
func (c *Client) HealthCheck(ctx context.Context) error {
	ctx, cancel := context.WithTimeout(ctx, c.options.DialTimeout)
	defer cancel()

	if _, err := c.client.NewTopologyCommand().Send(ctx); err != nil {
		return fmt.Errorf("zeebe gateway %s unreachable: %w", c.options.GatewayAddress, err)
	}
	return nil
}

// CreateProcessInstance starts the latest deployed version of processID with
// variables and returns the instance key.
func (c *Client) CreateProcessInstance(ctx context.Context, processID string, variables interface{}) (int64, error) {
	return withBackoff(ctx, c.options.Backoff, "start "+processID, func(ctx context.Context) (int64, error) {
		cmd, err := c.client.NewCreateInstanceCommand().
			BPMNProcessId(processID).
			LatestVersion().
			VariablesFromObject(variables)
		if err != nil {
			return 0, errors.NewInvalidRequestError("process variables: " + err.Error())
		}

		reqCtx, cancel := context.WithTimeout(ctx, c.options.RequestTimeout)
		defer cancel()
		resp, err := cmd.Send(reqCtx)
		if err != nil {
			return 0, err
		}
		return resp.GetProcessInstanceKey(), nil
	})
}

// withBackoff re-sends send while the gateway reports a transient failure.
// The final error is translated into a StandardError.
func withBackoff[T any](ctx context.Context, b Backoff, op string, send func(context.Context) (T, error)) (T, error) {
	var zero T
	delay := b.Initial
	for attempt := 1; ; attempt++ {
		out, err := send(ctx)
		if err == nil {
			return out, nil
		}
		var std *errors.StandardError
		if stderrors.As(err, &std) {
			return zero, err
		}
		if !transient(err) || attempt >= b.Attempts {
			return zero, classify(err, op, attempt)
		}

		select {
		case <-time.After(delay):
		case <-ctx.Done():
			return zero, fmt.Errorf("%s abandoned after %d attempts: %w", op, attempt, ctx.Err())
		}
		if delay *= 2; delay > b.Max {
			delay = b.Max
		}
	}
}

// gatewayCode extracts the gRPC status code. Errors that lost their status
// on the way up are matched on the message instead.
func gatewayCode(err error) codes.Code {
	if s, ok := status.FromError(err); ok && s.Code() != codes.Unknown {
		return s.Code()
	}
	msg := strings.ToLower(err.Error())
	switch {
	case strings.Contains(msg, "deadline exceeded"), strings.Contains(msg, "timeout"):
		return codes.DeadlineExceeded
	case strings.Contains(msg, "connection refused"), strings.Contains(msg, "connection reset"),
		strings.Contains(msg, "broken pipe"), strings.Contains(msg, "unavailable"):
		return codes.Unavailable
	case strings.Contains(msg, "permission denied"), strings.Contains(msg, "unauthenticated"):
		return codes.PermissionDenied
	case strings.Contains(msg, "not_found"), strings.Contains(msg, "not found"):
		return codes.NotFound
	}
	return codes.Unknown
}

func transient(err error) bool {
	switch gatewayCode(err) {
	case codes.Unavailable, codes.DeadlineExceeded, codes.ResourceExhausted:
		return true
	}
	return false
}

func classify(err error, op string, attempts int) error {
	wrapped := fmt.Errorf("%s (attempt %d): %w", op, attempts, err)
	switch gatewayCode(err) {
	case codes.DeadlineExceeded:
		return errors.NewTimeoutError("zeebe", wrapped)
	case codes.NotFound:
		return errors.NewEntityNotFoundError("zeebe_process", op)
	case codes.PermissionDenied, codes.Unauthenticated:
		return errors.NewAuthenticationError(wrapped.Error())
	default:
		return errors.NewExternalServiceError("zeebe", wrapped)
	}
}
