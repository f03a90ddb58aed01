//nolint:revive,nolintlint // Package name "common" is intentional for shared helpers.
package common

import (
	"context"
	"errors"
	"fmt"
	"io"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"
	"google.golang.org/protobuf/types/known/structpb"

	api "github.com/oshokin/alarm-cond/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-cond/internal/config"
	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
)

// Client wraps the gRPC AlarmService client with convenience helpers.
type Client struct {
	// conn is the underlying gRPC connection to the alarm daemon.
	conn *grpc.ClientConn
	// api is the AlarmService client.
	api *api.AlarmServiceClient
	// actor tags outgoing calls; empty disables tagging.
	actor string

	// callTimeout is the default timeout for individual unary calls.
	callTimeout time.Duration
}

// Option configures client behaviour.
type Option func(*Client)

// WithCallTimeout sets a default timeout for unary calls.
func WithCallTimeout(timeout time.Duration) Option {
	return func(c *Client) {
		if timeout > 0 {
			c.callTimeout = timeout
		}
	}
}

// WithActor sets the actor reported to the daemon.
func WithActor(actor string) Option {
	return func(c *Client) {
		c.actor = actor
	}
}

// errAddressRequired is returned when a required address value is missing.
var errAddressRequired = errors.New("address must be provided")

// Dial establishes a gRPC connection to the alarm daemon.
// Note: this uses insecure transport credentials; deploy on a trusted network
// or terminate TLS in a proxy until native TLS is added.
func Dial(_ context.Context, address string, opts ...Option) (*Client, error) {
	if address == "" {
		return nil, errAddressRequired
	}

	conn, err := grpc.NewClient(address, grpc.WithTransportCredentials(insecure.NewCredentials()))
	if err != nil {
		return nil, fmt.Errorf("dial alarm daemon: %w", err)
	}

	client := &Client{
		conn:        conn,
		api:         api.NewAlarmServiceClient(conn),
		callTimeout: config.DefaultTimeout,
	}

	for _, opt := range opts {
		opt(client)
	}

	return client, nil
}

// Close releases the underlying gRPC connection.
func (c *Client) Close() error {
	if c == nil || c.conn == nil {
		return nil
	}

	return c.conn.Close()
}

// Submit inserts or replaces an alarm. The flag reports a replace.
func (c *Client) Submit(ctx context.Context, id int64, period time.Duration, message string) (domain.Alarm, bool, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Submit(callCtx, api.SubmitRequest(id, period, message))
	if err != nil {
		return domain.Alarm{}, false, fmt.Errorf("submit alarm: %w", api.FromStatus(err))
	}

	committed, replaced, err := api.ParseSubmitResponse(resp)
	if err != nil {
		return domain.Alarm{}, false, fmt.Errorf("submit alarm: %w", err)
	}

	return committed, replaced, nil
}

// Cancel requests cancellation of an alarm. Errors match domain.ErrNotFound
// and domain.ErrAlreadyCancelling with errors.Is.
func (c *Client) Cancel(ctx context.Context, id int64) (domain.Alarm, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.Cancel(callCtx, api.CancelRequest(id))
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("cancel alarm: %w", api.FromStatus(err))
	}

	cancelled, err := api.ParseCancelResponse(resp)
	if err != nil {
		return domain.Alarm{}, fmt.Errorf("cancel alarm: %w", err)
	}

	return cancelled, nil
}

// List returns the live alarms and the raw response message.
func (c *Client) List(ctx context.Context) ([]domain.Alarm, *structpb.Struct, error) {
	callCtx, cancel := c.callContext(ctx)
	defer cancel()

	resp, err := c.api.List(callCtx)
	if err != nil {
		return nil, nil, fmt.Errorf("list alarms: %w", err)
	}

	alarms, err := api.ParseListResponse(resp)
	if err != nil {
		return nil, nil, fmt.Errorf("list alarms: %w", err)
	}

	return alarms, resp, nil
}

// Watch streams notices to fn until ctx is cancelled, the daemon closes the
// stream or fn returns an error. The rendered line is passed along with the
// decoded notice.
func (c *Client) Watch(ctx context.Context, fn func(n domain.Notice, line string) error) error {
	stream, err := c.api.Watch(c.tag(ctx))
	if err != nil {
		return fmt.Errorf("watch notices: %w", err)
	}

	for {
		msg, err := stream.Recv()
		if err != nil {
			if errors.Is(err, io.EOF) || ctx.Err() != nil {
				return nil
			}

			return fmt.Errorf("watch notices: %w", err)
		}

		n, err := api.NoticeFromStruct(msg)
		if err != nil {
			return fmt.Errorf("watch notices: %w", err)
		}

		if err = fn(n, msg.GetFields()["text"].GetStringValue()); err != nil {
			return err
		}
	}
}

// callContext returns a context with the client's call timeout if configured,
// otherwise a cancellable child context without a deadline.
func (c *Client) callContext(ctx context.Context) (context.Context, context.CancelFunc) {
	ctx = c.tag(ctx)

	if c.callTimeout <= 0 {
		return context.WithCancel(ctx)
	}

	return context.WithTimeout(ctx, c.callTimeout)
}

// tag attaches the actor to outgoing metadata.
func (c *Client) tag(ctx context.Context) context.Context {
	if c.actor == "" {
		return ctx
	}

	return metadata.AppendToOutgoingContext(ctx, ActorMetadataKey, c.actor)
}
