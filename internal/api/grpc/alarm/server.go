package alarm

import (
	"context"
	"errors"
	"time"

	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/emptypb"
	"google.golang.org/protobuf/types/known/structpb"

	domain "github.com/oshokin/alarm-cond/internal/domain/alarm"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/notice"
)

// Service abstracts the business operations the transport layer depends on.
type Service interface {
	Submit(ctx context.Context, id int64, period time.Duration, message string) (domain.Alarm, bool, error)
	Cancel(ctx context.Context, id int64) (domain.Alarm, error)
	List(ctx context.Context) []domain.Alarm
}

// Subscriber opens notice subscriptions for Watch.
type Subscriber interface {
	Subscribe(ctx context.Context) *notice.Subscription
}

// Server implements the AlarmService gRPC API.
type Server struct {
	// service provides the business logic for alarm operations.
	service Service
	// notices feeds Watch streams; nil disables Watch.
	notices Subscriber
}

var _ AlarmServiceServer = (*Server)(nil)

// NewServer wires the provided service implementation into a gRPC handler.
func NewServer(service Service, notices Subscriber) *Server {
	return &Server{
		service: service,
		notices: notices,
	}
}

// Submit inserts or replaces an alarm.
func (s *Server) Submit(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	id, period, message, err := ParseSubmitRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	committed, replaced, err := s.service.Submit(ctx, id, period, message)
	if err != nil {
		return nil, toStatus(err)
	}

	return SubmitResponse(&committed, replaced), nil
}

// Cancel requests cancellation of an alarm.
func (s *Server) Cancel(ctx context.Context, req *structpb.Struct) (*structpb.Struct, error) {
	if req == nil {
		return nil, status.Error(codes.InvalidArgument, "request is required")
	}

	id, err := ParseCancelRequest(req)
	if err != nil {
		return nil, status.Error(codes.InvalidArgument, err.Error())
	}

	cancelled, err := s.service.Cancel(ctx, id)
	if err != nil {
		return nil, toStatus(err)
	}

	return CancelResponse(&cancelled), nil
}

// List returns every live alarm in ascending id order.
func (s *Server) List(ctx context.Context, _ *emptypb.Empty) (*structpb.Struct, error) {
	return ListResponse(s.service.List(ctx)), nil
}

// Watch streams notices until the client goes away.
func (s *Server) Watch(_ *emptypb.Empty, stream grpc.ServerStreamingServer[structpb.Struct]) error {
	if s.notices == nil {
		return status.Error(codes.Unimplemented, "notice streaming is disabled")
	}

	ctx := stream.Context()

	sub := s.notices.Subscribe(ctx)
	defer sub.Close() //nolint:errcheck // Close never fails.

	logger.Debug(ctx, "Watch stream opened")

	for {
		select {
		case <-ctx.Done():
			logger.Debug(ctx, "Watch stream closed by client")

			return nil
		case n, ok := <-sub.C():
			if !ok {
				return watchEnded(ctx, sub.Err())
			}

			if err := stream.Send(NoticeToStruct(&n)); err != nil {
				return err
			}
		}
	}
}

// watchEnded maps the end of a subscription to the stream result.
func watchEnded(ctx context.Context, err error) error {
	switch {
	case ctx.Err() != nil:
		return nil
	case errors.Is(err, notice.ErrSlowSubscriber):
		return status.Error(codes.ResourceExhausted, err.Error())
	case errors.Is(err, notice.ErrHubClosed):
		return status.Error(codes.Unavailable, "daemon is shutting down")
	default:
		return nil
	}
}

// toStatus maps domain errors to gRPC status codes.
func toStatus(err error) error {
	switch {
	case errors.Is(err, domain.ErrNotFound):
		return status.Error(codes.NotFound, err.Error())
	case errors.Is(err, domain.ErrAlreadyCancelling):
		return status.Error(codes.FailedPrecondition, err.Error())
	case errors.Is(err, domain.ErrInvalidID),
		errors.Is(err, domain.ErrInvalidPeriod),
		errors.Is(err, domain.ErrMessageTooLong):
		return status.Error(codes.InvalidArgument, err.Error())
	default:
		return status.Error(codes.Internal, err.Error())
	}
}

// FromStatus maps a gRPC status back to the matching domain error, wrapped
// with the server's message. Other errors are returned unchanged.
func FromStatus(err error) error {
	st, ok := status.FromError(err)
	if !ok {
		return err
	}

	var target error

	switch st.Code() {
	case codes.NotFound:
		target = domain.ErrNotFound
	case codes.FailedPrecondition:
		target = domain.ErrAlreadyCancelling
	default:
		return err
	}

	return &remoteError{target: target, msg: st.Message()}
}

// remoteError carries a server message while matching a domain sentinel.
type remoteError struct {
	// target is the matching domain error.
	target error
	// msg is the server's description.
	msg string
}

func (e *remoteError) Error() string { return e.msg }

func (e *remoteError) Unwrap() error { return e.target }
