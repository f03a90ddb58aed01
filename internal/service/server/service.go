package server

import (
	"context"
	"io"

	"google.golang.org/grpc"

	api "github.com/oshokin/alarm-cond/internal/api/grpc/alarm"
	"github.com/oshokin/alarm-cond/internal/config"
	"github.com/oshokin/alarm-cond/internal/intake/console"
	"github.com/oshokin/alarm-cond/internal/logger"
	"github.com/oshokin/alarm-cond/internal/notice"
	"github.com/oshokin/alarm-cond/internal/repository/alarms"
	"github.com/oshokin/alarm-cond/internal/service/common"
	"github.com/oshokin/alarm-cond/internal/service/scheduler"
)

// daemon holds the wired components of one alarm-cond process.
type daemon struct {
	// store owns every live alarm.
	store *alarms.Store
	// hub broadcasts notices to Watch streams.
	hub *notice.Hub
	// scheduler runs the coordinator and display workers.
	scheduler *scheduler.Scheduler
	// console is the interactive front-end.
	console *console.Console
}

// newDaemon wires the store, the notice sinks, the scheduler and the console.
// Notices and rejected cancels are written to stdout and notices are published
// to the hub; unparsable console lines are reported on stderr.
func newDaemon(settings *config.Config, stdout, stderr io.Writer) *daemon {
	var (
		store = alarms.New()
		hub   = notice.NewHub(settings.WatchBuffer)
		sched = scheduler.New(store, notice.Multi{notice.NewWriter(stdout), hub})
	)

	return &daemon{
		store:     store,
		hub:       hub,
		scheduler: sched,
		console:   console.New(sched, stdout, stderr),
	}
}

// grpcServer builds a gRPC server exposing the daemon.
func (d *daemon) grpcServer() *grpc.Server {
	gs := grpc.NewServer(
		grpc.ChainUnaryInterceptor(actorUnaryInterceptor),
		grpc.ChainStreamInterceptor(actorStreamInterceptor),
	)

	api.RegisterAlarmServiceServer(gs, api.NewServer(d.scheduler, d.hub))

	return gs
}

// withActor tags the logger in ctx with the calling actor, when the client sent one.
func withActor(ctx context.Context) context.Context {
	actor, ok := common.ActorFromContext(ctx)
	if !ok {
		return ctx
	}

	return logger.WithKV(ctx, "actor", actor)
}

func actorUnaryInterceptor(
	ctx context.Context,
	req any,
	info *grpc.UnaryServerInfo,
	handler grpc.UnaryHandler,
) (any, error) {
	ctx = withActor(ctx)

	resp, err := handler(ctx, req)
	if err != nil {
		logger.DebugKV(ctx, "Request failed", "method", info.FullMethod, "error", err)
	} else {
		logger.DebugKV(ctx, "Request served", "method", info.FullMethod)
	}

	return resp, err
}

func actorStreamInterceptor(srv any, ss grpc.ServerStream, info *grpc.StreamServerInfo, handler grpc.StreamHandler) error {
	ctx := withActor(ss.Context())
	logger.DebugKV(ctx, "Stream opened", "method", info.FullMethod)

	return handler(srv, &taggedStream{ServerStream: ss, ctx: ctx})
}

// taggedStream overrides the stream context with the actor-tagged one.
type taggedStream struct {
	grpc.ServerStream

	// ctx is returned by Context.
	ctx context.Context
}

func (s *taggedStream) Context() context.Context {
	return s.ctx
}
