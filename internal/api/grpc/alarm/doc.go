// Package alarm implements the gRPC transport for the alarm daemon.
//
// The service alarmcond.v1.AlarmService is described by a hand-written
// grpc.ServiceDesc whose messages are protobuf well-known types:
// requests and responses are google.protobuf.Struct objects and Watch
// streams one Struct per notice. The codec helpers in this package build
// and parse those objects, so both the server and the client agree on the
// field names without generated code.
//
// Domain errors map to status codes: invalid input to InvalidArgument,
// an unknown id to NotFound and a repeated cancel to FailedPrecondition.
package alarm
