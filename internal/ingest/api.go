// Package ingest implements the gRPC surface through which event-ingestion
// collaborators drive the automation core.
//
// The service is registered by hand with a grpc.ServiceDesc whose messages are
// google.protobuf.Struct values, so no generated code is needed.
package ingest

import (
	"context"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaeljc/valkyrie/internal/automation"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

// ServiceName is the fully-qualified gRPC service name.
const ServiceName = "valkyrie.v1.Automation"

const (
	MethodEvaluatePlayer    = "EvaluatePlayer"
	MethodRecomputeSegments = "RecomputeSegments"
	MethodCheckSegment      = "CheckSegment"
	MethodSweep             = "Sweep"
)

// FullMethod returns the "/service/method" path of an RPC.
func FullMethod(method string) string {
	return "/" + ServiceName + "/" + method
}

// Automation is the core consumed by the API. *automation.Service implements it.
type Automation interface {
	EvaluatePlayer(ctx context.Context, tenantID, playerID string, ec ruleengine.Context) *ruleengine.Report
	RecomputeSegments(ctx context.Context, tenantID string) (*automation.RecomputeResult, error)
	CheckSegment(ctx context.Context, tenantID, segmentID, playerID string) (bool, error)
	Sweep(ctx context.Context, tenantID string) (*automation.SweepResult, error)
}

// AutomationServer is the server-side contract of valkyrie.v1.Automation.
type AutomationServer interface {
	EvaluatePlayer(context.Context, *structpb.Struct) (*structpb.Struct, error)
	RecomputeSegments(context.Context, *structpb.Struct) (*structpb.Struct, error)
	CheckSegment(context.Context, *structpb.Struct) (*structpb.Struct, error)
	Sweep(context.Context, *structpb.Struct) (*structpb.Struct, error)
}

var _ AutomationServer = (*API)(nil)

// API implements AutomationServer on top of the automation core.
type API struct {
	svc Automation
}

// NewAPI creates a new gRPC API instance.
func NewAPI(svc Automation) *API {
	if svc == nil {
		panic("ingest: automation service cannot be nil")
	}

	return &API{svc: svc}
}

// Register connects this implementation to a gRPC server.
func (a *API) Register(s grpc.ServiceRegistrar) {
	RegisterAutomationServer(s, a)
}

// RegisterAutomationServer registers srv under ServiceName.
func RegisterAutomationServer(s grpc.ServiceRegistrar, srv AutomationServer) {
	s.RegisterService(&serviceDesc, srv)
}

type unaryCall func(AutomationServer, context.Context, *structpb.Struct) (*structpb.Struct, error)

// unaryHandler adapts a typed call to grpc.MethodHandler, routing through the
// interceptor chain the same way generated code does.
func unaryHandler(method string, call unaryCall) grpc.MethodHandler {
	fullMethod := FullMethod(method)

	return func(srv any, ctx context.Context, dec func(any) error, interceptor grpc.UnaryServerInterceptor) (any, error) {
		in := new(structpb.Struct)
		if err := dec(in); err != nil {
			return nil, err
		}
		if interceptor == nil {
			return call(srv.(AutomationServer), ctx, in)
		}

		handler := func(ctx context.Context, req any) (any, error) {
			return call(srv.(AutomationServer), ctx, req.(*structpb.Struct))
		}
		return interceptor(ctx, in, &grpc.UnaryServerInfo{Server: srv, FullMethod: fullMethod}, handler)
	}
}

var serviceDesc = grpc.ServiceDesc{
	ServiceName: ServiceName,
	HandlerType: (*AutomationServer)(nil),
	Methods: []grpc.MethodDesc{
		{
			MethodName: MethodEvaluatePlayer,
			Handler: unaryHandler(MethodEvaluatePlayer, func(s AutomationServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.EvaluatePlayer(ctx, in)
			}),
		},
		{
			MethodName: MethodRecomputeSegments,
			Handler: unaryHandler(MethodRecomputeSegments, func(s AutomationServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.RecomputeSegments(ctx, in)
			}),
		},
		{
			MethodName: MethodCheckSegment,
			Handler: unaryHandler(MethodCheckSegment, func(s AutomationServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.CheckSegment(ctx, in)
			}),
		},
		{
			MethodName: MethodSweep,
			Handler: unaryHandler(MethodSweep, func(s AutomationServer, ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
				return s.Sweep(ctx, in)
			}),
		},
	},
	Streams:  []grpc.StreamDesc{},
	Metadata: "valkyrie/v1/automation.proto",
}
