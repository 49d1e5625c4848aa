package ingest

import (
	"context"
	"log/slog"
	"time"

	"github.com/google/uuid"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/metadata"
	"google.golang.org/grpc/peer"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/observability"
)

// RequestLoggerInterceptor resolves a request ID (x-request-id metadata or a
// fresh UUID), injects a request-scoped logger into the context and logs the
// outcome of every RPC. A nil base logger falls back to slog.Default().
func RequestLoggerInterceptor(base *slog.Logger) grpc.UnaryServerInterceptor {
	if base == nil {
		base = slog.Default()
	}

	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()

		reqID := ""
		if md, ok := metadata.FromIncomingContext(ctx); ok {
			if ids := md.Get("x-request-id"); len(ids) > 0 {
				reqID = ids[0]
			}
		}
		if reqID == "" {
			reqID = uuid.NewString()
		}

		attrs := []any{
			slog.String("request_id", reqID),
			slog.String("rpc_method", info.FullMethod),
		}
		if s, ok := req.(*structpb.Struct); ok {
			if tenant := s.GetFields()["tenantId"].GetStringValue(); tenant != "" {
				attrs = append(attrs, slog.String("tenant_id", tenant))
			}
		}
		rpcLogger := base.With(attrs...)

		newCtx := logger.WithContext(ctx, rpcLogger)
		resp, err := handler(newCtx, req)

		code := status.Code(err)
		level := slog.LevelInfo
		switch code {
		case codes.Internal, codes.Unavailable, codes.DataLoss, codes.Unknown:
			level = slog.LevelError
		case codes.DeadlineExceeded, codes.Unimplemented:
			level = slog.LevelWarn
		}

		rpcLogger.Log(newCtx, level, "grpc request completed",
			slog.String("code", code.String()),
			slog.Duration("duration", time.Since(start)),
			slog.String("peer_addr", peerAddr(ctx)),
		)

		return resp, err
	}
}

// ObservabilityInterceptor records latency and request counts per method and code.
func ObservabilityInterceptor() grpc.UnaryServerInterceptor {
	return func(ctx context.Context, req any, info *grpc.UnaryServerInfo, handler grpc.UnaryHandler) (any, error) {
		start := time.Now()
		resp, err := handler(ctx, req)

		code := status.Code(err).String()
		observability.IngestGrpcDuration.WithLabelValues(info.FullMethod, code).Observe(time.Since(start).Seconds())
		observability.IngestGrpcTotal.WithLabelValues(info.FullMethod, code).Inc()

		return resp, err
	}
}

func peerAddr(ctx context.Context) string {
	if p, ok := peer.FromContext(ctx); ok && p.Addr != nil {
		return p.Addr.String()
	}
	return "unknown"
}
