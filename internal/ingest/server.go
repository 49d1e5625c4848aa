package ingest

import (
	"log/slog"

	"google.golang.org/grpc"
	"google.golang.org/grpc/keepalive"

	"github.com/rafaeljc/valkyrie/internal/config"
	"github.com/rafaeljc/valkyrie/internal/validation"
)

// NewServer builds a gRPC server tuned from cfg with the logging and metrics
// interceptors installed. Services are registered by the caller.
func NewServer(cfg *config.IngestConfig, log *slog.Logger) *grpc.Server {
	validation.AssertNotNil(cfg, "ingest", "config")

	return grpc.NewServer(
		grpc.MaxConcurrentStreams(cfg.MaxConcurrentStreams),
		grpc.MaxRecvMsgSize(cfg.MaxRecvMsgBytes),
		grpc.KeepaliveParams(keepalive.ServerParameters{
			Time:             cfg.KeepaliveTime,
			Timeout:          cfg.KeepaliveTimeout,
			MaxConnectionAge: cfg.MaxConnectionAge,
		}),
		grpc.ChainUnaryInterceptor(
			RequestLoggerInterceptor(log),
			ObservabilityInterceptor(),
		),
	)
}
