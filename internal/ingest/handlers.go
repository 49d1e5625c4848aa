package ingest

import (
	"context"
	"errors"
	"log/slog"

	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaeljc/valkyrie/internal/logger"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
	"github.com/rafaeljc/valkyrie/internal/store"
)

// EvaluateRequest is the payload of EvaluatePlayer.
type EvaluateRequest struct {
	TenantID string             `json:"tenantId"`
	PlayerID string             `json:"playerId"`
	Context  ruleengine.Context `json:"context"`
}

// TenantRequest is the payload of RecomputeSegments and Sweep.
type TenantRequest struct {
	TenantID string `json:"tenantId"`
}

// CheckSegmentRequest is the payload of CheckSegment.
type CheckSegmentRequest struct {
	TenantID  string `json:"tenantId"`
	SegmentID string `json:"segmentId"`
	PlayerID  string `json:"playerId"`
}

// CheckSegmentResponse is the result of CheckSegment.
type CheckSegmentResponse struct {
	Member bool `json:"member"`
}

// EvaluatePlayer runs the rule engine for one player event.
//
// It returns:
//   - OK with the evaluation report, even when individual rules failed.
//   - INVALID_ARGUMENT if tenantId or playerId is missing or the context is malformed.
func (a *API) EvaluatePlayer(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)

	var req EvaluateRequest
	if err := fromStruct(in, &req); err != nil {
		log.Warn("bad request: malformed payload", slog.String("error", err.Error()))
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}
	if req.TenantID == "" || req.PlayerID == "" {
		log.Warn("bad request: missing tenantId or playerId")
		return nil, status.Error(codes.InvalidArgument, "tenantId and playerId are required")
	}

	log.Debug("evaluating player",
		slog.String("player_id", req.PlayerID),
		slog.String("event_name", req.Context.EventName),
	)

	report := a.svc.EvaluatePlayer(ctx, req.TenantID, req.PlayerID, req.Context)
	return respond(log, report)
}

// RecomputeSegments recomputes every segment of a tenant.
func (a *API) RecomputeSegments(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)

	tenantID, err := tenantOf(in)
	if err != nil {
		return nil, err
	}

	res, err := a.svc.RecomputeSegments(ctx, tenantID)
	if err != nil {
		return nil, toStatus(log, err, "failed to recompute segments")
	}
	return respond(log, res)
}

// CheckSegment reports whether a player currently matches a segment.
//
// It returns NOT_FOUND if the segment does not exist for the tenant.
func (a *API) CheckSegment(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)

	var req CheckSegmentRequest
	if err := fromStruct(in, &req); err != nil {
		return nil, status.Error(codes.InvalidArgument, "malformed request")
	}
	if req.TenantID == "" || req.SegmentID == "" || req.PlayerID == "" {
		log.Warn("bad request: missing tenantId, segmentId or playerId")
		return nil, status.Error(codes.InvalidArgument, "tenantId, segmentId and playerId are required")
	}

	member, err := a.svc.CheckSegment(ctx, req.TenantID, req.SegmentID, req.PlayerID)
	if err != nil {
		return nil, toStatus(log, err, "failed to check segment membership")
	}
	return respond(log, CheckSegmentResponse{Member: member})
}

// Sweep evaluates every known player of a tenant with a scheduled tick.
func (a *API) Sweep(ctx context.Context, in *structpb.Struct) (*structpb.Struct, error) {
	log := logger.FromContext(ctx)

	tenantID, err := tenantOf(in)
	if err != nil {
		return nil, err
	}

	res, err := a.svc.Sweep(ctx, tenantID)
	if err != nil {
		return nil, toStatus(log, err, "failed to sweep players")
	}
	return respond(log, res)
}

func tenantOf(in *structpb.Struct) (string, error) {
	var req TenantRequest
	if err := fromStruct(in, &req); err != nil {
		return "", status.Error(codes.InvalidArgument, "malformed request")
	}
	if req.TenantID == "" {
		return "", status.Error(codes.InvalidArgument, "tenantId is required")
	}
	return req.TenantID, nil
}

func respond(log *slog.Logger, v any) (*structpb.Struct, error) {
	out, err := toStruct(v)
	if err != nil {
		log.Error("failed to encode response", slog.String("error", err.Error()))
		return nil, status.Error(codes.Internal, "failed to encode response")
	}
	return out, nil
}

// toStatus maps core errors to gRPC codes without leaking internals.
func toStatus(log *slog.Logger, err error, msg string) error {
	switch {
	case errors.Is(err, store.ErrNotFound):
		return status.Error(codes.NotFound, "not found")
	case errors.Is(err, context.Canceled), errors.Is(err, context.DeadlineExceeded):
		return status.FromContextError(err).Err()
	}

	log.Error(msg, slog.String("error", err.Error()))
	return status.Error(codes.Internal, msg)
}
