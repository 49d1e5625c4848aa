package ingest

import (
	"context"
	"fmt"

	"google.golang.org/grpc"
	"google.golang.org/protobuf/types/known/structpb"

	"github.com/rafaeljc/valkyrie/internal/automation"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

// Client calls valkyrie.v1.Automation over an existing connection.
type Client struct {
	conn grpc.ClientConnInterface
}

// NewClient wraps a client connection.
func NewClient(conn grpc.ClientConnInterface) *Client {
	if conn == nil {
		panic("ingest: client connection cannot be nil")
	}
	return &Client{conn: conn}
}

// EvaluatePlayer asks the server to run the rule engine for one player event.
func (c *Client) EvaluatePlayer(ctx context.Context, tenantID, playerID string, ec ruleengine.Context, opts ...grpc.CallOption) (*ruleengine.Report, error) {
	var out ruleengine.Report
	req := EvaluateRequest{TenantID: tenantID, PlayerID: playerID, Context: ec}
	if err := c.invoke(ctx, MethodEvaluatePlayer, req, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// RecomputeSegments asks the server to recompute every segment of a tenant.
func (c *Client) RecomputeSegments(ctx context.Context, tenantID string, opts ...grpc.CallOption) (*automation.RecomputeResult, error) {
	var out automation.RecomputeResult
	if err := c.invoke(ctx, MethodRecomputeSegments, TenantRequest{TenantID: tenantID}, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

// CheckSegment asks whether a player currently matches a segment.
func (c *Client) CheckSegment(ctx context.Context, tenantID, segmentID, playerID string, opts ...grpc.CallOption) (bool, error) {
	var out CheckSegmentResponse
	req := CheckSegmentRequest{TenantID: tenantID, SegmentID: segmentID, PlayerID: playerID}
	if err := c.invoke(ctx, MethodCheckSegment, req, &out, opts...); err != nil {
		return false, err
	}
	return out.Member, nil
}

// Sweep asks the server to evaluate every player of a tenant with a scheduled tick.
func (c *Client) Sweep(ctx context.Context, tenantID string, opts ...grpc.CallOption) (*automation.SweepResult, error) {
	var out automation.SweepResult
	if err := c.invoke(ctx, MethodSweep, TenantRequest{TenantID: tenantID}, &out, opts...); err != nil {
		return nil, err
	}
	return &out, nil
}

func (c *Client) invoke(ctx context.Context, method string, req, out any, opts ...grpc.CallOption) error {
	in, err := toStruct(req)
	if err != nil {
		return err
	}

	resp := new(structpb.Struct)
	if err := c.conn.Invoke(ctx, FullMethod(method), in, resp, opts...); err != nil {
		return err
	}

	if err := fromStruct(resp, out); err != nil {
		return fmt.Errorf("%s: %w", method, err)
	}
	return nil
}
