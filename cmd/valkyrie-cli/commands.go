package main

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/spf13/cobra"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	"google.golang.org/grpc/metadata"

	"github.com/rafaeljc/valkyrie/internal/ingest"
	"github.com/rafaeljc/valkyrie/internal/ruleengine"
)

type dialFunc func(addr string) (*grpc.ClientConn, error)

func dialInsecure(addr string) (*grpc.ClientConn, error) {
	return grpc.NewClient(addr, grpc.WithTransportCredentials(insecure.NewCredentials()))
}

type globalOptions struct {
	addr      string
	timeout   time.Duration
	requestID string
}

func newRootCmd(dial dialFunc) *cobra.Command {
	opts := &globalOptions{}

	root := &cobra.Command{
		Use:           "valkyrie-cli",
		Short:         "Operate the valkyrie automation engine",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.PersistentFlags().StringVar(&opts.addr, "addr", "localhost:50051", "gRPC address of the engine")
	root.PersistentFlags().DurationVar(&opts.timeout, "timeout", 30*time.Second, "deadline for each call")
	root.PersistentFlags().StringVar(&opts.requestID, "request-id", "", "request ID propagated to server logs (default: random)")

	root.AddCommand(
		newEvaluateCmd(opts, dial),
		newRecomputeCmd(opts, dial),
		newCheckCmd(opts, dial),
		newSweepCmd(opts, dial),
	)
	return root
}

// withClient dials the engine and runs fn with a deadline-bound context.
func withClient(cmd *cobra.Command, opts *globalOptions, dial dialFunc, fn func(ctx context.Context, c *ingest.Client) (any, error)) error {
	conn, err := dial(opts.addr)
	if err != nil {
		return fmt.Errorf("failed to connect to %s: %w", opts.addr, err)
	}
	defer conn.Close()

	reqID := opts.requestID
	if reqID == "" {
		reqID = uuid.NewString()
	}

	ctx, cancel := context.WithTimeout(cmd.Context(), opts.timeout)
	defer cancel()
	ctx = metadata.AppendToOutgoingContext(ctx, "x-request-id", reqID)

	out, err := fn(ctx, ingest.NewClient(conn))
	if err != nil {
		return err
	}
	return printJSON(cmd.OutOrStdout(), out)
}

func printJSON(w io.Writer, v any) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	return enc.Encode(v)
}

func newEvaluateCmd(opts *globalOptions, dial dialFunc) *cobra.Command {
	var (
		event   string
		rawCtx  string
		segment string
		action  string
	)

	cmd := &cobra.Command{
		Use:   "evaluate TENANT PLAYER",
		Short: "Run every active rule of a tenant for one player",
		Args:  cobra.ExactArgs(2),
		RunE: func(cmd *cobra.Command, args []string) error {
			var ec ruleengine.Context
			if rawCtx != "" {
				dec := json.NewDecoder(strings.NewReader(rawCtx))
				dec.DisallowUnknownFields()
				if err := dec.Decode(&ec); err != nil {
					return fmt.Errorf("invalid --context: %w", err)
				}
			}
			if event != "" {
				ec.EventName = event
			}
			if segment != "" {
				ec.SegmentID = segment
				ec.Action = action
			}

			return withClient(cmd, opts, dial, func(ctx context.Context, c *ingest.Client) (any, error) {
				return c.EvaluatePlayer(ctx, args[0], args[1], ec)
			})
		},
	}

	cmd.Flags().StringVar(&event, "event", "", "event name (e.g. deposit, login)")
	cmd.Flags().StringVar(&rawCtx, "context", "", "event context as a JSON object")
	cmd.Flags().StringVar(&segment, "segment", "", "segment ID for a membership transition")
	cmd.Flags().StringVar(&action, "action", "entry", "transition action: entry or exit")
	return cmd
}

func newRecomputeCmd(opts *globalOptions, dial dialFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "recompute TENANT",
		Short: "Recompute every segment of a tenant and fire transition rules",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, dial, func(ctx context.Context, c *ingest.Client) (any, error) {
				return c.RecomputeSegments(ctx, args[0])
			})
		},
	}
}

func newCheckCmd(opts *globalOptions, dial dialFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "check TENANT SEGMENT PLAYER",
		Short: "Check live whether a player matches a segment",
		Args:  cobra.ExactArgs(3),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, dial, func(ctx context.Context, c *ingest.Client) (any, error) {
				member, err := c.CheckSegment(ctx, args[0], args[1], args[2])
				if err != nil {
					return nil, err
				}
				return ingest.CheckSegmentResponse{Member: member}, nil
			})
		},
	}
}

func newSweepCmd(opts *globalOptions, dial dialFunc) *cobra.Command {
	return &cobra.Command{
		Use:   "sweep TENANT",
		Short: "Evaluate every player of a tenant with a scheduled tick",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return withClient(cmd, opts, dial, func(ctx context.Context, c *ingest.Client) (any, error) {
				return c.Sweep(ctx, args[0])
			})
		},
	}
}
