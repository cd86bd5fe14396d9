package grpcinvoker

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"log/slog"
	"strings"

	"github.com/fullstorydev/grpcurl"
	"github.com/jhump/protoreflect/grpcreflect"
	"google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"

	"github.com/i2y/mcptrace/internal/usecase"
)

// Invoker forwards tool calls to gRPC upstreams that expose server reflection.
// Request and response messages are converted to and from JSON with grpcurl.
type Invoker struct {
	logger      *slog.Logger
	dialOptions []grpc.DialOption
}

// New creates a new gRPC invoker. Without options it dials in plaintext.
func New(logger *slog.Logger, dialOptions ...grpc.DialOption) *Invoker {
	if len(dialOptions) == 0 {
		dialOptions = []grpc.DialOption{grpc.WithTransportCredentials(insecure.NewCredentials())}
	}
	return &Invoker{
		logger:      logger.With("component", "grpc_invoker"),
		dialOptions: dialOptions,
	}
}

// Invoke calls details.GRPCService/details.GRPCMethod on details.GRPCTarget.
// HeaderParams are sent as request metadata.
func (i *Invoker) Invoke(ctx context.Context, details usecase.InvocationDetails, params map[string]interface{}) (interface{}, error) {
	target := strings.TrimPrefix(details.GRPCTarget, "grpc://")
	log := i.logger.With(
		slog.String("target", target),
		slog.String("service", details.GRPCService),
		slog.String("method", details.GRPCMethod),
	)
	if target == "" || details.GRPCService == "" || details.GRPCMethod == "" {
		return nil, fmt.Errorf("grpc upstream requires target, service and method")
	}

	conn, err := grpc.NewClient(target, i.dialOptions...)
	if err != nil {
		log.Error("Failed to create gRPC client", slog.Any("error", err))
		return nil, fmt.Errorf("failed to connect to gRPC server: %w", err)
	}
	defer conn.Close()

	refClient := grpcreflect.NewClientAuto(ctx, conn)
	defer refClient.Reset()
	descSource := grpcurl.DescriptorSourceFromServer(ctx, refClient)

	reqJSON, err := json.Marshal(params)
	if err != nil {
		return nil, fmt.Errorf("failed to marshal request params: %w", err)
	}
	parser, formatter, err := grpcurl.RequestParserAndFormatter(
		grpcurl.FormatJSON, descSource, bytes.NewReader(reqJSON), grpcurl.FormatOptions{})
	if err != nil {
		return nil, fmt.Errorf("failed to create request parser: %w", err)
	}

	var out bytes.Buffer
	handler := &grpcurl.DefaultEventHandler{Out: &out, Formatter: formatter}
	fullMethod := details.GRPCService + "/" + details.GRPCMethod

	log.Debug("Invoking gRPC method")
	err = grpcurl.InvokeRPC(ctx, descSource, conn, fullMethod, headerLines(details.HeaderParams), handler, parser.Next)
	if err != nil {
		log.Error("Failed to invoke RPC", slog.Any("error", err))
		return nil, fmt.Errorf("failed to invoke RPC: %w", err)
	}
	if handler.Status != nil && handler.Status.Err() != nil {
		st := handler.Status
		log.Warn("gRPC call returned error status", slog.String("code", st.Code().String()))
		return nil, fmt.Errorf("gRPC call failed: %s - %s", st.Code(), st.Message())
	}

	return decodeResponse(out.Bytes())
}

// headerLines renders metadata the way grpcurl expects it: "name: value".
func headerLines(headers map[string]string) []string {
	lines := make([]string, 0, len(headers))
	for k, v := range headers {
		lines = append(lines, k+": "+v)
	}
	return lines
}

func decodeResponse(raw []byte) (interface{}, error) {
	raw = bytes.TrimSpace(raw)
	if len(raw) == 0 {
		return map[string]interface{}{}, nil
	}
	var result interface{}
	if err := json.Unmarshal(raw, &result); err != nil {
		return nil, fmt.Errorf("failed to parse response JSON: %w", err)
	}
	return result, nil
}
