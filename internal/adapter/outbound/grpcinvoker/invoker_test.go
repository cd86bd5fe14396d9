package grpcinvoker

import (
	"context"
	"log/slog"
	"net"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
	"google.golang.org/grpc/reflection"

	"github.com/i2y/mcptrace/internal/usecase"
)

func startHealthServer(t *testing.T) string {
	t.Helper()
	lis, err := net.Listen("tcp", "127.0.0.1:0")
	require.NoError(t, err)

	srv := grpc.NewServer()
	hs := health.NewServer()
	hs.SetServingStatus("reminders", healthpb.HealthCheckResponse_SERVING)
	healthpb.RegisterHealthServer(srv, hs)
	reflection.Register(srv)

	go srv.Serve(lis)
	t.Cleanup(srv.Stop)
	return lis.Addr().String()
}

func TestInvoker_Invoke(t *testing.T) {
	target := startHealthServer(t)
	inv := New(slog.New(slog.DiscardHandler))

	tests := []struct {
		name    string
		params  map[string]interface{}
		want    interface{}
		wantErr string
	}{
		{
			name:   "known service is serving",
			params: map[string]interface{}{"service": "reminders"},
			want:   map[string]interface{}{"status": "SERVING"},
		},
		{
			name:    "unknown service returns status error",
			params:  map[string]interface{}{"service": "missing"},
			wantErr: "NotFound",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got, err := inv.Invoke(context.Background(), usecase.InvocationDetails{
				Type:         usecase.UpstreamGRPC,
				GRPCTarget:   "grpc://" + target,
				GRPCService:  "grpc.health.v1.Health",
				GRPCMethod:   "Check",
				HeaderParams: map[string]string{"x-request-source": "test"},
			}, tt.params)
			if tt.wantErr != "" {
				assert.ErrorContains(t, err, tt.wantErr)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.want, got)
		})
	}
}

func TestInvoker_RequiresTarget(t *testing.T) {
	inv := New(slog.New(slog.DiscardHandler))
	_, err := inv.Invoke(context.Background(), usecase.InvocationDetails{Type: usecase.UpstreamGRPC}, nil)
	assert.ErrorContains(t, err, "requires target")
}

func TestHeaderLines(t *testing.T) {
	assert.Equal(t, []string{"authorization: Bearer x"}, headerLines(map[string]string{"authorization": "Bearer x"}))
	assert.Empty(t, headerLines(nil))
}

func TestDecodeResponse(t *testing.T) {
	got, err := decodeResponse([]byte("  \n"))
	require.NoError(t, err)
	assert.Equal(t, map[string]interface{}{}, got)

	_, err = decodeResponse([]byte("{"))
	assert.Error(t, err)
}
