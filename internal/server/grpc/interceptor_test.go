package grpc

import (
	"bytes"
	"context"
	"log/slog"
	"strings"
	"testing"

	"github.com/dmitrijs2005/ordvault/internal/logging"
	"google.golang.org/grpc"
	"google.golang.org/grpc/codes"
	"google.golang.org/grpc/status"
)

func newTestServer(buf *bytes.Buffer) *GRPCServer {
	h := slog.NewTextHandler(buf, &slog.HandlerOptions{Level: slog.LevelDebug})
	return NewGRPCServer("127.0.0.1:0", logging.NewSlogLogger(slog.New(h)))
}

func TestInterceptor_PassesThrough(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf)

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Method"}
	handlerCalled := false
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		handlerCalled = true
		return "ok", nil
	}

	resp, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !handlerCalled {
		t.Fatal("handler was not called")
	}
	if resp != "ok" {
		t.Fatalf("unexpected handler resp: %v", resp)
	}
	if !strings.Contains(buf.String(), "method=/pkg.Service/Method") || !strings.Contains(buf.String(), "code=OK") {
		t.Fatalf("call not logged: %q", buf.String())
	}
}

func TestInterceptor_KeepsStatus(t *testing.T) {
	var buf bytes.Buffer
	s := newTestServer(&buf)

	info := &grpc.UnaryServerInfo{FullMethod: "/pkg.Service/Method"}
	h := func(ctx context.Context, req interface{}) (interface{}, error) {
		return nil, status.Error(codes.NotFound, "unknown service")
	}

	_, err := s.loggingInterceptor(context.Background(), nil, info, h)
	if status.Code(err) != codes.NotFound {
		t.Fatalf("expected NotFound, got %v", status.Code(err))
	}
	if !strings.Contains(buf.String(), "grpc call failed") {
		t.Fatalf("failure not logged: %q", buf.String())
	}
}
