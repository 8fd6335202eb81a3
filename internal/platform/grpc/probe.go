package grpc

import (
	"context"
	"errors"
	"fmt"
	"time"

	"go.opentelemetry.io/contrib/instrumentation/google.golang.org/grpc/otelgrpc"
	gogrpc "google.golang.org/grpc"
	"google.golang.org/grpc/credentials/insecure"
	grpc_health_v1 "google.golang.org/grpc/health/grpc_health_v1"
)

const (
	probeCallTimeout = time.Second
	probeMinBackoff  = 100 * time.Millisecond
	probeMaxBackoff  = 500 * time.Millisecond
)

// DefaultClientDialOptions returns the dial options of in-process clients,
// with trace propagation when a tracer provider is registered.
func DefaultClientDialOptions() []gogrpc.DialOption {
	return []gogrpc.DialOption{
		gogrpc.WithTransportCredentials(insecure.NewCredentials()),
		gogrpc.WithStatsHandler(otelgrpc.NewClientHandler()),
	}
}

// ProbeError reports the last status seen before a probe gave up.
type ProbeError struct {
	Addr    string
	Service string
	// Status is the last reported status, empty when no check answered.
	Status string
	Err    error
}

func (e *ProbeError) Error() string {
	if e.Status != "" {
		return fmt.Sprintf("%s service %q is %s: %v", e.Addr, e.Service, e.Status, e.Err)
	}
	return fmt.Sprintf("%s service %q did not answer: %v", e.Addr, e.Service, e.Err)
}

func (e *ProbeError) Unwrap() error {
	return e.Err
}

// Probe connects to addr and polls the standard health service until
// service reports SERVING, for at most timeout. A bot that is connected to
// its chat gateway reports SERVING; one that is starting or reconnecting
// reports NOT_SERVING and is polled again.
func Probe(ctx context.Context, addr, service string, timeout time.Duration) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	conn, err := gogrpc.NewClient(addr, DefaultClientDialOptions()...)
	if err != nil {
		return fmt.Errorf("connect to %s: %w", addr, err)
	}
	defer conn.Close()
	return pollServing(ctx, grpc_health_v1.NewHealthClient(conn), addr, service)
}

func pollServing(ctx context.Context, client grpc_health_v1.HealthClient, addr, service string) error {
	if client == nil {
		return errors.New("health client is required")
	}
	last := ""
	backoff := probeMinBackoff
	for {
		callCtx, cancel := context.WithTimeout(ctx, probeCallTimeout)
		resp, err := client.Check(callCtx, &grpc_health_v1.HealthCheckRequest{Service: service})
		cancel()
		if err == nil {
			if resp.GetStatus() == grpc_health_v1.HealthCheckResponse_SERVING {
				return nil
			}
			last = resp.GetStatus().String()
		}

		select {
		case <-ctx.Done():
			return &ProbeError{Addr: addr, Service: service, Status: last, Err: ctx.Err()}
		case <-time.After(backoff):
		}
		backoff = min(backoff*2, probeMaxBackoff)
	}
}
