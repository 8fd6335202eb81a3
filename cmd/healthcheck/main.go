// Package main probes the bot health endpoint and exits non-zero unless it
// reports SERVING. Container health checks run it.
package main

import (
	"context"
	"flag"
	"fmt"
	"os"

	platformgrpc "github.com/louisbranch/dicebot/internal/platform/grpc"
	"github.com/louisbranch/dicebot/internal/platform/timeouts"
)

func main() {
	addr := flag.String("addr", "localhost:8093", "The gRPC health server address")
	service := flag.String("service", "dicebot", "The health service name")
	flag.Parse()

	if err := platformgrpc.Probe(context.Background(), *addr, *service, timeouts.GRPCDial); err != nil {
		// Health checks read stderr; there is no log prefix to keep.
		fmt.Fprintf(os.Stderr, "healthcheck: %v\n", err)
		os.Exit(1)
	}
}
