// Package timeouts defines shared timeout constants used across the bot
// process and its probes.
package timeouts

import "time"

// GRPCDial caps a health probe, from dial to a SERVING answer.
const GRPCDial = 2 * time.Second

// PlatformCall caps a single outbound chat platform request.
const PlatformCall = 10 * time.Second

// Interaction caps the handling of one gateway event. Click handling
// detaches from it once accepted and is bounded per call by PlatformCall.
const Interaction = 30 * time.Second

// Shutdown limits how long the process waits for in-flight handling to
// drain during graceful shutdown.
const Shutdown = 5 * time.Second
