// Package server wires the bot runtime: storage, caches, the command engine,
// the Discord gateway and the gRPC health endpoint.
package server

import (
	"context"
	"errors"
	"fmt"
	"log"
	"os"
	"path/filepath"
	"strings"

	"github.com/louisbranch/dicebot/internal/dice/evalcache"
	platformgrpc "github.com/louisbranch/dicebot/internal/platform/grpc"
	"github.com/louisbranch/dicebot/internal/platform/i18n/catalog"
	"github.com/louisbranch/dicebot/internal/random"
	"github.com/louisbranch/dicebot/internal/services/dicebot/buttoncache"
	"github.com/louisbranch/dicebot/internal/services/dicebot/chat"
	"github.com/louisbranch/dicebot/internal/services/dicebot/command"
	"github.com/louisbranch/dicebot/internal/services/dicebot/discord"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage/memory"
	"github.com/louisbranch/dicebot/internal/services/dicebot/storage/sqlite"
)

// HealthService is the gRPC health service name reported by the bot.
const HealthService = "dicebot"

// Options configures a Server.
type Options struct {
	DiscordToken string
	// DBPath is the SQLite file. Empty keeps every record in memory.
	DBPath              string
	HealthAddr          string
	Eval                evalcache.Options
	ButtonCacheChannels int
}

// gatewayFunc runs the chat gateway until ctx ends, calling ready once
// connected.
type gatewayFunc func(ctx context.Context, ready func()) error

// Server owns the bot lifecycle.
type Server struct {
	health    *platformgrpc.HealthServer
	store     storage.Store
	evaluator *evalcache.Cache
	engine    *command.Engine
	gateway   gatewayFunc
}

// New opens storage and builds every runtime component. The gateway is not
// connected until Serve.
func New(opts Options) (*Server, error) {
	session, err := discord.NewSession(opts.DiscordToken)
	if err != nil {
		return nil, err
	}
	platform, err := discord.NewPlatform(session)
	if err != nil {
		return nil, err
	}
	srv, err := newServer(opts, platform)
	if err != nil {
		return nil, err
	}
	handler, err := discord.NewHandler(srv.engine, session)
	if err != nil {
		srv.Close()
		return nil, err
	}
	srv.gateway = func(ctx context.Context, ready func()) error {
		return discord.Run(ctx, session, handler, ready)
	}
	return srv, nil
}

func newServer(opts Options, platform chat.Platform) (*Server, error) {
	source, err := random.NewSeededSource()
	if err != nil {
		return nil, fmt.Errorf("seed random source: %w", err)
	}
	evaluator, err := evalcache.New(source, opts.Eval)
	if err != nil {
		return nil, err
	}
	live, err := buttoncache.New(opts.ButtonCacheChannels)
	if err != nil {
		return nil, err
	}
	store, err := openStore(opts.DBPath)
	if err != nil {
		return nil, err
	}
	engine, err := command.NewEngine(command.Options{
		Store:     store,
		Platform:  platform,
		Evaluator: evaluator,
		Live:      live,
		Messages:  catalog.Default(),
	})
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	health, err := platformgrpc.NewHealthServer(opts.HealthAddr, HealthService)
	if err != nil {
		_ = store.Close()
		return nil, err
	}
	return &Server{
		health:    health,
		store:     store,
		evaluator: evaluator,
		engine:    engine,
	}, nil
}

// Addr returns the health listener address.
func (s *Server) Addr() string {
	if s == nil {
		return ""
	}
	return s.health.Addr()
}

// Run creates and serves a bot until ctx ends.
func Run(ctx context.Context, opts Options) error {
	srv, err := New(opts)
	if err != nil {
		return err
	}
	return srv.Serve(ctx)
}

// Serve runs the health server and the gateway until ctx ends or either
// fails. Health reports SERVING once the gateway is ready.
func (s *Server) Serve(ctx context.Context) error {
	if s == nil {
		return errors.New("server is nil")
	}
	if s.gateway == nil {
		return errors.New("gateway is not configured")
	}
	if ctx == nil {
		ctx = context.Background()
	}
	defer s.Close()

	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errs := make(chan error, 2)
	go func() {
		errs <- s.health.Serve(ctx)
	}()
	go func() {
		err := s.gateway(ctx, func() { s.health.SetServing(true) })
		s.health.SetServing(false)
		errs <- err
	}()

	first := <-errs
	cancel()
	second := <-errs

	stats := s.evaluator.Stats()
	log.Printf("expression cache: %d hits, %d misses, %d entries", stats.Hits, stats.Misses, stats.OverallLen)
	return errors.Join(first, second)
}

// Close releases server resources.
func (s *Server) Close() {
	if s == nil {
		return
	}
	s.health.Close()
	if s.store != nil {
		if err := s.store.Close(); err != nil {
			log.Printf("close bot store: %v", err)
		}
		s.store = nil
	}
}

func openStore(path string) (storage.Store, error) {
	if strings.TrimSpace(path) == "" {
		log.Printf("no database path configured, keeping records in memory")
		return memory.New(), nil
	}
	if dir := filepath.Dir(path); dir != "." {
		if err := os.MkdirAll(dir, 0o755); err != nil {
			return nil, fmt.Errorf("create storage dir: %w", err)
		}
	}
	store, err := sqlite.Open(path)
	if err != nil {
		return nil, fmt.Errorf("open bot sqlite store: %w", err)
	}
	return store, nil
}
