// Package dicebot parses bot flags and launches the bot.
package dicebot

import (
	"context"
	"flag"
	"fmt"

	"github.com/louisbranch/dicebot/internal/dice/evalcache"
	entrypoint "github.com/louisbranch/dicebot/internal/platform/cmd"
	"github.com/louisbranch/dicebot/internal/platform/otel"
	"github.com/louisbranch/dicebot/internal/platform/timeouts"
	server "github.com/louisbranch/dicebot/internal/services/dicebot/app"
)

// Config holds bot command configuration.
type Config struct {
	DiscordToken string `env:"DICEBOT_DISCORD_TOKEN"`
	DBPath       string `env:"DICEBOT_DB_PATH" envDefault:"data/dicebot.db"`
	HealthPort   int    `env:"DICEBOT_HEALTH_PORT" envDefault:"8093"`

	ExpressionCacheHot  int `env:"DICEBOT_EXPRESSION_CACHE_HOT" envDefault:"64"`
	ExpressionCacheSize int `env:"DICEBOT_EXPRESSION_CACHE_SIZE" envDefault:"1024"`
	MaxDice             int `env:"DICEBOT_MAX_DICE" envDefault:"1000"`
	ButtonCacheChannels int `env:"DICEBOT_BUTTON_CACHE_CHANNELS" envDefault:"10000"`

	// Memory keeps every record in process memory and ignores DBPath.
	Memory bool `env:"DICEBOT_MEMORY_STORE"`

	Telemetry otel.Config
}

// ParseConfig parses environment and flags into Config.
func ParseConfig(fs *flag.FlagSet, args []string) (Config, error) {
	var cfg Config
	if err := entrypoint.ParseConfig(&cfg); err != nil {
		return Config{}, err
	}
	bindFlags(fs, &cfg)
	if err := entrypoint.ParseArgs(fs, args); err != nil {
		return Config{}, err
	}
	return cfg, nil
}

func bindFlags(fs *flag.FlagSet, cfg *Config) {
	fs.StringVar(&cfg.DBPath, "db", cfg.DBPath, "The SQLite database path")
	fs.BoolVar(&cfg.Memory, "memory", cfg.Memory, "Keep records in memory instead of SQLite")
	fs.IntVar(&cfg.HealthPort, "health-port", cfg.HealthPort, "The gRPC health server port")
	fs.IntVar(&cfg.MaxDice, "max-dice", cfg.MaxDice, "The most dice one expression may roll")
}

// Options converts cfg into server options.
func (cfg Config) Options() server.Options {
	dbPath := cfg.DBPath
	if cfg.Memory {
		dbPath = ""
	}
	return server.Options{
		DiscordToken: cfg.DiscordToken,
		DBPath:       dbPath,
		HealthAddr:   fmt.Sprintf(":%d", cfg.HealthPort),
		Eval: evalcache.Options{
			HotSize: cfg.ExpressionCacheHot,
			Size:    cfg.ExpressionCacheSize,
			MaxDice: cfg.MaxDice,
		},
		ButtonCacheChannels: cfg.ButtonCacheChannels,
	}
}

// Run starts the bot and its health server.
func Run(ctx context.Context, cfg Config) error {
	options := entrypoint.RunOptions{
		ShutdownTimeout: timeouts.Shutdown,
		Telemetry:       cfg.Telemetry,
	}
	return entrypoint.RunWithTelemetry(ctx, entrypoint.ServiceDicebot, options, func(ctx context.Context) error {
		return server.Run(ctx, cfg.Options())
	})
}
