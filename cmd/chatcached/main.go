package main

import (
	"context"
	"log"
	"os"
	"os/signal"
	"strconv"
	"strings"
	"syscall"

	"github.com/joho/godotenv"

	"chatcache/internal/app"
	"chatcache/pkg/config"
	"chatcache/pkg/logger"
)

func main() {
	// build metadata - set via ldflags during build/release
	var version = "dev"

	_ = godotenv.Load(".env")
	flags := config.ParseConfigFlags()

	cfgPath := flags.Config
	if !flags.Set["config"] {
		if envPath := os.Getenv("CHATCACHE_CONFIG"); envPath != "" {
			cfgPath = envPath
		}
	}

	cfg, err := config.LoadEffective(cfgPath)
	if err != nil {
		log.Fatalf("failed to load config: %v", err)
	}

	// explicit flags win over env/config
	if flags.Set["addr"] {
		host, port, ok := strings.Cut(flags.Addr, ":")
		if !ok {
			log.Fatalf("invalid -addr %q", flags.Addr)
		}
		p, err := strconv.Atoi(port)
		if err != nil {
			log.Fatalf("invalid -addr port %q", port)
		}
		cfg.Server.Address = host
		cfg.Server.Port = p
	}
	if flags.Set["db"] {
		cfg.Storage.DBPath = flags.DB
	}

	logger.InitWithLevel(cfg.Logging.Level)
	defer logger.Sync()

	a, err := app.New(cfg, version)
	if err != nil {
		log.Fatalf("failed to initialize: %v", err)
	}

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := a.Run(ctx); err != nil {
		log.Fatalf("daemon exited: %v", err)
	}
}
