package config

import (
	"flag"
	"fmt"
	"os"
	"strconv"
	"time"

	"gopkg.in/yaml.v3"
)

// Flags holds parsed command-line flag values and which were set.
type Flags struct {
	Addr   string
	DB     string
	Config string
	Set    map[string]bool
}

// ParseConfigFlags parses command-line flags and returns them as a Flags struct.
func ParseConfigFlags() Flags {
	addrPtr := flag.String("addr", ":8777", "local API listen address")
	dbPtr := flag.String("db", "./.cache", "pebble DB path")
	cfgPtr := flag.String("config", "./config.yaml", "path to config file")
	flag.Parse()
	setFlags := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { setFlags[f.Name] = true })
	return Flags{Addr: *addrPtr, DB: *dbPtr, Config: *cfgPtr, Set: setFlags}
}

// Load reads and parses the YAML config file at path.
func Load(path string) (*Config, error) {
	b, err := os.ReadFile(path)
	if err != nil {
		return nil, err
	}
	var cfg Config
	if err := yaml.Unmarshal(b, &cfg); err != nil {
		return nil, fmt.Errorf("failed to parse config %s: %w", path, err)
	}
	return &cfg, nil
}

// LoadEffective loads the config file (when present) and applies environment
// overrides and defaults. A missing file is not an error; env and defaults
// still apply.
func LoadEffective(path string) (*Config, error) {
	cfg := &Config{}
	if path != "" {
		loaded, err := Load(path)
		if err != nil {
			if !os.IsNotExist(err) {
				return nil, err
			}
		} else {
			cfg = loaded
		}
	}
	applyEnv(cfg)
	applyDefaults(cfg)
	return cfg, nil
}

// applyEnv overlays CHATCACHE_* environment variables onto cfg.
func applyEnv(cfg *Config) {
	if v := os.Getenv("CHATCACHE_SERVER_ADDRESS"); v != "" {
		cfg.Server.Address = v
	}
	if v := os.Getenv("CHATCACHE_SERVER_PORT"); v != "" {
		if p, err := strconv.Atoi(v); err == nil {
			cfg.Server.Port = p
		}
	}
	if v := os.Getenv("CHATCACHE_DB_PATH"); v != "" {
		cfg.Storage.DBPath = v
	}
	if v := os.Getenv("CHATCACHE_DIRECTORY_URL"); v != "" {
		cfg.Remote.DirectoryURL = v
	}
	if v := os.Getenv("CHATCACHE_HISTORY_URL"); v != "" {
		cfg.Remote.HistoryURL = v
	}
	if v := os.Getenv("CHATCACHE_PUSH_URL"); v != "" {
		cfg.Remote.PushURL = v
	}
	if v := os.Getenv("CHATCACHE_TOKEN"); v != "" {
		cfg.Remote.Token = v
	}
	if v := os.Getenv("CHATCACHE_USERNAME"); v != "" {
		cfg.Remote.Username = v
	}
	if v := os.Getenv("CHATCACHE_LOG_LEVEL"); v != "" {
		cfg.Logging.Level = v
	}
	if v := os.Getenv("CHATCACHE_RESYNC_CRON"); v != "" {
		cfg.Sync.ResyncCron = v
	}
}

// applyDefaults fills unset tunables with their design defaults.
func applyDefaults(cfg *Config) {
	if cfg.Sync.PageLimit <= 0 {
		cfg.Sync.PageLimit = 100
	}
	if cfg.Sync.SendWatchdog.Duration() <= 0 {
		cfg.Sync.SendWatchdog = Duration(10 * time.Second)
	}
	if cfg.Sync.FetchRPS <= 0 {
		cfg.Sync.FetchRPS = 20
	}
	if cfg.Sync.FetchBurst <= 0 {
		cfg.Sync.FetchBurst = 5
	}
	if cfg.Sync.QueueCapacity <= 0 {
		cfg.Sync.QueueCapacity = 4096
	}
	if cfg.Storage.DBPath == "" {
		cfg.Storage.DBPath = "./.cache"
	}
}
