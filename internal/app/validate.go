package app

import (
	"fmt"

	"github.com/adhocore/gronx"

	"chatcache/pkg/config"
)

// validateConfig checks the effective config early and fails fast.
func validateConfig(cfg *config.Config) error {
	if cfg == nil {
		return fmt.Errorf("nil config")
	}
	if cfg.Remote.Username == "" {
		return fmt.Errorf("remote.username is required")
	}
	if cfg.Remote.DirectoryURL == "" {
		return fmt.Errorf("remote.directory_url is required")
	}
	if cfg.Remote.HistoryURL == "" {
		return fmt.Errorf("remote.history_url is required")
	}
	if cfg.Storage.DBPath == "" {
		return fmt.Errorf("storage.db_path is required")
	}
	if expr := cfg.Sync.ResyncCron; expr != "" {
		if !gronx.New().IsValid(expr) {
			return fmt.Errorf("sync.resync_cron is not a valid cron expression: %q", expr)
		}
	}
	if cfg.Sync.PageLimit < 0 {
		return fmt.Errorf("sync.page_limit must not be negative")
	}
	return nil
}
