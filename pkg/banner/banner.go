package banner

import (
	"fmt"

	"chatcache/pkg/config"
)

const banner = `
 ██████╗██╗  ██╗ █████╗ ████████╗ ██████╗ █████╗  ██████╗██╗  ██╗███████╗
██╔════╝██║  ██║██╔══██╗╚══██╔══╝██╔════╝██╔══██╗██╔════╝██║  ██║██╔════╝
██║     ███████║███████║   ██║   ██║     ███████║██║     ███████║█████╗
██║     ██╔══██║██╔══██║   ██║   ██║     ██╔══██║██║     ██╔══██║██╔══╝
╚██████╗██║  ██║██║  ██║   ██║   ╚██████╗██║  ██║╚██████╗██║  ██║███████╗
 ╚═════╝╚═╝  ╚═╝╚═╝  ╚═╝   ╚═╝    ╚═════╝╚═╝  ╚═╝ ╚═════╝╚═╝  ╚═╝╚══════╝
`

// Print prints the startup banner with the effective runtime info.
func Print(cfg *config.Config, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Listen:   %s\n", cfg.Addr())
	fmt.Printf("DB Path:  %s\n", cfg.Storage.DBPath)
	fmt.Printf("User:     %s\n", cfg.Remote.Username)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	fmt.Println("\n== Endpoints ==================================================")
	fmt.Println("GET  /v1/conversations - Cached conversations with unread counts")
	fmt.Println("GET  /v1/conversations/{id}/messages - Cached messages in order")
	fmt.Println("POST /v1/conversations/{id}/messages - Send ({\"content\": \"hi\"})")
	fmt.Println("POST /v1/sync - Pull-reconcile every conversation now")
	fmt.Println("\n== Examples ===================================================")
	fmt.Printf("curl 'http://localhost%s/v1/conversations'\n", cfg.Addr())
	fmt.Printf("curl -X POST 'http://localhost%s/v1/sync'\n", cfg.Addr())
}
