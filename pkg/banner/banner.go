package banner

import (
	"fmt"
	"strings"

	"hubsync/pkg/config"
)

const banner = `
██╗  ██╗██╗   ██╗██████╗ ███████╗██╗   ██╗███╗   ██╗ ██████╗
██║  ██║██║   ██║██╔══██╗██╔════╝╚██╗ ██╔╝████╗  ██║██╔════╝
███████║██║   ██║██████╔╝███████╗ ╚████╔╝ ██╔██╗ ██║██║
██╔══██║██║   ██║██╔══██╗╚════██║  ╚██╔╝  ██║╚██╗██║██║
██║  ██║╚██████╔╝██████╔╝███████║   ██║   ██║ ╚████║╚██████╗
╚═╝  ╚═╝ ╚═════╝ ╚═════╝ ╚══════╝   ╚═╝   ╚═╝  ╚═══╝ ╚═════╝
`

// PrintWithEff prints the startup banner using the effective config so
// operators can verify what the reconciler will talk to at a glance.
func PrintWithEff(eff config.EffectiveConfigResult, version string) {
	fmt.Print(banner)
	fmt.Println("== Config =====================================================")
	fmt.Printf("Status:   %s\n", eff.StatusAddr)
	fmt.Printf("Cache:    %s\n", eff.CachePath)
	if version != "" {
		fmt.Printf("Version:  %s\n", version)
	}
	if len(eff.Sources) > 0 {
		fmt.Printf("Config sources: %s\n", strings.Join(eff.Sources, ", "))
	}

	fmt.Println("\n== Checks =====================================================")
	cfg := eff.Config
	if cfg == nil {
		fmt.Println("- Config: MISSING")
		return
	}
	if cfg.Hub.BaseURL != "" {
		fmt.Printf("- Hub: %s\n", cfg.Hub.BaseURL)
	} else {
		fmt.Println("- Hub: MISSING (set hub.base_url or HUBSYNC_HUB_BASE_URL)")
	}
	if cfg.Hub.APIKey != "" {
		fmt.Println("- Hub API key: OK")
	} else {
		fmt.Println("- Hub API key: MISSING (required for hub access)")
	}
	switch cfg.Realtime.Adapter {
	case "redis":
		fmt.Printf("- Realtime: redis (%s)\n", cfg.Realtime.Redis.Addr)
	case "websocket":
		fmt.Printf("- Realtime: websocket (%s)\n", cfg.Realtime.Websocket.URL)
	default:
		fmt.Println("- Realtime: in-process only (no live updates across devices)")
	}
	if cfg.Retention.Enabled {
		fmt.Printf("- Cache retention: enabled (cron=%s undo_window=%s)\n",
			cfg.Retention.Cron, cfg.Retention.UndoWindow.Std())
	} else {
		fmt.Println("- Cache retention: disabled")
	}

	fmt.Println("\n== Logs: =================================================")
}
