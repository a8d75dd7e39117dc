package cli

import (
	"encoding/json"
	"fmt"
	"net/http"
	"os"
	"path/filepath"
	"time"

	"github.com/spf13/cobra"

	"github.com/voxrelay/voxrelay/internal/config"
)

var versionCmd = &cobra.Command{
	Use:   "version",
	Short: "Print version information",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("🏷️ voxrelay Version")
		fmt.Printf("Version: %s\n", version)
	},
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "Show system status",
	Run: func(cmd *cobra.Command, args []string) {
		printHeader("📊 voxrelay Status")
		fmt.Printf("Version: %s\n", version)

		// Check config
		configPath, _ := config.ConfigPath()
		if _, err := os.Stat(configPath); err == nil {
			fmt.Println("Config:  ✓ Found (" + configPath + ")")
		} else {
			fmt.Println("Config:  ✗ Not found (using defaults)")
		}

		// Check API key presence
		var cfg *config.Config
		if c, err := config.Load(); err == nil {
			cfg = c
			if cfg.Providers.OpenAI.APIKey != "" {
				fmt.Println("API Key: ✓ Found")
			} else {
				fmt.Println("API Key: ✗ Not found")
			}
		} else {
			fmt.Println("API Key: ? Unable to load config")
		}

		if cfg != nil {
			printChannelStatus("Telegram", cfg.Channels.Telegram.Enabled)
			printChannelStatus("Slack", cfg.Channels.Slack.Enabled)
			printChannelStatus("WhatsApp", cfg.Channels.WhatsApp.Enabled)

			if cfg.Channels.WhatsApp.Enabled {
				waDB := filepath.Join(cfg.Paths.DataDir, "whatsapp.db")
				qrPath := filepath.Join(cfg.Paths.DataDir, "whatsapp-qr.png")
				if _, err := os.Stat(waDB); err == nil {
					fmt.Println("WhatsApp Link: ✓ Session found (no QR needed)")
				} else {
					fmt.Println("WhatsApp Link: ✗ No session (QR needed)")
					fmt.Println("WhatsApp QR:   " + qrPath)
				}
			}

			probeGateway(cfg)
		}
	},
}

func printChannelStatus(name string, enabled bool) {
	if enabled {
		fmt.Printf("%s: ✓ Enabled\n", name)
	} else {
		fmt.Printf("%s: ✗ Disabled\n", name)
	}
}

// probeGateway hits the local liveness endpoint to see whether a gateway
// process is running.
func probeGateway(cfg *config.Config) {
	host := cfg.Gateway.Host
	if host == "" || host == "0.0.0.0" {
		host = "127.0.0.1"
	}
	url := fmt.Sprintf("http://%s:%d/healthz", host, cfg.Gateway.Port)
	client := &http.Client{Timeout: 2 * time.Second}
	resp, err := client.Get(url)
	if err != nil {
		fmt.Println("Gateway: ✗ Not running")
		return
	}
	defer resp.Body.Close()
	var health struct {
		Status  string `json:"status"`
		Version string `json:"version"`
		Uptime  string `json:"uptime"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&health); err != nil || health.Status != "ok" {
		fmt.Println("Gateway: ? Unexpected response")
		return
	}
	fmt.Printf("Gateway: ✓ Running (v%s, up %s)\n", health.Version, health.Uptime)
}
