package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/engine"
	"github.com/voxrelay/voxrelay/internal/memory"
	"github.com/voxrelay/voxrelay/internal/provider"
)

var (
	chatMessage string
	chatUserID  string
)

var chatCmd = &cobra.Command{
	Use:   "chat",
	Short: "Chat with the relay directly in CLI",
	Run:   runChat,
}

func init() {
	chatCmd.Flags().StringVarP(&chatMessage, "message", "m", "", "Message to send")
	chatCmd.Flags().StringVarP(&chatUserID, "user", "u", "cli:default", "User ID for conversation memory")
}

func runChat(cmd *cobra.Command, args []string) {
	if chatMessage == "" {
		fmt.Println("Error: --message is required")
		os.Exit(1)
	}

	printHeader("💬 voxrelay Chat")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		fmt.Println("Provider error: no OpenAI API key configured (set OPENAI_API_KEY)")
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	store, err := memory.OpenProfileStore(filepath.Join(cfg.Paths.DataDir, "memory.db"), cfg.Model.DefaultPersonality)
	if err != nil {
		fmt.Printf("Memory store error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	prov := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Name)
	eng := engine.New(store, prov, cfg.Model)

	fmt.Printf("💬 voxrelay (%s)\n", cfg.Model.Name)
	fmt.Println("Thinking...")

	response, err := eng.Respond(context.Background(), chatUserID, chatMessage)
	if err != nil {
		fmt.Printf("Error: %v\n", err)
		os.Exit(1)
	}

	fmt.Println("\n" + response)
}
