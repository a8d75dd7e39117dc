package cli

import (
	"context"
	"fmt"
	"os"
	"path/filepath"
	"strings"

	"github.com/spf13/cobra"

	"github.com/voxrelay/voxrelay/internal/audio"
	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/engine"
	"github.com/voxrelay/voxrelay/internal/memory"
	"github.com/voxrelay/voxrelay/internal/provider"
)

var (
	sayOutput   string
	sayGenerate bool
)

var sayCmd = &cobra.Command{
	Use:   "say <text>",
	Short: "Synthesize text to speech and write it to a file",
	Args:  cobra.MinimumNArgs(1),
	Run:   runSay,
}

func init() {
	sayCmd.Flags().StringVarP(&sayOutput, "output", "o", "voice.ogg", "Output audio file")
	sayCmd.Flags().BoolVarP(&sayGenerate, "generate", "g", false, "Treat the text as a prompt and speak the model's one-shot reply")
}

func runSay(cmd *cobra.Command, args []string) {
	text := strings.TrimSpace(strings.Join(args, " "))
	if text == "" {
		fmt.Println("Error: nothing to say")
		os.Exit(1)
	}

	printHeader("🔊 voxrelay Say")

	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config warning: %v (using defaults)\n", err)
		cfg = config.DefaultConfig()
	}
	if cfg.Providers.OpenAI.APIKey == "" {
		fmt.Println("Provider error: no OpenAI API key configured (set OPENAI_API_KEY)")
		os.Exit(1)
	}

	prov := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Name)
	bridge := audio.NewBridge(prov, cfg.Voice.FFmpegPath, cfg.Voice.WhisperModel, cfg.Voice.TTSModel, cfg.Voice.Name)

	if sayGenerate {
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

		fmt.Println("Thinking...")
		reply, err := engine.New(store, prov, cfg.Model).Say(context.Background(), text)
		if err != nil {
			fmt.Printf("Completion error: %v\n", err)
			os.Exit(1)
		}
		fmt.Println("\n" + reply)
		text = reply
	}

	clip, err := bridge.Synthesize(context.Background(), text)
	if err != nil {
		fmt.Printf("Synthesis error: %v\n", err)
		os.Exit(1)
	}

	if err := os.WriteFile(sayOutput, clip.Data, 0o644); err != nil {
		fmt.Printf("Write error: %v\n", err)
		os.Exit(1)
	}
	fmt.Printf("🔊 Wrote %d bytes to %s\n", len(clip.Data), sayOutput)
}
