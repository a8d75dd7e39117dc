package cli

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/spf13/cobra"

	"github.com/voxrelay/voxrelay/internal/agent"
	"github.com/voxrelay/voxrelay/internal/audio"
	"github.com/voxrelay/voxrelay/internal/audit"
	"github.com/voxrelay/voxrelay/internal/bus"
	"github.com/voxrelay/voxrelay/internal/channels"
	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/engine"
	"github.com/voxrelay/voxrelay/internal/gateway"
	"github.com/voxrelay/voxrelay/internal/memory"
	"github.com/voxrelay/voxrelay/internal/observability"
	"github.com/voxrelay/voxrelay/internal/provider"
)

var gatewayCmd = &cobra.Command{
	Use:   "gateway",
	Short: "Start the relay gateway (Telegram, Slack, WhatsApp)",
	Run:   runGateway,
}

func runGateway(cmd *cobra.Command, args []string) {
	printHeader("🌐 voxrelay Gateway")
	fmt.Println("Starting voxrelay Gateway...")

	// 1. Load config
	cfg, err := config.Load()
	if err != nil {
		fmt.Printf("Config error: %v\n", err)
		os.Exit(1)
	}
	if err := os.MkdirAll(cfg.Paths.DataDir, 0o755); err != nil {
		fmt.Printf("Data dir error: %v\n", err)
		os.Exit(1)
	}

	// 2. Conversation memory
	store, err := memory.OpenProfileStore(filepath.Join(cfg.Paths.DataDir, "memory.db"), cfg.Model.DefaultPersonality)
	if err != nil {
		fmt.Printf("Memory store error: %v\n", err)
		os.Exit(1)
	}
	defer store.Close()

	// 3. Provider, audio bridge, engine
	if cfg.Providers.OpenAI.APIKey == "" {
		fmt.Println("Provider error: no OpenAI API key configured (set OPENAI_API_KEY)")
		os.Exit(1)
	}
	prov := provider.NewOpenAIProvider(cfg.Providers.OpenAI.APIKey, cfg.Providers.OpenAI.APIBase, cfg.Model.Name)
	bridge := audio.NewBridge(prov, cfg.Voice.FFmpegPath, cfg.Voice.WhisperModel, cfg.Voice.TTSModel, cfg.Voice.Name)
	eng := engine.New(store, prov, cfg.Model)

	// 4. Bus, metrics, audit stream
	msgBus := bus.NewMessageBus()
	metrics := observability.NewMetrics("voxrelay")

	var auditPub *audit.Publisher
	if cfg.Audit.Enabled {
		auditPub = audit.NewPublisher(cfg.Audit.Brokers, cfg.Audit.Topic)
		defer auditPub.Close()
		fmt.Printf("📝 Audit stream enabled (topic %s)\n", cfg.Audit.Topic)
	}

	// 5. Relay loop
	loop := agent.NewLoop(agent.LoopOptions{
		Bus:          msgBus,
		Engine:       eng,
		Bridge:       bridge,
		Metrics:      metrics,
		Audit:        auditPub,
		VoiceReplies: cfg.Voice.VoiceReplies,
	})

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	go msgBus.DispatchOutbound(ctx)
	go loop.Run(ctx)

	// 6. Channels
	active := []channels.Channel{
		channels.NewTelegramChannel(cfg.Channels.Telegram, msgBus),
		channels.NewSlackChannel(cfg.Channels.Slack, msgBus),
		channels.NewWhatsAppChannel(cfg.Channels.WhatsApp, cfg.Paths.DataDir, msgBus),
	}
	started := 0
	for _, ch := range active {
		if err := ch.Start(ctx); err != nil {
			fmt.Printf("⚠️ Channel %s failed to start: %v\n", ch.Name(), err)
			continue
		}
		started++
	}
	defer func() {
		for _, ch := range active {
			_ = ch.Stop()
		}
	}()
	if started == 0 {
		fmt.Println("⚠️ No channels started; gateway serves liveness only")
	}

	// 7. Liveness endpoint
	addr := fmt.Sprintf("%s:%d", cfg.Gateway.Host, cfg.Gateway.Port)
	go func() {
		fmt.Printf("🌐 Gateway listening on %s\n", addr)
		if err := gateway.Serve(addr, version); err != nil {
			fmt.Printf("Gateway server error: %v\n", err)
			cancel()
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	select {
	case s := <-sig:
		fmt.Printf("\n👋 Received %s, shutting down...\n", s)
	case <-ctx.Done():
	}
}
