package channels

import (
	"bytes"
	"context"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/slack-go/slack"
	"github.com/slack-go/slack/slackevents"
	"github.com/slack-go/slack/socketmode"

	"github.com/voxrelay/voxrelay/internal/bus"
	"github.com/voxrelay/voxrelay/internal/config"
)

// SlackChannel connects over Socket Mode, so no public inbound URL is needed.
type SlackChannel struct {
	BaseChannel
	config config.SlackConfig
	api    *slack.Client
	socket *socketmode.Client
	stop   context.CancelFunc
}

// NewSlackChannel creates a new Slack channel.
func NewSlackChannel(cfg config.SlackConfig, messageBus *bus.MessageBus) *SlackChannel {
	return &SlackChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
	}
}

func (c *SlackChannel) Name() string { return "slack" }

// Start opens the Socket Mode connection and subscribes to outbound messages.
func (c *SlackChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if strings.TrimSpace(c.config.BotToken) == "" || strings.TrimSpace(c.config.AppToken) == "" {
		return fmt.Errorf("slack bot token and app token are both required")
	}

	c.api = slack.New(c.config.BotToken, slack.OptionAppLevelToken(c.config.AppToken))
	c.socket = socketmode.New(c.api)

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if err := c.Send(sendCtx, msg); err != nil {
				slog.Error("Slack send failed", "chat", msg.ChatID, "error", err)
			}
		}()
	})

	runCtx, cancel := context.WithCancel(ctx)
	c.stop = cancel
	go c.eventLoop(runCtx)
	go func() {
		if err := c.socket.RunContext(runCtx); err != nil && runCtx.Err() == nil {
			slog.Error("Slack socket mode stopped", "error", err)
		}
	}()
	fmt.Println("📨 Slack: socket mode connected")
	return nil
}

// Stop closes the Socket Mode connection.
func (c *SlackChannel) Stop() error {
	if c.stop != nil {
		c.stop()
	}
	return nil
}

func (c *SlackChannel) eventLoop(ctx context.Context) {
	for {
		select {
		case <-ctx.Done():
			return
		case evt, ok := <-c.socket.Events:
			if !ok {
				return
			}
			switch evt.Type {
			case socketmode.EventTypeEventsAPI:
				if evt.Request != nil {
					c.socket.Ack(*evt.Request)
				}
				ev, ok := evt.Data.(slackevents.EventsAPIEvent)
				if !ok || ev.Type != slackevents.CallbackEvent {
					continue
				}
				if in, ok := ev.InnerEvent.Data.(*slackevents.MessageEvent); ok && in != nil {
					c.handleMessage(ctx, in)
				}
			case socketmode.EventTypeSlashCommand:
				if evt.Request != nil {
					c.socket.Ack(*evt.Request)
				}
				if cmd, ok := evt.Data.(slack.SlashCommand); ok {
					c.handleSlashCommand(cmd)
				}
			}
		}
	}
}

func (c *SlackChannel) handleMessage(ctx context.Context, ev *slackevents.MessageEvent) {
	// Ignore our own messages and other bots.
	if ev.BotID != "" || ev.SubType == "bot_message" {
		return
	}
	if ev.User == "" || ev.Channel == "" {
		return
	}
	if !allowed(c.config.AllowFrom, ev.User) {
		slog.Warn("Slack sender not allowed", "sender", ev.User)
		return
	}

	inbound := &bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: ev.User,
		ChatID:   ev.Channel,
		TraceID:  "sl-" + uuid.NewString(),
	}

	var files []slack.File
	if ev.Message != nil {
		files = ev.Message.Files
	}
	if clip := firstAudioFile(files); clip != nil {
		path, err := c.downloadVoice(ctx, clip)
		if err != nil {
			slog.Error("Slack voice download failed", "sender", ev.User, "error", err)
			c.postText(ctx, ev.Channel, "⚠️ I couldn't download that voice note. Please try again.")
			return
		}
		inbound.Kind = bus.KindVoice
		inbound.VoicePath = path
		c.Bus.PublishInbound(inbound)
		return
	}

	text := strings.TrimSpace(ev.Text)
	if text == "" {
		return
	}
	inbound.Kind = bus.KindText
	inbound.Content = text
	c.Bus.PublishInbound(inbound)
}

// handleSlashCommand maps /voxrelay-style slash commands onto boundary
// commands. "/voxrelay say hello" and a bare "/say hello" both work.
func (c *SlackChannel) handleSlashCommand(cmd slack.SlashCommand) {
	if cmd.UserID == "" || cmd.ChannelID == "" {
		return
	}
	if !allowed(c.config.AllowFrom, cmd.UserID) {
		slog.Warn("Slack sender not allowed", "sender", cmd.UserID)
		return
	}
	name := strings.ToLower(strings.TrimPrefix(strings.TrimSpace(cmd.Command), "/"))
	args := strings.TrimSpace(cmd.Text)
	if name == "voxrelay" {
		if i := strings.IndexAny(args, " \n\t"); i >= 0 {
			name, args = strings.ToLower(args[:i]), strings.TrimSpace(args[i+1:])
		} else {
			name, args = strings.ToLower(args), ""
		}
	}
	if name == "" {
		return
	}
	c.Bus.PublishInbound(&bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: cmd.UserID,
		ChatID:   cmd.ChannelID,
		TraceID:  "sl-" + uuid.NewString(),
		Kind:     bus.KindCommand,
		Command:  name,
		Args:     args,
	})
}

func firstAudioFile(files []slack.File) *slack.File {
	for i := range files {
		f := &files[i]
		if strings.HasPrefix(f.Mimetype, "audio/") && f.URLPrivateDownload != "" {
			return f
		}
	}
	return nil
}

// downloadVoice fetches the private file into a temp file owned by this
// single message.
func (c *SlackChannel) downloadVoice(ctx context.Context, file *slack.File) (string, error) {
	ext := strings.TrimSpace(file.Filetype)
	if ext == "" {
		ext = "m4a"
	}
	f, err := os.CreateTemp("", "voxrelay-slack-*."+ext)
	if err != nil {
		return "", err
	}
	err = c.api.GetFileContext(ctx, file.URLPrivateDownload, f)
	closeErr := f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", fmt.Errorf("slack file download: %w", err)
	}
	if closeErr != nil {
		os.Remove(f.Name())
		return "", closeErr
	}
	return f.Name(), nil
}

// Send delivers a text or voice reply.
func (c *SlackChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if msg.Voice != nil {
		ext := msg.Voice.Format
		if ext == "" {
			ext = "ogg"
		}
		_, err := c.api.UploadFileV2Context(ctx, slack.UploadFileV2Parameters{
			Channel:  msg.ChatID,
			Filename: "voice." + ext,
			FileSize: len(msg.Voice.Data),
			Reader:   bytes.NewReader(msg.Voice.Data),
		})
		if err != nil {
			return fmt.Errorf("slack voice upload: %w", err)
		}
		return nil
	}
	return c.postText(ctx, msg.ChatID, msg.Content)
}

func (c *SlackChannel) postText(ctx context.Context, channelID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	_, _, err := c.api.PostMessageContext(ctx, channelID, slack.MsgOptionText(text, false))
	return err
}
