// Package agent implements the relay loop routing inbound messages through
// the audio bridge and conversation engine.
package agent

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/voxrelay/voxrelay/internal/audio"
	"github.com/voxrelay/voxrelay/internal/audit"
	"github.com/voxrelay/voxrelay/internal/bus"
	"github.com/voxrelay/voxrelay/internal/engine"
	"github.com/voxrelay/voxrelay/internal/observability"
)

// Recognized boundary commands.
const (
	CmdStart          = "start"
	CmdSetPersonality = "setpersonality"
	CmdPersonality    = "personality"
	CmdSay            = "say"
)

// LoopOptions contains configuration for the relay loop.
type LoopOptions struct {
	Bus            *bus.MessageBus
	Engine         *engine.Engine
	Bridge         *audio.Bridge
	Metrics        *observability.Metrics
	Audit          *audit.Publisher
	VoiceReplies   bool
	MessageTimeout time.Duration
}

// Loop consumes inbound messages and publishes replies. Each message is
// handled in its own goroutine so one user's slow service call never blocks
// another user; same-user ordering of memory writes is the profile store's
// job.
type Loop struct {
	bus            *bus.MessageBus
	engine         *engine.Engine
	bridge         *audio.Bridge
	metrics        *observability.Metrics
	audit          *audit.Publisher
	voiceReplies   bool
	messageTimeout time.Duration
}

// NewLoop creates a relay loop.
func NewLoop(opts LoopOptions) *Loop {
	timeout := opts.MessageTimeout
	if timeout <= 0 {
		timeout = 5 * time.Minute
	}
	return &Loop{
		bus:            opts.Bus,
		engine:         opts.Engine,
		bridge:         opts.Bridge,
		metrics:        opts.Metrics,
		audit:          opts.Audit,
		voiceReplies:   opts.VoiceReplies,
		messageTimeout: timeout,
	}
}

// Run consumes inbound messages until the context is cancelled.
func (l *Loop) Run(ctx context.Context) error {
	slog.Info("Relay loop started")
	for {
		msg, err := l.bus.ConsumeInbound(ctx)
		if err != nil {
			if ctx.Err() != nil {
				return nil // Context cancelled, normal shutdown
			}
			slog.Error("Failed to consume message", "error", err)
			continue
		}
		go l.handle(ctx, msg)
	}
}

func (l *Loop) handle(ctx context.Context, msg *bus.InboundMessage) {
	msgCtx, cancel := context.WithTimeout(ctx, l.messageTimeout)
	defer cancel()

	l.countInbound(msg)
	l.publishAudit(msgCtx, audit.Event{
		Type:    audit.EventMessageReceived,
		Channel: msg.Channel,
		UserID:  msg.SenderID,
		TraceID: msg.TraceID,
		Kind:    msg.Kind,
	})

	reply, voice, err := l.process(msgCtx, msg)
	if err != nil {
		slog.Error("Failed to process message", "channel", msg.Channel, "user", msg.SenderID, "error", err)
		l.publishAudit(msgCtx, audit.Event{
			Type:    audit.EventStageFailed,
			Channel: msg.Channel,
			UserID:  msg.SenderID,
			TraceID: msg.TraceID,
			Kind:    msg.Kind,
			Detail:  err.Error(),
		})
		l.reply(msg, userFacingError(err), nil)
		return
	}
	if reply == "" && voice == nil {
		return
	}
	l.reply(msg, reply, voice)
	l.publishAudit(msgCtx, audit.Event{
		Type:    audit.EventReplySent,
		Channel: msg.Channel,
		UserID:  msg.SenderID,
		TraceID: msg.TraceID,
		Kind:    msg.Kind,
	})
}

func (l *Loop) process(ctx context.Context, msg *bus.InboundMessage) (string, *audio.Clip, error) {
	switch msg.Kind {
	case bus.KindVoice:
		return l.processVoice(ctx, msg)
	case bus.KindCommand:
		return l.processCommand(ctx, msg, msg.Command, msg.Args)
	default:
		if name, args, ok := ParseCommand(msg.Content); ok {
			return l.processCommand(ctx, msg, name, args)
		}
		reply, err := l.respond(ctx, msg.SenderID, msg.Content)
		return reply, nil, err
	}
}

// respond runs one completion exchange and records its metrics.
func (l *Loop) respond(ctx context.Context, userID, text string) (string, error) {
	start := time.Now()
	reply, err := l.engine.Respond(ctx, userID, text)
	if err != nil {
		l.countProviderError("chat")
		return "", err
	}
	if l.metrics != nil {
		l.metrics.ObserveCompletionLatency(time.Since(start))
		l.metrics.TurnsPersisted.Add(2)
	}
	return reply, nil
}

// processVoice walks the voice pipeline: transcribe, respond, optionally
// synthesize. Any stage failing stops the pipeline; nothing downstream runs.
func (l *Loop) processVoice(ctx context.Context, msg *bus.InboundMessage) (string, *audio.Clip, error) {
	transcript, err := l.bridge.TranscribeFile(ctx, msg.VoicePath)
	if err != nil {
		l.countProviderError("transcribe")
		return "", nil, err
	}
	reply, err := l.respond(ctx, msg.SenderID, transcript)
	if err != nil {
		return "", nil, err
	}
	if !l.voiceReplies {
		return reply, nil, nil
	}
	clip, err := l.bridge.Synthesize(ctx, reply)
	if err != nil {
		// The exchange is already persisted; degrade to a text reply.
		l.countProviderError("speak")
		slog.Warn("Voice reply synthesis failed, replying with text", "user", msg.SenderID, "error", err)
		return reply, nil, nil
	}
	return "", clip, nil
}

func (l *Loop) processCommand(ctx context.Context, msg *bus.InboundMessage, name, args string) (string, *audio.Clip, error) {
	switch name {
	case CmdStart:
		return engine.Greeting, nil, nil

	case CmdSetPersonality:
		args = strings.TrimSpace(args)
		if args == "" {
			return "", nil, fmt.Errorf("usage: /%s <instruction>", CmdSetPersonality)
		}
		if err := l.engine.SetPersonality(msg.SenderID, args); err != nil {
			return "", nil, err
		}
		return fmt.Sprintf("🧠 Personality updated to:\n\n“%s”", args), nil, nil

	case CmdPersonality:
		return fmt.Sprintf("🧠 Current personality:\n\n“%s”", l.engine.Personality(msg.SenderID)), nil, nil

	case CmdSay:
		args = strings.TrimSpace(args)
		if args == "" {
			return "", nil, fmt.Errorf("usage: /%s <text>", CmdSay)
		}
		clip, err := l.bridge.Synthesize(ctx, args)
		if err != nil {
			l.countProviderError("speak")
			return "", nil, err
		}
		return "", clip, nil

	default:
		return fmt.Sprintf("Unknown command /%s. Try /%s, /%s, /%s or /%s.", name, CmdStart, CmdSetPersonality, CmdPersonality, CmdSay), nil, nil
	}
}

func (l *Loop) reply(msg *bus.InboundMessage, content string, voice *audio.Clip) {
	out := &bus.OutboundMessage{
		Channel: msg.Channel,
		ChatID:  msg.ChatID,
		TraceID: msg.TraceID,
		Content: content,
	}
	replyType := "text"
	if voice != nil {
		out.Voice = &bus.VoiceClip{Data: voice.Data, Format: voice.Format}
		replyType = "voice"
	}
	l.bus.PublishOutbound(out)
	if l.metrics != nil {
		l.metrics.RepliesSent.WithLabelValues(msg.Channel, replyType).Inc()
	}
}

func (l *Loop) countInbound(msg *bus.InboundMessage) {
	if l.metrics != nil {
		l.metrics.InboundMessages.WithLabelValues(msg.Channel, msg.Kind).Inc()
	}
}

func (l *Loop) countProviderError(op string) {
	if l.metrics != nil {
		l.metrics.ProviderErrors.WithLabelValues(op).Inc()
	}
}

func (l *Loop) publishAudit(ctx context.Context, evt audit.Event) {
	if l.audit != nil {
		l.audit.Publish(ctx, evt)
	}
}

// ParseCommand splits a leading slash command into name and argument text.
// Bot-suffixed commands like /start@voxbot are recognized too.
func ParseCommand(content string) (name, args string, ok bool) {
	content = strings.TrimSpace(content)
	if !strings.HasPrefix(content, "/") || len(content) < 2 {
		return "", "", false
	}
	rest := content[1:]
	if i := strings.IndexAny(rest, " \n\t"); i >= 0 {
		name, args = rest[:i], strings.TrimSpace(rest[i+1:])
	} else {
		name = rest
	}
	if i := strings.Index(name, "@"); i >= 0 {
		name = name[:i]
	}
	name = strings.ToLower(name)
	if name == "" {
		return "", "", false
	}
	return name, args, true
}

func userFacingError(err error) string {
	switch {
	case errors.Is(err, audio.ErrEmptyTranscript):
		return "⚠️ I couldn't hear anything in that voice note. Please try again."
	case strings.HasPrefix(err.Error(), "usage:"):
		return "⚠️ " + err.Error()
	case strings.Contains(err.Error(), "transcription"):
		return fmt.Sprintf("⚠️ Transcription failed: %v", err)
	case strings.Contains(err.Error(), "synthesis"):
		return fmt.Sprintf("⚠️ Speech synthesis failed: %v", err)
	default:
		return fmt.Sprintf("⚠️ Error: %v", err)
	}
}
