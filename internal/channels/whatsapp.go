package channels

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/skip2/go-qrcode"

	_ "modernc.org/sqlite"

	"go.mau.fi/whatsmeow"
	"go.mau.fi/whatsmeow/proto/waE2E"
	"go.mau.fi/whatsmeow/store/sqlstore"
	"go.mau.fi/whatsmeow/types"
	"go.mau.fi/whatsmeow/types/events"
	waLog "go.mau.fi/whatsmeow/util/log"
	"google.golang.org/protobuf/proto"

	"github.com/voxrelay/voxrelay/internal/bus"
	"github.com/voxrelay/voxrelay/internal/config"
)

// WhatsAppChannel implements a native WhatsApp client.
type WhatsAppChannel struct {
	BaseChannel
	config    config.WhatsAppConfig
	dataDir   string
	client    *whatsmeow.Client
	container *sqlstore.Container
}

// NewWhatsAppChannel creates a new WhatsApp channel. Session state lives
// under dataDir.
func NewWhatsAppChannel(cfg config.WhatsAppConfig, dataDir string, messageBus *bus.MessageBus) *WhatsAppChannel {
	return &WhatsAppChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		dataDir:     dataDir,
	}
}

func (c *WhatsAppChannel) Name() string { return "whatsapp" }

func (c *WhatsAppChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}

	dbLog := waLog.Stdout("Database", "WARN", true)
	clientLog := waLog.Stdout("Client", "INFO", true)

	dbPath := filepath.Join(c.dataDir, "whatsapp.db")
	if err := os.MkdirAll(filepath.Dir(dbPath), 0o755); err != nil {
		return fmt.Errorf("failed to create data dir: %w", err)
	}

	container, err := sqlstore.New(ctx, "sqlite", "file:"+dbPath+"?_pragma=foreign_keys(1)&_pragma=journal_mode(WAL)&_pragma=busy_timeout(5000)", dbLog)
	if err != nil {
		return fmt.Errorf("failed to init whatsapp db: %w", err)
	}
	c.container = container

	deviceStore, err := container.GetFirstDevice(ctx)
	if err != nil {
		return fmt.Errorf("failed to get device: %w", err)
	}

	c.client = whatsmeow.NewClient(deviceStore, clientLog)
	c.client.AddEventHandler(c.eventHandler)

	if c.client.Store.ID == nil {
		// No session, need to pair
		qrChan, _ := c.client.GetQRChannel(context.Background())
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		go c.awaitPairing(qrChan)
	} else {
		if err := c.client.Connect(); err != nil {
			return fmt.Errorf("failed to connect: %w", err)
		}
		fmt.Println("📨 WhatsApp: connected")
	}

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if err := c.Send(sendCtx, msg); err != nil {
				slog.Error("WhatsApp send failed", "chat", msg.ChatID, "error", err)
			}
		}()
	})

	return nil
}

func (c *WhatsAppChannel) awaitPairing(qrChan <-chan whatsmeow.QRChannelItem) {
	fmt.Println("WhatsApp: scan this QR code to login:")
	for evt := range qrChan {
		if evt.Event == "code" {
			qrPath := filepath.Join(c.dataDir, "whatsapp-qr.png")
			if err := qrcode.WriteFile(evt.Code, qrcode.Medium, 512, qrPath); err == nil {
				fmt.Printf("\n🖼️  WhatsApp login QR code saved to: %s\n", qrPath)
				fmt.Println("Open this file and scan it with your phone.")
			}
		} else {
			fmt.Println("WhatsApp: login event:", evt.Event)
		}
	}
}

func (c *WhatsAppChannel) Stop() error {
	if c.client != nil {
		c.client.Disconnect()
	}
	if c.container != nil {
		c.container.Close()
	}
	return nil
}

// Send delivers a text or voice reply.
func (c *WhatsAppChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if c.client == nil {
		return fmt.Errorf("client not initialized")
	}

	jid, err := types.ParseJID(msg.ChatID)
	if err != nil {
		return fmt.Errorf("invalid JID: %w", err)
	}

	if msg.Voice != nil {
		return c.sendVoice(ctx, jid, msg.Voice)
	}

	waMsg := &waE2E.Message{
		Conversation: proto.String(msg.Content),
	}
	_, err = c.client.SendMessage(ctx, jid, waMsg)
	return err
}

// sendVoice uploads the clip to WhatsApp media storage and sends it as a
// push-to-talk note.
func (c *WhatsAppChannel) sendVoice(ctx context.Context, jid types.JID, clip *bus.VoiceClip) error {
	up, err := c.client.Upload(ctx, clip.Data, whatsmeow.MediaAudio)
	if err != nil {
		return fmt.Errorf("whatsapp media upload: %w", err)
	}
	waMsg := &waE2E.Message{
		AudioMessage: &waE2E.AudioMessage{
			URL:           proto.String(up.URL),
			DirectPath:    proto.String(up.DirectPath),
			MediaKey:      up.MediaKey,
			Mimetype:      proto.String("audio/ogg; codecs=opus"),
			FileEncSHA256: up.FileEncSHA256,
			FileSHA256:    up.FileSHA256,
			FileLength:    proto.Uint64(up.FileLength),
			PTT:           proto.Bool(true),
		},
	}
	_, err = c.client.SendMessage(ctx, jid, waMsg)
	return err
}

func (c *WhatsAppChannel) eventHandler(evt interface{}) {
	v, ok := evt.(*events.Message)
	if !ok {
		return
	}
	if v.Info.IsFromMe {
		return
	}

	sender := v.Info.Sender.User
	if !allowed(c.config.AllowFrom, sender) {
		slog.Warn("WhatsApp sender not allowed", "sender", sender)
		return
	}

	inbound := &bus.InboundMessage{
		Channel:   c.Name(),
		SenderID:  sender,
		ChatID:    v.Info.Chat.String(),
		TraceID:   "wa-" + v.Info.ID,
		Timestamp: v.Info.Timestamp,
	}

	switch {
	case v.Message.GetAudioMessage() != nil:
		path, err := c.downloadAudio(v)
		if err != nil {
			slog.Error("WhatsApp audio download failed", "sender", sender, "error", err)
			return
		}
		inbound.Kind = bus.KindVoice
		inbound.VoicePath = path
	case v.Message.GetConversation() != "":
		inbound.Kind = bus.KindText
		inbound.Content = v.Message.GetConversation()
	case v.Message.GetExtendedTextMessage().GetText() != "":
		inbound.Kind = bus.KindText
		inbound.Content = v.Message.GetExtendedTextMessage().GetText()
	default:
		return // images, documents, reactions
	}

	c.Bus.PublishInbound(inbound)
}

// downloadAudio stages an incoming voice note in a temp file owned by this
// single message.
func (c *WhatsAppChannel) downloadAudio(v *events.Message) (string, error) {
	audio := v.Message.GetAudioMessage()
	data, err := c.client.Download(context.Background(), audio)
	if err != nil {
		return "", err
	}
	ext := "ogg"
	if strings.Contains(audio.GetMimetype(), "mp4") {
		ext = "m4a"
	}
	f, err := os.CreateTemp("", "voxrelay-wa-*."+ext)
	if err != nil {
		return "", err
	}
	if _, err := f.Write(data); err != nil {
		f.Close()
		os.Remove(f.Name())
		return "", err
	}
	if err := f.Close(); err != nil {
		os.Remove(f.Name())
		return "", err
	}
	return f.Name(), nil
}
