package channels

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"mime/multipart"
	"net/http"
	"net/url"
	"os"
	"strconv"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/voxrelay/voxrelay/internal/bus"
	"github.com/voxrelay/voxrelay/internal/config"
)

const telegramMaxMessageLen = 4096

// TelegramChannel is a Telegram Bot API client using long polling.
type TelegramChannel struct {
	BaseChannel
	config     config.TelegramConfig
	apiBase    string
	httpClient *http.Client
	stop       context.CancelFunc
}

// NewTelegramChannel creates a new Telegram channel.
func NewTelegramChannel(cfg config.TelegramConfig, messageBus *bus.MessageBus) *TelegramChannel {
	apiBase := strings.TrimSuffix(cfg.APIBase, "/")
	if apiBase == "" {
		apiBase = "https://api.telegram.org"
	}
	pollTimeout := cfg.PollTimeout
	if pollTimeout <= 0 {
		pollTimeout = 30 * time.Second
	}
	cfg.PollTimeout = pollTimeout
	return &TelegramChannel{
		BaseChannel: BaseChannel{Bus: messageBus},
		config:      cfg,
		apiBase:     apiBase,
		httpClient: &http.Client{
			Timeout: pollTimeout + 15*time.Second,
		},
	}
}

func (c *TelegramChannel) Name() string { return "telegram" }

// Start begins long polling and subscribes to outbound messages.
func (c *TelegramChannel) Start(ctx context.Context) error {
	if !c.config.Enabled {
		return nil
	}
	if strings.TrimSpace(c.config.Token) == "" {
		return fmt.Errorf("telegram token not configured")
	}

	c.Bus.Subscribe(c.Name(), func(msg *bus.OutboundMessage) {
		go func() {
			sendCtx, cancel := context.WithTimeout(context.Background(), 60*time.Second)
			defer cancel()
			if err := c.Send(sendCtx, msg); err != nil {
				slog.Error("Telegram send failed", "chat", msg.ChatID, "error", err)
			}
		}()
	})

	pollCtx, cancel := context.WithCancel(ctx)
	c.stop = cancel
	go c.pollLoop(pollCtx)
	fmt.Println("📨 Telegram: long polling started")
	return nil
}

// Stop cancels the polling loop.
func (c *TelegramChannel) Stop() error {
	if c.stop != nil {
		c.stop()
	}
	return nil
}

func (c *TelegramChannel) pollLoop(ctx context.Context) {
	var offset int64
	for {
		if ctx.Err() != nil {
			return
		}
		updates, next, err := c.getUpdates(ctx, offset)
		if err != nil {
			if ctx.Err() != nil {
				return
			}
			slog.Warn("Telegram getUpdates failed", "error", err)
			time.Sleep(3 * time.Second)
			continue
		}
		offset = next
		for _, u := range updates {
			c.handleUpdate(ctx, u)
		}
	}
}

func (c *TelegramChannel) handleUpdate(ctx context.Context, u telegramUpdate) {
	msg := u.Message
	if msg == nil || msg.From == nil {
		return
	}
	sender := strconv.FormatInt(msg.From.ID, 10)
	chatID := strconv.FormatInt(msg.Chat.ID, 10)
	if !allowed(c.config.AllowFrom, sender) {
		slog.Warn("Telegram sender not allowed", "sender", sender)
		return
	}

	inbound := &bus.InboundMessage{
		Channel:  c.Name(),
		SenderID: sender,
		ChatID:   chatID,
		TraceID:  "tg-" + uuid.NewString(),
	}

	switch {
	case msg.Voice != nil:
		path, err := c.downloadVoice(ctx, msg.Voice.FileID)
		if err != nil {
			slog.Error("Telegram voice download failed", "sender", sender, "error", err)
			_ = c.sendMessage(ctx, chatID, "⚠️ I couldn't download that voice note. Please try again.")
			return
		}
		inbound.Kind = bus.KindVoice
		inbound.VoicePath = path
	case strings.TrimSpace(msg.Text) != "":
		inbound.Kind = bus.KindText
		inbound.Content = msg.Text
	default:
		return // stickers, photos, etc
	}

	c.Bus.PublishInbound(inbound)
}

// Send delivers a text or voice reply.
func (c *TelegramChannel) Send(ctx context.Context, msg *bus.OutboundMessage) error {
	if msg.Voice != nil {
		return c.sendVoice(ctx, msg.ChatID, msg.Voice)
	}
	text := msg.Content
	for len(text) > telegramMaxMessageLen {
		cut := splitIndex(text, telegramMaxMessageLen)
		if err := c.sendMessage(ctx, msg.ChatID, text[:cut]); err != nil {
			return err
		}
		text = text[cut:]
	}
	return c.sendMessage(ctx, msg.ChatID, text)
}

// splitIndex returns the largest byte offset <= max that does not cut a UTF-8
// rune in half. Telegram rejects messages with broken encoding.
func splitIndex(text string, max int) int {
	cut := max
	for cut > 0 && !utf8.RuneStart(text[cut]) {
		cut--
	}
	if cut == 0 {
		return max // not UTF-8 at all, split anywhere
	}
	return cut
}

// --- Bot API plumbing ---

type telegramUpdate struct {
	UpdateID int64            `json:"update_id"`
	Message  *telegramMessage `json:"message"`
}

type telegramMessage struct {
	MessageID int64          `json:"message_id"`
	From      *telegramUser  `json:"from"`
	Chat      telegramChat   `json:"chat"`
	Text      string         `json:"text"`
	Voice     *telegramVoice `json:"voice"`
}

type telegramUser struct {
	ID       int64  `json:"id"`
	Username string `json:"username"`
}

type telegramChat struct {
	ID   int64  `json:"id"`
	Type string `json:"type"`
}

type telegramVoice struct {
	FileID   string `json:"file_id"`
	Duration int    `json:"duration"`
	MimeType string `json:"mime_type"`
}

type telegramOKResponse struct {
	OK          bool   `json:"ok"`
	Description string `json:"description"`
}

func (c *TelegramChannel) getUpdates(ctx context.Context, offset int64) ([]telegramUpdate, int64, error) {
	secs := int(c.config.PollTimeout.Seconds())
	if secs < 1 {
		secs = 1
	}
	reqURL := fmt.Sprintf("%s/bot%s/getUpdates?timeout=%d", c.apiBase, c.config.Token, secs)
	if offset > 0 {
		reqURL += fmt.Sprintf("&offset=%d", offset)
	}

	reqCtx, cancel := context.WithTimeout(ctx, c.config.PollTimeout+10*time.Second)
	defer cancel()
	req, err := http.NewRequestWithContext(reqCtx, http.MethodGet, reqURL, nil)
	if err != nil {
		return nil, offset, err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return nil, offset, err
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return nil, offset, fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}

	var out struct {
		OK     bool             `json:"ok"`
		Result []telegramUpdate `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return nil, offset, err
	}
	if !out.OK {
		return nil, offset, fmt.Errorf("telegram getUpdates: ok=false")
	}

	next := offset
	for _, u := range out.Result {
		if u.UpdateID >= next {
			next = u.UpdateID + 1
		}
	}
	return out.Result, next, nil
}

// downloadVoice resolves a voice file id and stages the payload in a temp
// file owned by this single message.
func (c *TelegramChannel) downloadVoice(ctx context.Context, fileID string) (string, error) {
	reqURL := fmt.Sprintf("%s/bot%s/getFile?file_id=%s", c.apiBase, c.config.Token, url.QueryEscape(fileID))
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, reqURL, nil)
	if err != nil {
		return "", err
	}
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", err
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var out struct {
		OK     bool `json:"ok"`
		Result struct {
			FilePath string `json:"file_path"`
		} `json:"result"`
	}
	if err := json.Unmarshal(raw, &out); err != nil {
		return "", err
	}
	if !out.OK || strings.TrimSpace(out.Result.FilePath) == "" {
		return "", fmt.Errorf("telegram getFile: missing file_path")
	}

	dlURL := fmt.Sprintf("%s/file/bot%s/%s", c.apiBase, c.config.Token, strings.TrimLeft(out.Result.FilePath, "/"))
	dlReq, err := http.NewRequestWithContext(ctx, http.MethodGet, dlURL, nil)
	if err != nil {
		return "", err
	}
	dlResp, err := c.httpClient.Do(dlReq)
	if err != nil {
		return "", err
	}
	defer dlResp.Body.Close()
	if dlResp.StatusCode < 200 || dlResp.StatusCode >= 300 {
		return "", fmt.Errorf("telegram download http %d", dlResp.StatusCode)
	}

	f, err := os.CreateTemp("", "voxrelay-tg-*.ogg")
	if err != nil {
		return "", err
	}
	_, err = io.Copy(f, io.LimitReader(dlResp.Body, 20*1024*1024))
	closeErr := f.Close()
	if err != nil {
		os.Remove(f.Name())
		return "", err
	}
	if closeErr != nil {
		os.Remove(f.Name())
		return "", closeErr
	}
	return f.Name(), nil
}

func (c *TelegramChannel) sendMessage(ctx context.Context, chatID, text string) error {
	if strings.TrimSpace(text) == "" {
		return nil
	}
	body, _ := json.Marshal(map[string]any{
		"chat_id": chatID,
		"text":    text,
	})
	reqURL := fmt.Sprintf("%s/bot%s/sendMessage", c.apiBase, c.config.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, bytes.NewReader(body))
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", "application/json")
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var ok telegramOKResponse
	_ = json.Unmarshal(raw, &ok)
	if !ok.OK {
		return fmt.Errorf("telegram sendMessage: %s", ok.Description)
	}
	return nil
}

func (c *TelegramChannel) sendVoice(ctx context.Context, chatID string, clip *bus.VoiceClip) error {
	ext := clip.Format
	if ext == "" || ext == "opus" {
		ext = "ogg"
	}

	body := &bytes.Buffer{}
	mw := multipart.NewWriter(body)
	_ = mw.WriteField("chat_id", chatID)
	part, err := mw.CreateFormFile("voice", "voice."+ext)
	if err != nil {
		return err
	}
	if _, err := part.Write(clip.Data); err != nil {
		return err
	}
	if err := mw.Close(); err != nil {
		return err
	}

	reqURL := fmt.Sprintf("%s/bot%s/sendVoice", c.apiBase, c.config.Token)
	req, err := http.NewRequestWithContext(ctx, http.MethodPost, reqURL, body)
	if err != nil {
		return err
	}
	req.Header.Set("Content-Type", mw.FormDataContentType())
	resp, err := c.httpClient.Do(req)
	if err != nil {
		return err
	}
	raw, _ := io.ReadAll(resp.Body)
	resp.Body.Close()
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return fmt.Errorf("telegram http %d: %s", resp.StatusCode, strings.TrimSpace(string(raw)))
	}
	var ok telegramOKResponse
	_ = json.Unmarshal(raw, &ok)
	if !ok.OK {
		return fmt.Errorf("telegram sendVoice: %s", ok.Description)
	}
	return nil
}
