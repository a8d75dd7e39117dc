// Package audio bridges platform voice payloads and the speech services.
package audio

import (
	"context"
	"errors"
	"fmt"
	"os"
	"os/exec"
	"path/filepath"
	"strings"

	"github.com/voxrelay/voxrelay/internal/provider"
)

// ErrEmptyTranscript is returned when the transcription service produces no text.
var ErrEmptyTranscript = errors.New("transcription produced no text")

// Clip is an opaque synthesized audio payload.
type Clip struct {
	Data   []byte
	Format string
}

// Bridge converts inbound voice payloads to text and outbound text to speech.
// It is stateless: no per-user knowledge, no artifacts outlive a call.
type Bridge struct {
	provider     provider.LLMProvider
	ffmpegPath   string
	whisperModel string
	ttsModel     string
	voice        string
}

// NewBridge creates an audio bridge. ffmpegPath may be empty, in which case
// payloads are submitted to the transcription service in their native format.
func NewBridge(prov provider.LLMProvider, ffmpegPath, whisperModel, ttsModel, voice string) *Bridge {
	return &Bridge{
		provider:     prov,
		ffmpegPath:   ffmpegPath,
		whisperModel: whisperModel,
		ttsModel:     ttsModel,
		voice:        voice,
	}
}

// Transcribe converts a compressed voice payload to text. The payload is
// staged in a scoped temp directory, transcoded when ffmpeg is configured,
// and submitted to the transcription service. The temp directory is removed
// on every exit path.
func (b *Bridge) Transcribe(ctx context.Context, payload []byte, ext string) (string, error) {
	if len(payload) == 0 {
		return "", fmt.Errorf("empty voice payload")
	}

	tmpDir, err := os.MkdirTemp("", "voxrelay-voice-")
	if err != nil {
		return "", fmt.Errorf("create temp dir: %w", err)
	}
	defer os.RemoveAll(tmpDir)

	ext = strings.TrimPrefix(strings.TrimSpace(ext), ".")
	if ext == "" {
		ext = "ogg"
	}
	srcPath := filepath.Join(tmpDir, "voice."+ext)
	if err := os.WriteFile(srcPath, payload, 0600); err != nil {
		return "", fmt.Errorf("write voice payload: %w", err)
	}

	audioPath := srcPath
	if b.ffmpegPath != "" {
		converted, err := b.convert(ctx, srcPath, filepath.Join(tmpDir, "voice.mp3"))
		if err != nil {
			return "", err
		}
		audioPath = converted
	}

	resp, err := b.provider.Transcribe(ctx, &provider.AudioRequest{
		FilePath: audioPath,
		Model:    b.whisperModel,
	})
	if err != nil {
		return "", fmt.Errorf("transcription: %w", err)
	}
	text := strings.TrimSpace(resp.Text)
	if text == "" {
		return "", ErrEmptyTranscript
	}
	return text, nil
}

// TranscribeFile reads a staged voice file and transcribes it. The file is
// removed regardless of outcome; it belongs to this single request.
func (b *Bridge) TranscribeFile(ctx context.Context, path string) (string, error) {
	defer os.Remove(path)
	payload, err := os.ReadFile(path)
	if err != nil {
		return "", fmt.Errorf("read voice file: %w", err)
	}
	return b.Transcribe(ctx, payload, filepath.Ext(path))
}

// convert runs a deterministic container/codec transcode via ffmpeg.
func (b *Bridge) convert(ctx context.Context, src, dst string) (string, error) {
	cmd := exec.CommandContext(ctx, b.ffmpegPath, "-y", "-i", src, dst)
	output, err := cmd.CombinedOutput()
	if err != nil {
		return "", fmt.Errorf("ffmpeg convert failed: %w (output: %s)", err, string(output))
	}
	return dst, nil
}

// Synthesize converts text to a speech payload via the synthesis service.
func (b *Bridge) Synthesize(ctx context.Context, text string) (*Clip, error) {
	if strings.TrimSpace(text) == "" {
		return nil, fmt.Errorf("empty synthesis input")
	}
	resp, err := b.provider.Speak(ctx, &provider.TTSRequest{
		Text:  text,
		Voice: b.voice,
		Model: b.ttsModel,
	})
	if err != nil {
		return nil, fmt.Errorf("synthesis: %w", err)
	}
	return &Clip{Data: resp.AudioData, Format: resp.Format}, nil
}
