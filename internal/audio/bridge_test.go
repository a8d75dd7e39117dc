package audio

import (
	"context"
	"errors"
	"os"
	"path/filepath"
	"strings"
	"testing"

	"github.com/voxrelay/voxrelay/internal/provider"
)

type fakeProvider struct {
	transcript    string
	transcribeErr error
	audioData     []byte
	speakErr      error

	lastAudioReq *provider.AudioRequest
	lastTTSReq   *provider.TTSRequest
}

func (f *fakeProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) Transcribe(ctx context.Context, req *provider.AudioRequest) (*provider.AudioResponse, error) {
	f.lastAudioReq = req
	if f.transcribeErr != nil {
		return nil, f.transcribeErr
	}
	return &provider.AudioResponse{Text: f.transcript}, nil
}

func (f *fakeProvider) Speak(ctx context.Context, req *provider.TTSRequest) (*provider.TTSResponse, error) {
	f.lastTTSReq = req
	if f.speakErr != nil {
		return nil, f.speakErr
	}
	return &provider.TTSResponse{AudioData: f.audioData, Format: "opus"}, nil
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func TestTranscribeReturnsTrimmedText(t *testing.T) {
	prov := &fakeProvider{transcript: "  hello world \n"}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	text, err := bridge.Transcribe(context.Background(), []byte("fake-ogg"), "ogg")
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if text != "hello world" {
		t.Errorf("expected trimmed transcript, got %q", text)
	}
	if prov.lastAudioReq.Model != "whisper-1" {
		t.Errorf("expected whisper-1, got %q", prov.lastAudioReq.Model)
	}
}

func TestTranscribeEmptyTranscript(t *testing.T) {
	prov := &fakeProvider{transcript: "   "}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	_, err := bridge.Transcribe(context.Background(), []byte("fake-ogg"), "ogg")
	if !errors.Is(err, ErrEmptyTranscript) {
		t.Errorf("expected ErrEmptyTranscript, got %v", err)
	}
}

func TestTranscribeEmptyPayload(t *testing.T) {
	prov := &fakeProvider{transcript: "text"}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	if _, err := bridge.Transcribe(context.Background(), nil, "ogg"); err == nil {
		t.Error("expected error for empty payload")
	}
}

func TestTranscribeCleansUpTempDir(t *testing.T) {
	prov := &fakeProvider{transcript: "hello"}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	if _, err := bridge.Transcribe(context.Background(), []byte("fake-ogg"), "ogg"); err != nil {
		t.Fatalf("Transcribe: %v", err)
	}
	if prov.lastAudioReq == nil {
		t.Fatal("provider never called")
	}
	if _, err := os.Stat(filepath.Dir(prov.lastAudioReq.FilePath)); !os.IsNotExist(err) {
		t.Errorf("expected temp dir removed, stat err = %v", err)
	}
}

func TestTranscribeCleansUpOnFailure(t *testing.T) {
	prov := &fakeProvider{transcribeErr: errors.New("service down")}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	_, err := bridge.Transcribe(context.Background(), []byte("fake-ogg"), "ogg")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "transcription") {
		t.Errorf("expected transcription error, got %v", err)
	}
	if _, statErr := os.Stat(filepath.Dir(prov.lastAudioReq.FilePath)); !os.IsNotExist(statErr) {
		t.Errorf("expected temp dir removed after failure, stat err = %v", statErr)
	}
}

func TestTranscribeFileRemovesStagedFile(t *testing.T) {
	prov := &fakeProvider{transcript: "hello"}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	staged := filepath.Join(t.TempDir(), "voice.ogg")
	if err := os.WriteFile(staged, []byte("fake-ogg"), 0600); err != nil {
		t.Fatalf("write staged file: %v", err)
	}

	text, err := bridge.TranscribeFile(context.Background(), staged)
	if err != nil {
		t.Fatalf("TranscribeFile: %v", err)
	}
	if text != "hello" {
		t.Errorf("expected transcript, got %q", text)
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("expected staged file removed, stat err = %v", err)
	}
}

func TestTranscribeFileRemovesStagedFileOnFailure(t *testing.T) {
	prov := &fakeProvider{transcribeErr: errors.New("service down")}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	staged := filepath.Join(t.TempDir(), "voice.ogg")
	if err := os.WriteFile(staged, []byte("fake-ogg"), 0600); err != nil {
		t.Fatalf("write staged file: %v", err)
	}

	if _, err := bridge.TranscribeFile(context.Background(), staged); err == nil {
		t.Fatal("expected error")
	}
	if _, err := os.Stat(staged); !os.IsNotExist(err) {
		t.Errorf("expected staged file removed after failure, stat err = %v", err)
	}
}

func TestSynthesize(t *testing.T) {
	prov := &fakeProvider{audioData: []byte("opus-bytes")}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	clip, err := bridge.Synthesize(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Synthesize: %v", err)
	}
	if string(clip.Data) != "opus-bytes" {
		t.Errorf("unexpected clip data: %q", clip.Data)
	}
	if clip.Format != "opus" {
		t.Errorf("expected opus, got %s", clip.Format)
	}
	if prov.lastTTSReq.Voice != "nova" || prov.lastTTSReq.Model != "tts-1" {
		t.Errorf("unexpected TTS request: %+v", prov.lastTTSReq)
	}
}

func TestSynthesizeEmptyInput(t *testing.T) {
	prov := &fakeProvider{}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	if _, err := bridge.Synthesize(context.Background(), "  "); err == nil {
		t.Error("expected error for empty input")
	}
}

func TestSynthesizeFailureWrapped(t *testing.T) {
	prov := &fakeProvider{speakErr: errors.New("service down")}
	bridge := NewBridge(prov, "", "whisper-1", "tts-1", "nova")

	_, err := bridge.Synthesize(context.Background(), "hello")
	if err == nil || !strings.Contains(err.Error(), "synthesis") {
		t.Errorf("expected synthesis error, got %v", err)
	}
}
