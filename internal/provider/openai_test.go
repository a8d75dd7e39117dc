package provider

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestChatSendsRequestAndParsesResponse(t *testing.T) {
	var gotPath, gotAuth string
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		gotPath = r.URL.Path
		gotAuth = r.Header.Get("Authorization")
		json.NewDecoder(r.Body).Decode(&gotBody)
		json.NewEncoder(w).Encode(map[string]any{
			"choices": []map[string]any{
				{
					"message":       map[string]any{"role": "assistant", "content": "hi!"},
					"finish_reason": "stop",
				},
			},
			"usage": map[string]any{"prompt_tokens": 5, "completion_tokens": 2, "total_tokens": 7},
		})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "gpt-4o")
	resp, err := p.Chat(context.Background(), &ChatRequest{
		Messages:  []Message{{Role: "user", Content: "hello"}},
		MaxTokens: 100,
	})
	if err != nil {
		t.Fatalf("Chat: %v", err)
	}

	if resp.Content != "hi!" {
		t.Errorf("expected content hi!, got %q", resp.Content)
	}
	if resp.Usage.TotalTokens != 7 {
		t.Errorf("expected 7 total tokens, got %d", resp.Usage.TotalTokens)
	}
	if gotPath != "/chat/completions" {
		t.Errorf("expected /chat/completions, got %s", gotPath)
	}
	if gotAuth != "Bearer test-key" {
		t.Errorf("unexpected auth header: %s", gotAuth)
	}
	if gotBody["model"] != "gpt-4o" {
		t.Errorf("expected default model in body, got %v", gotBody["model"])
	}
}

func TestChatAPIErrorSurfaced(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		http.Error(w, `{"error": "rate limited"}`, http.StatusTooManyRequests)
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "gpt-4o")
	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "429") {
		t.Errorf("expected status in error, got %v", err)
	}
}

func TestChatEmptyChoices(t *testing.T) {
	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		json.NewEncoder(w).Encode(map[string]any{"choices": []any{}})
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "gpt-4o")
	_, err := p.Chat(context.Background(), &ChatRequest{
		Messages: []Message{{Role: "user", Content: "hello"}},
	})
	if err == nil || !strings.Contains(err.Error(), "no choices") {
		t.Errorf("expected no-choices error, got %v", err)
	}
}

func TestTranscribeUploadsMultipart(t *testing.T) {
	var gotModel, gotFilename string

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/transcriptions" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		if err := r.ParseMultipartForm(1 << 20); err != nil {
			t.Errorf("parse multipart: %v", err)
		}
		gotModel = r.FormValue("model")
		if fhs := r.MultipartForm.File["file"]; len(fhs) == 1 {
			gotFilename = fhs[0].Filename
		}
		json.NewEncoder(w).Encode(map[string]any{"text": "hello world"})
	}))
	defer server.Close()

	audioPath := filepath.Join(t.TempDir(), "note.ogg")
	if err := os.WriteFile(audioPath, []byte("fake-audio"), 0600); err != nil {
		t.Fatalf("write audio: %v", err)
	}

	p := NewOpenAIProvider("test-key", server.URL, "gpt-4o")
	resp, err := p.Transcribe(context.Background(), &AudioRequest{FilePath: audioPath, Model: "whisper-1"})
	if err != nil {
		t.Fatalf("Transcribe: %v", err)
	}

	if resp.Text != "hello world" {
		t.Errorf("expected transcript, got %q", resp.Text)
	}
	if gotModel != "whisper-1" {
		t.Errorf("expected whisper-1, got %q", gotModel)
	}
	if gotFilename != "note.ogg" {
		t.Errorf("expected filename note.ogg, got %q", gotFilename)
	}
}

func TestTranscribeMissingFile(t *testing.T) {
	p := NewOpenAIProvider("test-key", "http://127.0.0.1:1", "gpt-4o")
	_, err := p.Transcribe(context.Background(), &AudioRequest{FilePath: "/nonexistent/file.ogg"})
	if err == nil {
		t.Fatal("expected error for missing file")
	}
}

func TestSpeakReturnsOpusPayload(t *testing.T) {
	var gotBody map[string]any

	server := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if r.URL.Path != "/audio/speech" {
			t.Errorf("unexpected path %s", r.URL.Path)
		}
		json.NewDecoder(r.Body).Decode(&gotBody)
		w.Write([]byte("opus-bytes"))
	}))
	defer server.Close()

	p := NewOpenAIProvider("test-key", server.URL, "gpt-4o")
	resp, err := p.Speak(context.Background(), &TTSRequest{Text: "hello", Voice: "nova", Model: "tts-1"})
	if err != nil {
		t.Fatalf("Speak: %v", err)
	}

	if string(resp.AudioData) != "opus-bytes" {
		t.Errorf("unexpected audio payload: %q", resp.AudioData)
	}
	if resp.Format != "opus" {
		t.Errorf("expected opus format, got %s", resp.Format)
	}
	if gotBody["response_format"] != "opus" {
		t.Errorf("expected opus response_format in request, got %v", gotBody["response_format"])
	}
	if gotBody["voice"] != "nova" {
		t.Errorf("expected voice nova, got %v", gotBody["voice"])
	}
}
