// Package provider implements completion-service interfaces and clients.
package provider

import (
	"context"
)

// LLMProvider is the interface for completion/speech API clients.
type LLMProvider interface {
	// Chat sends a completion request and returns the response.
	Chat(ctx context.Context, req *ChatRequest) (*ChatResponse, error)
	// Transcribe converts audio to text.
	Transcribe(ctx context.Context, req *AudioRequest) (*AudioResponse, error)
	// Speak converts text to audio.
	Speak(ctx context.Context, req *TTSRequest) (*TTSResponse, error)
	// DefaultModel returns the configured default model.
	DefaultModel() string
}

// TTSRequest contains parameters for speech synthesis.
type TTSRequest struct {
	Text  string
	Voice string
	Model string
}

// TTSResponse contains the synthesized audio.
type TTSResponse struct {
	AudioData []byte
	Format    string
}

// AudioRequest contains parameters for transcription.
type AudioRequest struct {
	FilePath string
	Model    string
}

// AudioResponse contains the transcribed text.
type AudioResponse struct {
	Text string
}

// ChatRequest contains the parameters for a chat completion request.
type ChatRequest struct {
	Messages    []Message
	Model       string
	MaxTokens   int
	Temperature float64
}

// ChatResponse contains the response from a chat completion request.
type ChatResponse struct {
	Content      string
	FinishReason string
	Usage        Usage
}

// Message represents a chat message.
type Message struct {
	Role    string `json:"role"`
	Content string `json:"content"`
}

// Usage contains token usage information.
type Usage struct {
	PromptTokens     int `json:"prompt_tokens"`
	CompletionTokens int `json:"completion_tokens"`
	TotalTokens      int `json:"total_tokens"`
}
