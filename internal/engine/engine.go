// Package engine implements the conversation engine: prompt construction,
// completion calls and memory updates.
package engine

import (
	"context"
	"fmt"
	"time"

	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/memory"
	"github.com/voxrelay/voxrelay/internal/provider"
)

// Greeting is the fixed /start reply.
const Greeting = "👋 Hello! I'm voxrelay. Send a message or a voice note to begin."

// Engine answers user messages from stored conversation state.
type Engine struct {
	store          *memory.ProfileStore
	provider       provider.LLMProvider
	model          string
	maxTokens      int
	temperature    float64
	promptWindow   int
	requestTimeout time.Duration
}

// New creates a conversation engine.
func New(store *memory.ProfileStore, prov provider.LLMProvider, cfg config.ModelConfig) *Engine {
	timeout := cfg.RequestTimeout
	if timeout <= 0 {
		timeout = 120 * time.Second
	}
	return &Engine{
		store:          store,
		provider:       prov,
		model:          cfg.Name,
		maxTokens:      cfg.MaxTokens,
		temperature:    cfg.Temperature,
		promptWindow:   cfg.PromptWindow,
		requestTimeout: timeout,
	}
}

// Respond answers userText for userID. On success exactly two turns (user,
// assistant) are appended to the persisted history. On completion failure
// nothing is persisted and the error is surfaced; there is no retry.
func (e *Engine) Respond(ctx context.Context, userID, userText string) (string, error) {
	profile := e.store.Load(userID)

	messages := make([]provider.Message, 0, e.promptWindow+2)
	messages = append(messages, provider.Message{Role: memory.RoleSystem, Content: profile.Personality})
	for _, turn := range profile.RecentHistory(e.promptWindow) {
		messages = append(messages, provider.Message{Role: turn.Role, Content: turn.Content})
	}
	messages = append(messages, provider.Message{Role: memory.RoleUser, Content: userText})

	// The completion call happens outside the per-user lock: only the
	// append below needs serialization.
	callCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()
	resp, err := e.provider.Chat(callCtx, &provider.ChatRequest{
		Messages:    messages,
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}

	err = e.store.Update(userID, func(p *memory.UserProfile) error {
		p.Append(memory.RoleUser, userText)
		p.Append(memory.RoleAssistant, resp.Content)
		return nil
	})
	if err != nil {
		return "", fmt.Errorf("persist turns: %w", err)
	}

	return resp.Content, nil
}

// SetPersonality replaces the stored personality for userID. History is
// untouched. An empty string is accepted and becomes the active instruction;
// rejecting it is the caller's business.
func (e *Engine) SetPersonality(userID, text string) error {
	return e.store.Update(userID, func(p *memory.UserProfile) error {
		p.Personality = text
		return nil
	})
}

// Personality returns the active personality for userID.
func (e *Engine) Personality(userID string) string {
	return e.store.Load(userID).Personality
}

// Say runs a one-shot completion that bypasses stored history entirely.
func (e *Engine) Say(ctx context.Context, text string) (string, error) {
	callCtx, cancel := context.WithTimeout(ctx, e.requestTimeout)
	defer cancel()
	resp, err := e.provider.Chat(callCtx, &provider.ChatRequest{
		Messages: []provider.Message{
			{Role: memory.RoleSystem, Content: config.DefaultPersonality},
			{Role: memory.RoleUser, Content: text},
		},
		Model:       e.model,
		MaxTokens:   e.maxTokens,
		Temperature: e.temperature,
	})
	if err != nil {
		return "", fmt.Errorf("completion: %w", err)
	}
	return resp.Content, nil
}
