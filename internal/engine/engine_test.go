package engine

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"
	"sync"
	"testing"

	_ "modernc.org/sqlite"

	"github.com/voxrelay/voxrelay/internal/config"
	"github.com/voxrelay/voxrelay/internal/memory"
	"github.com/voxrelay/voxrelay/internal/provider"
)

type fakeProvider struct {
	mu       sync.Mutex
	requests []*provider.ChatRequest
	reply    string
	err      error
}

func (f *fakeProvider) Chat(ctx context.Context, req *provider.ChatRequest) (*provider.ChatResponse, error) {
	f.mu.Lock()
	f.requests = append(f.requests, req)
	f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	return &provider.ChatResponse{Content: f.reply, FinishReason: "stop"}, nil
}

func (f *fakeProvider) Transcribe(ctx context.Context, req *provider.AudioRequest) (*provider.AudioResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) Speak(ctx context.Context, req *provider.TTSRequest) (*provider.TTSResponse, error) {
	return nil, errors.New("not implemented")
}

func (f *fakeProvider) DefaultModel() string { return "fake-model" }

func (f *fakeProvider) lastRequest() *provider.ChatRequest {
	f.mu.Lock()
	defer f.mu.Unlock()
	if len(f.requests) == 0 {
		return nil
	}
	return f.requests[len(f.requests)-1]
}

func newTestEngine(t *testing.T, prov provider.LLMProvider, window int) (*Engine, *memory.ProfileStore) {
	t.Helper()
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	db.SetMaxOpenConns(1)
	t.Cleanup(func() { db.Close() })

	store, err := memory.NewProfileStore(db, config.DefaultPersonality)
	if err != nil {
		t.Fatalf("NewProfileStore: %v", err)
	}
	eng := New(store, prov, config.ModelConfig{
		Name:         "fake-model",
		MaxTokens:    256,
		PromptWindow: window,
	})
	return eng, store
}

func TestRespondAppendsExactlyTwoTurns(t *testing.T) {
	prov := &fakeProvider{reply: "hi there"}
	eng, store := newTestEngine(t, prov, 40)

	reply, err := eng.Respond(context.Background(), "u1", "hello")
	if err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if reply != "hi there" {
		t.Errorf("expected reply 'hi there', got %q", reply)
	}

	profile := store.Load("u1")
	if len(profile.History) != 2 {
		t.Fatalf("expected 2 turns, got %d", len(profile.History))
	}
	if profile.History[0].Role != memory.RoleUser || profile.History[0].Content != "hello" {
		t.Errorf("unexpected user turn: %+v", profile.History[0])
	}
	if profile.History[1].Role != memory.RoleAssistant || profile.History[1].Content != "hi there" {
		t.Errorf("unexpected assistant turn: %+v", profile.History[1])
	}
}

func TestRespondFailurePersistsNothing(t *testing.T) {
	prov := &fakeProvider{err: errors.New("service down")}
	eng, store := newTestEngine(t, prov, 40)

	_, err := eng.Respond(context.Background(), "u1", "hello")
	if err == nil {
		t.Fatal("expected error")
	}
	if !strings.Contains(err.Error(), "completion") {
		t.Errorf("expected completion error, got %v", err)
	}

	profile := store.Load("u1")
	if len(profile.History) != 0 {
		t.Errorf("expected no turns persisted after failure, got %d", len(profile.History))
	}
}

func TestRespondPromptIncludesPersonalityAndHistory(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	eng, _ := newTestEngine(t, prov, 40)

	if err := eng.SetPersonality("u1", "Talk like a pirate."); err != nil {
		t.Fatalf("SetPersonality: %v", err)
	}
	if _, err := eng.Respond(context.Background(), "u1", "first"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if _, err := eng.Respond(context.Background(), "u1", "second"); err != nil {
		t.Fatalf("Respond: %v", err)
	}

	req := prov.lastRequest()
	if req == nil {
		t.Fatal("no chat request recorded")
	}
	// system + 2 prior turns + new user turn
	if len(req.Messages) != 4 {
		t.Fatalf("expected 4 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Role != memory.RoleSystem || req.Messages[0].Content != "Talk like a pirate." {
		t.Errorf("unexpected system message: %+v", req.Messages[0])
	}
	if req.Messages[3].Content != "second" {
		t.Errorf("expected final message 'second', got %q", req.Messages[3].Content)
	}
}

func TestRespondWindowsPromptHistory(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	eng, _ := newTestEngine(t, prov, 4)

	for i := 0; i < 5; i++ {
		if _, err := eng.Respond(context.Background(), "u1", fmt.Sprintf("msg-%d", i)); err != nil {
			t.Fatalf("Respond: %v", err)
		}
	}

	req := prov.lastRequest()
	// system + 4 windowed turns + new user turn
	if len(req.Messages) != 6 {
		t.Fatalf("expected 6 messages with window 4, got %d", len(req.Messages))
	}
	if req.Messages[len(req.Messages)-1].Content != "msg-4" {
		t.Errorf("expected final message 'msg-4', got %q", req.Messages[len(req.Messages)-1].Content)
	}
}

func TestSetPersonalityPreservesHistory(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	eng, store := newTestEngine(t, prov, 40)

	if _, err := eng.Respond(context.Background(), "u1", "hello"); err != nil {
		t.Fatalf("Respond: %v", err)
	}
	if err := eng.SetPersonality("u1", "Be terse."); err != nil {
		t.Fatalf("SetPersonality: %v", err)
	}

	profile := store.Load("u1")
	if profile.Personality != "Be terse." {
		t.Errorf("expected updated personality, got %q", profile.Personality)
	}
	if len(profile.History) != 2 {
		t.Errorf("expected history preserved, got %d turns", len(profile.History))
	}
}

func TestPersonalityReportsActiveInstruction(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	eng, _ := newTestEngine(t, prov, 40)

	if got := eng.Personality("u1"); got != config.DefaultPersonality {
		t.Errorf("expected default personality for new user, got %q", got)
	}

	if err := eng.SetPersonality("u1", "Be terse."); err != nil {
		t.Fatalf("SetPersonality: %v", err)
	}
	if got := eng.Personality("u1"); got != "Be terse." {
		t.Errorf("expected updated personality, got %q", got)
	}
}

func TestConcurrentRespondsKeepAllTurns(t *testing.T) {
	prov := &fakeProvider{reply: "ok"}
	eng, store := newTestEngine(t, prov, 40)

	const callers = 8
	var wg sync.WaitGroup
	wg.Add(callers)
	for i := 0; i < callers; i++ {
		go func(n int) {
			defer wg.Done()
			if _, err := eng.Respond(context.Background(), "u1", fmt.Sprintf("msg-%d", n)); err != nil {
				t.Errorf("Respond: %v", err)
			}
		}(i)
	}
	wg.Wait()

	profile := store.Load("u1")
	if len(profile.History) != callers*2 {
		t.Errorf("expected %d turns, got %d", callers*2, len(profile.History))
	}
}

func TestSayBypassesMemory(t *testing.T) {
	prov := &fakeProvider{reply: "one-shot"}
	eng, store := newTestEngine(t, prov, 40)

	reply, err := eng.Say(context.Background(), "hello")
	if err != nil {
		t.Fatalf("Say: %v", err)
	}
	if reply != "one-shot" {
		t.Errorf("expected 'one-shot', got %q", reply)
	}

	req := prov.lastRequest()
	if len(req.Messages) != 2 {
		t.Fatalf("expected 2 messages, got %d", len(req.Messages))
	}
	if req.Messages[0].Content != config.DefaultPersonality {
		t.Errorf("expected default personality system turn, got %q", req.Messages[0].Content)
	}

	// Nothing persisted for any user.
	if got := store.Load("u1"); len(got.History) != 0 {
		t.Errorf("expected no persisted turns, got %d", len(got.History))
	}
}
