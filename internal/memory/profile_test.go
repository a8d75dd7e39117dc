package memory

import (
	"fmt"
	"testing"
)

func TestRecentHistoryWindow(t *testing.T) {
	p := NewUserProfile("default")
	for i := 0; i < 10; i++ {
		p.Append(RoleUser, fmt.Sprintf("msg-%d", i))
	}

	recent := p.RecentHistory(4)
	if len(recent) != 4 {
		t.Fatalf("expected 4 turns, got %d", len(recent))
	}
	if recent[0].Content != "msg-6" {
		t.Errorf("expected window to start at msg-6, got %s", recent[0].Content)
	}
	if recent[3].Content != "msg-9" {
		t.Errorf("expected window to end at msg-9, got %s", recent[3].Content)
	}
}

func TestRecentHistoryZeroMeansAll(t *testing.T) {
	p := NewUserProfile("default")
	for i := 0; i < 3; i++ {
		p.Append(RoleUser, "x")
	}
	if got := len(p.RecentHistory(0)); got != 3 {
		t.Errorf("expected full history for zero window, got %d", got)
	}
	if got := len(p.RecentHistory(50)); got != 3 {
		t.Errorf("expected full history for oversized window, got %d", got)
	}
}
