package cli

import "testing"

func TestCommandsRegistered(t *testing.T) {
	want := map[string]bool{
		"version": false,
		"status":  false,
		"gateway": false,
		"chat":    false,
		"say":     false,
	}
	for _, cmd := range rootCmd.Commands() {
		if _, ok := want[cmd.Name()]; ok {
			want[cmd.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Errorf("expected command %q registered", name)
		}
	}
}

func TestRootUse(t *testing.T) {
	if rootCmd.Use != "voxrelay" {
		t.Errorf("expected root use voxrelay, got %s", rootCmd.Use)
	}
}
