package main

import (
	"errors"
	"os"
	"path/filepath"
	"testing"

	"github.com/isotopp/deploy/internal/access"
)

// The allow-list gate runs before any operation; a rejected identity
// must leave the store untouched and no command executed.
func TestExecute_RejectedUserTouchesNothing(t *testing.T) {
	storeDir := t.TempDir()

	cfgPath := filepath.Join(t.TempDir(), "deploy.yaml")
	cfgText := "store_dir: " + storeDir + "\nallowed_users: [nobody-on-this-host]\n"
	if err := os.WriteFile(cfgPath, []byte(cfgText), 0644); err != nil {
		t.Fatalf("Failed to write config: %v", err)
	}

	rootCmd.SetArgs([]string{
		"--config", cfgPath,
		"create", "static_site", "blog",
		"--github", "git@github.com:kris/blog.git",
	})

	err := rootCmd.Execute()
	if !errors.Is(err, access.ErrNotAllowed) {
		t.Fatalf("Execute = %v, expected ErrNotAllowed", err)
	}

	entries, err := os.ReadDir(storeDir)
	if err != nil {
		t.Fatalf("Failed to read store directory: %v", err)
	}
	if len(entries) != 0 {
		t.Errorf("Rejected user must not touch the store, found %d entries", len(entries))
	}
}
