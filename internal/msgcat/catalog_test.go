package msgcat

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func TestEmbeddedDefaultsLoad(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}

	got, err := c.Render("tier.warning", map[string]string{"Score": "-1.10"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if !strings.Contains(got, "-1.10") {
		t.Errorf("rendered = %q", got)
	}

	if _, err := c.Render("session.ended", map[string]string{"Outcome": "failed"}); err != nil {
		t.Errorf("session.ended: %v", err)
	}
	if _, err := c.Render("engine.down", nil); err != nil {
		t.Errorf("engine.down: %v", err)
	}
}

func TestRenderUnknownKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Render("no.such.key", nil); err == nil {
		t.Fatal("expected error for unknown key")
	}
}

func TestRenderMissingDataKey(t *testing.T) {
	c, err := New("")
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if _, err := c.Render("tier.safe", map[string]string{}); err == nil {
		t.Fatal("expected error for missing template data")
	}
}

func TestOverrideDirectory(t *testing.T) {
	dir := t.TempDir()
	override := "tier:\n  safe: \"custom safe {{.Score}}\"\n"
	if err := os.WriteFile(filepath.Join(dir, "10-local.yaml"), []byte(override), 0o644); err != nil {
		t.Fatalf("write override: %v", err)
	}

	c, err := New(dir)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	got, err := c.Render("tier.safe", map[string]string{"Score": "0.20"})
	if err != nil {
		t.Fatalf("render: %v", err)
	}
	if got != "custom safe 0.20" {
		t.Errorf("rendered = %q", got)
	}

	// untouched keys keep their defaults
	if _, err := c.Render("opponent.thinking", nil); err != nil {
		t.Errorf("default lost after override: %v", err)
	}
}

func TestOverrideDuplicateKeyRejected(t *testing.T) {
	dir := t.TempDir()
	a := "tier:\n  safe: \"a\"\n"
	b := "tier:\n  safe: \"b\"\n"
	if err := os.WriteFile(filepath.Join(dir, "a.yaml"), []byte(a), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if err := os.WriteFile(filepath.Join(dir, "b.yaml"), []byte(b), 0o644); err != nil {
		t.Fatalf("write: %v", err)
	}
	if _, err := New(dir); err == nil {
		t.Fatal("expected duplicate key error")
	}
}

func TestOverrideDirMissing(t *testing.T) {
	if _, err := New("/no/such/dir"); err == nil {
		t.Fatal("expected error for unreadable override dir")
	}
}
