package assets

import (
	"strings"
	"testing"
)

func TestFetchPrelude(t *testing.T) {
	data, err := Fetch("/assets/sandbox/prelude.js")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if !strings.Contains(string(data), "function display") {
		t.Errorf("prelude missing display definition: %q", data)
	}
}

func TestFetchIgnoresDeploymentPrefix(t *testing.T) {
	plain, err := Fetch("/assets/compiler/globals.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	prefixed, err := Fetch("/blog/v2/assets/compiler/globals.json")
	if err != nil {
		t.Fatalf("unexpected error: %v", err)
	}
	if string(plain) != string(prefixed) {
		t.Error("prefixed address returned different content")
	}
}

func TestFetchOutsideRoot(t *testing.T) {
	if _, err := Fetch("/etc/passwd"); err == nil {
		t.Error("expected error for address outside the assets root")
	}
}

func TestFetchUnknownFile(t *testing.T) {
	if _, err := Fetch("/assets/sandbox/missing.js"); err == nil {
		t.Error("expected error for unknown file")
	}
}
