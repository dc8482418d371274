package cli

import (
	"errors"
	"os"
	"path/filepath"
	"slices"
	"strings"
	"testing"
)

func TestMaskAPIKey(t *testing.T) {
	tests := []struct {
		key  string
		want string
	}{
		{"", ""},
		{"1234", "****"},
		{"12345678", "********"},
		{"123456789", "1234*6789"},
		{"sk-1234567890abcdef", "sk-1***********cdef"},
	}
	for _, tt := range tests {
		if got := MaskAPIKey(tt.key); got != tt.want {
			t.Errorf("MaskAPIKey(%q) = %q, want %q", tt.key, got, tt.want)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	path := filepath.Join(t.TempDir(), "realtalk", "config.yaml")
	cfg, err := LoadConfig("realtalk", path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if _, err := os.Stat(path); !errors.Is(err, os.ErrNotExist) {
		t.Fatalf("LoadConfig created %s before Save", path)
	}
	if _, err := cfg.ResolveContext(""); !errors.Is(err, ErrNoContext) {
		t.Fatalf("ResolveContext(\"\") error = %v, want ErrNoContext", err)
	}

	err = cfg.AddContext("prod", &Context{APIKey: "sk-prod", Model: "gpt-4o-realtime-preview", ServerVAD: true})
	if err != nil {
		t.Fatalf("AddContext() error: %v", err)
	}
	if err := cfg.AddContext("dev", &Context{APIKey: "sk-dev", Transport: "webrtc"}); err != nil {
		t.Fatalf("AddContext() error: %v", err)
	}
	if cfg.CurrentContext != "prod" {
		t.Fatalf("CurrentContext = %q, want prod (first added)", cfg.CurrentContext)
	}
	if err := cfg.UseContext("dev"); err != nil {
		t.Fatalf("UseContext() error: %v", err)
	}

	data, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read config: %v", err)
	}
	if !strings.Contains(string(data), "current_context: dev") {
		t.Fatalf("config file:\n%s", data)
	}

	loaded, err := LoadConfig("realtalk", path)
	if err != nil {
		t.Fatalf("LoadConfig() error: %v", err)
	}
	if got := loaded.ListContexts(); !slices.Equal(got, []string{"dev", "prod"}) {
		t.Fatalf("ListContexts() = %v", got)
	}
	ctx, err := loaded.ResolveContext("")
	if err != nil || ctx.Name != "dev" || ctx.Transport != "webrtc" {
		t.Fatalf("ResolveContext(\"\") = %+v, %v", ctx, err)
	}
	prod, err := loaded.ResolveContext("prod")
	if err != nil || !prod.ServerVAD || prod.APIKey != "sk-prod" {
		t.Fatalf("ResolveContext(prod) = %+v, %v", prod, err)
	}

	if err := loaded.DeleteContext("dev"); err != nil {
		t.Fatalf("DeleteContext() error: %v", err)
	}
	if loaded.CurrentContext != "" {
		t.Fatalf("CurrentContext = %q after deleting it", loaded.CurrentContext)
	}
	if err := loaded.DeleteContext("dev"); err == nil {
		t.Fatalf("DeleteContext(missing) succeeded")
	}
	if err := loaded.UseContext("nope"); err == nil {
		t.Fatalf("UseContext(missing) succeeded")
	}
}

func TestLoadConfigInvalid(t *testing.T) {
	path := filepath.Join(t.TempDir(), "config.yaml")
	os.WriteFile(path, []byte("contexts: [unclosed"), 0o600)
	if _, err := LoadConfig("realtalk", path); err == nil {
		t.Fatalf("LoadConfig() of invalid YAML succeeded")
	}
}

func TestPaths(t *testing.T) {
	p := &Paths{AppName: "realtalk", HomeDir: "/home/u"}
	if got, want := p.ConfigFile(), filepath.Join("/home/u", ".giztoy", "realtalk", "config.yaml"); got != want {
		t.Fatalf("ConfigFile() = %q, want %q", got, want)
	}
	if got, want := p.DataDir(), filepath.Join("/home/u", ".giztoy", "realtalk", "data"); got != want {
		t.Fatalf("DataDir() = %q, want %q", got, want)
	}
}
