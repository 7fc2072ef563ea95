package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"

	"go.uber.org/zap/zapcore"

	"github.com/nathoo/questscript/engine/syntax"
)

func TestParse_Defaults(t *testing.T) {
	c, err := Parse([]byte(`{}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := c.ScriptsDir(); got != "scripts" {
		t.Errorf("ScriptsDir = %q, want scripts", got)
	}
	if got := c.AddonsDir(); got != "addons" {
		t.Errorf("AddonsDir = %q, want addons", got)
	}
	if c.CacheSize() != 0 || c.Debug() {
		t.Errorf("CacheSize = %d, Debug = %v", c.CacheSize(), c.Debug())
	}
	if lvl, _ := c.Level(); lvl != zapcore.InfoLevel {
		t.Errorf("Level = %v, want info", lvl)
	}
	if c.Limits() != (syntax.Limits{}) {
		t.Errorf("Limits = %+v, want zero", c.Limits())
	}
}

func TestParse_HuJSON(t *testing.T) {
	c, err := Parse([]byte(`{
		// where the scripts live
		"ScriptsDir": "game/scripts",
		"CacheSize": 64,
		"LogLevel": "debug",
		"Debug": true,
		"Seed": 42,
		"Limits": {"MaxSteps": 5000, "MaxDepth": 8,},
	}`))
	if err != nil {
		t.Fatalf("Parse: %v", err)
	}
	if got := c.ScriptsDir(); got != "game/scripts" {
		t.Errorf("ScriptsDir = %q", got)
	}
	if c.CacheSize() != 64 || !c.Debug() {
		t.Errorf("CacheSize = %d, Debug = %v", c.CacheSize(), c.Debug())
	}
	if c.Seed() != 42 {
		t.Errorf("Seed = %d, want 42", c.Seed())
	}
	if lvl, _ := c.Level(); lvl != zapcore.DebugLevel {
		t.Errorf("Level = %v, want debug", lvl)
	}
	if want := (syntax.Limits{MaxSteps: 5000, MaxDepth: 8}); c.Limits() != want {
		t.Errorf("Limits = %+v, want %+v", c.Limits(), want)
	}
}

func TestParse_Errors(t *testing.T) {
	tests := []struct {
		name string
		in   string
		want string
	}{
		{"syntax", `{"ScriptsDir": }`, "HuJSON"},
		{"unknown field", `{"ScriptDir": "x"}`, "unknown field"},
		{"bad level", `{"LogLevel": "loud"}`, "LogLevel"},
		{"negative cache", `{"CacheSize": -1}`, "CacheSize"},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := Parse([]byte(tt.in))
			if err == nil || !strings.Contains(err.Error(), tt.want) {
				t.Errorf("err = %v, want it to mention %q", err, tt.want)
			}
		})
	}
}

func TestLoad(t *testing.T) {
	path := filepath.Join(t.TempDir(), "qs.hujson")
	if err := os.WriteFile(path, []byte(`{"AddonsDir": "lua"}`), 0o644); err != nil {
		t.Fatal(err)
	}
	c, err := Load(path)
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	if got := c.AddonsDir(); got != "lua" {
		t.Errorf("AddonsDir = %q, want lua", got)
	}

	c.SetAddonsDir("other")
	c.SetDebug(true)
	c.SetSeed(7)
	if c.AddonsDir() != "other" || !c.Debug() || c.Seed() != 7 {
		t.Errorf("setters not applied: %q %v", c.AddonsDir(), c.Debug())
	}

	if _, err := Load(filepath.Join(t.TempDir(), "missing.hujson")); err == nil {
		t.Error("expected error for a missing explicit config file")
	}
}
