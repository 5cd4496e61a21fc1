package storage

import (
	"io"
	"log/slog"
	"os"
	"path/filepath"
	"reflect"
	"testing"

	"github.com/OCharnyshevich/abyss/internal/server/config"
	"github.com/OCharnyshevich/abyss/internal/server/settings"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func newStorage(t *testing.T) *Storage {
	t.Helper()
	s, err := New(filepath.Join(t.TempDir(), "data"), testLogger())
	if err != nil {
		t.Fatalf("New: %v", err)
	}
	return s
}

func TestNewCreatesDirectories(t *testing.T) {
	s := newStorage(t)
	for _, d := range []string{"world", "logs"} {
		if fi, err := os.Stat(filepath.Join(s.Dir(), d)); err != nil || !fi.IsDir() {
			t.Errorf("%s not created: %v", d, err)
		}
	}
}

func TestConfigRoundTrip(t *testing.T) {
	s := newStorage(t)

	cfg := config.DefaultConfig()
	if err := s.LoadConfig(cfg); err != nil {
		t.Fatalf("LoadConfig on empty dir: %v", err)
	}
	if cfg.Port != config.DefaultConfig().Port {
		t.Errorf("missing file changed config: %+v", cfg)
	}

	cfg.Seed = 99
	cfg.Workers = 12
	if err := s.SaveConfig(cfg); err != nil {
		t.Fatalf("SaveConfig: %v", err)
	}
	got := &config.Config{}
	if err := s.LoadConfig(got); err != nil {
		t.Fatalf("LoadConfig: %v", err)
	}
	if !reflect.DeepEqual(cfg, got) {
		t.Errorf("got %+v, want %+v", got, cfg)
	}
	if _, err := os.Stat(filepath.Join(s.Dir(), "config.json.tmp")); !os.IsNotExist(err) {
		t.Error("temp file left behind")
	}
}

func TestSettingsRoundTrip(t *testing.T) {
	s := newStorage(t)

	a, err := settings.Load("../../../configs/worldgen.yaml")
	if err != nil {
		t.Fatalf("Load: %v", err)
	}
	ws, err := settings.Resolve(a, 1234, true)
	if err != nil {
		t.Fatalf("Resolve: %v", err)
	}

	if got, err := s.LoadSettings(1234); err != nil || got != nil {
		t.Fatalf("LoadSettings before save = %v, %v", got, err)
	}
	if err := s.SaveSettings(ws); err != nil {
		t.Fatalf("SaveSettings: %v", err)
	}

	got, err := s.LoadSettings(1234)
	if err != nil {
		t.Fatalf("LoadSettings: %v", err)
	}
	if !reflect.DeepEqual(got, ws) {
		t.Errorf("settings changed across save/load")
	}

	other, err := s.LoadSettings(5678)
	if err != nil {
		t.Fatalf("LoadSettings other seed: %v", err)
	}
	if other != nil {
		t.Error("settings for another seed should be ignored")
	}
}

func TestLoadSettingsCorrupt(t *testing.T) {
	s := newStorage(t)
	path := filepath.Join(s.Dir(), "world", "settings.json")
	if err := os.WriteFile(path, []byte("{not json"), 0o644); err != nil {
		t.Fatal(err)
	}
	if _, err := s.LoadSettings(0); err == nil {
		t.Fatal("expected parse error")
	}
}
