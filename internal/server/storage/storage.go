package storage

import (
	"encoding/json"
	"fmt"
	"log/slog"
	"os"
	"path/filepath"

	"github.com/OCharnyshevich/abyss/internal/server/config"
	"github.com/OCharnyshevich/abyss/internal/server/settings"
)

// Storage handles file-based persistence for config and resolved world
// settings.
type Storage struct {
	dir string
	log *slog.Logger
}

// New creates a new Storage rooted at dir, creating subdirectories as needed.
func New(dir string, log *slog.Logger) (*Storage, error) {
	dirs := []string{
		dir,
		filepath.Join(dir, "world"),
		filepath.Join(dir, "logs"),
	}
	for _, d := range dirs {
		if err := os.MkdirAll(d, 0o755); err != nil {
			return nil, fmt.Errorf("create directory %s: %w", d, err)
		}
	}
	return &Storage{dir: dir, log: log}, nil
}

// Dir returns the storage root.
func (s *Storage) Dir() string { return s.dir }

// RegistryPath is where the entity registry database lives.
func (s *Storage) RegistryPath() string {
	return filepath.Join(s.dir, "world", "entities.sqlite")
}

// LoadConfig reads config.json into cfg. If the file does not exist, cfg is unchanged.
func (s *Storage) LoadConfig(cfg *config.Config) error {
	path := filepath.Join(s.dir, "config.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil
		}
		return fmt.Errorf("read config: %w", err)
	}
	if err := json.Unmarshal(data, cfg); err != nil {
		return fmt.Errorf("parse config: %w", err)
	}
	s.log.Info("loaded config from file", "path", path)
	return nil
}

// SaveConfig writes cfg to config.json atomically.
func (s *Storage) SaveConfig(cfg *config.Config) error {
	path := filepath.Join(s.dir, "config.json")
	return s.atomicWriteJSON(path, cfg)
}

// LoadSettings reads the resolved settings saved for seed. It returns nil
// when nothing is saved or the saved world used a different seed.
func (s *Storage) LoadSettings(seed int64) (*settings.WorldGenSettings, error) {
	path := filepath.Join(s.dir, "world", "settings.json")
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, nil
		}
		return nil, fmt.Errorf("read settings: %w", err)
	}

	var ws settings.WorldGenSettings
	if err := json.Unmarshal(data, &ws); err != nil {
		return nil, fmt.Errorf("parse settings: %w", err)
	}
	if ws.Seed != seed {
		s.log.Warn("saved settings belong to another seed, ignoring",
			"saved", ws.Seed, "seed", seed)
		return nil, nil
	}
	s.log.Info("loaded world settings", "path", path, "bands", len(ws.Bands), "features", len(ws.Features))
	return &ws, nil
}

// SaveSettings writes the resolved settings atomically.
func (s *Storage) SaveSettings(ws *settings.WorldGenSettings) error {
	path := filepath.Join(s.dir, "world", "settings.json")
	return s.atomicWriteJSON(path, ws)
}

// atomicWriteJSON marshals v to JSON and writes it atomically using a temp file + rename.
func (s *Storage) atomicWriteJSON(path string, v any) error {
	data, err := json.MarshalIndent(v, "", "  ")
	if err != nil {
		return fmt.Errorf("marshal json: %w", err)
	}
	data = append(data, '\n')

	tmp := path + ".tmp"
	if err := os.WriteFile(tmp, data, 0o644); err != nil {
		return fmt.Errorf("write temp file: %w", err)
	}
	if err := os.Rename(tmp, path); err != nil {
		os.Remove(tmp)
		return fmt.Errorf("rename temp file: %w", err)
	}
	return nil
}
