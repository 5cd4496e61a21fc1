package main

import (
	"context"
	"flag"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"path/filepath"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/natefinch/lumberjack"

	"github.com/OCharnyshevich/abyss/internal/server"
	"github.com/OCharnyshevich/abyss/internal/server/config"
	"github.com/OCharnyshevich/abyss/internal/server/storage"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

func main() {
	cfg := config.DefaultConfig()

	flag.IntVar(&cfg.Port, "port", cfg.Port, "http port")
	flag.StringVar(&cfg.DataDir, "data-dir", cfg.DataDir, "directory for config, settings and the entity registry")
	flag.StringVar(&cfg.Definitions, "definitions", cfg.Definitions, "world generation definitions (yaml)")
	flag.Int64Var(&cfg.Seed, "seed", cfg.Seed, "world seed")
	flag.BoolVar(&cfg.Randomize, "randomize", cfg.Randomize, "shuffle biome band layout")
	flag.IntVar(&cfg.Workers, "workers", cfg.Workers, "parallel chunk jobs")
	flag.IntVar(&cfg.MaxRadius, "max-radius", cfg.MaxRadius, "largest request radius in chunks")
	flag.StringVar(&cfg.LogFile, "log-file", cfg.LogFile, "rotated log file (optional)")
	flag.StringVar(&cfg.LogLevel, "log-level", cfg.LogLevel, "debug, info, warn or error")
	flag.IntVar(&cfg.Preview, "preview-scale", cfg.Preview, "preview upscale factor")
	preview := flag.String("preview", "", "write a mask preview PNG around -preview-x/-preview-y and exit")
	previewX := flag.Int("preview-x", 0, "preview center chunk x")
	previewY := flag.Int("preview-y", -4, "preview center chunk y")
	previewR := flag.Int("preview-radius", 4, "preview radius in chunks")
	flag.Parse()

	explicit := make(map[string]bool)
	flag.Visit(func(f *flag.Flag) { explicit[f.Name] = true })

	boot := slog.New(slog.NewTextHandler(os.Stdout, &slog.HandlerOptions{Level: slog.LevelInfo}))

	if err := godotenv.Load(); err != nil && !os.IsNotExist(err) {
		boot.Warn("load .env", "error", err)
	}
	if err := config.ApplyEnv(cfg, nil, explicit); err != nil {
		boot.Error("environment config", "error", err)
		os.Exit(1)
	}

	st, err := storage.New(cfg.DataDir, boot)
	if err != nil {
		boot.Error("open data dir", "error", err)
		os.Exit(1)
	}
	fromFile := *cfg
	if err := st.LoadConfig(&fromFile); err != nil {
		boot.Error("load config", "error", err)
		os.Exit(1)
	}
	config.Merge(cfg, &fromFile, explicit)
	// Environment beats config.json.
	if err := config.ApplyEnv(cfg, nil, explicit); err != nil {
		boot.Error("environment config", "error", err)
		os.Exit(1)
	}

	var out io.Writer = os.Stdout
	if cfg.LogFile != "" {
		path := cfg.LogFile
		if !filepath.IsAbs(path) {
			path = filepath.Join(cfg.DataDir, path)
		}
		out = io.MultiWriter(os.Stdout, &lumberjack.Logger{
			Filename: path,
			MaxSize:  10,
			Compress: true,
		})
	}
	log := slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: cfg.Level()}))

	st, err = storage.New(cfg.DataDir, log)
	if err != nil {
		log.Error("open data dir", "error", err)
		os.Exit(1)
	}
	if err := st.SaveConfig(cfg); err != nil {
		log.Warn("save config", "error", err)
	}

	srv, err := server.New(cfg, st, log)
	if err != nil {
		log.Error("build server", "error", err)
		os.Exit(1)
	}
	defer srv.Close()

	if *preview != "" {
		center := world.ChunkCoord{X: *previewX, Y: *previewY}
		if err := srv.WritePreview(*preview, center, *previewR); err != nil {
			log.Error("preview", "error", err)
			os.Exit(1)
		}
		return
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := srv.Start(ctx); err != nil {
		log.Error("server error", "error", err)
		os.Exit(1)
	}
}
