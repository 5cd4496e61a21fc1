package server

import (
	"context"
	"errors"
	"fmt"
	"image/png"
	"log/slog"
	"net"
	"net/http"
	"os"
	"time"

	"github.com/OCharnyshevich/abyss/internal/server/config"
	"github.com/OCharnyshevich/abyss/internal/server/mask"
	"github.com/OCharnyshevich/abyss/internal/server/payload"
	"github.com/OCharnyshevich/abyss/internal/server/pipeline"
	"github.com/OCharnyshevich/abyss/internal/server/registry"
	"github.com/OCharnyshevich/abyss/internal/server/settings"
	"github.com/OCharnyshevich/abyss/internal/server/storage"
	"github.com/OCharnyshevich/abyss/internal/server/structures"
	"github.com/OCharnyshevich/abyss/internal/server/transport/ws"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Server owns the generation pipeline and the HTTP endpoint streaming it.
type Server struct {
	cfg *config.Config
	log *slog.Logger

	bundle     *settings.Bundle
	rasterizer *mask.Rasterizer
	store      *world.Store
	entities   *registry.SQLite
	comp       *payload.Compressor
	orch       *pipeline.Orchestrator
	transport  *ws.Server
}

// New loads the world definitions, resolves settings for cfg.Seed and wires
// the pipeline. Settings saved for the same seed are reused.
func New(cfg *config.Config, st *storage.Storage, log *slog.Logger) (*Server, error) {
	a, err := settings.Load(cfg.Definitions)
	if err != nil {
		return nil, err
	}

	resolved, err := st.LoadSettings(cfg.Seed)
	if err != nil {
		return nil, err
	}
	if resolved == nil {
		resolved, err = settings.Resolve(a, cfg.Seed, cfg.Randomize)
		if err != nil {
			return nil, fmt.Errorf("resolve settings: %w", err)
		}
		if err := st.SaveSettings(resolved); err != nil {
			return nil, fmt.Errorf("save settings: %w", err)
		}
	}

	bundle, err := settings.NewBundle(a, resolved)
	if err != nil {
		return nil, fmt.Errorf("build bundle: %w", err)
	}

	ents, err := registry.Open(st.RegistryPath())
	if err != nil {
		return nil, err
	}
	comp, err := payload.NewCompressor()
	if err != nil {
		ents.Close()
		return nil, err
	}

	materials, biomes := mask.DefaultMaterials(), mask.DefaultBiomes()
	s := &Server{
		cfg:        cfg,
		log:        log,
		bundle:     bundle,
		rasterizer: mask.NewRasterizer(resolved, materials, biomes, log),
		store:      world.NewStore(resolved.ChunkSize),
		entities:   ents,
		comp:       comp,
	}

	placed := structures.NewRegistry()
	n := pipeline.RegisterFeatures(bundle, placed)

	s.orch = pipeline.New(pipeline.Config{
		Bundle:     bundle,
		Renderer:   s.rasterizer,
		Decoder:    mask.NewDecoder(materials, biomes, log),
		Store:      s.store,
		Structures: placed,
		Registry:   ents,
		Workers:    cfg.Workers,
	}, log)

	s.transport = ws.NewServer(s.orch, comp, ws.Options{
		ChunkSize: resolved.ChunkSize,
		MaxRadius: cfg.MaxRadius,
	}, log)

	log.Info("world ready",
		"seed", resolved.Seed,
		"randomize", resolved.Randomize,
		"bands", len(resolved.Bands),
		"ores", len(resolved.Ores),
		"features", n,
		"entities", len(bundle.Entities))
	return s, nil
}

// Orchestrator exposes the pipeline, mainly for tests and tooling.
func (s *Server) Orchestrator() *pipeline.Orchestrator { return s.orch }

// Handler returns the HTTP handler.
func (s *Server) Handler() http.Handler { return s.transport.Handler() }

// Start serves HTTP and blocks until the context is cancelled.
func (s *Server) Start(ctx context.Context) error {
	addr := fmt.Sprintf(":%d", s.cfg.Port)
	lc := net.ListenConfig{}

	listener, err := lc.Listen(ctx, "tcp", addr)
	if err != nil {
		return fmt.Errorf("listen on %s: %w", addr, err)
	}

	srv := &http.Server{
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}

	s.log.Info("server started",
		"port", s.cfg.Port,
		"workers", s.cfg.Workers,
		"maxRadius", s.cfg.MaxRadius,
	)

	// Shut down when context is cancelled.
	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
		defer cancel()
		_ = srv.Shutdown(shutdownCtx)
	}()

	if err := srv.Serve(listener); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("serve: %w", err)
	}
	s.log.Info("server shutting down")
	return nil
}

// WritePreview renders the square of chunks around center and writes it,
// upscaled by cfg.Preview, as a PNG.
func (s *Server) WritePreview(path string, center world.ChunkCoord, radius int) error {
	req := pipeline.Request{Center: center, Radius: radius}
	img, err := s.rasterizer.Paint(req.Viewport())
	if err != nil {
		return fmt.Errorf("paint preview: %w", err)
	}
	buf := mask.FromImage(img)

	f, err := os.Create(path)
	if err != nil {
		return fmt.Errorf("create preview: %w", err)
	}
	defer f.Close()
	if err := png.Encode(f, mask.Preview(buf, s.cfg.Preview)); err != nil {
		return fmt.Errorf("encode preview: %w", err)
	}
	s.log.Info("preview written", "path", path, "width", buf.Width, "height", buf.Height)
	return nil
}

// Close releases the registry and compressor.
func (s *Server) Close() error {
	s.comp.Close()
	return s.entities.Close()
}
