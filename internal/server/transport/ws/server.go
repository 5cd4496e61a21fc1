// Package ws streams generated chunks to clients over WebSocket.
package ws

import (
	"context"
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"sync/atomic"
	"time"

	"github.com/dustin/go-humanize"
	"github.com/google/uuid"
	"github.com/gorilla/handlers"
	"github.com/gorilla/mux"
	"github.com/gorilla/websocket"

	"github.com/OCharnyshevich/abyss/internal/server/payload"
	"github.com/OCharnyshevich/abyss/internal/server/pipeline"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// Generator runs generation passes. *pipeline.Orchestrator satisfies it.
type Generator interface {
	Generate(req pipeline.Request, done func(pipeline.Result)) bool
	State() pipeline.State
	Stats() pipeline.Stats
}

// Options tunes a Server.
type Options struct {
	ChunkSize int
	MaxRadius int
	QueueSize int // outbound frames buffered per session
}

// Server is the chunk streaming endpoint.
type Server struct {
	gen      Generator
	comp     *payload.Compressor
	opts     Options
	log      *slog.Logger
	sessions atomic.Int64

	upgrader websocket.Upgrader
}

// NewServer creates a Server. comp is shared by all sessions.
func NewServer(gen Generator, comp *payload.Compressor, opts Options, log *slog.Logger) *Server {
	if opts.QueueSize <= 0 {
		opts.QueueSize = 16
	}
	return &Server{
		gen:  gen,
		comp: comp,
		opts: opts,
		log:  log,
		upgrader: websocket.Upgrader{
			ReadBufferSize:  4 * 1024,
			WriteBufferSize: 64 * 1024,
			CheckOrigin:     func(r *http.Request) bool { return true },
		},
	}
}

// Handler returns the routed HTTP handler with access logging.
func (s *Server) Handler() http.Handler {
	r := mux.NewRouter()
	r.HandleFunc("/v1/chunks", s.serveChunks).Methods(http.MethodGet)
	r.HandleFunc("/healthz", s.serveHealth).Methods(http.MethodGet)
	return handlers.CustomLoggingHandler(io.Discard, r, s.accessLog)
}

func (s *Server) accessLog(_ io.Writer, p handlers.LogFormatterParams) {
	s.log.Debug("http request",
		"remote", p.Request.RemoteAddr,
		"method", p.Request.Method,
		"uri", p.URL.RequestURI(),
		"status", p.StatusCode,
		"size", p.Size)
}

func (s *Server) serveHealth(w http.ResponseWriter, _ *http.Request) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(healthMsg{
		State:    s.gen.State().String(),
		Sessions: s.sessions.Load(),
		Stats:    s.gen.Stats(),
	})
}

type frame struct {
	kind int
	data []byte
}

type session struct {
	id  string
	out chan frame
	ctx context.Context
}

// send queues a frame, blocking while the queue is full. It returns false
// once the session is gone.
func (ss *session) send(f frame) bool {
	select {
	case ss.out <- f:
		return true
	case <-ss.ctx.Done():
		return false
	}
}

func (ss *session) sendJSON(v any) bool {
	b, err := json.Marshal(v)
	if err != nil {
		return true
	}
	return ss.send(frame{kind: websocket.TextMessage, data: b})
}

func (s *Server) serveChunks(rw http.ResponseWriter, r *http.Request) {
	conn, err := s.upgrader.Upgrade(rw, r, nil)
	if err != nil {
		s.log.Debug("websocket upgrade failed", "error", err)
		return
	}
	defer conn.Close()

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sess := &session{
		id:  uuid.NewString(),
		out: make(chan frame, s.opts.QueueSize),
		ctx: ctx,
	}
	s.sessions.Add(1)
	defer s.sessions.Add(-1)
	log := s.log.With("session", sess.id)
	log.Info("session opened", "remote", r.RemoteAddr)

	// Writer goroutine.
	go func() {
		for {
			select {
			case <-ctx.Done():
				return
			case f := <-sess.out:
				_ = conn.SetWriteDeadline(time.Now().Add(5 * time.Second))
				if err := conn.WriteMessage(f.kind, f.data); err != nil {
					cancel()
					return
				}
			}
		}
	}()

	sess.sendJSON(welcomeMsg{
		Type:      TypeWelcome,
		Session:   sess.id,
		ChunkSize: s.opts.ChunkSize,
		MaxRadius: s.opts.MaxRadius,
	})

	// Reader loop.
	for {
		_, msg, err := conn.ReadMessage()
		if err != nil {
			cancel()
			break
		}
		var m clientMsg
		if err := json.Unmarshal(msg, &m); err != nil {
			sess.sendJSON(statusMsg{Type: TypeError, Reason: "malformed message"})
			continue
		}
		if m.Type != TypeRequest {
			sess.sendJSON(statusMsg{Type: TypeError, Reason: "unknown type " + m.Type})
			continue
		}
		if m.Radius < 0 || m.Radius > s.opts.MaxRadius {
			sess.sendJSON(statusMsg{Type: TypeError, Reason: "radius out of range"})
			continue
		}
		req := pipeline.Request{
			Center: world.ChunkCoord{X: m.Center[0], Y: m.Center[1]},
			Radius: m.Radius,
		}

		results := make(chan pipeline.Result, 1)
		if !s.gen.Generate(req, func(res pipeline.Result) { results <- res }) {
			<-results
			log.Debug("request rejected, generator busy", "center", req.Center)
			sess.sendJSON(statusMsg{Type: TypeBusy})
			continue
		}
		go s.deliver(log, sess, req, results)
	}

	log.Info("session closed")
}

// deliver streams one pass's payloads in request order, then DONE.
func (s *Server) deliver(log *slog.Logger, sess *session, req pipeline.Request, results <-chan pipeline.Result) {
	var res pipeline.Result
	select {
	case res = <-results:
	case <-sess.ctx.Done():
		return
	}

	total, ents := 0, 0
	for _, p := range res.Payloads {
		raw, err := payload.Encode(p)
		if err != nil {
			log.Error("encode payload", "chunk", p.Coord, "error", err)
			continue
		}
		packed := s.comp.Compress(raw)
		if !sess.send(frame{kind: websocket.BinaryMessage, data: packed}) {
			return
		}
		total += len(packed)
		ents += len(p.EntityIDs)
	}

	sess.sendJSON(doneMsg{Type: TypeDone, Count: len(res.Payloads), Entities: ents, Bytes: total})
	log.Info("chunks sent",
		"center", req.Center, "radius", req.Radius,
		"count", len(res.Payloads), "size", humanize.Bytes(uint64(total)))
}
