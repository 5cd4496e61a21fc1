package ws

import (
	"encoding/json"
	"io"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"

	"github.com/OCharnyshevich/abyss/internal/server/payload"
	"github.com/OCharnyshevich/abyss/internal/server/pipeline"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

const testChunkSize = 4

type fakeGenerator struct {
	busy bool
}

func (g *fakeGenerator) Generate(req pipeline.Request, done func(pipeline.Result)) bool {
	if g.busy {
		done(pipeline.Result{})
		return false
	}
	var out []*payload.ChunkPayload
	for _, c := range req.Coords() {
		chunk := world.NewChunkData(c, testChunkSize)
		chunk.SetTile(0, 0, world.TileRock)
		p := payload.FromChunk(chunk)
		p.EntityIDs = []uint64{uint64(len(out) + 1)}
		out = append(out, p)
	}
	go done(pipeline.Result{Payloads: out})
	return true
}

func (g *fakeGenerator) State() pipeline.State { return pipeline.StateIdle }

func (g *fakeGenerator) Stats() pipeline.Stats {
	return pipeline.Stats{Chunks: 12, Structures: 3, Stamped: 2}
}

func newTestServer(t *testing.T, gen Generator) (*httptest.Server, *payload.Compressor) {
	t.Helper()
	comp, err := payload.NewCompressor()
	if err != nil {
		t.Fatalf("NewCompressor: %v", err)
	}
	t.Cleanup(comp.Close)
	log := slog.New(slog.NewTextHandler(io.Discard, nil))
	srv := NewServer(gen, comp, Options{ChunkSize: testChunkSize, MaxRadius: 2}, log)
	ts := httptest.NewServer(srv.Handler())
	t.Cleanup(ts.Close)
	return ts, comp
}

func dial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/v1/chunks"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	t.Cleanup(func() { conn.Close() })
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))

	var w welcomeMsg
	readJSON(t, conn, &w)
	if w.Type != TypeWelcome || w.Session == "" || w.ChunkSize != testChunkSize {
		t.Fatalf("welcome = %+v", w)
	}
	return conn
}

func readJSON(t *testing.T, conn *websocket.Conn, v any) {
	t.Helper()
	kind, data, err := conn.ReadMessage()
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	if kind != websocket.TextMessage {
		t.Fatalf("message kind = %d, want text", kind)
	}
	if err := json.Unmarshal(data, v); err != nil {
		t.Fatalf("unmarshal %q: %v", data, err)
	}
}

func TestStreamChunks(t *testing.T) {
	ts, comp := newTestServer(t, &fakeGenerator{})
	conn := dial(t, ts)

	if err := conn.WriteJSON(clientMsg{Type: TypeRequest, Center: [2]int{3, -2}, Radius: 1}); err != nil {
		t.Fatalf("write: %v", err)
	}

	want := pipeline.Request{Center: world.ChunkCoord{X: 3, Y: -2}, Radius: 1}.Coords()
	for i, c := range want {
		kind, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read chunk %d: %v", i, err)
		}
		if kind != websocket.BinaryMessage {
			t.Fatalf("chunk %d kind = %d, want binary", i, kind)
		}
		raw, err := comp.Decompress(data)
		if err != nil {
			t.Fatalf("decompress: %v", err)
		}
		p, err := payload.Decode(raw)
		if err != nil {
			t.Fatalf("decode: %v", err)
		}
		if p.Coord != c {
			t.Errorf("chunk %d coord = %v, want %v", i, p.Coord, c)
		}
		if p.TileIDs[0] != world.TileRock {
			t.Errorf("chunk %d tile = %d", i, p.TileIDs[0])
		}
	}

	var done doneMsg
	readJSON(t, conn, &done)
	if done.Type != TypeDone || done.Count != len(want) || done.Entities != len(want) || done.Bytes == 0 {
		t.Errorf("done = %+v", done)
	}
}

func TestBusy(t *testing.T) {
	ts, _ := newTestServer(t, &fakeGenerator{busy: true})
	conn := dial(t, ts)

	if err := conn.WriteJSON(clientMsg{Type: TypeRequest, Radius: 0}); err != nil {
		t.Fatalf("write: %v", err)
	}
	var st statusMsg
	readJSON(t, conn, &st)
	if st.Type != TypeBusy {
		t.Errorf("status = %+v, want BUSY", st)
	}
}

func TestRejectsBadRequests(t *testing.T) {
	ts, _ := newTestServer(t, &fakeGenerator{})
	conn := dial(t, ts)

	tests := []struct {
		name string
		msg  string
	}{
		{"malformed", `{"type":`},
		{"unknown type", `{"type":"PING"}`},
		{"radius too large", `{"type":"REQUEST","center":[0,0],"radius":3}`},
		{"negative radius", `{"type":"REQUEST","center":[0,0],"radius":-1}`},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if err := conn.WriteMessage(websocket.TextMessage, []byte(tt.msg)); err != nil {
				t.Fatalf("write: %v", err)
			}
			var st statusMsg
			readJSON(t, conn, &st)
			if st.Type != TypeError || st.Reason == "" {
				t.Errorf("status = %+v, want ERROR", st)
			}
		})
	}
}

func TestHealth(t *testing.T) {
	ts, _ := newTestServer(t, &fakeGenerator{})

	resp, err := http.Get(ts.URL + "/healthz")
	if err != nil {
		t.Fatalf("get: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status = %d", resp.StatusCode)
	}
	var h healthMsg
	if err := json.NewDecoder(resp.Body).Decode(&h); err != nil {
		t.Fatalf("decode: %v", err)
	}
	if h.State != pipeline.StateIdle.String() {
		t.Errorf("state = %q", h.State)
	}
	if h.Stats != (pipeline.Stats{Chunks: 12, Structures: 3, Stamped: 2}) {
		t.Errorf("stats = %+v", h.Stats)
	}
}
