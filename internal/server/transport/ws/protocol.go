package ws

import "github.com/OCharnyshevich/abyss/internal/server/pipeline"

// Message types exchanged as JSON text frames. Chunk payloads travel as
// binary frames holding one zstd-compressed wire frame each.
const (
	TypeRequest = "REQUEST"
	TypeWelcome = "WELCOME"
	TypeDone    = "DONE"
	TypeBusy    = "BUSY"
	TypeError   = "ERROR"
)

type clientMsg struct {
	Type   string `json:"type"`
	Center [2]int `json:"center"`
	Radius int    `json:"radius"`
}

type welcomeMsg struct {
	Type      string `json:"type"`
	Session   string `json:"session"`
	ChunkSize int    `json:"chunk_size"`
	MaxRadius int    `json:"max_radius"`
}

type doneMsg struct {
	Type     string `json:"type"`
	Count    int    `json:"count"`
	Entities int    `json:"entities"`
	Bytes    int    `json:"bytes"`
}

type statusMsg struct {
	Type   string `json:"type"`
	Reason string `json:"reason,omitempty"`
}

type healthMsg struct {
	State    string `json:"state"`
	Sessions int64  `json:"sessions"`
	pipeline.Stats
}
