package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"

	"github.com/klauspost/compress/zstd"

	"github.com/OCharnyshevich/abyss/internal/server/wire"
	"github.com/OCharnyshevich/abyss/internal/server/world"
)

// ChunkMessageID identifies a chunk frame on the wire.
const ChunkMessageID int32 = 0x01

type chunkMessage struct {
	X          int32  `wire:"svarint"`
	Y          int32  `wire:"svarint"`
	Size       int32  `wire:"varint"`
	Tiles      []byte `wire:"bytearray"`
	Ores       []byte `wire:"bytearray"`
	Durability []byte `wire:"bytearray"`
	Entities   []byte `wire:"bytearray"`
}

func (chunkMessage) MessageID() int32 { return ChunkMessageID }

// Encode writes p as a single framed wire message.
func Encode(p *ChunkPayload) ([]byte, error) {
	m := chunkMessage{
		X:          int32(p.Coord.X),
		Y:          int32(p.Coord.Y),
		Size:       int32(p.Size),
		Tiles:      EncodeRLE(widen(p.TileIDs)),
		Ores:       EncodeRLE(widen(p.OreIDs)),
		Durability: EncodeRLE(zigzag(p.Durability)),
		Entities:   putUvarints(p.EntityIDs),
	}
	var buf bytes.Buffer
	if err := wire.WriteMessage(&buf, m); err != nil {
		return nil, fmt.Errorf("encode chunk %s: %w", p.Coord, err)
	}
	return buf.Bytes(), nil
}

// Decode parses a frame produced by Encode.
func Decode(frame []byte) (*ChunkPayload, error) {
	var m chunkMessage
	if err := wire.ReadMessage(bytes.NewReader(frame), &m); err != nil {
		return nil, fmt.Errorf("decode chunk: %w", err)
	}
	if m.Size <= 0 || m.Size > 1024 {
		return nil, fmt.Errorf("decode chunk: size %d out of range", m.Size)
	}
	n := int(m.Size) * int(m.Size)

	tiles, err := DecodeRLE(m.Tiles, n)
	if err != nil {
		return nil, fmt.Errorf("decode tiles: %w", err)
	}
	ores, err := DecodeRLE(m.Ores, n)
	if err != nil {
		return nil, fmt.Errorf("decode ores: %w", err)
	}
	dur, err := DecodeRLE(m.Durability, n)
	if err != nil {
		return nil, fmt.Errorf("decode durability: %w", err)
	}
	ids, err := readUvarints(m.Entities)
	if err != nil {
		return nil, fmt.Errorf("decode entity ids: %w", err)
	}

	p := &ChunkPayload{
		Coord:      world.ChunkCoord{X: int(m.X), Y: int(m.Y)},
		Size:       int(m.Size),
		TileIDs:    narrow(tiles),
		OreIDs:     narrow(ores),
		Durability: make([]int32, n),
		EntityIDs:  ids,
	}
	for i, v := range dur {
		p.Durability[i] = wire.UnZigZag(int32(v))
	}
	return p, nil
}

func widen(ids []world.TileID) []uint32 {
	out := make([]uint32, len(ids))
	for i, t := range ids {
		out[i] = uint32(t)
	}
	return out
}

func narrow(vals []uint32) []world.TileID {
	out := make([]world.TileID, len(vals))
	for i, v := range vals {
		out[i] = world.TileID(v)
	}
	return out
}

func zigzag(vals []int32) []uint32 {
	out := make([]uint32, len(vals))
	for i, v := range vals {
		out[i] = uint32(wire.ZigZag(v))
	}
	return out
}

func putUvarints(vals []uint64) []byte {
	buf := make([]byte, 0, len(vals)*2)
	for _, v := range vals {
		buf = binary.AppendUvarint(buf, v)
	}
	return buf
}

func readUvarints(raw []byte) ([]uint64, error) {
	var out []uint64
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		out = append(out, v)
		i += n
	}
	return out, nil
}

// Compressor wraps a shared zstd encoder and decoder. EncodeAll and
// DecodeAll are safe for concurrent use.
type Compressor struct {
	enc *zstd.Encoder
	dec *zstd.Decoder
}

// NewCompressor creates a compressor at the default speed.
func NewCompressor() (*Compressor, error) {
	enc, err := zstd.NewWriter(nil, zstd.WithEncoderLevel(zstd.SpeedDefault))
	if err != nil {
		return nil, fmt.Errorf("create zstd encoder: %w", err)
	}
	dec, err := zstd.NewReader(nil)
	if err != nil {
		enc.Close()
		return nil, fmt.Errorf("create zstd decoder: %w", err)
	}
	return &Compressor{enc: enc, dec: dec}, nil
}

// Compress returns the zstd-compressed form of src.
func (c *Compressor) Compress(src []byte) []byte {
	return c.enc.EncodeAll(src, make([]byte, 0, len(src)/2))
}

// Decompress reverses Compress.
func (c *Compressor) Decompress(src []byte) ([]byte, error) {
	out, err := c.dec.DecodeAll(src, nil)
	if err != nil {
		return nil, fmt.Errorf("zstd decode: %w", err)
	}
	return out, nil
}

// Close releases the encoder and decoder.
func (c *Compressor) Close() {
	c.enc.Close()
	c.dec.Close()
}
