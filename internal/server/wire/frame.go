package wire

import (
	"bytes"
	"fmt"
	"io"
)

// MaxFrameSize is the largest frame ReadFrame accepts.
const MaxFrameSize = 1 << 21

// Message is a struct with wire tags and a fixed message id.
type Message interface {
	MessageID() int32
}

// ReadFrame reads one length-prefixed frame and splits off its message id.
func ReadFrame(r io.Reader) (id int32, data []byte, err error) {
	length, _, err := ReadVarInt(r)
	if err != nil {
		return 0, nil, fmt.Errorf("read frame length: %w", err)
	}
	if length < 1 {
		return 0, nil, fmt.Errorf("frame length too small: %d", length)
	}
	if length > MaxFrameSize {
		return 0, nil, fmt.Errorf("frame too large: %d bytes", length)
	}

	payload := make([]byte, length)
	if _, err := io.ReadFull(r, payload); err != nil {
		return 0, nil, fmt.Errorf("read frame payload: %w", err)
	}

	buf := bytes.NewReader(payload)
	id, _, err = ReadVarInt(buf)
	if err != nil {
		return 0, nil, fmt.Errorf("read message id: %w", err)
	}
	return id, payload[len(payload)-buf.Len():], nil
}

// WriteFrame writes id and data as one length-prefixed frame.
func WriteFrame(w io.Writer, id int32, data []byte) error {
	idSize := VarIntSize(id)
	totalLen := idSize + len(data)

	var buf bytes.Buffer
	buf.Grow(VarIntSize(int32(totalLen)) + totalLen)

	if _, err := WriteVarInt(&buf, int32(totalLen)); err != nil {
		return fmt.Errorf("write frame length: %w", err)
	}
	if _, err := WriteVarInt(&buf, id); err != nil {
		return fmt.Errorf("write message id: %w", err)
	}
	buf.Write(data)

	if _, err := w.Write(buf.Bytes()); err != nil {
		return fmt.Errorf("flush frame: %w", err)
	}
	return nil
}

// WriteMessage marshals m and writes it as a frame.
func WriteMessage(w io.Writer, m Message) error {
	data, err := Marshal(m)
	if err != nil {
		return fmt.Errorf("marshal message 0x%02X: %w", m.MessageID(), err)
	}
	return WriteFrame(w, m.MessageID(), data)
}

// ReadMessage reads a frame and unmarshals it into m, checking the id.
func ReadMessage(r io.Reader, m Message) error {
	id, data, err := ReadFrame(r)
	if err != nil {
		return err
	}
	if id != m.MessageID() {
		return fmt.Errorf("expected message 0x%02X, got 0x%02X", m.MessageID(), id)
	}
	return Unmarshal(data, m)
}
