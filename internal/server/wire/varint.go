// Package wire is the binary codec for chunk payloads sent to clients.
package wire

import (
	"errors"
	"fmt"
	"io"
)

var errVarIntTooLong = errors.New("varint too long")

func ReadVarInt(r io.Reader) (int32, int, error) {
	var result uint32
	var numRead int
	var buf [1]byte

	for {
		if _, err := io.ReadFull(r, buf[:]); err != nil {
			return 0, numRead, err
		}
		numRead++

		result |= uint32(buf[0]&0x7F) << (7 * (numRead - 1))

		if buf[0]&0x80 == 0 {
			break
		}
		if numRead >= 5 {
			return 0, numRead, errVarIntTooLong
		}
	}
	return int32(result), numRead, nil
}

func WriteVarInt(w io.Writer, value int32) (int, error) {
	var buf [5]byte
	val := uint32(value)
	n := 0
	for {
		b := byte(val & 0x7F)
		val >>= 7
		if val != 0 {
			b |= 0x80
		}
		buf[n] = b
		n++
		if val == 0 {
			break
		}
	}
	return w.Write(buf[:n])
}

func VarIntSize(value int32) int {
	val := uint32(value)
	size := 1
	for val >>= 7; val != 0; val >>= 7 {
		size++
	}
	return size
}

// ZigZag maps signed values so small negatives stay short on the wire.
func ZigZag(v int32) int32 {
	return int32((uint32(v) << 1) ^ uint32(v>>31))
}

// UnZigZag reverses ZigZag.
func UnZigZag(v int32) int32 {
	return int32(uint32(v)>>1) ^ -(v & 1)
}

// maxArrayLen bounds length prefixes read from untrusted input.
const maxArrayLen = 1 << 22

func ReadByteArray(r io.Reader) ([]byte, error) {
	length, _, err := ReadVarInt(r)
	if err != nil {
		return nil, fmt.Errorf("read byte array length: %w", err)
	}
	if length < 0 || length > maxArrayLen {
		return nil, fmt.Errorf("byte array length out of range: %d", length)
	}
	buf := make([]byte, length)
	if _, err := io.ReadFull(r, buf); err != nil {
		return nil, fmt.Errorf("read byte array data: %w", err)
	}
	return buf, nil
}

func WriteByteArray(w io.Writer, data []byte) (int, error) {
	n1, err := WriteVarInt(w, int32(len(data)))
	if err != nil {
		return n1, err
	}
	n2, err := w.Write(data)
	return n1 + n2, err
}
