package payload

import (
	"bytes"
	"encoding/binary"
	"fmt"
)

// EncodeRLE packs values as (value, run) uvarint pairs.
func EncodeRLE(vals []uint32) []byte {
	var buf bytes.Buffer
	var tmp [binary.MaxVarintLen64]byte

	for i := 0; i < len(vals); {
		v := vals[i]
		run := 1
		for j := i + 1; j < len(vals) && vals[j] == v; j++ {
			run++
		}

		n := binary.PutUvarint(tmp[:], uint64(v))
		buf.Write(tmp[:n])
		n = binary.PutUvarint(tmp[:], uint64(run))
		buf.Write(tmp[:n])

		i += run
	}
	return buf.Bytes()
}

// DecodeRLE unpacks exactly want values.
func DecodeRLE(raw []byte, want int) ([]uint32, error) {
	out := make([]uint32, 0, want)
	for i := 0; i < len(raw); {
		v, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		run, n := binary.Uvarint(raw[i:])
		if n <= 0 {
			return nil, fmt.Errorf("bad varint at %d", i)
		}
		i += n
		if v > 0xFFFFFFFF {
			return nil, fmt.Errorf("value too large: %d", v)
		}
		if run > uint64(want-len(out)) {
			return nil, fmt.Errorf("run of %d overflows %d values", run, want)
		}
		for k := uint64(0); k < run; k++ {
			out = append(out, uint32(v))
		}
	}
	if len(out) != want {
		return nil, fmt.Errorf("decoded %d values, want %d", len(out), want)
	}
	return out, nil
}
