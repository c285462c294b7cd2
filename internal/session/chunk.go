package session

import (
	"encoding/binary"
	"math"
)

// chunkSamples is the wire chunk size in samples (~100 ms at 24 kHz).
const chunkSamples = 2400

// encodeChunk builds a wire audio frame: a 4-byte little-endian sentence
// index followed by the samples as little-endian f32, no further framing.
func encodeChunk(idx uint32, samples []float32) []byte {
	buf := make([]byte, 4+4*len(samples))
	binary.LittleEndian.PutUint32(buf[0:4], idx)
	for i, s := range samples {
		binary.LittleEndian.PutUint32(buf[4+4*i:8+4*i], math.Float32bits(s))
	}
	return buf
}
