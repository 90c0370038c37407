package storage

import (
	"encoding/binary"
	"fmt"
	"math"

	"github.com/divavault/scanner-core/internal/models"
)

// encodeVector packs a 512-dim float32 embedding as a little-endian blob
// for sqlite storage (no native vector type).
func encodeVector(v [models.EmbeddingDim]float32) []byte {
	buf := make([]byte, models.EmbeddingDim*4)
	for i, f := range v {
		binary.LittleEndian.PutUint32(buf[i*4:], math.Float32bits(f))
	}
	return buf
}

// decodeVector reverses encodeVector.
func decodeVector(buf []byte) ([models.EmbeddingDim]float32, error) {
	var v [models.EmbeddingDim]float32
	if len(buf) != models.EmbeddingDim*4 {
		return v, fmt.Errorf("storage: vector blob has %d bytes, want %d", len(buf), models.EmbeddingDim*4)
	}
	for i := range v {
		v[i] = math.Float32frombits(binary.LittleEndian.Uint32(buf[i*4:]))
	}
	return v, nil
}
