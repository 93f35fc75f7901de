package audio

import (
	"encoding/binary"
	"math"
)

// EncodePCM16 interleaves left and right into 16-bit little-endian PCM,
// appending to dst. Samples are scaled by 32767 and clamped to the int16
// range. The shorter of left and right sets the frame count.
func EncodePCM16(dst []byte, left, right []float32) []byte {
	n := min(len(left), len(right))
	for i := 0; i < n; i++ {
		dst = binary.LittleEndian.AppendUint16(dst, uint16(toInt16(left[i])))
		dst = binary.LittleEndian.AppendUint16(dst, uint16(toInt16(right[i])))
	}
	return dst
}

// DecodePCM16 splits interleaved stereo s16le PCM back into float buffers.
func DecodePCM16(src []byte) (left, right []float32) {
	frames := len(src) / BytesPerFrame
	left = make([]float32, frames)
	right = make([]float32, frames)
	for i := 0; i < frames; i++ {
		off := i * BytesPerFrame
		left[i] = float32(int16(binary.LittleEndian.Uint16(src[off:]))) / math.MaxInt16
		right[i] = float32(int16(binary.LittleEndian.Uint16(src[off+2:]))) / math.MaxInt16
	}
	return left, right
}

func toInt16(v float32) int16 {
	s := float64(v) * math.MaxInt16
	if s > math.MaxInt16 {
		return math.MaxInt16
	}
	if s < math.MinInt16 {
		return math.MinInt16
	}
	return int16(s)
}
