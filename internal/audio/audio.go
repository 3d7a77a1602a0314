package audio

import (
	"encoding/binary"
	"time"
)

const (
	SampleRate    = 24000
	Channels      = 1
	BitDepth      = 16
	FrameDuration = 20 * time.Millisecond
	FrameSize     = 480                  // samples per channel per 20ms frame
	FrameSamples  = FrameSize * Channels // total interleaved samples per frame
	FrameBytes    = FrameSamples * 2     // bytes per frame (int16 = 2 bytes)
)

// Format describes a raw PCM layout: interleaved 16-bit signed little-endian
// samples at a fixed rate and channel count.
type Format struct {
	SampleRate int
	Channels   int
}

// DefaultFormat is the layout published to the room: 24kHz mono.
func DefaultFormat() Format {
	return Format{SampleRate: SampleRate, Channels: Channels}
}

// FrameSamplesFor returns the samples per channel in one frame of duration d.
func (f Format) FrameSamplesFor(d time.Duration) int {
	return int(float64(f.SampleRate)*d.Seconds() + 0.5)
}

// FrameBytesFor returns the byte size of one frame of duration d.
func (f Format) FrameBytesFor(d time.Duration) int {
	return f.FrameSamplesFor(d) * f.Channels * 2
}

// Frame is one fixed-duration slice of decoded audio. Frames are values:
// produced by the chunker, handed to the sink, then discarded.
type Frame struct {
	Data    []int16 // interleaved samples, len == Samples * Format.Channels
	Samples int     // samples per channel
	Format  Format
}

// Duration returns the play time this frame represents.
func (f Frame) Duration() time.Duration {
	return time.Duration(f.Samples) * time.Second / time.Duration(f.Format.SampleRate)
}

// SamplesToBytes converts int16 samples to little-endian bytes.
func SamplesToBytes(samples []int16) []byte {
	buf := make([]byte, len(samples)*2)
	for i, s := range samples {
		binary.LittleEndian.PutUint16(buf[i*2:], uint16(s))
	}
	return buf
}

// BytesToSamples converts little-endian bytes to int16 samples. A trailing
// odd byte is dropped.
func BytesToSamples(buf []byte) []int16 {
	samples := make([]int16, len(buf)/2)
	for i := range samples {
		samples[i] = int16(binary.LittleEndian.Uint16(buf[i*2 : i*2+2]))
	}
	return samples
}
