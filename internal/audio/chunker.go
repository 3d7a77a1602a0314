package audio

import (
	"io"
	"time"
)

// Chunker slices a raw PCM byte stream into fixed-duration frames. It is
// forward-only and reads at most one frame ahead, so frame emission can be
// paced against a real-time sink.
type Chunker struct {
	r       io.Reader
	format  Format
	samples int    // samples per channel per frame
	buf     []byte // one frame of raw bytes, reused between reads
	err     error  // sticky error after the final frame
}

// NewChunker wraps a raw sample stream in the given format, producing frames
// of the given duration.
func NewChunker(r io.Reader, format Format, frameDuration time.Duration) *Chunker {
	samples := format.FrameSamplesFor(frameDuration)
	return &Chunker{
		r:       r,
		format:  format,
		samples: samples,
		buf:     make([]byte, samples*format.Channels*2),
	}
}

// FrameSamples returns the samples per channel in each emitted frame.
func (c *Chunker) FrameSamples() int { return c.samples }

// Next returns the next frame. A short final chunk is zero-padded with
// silence; a zero-byte final read ends the sequence with no extra frame.
// Returns io.EOF once the stream is exhausted, or the stream's error after
// any complete frames preceding it have been emitted.
func (c *Chunker) Next() (Frame, error) {
	if c.err != nil {
		return Frame{}, c.err
	}

	n, err := io.ReadFull(c.r, c.buf)
	switch {
	case err == nil:
	case err == io.EOF:
		c.err = io.EOF
		return Frame{}, io.EOF
	case err == io.ErrUnexpectedEOF:
		// Short final chunk: pad to a full frame of silence.
		for i := n; i < len(c.buf); i++ {
			c.buf[i] = 0
		}
		c.err = io.EOF
	default:
		// Partial data under one frame is dropped; earlier complete
		// frames were already emitted.
		c.err = err
		return Frame{}, err
	}

	return Frame{
		Data:    BytesToSamples(c.buf),
		Samples: c.samples,
		Format:  c.format,
	}, nil
}
