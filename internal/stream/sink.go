package stream

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"
	"gopkg.in/hraban/opus.v2"

	"github.com/roomcast/roomcast/internal/audio"
)

type frameEncoder interface {
	Encode(pcm []int16, data []byte) (int, error)
}

type sampleWriter interface {
	WriteSample(s media.Sample) error
}

// OpusSink encodes PCM frames to Opus and ships them onto the published
// track at real-time cadence. WriteFrame blocks on a frame-duration ticker
// so a fast decoder cannot outrun the room.
type OpusSink struct {
	enc    frameEncoder
	writer sampleWriter
	buf    []byte
	dur    time.Duration

	mu     sync.Mutex
	ticker *time.Ticker
}

// NewOpusSink creates a sink for the given track and PCM format.
func NewOpusSink(writer sampleWriter, format audio.Format, frameDuration time.Duration) (*OpusSink, error) {
	enc, err := opus.NewEncoder(format.SampleRate, format.Channels, opus.AppAudio)
	if err != nil {
		return nil, fmt.Errorf("opus encoder: %w", err)
	}
	enc.SetBitrate(64000)

	return &OpusSink{
		enc:    enc,
		writer: writer,
		buf:    make([]byte, 4000),
		dur:    frameDuration,
	}, nil
}

// WriteFrame waits for the frame's slot in the cadence, encodes it and
// writes it to the track. Frames are delivered strictly in call order.
func (s *OpusSink) WriteFrame(ctx context.Context, f audio.Frame) error {
	s.mu.Lock()
	if s.ticker == nil {
		s.ticker = time.NewTicker(s.dur)
	}
	ticker := s.ticker
	s.mu.Unlock()

	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-ticker.C:
	}

	n, err := s.enc.Encode(f.Data, s.buf)
	if err != nil {
		return fmt.Errorf("opus encode: %w", err)
	}
	if err := s.writer.WriteSample(media.Sample{
		Data:     s.buf[:n],
		Duration: s.dur,
	}); err != nil {
		return fmt.Errorf("write sample: %w", err)
	}
	return nil
}

// ResetPacing releases the cadence ticker so the next frame starts a fresh
// real-time schedule instead of consuming a tick left over from an earlier
// run. Safe to call concurrently with WriteFrame and more than once.
func (s *OpusSink) ResetPacing() {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.ticker != nil {
		s.ticker.Stop()
		s.ticker = nil
	}
}
