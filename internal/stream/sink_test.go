package stream

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/pion/webrtc/v4/pkg/media"

	"github.com/roomcast/roomcast/internal/audio"
)

type stubEncoder struct {
	err   error
	calls int
}

// Encode marks each payload with its sequence number so ordering is visible
// at the writer.
func (e *stubEncoder) Encode(pcm []int16, data []byte) (int, error) {
	if e.err != nil {
		return 0, e.err
	}
	e.calls++
	data[0] = byte(e.calls)
	return 1, nil
}

type stubWriter struct {
	samples []media.Sample
	err     error
}

func (w *stubWriter) WriteSample(s media.Sample) error {
	if w.err != nil {
		return w.err
	}
	data := make([]byte, len(s.Data))
	copy(data, s.Data)
	s.Data = data
	w.samples = append(w.samples, s)
	return nil
}

func testSink(enc frameEncoder, w sampleWriter) *OpusSink {
	return &OpusSink{
		enc:    enc,
		writer: w,
		buf:    make([]byte, 64),
		dur:    time.Millisecond,
	}
}

func testFrame() audio.Frame {
	return audio.Frame{
		Data:    make([]int16, 480),
		Samples: 480,
		Format:  audio.Format{SampleRate: 24000, Channels: 1},
	}
}

func TestWriteFrameDeliversInOrder(t *testing.T) {
	w := &stubWriter{}
	s := testSink(&stubEncoder{}, w)

	for i := 0; i < 3; i++ {
		if err := s.WriteFrame(context.Background(), testFrame()); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}

	if len(w.samples) != 3 {
		t.Fatalf("wrote %d samples, want 3", len(w.samples))
	}
	for i, sample := range w.samples {
		if sample.Data[0] != byte(i+1) {
			t.Errorf("sample %d carries payload %d, want strict encode order", i, sample.Data[0])
		}
		if sample.Duration != time.Millisecond {
			t.Errorf("sample %d duration = %v, want the frame duration", i, sample.Duration)
		}
	}
}

func TestWriteFramePacesAgainstTicker(t *testing.T) {
	w := &stubWriter{}
	s := testSink(&stubEncoder{}, w)
	s.dur = 10 * time.Millisecond

	start := time.Now()
	for i := 0; i < 4; i++ {
		if err := s.WriteFrame(context.Background(), testFrame()); err != nil {
			t.Fatalf("WriteFrame %d: %v", i, err)
		}
	}
	if elapsed := time.Since(start); elapsed < 30*time.Millisecond {
		t.Errorf("4 frames shipped in %v, want at least ~3 frame durations of pacing", elapsed)
	}
}

func TestWriteFrameEncodeError(t *testing.T) {
	w := &stubWriter{}
	s := testSink(&stubEncoder{err: errors.New("encoder broken")}, w)

	if err := s.WriteFrame(context.Background(), testFrame()); err == nil {
		t.Fatal("want encode error")
	}
	if len(w.samples) != 0 {
		t.Errorf("failed encode still reached the writer: %d samples", len(w.samples))
	}
}

func TestWriteFrameWriterError(t *testing.T) {
	w := &stubWriter{err: errors.New("track closed")}
	s := testSink(&stubEncoder{}, w)

	if err := s.WriteFrame(context.Background(), testFrame()); err == nil {
		t.Fatal("want writer error surfaced as sink rejection")
	}
}

func TestWriteFrameCancelledContext(t *testing.T) {
	ctx, cancel := context.WithCancel(context.Background())
	cancel()

	s := testSink(&stubEncoder{}, &stubWriter{})
	if err := s.WriteFrame(ctx, testFrame()); !errors.Is(err, context.Canceled) {
		t.Fatalf("got %v, want context.Canceled", err)
	}
}

func TestResetPacingIsIdempotent(t *testing.T) {
	s := testSink(&stubEncoder{}, &stubWriter{})
	s.ResetPacing() // before any write
	if err := s.WriteFrame(context.Background(), testFrame()); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	s.ResetPacing()
	s.ResetPacing()
}

func TestResetPacingStartsFreshCadence(t *testing.T) {
	s := testSink(&stubEncoder{}, &stubWriter{})
	s.dur = 50 * time.Millisecond

	if err := s.WriteFrame(context.Background(), testFrame()); err != nil {
		t.Fatalf("WriteFrame: %v", err)
	}
	// Let a tick queue up between playbacks; a reset must discard it.
	time.Sleep(120 * time.Millisecond)
	s.ResetPacing()

	start := time.Now()
	if err := s.WriteFrame(context.Background(), testFrame()); err != nil {
		t.Fatalf("WriteFrame after reset: %v", err)
	}
	if elapsed := time.Since(start); elapsed < 40*time.Millisecond {
		t.Errorf("first frame after reset shipped in %v, want a full frame duration of pacing", elapsed)
	}
}

func TestResetPacingConcurrentWithWriteFrame(t *testing.T) {
	s := testSink(&stubEncoder{}, &stubWriter{})
	ctx, cancel := context.WithCancel(context.Background())

	done := make(chan struct{})
	go func() {
		defer close(done)
		for ctx.Err() == nil {
			if err := s.WriteFrame(ctx, testFrame()); err != nil {
				return
			}
		}
	}()

	for i := 0; i < 100; i++ {
		s.ResetPacing()
		time.Sleep(100 * time.Microsecond)
	}
	cancel()

	select {
	case <-done:
	case <-time.After(5 * time.Second):
		t.Fatal("WriteFrame loop did not unwind under concurrent resets")
	}
}
