// Package session owns the persistent room connection and the published
// audio sink, and drives one decode-and-ship pipeline per playback request.
package session

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log"
	"sync"
	"time"

	"github.com/roomcast/roomcast/internal/audio"
)

var (
	// ErrNotConnected is returned by Play before a successful Connect.
	ErrNotConnected = errors.New("not connected: call Connect first")
	// ErrPlaybackActive rejects a Play that would overlap a running one.
	ErrPlaybackActive = errors.New("playback already in progress")
)

// Transport is the media-room connection. The session depends on these three
// operations only and treats the transport as opaque otherwise.
type Transport interface {
	Connect(ctx context.Context, url, token string) error
	PublishAudioTrack(ctx context.Context, format audio.Format, frameDuration time.Duration) (Sink, error)
	Disconnect() error
}

// Sink accepts PCM frames, in order, for real-time delivery into the room.
// WriteFrame may block to hold the frame cadence.
type Sink interface {
	WriteFrame(ctx context.Context, f audio.Frame) error
}

// Streamer produces raw PCM for one file. Satisfied by *audio.Decoder.
type Streamer interface {
	Open(ctx context.Context, path string) (io.ReadCloser, error)
	ProbeDuration(ctx context.Context, path string) (time.Duration, error)
}

// Config carries the connection parameters for one room session.
type Config struct {
	URL           string
	Token         string
	Room          string
	Format        audio.Format
	FrameDuration time.Duration
}

// Session is the long-lived connection plus published audio sink, reused
// across playbacks. Connect once, Play any number of times, Disconnect once.
type Session struct {
	cfg       Config
	transport Transport
	streamer  Streamer

	mu         sync.Mutex
	connected  bool
	sink       Sink
	playing    bool
	cancelPlay context.CancelFunc
	playDone   chan struct{} // closed when the in-flight Play has unwound
}

// New creates a session. No connection is attempted until Connect.
func New(cfg Config, transport Transport, streamer Streamer) *Session {
	if cfg.FrameDuration == 0 {
		cfg.FrameDuration = audio.FrameDuration
	}
	return &Session{cfg: cfg, transport: transport, streamer: streamer}
}

// Connect establishes the room connection and publishes the audio track
// exactly once. Calling it again while connected is a no-op.
func (s *Session) Connect(ctx context.Context) error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.connected {
		log.Println("Already connected")
		return nil
	}

	log.Printf("Connecting to room: %s", s.cfg.Room)
	if err := s.transport.Connect(ctx, s.cfg.URL, s.cfg.Token); err != nil {
		return fmt.Errorf("connect to %s: %w", s.cfg.Room, err)
	}

	sink, err := s.transport.PublishAudioTrack(ctx, s.cfg.Format, s.cfg.FrameDuration)
	if err != nil {
		s.transport.Disconnect()
		return fmt.Errorf("publish audio track: %w", err)
	}

	s.sink = sink
	s.connected = true
	log.Println("Connected to room, audio track published")
	return nil
}

// Play decodes path and pushes every frame into the published sink, in
// order, returning after the last frame has been accepted. A failure leaves
// the session connected; the decoder process is terminated on every exit
// path. Overlapping calls are rejected with ErrPlaybackActive.
func (s *Session) Play(ctx context.Context, path string) error {
	s.mu.Lock()
	if !s.connected {
		s.mu.Unlock()
		return ErrNotConnected
	}
	if s.playing {
		s.mu.Unlock()
		return ErrPlaybackActive
	}
	ctx, cancel := context.WithCancel(ctx)
	done := make(chan struct{})
	s.playing = true
	s.cancelPlay = cancel
	s.playDone = done
	sink := s.sink
	s.mu.Unlock()

	defer func() {
		cancel()
		s.mu.Lock()
		s.playing = false
		s.cancelPlay = nil
		s.playDone = nil
		s.mu.Unlock()
		close(done)
	}()

	log.Printf("Playing: %s", path)
	if dur, err := s.streamer.ProbeDuration(ctx, path); err != nil {
		log.Printf("Could not get duration of %s: %v", path, err)
	} else {
		log.Printf("Audio duration: %.2fs", dur.Seconds())
	}

	stream, err := s.streamer.Open(ctx, path)
	if err != nil {
		return fmt.Errorf("open %s: %w", path, err)
	}
	defer stream.Close()

	// Each run starts a fresh real-time cadence.
	if p, ok := sink.(interface{ ResetPacing() }); ok {
		p.ResetPacing()
	}

	chunker := audio.NewChunker(stream, s.cfg.Format, s.cfg.FrameDuration)
	frames := 0
	for {
		frame, err := chunker.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return fmt.Errorf("play %s: %w", path, err)
		}
		if err := sink.WriteFrame(ctx, frame); err != nil {
			return fmt.Errorf("play %s: sink: %w", path, err)
		}
		frames++
	}

	log.Printf("Finished playing %s (%d frames)", path, frames)
	return nil
}

// Disconnect cancels any in-flight playback and waits for it to unwind
// (decoder process killed and reaped) before tearing down the sink
// publication and the room connection. Safe to call when not connected.
func (s *Session) Disconnect() error {
	s.mu.Lock()
	if s.cancelPlay != nil {
		s.cancelPlay()
	}
	done := s.playDone
	connected := s.connected
	s.connected = false
	s.sink = nil
	s.mu.Unlock()

	if done != nil {
		<-done
	}
	if !connected {
		return nil
	}

	if err := s.transport.Disconnect(); err != nil {
		return fmt.Errorf("disconnect: %w", err)
	}
	log.Println("Disconnected from room")
	return nil
}
