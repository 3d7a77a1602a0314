package audio

import (
	"bytes"
	"context"
	"fmt"
	"io"
	"os/exec"
	"strconv"
	"strings"
	"sync"
	"time"
)

const probeTimeout = 5 * time.Second

// Decoder runs FFmpeg to decode arbitrary audio files to raw PCM int16
// samples at a fixed format. One decoder process is spawned per Open call
// and streamed incrementally; the whole file is never held in memory.
type Decoder struct {
	FFmpegPath  string // defaults to "ffmpeg"
	FFprobePath string // defaults to "ffprobe"
	Format      Format
}

// NewDecoder creates a decoder targeting the given output format.
func NewDecoder(format Format) *Decoder {
	return &Decoder{Format: format}
}

// DecodeError reports a decoder process failure: a non-zero exit or a read
// error on its output. Bytes read before the failure have already been
// delivered to the caller.
type DecodeError struct {
	Path   string
	Stderr string
	Err    error
}

func (e *DecodeError) Error() string {
	if e.Stderr != "" {
		return fmt.Sprintf("decode %s: %v: %s", e.Path, e.Err, e.Stderr)
	}
	return fmt.Sprintf("decode %s: %v", e.Path, e.Err)
}

func (e *DecodeError) Unwrap() error { return e.Err }

// Open spawns an FFmpeg process decoding path to the decoder's format and
// returns its output as a byte stream. The caller must Close the stream on
// every exit path; Close kills the process if it is still running and waits
// for it to exit.
func (d *Decoder) Open(ctx context.Context, path string) (io.ReadCloser, error) {
	prog := d.FFmpegPath
	if prog == "" {
		prog = "ffmpeg"
	}
	cmd := exec.CommandContext(ctx, prog,
		"-i", path,
		"-f", "s16le",
		"-acodec", "pcm_s16le",
		"-ar", strconv.Itoa(d.Format.SampleRate),
		"-ac", strconv.Itoa(d.Format.Channels),
		"-loglevel", "error",
		"pipe:1",
	)

	s := &Stream{cmd: cmd, path: path}
	cmd.Stderr = &s.stderr

	stdout, err := cmd.StdoutPipe()
	if err != nil {
		return nil, fmt.Errorf("ffmpeg stdout pipe: %w", err)
	}
	s.stdout = stdout

	if err := cmd.Start(); err != nil {
		return nil, fmt.Errorf("ffmpeg start %s: %w", path, err)
	}
	return s, nil
}

// ProbeDuration asks FFprobe for the file's total duration. Best effort with
// a bounded timeout: callers treat failure as a warning, never as a reason
// to skip playback.
func (d *Decoder) ProbeDuration(ctx context.Context, path string) (time.Duration, error) {
	prog := d.FFprobePath
	if prog == "" {
		prog = "ffprobe"
	}
	ctx, cancel := context.WithTimeout(ctx, probeTimeout)
	defer cancel()

	out, err := exec.CommandContext(ctx, prog,
		"-v", "error",
		"-show_entries", "format=duration",
		"-of", "default=noprint_wrappers=1:nokey=1",
		path,
	).Output()
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: %w", path, err)
	}

	secs, err := strconv.ParseFloat(strings.TrimSpace(string(out)), 64)
	if err != nil {
		return 0, fmt.Errorf("ffprobe %s: bad duration %q", path, strings.TrimSpace(string(out)))
	}
	return time.Duration(secs * float64(time.Second)), nil
}

// Stream is raw PCM flowing out of one running decoder process. It is owned
// by exactly one playback at a time.
type Stream struct {
	cmd    *exec.Cmd
	stdout io.ReadCloser
	stderr bytes.Buffer
	path   string

	readErr error // sticky terminal error for Read

	mu      sync.Mutex
	waited  bool
	waitErr error
}

// Read streams decoded bytes. When the process output is exhausted, a
// non-zero exit surfaces as *DecodeError; bytes read before the failure are
// always delivered first. The terminal error is sticky.
func (s *Stream) Read(p []byte) (int, error) {
	if s.readErr != nil {
		return 0, s.readErr
	}
	n, err := s.stdout.Read(p)
	if err == nil {
		return n, nil
	}
	if err == io.EOF {
		if werr := s.wait(); werr != nil {
			s.readErr = &DecodeError{Path: s.path, Stderr: s.stderrTail(), Err: werr}
		} else {
			s.readErr = io.EOF
		}
	} else {
		s.readErr = &DecodeError{Path: s.path, Stderr: s.stderrTail(), Err: err}
	}
	return n, s.readErr
}

// Close terminates the decoder process and waits for it to exit. Safe to
// call on every exit path and more than once.
func (s *Stream) Close() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.waited {
		return nil
	}
	s.cmd.Process.Kill()
	s.waitErr = s.cmd.Wait()
	s.waited = true
	return nil
}

func (s *Stream) wait() error {
	s.mu.Lock()
	defer s.mu.Unlock()
	if !s.waited {
		s.waitErr = s.cmd.Wait()
		s.waited = true
	}
	return s.waitErr
}

func (s *Stream) stderrTail() string {
	return strings.TrimSpace(s.stderr.String())
}
