// Package control implements the interactive playback loop: one command per
// line, one playback at a time.
package control

import (
	"bufio"
	"context"
	"fmt"
	"io"
	"log"
	"strings"
)

// Player is the part of the playback session the loop drives.
type Player interface {
	Play(ctx context.Context, path string) error
	Disconnect() error
}

// Loop reads commands from in and triggers sequential playbacks of a single
// configured file. An empty or affirmative line plays, "q" quits. Playback
// blocks the loop so two playbacks can never interleave.
type Loop struct {
	in     *bufio.Scanner
	out    io.Writer
	player Player
	file   string
}

// NewLoop creates a loop playing file on demand.
func NewLoop(in io.Reader, out io.Writer, player Player, file string) *Loop {
	return &Loop{
		in:     bufio.NewScanner(in),
		out:    out,
		player: player,
		file:   file,
	}
}

// Run blocks until a quit command, end of input, or context cancellation.
// The player is disconnected exactly once before returning. Playback errors
// are logged and the loop keeps accepting commands.
func (l *Loop) Run(ctx context.Context) error {
	defer l.player.Disconnect()

	for {
		fmt.Fprint(l.out, "\nPress Enter to play audio... or 'q' to quit: ")
		if !l.in.Scan() {
			return l.in.Err()
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}

		switch cmd := strings.ToLower(strings.TrimSpace(l.in.Text())); cmd {
		case "q", "quit":
			return nil
		case "", "y", "yes":
			if err := l.player.Play(ctx, l.file); err != nil {
				log.Printf("Playback failed for %s: %v", l.file, err)
			}
		default:
			fmt.Fprintf(l.out, "Unknown command %q (Enter to play, q to quit)\n", cmd)
		}
	}
}
