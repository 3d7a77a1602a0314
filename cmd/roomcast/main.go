// roomcast streams an audio file into a real-time media room over one
// persistent connection: connect once, then play on demand with minimal
// latency.
package main

import (
	"bufio"
	"context"
	"flag"
	"fmt"
	"log"
	"os"
	"os/signal"
	"strings"
	"syscall"

	"github.com/google/uuid"

	"github.com/roomcast/roomcast/internal/audio"
	"github.com/roomcast/roomcast/internal/auth"
	"github.com/roomcast/roomcast/internal/config"
	"github.com/roomcast/roomcast/internal/control"
	"github.com/roomcast/roomcast/internal/session"
	"github.com/roomcast/roomcast/internal/stream"
)

const defaultInputFile = "test_data/hello_world.mp3"

func main() {
	flag.Parse()
	inputFile := flag.Arg(0)
	if inputFile == "" {
		inputFile = defaultInputFile
	}

	cfg := config.Load()
	if err := cfg.Validate(); err != nil {
		log.Fatalf("Configuration error: %v", err)
	}
	if _, err := os.Stat(inputFile); err != nil {
		log.Fatalf("Input file not found: %s", inputFile)
	}

	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	stdin := bufio.NewReader(os.Stdin)
	fmt.Print("Enter room name: ")
	line, err := stdin.ReadString('\n')
	if err != nil {
		log.Fatalf("Read room name: %v", err)
	}
	room := strings.TrimSpace(line)
	if room == "" {
		log.Fatal("Room name cannot be empty")
	}

	identity := "ingress-" + uuid.NewString()
	token, err := auth.Mint(cfg.APIKey, cfg.APISecret, room, identity, "Audio Streamer", cfg.TokenTTL)
	if err != nil {
		log.Fatalf("Mint access token: %v", err)
	}

	format := cfg.Format()
	sess := session.New(session.Config{
		URL:           cfg.URL,
		Token:         token,
		Room:          room,
		Format:        format,
		FrameDuration: audio.FrameDuration,
	}, stream.NewTransport(), audio.NewDecoder(format))

	if err := sess.Connect(ctx); err != nil {
		log.Fatalf("Connection failed: %v", err)
	}

	loop := control.NewLoop(stdin, os.Stdout, sess, inputFile)
	if err := loop.Run(ctx); err != nil && err != context.Canceled {
		log.Fatalf("Control loop: %v", err)
	}
}
