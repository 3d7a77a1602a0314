// Package stream implements the room transport over WebRTC: one peer
// connection publishing a single Opus audio track, negotiated with one
// HTTP offer/answer exchange authorized by a bearer token.
package stream

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log"
	"net/http"
	"time"

	"github.com/pion/webrtc/v4"

	"github.com/roomcast/roomcast/internal/audio"
	"github.com/roomcast/roomcast/internal/session"
)

// Transport publishes one audio track into a room. It satisfies
// session.Transport; the connection is established once and reused across
// playbacks.
type Transport struct {
	client *http.Client
	pc     *webrtc.PeerConnection
	track  *webrtc.TrackLocalStaticSample
	sink   *OpusSink
}

// NewTransport creates an unconnected transport.
func NewTransport() *Transport {
	return &Transport{
		client: &http.Client{Timeout: 15 * time.Second},
	}
}

// Connect creates the peer connection with the audio track in its offer,
// POSTs the offer to the room's ingest endpoint and applies the answer.
func (t *Transport) Connect(ctx context.Context, url, token string) error {
	if t.pc != nil {
		return nil
	}

	pc, err := webrtc.NewPeerConnection(webrtc.Configuration{})
	if err != nil {
		return fmt.Errorf("create peer connection: %w", err)
	}

	track, err := webrtc.NewTrackLocalStaticSample(
		webrtc.RTPCodecCapability{MimeType: webrtc.MimeTypeOpus},
		"audio",
		"roomcast",
	)
	if err != nil {
		pc.Close()
		return fmt.Errorf("create audio track: %w", err)
	}
	if _, err := pc.AddTrack(track); err != nil {
		pc.Close()
		return fmt.Errorf("add track: %w", err)
	}

	offer, err := pc.CreateOffer(nil)
	if err != nil {
		pc.Close()
		return fmt.Errorf("create offer: %w", err)
	}
	if err := pc.SetLocalDescription(offer); err != nil {
		pc.Close()
		return fmt.Errorf("set local description: %w", err)
	}

	// Wait for ICE gathering so the offer carries all candidates.
	select {
	case <-webrtc.GatheringCompletePromise(pc):
	case <-ctx.Done():
		pc.Close()
		return ctx.Err()
	}

	answer, err := t.negotiate(ctx, url, token, pc.LocalDescription())
	if err != nil {
		pc.Close()
		return err
	}
	if err := pc.SetRemoteDescription(*answer); err != nil {
		pc.Close()
		return fmt.Errorf("set remote description: %w", err)
	}

	pc.OnConnectionStateChange(func(s webrtc.PeerConnectionState) {
		log.Printf("Peer connection state: %s", s)
	})

	t.pc = pc
	t.track = track
	return nil
}

func (t *Transport) negotiate(ctx context.Context, url, token string, offer *webrtc.SessionDescription) (*webrtc.SessionDescription, error) {
	body, err := json.Marshal(offer)
	if err != nil {
		return nil, fmt.Errorf("encode offer: %w", err)
	}

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, url, bytes.NewReader(body))
	if err != nil {
		return nil, fmt.Errorf("build offer request: %w", err)
	}
	req.Header.Set("Content-Type", "application/json")
	req.Header.Set("Authorization", "Bearer "+token)

	resp, err := t.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("send offer to %s: %w", url, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		msg, _ := io.ReadAll(io.LimitReader(resp.Body, 512))
		return nil, fmt.Errorf("offer rejected by %s: %s: %s", url, resp.Status, bytes.TrimSpace(msg))
	}

	var answer webrtc.SessionDescription
	if err := json.NewDecoder(resp.Body).Decode(&answer); err != nil {
		return nil, fmt.Errorf("decode answer: %w", err)
	}
	return &answer, nil
}

// PublishAudioTrack wraps the negotiated track in an Opus-encoding sink
// paced at the given frame duration. Requires a prior successful Connect.
func (t *Transport) PublishAudioTrack(ctx context.Context, format audio.Format, frameDuration time.Duration) (session.Sink, error) {
	if t.pc == nil {
		return nil, fmt.Errorf("publish audio track: not connected")
	}
	if t.sink != nil {
		return t.sink, nil
	}
	sink, err := NewOpusSink(t.track, format, frameDuration)
	if err != nil {
		return nil, err
	}
	t.sink = sink
	return sink, nil
}

// Disconnect closes the peer connection and releases the sink. Safe to call
// more than once.
func (t *Transport) Disconnect() error {
	if t.sink != nil {
		t.sink.ResetPacing()
		t.sink = nil
	}
	if t.pc == nil {
		return nil
	}
	err := t.pc.Close()
	t.pc = nil
	t.track = nil
	if err != nil {
		return fmt.Errorf("close peer connection: %w", err)
	}
	return nil
}
