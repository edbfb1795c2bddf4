// Package channel defines the narrow contract a host telephony channel
// must satisfy to be driven by a node controller, a deterministic
// in-memory fake (Pseudo) used throughout the rest of the module's
// tests, and the DSP this controller owns directly: a Goertzel rx-burst
// tone detector, a dual-tone DTMF decoder bank, and an MDC-1200 FSK
// packet decoder (goertzel.go, burst.go, dtmfdecode.go, mdc1200.go). The
// actual telephony channel driver (an Asterisk-style chan_* module) and
// rig-specific serial/CAT control are out of scope; the DSP that rides
// on top of whatever channel a host provides is not.
package channel

import "time"

// FrameKind tags the payload carried by a Frame.
type FrameKind int

const (
	FrameVoice FrameKind = iota
	FrameDTMFBegin
	FrameDTMFEnd
	FrameText
	FrameControl
	FrameMDC1200
	FrameBurstKeyed
)

// ControlKind enumerates the CONTROL frame subtypes the node controller
// reacts to (radio keyup/unkey, hook state, answer/hangup).
type ControlKind int

const (
	ControlKey ControlKind = iota
	ControlUnkey
	ControlAnswer
	ControlHangup
	ControlRinging
)

// Frame is a single unit handed between a Channel and its owner.
type Frame struct {
	Kind    FrameKind
	Voice   []int16       // PCM16 samples, only valid when Kind == FrameVoice
	Digit   byte          // only valid for FrameDTMFBegin/FrameDTMFEnd
	Text    string        // only valid for FrameText
	Control ControlKind
	MDC     MDC1200Packet // only valid when Kind == FrameMDC1200
	At      time.Time
}

// Channel is the minimal surface a node controller needs from its host
// telephony layer: read incoming frames, write outgoing voice/control, and
// learn when the channel has gone away.
type Channel interface {
	// Read blocks until the next frame is available or the channel closes.
	Read() (Frame, error)
	// Write sends a frame toward the channel (voice playback, answer, hangup).
	Write(Frame) error
	// Close releases the channel's resources.
	Close() error
}

// Pseudo is an in-memory Channel used by tests: Read drains an inbound
// queue fed by test code via Inject, Write appends to an outbound log
// inspectable via Written.
type Pseudo struct {
	inbound  chan Frame
	outbound []Frame
	closed   bool
}

// NewPseudo constructs a Pseudo with the given inbound buffer depth.
func NewPseudo(buffer int) *Pseudo {
	return &Pseudo{inbound: make(chan Frame, buffer)}
}

// Inject enqueues a frame as if it arrived from the host channel.
func (p *Pseudo) Inject(f Frame) { p.inbound <- f }

// Read implements Channel.
func (p *Pseudo) Read() (Frame, error) {
	f, ok := <-p.inbound
	if !ok {
		return Frame{}, errClosed
	}
	return f, nil
}

// Write implements Channel.
func (p *Pseudo) Write(f Frame) error {
	if p.closed {
		return errClosed
	}
	p.outbound = append(p.outbound, f)
	return nil
}

// Written returns every frame passed to Write so far, in order.
func (p *Pseudo) Written() []Frame { return p.outbound }

// Close implements Channel.
func (p *Pseudo) Close() error {
	if p.closed {
		return nil
	}
	p.closed = true
	close(p.inbound)
	return nil
}

type pseudoError string

func (e pseudoError) Error() string { return string(e) }

const errClosed = pseudoError("channel: closed")
