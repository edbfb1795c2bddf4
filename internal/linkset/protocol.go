package linkset

import (
	"fmt"
	"strconv"
	"strings"
)

// FrameType identifies one line of the link text mini-protocol. Each link's
// control channel carries newline-delimited frames of these shapes.
type FrameType int

const (
	FrameDISC    FrameType = iota // peer is disconnecting
	FrameNEWKEY                   // peer speaks keying-protocol v1
	FrameNEWKEY1                  // handshake complete, answers NEWKEY once
	FrameIAXKEY                   // peer wants the longer linger time
	FrameL                        // link-list announcement
	FrameM                        // metadata (callsign/descriptive text)
	FrameT                        // text message to be relayed/displayed
	FrameC                        // command (DTMF passthrough, cop actions)
	FrameK                        // keyup
	FrameI                        // ID request/notice
	FrameD                        // DTMF digit passthrough
)

var frameNames = map[FrameType]string{
	FrameDISC: "DISC", FrameNEWKEY: "NEWKEY", FrameNEWKEY1: "NEWKEY1",
	FrameIAXKEY: "IAXKEY", FrameL: "L", FrameM: "M", FrameT: "T",
	FrameC: "C", FrameK: "K", FrameI: "I", FrameD: "D",
}

var namesToFrame = func() map[string]FrameType {
	m := make(map[string]FrameType, len(frameNames))
	for k, v := range frameNames {
		m[v] = k
	}
	return m
}()

// Frame is one parsed line of the link text protocol.
type Frame struct {
	Type    FrameType
	Args    []string
	Raw     string
}

// String renders a Frame back into its wire form: "TYPE arg1 arg2 ...".
func (f Frame) String() string {
	name := frameNames[f.Type]
	if len(f.Args) == 0 {
		return name
	}
	return name + " " + strings.Join(f.Args, " ")
}

// Encode is an alias for String kept for call-site symmetry with Parse.
func Encode(f Frame) string { return f.String() }

// Parse decodes one newline-delimited protocol line. An unrecognized frame
// type returns an error; callers should drop the connection on a malformed
// peer rather than guess at intent.
func Parse(line string) (Frame, error) {
	line = strings.TrimRight(line, "\r\n")
	fields := strings.Fields(line)
	if len(fields) == 0 {
		return Frame{}, fmt.Errorf("linkset: empty protocol line")
	}
	ft, ok := namesToFrame[fields[0]]
	if !ok {
		return Frame{}, fmt.Errorf("linkset: unknown frame type %q", fields[0])
	}
	return Frame{Type: ft, Args: fields[1:], Raw: line}, nil
}

// NewKeyFrame announces that this side speaks keying-protocol v1. There is
// no challenge or secret involved; it is a plain, unauthenticated flag.
func NewKeyFrame() Frame { return Frame{Type: FrameNEWKEY} }

// NewKey1Frame answers a peer's NEWKEY once, completing the handshake at
// keying-protocol v2 (§4.3: "Respond with NEWKEY1 once").
func NewKey1Frame() Frame { return Frame{Type: FrameNEWKEY1} }

// IAXKeyFrame builds the IAXKEY flag frame a peer sends to request the
// longer linger time. note carries whatever trailing text accompanied it
// on the wire and is not otherwise interpreted.
func IAXKeyFrame(note string) Frame {
	if note == "" {
		return Frame{Type: FrameIAXKEY}
	}
	return Frame{Type: FrameIAXKEY, Args: []string{note}}
}

// DTMFFrame builds a 'D' passthrough frame carrying one digit from source node.
func DTMFFrame(sourceNode string, digit byte) Frame {
	return Frame{Type: FrameD, Args: []string{sourceNode, string(digit)}}
}

// ParsedDTMF extracts the source node and digit from a 'D' frame.
func ParsedDTMF(f Frame) (sourceNode string, digit byte, err error) {
	if f.Type != FrameD {
		return "", 0, fmt.Errorf("linkset: not a D frame")
	}
	if len(f.Args) != 2 || len(f.Args[1]) != 1 {
		return "", 0, fmt.Errorf("linkset: malformed D frame %v", f.Args)
	}
	return f.Args[0], f.Args[1][0], nil
}

// KeyFrame builds a 'K' keyup/unkey frame; keyed encodes 1/0 as the original wire format does.
func KeyFrame(sourceNode string, keyed bool) Frame {
	v := "0"
	if keyed {
		v = "1"
	}
	return Frame{Type: FrameK, Args: []string{sourceNode, v}}
}

// ParsedKey extracts the source node and keyed state from a 'K' frame.
func ParsedKey(f Frame) (sourceNode string, keyed bool, err error) {
	if f.Type != FrameK {
		return "", false, fmt.Errorf("linkset: not a K frame")
	}
	if len(f.Args) != 2 {
		return "", false, fmt.Errorf("linkset: malformed K frame %v", f.Args)
	}
	n, err := strconv.Atoi(f.Args[1])
	if err != nil {
		return "", false, fmt.Errorf("linkset: bad keyed flag %q: %w", f.Args[1], err)
	}
	return f.Args[0], n != 0, nil
}

// TextFrame wraps a free-form text message for display/relay.
func TextFrame(msg string) Frame {
	return Frame{Type: FrameT, Args: []string{msg}}
}

// DiscFrame announces disconnection.
func DiscFrame() Frame { return Frame{Type: FrameDISC} }
