package echolink

import (
	"fmt"
	"net"

	"github.com/pion/rtcp"
	"github.com/pion/rtp"
)

// AudioConn owns the RTP socket for one Echolink instance: one UDP socket
// shared by every session connected to it (Echolink multiplexes sessions
// by source IP:port, not by SSRC).
type AudioConn struct {
	conn *net.UDPConn
}

// ListenAudio opens the RTP (voice) UDP socket on the given port.
func ListenAudio(bindIP string, port int) (*AudioConn, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(bindIP), Port: port}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("echolink: listen audio %s:%d: %w", bindIP, port, err)
	}
	return &AudioConn{conn: conn}, nil
}

// ReadPacket reads and parses one RTP packet, returning it along with the
// sender's address.
func (a *AudioConn) ReadPacket(buf []byte) (*rtp.Packet, *net.UDPAddr, error) {
	n, from, err := a.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	pkt := &rtp.Packet{}
	if err := pkt.Unmarshal(buf[:n]); err != nil {
		return nil, from, fmt.Errorf("echolink: RTP unmarshal: %w", err)
	}
	return pkt, from, nil
}

// WritePacket marshals and sends one RTP packet to the given address.
func (a *AudioConn) WritePacket(pkt *rtp.Packet, to *net.UDPAddr) error {
	buf, err := pkt.Marshal()
	if err != nil {
		return fmt.Errorf("echolink: RTP marshal: %w", err)
	}
	_, err = a.conn.WriteToUDP(buf, to)
	return err
}

// Close releases the socket.
func (a *AudioConn) Close() error { return a.conn.Close() }

// BuildGSMPacket bundles up to FramesPerPacket GSM frames (each
// GSMFrameBytes long) into one RTP packet with the given sequence/timestamp
// state; Echolink uses payload type 3 (GSM) per its wire convention.
func BuildGSMPacket(frames [][]byte, seq uint16, timestamp uint32, ssrc uint32) (*rtp.Packet, error) {
	payload := make([]byte, 0, FramesPerPacket*GSMFrameBytes)
	for _, f := range frames {
		if len(f) != GSMFrameBytes {
			return nil, fmt.Errorf("echolink: GSM frame must be %d bytes, got %d", GSMFrameBytes, len(f))
		}
		payload = append(payload, f...)
	}
	return &rtp.Packet{
		Header: rtp.Header{
			Version:        2,
			PayloadType:    3,
			SequenceNumber: seq,
			Timestamp:      timestamp,
			SSRC:           ssrc,
		},
		Payload: payload,
	}, nil
}

// SplitGSMFrames breaks an RTP payload back into individual GSM frames.
func SplitGSMFrames(payload []byte) ([][]byte, error) {
	if len(payload)%GSMFrameBytes != 0 {
		return nil, fmt.Errorf("echolink: payload length %d not a multiple of %d", len(payload), GSMFrameBytes)
	}
	var frames [][]byte
	for i := 0; i < len(payload); i += GSMFrameBytes {
		frames = append(frames, payload[i:i+GSMFrameBytes])
	}
	return frames, nil
}

// ControlConn owns the RTCP socket (audio port + 1).
type ControlConn struct {
	conn *net.UDPConn
}

// ListenControl opens the RTCP UDP socket.
func ListenControl(bindIP string, audioPort int) (*ControlConn, error) {
	addr := &net.UDPAddr{IP: net.ParseIP(bindIP), Port: audioPort + 1}
	conn, err := net.ListenUDP("udp", addr)
	if err != nil {
		return nil, fmt.Errorf("echolink: listen control %s:%d: %w", bindIP, audioPort+1, err)
	}
	return &ControlConn{conn: conn}, nil
}

// ReadPackets reads and parses one or more RTCP compound packets.
func (c *ControlConn) ReadPackets(buf []byte) ([]rtcp.Packet, *net.UDPAddr, error) {
	n, from, err := c.conn.ReadFromUDP(buf)
	if err != nil {
		return nil, nil, err
	}
	pkts, err := rtcp.Unmarshal(buf[:n])
	if err != nil {
		return nil, from, fmt.Errorf("echolink: RTCP unmarshal: %w", err)
	}
	return pkts, from, nil
}

// WriteSenderReport sends an SR packet announcing our own stream stats.
func (c *ControlConn) WriteSenderReport(sr *rtcp.SenderReport, to *net.UDPAddr) error {
	buf, err := sr.Marshal()
	if err != nil {
		return fmt.Errorf("echolink: RTCP SR marshal: %w", err)
	}
	_, err = c.conn.WriteToUDP(buf, to)
	return err
}

// WriteBye sends a BYE packet, the session-teardown signal.
func (c *ControlConn) WriteBye(ssrc uint32, reason string, to *net.UDPAddr) error {
	bye := &rtcp.Goodbye{Sources: []uint32{ssrc}, Reason: reason}
	buf, err := bye.Marshal()
	if err != nil {
		return fmt.Errorf("echolink: RTCP BYE marshal: %w", err)
	}
	_, err = c.conn.WriteToUDP(buf, to)
	return err
}

// Close releases the socket.
func (c *ControlConn) Close() error { return c.conn.Close() }
