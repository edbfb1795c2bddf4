package echolink

import (
	"bufio"
	"bytes"
	"compress/zlib"
	"fmt"
	"io"
	"net"
	"strconv"
	"strings"
	"sync"

	"github.com/klauspost/compress/flate"
)

// DirectoryEntry is one station known to the Echolink directory servers.
type DirectoryEntry struct {
	NodeNumber int
	Callsign   string
	Status     string // "ON"/"BUSY"/"OFF" per the directory wire format
	IP         net.IP
}

// Directory indexes known stations three ways (node number, callsign, IP)
// so inbound connections can be validated by whichever identifier the peer
// presented, matching the original controller's triple-keyed lookup table.
// All mutation goes through Add/Remove so the three indexes never diverge.
type Directory struct {
	mu        sync.RWMutex
	byNode    map[int]DirectoryEntry
	byCall    map[string]DirectoryEntry
	byIP      map[string]DirectoryEntry
}

// NewDirectory returns an empty directory.
func NewDirectory() *Directory {
	return &Directory{
		byNode: make(map[int]DirectoryEntry),
		byCall: make(map[string]DirectoryEntry),
		byIP:   make(map[string]DirectoryEntry),
	}
}

// Add inserts or replaces an entry across all three indexes atomically
// (holding the single lock for the whole operation).
func (d *Directory) Add(e DirectoryEntry) {
	d.mu.Lock()
	defer d.mu.Unlock()
	if old, ok := d.byNode[e.NodeNumber]; ok {
		delete(d.byCall, strings.ToUpper(old.Callsign))
		if old.IP != nil {
			delete(d.byIP, old.IP.String())
		}
	}
	d.byNode[e.NodeNumber] = e
	d.byCall[strings.ToUpper(e.Callsign)] = e
	if e.IP != nil {
		d.byIP[e.IP.String()] = e
	}
}

// Remove deletes an entry (looked up by node number) from all three
// indexes atomically.
func (d *Directory) Remove(nodeNumber int) {
	d.mu.Lock()
	defer d.mu.Unlock()
	e, ok := d.byNode[nodeNumber]
	if !ok {
		return
	}
	delete(d.byNode, nodeNumber)
	delete(d.byCall, strings.ToUpper(e.Callsign))
	if e.IP != nil {
		delete(d.byIP, e.IP.String())
	}
}

// ByNode, ByCallsign, and ByIP look an entry up by each of the three keys.
func (d *Directory) ByNode(n int) (DirectoryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byNode[n]
	return e, ok
}

func (d *Directory) ByCallsign(call string) (DirectoryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byCall[strings.ToUpper(call)]
	return e, ok
}

func (d *Directory) ByIP(ip net.IP) (DirectoryEntry, bool) {
	d.mu.RLock()
	defer d.mu.RUnlock()
	e, ok := d.byIP[ip.String()]
	return e, ok
}

// Len reports the number of known stations.
func (d *Directory) Len() int {
	d.mu.RLock()
	defer d.mu.RUnlock()
	return len(d.byNode)
}

// ApplySnapshot replaces the whole directory with freshly parsed entries
// (a "full" download). There is no differential-download path: single
// entries change only through Add and Remove.
func (d *Directory) ApplySnapshot(entries []DirectoryEntry) {
	d.mu.Lock()
	d.byNode = make(map[int]DirectoryEntry, len(entries))
	d.byCall = make(map[string]DirectoryEntry, len(entries))
	d.byIP = make(map[string]DirectoryEntry, len(entries))
	d.mu.Unlock()
	for _, e := range entries {
		d.Add(e)
	}
}

// ParseSnapshot decodes the directory server's line-oriented station list:
// one entry per line, pipe-delimited "node|callsign|status|ip". Lines that
// don't match this shape are skipped (the real wire format carries a
// handful of header/footer lines that aren't stations).
func ParseSnapshot(r io.Reader) ([]DirectoryEntry, error) {
	var entries []DirectoryEntry
	scanner := bufio.NewScanner(r)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" {
			continue
		}
		fields := strings.Split(line, "|")
		if len(fields) < 4 {
			continue
		}
		node, err := strconv.Atoi(fields[0])
		if err != nil {
			continue
		}
		entries = append(entries, DirectoryEntry{
			NodeNumber: node,
			Callsign:   fields[1],
			Status:     fields[2],
			IP:         net.ParseIP(fields[3]),
		})
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("echolink: scan snapshot: %w", err)
	}
	return entries, nil
}

// DecodeSnapshot parses a snapshot download; the directory server
// compresses snapshot downloads with deflate when the client advertises
// support, so when looksDeflated sees a zlib header in the first two bytes
// DecodeSnapshot inflates before parsing (the standard library's zlib
// reader first; if it rejects the stream, the `klauspost/compress/flate`
// reader for raw deflate). Input without a zlib header is parsed as-is.
func DecodeSnapshot(raw []byte) ([]DirectoryEntry, error) {
	if looksDeflated(raw) {
		zr, err := zlib.NewReader(bytes.NewReader(raw))
		if err == nil {
			defer zr.Close()
			return ParseSnapshot(zr)
		}
		// Not a zlib-wrapped stream; fall through to raw deflate.
		fr := flate.NewReader(bytes.NewReader(raw))
		defer fr.Close()
		return ParseSnapshot(fr)
	}
	return ParseSnapshot(bytes.NewReader(raw))
}

func looksDeflated(raw []byte) bool {
	if len(raw) < 2 {
		return false
	}
	// zlib header: CMF/FLG with CMF low nibble == 8 (deflate) and the
	// 16-bit header value a multiple of 31 per RFC1950.
	if raw[0]&0x0f == 8 && (int(raw[0])*256+int(raw[1]))%31 == 0 {
		return true
	}
	return false
}
