// Package dtmf implements the node controller's command dispatcher: a
// bounded digit buffer, per-source function tables, longest-prefix-match
// lookup, and the named action handlers a DTMF command string can invoke.
package dtmf

import "fmt"

// MaxDigits bounds the command buffer the way the original controller's
// MAXDTMF constant did; a buffer at this length with no match forces a
// flush rather than growing unbounded.
const MaxDigits = 32

// Completion is the result code a handler (or the dispatcher itself)
// returns after seeing the buffer so far.
type Completion int

const (
	Indeterminate Completion = iota // need more digits
	ReqFlush                       // discard buffer, no action
	Complete                        // command finished, consume buffer, ack
	CompleteQuiet                   // command finished, consume buffer, no ack tone
	DoKey                           // command finished, also key the transmitter
	Error                           // malformed command, consume buffer, play error tone
)

// Source identifies where a digit string originated, since cop/ilink/remote
// command sets differ per source (local radio vs. a specific link vs. phone).
type Source int

const (
	SourceRadio Source = iota
	SourceLink
	SourcePhone
	SourceDPhone
	SourceAltPhone  // ALT-PHONE: a second phone-mode patch line with its own table
	SourceRemote    // REMOTE: remote-base control input, distinct from a local radio's table
	SourceRptInternal // RPT-INTERNAL: commands injected by the controller itself (macros, scheduler)
)

// sources lists every known Source, in the order NewDispatcher builds
// their tables.
var sources = []Source{
	SourceRadio, SourceLink, SourcePhone, SourceDPhone,
	SourceAltPhone, SourceRemote, SourceRptInternal,
}

// Handler evaluates a buffered command string for one source and returns
// the completion state. args is the buffer contents after the function
// selector digit(s) have been stripped by the dispatcher.
type Handler func(ctx NodeContext, args string) Completion

// NodeContext is the narrow surface a handler needs from the node
// controller, kept as an interface here so this package never imports
// internal/rptnode (which imports this package to wire the dispatcher in).
type NodeContext interface {
	Key()
	Unkey()
	SendTelemetry(kind string, param string)
	ConnectLink(peer string, mode string) error
	DisconnectLink(peer string) error
	DisconnectAllLinks()
	ReconnectLastLink() error
	SetRemoteFreq(freq string) error
	PlaybackFile(path string) error
	LocalPlayFile(path string) error
	SetUserOut(bit int, value bool)
	ReadMeter(which int) (float64, error)
	RunMacro(digits string)
	StatusText() string
	LastKeyedNode() string
	// ControlOp executes one "cop" control-operator effect identified by its
	// numeric code (see copTable), with an optional trailing argument.
	ControlOp(code string, arg string) error
}

// entry pairs a digit-string prefix with its handler in one source's table.
type entry struct {
	prefix  string
	handler Handler
}

// Table is one source's ordered set of command prefixes. Longest-prefix
// wins; entries are expected to be added longest-first by convention but
// Lookup itself scans for the longest match regardless of insertion order.
type Table struct {
	entries []entry
}

// NewTable returns an empty function table.
func NewTable() *Table { return &Table{} }

// Add registers a handler for an exact digit prefix (the function selector,
// e.g. "1" for autopatchup, "*6" is not meaningful here, "6" is ilink).
func (t *Table) Add(prefix string, h Handler) {
	t.entries = append(t.entries, entry{prefix: prefix, handler: h})
}

// Lookup returns the handler registered for the longest prefix of buf that
// matches a registered entry, plus the remainder of buf after that prefix.
// ok is false if no registered prefix matches buf at all (yet).
func (t *Table) Lookup(buf string) (h Handler, rest string, ok bool) {
	bestLen := -1
	for _, e := range t.entries {
		if len(e.prefix) <= len(buf) && buf[:len(e.prefix)] == e.prefix {
			if len(e.prefix) > bestLen {
				bestLen = len(e.prefix)
				h = e.handler
				rest = buf[len(e.prefix):]
				ok = true
			}
		}
	}
	return h, rest, ok
}

// HasPrefixOf reports whether buf is itself a non-empty proper prefix of at
// least one registered entry, meaning the dispatcher should keep collecting
// digits rather than declare ReqFlush.
func (t *Table) HasPrefixOf(buf string) bool {
	for _, e := range t.entries {
		if len(buf) < len(e.prefix) && e.prefix[:len(buf)] == buf {
			return true
		}
	}
	return false
}

// Buffer is a bounded DTMF digit accumulator with an inter-digit timeout
// managed externally (via internal/timers); this type only tracks content.
type Buffer struct {
	digits []byte
}

// Push appends a digit, returning an error if the buffer is already at
// MaxDigits (the caller should flush and play an error tone).
func (b *Buffer) Push(d byte) error {
	if len(b.digits) >= MaxDigits {
		return fmt.Errorf("dtmf: buffer full at %d digits", MaxDigits)
	}
	b.digits = append(b.digits, d)
	return nil
}

// String returns the buffered digits as a string.
func (b *Buffer) String() string { return string(b.digits) }

// Reset empties the buffer.
func (b *Buffer) Reset() { b.digits = b.digits[:0] }

// Len reports the number of buffered digits.
func (b *Buffer) Len() int { return len(b.digits) }

// Dispatcher owns one Table per source and drives the buffer/table
// interaction for a single node.
type Dispatcher struct {
	tables map[Source]*Table
	buf    Buffer
}

// NewDispatcher builds a Dispatcher with an empty table per known source.
func NewDispatcher() *Dispatcher {
	d := &Dispatcher{tables: make(map[Source]*Table)}
	for _, s := range sources {
		d.tables[s] = NewTable()
	}
	return d
}

// Table returns the function table for a source, for registration at
// startup (Add cop/ilink/etc handlers onto it).
func (d *Dispatcher) Table(s Source) *Table { return d.tables[s] }

// Feed pushes one digit from the given source and evaluates the buffer
// against that source's table, returning the completion state. On
// Complete/CompleteQuiet/DoKey/Error/ReqFlush the internal buffer is reset;
// on Indeterminate it is left intact for the next digit.
func (d *Dispatcher) Feed(ctx NodeContext, source Source, digit byte) Completion {
	if err := d.buf.Push(digit); err != nil {
		d.buf.Reset()
		return Error
	}
	table := d.tables[source]
	content := d.buf.String()

	h, rest, ok := table.Lookup(content)
	if !ok {
		if table.HasPrefixOf(content) {
			return Indeterminate
		}
		d.buf.Reset()
		return ReqFlush
	}
	result := h(ctx, rest)
	if result == Indeterminate {
		return Indeterminate
	}
	d.buf.Reset()
	return result
}

// FlushOnTimeout is called by the controller when the inter-digit timer
// expires with a non-empty buffer and no completed command: the buffer is
// discarded (ReqFlush semantics) without invoking any handler.
func (d *Dispatcher) FlushOnTimeout() {
	d.buf.Reset()
}
