package linkset

import (
	"context"
	"fmt"
	"net"
	"strconv"
	"strings"
	"time"

	"github.com/miekg/dns"
)

// DialTarget is a fully resolved address+port ready for net.Dial.
type DialTarget struct {
	Host string
	Port int
}

// String renders "host:port" for net.Dial.
func (d DialTarget) String() string { return net.JoinHostPort(d.Host, strconv.Itoa(d.Port)) }

// LocalResolver looks up a peer name (node number or Echolink callsign) in
// a local nodes file (the "nodes"/"extnodes" config lists), returning the
// configured dial string if present.
type LocalResolver interface {
	Lookup(name string) (target string, ok bool)
}

// Resolver resolves an outbound link's dial target in this order: local
// nodes/extnodes file first, then (only when a DNS server is configured)
// DNS SRV and then TXT records for the tech prefix, then literal host:port
// if name is already an address, then a plain A lookup on DefaultPort.
type Resolver struct {
	Local      LocalResolver
	DefaultPort int
	dnsClient  *dns.Client
	dnsServer  string // "ip:port" of the resolver to query, empty = system default via net package
}

// NewResolver builds a Resolver. dnsServer may be empty to fall back to
// net.LookupHost for the plain-A path; SRV lookups always go directly to
// dnsServer when one is supplied (miekg/dns does not consult /etc/resolv.conf).
func NewResolver(local LocalResolver, defaultPort int, dnsServer string) *Resolver {
	return &Resolver{Local: local, DefaultPort: defaultPort, dnsClient: new(dns.Client), dnsServer: dnsServer}
}

// Resolve turns "<tech>/<peer>" (e.g. "IAX2/2000" or "EL/W1AW-L") into a
// dial target.
func (r *Resolver) Resolve(ctx context.Context, techPeer string) (DialTarget, error) {
	tech, peer, ok := strings.Cut(techPeer, "/")
	if !ok {
		peer = techPeer
		tech = ""
	}

	if r.Local != nil {
		if addr, found := r.Local.Lookup(peer); found {
			return r.parseHostPort(addr)
		}
	}

	if r.dnsServer != "" {
		if target, err := r.resolveSRV(ctx, tech, peer); err == nil {
			return target, nil
		}
		if target, err := r.resolveTXT(ctx, tech, peer); err == nil {
			return target, nil
		}
	}

	return r.resolveA(ctx, peer)
}

// resolveTXT looks up a TXT record carrying a "host:port" (or bare host)
// dial string for peer, the third lookup method §4.3 requires alongside
// SRV+A and a local/extern config file, all tried in the configured order.
func (r *Resolver) resolveTXT(ctx context.Context, tech, peer string) (DialTarget, error) {
	name := fmt.Sprintf("_%s._udp.%s.", strings.ToLower(tech), peer)
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeTXT)

	in, _, err := r.dnsClient.ExchangeContext(ctx, m, r.dnsServer)
	if err != nil {
		return DialTarget{}, fmt.Errorf("linkset: TXT lookup %s: %w", name, err)
	}
	for _, ans := range in.Answer {
		txt, ok := ans.(*dns.TXT)
		if !ok {
			continue
		}
		for _, s := range txt.Txt {
			if target, perr := r.parseHostPort(s); perr == nil {
				return target, nil
			}
		}
	}
	return DialTarget{}, fmt.Errorf("linkset: no usable TXT record for %s", name)
}

func (r *Resolver) resolveSRV(ctx context.Context, tech, peer string) (DialTarget, error) {
	name := fmt.Sprintf("_%s._udp.%s.", strings.ToLower(tech), peer)
	m := new(dns.Msg)
	m.SetQuestion(dns.Fqdn(name), dns.TypeSRV)

	in, _, err := r.dnsClient.ExchangeContext(ctx, m, r.dnsServer)
	if err != nil {
		return DialTarget{}, fmt.Errorf("linkset: SRV lookup %s: %w", name, err)
	}
	for _, ans := range in.Answer {
		if srv, ok := ans.(*dns.SRV); ok {
			return DialTarget{Host: strings.TrimSuffix(srv.Target, "."), Port: int(srv.Port)}, nil
		}
	}
	return DialTarget{}, fmt.Errorf("linkset: no SRV record for %s", name)
}

func (r *Resolver) resolveA(ctx context.Context, peer string) (DialTarget, error) {
	if host, portStr, err := net.SplitHostPort(peer); err == nil {
		port, perr := strconv.Atoi(portStr)
		if perr == nil {
			return DialTarget{Host: host, Port: port}, nil
		}
	}
	resolver := net.Resolver{}
	addrs, err := resolver.LookupHost(ctx, peer)
	if err != nil || len(addrs) == 0 {
		return DialTarget{}, fmt.Errorf("linkset: A lookup %s: %w", peer, err)
	}
	return DialTarget{Host: addrs[0], Port: r.DefaultPort}, nil
}

func (r *Resolver) parseHostPort(addr string) (DialTarget, error) {
	host, portStr, err := net.SplitHostPort(addr)
	if err != nil {
		return DialTarget{Host: addr, Port: r.DefaultPort}, nil
	}
	port, err := strconv.Atoi(portStr)
	if err != nil {
		return DialTarget{}, fmt.Errorf("linkset: bad port in %q: %w", addr, err)
	}
	return DialTarget{Host: host, Port: port}, nil
}

// ReconnectPolicy implements exponential backoff with a ceiling for
// outbound links that drop unexpectedly (connpgm/discpgm-triggered links
// that the config says should stay up).
type ReconnectPolicy struct {
	Base    time.Duration
	Max     time.Duration
	attempt int
}

// NewReconnectPolicy returns a policy starting at base, doubling each
// failure up to max.
func NewReconnectPolicy(base, max time.Duration) *ReconnectPolicy {
	return &ReconnectPolicy{Base: base, Max: max}
}

// Next returns the delay before the next attempt and increments the
// internal attempt counter.
func (p *ReconnectPolicy) Next() time.Duration {
	d := p.Base << p.attempt
	if d > p.Max || d <= 0 {
		d = p.Max
	}
	p.attempt++
	return d
}

// Reset clears the backoff state after a successful connection.
func (p *ReconnectPolicy) Reset() { p.attempt = 0 }
