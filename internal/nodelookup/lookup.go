package nodelookup

import (
	"bufio"
	"os"
	"strconv"
	"strings"
	"sync"
	"time"
)

// Service provides fast, cached node-number -> callsign/description
// lookups, re-reading FilePath at most every cacheTTL. Negative node
// numbers are "text nodes" (hashed IAX/Echolink peer names the original
// controller could not resolve via astdb) and are looked up via a
// separately registered text-node table instead.
type Service struct {
	filePath string
	mu       sync.RWMutex
	cache    map[int]Entry
	lastLoad time.Time
	cacheTTL time.Duration

	textNodes map[int]string
}

// NewService builds a Service reading from filePath, refreshing its cache
// every 5 minutes (the teacher's default).
func NewService(filePath string) *Service {
	return &Service{
		filePath:  filePath,
		cache:     make(map[int]Entry),
		cacheTTL:  5 * time.Minute,
		textNodes: make(map[int]string),
	}
}

// RegisterTextNode records a name for a negative (hashed) node ID, as
// produced by IAX2 peers identified by name rather than number.
func (s *Service) RegisterTextNode(id int, name string) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.textNodes[id] = name
}

// Lookup returns node info by ID, refreshing the cache if stale. ok is
// false for positive IDs absent from astdb and for negative IDs with no
// registered text-node name.
func (s *Service) Lookup(nodeID int) (Entry, bool) {
	if nodeID < 0 {
		s.mu.RLock()
		name := s.textNodes[nodeID]
		s.mu.RUnlock()
		return Entry{Node: nodeID, Callsign: name, Description: "VOIP Node"}, name != ""
	}

	s.mu.RLock()
	stale := time.Since(s.lastLoad) > s.cacheTTL
	e, found := s.cache[nodeID]
	s.mu.RUnlock()
	if found && !stale {
		return e, true
	}
	if stale {
		s.reload()
	}
	s.mu.RLock()
	e, found = s.cache[nodeID]
	s.mu.RUnlock()
	return e, found
}

func (s *Service) reload() {
	file, err := os.Open(s.filePath)
	if err != nil {
		return // astdb may not exist yet; keep serving the stale cache
	}
	defer func() { _ = file.Close() }()

	fresh := make(map[int]Entry)
	scanner := bufio.NewScanner(file)
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		parts := strings.Split(line, "|")
		if len(parts) < 2 {
			continue
		}
		node, err := strconv.Atoi(strings.TrimSpace(parts[0]))
		if err != nil {
			continue
		}
		e := Entry{Node: node, Callsign: strings.TrimSpace(parts[1])}
		if len(parts) > 2 {
			e.Description = strings.TrimSpace(parts[2])
		}
		if len(parts) > 3 {
			e.Location = strings.TrimSpace(parts[3])
		}
		fresh[node] = e
	}

	s.mu.Lock()
	s.cache = fresh
	s.lastLoad = time.Now()
	s.mu.Unlock()
}

// Search returns every cached entry whose node number, callsign,
// description, or location contains query (case-insensitive), refreshing
// the cache first if it is stale. Results are capped at limit.
func (s *Service) Search(query string, limit int) []Entry {
	if time.Since(s.lastLoad) > s.cacheTTL {
		s.reload()
	}
	q := strings.ToLower(strings.TrimSpace(query))
	if q == "" {
		return nil
	}
	s.mu.RLock()
	defer s.mu.RUnlock()
	var out []Entry
	for _, e := range s.cache {
		if strings.Contains(strconv.Itoa(e.Node), q) ||
			strings.Contains(strings.ToLower(e.Callsign), q) ||
			strings.Contains(strings.ToLower(e.Description), q) ||
			strings.Contains(strings.ToLower(e.Location), q) {
			out = append(out, e)
			if limit > 0 && len(out) >= limit {
				break
			}
		}
	}
	return out
}

// LinkLabel is the minimal shape of a link a caller wants enriched with a
// callsign/description, kept as a plain struct here (rather than importing
// internal/linkset) to avoid a dependency cycle.
type LinkLabel struct {
	Node        int
	Callsign    string
	Description string
	Location    string
}

// Enrich fills in a LinkLabel's Callsign/Description/Location fields from
// the lookup cache (or text-node table for negative IDs), leaving them
// untouched if nothing is known.
func (s *Service) Enrich(l *LinkLabel) {
	if l == nil {
		return
	}
	if e, ok := s.Lookup(l.Node); ok {
		l.Callsign = e.Callsign
		l.Description = e.Description
		l.Location = e.Location
	}
}
