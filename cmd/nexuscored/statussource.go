package main

import (
	"net"
	"sync/atomic"

	"github.com/dbehnke/nexus-core/internal/rptnode"
	"github.com/dbehnke/nexus-core/internal/web"
)

// nodeStatusSource adapts one rptnode.Node (and its linkset.Set) to
// web.StatusSource, the seam the teacher's StateManager used to fill for
// the Hub. stateVersion increments on every snapshot so clients can tell
// pushes apart without a sequence number traveling through the node itself;
// it's read from both the /ws handler and the heartbeat goroutine, hence
// the atomic rather than a plain counter.
type nodeStatusSource struct {
	node         *rptnode.Node
	linkIPs      map[string]net.IP
	stateVersion int64
}

func newNodeStatusSource(node *rptnode.Node, linkIPs map[string]net.IP) *nodeStatusSource {
	return &nodeStatusSource{node: node, linkIPs: linkIPs}
}

func (s *nodeStatusSource) NodeSnapshot() web.NodeView {
	v := atomic.AddInt64(&s.stateVersion, 1)
	snap := s.node.Snapshot()
	return web.NewNodeView(snap, s.node.LinkSet().Len(), v)
}

func (s *nodeStatusSource) LinkSnapshot() []web.LinkView {
	links := s.node.LinkSet().Snapshot()
	views := make([]web.LinkView, 0, len(links))
	for _, l := range links {
		ip := ""
		if addr, ok := s.linkIPs[l.Name]; ok && addr != nil {
			ip = addr.String()
		}
		views = append(views, web.NewLinkView(l, ip))
	}
	return views
}
