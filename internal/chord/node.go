package chord

import (
	"encoding/json"
	"fmt"
	"strconv"
	"sync"
	"sync/atomic"

	"github.com/golang/glog"

	"github.com/ntua-el20059/Chordify/internal/store"
	"github.com/ntua-el20059/Chordify/internal/transport"
)

// Node is one ring member. It keeps three pieces of ring state — self
// (immutable), successor, and predecessor — plus the bootstrap handle,
// the global policy, and the local shard.
//
// Successor and predecessor are mutated only by the ring-maintenance
// handlers and are guarded by mu. The shard serializes its own
// mutations. Everything else is written once at startup or join time
// and read-only afterwards.
type Node struct {
	self      RingPosition
	bootstrap RingPosition
	policy    Policy

	mu          sync.RWMutex
	successor   RingPosition
	predecessor RingPosition

	shard store.Store

	pending pendingMap
	corrSeq atomic.Uint64
}

// New creates a node identified by ip:port with the given shard.
// The node is not part of any ring until Bootstrap or Join is called,
// and its listener must be serving before either.
func New(ip string, port int, shard store.Store) *Node {
	n := &Node{
		self:  Position(ip, port),
		shard: shard,
	}
	n.pending.init()
	return n
}

// Self returns this node's ring position.
func (n *Node) Self() RingPosition { return n.self }

// Policy returns the global ring policy.
func (n *Node) Policy() Policy { return n.policy }

// BootstrapHandle returns the position of the ring founder.
func (n *Node) BootstrapHandle() RingPosition { return n.bootstrap }

// Successor returns the current successor pointer.
func (n *Node) Successor() RingPosition {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.successor
}

// Predecessor returns the current predecessor pointer.
func (n *Node) Predecessor() RingPosition {
	n.mu.RLock()
	defer n.mu.RUnlock()
	return n.predecessor
}

func (n *Node) setSuccessor(p RingPosition) {
	n.mu.Lock()
	n.successor = p
	n.mu.Unlock()
	glog.Infof("node %d: successor -> %s (%d)", shortID(n.self.ID), p.Addr(), shortID(p.ID))
}

func (n *Node) setPredecessor(p RingPosition) {
	n.mu.Lock()
	n.predecessor = p
	n.mu.Unlock()
	glog.Infof("node %d: predecessor -> %s (%d)", shortID(n.self.ID), p.Addr(), shortID(p.ID))
}

// Entries exposes the local shard contents for the status command and
// the admin API.
func (n *Node) Entries() []store.Entry { return n.shard.Entries() }

// isBootstrap reports whether this node founded the ring.
func (n *Node) isBootstrap() bool {
	return idEqual(n.self.ID, n.bootstrap.ID)
}

// Bootstrap makes this node the founder of a fresh singleton ring: it
// is its own successor and predecessor, owns the bootstrap handle, and
// authors the global policy.
func (n *Node) Bootstrap(policy Policy) {
	n.bootstrap = n.self
	n.policy = policy
	n.mu.Lock()
	n.successor = n.self
	n.predecessor = n.self
	n.mu.Unlock()
	glog.Infof("node %d: bootstrap ring at %s (%s, k=%d)",
		shortID(n.self.ID), n.self.Addr(), policy.ConsistencyType, policy.ReplicationFactor)
}

// HandleFrame is the transport handler: it decodes one envelope and
// dispatches on its type. Malformed frames are logged and dropped; the
// node stays up.
func (n *Node) HandleFrame(payload []byte) {
	var env Envelope
	if err := json.Unmarshal(payload, &env); err != nil {
		glog.Errorf("node %d: malformed envelope: %v", shortID(n.self.ID), err)
		return
	}
	glog.V(2).Infof("node %d: recv %s from %s:%d", shortID(n.self.ID), env.Type, env.OriginIP, env.OriginPort)

	switch env.Type {
	case MsgGreet:
		n.handleGreet(env)
	case MsgJoin:
		n.handleJoin(env)
	case MsgDeparture:
		n.handleDeparture(env)
	case MsgDepartureAnnouncement:
		n.handleDepartureAnnouncement(env)
	case MsgInsertion:
		n.handleInsertion(env)
	case MsgDeletion:
		n.handleDeletion(env)
	case MsgQuery:
		n.handleQuery(env)
	case MsgOverlay:
		n.handleOverlay(env)
	case MsgQueryAll:
		n.handleQueryAll(env)
	case MsgGreetResponse, MsgJoinResponse, MsgInsertionResponse,
		MsgDeletionResponse, MsgQueryResponse, MsgQueryAllResponse,
		MsgOverlayResponse:
		n.pending.resolve(env)
	default:
		glog.Warningf("node %d: unknown envelope type %q", shortID(n.self.ID), env.Type)
	}
}

// forward passes an envelope to the successor. Self-forwarding still
// goes over the loopback socket so every hop looks the same to the
// router. Fire-and-forget: a failed send is logged by the transport and
// the envelope is dropped.
func (n *Node) forward(env Envelope) {
	succ := n.Successor()
	glog.V(2).Infof("node %d: forward %s to %s", shortID(n.self.ID), env.Type, succ.Addr())
	_ = transport.Send(succ.Addr(), env)
}

// respond sends a response envelope back to the origin's reply port,
// echoing the request's correlation id and stamping this node's
// identity as the response origin.
func (n *Node) respond(req Envelope, resp Envelope) {
	resp.CorrelationID = req.CorrelationID
	resp.OriginIP = n.self.IP
	resp.OriginPort = n.self.Port
	resp.OriginID = n.self.ID
	addr := req.OriginIP + ":" + strconv.Itoa(req.OriginReplyPort)
	_ = transport.Send(addr, resp)
}

// newEnvelope stamps the common origin fields and a fresh correlation
// id for a client-side operation starting at this node.
func (n *Node) newEnvelope(msgType string) Envelope {
	seq := n.corrSeq.Add(1)
	return Envelope{
		Type:            msgType,
		CorrelationID:   fmt.Sprintf("%s-%d", n.self.Addr(), seq),
		OriginIP:        n.self.IP,
		OriginPort:      n.self.Port,
		OriginReplyPort: n.self.Port,
		OriginID:        n.self.ID,
	}
}

// pendingMap is the reply multiplexer: it correlates inbound response
// envelopes with the client-side operation blocked on them. Traversal
// operations receive many envelopes under one correlation id, so the
// channel is buffered generously and sends never block.
type pendingMap struct {
	mu sync.Mutex
	m  map[string]chan Envelope
}

func (p *pendingMap) init() {
	p.m = make(map[string]chan Envelope)
}

// register opens a reply channel for the given correlation id.
func (p *pendingMap) register(id string) chan Envelope {
	ch := make(chan Envelope, 64)
	p.mu.Lock()
	p.m[id] = ch
	p.mu.Unlock()
	return ch
}

// drop closes out a correlation id once its operation has finished.
func (p *pendingMap) drop(id string) {
	p.mu.Lock()
	delete(p.m, id)
	p.mu.Unlock()
}

// resolve delivers a response to the operation waiting on it. Late or
// unknown responses are dropped: the operation already timed out.
func (p *pendingMap) resolve(env Envelope) {
	p.mu.Lock()
	ch, ok := p.m[env.CorrelationID]
	p.mu.Unlock()
	if !ok {
		glog.V(2).Infof("reply multiplexer: no waiter for %q, dropping %s", env.CorrelationID, env.Type)
		return
	}
	select {
	case ch <- env:
	default:
		glog.Warningf("reply multiplexer: waiter for %q is full, dropping %s", env.CorrelationID, env.Type)
	}
}
