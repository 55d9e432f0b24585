package chord

import (
	"errors"
	"fmt"
	"time"

	"github.com/golang/glog"

	"github.com/ntua-el20059/Chordify/internal/transport"
)

// ErrJoinTimeout is returned when the ring never answers a join
// request. The caller is expected to shut the node down.
var ErrJoinTimeout = errors.New("join: no response from the ring")

// opTimeout bounds every blocking client-side operation except
// query_all (see traversal.go).
const opTimeout = 10 * time.Second

// ─── Join ─────────────────────────────────────────────────────────────────────

// Join inserts this node into the ring owned by the bootstrap at
// ip:port. It blocks until the join response installs the successor,
// predecessor, and global policy, or until the timeout expires.
func (n *Node) Join(bootstrapIP string, bootstrapPort int) error {
	n.bootstrap = Position(bootstrapIP, bootstrapPort)

	env := n.newEnvelope(MsgJoin)
	env.FoundPredecessor = false

	ch := n.pending.register(env.CorrelationID)
	defer n.pending.drop(env.CorrelationID)

	glog.Infof("node %d: joining via bootstrap %s", shortID(n.self.ID), n.bootstrap.Addr())
	if err := transport.Send(n.bootstrap.Addr(), env); err != nil {
		return fmt.Errorf("join: %w", err)
	}

	select {
	case resp := <-ch:
		n.setSuccessor(resp.successor())
		n.setPredecessor(resp.predecessor())
		n.policy = Policy{
			ConsistencyType:   resp.ConsistencyType,
			ReplicationFactor: resp.ReplicationFactor,
		}
		glog.Infof("node %d: joined ring (successor %d, predecessor %d, %s, k=%d)",
			shortID(n.self.ID), shortID(resp.SuccessorID), shortID(resp.PredecessorID),
			n.policy.ConsistencyType, n.policy.ReplicationFactor)
		return nil
	case <-time.After(opTimeout):
		return ErrJoinTimeout
	}
}

// handleJoin walks a join envelope around the ring.
//
// Phase one (foundPredecessor=false): the bootstrap piggybacks the
// global policy; the node whose outgoing arc contains the joiner's id
// stamps itself as predecessor, forwards the envelope onward, and only
// then rewires its successor pointer to the joiner. Forwarding first
// guarantees the eventual successor sees the envelope before any
// pointer on this node names the joiner.
//
// Phase two (foundPredecessor=true): the receiving node is the joiner's
// successor-to-be. It adopts the joiner as predecessor and answers the
// joiner's reply port directly with both neighbors and the policy.
func (n *Node) handleJoin(env Envelope) {
	if !env.FoundPredecessor {
		if n.isBootstrap() {
			env.ConsistencyType = n.policy.ConsistencyType
			env.ReplicationFactor = n.policy.ReplicationFactor
		}

		succ := n.Successor()
		if InArc(env.OriginID, n.self.ID, succ.ID) {
			env.FoundPredecessor = true
			env.PredecessorIP = n.self.IP
			env.PredecessorPort = n.self.Port
			env.PredecessorID = n.self.ID

			// Forward before rewiring: the envelope must reach the
			// old successor, not the joiner.
			n.forward(env)
			n.setSuccessor(env.origin())
			return
		}
		n.forward(env)
		return
	}

	joiner := env.origin()
	n.setPredecessor(joiner)

	resp := Envelope{
		Type:              MsgJoinResponse,
		PredecessorIP:     env.PredecessorIP,
		PredecessorPort:   env.PredecessorPort,
		PredecessorID:     env.PredecessorID,
		SuccessorIP:       n.self.IP,
		SuccessorPort:     n.self.Port,
		SuccessorID:       n.self.ID,
		ConsistencyType:   env.ConsistencyType,
		ReplicationFactor: env.ReplicationFactor,
	}
	n.respond(env, resp)
}

// ─── Depart ───────────────────────────────────────────────────────────────────

// Depart announces a graceful departure to both neighbors and the
// bootstrap. On a singleton ring there is nothing to announce. The
// caller shuts the listener down afterwards; stored data is not handed
// off — replication on the write path is the only data movement.
func (n *Node) Depart() {
	succ := n.Successor()
	if idEqual(succ.ID, n.self.ID) {
		glog.Infof("node %d: departing singleton ring", shortID(n.self.ID))
		return
	}
	pred := n.Predecessor()

	env := n.newEnvelope(MsgDeparture)
	env.SuccessorIP = succ.IP
	env.SuccessorPort = succ.Port
	env.SuccessorID = succ.ID
	env.PredecessorIP = pred.IP
	env.PredecessorPort = pred.Port
	env.PredecessorID = pred.ID

	glog.Infof("node %d: departing (successor %d, predecessor %d)",
		shortID(n.self.ID), shortID(succ.ID), shortID(pred.ID))
	_ = transport.Send(succ.Addr(), env)
	_ = transport.Send(pred.Addr(), env)

	env.Type = MsgDepartureAnnouncement
	_ = transport.Send(n.bootstrap.Addr(), env)
}

// handleDeparture splices the departing node out of the ring. The two
// pointer updates fire independently: on a two-node ring this node is
// both successor and predecessor of the departing one.
func (n *Node) handleDeparture(env Envelope) {
	if idEqual(n.Successor().ID, env.OriginID) {
		n.setSuccessor(env.successor())
	}
	if idEqual(n.Predecessor().ID, env.OriginID) {
		n.setPredecessor(env.predecessor())
	}
}

// handleDepartureAnnouncement is informational only; the bootstrap does
// not mutate ring state from it.
func (n *Node) handleDepartureAnnouncement(env Envelope) {
	if n.isBootstrap() {
		glog.Infof("bootstrap: node %s:%d departed the ring", env.OriginIP, env.OriginPort)
	}
}

// ─── Greet ────────────────────────────────────────────────────────────────────

// Greet sends a liveness handshake to an arbitrary node and returns its
// reply message.
func (n *Node) Greet(targetIP string, targetPort int) (string, error) {
	env := n.newEnvelope(MsgGreet)

	ch := n.pending.register(env.CorrelationID)
	defer n.pending.drop(env.CorrelationID)

	addr := fmt.Sprintf("%s:%d", targetIP, targetPort)
	if err := transport.Send(addr, env); err != nil {
		return "", fmt.Errorf("greet: %w", err)
	}

	select {
	case resp := <-ch:
		return resp.Msg, nil
	case <-time.After(opTimeout):
		return "", fmt.Errorf("greet: no response from %s", addr)
	}
}

func (n *Node) handleGreet(env Envelope) {
	n.respond(env, Envelope{
		Type: MsgGreetResponse,
		Msg:  fmt.Sprintf("hello from %s", n.self.Addr()),
	})
}
