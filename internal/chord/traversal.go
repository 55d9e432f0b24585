package chord

import (
	"fmt"
	"sort"
	"time"

	"github.com/ntua-el20059/Chordify/internal/store"
	"github.com/ntua-el20059/Chordify/internal/transport"
)

// Overlay and query_all are walks of the successor pointer rather than
// key routing: the envelope visits every live node once, and each node
// answers the origin's reply port directly as the envelope passes.

// queryAllTimeout bounds the whole query_all walk; it is longer than
// the per-operation timeout because the walk touches every node.
const queryAllTimeout = 20 * time.Second

func (n *Node) handleOverlay(env Envelope) {
	succ := n.Successor()
	n.respond(env, Envelope{
		Type:          MsgOverlayResponse,
		SuccessorIP:   succ.IP,
		SuccessorPort: succ.Port,
		SuccessorID:   succ.ID,
	})
	// The walk ends where it began: the origin answers but does not
	// forward, otherwise the envelope would cycle forever.
	if !idEqual(n.self.ID, env.OriginID) {
		n.forward(env)
	}
}

func (n *Node) handleQueryAll(env Envelope) {
	succ := n.Successor()
	n.respond(env, Envelope{
		Type:          MsgQueryAllResponse,
		Entries:       n.shard.Entries(),
		SuccessorIP:   succ.IP,
		SuccessorPort: succ.Port,
		SuccessorID:   succ.ID,
	})
	// Stop before the envelope re-enters the origin; the origin's own
	// shard is contributed locally on the client side.
	if !idEqual(n.self.ID, env.OriginID) && !idEqual(succ.ID, env.OriginID) {
		n.forward(env)
	}
}

// Overlay walks the ring and returns every live node in successor
// order, ending with this node itself. The walk has completed one full
// cycle when a response carrying this node's own id arrives.
func (n *Node) Overlay() ([]RingPosition, error) {
	env := n.newEnvelope(MsgOverlay)

	ch := n.pending.register(env.CorrelationID)
	defer n.pending.drop(env.CorrelationID)

	if err := transport.Send(n.Successor().Addr(), env); err != nil {
		return nil, fmt.Errorf("overlay: %w", err)
	}

	var nodes []RingPosition
	for {
		select {
		case resp := <-ch:
			nodes = append(nodes, resp.origin())
			if idEqual(resp.OriginID, n.self.ID) {
				return nodes, nil
			}
		case <-time.After(opTimeout):
			return nil, fmt.Errorf("overlay: timed out after %d nodes", len(nodes))
		}
	}
}

// QueryAll walks the ring collecting every node's local entries and
// returns a deduplicated snapshot sorted by key. The walk terminates
// when the predecessor — the last node before this one — has answered.
//
// The snapshot reads each node once outside the replication chain, so
// under linearizability it is weaker than per-key chain reads: a
// concurrent write may surface from any replica.
func (n *Node) QueryAll() ([]store.Entry, error) {
	pred := n.Predecessor()
	env := n.newEnvelope(MsgQueryAll)

	ch := n.pending.register(env.CorrelationID)
	defer n.pending.drop(env.CorrelationID)

	if err := transport.Send(n.Successor().Addr(), env); err != nil {
		return nil, fmt.Errorf("query_all: %w", err)
	}

	// The origin contributes its own shard directly; the walk covers
	// everyone else.
	byKey := make(map[string]store.Entry)
	for _, e := range n.shard.Entries() {
		byKey[e.Key] = e
	}

	deadline := time.After(queryAllTimeout)
	for {
		select {
		case resp := <-ch:
			for _, e := range resp.Entries {
				if _, ok := byKey[e.Key]; !ok {
					byKey[e.Key] = e
				}
			}
			if idEqual(resp.OriginID, pred.ID) {
				out := make([]store.Entry, 0, len(byKey))
				for _, e := range byKey {
					out = append(out, e)
				}
				sort.Slice(out, func(i, j int) bool { return out[i].Key < out[j].Key })
				return out, nil
			}
		case <-deadline:
			return nil, fmt.Errorf("query_all: timed out with %d keys collected", len(byKey))
		}
	}
}
