package chord

import (
	"fmt"
	"time"

	"github.com/ntua-el20059/Chordify/internal/transport"
)

// Client-side data operations. Every operation stamps an envelope with
// this node's identity and a fresh correlation id, injects it into the
// ring at this node itself — the first hop goes over loopback like any
// other — and blocks on the reply multiplexer until the response or the
// timeout. Sequential blocking is what orders writes from a single
// originator: the next operation does not start until the previous one
// was acknowledged or timed out.

// Insert stores value under key with replication factor k. Inserting an
// existing key appends to its value; that is the merge rule, never an
// error. Under linearizability the call returns after all k replicas
// wrote; under eventual consistency after the responsible node wrote.
func (n *Node) Insert(key, value string) error {
	env := n.newEnvelope(MsgInsertion)
	env.Key = key
	env.KeyHash = Hash(key)
	env.Value = &value

	ch := n.pending.register(env.CorrelationID)
	defer n.pending.drop(env.CorrelationID)

	if err := transport.Send(n.self.Addr(), env); err != nil {
		return fmt.Errorf("insert %q: %w", key, err)
	}

	select {
	case resp := <-ch:
		if !resp.Inserted {
			return fmt.Errorf("insert %q: rejected by the ring", key)
		}
		return nil
	case <-time.After(opTimeout):
		return fmt.Errorf("insert %q: timed out", key)
	}
}

// Delete removes key from every replica that holds it. Deleting an
// absent key succeeds: the ring answers deleted=true either way.
func (n *Node) Delete(key string) error {
	env := n.newEnvelope(MsgDeletion)
	env.Key = key
	env.KeyHash = Hash(key)

	ch := n.pending.register(env.CorrelationID)
	defer n.pending.drop(env.CorrelationID)

	if err := transport.Send(n.self.Addr(), env); err != nil {
		return fmt.Errorf("delete %q: %w", key, err)
	}

	select {
	case resp := <-ch:
		if !resp.Deleted {
			return fmt.Errorf("delete %q: rejected by the ring", key)
		}
		return nil
	case <-time.After(opTimeout):
		return fmt.Errorf("delete %q: timed out", key)
	}
}

// Query returns the value stored under key, or nil when the key is
// absent — a missing key is not an error. The wildcard key "*" is a
// caller-level convention resolved through QueryAll, not through this
// path.
func (n *Node) Query(key string) (*string, error) {
	env := n.newEnvelope(MsgQuery)
	env.Key = key
	env.KeyHash = Hash(key)

	ch := n.pending.register(env.CorrelationID)
	defer n.pending.drop(env.CorrelationID)

	if err := transport.Send(n.self.Addr(), env); err != nil {
		return nil, fmt.Errorf("query %q: %w", key, err)
	}

	select {
	case resp := <-ch:
		if !resp.Found {
			return nil, nil
		}
		return resp.Value, nil
	case <-time.After(opTimeout):
		return nil, fmt.Errorf("query %q: timed out", key)
	}
}
