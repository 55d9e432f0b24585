package chord

import (
	"github.com/golang/glog"

	"github.com/ntua-el20059/Chordify/internal/store"
)

// Chain replication over the successor list. An insert or delete walks
// k consecutive nodes starting at the responsible one; times_copied
// counts the replicas that have applied the effect and the walk stops
// when it reaches k. Under linearizability the single acknowledgment
// leaves the k-th replica; under eventual consistency it leaves the
// head and the tail of the chain absorbs the write asynchronously.
// When k meets or exceeds the ring size the walk laps the ring,
// re-applying on revisited nodes, until the count runs out.

func (n *Node) handleInsertion(env Envelope) {
	lin := n.policy.ConsistencyType == ConsistencyLinearizable
	k := n.policy.ReplicationFactor

	switch n.route(&env) {
	case routeHead, routeReplica:
		env.TimesCopied++

		var value string
		if env.Value != nil {
			value = *env.Value
		}
		stored, err := n.shard.Merge(store.Entry{
			Key:     env.Key,
			KeyHash: env.KeyHash.String(),
			Value:   value,
		})
		if err != nil {
			glog.Errorf("node %d: insert %q: %v", shortID(n.self.ID), env.Key, err)
			return
		}
		glog.V(2).Infof("node %d: stored %q (copy %d/%d, value %q)",
			shortID(n.self.ID), env.Key, env.TimesCopied, k, stored.Value)

		if lin && env.TimesCopied == k {
			n.respond(env, Envelope{Type: MsgInsertionResponse, Key: env.Key, Inserted: true})
			return
		}
		if !lin && env.TimesCopied == 1 {
			n.respond(env, Envelope{Type: MsgInsertionResponse, Key: env.Key, Inserted: true})
		}
		if env.TimesCopied < k {
			n.forward(env)
		}

	case routeForward:
		n.forward(env)
	}
}

func (n *Node) handleDeletion(env Envelope) {
	lin := n.policy.ConsistencyType == ConsistencyLinearizable
	k := n.policy.ReplicationFactor

	switch n.route(&env) {
	case routeHead, routeReplica:
		env.TimesCopied++

		// Deleting an absent key is a no-op, not an error: the
		// response still reports deleted=true.
		if err := n.shard.RemoveByHash(env.KeyHash.String()); err != nil {
			glog.Errorf("node %d: delete %q: %v", shortID(n.self.ID), env.Key, err)
			return
		}
		glog.V(2).Infof("node %d: deleted %q (copy %d/%d)",
			shortID(n.self.ID), env.Key, env.TimesCopied, k)

		if lin && env.TimesCopied == k {
			n.respond(env, Envelope{Type: MsgDeletionResponse, Key: env.Key, Deleted: true})
			return
		}
		if !lin && env.TimesCopied == 1 {
			n.respond(env, Envelope{Type: MsgDeletionResponse, Key: env.Key, Deleted: true})
		}
		if env.TimesCopied < k {
			n.forward(env)
		}

	case routeForward:
		n.forward(env)
	}
}

func (n *Node) handleQuery(env Envelope) {
	if n.policy.ConsistencyType == ConsistencyLinearizable {
		n.handleQueryLinearizable(env)
		return
	}
	n.handleQueryEventual(env)
}

// handleQueryEventual serves the read at the responsible node only.
// Replicas never see the request; stale values on them are tolerated by
// definition of the mode.
func (n *Node) handleQueryEventual(env Envelope) {
	if n.route(&env) == routeHead {
		n.respondQueryValue(env)
		return
	}
	n.forward(env)
}

// handleQueryLinearizable walks the read along the chain exactly as a
// write: hops count up and only the k-th materializes the response,
// carrying that replica's local value. Writes acknowledge only after
// the full chain, so the k-th replica reflects every acknowledged
// write.
func (n *Node) handleQueryLinearizable(env Envelope) {
	switch n.route(&env) {
	case routeHead, routeReplica:
		env.TimesCopied++
		if env.TimesCopied == n.policy.ReplicationFactor {
			n.respondQueryValue(env)
			return
		}
		n.forward(env)

	case routeForward:
		n.forward(env)
	}
}

// respondQueryValue answers a query with this node's local value for
// the key. A missing key is not an error: found=false and a null value.
// The response origin fields identify the replica that answered.
func (n *Node) respondQueryValue(env Envelope) {
	resp := Envelope{Type: MsgQueryResponse, Key: env.Key}
	if entry, ok := n.shard.LookupByHash(env.KeyHash.String()); ok {
		resp.Found = true
		resp.Value = &entry.Value
	}
	n.respond(env, resp)
}
