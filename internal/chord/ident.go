// Package chord implements the ring membership protocol, the request
// router, and the chain-replication engine of a Chord distributed hash
// table.
//
// Nodes form a logical ring keyed by a 160-bit identifier space. Each
// node owns the arc of identifiers between its predecessor's id
// (exclusive) and its own id (inclusive). Lookup is strictly
// successor-hop: there are no finger tables, so a request walks O(N)
// hops to the responsible node.
package chord

import (
	"crypto/sha1"
	"math/big"
)

// ringModulus is 2^160, the size of the identifier space. SHA-1 output
// already fits, but every piece of id arithmetic reduces modulo this
// value so the ring arithmetic has a single authority.
var ringModulus = new(big.Int).Lsh(big.NewInt(1), 160)

// Hash maps a string onto the identifier ring: SHA-1 over the UTF-8
// bytes, interpreted big-endian. Node ids hash "ip:port", key
// fingerprints hash the key itself. Must agree byte-for-byte across
// nodes, so nothing but the raw digest goes in.
func Hash(s string) *big.Int {
	sum := sha1.Sum([]byte(s))
	id := new(big.Int).SetBytes(sum[:])
	return id.Mod(id, ringModulus)
}

// InArc reports whether x lies in the arc (a, b] of the ring.
//
// This predicate is the only admissible responsibility test; every
// routing decision goes through it. Three cases:
//
//	a == b  the arc covers the whole ring (singleton)
//	a <  b  plain interval: a < x <= b
//	a >  b  wrap-around:    x > a  or  x <= b
func InArc(x, a, b *big.Int) bool {
	switch a.Cmp(b) {
	case 0:
		return true
	case -1:
		return a.Cmp(x) < 0 && x.Cmp(b) <= 0
	default:
		return x.Cmp(a) > 0 || x.Cmp(b) <= 0
	}
}

// idEqual is a nil-tolerant equality test for identifiers.
func idEqual(a, b *big.Int) bool {
	if a == nil || b == nil {
		return a == b
	}
	return a.Cmp(b) == 0
}

// shortID renders the top bits of an identifier for log lines, the way
// operators eyeball ring positions: id / 2^155, so a value in [0, 32).
func shortID(id *big.Int) int64 {
	if id == nil {
		return -1
	}
	return new(big.Int).Rsh(id, 155).Int64()
}
