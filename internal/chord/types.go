package chord

import (
	"math/big"
	"net"
	"strconv"

	"github.com/ntua-el20059/Chordify/internal/store"
)

// Envelope types carried on the wire.
const (
	MsgGreet                 = "greet"
	MsgGreetResponse         = "greet_response"
	MsgJoin                  = "join"
	MsgJoinResponse          = "join_response"
	MsgDeparture             = "departure"
	MsgDepartureAnnouncement = "departure_announcement"
	MsgInsertion             = "insertion"
	MsgInsertionResponse     = "insertion_response"
	MsgQuery                 = "query"
	MsgQueryResponse         = "query_response"
	MsgQueryAll              = "query_all"
	MsgQueryAllResponse      = "query_all_response"
	MsgDeletion              = "deletion"
	MsgDeletionResponse      = "deletion_response"
	MsgOverlay               = "overlay"
	MsgOverlayResponse       = "overlay_response"
)

// Consistency modes published by the bootstrap.
const (
	ConsistencyLinearizable = "linearizability"
	ConsistencyEventual     = "eventual"
)

// RingPosition names a node by its network address and ring identifier.
// Neighbors are held as plain positions, never as live handles; all
// traversal is by message passing.
type RingPosition struct {
	IP   string   `json:"ip"`
	Port int      `json:"port"`
	ID   *big.Int `json:"id"`
}

// Position builds the RingPosition of the node listening on ip:port.
// The id is the hash of the address string, so every node derives the
// same position for a given address.
func Position(ip string, port int) RingPosition {
	return RingPosition{IP: ip, Port: port, ID: Hash(ip + ":" + strconv.Itoa(port))}
}

// Addr returns the dialable "ip:port" form.
func (p RingPosition) Addr() string {
	return net.JoinHostPort(p.IP, strconv.Itoa(p.Port))
}

// Policy is the global ring policy: consistency mode and replication
// factor. It is authored on the bootstrap, copied to each joiner in the
// join response, and immutable thereafter.
type Policy struct {
	ConsistencyType   string `json:"consistencyType"`
	ReplicationFactor int    `json:"replicationFactor"`
}

// Envelope is the single wire message. One JSON document per TCP
// connection, terminated by half-close. Identifiers are encoded as
// decimal integers. Envelopes are immutable once sent except for the
// explicit per-hop mutations: times_copied, the foundPredecessor flag
// and stamped predecessor on join, and the policy fields piggybacked by
// the bootstrap.
//
// Responses travel on a fresh connection to (originIP, originReplyPort)
// and echo correlationId so the origin's reply multiplexer can hand
// them to the blocked operation. A node that ignores correlationId is
// still wire-compatible: the reply port tells it where to answer.
type Envelope struct {
	Type            string   `json:"type"`
	CorrelationID   string   `json:"correlationId,omitempty"`
	OriginIP        string   `json:"originIP,omitempty"`
	OriginPort      int      `json:"originPort,omitempty"`
	OriginReplyPort int      `json:"originReplyPort,omitempty"`
	OriginID        *big.Int `json:"originId,omitempty"`

	// Join and departure.
	FoundPredecessor bool     `json:"foundPredecessor,omitempty"`
	PredecessorIP    string   `json:"predecessor_ip,omitempty"`
	PredecessorPort  int      `json:"predecessor_port,omitempty"`
	PredecessorID    *big.Int `json:"predecessor_id,omitempty"`
	SuccessorIP      string   `json:"successor_ip,omitempty"`
	SuccessorPort    int      `json:"successor_port,omitempty"`
	SuccessorID      *big.Int `json:"successor_id,omitempty"`

	// Policy piggyback (join path only).
	ConsistencyType   string `json:"consistencyType,omitempty"`
	ReplicationFactor int    `json:"replicationFactor,omitempty"`

	// Data plane.
	Key         string        `json:"key,omitempty"`
	KeyHash     *big.Int      `json:"keyHash,omitempty"`
	Value       *string       `json:"value,omitempty"`
	TimesCopied int           `json:"times_copied,omitempty"`
	Inserted    bool          `json:"inserted,omitempty"`
	Deleted     bool          `json:"deleted,omitempty"`
	Found       bool          `json:"found,omitempty"`
	Entries     []store.Entry `json:"entries,omitempty"`

	Msg string `json:"msg,omitempty"`
}

// origin returns the sender identity stamped on the envelope.
func (e *Envelope) origin() RingPosition {
	return RingPosition{IP: e.OriginIP, Port: e.OriginPort, ID: e.OriginID}
}

// predecessor returns the predecessor position stamped on the envelope.
func (e *Envelope) predecessor() RingPosition {
	return RingPosition{IP: e.PredecessorIP, Port: e.PredecessorPort, ID: e.PredecessorID}
}

// successor returns the successor position stamped on the envelope.
func (e *Envelope) successor() RingPosition {
	return RingPosition{IP: e.SuccessorIP, Port: e.SuccessorPort, ID: e.SuccessorID}
}
