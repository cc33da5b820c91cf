package peer

import "github.com/babencoin/babencoin/data"

// SessionID identifies one TCP connection, assigned at random when the
// connection is established and retired when it closes.
type SessionID uint64

// EventKind discriminates the three things PeerService reports about a
// session.
type EventKind int

const (
	EventConnected EventKind = iota
	EventDisconnected
	EventNewMessage
)

// Event is what PeerService emits for GossipService to consume.
type Event struct {
	SessionID SessionID
	Kind      EventKind
	Message   data.VerifiedPeerMessage // valid iff Kind == EventNewMessage
	// Reason is a short, log-only explanation for EventDisconnected
	// (oversize frame, malformed json, verification failed, eof, io
	// error). It carries no protocol meaning — see SPEC_FULL §9.
	Reason string
}

// CommandKind discriminates the two things GossipService may ask
// PeerService to do with a session.
type CommandKind int

const (
	CommandSendMessage CommandKind = iota
	CommandDrop
)

// Command is what GossipService sends to PeerService.
type Command struct {
	SessionID SessionID
	Kind      CommandKind
	Message   data.VerifiedPeerMessage // valid iff Kind == CommandSendMessage
}
