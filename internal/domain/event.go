package domain

// EventKind names a signal frame, both inbound and outbound.
type EventKind string

// Inbound, client -> server.
const (
	EventJoin           EventKind = "join"
	EventPrivateMessage EventKind = "private message"
	EventCallUser       EventKind = "call-user"
	EventAcceptCall     EventKind = "accept-call"
	EventRejectCall     EventKind = "reject-call"
	EventICECandidate   EventKind = "ice-candidate"
	EventEndCall        EventKind = "end-call"
	EventPing           EventKind = "ping"
	EventWhoAmI         EventKind = "whoami"
)

// Outbound, server -> client. ice-candidate and private message keep their inbound name.
const (
	EventIncomingCall EventKind = "incoming-call"
	EventCallAccepted EventKind = "call-accepted"
	EventCallRejected EventKind = "call-rejected"
	EventCallEnded    EventKind = "call-ended"
	EventPong         EventKind = "pong"
	EventError        EventKind = "error"
)

// Feed events. Any joined client may publish them and every online identity,
// the publisher included, receives a copy.
const (
	EventMessage     EventKind = "message"
	EventPostLiked   EventKind = "postLiked"
	EventPostDeleted EventKind = "postDeleted"
	EventPostUpdated EventKind = "postUpdated"
)
