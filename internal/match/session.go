package match

import "time"

// State is a pairing session's lifecycle position. A session is created in
// StateCreating, waits for the mutual handshake in StateAwaitingAccept, and
// every terminal state funnels into destruction (channel deleted, both users
// released).
type State int

const (
	StateCreating State = iota
	StateAwaitingAccept
	StateActive
	StateDeclined
	StateAcceptTimeout
	StateSafetyTimeout
	StateClosed
)

func (s State) String() string {
	switch s {
	case StateCreating:
		return "creating"
	case StateAwaitingAccept:
		return "awaiting_accept"
	case StateActive:
		return "active"
	case StateDeclined:
		return "declined"
	case StateAcceptTimeout:
		return "accept_timeout"
	case StateSafetyTimeout:
		return "safety_timeout"
	case StateClosed:
		return "closed"
	default:
		return "unknown"
	}
}

// Session is one matchmaking attempt between two users, keyed by the channel
// provisioned for it.
type Session struct {
	ChannelID string
	MessageID string
	UserA     string
	UserB     string
	State     State
	Accepted  map[string]bool
	CreatedAt time.Time
}

func (s *Session) isParticipant(userID string) bool {
	return userID == s.UserA || userID == s.UserB
}

func (s *Session) bothAccepted() bool {
	return s.Accepted[s.UserA] && s.Accepted[s.UserB]
}

// ActionResult tells the interaction layer how to answer the actor.
type ActionResult int

const (
	// ResultRecorded: the accept was stored, still waiting on the other user.
	ResultRecorded ActionResult = iota
	// ResultStarted: both accepted, the conversation is open.
	ResultStarted
	// ResultEnded: the action terminated the session.
	ResultEnded
	// ResultRejected: the actor is not one of the two participants.
	ResultRejected
	// ResultGone: no session exists for the channel.
	ResultGone
	// ResultIgnored: the session has moved past the state the action targets.
	ResultIgnored
)
