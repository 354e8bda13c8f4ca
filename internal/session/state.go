package session

// Role is fixed by the command that starts the session.
type Role int

const (
	Host Role = iota
	Joiner
)

func (r Role) String() string {
	switch r {
	case Host:
		return "host"
	case Joiner:
		return "joiner"
	default:
		return "unknown"
	}
}

// State of a peer session.
type State int

const (
	Idle State = iota
	Negotiating
	Connected
	Closed
	Failed
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Negotiating:
		return "negotiating"
	case Connected:
		return "connected"
	case Closed:
		return "closed"
	case Failed:
		return "failed"
	default:
		return "unknown"
	}
}

// Terminal reports whether no further transition can leave s, other than
// Failed moving to Closed on teardown.
func (s State) Terminal() bool {
	return s == Closed || s == Failed
}

func (s State) canTransition(to State) bool {
	switch s {
	case Idle:
		return to == Negotiating || to == Closed
	case Negotiating:
		return to == Connected || to == Failed || to == Closed
	case Connected, Failed:
		return to == Closed
	default:
		return false
	}
}
