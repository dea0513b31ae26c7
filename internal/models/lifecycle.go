package models

// LifecycleState represents the current state of a session
type LifecycleState string

const (
	StateWaiting  LifecycleState = "waiting"
	StateActive   LifecycleState = "active"
	StateFinished LifecycleState = "finished"
)

// rank orders states so transitions can be checked for monotonicity
func (s LifecycleState) rank() int {
	switch s {
	case StateWaiting:
		return 0
	case StateActive:
		return 1
	case StateFinished:
		return 2
	default:
		return -1
	}
}

// CanAdvanceTo reports whether moving from s to next is a legal forward step
func (s LifecycleState) CanAdvanceTo(next LifecycleState) bool {
	return next.rank() == s.rank()+1 && s.rank() >= 0
}

// Terminal reports whether no further transitions are possible
func (s LifecycleState) Terminal() bool {
	return s == StateFinished
}
