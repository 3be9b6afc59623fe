package shutdown

import "fmt"

// State is a shutdown phase. States only ever move forward.
type State int32

const (
	Idle State = iota
	Draining
	Closing
	TearingDown
	Terminated
)

func (s State) String() string {
	switch s {
	case Idle:
		return "idle"
	case Draining:
		return "draining"
	case Closing:
		return "closing"
	case TearingDown:
		return "tearing_down"
	case Terminated:
		return "terminated"
	default:
		return fmt.Sprintf("state(%d)", int32(s))
	}
}
