package coordinator

type State uint8

const (
	Idle State = iota
	AwaitingResults
	Aggregating
	Complete
	Aborted
)

func (s State) String() string {
	switch s {
	case Idle:
		return "IDLE"
	case AwaitingResults:
		return "AWAITING_RESULTS"
	case Aggregating:
		return "AGGREGATING"
	case Complete:
		return "COMPLETE"
	case Aborted:
		return "ABORTED"
	default:
		return "UNKNOWN"
	}
}
