package workflow

import "github.com/sedaguven/davon-library-system/internal/availability"

// Action is the single primary action a book view exposes
type Action int

const (
	ActionNone Action = iota
	ActionBorrow
	ActionReserve
)

func (a Action) String() string {
	switch a {
	case ActionBorrow:
		return "borrow"
	case ActionReserve:
		return "reserve"
	default:
		return "none"
	}
}

// Decide maps a reconciled verdict onto the one action the viewer may take.
// It is a pure function.
//
//	available                    -> Borrow
//	unavailable, not reserved    -> Reserve
//	unavailable, already reserved -> None
//	not found                    -> None
func Decide(v availability.Verdict) Action {
	switch {
	case v.NotFound:
		return ActionNone
	case v.EffectiveAvailable:
		return ActionBorrow
	case v.AlreadyReserved:
		return ActionNone
	default:
		return ActionReserve
	}
}
