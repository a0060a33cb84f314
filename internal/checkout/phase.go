package checkout

import (
	"fmt"
	"slices"
)

// Phase is the step a session is on.
type Phase string

const (
	PhaseLoading   Phase = "loading"
	PhaseError     Phase = "error"
	PhaseDataEntry Phase = "data_entry"
	PhaseUpsell    Phase = "upsell"
	PhasePayment   Phase = "payment"
	PhaseConfirmed Phase = "confirmed"
)

// allowedTransitions lists the phases reachable from each phase. Upsell back to data entry is
// the only backward edge.
var allowedTransitions = map[Phase][]Phase{
	PhaseLoading:   {PhaseError, PhaseDataEntry},
	PhaseDataEntry: {PhaseUpsell},
	PhaseUpsell:    {PhasePayment, PhaseDataEntry},
	PhasePayment:   {PhaseConfirmed},
	PhaseError:     {},
	PhaseConfirmed: {},
}

// CanTransition reports whether from may move to to.
func CanTransition(from, to Phase) bool {
	return slices.Contains(allowedTransitions[from], to)
}

// Terminal reports whether no transition leaves the phase.
func (p Phase) Terminal() bool {
	next, ok := allowedTransitions[p]
	return ok && len(next) == 0
}

// TransitionError is returned when a command is not valid in the current phase.
type TransitionError struct {
	Phase   Phase
	Command string
	Target  Phase
}

func (e *TransitionError) Error() string {
	if e.Target != "" {
		return fmt.Sprintf("checkout: cannot move from %s to %s", e.Phase, e.Target)
	}
	return fmt.Sprintf("checkout: %s not allowed in phase %s", e.Command, e.Phase)
}

// Unwrap lets errors.Is match ErrCheckoutInvalidPhase.
func (e *TransitionError) Unwrap() error {
	return ErrCheckoutInvalidPhase
}
