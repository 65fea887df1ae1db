package state

// validTransitions contains the permitted non-emergency transitions in the purchase flow.
var validTransitions = map[State][]State{
	StateIdle: {
		StateChoosingQuantity,
	},
	StateChoosingQuantity: {
		StateChoosingQuantity,
		StateAwaitingPayment,
	},
	StateAwaitingPayment: {
		StateChoosingQuantity,
		StateAwaitingPayment,
	},
	StateError: {
		StateChoosingQuantity,
	},
}

// IsTransitionAllowed reports whether moving from one state to another is valid.
// Idle and error are reachable from anywhere.
func IsTransitionAllowed(from, to State) bool {
	if to == StateError || to == StateIdle {
		return true
	}

	for _, state := range validTransitions[from] {
		if state == to {
			return true
		}
	}

	return false
}
