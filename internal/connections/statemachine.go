package connections

import "github.com/angelmondragon/tracebridge-backend/pkg/enums"

// connectionTransitions lists every permitted Connection.status move. A
// PENDING→PENDING entry covers reinvite. SUSPENDED is terminal.
var connectionTransitions = map[enums.ConnectionStatus][]enums.ConnectionStatus{
	enums.ConnectionStatusPending: {
		enums.ConnectionStatusActive,
		enums.ConnectionStatusRejected,
		enums.ConnectionStatusSuspended,
		enums.ConnectionStatusPending,
	},
	enums.ConnectionStatusActive: {
		enums.ConnectionStatusSuspended,
	},
	enums.ConnectionStatusRejected: {
		enums.ConnectionStatusPending,
		enums.ConnectionStatusSuspended,
	},
	enums.ConnectionStatusSuspended: {},
}

// CanTransition reports whether from→to is in the transition table. Unknown
// source statuses never transition.
func CanTransition(from, to enums.ConnectionStatus) bool {
	targets, ok := connectionTransitions[from]
	if !ok {
		return false
	}
	for _, candidate := range targets {
		if candidate == to {
			return true
		}
	}
	return false
}

// sourcesFor returns the statuses from which to is reachable, used as the
// compare-and-set guard of the UPDATE.
func sourcesFor(to enums.ConnectionStatus) []enums.ConnectionStatus {
	var out []enums.ConnectionStatus
	for _, from := range []enums.ConnectionStatus{
		enums.ConnectionStatusPending,
		enums.ConnectionStatusActive,
		enums.ConnectionStatusRejected,
		enums.ConnectionStatusSuspended,
	} {
		if CanTransition(from, to) {
			out = append(out, from)
		}
	}
	return out
}
