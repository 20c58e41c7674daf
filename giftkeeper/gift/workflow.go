package gift

// State is where an entry sits in the redemption workflow. Available and
// Reserved are derived from the reservation table, PendingApproval from an
// outstanding owner ask, and Delivered is terminal: the entry has been
// removed from the store.
type State int

const (
	StateAvailable State = iota
	StatePendingApproval
	StateReserved
	StateDelivered
)

func (s State) String() string {
	switch s {
	case StateAvailable:
		return "available"
	case StatePendingApproval:
		return "pending approval"
	case StateReserved:
		return "reserved"
	case StateDelivered:
		return "delivered"
	}
	return "unknown"
}

// canReserve reports whether the workflow permits taking a reservation from
// the given state. PendingApproval entries are reservable because the
// owner's accept is the true point of contention.
func canReserve(s State) bool {
	return s == StateAvailable || s == StatePendingApproval
}
