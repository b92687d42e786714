package events

// OrderStatus is the lifecycle state of an order.
type OrderStatus string

const (
	StatusRequested         OrderStatus = "REQUESTED"
	StatusCreated           OrderStatus = "CREATED"
	StatusInventoryReserved OrderStatus = "INVENTORY_RESERVED"
	StatusInventoryRejected OrderStatus = "INVENTORY_REJECTED"
	StatusPaymentCompleted  OrderStatus = "PAYMENT_COMPLETED"
	StatusPaymentFailed     OrderStatus = "PAYMENT_FAILED"
)

var transitions = map[OrderStatus][]OrderStatus{
	StatusRequested:         {StatusCreated},
	StatusCreated:           {StatusInventoryReserved, StatusInventoryRejected},
	StatusInventoryReserved: {StatusPaymentCompleted, StatusPaymentFailed},
}

var known = map[OrderStatus]struct{}{
	StatusRequested:         {},
	StatusCreated:           {},
	StatusInventoryReserved: {},
	StatusInventoryRejected: {},
	StatusPaymentCompleted:  {},
	StatusPaymentFailed:     {},
}

// CanTransitionTo reports whether next is a direct successor of s.
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	for _, candidate := range transitions[s] {
		if candidate == next {
			return true
		}
	}
	return false
}

// IsTerminal reports whether no automated transition leaves s.
func (s OrderStatus) IsTerminal() bool {
	if !s.Valid() {
		return false
	}
	return len(transitions[s]) == 0
}

// Valid reports whether s is a known status.
func (s OrderStatus) Valid() bool {
	_, ok := known[s]
	return ok
}

// Precedes reports whether next lies strictly later than s on some path of
// the transition graph. Used by read models that may see events out of order.
func (s OrderStatus) Precedes(next OrderStatus) bool {
	if s == next || !s.Valid() || !next.Valid() {
		return false
	}
	for _, candidate := range transitions[s] {
		if candidate == next || candidate.Precedes(next) {
			return true
		}
	}
	return false
}
