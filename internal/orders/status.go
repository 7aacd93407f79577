package orders

import "errors"

var ErrInvalidTransition = errors.New("orders: invalid status transition")

type Status string

const (
	StatusPending    Status = "PENDING"
	StatusProcessing Status = "PROCESSING"
	StatusShipped    Status = "SHIPPED"
	StatusDelivered  Status = "DELIVERED"
	StatusCancelled  Status = "CANCELLED"
	StatusRefunded   Status = "REFUNDED"
)

// Forward-only lifecycle. CANCELLED is reachable while the order has not
// shipped; REFUNDED is deliberately absent here, it is only reachable through
// the admin override.
var validNext = map[Status]map[Status]bool{
	StatusPending:    {StatusProcessing: true, StatusCancelled: true},
	StatusProcessing: {StatusShipped: true, StatusCancelled: true},
	StatusShipped:    {StatusDelivered: true},
	StatusDelivered:  {},
	StatusCancelled:  {},
	StatusRefunded:   {},
}

// Admin override targets, keyed by the state the order is currently in.
var adminNext = map[Status]map[Status]bool{
	StatusProcessing: {StatusRefunded: true},
	StatusShipped:    {StatusRefunded: true},
	StatusDelivered:  {StatusRefunded: true},
}

func CanTransition(from, to Status) bool {
	return validNext[from][to]
}

func CanAdminOverride(from, to Status) bool {
	return adminNext[from][to] || validNext[from][to]
}

func ValidStatus(s Status) bool {
	_, ok := validNext[s]
	return ok
}
