package status

import (
	"fmt"
	"strings"
)

// OrderStatus is the lifecycle state of a paid generation order.
type OrderStatus string

const (
	OrderCreated        OrderStatus = "CREATED"
	OrderPendingPayment OrderStatus = "PENDING_PAYMENT"
	OrderPaid           OrderStatus = "PAID"
	OrderPaymentFailed  OrderStatus = "PAYMENT_FAILED"
	OrderQueued         OrderStatus = "QUEUED"
	OrderProcessing     OrderStatus = "PROCESSING"
	OrderCompleted      OrderStatus = "COMPLETED"
	OrderFailed         OrderStatus = "FAILED"
	OrderCancelled      OrderStatus = "CANCELLED"
	OrderRefunded       OrderStatus = "REFUNDED"
)

// GenerationStatus is the lifecycle state of a single generation run.
type GenerationStatus string

const (
	GenerationCreated    GenerationStatus = "CREATED"
	GenerationQueued     GenerationStatus = "QUEUED"
	GenerationProcessing GenerationStatus = "PROCESSING"
	GenerationCompleted  GenerationStatus = "COMPLETED"
	GenerationFailed     GenerationStatus = "FAILED"
	GenerationCancelled  GenerationStatus = "CANCELLED"
)

// orderTransitions is the fixed edge set for orders. Statuses with no entry
// are terminal.
var orderTransitions = map[OrderStatus][]OrderStatus{
	OrderCreated:        {OrderPendingPayment, OrderQueued},
	OrderPendingPayment: {OrderPaid, OrderPaymentFailed, OrderCancelled},
	OrderPaid:           {OrderQueued},
	OrderQueued:         {OrderProcessing, OrderCancelled},
	OrderProcessing:     {OrderCompleted, OrderFailed, OrderCancelled},
	OrderFailed:         {OrderRefunded},
}

// generationTransitions mirrors the order graph for the worker-facing
// subject. FAILED -> QUEUED allows a re-run after a failed attempt.
var generationTransitions = map[GenerationStatus][]GenerationStatus{
	GenerationCreated:    {GenerationQueued},
	GenerationQueued:     {GenerationProcessing, GenerationCancelled},
	GenerationProcessing: {GenerationCompleted, GenerationFailed, GenerationCancelled},
	GenerationFailed:     {GenerationQueued},
}

// TransitionError reports a status change that is not an edge of the state
// graph. It names the rejected edge and the allowed targets so the caller's
// log line is actionable.
type TransitionError struct {
	Subject string
	From    string
	To      string
	Allowed []string
}

func (e *TransitionError) Error() string {
	if len(e.Allowed) == 0 {
		return fmt.Sprintf("%s status %s is terminal, cannot transition to %s", e.Subject, e.From, e.To)
	}
	return fmt.Sprintf("%s status cannot transition from %s to %s (allowed: %s)",
		e.Subject, e.From, e.To, strings.Join(e.Allowed, ", "))
}

// ValidateOrderTransition checks that from -> to is a legal order edge.
func ValidateOrderTransition(from, to OrderStatus) error {
	allowed := orderTransitions[from]
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	return &TransitionError{
		Subject: "order",
		From:    string(from),
		To:      string(to),
		Allowed: statusStrings(allowed),
	}
}

// ValidateGenerationTransition checks that from -> to is a legal generation
// edge. Every pipeline stage that writes a generation status calls this
// before touching the database; a stalled retry can never resurrect a
// cancelled generation.
func ValidateGenerationTransition(from, to GenerationStatus) error {
	allowed := generationTransitions[from]
	for _, s := range allowed {
		if s == to {
			return nil
		}
	}
	out := make([]string, len(allowed))
	for i, s := range allowed {
		out[i] = string(s)
	}
	return &TransitionError{
		Subject: "generation",
		From:    string(from),
		To:      string(to),
		Allowed: out,
	}
}

// IsTerminalOrder reports whether the status has no outgoing edges.
func IsTerminalOrder(s OrderStatus) bool {
	return len(orderTransitions[s]) == 0
}

// IsTerminalGeneration reports whether the status has no outgoing edges.
func IsTerminalGeneration(s GenerationStatus) bool {
	return len(generationTransitions[s]) == 0
}

func statusStrings(in []OrderStatus) []string {
	out := make([]string, len(in))
	for i, s := range in {
		out[i] = string(s)
	}
	return out
}
