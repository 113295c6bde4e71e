package status

import (
	"errors"
	"testing"
)

var allOrderStatuses = []OrderStatus{
	OrderCreated, OrderPendingPayment, OrderPaid, OrderPaymentFailed,
	OrderQueued, OrderProcessing, OrderCompleted, OrderFailed,
	OrderCancelled, OrderRefunded,
}

func TestValidateOrderTransitionAcceptsEveryEdge(t *testing.T) {
	edges := []struct {
		from OrderStatus
		to   OrderStatus
	}{
		{OrderCreated, OrderPendingPayment},
		{OrderCreated, OrderQueued},
		{OrderPendingPayment, OrderPaid},
		{OrderPendingPayment, OrderPaymentFailed},
		{OrderPendingPayment, OrderCancelled},
		{OrderPaid, OrderQueued},
		{OrderQueued, OrderProcessing},
		{OrderQueued, OrderCancelled},
		{OrderProcessing, OrderCompleted},
		{OrderProcessing, OrderFailed},
		{OrderProcessing, OrderCancelled},
		{OrderFailed, OrderRefunded},
	}

	for _, e := range edges {
		if err := ValidateOrderTransition(e.from, e.to); err != nil {
			t.Errorf("expected %s -> %s to be allowed, got %v", e.from, e.to, err)
		}
	}
}

func TestValidateOrderTransitionRejectsEveryNonEdge(t *testing.T) {
	allowed := map[OrderStatus]map[OrderStatus]bool{}
	for from, tos := range orderTransitions {
		allowed[from] = map[OrderStatus]bool{}
		for _, to := range tos {
			allowed[from][to] = true
		}
	}

	for _, from := range allOrderStatuses {
		for _, to := range allOrderStatuses {
			if allowed[from][to] {
				continue
			}
			err := ValidateOrderTransition(from, to)
			if err == nil {
				t.Errorf("expected %s -> %s to be rejected", from, to)
				continue
			}
			var te *TransitionError
			if !errors.As(err, &te) {
				t.Errorf("expected *TransitionError for %s -> %s, got %T", from, to, err)
			}
		}
	}
}

func TestTerminalStatusesRejectSelfLoops(t *testing.T) {
	terminals := []OrderStatus{OrderCompleted, OrderCancelled, OrderRefunded, OrderPaymentFailed}
	for _, s := range terminals {
		if !IsTerminalOrder(s) {
			t.Errorf("expected %s to be terminal", s)
		}
		if err := ValidateOrderTransition(s, s); err == nil {
			t.Errorf("expected self-loop on terminal %s to be rejected", s)
		}
	}
}

func TestValidateGenerationTransition(t *testing.T) {
	tests := []struct {
		name string
		from GenerationStatus
		to   GenerationStatus
		ok   bool
	}{
		{"created to queued", GenerationCreated, GenerationQueued, true},
		{"queued to processing", GenerationQueued, GenerationProcessing, true},
		{"queued to cancelled", GenerationQueued, GenerationCancelled, true},
		{"processing to completed", GenerationProcessing, GenerationCompleted, true},
		{"processing to failed", GenerationProcessing, GenerationFailed, true},
		{"processing to cancelled", GenerationProcessing, GenerationCancelled, true},
		{"failed to queued rerun", GenerationFailed, GenerationQueued, true},
		{"created straight to processing", GenerationCreated, GenerationProcessing, false},
		{"queued to completed", GenerationQueued, GenerationCompleted, false},
		{"cancelled resurrected", GenerationCancelled, GenerationProcessing, false},
		{"completed self loop", GenerationCompleted, GenerationCompleted, false},
		{"completed reopened", GenerationCompleted, GenerationQueued, false},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := ValidateGenerationTransition(tt.from, tt.to)
			if tt.ok && err != nil {
				t.Errorf("expected %s -> %s to be allowed, got %v", tt.from, tt.to, err)
			}
			if !tt.ok && err == nil {
				t.Errorf("expected %s -> %s to be rejected", tt.from, tt.to)
			}
		})
	}
}

func TestTransitionErrorMessage(t *testing.T) {
	err := ValidateOrderTransition(OrderCompleted, OrderQueued)
	var te *TransitionError
	if !errors.As(err, &te) {
		t.Fatalf("expected *TransitionError, got %T", err)
	}
	if te.From != string(OrderCompleted) || te.To != string(OrderQueued) {
		t.Errorf("unexpected edge in error: %s -> %s", te.From, te.To)
	}
	if len(te.Allowed) != 0 {
		t.Errorf("terminal status should have no allowed targets, got %v", te.Allowed)
	}
}
