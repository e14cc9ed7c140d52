// Package errs defines the typed error kinds surfaced by the core (spec §7).
// The teacher wraps low-level errors with fmt.Errorf("...: %w", err) at
// call sites (execution.Executor.executeLive); these types give that pattern
// a name callers can errors.As against instead of string-matching messages.
package errs

import "fmt"

// RiskLimitExceeded is returned by orders.Manager.Place when the risk engine
// rejects an order. No persistence happens; the caller gets this unchanged.
type RiskLimitExceeded struct {
	RuleViolated string
}

func (e *RiskLimitExceeded) Error() string {
	return fmt.Sprintf("risk limit exceeded: %s", e.RuleViolated)
}

// OrderCancellation is returned when cancel() cannot proceed or the broker
// rejects/fails the cancel. Status is left unchanged.
type OrderCancellation struct {
	OrderID string
	Reason  string
}

func (e *OrderCancellation) Error() string {
	return fmt.Sprintf("cannot cancel order %s: %s", e.OrderID, e.Reason)
}

// OrderModification is returned when modify() cannot proceed or the broker
// rejects the modification. Status is left unchanged.
type OrderModification struct {
	OrderID string
	Reason  string
}

func (e *OrderModification) Error() string {
	return fmt.Sprintf("cannot modify order %s: %s", e.OrderID, e.Reason)
}

// BrokerTransport wraps a transport-level failure from a broker adapter.
// These are the only errors subject to retry per the backoff policy in
// spec §4.2.
type BrokerTransport struct {
	Op  string
	Err error
}

func (e *BrokerTransport) Error() string {
	return fmt.Sprintf("broker transport error during %s: %v", e.Op, e.Err)
}

func (e *BrokerTransport) Unwrap() error { return e.Err }

// BrokerBusinessReject wraps a validated rejection from the broker. Never
// retried.
type BrokerBusinessReject struct {
	Code    string
	Message string
}

func (e *BrokerBusinessReject) Error() string {
	return fmt.Sprintf("broker rejected order [%s]: %s", e.Code, e.Message)
}

// StreamDisconnect signals the broker stream dropped. AuthError only marks
// the cause; nothing in this module returns this type or touches the kill
// switch because of it.
type StreamDisconnect struct {
	AuthError bool
	Err       error
}

func (e *StreamDisconnect) Error() string {
	return fmt.Sprintf("broker stream disconnected (auth=%v): %v", e.AuthError, e.Err)
}

func (e *StreamDisconnect) Unwrap() error { return e.Err }

// FillValidation is returned when a fill message fails the reconciliation
// listener's validation (spec §4.6). The message is dropped, no mutation.
type FillValidation struct {
	Reason string
}

func (e *FillValidation) Error() string {
	return fmt.Sprintf("invalid fill: %s", e.Reason)
}

// DuplicateFill signals a fill was already applied by natural key (spec I5).
// Not a failure — the fill applier treats this as a silent skip, but it is
// useful as a typed result for callers/tests.
type DuplicateFill struct {
	OrderID string
}

func (e *DuplicateFill) Error() string {
	return fmt.Sprintf("duplicate fill for order %s", e.OrderID)
}

// IdempotentReplay signals place() found an existing order for the given
// idempotency key. Not a failure — informational.
type IdempotentReplay struct {
	OrderID string
}

func (e *IdempotentReplay) Error() string {
	return fmt.Sprintf("idempotent replay returned existing order %s", e.OrderID)
}

// OutboxPublishFailure wraps a publish attempt failure. The publisher does
// not return this type; a failed event is retried on later polls, with no
// backoff, until the configured dead-letter threshold.
type OutboxPublishFailure struct {
	EventID string
	Err     error
}

func (e *OutboxPublishFailure) Error() string {
	return fmt.Sprintf("failed to publish outbox event %s: %v", e.EventID, e.Err)
}

func (e *OutboxPublishFailure) Unwrap() error { return e.Err }
