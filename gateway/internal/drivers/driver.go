// Package drivers defines the capability contract for external delivery
// systems and a registry mapping driver names to instances.
package drivers

import (
	"context"
	"sync"

	"github.com/leadgate/leadgate/gateway/internal/models"
)

// Kind classifies a delivery attempt.
type Kind int

const (
	// KindSuccess means the remote system accepted the lead.
	KindSuccess Kind = iota
	// KindRejected means the call completed and the remote system refused the lead.
	KindRejected
	// KindTransient means the call did not complete (network, timeout, session).
	KindTransient
)

func (k Kind) String() string {
	switch k {
	case KindSuccess:
		return "success"
	case KindRejected:
		return "rejected"
	case KindTransient:
		return "transient"
	}
	return "unknown"
}

// Result is the outcome of one SendLead call. Message is a string or a
// structured value describing the outcome.
type Result struct {
	Kind    Kind
	Message any
}

func Success(msg any) Result   { return Result{Kind: KindSuccess, Message: msg} }
func Rejected(msg any) Result  { return Result{Kind: KindRejected, Message: msg} }
func Transient(msg any) Result { return Result{Kind: KindTransient, Message: msg} }

// Driver delivers lead payloads to one external system.
type Driver interface {
	// Name is the constant key used for dispatch and status rows.
	Name() string
	SendLead(ctx context.Context, payload models.Payload) Result
}

// Sender is the stateful adapter style: SendLead reports only transport
// failures, and the outcome of the last call is read back afterwards.
type Sender interface {
	SendLead(ctx context.Context, payload models.Payload) error
	Messages() string
	IsSuccess() bool
}

// Adapt wraps a Sender as a Driver. Calls are serialized so the last-outcome
// accessors always describe the call that just returned.
func Adapt(name string, s Sender) Driver {
	return &adapted{name: name, sender: s}
}

type adapted struct {
	name   string
	sender Sender
	mu     sync.Mutex
}

func (a *adapted) Name() string { return a.name }

func (a *adapted) SendLead(ctx context.Context, payload models.Payload) Result {
	a.mu.Lock()
	defer a.mu.Unlock()

	if err := a.sender.SendLead(ctx, payload); err != nil {
		return Transient(err.Error())
	}
	if a.sender.IsSuccess() {
		return Success(a.sender.Messages())
	}
	return Rejected(a.sender.Messages())
}
