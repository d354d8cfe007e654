// Package payments holds the payment records and the generic payable
// machinery: any domain object that can have exactly one payment attached
// registers a descriptor here, and the guard blocks changes to financial
// fields once a payment exists.
package payments

import (
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memberhub/internal/model"
)

var (
	ErrNotRegistered   = errors.New("no payable registered for this model")
	ErrAlreadyPaid     = errors.New("this model is already paid for")
	ErrNotPaid         = errors.New("there is no payment to delete")
	ErrPayingBlocked   = errors.New("a payment cannot be created for this payable yet")
	ErrNoPayer         = errors.New("this payable has no payer")
	ErrPayerMismatch   = errors.New("you are not allowed to process a payment for another member")
	ErrTPayNotAllowed  = errors.New("this payable cannot be paid with TPay")
	ErrTPayNotEnabled  = errors.New("the payer does not have TPay enabled")
	ErrChangeWindow    = errors.New("this payment cannot be deleted anymore")
	ErrBatchProcessed  = errors.New("this payment belongs to a processed batch")
	ErrImmutable       = errors.New("cannot change this model: it has been paid for")
	ErrPaymentDetach   = errors.New("cannot unlink a payment from its payable")
	ErrPayableNotFound = errors.New("the payable no longer exists")
	ErrInvalidType     = errors.New("invalid payment type")
)

// Payable is a view on a domain object that a payment can be attached to.
type Payable interface {
	PayableID() int64
	PaymentAmount() float64
	PaymentTopic() string
	PaymentNotes() string
	// PaymentPayerID returns nil for payables without a member payer
	// (external registrations, anonymous sales).
	PaymentPayerID() *int64
	PaymentID() *uuid.UUID
	TPayAllowed() bool
	PayingAllowed() bool
}

// Descriptor declares, per payable kind, which fields freeze once the
// object is paid and how to snapshot them for comparison. One descriptor
// per kind, registered at process start.
type Descriptor interface {
	// Kind is the stable identifier, e.g. "events.eventregistration".
	Kind() string
	ImmutableAfterPayment() bool
	// ProtectedFields are the snapshot keys that may not change after
	// payment. The snapshot key "payment" is always guarded separately.
	ProtectedFields() []string
	// DependentKinds maps the kind of a dependent row type to the name of
	// its foreign key pointing at this payable, e.g.
	// {"sales.salesorderitem": "order_id"}. Saving such a row while the
	// parent is paid is subject to the dependent type's protected fields.
	DependentKinds() map[string]string
	// ProtectedDependentFields returns the frozen snapshot keys for a
	// dependent kind.
	ProtectedDependentFields(kind string) []string
	// Snapshot extracts the comparable field values of an instance of this
	// kind (or of one of its dependent kinds), including the "payment" key
	// for the payable itself.
	Snapshot(instance any) (map[string]any, error)
}

// Registry maps payable kinds to descriptors. It is built once in main and
// passed to the services that need it; there is no package-level instance.
type Registry struct {
	descriptors map[string]Descriptor
	// parents indexes dependent kinds back to their parent descriptor.
	parents map[string]Descriptor
}

func NewRegistry() *Registry {
	return &Registry{
		descriptors: make(map[string]Descriptor),
		parents:     make(map[string]Descriptor),
	}
}

func (r *Registry) Register(d Descriptor) {
	r.descriptors[d.Kind()] = d
	for dependent := range d.DependentKinds() {
		r.parents[dependent] = d
	}
}

func (r *Registry) Get(kind string) (Descriptor, error) {
	d, ok := r.descriptors[kind]
	if !ok {
		return nil, fmt.Errorf("%w: %s", ErrNotRegistered, kind)
	}
	return d, nil
}

// ParentOf returns the descriptor of the payable that rows of the given
// dependent kind belong to, or nil when the kind has no paid parent
// semantics.
func (r *Registry) ParentOf(dependentKind string) Descriptor {
	return r.parents[dependentKind]
}

func (r *Registry) Kinds() []string {
	kinds := make([]string, 0, len(r.descriptors))
	for k := range r.descriptors {
		kinds = append(kinds, k)
	}
	return kinds
}

// CheckMutation is the guard applied to every save of a registered payable
// kind. old is the freshly re-read persisted snapshot (inside the same
// transaction as the save), next the snapshot of the instance about to be
// written. An old of nil means the persisted row disappeared underneath
// us; mutation is rejected in that case too.
func CheckMutation(d Descriptor, old, next map[string]any) error {
	if old == nil {
		return ErrPayableNotFound
	}
	oldPayment := paymentKey(old)
	nextPayment := paymentKey(next)

	if oldPayment == nil {
		// Nothing was paid; the save may also freely attach a payment,
		// that is what the create-payment path does.
		return nil
	}
	if nextPayment == nil || *nextPayment != *oldPayment {
		return ErrPaymentDetach
	}
	if !d.ImmutableAfterPayment() {
		return nil
	}
	for _, field := range d.ProtectedFields() {
		if !equalValue(old[field], next[field]) {
			return fmt.Errorf("%w (field %q)", ErrImmutable, field)
		}
	}
	return nil
}

// CheckDependentMutation guards a save of a row whose parent payable may be
// paid. parentPaid reflects the parent's persisted payment state, re-read
// in the same transaction.
func CheckDependentMutation(parent Descriptor, dependentKind string, parentPaid bool, old, next map[string]any) error {
	if !parent.ImmutableAfterPayment() || !parentPaid {
		return nil
	}
	if old == nil {
		return ErrPayableNotFound
	}
	for _, field := range parent.ProtectedDependentFields(dependentKind) {
		if !equalValue(old[field], next[field]) {
			return fmt.Errorf("%w (field %q)", ErrImmutable, field)
		}
	}
	return nil
}

func paymentKey(snapshot map[string]any) *uuid.UUID {
	v, ok := snapshot["payment"]
	if !ok || v == nil {
		return nil
	}
	id, ok := v.(*uuid.UUID)
	if !ok || id == nil {
		return nil
	}
	return id
}

func equalValue(a, b any) bool {
	switch av := a.(type) {
	case *int64:
		bv, ok := b.(*int64)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return *av == *bv
	case *uuid.UUID:
		bv, ok := b.(*uuid.UUID)
		if !ok {
			return false
		}
		if av == nil || bv == nil {
			return av == nil && bv == nil
		}
		return *av == *bv
	case time.Time:
		bv, ok := b.(time.Time)
		return ok && av.Equal(bv)
	default:
		return a == b
	}
}

// ChangeAllowed reports whether a payment may still be deleted outside of
// an explicit override: processed batches are final, and every payment
// becomes immutable once the change window has passed.
func ChangeAllowed(p *model.Payment, batch *model.Batch, window time.Duration, now time.Time) error {
	if batch != nil && batch.Processed {
		return ErrBatchProcessed
	}
	if now.Sub(p.CreatedAt) > window {
		return ErrChangeWindow
	}
	return nil
}
