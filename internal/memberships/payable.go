package memberships

import (
	"fmt"

	"github.com/google/uuid"

	"memberhub/internal/model"
	"memberhub/internal/payments"
)

const PayableKind = "memberships.entry"

// EntryPayable adapts a membership application to the payment layer. The
// payer is unknown until the entry completes, so payer checks are skipped.
type EntryPayable struct {
	Entry *model.MembershipEntry
}

func (p *EntryPayable) PayableID() int64 { return p.Entry.ID }

func (p *EntryPayable) PaymentAmount() float64 { return p.Entry.Contribution }

func (p *EntryPayable) PaymentTopic() string {
	return fmt.Sprintf("Membership application %s %s", p.Entry.FirstName, p.Entry.LastName)
}

func (p *EntryPayable) PaymentNotes() string {
	return fmt.Sprintf("Membership application of %s (%s), type %s.",
		p.Entry.Username, p.Entry.Email, p.Entry.MembershipType)
}

func (p *EntryPayable) PaymentPayerID() *int64 { return p.Entry.MemberID }

func (p *EntryPayable) PaymentID() *uuid.UUID { return p.Entry.PaymentID }

func (p *EntryPayable) TPayAllowed() bool { return false }

// PayingAllowed gates payment creation on board review having happened.
func (p *EntryPayable) PayingAllowed() bool {
	return p.Entry.Status == model.EntryStatusAccepted
}

type entryDescriptor struct{}

func NewPayableDescriptor() payments.Descriptor {
	return entryDescriptor{}
}

func (entryDescriptor) Kind() string { return PayableKind }

func (entryDescriptor) ImmutableAfterPayment() bool { return true }

func (entryDescriptor) ProtectedFields() []string {
	// remarks and status stay mutable: completion itself flips the status
	// after the payment is attached
	return []string{"first_name", "last_name", "email", "username", "membership_type", "contribution"}
}

func (entryDescriptor) DependentKinds() map[string]string { return nil }

func (entryDescriptor) ProtectedDependentFields(string) []string { return nil }

func (entryDescriptor) Snapshot(instance any) (map[string]any, error) {
	entry, ok := instance.(*model.MembershipEntry)
	if !ok {
		return nil, fmt.Errorf("%w: %T", payments.ErrNotRegistered, instance)
	}
	return map[string]any{
		"first_name":      entry.FirstName,
		"last_name":       entry.LastName,
		"email":           entry.Email,
		"username":        entry.Username,
		"membership_type": entry.MembershipType,
		"contribution":    entry.Contribution,
		"payment":         entry.PaymentID,
	}, nil
}
