package events

import (
	"fmt"

	"github.com/google/uuid"

	"memberhub/internal/model"
	"memberhub/internal/payments"
)

// RegistrationPayable adapts an event registration to the payment layer.
// A late-cancelled registration owes the event fine instead of the price.
type RegistrationPayable struct {
	Registration *model.EventRegistration
	Event        *model.Event
	// LateCancelled is evaluated against the full registration set at load
	// time, see IsLateCancellation.
	LateCancelled bool
}

func (p *RegistrationPayable) PayableID() int64 { return p.Registration.ID }

func (p *RegistrationPayable) PaymentAmount() float64 {
	if p.LateCancelled {
		return p.Event.Fine
	}
	return p.Event.Price
}

func (p *RegistrationPayable) PaymentTopic() string {
	return fmt.Sprintf("%s [%s]", p.Event.Title, p.Event.Start.Format("2006-01-02"))
}

func (p *RegistrationPayable) PaymentNotes() string {
	return fmt.Sprintf("Event registration %s. %s. Registration date: %s.",
		p.Event.Title,
		p.Event.Start.Format("2 January 2006"),
		p.Registration.Date.Format("2 January 2006"))
}

func (p *RegistrationPayable) PaymentPayerID() *int64 { return p.Registration.MemberID }

func (p *RegistrationPayable) PaymentID() *uuid.UUID { return p.Registration.PaymentID }

func (p *RegistrationPayable) TPayAllowed() bool { return p.Event.TPayAllowed }

func (p *RegistrationPayable) PayingAllowed() bool { return true }

type registrationDescriptor struct{}

// PayableKind identifies event registrations in the payable registry.
const PayableKind = "events.eventregistration"

// NewPayableDescriptor returns the descriptor registered for event
// registrations.
func NewPayableDescriptor() payments.Descriptor {
	return registrationDescriptor{}
}

func (registrationDescriptor) Kind() string { return PayableKind }

func (registrationDescriptor) ImmutableAfterPayment() bool { return true }

func (registrationDescriptor) ProtectedFields() []string {
	// present and contact details stay editable by organisers after payment
	return []string{"event", "member", "name", "date"}
}

func (registrationDescriptor) DependentKinds() map[string]string { return nil }

func (registrationDescriptor) ProtectedDependentFields(string) []string { return nil }

func (registrationDescriptor) Snapshot(instance any) (map[string]any, error) {
	reg, ok := instance.(*model.EventRegistration)
	if !ok {
		return nil, fmt.Errorf("%w: %T", payments.ErrNotRegistered, instance)
	}
	return map[string]any{
		"event":   reg.EventID,
		"member":  reg.MemberID,
		"name":    reg.Name,
		"date":    reg.Date,
		"payment": reg.PaymentID,
	}, nil
}
