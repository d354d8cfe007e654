package events

import (
	"testing"

	"memberhub/internal/model"
)

func TestRegistrationPayableAmount(t *testing.T) {
	e := &model.Event{Title: "Gala", Start: ts(48), Price: 7.5, Fine: 15}
	r := &model.EventRegistration{ID: 1, Date: ts(-1)}

	regular := &RegistrationPayable{Registration: r, Event: e}
	if got := regular.PaymentAmount(); got != 7.5 {
		t.Errorf("regular amount = %v, want the event price", got)
	}

	late := &RegistrationPayable{Registration: r, Event: e, LateCancelled: true}
	if got := late.PaymentAmount(); got != 15.0 {
		t.Errorf("late-cancel amount = %v, want the event fine", got)
	}
}
