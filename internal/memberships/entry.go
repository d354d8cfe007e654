// Package memberships implements the membership application state machine:
// draft → review → accepted → completed, with rejected and cancelled as
// terminal branches. The accepted → completed transition happens only as a
// reaction to a payment being attached, inside the payment transaction.
package memberships

import (
	"errors"
	"fmt"
	"time"

	"memberhub/internal/model"
)

var (
	ErrInvalidTransition = errors.New("invalid entry status transition")
	ErrNotAccepted       = errors.New("only accepted entries can be completed")
	ErrUsernameTaken     = errors.New("a member with this username already exists")
)

// Transition validates a requested status change against the state machine.
func Transition(from, to string) error {
	allowed := map[string][]string{
		model.EntryStatusDraft:    {model.EntryStatusReview, model.EntryStatusCancelled},
		model.EntryStatusReview:   {model.EntryStatusAccepted, model.EntryStatusRejected},
		model.EntryStatusAccepted: {model.EntryStatusCompleted, model.EntryStatusCancelled},
	}
	for _, t := range allowed[from] {
		if t == to {
			return nil
		}
	}
	return fmt.Errorf("%w: %s -> %s", ErrInvalidTransition, from, to)
}

// MemberFromEntry builds the member row created when an accepted entry
// completes. Validation of username uniqueness happens at the persistence
// layer inside the completion transaction.
func MemberFromEntry(entry *model.MembershipEntry, now time.Time) (*model.Member, error) {
	if entry.Status != model.EntryStatusAccepted {
		return nil, ErrNotAccepted
	}
	ends := now.AddDate(1, 0, 0)
	if entry.MembershipType == "benefactor" {
		ends = now.AddDate(0, 6, 0)
	}
	return &model.Member{
		Username:       entry.Username,
		Email:          entry.Email,
		FirstName:      entry.FirstName,
		LastName:       entry.LastName,
		CanAttend:      true,
		CreatedAt:      now,
		MembershipEnds: &ends,
	}, nil
}
