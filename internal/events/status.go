package events

import (
	"errors"
	"fmt"
	"sort"
	"time"

	"memberhub/internal/model"
)

// Status is the discrete registration state shown to a requester. It is
// recomputed on every read from the event window and the ordered active
// registration set, never stored.
type Status string

const (
	StatusWillOpen           Status = "registration-will-open"
	StatusExpired            Status = "registration-expired"
	StatusOpen               Status = "registration-open"
	StatusFull               Status = "registration-full"
	StatusWaitingList        Status = "registration-waitinglist"
	StatusRegistered         Status = "registration-registered"
	StatusCancelled          Status = "registration-cancelled"
	StatusCancelledFinal     Status = "registration-cancelled-final"
	StatusCancelledLate      Status = "registration-cancelled-late"
	StatusOptional           Status = "registration-optional"
	StatusOptionalRegistered Status = "registration-optional-registered"
	StatusNone               Status = "registration-none"
	StatusLogin              Status = "registration-login"
)

// CancelKind classifies what cancelling right now would mean.
type CancelKind string

const (
	CancelNormal      CancelKind = "cancel-normal"
	CancelFinal       CancelKind = "cancel-final"
	CancelLate        CancelKind = "cancel-late"
	CancelWaitingList CancelKind = "cancel-waitinglist"
)

var (
	ErrNotAllowed        = errors.New("you may not register for this event")
	ErrAlreadyRegistered = errors.New("you are already registered for this event")
	ErrNotRegistered     = errors.New("you are not registered for this event")
	ErrCancelNotAllowed  = errors.New("you are not allowed to deregister for this event")
	ErrNoReregister      = errors.New("you cannot re-register since you cancelled after the deadline")
	ErrHasPayment        = errors.New("a paid registration cannot be cancelled")
)

func RegistrationRequired(e *model.Event) bool {
	return e.RegistrationStart != nil && e.RegistrationEnd != nil
}

func RegistrationStarted(e *model.Event, now time.Time) bool {
	return e.RegistrationStart != nil && !now.Before(*e.RegistrationStart)
}

// RegistrationAllowed reports whether the registration window is open.
func RegistrationAllowed(e *model.Event, now time.Time) bool {
	return RegistrationRequired(e) &&
		RegistrationStarted(e, now) &&
		now.Before(*e.RegistrationEnd)
}

func OptionalRegistrationAllowed(e *model.Event, now time.Time) bool {
	return !RegistrationRequired(e) && e.OptionalRegistrations && now.Before(e.End)
}

func AfterCancelDeadline(e *model.Event, now time.Time) bool {
	return e.CancelDeadline != nil && !now.Before(*e.CancelDeadline)
}

// CancellationAllowed reports whether a free-form cancel action makes sense
// at all: registration is configured, has started and the event itself has
// not started yet. Late cancels past the deadline are still allowed, they
// just carry a fine.
func CancellationAllowed(e *model.Event, now time.Time) bool {
	return RegistrationRequired(e) && RegistrationStarted(e, now) && now.Before(e.Start)
}

// SortRegistrations orders registrations first-come-first-served: by
// creation date ascending, primary key as a deterministic tiebreak.
func SortRegistrations(regs []model.EventRegistration) {
	sort.SliceStable(regs, func(i, j int) bool {
		if regs[i].Date.Equal(regs[j].Date) {
			return regs[i].ID < regs[j].ID
		}
		return regs[i].Date.Before(regs[j].Date)
	})
}

// Active filters out cancelled registrations and returns the remainder in
// queue order.
func Active(regs []model.EventRegistration) []model.EventRegistration {
	active := make([]model.EventRegistration, 0, len(regs))
	for _, r := range regs {
		if r.IsActive() {
			active = append(active, r)
		}
	}
	SortRegistrations(active)
	return active
}

// QueuePosition returns 0 when the registration is confirmed and the 1-based
// position in the waiting list otherwise. Unlimited events have no queue.
func QueuePosition(active []model.EventRegistration, max *int, regID int64) int {
	if max == nil {
		return 0
	}
	for i, r := range active {
		if r.ID == regID {
			if i < *max {
				return 0
			}
			return i - *max + 1
		}
	}
	return 0
}

// ReachedCapacity reports whether all regular spots are taken.
func ReachedCapacity(active []model.EventRegistration, max *int) bool {
	return max != nil && len(active) >= *max
}

// FirstWaiting returns the registration that would be promoted when a
// confirmed registration leaves, i.e. the head of the waiting list. The
// slice must include the registration that is about to be cancelled.
func FirstWaiting(active []model.EventRegistration, max *int) *model.EventRegistration {
	if max == nil || len(active) <= *max {
		return nil
	}
	r := active[*max]
	return &r
}

// IsLateCancellation reconstructs whether a cancelled registration was
// confirmed (not waiting) at the moment of cancellation: count the
// registrations that registered no later and were still around when this
// one cancelled; if that fits within capacity, the spot being given up was
// a confirmed one and the fine applies.
func IsLateCancellation(e *model.Event, reg *model.EventRegistration, all []model.EventRegistration) bool {
	if reg.DateCancelled == nil || e.CancelDeadline == nil {
		return false
	}
	if !reg.DateCancelled.After(*e.CancelDeadline) {
		return false
	}
	if e.MaxParticipants == nil {
		return true
	}
	n := 0
	for _, r := range all {
		if r.Date.After(reg.Date) {
			continue
		}
		if r.DateCancelled == nil || !r.DateCancelled.Before(*reg.DateCancelled) {
			n++
		}
	}
	return n < *e.MaxParticipants
}

// Compute derives the registration status for a requester. reg may be nil
// (not registered), member may be nil (anonymous). all holds every
// registration row of the event, cancelled ones included.
func Compute(e *model.Event, reg *model.EventRegistration, member *model.Member, all []model.EventRegistration, now time.Time) Status {
	optional := OptionalRegistrationAllowed(e, now)

	if !RegistrationRequired(e) && !optional {
		return StatusNone
	}
	if member == nil {
		if optional {
			return StatusOptional
		}
		return StatusLogin
	}

	active := Active(all)

	if reg != nil {
		if reg.DateCancelled != nil {
			if optional {
				// optional registrations are not meaningfully cancelled
				return StatusOptional
			}
			if IsLateCancellation(e, reg, all) {
				return StatusCancelledLate
			}
			if RegistrationAllowed(e, now) {
				return StatusCancelled
			}
			return StatusCancelledFinal
		}
		if QueuePosition(active, e.MaxParticipants, reg.ID) > 0 {
			return StatusWaitingList
		}
		if optional {
			return StatusOptionalRegistered
		}
		return StatusRegistered
	}

	if optional {
		return StatusOptional
	}
	// capacity wins over the window state: a full event reads as full even
	// before registration opens or after it closed
	if ReachedCapacity(active, e.MaxParticipants) {
		return StatusFull
	}
	if RegistrationAllowed(e, now) {
		return StatusOpen
	}
	if !RegistrationStarted(e, now) {
		return StatusWillOpen
	}
	return StatusExpired
}

// CancelKindFor evaluates the cancellation policy at cancel time. Past the
// deadline a waiting-list spot is always free to give up; a confirmed spot
// carries the fine, and once the registration window has also closed the
// cancellation additionally forfeits re-registering.
func CancelKindFor(e *model.Event, reg *model.EventRegistration, all []model.EventRegistration, now time.Time) CancelKind {
	windowClosed := !RegistrationAllowed(e, now) && !OptionalRegistrationAllowed(e, now)
	if AfterCancelDeadline(e, now) {
		if reg != nil && QueuePosition(Active(all), e.MaxParticipants, reg.ID) > 0 {
			return CancelWaitingList
		}
		if windowClosed {
			return CancelFinal
		}
		return CancelLate
	}
	if windowClosed {
		return CancelFinal
	}
	return CancelNormal
}

// CancelInfo explains the consequences of cancelling, shown alongside the
// cancel action for the statuses where that action is available. A final
// cancellation past the deadline still carries the fine.
func CancelInfo(e *model.Event, kind CancelKind, regStatus Status, now time.Time) string {
	switch regStatus {
	case StatusOpen, StatusWaitingList, StatusRegistered:
	default:
		return ""
	}
	switch kind {
	case CancelFinal:
		if AfterCancelDeadline(e, now) {
			return fmt.Sprintf("Cancellation is not allowed anymore without having to pay the full costs of €%.2f. You will also not be able to re-register.", e.Fine)
		}
		return "Note: if you cancel, you will not be able to re-register."
	case CancelLate:
		return fmt.Sprintf("Cancellation is not allowed anymore without having to pay the full costs of €%.2f. You will also not be able to re-register.", e.Fine)
	case CancelWaitingList:
		return "Cancellation while on the waiting list will not result in a fine. However, you will not be able to re-register."
	}
	return ""
}

// StatusMessage renders the human-readable variant of a status.
func StatusMessage(s Status, e *model.Event, queuePos int) string {
	switch s {
	case StatusWillOpen:
		if e.RegistrationStart != nil {
			return fmt.Sprintf("Registration will open on %s.", e.RegistrationStart.Format("2 January 2006 15:04"))
		}
		return "Registration has not opened yet."
	case StatusExpired:
		return "Registration is not possible anymore."
	case StatusOpen:
		return "You can register now."
	case StatusFull:
		return "The event is full: if you register you will be placed on the waiting list."
	case StatusWaitingList:
		return fmt.Sprintf("You are in queue position %d.", queuePos)
	case StatusRegistered:
		return "You are registered for this event."
	case StatusCancelled:
		return "Your registration is cancelled. You can still re-register."
	case StatusCancelledFinal:
		return "Your registration is cancelled. You cannot re-register anymore."
	case StatusCancelledLate:
		return fmt.Sprintf("Your registration is cancelled after the deadline and you will pay a fine of €%.2f.", e.Fine)
	case StatusOptional:
		return "You can optionally register for this event."
	case StatusOptionalRegistered:
		return "You are registered for this event; cancelling is free at all times."
	case StatusLogin:
		return "You have to log in before you can register for this event."
	case StatusNone:
		return "No registration is required for this event."
	}
	return ""
}

// CanCreateRegistration mirrors the create half of the permission table.
func CanCreateRegistration(e *model.Event, reg *model.EventRegistration, member *model.Member, now time.Time) bool {
	if member == nil {
		return false
	}
	if reg != nil && reg.DateCancelled == nil {
		return false
	}
	if !RegistrationAllowed(e, now) && !OptionalRegistrationAllowed(e, now) {
		return false
	}
	return member.CanAttend
}

// CanCancelRegistration mirrors the cancel half of the permission table. A
// registration with a payment attached must go through the payment removal
// path first.
func CanCancelRegistration(e *model.Event, reg *model.EventRegistration, now time.Time) bool {
	if reg == nil || reg.DateCancelled != nil {
		return false
	}
	if reg.PaymentID != nil {
		return false
	}
	return CancellationAllowed(e, now) ||
		(OptionalRegistrationAllowed(e, now) && !RegistrationRequired(e))
}
