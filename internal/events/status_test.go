package events

import (
	"testing"
	"time"

	"memberhub/internal/model"

	"github.com/google/uuid"
)

var base = time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

func ts(offsetHours int) time.Time {
	return base.Add(time.Duration(offsetHours) * time.Hour)
}

func tsp(offsetHours int) *time.Time {
	t := ts(offsetHours)
	return &t
}

func intp(v int) *int { return &v }

func int64p(v int64) *int64 { return &v }

// windowedEvent has registration open from -24h to +24h, event at +48h,
// cancel deadline at +12h.
func windowedEvent(max *int) *model.Event {
	return &model.Event{
		ID:                1,
		Title:             "Hackathon",
		Start:             ts(48),
		End:               ts(54),
		RegistrationStart: tsp(-24),
		RegistrationEnd:   tsp(24),
		CancelDeadline:    tsp(12),
		MaxParticipants:   max,
		Price:             5,
		Fine:              10,
	}
}

func member(id int64) *model.Member {
	return &model.Member{ID: id, CanAttend: true}
}

func reg(id int64, memberID int64, regOffset int) model.EventRegistration {
	return model.EventRegistration{
		ID:       id,
		EventID:  1,
		MemberID: int64p(memberID),
		Date:     ts(regOffset),
	}
}

func TestComputeStatusMatrix(t *testing.T) {
	tests := []struct {
		name   string
		event  *model.Event
		reg    *model.EventRegistration
		member *model.Member
		all    []model.EventRegistration
		now    time.Time
		want   Status
	}{
		{
			name:  "no registration configured",
			event: &model.Event{Start: ts(48), End: ts(54)},
			want:  StatusNone,
		},
		{
			name:   "anonymous with open window",
			event:  windowedEvent(nil),
			member: nil,
			now:    ts(0),
			want:   StatusLogin,
		},
		{
			name:   "open window no registration",
			event:  windowedEvent(nil),
			member: member(1),
			now:    ts(0),
			want:   StatusOpen,
		},
		{
			name:   "window not started yet",
			event:  windowedEvent(nil),
			member: member(1),
			now:    ts(-48),
			want:   StatusWillOpen,
		},
		{
			name:   "window closed",
			event:  windowedEvent(nil),
			member: member(1),
			now:    ts(30),
			want:   StatusExpired,
		},
		{
			name:   "full event shows waiting list warning",
			event:  windowedEvent(intp(1)),
			member: member(2),
			all:    []model.EventRegistration{reg(1, 1, -1)},
			now:    ts(0),
			want:   StatusFull,
		},
		{
			name:   "full event outside the window still shows full",
			event:  windowedEvent(intp(1)),
			member: member(2),
			all:    []model.EventRegistration{reg(1, 1, -1)},
			now:    ts(30),
			want:   StatusFull,
		},
		{
			name:  "optional registration for anonymous",
			event: &model.Event{Start: ts(48), End: ts(54), OptionalRegistrations: true},
			now:   ts(0),
			want:  StatusOptional,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := Compute(tt.event, tt.reg, tt.member, tt.all, tt.now)
			if got != tt.want {
				t.Errorf("Compute() = %v, want %v", got, tt.want)
			}
		})
	}
}

func TestComputeWithOwnRegistration(t *testing.T) {
	e := windowedEvent(intp(2))
	all := []model.EventRegistration{
		reg(1, 10, -10),
		reg(2, 11, -9),
		reg(3, 12, -8),
	}

	// first two are confirmed
	own := all[0]
	if got := Compute(e, &own, member(10), all, ts(0)); got != StatusRegistered {
		t.Errorf("confirmed registration: got %v, want %v", got, StatusRegistered)
	}

	// third is on the waiting list
	waiting := all[2]
	if got := Compute(e, &waiting, member(12), all, ts(0)); got != StatusWaitingList {
		t.Errorf("waiting registration: got %v, want %v", got, StatusWaitingList)
	}

	// cancelled inside the window can re-register
	cancelled := all[0]
	cancelled.DateCancelled = tsp(-5)
	if got := Compute(e, &cancelled, member(10), all, ts(0)); got != StatusCancelled {
		t.Errorf("cancelled registration: got %v, want %v", got, StatusCancelled)
	}

	// cancelled after the window closed is final
	if got := Compute(e, &cancelled, member(10), all, ts(30)); got != StatusCancelledFinal {
		t.Errorf("cancelled after window: got %v, want %v", got, StatusCancelledFinal)
	}
}

func TestQueuePositionOrdering(t *testing.T) {
	regs := []model.EventRegistration{
		reg(3, 12, -8),
		reg(1, 10, -10),
		reg(2, 11, -9),
		reg(4, 13, -7),
	}
	active := Active(regs)

	// ordered by date: 1, 2, 3, 4
	if active[0].ID != 1 || active[3].ID != 4 {
		t.Fatalf("Active() not ordered by date: %v", active)
	}

	max := intp(2)
	if pos := QueuePosition(active, max, 1); pos != 0 {
		t.Errorf("first registration: queue position %d, want 0", pos)
	}
	if pos := QueuePosition(active, max, 3); pos != 1 {
		t.Errorf("third registration: queue position %d, want 1", pos)
	}
	if pos := QueuePosition(active, max, 4); pos != 2 {
		t.Errorf("fourth registration: queue position %d, want 2", pos)
	}
	if pos := QueuePosition(active, nil, 4); pos != 0 {
		t.Errorf("unlimited event: queue position %d, want 0", pos)
	}
}

func TestQueuePositionTiebreakOnSameDate(t *testing.T) {
	regs := []model.EventRegistration{
		reg(7, 11, -9),
		reg(5, 10, -9),
	}
	active := Active(regs)
	if active[0].ID != 5 {
		t.Errorf("same date must order by id, got first %d", active[0].ID)
	}
}

func TestFirstWaitingPicksHeadOfQueue(t *testing.T) {
	regs := []model.EventRegistration{
		reg(1, 10, -10),
		reg(2, 11, -9),
		reg(3, 12, -8),
	}
	active := Active(regs)

	promoted := FirstWaiting(active, intp(2))
	if promoted == nil || promoted.ID != 3 {
		t.Fatalf("FirstWaiting = %v, want registration 3", promoted)
	}

	if promoted := FirstWaiting(active, intp(5)); promoted != nil {
		t.Errorf("no waiting list: FirstWaiting = %v, want nil", promoted)
	}
	if promoted := FirstWaiting(active, nil); promoted != nil {
		t.Errorf("unlimited event: FirstWaiting = %v, want nil", promoted)
	}
}

func TestIsLateCancellation(t *testing.T) {
	e := windowedEvent(intp(2))

	confirmed := reg(1, 10, -10)
	confirmed.DateCancelled = tsp(14) // after deadline at +12

	waiting := reg(3, 12, -8)
	waiting.DateCancelled = tsp(14)

	all := []model.EventRegistration{confirmed, reg(2, 11, -9), waiting}

	if !IsLateCancellation(e, &confirmed, all) {
		t.Error("confirmed registration cancelled after deadline must be late")
	}
	if IsLateCancellation(e, &waiting, all) {
		t.Error("waiting-list registration must never be a late cancellation")
	}

	early := reg(1, 10, -10)
	early.DateCancelled = tsp(2) // before deadline
	if IsLateCancellation(e, &early, all) {
		t.Error("cancellation before the deadline is not late")
	}
}

func TestCancelKindFor(t *testing.T) {
	e := windowedEvent(intp(2))
	all := []model.EventRegistration{
		reg(1, 10, -10),
		reg(2, 11, -9),
		reg(3, 12, -8),
	}

	confirmed := all[0]
	waiting := all[2]

	if kind := CancelKindFor(e, &confirmed, all, ts(0)); kind != CancelNormal {
		t.Errorf("inside window: %v, want %v", kind, CancelNormal)
	}
	if kind := CancelKindFor(e, &confirmed, all, ts(14)); kind != CancelLate {
		t.Errorf("after deadline confirmed: %v, want %v", kind, CancelLate)
	}
	if kind := CancelKindFor(e, &waiting, all, ts(14)); kind != CancelWaitingList {
		t.Errorf("after deadline waiting: %v, want %v", kind, CancelWaitingList)
	}
	if kind := CancelKindFor(e, &confirmed, all, ts(30)); kind != CancelFinal {
		t.Errorf("window closed: %v, want %v", kind, CancelFinal)
	}
	// the waiting-list exemption survives the window closing
	if kind := CancelKindFor(e, &waiting, all, ts(30)); kind != CancelWaitingList {
		t.Errorf("window closed waiting: %v, want %v", kind, CancelWaitingList)
	}

	noDeadline := windowedEvent(intp(2))
	noDeadline.CancelDeadline = nil
	if kind := CancelKindFor(noDeadline, &confirmed, all, ts(30)); kind != CancelFinal {
		t.Errorf("no deadline, window closed: %v, want %v", kind, CancelFinal)
	}
	if kind := CancelKindFor(noDeadline, &confirmed, all, ts(0)); kind != CancelNormal {
		t.Errorf("no deadline, window open: %v, want %v", kind, CancelNormal)
	}
}

func TestCancelInfoFinalPastDeadlineMentionsFine(t *testing.T) {
	e := windowedEvent(intp(2))

	late := CancelInfo(e, CancelLate, StatusRegistered, ts(14))
	finalLate := CancelInfo(e, CancelFinal, StatusRegistered, ts(30))
	if finalLate != late {
		t.Errorf("final cancellation past the deadline must warn about the fine:\ngot  %q\nwant %q", finalLate, late)
	}

	noDeadline := windowedEvent(intp(2))
	noDeadline.CancelDeadline = nil
	if got := CancelInfo(noDeadline, CancelFinal, StatusRegistered, ts(30)); got != "Note: if you cancel, you will not be able to re-register." {
		t.Errorf("final cancellation without a deadline must not mention a fine, got %q", got)
	}
}

func TestExternalRegistrationsShareTheQueue(t *testing.T) {
	regs := []model.EventRegistration{
		reg(1, 10, -10),
		{ID: 2, EventID: 1, Name: "Guest One", ContactEmail: "guest@example.org", Date: ts(-9)},
		reg(3, 12, -8),
	}
	active := Active(regs)

	if !active[1].IsExternal() {
		t.Fatal("external registration must stay in queue order")
	}
	if pos := QueuePosition(active, intp(2), 3); pos != 1 {
		t.Errorf("member behind a guest: queue position %d, want 1", pos)
	}
	promoted := FirstWaiting(active[:2], intp(1))
	if promoted == nil || !promoted.IsExternal() || promoted.ContactEmail != "guest@example.org" {
		t.Errorf("guest at the head of the waiting list must be promotable, got %+v", promoted)
	}
}

func TestCanCancelRegistrationBlocksPaid(t *testing.T) {
	e := windowedEvent(nil)
	r := reg(1, 10, -10)
	if !CanCancelRegistration(e, &r, ts(0)) {
		t.Fatal("unpaid active registration must be cancellable inside the window")
	}

	id := uuid.New()
	r.PaymentID = &id
	if CanCancelRegistration(e, &r, ts(0)) {
		t.Error("paid registration must not be cancellable")
	}

	r.PaymentID = nil
	r.DateCancelled = tsp(-1)
	if CanCancelRegistration(e, &r, ts(0)) {
		t.Error("already cancelled registration must not be cancellable again")
	}
}

func TestCanCreateRegistration(t *testing.T) {
	e := windowedEvent(nil)

	if !CanCreateRegistration(e, nil, member(1), ts(0)) {
		t.Error("member inside window must be able to register")
	}
	if CanCreateRegistration(e, nil, nil, ts(0)) {
		t.Error("anonymous must not be able to register")
	}
	if CanCreateRegistration(e, nil, member(1), ts(30)) {
		t.Error("closed window must block registration")
	}

	blocked := member(1)
	blocked.CanAttend = false
	if CanCreateRegistration(e, nil, blocked, ts(0)) {
		t.Error("member without attend rights must be blocked")
	}

	active := reg(1, 1, -1)
	if CanCreateRegistration(e, &active, member(1), ts(0)) {
		t.Error("active registration must block a second one")
	}
}
