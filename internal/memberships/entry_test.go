package memberships

import (
	"errors"
	"testing"
	"time"

	"memberhub/internal/model"
)

func TestTransition(t *testing.T) {
	tests := []struct {
		from, to string
		wantErr  bool
	}{
		{model.EntryStatusDraft, model.EntryStatusReview, false},
		{model.EntryStatusDraft, model.EntryStatusCancelled, false},
		{model.EntryStatusDraft, model.EntryStatusAccepted, true},
		{model.EntryStatusDraft, model.EntryStatusCompleted, true},
		{model.EntryStatusReview, model.EntryStatusAccepted, false},
		{model.EntryStatusReview, model.EntryStatusRejected, false},
		{model.EntryStatusReview, model.EntryStatusCancelled, true},
		{model.EntryStatusAccepted, model.EntryStatusCompleted, false},
		{model.EntryStatusAccepted, model.EntryStatusCancelled, false},
		{model.EntryStatusAccepted, model.EntryStatusRejected, true},
		{model.EntryStatusCompleted, model.EntryStatusAccepted, true},
		{model.EntryStatusRejected, model.EntryStatusReview, true},
		{model.EntryStatusCancelled, model.EntryStatusDraft, true},
	}
	for _, tt := range tests {
		err := Transition(tt.from, tt.to)
		if tt.wantErr && !errors.Is(err, ErrInvalidTransition) {
			t.Errorf("Transition(%s, %s) = %v, want ErrInvalidTransition", tt.from, tt.to, err)
		}
		if !tt.wantErr && err != nil {
			t.Errorf("Transition(%s, %s) = %v, want nil", tt.from, tt.to, err)
		}
	}
}

func TestMemberFromEntry(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)

	entry := &model.MembershipEntry{
		Status:         model.EntryStatusAccepted,
		FirstName:      "Jo",
		LastName:       "Doe",
		Email:          "jo@example.org",
		Username:       "jdoe",
		MembershipType: "member",
	}

	m, err := MemberFromEntry(entry, now)
	if err != nil {
		t.Fatalf("MemberFromEntry() error = %v", err)
	}
	if m.Username != "jdoe" || m.Email != "jo@example.org" {
		t.Errorf("member identity not copied: %+v", m)
	}
	if !m.CanAttend {
		t.Error("new member must be able to attend events")
	}
	if m.MembershipEnds == nil || !m.MembershipEnds.Equal(now.AddDate(1, 0, 0)) {
		t.Errorf("regular membership must last one year, got %v", m.MembershipEnds)
	}

	entry.MembershipType = "benefactor"
	m, err = MemberFromEntry(entry, now)
	if err != nil {
		t.Fatalf("MemberFromEntry() benefactor error = %v", err)
	}
	if m.MembershipEnds == nil || !m.MembershipEnds.Equal(now.AddDate(0, 6, 0)) {
		t.Errorf("benefactor membership must last six months, got %v", m.MembershipEnds)
	}

	entry.Status = model.EntryStatusReview
	if _, err := MemberFromEntry(entry, now); !errors.Is(err, ErrNotAccepted) {
		t.Errorf("non-accepted entry: error = %v, want ErrNotAccepted", err)
	}
}
