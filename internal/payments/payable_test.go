package payments

import (
	"errors"
	"testing"
	"time"

	"github.com/google/uuid"

	"memberhub/internal/model"
)

type stubDescriptor struct {
	kind      string
	immutable bool
	protected []string
	dependent map[string]string
	depFields map[string][]string
}

func (d stubDescriptor) Kind() string                      { return d.kind }
func (d stubDescriptor) ImmutableAfterPayment() bool       { return d.immutable }
func (d stubDescriptor) ProtectedFields() []string         { return d.protected }
func (d stubDescriptor) DependentKinds() map[string]string { return d.dependent }
func (d stubDescriptor) ProtectedDependentFields(kind string) []string {
	return d.depFields[kind]
}
func (d stubDescriptor) Snapshot(instance any) (map[string]any, error) {
	snap, ok := instance.(map[string]any)
	if !ok {
		return nil, errors.New("bad instance")
	}
	return snap, nil
}

func orderDescriptor() stubDescriptor {
	return stubDescriptor{
		kind:      "test.order",
		immutable: true,
		protected: []string{"member", "amount"},
		dependent: map[string]string{"test.orderitem": "order_id"},
		depFields: map[string][]string{"test.orderitem": {"product_name", "total"}},
	}
}

func TestRegistryLookup(t *testing.T) {
	r := NewRegistry()
	d := orderDescriptor()
	r.Register(d)

	got, err := r.Get("test.order")
	if err != nil {
		t.Fatalf("Get() error = %v", err)
	}
	if got.Kind() != "test.order" {
		t.Errorf("Get() kind = %s", got.Kind())
	}

	if _, err := r.Get("unknown.kind"); !errors.Is(err, ErrNotRegistered) {
		t.Errorf("unknown kind: error = %v, want ErrNotRegistered", err)
	}

	parent := r.ParentOf("test.orderitem")
	if parent == nil || parent.Kind() != "test.order" {
		t.Errorf("ParentOf() = %v, want test.order descriptor", parent)
	}
	if r.ParentOf("test.order") != nil {
		t.Error("ParentOf() on a non-dependent kind must be nil")
	}
}

func TestCheckMutation(t *testing.T) {
	d := orderDescriptor()
	paymentID := uuid.New()
	otherID := uuid.New()

	snap := func(payment *uuid.UUID, member int64, amount float64) map[string]any {
		return map[string]any{
			"payment": payment,
			"member":  &member,
			"amount":  amount,
		}
	}

	tests := []struct {
		name    string
		old     map[string]any
		next    map[string]any
		wantErr error
	}{
		{
			name: "unpaid allows any change",
			old:  snap(nil, 1, 10),
			next: snap(nil, 2, 99),
		},
		{
			name: "unpaid allows attaching a payment",
			old:  snap(nil, 1, 10),
			next: snap(&paymentID, 1, 10),
		},
		{
			name: "paid allows save without changes",
			old:  snap(&paymentID, 1, 10),
			next: snap(&paymentID, 1, 10),
		},
		{
			name:    "paid blocks protected field change",
			old:     snap(&paymentID, 1, 10),
			next:    snap(&paymentID, 1, 25),
			wantErr: ErrImmutable,
		},
		{
			name:    "paid blocks payment detach",
			old:     snap(&paymentID, 1, 10),
			next:    snap(nil, 1, 10),
			wantErr: ErrPaymentDetach,
		},
		{
			name:    "paid blocks payment swap",
			old:     snap(&paymentID, 1, 10),
			next:    snap(&otherID, 1, 10),
			wantErr: ErrPaymentDetach,
		},
		{
			name:    "missing persisted row rejects",
			old:     nil,
			next:    snap(nil, 1, 10),
			wantErr: ErrPayableNotFound,
		},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := CheckMutation(d, tt.old, tt.next)
			if tt.wantErr == nil && err != nil {
				t.Errorf("CheckMutation() error = %v, want nil", err)
			}
			if tt.wantErr != nil && !errors.Is(err, tt.wantErr) {
				t.Errorf("CheckMutation() error = %v, want %v", err, tt.wantErr)
			}
		})
	}
}

func TestCheckMutationMutableKind(t *testing.T) {
	d := orderDescriptor()
	d.immutable = false
	paymentID := uuid.New()

	old := map[string]any{"payment": &paymentID, "member": int64p(1), "amount": 10.0}
	next := map[string]any{"payment": &paymentID, "member": int64p(1), "amount": 99.0}
	if err := CheckMutation(d, old, next); err != nil {
		t.Errorf("mutable kind must allow field changes after payment: %v", err)
	}
}

func TestCheckDependentMutation(t *testing.T) {
	d := orderDescriptor()

	old := map[string]any{"product_name": "beer", "total": 2.0}
	changed := map[string]any{"product_name": "wine", "total": 2.0}

	if err := CheckDependentMutation(d, "test.orderitem", false, old, changed); err != nil {
		t.Errorf("unpaid parent must allow item change: %v", err)
	}
	if err := CheckDependentMutation(d, "test.orderitem", true, old, old); err != nil {
		t.Errorf("paid parent must allow no-op save: %v", err)
	}
	if err := CheckDependentMutation(d, "test.orderitem", true, old, changed); !errors.Is(err, ErrImmutable) {
		t.Errorf("paid parent must freeze item fields: error = %v, want ErrImmutable", err)
	}
	if err := CheckDependentMutation(d, "test.orderitem", true, nil, changed); !errors.Is(err, ErrPayableNotFound) {
		t.Errorf("missing item row: error = %v, want ErrPayableNotFound", err)
	}
}

func TestChangeAllowed(t *testing.T) {
	now := time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC)
	window := 24 * time.Hour

	fresh := &model.Payment{CreatedAt: now.Add(-time.Hour)}
	if err := ChangeAllowed(fresh, nil, window, now); err != nil {
		t.Errorf("fresh payment must be deletable: %v", err)
	}

	stale := &model.Payment{CreatedAt: now.Add(-48 * time.Hour)}
	if err := ChangeAllowed(stale, nil, window, now); !errors.Is(err, ErrChangeWindow) {
		t.Errorf("stale payment: error = %v, want ErrChangeWindow", err)
	}

	batched := &model.Payment{CreatedAt: now.Add(-time.Hour)}
	processed := &model.Batch{Processed: true}
	if err := ChangeAllowed(batched, processed, window, now); !errors.Is(err, ErrBatchProcessed) {
		t.Errorf("processed batch: error = %v, want ErrBatchProcessed", err)
	}

	open := &model.Batch{Processed: false}
	if err := ChangeAllowed(batched, open, window, now); err != nil {
		t.Errorf("open batch must stay deletable: %v", err)
	}
}

func int64p(v int64) *int64 { return &v }
