package sales

import (
	"testing"

	"memberhub/internal/model"
)

func TestOrderPayableAmount(t *testing.T) {
	p := &OrderPayable{
		Order: &model.SalesOrder{ID: 1, Discount: 1.5},
		Items: []model.SalesOrderItem{
			{Total: 4.0},
			{Total: 2.5},
		},
	}
	if got := p.PaymentAmount(); got != 5.0 {
		t.Errorf("PaymentAmount() = %v, want 5.0", got)
	}
}

func TestOrderPayablePayingAllowed(t *testing.T) {
	empty := &OrderPayable{Order: &model.SalesOrder{ID: 1}}
	if empty.PayingAllowed() {
		t.Error("an order without items must not be payable")
	}

	filled := &OrderPayable{
		Order: &model.SalesOrder{ID: 1},
		Items: []model.SalesOrderItem{{Total: 1}},
	}
	if !filled.PayingAllowed() {
		t.Error("an order with items must be payable")
	}
}

func TestDependentFieldsCoverOrderItems(t *testing.T) {
	d := NewPayableDescriptor()
	fk, ok := d.DependentKinds()[OrderItemKind]
	if !ok || fk != "order_id" {
		t.Fatalf("DependentKinds() = %v, want order items keyed by order_id", d.DependentKinds())
	}
	fields := d.ProtectedDependentFields(OrderItemKind)
	if len(fields) == 0 {
		t.Fatal("order item fields must freeze with the paid order")
	}
}
