// Package pizzas models per-event food orders, the simplest payable kind:
// the whole order freezes once paid, except for the free-text notes.
package pizzas

import (
	"fmt"

	"github.com/google/uuid"

	"memberhub/internal/model"
	"memberhub/internal/payments"
)

const PayableKind = "pizzas.foodorder"

type OrderPayable struct {
	Order   *model.FoodOrder
	Product *model.FoodProduct
}

func (p *OrderPayable) PayableID() int64 { return p.Order.ID }

func (p *OrderPayable) PaymentAmount() float64 { return p.Order.ProductPrice }

func (p *OrderPayable) PaymentTopic() string {
	return fmt.Sprintf("Food order: %s", p.Product.Name)
}

func (p *OrderPayable) PaymentNotes() string {
	return fmt.Sprintf("Food order %s on %s.", p.Product.Name, p.Order.CreatedAt.Format("2 January 2006"))
}

func (p *OrderPayable) PaymentPayerID() *int64 { return p.Order.MemberID }

func (p *OrderPayable) PaymentID() *uuid.UUID { return p.Order.PaymentID }

func (p *OrderPayable) TPayAllowed() bool { return true }

func (p *OrderPayable) PayingAllowed() bool { return true }

type orderDescriptor struct{}

func NewPayableDescriptor() payments.Descriptor {
	return orderDescriptor{}
}

func (orderDescriptor) Kind() string { return PayableKind }

func (orderDescriptor) ImmutableAfterPayment() bool { return true }

func (orderDescriptor) ProtectedFields() []string {
	// notes stay mutable after payment
	return []string{"food_event", "product", "product_price", "member", "name"}
}

func (orderDescriptor) DependentKinds() map[string]string { return nil }

func (orderDescriptor) ProtectedDependentFields(string) []string { return nil }

func (orderDescriptor) Snapshot(instance any) (map[string]any, error) {
	order, ok := instance.(*model.FoodOrder)
	if !ok {
		return nil, fmt.Errorf("%w: %T", payments.ErrNotRegistered, instance)
	}
	return map[string]any{
		"food_event":    order.FoodEventID,
		"product":       order.ProductID,
		"product_price": order.ProductPrice,
		"member":        order.MemberID,
		"name":          order.Name,
		"payment":       order.PaymentID,
	}, nil
}
