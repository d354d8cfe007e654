// Package sales models point-of-sale orders. An order is the payable; its
// line items are dependent rows that freeze together with the paid order.
package sales

import (
	"fmt"

	"github.com/google/uuid"

	"memberhub/internal/model"
	"memberhub/internal/payments"
)

const (
	PayableKind   = "sales.salesorder"
	OrderItemKind = "sales.salesorderitem"
)

type OrderPayable struct {
	Order *model.SalesOrder
	Items []model.SalesOrderItem
}

func (p *OrderPayable) PayableID() int64 { return p.Order.ID }

func (p *OrderPayable) PaymentAmount() float64 {
	total := 0.0
	for _, item := range p.Items {
		total += item.Total
	}
	return total - p.Order.Discount
}

func (p *OrderPayable) PaymentTopic() string {
	return fmt.Sprintf("Sales order #%d", p.Order.ID)
}

func (p *OrderPayable) PaymentNotes() string {
	return fmt.Sprintf("Sale on %s, %d item(s).", p.Order.CreatedAt.Format("2 January 2006"), len(p.Items))
}

func (p *OrderPayable) PaymentPayerID() *int64 { return p.Order.MemberID }

func (p *OrderPayable) PaymentID() *uuid.UUID { return p.Order.PaymentID }

func (p *OrderPayable) TPayAllowed() bool { return p.Order.MemberID != nil }

func (p *OrderPayable) PayingAllowed() bool { return len(p.Items) > 0 }

type orderDescriptor struct{}

func NewPayableDescriptor() payments.Descriptor {
	return orderDescriptor{}
}

func (orderDescriptor) Kind() string { return PayableKind }

func (orderDescriptor) ImmutableAfterPayment() bool { return true }

func (orderDescriptor) ProtectedFields() []string {
	return []string{"member", "discount", "total"}
}

func (orderDescriptor) DependentKinds() map[string]string {
	return map[string]string{OrderItemKind: "order_id"}
}

func (orderDescriptor) ProtectedDependentFields(kind string) []string {
	if kind == OrderItemKind {
		return []string{"order", "product_name", "amount", "total"}
	}
	return nil
}

func (orderDescriptor) Snapshot(instance any) (map[string]any, error) {
	switch v := instance.(type) {
	case *model.SalesOrder:
		return map[string]any{
			"member":   v.MemberID,
			"discount": v.Discount,
			"total":    v.Total,
			"payment":  v.PaymentID,
		}, nil
	case *model.SalesOrderItem:
		return map[string]any{
			"order":        v.OrderID,
			"product_name": v.ProductName,
			"amount":       v.Amount,
			"total":        v.Total,
		}, nil
	default:
		return nil, fmt.Errorf("%w: %T", payments.ErrNotRegistered, instance)
	}
}
