package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memberhub/internal/events"
	"memberhub/internal/memberships"
	"memberhub/internal/model"
	"memberhub/internal/payments"
	"memberhub/internal/pizzas"
	"memberhub/internal/sales"
)

type PaymentsRepository interface {
	CreatePaymentTx(ctx context.Context, kind string, payableID int64, actor *model.Member, payType string, now time.Time) (*model.Payment, error)
	DeletePaymentTx(ctx context.Context, kind string, payableID int64, ignoreChangeWindow bool, window time.Duration, now time.Time) error
	GetPaymentByID(ctx context.Context, id uuid.UUID) (*model.Payment, error)

	CreateTPayBatchTx(ctx context.Context, description string, now time.Time) (*model.Batch, int, error)
	ProcessBatchTx(ctx context.Context, id uuid.UUID, now time.Time) error

	UpdateFoodOrderTx(ctx context.Context, id int64, patch FoodOrderPatch) (*model.FoodOrder, error)
	UpdateSalesOrderTx(ctx context.Context, id int64, patch SalesOrderPatch) (*model.SalesOrder, error)
	UpdateSalesOrderItemTx(ctx context.Context, orderID, itemID int64, patch SalesOrderItemPatch) (*model.SalesOrderItem, error)
}

type FoodOrderPatch struct {
	ProductID *int64
	Notes     *string
}

type SalesOrderPatch struct {
	Discount *float64
}

type SalesOrderItemPatch struct {
	ProductName *string
	Amount      *int
	Total       *float64
}

// checkPayableSave snapshots the persisted and the pending state of a
// payable and lets the guard decide whether the save is allowed.
func (r *repository) checkPayableSave(kind string, old, next any) error {
	d, err := r.registry.Get(kind)
	if err != nil {
		return err
	}
	oldSnap, err := d.Snapshot(old)
	if err != nil {
		return err
	}
	nextSnap, err := d.Snapshot(next)
	if err != nil {
		return err
	}
	return payments.CheckMutation(d, oldSnap, nextSnap)
}

func payableTable(kind string) (string, error) {
	switch kind {
	case events.PayableKind:
		return "event_registrations", nil
	case pizzas.PayableKind:
		return "food_orders", nil
	case sales.PayableKind:
		return "sales_orders", nil
	case memberships.PayableKind:
		return "membership_entries", nil
	}
	return "", fmt.Errorf("%w: %s", payments.ErrNotRegistered, kind)
}

// loadPayableTx locks the payable row and wraps it for the payment layer.
// The read happens inside the caller's transaction so the guard never acts
// on stale state.
func (r *repository) loadPayableTx(ctx context.Context, tx *sql.Tx, kind string, id int64) (payments.Payable, error) {
	switch kind {
	case events.PayableKind:
		row := tx.QueryRowContext(ctx, `
			SELECT `+registrationColumns+`
			FROM event_registrations WHERE id = $1 FOR UPDATE
		`, id)
		reg, err := scanRegistration(row)
		if err != nil {
			return nil, ErrRegistrationNotFound
		}
		event, err := scanEvent(tx.QueryRowContext(ctx,
			`SELECT `+eventColumns+eventFrom+`WHERE e.id = $1`, reg.EventID))
		if err != nil {
			return nil, ErrEventNotFound
		}
		late := false
		if reg.DateCancelled != nil {
			all, err := eventRegistrationsTx(ctx, tx, reg.EventID)
			if err != nil {
				return nil, err
			}
			late = events.IsLateCancellation(event, reg, all)
		}
		return &events.RegistrationPayable{Registration: reg, Event: event, LateCancelled: late}, nil

	case pizzas.PayableKind:
		order, err := scanFoodOrder(tx.QueryRowContext(ctx, `
			SELECT `+foodOrderColumns+`
			FROM food_orders WHERE id = $1 FOR UPDATE
		`, id))
		if err != nil {
			return nil, ErrOrderNotFound
		}
		var product model.FoodProduct
		if err := tx.QueryRowContext(ctx, `
			SELECT id, name, price, available FROM food_products WHERE id = $1
		`, order.ProductID).Scan(&product.ID, &product.Name, &product.Price, &product.Available); err != nil {
			return nil, ErrProductNotFound
		}
		return &pizzas.OrderPayable{Order: order, Product: &product}, nil

	case sales.PayableKind:
		order, err := scanSalesOrder(tx.QueryRowContext(ctx, `
			SELECT `+salesOrderColumns+`
			FROM sales_orders WHERE id = $1 FOR UPDATE
		`, id))
		if err != nil {
			return nil, ErrOrderNotFound
		}
		items, err := salesOrderItemsTx(ctx, tx, order.ID)
		if err != nil {
			return nil, err
		}
		return &sales.OrderPayable{Order: order, Items: items}, nil

	case memberships.PayableKind:
		entry, err := scanEntry(tx.QueryRowContext(ctx, `
			SELECT `+entryColumns+`
			FROM membership_entries WHERE id = $1 FOR UPDATE
		`, id))
		if err != nil {
			return nil, ErrEntryNotFound
		}
		return &memberships.EntryPayable{Entry: entry}, nil
	}
	return nil, fmt.Errorf("%w: %s", payments.ErrNotRegistered, kind)
}

func setPayablePaymentTx(ctx context.Context, tx *sql.Tx, kind string, id int64, paymentID *uuid.UUID) error {
	table, err := payableTable(kind)
	if err != nil {
		return err
	}
	if _, err := tx.ExecContext(ctx,
		`UPDATE `+table+` SET payment_id = $1 WHERE id = $2`, paymentID, id); err != nil {
		return fmt.Errorf("failed to link payment: %w", err)
	}
	return nil
}

const paymentColumns = `id, type, amount, created_at, processing_date, paid_by_id, processed_by_id, batch_id, topic, notes`

func scanPayment(row rowScanner) (*model.Payment, error) {
	var p model.Payment
	var batch uuid.NullUUID
	if err := row.Scan(
		&p.ID, &p.Type, &p.Amount, &p.CreatedAt, &p.ProcessingDate,
		&p.PaidByID, &p.ProcessedByID, &batch, &p.Topic, &p.Notes,
	); err != nil {
		return nil, err
	}
	if batch.Valid {
		p.BatchID = &batch.UUID
	}
	return &p, nil
}

func (r *repository) GetPaymentByID(ctx context.Context, id uuid.UUID) (*model.Payment, error) {
	p, err := scanPayment(r.db.QueryRowContext(ctx, `
		SELECT `+paymentColumns+` FROM payments WHERE id = $1
	`, id))
	if err != nil {
		return nil, fmt.Errorf("payment not found: %w", err)
	}
	return p, nil
}

// CreatePaymentTx attaches a new payment to a payable. The payable is
// re-read under lock, so the already-paid check cannot race with a
// concurrent attach. For membership entries the completion handshake runs
// in the same transaction: if finalizing the membership fails, the payment
// is rolled back with it.
func (r *repository) CreatePaymentTx(ctx context.Context, kind string, payableID int64, actor *model.Member, payType string, now time.Time) (*model.Payment, error) {
	if !model.ValidPaymentType(payType) || payType == model.PaymentNone {
		return nil, payments.ErrInvalidType
	}

	var payment *model.Payment

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		payable, err := r.loadPayableTx(ctx, tx, kind, payableID)
		if err != nil {
			return err
		}
		if payable.PaymentID() != nil {
			return payments.ErrAlreadyPaid
		}
		if !payable.PayingAllowed() {
			return payments.ErrPayingBlocked
		}

		payerID := payable.PaymentPayerID()
		if payType == model.PaymentTPay {
			if !payable.TPayAllowed() {
				return payments.ErrTPayNotAllowed
			}
			if payerID == nil {
				return payments.ErrNoPayer
			}
			if *payerID != actor.ID {
				return payments.ErrPayerMismatch
			}
			if !actor.TPayEnabled {
				return payments.ErrTPayNotEnabled
			}
		}

		actorID := actor.ID
		p := &model.Payment{
			ID:             uuid.New(),
			Type:           payType,
			Amount:         payable.PaymentAmount(),
			CreatedAt:      now,
			ProcessingDate: &now,
			PaidByID:       payerID,
			ProcessedByID:  &actorID,
			Topic:          payable.PaymentTopic(),
			Notes:          payable.PaymentNotes(),
		}

		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payments (id, type, amount, created_at, processing_date,
				paid_by_id, processed_by_id, batch_id, topic, notes)
			VALUES ($1, $2, $3, $4, $5, $6, $7, NULL, $8, $9)
		`, p.ID, p.Type, p.Amount, p.CreatedAt, p.ProcessingDate,
			p.PaidByID, p.ProcessedByID, p.Topic, p.Notes); err != nil {
			return fmt.Errorf("failed to insert payment: %w", err)
		}

		if err := setPayablePaymentTx(ctx, tx, kind, payableID, &p.ID); err != nil {
			return err
		}

		if kind == memberships.PayableKind {
			entryPayable := payable.(*memberships.EntryPayable)
			if err := r.completeEntryTx(ctx, tx, entryPayable.Entry, now); err != nil {
				return err
			}
		}

		payment = p
		return nil
	})
	if err != nil {
		return nil, err
	}
	return payment, nil
}

// completeEntryTx finalizes an accepted membership application once its
// payment is attached: create the member and flip the entry to completed.
// Runs inside the payment transaction, so either both happen or neither.
func (r *repository) completeEntryTx(ctx context.Context, tx *sql.Tx, entry *model.MembershipEntry, now time.Time) error {
	if err := memberships.Transition(entry.Status, model.EntryStatusCompleted); err != nil {
		return err
	}
	member, err := memberships.MemberFromEntry(entry, now)
	if err != nil {
		return err
	}

	var taken bool
	if err := tx.QueryRowContext(ctx,
		`SELECT EXISTS (SELECT 1 FROM members WHERE username = $1)`, member.Username,
	).Scan(&taken); err != nil {
		return fmt.Errorf("failed to check username: %w", err)
	}
	if taken {
		return memberships.ErrUsernameTaken
	}

	var memberID int64
	if err := tx.QueryRowContext(ctx, `
		INSERT INTO members (username, email, first_name, last_name,
			can_attend_events, tpay_enabled, is_admin, created_at, membership_ends, password_hash)
		VALUES ($1, $2, $3, $4, TRUE, FALSE, FALSE, $5, $6, '')
		RETURNING id
	`, member.Username, member.Email, member.FirstName, member.LastName,
		now, member.MembershipEnds).Scan(&memberID); err != nil {
		return fmt.Errorf("failed to create member: %w", err)
	}

	if _, err := tx.ExecContext(ctx, `
		UPDATE membership_entries
		SET status = $1, member_id = $2, updated_at = $3
		WHERE id = $4
	`, model.EntryStatusCompleted, memberID, now, entry.ID); err != nil {
		return fmt.Errorf("failed to complete entry: %w", err)
	}
	return nil
}

// DeletePaymentTx is the only legal way to detach a payment from its
// payable: validate the change window and settlement state, unlink, then
// delete the payment row.
func (r *repository) DeletePaymentTx(ctx context.Context, kind string, payableID int64, ignoreChangeWindow bool, window time.Duration, now time.Time) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		payable, err := r.loadPayableTx(ctx, tx, kind, payableID)
		if err != nil {
			return err
		}
		pid := payable.PaymentID()
		if pid == nil {
			return payments.ErrNotPaid
		}

		payment, err := scanPayment(tx.QueryRowContext(ctx, `
			SELECT `+paymentColumns+` FROM payments WHERE id = $1 FOR UPDATE
		`, *pid))
		if err != nil {
			return fmt.Errorf("payment not found: %w", err)
		}

		var batch *model.Batch
		if payment.BatchID != nil {
			batch, err = r.getBatchTx(ctx, tx, *payment.BatchID)
			if err != nil {
				return err
			}
		}
		if batch != nil && batch.Processed {
			return payments.ErrBatchProcessed
		}
		if !ignoreChangeWindow {
			if err := payments.ChangeAllowed(payment, batch, window, now); err != nil {
				return err
			}
		}

		if kind == memberships.PayableKind {
			// compensate the completion handshake: the entry drops back to
			// accepted, the created member account stays
			entry := payable.(*memberships.EntryPayable).Entry
			if entry.Status == model.EntryStatusCompleted {
				if _, err := tx.ExecContext(ctx, `
					UPDATE membership_entries SET status = $1, updated_at = $2 WHERE id = $3
				`, model.EntryStatusAccepted, now, entry.ID); err != nil {
					return fmt.Errorf("failed to revert entry: %w", err)
				}
			}
		}

		if err := setPayablePaymentTx(ctx, tx, kind, payableID, nil); err != nil {
			return err
		}
		if _, err := tx.ExecContext(ctx, `DELETE FROM payments WHERE id = $1`, payment.ID); err != nil {
			return fmt.Errorf("failed to delete payment: %w", err)
		}
		return nil
	})
}

func (r *repository) getBatchTx(ctx context.Context, tx *sql.Tx, id uuid.UUID) (*model.Batch, error) {
	var b model.Batch
	if err := tx.QueryRowContext(ctx, `
		SELECT id, processed, processing_date, description
		FROM payment_batches WHERE id = $1
	`, id).Scan(&b.ID, &b.Processed, &b.ProcessingDate, &b.Description); err != nil {
		return nil, fmt.Errorf("batch not found: %w", err)
	}
	return &b, nil
}

// CreateTPayBatchTx sweeps all unbatched account-debit payments into a new
// settlement batch and returns it together with the number of payments
// included.
func (r *repository) CreateTPayBatchTx(ctx context.Context, description string, now time.Time) (*model.Batch, int, error) {
	batch := &model.Batch{ID: uuid.New(), Description: description}
	swept := 0

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if _, err := tx.ExecContext(ctx, `
			INSERT INTO payment_batches (id, processed, description)
			VALUES ($1, FALSE, $2)
		`, batch.ID, description); err != nil {
			return fmt.Errorf("failed to create batch: %w", err)
		}
		res, err := tx.ExecContext(ctx, `
			UPDATE payments SET batch_id = $1
			WHERE type = $2 AND batch_id IS NULL
		`, batch.ID, model.PaymentTPay)
		if err != nil {
			return fmt.Errorf("failed to add payments to batch: %w", err)
		}
		n, _ := res.RowsAffected()
		swept = int(n)
		return nil
	})
	if err != nil {
		return nil, 0, err
	}
	return batch, swept, nil
}

func (r *repository) ProcessBatchTx(ctx context.Context, id uuid.UUID, now time.Time) error {
	return r.inTx(ctx, func(tx *sql.Tx) error {
		res, err := tx.ExecContext(ctx, `
			UPDATE payment_batches
			SET processed = TRUE, processing_date = $1
			WHERE id = $2 AND NOT processed
		`, now, id)
		if err != nil {
			return fmt.Errorf("failed to process batch: %w", err)
		}
		if n, _ := res.RowsAffected(); n == 0 {
			return fmt.Errorf("batch not found or already processed")
		}
		return nil
	})
}

// UpdateFoodOrderTx is a guarded save of a food order: fresh read under
// lock, guard check, then write.
func (r *repository) UpdateFoodOrderTx(ctx context.Context, id int64, patch FoodOrderPatch) (*model.FoodOrder, error) {
	var updated *model.FoodOrder

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		old, err := scanFoodOrder(tx.QueryRowContext(ctx, `
			SELECT `+foodOrderColumns+`
			FROM food_orders WHERE id = $1 FOR UPDATE
		`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}

		next := *old
		if patch.ProductID != nil {
			var product model.FoodProduct
			if err := tx.QueryRowContext(ctx, `
				SELECT id, name, price, available FROM food_products WHERE id = $1
			`, *patch.ProductID).Scan(&product.ID, &product.Name, &product.Price, &product.Available); err != nil {
				return ErrProductNotFound
			}
			next.ProductID = product.ID
			next.ProductPrice = product.Price
		}
		if patch.Notes != nil {
			next.Notes = *patch.Notes
		}

		if err := r.checkPayableSave(pizzas.PayableKind, old, &next); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE food_orders
			SET product_id = $1, product_price = $2, notes = $3
			WHERE id = $4
		`, next.ProductID, next.ProductPrice, next.Notes, id); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) UpdateSalesOrderTx(ctx context.Context, id int64, patch SalesOrderPatch) (*model.SalesOrder, error) {
	var updated *model.SalesOrder

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		old, err := scanSalesOrder(tx.QueryRowContext(ctx, `
			SELECT `+salesOrderColumns+`
			FROM sales_orders WHERE id = $1 FOR UPDATE
		`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}

		next := *old
		if patch.Discount != nil {
			next.Discount = *patch.Discount
		}

		if err := r.checkPayableSave(sales.PayableKind, old, &next); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE sales_orders SET discount = $1 WHERE id = $2
		`, next.Discount, id); err != nil {
			return fmt.Errorf("failed to update order: %w", err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

// UpdateSalesOrderItemTx guards a dependent row: the parent order's
// persisted payment state decides whether the item's protected fields may
// change.
func (r *repository) UpdateSalesOrderItemTx(ctx context.Context, orderID, itemID int64, patch SalesOrderItemPatch) (*model.SalesOrderItem, error) {
	var updated *model.SalesOrderItem

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		parent, err := scanSalesOrder(tx.QueryRowContext(ctx, `
			SELECT `+salesOrderColumns+`
			FROM sales_orders WHERE id = $1 FOR UPDATE
		`, orderID))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load order: %w", err)
		}

		var old model.SalesOrderItem
		err = tx.QueryRowContext(ctx, `
			SELECT id, order_id, product_name, amount, total
			FROM sales_order_items WHERE id = $1 AND order_id = $2 FOR UPDATE
		`, itemID, orderID).Scan(&old.ID, &old.OrderID, &old.ProductName, &old.Amount, &old.Total)
		if errors.Is(err, sql.ErrNoRows) {
			return ErrOrderNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load order item: %w", err)
		}

		next := old
		if patch.ProductName != nil {
			next.ProductName = *patch.ProductName
		}
		if patch.Amount != nil {
			next.Amount = *patch.Amount
		}
		if patch.Total != nil {
			next.Total = *patch.Total
		}

		d, err := r.registry.Get(sales.PayableKind)
		if err != nil {
			return err
		}
		oldSnap, err := d.Snapshot(&old)
		if err != nil {
			return err
		}
		nextSnap, err := d.Snapshot(&next)
		if err != nil {
			return err
		}
		if err := payments.CheckDependentMutation(d, sales.OrderItemKind, parent.PaymentID != nil, oldSnap, nextSnap); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE sales_order_items
			SET product_name = $1, amount = $2, total = $3
			WHERE id = $4
		`, next.ProductName, next.Amount, next.Total, itemID); err != nil {
			return fmt.Errorf("failed to update order item: %w", err)
		}
		if _, err := tx.ExecContext(ctx, `
			UPDATE sales_orders o
			SET total = (SELECT COALESCE(SUM(total), 0) FROM sales_order_items WHERE order_id = o.id)
			WHERE o.id = $1
		`, orderID); err != nil {
			return fmt.Errorf("failed to refresh order total: %w", err)
		}
		updated = &next
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}
