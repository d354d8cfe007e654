package repo

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"

	"memberhub/internal/memberships"
	"memberhub/internal/model"
)

type MembersRepository interface {
	GetMemberByID(ctx context.Context, id int64) (*model.Member, error)
	GetMemberByUsername(ctx context.Context, username string) (*model.Member, error)
	CreateMember(ctx context.Context, m *model.Member) (int64, error)
	IsOrganiser(ctx context.Context, memberID, groupID int64) (bool, error)

	CreateEntry(ctx context.Context, e *model.MembershipEntry) (int64, error)
	GetEntryByID(ctx context.Context, id int64) (*model.MembershipEntry, error)
	ListEntriesByStatus(ctx context.Context, status string) ([]model.MembershipEntry, error)
	UpdateEntryStatusTx(ctx context.Context, id int64, to string, now time.Time) (*model.MembershipEntry, error)

	ListFoodProducts(ctx context.Context) ([]model.FoodProduct, error)
	GetFoodProduct(ctx context.Context, id int64) (*model.FoodProduct, error)
	CreateFoodEvent(ctx context.Context, fe *model.FoodEvent) (int64, error)
	GetFoodEventByID(ctx context.Context, id int64) (*model.FoodEvent, error)
	CreateFoodOrderTx(ctx context.Context, order *model.FoodOrder, now time.Time) (*model.FoodOrder, error)
	GetFoodOrderByID(ctx context.Context, id int64) (*model.FoodOrder, error)
	ListFoodOrders(ctx context.Context, foodEventID int64) ([]model.FoodOrder, error)

	CreateSalesOrderTx(ctx context.Context, memberID *int64, items []model.SalesOrderItem, discount float64, now time.Time) (*model.SalesOrder, error)
	GetSalesOrderByID(ctx context.Context, id int64) (*model.SalesOrder, []model.SalesOrderItem, error)
}

const memberColumns = `id, username, email, password_hash, first_name, last_name,
	can_attend_events, tpay_enabled, is_admin, created_at, membership_ends`

func scanMember(row rowScanner) (*model.Member, error) {
	var m model.Member
	if err := row.Scan(
		&m.ID, &m.Username, &m.Email, &m.PasswordHash, &m.FirstName, &m.LastName,
		&m.CanAttend, &m.TPayEnabled, &m.IsAdmin, &m.CreatedAt, &m.MembershipEnds,
	); err != nil {
		return nil, err
	}
	return &m, nil
}

func (r *repository) GetMemberByID(ctx context.Context, id int64) (*model.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE id = $1`, id))
	if err != nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

func (r *repository) GetMemberByUsername(ctx context.Context, username string) (*model.Member, error) {
	m, err := scanMember(r.db.QueryRowContext(ctx,
		`SELECT `+memberColumns+` FROM members WHERE username = $1`, username))
	if err != nil {
		return nil, ErrMemberNotFound
	}
	return m, nil
}

func (r *repository) CreateMember(ctx context.Context, m *model.Member) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO members (username, email, password_hash, first_name, last_name,
			can_attend_events, tpay_enabled, is_admin, created_at, membership_ends)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), $9)
		RETURNING id
	`, m.Username, m.Email, m.PasswordHash, m.FirstName, m.LastName,
		m.CanAttend, m.TPayEnabled, m.IsAdmin, m.MembershipEnds).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create member: %w", err)
	}
	return id, nil
}

// IsOrganiser reports whether the member belongs to the organiser group of
// an event. Admins count as organisers everywhere.
func (r *repository) IsOrganiser(ctx context.Context, memberID, groupID int64) (bool, error) {
	var ok bool
	err := r.db.QueryRowContext(ctx, `
		SELECT EXISTS (
			SELECT 1 FROM member_group_members
			WHERE member_id = $1 AND group_id = $2
		) OR EXISTS (
			SELECT 1 FROM members WHERE id = $1 AND is_admin
		)
	`, memberID, groupID).Scan(&ok)
	if err != nil {
		return false, fmt.Errorf("failed to check organiser: %w", err)
	}
	return ok, nil
}

const entryColumns = `id, status, first_name, last_name, email, username,
	membership_type, contribution, remarks, created_at, updated_at, member_id, payment_id`

func scanEntry(row rowScanner) (*model.MembershipEntry, error) {
	var e model.MembershipEntry
	var payment uuid.NullUUID
	if err := row.Scan(
		&e.ID, &e.Status, &e.FirstName, &e.LastName, &e.Email, &e.Username,
		&e.MembershipType, &e.Contribution, &e.Remarks, &e.CreatedAt, &e.UpdatedAt,
		&e.MemberID, &payment,
	); err != nil {
		return nil, err
	}
	if payment.Valid {
		e.PaymentID = &payment.UUID
	}
	return &e, nil
}

func (r *repository) CreateEntry(ctx context.Context, e *model.MembershipEntry) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO membership_entries (status, first_name, last_name, email, username,
			membership_type, contribution, remarks, created_at, updated_at)
		VALUES ($1, $2, $3, $4, $5, $6, $7, $8, NOW(), NOW())
		RETURNING id
	`, model.EntryStatusDraft, e.FirstName, e.LastName, e.Email, e.Username,
		e.MembershipType, e.Contribution, e.Remarks).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create entry: %w", err)
	}
	return id, nil
}

func (r *repository) GetEntryByID(ctx context.Context, id int64) (*model.MembershipEntry, error) {
	e, err := scanEntry(r.db.QueryRowContext(ctx,
		`SELECT `+entryColumns+` FROM membership_entries WHERE id = $1`, id))
	if err != nil {
		return nil, ErrEntryNotFound
	}
	return e, nil
}

func (r *repository) ListEntriesByStatus(ctx context.Context, status string) ([]model.MembershipEntry, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+entryColumns+`
		FROM membership_entries
		WHERE status = $1
		ORDER BY created_at ASC
	`, status)
	if err != nil {
		return nil, fmt.Errorf("failed to list entries: %w", err)
	}
	defer rows.Close()

	var entries []model.MembershipEntry
	for rows.Next() {
		e, err := scanEntry(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan entry: %w", err)
		}
		entries = append(entries, *e)
	}
	return entries, rows.Err()
}

// UpdateEntryStatusTx moves an entry through the review workflow. The
// accepted → completed edge is not reachable here; completion only happens
// as part of a payment.
func (r *repository) UpdateEntryStatusTx(ctx context.Context, id int64, to string, now time.Time) (*model.MembershipEntry, error) {
	if to == model.EntryStatusCompleted {
		return nil, memberships.ErrInvalidTransition
	}

	var updated *model.MembershipEntry

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		entry, err := scanEntry(tx.QueryRowContext(ctx, `
			SELECT `+entryColumns+`
			FROM membership_entries WHERE id = $1 FOR UPDATE
		`, id))
		if errors.Is(err, sql.ErrNoRows) {
			return ErrEntryNotFound
		}
		if err != nil {
			return fmt.Errorf("failed to load entry: %w", err)
		}

		if err := memberships.Transition(entry.Status, to); err != nil {
			return err
		}

		if _, err := tx.ExecContext(ctx, `
			UPDATE membership_entries SET status = $1, updated_at = $2 WHERE id = $3
		`, to, now, id); err != nil {
			return fmt.Errorf("failed to update entry: %w", err)
		}
		entry.Status = to
		entry.UpdatedAt = now
		updated = entry
		return nil
	})
	if err != nil {
		return nil, err
	}
	return updated, nil
}

func (r *repository) ListFoodProducts(ctx context.Context) ([]model.FoodProduct, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT id, name, price, available FROM food_products ORDER BY name ASC
	`)
	if err != nil {
		return nil, fmt.Errorf("failed to list products: %w", err)
	}
	defer rows.Close()

	var products []model.FoodProduct
	for rows.Next() {
		var p model.FoodProduct
		if err := rows.Scan(&p.ID, &p.Name, &p.Price, &p.Available); err != nil {
			return nil, fmt.Errorf("failed to scan product: %w", err)
		}
		products = append(products, p)
	}
	return products, rows.Err()
}

func (r *repository) GetFoodProduct(ctx context.Context, id int64) (*model.FoodProduct, error) {
	var p model.FoodProduct
	err := r.db.QueryRowContext(ctx, `
		SELECT id, name, price, available FROM food_products WHERE id = $1
	`, id).Scan(&p.ID, &p.Name, &p.Price, &p.Available)
	if err != nil {
		return nil, ErrProductNotFound
	}
	return &p, nil
}

func (r *repository) CreateFoodEvent(ctx context.Context, fe *model.FoodEvent) (int64, error) {
	var id int64
	err := r.db.QueryRowContext(ctx, `
		INSERT INTO food_events (event_id, start, "end")
		VALUES ($1, $2, $3)
		RETURNING id
	`, fe.EventID, fe.Start, fe.End).Scan(&id)
	if err != nil {
		return 0, fmt.Errorf("failed to create food event: %w", err)
	}
	return id, nil
}

func (r *repository) GetFoodEventByID(ctx context.Context, id int64) (*model.FoodEvent, error) {
	var fe model.FoodEvent
	err := r.db.QueryRowContext(ctx, `
		SELECT id, event_id, start, "end" FROM food_events WHERE id = $1
	`, id).Scan(&fe.ID, &fe.EventID, &fe.Start, &fe.End)
	if err != nil {
		return nil, ErrEventNotFound
	}
	return &fe, nil
}

const foodOrderColumns = `id, food_event_id, product_id, product_price, member_id, name, notes, created_at, payment_id`

func scanFoodOrder(row rowScanner) (*model.FoodOrder, error) {
	var o model.FoodOrder
	var payment uuid.NullUUID
	if err := row.Scan(
		&o.ID, &o.FoodEventID, &o.ProductID, &o.ProductPrice,
		&o.MemberID, &o.Name, &o.Notes, &o.CreatedAt, &payment,
	); err != nil {
		return nil, err
	}
	if payment.Valid {
		o.PaymentID = &payment.UUID
	}
	return &o, nil
}

// CreateFoodOrderTx snapshots the product price into the order row so a
// later price change cannot alter what an existing order owes.
func (r *repository) CreateFoodOrderTx(ctx context.Context, order *model.FoodOrder, now time.Time) (*model.FoodOrder, error) {
	product, err := r.GetFoodProduct(ctx, order.ProductID)
	if err != nil {
		return nil, err
	}
	if !product.Available {
		return nil, ErrProductNotFound
	}

	err = r.inTx(ctx, func(tx *sql.Tx) error {
		var exists bool
		if order.MemberID != nil {
			if err := tx.QueryRowContext(ctx, `
				SELECT EXISTS (
					SELECT 1 FROM food_orders
					WHERE food_event_id = $1 AND member_id = $2
				)
			`, order.FoodEventID, *order.MemberID).Scan(&exists); err != nil {
				return fmt.Errorf("failed to check existing order: %w", err)
			}
			if exists {
				return fmt.Errorf("member already ordered for this event")
			}
		}

		order.ProductPrice = product.Price
		order.CreatedAt = now
		return tx.QueryRowContext(ctx, `
			INSERT INTO food_orders (food_event_id, product_id, product_price, member_id, name, notes, created_at)
			VALUES ($1, $2, $3, $4, $5, $6, $7)
			RETURNING id
		`, order.FoodEventID, order.ProductID, order.ProductPrice,
			order.MemberID, order.Name, order.Notes, now).Scan(&order.ID)
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) GetFoodOrderByID(ctx context.Context, id int64) (*model.FoodOrder, error) {
	o, err := scanFoodOrder(r.db.QueryRowContext(ctx,
		`SELECT `+foodOrderColumns+` FROM food_orders WHERE id = $1`, id))
	if err != nil {
		return nil, ErrOrderNotFound
	}
	return o, nil
}

func (r *repository) ListFoodOrders(ctx context.Context, foodEventID int64) ([]model.FoodOrder, error) {
	rows, err := r.db.QueryContext(ctx, `
		SELECT `+foodOrderColumns+`
		FROM food_orders
		WHERE food_event_id = $1
		ORDER BY created_at ASC
	`, foodEventID)
	if err != nil {
		return nil, fmt.Errorf("failed to list orders: %w", err)
	}
	defer rows.Close()

	var orders []model.FoodOrder
	for rows.Next() {
		o, err := scanFoodOrder(rows)
		if err != nil {
			return nil, fmt.Errorf("failed to scan order: %w", err)
		}
		orders = append(orders, *o)
	}
	return orders, rows.Err()
}

const salesOrderColumns = `id, created_at, member_id, discount, total, payment_id`

func scanSalesOrder(row rowScanner) (*model.SalesOrder, error) {
	var o model.SalesOrder
	var payment uuid.NullUUID
	if err := row.Scan(
		&o.ID, &o.CreatedAt, &o.MemberID, &o.Discount, &o.Total, &payment,
	); err != nil {
		return nil, err
	}
	if payment.Valid {
		o.PaymentID = &payment.UUID
	}
	return &o, nil
}

func salesOrderItemsTx(ctx context.Context, tx *sql.Tx, orderID int64) ([]model.SalesOrderItem, error) {
	rows, err := tx.QueryContext(ctx, `
		SELECT id, order_id, product_name, amount, total
		FROM sales_order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, orderID)
	if err != nil {
		return nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []model.SalesOrderItem
	for rows.Next() {
		var it model.SalesOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductName, &it.Amount, &it.Total); err != nil {
			return nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return items, rows.Err()
}

func (r *repository) CreateSalesOrderTx(ctx context.Context, memberID *int64, items []model.SalesOrderItem, discount float64, now time.Time) (*model.SalesOrder, error) {
	order := &model.SalesOrder{
		CreatedAt: now,
		MemberID:  memberID,
		Discount:  discount,
	}

	err := r.inTx(ctx, func(tx *sql.Tx) error {
		if err := tx.QueryRowContext(ctx, `
			INSERT INTO sales_orders (created_at, member_id, discount, total)
			VALUES ($1, $2, $3, 0)
			RETURNING id
		`, now, memberID, discount).Scan(&order.ID); err != nil {
			return fmt.Errorf("failed to create order: %w", err)
		}

		total := 0.0
		for i := range items {
			items[i].OrderID = order.ID
			if err := tx.QueryRowContext(ctx, `
				INSERT INTO sales_order_items (order_id, product_name, amount, total)
				VALUES ($1, $2, $3, $4)
				RETURNING id
			`, order.ID, items[i].ProductName, items[i].Amount, items[i].Total).Scan(&items[i].ID); err != nil {
				return fmt.Errorf("failed to create order item: %w", err)
			}
			total += items[i].Total
		}

		order.Total = total
		if _, err := tx.ExecContext(ctx, `
			UPDATE sales_orders SET total = $1 WHERE id = $2
		`, total, order.ID); err != nil {
			return fmt.Errorf("failed to set order total: %w", err)
		}
		return nil
	})
	if err != nil {
		return nil, err
	}
	return order, nil
}

func (r *repository) GetSalesOrderByID(ctx context.Context, id int64) (*model.SalesOrder, []model.SalesOrderItem, error) {
	order, err := scanSalesOrder(r.db.QueryRowContext(ctx,
		`SELECT `+salesOrderColumns+` FROM sales_orders WHERE id = $1`, id))
	if err != nil {
		return nil, nil, ErrOrderNotFound
	}

	rows, err := r.db.QueryContext(ctx, `
		SELECT id, order_id, product_name, amount, total
		FROM sales_order_items
		WHERE order_id = $1
		ORDER BY id ASC
	`, id)
	if err != nil {
		return nil, nil, fmt.Errorf("failed to load order items: %w", err)
	}
	defer rows.Close()

	var items []model.SalesOrderItem
	for rows.Next() {
		var it model.SalesOrderItem
		if err := rows.Scan(&it.ID, &it.OrderID, &it.ProductName, &it.Amount, &it.Total); err != nil {
			return nil, nil, fmt.Errorf("failed to scan order item: %w", err)
		}
		items = append(items, it)
	}
	return order, items, rows.Err()
}
